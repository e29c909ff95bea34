package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"marketscout/internal/apperr"
	"marketscout/internal/cache"
	"marketscout/internal/logger"
	"marketscout/internal/models"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

func page(r *http.Request) (offset, limit int, err error) {
	if offset, err = queryInt(r, "skip", 0); err != nil {
		return 0, 0, err
	}
	if limit, err = queryInt(r, "limit", defaultPageSize); err != nil {
		return 0, 0, err
	}
	return offset, min(limit, maxPageSize), nil
}

func (s *Server) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, span, fields := startSpan(r, "ListProducts")
	defer span.End()

	offset, limit, err := page(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.cached(ctx, w, r, cache.ProductsPrefix, "/products", fields, func() (interface{}, error) {
		products, err := s.store.ListProducts(ctx, offset, limit)
		if err != nil {
			return nil, err
		}
		return Response{Message: "Products retrieved successfully", Data: products}, nil
	})
}

func (s *Server) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span, _ := startSpan(r, "GetProduct")
	defer span.End()

	id, err := pathID(r, "product_id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	product, err := s.requireProduct(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Product retrieved successfully", product)
}

func (s *Server) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span, fields := startSpan(r, "CreateProduct")
	defer span.End()

	var req models.ProductCreate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	product, err := s.store.CreateProduct(ctx, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.cache.InvalidateByPrefix(ctx, cache.ProductsPrefix, "/products")

	logger.Log.Info("Product created", append(fields, zap.Int64("product_id", product.ID))...)
	writeData(w, http.StatusCreated, "Product created successfully", product)
}

func (s *Server) ListAds(w http.ResponseWriter, r *http.Request) {
	ctx, span, _ := startSpan(r, "ListAds")
	defer span.End()

	offset, limit, err := page(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ads, err := s.store.ListAds(ctx, offset, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Ads retrieved successfully", ads)
}

func (s *Server) CreateAd(w http.ResponseWriter, r *http.Request) {
	ctx, span, fields := startSpan(r, "CreateAd")
	defer span.End()

	var req models.AdCreate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := s.requireProduct(ctx, req.ProductID); err != nil {
		writeError(w, r, err)
		return
	}

	ad, err := s.store.CreateAd(ctx, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.Log.Info("Ad recorded", append(fields,
		zap.Int64("ad_id", ad.ID),
		zap.Int64("product_id", ad.ProductID),
		zap.String("platform", string(ad.Platform)),
	)...)
	writeData(w, http.StatusCreated, "Ad created successfully", ad)
}

func (s *Server) ListTrends(w http.ResponseWriter, r *http.Request) {
	ctx, span, _ := startSpan(r, "ListTrends")
	defer span.End()

	id, err := pathID(r, "product_id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	trends, err := s.store.ListTrendsForProduct(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Trends retrieved successfully", trends)
}

func (s *Server) CreateTrend(w http.ResponseWriter, r *http.Request) {
	ctx, span, _ := startSpan(r, "CreateTrend")
	defer span.End()

	var req models.TrendCreate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := s.requireProduct(ctx, req.ProductID); err != nil {
		writeError(w, r, err)
		return
	}

	trend, err := s.store.CreateTrend(ctx, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.cache.InvalidateByPrefix(ctx, cache.TrendingPrefix, "/trending")
	writeData(w, http.StatusCreated, "Trend created successfully", trend)
}

func (s *Server) requireProduct(ctx context.Context, id int64) (*models.Product, error) {
	product, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apperr.NotFound("Product not found")
	}
	return product, nil
}

// cached serves a JSON body from the response cache, computing and storing it on a miss.
func (s *Server) cached(ctx context.Context, w http.ResponseWriter, r *http.Request, prefix, endpoint string, fields []zap.Field, compute func() (interface{}, error)) {
	if s.settings.CacheTTL <= 0 {
		resp, err := compute()
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	cacheKey := generateCacheKey(r, prefix)
	fields = append(fields, zap.String("cache_key", cacheKey))

	body, hit, err := s.cache.Get(ctx, cacheKey, endpoint)
	if err != nil {
		logger.Log.Warn("Cache lookup failed", append(fields, zap.Error(err))...)
	}
	if hit {
		logger.Log.Debug("Cache hit for "+endpoint, fields...)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "HIT")
		w.Write([]byte(body))
		return
	}

	logger.Log.Debug("Cache miss for "+endpoint+", processing request", fields...)

	resp, err := compute()
	if err != nil {
		writeError(w, r, err)
		return
	}

	respBytes, err := json.Marshal(resp)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if cacheErr := s.cache.Set(ctx, cacheKey, string(respBytes), s.settings.CacheTTL); cacheErr != nil {
		logger.Log.Warn("Failed to store response in cache", append(fields, zap.Error(cacheErr))...)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "MISS")
	w.Write(respBytes)
}
