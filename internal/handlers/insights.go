package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"marketscout/internal/cache"
	"marketscout/internal/export"
	"marketscout/internal/logger"
)

func (s *Server) ScanAds(w http.ResponseWriter, r *http.Request) {
	ctx, span, fields := startSpan(r, "ScanAds")
	defer span.End()

	logger.Log.Info("Scanning for viral ads", fields...)

	ads, err := s.engine.ScanForViralAds(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Viral ads scanned successfully", map[string]interface{}{"viral_ads": ads})
}

func (s *Server) HeatMap(w http.ResponseWriter, r *http.Request) {
	ctx, span, fields := startSpan(r, "HeatMap")
	defer span.End()

	logger.Log.Info("Generating heat map", fields...)

	heatMap, err := s.engine.GenerateHeatMap(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Heat map generated successfully", map[string]interface{}{"heat_map": heatMap})
}

func (s *Server) Trending(w http.ResponseWriter, r *http.Request) {
	ctx, span, fields := startSpan(r, "Trending")
	defer span.End()

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.Log.Info("Getting trending products", append(fields, zap.Int("limit", limit))...)

	s.cached(ctx, w, r, cache.TrendingPrefix, "/trending", fields, func() (interface{}, error) {
		trending, err := s.engine.GetTrendingProducts(ctx, limit)
		if err != nil {
			return nil, err
		}
		return Response{
			Message: "Trending products retrieved successfully",
			Data:    map[string]interface{}{"trending_products": trending},
		}, nil
	})
}

// CalculateScore scores a product and records the score as a new trend.
func (s *Server) CalculateScore(w http.ResponseWriter, r *http.Request) {
	ctx, span, fields := startSpan(r, "CalculateScore")
	defer span.End()

	id, err := pathID(r, "product_id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.Log.Info("Calculating trend score", append(fields, zap.Int64("product_id", id))...)

	score, err := s.engine.RecordTrendScore(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.cache.InvalidateByPrefix(ctx, cache.TrendingPrefix, "/trending")
	writeData(w, http.StatusOK, "Trend score calculated successfully", score)
}

// CheckAlerts evaluates the current user's watchlist and stores, broadcasts and
// notifies every resulting alert.
func (s *Server) CheckAlerts(w http.ResponseWriter, r *http.Request) {
	ctx, span, fields := startSpan(r, "CheckAlerts")
	defer span.End()

	user := currentUser(r)
	fields = append(fields, zap.Int64("user_id", user.ID))
	logger.Log.Info("Checking alerts", fields...)

	messages, err := s.engine.CheckAlerts(ctx, user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if len(messages) > 0 && s.dispatcher != nil {
		if _, err := s.dispatcher.Dispatch(ctx, *user, messages); err != nil {
			writeError(w, r, err)
			return
		}
		logger.Log.Info("Alerts dispatched", append(fields, zap.Int("count", len(messages)))...)
	}

	writeData(w, http.StatusOK, "Alerts checked successfully", map[string]interface{}{"alerts": messages})
}

// Export streams the current user's watchlist or trend history as CSV.
func (s *Server) Export(w http.ResponseWriter, r *http.Request) {
	ctx, span, fields := startSpan(r, "Export")
	defer span.End()

	kind := export.Kind(mux.Vars(r)["kind"])
	user := currentUser(r)

	logger.Log.Info("Exporting data", append(fields,
		zap.String("kind", string(kind)),
		zap.Int64("user_id", user.ID),
	)...)

	data, err := s.exporter.Export(ctx, user.ID, kind)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+export.Filename(kind))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Health reports liveness and database reachability.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "database": "up", "instance": s.settings.Instance}

	if err := s.store.Ping(r.Context()); err != nil {
		logger.Log.Warn("Health check failed", zap.Error(err))
		status["status"] = "degraded"
		status["database"] = "down"
		writeData(w, http.StatusServiceUnavailable, "Service degraded", status)
		return
	}
	writeData(w, http.StatusOK, "Service healthy", status)
}
