package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"go.uber.org/zap"

	"marketscout/internal/apperr"
	"marketscout/internal/logger"
	"marketscout/internal/models"
)

// ListWatchlist returns the current user's watchlist.
func (s *Server) ListWatchlist(w http.ResponseWriter, r *http.Request) {
	ctx, span, _ := startSpan(r, "ListWatchlist")
	defer span.End()

	entries, err := s.store.ListWatchlist(ctx, currentUser(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Watchlist retrieved successfully", entries)
}

// AddToWatchlist adds a product to the current user's watchlist.
func (s *Server) AddToWatchlist(w http.ResponseWriter, r *http.Request) {
	ctx, span, fields := startSpan(r, "AddToWatchlist")
	defer span.End()

	user := currentUser(r)

	var req models.WatchlistCreate
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

	entry, err := s.store.CreateWatchlistEntry(ctx, user.ID, req.ProductID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.Log.Info("Product added to watchlist", append(fields,
		zap.Int64("user_id", user.ID),
		zap.Int64("product_id", req.ProductID),
	)...)
	writeData(w, http.StatusCreated, "Product added to watchlist", entry)
}

// RemoveFromWatchlist deletes one product from the current user's watchlist.
func (s *Server) RemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	ctx, span, _ := startSpan(r, "RemoveFromWatchlist")
	defer span.End()

	productID, err := pathID(r, "product_id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	removed, err := s.store.DeleteWatchlistEntry(ctx, currentUser(r).ID, productID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !removed {
		writeError(w, r, apperr.NotFound("Watchlist item not found"))
		return
	}
	writeData(w, http.StatusOK, "Watchlist item deleted", nil)
}

// ListAlerts returns the current user's alerts, newest first.
func (s *Server) ListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx, span, _ := startSpan(r, "ListAlerts")
	defer span.End()

	alerts, err := s.store.ListAlerts(ctx, currentUser(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Alerts retrieved successfully", alerts)
}

// CreateAlert stores a custom alert for the current user.
func (s *Server) CreateAlert(w http.ResponseWriter, r *http.Request) {
	ctx, span, fields := startSpan(r, "CreateAlert")
	defer span.End()

	user := currentUser(r)

	var req models.AlertCreate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	alert, err := s.store.CreateAlert(ctx, user.ID, req.Message)
	if err != nil {
		logger.Log.Error("Failed to create alert", append(fields, zap.Error(err))...)
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Alert created successfully", alert)
}

// generateCacheKey derives a stable key from the sorted query parameters.
func generateCacheKey(r *http.Request, prefix string) string {
	queryParams := r.URL.Query()
	keys := make([]string, 0, len(queryParams))
	for k := range queryParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	queryString := make([]string, 0, len(keys))
	for _, k := range keys {
		queryString = append(queryString, fmt.Sprintf("%s=%s", k, strings.Join(queryParams[k], ",")))
	}

	hash := sha256.Sum256([]byte(r.URL.Path + "?" + strings.Join(queryString, "&")))
	return prefix + hex.EncodeToString(hash[:8])
}
