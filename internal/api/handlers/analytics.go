package handlers

import (
	"context"
	"net/http"

	"github.com/dvloznov/psp-ledger/internal/analytics"
	"github.com/dvloznov/psp-ledger/internal/api/middleware"
	"github.com/dvloznov/psp-ledger/internal/cache"
	"github.com/rs/zerolog"
)

// AnalyticsHandler handles the dashboard analytics endpoints. Every endpoint takes
// an optional range parameter (7d, 30d or 90d).
type AnalyticsHandler struct {
	svc  *analytics.Service
	json cachedJSON
	log  zerolog.Logger
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(svc *analytics.Service, c cache.Cache, log zerolog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		svc:  svc,
		json: cachedJSON{cache: c, log: log},
		log:  log,
	}
}

// serveAnalytics parses the range, then serves compute's result through the analytics cache.
func serveAnalytics[T any](h *AnalyticsHandler, w http.ResponseWriter, r *http.Request, message string, compute func(ctx context.Context, rng analytics.Range) (T, error)) {
	rng, err := analytics.ParseRange(r.URL.Query().Get("range"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.json.serve(w, r, cache.NamespaceAnalytics, func() (interface{}, error) {
		v, err := compute(r.Context(), rng)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
	if err != nil {
		h.log.Error().Err(err).Str("range", string(rng)).Msg(message)
		middleware.WriteError(w, http.StatusInternalServerError, message)
	}
}

// DashboardStats handles GET /api/analytics/dashboard-stats
func (h *AnalyticsHandler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	serveAnalytics(h, w, r, "Failed to retrieve dashboard stats", h.svc.DashboardStats)
}

// RevenueTrends handles GET /api/analytics/revenue-trends
func (h *AnalyticsHandler) RevenueTrends(w http.ResponseWriter, r *http.Request) {
	serveAnalytics(h, w, r, "Failed to retrieve revenue trends", h.svc.RevenueTrends)
}

// VolumeAnalysis handles GET /api/analytics/volume
func (h *AnalyticsHandler) VolumeAnalysis(w http.ResponseWriter, r *http.Request) {
	serveAnalytics(h, w, r, "Failed to retrieve volume analysis", h.svc.VolumeAnalysis)
}

// ClientSegmentation handles GET /api/analytics/clients
func (h *AnalyticsHandler) ClientSegmentation(w http.ResponseWriter, r *http.Request) {
	serveAnalytics(h, w, r, "Failed to retrieve client analytics", h.svc.ClientSegmentation)
}

// CommissionAnalytics handles GET /api/analytics/commission
func (h *AnalyticsHandler) CommissionAnalytics(w http.ResponseWriter, r *http.Request) {
	serveAnalytics(h, w, r, "Failed to retrieve commission analytics", h.svc.CommissionAnalytics)
}

// Recommendations handles GET /api/analytics/recommendations
func (h *AnalyticsHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	serveAnalytics(h, w, r, "Failed to generate recommendations", h.svc.Recommendations)
}
