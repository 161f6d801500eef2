package handlers

import (
	"net/http"

	"github.com/dvloznov/psp-ledger/internal/api/middleware"
	"github.com/dvloznov/psp-ledger/internal/cache"
	"github.com/rs/zerolog"
)

// CacheHandler exposes cache maintenance.
type CacheHandler struct {
	cache cache.Cache
	log   zerolog.Logger
}

// NewCacheHandler creates a new cache handler.
func NewCacheHandler(c cache.Cache, log zerolog.Logger) *CacheHandler {
	return &CacheHandler{cache: c, log: log}
}

// Clear handles DELETE /api/cache
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Clear(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("Failed to clear cache")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to clear cache")
		return
	}

	h.log.Info().Str("subject", middleware.SubjectFromContext(r.Context())).Msg("Cache cleared")
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
