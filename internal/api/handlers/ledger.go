package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/psp-ledger/internal/api/middleware"
	"github.com/dvloznov/psp-ledger/internal/cache"
	"github.com/dvloznov/psp-ledger/internal/gcsuploader"
	"github.com/dvloznov/psp-ledger/internal/ledger"
	"github.com/dvloznov/psp-ledger/internal/reporting"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LedgerHandler handles the ledger, rollover and allocation endpoints.
type LedgerHandler struct {
	svc   *reporting.Service
	cache cache.Cache
	json  cachedJSON
	log   zerolog.Logger
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(svc *reporting.Service, c cache.Cache, log zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{
		svc:   svc,
		cache: c,
		json:  cachedJSON{cache: c, log: log},
		log:   log,
	}
}

// LedgerResponse is the body of GET /api/ledger.
type LedgerResponse struct {
	LedgerData          []ledger.DailyTotals `json:"ledger_data"`
	TotalDays           int                  `json:"total_days"`
	Period              string               `json:"period"`
	ValidationErrors    []string             `json:"validation_errors,omitempty"`
	SkippedTransactions int                  `json:"skipped_transactions"`
	FallbackClassified  int                  `json:"fallback_classified"`
}

// GetLedger handles GET /api/ledger
func (h *LedgerHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.json.serve(w, r, cache.NamespaceLedger, func() (interface{}, error) {
		result, err := h.svc.DailyLedger(r.Context(), q)
		if err != nil {
			return nil, err
		}
		return LedgerResponse{
			LedgerData:          result.Days,
			TotalDays:           len(result.Days),
			Period:              q.Period(),
			ValidationErrors:    result.ValidationErrors,
			SkippedTransactions: result.Skipped,
			FallbackClassified:  result.FallbackClassified,
		}, nil
	})
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to retrieve ledger data")
	}
}

// RolloverResponse is the body of GET /api/ledger/rollover-summary.
type RolloverResponse struct {
	PSPSummary []ledger.PSPSummary `json:"psp_summary"`
	TotalPSPs  int                 `json:"total_psps"`
}

// GetRolloverSummary handles GET /api/ledger/rollover-summary
func (h *LedgerHandler) GetRolloverSummary(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.json.serve(w, r, cache.NamespaceRollover, func() (interface{}, error) {
		summary, err := h.svc.RolloverSummary(r.Context(), q)
		if err != nil {
			return nil, err
		}
		return RolloverResponse{PSPSummary: summary, TotalPSPs: len(summary)}, nil
	})
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to retrieve rollover summary")
	}
}

// SetAllocation handles POST /api/ledger/allocations
func (h *LedgerHandler) SetAllocation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date       string              `json:"date"`
		PSP        string              `json:"psp"`
		Allocation decimal.NullDecimal `json:"allocation"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.PSP = strings.TrimSpace(req.PSP)
	if req.Date == "" || req.PSP == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Missing required fields: date and psp")
		return
	}

	date, err := civil.ParseDate(req.Date)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid date format. Use YYYY-MM-DD")
		return
	}

	// A missing amount clears the allocation.
	amount := decimal.Zero
	if req.Allocation.Valid {
		amount = req.Allocation.Decimal
	}

	ctx := r.Context()
	stored, err := h.svc.SetAllocation(ctx, date, req.PSP, amount)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update allocation")
		return
	}

	for _, ns := range []string{cache.NamespaceLedger, cache.NamespaceRollover} {
		if err := h.cache.DeleteNamespace(ctx, ns); err != nil {
			h.log.Error().Err(err).Str("namespace", ns).Msg("Failed to invalidate cache after allocation update")
		}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"message":    fmt.Sprintf("Allocation updated for %s on %s", stored.PSPName, stored.Date),
		"allocation": stored.Amount,
		"record":     stored,
	})
}

// GetPSPPeriod handles GET /api/ledger/psp-period
func (h *LedgerHandler) GetPSPPeriod(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.svc.PSPPeriodSummary(r.Context(), q.PSP, q.StartDate, q.EndDate)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to calculate PSP period summary")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, summary)
}

// ExportLedger handles GET /api/ledger/export
func (h *LedgerHandler) ExportLedger(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := h.svc.ExportWorkbook(r.Context(), q)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to export ledger")
		return
	}

	filename := fmt.Sprintf("ledger-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", gcsuploader.XLSXContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to write export")
	}
}
