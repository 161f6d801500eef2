// Package reporting loads transactions and allocations from the repositories and
// runs the ledger aggregations over them. It is shared by the HTTP API, the CLI,
// the export worker and the Notion sync.
package reporting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/dvloznov/psp-ledger/internal/export"
	"github.com/dvloznov/psp-ledger/internal/ledger"
	"github.com/dvloznov/psp-ledger/internal/repository"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrInvalidQuery is returned for a query whose start date is after its end date
// or an allocation without a date or PSP.
var ErrInvalidQuery = errors.New("invalid query")

// Query bounds a report. Zero values mean unbounded.
type Query struct {
	StartDate civil.Date
	EndDate   civil.Date
	PSP       string
}

// Validate checks the date order.
func (q Query) Validate() error {
	if repository.IsSet(q.StartDate) && repository.IsSet(q.EndDate) && q.StartDate.After(q.EndDate) {
		return fmt.Errorf("%w: start_date %s is after end_date %s", ErrInvalidQuery, q.StartDate, q.EndDate)
	}
	return nil
}

// Period describes the date range of q for display.
func (q Query) Period() string {
	start, end := repository.IsSet(q.StartDate), repository.IsSet(q.EndDate)
	switch {
	case start && end:
		return fmt.Sprintf("%s to %s", q.StartDate, q.EndDate)
	case start:
		return fmt.Sprintf("From %s", q.StartDate)
	case end:
		return fmt.Sprintf("Until %s", q.EndDate)
	default:
		return "All available data (no date restriction)"
	}
}

func (q Query) transactionFilter() repository.TransactionFilter {
	return repository.TransactionFilter{StartDate: q.StartDate, EndDate: q.EndDate, PSP: q.PSP}
}

func (q Query) allocationFilter() repository.AllocationFilter {
	return repository.AllocationFilter{StartDate: q.StartDate, EndDate: q.EndDate, PSP: q.PSP}
}

// Service runs ledger reports against the repositories.
type Service struct {
	txs    repository.TransactionRepository
	allocs repository.AllocationRepository
	rates  repository.CommissionRateRepository
	log    zerolog.Logger
}

// NewService creates a Service.
func NewService(txs repository.TransactionRepository, allocs repository.AllocationRepository, rates repository.CommissionRateRepository, log zerolog.Logger) *Service {
	return &Service{txs: txs, allocs: allocs, rates: rates, log: log}
}

// resolvePSP returns the spelling the transaction source uses for psp, so that a
// query for "alpha" reads and writes the allocations and rate stored for "Alpha".
// A PSP without transactions keeps its trimmed input spelling.
func (s *Service) resolvePSP(ctx context.Context, psp string) (string, error) {
	psp = strings.TrimSpace(psp)
	if psp == "" {
		return "", nil
	}
	txs, err := s.txs.QueryTransactions(ctx, repository.TransactionFilter{PSP: psp, Limit: 1})
	if err != nil {
		return "", fmt.Errorf("resolving psp %q: %w", psp, err)
	}
	if len(txs) > 0 && txs[0].HasPSP() {
		return txs[0].PSPName(), nil
	}
	return psp, nil
}

func (s *Service) load(ctx context.Context, q Query) ([]domain.Transaction, []domain.Allocation, error) {
	if err := q.Validate(); err != nil {
		return nil, nil, err
	}
	txs, err := s.txs.QueryTransactions(ctx, q.transactionFilter())
	if err != nil {
		return nil, nil, fmt.Errorf("loading transactions: %w", err)
	}
	allocs, err := s.allocs.ListAllocations(ctx, q.allocationFilter())
	if err != nil {
		return nil, nil, fmt.Errorf("loading allocations: %w", err)
	}
	return txs, allocs, nil
}

// DailyLedger builds the per-date, per-PSP ledger for q. Transactions without a
// PSP are left out, as in RolloverSummary, so both reports carry the same totals.
func (s *Service) DailyLedger(ctx context.Context, q Query) (*ledger.DailyLedger, error) {
	txs, allocs, err := s.load(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("DailyLedger: %w", err)
	}

	result, err := ledger.BuildDailyLedger(txs, ledger.NewAllocationIndex(allocs).Lookup,
		ledger.WithFilter(ledger.HasPSP),
		ledger.WithLogger(s.log),
	)
	if err != nil {
		return nil, fmt.Errorf("DailyLedger: %w", err)
	}

	if len(result.ValidationErrors) > 0 {
		s.log.Warn().
			Int("count", len(result.ValidationErrors)).
			Strs("errors", result.ValidationErrors).
			Msg("Ledger cross-total validation failed")
	}
	return result, nil
}

// RolloverSummary builds the per-PSP summary for q.
func (s *Service) RolloverSummary(ctx context.Context, q Query) ([]ledger.PSPSummary, error) {
	txs, allocs, err := s.load(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("RolloverSummary: %w", err)
	}
	return ledger.BuildRolloverSummary(txs, allocs, ledger.WithLogger(s.log)), nil
}

// SetAllocation records amount for (date, psp), replacing any previous value.
func (s *Service) SetAllocation(ctx context.Context, date civil.Date, psp string, amount decimal.Decimal) (*domain.Allocation, error) {
	psp = strings.TrimSpace(psp)
	if !repository.IsSet(date) || psp == "" {
		return nil, fmt.Errorf("SetAllocation: %w: date and psp are required", ErrInvalidQuery)
	}
	psp, err := s.resolvePSP(ctx, psp)
	if err != nil {
		return nil, fmt.Errorf("SetAllocation: %w", err)
	}

	a, err := s.allocs.UpsertAllocation(ctx, date, psp, amount)
	if err != nil {
		return nil, fmt.Errorf("SetAllocation: %s %s: %w", date, psp, err)
	}

	s.log.Info().
		Str("date", date.String()).
		Str("psp", psp).
		Str("amount", amount.String()).
		Msg("Allocation updated")
	return a, nil
}

// PSPPeriodSummary computes the standardized commission and rollover for one PSP
// over [start, end]. A PSP without an active rate is charged no commission.
func (s *Service) PSPPeriodSummary(ctx context.Context, psp string, start, end civil.Date) (*ledger.PeriodSummary, error) {
	psp = strings.TrimSpace(psp)
	if psp == "" || !repository.IsSet(start) || !repository.IsSet(end) {
		return nil, fmt.Errorf("PSPPeriodSummary: %w: psp, start_date and end_date are required", ErrInvalidQuery)
	}
	psp, err := s.resolvePSP(ctx, psp)
	if err != nil {
		return nil, fmt.Errorf("PSPPeriodSummary: %w", err)
	}
	q := Query{StartDate: start, EndDate: end, PSP: psp}

	rate := decimal.Zero
	r, err := s.rates.GetCommissionRate(ctx, psp)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		s.log.Warn().Str("psp", psp).Msg("No commission rate configured, using zero")
	case err != nil:
		return nil, fmt.Errorf("PSPPeriodSummary: loading rate for %s: %w", psp, err)
	default:
		rate = r.Rate
	}

	txs, allocs, err := s.load(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("PSPPeriodSummary: %w", err)
	}

	summary := ledger.BuildPSPPeriodSummary(psp, start, end, txs, rate, allocs)
	return &summary, nil
}

// ExportWorkbook renders the ledger and rollover summary for q as XLSX.
func (s *Service) ExportWorkbook(ctx context.Context, q Query) ([]byte, error) {
	daily, err := s.DailyLedger(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ExportWorkbook: %w", err)
	}
	summary, err := s.RolloverSummary(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ExportWorkbook: %w", err)
	}

	data, err := export.Workbook(daily, summary)
	if err != nil {
		return nil, fmt.Errorf("ExportWorkbook: %w", err)
	}
	return data, nil
}
