// Package analytics computes the dashboard views over a rolling window of
// transactions: headline stats, revenue trends, volume distribution, client
// segmentation, commission by PSP and rule-based recommendations.
//
// Windows are selected by ingestion time (created_at). Every amount uses the
// reporting-currency value when it is present, exactly as the ledger does.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/dvloznov/psp-ledger/internal/ledger"
	"github.com/dvloznov/psp-ledger/internal/repository"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Range is a rolling window length accepted by the analytics endpoints.
type Range string

const (
	Range7d  Range = "7d"
	Range30d Range = "30d"
	Range90d Range = "90d"
)

// DefaultRange applies when the caller does not choose one.
const DefaultRange = Range7d

// ParseRange validates s. An empty string yields DefaultRange.
func ParseRange(s string) (Range, error) {
	switch r := Range(s); r {
	case "":
		return DefaultRange, nil
	case Range7d, Range30d, Range90d:
		return r, nil
	default:
		return "", fmt.Errorf("invalid range %q: expected 7d, 30d or 90d", s)
	}
}

// Days returns the window length in days.
func (r Range) Days() int {
	switch r {
	case Range30d:
		return 30
	case Range90d:
		return 90
	default:
		return 7
	}
}

// Window returns [now - Days, now).
func (r Range) Window(now time.Time) (start, end time.Time) {
	return now.AddDate(0, 0, -r.Days()), now
}

// Narrator writes a short free-text commentary over computed metrics.
type Narrator interface {
	Narrate(ctx context.Context, snapshot Snapshot) (string, error)
}

// Service loads transactions for a window and computes the analytics views.
type Service struct {
	txs      repository.TransactionRepository
	narrator Narrator
	log      zerolog.Logger
	now      func() time.Time
}

// NewService creates a Service. narrator may be nil.
func NewService(txs repository.TransactionRepository, narrator Narrator, log zerolog.Logger) *Service {
	return &Service{
		txs:      txs,
		narrator: narrator,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) window(ctx context.Context, start, end time.Time) ([]domain.Transaction, error) {
	txs, err := s.txs.QueryTransactions(ctx, repository.TransactionFilter{CreatedFrom: start, CreatedTo: end})
	if err != nil {
		return nil, fmt.Errorf("analytics: loading transactions %s..%s: %w", start.Format(time.RFC3339), end.Format(time.RFC3339), err)
	}
	return txs, nil
}

// DashboardStats compares the window against the window of equal length before it.
func (s *Service) DashboardStats(ctx context.Context, r Range) (*DashboardStats, error) {
	start, end := r.Window(s.now())
	current, err := s.window(ctx, start, end)
	if err != nil {
		return nil, err
	}
	previous, err := s.window(ctx, start.Add(-end.Sub(start)), start)
	if err != nil {
		return nil, err
	}
	stats := ComputeDashboardStats(current, previous)
	stats.Range = r
	return &stats, nil
}

// RevenueTrends returns daily revenue for the window.
func (s *Service) RevenueTrends(ctx context.Context, r Range) (*RevenueTrends, error) {
	start, end := r.Window(s.now())
	txs, err := s.window(ctx, start, end)
	if err != nil {
		return nil, err
	}
	trends := ComputeRevenueTrends(txs)
	return &trends, nil
}

// VolumeAnalysis returns volume by hour, weekday and PSP for the window.
func (s *Service) VolumeAnalysis(ctx context.Context, r Range) (*VolumeAnalysis, error) {
	start, end := r.Window(s.now())
	txs, err := s.window(ctx, start, end)
	if err != nil {
		return nil, err
	}
	v := ComputeVolumeAnalysis(txs)
	return &v, nil
}

// ClientSegmentation segments the window's clients by share of volume.
func (s *Service) ClientSegmentation(ctx context.Context, r Range) (*ClientSegmentation, error) {
	start, end := r.Window(s.now())
	txs, err := s.window(ctx, start, end)
	if err != nil {
		return nil, err
	}
	c := ComputeClientSegmentation(txs)
	return &c, nil
}

// CommissionAnalytics breaks the window's commission down by PSP and day.
func (s *Service) CommissionAnalytics(ctx context.Context, r Range) (*CommissionAnalytics, error) {
	start, end := r.Window(s.now())
	txs, err := s.window(ctx, start, end)
	if err != nil {
		return nil, err
	}
	c := ComputeCommissionAnalytics(txs)
	return &c, nil
}

// Recommendations evaluates the business rules over the window and, when a
// Narrator is configured, attaches its commentary. A narrator failure is logged
// and the rule-based result is still returned.
func (s *Service) Recommendations(ctx context.Context, r Range) (*RecommendationReport, error) {
	start, end := r.Window(s.now())
	current, err := s.window(ctx, start, end)
	if err != nil {
		return nil, err
	}
	previous, err := s.window(ctx, start.Add(-end.Sub(start)), start)
	if err != nil {
		return nil, err
	}

	stats := ComputeDashboardStats(current, previous)
	trends := ComputeRevenueTrends(current)
	report := &RecommendationReport{
		Range:           r,
		Recommendations: Recommend(stats.Summary, trends.Daily),
		GeneratedAt:     s.now(),
	}

	if s.narrator != nil {
		snapshot := Snapshot{Range: r, Summary: stats.Summary, Trends: trends.Metrics, Recommendations: report.Recommendations}
		text, err := s.narrator.Narrate(ctx, snapshot)
		if err != nil {
			s.log.Warn().Err(err).Str("range", string(r)).Msg("Narrative generation failed")
		} else {
			report.Narrative = text
		}
	}

	return report, nil
}

// resolve returns the reporting-currency amounts of tx or false when its amount is null.
func resolve(tx domain.Transaction) (ledger.Amounts, bool) {
	return ledger.ResolveAmounts(tx)
}

var hundred = decimal.NewFromInt(100)

// share returns part / total * 100 rounded to two places, or zero for a non-positive total.
func share(part, total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}
	return part.Div(total).Mul(hundred).Round(2)
}

func average(sum decimal.Decimal, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(int64(n))).Round(2)
}
