package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/dvloznov/psp-ledger/internal/infra/inmemory"
	"github.com/dvloznov/psp-ledger/internal/repository"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

func nd(s string) decimal.NullDecimal {
	return domain.NewNullDecimal(decimal.RequireFromString(s))
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func tx(id, client, psp string, category domain.Category, amount, commission, net string, date civil.Date, created time.Time) domain.Transaction {
	return domain.Transaction{
		ID:            id,
		Date:          date,
		PSP:           psp,
		Category:      category,
		AmountTRY:     nd(amount),
		CommissionTRY: nd(commission),
		NetAmountTRY:  nd(net),
		ClientName:    client,
		Currency:      "TL",
		CreatedAt:     created,
	}
}

// fixture returns three transactions in the 7d window ending at testNow, one in the
// window before it and one without any amount.
func fixture() []domain.Transaction {
	jan := func(d int) civil.Date { return civil.Date{Year: 2025, Month: 1, Day: d} }
	at := func(d, h int) time.Time { return time.Date(2025, 1, d, h, 0, 0, 0, time.UTC) }

	return []domain.Transaction{
		tx("t0", "Client C", "Alpha", domain.CategoryDeposit, "1000", "20", "980", jan(5), at(5, 10)),
		tx("t1", "Client A", "Alpha", domain.CategoryDeposit, "1000", "50", "950", jan(14), at(14, 10)),
		tx("t2", "Client B", "Beta", domain.CategoryDeposit, "500", "10", "490", jan(15), at(15, 9)),
		tx("t3", "Client A", "Alpha", domain.CategoryWithdrawal, "-200", "0", "-200", jan(15), at(15, 10)),
		{ID: "null", Date: jan(15), PSP: "Alpha", ClientName: "Ghost", CreatedAt: at(15, 11)},
	}
}

func newTestService(t *testing.T, narrator Narrator) *Service {
	t.Helper()
	s := NewService(inmemory.NewTransactionStore(fixture()...), narrator, zerolog.Nop())
	s.now = func() time.Time { return testNow }
	return s
}

type mockTransactionRepo struct {
	QueryTransactionsFunc func(ctx context.Context, filter repository.TransactionFilter) ([]domain.Transaction, error)
}

func (m *mockTransactionRepo) QueryTransactions(ctx context.Context, filter repository.TransactionFilter) ([]domain.Transaction, error) {
	return m.QueryTransactionsFunc(ctx, filter)
}

func (m *mockTransactionRepo) InsertTransactions(ctx context.Context, txs []domain.Transaction) error {
	return errors.New("not implemented")
}

type narratorFunc func(ctx context.Context, snapshot Snapshot) (string, error)

func (f narratorFunc) Narrate(ctx context.Context, snapshot Snapshot) (string, error) {
	return f(ctx, snapshot)
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("")
	require.NoError(t, err)
	assert.Equal(t, Range7d, r)

	for _, in := range []string{"7d", "30d", "90d"} {
		r, err := ParseRange(in)
		require.NoError(t, err)
		assert.Equal(t, Range(in), r)
	}

	_, err = ParseRange("1y")
	assert.Error(t, err)
}

func TestRange_Window(t *testing.T) {
	start, end := Range30d.Window(testNow)
	assert.Equal(t, testNow, end)
	assert.Equal(t, time.Date(2024, 12, 16, 12, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 90, Range90d.Days())
}

func TestService_DashboardStats(t *testing.T) {
	stats, err := newTestService(t, nil).DashboardStats(context.Background(), Range7d)
	require.NoError(t, err)

	assert.Equal(t, Range7d, stats.Range)
	assertDecimal(t, "1300", stats.Summary.TotalRevenue)
	assertDecimal(t, "60", stats.Summary.TotalCommission)
	assertDecimal(t, "1240", stats.Summary.TotalNet)
	assert.Equal(t, 3, stats.Summary.TransactionCount)
	assert.Equal(t, 2, stats.Summary.ActiveClients)
	assertDecimal(t, "433.33", stats.Summary.AvgTransaction)
	assertDecimal(t, "30", stats.Summary.GrowthRate)

	assert.Equal(t, StatCard{Value: "1.300,00 TL", Change: "+30.0%", ChangeType: "positive"}, stats.Stats.TotalRevenue)
	assert.Equal(t, StatCard{Value: "3", Change: "+200.0%", ChangeType: "positive"}, stats.Stats.TotalTransactions)
	assert.Equal(t, StatCard{Value: "2", Change: "+100.0%", ChangeType: "positive"}, stats.Stats.ActiveClients)
	assert.Equal(t, StatCard{Value: "+30.0%", Change: "+26.5%", ChangeType: "positive"}, stats.Stats.GrowthRate)

	require.Len(t, stats.RecentTransactions, 3)
	assert.Equal(t, "t3", stats.RecentTransactions[0].ID)
	assert.Equal(t, "t2", stats.RecentTransactions[1].ID)
	assert.Equal(t, "t1", stats.RecentTransactions[2].ID)
}

func TestComputeDashboardStats_NegativeChange(t *testing.T) {
	created := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	date := civil.Date{Year: 2025, Month: 1, Day: 10}
	current := []domain.Transaction{tx("a", "X", "P", domain.CategoryDeposit, "50", "0", "50", date, created)}
	previous := []domain.Transaction{tx("b", "X", "P", domain.CategoryDeposit, "100", "0", "100", date, created)}

	stats := ComputeDashboardStats(current, previous)
	assert.Equal(t, "negative", stats.Stats.TotalRevenue.ChangeType)
	assert.Equal(t, "-50.0%", stats.Stats.TotalRevenue.Change)
}

func TestService_RevenueTrends(t *testing.T) {
	trends, err := newTestService(t, nil).RevenueTrends(context.Background(), Range7d)
	require.NoError(t, err)

	require.Len(t, trends.Daily, 2)
	assert.Equal(t, civil.Date{Year: 2025, Month: 1, Day: 14}, trends.Daily[0].Date)
	assertDecimal(t, "1000", trends.Daily[0].Revenue)
	assertDecimal(t, "300", trends.Daily[1].Revenue)
	assert.Equal(t, 2, trends.Daily[1].Transactions)

	assertDecimal(t, "1300", trends.Metrics.TotalRevenue)
	assert.Equal(t, 3, trends.Metrics.TotalTransactions)
	assertDecimal(t, "-70", trends.Metrics.RevenueGrowthPercent)
	assertDecimal(t, "95.38", trends.Metrics.ProfitMargin)
}

func TestComputeRevenueTrends_SingleDayHasNoGrowth(t *testing.T) {
	created := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	date := civil.Date{Year: 2025, Month: 1, Day: 10}
	trends := ComputeRevenueTrends([]domain.Transaction{tx("a", "X", "P", domain.CategoryDeposit, "50", "5", "45", date, created)})
	assert.True(t, trends.Metrics.RevenueGrowthPercent.IsZero())
	assertDecimal(t, "90", trends.Metrics.ProfitMargin)
}

func TestService_VolumeAnalysis(t *testing.T) {
	v, err := newTestService(t, nil).VolumeAnalysis(context.Background(), Range7d)
	require.NoError(t, err)

	require.Len(t, v.Hourly, 24)
	assert.Equal(t, 2, v.Hourly[10].Count)
	assertDecimal(t, "800", v.Hourly[10].Volume)
	assert.Equal(t, 1, v.Hourly[9].Count)

	require.Len(t, v.Weekday, 7)
	assert.Equal(t, "Tuesday", v.Weekday[2].Name)
	assert.Equal(t, 1, v.Weekday[2].Count)
	assert.Equal(t, 2, v.Weekday[3].Count)

	require.Len(t, v.PSP, 2)
	assert.Equal(t, "Alpha", v.PSP[0].PSP)
	assertDecimal(t, "400", v.PSP[0].Average)
	assert.Equal(t, "Beta", v.PSP[1].PSP)

	require.NotNil(t, v.Insights.PeakHour)
	require.NotNil(t, v.Insights.PeakDay)
	assert.Equal(t, 10, *v.Insights.PeakHour)
	assert.Equal(t, 3, *v.Insights.PeakDay)
	assert.Equal(t, 3, v.Insights.TotalTransactions)
}

func TestComputeVolumeAnalysis_Empty(t *testing.T) {
	v := ComputeVolumeAnalysis(nil)
	assert.Nil(t, v.Insights.PeakHour)
	assert.Nil(t, v.Insights.PeakDay)
	assert.Empty(t, v.PSP)
}

func TestSegment(t *testing.T) {
	tests := map[string]string{
		"50":   SegmentVIP,
		"10":   SegmentVIP,
		"9.99": SegmentPremium,
		"5":    SegmentPremium,
		"2":    SegmentRegular,
		"1.99": SegmentStandard,
		"0":    SegmentStandard,
	}
	for pct, want := range tests {
		assert.Equal(t, want, Segment(decimal.RequireFromString(pct)), pct)
	}
}

func TestComputeClientSegmentation(t *testing.T) {
	created := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	date := civil.Date{Year: 2025, Month: 1, Day: 10}
	txs := []domain.Transaction{
		tx("1", "Big", "P", domain.CategoryDeposit, "900", "0", "900", date, created),
		tx("2", "Mid", "P", domain.CategoryDeposit, "60", "0", "60", date, created),
		tx("3", "Small", "P", domain.CategoryDeposit, "30", "0", "30", date, created),
		tx("4", "", "P", domain.CategoryDeposit, "10", "0", "10", date, created),
	}

	c := ComputeClientSegmentation(txs)

	require.Len(t, c.Clients, 4)
	assert.Equal(t, "Big", c.Clients[0].Name)
	assert.Equal(t, SegmentVIP, c.Clients[0].Segment)
	assert.Equal(t, SegmentPremium, c.Clients[1].Segment)
	assert.Equal(t, SegmentRegular, c.Clients[2].Segment)
	assert.Equal(t, "Unknown", c.Clients[3].Name)
	assert.Equal(t, SegmentStandard, c.Clients[3].Segment)

	assert.Equal(t, 1, c.Distribution[SegmentVIP].Count)
	assertDecimal(t, "90", c.Distribution[SegmentVIP].Percentage)
	assert.Equal(t, 4, c.Metrics.TotalClients)
	assertDecimal(t, "250", c.Metrics.AvgVolumePerClient)
	assert.Equal(t, "Big", c.Metrics.TopClient)
}

func TestService_CommissionAnalytics(t *testing.T) {
	c, err := newTestService(t, nil).CommissionAnalytics(context.Background(), Range7d)
	require.NoError(t, err)

	require.Len(t, c.PSP, 2)
	assert.Equal(t, "Alpha", c.PSP[0].PSP)
	assertDecimal(t, "50", c.PSP[0].Commission)
	assertDecimal(t, "6.25", c.PSP[0].Rate)
	assertDecimal(t, "2", c.PSP[1].Rate)

	require.Len(t, c.Daily, 2)
	assertDecimal(t, "50", c.Daily[0].Commission)
	assertDecimal(t, "10", c.Daily[1].Commission)

	assertDecimal(t, "4.62", c.Metrics.OverallRate)
	assertDecimal(t, "30", c.Metrics.AvgDaily)
	assert.Equal(t, "Alpha", c.Metrics.TopPSP)
}

func TestService_Recommendations(t *testing.T) {
	var got Snapshot
	narrator := narratorFunc(func(ctx context.Context, s Snapshot) (string, error) {
		got = s
		return "Volume is concentrated on Alpha.", nil
	})

	report, err := newTestService(t, narrator).Recommendations(context.Background(), Range7d)
	require.NoError(t, err)

	types := make([]string, 0, len(report.Recommendations))
	for _, r := range report.Recommendations {
		types = append(types, r.Type)
	}
	assert.Equal(t, []string{"revenue_optimization", "client_acquisition", "transaction_value"}, types)
	assert.Equal(t, "Volume is concentrated on Alpha.", report.Narrative)
	assert.Equal(t, testNow, report.GeneratedAt)
	assert.Equal(t, 2, got.Summary.ActiveClients)
	assert.Len(t, got.Recommendations, 3)
}

func TestService_Recommendations_NarratorFailure(t *testing.T) {
	narrator := narratorFunc(func(ctx context.Context, s Snapshot) (string, error) {
		return "", errors.New("quota exceeded")
	})

	report, err := newTestService(t, narrator).Recommendations(context.Background(), Range7d)
	require.NoError(t, err)
	assert.Empty(t, report.Narrative)
	assert.NotEmpty(t, report.Recommendations)
}

func TestRecommend_HealthyBusiness(t *testing.T) {
	summary := Summary{
		TotalRevenue:     decimal.NewFromInt(100000),
		TransactionCount: 20,
		ActiveClients:    12,
		AvgTransaction:   decimal.NewFromInt(5000),
	}
	daily := []DailyRevenue{{Revenue: decimal.NewFromInt(40000)}, {Revenue: decimal.NewFromInt(60000)}}

	assert.Empty(t, Recommend(summary, daily))
}

func TestService_QueryError(t *testing.T) {
	repo := &mockTransactionRepo{
		QueryTransactionsFunc: func(ctx context.Context, filter repository.TransactionFilter) ([]domain.Transaction, error) {
			return nil, errors.New("bigquery unavailable")
		},
	}
	s := NewService(repo, nil, zerolog.Nop())

	_, err := s.DashboardStats(context.Background(), Range7d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bigquery unavailable")
}
