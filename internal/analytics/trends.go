package analytics

import (
	"sort"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// DailyRevenue is one day of the revenue trend, keyed by ingestion date.
type DailyRevenue struct {
	Date         civil.Date      `json:"date"`
	Revenue      decimal.Decimal `json:"revenue"`
	Commission   decimal.Decimal `json:"commission"`
	Net          decimal.Decimal `json:"net"`
	Transactions int             `json:"transactions"`
}

// TrendMetrics summarise a revenue trend.
type TrendMetrics struct {
	TotalRevenue         decimal.Decimal `json:"total_revenue"`
	TotalTransactions    int             `json:"total_transactions"`
	AvgTransactionValue  decimal.Decimal `json:"avg_transaction_value"`
	RevenueGrowthPercent decimal.Decimal `json:"revenue_growth_percent"`
	ProfitMargin         decimal.Decimal `json:"profit_margin"`
}

// RevenueTrends is the revenue-trends view.
type RevenueTrends struct {
	Daily   []DailyRevenue `json:"daily_revenue"`
	Metrics TrendMetrics   `json:"metrics"`
}

// ComputeRevenueTrends groups txs by the UTC date of created_at, oldest first.
// Growth compares the first and last day and is zero with fewer than two days or a
// non-positive first day.
func ComputeRevenueTrends(txs []domain.Transaction) RevenueTrends {
	byDay := make(map[civil.Date]*DailyRevenue)
	var metrics TrendMetrics
	var totalNet decimal.Decimal

	for _, tx := range txs {
		a, ok := resolve(tx)
		if !ok {
			continue
		}
		d := civil.DateOf(tx.CreatedAt.UTC())
		row, ok := byDay[d]
		if !ok {
			row = &DailyRevenue{Date: d}
			byDay[d] = row
		}
		row.Revenue = row.Revenue.Add(a.Amount)
		row.Commission = row.Commission.Add(a.Commission)
		row.Net = row.Net.Add(a.Net)
		row.Transactions++

		metrics.TotalRevenue = metrics.TotalRevenue.Add(a.Amount)
		metrics.TotalTransactions++
		totalNet = totalNet.Add(a.Net)
	}

	daily := make([]DailyRevenue, 0, len(byDay))
	for _, row := range byDay {
		daily = append(daily, *row)
	}
	sort.Slice(daily, func(i, j int) bool { return daily[i].Date.Before(daily[j].Date) })

	metrics.AvgTransactionValue = average(metrics.TotalRevenue, metrics.TotalTransactions)
	if len(daily) >= 2 {
		first, last := daily[0].Revenue, daily[len(daily)-1].Revenue
		if first.IsPositive() {
			metrics.RevenueGrowthPercent = last.Sub(first).Div(first).Mul(hundred).Round(2)
		}
	}
	metrics.ProfitMargin = share(totalNet, metrics.TotalRevenue)

	return RevenueTrends{Daily: daily, Metrics: metrics}
}
