package analytics

import (
	"fmt"
	"time"

	"github.com/dvloznov/psp-ledger/internal/format"
	"github.com/shopspring/decimal"
)

// Recommendation is one actionable suggestion derived from the metrics.
type Recommendation struct {
	Type        string `json:"type"`
	Priority    string `json:"priority"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Impact      string `json:"impact"`
	Effort      string `json:"effort"`
}

// RecommendationReport is the recommendations view.
type RecommendationReport struct {
	Range           Range            `json:"range"`
	Recommendations []Recommendation `json:"recommendations"`
	Narrative       string           `json:"narrative,omitempty"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

// Snapshot is the metric bundle handed to a Narrator.
type Snapshot struct {
	Range           Range            `json:"range"`
	Summary         Summary          `json:"summary"`
	Trends          TrendMetrics     `json:"trends"`
	Recommendations []Recommendation `json:"recommendations"`
}

var (
	minDailyGrowth   = decimal.NewFromInt(5)
	minActiveClients = 10
	minAvgTicket     = decimal.NewFromInt(1000)
)

// Recommend applies the business rules:
//   - day-over-day revenue growth below 5% across the last two days
//   - fewer than ten active clients
//   - an average transaction below 1000
func Recommend(summary Summary, daily []DailyRevenue) []Recommendation {
	recs := make([]Recommendation, 0, 3)

	if n := len(daily); n >= 2 && summary.TotalRevenue.IsPositive() {
		prev, last := daily[n-2].Revenue, daily[n-1].Revenue
		growth := format.PercentChange(last, prev).Round(2)
		if growth.LessThan(minDailyGrowth) {
			recs = append(recs, Recommendation{
				Type:        "revenue_optimization",
				Priority:    "high",
				Title:       "Revenue growth is slowing",
				Description: fmt.Sprintf("Revenue changed %s day over day. Review PSP routing and commission terms.", format.Percent(growth)),
				Impact:      "High",
				Effort:      "Medium",
			})
		}
	}

	if summary.ActiveClients < minActiveClients {
		recs = append(recs, Recommendation{
			Type:        "client_acquisition",
			Priority:    "medium",
			Title:       "Expand the client base",
			Description: fmt.Sprintf("Only %d active clients in this period. Client concentration increases settlement risk.", summary.ActiveClients),
			Impact:      "High",
			Effort:      "High",
		})
	}

	if summary.TransactionCount > 0 && summary.AvgTransaction.LessThan(minAvgTicket) {
		recs = append(recs, Recommendation{
			Type:        "transaction_value",
			Priority:    "low",
			Title:       "Raise average transaction value",
			Description: fmt.Sprintf("Average transaction is %s. Per-transaction PSP fees weigh more on small tickets.", format.Currency(summary.AvgTransaction, "TL")),
			Impact:      "Medium",
			Effort:      "Low",
		})
	}

	return recs
}
