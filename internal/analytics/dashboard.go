package analytics

import (
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/dvloznov/psp-ledger/internal/format"
	"github.com/shopspring/decimal"
)

// recentLimit is the number of transactions listed on the dashboard.
const recentLimit = 5

// StatCard is one preformatted headline figure.
type StatCard struct {
	Value      string `json:"value"`
	Change     string `json:"change"`
	ChangeType string `json:"changeType"`
}

func card(value string, change decimal.Decimal) StatCard {
	c := StatCard{Value: value, Change: format.Percent(change), ChangeType: "positive"}
	if change.IsNegative() {
		c.ChangeType = "negative"
	}
	return c
}

// StatCards are the four headline cards.
type StatCards struct {
	TotalRevenue      StatCard `json:"total_revenue"`
	TotalTransactions StatCard `json:"total_transactions"`
	ActiveClients     StatCard `json:"active_clients"`
	GrowthRate        StatCard `json:"growth_rate"`
}

// Summary holds the raw figures behind the cards.
type Summary struct {
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	TotalCommission  decimal.Decimal `json:"total_commission"`
	TotalNet         decimal.Decimal `json:"total_net"`
	TransactionCount int             `json:"transaction_count"`
	ActiveClients    int             `json:"active_clients"`
	AvgTransaction   decimal.Decimal `json:"avg_transaction"`
	GrowthRate       decimal.Decimal `json:"growth_rate"`
}

// RecentTransaction is a row of the dashboard's recent activity list.
type RecentTransaction struct {
	ID         string          `json:"id"`
	ClientName string          `json:"client_name"`
	PSP        string          `json:"psp"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Date       civil.Date      `json:"date"`
	CreatedAt  time.Time       `json:"created_at"`
}

// DashboardStats is the dashboard-stats view.
type DashboardStats struct {
	Range              Range               `json:"range,omitempty"`
	Stats              StatCards           `json:"stats"`
	RecentTransactions []RecentTransaction `json:"recent_transactions"`
	Summary            Summary             `json:"summary"`
}

type windowTotals struct {
	revenue, commission, net decimal.Decimal
	count                    int
	clients                  map[string]struct{}
}

func totalsOf(txs []domain.Transaction) windowTotals {
	t := windowTotals{clients: make(map[string]struct{})}
	for _, tx := range txs {
		a, ok := resolve(tx)
		if !ok {
			continue
		}
		t.revenue = t.revenue.Add(a.Amount)
		t.commission = t.commission.Add(a.Commission)
		t.net = t.net.Add(a.Net)
		t.count++
		if name := strings.TrimSpace(tx.ClientName); name != "" {
			t.clients[name] = struct{}{}
		}
	}
	return t
}

// ComputeDashboardStats summarises current and compares it with previous, the
// window of equal length immediately before it.
func ComputeDashboardStats(current, previous []domain.Transaction) DashboardStats {
	cur := totalsOf(current)
	prev := totalsOf(previous)

	revenueChange := format.PercentChange(cur.revenue, prev.revenue).Round(2)
	countChange := format.PercentChange(decimal.NewFromInt(int64(cur.count)), decimal.NewFromInt(int64(prev.count))).Round(2)
	clientChange := format.PercentChange(decimal.NewFromInt(int64(len(cur.clients))), decimal.NewFromInt(int64(len(prev.clients)))).Round(2)
	netChange := format.PercentChange(cur.net, prev.net).Round(2)

	stats := DashboardStats{
		Stats: StatCards{
			TotalRevenue:      card(format.Currency(cur.revenue, "TL"), revenueChange),
			TotalTransactions: card(format.Number(decimal.NewFromInt(int64(cur.count))), countChange),
			ActiveClients:     card(format.Number(decimal.NewFromInt(int64(len(cur.clients)))), clientChange),
			GrowthRate:        card(format.Percent(revenueChange), netChange),
		},
		Summary: Summary{
			TotalRevenue:     cur.revenue,
			TotalCommission:  cur.commission,
			TotalNet:         cur.net,
			TransactionCount: cur.count,
			ActiveClients:    len(cur.clients),
			AvgTransaction:   average(cur.revenue, cur.count),
			GrowthRate:       revenueChange,
		},
		RecentTransactions: recent(current, recentLimit),
	}
	return stats
}

func recent(txs []domain.Transaction, n int) []RecentTransaction {
	sorted := make([]domain.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })

	out := make([]RecentTransaction, 0, n)
	for _, tx := range sorted {
		if len(out) == n {
			break
		}
		a, ok := resolve(tx)
		if !ok {
			continue
		}
		client := strings.TrimSpace(tx.ClientName)
		if client == "" {
			client = "Unknown"
		}
		currency := tx.Currency
		if currency == "" {
			currency = "TL"
		}
		out = append(out, RecentTransaction{
			ID:         tx.ID,
			ClientName: client,
			PSP:        tx.PSPName(),
			Amount:     a.Amount,
			Currency:   currency,
			Date:       tx.Date,
			CreatedAt:  tx.CreatedAt,
		})
	}
	return out
}
