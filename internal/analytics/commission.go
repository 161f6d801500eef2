package analytics

import (
	"sort"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// PSPCommission is one PSP's commission over the window.
type PSPCommission struct {
	PSP          string          `json:"psp"`
	Volume       decimal.Decimal `json:"total_volume"`
	Commission   decimal.Decimal `json:"total_commission"`
	Rate         decimal.Decimal `json:"commission_rate"`
	Transactions int             `json:"transaction_count"`
}

// DailyCommission is the commission earned on one business date.
type DailyCommission struct {
	Date       civil.Date      `json:"date"`
	Commission decimal.Decimal `json:"commission"`
	Volume     decimal.Decimal `json:"volume"`
}

// CommissionMetrics summarise the commission view.
type CommissionMetrics struct {
	TotalCommission decimal.Decimal `json:"total_commission"`
	TotalVolume     decimal.Decimal `json:"total_volume"`
	OverallRate     decimal.Decimal `json:"overall_rate"`
	AvgDaily        decimal.Decimal `json:"avg_daily_commission"`
	TopPSP          string          `json:"top_psp,omitempty"`
}

// CommissionAnalytics is the commission view.
type CommissionAnalytics struct {
	PSP     []PSPCommission   `json:"psp_commission"`
	Daily   []DailyCommission `json:"daily_commission"`
	Metrics CommissionMetrics `json:"metrics"`
}

// ComputeCommissionAnalytics totals commission per PSP, ordered by commission
// descending, and per business date, oldest first. Rates are percentages of volume.
func ComputeCommissionAnalytics(txs []domain.Transaction) CommissionAnalytics {
	byPSP := make(map[string]*PSPCommission)
	byDay := make(map[civil.Date]*DailyCommission)
	var m CommissionMetrics

	for _, tx := range txs {
		a, ok := resolve(tx)
		if !ok {
			continue
		}
		p, ok := byPSP[tx.PSPName()]
		if !ok {
			p = &PSPCommission{PSP: tx.PSPName()}
			byPSP[tx.PSPName()] = p
		}
		p.Volume = p.Volume.Add(a.Amount)
		p.Commission = p.Commission.Add(a.Commission)
		p.Transactions++

		d, ok := byDay[tx.Date]
		if !ok {
			d = &DailyCommission{Date: tx.Date}
			byDay[tx.Date] = d
		}
		d.Commission = d.Commission.Add(a.Commission)
		d.Volume = d.Volume.Add(a.Amount)

		m.TotalCommission = m.TotalCommission.Add(a.Commission)
		m.TotalVolume = m.TotalVolume.Add(a.Amount)
	}

	out := CommissionAnalytics{
		PSP:   make([]PSPCommission, 0, len(byPSP)),
		Daily: make([]DailyCommission, 0, len(byDay)),
	}
	for _, p := range byPSP {
		p.Rate = share(p.Commission, p.Volume)
		out.PSP = append(out.PSP, *p)
	}
	sort.Slice(out.PSP, func(i, j int) bool {
		if c := out.PSP[i].Commission.Cmp(out.PSP[j].Commission); c != 0 {
			return c > 0
		}
		return out.PSP[i].PSP < out.PSP[j].PSP
	})
	for _, d := range byDay {
		out.Daily = append(out.Daily, *d)
	}
	sort.Slice(out.Daily, func(i, j int) bool { return out.Daily[i].Date.Before(out.Daily[j].Date) })

	m.OverallRate = share(m.TotalCommission, m.TotalVolume)
	m.AvgDaily = average(m.TotalCommission, len(out.Daily))
	if len(out.PSP) > 0 {
		m.TopPSP = out.PSP[0].PSP
	}
	out.Metrics = m
	return out
}
