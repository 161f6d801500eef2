package ledger

import (
	"sort"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// PSPSummary holds a PSP's totals over the whole transaction history.
type PSPSummary struct {
	PSP              string          `json:"psp"`
	DepositTotal     decimal.Decimal `json:"deposit_total"`
	WithdrawalTotal  decimal.Decimal `json:"withdrawal_total"`
	GrossTotal       decimal.Decimal `json:"gross_total"`
	CommissionTotal  decimal.Decimal `json:"commission_total"`
	NetTotal         decimal.Decimal `json:"net_total"`
	TransactionCount int             `json:"transaction_count"`
	Allocation       decimal.Decimal `json:"allocation"`
	Rollover         decimal.Decimal `json:"rollover"`
	ActiveDays       int             `json:"active_days"`
}

// BuildRolloverSummary collapses the ledger over dates and returns one summary per PSP,
// ordered by rollover (largest first, ties broken by PSP name).
//
// Only transactions with a PSP are considered. A PSP's allocation is the sum of its
// allocation records on dates where it has at least one transaction; a PSP with no
// allocation records has a zero allocation and its rollover equals its net.
func BuildRolloverSummary(txs []domain.Transaction, allocations []domain.Allocation, opts ...Option) []PSPSummary {
	o := newOptions(opts)
	idx := NewAllocationIndex(allocations)

	type pspAcc struct {
		totals
		dates map[civil.Date]struct{}
	}
	psps := make(map[string]*pspAcc)

	for _, tx := range txs {
		if !tx.HasPSP() || !o.keep(tx) {
			continue
		}

		amounts, ok := ResolveAmounts(tx)
		if !ok {
			o.log.Warn().
				Str("transaction_id", tx.ID).
				Str("date", tx.Date.String()).
				Str("psp", tx.PSPName()).
				Msg("Skipping transaction without amount")
			continue
		}

		name := tx.PSPName()
		acc, exists := psps[name]
		if !exists {
			acc = &pspAcc{dates: make(map[civil.Date]struct{})}
			psps[name] = acc
		}
		acc.add(tx.Category, amounts)
		acc.dates[tx.Date] = struct{}{}
	}

	summaries := make([]PSPSummary, 0, len(psps))
	for name, acc := range psps {
		allocation := decimal.Zero
		for date := range acc.dates {
			allocation = allocation.Add(idx.Lookup(date, name))
		}

		summaries = append(summaries, PSPSummary{
			PSP:              name,
			DepositTotal:     acc.deposit,
			WithdrawalTotal:  acc.withdrawal,
			GrossTotal:       acc.gross,
			CommissionTotal:  acc.commission,
			NetTotal:         acc.net,
			TransactionCount: acc.count,
			Allocation:       allocation,
			Rollover:         acc.net.Sub(allocation),
			ActiveDays:       len(acc.dates),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if c := summaries[i].Rollover.Cmp(summaries[j].Rollover); c != 0 {
			return c > 0
		}
		return summaries[i].PSP < summaries[j].PSP
	})

	return summaries
}
