package ledger

import (
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// PSPEntry is one PSP's ledger line for a single business date.
type PSPEntry struct {
	PSP              string          `json:"psp"`
	DepositTotal     decimal.Decimal `json:"deposit_total"`
	WithdrawalTotal  decimal.Decimal `json:"withdrawal_total"`
	GrossTotal       decimal.Decimal `json:"gross_total"`
	CommissionTotal  decimal.Decimal `json:"commission_total"`
	NetTotal         decimal.Decimal `json:"net_total"`
	TransactionCount int             `json:"transaction_count"`
	Allocation       decimal.Decimal `json:"allocation"`
	Rollover         decimal.Decimal `json:"rollover"`
}

// DailyTotals aggregates every PSP for one business date.
type DailyTotals struct {
	Date            civil.Date      `json:"date"`
	DateLabel       string          `json:"date_str"`
	GrossTotal      decimal.Decimal `json:"gross_total"`
	CommissionTotal decimal.Decimal `json:"commission_total"`
	NetTotal        decimal.Decimal `json:"net_total"`
	CarryOverTotal  decimal.Decimal `json:"carry_over_total"`
	PSPCount        int             `json:"psp_count"`
	PSPs            []PSPEntry      `json:"psps"`
}

// DailyLedger is the result of BuildDailyLedger.
type DailyLedger struct {
	// Days are ordered by date, newest first.
	Days []DailyTotals `json:"ledger_data"`

	// ValidationErrors lists cross-total mismatches. They are informational.
	ValidationErrors []string `json:"validation_errors"`

	// Skipped counts transactions dropped because their amount was null.
	Skipped int `json:"skipped_transactions"`

	// FallbackClassified counts transactions classified by amount sign
	// because their category was neither DEP nor WD.
	FallbackClassified int `json:"fallback_classified"`
}

const dateLabelLayout = "Monday, January 02, 2006"

// BuildDailyLedger groups transactions by (date, psp), merges in allocations and
// derives the per-PSP rollover and per-date carry-over. The per-PSP entries are
// re-summed and checked against the per-date accumulators; mismatches are returned
// in ValidationErrors and never abort the aggregation.
//
// The function has no side effects and its output depends only on its inputs.
func BuildDailyLedger(txs []domain.Transaction, lookup AllocationLookup, opts ...Option) (*DailyLedger, error) {
	if lookup == nil {
		return nil, ErrNilLookup
	}
	o := newOptions(opts)

	type dayAcc struct {
		gross, commission, net decimal.Decimal
		psps                   map[string]*totals
	}

	result := &DailyLedger{
		Days:             []DailyTotals{},
		ValidationErrors: []string{},
	}
	days := make(map[civil.Date]*dayAcc)

	for _, tx := range txs {
		if !o.keep(tx) {
			continue
		}

		amounts, ok := ResolveAmounts(tx)
		if !ok {
			o.log.Warn().
				Str("transaction_id", tx.ID).
				Str("date", tx.Date.String()).
				Str("psp", tx.PSPName()).
				Msg("Skipping transaction without amount")
			result.Skipped++
			continue
		}

		day, exists := days[tx.Date]
		if !exists {
			day = &dayAcc{psps: make(map[string]*totals)}
			days[tx.Date] = day
		}

		psp := tx.PSPName()
		entry, exists := day.psps[psp]
		if !exists {
			entry = &totals{}
			day.psps[psp] = entry
		}

		if entry.add(tx.Category, amounts) {
			result.FallbackClassified++
		}

		day.gross = day.gross.Add(amounts.Amount)
		day.commission = day.commission.Add(amounts.Commission)
		day.net = day.net.Add(amounts.Net)
	}

	if result.FallbackClassified > 0 {
		o.log.Warn().
			Int("count", result.FallbackClassified).
			Msg("Transactions classified by amount sign; category is neither DEP nor WD")
	}

	dates := make([]civil.Date, 0, len(days))
	for d := range days {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[j].Before(dates[i]) })

	for _, date := range dates {
		day := days[date]

		names := make([]string, 0, len(day.psps))
		for name := range day.psps {
			names = append(names, name)
		}
		sort.Strings(names)

		totalsForDay := DailyTotals{
			Date:            date,
			DateLabel:       date.In(time.UTC).Format(dateLabelLayout),
			GrossTotal:      day.gross,
			CommissionTotal: day.commission,
			NetTotal:        day.net,
			PSPCount:        len(names),
			PSPs:            make([]PSPEntry, 0, len(names)),
		}

		for _, name := range names {
			t := day.psps[name]
			allocation := lookup(date, name)
			rollover := t.net.Sub(allocation)

			totalsForDay.PSPs = append(totalsForDay.PSPs, PSPEntry{
				PSP:              name,
				DepositTotal:     t.deposit,
				WithdrawalTotal:  t.withdrawal,
				GrossTotal:       t.gross,
				CommissionTotal:  t.commission,
				NetTotal:         t.net,
				TransactionCount: t.count,
				Allocation:       allocation,
				Rollover:         rollover,
			})
			totalsForDay.CarryOverTotal = totalsForDay.CarryOverTotal.Add(rollover)
		}

		result.Days = append(result.Days, totalsForDay)
		result.ValidationErrors = append(result.ValidationErrors, ReconcileDay(totalsForDay)...)
	}

	for _, msg := range result.ValidationErrors {
		o.log.Warn().Str("validation_error", msg).Msg("Ledger reconciliation mismatch")
	}

	return result, nil
}
