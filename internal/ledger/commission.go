package ledger

import (
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// CalculateCommission applies rate to amount and rounds to two decimal places,
// halves rounded away from zero.
//
//	CalculateCommission(1000, 0.075)    == 75
//	CalculateCommission(3024659, 0.075) == 226849.43
func CalculateCommission(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Round(2)
}

var (
	depositCategories    = map[string]bool{"DEP": true, "DEPOSIT": true, "INVESTMENT": true}
	withdrawalCategories = map[string]bool{"WD": true, "WITHDRAW": true, "WITHDRAWAL": true}
)

// PeriodSummary is the standardized commission and rollover calculation for one PSP
// over an inclusive date range.
type PeriodSummary struct {
	PSP            string          `json:"psp"`
	StartDate      civil.Date      `json:"start_date"`
	EndDate        civil.Date      `json:"end_date"`
	Deposits       decimal.Decimal `json:"deposits"`
	Withdrawals    decimal.Decimal `json:"withdrawals"`
	Total          decimal.Decimal `json:"total"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	Commission     decimal.Decimal `json:"commission"`
	Net            decimal.Decimal `json:"net"`
	Allocations    decimal.Decimal `json:"allocations"`
	Rollover       decimal.Decimal `json:"rollover"`
}

// BuildPSPPeriodSummary computes deposits, withdrawals, commission at rate and the
// rollover after allocations for psp between start and end (both inclusive).
// Unlike the daily ledger, commission here is derived from the net flow rather than
// summed from the transactions.
func BuildPSPPeriodSummary(psp string, start, end civil.Date, txs []domain.Transaction, rate decimal.Decimal, allocations []domain.Allocation) PeriodSummary {
	s := PeriodSummary{
		PSP:            psp,
		StartDate:      start,
		EndDate:        end,
		CommissionRate: rate,
	}

	inRange := func(d civil.Date) bool {
		return !d.Before(start) && !d.After(end)
	}

	for _, tx := range txs {
		if !domain.SamePSP(tx.PSPName(), psp) || !inRange(tx.Date) {
			continue
		}
		amounts, ok := ResolveAmounts(tx)
		if !ok {
			continue
		}
		category := strings.ToUpper(strings.TrimSpace(string(tx.Category)))
		switch {
		case depositCategories[category]:
			s.Deposits = s.Deposits.Add(amounts.Amount.Abs())
		case withdrawalCategories[category]:
			s.Withdrawals = s.Withdrawals.Add(amounts.Amount.Abs())
		}
	}

	for _, a := range allocations {
		if domain.SamePSP(a.PSPName, psp) && inRange(a.Date) {
			s.Allocations = s.Allocations.Add(a.Amount)
		}
	}

	s.Total = s.Deposits.Sub(s.Withdrawals)
	s.Commission = CalculateCommission(s.Total, rate)
	s.Net = s.Total.Sub(s.Commission)
	s.Rollover = s.Net.Sub(s.Allocations)

	return s
}
