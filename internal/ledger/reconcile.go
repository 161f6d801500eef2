package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Tolerance is the absolute difference allowed between the per-date totals and the
// sum of that date's PSP entries.
var Tolerance = decimal.New(1, -2)

// ReconcileDay re-sums the PSP entries of day and compares gross, commission and net
// against the date-level totals. It returns one message per mismatching field.
func ReconcileDay(day DailyTotals) []string {
	var gross, commission, net decimal.Decimal
	for _, e := range day.PSPs {
		gross = gross.Add(e.GrossTotal)
		commission = commission.Add(e.CommissionTotal)
		net = net.Add(e.NetTotal)
	}

	date := day.Date.String()
	var errs []string
	if mismatch(gross, day.GrossTotal) {
		errs = append(errs, fmt.Sprintf("Total mismatch for %s: calculated=%s, stored=%s", date, gross, day.GrossTotal))
	}
	if mismatch(commission, day.CommissionTotal) {
		errs = append(errs, fmt.Sprintf("Commission mismatch for %s: calculated=%s, stored=%s", date, commission, day.CommissionTotal))
	}
	if mismatch(net, day.NetTotal) {
		errs = append(errs, fmt.Sprintf("Net mismatch for %s: calculated=%s, stored=%s", date, net, day.NetTotal))
	}
	return errs
}

func mismatch(calculated, stored decimal.Decimal) bool {
	return calculated.Sub(stored).Abs().GreaterThan(Tolerance)
}
