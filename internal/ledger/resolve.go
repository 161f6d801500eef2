package ledger

import (
	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Amounts are a transaction's monetary values in the reporting currency.
type Amounts struct {
	Amount     decimal.Decimal
	Commission decimal.Decimal
	Net        decimal.Decimal
}

// ResolveAmounts picks the reporting-currency value for amount, commission and net.
// A converted value wins whenever it is non-null; otherwise the original-currency
// value is used. A null commission or net resolves to an explicit zero. The boolean
// result is false when the amount is null in both forms: such a transaction must not
// contribute to any total.
func ResolveAmounts(tx domain.Transaction) (Amounts, bool) {
	amount, ok := pick(tx.AmountTRY, tx.Amount)
	if !ok {
		return Amounts{}, false
	}
	commission, _ := pick(tx.CommissionTRY, tx.Commission)
	net, _ := pick(tx.NetAmountTRY, tx.NetAmount)

	return Amounts{Amount: amount, Commission: commission, Net: net}, true
}

func pick(converted, original decimal.NullDecimal) (decimal.Decimal, bool) {
	if converted.Valid {
		return converted.Decimal, true
	}
	if original.Valid {
		return original.Decimal, true
	}
	return decimal.Zero, false
}

// bucket identifies which side of the ledger a transaction lands on.
type bucket int

const (
	bucketDeposit bucket = iota
	bucketWithdrawal
)

// classify assigns a transaction to the deposit or withdrawal bucket. DEP and WD are
// authoritative; any other category falls back to the sign of the amount. The second
// result reports that the fallback was used, which indicates unclassified legacy data.
func classify(category domain.Category, amount decimal.Decimal) (bucket, bool) {
	switch category {
	case domain.CategoryDeposit:
		return bucketDeposit, false
	case domain.CategoryWithdrawal:
		return bucketWithdrawal, false
	}
	if amount.IsPositive() {
		return bucketDeposit, true
	}
	return bucketWithdrawal, true
}

// totals accumulates the per-group sums shared by the daily ledger and the rollover summary.
type totals struct {
	deposit    decimal.Decimal
	withdrawal decimal.Decimal
	gross      decimal.Decimal
	commission decimal.Decimal
	net        decimal.Decimal
	count      int
}

// add records one resolved transaction. It returns true when the category fallback was used.
func (t *totals) add(category domain.Category, a Amounts) bool {
	b, fallback := classify(category, a.Amount)
	switch b {
	case bucketDeposit:
		t.deposit = t.deposit.Add(a.Amount.Abs())
	case bucketWithdrawal:
		t.withdrawal = t.withdrawal.Add(a.Amount.Abs())
	}

	t.gross = t.gross.Add(a.Amount)
	t.commission = t.commission.Add(a.Commission)
	t.net = t.net.Add(a.Net)
	t.count++

	return fallback
}
