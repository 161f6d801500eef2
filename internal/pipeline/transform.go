package pipeline

import (
	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/dvloznov/psp-ledger/internal/ledger"
	"github.com/dvloznov/psp-ledger/internal/validation"
	"github.com/shopspring/decimal"
)

func toInput(r Row) validation.TransactionInput {
	return validation.TransactionInput{
		ID:            r.get("id"),
		Date:          r.get("date"),
		PSP:           r.get("psp"),
		Category:      r.get("category"),
		ClientName:    r.get("client_name"),
		Currency:      r.get("currency"),
		PaymentMethod: r.get("payment_method"),
		Amount:        r.get("amount"),
		Commission:    r.get("commission"),
		NetAmount:     r.get("net_amount"),
		AmountTRY:     r.get("amount_try"),
		CommissionTRY: r.get("commission_try"),
		NetAmountTRY:  r.get("net_amount_try"),
	}
}

func missingOf(in validation.TransactionInput) missingFields {
	return missingFields{
		commission:    in.Commission == "",
		net:           in.NetAmount == "",
		commissionTRY: in.CommissionTRY == "",
		netTRY:        in.NetAmountTRY == "",
	}
}

// standardCommission is the commission charged on amount: the PSP rate for
// deposits and nothing for withdrawals or unclassified rows.
func standardCommission(category domain.Category, amount, rate decimal.Decimal) decimal.Decimal {
	if category != domain.CategoryDeposit {
		return decimal.Zero
	}
	return ledger.CalculateCommission(amount, rate)
}

// fillCommission sets the commission columns a row left empty and re-derives the
// net amounts that depended on them. It reports whether anything changed.
func fillCommission(tx *domain.Transaction, m missingFields, rate decimal.Decimal) bool {
	changed := false

	if m.commission && tx.Amount.Valid {
		tx.Commission = domain.NewNullDecimal(standardCommission(tx.Category, tx.Amount.Decimal, rate))
		if m.net {
			tx.NetAmount = domain.NewNullDecimal(tx.Amount.Decimal.Sub(tx.Commission.Decimal))
		}
		changed = true
	}

	if m.commissionTRY && tx.AmountTRY.Valid {
		tx.CommissionTRY = domain.NewNullDecimal(standardCommission(tx.Category, tx.AmountTRY.Decimal, rate))
		if m.netTRY {
			tx.NetAmountTRY = domain.NewNullDecimal(tx.AmountTRY.Decimal.Sub(tx.CommissionTRY.Decimal))
		}
		changed = true
	}

	return changed
}
