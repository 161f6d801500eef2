package validation

import (
	"fmt"
	"strings"

	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// TransactionInput is a transaction as received from a form or an import file,
// before any parsing.
type TransactionInput struct {
	ID            string
	Date          string
	PSP           string
	Category      string
	ClientName    string
	Currency      string
	PaymentMethod string

	Amount     string
	Commission string
	NetAmount  string

	AmountTRY     string
	CommissionTRY string
	NetAmountTRY  string
}

// FieldError names the field that failed validation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Transaction validates in and converts it to a domain transaction. Client name,
// date, amount and currency are required. Category is optional but must be DEP or
// WD when present. A missing net amount is derived as amount minus commission at
// ingestion time; the ledger itself never recomputes it.
func Transaction(in TransactionInput) (domain.Transaction, []FieldError) {
	var (
		tx   domain.Transaction
		errs []FieldError
	)
	check := func(field string, valid bool, msg string) bool {
		if !valid {
			errs = append(errs, FieldError{Field: field, Message: msg})
		}
		return valid
	}

	tx.ID = strings.TrimSpace(in.ID)

	if r := ClientName(in.ClientName); check("client_name", r.Valid, r.Error) {
		tx.ClientName = r.Value
	}
	if r := Date(in.Date); check("date", r.Valid, r.Error) {
		tx.Date = r.Value
	}
	if r := Currency(in.Currency); check("currency", r.Valid, r.Error) {
		tx.Currency = r.Value
	}
	if r := PSP(in.PSP); check("psp", r.Valid, r.Error) {
		tx.PSP = r.Value
	}
	if strings.TrimSpace(in.Category) != "" {
		if r := Category(in.Category); check("category", r.Valid, r.Error) {
			tx.Category = domain.Category(r.Value)
		}
	}
	if r := PaymentMethod(in.PaymentMethod); check("payment_method", r.Valid, r.Error) {
		tx.PaymentMethod = r.Value
	}

	if r := Amount(in.Amount); check("amount", r.Valid, r.Error) {
		tx.Amount = domain.NewNullDecimal(r.Value)
	}

	optional := func(field, raw string, dst *decimal.NullDecimal) {
		if strings.TrimSpace(raw) == "" {
			return
		}
		if r := Amount(raw); check(field, r.Valid, r.Error) {
			*dst = domain.NewNullDecimal(r.Value)
		}
	}
	optional("commission", in.Commission, &tx.Commission)
	optional("net_amount", in.NetAmount, &tx.NetAmount)
	optional("amount_try", in.AmountTRY, &tx.AmountTRY)
	optional("commission_try", in.CommissionTRY, &tx.CommissionTRY)
	optional("net_amount_try", in.NetAmountTRY, &tx.NetAmountTRY)

	if len(errs) > 0 {
		return domain.Transaction{}, errs
	}

	if !tx.NetAmount.Valid {
		tx.NetAmount = domain.NewNullDecimal(tx.Amount.Decimal.Sub(tx.Commission.Decimal))
	}
	if !tx.NetAmountTRY.Valid && tx.AmountTRY.Valid {
		tx.NetAmountTRY = domain.NewNullDecimal(tx.AmountTRY.Decimal.Sub(tx.CommissionTRY.Decimal))
	}

	return tx, nil
}
