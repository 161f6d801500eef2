package domain

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// UnknownPSP is the PSP name used for transactions that carry no PSP.
const UnknownPSP = "Unknown"

// Category classifies a transaction as a deposit or a withdrawal.
type Category string

const (
	// CategoryDeposit marks money coming in through a PSP.
	CategoryDeposit Category = "DEP"
	// CategoryWithdrawal marks money paid out through a PSP.
	CategoryWithdrawal Category = "WD"
)

// Transaction represents one PSP transaction as stored by the transaction source.
// Monetary fields are nullable: the *TRY fields hold the value pre-converted to the
// reporting currency and, when present, take precedence over the original-currency fields.
type Transaction struct {
	ID   string     // unique transaction identifier
	Date civil.Date // business date (not the ingestion timestamp)
	PSP  string     // payment service provider, may be empty

	Category Category // DEP, WD or anything else (legacy data)

	Amount     decimal.NullDecimal // original currency
	Commission decimal.NullDecimal
	NetAmount  decimal.NullDecimal // amount minus commission, computed upstream

	AmountTRY     decimal.NullDecimal // reporting currency
	CommissionTRY decimal.NullDecimal
	NetAmountTRY  decimal.NullDecimal

	ClientName    string
	Currency      string
	PaymentMethod string

	CreatedAt time.Time // ingestion timestamp
}

// PSPName returns the PSP for grouping, mapping empty values to UnknownPSP.
func (t Transaction) PSPName() string {
	psp := strings.TrimSpace(t.PSP)
	if psp == "" {
		return UnknownPSP
	}
	return psp
}

// PSPKey is the form PSP names are compared in: trimmed and lower-cased.
func PSPKey(psp string) string {
	return strings.ToLower(strings.TrimSpace(psp))
}

// SamePSP reports whether a and b name the same PSP, ignoring case and
// surrounding whitespace.
func SamePSP(a, b string) bool {
	return PSPKey(a) == PSPKey(b)
}

// HasPSP reports whether the transaction was routed through a named PSP.
func (t Transaction) HasPSP() bool {
	return strings.TrimSpace(t.PSP) != ""
}

// NewNullDecimal wraps a decimal as a valid NullDecimal.
func NewNullDecimal(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
