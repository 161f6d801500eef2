package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Allocation is a manually entered amount already disbursed against a PSP's
// net funds for a single business date. There is at most one allocation per
// (Date, PSPName); writes replace the previous amount.
type Allocation struct {
	ID      string     `json:"id"`
	Date    civil.Date `json:"date"`
	PSPName string     `json:"psp_name"`

	// Amount is expressed in the reporting currency.
	Amount decimal.Decimal `json:"allocation_amount"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CommissionRate is the configured commission rate for a PSP, as a fraction
// (0.075 means 7.5%).
type CommissionRate struct {
	PSPName  string          `json:"psp_name"`
	Rate     decimal.Decimal `json:"commission_rate"`
	IsActive bool            `json:"is_active"`
}
