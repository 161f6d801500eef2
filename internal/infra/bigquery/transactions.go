package bigquery

import (
	"math/big"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// numericScale is the number of fractional digits kept by BigQuery NUMERIC.
const numericScale = 9

type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED, business date

	PSP      bigquery.NullString `bigquery:"psp"`      // NULLABLE
	Category bigquery.NullString `bigquery:"category"` // NULLABLE, DEP / WD / legacy values

	Amount     *big.Rat `bigquery:"amount"`     // NULLABLE NUMERIC
	Commission *big.Rat `bigquery:"commission"` // NULLABLE NUMERIC
	NetAmount  *big.Rat `bigquery:"net_amount"` // NULLABLE NUMERIC

	AmountTRY     *big.Rat `bigquery:"amount_try"`     // NULLABLE NUMERIC
	CommissionTRY *big.Rat `bigquery:"commission_try"` // NULLABLE NUMERIC
	NetAmountTRY  *big.Rat `bigquery:"net_amount_try"` // NULLABLE NUMERIC

	ClientName    bigquery.NullString `bigquery:"client_name"`    // NULLABLE
	Currency      bigquery.NullString `bigquery:"currency"`       // NULLABLE
	PaymentMethod bigquery.NullString `bigquery:"payment_method"` // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED (default CURRENT_TIMESTAMP)
}

// ToDomain converts a row read from BigQuery into a domain transaction.
func (r *TransactionRow) ToDomain() domain.Transaction {
	return domain.Transaction{
		ID:            r.TransactionID,
		Date:          r.TransactionDate,
		PSP:           r.PSP.StringVal,
		Category:      domain.Category(r.Category.StringVal),
		Amount:        ratToNullDecimal(r.Amount),
		Commission:    ratToNullDecimal(r.Commission),
		NetAmount:     ratToNullDecimal(r.NetAmount),
		AmountTRY:     ratToNullDecimal(r.AmountTRY),
		CommissionTRY: ratToNullDecimal(r.CommissionTRY),
		NetAmountTRY:  ratToNullDecimal(r.NetAmountTRY),
		ClientName:    r.ClientName.StringVal,
		Currency:      r.Currency.StringVal,
		PaymentMethod: r.PaymentMethod.StringVal,
		CreatedAt:     r.CreatedTS,
	}
}

// TransactionRowFromDomain converts a domain transaction into a row for insertion.
func TransactionRowFromDomain(tx domain.Transaction) *TransactionRow {
	return &TransactionRow{
		TransactionID:   tx.ID,
		TransactionDate: tx.Date,
		PSP:             nullString(tx.PSP),
		Category:        nullString(string(tx.Category)),
		Amount:          nullDecimalToRat(tx.Amount),
		Commission:      nullDecimalToRat(tx.Commission),
		NetAmount:       nullDecimalToRat(tx.NetAmount),
		AmountTRY:       nullDecimalToRat(tx.AmountTRY),
		CommissionTRY:   nullDecimalToRat(tx.CommissionTRY),
		NetAmountTRY:    nullDecimalToRat(tx.NetAmountTRY),
		ClientName:      nullString(tx.ClientName),
		Currency:        nullString(tx.Currency),
		PaymentMethod:   nullString(tx.PaymentMethod),
		CreatedTS:       tx.CreatedAt,
	}
}

func ratToNullDecimal(r *big.Rat) decimal.NullDecimal {
	if r == nil {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(r.FloatString(numericScale))
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func nullDecimalToRat(d decimal.NullDecimal) *big.Rat {
	if !d.Valid {
		return nil
	}
	return d.Decimal.Rat()
}

func nullString(s string) bigquery.NullString {
	s = strings.TrimSpace(s)
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
