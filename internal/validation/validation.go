// Package validation checks user-supplied transaction fields before they reach a
// repository. Every validator returns a Result instead of an error so that a whole
// record can be checked and all problems reported at once.
package validation

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// MaxNameLength bounds PSP and client names.
const MaxNameLength = 255

// Result is the outcome of validating one field. Value holds the normalised value
// when Valid is true.
type Result[T any] struct {
	Valid bool
	Value T
	Error string
}

func ok[T any](v T) Result[T] {
	return Result[T]{Valid: true, Value: v}
}

func fail[T any](format string, args ...any) Result[T] {
	return Result[T]{Error: fmt.Sprintf(format, args...)}
}

// DateLayouts are the accepted business date formats, tried in order.
var DateLayouts = []string{"2006-01-02", "02.01.2006", "02/01/2006"}

var (
	currencies     = map[string]bool{"TL": true, "USD": true, "EUR": true}
	categories     = map[string]bool{"DEP": true, "WD": true}
	paymentMethods = map[string]string{
		"credit card":   "Credit Card",
		"bank":          "Bank",
		"bank transfer": "Bank Transfer",
		"tether":        "Tether",
		"cash":          "Cash",
	}
)

// Amount parses a decimal amount. Negative and zero amounts are allowed.
func Amount(s string) Result[decimal.Decimal] {
	s = strings.TrimSpace(s)
	if s == "" {
		return fail[decimal.Decimal]("Amount is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fail[decimal.Decimal]("Invalid amount format: %q", s)
	}
	return ok(d)
}

// Date parses a business date in any of DateLayouts.
func Date(s string) Result[civil.Date] {
	s = strings.TrimSpace(s)
	if s == "" {
		return fail[civil.Date]("Date is required")
	}
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return ok(civil.DateOf(t))
		}
	}
	return fail[civil.Date]("Invalid date format: %q (expected YYYY-MM-DD, DD.MM.YYYY or DD/MM/YYYY)", s)
}

// Currency accepts TL, USD and EUR in any case and returns the upper-case code.
func Currency(s string) Result[string] {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return fail[string]("Currency is required")
	}
	if !currencies[s] {
		return fail[string]("Invalid currency: %s", s)
	}
	return ok(s)
}

// PSP accepts any name up to MaxNameLength characters. An empty PSP is valid.
func PSP(s string) Result[string] {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > MaxNameLength {
		return fail[string]("PSP name too long (max %d characters)", MaxNameLength)
	}
	return ok(s)
}

// Category accepts DEP and WD in any case and returns the upper-case value.
func Category(s string) Result[string] {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return fail[string]("Category is required")
	}
	if !categories[s] {
		return fail[string]("Invalid category: %s (expected DEP or WD)", s)
	}
	return ok(s)
}

// PaymentMethod accepts a known method in any case and returns its canonical
// spelling. An empty method is valid.
func PaymentMethod(s string) Result[string] {
	s = strings.TrimSpace(s)
	if s == "" {
		return ok("")
	}
	canonical, known := paymentMethods[strings.ToLower(s)]
	if !known {
		return fail[string]("Invalid payment method: %s", s)
	}
	return ok(canonical)
}

// ClientName requires a non-empty name up to MaxNameLength characters. The name is
// sanitised before the length check.
func ClientName(s string) Result[string] {
	s = Sanitize(s)
	if s == "" {
		return fail[string]("Client name is required")
	}
	if utf8.RuneCountInString(s) > MaxNameLength {
		return fail[string]("Client name too long (max %d characters)", MaxNameLength)
	}
	return ok(s)
}

var markup = strings.NewReplacer("<", "", ">", "", "&", "", `"`, "", "'", "")

// Sanitize trims whitespace and strips characters that are meaningful in HTML.
func Sanitize(s string) string {
	return strings.TrimSpace(markup.Replace(s))
}
