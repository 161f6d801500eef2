// Package format renders amounts, dates and percentages for dashboard cards and
// spreadsheet exports. Turkish lira uses dot grouping and a decimal comma; dollar
// and euro amounts use the English convention with a leading symbol.
package format

import (
	"strings"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/civil"
	"github.com/leekchan/accounting"
	"github.com/shopspring/decimal"
)

// DateLayout is the display layout for business dates.
const DateLayout = "02.01.2006"

var hundred = decimal.NewFromInt(100)

const (
	turkishThousand = "."
	turkishDecimal  = ","
)

// money returns a two-decimal formatter. accounting.Accounting initialises itself on
// first use, so a fresh one is built per call. Currency writes the sign itself,
// giving every style a leading minus.
func money(symbol string, suffix bool) *accounting.Accounting {
	if suffix {
		return &accounting.Accounting{Symbol: symbol, Precision: 2, Thousand: turkishThousand, Decimal: turkishDecimal, Format: "%v %s"}
	}
	return &accounting.Accounting{Symbol: symbol, Precision: 2, Thousand: ",", Decimal: "."}
}

// Currency formats d rounded to two decimals:
//
//	Currency(1234.56, "TL")  == "1.234,56 TL"
//	Currency(1234.56, "USD") == "$1,234.56"
//	Currency(1234.56, "EUR") == "€1,234.56"
//	Currency(1234.56, "XYZ") == "1.234,56 XYZ"
func Currency(d decimal.Decimal, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	d = d.Round(2)
	switch currency {
	case "USD":
		return sign(d) + money("$", false).FormatMoneyDecimal(d.Abs())
	case "EUR":
		return sign(d) + money("€", false).FormatMoneyDecimal(d.Abs())
	case "":
		return sign(d) + accounting.FormatNumberDecimal(d.Abs(), 2, turkishThousand, turkishDecimal)
	default:
		return sign(d) + money(currency, true).FormatMoneyDecimal(d.Abs())
	}
}

// Number groups d with Turkish separators. Whole numbers have no decimals; other
// values are rounded to two.
func Number(d decimal.Decimal) string {
	places := int32(2)
	if d.Equal(d.Truncate(0)) {
		places = 0
	}
	d = d.Round(places)
	return sign(d) + accounting.FormatNumberDecimal(d.Abs(), int(places), turkishThousand, turkishDecimal)
}

// Date formats d as DD.MM.YYYY. The zero date renders as an empty string.
func Date(d civil.Date) string {
	if d == (civil.Date{}) {
		return ""
	}
	return d.In(time.UTC).Format(DateLayout)
}

// Percent renders a percentage with an explicit sign and one decimal, e.g. "+12.3%".
func Percent(p decimal.Decimal) string {
	s := p.Round(1).StringFixed(1)
	if p.Round(1).IsPositive() {
		s = "+" + s
	}
	return s + "%"
}

// PercentChange returns (current - previous) / previous * 100. A zero previous value
// yields 100 when current is positive and 0 otherwise.
func PercentChange(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		if current.IsPositive() {
			return hundred
		}
		return decimal.Zero
	}
	return current.Sub(previous).Div(previous.Abs()).Mul(hundred)
}

// SafeDivide returns a / b, or zero when b is zero.
func SafeDivide(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.Div(b)
}

// Truncate shortens s to at most n characters, ending with suffix when cut.
func Truncate(s string, n int, suffix string) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	keep := n - utf8.RuneCountInString(suffix)
	if keep < 0 {
		keep = 0
	}
	return string([]rune(s)[:keep]) + suffix
}

func sign(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-"
	}
	return ""
}
