package ledger

import (
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
)

// ErrNilLookup is returned when BuildDailyLedger is called without an allocation lookup.
var ErrNilLookup = errors.New("ledger: allocation lookup is nil")

// ParseError reports an allocation key whose date could not be parsed.
type ParseError struct {
	Key   string // offending allocation key, e.g. "2025-13-01/Alpha"
	Value string // the raw date value
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ledger: invalid allocation date %q in key %q: %v", e.Value, e.Key, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseBusinessDate parses a YYYY-MM-DD business date belonging to the allocation
// key for psp. Failures are returned as *ParseError.
func ParseBusinessDate(value, psp string) (civil.Date, error) {
	d, err := civil.ParseDate(strings.TrimSpace(value))
	if err != nil {
		return civil.Date{}, &ParseError{Key: AllocationKey{Date: value, PSP: psp}.String(), Value: value, Err: err}
	}
	return d, nil
}

// AllocationKey is the printable form of an allocation's (date, psp) key.
type AllocationKey struct {
	Date string
	PSP  string
}

func (k AllocationKey) String() string {
	return k.Date + "/" + k.PSP
}
