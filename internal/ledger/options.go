package ledger

import (
	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/rs/zerolog"
)

// Predicate selects the transactions an aggregation should consider.
type Predicate func(domain.Transaction) bool

// HasPSP keeps only transactions routed through a named PSP.
func HasPSP(tx domain.Transaction) bool {
	return tx.HasPSP()
}

// Option configures an aggregation.
type Option func(*options)

type options struct {
	log    zerolog.Logger
	filter Predicate
}

func newOptions(opts []Option) options {
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger used for data-quality warnings.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithFilter restricts the aggregation to transactions matching p.
func WithFilter(p Predicate) Option {
	return func(o *options) {
		o.filter = p
	}
}

func (o options) keep(tx domain.Transaction) bool {
	return o.filter == nil || o.filter(tx)
}
