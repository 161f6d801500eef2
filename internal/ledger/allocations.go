package ledger

import (
	"cloud.google.com/go/civil"
	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// AllocationLookup returns the allocation recorded for psp on date, or zero.
type AllocationLookup func(date civil.Date, psp string) decimal.Decimal

type allocationKey struct {
	date civil.Date
	psp  string
}

// AllocationIndex maps (date, psp) to an allocation amount.
type AllocationIndex map[allocationKey]decimal.Decimal

// NewAllocationIndex indexes allocations by (date, psp), comparing PSP names as
// domain.SamePSP does. Should the slice contain more
// than one record for a key, the last one wins.
func NewAllocationIndex(allocations []domain.Allocation) AllocationIndex {
	idx := make(AllocationIndex, len(allocations))
	for _, a := range allocations {
		idx[allocationKey{date: a.Date, psp: domain.PSPKey(a.PSPName)}] = a.Amount
	}
	return idx
}

// Lookup implements AllocationLookup. Missing keys resolve to zero.
func (idx AllocationIndex) Lookup(date civil.Date, psp string) decimal.Decimal {
	if amount, ok := idx[allocationKey{date: date, psp: domain.PSPKey(psp)}]; ok {
		return amount
	}
	return decimal.Zero
}
