package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Migrate creates or updates the allocation and commission rate tables.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&AllocationRow{}, &CommissionRateRow{}); err != nil {
		return fmt.Errorf("Migrate: %w", err)
	}
	return nil
}

// Index is a secondary index maintained outside of AutoMigrate.
type Index struct {
	Name  string
	Table string
	SQL   string
}

// Indexes are the read-path indexes for the ledger queries: allocation lookups by PSP
// over a date range and the active-rate lookup.
var Indexes = []Index{
	{
		Name:  "idx_psp_allocations_psp_date",
		Table: "psp_allocations",
		SQL:   "CREATE INDEX IF NOT EXISTS idx_psp_allocations_psp_date ON psp_allocations (psp_name, date)",
	},
	{
		Name:  "idx_psp_allocations_date",
		Table: "psp_allocations",
		SQL:   "CREATE INDEX IF NOT EXISTS idx_psp_allocations_date ON psp_allocations (date DESC)",
	},
	{
		Name:  "idx_psp_commission_rates_active",
		Table: "psp_commission_rates",
		SQL:   "CREATE INDEX IF NOT EXISTS idx_psp_commission_rates_active ON psp_commission_rates (psp_name) WHERE is_active",
	},
}

// EnsureIndexes creates any missing index from Indexes and returns the names of the
// ones it created, then refreshes planner statistics on the touched tables.
func EnsureIndexes(ctx context.Context, db *gorm.DB) ([]string, error) {
	db = db.WithContext(ctx)
	migrator := db.Migrator()

	var created []string
	analyze := make(map[string]bool)
	for _, idx := range Indexes {
		if migrator.HasIndex(idx.Table, idx.Name) {
			continue
		}
		if err := db.Exec(idx.SQL).Error; err != nil {
			return created, fmt.Errorf("EnsureIndexes: %s: %w", idx.Name, err)
		}
		created = append(created, idx.Name)
		analyze[idx.Table] = true
	}

	for _, idx := range Indexes {
		if !analyze[idx.Table] {
			continue
		}
		if err := db.Exec("ANALYZE " + idx.Table).Error; err != nil {
			return created, fmt.Errorf("EnsureIndexes: analyze %s: %w", idx.Table, err)
		}
		analyze[idx.Table] = false
	}

	return created, nil
}
