package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/dvloznov/psp-ledger/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to PostgreSQL using dsn.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("postgres.Open: %w", err)
	}
	return db, nil
}

// Repository implements the allocation and commission rate repositories on gorm.
type Repository struct {
	db *gorm.DB
}

// NewRepository wraps an open gorm connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Close closes the underlying connection pool.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertAllocation writes amount for (date, psp) inside a transaction. The existing
// row, if any, is locked with SELECT ... FOR UPDATE; a concurrent first insert for
// the same key is resolved by ON CONFLICT so the last writer wins.
func (r *Repository) UpsertAllocation(ctx context.Context, date civil.Date, psp string, amount decimal.Decimal) (*domain.Allocation, error) {
	var row AllocationRow

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("date = ? AND psp_name = ?", dateValue(date), psp).
			Limit(1).
			Find(&row)
		if res.Error != nil {
			return fmt.Errorf("selecting allocation: %w", res.Error)
		}

		if res.RowsAffected > 0 {
			row.AllocationAmount = amount
			if err := tx.Save(&row).Error; err != nil {
				return fmt.Errorf("updating allocation: %w", err)
			}
			return nil
		}

		row = AllocationRow{Date: dateValue(date), PSPName: psp, AllocationAmount: amount}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}, {Name: "psp_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"allocation_amount", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("inserting allocation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("UpsertAllocation: %s/%s: %w", date, psp, err)
	}

	a := row.toDomain()
	return &a, nil
}

// ListAllocations returns allocations matching filter ordered by date then PSP.
func (r *Repository) ListAllocations(ctx context.Context, filter repository.AllocationFilter) ([]domain.Allocation, error) {
	q := r.db.WithContext(ctx).Model(&AllocationRow{})
	if repository.IsSet(filter.StartDate) {
		q = q.Where("date >= ?", dateValue(filter.StartDate))
	}
	if repository.IsSet(filter.EndDate) {
		q = q.Where("date <= ?", dateValue(filter.EndDate))
	}
	if filter.PSP != "" {
		q = q.Where("LOWER(TRIM(psp_name)) = ?", domain.PSPKey(filter.PSP))
	}

	var rows []AllocationRow
	if err := q.Order("date ASC, psp_name ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ListAllocations: %w", err)
	}

	result := make([]domain.Allocation, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].toDomain())
	}
	return result, nil
}

// GetCommissionRate returns the active rate for psp, matched case-insensitively, or
// repository.ErrNotFound.
func (r *Repository) GetCommissionRate(ctx context.Context, psp string) (*domain.CommissionRate, error) {
	var row CommissionRateRow
	err := r.db.WithContext(ctx).
		Where("LOWER(TRIM(psp_name)) = ? AND is_active = ?", domain.PSPKey(psp), true).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("GetCommissionRate: %s: %w", psp, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetCommissionRate: %s: %w", psp, err)
	}

	rate := row.toDomain()
	return &rate, nil
}

// SetCommissionRate creates or replaces the rate for rate.PSPName.
func (r *Repository) SetCommissionRate(ctx context.Context, rate domain.CommissionRate) error {
	if rate.PSPName == "" {
		return fmt.Errorf("SetCommissionRate: psp name is required")
	}
	if rate.Rate.IsNegative() {
		return fmt.Errorf("SetCommissionRate: negative rate %s for %s", rate.Rate, rate.PSPName)
	}

	row := CommissionRateRow{PSPName: rate.PSPName, Rate: rate.Rate, IsActive: rate.IsActive}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "psp_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"rate", "is_active", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("SetCommissionRate: %s: %w", rate.PSPName, err)
	}
	return nil
}

// ListCommissionRates returns every stored rate ordered by PSP name.
func (r *Repository) ListCommissionRates(ctx context.Context) ([]domain.CommissionRate, error) {
	var rows []CommissionRateRow
	if err := r.db.WithContext(ctx).Order("psp_name ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ListCommissionRates: %w", err)
	}

	result := make([]domain.CommissionRate, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].toDomain())
	}
	return result, nil
}

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

var (
	_ repository.AllocationRepository     = (*Repository)(nil)
	_ repository.CommissionRateRepository = (*Repository)(nil)
)
