// Package postgres stores allocations and PSP commission rates in PostgreSQL via gorm.
package postgres

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// AllocationRow is the psp_allocations table. (date, psp_name) is unique.
type AllocationRow struct {
	ID               uint            `gorm:"primaryKey"`
	Date             time.Time       `gorm:"type:date;not null;uniqueIndex:idx_psp_allocations_date_psp,priority:1"`
	PSPName          string          `gorm:"column:psp_name;size:255;not null;uniqueIndex:idx_psp_allocations_date_psp,priority:2"`
	AllocationAmount decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (AllocationRow) TableName() string { return "psp_allocations" }

func (r *AllocationRow) toDomain() domain.Allocation {
	return domain.Allocation{
		ID:        formatID(r.ID),
		Date:      civil.DateOf(r.Date),
		PSPName:   r.PSPName,
		Amount:    r.AllocationAmount,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// CommissionRateRow is the psp_commission_rates table.
type CommissionRateRow struct {
	ID        uint            `gorm:"primaryKey"`
	PSPName   string          `gorm:"column:psp_name;size:255;not null;uniqueIndex"`
	Rate      decimal.Decimal `gorm:"type:numeric(10,6);not null"`
	IsActive  bool            `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CommissionRateRow) TableName() string { return "psp_commission_rates" }

func (r *CommissionRateRow) toDomain() domain.CommissionRate {
	return domain.CommissionRate{
		PSPName:  r.PSPName,
		Rate:     r.Rate,
		IsActive: r.IsActive,
	}
}

// dateValue stores a civil date as midnight UTC, which the date column truncates to the day.
func dateValue(d civil.Date) time.Time {
	return d.In(time.UTC)
}
