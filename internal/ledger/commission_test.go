package ledger

import (
	"testing"

	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestCalculateCommission(t *testing.T) {
	tests := []struct {
		amount string
		rate   string
		want   string
	}{
		{"1000", "0.075", "75"},
		{"3024659", "0.075", "226849.43"},
		{"0.10", "0.05", "0.01"},
		{"-0.10", "0.05", "-0.01"},
		{"0", "0.2", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.amount+"x"+tt.rate, func(t *testing.T) {
			assertDecimal(t, tt.want, CalculateCommission(dec(tt.amount), dec(tt.rate)))
		})
	}
}

func TestBuildPSPPeriodSummary(t *testing.T) {
	txs := []domain.Transaction{
		{Date: day("2025-01-01"), PSP: "Alpha", Category: "DEP", Amount: nd("1000")},
		{Date: day("2025-01-02"), PSP: "Alpha", Category: "investment", Amount: nd("500")},
		{Date: day("2025-01-03"), PSP: "Alpha", Category: "WD", Amount: nd("-300")},
		{Date: day("2025-01-04"), PSP: "Alpha", Category: "withdrawal", Amount: nd("100")},
		// outside the range
		{Date: day("2025-01-05"), PSP: "Alpha", Category: "DEP", Amount: nd("7777")},
		// other PSP
		{Date: day("2025-01-02"), PSP: "Beta", Category: "DEP", Amount: nd("9999")},
		// unrecognised category is ignored
		{Date: day("2025-01-02"), PSP: "Alpha", Category: "FEE", Amount: nd("42")},
	}
	allocations := []domain.Allocation{
		{Date: day("2025-01-02"), PSPName: "Alpha", Amount: dec("600")},
		{Date: day("2025-01-10"), PSPName: "Alpha", Amount: dec("1")},
		{Date: day("2025-01-02"), PSPName: "Beta", Amount: dec("1")},
	}

	got := BuildPSPPeriodSummary("Alpha", day("2025-01-01"), day("2025-01-04"), txs, dec("0.075"), allocations)

	assertDecimal(t, "1500", got.Deposits)
	assertDecimal(t, "400", got.Withdrawals)
	assertDecimal(t, "1100", got.Total)
	assertDecimal(t, "82.5", got.Commission)
	assertDecimal(t, "1017.5", got.Net)
	assertDecimal(t, "600", got.Allocations)
	assertDecimal(t, "417.5", got.Rollover)
}

func TestBuildPSPPeriodSummary_NoActivity(t *testing.T) {
	got := BuildPSPPeriodSummary("Ghost", day("2025-01-01"), day("2025-01-31"), nil, dec("0.1"), nil)

	assert.Equal(t, "Ghost", got.PSP)
	assertDecimal(t, "0", got.Total)
	assertDecimal(t, "0", got.Commission)
	assertDecimal(t, "0", got.Rollover)
}

func TestBuildPSPPeriodSummary_IgnoresPSPCase(t *testing.T) {
	txs := []domain.Transaction{
		{Date: day("2025-01-15"), PSP: "Alpha", Category: domain.CategoryDeposit, Amount: nd("1000")},
	}
	allocs := []domain.Allocation{{Date: day("2025-01-15"), PSPName: "Alpha", Amount: dec("100")}}

	s := BuildPSPPeriodSummary("alpha", day("2025-01-01"), day("2025-01-31"), txs, dec("0"), allocs)
	assertDecimal(t, "1000", s.Deposits)
	assertDecimal(t, "100", s.Allocations)
	assertDecimal(t, "900", s.Rollover)
}
