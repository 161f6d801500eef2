// Package export renders the daily ledger and the rollover summary as an XLSX workbook.
package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dvloznov/psp-ledger/internal/ledger"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Sheet names.
const (
	LedgerSheet   = "Ledger"
	RolloverSheet = "Rollover"
)

// TotalLabel marks the per-date total row on the ledger sheet.
const TotalLabel = "TOTAL"

var (
	ledgerHeader = []interface{}{
		"Date", "PSP", "Deposits", "Withdrawals", "Gross", "Commission", "Net", "Transactions", "Allocation", "Rollover",
	}
	rolloverHeader = []interface{}{
		"PSP", "Deposits", "Withdrawals", "Gross", "Commission", "Net", "Allocation", "Rollover", "Transactions", "Active Days",
	}
)

// builtinAccounting is the excelize built-in "#,##0.00" number format.
const builtinAccounting = 4

// WriteWorkbook writes a two-sheet workbook to w: one ledger row per date and PSP
// followed by a TOTAL row per date, then one rollover row per PSP.
func WriteWorkbook(w io.Writer, daily *ledger.DailyLedger, summary []ledger.PSPSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", LedgerSheet); err != nil {
		return fmt.Errorf("WriteWorkbook: rename sheet: %w", err)
	}
	if _, err := f.NewSheet(RolloverSheet); err != nil {
		return fmt.Errorf("WriteWorkbook: add sheet: %w", err)
	}

	styles, err := newStyles(f)
	if err != nil {
		return fmt.Errorf("WriteWorkbook: %w", err)
	}

	if err := writeLedgerSheet(f, styles, daily); err != nil {
		return fmt.Errorf("WriteWorkbook: %w", err)
	}
	if err := writeRolloverSheet(f, styles, summary); err != nil {
		return fmt.Errorf("WriteWorkbook: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("WriteWorkbook: write: %w", err)
	}
	return nil
}

// Workbook renders the workbook into memory.
func Workbook(daily *ledger.DailyLedger, summary []ledger.PSPSummary) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, daily, summary); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type styles struct {
	header int
	money  int
	total  int
}

func newStyles(f *excelize.File) (styles, error) {
	var s styles
	var err error

	s.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9E1F2"}},
	})
	if err != nil {
		return s, fmt.Errorf("header style: %w", err)
	}
	s.money, err = f.NewStyle(&excelize.Style{NumFmt: builtinAccounting})
	if err != nil {
		return s, fmt.Errorf("money style: %w", err)
	}
	s.total, err = f.NewStyle(&excelize.Style{NumFmt: builtinAccounting, Font: &excelize.Font{Bold: true}})
	if err != nil {
		return s, fmt.Errorf("total style: %w", err)
	}
	return s, nil
}

func writeLedgerSheet(f *excelize.File, st styles, daily *ledger.DailyLedger) error {
	if err := writeHeader(f, st, LedgerSheet, ledgerHeader); err != nil {
		return err
	}

	row := 2
	if daily == nil {
		return nil
	}
	for _, day := range daily.Days {
		date := day.Date.String()
		for _, p := range day.PSPs {
			values := []interface{}{
				date, p.PSP,
				money(p.DepositTotal), money(p.WithdrawalTotal), money(p.GrossTotal),
				money(p.CommissionTotal), money(p.NetTotal), p.TransactionCount,
				money(p.Allocation), money(p.Rollover),
			}
			if err := setRow(f, LedgerSheet, row, values, 3, st.money); err != nil {
				return err
			}
			row++
		}

		values := []interface{}{
			date, TotalLabel, nil, nil,
			money(day.GrossTotal), money(day.CommissionTotal), money(day.NetTotal), nil,
			nil, money(day.CarryOverTotal),
		}
		if err := setRow(f, LedgerSheet, row, values, 3, st.total); err != nil {
			return err
		}
		row++
	}

	return f.SetColWidth(LedgerSheet, "A", "J", 16)
}

func writeRolloverSheet(f *excelize.File, st styles, summary []ledger.PSPSummary) error {
	if err := writeHeader(f, st, RolloverSheet, rolloverHeader); err != nil {
		return err
	}

	for i, s := range summary {
		values := []interface{}{
			s.PSP,
			money(s.DepositTotal), money(s.WithdrawalTotal), money(s.GrossTotal),
			money(s.CommissionTotal), money(s.NetTotal), money(s.Allocation), money(s.Rollover),
			s.TransactionCount, s.ActiveDays,
		}
		if err := setRow(f, RolloverSheet, i+2, values, 2, st.money); err != nil {
			return err
		}
	}

	return f.SetColWidth(RolloverSheet, "A", "J", 16)
}

func writeHeader(f *excelize.File, st styles, sheet string, header []interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("%s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return fmt.Errorf("%s header: %w", sheet, err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, st.header); err != nil {
		return fmt.Errorf("%s header style: %w", sheet, err)
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

// setRow writes values starting at column A and styles them from column styleFrom on.
func setRow(f *excelize.File, sheet string, row int, values []interface{}, styleFrom, style int) error {
	first, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("%s row %d: %w", sheet, row, err)
	}
	if err := f.SetSheetRow(sheet, first, &values); err != nil {
		return fmt.Errorf("%s row %d: %w", sheet, row, err)
	}
	from, _ := excelize.CoordinatesToCellName(styleFrom, row)
	to, _ := excelize.CoordinatesToCellName(len(values), row)
	if err := f.SetCellStyle(sheet, from, to, style); err != nil {
		return fmt.Errorf("%s row %d style: %w", sheet, row, err)
	}
	return nil
}

// money converts d for a spreadsheet cell, which holds an IEEE double.
func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
