package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "Tagihan PBB"

type column struct {
	Header string
	Value  func(Row) any
}

var columns = []column{
	{"Tahun", func(r Row) any { return r.Year }},
	{"Nama Wajib Pajak", func(r Row) any { return r.TaxpayerName }},
	{"Jatuh Tempo", func(r Row) any { return r.DueDate }},
	{"Luas Bumi", func(r Row) any { return r.LandArea }},
	{"Luas Bangunan", func(r Row) any { return r.BuildingArea }},
	{"NJOP Bumi", func(r Row) any { return r.LandNJOP }},
	{"NJOP Bangunan", func(r Row) any { return r.BuildingNJOP }},
	{"PBB Terhutang", func(r Row) any { return r.AmountDue }},
	{"Total Dibayar", func(r Row) any { return r.TotalPaid }},
	{"Tanggal Bayar", func(r Row) any { return strings.Join(r.PaymentDates, ", ") }},
	{"Denda", func(r Row) any { return r.Penalty }},
	{"Status", func(r Row) any { return string(r.Status) }},
}

type total struct {
	label string
	value int64
}

func totals(rep Report) []total {
	return []total{
		{"Total Dibayar", rep.Rollup.TotalPaid},
		{"Total Tunggakan", rep.Rollup.TotalOutstanding},
		{"Total Denda", rep.Rollup.TotalPenalty},
		{"Total Kewajiban", rep.Rollup.TotalOwed},
	}
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// WriteXLSX writes rep as a single-sheet workbook with a header row, one row
// per year and, after a blank row, the rollup totals.
func WriteXLSX(w io.Writer, rep Report) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	_ = f.SetDocProps(&excelize.DocProperties{
		Title:   "Tagihan PBB " + rep.Formatted,
		Subject: rep.NOP,
	})

	_ = f.SetCellValue(SheetName, cellName(1, 1), "NOP")
	_ = f.SetCellValue(SheetName, cellName(2, 1), rep.Formatted)

	const headerRow = 2
	for i, col := range columns {
		_ = f.SetCellValue(SheetName, cellName(i+1, headerRow), col.Header)
	}

	rowIdx := headerRow + 1
	for _, r := range rep.Rows {
		for i, col := range columns {
			if err := f.SetCellValue(SheetName, cellName(i+1, rowIdx), col.Value(r)); err != nil {
				return fmt.Errorf("failed to write year %s: %w", r.Year, err)
			}
		}
		rowIdx++
	}

	rowIdx++
	for _, t := range totals(rep) {
		_ = f.SetCellValue(SheetName, cellName(1, rowIdx), t.label)
		_ = f.SetCellValue(SheetName, cellName(2, rowIdx), t.value)
		rowIdx++
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
