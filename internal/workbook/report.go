// SPDX-License-Identifier: Apache-2.0

package workbook

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Report layout.
const (
	SheetName          = "TOE Results"
	ColumnSummary      = "Evidence Summary"
	ColumnSufficiency  = "Evidence Sufficiency Assessment"
	BandInput          = "INPUT COLUMNS"
	BandOutput         = "OUTPUT COLUMNS"
	maxColumnWidth     = 50
	headerRow          = 2
	firstDataRow       = 3
	columnWidthPadding = 2
)

// Outcome is the generated output for one record.
type Outcome struct {
	Summary     string
	Sufficiency string
}

// WriteReport writes every input row with its outcome. Row 1 carries the
// INPUT/OUTPUT bands, row 2 the headers and data starts at row 3.
func WriteReport(path string, ds *Dataset, outcomes []Outcome) error {
	if len(outcomes) != len(ds.Records) {
		return fmt.Errorf("have %d outcomes for %d records", len(outcomes), len(ds.Records))
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headers := append(append([]string{}, ds.Headers...), ColumnSummary, ColumnSufficiency)
	widths := make([]int, len(headers))
	track := func(col int, v string) {
		if n := utf8.RuneCountInString(v); n > widths[col] {
			widths[col] = n
		}
	}

	if err := writeBands(f, len(ds.Headers), len(headers)); err != nil {
		return err
	}
	track(0, BandInput)
	track(len(ds.Headers), BandOutput)

	if err := setRow(f, headerRow, headers); err != nil {
		return err
	}
	for i, h := range headers {
		track(i, h)
	}

	for i, rec := range ds.Records {
		values := append(append([]string{}, rec.Cells...), outcomes[i].Summary, outcomes[i].Sufficiency)
		if err := setRow(f, firstDataRow+i, values); err != nil {
			return err
		}
		for c, v := range values {
			track(c, v)
		}
	}

	if err := format(f, len(headers), firstDataRow+len(ds.Records)-1, widths); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

func writeBands(f *excelize.File, inputCols, totalCols int) error {
	bands := []struct {
		label      string
		start, end int
	}{
		{BandInput, 1, inputCols},
		{BandOutput, inputCols + 1, totalCols},
	}
	for _, b := range bands {
		if b.end < b.start {
			continue
		}
		start, err := excelize.CoordinatesToCellName(b.start, 1)
		if err != nil {
			return err
		}
		end, err := excelize.CoordinatesToCellName(b.end, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, start, b.label); err != nil {
			return err
		}
		if b.end > b.start {
			if err := f.MergeCell(SheetName, start, end); err != nil {
				return fmt.Errorf("failed to merge %s band: %w", b.label, err)
			}
		}
	}
	return nil
}

func setRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	if err := f.SetSheetRow(SheetName, cell, &vals); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

func format(f *excelize.File, cols, lastRow int, widths []int) error {
	bandStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	cellStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
	})
	if err != nil {
		return err
	}

	lastCol, err := excelize.ColumnNumberToName(cols)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", bandStyle); err != nil {
		return err
	}
	if lastRow < headerRow {
		lastRow = headerRow
	}
	if err := f.SetCellStyle(SheetName, fmt.Sprintf("A%d", headerRow), fmt.Sprintf("%s%d", lastCol, lastRow), cellStyle); err != nil {
		return err
	}

	var errs []error
	for i, w := range widths {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		errs = append(errs, f.SetColWidth(SheetName, name, name, float64(min(w+columnWidthPadding, maxColumnWidth))))
	}
	return errors.Join(errs...)
}
