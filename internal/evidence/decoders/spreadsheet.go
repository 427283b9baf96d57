// SPDX-License-Identifier: Apache-2.0

package decoders

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/gemaraproj/toe-assessor/internal/evidence"
)

const (
	summaryHeadRows = 10
	summaryTailRows = 5
)

// ErrLegacyWorkbook is returned for binary .xls workbooks, which excelize
// cannot open.
var ErrLegacyWorkbook = errors.New("legacy .xls workbooks are not supported; save as .xlsx")

// SpreadsheetDecoder renders workbooks sheet by sheet. Workbooks larger than
// the configured threshold are streamed and only the first and last rows of
// each sheet are kept.
type SpreadsheetDecoder struct {
	largeBytes int64
}

// NewSpreadsheetDecoder creates a SpreadsheetDecoder that summarises files
// above largeBytes.
func NewSpreadsheetDecoder(largeBytes int64) *SpreadsheetDecoder {
	return &SpreadsheetDecoder{largeBytes: largeBytes}
}

func (d *SpreadsheetDecoder) Name() string {
	return "spreadsheet"
}

func (d *SpreadsheetDecoder) Formats() []evidence.Format {
	return []evidence.Format{evidence.FormatSpreadsheet}
}

func (d *SpreadsheetDecoder) Decode(_ context.Context, source evidence.EvidenceSource) (evidence.DecodedText, error) {
	if strings.EqualFold(filepath.Ext(source.Path), ".xls") {
		return evidence.DecodedText{}, ErrLegacyWorkbook
	}
	f, err := excelize.OpenFile(source.Path)
	if err != nil {
		return evidence.DecodedText{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if source.Size > d.largeBytes {
		return d.summarise(f)
	}

	var lines []string
	for _, sheet := range f.GetSheetList() {
		lines = append(lines, fmt.Sprintf("--- Sheet: %s ---", sheet))
		rows, err := f.GetRows(sheet)
		if err != nil {
			return evidence.DecodedText{}, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
		}
		for _, row := range rows {
			if line := joinCells(row); line != "" {
				lines = append(lines, line)
			}
		}
	}
	return evidence.OK(strings.Join(lines, "\n")), nil
}

func (d *SpreadsheetDecoder) summarise(f *excelize.File) (evidence.DecodedText, error) {
	sheets := f.GetSheetList()
	lines := []string{fmt.Sprintf("Excel Workbook: %d sheets", len(sheets))}
	elided := false

	for _, sheet := range sheets {
		lines = append(lines, fmt.Sprintf("--- Sheet: %s ---", sheet))

		rows, err := f.Rows(sheet)
		if err != nil {
			return evidence.DecodedText{}, fmt.Errorf("failed to stream sheet %q: %w", sheet, err)
		}
		var (
			head  []string
			tail  []string
			total int
		)
		for rows.Next() {
			cols, err := rows.Columns()
			if err != nil {
				rows.Close()
				return evidence.DecodedText{}, fmt.Errorf("failed to read row in sheet %q: %w", sheet, err)
			}
			total++
			line := joinCells(cols)
			if line == "" {
				continue
			}
			if len(head) < summaryHeadRows {
				head = append(head, line)
				continue
			}
			tail = append(tail, line)
			if len(tail) > summaryTailRows {
				tail = tail[1:]
			}
		}
		if err := rows.Close(); err != nil {
			return evidence.DecodedText{}, fmt.Errorf("failed to close sheet %q: %w", sheet, err)
		}

		lines = append(lines, head...)
		lines = append(lines, tail...)
		if total > summaryHeadRows+summaryTailRows {
			elided = true
			lines = append(lines, fmt.Sprintf("[SUMMARY: Sheet has %d total rows, showing first %d and last %d (%d rows elided)]",
				total, summaryHeadRows, summaryTailRows, total-summaryHeadRows-summaryTailRows))
		}
	}

	text := strings.Join(lines, "\n")
	if elided {
		return evidence.Partial(text, "large workbook summarised"), nil
	}
	return evidence.OK(text), nil
}
