// SPDX-License-Identifier: Apache-2.0

// Package workbook reads the control list and writes the analysis report.
package workbook

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Column headers recognised in the input dataset.
const (
	ColumnControl            = "Control"
	ColumnControlDescription = "Control Description"
	ColumnRisk               = "Risk"
	ColumnRiskDescription    = "Risk Description"
)

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing required column")

// ControlRecord is one row of the input dataset.
type ControlRecord struct {
	// Row is the 1-based row number in the source sheet.
	Row             int
	ID              string
	Description     string
	Risk            string
	RiskDescription string
	// Cells holds every input cell, aligned with Dataset.Headers.
	Cells []string
}

// Dataset is the parsed input.
type Dataset struct {
	Path    string
	Headers []string
	Records []ControlRecord
}

// Columns names the headers used to locate control fields.
type Columns struct {
	Control            string
	ControlDescription string
	Risk               string
	RiskDescription    string
}

// DefaultColumns returns the standard header names.
func DefaultColumns() Columns {
	return Columns{
		Control:            ColumnControl,
		ControlDescription: ColumnControlDescription,
		Risk:               ColumnRisk,
		RiskDescription:    ColumnRiskDescription,
	}
}

// Read loads a dataset from an .xlsx/.xlsm workbook (first sheet) or a .csv
// file. The first row holds the headers.
func Read(path string, cols Columns) (*Dataset, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx", ".xlsm":
		rows, err = readSheet(path)
	default:
		return nil, fmt.Errorf("unsupported input format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w: %s", path, ErrMissingColumn, cols.Control)
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}
	idx := func(name string) int {
		for i, h := range headers {
			if strings.EqualFold(h, name) {
				return i
			}
		}
		return -1
	}

	controlCol, descCol := idx(cols.Control), idx(cols.ControlDescription)
	for name, i := range map[string]int{cols.Control: controlCol, cols.ControlDescription: descCol} {
		if i < 0 {
			return nil, fmt.Errorf("%s: %w: %s", path, ErrMissingColumn, name)
		}
	}
	riskCol, riskDescCol := idx(cols.Risk), idx(cols.RiskDescription)

	ds := &Dataset{Path: path, Headers: headers}
	for n, row := range rows[1:] {
		cells := make([]string, len(headers))
		copy(cells, row)
		if isBlank(cells) {
			continue
		}
		ds.Records = append(ds.Records, ControlRecord{
			Row:             n + 2,
			ID:              strings.TrimSpace(cells[controlCol]),
			Description:     strings.TrimSpace(cells[descCol]),
			Risk:            cell(cells, riskCol),
			RiskDescription: cell(cells, riskDescCol),
			Cells:           cells,
		})
	}
	return ds, nil
}

func cell(cells []string, i int) string {
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

func readSheet(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// DefaultOutputPath derives the report path from the input path.
func DefaultOutputPath(input string) string {
	stem := strings.TrimSuffix(input, filepath.Ext(input))
	return stem + "_TOE_EvidenceAnalysis.xlsx"
}
