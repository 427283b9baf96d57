// SPDX-License-Identifier: Apache-2.0

package decoders

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/gemaraproj/toe-assessor/internal/evidence"
)

// CSVDecoder renders comma-separated exports one record per line.
type CSVDecoder struct{}

// NewCSVDecoder creates a new CSVDecoder.
func NewCSVDecoder() *CSVDecoder {
	return &CSVDecoder{}
}

func (d *CSVDecoder) Name() string {
	return "csv"
}

func (d *CSVDecoder) Formats() []evidence.Format {
	return []evidence.Format{evidence.FormatCSV}
}

func (d *CSVDecoder) Decode(_ context.Context, source evidence.EvidenceSource) (evidence.DecodedText, error) {
	content, err := readText(source.Path)
	if err != nil {
		return evidence.DecodedText{}, err
	}

	r := csv.NewReader(strings.NewReader(content))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		// Malformed exports are still useful evidence as raw text.
		return evidence.Partial(content, fmt.Sprintf("csv parse error: %v", err)), nil
	}

	lines := make([]string, 0, len(records))
	for _, rec := range records {
		lines = append(lines, joinCells(rec))
	}
	return evidence.OK(strings.Join(lines, "\n")), nil
}

// joinCells joins the non-empty cells of a row with ", ".
func joinCells(cells []string) string {
	parts := make([]string, 0, len(cells))
	for _, c := range cells {
		if c = strings.TrimSpace(c); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, ", ")
}
