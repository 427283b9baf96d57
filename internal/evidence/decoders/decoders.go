// SPDX-License-Identifier: Apache-2.0

// Package decoders converts evidence files into plain text for the
// evidence collector. Each decoder handles one family of formats and is
// registered with an evidence.Registry through Default.
package decoders

import (
	"github.com/gemaraproj/toe-assessor/internal/evidence"
)

// DefaultLargeSpreadsheetBytes is the file size above which workbooks are
// summarised instead of rendered in full.
const DefaultLargeSpreadsheetBytes = 50000

// lowConfidence is the OCR confidence percentage below which text is flagged.
const lowConfidence = 70.0

// Options configures the default decoder set.
type Options struct {
	Capabilities          Capabilities
	LargeSpreadsheetBytes int64
	// Runner executes external OCR tools. Nil uses os/exec.
	Runner Runner
}

// Default builds a Registry with every decoder registered.
func Default(opts Options) *evidence.Registry {
	if opts.LargeSpreadsheetBytes <= 0 {
		opts.LargeSpreadsheetBytes = DefaultLargeSpreadsheetBytes
	}
	ocr := NewOCR(opts.Capabilities, opts.Runner)

	return evidence.NewRegistry(
		NewTextDecoder(),
		NewMarkdownDecoder(),
		NewCSVDecoder(),
		NewSpreadsheetDecoder(opts.LargeSpreadsheetBytes),
		NewDocumentDecoder(),
		NewPDFDecoder(ocr),
		NewImageDecoder(ocr),
		NewMailDecoder(),
		NewMailboxDecoder(),
		NewOutlookDecoder(),
		NewStructuredDecoder(),
	)
}
