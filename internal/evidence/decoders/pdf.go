// SPDX-License-Identifier: Apache-2.0

package decoders

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/gemaraproj/toe-assessor/internal/evidence"
)

const (
	pdfTextPages     = 10
	pdfTextChars     = 12000
	pdfOCRPages      = 8
	pdfOCRDPI        = "200"
	pdfPageTextLimit = 2000
	pdfPageTextKeep  = 1800
)

// PDFDecoder extracts the text layer of a PDF and falls back to OCR of the
// rendered pages when the document has none.
type PDFDecoder struct {
	ocr *OCR
}

// NewPDFDecoder creates a PDFDecoder that uses ocr for scanned documents.
func NewPDFDecoder(ocr *OCR) *PDFDecoder {
	return &PDFDecoder{ocr: ocr}
}

func (d *PDFDecoder) Name() string {
	return "pdf"
}

func (d *PDFDecoder) Formats() []evidence.Format {
	return []evidence.Format{evidence.FormatPDF}
}

func (d *PDFDecoder) Decode(ctx context.Context, source evidence.EvidenceSource) (evidence.DecodedText, error) {
	var lines []string

	text, processed, total, err := extractPDFText(source.Path)
	switch {
	case err != nil:
		lines = append(lines, fmt.Sprintf("[PDF text extraction failed: %v - attempting OCR...]", err))
	case strings.TrimSpace(text) == "":
		lines = append(lines, "[PDF contains no extractable text - attempting OCR...]")
	default:
		lines = append(lines, fmt.Sprintf("=== PDF TEXT EXTRACTION (%d pages) ===", processed), text)
		if total > processed {
			lines = append(lines, fmt.Sprintf("[NOTE: PDF has %d total pages, processed first %d]", total, processed))
			return evidence.Partial(strings.Join(lines, "\n"), "page limit reached"), nil
		}
		return evidence.OK(strings.Join(lines, "\n")), nil
	}

	if !d.ocr.CanRasterize() {
		lines = append(lines, OCRUnavailableText)
		return evidence.Failed(strings.Join(lines, "\n"), "capability unavailable"), nil
	}

	ocrLines, lowPages, err := d.ocrPages(ctx, source.Path)
	lines = append(lines, ocrLines...)
	if err != nil {
		lines = append(lines, fmt.Sprintf("[PDF OCR failed: %v]", err))
		return evidence.Failed(strings.Join(lines, "\n"), err.Error()), nil
	}
	note := "ocr fallback"
	if lowPages > 0 {
		note = fmt.Sprintf("ocr fallback, %d low-confidence pages", lowPages)
	}
	return evidence.Partial(strings.Join(lines, "\n"), note), nil
}

// extractPDFText reads the text layer of the first pages. The PDF library
// panics on some malformed files; that is reported as an error so the OCR
// fallback still runs.
func extractPDFText(path string) (text string, processed, total int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, 0, err
	}
	defer f.Close()

	total = r.NumPage()
	processed = min(pdfTextPages, total)

	var b strings.Builder
	for i := 1; i <= processed; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", 0, 0, fmt.Errorf("page %d: %w", i, err)
		}
		b.WriteString(pageText)
		if evidence.Length(b.String()) > pdfTextChars {
			return string([]rune(b.String())[:pdfTextChars]), processed, total, nil
		}
	}
	return b.String(), processed, total, nil
}

func (d *PDFDecoder) ocrPages(ctx context.Context, path string) ([]string, int, error) {
	lines := []string{"", "=== PDF OCR EXTRACTION ==="}

	dir, err := os.MkdirTemp("", "toe-pdf-*")
	if err != nil {
		return lines, 0, fmt.Errorf("failed to create raster dir: %w", err)
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, "page")
	_, err = d.ocr.runner.Run(ctx, pdftoppmBin,
		"-r", pdfOCRDPI, "-f", "1", "-l", fmt.Sprint(pdfOCRPages), "-png", path, prefix)
	if err != nil {
		return lines, 0, err
	}

	images, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return lines, 0, err
	}
	if len(images) == 0 {
		return lines, 0, errors.New("no pages rendered")
	}
	sort.Strings(images)

	low := 0
	for i, img := range images {
		res, err := d.ocr.Recognize(ctx, img)
		if err != nil {
			return lines, low, fmt.Errorf("page %d: %w", i+1, err)
		}
		pageText, _ := evidence.Clip(res.Text, pdfPageTextLimit, pdfPageTextKeep,
			fmt.Sprintf("\n[PAGE %d OCR TRUNCATED]", i+1))
		lines = append(lines,
			fmt.Sprintf("\n--- PAGE %d OCR ---", i+1),
			fmt.Sprintf("OCR Confidence: %.1f%%", res.Confidence),
			pageText)
		if res.LowConfidence() {
			low++
			lines = append(lines, "[WARNING: Low OCR confidence for this page]")
		}
	}
	if len(images) == pdfOCRPages {
		lines = append(lines, fmt.Sprintf("[NOTE: OCR processed first %d pages]", pdfOCRPages))
	}
	return lines, low, nil
}
