// SPDX-License-Identifier: Apache-2.0

package decoders_test

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-mbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/gemaraproj/toe-assessor/internal/evidence"
	"github.com/gemaraproj/toe-assessor/internal/evidence/decoders"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func writeFile(t *testing.T, name string, content []byte) evidence.EvidenceSource {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return sourceFor(t, path)
}

func sourceFor(t *testing.T, path string) evidence.EvidenceSource {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return evidence.EvidenceSource{
		Origin: evidence.OriginLocalFile,
		Path:   path,
		Name:   filepath.Base(path),
		Size:   info.Size(),
		Format: evidence.FormatForPath(path),
	}
}

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t100\t100\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t0\t0\t10\t10\t95.5\tAccess\n" +
	"5\t1\t1\t1\t1\t2\t0\t0\t10\t10\t90.5\tgranted\n" +
	"5\t1\t1\t1\t2\t1\t0\t0\t10\t10\t88\tReviewer:\n" +
	"5\t1\t2\t1\t1\t1\t0\t0\t10\t10\t96\tCISO\n"

const lowConfidenceTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"5\t1\t1\t1\t1\t1\t0\t0\t10\t10\t41\tbl0rry\n"

// fakeRunner stands in for tesseract and pdftoppm.
type fakeRunner struct {
	tsv   string
	pages int
	calls []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, name)
	switch name {
	case "pdftoppm":
		prefix := args[len(args)-1]
		for i := 1; i <= f.pages; i++ {
			if err := os.WriteFile(fmt.Sprintf("%s-%d.png", prefix, i), []byte("png"), 0o600); err != nil {
				return nil, err
			}
		}
		return nil, nil
	case "tesseract":
		return []byte(f.tsv), nil
	}
	return nil, fmt.Errorf("unexpected command %s", name)
}

var allTools = decoders.Capabilities{OCR: true, PDFRaster: true}

// ---------------------------------------------------------------------------
// registry
// ---------------------------------------------------------------------------

func TestDefault_RegistersEveryFormat(t *testing.T) {
	r := decoders.Default(decoders.Options{})
	assert.Equal(t, []string{
		"csv", "document", "image", "mail", "mailbox", "markdown",
		"outlook", "pdf", "spreadsheet", "structured", "text",
	}, r.RegisteredDecoders())
}

// ---------------------------------------------------------------------------
// text
// ---------------------------------------------------------------------------

func TestTextDecoder(t *testing.T) {
	d := decoders.NewTextDecoder()

	got, err := d.Decode(context.Background(), writeFile(t, "notes.txt", []byte("firewall rule review complete")))
	require.NoError(t, err)
	assert.Equal(t, "firewall rule review complete", got.Text)
	assert.Equal(t, evidence.StatusOK, got.Status)

	// UTF-16LE with byte order mark, as exported by Windows tools.
	utf16 := []byte{0xFF, 0xFE, 'o', 0, 'k', 0}
	got, err = d.Decode(context.Background(), writeFile(t, "export.log", utf16))
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Text)
}

func TestTextDecoder_MissingFile(t *testing.T) {
	_, err := decoders.NewTextDecoder().Decode(context.Background(), evidence.EvidenceSource{Path: filepath.Join(t.TempDir(), "gone.txt")})
	require.Error(t, err)
}

// ---------------------------------------------------------------------------
// markdown
// ---------------------------------------------------------------------------

func TestMarkdownDecoder(t *testing.T) {
	content := "Preamble text.\n\n# Access Review\nQuarterly review done.\n\n## Approvals\nSigned by CISO.\n\n```\n# not a heading\n```\n\n# Exceptions\nNone."
	got, err := decoders.NewMarkdownDecoder().Decode(context.Background(), writeFile(t, "review.md", []byte(content)))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got.Text, "Document outline:\n- Access Review\n  - Approvals\n- Exceptions\n"), got.Text)
	assert.Contains(t, got.Text, "[Section: preamble]\nPreamble text.")
	assert.Contains(t, got.Text, "[Section: Access Review > Approvals]\nSigned by CISO.")
	assert.Contains(t, got.Text, "# not a heading")
	assert.Contains(t, got.Text, "[Section: Exceptions]\nNone.")
}

func TestMarkdownDecoder_NoHeadings(t *testing.T) {
	got, err := decoders.NewMarkdownDecoder().Decode(context.Background(), writeFile(t, "plain.md", []byte("  just text \n")))
	require.NoError(t, err)
	assert.Equal(t, "just text", got.Text)
}

// ---------------------------------------------------------------------------
// csv
// ---------------------------------------------------------------------------

func TestCSVDecoder(t *testing.T) {
	d := decoders.NewCSVDecoder()

	got, err := d.Decode(context.Background(), writeFile(t, "users.csv", []byte("user,role,last_login\nalice,admin,2024-09-01\nbob,,2024-08-15\n")))
	require.NoError(t, err)
	assert.Equal(t, "user, role, last_login\nalice, admin, 2024-09-01\nbob, 2024-08-15", got.Text)
	assert.Equal(t, evidence.StatusOK, got.Status)

	raw := "user,comment\nalice,\"unterminated\n"
	got, err = d.Decode(context.Background(), writeFile(t, "broken.csv", []byte(raw)))
	require.NoError(t, err)
	assert.Equal(t, evidence.StatusPartial, got.Status)
	assert.Equal(t, raw, got.Text)
	assert.Contains(t, got.Note, "csv parse error")
}

// ---------------------------------------------------------------------------
// spreadsheet
// ---------------------------------------------------------------------------

func writeWorkbook(t *testing.T, rows int) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Row", "Owner"}))
	for i := 1; i < rows; i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &[]any{fmt.Sprintf("row-%03d", i+1), "ops"}))
	}
	path := filepath.Join(t.TempDir(), "access.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestSpreadsheetDecoder_Small(t *testing.T) {
	src := sourceFor(t, writeWorkbook(t, 3))
	got, err := decoders.NewSpreadsheetDecoder(decoders.DefaultLargeSpreadsheetBytes).Decode(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "--- Sheet: Sheet1 ---\nRow, Owner\nrow-002, ops\nrow-003, ops", got.Text)
	assert.Equal(t, evidence.StatusOK, got.Status)
}

func TestSpreadsheetDecoder_LargeIsSummarised(t *testing.T) {
	src := sourceFor(t, writeWorkbook(t, 30))
	got, err := decoders.NewSpreadsheetDecoder(1).Decode(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, evidence.StatusPartial, got.Status)
	assert.True(t, strings.HasPrefix(got.Text, "Excel Workbook: 1 sheets\n--- Sheet: Sheet1 ---\nRow, Owner"), got.Text)
	assert.Contains(t, got.Text, "row-010, ops")
	assert.NotContains(t, got.Text, "row-011")
	assert.NotContains(t, got.Text, "row-025")
	assert.Contains(t, got.Text, "row-026, ops")
	assert.Contains(t, got.Text, "row-030, ops")
	assert.Contains(t, got.Text, "[SUMMARY: Sheet has 30 total rows, showing first 10 and last 5 (15 rows elided)]")
}

func TestSpreadsheetDecoder_NotAWorkbook(t *testing.T) {
	_, err := decoders.NewSpreadsheetDecoder(decoders.DefaultLargeSpreadsheetBytes).
		Decode(context.Background(), writeFile(t, "broken.xlsx", []byte("not a zip")))
	require.Error(t, err)
	assert.NotErrorIs(t, err, decoders.ErrLegacyWorkbook)
}

func TestSpreadsheetDecoder_LegacyWorkbook(t *testing.T) {
	for _, name := range []string{"legacy.xls", "LEGACY.XLS"} {
		_, err := decoders.NewSpreadsheetDecoder(decoders.DefaultLargeSpreadsheetBytes).
			Decode(context.Background(), writeFile(t, name, []byte{0xD0, 0xCF, 0x11, 0xE0}))
		require.ErrorIs(t, err, decoders.ErrLegacyWorkbook, name)
	}
}

// ---------------------------------------------------------------------------
// document
// ---------------------------------------------------------------------------

func TestDocumentDecoder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Access Control Policy</w:t></w:r></w:p>
<w:p><w:r><w:t>Approved</w:t><w:tab/><w:t xml:space="preserve">by CISO</w:t></w:r></w:p>
</w:body></w:document>`)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	got, err := decoders.NewDocumentDecoder().Decode(context.Background(), sourceFor(t, path))
	require.NoError(t, err)
	assert.Equal(t, "Access Control Policy\nApproved\tby CISO", got.Text)
}

func TestDocumentDecoder_Invalid(t *testing.T) {
	_, err := decoders.NewDocumentDecoder().Decode(context.Background(), writeFile(t, "bad.docx", []byte("plain text")))
	require.Error(t, err)
}

// ---------------------------------------------------------------------------
// OCR, image, pdf
// ---------------------------------------------------------------------------

func TestParseTSV(t *testing.T) {
	got := decoders.ParseTSV([]byte(sampleTSV))
	assert.Equal(t, "Access granted\nReviewer:\n\nCISO", got.Text)
	assert.InDelta(t, 92.5, got.Confidence, 0.001)
	assert.False(t, got.LowConfidence())

	empty := decoders.ParseTSV(nil)
	assert.Empty(t, empty.Text)
	assert.Zero(t, empty.Confidence)
}

func TestImageDecoder_OCRUnavailable(t *testing.T) {
	d := decoders.NewImageDecoder(decoders.NewOCR(decoders.Capabilities{}, &fakeRunner{}))
	got, err := d.Decode(context.Background(), writeFile(t, "screenshot.png", []byte("png")))
	require.NoError(t, err)
	assert.Equal(t, evidence.StatusFailed, got.Status)
	assert.Equal(t, decoders.OCRUnavailableText, got.Text)
	assert.Equal(t, "capability unavailable", got.Note)
}

func TestImageDecoder(t *testing.T) {
	runner := &fakeRunner{tsv: sampleTSV}
	d := decoders.NewImageDecoder(decoders.NewOCR(allTools, runner))
	got, err := d.Decode(context.Background(), writeFile(t, "screenshot.png", []byte("png")))
	require.NoError(t, err)
	assert.Equal(t, evidence.StatusOK, got.Status)
	assert.Equal(t, "OCR Text (Confidence: 92.5%):\nAccess granted\nReviewer:\n\nCISO", got.Text)
	assert.Equal(t, []string{"tesseract"}, runner.calls)
}

func TestImageDecoder_LowConfidence(t *testing.T) {
	d := decoders.NewImageDecoder(decoders.NewOCR(allTools, &fakeRunner{tsv: lowConfidenceTSV}))
	got, err := d.Decode(context.Background(), writeFile(t, "scan.jpg", []byte("jpg")))
	require.NoError(t, err)
	assert.Equal(t, evidence.StatusPartial, got.Status)
	assert.Contains(t, got.Text, "[WARNING: Low OCR confidence - text may be inaccurate]")
}

func TestPDFDecoder_InvalidWithoutOCR(t *testing.T) {
	d := decoders.NewPDFDecoder(decoders.NewOCR(decoders.Capabilities{OCR: true}, &fakeRunner{}))
	got, err := d.Decode(context.Background(), writeFile(t, "report.pdf", []byte("not a pdf")))
	require.NoError(t, err)
	assert.Equal(t, evidence.StatusFailed, got.Status)
	assert.Contains(t, got.Text, "[PDF text extraction failed:")
	assert.Contains(t, got.Text, decoders.OCRUnavailableText)
}

func TestPDFDecoder_OCRFallback(t *testing.T) {
	runner := &fakeRunner{tsv: sampleTSV, pages: 2}
	d := decoders.NewPDFDecoder(decoders.NewOCR(allTools, runner))
	got, err := d.Decode(context.Background(), writeFile(t, "scan.pdf", []byte("not a pdf")))
	require.NoError(t, err)

	assert.Equal(t, evidence.StatusPartial, got.Status)
	assert.Contains(t, got.Text, "=== PDF OCR EXTRACTION ===")
	assert.Contains(t, got.Text, "--- PAGE 1 OCR ---\nOCR Confidence: 92.5%\nAccess granted")
	assert.Contains(t, got.Text, "--- PAGE 2 OCR ---")
	assert.NotContains(t, got.Text, "--- PAGE 3 OCR ---")
	assert.Equal(t, []string{"pdftoppm", "tesseract", "tesseract"}, runner.calls)
}

// ---------------------------------------------------------------------------
// mail
// ---------------------------------------------------------------------------

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

const plainMessage = `From: Alice <alice@example.com>
To: audit@example.com
Subject: Q3 access review approval
Date: Mon, 02 Sep 2024 10:00:00 +0000
Content-Type: text/plain; charset=utf-8

Approved for all in-scope systems.
`

func TestMailDecoder(t *testing.T) {
	got, err := decoders.NewMailDecoder().Decode(context.Background(), writeFile(t, "approval.eml", crlf(plainMessage)))
	require.NoError(t, err)
	assert.Equal(t, evidence.StatusOK, got.Status)
	assert.Contains(t, got.Text, "From: Alice <alice@example.com>\nTo: audit@example.com\nCC: None\n")
	assert.Contains(t, got.Text, "Subject: Q3 access review approval")
	assert.Contains(t, got.Text, "Body:\nApproved for all in-scope systems.")
}

func TestMailDecoder_LongBodyAndAttachments(t *testing.T) {
	var b strings.Builder
	b.WriteString("From: ops@example.com\nTo: audit@example.com\nSubject: Evidence pack\nMIME-Version: 1.0\n")
	b.WriteString("Content-Type: multipart/mixed; boundary=\"XYZ\"\n\n--XYZ\nContent-Type: text/plain; charset=utf-8\n\n")
	b.WriteString(strings.Repeat("b", 900))
	b.WriteString("\n")
	for i := 1; i <= 7; i++ {
		fmt.Fprintf(&b, "--XYZ\nContent-Type: application/pdf\nContent-Disposition: attachment; filename=\"evidence-%d.pdf\"\n\ndata\n", i)
	}
	b.WriteString("--XYZ--\n")

	got, err := decoders.NewMailDecoder().Decode(context.Background(), writeFile(t, "pack.eml", crlf(b.String())))
	require.NoError(t, err)
	assert.Equal(t, evidence.StatusPartial, got.Status)
	assert.Contains(t, got.Text, strings.Repeat("b", 700)+"\n[EMAIL BODY TRUNCATED - original length: 900 chars]")
	assert.NotContains(t, got.Text, strings.Repeat("b", 701))
	assert.Contains(t, got.Text, "  - evidence-5.pdf")
	assert.NotContains(t, got.Text, "evidence-6.pdf")
	assert.Contains(t, got.Text, "  ... and 2 more attachments")
}

func TestMailboxDecoder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.mbox")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := mbox.NewWriter(f)
	for _, subject := range []string{"First approval", "Second approval"} {
		mw, err := w.CreateMessage("alice@example.com", time.Date(2024, 9, 2, 10, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		_, err = io.WriteString(mw, "From: alice@example.com\r\nTo: audit@example.com\r\nSubject: "+subject+"\r\n\r\nApproved.\r\n")
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	got, err := decoders.NewMailboxDecoder().Decode(context.Background(), sourceFor(t, path))
	require.NoError(t, err)
	first := strings.Index(got.Text, "=== EMAIL 1 ===")
	second := strings.Index(got.Text, "=== EMAIL 2 ===")
	assert.True(t, first >= 0 && first < second, got.Text)
	assert.Contains(t, got.Text, "Subject: First approval")
	assert.Contains(t, got.Text, "Subject: Second approval")
}

func TestOutlookDecoder_NotACompoundFile(t *testing.T) {
	_, err := decoders.NewOutlookDecoder().Decode(context.Background(), writeFile(t, "approval.msg", []byte("not an outlook message")))
	require.Error(t, err)
}

// ---------------------------------------------------------------------------
// structured
// ---------------------------------------------------------------------------

const sampleDeployment = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: payments
spec:
  replicas: 2
  template:
    spec:
      serviceAccountName: payments
      securityContext:
        runAsNonRoot: true
      containers:
        - name: app
          image: payments:1.4
`

func TestStructuredDecoder_Kubernetes(t *testing.T) {
	content := sampleDeployment + "---\napiVersion: v1\nkind: Service\nmetadata:\n  name: payments-svc\nspec:\n  type: ClusterIP\n"
	got, err := decoders.NewStructuredDecoder().Decode(context.Background(), writeFile(t, "deploy.yaml", []byte(content)))
	require.NoError(t, err)

	assert.Contains(t, got.Text, "[Resource: Deployment/payments (doc 0)]\nkind: Deployment\napiVersion: apps/v1")
	assert.Contains(t, got.Text, "spec.template.spec.securityContext:\nrunAsNonRoot: true")
	assert.Contains(t, got.Text, "spec.template.spec.serviceAccountName:\npayments")
	assert.Contains(t, got.Text, "image: payments:1.4")
	assert.NotContains(t, got.Text, "replicas")
	assert.Contains(t, got.Text, "[Resource: Service/payments-svc (doc 1)]")
}

func TestStructuredDecoder_PlainDocuments(t *testing.T) {
	d := decoders.NewStructuredDecoder()

	got, err := d.Decode(context.Background(), writeFile(t, "policy.yaml", []byte("version: \"1.0\"\ntitle: Password Policy\nrules:\n  - min_length: 14\n")))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got.Text, "rules:\n  - min_length: 14\ntitle: Password Policy\nversion: "), got.Text)

	got, err = d.Decode(context.Background(), writeFile(t, "export.json", []byte(`{"mfa": true, "audit": "enabled"}`)))
	require.NoError(t, err)
	assert.Equal(t, "audit: enabled\nmfa: true", got.Text)
}

func TestStructuredDecoder_InvalidKeepsRawText(t *testing.T) {
	raw := "invalid: [unclosed"
	got, err := decoders.NewStructuredDecoder().Decode(context.Background(), writeFile(t, "bad.yaml", []byte(raw)))
	require.NoError(t, err)
	assert.Equal(t, evidence.StatusPartial, got.Status)
	assert.Equal(t, raw, got.Text)
	assert.Contains(t, got.Note, "failed to unmarshal")
}
