// SPDX-License-Identifier: Apache-2.0

package evidence

import (
	"context"
	"path/filepath"
	"strings"
)

// Origin distinguishes files on disk from text fetched from a remote system.
type Origin string

const (
	OriginLocalFile Origin = "local-file"
	OriginRemote    Origin = "remote-system"
)

// Format is the closed set of decoder tags. Every recognised extension maps
// to exactly one Format; anything else is FormatUnknown.
type Format string

const (
	FormatText        Format = "text"
	FormatMarkdown    Format = "markdown"
	FormatCSV         Format = "csv"
	FormatSpreadsheet Format = "spreadsheet"
	FormatDocument    Format = "document"
	FormatPDF         Format = "pdf"
	FormatImage       Format = "image"
	FormatMail        Format = "mail"
	FormatMailbox     Format = "mailbox"
	FormatOutlook     Format = "outlook"
	FormatStructured  Format = "structured"
	FormatRemote      Format = "remote"
	FormatUnknown     Format = "unknown"
)

var extensionFormats = map[string]Format{
	".txt":      FormatText,
	".log":      FormatText,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".csv":      FormatCSV,
	".xlsx":     FormatSpreadsheet,
	".xlsm":     FormatSpreadsheet,
	".xls":      FormatSpreadsheet,
	".docx":     FormatDocument,
	".pdf":      FormatPDF,
	".png":      FormatImage,
	".jpg":      FormatImage,
	".jpeg":     FormatImage,
	".tif":      FormatImage,
	".tiff":     FormatImage,
	".bmp":      FormatImage,
	".gif":      FormatImage,
	".eml":      FormatMail,
	".mbox":     FormatMailbox,
	".msg":      FormatOutlook,
	".yaml":     FormatStructured,
	".yml":      FormatStructured,
	".json":     FormatStructured,
}

// FormatForPath returns the Format tag for a file name based on its extension.
func FormatForPath(path string) Format {
	if f, ok := extensionFormats[strings.ToLower(filepath.Ext(path))]; ok {
		return f
	}
	return FormatUnknown
}

// EvidenceSource identifies one raw input to the evidence pipeline.
type EvidenceSource struct {
	Origin Origin
	// Path is the file path for local sources and the system name for remote ones.
	Path string
	Name string
	// Size is the byte size of a local file, or -1 for remote sources.
	Size   int64
	Format Format
	// Content carries the already-fetched text of a remote source.
	Content string
}

// Ext returns the lower-cased file extension of the source.
func (s EvidenceSource) Ext() string {
	return strings.ToLower(filepath.Ext(s.Name))
}

// DecodeStatus records how completely a source was decoded.
type DecodeStatus string

const (
	StatusOK      DecodeStatus = "ok"
	StatusPartial DecodeStatus = "partial"
	StatusFailed  DecodeStatus = "failed"
)

// DecodedText is the immutable result of decoding one EvidenceSource.
type DecodedText struct {
	Text   string
	Status DecodeStatus
	// Note carries diagnostics such as OCR confidence or the failure cause.
	Note string
}

// OK builds a successfully decoded result.
func OK(text string) DecodedText {
	return DecodedText{Text: text, Status: StatusOK}
}

// Partial builds a result whose content was elided or is of doubtful quality.
func Partial(text, note string) DecodedText {
	return DecodedText{Text: text, Status: StatusPartial, Note: note}
}

// Failed builds a failed result. The text is still embedded in the corpus.
func Failed(text, note string) DecodedText {
	return DecodedText{Text: text, Status: StatusFailed, Note: note}
}

// Decoder converts one family of file formats into text. Implementations may
// return an error; the Registry turns it into a failed DecodedText.
type Decoder interface {
	Formats() []Format
	Decode(ctx context.Context, source EvidenceSource) (DecodedText, error)
	Name() string
}
