// SPDX-License-Identifier: Apache-2.0

package decoders

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gemaraproj/toe-assessor/internal/evidence"
)

// DocumentDecoder extracts paragraph text from Word (.docx) documents.
type DocumentDecoder struct{}

// NewDocumentDecoder creates a new DocumentDecoder.
func NewDocumentDecoder() *DocumentDecoder {
	return &DocumentDecoder{}
}

func (d *DocumentDecoder) Name() string {
	return "document"
}

func (d *DocumentDecoder) Formats() []evidence.Format {
	return []evidence.Format{evidence.FormatDocument}
}

func (d *DocumentDecoder) Decode(_ context.Context, source evidence.EvidenceSource) (evidence.DecodedText, error) {
	zr, err := zip.OpenReader(source.Path)
	if err != nil {
		return evidence.DecodedText{}, fmt.Errorf("failed to open document: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return evidence.DecodedText{}, fmt.Errorf("failed to open document body: %w", err)
		}
		defer rc.Close()
		text, err := documentText(rc)
		if err != nil {
			return evidence.DecodedText{}, err
		}
		return evidence.OK(text), nil
	}
	return evidence.DecodedText{}, errors.New("word/document.xml not found")
}

// documentText walks WordprocessingML tokens. Text runs (w:t) are emitted,
// tabs and breaks become whitespace and each paragraph ends a line.
func documentText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse document body: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}
	return strings.TrimSpace(strings.Join(paragraphs, "\n")), nil
}
