// SPDX-License-Identifier: Apache-2.0

package decoders

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/gemaraproj/toe-assessor/internal/evidence"
)

// TextDecoder reads plain text and log files.
type TextDecoder struct{}

// NewTextDecoder creates a new TextDecoder.
func NewTextDecoder() *TextDecoder {
	return &TextDecoder{}
}

func (d *TextDecoder) Name() string {
	return "text"
}

func (d *TextDecoder) Formats() []evidence.Format {
	return []evidence.Format{evidence.FormatText}
}

func (d *TextDecoder) Decode(_ context.Context, source evidence.EvidenceSource) (evidence.DecodedText, error) {
	text, err := readText(source.Path)
	if err != nil {
		return evidence.DecodedText{}, err
	}
	return evidence.OK(text), nil
}

// readText loads a file as UTF-8. A UTF-16 or UTF-8 byte order mark selects
// the encoding; invalid sequences become U+FFFD.
func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return decodeBytes(data)
}

func decodeBytes(data []byte) (string, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return "", fmt.Errorf("failed to decode text: %w", err)
	}
	return string(out), nil
}
