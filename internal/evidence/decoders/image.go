// SPDX-License-Identifier: Apache-2.0

package decoders

import (
	"context"
	"fmt"

	"github.com/gemaraproj/toe-assessor/internal/evidence"
)

const (
	imageTextLimit = 8000
	imageTextKeep  = 7500
)

// ImageDecoder recognises text in screenshots and scanned images.
type ImageDecoder struct {
	ocr *OCR
}

// NewImageDecoder creates an ImageDecoder backed by ocr.
func NewImageDecoder(ocr *OCR) *ImageDecoder {
	return &ImageDecoder{ocr: ocr}
}

func (d *ImageDecoder) Name() string {
	return "image"
}

func (d *ImageDecoder) Formats() []evidence.Format {
	return []evidence.Format{evidence.FormatImage}
}

func (d *ImageDecoder) Decode(ctx context.Context, source evidence.EvidenceSource) (evidence.DecodedText, error) {
	if !d.ocr.Available() {
		return ocrUnavailable(), nil
	}

	res, err := d.ocr.Recognize(ctx, source.Path)
	if err != nil {
		return evidence.DecodedText{}, fmt.Errorf("failed to perform OCR on image: %w", err)
	}

	body, cut := evidence.Clip(res.Text, imageTextLimit, imageTextKeep,
		fmt.Sprintf("\n[OCR TRUNCATED: Full text was %d chars]", evidence.Length(res.Text)))
	text := fmt.Sprintf("OCR Text (Confidence: %.1f%%):\n%s", res.Confidence, body)
	note := fmt.Sprintf("ocr confidence %.1f%%", res.Confidence)

	if res.LowConfidence() {
		text += "\n[WARNING: Low OCR confidence - text may be inaccurate]"
		return evidence.Partial(text, note), nil
	}
	if cut {
		return evidence.Partial(text, note), nil
	}
	return evidence.DecodedText{Text: text, Status: evidence.StatusOK, Note: note}, nil
}
