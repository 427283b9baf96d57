// SPDX-License-Identifier: Apache-2.0

package decoders

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/gemaraproj/toe-assessor/internal/evidence"
)

const (
	tesseractBin = "tesseract"
	pdftoppmBin  = "pdftoppm"
)

// OCRUnavailableText is embedded when a source needs OCR and the engine is
// not installed.
const OCRUnavailableText = "[OCR not available - install Tesseract OCR]"

// Capabilities records which optional external tools are installed.
type Capabilities struct {
	OCR       bool
	PDFRaster bool
}

// DetectCapabilities looks the OCR tools up on PATH.
func DetectCapabilities() Capabilities {
	_, ocrErr := exec.LookPath(tesseractBin)
	_, rasterErr := exec.LookPath(pdftoppmBin)
	return Capabilities{
		OCR:       ocrErr == nil,
		PDFRaster: rasterErr == nil,
	}
}

// Runner executes an external command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// OCRResult is recognised text with the mean word confidence in percent.
type OCRResult struct {
	Text       string
	Confidence float64
}

// LowConfidence reports whether the result should be flagged as unreliable.
func (r OCRResult) LowConfidence() bool {
	return r.Confidence < lowConfidence
}

// OCR drives the tesseract engine.
type OCR struct {
	caps   Capabilities
	runner Runner
}

// NewOCR creates an OCR engine wrapper. A nil runner uses os/exec.
func NewOCR(caps Capabilities, runner Runner) *OCR {
	if runner == nil {
		runner = execRunner{}
	}
	return &OCR{caps: caps, runner: runner}
}

// Available reports whether images can be recognised.
func (o *OCR) Available() bool {
	return o.caps.OCR
}

// CanRasterize reports whether PDF pages can be converted to images for OCR.
func (o *OCR) CanRasterize() bool {
	return o.caps.OCR && o.caps.PDFRaster
}

// Recognize runs OCR over one image file.
func (o *OCR) Recognize(ctx context.Context, imagePath string) (OCRResult, error) {
	out, err := o.runner.Run(ctx, tesseractBin, imagePath, "stdout", "--oem", "3", "--psm", "6", "tsv")
	if err != nil {
		return OCRResult{}, err
	}
	return ParseTSV(out), nil
}

// ParseTSV rebuilds text and the mean confidence from tesseract TSV output.
// Words on the same line are joined by spaces; a new block starts a new
// paragraph. Only words with a positive confidence count toward the mean.
func ParseTSV(data []byte) OCRResult {
	var (
		lines    []string
		current  []string
		lastLine string
		lastBlk  string
		sum      float64
		count    int
	)

	for i, row := range strings.Split(string(data), "\n") {
		if i == 0 || strings.TrimSpace(row) == "" {
			continue
		}
		fields := strings.Split(strings.TrimRight(row, "\r"), "\t")
		if len(fields) < 12 || fields[0] != "5" {
			continue
		}
		word := strings.TrimSpace(strings.Join(fields[11:], "\t"))
		block := fields[2]
		lineKey := fields[1] + "/" + fields[2] + "/" + fields[3] + "/" + fields[4]

		if lineKey != lastLine && len(current) > 0 {
			lines = append(lines, strings.Join(current, " "))
			current = nil
			if block != lastBlk {
				lines = append(lines, "")
			}
		}
		lastLine, lastBlk = lineKey, block

		if conf, err := strconv.ParseFloat(fields[10], 64); err == nil && conf > 0 {
			sum += conf
			count++
		}
		if word != "" {
			current = append(current, word)
		}
	}
	if len(current) > 0 {
		lines = append(lines, strings.Join(current, " "))
	}

	res := OCRResult{Text: strings.Join(lines, "\n")}
	if count > 0 {
		res.Confidence = sum / float64(count)
	}
	return res
}

func ocrUnavailable() evidence.DecodedText {
	return evidence.Failed(OCRUnavailableText, "capability unavailable")
}
