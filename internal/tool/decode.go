// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gemaraproj/toe-assessor/internal/evidence"
)

// MetadataDecodeEvidenceFile describes the decode_evidence_file tool.
var MetadataDecodeEvidenceFile = &mcp.Tool{
	Name: "decode_evidence_file",
	Description: "Decode a single evidence file below the evidence root into plain text. " +
		"Supported formats: txt, log, md, csv, xlsx, docx, pdf, images (OCR), eml, mbox, msg, yaml, json. " +
		"The text is bounded by the per-file evidence budget; the status is ok, partial (content elided " +
		"or low OCR confidence) or failed.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"path"},
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "File path relative to the evidence root, e.g. C001/access-review.xlsx",
			},
		},
	},
}

// InputDecodeEvidenceFile is the input for the DecodeEvidenceFile tool.
type InputDecodeEvidenceFile struct {
	Path string `json:"path"`
}

// OutputDecodeEvidenceFile is the output for the DecodeEvidenceFile tool.
type OutputDecodeEvidenceFile struct {
	Text   string `json:"text"`
	Format string `json:"format"`
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
	// Truncated reports whether the per-file budget elided content.
	Truncated      bool `json:"truncated"`
	OriginalLength int  `json:"original_length"`
}

// DecodeEvidenceFile runs the decoder registry over one evidence file.
func (t *Tools) DecodeEvidenceFile(ctx context.Context, _ *mcp.CallToolRequest, input InputDecodeEvidenceFile) (*mcp.CallToolResult, OutputDecodeEvidenceFile, error) {
	if strings.TrimSpace(input.Path) == "" {
		return nil, OutputDecodeEvidenceFile{}, fmt.Errorf("path is required")
	}

	path, err := t.resolve(input.Path)
	if err != nil {
		return nil, OutputDecodeEvidenceFile{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, OutputDecodeEvidenceFile{}, fmt.Errorf("evidence file not found: %w", err)
	}
	if info.IsDir() {
		return nil, OutputDecodeEvidenceFile{}, fmt.Errorf("%s is a directory", input.Path)
	}

	src := evidence.EvidenceSource{
		Origin: evidence.OriginLocalFile,
		Path:   path,
		Name:   info.Name(),
		Size:   info.Size(),
		Format: evidence.FormatForPath(path),
	}
	decoded := t.collector.Registry().Decode(ctx, src)
	budgeted := evidence.Truncate(decoded.Text, t.collector.Limits().MaxFileChars)

	return nil, OutputDecodeEvidenceFile{
		Text:           budgeted.Text,
		Format:         string(src.Format),
		Status:         string(decoded.Status),
		Note:           decoded.Note,
		Truncated:      budgeted.Truncated,
		OriginalLength: budgeted.OriginalLength,
	}, nil
}

// resolve joins rel onto the evidence root and rejects paths that escape it.
func (t *Tools) resolve(rel string) (string, error) {
	root, err := filepath.Abs(t.collector.Root())
	if err != nil {
		return "", fmt.Errorf("failed to resolve evidence root: %w", err)
	}
	path := filepath.Join(root, filepath.FromSlash(rel))
	inside, err := filepath.Rel(root, path)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the evidence root", rel)
	}
	return path, nil
}
