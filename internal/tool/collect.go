// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MetadataCollectControlEvidence describes the collect_control_evidence tool.
var MetadataCollectControlEvidence = &mcp.Tool{
	Name: "collect_control_evidence",
	Description: "Assemble the size-bounded evidence corpus for an audit control: remote GRC and ticket " +
		"data first, then every file of the control's evidence folder ordered by size. " +
		"No language model is called.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"control_id"},
		"properties": map[string]interface{}{
			"control_id": map[string]interface{}{
				"type":        "string",
				"description": "Control identifier as it appears in the control workbook, e.g. C001",
			},
		},
	},
}

// InputCollectControlEvidence is the input for the CollectControlEvidence tool.
type InputCollectControlEvidence struct {
	ControlID string `json:"control_id"`
}

// SourceInfo describes one source that contributed to a corpus.
type SourceInfo struct {
	Name      string `json:"name"`
	Origin    string `json:"origin"`
	Format    string `json:"format"`
	Status    string `json:"status"`
	Chars     int    `json:"chars"`
	Truncated bool   `json:"truncated"`
	Dropped   bool   `json:"dropped"`
}

// OutputCollectControlEvidence is the output for the CollectControlEvidence tool.
type OutputCollectControlEvidence struct {
	Text            string       `json:"text"`
	Folder          string       `json:"folder,omitempty"`
	Sources         []SourceInfo `json:"sources"`
	TotalChars      int          `json:"total_chars"`
	EstimatedTokens int          `json:"estimated_tokens"`
	Truncated       bool         `json:"truncated"`
	NoEvidence      bool         `json:"no_evidence"`
}

// CollectControlEvidence returns the corpus the analyzer would see for a control.
func (t *Tools) CollectControlEvidence(ctx context.Context, _ *mcp.CallToolRequest, input InputCollectControlEvidence) (*mcp.CallToolResult, OutputCollectControlEvidence, error) {
	if strings.TrimSpace(input.ControlID) == "" {
		return nil, OutputCollectControlEvidence{}, fmt.Errorf("control_id is required")
	}

	corpus := t.collector.Collect(ctx, input.ControlID)
	sources := make([]SourceInfo, 0, len(corpus.Sources))
	for _, s := range corpus.Sources {
		sources = append(sources, SourceInfo{
			Name:      s.Name,
			Origin:    string(s.Origin),
			Format:    string(s.Format),
			Status:    string(s.Status),
			Chars:     s.Chars,
			Truncated: s.Truncated,
			Dropped:   s.Dropped,
		})
	}

	return nil, OutputCollectControlEvidence{
		Text:            corpus.Text,
		Folder:          corpus.Folder,
		Sources:         sources,
		TotalChars:      corpus.TotalChars,
		EstimatedTokens: corpus.EstimatedTokens(),
		Truncated:       corpus.Truncated,
		NoEvidence:      corpus.NoEvidence,
	}, nil
}
