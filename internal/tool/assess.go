// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gemaraproj/toe-assessor/internal/workbook"
)

// MetadataAssessControl describes the assess_control tool.
var MetadataAssessControl = &mcp.Tool{
	Name: "assess_control",
	Description: "Run a Test of Effectiveness review for one control: collect its evidence, summarise it " +
		"and decide whether it is sufficient to conclude the control operates effectively. " +
		"The verdict is YES, NO or UNKNOWN when the model's answer could not be read.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"control_id", "description"},
		"properties": map[string]interface{}{
			"control_id": map[string]interface{}{
				"type":        "string",
				"description": "Control identifier used to locate the evidence folder",
			},
			"description": map[string]interface{}{
				"type":        "string",
				"description": "Control description the evidence is assessed against",
			},
		},
	},
}

// InputAssessControl is the input for the AssessControl tool.
type InputAssessControl struct {
	ControlID   string `json:"control_id"`
	Description string `json:"description"`
}

// OutputAssessControl is the output for the AssessControl tool.
type OutputAssessControl struct {
	ControlID   string `json:"control_id"`
	Verdict     string `json:"verdict"`
	Summary     string `json:"summary"`
	Sufficiency string `json:"sufficiency"`
	Sources     int    `json:"sources"`
	NoEvidence  bool   `json:"no_evidence"`
	Truncated   bool   `json:"truncated"`
}

// AssessControl analyses a single control with the configured generation backend.
func (t *Tools) AssessControl(ctx context.Context, _ *mcp.CallToolRequest, input InputAssessControl) (*mcp.CallToolResult, OutputAssessControl, error) {
	if strings.TrimSpace(input.ControlID) == "" {
		return nil, OutputAssessControl{}, fmt.Errorf("control_id is required")
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, OutputAssessControl{}, fmt.Errorf("description is required")
	}
	if t.analyzer == nil {
		return nil, OutputAssessControl{}, fmt.Errorf("assessment is not available: no generation backend configured")
	}

	res := t.analyzer.Analyze(ctx, workbook.ControlRecord{ID: input.ControlID, Description: input.Description})
	return nil, OutputAssessControl{
		ControlID:   res.ControlID,
		Verdict:     string(res.Verdict),
		Summary:     res.Summary,
		Sufficiency: res.Sufficiency,
		Sources:     res.Sources,
		NoEvidence:  res.NoEvidence,
		Truncated:   res.Truncated,
	}, nil
}
