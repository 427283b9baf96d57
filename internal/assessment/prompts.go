// SPDX-License-Identifier: Apache-2.0

package assessment

import "fmt"

const summarySystemPrompt = "You are an expert auditor. Provide a comprehensive structured analysis of evidence with clear sections."

const sufficiencySystemPrompt = "You are an expert auditor performing Test of Effectiveness reviews. Be thorough and professional."

func summaryPrompt(evidenceText string) string {
	return fmt.Sprintf(`You are a world-class auditor with decades of experience. Carefully review the following evidence files and provide a comprehensive, detailed bullet-point summary of ALL key information, data, and documentation present.

Be thorough and specific. Structure your analysis as follows:

DOCUMENTS PRESENT:
• [List a general high level overview of files found]

KEY INFORMATION IDENTIFIED:
• [Important data points, dates, amounts, names, IDs]
• [Process steps documented]
• [Approvals, signatures, timestamps]
• [Controls and checkpoints evident]
• [Completeness and accuracy of documentation]

GAPS OR CONCERNS:
• [Any missing information or concerns noted]

EVIDENCE FILES:
%s

Provide your structured bullet-point analysis:`, evidenceText)
}

func sufficiencyPrompt(controlDescription, evidenceText string) string {
	return fmt.Sprintf(`You are a world-class auditor performing a Test of Effectiveness (TOE) review.

Given the control description below and the evidence provided, perform a thorough assessment:

1. Start with a clear YES or NO - Is the evidence sufficient to conclude that this control is operating effectively?

2. Provide detailed auditor-style reasoning including:
   - Specific evidence that supports control effectiveness
   - Any gaps or deficiencies identified
   - Whether the evidence demonstrates the control operated as designed
   - Adequacy of documentation, timing, authorization
   - Overall assessment of control operation

CONTROL DESCRIPTION:
%s

EVIDENCE PROVIDED:
%s

Provide your assessment in the format:
CONCLUSION: [YES/NO]

DETAILED REASONING:
[Your comprehensive auditor assessment]`, controlDescription, evidenceText)
}
