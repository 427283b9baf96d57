// SPDX-License-Identifier: Apache-2.0

package decoders

import (
	"context"
	"strings"

	"github.com/gemaraproj/toe-assessor/internal/evidence"
)

// MarkdownDecoder renders Markdown evidence as an outline of its headings
// followed by each section under its full heading path.
type MarkdownDecoder struct{}

// NewMarkdownDecoder creates a new MarkdownDecoder.
func NewMarkdownDecoder() *MarkdownDecoder {
	return &MarkdownDecoder{}
}

func (d *MarkdownDecoder) Name() string {
	return "markdown"
}

func (d *MarkdownDecoder) Formats() []evidence.Format {
	return []evidence.Format{evidence.FormatMarkdown}
}

type markdownSection struct {
	path string
	text string
}

func (d *MarkdownDecoder) Decode(_ context.Context, source evidence.EvidenceSource) (evidence.DecodedText, error) {
	content, err := readText(source.Path)
	if err != nil {
		return evidence.DecodedText{}, err
	}

	sections, outline := splitSections(content)
	if len(outline) == 0 {
		return evidence.OK(strings.TrimSpace(content)), nil
	}

	var b strings.Builder
	b.WriteString("Document outline:\n")
	for _, line := range outline {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	for _, s := range sections {
		b.WriteString("\n[Section: ")
		b.WriteString(s.path)
		b.WriteString("]\n")
		b.WriteString(s.text)
		b.WriteByte('\n')
	}
	return evidence.OK(strings.TrimRight(b.String(), "\n")), nil
}

// splitSections splits a document on ATX headings. Section paths join the
// enclosing headings with " > "; text before the first heading is "preamble".
func splitSections(content string) ([]markdownSection, []string) {
	var (
		sections     []markdownSection
		outline      []string
		stack        []string
		currentPath  string
		currentLines []string
		inFence      bool
	)

	flush := func() {
		text := strings.TrimSpace(strings.Join(currentLines, "\n"))
		if text == "" {
			return
		}
		path := currentPath
		if path == "" {
			path = "preamble"
		}
		sections = append(sections, markdownSection{path: path, text: text})
	}

	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
		}
		level, heading := headingLevel(line)
		if inFence || level == 0 {
			currentLines = append(currentLines, line)
			continue
		}

		flush()
		if level > len(stack)+1 {
			level = len(stack) + 1
		}
		stack = append(stack[:level-1], heading)
		currentPath = strings.Join(stack, " > ")
		currentLines = nil
		outline = append(outline, strings.Repeat("  ", level-1)+"- "+heading)
	}
	flush()

	return sections, outline
}

func headingLevel(line string) (int, string) {
	if !strings.HasPrefix(line, "#") {
		return 0, ""
	}
	level := len(line) - len(strings.TrimLeft(line, "#"))
	rest := line[level:]
	if level > 6 || (rest != "" && rest[0] != ' ' && rest[0] != '\t') {
		return 0, ""
	}
	heading := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(rest), "#"))
	if heading == "" {
		return 0, ""
	}
	return level, heading
}
