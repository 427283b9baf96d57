// SPDX-License-Identifier: Apache-2.0

package decoders

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/gemaraproj/toe-assessor/internal/evidence"
)

// securityKeys are the pod and workload spec fields relevant to control testing.
var securityKeys = []string{
	"securityContext", "containers", "initContainers",
	"volumes", "serviceAccountName", "hostNetwork",
	"hostPID", "hostIPC", "resources", "env", "image",
}

// StructuredDecoder renders YAML and JSON configuration exports. Kubernetes
// manifests are reduced to their identity and security-relevant spec fields;
// other documents are rendered with sorted top-level keys.
type StructuredDecoder struct{}

// NewStructuredDecoder creates a new StructuredDecoder.
func NewStructuredDecoder() *StructuredDecoder {
	return &StructuredDecoder{}
}

func (d *StructuredDecoder) Name() string {
	return "structured"
}

func (d *StructuredDecoder) Formats() []evidence.Format {
	return []evidence.Format{evidence.FormatStructured}
}

func (d *StructuredDecoder) Decode(_ context.Context, source evidence.EvidenceSource) (evidence.DecodedText, error) {
	content, err := readText(source.Path)
	if err != nil {
		return evidence.DecodedText{}, err
	}

	var docs []any
	dec := yaml.NewDecoder(bytes.NewReader([]byte(content)))
	for {
		var doc any
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Keep the raw export so the reviewer still sees it.
			return evidence.Partial(content, fmt.Sprintf("failed to unmarshal YAML/JSON: %v", err)), nil
		}
		if doc != nil {
			docs = append(docs, doc)
		}
	}

	var parts []string
	for i, doc := range docs {
		if m, ok := doc.(map[string]any); ok {
			if kind, _ := m["kind"].(string); kind != "" && m["apiVersion"] != nil {
				parts = append(parts, renderManifest(m, i))
				continue
			}
			parts = append(parts, renderMapping(m))
			continue
		}
		parts = append(parts, renderValue(doc))
	}
	return evidence.OK(strings.Join(parts, "\n---\n")), nil
}

// renderManifest emits the resource identity followed by the security-relevant
// keys found in spec or in a pod template spec.
func renderManifest(m map[string]any, docIndex int) string {
	kind, _ := m["kind"].(string)
	apiVersion := fmt.Sprint(m["apiVersion"])

	ref := fmt.Sprintf("%s/%s", kind, apiVersion)
	if meta, ok := m["metadata"].(map[string]any); ok {
		if name, ok := meta["name"]; ok {
			ref = fmt.Sprintf("%s/%v (doc %d)", kind, name, docIndex)
		}
	}

	lines := []string{
		"[Resource: " + ref + "]",
		fmt.Sprintf("kind: %s\napiVersion: %s", kind, apiVersion),
	}

	spec, _ := m["spec"].(map[string]any)
	for _, scope := range []struct {
		path string
		spec map[string]any
	}{
		{"spec", spec},
		{"spec.template.spec", podTemplateSpec(spec)},
	} {
		if scope.spec == nil {
			continue
		}
		for _, key := range securityKeys {
			val, ok := scope.spec[key]
			if !ok {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s.%s:\n%s", scope.path, key, renderValue(val)))
		}
	}
	return strings.Join(lines, "\n")
}

func podTemplateSpec(spec map[string]any) map[string]any {
	tmpl, ok := spec["template"].(map[string]any)
	if !ok {
		return nil
	}
	s, _ := tmpl["spec"].(map[string]any)
	return s
}

func renderMapping(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		rendered := renderValue(m[k])
		if strings.Contains(rendered, "\n") {
			lines = append(lines, fmt.Sprintf("%s:\n%s", k, indent(rendered)))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", k, rendered))
	}
	return strings.Join(lines, "\n")
}

func renderValue(v any) string {
	rendered, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimSpace(string(rendered))
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
