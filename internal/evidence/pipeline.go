// SPDX-License-Identifier: Apache-2.0

package evidence

import (
	"context"
	"fmt"
	"sort"
)

// Registry dispatches sources to decoders through a Format lookup table.
type Registry struct {
	decoders map[Format]Decoder
}

// NewRegistry creates a Registry with the provided decoders. When two
// decoders claim the same Format the later one wins.
func NewRegistry(decoders ...Decoder) *Registry {
	r := &Registry{decoders: make(map[Format]Decoder)}
	for _, d := range decoders {
		r.Register(d)
	}
	return r
}

// Register adds a decoder for every Format it reports.
func (r *Registry) Register(d Decoder) {
	for _, f := range d.Formats() {
		r.decoders[f] = d
	}
}

// Decode never fails: decoder errors and panics are converted into a failed
// DecodedText carrying a bracketed diagnostic.
func (r *Registry) Decode(ctx context.Context, source EvidenceSource) (result DecodedText) {
	decoder, ok := r.decoders[source.Format]
	if !ok {
		return Failed(fmt.Sprintf("[Unsupported file type: %s]", source.Ext()), "unsupported")
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = Failed(fmt.Sprintf("[Error reading %s: %v]", source.Name, rec), fmt.Sprintf("decoder %q panicked", decoder.Name()))
		}
	}()

	decoded, err := decoder.Decode(ctx, source)
	if err != nil {
		return Failed(fmt.Sprintf("[Error reading %s: %v]", source.Name, err), err.Error())
	}
	if decoded.Status == "" {
		decoded.Status = StatusOK
	}
	return decoded
}

// RegisteredDecoders returns the names of all registered decoders, sorted.
func (r *Registry) RegisteredDecoders() []string {
	seen := make(map[string]bool)
	var names []string
	for _, d := range r.decoders {
		if !seen[d.Name()] {
			seen[d.Name()] = true
			names = append(names, d.Name())
		}
	}
	sort.Strings(names)
	return names
}
