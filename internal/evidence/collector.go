// SPDX-License-Identifier: Apache-2.0

package evidence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// RemoteSource is an optional collaborator (GRC system, ticket tracker) that
// produces evidence text for a control.
type RemoteSource interface {
	Fetch(ctx context.Context, controlID string) (string, error)
	Name() string
}

// Limits are the character budgets applied while collecting one control.
type Limits struct {
	MaxFileChars   int
	MaxTotalChars  int
	MinUsefulChars int
}

// DefaultLimits returns the budgets used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxFileChars:   15000,
		MaxTotalChars:  160000,
		MinUsefulChars: 100,
	}
}

// SourceSummary describes how one source contributed to a corpus.
type SourceSummary struct {
	Name      string
	Origin    Origin
	Format    Format
	Status    DecodeStatus
	Note      string
	Chars     int
	Truncated bool
	// Dropped is set when the global budget left no useful room for the source.
	Dropped bool
}

// Corpus is the aggregated, budgeted evidence text for one control.
type Corpus struct {
	ControlID  string
	Folder     string
	Text       string
	Sources    []SourceSummary
	TotalChars int
	Truncated  bool
	// NoEvidence marks the sentinel outcome: nothing was found locally or remotely.
	NoEvidence bool
}

// SourceCount returns the number of sources considered for the corpus.
func (c Corpus) SourceCount() int {
	return len(c.Sources)
}

// EstimatedTokens approximates the token count at four characters per token.
func (c Corpus) EstimatedTokens() int {
	return c.TotalChars / 4
}

// CollectorOption configures optional Collector collaborators.
type CollectorOption func(*Collector)

// WithGRC attaches a GRC collaborator. Its record is placed first in the corpus.
func WithGRC(src RemoteSource) CollectorOption {
	return func(c *Collector) {
		c.grc = src
	}
}

// WithTickets attaches a ticketing collaborator.
func WithTickets(src RemoteSource) CollectorOption {
	return func(c *Collector) {
		c.tickets = src
	}
}

// WithLogger sets the collector logger.
func WithLogger(logger *zap.Logger) CollectorOption {
	return func(c *Collector) {
		c.logger = logger
	}
}

// Collector assembles evidence corpora from a root folder holding one
// sub-folder per control.
type Collector struct {
	root     string
	registry *Registry
	limits   Limits
	grc      RemoteSource
	tickets  RemoteSource
	logger   *zap.Logger
}

// NewCollector creates a Collector reading from root.
func NewCollector(root string, registry *Registry, limits Limits, opts ...CollectorOption) *Collector {
	c := &Collector{
		root:     root,
		registry: registry,
		limits:   limits,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var unsafeNameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// Root returns the evidence root directory.
func (c *Collector) Root() string {
	return c.root
}

// Registry returns the decoder registry used for local files.
func (c *Collector) Registry() *Registry {
	return c.registry
}

// Limits returns the budget applied to each corpus.
func (c *Collector) Limits() Limits {
	return c.limits
}

// NormalizeControlID turns a control identifier into a filesystem-safe folder name.
func NormalizeControlID(controlID string) string {
	return unsafeNameChars.ReplaceAllString(strings.TrimSpace(controlID), "_")
}

// ResolveFolder finds the evidence folder for a normalized control name. An
// exact match wins; otherwise the lexicographically first sibling folder whose
// name contains the control name, case-insensitively.
func (c *Collector) ResolveFolder(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	exact := filepath.Join(c.root, name)
	if info, err := os.Stat(exact); err == nil && info.IsDir() {
		return exact, true
	}

	entries, err := os.ReadDir(c.root)
	if err != nil {
		return "", false
	}
	needle := strings.ToLower(name)
	var matches []string
	for _, e := range entries {
		if e.IsDir() && strings.Contains(strings.ToLower(e.Name()), needle) {
			matches = append(matches, e.Name())
		}
	}
	if len(matches) == 0 {
		return "", false
	}
	sort.Strings(matches)
	return filepath.Join(c.root, matches[0]), true
}

// Collect builds the evidence corpus for one control. It never fails: decode
// and collaborator errors are embedded as text.
func (c *Collector) Collect(ctx context.Context, controlID string) Corpus {
	name := NormalizeControlID(controlID)
	folder, found := c.ResolveFolder(name)

	b := &corpusBuilder{limits: c.limits}

	for _, remote := range []RemoteSource{c.grc, c.tickets} {
		if remote == nil || b.stopped {
			continue
		}
		decoded := c.fetchRemote(ctx, remote, controlID)
		if strings.TrimSpace(decoded.Text) == "" {
			continue
		}
		src := EvidenceSource{
			Origin:  OriginRemote,
			Path:    remote.Name(),
			Name:    remote.Name(),
			Size:    -1,
			Format:  FormatRemote,
			Content: decoded.Text,
		}
		b.add("", src, decoded)
	}

	if found && !b.stopped {
		files, err := listFiles(folder)
		if err != nil {
			c.logger.Warn("listing evidence folder failed", zap.String("folder", folder), zap.Error(err))
		}
		for i, src := range files {
			if b.stopped || ctx.Err() != nil {
				break
			}
			decoded := c.registry.Decode(ctx, src)
			if decoded.Status != StatusOK {
				c.logger.Debug("evidence decoded with diagnostics",
					zap.String("file", src.Name),
					zap.String("status", string(decoded.Status)),
					zap.String("note", decoded.Note))
			}
			header := fmt.Sprintf("=== LOCAL FILE %d: %s (%d bytes) ===", i+1, src.Name, src.Size)
			b.add(header, src, decoded)
		}
	}

	if len(b.sources) == 0 {
		return Corpus{
			ControlID:  controlID,
			Folder:     folder,
			Text:       c.noEvidenceText(controlID, name, folder, found),
			NoEvidence: true,
		}
	}

	corpus := b.build(controlID, folder)
	c.logger.Info("collected evidence",
		zap.String("control", controlID),
		zap.Int("sources", corpus.SourceCount()),
		zap.Int("chars", corpus.TotalChars),
		zap.Int("estimated_tokens", corpus.EstimatedTokens()),
		zap.Bool("truncated", corpus.Truncated))
	return corpus
}

func (c *Collector) fetchRemote(ctx context.Context, remote RemoteSource, controlID string) DecodedText {
	text, err := remote.Fetch(ctx, controlID)
	if err != nil {
		c.logger.Warn("remote evidence fetch failed", zap.String("source", remote.Name()), zap.String("control", controlID), zap.Error(err))
		return Failed(fmt.Sprintf("[%s Error: %v]", remote.Name(), err), err.Error())
	}
	return OK(text)
}

func (c *Collector) noEvidenceText(controlID, name, folder string, found bool) string {
	if !found {
		folder = filepath.Join(c.root, name) + " (not found)"
	}
	var remotes []string
	for _, r := range []RemoteSource{c.grc, c.tickets} {
		if r != nil {
			remotes = append(remotes, r.Name())
		}
	}
	enabled := "none"
	if len(remotes) > 0 {
		enabled = strings.Join(remotes, ", ")
	}
	return fmt.Sprintf("%s %s (Local folder: %s, Remote sources: %s)", NoEvidencePrefix, controlID, folder, enabled)
}

// NoEvidencePrefix starts the sentinel text of a corpus with no sources.
const NoEvidencePrefix = "No evidence found for control:"

func listFiles(folder string) ([]EvidenceSource, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}
	var files []EvidenceSource
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, EvidenceSource{
			Origin: OriginLocalFile,
			Path:   filepath.Join(folder, e.Name()),
			Name:   e.Name(),
			Size:   info.Size(),
			Format: FormatForPath(e.Name()),
		})
	}
	// Smallest first, so more distinct sources fit in the shared budget.
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Size != files[j].Size {
			return files[i].Size < files[j].Size
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

type corpusBuilder struct {
	limits    Limits
	parts     []string
	sources   []SourceSummary
	total     int
	truncated bool
	stopped   bool
}

func (b *corpusBuilder) add(header string, src EvidenceSource, decoded DecodedText) {
	budgeted := Truncate(decoded.Text, b.limits.MaxFileChars)
	summary := SourceSummary{
		Name:      src.Name,
		Origin:    src.Origin,
		Format:    src.Format,
		Status:    decoded.Status,
		Note:      decoded.Note,
		Truncated: budgeted.Truncated,
	}
	if budgeted.Truncated {
		b.truncated = true
	}

	headerCost := 0
	if header != "" {
		headerCost = Length(header) + 1
	}
	cost := headerCost + Length(budgeted.Text) + 1
	remaining := b.limits.MaxTotalChars - b.bannerReserve() - b.total

	if cost > remaining {
		b.truncated = true
		b.stopped = true
		summary.Truncated = true

		stop := fmt.Sprintf("[STOPPED: Total evidence limit of %d chars reached]", b.limits.MaxTotalChars)
		room := remaining - headerCost - Length(stop) - 2
		if remaining <= b.limits.MinUsefulChars || room <= 0 {
			summary.Dropped = true
			b.sources = append(b.sources, summary)
			return
		}
		fitted := Truncate(budgeted.Text, room)
		if header != "" {
			b.parts = append(b.parts, header)
		}
		b.parts = append(b.parts, fitted.Text, stop)
		b.total += headerCost + Length(fitted.Text) + Length(stop) + 2
		summary.Chars = Length(fitted.Text)
		b.sources = append(b.sources, summary)
		return
	}

	if header != "" {
		b.parts = append(b.parts, header)
	}
	b.parts = append(b.parts, budgeted.Text)
	b.total += cost
	summary.Chars = Length(budgeted.Text)
	b.sources = append(b.sources, summary)
}

// bannerReserve is the worst-case cost of the truncation warning. Every
// admitted source costs at least one character and at most one is dropped,
// so neither count in the banner can exceed MaxTotalChars+1.
func (b *corpusBuilder) bannerReserve() int {
	return Length(truncationWarning(b.limits.MaxTotalChars+1, b.limits.MaxTotalChars+1)) + 2
}

func truncationWarning(sources, chars int) string {
	return fmt.Sprintf("[WARNING: Evidence content was truncated. Processed %d sources, total %d chars]", sources, chars)
}

func (b *corpusBuilder) build(controlID, folder string) Corpus {
	text := strings.Join(b.parts, "\n")
	truncated := b.truncated

	if truncated {
		text = truncationWarning(len(b.sources), Length(text)) + "\n\n" + text
	}
	// Only reachable when the cap is smaller than the banner itself.
	if Length(text) > b.limits.MaxTotalChars {
		text, _ = Clip(text, b.limits.MaxTotalChars, b.limits.MaxTotalChars, "")
		truncated = true
	}

	return Corpus{
		ControlID:  controlID,
		Folder:     folder,
		Text:       text,
		Sources:    b.sources,
		TotalChars: Length(text),
		Truncated:  truncated,
	}
}
