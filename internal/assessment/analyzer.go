// SPDX-License-Identifier: Apache-2.0

// Package assessment runs the per-control analysis: collect evidence, ask
// for a summary, then ask for a sufficiency verdict.
package assessment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gemaraproj/toe-assessor/internal/evidence"
	"github.com/gemaraproj/toe-assessor/internal/generation"
	"github.com/gemaraproj/toe-assessor/internal/workbook"
)

// Fixed outputs for controls without evidence.
const (
	NoEvidenceSummary     = "No evidence found for this control"
	NoEvidenceSufficiency = "CONCLUSION: NO\n\nDETAILED REASONING: No evidence was provided for review. Cannot assess control effectiveness without supporting documentation."
)

// Collector builds the evidence corpus for a control.
type Collector interface {
	Collect(ctx context.Context, controlID string) evidence.Corpus
}

// Generator produces text and never fails; failures come back as text.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) string
}

// Recorder persists results as they are produced.
type Recorder interface {
	RecordResult(ctx context.Context, runID string, result Result) error
}

// Settings are the generation limits for both requests.
type Settings struct {
	MaxTokens     int
	Temperature   float64
	MaxTotalChars int
}

// DefaultSettings returns 2048 tokens at temperature 0.7 within a 160000
// character evidence cap.
func DefaultSettings() Settings {
	return Settings{
		MaxTokens:     2048,
		Temperature:   0.7,
		MaxTotalChars: 160000,
	}
}

// Result is the analysis outcome for one control.
type Result struct {
	Row             int
	ControlID       string
	Description     string
	Summary         string
	Sufficiency     string
	Verdict         Verdict
	Sources         int
	EvidenceChars   int
	Truncated       bool
	NoEvidence      bool
	EstimatedTokens int
	Elapsed         time.Duration
}

// Outcome converts the result into a report row.
func (r Result) Outcome() workbook.Outcome {
	return workbook.Outcome{Summary: r.Summary, Sufficiency: r.Sufficiency}
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the analyzer logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// WithRecorder attaches a result recorder.
func WithRecorder(r Recorder) Option {
	return func(a *Analyzer) {
		a.recorder = r
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(a *Analyzer) {
		a.runID = id
	}
}

// Analyzer processes controls strictly one after another.
type Analyzer struct {
	collector Collector
	generator Generator
	settings  Settings
	recorder  Recorder
	logger    *zap.Logger
	runID     string
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(collector Collector, generator Generator, settings Settings, opts ...Option) *Analyzer {
	a := &Analyzer{
		collector: collector,
		generator: generator,
		settings:  settings,
		logger:    zap.NewNop(),
		runID:     uuid.NewString(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RunID identifies this analyzer's batch.
func (a *Analyzer) RunID() string {
	return a.runID
}

// Run analyses every record in order. Per-control failures are embedded in
// the results; only cancellation aborts the batch.
func (a *Analyzer) Run(ctx context.Context, records []workbook.ControlRecord) ([]Result, error) {
	start := time.Now()
	a.logger.Info("starting analysis", zap.String("run_id", a.runID), zap.Int("controls", len(records)))

	results := make([]Result, 0, len(records))
	totalTokens := 0
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("analysis interrupted after %d of %d controls: %w", i, len(records), err)
		}
		a.logger.Info("processing control",
			zap.String("control", rec.ID),
			zap.String("progress", fmt.Sprintf("%d/%d", i+1, len(records))))

		res := a.Analyze(ctx, rec)
		totalTokens += res.EstimatedTokens
		results = append(results, res)

		if a.recorder != nil {
			if err := a.recorder.RecordResult(ctx, a.runID, res); err != nil {
				a.logger.Warn("failed to record result", zap.String("control", rec.ID), zap.Error(err))
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analysis interrupted: %w", err)
	}

	a.logger.Info("analysis completed",
		zap.String("run_id", a.runID),
		zap.Int("controls", len(results)),
		zap.Int("estimated_tokens", totalTokens),
		zap.Duration("elapsed", time.Since(start)))
	return results, nil
}

// Analyze produces the result for one control. It never fails; a panic
// anywhere in the pipeline is reported in both output fields.
func (a *Analyzer) Analyze(ctx context.Context, rec workbook.ControlRecord) (res Result) {
	start := time.Now()
	res = Result{Row: rec.Row, ControlID: rec.ID, Description: rec.Description}

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("Error during analysis: %v", r)
			a.logger.Error("control analysis failed", zap.String("control", rec.ID), zap.Any("panic", r))
			res.Summary, res.Sufficiency, res.Verdict = msg, msg, VerdictUnknown
		}
		res.Elapsed = time.Since(start)
	}()

	corpus := a.collector.Collect(ctx, rec.ID)
	res.Sources = corpus.SourceCount()
	res.EvidenceChars = corpus.TotalChars
	res.Truncated = corpus.Truncated

	if corpus.NoEvidence {
		a.logger.Warn("no evidence found", zap.String("control", rec.ID), zap.String("detail", corpus.Text))
		res.NoEvidence = true
		res.Summary = NoEvidenceSummary
		res.Sufficiency = NoEvidenceSufficiency
		res.Verdict = VerdictNo
		return res
	}

	evidenceText := corpus.Text
	if evidence.Length(evidenceText) > a.settings.MaxTotalChars {
		evidenceText = evidence.Truncate(evidenceText, a.settings.MaxTotalChars).Text
	}

	res.Summary = a.generator.Generate(ctx, generation.Request{
		System:      summarySystemPrompt,
		Prompt:      summaryPrompt(evidenceText),
		MaxTokens:   a.settings.MaxTokens,
		Temperature: a.settings.Temperature,
	})
	res.Sufficiency = a.generator.Generate(ctx, generation.Request{
		System:      sufficiencySystemPrompt,
		Prompt:      sufficiencyPrompt(rec.Description, a.fitEvidence(rec.Description, evidenceText)),
		MaxTokens:   a.settings.MaxTokens,
		Temperature: a.settings.Temperature,
	})
	res.Verdict = ParseVerdict(res.Sufficiency)
	res.EstimatedTokens = evidence.Length(evidenceText+rec.Description) / 4

	a.logger.Info("control analysed",
		zap.String("control", rec.ID),
		zap.String("verdict", string(res.Verdict)),
		zap.Int("sources", res.Sources),
		zap.Int("estimated_tokens", res.EstimatedTokens))
	return res
}

// fitEvidence keeps the control description intact and shrinks the evidence
// when both together exceed the global cap.
func (a *Analyzer) fitEvidence(description, evidenceText string) string {
	combined := evidence.Length(description) + evidence.Length(evidenceText) + len("CONTROL: \n\nEVIDENCE: ")
	if combined <= a.settings.MaxTotalChars {
		return evidenceText
	}

	available := a.settings.MaxTotalChars - evidence.Length(description) - 100
	a.logger.Warn("evidence truncated for sufficiency assessment", zap.Int("available_chars", available))
	if available > 500 {
		return evidence.Truncate(evidenceText, available).Text
	}
	head, _ := evidence.Clip(evidenceText, 500, 500, "")
	return head + "[TRUNCATED due to size limits]"
}
