// SPDX-License-Identifier: Apache-2.0

// Package history keeps a SQLite ledger of analysis runs and their per-control
// results.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gemaraproj/toe-assessor/internal/assessment"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one batch analysis.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Input      string
	Output     string
	Provider   string
	Model      string
	Controls   int
	Status     string
	// PublishedTo is the report location reported by the publisher, if any.
	PublishedTo string
}

// ResultRow is a stored control result.
type ResultRow struct {
	RunID           string
	ControlID       string
	Verdict         string
	Summary         string
	Sufficiency     string
	Sources         int
	EvidenceChars   int
	Truncated       bool
	NoEvidence      bool
	EstimatedTokens int
	ElapsedMillis   int64
	RecordedAt      time.Time
}

// Store is the SQLite-backed run ledger.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the ledger at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		input TEXT NOT NULL,
		output TEXT,
		provider TEXT,
		model TEXT,
		controls INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		published_to TEXT
	);
	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		control_id TEXT NOT NULL,
		verdict TEXT NOT NULL,
		summary TEXT,
		sufficiency TEXT,
		sources INTEGER NOT NULL DEFAULT 0,
		evidence_chars INTEGER NOT NULL DEFAULT 0,
		truncated INTEGER NOT NULL DEFAULT 0,
		no_evidence INTEGER NOT NULL DEFAULT 0,
		estimated_tokens INTEGER NOT NULL DEFAULT 0,
		elapsed_ms INTEGER NOT NULL DEFAULT 0,
		recorded_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id);`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create history tables: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun inserts a run in the running state.
func (s *Store) StartRun(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, input, output, provider, model, controls, status) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, formatTime(run.StartedAt), run.Input, run.Output, run.Provider, run.Model, run.Controls, StatusRunning)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun closes a run with its final status.
func (s *Store) FinishRun(ctx context.Context, runID, status, publishedTo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, published_to = ? WHERE id = ?`,
		formatTime(time.Now()), status, publishedTo, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// RecordResult stores one control result.
func (s *Store) RecordResult(ctx context.Context, runID string, r assessment.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (run_id, control_id, verdict, summary, sufficiency, sources, evidence_chars, truncated, no_evidence, estimated_tokens, elapsed_ms, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, r.ControlID, string(r.Verdict), r.Summary, r.Sufficiency, r.Sources, r.EvidenceChars,
		boolInt(r.Truncated), boolInt(r.NoEvidence), r.EstimatedTokens, r.Elapsed.Milliseconds(), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to record result for %s: %w", r.ControlID, err)
	}
	return nil
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, COALESCE(finished_at, ''), input, COALESCE(output, ''), COALESCE(provider, ''),
		        COALESCE(model, ''), controls, status, COALESCE(published_to, '')
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &started, &finished, &r.Input, &r.Output, &r.Provider, &r.Model, &r.Controls, &r.Status, &r.PublishedTo); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Results returns the stored results of a run in recording order.
func (s *Store) Results(ctx context.Context, runID string) ([]ResultRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, control_id, verdict, COALESCE(summary, ''), COALESCE(sufficiency, ''), sources, evidence_chars,
		        truncated, no_evidence, estimated_tokens, elapsed_ms, recorded_at
		 FROM results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var out []ResultRow
	for rows.Next() {
		var r ResultRow
		var truncated, noEvidence int
		var recorded string
		if err := rows.Scan(&r.RunID, &r.ControlID, &r.Verdict, &r.Summary, &r.Sufficiency, &r.Sources, &r.EvidenceChars,
			&truncated, &noEvidence, &r.EstimatedTokens, &r.ElapsedMillis, &recorded); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Truncated = truncated != 0
		r.NoEvidence = noEvidence != 0
		r.RecordedAt = parseTime(recorded)
		out = append(out, r)
	}
	return out, rows.Err()
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
