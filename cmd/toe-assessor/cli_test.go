// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/gemaraproj/toe-assessor/internal/config"
)

// workspace is a throwaway project directory with config, evidence and input.
type workspace struct {
	dir      string
	config   string
	input    string
	evidence string
}

func newWorkspace(t *testing.T, baseURL string) workspace {
	t.Helper()
	dir := t.TempDir()
	ws := workspace{
		dir:      dir,
		config:   filepath.Join(dir, "toe-assessor.yaml"),
		input:    filepath.Join(dir, "controls.csv"),
		evidence: filepath.Join(dir, "Evidence"),
	}

	require.NoError(t, os.MkdirAll(filepath.Join(ws.evidence, "C001"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ws.evidence, "C001", "review.txt"),
		[]byte("Quarterly access review approved by CISO on 2024-03-31."), 0o600))
	require.NoError(t, os.WriteFile(ws.input,
		[]byte("Risk,Control,Control Description\nR1,C001,Access is reviewed quarterly\nR2,C002,Backups are tested\n"), 0o600))

	cfg := fmt.Sprintf(`
paths:
  input: %q
  evidence_root: %q
llm:
  base_url: %q
  retry_base: 1ms
  retry_max: 1ms
logging:
  level: error
  file: ""
history:
  enabled: true
  path: %q
publish:
  type: local
  dir: %q
`, ws.input, ws.evidence, baseURL, filepath.Join(dir, "history.db"), filepath.Join(dir, "published"))
	require.NoError(t, os.WriteFile(ws.config, []byte(cfg), 0o600))
	return ws
}

func run(t *testing.T, ws workspace, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", ws.config, "--env-file", filepath.Join(ws.dir, ".env")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// fakeChat answers every chat-completions request; sufficiency prompts get a YES.
func fakeChat(t *testing.T, calls *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test-key-0000000000", r.Header.Get("Authorization"))

		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		answer := "DOCUMENTS PRESENT:\n• review.txt"
		last := req.Messages[len(req.Messages)-1].Content
		switch {
		case last == "ping":
			answer = "pong"
		case strings.Contains(last, "CONTROL DESCRIPTION"):
			answer = "CONCLUSION: YES\n\nDETAILED REASONING: approval is evidenced."
		}
		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": answer}}},
		}))
	}))
}

// ---------------------------------------------------------------------------
// commands
// ---------------------------------------------------------------------------

func TestVersion(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "toe-assessor dev\n", out.String())
}

func TestCollect(t *testing.T) {
	ws := newWorkspace(t, "http://127.0.0.1:1")

	out, err := run(t, ws, "collect", "C001")
	require.NoError(t, err)
	assert.Contains(t, out, "=== LOCAL FILE 1: review.txt")
	assert.Contains(t, out, "Control C001: 1 sources")

	out, err = run(t, ws, "collect", "C002", "--stats")
	require.NoError(t, err)
	assert.Equal(t, "Control C002: no evidence\n", out)
}

func TestAnalyze_RequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	ws := newWorkspace(t, "http://127.0.0.1:1")

	_, err := run(t, ws, "analyze")
	require.ErrorIs(t, err, config.ErrMissingAPIKey)
	_, statErr := os.Stat(filepath.Join(ws.dir, "controls_TOE_EvidenceAnalysis.xlsx"))
	assert.True(t, os.IsNotExist(statErr), "no report is written")
}

func TestAnalyze_InvalidConfig(t *testing.T) {
	ws := newWorkspace(t, "http://127.0.0.1:1")
	require.NoError(t, os.WriteFile(ws.config, []byte("llm:\n  provider: ollama\n"), 0o600))

	_, err := run(t, ws, "collect", "C001")
	require.ErrorIs(t, err, config.ErrInvalid)
}

func TestAnalyze_EndToEnd(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-key-0000000000")
	var calls atomic.Int32
	srv := fakeChat(t, &calls)
	defer srv.Close()
	ws := newWorkspace(t, srv.URL)

	out, err := run(t, ws, "analyze")
	require.NoError(t, err)
	assert.Contains(t, out, "Analysed 2 controls")
	assert.Contains(t, out, "Sufficient (YES):   1")
	assert.Contains(t, out, "Insufficient (NO):  1")
	assert.Equal(t, int32(3), calls.Load(), "self-test plus two requests for the control with evidence")

	report := filepath.Join(ws.dir, "controls_TOE_EvidenceAnalysis.xlsx")
	f, err := excelize.OpenFile(report)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("TOE Results")
	require.NoError(t, err)
	require.Len(t, rows, 4, "band row, header row and one row per control")
	assert.Equal(t, []string{"Risk", "Control", "Control Description", "Evidence Summary", "Evidence Sufficiency Assessment"}, rows[1])
	assert.Contains(t, rows[2][4], "CONCLUSION: YES")
	assert.Equal(t, "No evidence found for this control", rows[3][3])

	published, err := filepath.Glob(filepath.Join(ws.dir, "published", "*", "controls_TOE_EvidenceAnalysis.xlsx"))
	require.NoError(t, err)
	assert.Len(t, published, 1)

	out, err = run(t, ws, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "gpt-4o")
}
