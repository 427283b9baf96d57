// SPDX-License-Identifier: Apache-2.0

package remote_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemaraproj/toe-assessor/internal/evidence"
	"github.com/gemaraproj/toe-assessor/internal/remote"
)

var (
	_ evidence.RemoteSource = (*remote.GRC)(nil)
	_ evidence.RemoteSource = (*remote.Jira)(nil)
)

// ---------------------------------------------------------------------------
// GRC
// ---------------------------------------------------------------------------

func TestGRC_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "auditor", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		switch r.URL.Path {
		case "/sap/bc/rest/grc/controls/C001":
			_, _ = w.Write([]byte(`{"control_id":"C001","control_name":"User access review","status":"Active","reviewer":"J. Smith"}`))
		case "/sap/bc/rest/grc/controls/C001/tests":
			_, _ = w.Write([]byte(`{"tests":[{"test_date":"2024-03-31","result":"Effective","tester":"A. Lee","comments":"No exceptions"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	grc := remote.NewGRC(remote.GRCOptions{
		BaseURL:     srv.URL + "/",
		Credentials: remote.Credentials{Username: "auditor", Password: "secret"},
	})
	text, err := grc.Fetch(context.Background(), "C001")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(text, "=== SAP GRC CONTROL DATA ===\nControl ID: C001\nControl Name: User access review"), text)
	assert.Contains(t, text, "Last Review Date: N/A")
	assert.Contains(t, text, "\n=== CONTROL TEST RESULTS ===\nTest Date: 2024-03-31\nTest Result: Effective")
	assert.Contains(t, text, strings.Repeat("-", 30))
	assert.Equal(t, "SAP GRC", grc.Name())
}

func TestGRC_MissingTestsSectionIsOmitted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/tests") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"control_id":"C001"}`))
	}))
	defer srv.Close()

	text, err := remote.NewGRC(remote.GRCOptions{BaseURL: srv.URL}).Fetch(context.Background(), "C001")
	require.NoError(t, err)
	assert.NotContains(t, text, "CONTROL TEST RESULTS")
}

func TestGRC_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := remote.NewGRC(remote.GRCOptions{BaseURL: srv.URL}).Fetch(context.Background(), "C001")
	require.Error(t, err)
	assert.Equal(t, "HTTP 401", err.Error())

	var statusErr *remote.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.Code)
}

// ---------------------------------------------------------------------------
// Jira
// ---------------------------------------------------------------------------

func adfParagraph(text string) map[string]any {
	return map[string]any{
		"type":    "doc",
		"version": 1,
		"content": []any{
			map[string]any{
				"type":    "paragraph",
				"content": []any{map[string]any{"type": "text", "text": text}},
			},
		},
	}
}

func TestJira_Fetch(t *testing.T) {
	comments := []any{}
	for _, body := range []string{"first", "second", "third", strings.Repeat("c", 250)} {
		comments = append(comments, map[string]any{
			"author":  map[string]any{"displayName": "Reviewer"},
			"created": "2024-04-01",
			"body":    adfParagraph(body),
		})
	}
	payload := map[string]any{
		"issues": []any{
			map[string]any{
				"key": "TOE-7",
				"fields": map[string]any{
					"summary":     "C001 quarterly review",
					"status":      map[string]any{"name": "Done"},
					"assignee":    nil,
					"created":     "2024-03-01",
					"updated":     "2024-04-02",
					"description": adfParagraph(strings.Repeat("d", 600)),
					"comment":     map[string]any{"comments": comments},
				},
			},
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/3/search", r.URL.Path)
		assert.Equal(t, `summary~"C001" OR description~"C001"`, r.URL.Query().Get("jql"))
		assert.Equal(t, "10", r.URL.Query().Get("maxResults"))
		assert.NoError(t, json.NewEncoder(w).Encode(payload))
	}))
	defer srv.Close()

	text, err := remote.NewJira(remote.JiraOptions{BaseURL: srv.URL}).Fetch(context.Background(), "C001")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(text, "=== JIRA TICKET EVIDENCE ===\n\nTicket: TOE-7"), text)
	assert.Contains(t, text, "Status: Done")
	assert.Contains(t, text, "Assignee: Unassigned")
	assert.Contains(t, text, "Description: "+strings.Repeat("d", 500)+"[TRUNCATED]")
	assert.NotContains(t, text, ": first")
	assert.Contains(t, text, "  - Reviewer (2024-04-01): second")
	assert.Contains(t, text, strings.Repeat("c", 200)+"[TRUNCATED]")
	assert.Contains(t, text, strings.Repeat("-", 40))
}

func TestJira_NoIssues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"issues":[]}`))
	}))
	defer srv.Close()

	text, err := remote.NewJira(remote.JiraOptions{BaseURL: srv.URL}).Fetch(context.Background(), "C009")
	require.NoError(t, err)
	assert.Equal(t, "=== JIRA TICKET EVIDENCE ===\nNo related Jira tickets found.", text)
}

func TestJQL_EscapesQuotes(t *testing.T) {
	assert.Equal(t, `summary~"a\"b" OR description~"a\"b"`, remote.JQL(`a"b`))
}

func TestFlattenADF(t *testing.T) {
	tests := []struct {
		name string
		node any
		want string
	}{
		{name: "nil", node: nil, want: ""},
		{name: "plain string", node: "legacy description", want: "legacy description"},
		{name: "single paragraph", node: adfParagraph("approved"), want: "approved"},
		{
			name: "nested nodes joined by spaces",
			node: map[string]any{"type": "doc", "content": []any{
				adfParagraph("one"),
				map[string]any{"type": "bulletList", "content": []any{adfParagraph("two"), adfParagraph("three")}},
			}},
			want: "one two three",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, remote.FlattenADF(tt.node))
		})
	}
}

// ---------------------------------------------------------------------------
// collector integration
// ---------------------------------------------------------------------------

func TestRemoteFailureBecomesCorpusText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	collector := evidence.NewCollector(t.TempDir(), evidence.NewRegistry(), evidence.DefaultLimits(),
		evidence.WithGRC(remote.NewGRC(remote.GRCOptions{BaseURL: srv.URL})))
	corpus := collector.Collect(context.Background(), "C001")

	assert.False(t, corpus.NoEvidence)
	assert.Contains(t, corpus.Text, "[SAP GRC Error: HTTP 503]")
}
