// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gemaraproj/toe-assessor/internal/evidence"
)

// JiraName labels ticket evidence in the corpus.
const JiraName = "Jira"

const (
	// DefaultJiraMaxResults is the number of issues requested per control.
	DefaultJiraMaxResults = 10

	maxDescriptionChars = 500
	maxCommentChars     = 200
	recentComments      = 3
	truncatedSuffix     = "[TRUNCATED]"
)

// JiraOptions configures a Jira client.
type JiraOptions struct {
	BaseURL     string
	Credentials Credentials
	MaxResults  int
	Timeout     time.Duration
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

// Jira searches Jira Cloud for issues mentioning a control.
type Jira struct {
	baseURL    string
	creds      Credentials
	maxResults int
	client     *http.Client
	logger     *zap.Logger
}

// NewJira creates a Jira client.
func NewJira(opts JiraOptions) *Jira {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultJiraMaxResults
	}
	return &Jira{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		creds:      opts.Credentials,
		maxResults: maxResults,
		client:     newHTTPClient(opts.HTTPClient, opts.Timeout),
		logger:     logger,
	}
}

func (j *Jira) Name() string {
	return JiraName
}

type jiraSearch struct {
	Issues []jiraIssue `json:"issues"`
}

type jiraIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
		Status  *struct {
			Name string `json:"name"`
		} `json:"status"`
		Assignee *struct {
			DisplayName string `json:"displayName"`
		} `json:"assignee"`
		Created     string `json:"created"`
		Updated     string `json:"updated"`
		Description any    `json:"description"`
		Comment     struct {
			Comments []struct {
				Author *struct {
					DisplayName string `json:"displayName"`
				} `json:"author"`
				Created string `json:"created"`
				Body    any    `json:"body"`
			} `json:"comments"`
		} `json:"comment"`
	} `json:"fields"`
}

// JQL returns the search expression for a control.
func JQL(controlID string) string {
	q := strings.ReplaceAll(controlID, `"`, `\"`)
	return fmt.Sprintf(`summary~"%s" OR description~"%s"`, q, q)
}

// Fetch searches for issues related to the control and renders them.
func (j *Jira) Fetch(ctx context.Context, controlID string) (string, error) {
	params := url.Values{}
	params.Set("jql", JQL(controlID))
	params.Set("maxResults", fmt.Sprint(j.maxResults))
	params.Set("fields", "summary,description,status,assignee,created,updated,comment")

	var result jiraSearch
	if err := getJSON(ctx, j.client, j.baseURL+"/rest/api/3/search?"+params.Encode(), j.creds, &result); err != nil {
		return "", err
	}
	j.logger.Debug("jira search completed", zap.String("control", controlID), zap.Int("issues", len(result.Issues)))

	lines := []string{"=== JIRA TICKET EVIDENCE ==="}
	for _, issue := range result.Issues {
		f := issue.Fields
		status, assignee := "N/A", "Unassigned"
		if f.Status != nil {
			status = orNA(f.Status.Name)
		}
		if f.Assignee != nil && f.Assignee.DisplayName != "" {
			assignee = f.Assignee.DisplayName
		}
		lines = append(lines,
			"\nTicket: "+orNA(issue.Key),
			"Summary: "+orNA(f.Summary),
			"Status: "+status,
			"Assignee: "+assignee,
			"Created: "+orNA(f.Created),
			"Updated: "+orNA(f.Updated),
		)

		if desc := FlattenADF(f.Description); desc != "" {
			desc, _ = evidence.Clip(desc, maxDescriptionChars, maxDescriptionChars, truncatedSuffix)
			lines = append(lines, "Description: "+desc)
		}

		comments := f.Comment.Comments
		if len(comments) > 0 {
			if len(comments) > recentComments {
				comments = comments[len(comments)-recentComments:]
			}
			lines = append(lines, "Recent Comments:")
			for _, c := range comments {
				author := "Unknown"
				if c.Author != nil && c.Author.DisplayName != "" {
					author = c.Author.DisplayName
				}
				created := c.Created
				if created == "" {
					created = "Unknown"
				}
				body, _ := evidence.Clip(FlattenADF(c.Body), maxCommentChars, maxCommentChars, truncatedSuffix)
				lines = append(lines, fmt.Sprintf("  - %s (%s): %s", author, created, body))
			}
		}
		lines = append(lines, strings.Repeat("-", 40))
	}
	if len(result.Issues) == 0 {
		lines = append(lines, "No related Jira tickets found.")
	}
	return strings.Join(lines, "\n"), nil
}

// FlattenADF extracts the text nodes of an Atlassian Document Format value,
// joined by single spaces. Plain strings are returned unchanged.
func FlattenADF(node any) string {
	switch v := node.(type) {
	case nil:
		return ""
	case string:
		return v
	}
	var parts []string
	var walk func(any)
	walk = func(n any) {
		switch v := n.(type) {
		case map[string]any:
			if v["type"] == "text" {
				if s, ok := v["text"].(string); ok {
					parts = append(parts, s)
				}
				return
			}
			if content, ok := v["content"]; ok {
				walk(content)
			}
		case []any:
			for _, item := range v {
				walk(item)
			}
		}
	}
	walk(node)
	return strings.Join(parts, " ")
}
