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
)

// GRCName labels GRC evidence in the corpus.
const GRCName = "SAP GRC"

// GRCOptions configures a GRC client.
type GRCOptions struct {
	BaseURL     string
	Credentials Credentials
	Timeout     time.Duration
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

// GRC reads control master data and test results from the SAP GRC REST API.
type GRC struct {
	baseURL string
	creds   Credentials
	client  *http.Client
	logger  *zap.Logger
}

// NewGRC creates a GRC client.
func NewGRC(opts GRCOptions) *GRC {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRC{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		creds:   opts.Credentials,
		client:  newHTTPClient(opts.HTTPClient, opts.Timeout),
		logger:  logger,
	}
}

func (g *GRC) Name() string {
	return GRCName
}

type grcControl struct {
	ControlID      string `json:"control_id"`
	ControlName    string `json:"control_name"`
	Status         string `json:"status"`
	LastReviewDate string `json:"last_review_date"`
	Reviewer       string `json:"reviewer"`
	Description    string `json:"description"`
}

type grcTests struct {
	Tests []struct {
		TestDate string `json:"test_date"`
		Result   string `json:"result"`
		Tester   string `json:"tester"`
		Comments string `json:"comments"`
	} `json:"tests"`
}

// Fetch renders the control record and, when available, its test results.
// A failing test-results request leaves that section out.
func (g *GRC) Fetch(ctx context.Context, controlID string) (string, error) {
	endpoint := fmt.Sprintf("%s/sap/bc/rest/grc/controls/%s", g.baseURL, url.PathEscape(controlID))

	var control grcControl
	if err := getJSON(ctx, g.client, endpoint, g.creds, &control); err != nil {
		return "", err
	}

	lines := []string{
		"=== SAP GRC CONTROL DATA ===",
		"Control ID: " + orNA(control.ControlID),
		"Control Name: " + orNA(control.ControlName),
		"Status: " + orNA(control.Status),
		"Last Review Date: " + orNA(control.LastReviewDate),
		"Reviewer: " + orNA(control.Reviewer),
		"Control Description: " + orNA(control.Description),
	}

	var tests grcTests
	if err := getJSON(ctx, g.client, endpoint+"/tests", g.creds, &tests); err != nil {
		g.logger.Debug("grc test results unavailable", zap.String("control", controlID), zap.Error(err))
	} else {
		lines = append(lines, "\n=== CONTROL TEST RESULTS ===")
		for _, t := range tests.Tests {
			lines = append(lines,
				"Test Date: "+orNA(t.TestDate),
				"Test Result: "+orNA(t.Result),
				"Tester: "+orNA(t.Tester),
				"Comments: "+orNA(t.Comments),
				strings.Repeat("-", 30),
			)
		}
	}
	return strings.Join(lines, "\n"), nil
}
