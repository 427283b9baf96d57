// SPDX-License-Identifier: Apache-2.0

// Package tool exposes the evidence pipeline as MCP tools.
package tool

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gemaraproj/toe-assessor/internal/assessment"
	"github.com/gemaraproj/toe-assessor/internal/evidence"
	"github.com/gemaraproj/toe-assessor/internal/workbook"
)

// ServerName is the MCP implementation name announced to clients.
const ServerName = "toe-assessor"

// Analyzer analyses a single control.
type Analyzer interface {
	Analyze(ctx context.Context, rec workbook.ControlRecord) assessment.Result
}

// Tools holds the dependencies shared by the tool handlers.
type Tools struct {
	collector *evidence.Collector
	analyzer  Analyzer
}

// New creates the tool set. analyzer may be nil, in which case assess_control
// reports that no generation backend is configured.
func New(collector *evidence.Collector, analyzer Analyzer) *Tools {
	return &Tools{collector: collector, analyzer: analyzer}
}

// NewServer registers every tool on a new MCP server.
func NewServer(t *Tools, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version}, nil)
	mcp.AddTool(server, MetadataDecodeEvidenceFile, t.DecodeEvidenceFile)
	mcp.AddTool(server, MetadataCollectControlEvidence, t.CollectControlEvidence)
	mcp.AddTool(server, MetadataAssessControl, t.AssessControl)
	return server
}

// Serve runs the MCP server over stdio until ctx is done or the client disconnects.
func Serve(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}
