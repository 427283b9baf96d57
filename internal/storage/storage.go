// SPDX-License-Identifier: Apache-2.0

// Package storage publishes finished reports to a local directory or S3.
package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/gemaraproj/toe-assessor/internal/config"
)

// Publisher copies a finished report to durable storage.
type Publisher interface {
	// Publish stores the file at path and returns its location.
	Publish(ctx context.Context, runID uuid.UUID, path string) (string, error)
	Name() string
}

// Type names a Publisher backend.
type Type string

const (
	TypeNone  Type = ""
	TypeLocal Type = "local"
	TypeS3    Type = "s3"
)

// New creates the Publisher selected by cfg. It returns nil when publishing
// is disabled.
func New(ctx context.Context, cfg config.PublishConfig) (Publisher, error) {
	switch Type(cfg.Type) {
	case TypeNone:
		return nil, nil
	case TypeLocal:
		return NewLocal(cfg.Dir)
	case TypeS3:
		return NewS3(ctx, S3Options{
			Bucket:   cfg.Bucket,
			Prefix:   cfg.Prefix,
			Region:   cfg.Region,
			Endpoint: cfg.Endpoint,
		})
	default:
		return nil, fmt.Errorf("unknown publish type: %s", cfg.Type)
	}
}

// objectKey builds "<runID>/<sanitized file name>".
func objectKey(runID uuid.UUID, filename string) string {
	name := filepath.Base(filename)
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	return runID.String() + "/" + name
}

// contentType determines the content type from a file name.
func contentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".txt", ".log":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
