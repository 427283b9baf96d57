// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Local copies reports into a directory tree.
type Local struct {
	basePath string
}

// NewLocal creates a Local publisher, creating basePath if needed.
func NewLocal(basePath string) (*Local, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create publish directory: %w", err)
	}
	return &Local{basePath: basePath}, nil
}

func (l *Local) Name() string {
	return string(TypeLocal)
}

// Publish copies the file to <base>/<runID>/<name>.
func (l *Local) Publish(_ context.Context, runID uuid.UUID, path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open report: %w", err)
	}
	defer src.Close()

	fullPath := filepath.Join(l.basePath, filepath.FromSlash(objectKey(runID, path)))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return fullPath, nil
}
