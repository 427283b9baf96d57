// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/gemaraproj/toe-assessor/internal/config"
	"github.com/gemaraproj/toe-assessor/internal/evidence"
	"github.com/gemaraproj/toe-assessor/internal/evidence/decoders"
	"github.com/gemaraproj/toe-assessor/internal/generation"
	"github.com/gemaraproj/toe-assessor/internal/logging"
	"github.com/gemaraproj/toe-assessor/internal/remote"
)

// newCollector builds the evidence collector with every enabled collaborator.
func (a *app) newCollector() *evidence.Collector {
	caps := decoders.DetectCapabilities()
	if !caps.OCR {
		a.logger.Warn("tesseract not found on PATH; images and scanned PDFs will not be OCRed")
	}
	if !caps.PDFRaster {
		a.logger.Warn("pdftoppm not found on PATH; scanned PDFs will not be OCRed")
	}

	registry := decoders.Default(decoders.Options{
		Capabilities:          caps,
		LargeSpreadsheetBytes: a.cfg.Evidence.LargeSpreadsheetBytes,
	})
	a.logger.Debug("decoders registered", zap.Strings("decoders", registry.RegisteredDecoders()))

	opts := []evidence.CollectorOption{evidence.WithLogger(logging.Component(a.logger, "collector"))}
	if a.cfg.GRC.Enabled {
		opts = append(opts, evidence.WithGRC(remote.NewGRC(remote.GRCOptions{
			BaseURL:     a.cfg.GRC.BaseURL,
			Credentials: remote.Credentials{Username: a.cfg.GRC.Username, Password: a.cfg.GRC.Password},
			Timeout:     a.cfg.GRCTimeout(),
			Logger:      logging.Component(a.logger, "grc"),
		})))
	}
	if a.cfg.Jira.Enabled {
		opts = append(opts, evidence.WithTickets(remote.NewJira(remote.JiraOptions{
			BaseURL:     a.cfg.Jira.BaseURL,
			Credentials: remote.Credentials{Username: a.cfg.Jira.Username, Password: a.cfg.Jira.Token},
			MaxResults:  a.cfg.Jira.MaxResults,
			Timeout:     a.cfg.JiraTimeout(),
			Logger:      logging.Component(a.logger, "jira"),
		})))
	}
	return evidence.NewCollector(a.cfg.Paths.EvidenceRoot, registry, a.cfg.EvidenceLimits(), opts...)
}

// newGenerationClient builds the retrying generation client. It fails when no
// API key is configured.
func (a *app) newGenerationClient(ctx context.Context) (*generation.Client, error) {
	if err := a.cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	backend, err := generation.NewBackend(ctx, a.cfg.Backend(), http.DefaultClient)
	if err != nil {
		return nil, err
	}
	a.logger.Info("generation backend configured",
		zap.String("provider", a.cfg.LLM.Provider),
		zap.String("model", a.cfg.LLM.Model),
		zap.String("api_key", config.Mask(a.cfg.LLM.APIKey)))
	return generation.New(backend, a.cfg.GenerationPolicy(), generation.WithLogger(logging.Component(a.logger, "generation"))), nil
}
