// SPDX-License-Identifier: Apache-2.0

package generation

import (
	"context"
	"fmt"
	"net/http"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// BackendConfig selects and configures a Backend.
type BackendConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
}

// NewBackend builds the Backend named by cfg.Provider.
func NewBackend(ctx context.Context, cfg BackendConfig, httpClient *http.Client) (Backend, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		return NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model, httpClient), nil
	case ProviderGemini:
		return NewGemini(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}
