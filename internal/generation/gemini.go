// SPDX-License-Identifier: Apache-2.0

package generation

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GeminiBackend calls the Gemini API through the Google Gen AI SDK.
type GeminiBackend struct {
	client *genai.Client
	model  string
}

// NewGemini creates a GeminiBackend.
func NewGemini(ctx context.Context, apiKey, model string) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, &Error{Kind: KindAuth, Message: "API key not configured"}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiBackend{client: client, model: model}, nil
}

func (b *GeminiBackend) Name() string {
	return "gemini/" + b.model
}

func (b *GeminiBackend) Complete(ctx context.Context, req Request) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", classifyGenAI(err)
	}
	return resp.Text(), nil
}

// classifyGenAI maps SDK errors onto the shared Kind table.
func classifyGenAI(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &Error{Kind: KindFromStatus(apiErr.Code), Status: apiErr.Code, Message: apiErr.Message, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &Error{Kind: KindFromStatus(apiErrPtr.Code), Status: apiErrPtr.Code, Message: apiErrPtr.Message, Err: err}
	}
	return &Error{Kind: KindOf(err), Message: "GenAI request failed", Err: err}
}
