// SPDX-License-Identifier: Apache-2.0

// Package generation talks to the hosted text-generation service. Backends
// perform single calls; Client adds per-call timeouts, retries with
// exponential backoff and fail-closed text for callers that cannot fail.
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Request is one system + user prompt exchange.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Backend performs a single generation call.
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
}

// Policy bounds retries and call duration.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	CallTimeout time.Duration
}

// DefaultPolicy returns five attempts, 1s doubling up to 60s, 120s per call.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    60 * time.Second,
		CallTimeout: 120 * time.Second,
	}
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSleep replaces the wait between attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// Client wraps a Backend with the retry policy.
type Client struct {
	backend Backend
	policy  Policy
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates a Client. Zero policy fields take their defaults.
func New(backend Backend, policy Policy, opts ...Option) *Client {
	def := DefaultPolicy()
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = def.MaxAttempts
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = def.BaseDelay
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = def.MaxDelay
	}
	if policy.CallTimeout <= 0 {
		policy.CallTimeout = def.CallTimeout
	}

	c := &Client{
		backend: backend,
		policy:  policy,
		logger:  zap.NewNop(),
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backend returns the wrapped backend.
func (c *Client) Backend() Backend {
	return c.backend
}

// Backoff returns the wait after the given zero-based attempt:
// min(base * 2^attempt, max).
func (c *Client) Backoff(attempt int) time.Duration {
	d := c.policy.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= c.policy.MaxDelay {
			return c.policy.MaxDelay
		}
	}
	return min(d, c.policy.MaxDelay)
}

// Complete runs req under the retry policy and returns the generated text.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.policy.MaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.policy.CallTimeout)
		start := time.Now()
		text, err := c.backend.Complete(callCtx, req)
		cancel()

		if err == nil {
			c.logger.Debug("generation call succeeded",
				zap.String("backend", c.backend.Name()),
				zap.Int("attempt", attempt+1),
				zap.Duration("elapsed", time.Since(start)),
				zap.Int("response_chars", len(text)))
			return text, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		lastErr = err
		kind := KindOf(err)
		if !kind.Retryable() {
			c.logger.Error("generation call failed",
				zap.String("backend", c.backend.Name()),
				zap.Stringer("kind", kind),
				zap.Error(err))
			return "", err
		}
		if attempt == c.policy.MaxAttempts-1 {
			break
		}

		wait := c.Backoff(attempt)
		c.logger.Warn("generation call failed, retrying",
			zap.String("backend", c.backend.Name()),
			zap.Stringer("kind", kind),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", c.policy.MaxAttempts),
			zap.Duration("wait", wait),
			zap.Error(err))
		if err := c.sleep(ctx, wait); err != nil {
			return "", err
		}
	}

	c.logger.Error("generation retries exhausted",
		zap.String("backend", c.backend.Name()),
		zap.Int("attempts", c.policy.MaxAttempts),
		zap.Error(lastErr))
	return "", fmt.Errorf("giving up after %d attempts: %w", c.policy.MaxAttempts, lastErr)
}

// Generate is Complete for callers that store the outcome as text. Failures
// are returned as a description instead of an error.
func (c *Client) Generate(ctx context.Context, req Request) string {
	text, err := c.Complete(ctx, req)
	if err == nil {
		return text
	}
	switch KindOf(err) {
	case KindAuth:
		return fmt.Sprintf("Authentication error: %v", err)
	case KindTooLarge:
		return fmt.Sprintf("Request too large: %v", err)
	case KindNotFound:
		return fmt.Sprintf("Model not found: %v", err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Sprintf("LLM request cancelled: %v", err)
	}
	return fmt.Sprintf("LLM error after %d attempts: %v", c.policy.MaxAttempts, err)
}

// SelfTest sends a minimal request. Any failure means the run cannot proceed.
func (c *Client) SelfTest(ctx context.Context) error {
	_, err := c.Complete(ctx, Request{
		System:    "Be concise and precise.",
		Prompt:    "ping",
		MaxTokens: 10,
	})
	if err != nil {
		return fmt.Errorf("connectivity self-test against %s failed: %w", c.backend.Name(), err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
