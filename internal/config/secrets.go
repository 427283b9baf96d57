// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/gemaraproj/toe-assessor/internal/generation"
)

// DefaultEnvFile is the dotenv file read by ResolveSecrets when present.
const DefaultEnvFile = ".env"

// ErrMissingAPIKey is returned when the generation backend has no key.
var ErrMissingAPIKey = errors.New("API key not configured")

const placeholderAPIKey = "YOUR_OPENAI_API_KEY_HERE"

// APIKeyEnv returns the environment variable holding the key for provider.
func APIKeyEnv(provider string) string {
	if provider == generation.ProviderGemini {
		return "GEMINI_API_KEY"
	}
	return "OPENAI_API_KEY"
}

// ResolveSecrets loads envFile if it exists, without overriding variables
// already set, then copies credentials from the environment into c.
func (c *Config) ResolveSecrets(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	c.LLM.APIKey = os.Getenv(APIKeyEnv(c.LLM.Provider))
	c.GRC.Username = os.Getenv("SAP_GRC_USER")
	c.GRC.Password = os.Getenv("SAP_GRC_PASS")
	c.Jira.Username = os.Getenv("JIRA_USER")
	c.Jira.Token = os.Getenv("JIRA_TOKEN")
	return nil
}

// RequireAPIKey fails when no usable generation key was resolved.
func (c *Config) RequireAPIKey() error {
	if c.LLM.APIKey == "" || c.LLM.APIKey == placeholderAPIKey {
		return fmt.Errorf("%w: set %s", ErrMissingAPIKey, APIKeyEnv(c.LLM.Provider))
	}
	return nil
}

// Mask shortens a secret for display, keeping the first 7 and last 4 characters.
func Mask(secret string) string {
	if len(secret) <= 11 {
		return "***"
	}
	return secret[:7] + "..." + secret[len(secret)-4:]
}
