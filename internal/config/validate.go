// SPDX-License-Identifier: Apache-2.0

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// ErrInvalid marks configuration that failed validation.
var ErrInvalid = errors.New("invalid configuration")

//go:embed schema.cue
var schemaSource string

// Validate checks the configuration against the embedded #Config schema and
// the cross-field rules the schema cannot express.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	value := def.Unify(ctx.Encode(c))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.TrimSpace(cueerrors.Details(err, nil)))
	}

	var problems []string
	if c.Evidence.MinUsefulChars >= c.Evidence.MaxTotalChars {
		problems = append(problems, "evidence.min_useful_chars must be below evidence.max_total_chars")
	}
	if c.Evidence.MaxFileChars > c.Evidence.MaxTotalChars {
		problems = append(problems, "evidence.max_file_chars must not exceed evidence.max_total_chars")
	}
	if c.LLM.Provider == "openai" && c.LLM.BaseURL == "" {
		problems = append(problems, "llm.base_url is required for the openai provider")
	}
	if c.GRC.Enabled && c.GRC.BaseURL == "" {
		problems = append(problems, "grc.base_url is required when grc is enabled")
	}
	if c.Jira.Enabled && c.Jira.BaseURL == "" {
		problems = append(problems, "jira.base_url is required when jira is enabled")
	}
	if c.History.Enabled && c.History.Path == "" {
		problems = append(problems, "history.path is required when history is enabled")
	}
	switch c.Publish.Type {
	case "local":
		if c.Publish.Dir == "" {
			problems = append(problems, "publish.dir is required for local publishing")
		}
	case "s3":
		if c.Publish.Bucket == "" {
			problems = append(problems, "publish.bucket is required for s3 publishing")
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}
