package translator

import (
	"context"
	"time"
)

// ============================================================================
// TRANSLATOR — AI boundary for code generation and answer synthesis
// ============================================================================
// The translator is the ONLY package that calls an external AI service.
// It sends schema metadata plus the user question, never raw data: only
// column names, sample values, units and the question leave the process.
//
// Two call sites, both through the same Client:
//   - code generation: question + schema → JSON analysis program
//   - answer synthesis: question + executed result → grounded prose
// ============================================================================

// Client is a minimal completion interface over an LLM provider.
// Implementations: Gemini (default); tests use stubs.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Config holds provider configuration.
type Config struct {
	// APIKey authenticates against the provider.
	APIKey string
	// Model names the completion model.
	Model string
	// Endpoint overrides the provider base URL (empty = default).
	Endpoint string
	// Timeout bounds a single completion request.
	Timeout time.Duration
	// MaxRetries bounds transport-level retries per request.
	MaxRetries int
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = "gemini-2.0-flash"
	}
	if c.Endpoint == "" {
		c.Endpoint = "https://generativelanguage.googleapis.com/v1beta/models"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	return c
}
