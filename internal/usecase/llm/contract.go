// Package llm orchestrates generation across an ordered set of model
// backends, falling back down the chain until one produces an acceptable
// completion.
package llm

import (
	"context"
	"time"
)

// Backend is a single model endpoint capable of completing a prompt.
type Backend interface {
	// Name returns the configured backend name, used in logs and metrics.
	Name() string
	// Generate sends the prompt and returns the raw completion text.
	Generate(ctx context.Context, prompt string) (string, error)
	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error
}

// Request describes one generation to run through the backend chain.
type Request struct {
	Prompt string
	// Accept validates a raw completion. A non-nil return counts the
	// attempt as malformed and moves on to the next try.
	Accept func(raw string) error
}

// Attempt records one try against one backend.
type Attempt struct {
	Backend string
	Latency time.Duration
	Err     error
}

// Response is a successful generation.
type Response struct {
	Raw      string
	Backend  string
	Attempts []Attempt
	Elapsed  time.Duration
}
