package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/scamlens/scamlens/internal/domain"
	"github.com/scamlens/scamlens/internal/metrics"
)

// BackendOptions holds per-backend orchestration settings.
type BackendOptions struct {
	// Timeout bounds a single attempt. Zero means no per-attempt deadline.
	Timeout time.Duration
	// Retries is the number of extra attempts after the first one fails.
	Retries int
}

type entry struct {
	backend Backend
	opts    BackendOptions
}

// Orchestrator walks an ordered backend chain until one attempt yields an
// acceptable completion. Order is fixed at construction: local backends
// first, remote fallbacks last.
type Orchestrator struct {
	chain  []entry
	logger *zap.Logger
}

// NewOrchestrator builds an orchestrator over the given backends, tried in
// the order supplied.
func NewOrchestrator(logger *zap.Logger) *Orchestrator {
	return &Orchestrator{logger: logger}
}

// Add appends a backend to the end of the chain.
func (o *Orchestrator) Add(b Backend, opts BackendOptions) {
	o.chain = append(o.chain, entry{backend: b, opts: opts})
}

// Backends returns the backends in chain order.
func (o *Orchestrator) Backends() []Backend {
	out := make([]Backend, 0, len(o.chain))
	for _, e := range o.chain {
		out = append(out, e.backend)
	}
	return out
}

// ExhaustedError reports that every backend attempt failed. It unwraps to
// domain.ErrAllBackendsExhausted; the individual attempt errors are kept for
// logging and inspection.
type ExhaustedError struct {
	Attempts []Attempt
	errs     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d backend attempts failed: %v", len(e.Attempts), e.errs)
}

func (e *ExhaustedError) Unwrap() error { return domain.ErrAllBackendsExhausted }

// Errors returns the individual attempt errors.
func (e *ExhaustedError) Errors() []error { return multierr.Errors(e.errs) }

// Generate runs the request down the chain. Each backend gets 1+Retries
// attempts under its own per-attempt timeout; a completion that fails
// req.Accept is treated as a failed attempt.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (Response, error) {
	if len(o.chain) == 0 {
		return Response{}, fmt.Errorf("no backends configured: %w", domain.ErrAllBackendsExhausted)
	}

	start := time.Now()

	var (
		attempts []Attempt
		errs     error
	)

	for _, e := range o.chain {
		maxAttempts := 1 + e.opts.Retries
		for try := 0; try < maxAttempts; try++ {
			if err := ctx.Err(); err != nil {
				return Response{}, fmt.Errorf("generate: %w", err)
			}

			raw, att := o.attempt(ctx, e, req)
			attempts = append(attempts, att)

			if att.Err == nil {
				o.logger.Debug("Backend attempt succeeded",
					zap.String("backend", att.Backend),
					zap.Duration("latency", att.Latency),
					zap.Int("attempt", len(attempts)),
				)
				return Response{
					Raw:      raw,
					Backend:  att.Backend,
					Attempts: attempts,
					Elapsed:  time.Since(start),
				}, nil
			}

			errs = multierr.Append(errs, fmt.Errorf("%s: %w", att.Backend, att.Err))
			o.logger.Warn("Backend attempt failed",
				zap.String("backend", att.Backend),
				zap.Int("try", try+1),
				zap.Int("max_attempts", maxAttempts),
				zap.Duration("latency", att.Latency),
				zap.Error(att.Err),
			)
		}
	}

	return Response{}, &ExhaustedError{Attempts: attempts, errs: errs}
}

func (o *Orchestrator) attempt(ctx context.Context, e entry, req Request) (string, Attempt) {
	attemptCtx := ctx
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	name := e.backend.Name()
	start := time.Now()

	raw, err := e.backend.Generate(attemptCtx, req.Prompt)

	latency := time.Since(start)

	if err == nil && req.Accept != nil {
		if acceptErr := req.Accept(raw); acceptErr != nil {
			err = fmt.Errorf("reject completion: %w", acceptErr)
		}
	}

	metrics.BackendAttemptsTotal.WithLabelValues(name, outcome(err)).Inc()
	metrics.BackendAttemptDuration.WithLabelValues(name).Observe(latency.Seconds())

	return raw, Attempt{Backend: name, Latency: latency, Err: err}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, domain.ErrMalformedModelOutput):
		return "malformed"
	default:
		return "error"
	}
}
