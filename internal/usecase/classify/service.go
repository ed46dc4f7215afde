// Package classify runs the full query path: retrieve similar examples,
// assemble the prompt, and drive the model backend chain to a verdict.
package classify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scamlens/scamlens/internal/domain"
	"github.com/scamlens/scamlens/internal/domain/retrieval"
	"github.com/scamlens/scamlens/internal/domain/verdict"
	"github.com/scamlens/scamlens/internal/metrics"
	"github.com/scamlens/scamlens/internal/usecase/llm"
)

type retriever interface {
	Retrieve(ctx context.Context, message string) (retrieval.Result, error)
}

type generator interface {
	Generate(ctx context.Context, req llm.Request) (llm.Response, error)
}

// Config holds classification settings.
type Config struct {
	// MaxConcurrent bounds in-flight classifications. Requests beyond it
	// are rejected with domain.ErrBusy rather than queued.
	MaxConcurrent int
	// PromptBudgetBytes caps assembled prompt size.
	PromptBudgetBytes int
}

// Service classifies messages against the labeled example corpus.
type Service struct {
	retriever retriever
	generator generator
	cfg       Config
	slots     chan struct{}
	logger    *zap.Logger
}

// New creates a classification service.
func New(retriever retriever, generator generator, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		retriever: retriever,
		generator: generator,
		cfg:       cfg,
		slots:     make(chan struct{}, cfg.MaxConcurrent),
		logger:    logger,
	}
}

// Classify produces a verdict for one message. When all concurrency slots
// are taken it fails immediately with domain.ErrBusy so the caller can shed
// load instead of piling up behind slow model backends.
func (s *Service) Classify(ctx context.Context, message string) (verdict.Verdict, error) {
	select {
	case s.slots <- struct{}{}:
		defer func() { <-s.slots }()
	default:
		metrics.ClassifyRejectedTotal.Inc()
		return verdict.Verdict{}, fmt.Errorf("%d classifications in flight: %w",
			s.cfg.MaxConcurrent, domain.ErrBusy)
	}

	requestID := uuid.NewString()
	logger := s.logger.With(zap.String("verdict_id", requestID))

	result, err := s.retriever.Retrieve(ctx, message)
	if err != nil {
		return verdict.Verdict{}, fmt.Errorf("retrieve: %w", err)
	}

	prompt, included := BuildPrompt(message, result, s.cfg.PromptBudgetBytes)
	if len(included) < result.Len() {
		logger.Warn("Prompt budget dropped examples",
			zap.Int("retrieved", result.Len()),
			zap.Int("included", len(included)),
			zap.Int("budget_bytes", s.cfg.PromptBudgetBytes),
		)
	}

	resp, err := s.generator.Generate(ctx, llm.Request{
		Prompt: prompt,
		Accept: verdict.Validate,
	})
	if err != nil {
		return verdict.Verdict{}, fmt.Errorf("generate: %w", err)
	}

	label, confidence, rationale, err := verdict.Parse(resp.Raw)
	if err != nil {
		// Accept already vetted this output, a parse failure here is a bug.
		return verdict.Verdict{}, fmt.Errorf("parse accepted output: %w", err)
	}

	supporting := make([]string, 0, len(included))
	for i := range included {
		supporting = append(supporting, included[i].Document().ID())
	}

	v := verdict.Verdict{
		ID:                    requestID,
		Label:                 label,
		Confidence:            confidence,
		Rationale:             rationale,
		SupportingDocumentIDs: supporting,
		Backend:               resp.Backend,
		AttemptCount:          len(resp.Attempts),
		Elapsed:               resp.Elapsed,
	}

	logger.Info("Classification completed",
		zap.String("label", string(v.Label)),
		zap.Float64("confidence", v.Confidence),
		zap.String("backend", v.Backend),
		zap.Int("attempts", v.AttemptCount),
		zap.Int("examples", len(supporting)),
		zap.Duration("elapsed", v.Elapsed),
	)

	return v, nil
}
