// Package corpus manages individual labeled examples outside of bulk
// seeding: runtime additions from reviewed reports and lookups by ID.
package corpus

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/scamlens/scamlens/internal/domain"
	"github.com/scamlens/scamlens/internal/domain/document"
	docrepo "github.com/scamlens/scamlens/internal/repository/document"
)

// repository is the slice of the document repository this service needs.
type repository interface {
	Upsert(ctx context.Context, doc *document.Document, vector []float32) (docrepo.UpsertOutcome, error)
	Get(ctx context.Context, id string) (document.Document, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// Service adds and fetches single labeled examples.
type Service struct {
	embedder domain.Embedder
	repo     repository
	logger   *zap.Logger
}

// New creates a corpus service.
func New(embedder domain.Embedder, repo repository, logger *zap.Logger) *Service {
	return &Service{embedder: embedder, repo: repo, logger: logger}
}

// Add validates, embeds and stores one labeled example. Re-adding identical
// content is a no-op; the same content under a different label overwrites
// (last-write-wins) and is surfaced as an outcome, not an error.
func (s *Service) Add(ctx context.Context, text string, label document.Label, source string) (document.Document, docrepo.UpsertOutcome, error) {
	doc, err := document.New(text, label, source)
	if err != nil {
		return document.Document{}, 0, fmt.Errorf("invalid example: %w", err)
	}

	embedded, err := s.embedder.Embed(ctx, doc.Text())
	if err != nil {
		return document.Document{}, 0, fmt.Errorf("embed example: %w", err)
	}

	outcome, err := s.repo.Upsert(ctx, &doc, embedded.Embedding)
	if err != nil {
		return document.Document{}, 0, fmt.Errorf("store example: %w", err)
	}

	if outcome == docrepo.UpsertOverwritten {
		s.logger.Warn("Example content conflict, last write wins",
			zap.String("document_id", doc.ID()),
			zap.String("label", string(doc.Label())),
		)
	}
	return doc, outcome, nil
}

// Get returns a stored example by its content-derived ID.
func (s *Service) Get(ctx context.Context, id string) (document.Document, error) {
	return s.repo.Get(ctx, id)
}

// Delete removes a stored example, e.g. after a mislabeled report is pulled
// from review.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Example removed", zap.String("document_id", id))
	return nil
}

// Count returns the number of indexed examples.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
