// Package retrieve turns a message into a ranked set of similar labeled
// examples from the vector store.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/scamlens/scamlens/internal/domain"
	"github.com/scamlens/scamlens/internal/domain/retrieval"
	"github.com/scamlens/scamlens/internal/metrics"
)

// Transient store errors are retried here, not inside the adapter.
const (
	searchRetries = 1
	searchBackoff = 200 * time.Millisecond
)

// searcher is the slice of the search repository the retriever needs.
type searcher interface {
	SearchKNN(ctx context.Context, vector []float32, topK int) ([]retrieval.Hit, error)
}

// Config holds retrieval tuning parameters.
type Config struct {
	// TopK is the maximum number of examples returned per query.
	TopK int
	// MinSimilarity drops hits scoring below it.
	MinSimilarity float64
	// OversampleFactor widens the KNN fetch so threshold filtering still
	// leaves TopK candidates when near-duplicates or weak hits fall out.
	OversampleFactor int
}

// Retriever embeds a query and searches the index for its nearest labeled
// examples.
type Retriever struct {
	embedder domain.Embedder
	searcher searcher
	cfg      Config
	logger   *zap.Logger
}

// New creates a retriever.
func New(embedder domain.Embedder, searcher searcher, cfg Config, logger *zap.Logger) *Retriever {
	return &Retriever{
		embedder: embedder,
		searcher: searcher,
		cfg:      cfg,
		logger:   logger,
	}
}

// Retrieve embeds the message and returns up to TopK examples above the
// similarity threshold, ranked by descending score. An empty store yields an
// empty result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, message string) (retrieval.Result, error) {
	embedded, err := r.embedder.Embed(ctx, message)
	if err != nil {
		return retrieval.Result{}, fmt.Errorf("embed query: %w", err)
	}

	fetchK := r.cfg.TopK * r.cfg.OversampleFactor
	if fetchK < r.cfg.TopK {
		fetchK = r.cfg.TopK
	}

	hits, err := r.search(ctx, embedded.Embedding, fetchK)
	if err != nil {
		return retrieval.Result{}, fmt.Errorf("search: %w", err)
	}

	kept := make([]retrieval.Hit, 0, len(hits))
	seen := make(map[string]struct{}, len(hits))
	for i := range hits {
		hit := hits[i]
		if hit.Score() < r.cfg.MinSimilarity {
			continue
		}
		id := hit.Document().ID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		kept = append(kept, hit)
	}

	result := retrieval.Ranked(kept, r.cfg.TopK)
	metrics.RetrievalHits.Observe(float64(result.Len()))

	r.logger.Debug("Retrieval completed",
		zap.Int("fetched", len(hits)),
		zap.Int("kept", result.Len()),
		zap.Float64("min_similarity", r.cfg.MinSimilarity),
	)

	return result, nil
}

func (r *Retriever) search(ctx context.Context, vector []float32, k int) ([]retrieval.Hit, error) {
	var lastErr error
	for attempt := 0; attempt <= searchRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(searchBackoff * time.Duration(1<<(attempt-1))):
			}
		}

		hits, err := r.searcher.SearchKNN(ctx, vector, k)
		if err == nil {
			return hits, nil
		}
		lastErr = err

		if !errors.Is(err, domain.ErrStoreUnavailable) {
			break
		}
		r.logger.Warn("Vector search failed",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return nil, lastErr
}
