// Package search runs KNN queries against the example index and converts
// raw cosine distances into normalized similarity scores.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/scamlens/scamlens/internal/db"
	"github.com/scamlens/scamlens/internal/domain"
	domdoc "github.com/scamlens/scamlens/internal/domain/document"
	"github.com/scamlens/scamlens/internal/domain/retrieval"
	docrepo "github.com/scamlens/scamlens/internal/repository/document"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo implements the retriever's search contract.
type Repo struct {
	store store
}

// New creates a search repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// SearchKNN returns the topK nearest examples as unranked hits with
// normalized similarity scores.
func (r *Repo) SearchKNN(ctx context.Context, vector []float32, topK int) ([]retrieval.Hit, error) {
	q := &db.KNNQuery{
		IndexName:    docrepo.IndexName,
		Vector:       vector,
		K:            topK,
		ReturnFields: []string{"__text", "label", "source", "__vector_score"},
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		var dbErr *db.Error
		if errors.As(err, &dbErr) {
			return nil, fmt.Errorf("%w: search knn: %w", domain.ErrStoreUnavailable, err)
		}
		return nil, fmt.Errorf("search knn: %w", err)
	}

	return parseHits(sr), nil
}

// parseHits converts db.SearchResult into hits. The store reports cosine
// distance; similarity = 1 - distance, clamped to [0,1]. This convention is
// fixed per deployment: the index is created with DISTANCE_METRIC COSINE
// and scores are meaningless under any other metric.
func parseHits(sr *db.SearchResult) []retrieval.Hit {
	if sr == nil || sr.Total == 0 {
		return nil
	}

	prefix := domain.KeyPrefix + "examples:"
	hits := make([]retrieval.Hit, 0, len(sr.Entries))

	for _, entry := range sr.Entries {
		id := strings.TrimPrefix(entry.Key, prefix)
		label, err := domdoc.ParseLabel(entry.Fields["label"])
		if err != nil {
			label = domdoc.LabelUnknown
		}
		doc := domdoc.Reconstruct(id, entry.Fields["__text"], label, entry.Fields["source"])
		hits = append(hits, retrieval.NewHit(doc, cosineSimilarity(entry.Score)))
	}

	return hits
}

func cosineSimilarity(distance float64) float64 {
	sim := 1.0 - distance
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
