// Package embedding decorates an embedding provider with the checks and
// observability the rest of the pipeline relies on.
package embedding

import (
	"context"
	"fmt"

	"github.com/scamlens/scamlens/internal/domain"
)

// DimensionChecked rejects vectors whose length differs from the configured
// index dimensionality. Storing a mismatched vector would poison the index,
// so this fails fast instead.
type DimensionChecked struct {
	inner      domain.Embedder
	dimensions int
}

// NewDimensionChecked wraps an embedder with a dimensionality check.
func NewDimensionChecked(inner domain.Embedder, dimensions int) *DimensionChecked {
	return &DimensionChecked{inner: inner, dimensions: dimensions}
}

// Embed delegates to the inner embedder and validates the vector length.
func (d *DimensionChecked) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	result, err := d.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}

	if len(result.Embedding) != d.dimensions {
		return domain.EmbeddingResult{}, fmt.Errorf(
			"got %d dimensions, index expects %d: %w",
			len(result.Embedding), d.dimensions, domain.ErrEmbeddingDimMismatch,
		)
	}

	return result, nil
}
