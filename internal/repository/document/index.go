package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/scamlens/scamlens/internal/db"
	"github.com/scamlens/scamlens/internal/domain"
)

// HNSWConfig holds HNSW build parameters for the example index.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// IndexDefinition builds the FT definition for the example collection. The
// vector field is fixed to FLOAT32/COSINE for the configured embedding
// dimensions; retrieval scoring assumes cosine distance.
func IndexDefinition(dim int, hnsw HNSWConfig) *db.IndexDefinition {
	return &db.IndexDefinition{
		Name:     IndexName,
		Prefixes: []string{domain.KeyPrefix + "examples:"},
		Fields: []db.IndexField{
			{
				Name:              fieldVector,
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         dim,
				VectorDistance:    db.DistanceCosine,
				VectorM:           hnsw.M,
				VectorEFConstruct: hnsw.EFConstruct,
			},
			{Name: fieldLabel, Type: db.IndexFieldTag},
		},
	}
}

// EnsureIndex creates the example index if it does not exist yet.
func EnsureIndex(ctx context.Context, im db.IndexManager, dim int, hnsw HNSWConfig) error {
	exists, err := im.IndexExists(ctx, IndexName)
	if err != nil {
		return storeErr(fmt.Errorf("index exists: %w", err))
	}
	if exists {
		return nil
	}
	if err := im.CreateIndex(ctx, IndexDefinition(dim, hnsw)); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return storeErr(fmt.Errorf("create index: %w", err))
	}
	return nil
}

// RecreateIndex drops and recreates the example index. Used when the
// embedding dimensions or HNSW parameters changed; documents stay in place
// and are re-indexed by the engine.
func RecreateIndex(ctx context.Context, im db.IndexManager, dim int, hnsw HNSWConfig) error {
	if err := im.DropIndex(ctx, IndexName); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return storeErr(fmt.Errorf("drop index: %w", err))
	}
	return EnsureIndex(ctx, im, dim, hnsw)
}
