package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/scamlens/scamlens/internal/domain"
)

type mockEmbedder struct {
	vec []float32
	err error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec}, nil
}

func TestDimensionChecked_Passes(t *testing.T) {
	d := NewDimensionChecked(&mockEmbedder{vec: []float32{1, 2, 3}}, 3)

	result, err := d.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 {
		t.Errorf("dimensions = %d, want 3", len(result.Embedding))
	}
}

func TestDimensionChecked_Mismatch(t *testing.T) {
	d := NewDimensionChecked(&mockEmbedder{vec: []float32{1, 2}}, 3)

	_, err := d.Embed(context.Background(), "text")
	if !errors.Is(err, domain.ErrEmbeddingDimMismatch) {
		t.Errorf("error %v does not wrap ErrEmbeddingDimMismatch", err)
	}
}

func TestDimensionChecked_InnerErrorPassesThrough(t *testing.T) {
	d := NewDimensionChecked(&mockEmbedder{err: domain.ErrEmbeddingUnavailable}, 3)

	_, err := d.Embed(context.Background(), "text")
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Errorf("error %v does not wrap ErrEmbeddingUnavailable", err)
	}
}
