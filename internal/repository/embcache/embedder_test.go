package embcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/scamlens/scamlens/internal/db"
	"github.com/scamlens/scamlens/internal/domain"
)

// --- Mocks ---

type mockEmbedder struct {
	result domain.EmbeddingResult
	err    error
	calls  int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return m.result, nil
}

type mockKV struct {
	data        map[string][]byte
	ttls        map[string]time.Duration
	getErr      error
	setErr      error
	setTTLCalls int
}

func newMockKV() *mockKV {
	return &mockKV{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (m *mockKV) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKV) Set(_ context.Context, key string, value []byte) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *mockKV) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.setTTLCalls++
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

// --- Tests ---

func TestCachedEmbedder_MissThenHit(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, -0.2, 0.3},
		TotalTokens:  7,
		PromptTokens: 7,
	}}
	kv := newMockKV()
	c := New(inner, kv, "bge-small", 0, nil, zap.NewNop())

	first, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("inner calls = %d, want 1", inner.calls)
	}
	if first.TotalTokens != 7 {
		t.Errorf("miss TotalTokens = %d, want 7", first.TotalTokens)
	}

	second, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls after hit = %d, want 1", inner.calls)
	}
	if second.TotalTokens != 0 {
		t.Errorf("hit TotalTokens = %d, want 0", second.TotalTokens)
	}
	if len(second.Embedding) != 3 || second.Embedding[0] != 0.1 {
		t.Errorf("hit embedding = %v, want %v", second.Embedding, first.Embedding)
	}
}

func TestCachedEmbedder_ModelKeyedCache(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	kv := newMockKV()

	a := New(inner, kv, "model-a", 0, nil, zap.NewNop())
	b := New(inner, kv, "model-b", 0, nil, zap.NewNop())

	if _, err := a.Embed(context.Background(), "text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := b.Embed(context.Background(), "text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2 (per-model cache keys)", inner.calls)
	}
}

func TestCachedEmbedder_TTL(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	kv := newMockKV()
	c := New(inner, kv, "m", time.Hour, nil, zap.NewNop())

	if _, err := c.Embed(context.Background(), "text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kv.setTTLCalls != 1 {
		t.Errorf("SetWithTTL calls = %d, want 1", kv.setTTLCalls)
	}
	for _, ttl := range kv.ttls {
		if ttl != time.Hour {
			t.Errorf("ttl = %v, want %v", ttl, time.Hour)
		}
	}
}

func TestCachedEmbedder_StoreErrorsTolerated(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 2}}}
	kv := newMockKV()
	kv.getErr = errors.New("connection refused")
	kv.setErr = errors.New("connection refused")
	c := New(inner, kv, "m", 0, nil, zap.NewNop())

	result, err := c.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("cache errors must not fail embedding: %v", err)
	}
	if len(result.Embedding) != 2 {
		t.Errorf("embedding = %v, want 2 elements", result.Embedding)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
}

func TestCachedEmbedder_CorruptCacheFallsThrough(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	kv := newMockKV()
	c := New(inner, kv, "m", 0, nil, zap.NewNop())

	kv.data[c.cacheKey("text")] = []byte{1, 2, 3} // not a multiple of 4

	if _, err := c.Embed(context.Background(), "text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1 (corrupt entry ignored)", inner.calls)
	}
}

func TestCachedEmbedder_InnerErrorPropagates(t *testing.T) {
	inner := &mockEmbedder{err: domain.ErrEmbeddingUnavailable}
	c := New(inner, newMockKV(), "m", 0, nil, zap.NewNop())

	_, err := c.Embed(context.Background(), "text")
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Errorf("err = %v, want ErrEmbeddingUnavailable", err)
	}
}

func TestVectorCacheRoundtrip(t *testing.T) {
	v := []float32{0.5, -1.25, 3}
	got, err := bytesToVector(vectorToCacheBytes(v))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(v) {
		t.Fatalf("len = %d, want %d", len(got), len(v))
	}
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("element %d = %v, want %v", i, got[i], v[i])
		}
	}
}
