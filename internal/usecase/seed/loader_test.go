package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/scamlens/scamlens/internal/domain"
	"github.com/scamlens/scamlens/internal/domain/document"
)

// --- Mocks ---

type mockEmbedder struct {
	failTexts map[string]bool
	calls     int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.failTexts[text] {
		return domain.EmbeddingResult{}, domain.ErrEmbeddingUnavailable
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}, nil
}

type mockRepo struct {
	stored      map[string]bool
	upsertErr   error
	failUpserts int // fail this many UpsertBatch calls, then succeed
	upsertCalls int
}

func newMockRepo() *mockRepo {
	return &mockRepo{stored: map[string]bool{}}
}

func (m *mockRepo) ExistsBatch(_ context.Context, ids []string) ([]bool, error) {
	out := make([]bool, len(ids))
	for i, id := range ids {
		out[i] = m.stored[id]
	}
	return out, nil
}

func (m *mockRepo) UpsertBatch(_ context.Context, docs []document.Document, _ [][]float32) error {
	m.upsertCalls++
	if m.failUpserts > 0 {
		m.failUpserts--
		return fmt.Errorf("hset: %w", domain.ErrStoreUnavailable)
	}
	if m.upsertErr != nil {
		return m.upsertErr
	}
	for i := range docs {
		m.stored[docs[i].ID()] = true
	}
	return nil
}

func writeCorpus(t *testing.T, dir string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, "corpus.jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	return path
}

func newLoader(corpus string, dir string, embedder *mockEmbedder, repo *mockRepo) *Loader {
	return New(embedder, repo, Config{
		CorpusPath:       corpus,
		ManifestDir:      dir,
		BatchSize:        2,
		CheckpointEvery:  1,
		FailureThreshold: 0.5,
		StoreRetries:     1,
	}, zap.NewNop())
}

// --- Tests ---

func TestLoad_FreshCorpus(t *testing.T) {
	dir := t.TempDir()
	corpus := writeCorpus(t, dir,
		`{"text": "scam one", "label": "scam"}`,
		`{"text": "scam two", "label": "scam"}`,
		`{"text": "fine one", "label": "legitimate"}`,
	)
	repo := newMockRepo()

	report, err := newLoader(corpus, dir, &mockEmbedder{}, repo).Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.NewlyLoaded != 3 || report.AlreadyPresent != 0 || report.Failed != 0 {
		t.Errorf("report = %+v, want 3 loaded", report)
	}
	if len(repo.stored) != 3 {
		t.Errorf("stored = %d, want 3", len(repo.stored))
	}
}

func TestLoad_RerunIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	corpus := writeCorpus(t, dir,
		`{"text": "scam one", "label": "scam"}`,
		`{"text": "fine one", "label": "legitimate"}`,
	)
	repo := newMockRepo()
	embedder := &mockEmbedder{}

	if _, err := newLoader(corpus, dir, embedder, repo).Load(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	callsAfterFirst := embedder.calls

	report, err := newLoader(corpus, dir, embedder, repo).Load(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.NewlyLoaded != 0 {
		t.Errorf("second run loaded %d, want 0", report.NewlyLoaded)
	}
	if report.AlreadyPresent != 2 {
		t.Errorf("second run present = %d, want 2", report.AlreadyPresent)
	}
	if embedder.calls != callsAfterFirst {
		t.Error("second run re-embedded already-present records")
	}
}

func TestLoad_DeduplicatesWithinCorpus(t *testing.T) {
	dir := t.TempDir()
	corpus := writeCorpus(t, dir,
		`{"text": "same text", "label": "scam"}`,
		`{"text": "Same  Text", "label": "scam"}`,
	)
	repo := newMockRepo()

	report, err := newLoader(corpus, dir, &mockEmbedder{}, repo).Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.TotalRecords != 1 {
		t.Errorf("total = %d, want 1 after dedupe", report.TotalRecords)
	}
	if len(repo.stored) != 1 {
		t.Errorf("stored = %d, want 1", len(repo.stored))
	}
}

func TestLoad_EmbedFailureBelowThreshold(t *testing.T) {
	dir := t.TempDir()
	corpus := writeCorpus(t, dir,
		`{"text": "good one", "label": "scam"}`,
		`{"text": "bad one", "label": "scam"}`,
		`{"text": "good two", "label": "legitimate"}`,
	)
	repo := newMockRepo()
	embedder := &mockEmbedder{failTexts: map[string]bool{"bad one": true}}

	report, err := newLoader(corpus, dir, embedder, repo).Load(context.Background())
	if err != nil {
		t.Fatalf("failure rate 1/3 is under the 0.5 threshold, got: %v", err)
	}
	if report.Failed != 1 || report.NewlyLoaded != 2 {
		t.Errorf("report = %+v, want 1 failed and 2 loaded", report)
	}
	if len(report.FailedIDs) != 1 {
		t.Errorf("failed IDs = %v, want 1", report.FailedIDs)
	}
}

func TestLoad_RetriesFailedRecordsAfterRecovery(t *testing.T) {
	dir := t.TempDir()
	corpus := writeCorpus(t, dir,
		`{"text": "good one", "label": "scam"}`,
		`{"text": "flaky one", "label": "scam"}`,
		`{"text": "good two", "label": "legitimate"}`,
	)
	repo := newMockRepo()

	// run 1: the embedding provider fails for one record
	failing := &mockEmbedder{failTexts: map[string]bool{"flaky one": true}}
	report, err := newLoader(corpus, dir, failing, repo).Load(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if report.Failed != 1 || report.NewlyLoaded != 2 {
		t.Fatalf("first run report = %+v, want 1 failed and 2 loaded", report)
	}

	// run 2: same manifest dir, provider recovered
	report, err = newLoader(corpus, dir, &mockEmbedder{}, repo).Load(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.NewlyLoaded != 1 {
		t.Errorf("second run loaded = %d, want 1 (the previously failed record)", report.NewlyLoaded)
	}
	if report.AlreadyPresent != 2 {
		t.Errorf("second run present = %d, want 2", report.AlreadyPresent)
	}
	if !repo.stored[document.ContentID("flaky one")] {
		t.Error("previously failed record missing from the store after recovery")
	}
}

func TestLoad_PartialFailureAboveThreshold(t *testing.T) {
	dir := t.TempDir()
	corpus := writeCorpus(t, dir,
		`{"text": "bad one", "label": "scam"}`,
		`{"text": "bad two", "label": "scam"}`,
		`{"text": "good one", "label": "scam"}`,
	)
	repo := newMockRepo()
	embedder := &mockEmbedder{failTexts: map[string]bool{"bad one": true, "bad two": true}}

	report, err := newLoader(corpus, dir, embedder, repo).Load(context.Background())
	if !errors.Is(err, domain.ErrSeedPartialFailure) {
		t.Fatalf("error %v does not wrap ErrSeedPartialFailure", err)
	}

	var pf *PartialFailureError
	if !errors.As(err, &pf) {
		t.Fatalf("error %v is not *PartialFailureError", err)
	}
	if report.NewlyLoaded != 1 {
		t.Errorf("loaded = %d, want 1 (good records still ingested)", report.NewlyLoaded)
	}
}

func TestLoad_RetriesStoreErrors(t *testing.T) {
	dir := t.TempDir()
	corpus := writeCorpus(t, dir, `{"text": "scam one", "label": "scam"}`)
	repo := newMockRepo()
	repo.failUpserts = 1

	report, err := newLoader(corpus, dir, &mockEmbedder{}, repo).Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.NewlyLoaded != 1 {
		t.Errorf("loaded = %d, want 1 after retry", report.NewlyLoaded)
	}
	if repo.upsertCalls != 2 {
		t.Errorf("upsert calls = %d, want 2", repo.upsertCalls)
	}
}

func TestLoad_ManifestSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	corpus := writeCorpus(t, dir, `{"text": "scam one", "label": "scam"}`)
	repo := newMockRepo()

	if _, err := newLoader(corpus, dir, &mockEmbedder{}, repo).Load(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// second run against an empty store but the same manifest dir
	freshRepo := newMockRepo()
	embedder := &mockEmbedder{}
	report, err := newLoader(corpus, dir, embedder, freshRepo).Load(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.AlreadyPresent != 1 {
		t.Errorf("present = %d, want 1 from manifest", report.AlreadyPresent)
	}
	if embedder.calls != 0 {
		t.Error("manifest-known record should not be re-embedded")
	}
}

func TestLoad_MissingCorpusFile(t *testing.T) {
	dir := t.TempDir()
	_, err := newLoader(filepath.Join(dir, "missing.jsonl"), dir, &mockEmbedder{}, newMockRepo()).
		Load(context.Background())
	if err == nil {
		t.Fatal("expected error for missing corpus file")
	}
}
