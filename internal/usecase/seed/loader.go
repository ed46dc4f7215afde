package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/scamlens/scamlens/internal/domain"
	"github.com/scamlens/scamlens/internal/domain/document"
	"github.com/scamlens/scamlens/internal/metrics"
)

// UpsertResult is the per-record outcome of one ingestion pass.
type UpsertResult string

// Per-record outcomes.
const (
	ResultLoaded  UpsertResult = "loaded"
	ResultPresent UpsertResult = "present"
	ResultFailed  UpsertResult = "failed"
)

// repository is the slice of the document repository the loader needs.
type repository interface {
	ExistsBatch(ctx context.Context, ids []string) ([]bool, error)
	UpsertBatch(ctx context.Context, docs []document.Document, vectors [][]float32) error
}

// Config holds seed loading settings.
type Config struct {
	CorpusPath      string
	ManifestDir     string
	BatchSize       int
	CheckpointEvery int
	// FailureThreshold is the failed-record rate above which the run
	// reports partial failure.
	FailureThreshold float64
	// StoreRetries is the number of extra tries for a failed batch write.
	StoreRetries int
}

// Report summarizes one ingestion run.
type Report struct {
	TotalRecords   int
	AlreadyPresent int
	NewlyLoaded    int
	Failed         int
	FailedIDs      []string
	SkippedLines   []LineError
	Elapsed        time.Duration
}

// FailureRate returns the fraction of records that failed.
func (r *Report) FailureRate() float64 {
	if r.TotalRecords == 0 {
		return 0
	}
	return float64(r.Failed) / float64(r.TotalRecords)
}

// PartialFailureError reports a run whose failure rate crossed the
// threshold. The store keeps whatever was written; rerunning resumes from
// the manifest.
type PartialFailureError struct {
	Report Report
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("seed load: %d of %d records failed (%.1f%%)",
		e.Report.Failed, e.Report.TotalRecords, e.Report.FailureRate()*100)
}

func (e *PartialFailureError) Unwrap() error { return domain.ErrSeedPartialFailure }

// Loader ingests the labeled corpus into the vector store.
type Loader struct {
	embedder domain.Embedder
	repo     repository
	cfg      Config
	logger   *zap.Logger
}

// New creates a seed loader.
func New(embedder domain.Embedder, repo repository, cfg Config, logger *zap.Logger) *Loader {
	return &Loader{
		embedder: embedder,
		repo:     repo,
		cfg:      cfg,
		logger:   logger,
	}
}

// Load reads the corpus and upserts every example that is not already in the
// store. The run is idempotent: reruns skip records the store or the
// manifest already has. Individual record failures are tallied, not fatal;
// the run errors only when the failure rate crosses the threshold.
func (l *Loader) Load(ctx context.Context) (Report, error) {
	start := time.Now()

	docs, lineErrs, err := readCorpus(l.cfg.CorpusPath)
	if err != nil {
		return Report{}, err
	}
	docs = dedupe(docs)

	for i := range lineErrs {
		l.logger.Warn("Skipping corpus line", zap.Int("line", lineErrs[i].Line), zap.Error(lineErrs[i].Err))
	}

	tracker, err := newManifestTracker(l.cfg.ManifestDir, l.cfg.CheckpointEvery)
	if err != nil {
		return Report{}, err
	}

	report := Report{TotalRecords: len(docs), SkippedLines: lineErrs}
	l.logger.Info("Seed load starting",
		zap.String("corpus", l.cfg.CorpusPath),
		zap.Int("records", len(docs)),
		zap.Int("skipped_lines", len(lineErrs)),
	)

	for offset := 0; offset < len(docs); offset += l.cfg.BatchSize {
		end := offset + l.cfg.BatchSize
		if end > len(docs) {
			end = len(docs)
		}
		if err := l.loadBatch(ctx, docs[offset:end], tracker, &report); err != nil {
			flushErr := tracker.Flush()
			return report, errors.Join(err, flushErr)
		}
	}

	if err := tracker.Flush(); err != nil {
		return report, err
	}

	report.Elapsed = time.Since(start)
	cumulative := tracker.Snapshot()
	l.logger.Info("Seed load finished",
		zap.Int("loaded", report.NewlyLoaded),
		zap.Int("present", report.AlreadyPresent),
		zap.Int("failed", report.Failed),
		zap.Int("manifest_loaded_total", cumulative.Loaded),
		zap.Int("manifest_failed_total", cumulative.Failed),
		zap.Duration("elapsed", report.Elapsed),
	)

	if report.TotalRecords > 0 && report.FailureRate() > l.cfg.FailureThreshold {
		return report, &PartialFailureError{Report: report}
	}
	return report, nil
}

func (l *Loader) loadBatch(
	ctx context.Context, batch []document.Document,
	tracker *manifestTracker, report *Report,
) error {
	ids := make([]string, len(batch))
	for i := range batch {
		ids[i] = batch[i].ID()
	}

	exists, err := l.existsWithRetry(ctx, ids)
	if err != nil {
		return fmt.Errorf("check batch: %w", err)
	}

	var (
		pending []document.Document
		vectors [][]float32
	)

	for i := range batch {
		doc := batch[i]
		if exists[i] || tracker.Seen(doc.ID()) {
			report.AlreadyPresent++
			metrics.SeedRecordsTotal.WithLabelValues(string(ResultPresent)).Inc()
			if err := tracker.Record(doc.ID(), ResultPresent); err != nil {
				l.logger.Warn("Manifest save failed", zap.Error(err))
			}
			continue
		}

		embedded, err := l.embedder.Embed(ctx, doc.Text())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.recordFailure(doc.ID(), tracker, report, err)
			continue
		}

		pending = append(pending, doc)
		vectors = append(vectors, embedded.Embedding)
	}

	if len(pending) == 0 {
		return nil
	}

	if err := l.upsertWithRetry(ctx, pending, vectors); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		for i := range pending {
			l.recordFailure(pending[i].ID(), tracker, report, err)
		}
		return nil
	}

	for i := range pending {
		report.NewlyLoaded++
		metrics.SeedRecordsTotal.WithLabelValues(string(ResultLoaded)).Inc()
		if err := tracker.Record(pending[i].ID(), ResultLoaded); err != nil {
			l.logger.Warn("Manifest save failed", zap.Error(err))
		}
	}
	return nil
}

func (l *Loader) recordFailure(id string, tracker *manifestTracker, report *Report, cause error) {
	report.Failed++
	report.FailedIDs = append(report.FailedIDs, id)
	metrics.SeedRecordsTotal.WithLabelValues(string(ResultFailed)).Inc()
	l.logger.Error("Seed record failed", zap.String("id", id), zap.Error(cause))
	if err := tracker.Record(id, ResultFailed); err != nil {
		l.logger.Warn("Manifest save failed", zap.Error(err))
	}
}

func (l *Loader) existsWithRetry(ctx context.Context, ids []string) ([]bool, error) {
	var out []bool
	err := l.withRetry(ctx, func() error {
		var err error
		out, err = l.repo.ExistsBatch(ctx, ids)
		return err
	})
	return out, err
}

func (l *Loader) upsertWithRetry(ctx context.Context, docs []document.Document, vectors [][]float32) error {
	return l.withRetry(ctx, func() error {
		return l.repo.UpsertBatch(ctx, docs, vectors)
	})
}

// withRetry reruns fn on store errors with exponential backoff. Non-store
// errors fail immediately.
func (l *Loader) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	tries := l.cfg.StoreRetries + 1
	for attempt := 0; attempt < tries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, domain.ErrStoreUnavailable) {
			return lastErr
		}

		if attempt < tries-1 {
			backoff := 300 * time.Millisecond * time.Duration(1<<attempt)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

// dedupe drops repeated content IDs within one corpus, keeping the first
// occurrence.
func dedupe(docs []document.Document) []document.Document {
	seen := make(map[string]struct{}, len(docs))
	out := docs[:0]
	for i := range docs {
		id := docs[i].ID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, docs[i])
	}
	return out
}
