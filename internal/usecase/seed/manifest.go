package seed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Manifest records ingestion progress so an interrupted load resumes instead
// of re-embedding everything.
type Manifest struct {
	ProcessedIDs map[string]struct{} `json:"-"`
	Loaded       int                 `json:"loaded"`
	Present      int                 `json:"present"`
	Failed       int                 `json:"failed"`
	UpdatedAt    time.Time           `json:"updated_at"`

	// Processed is the serialized form of ProcessedIDs.
	Processed []string `json:"processed_ids"`
}

// manifestTracker persists the manifest as a JSON file, saved every
// saveEvery records and on Flush. Writes go through a temp file and rename
// so a crash never leaves a truncated manifest.
type manifestTracker struct {
	mu        sync.Mutex
	manifest  Manifest
	path      string
	saveEvery int
	dirty     int
}

// newManifestTracker creates a tracker, resuming from an existing manifest
// file when one is present.
func newManifestTracker(dir string, saveEvery int) (*manifestTracker, error) {
	path := filepath.Join(filepath.Clean(dir), "seed-manifest.json")
	mt := &manifestTracker{
		path:      path,
		saveEvery: saveEvery,
		manifest:  Manifest{ProcessedIDs: make(map[string]struct{})},
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &mt.manifest); err != nil {
			return nil, fmt.Errorf("parse manifest %s: %w", path, err)
		}
		mt.manifest.ProcessedIDs = make(map[string]struct{}, len(mt.manifest.Processed))
		for _, id := range mt.manifest.Processed {
			mt.manifest.ProcessedIDs[id] = struct{}{}
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	return mt, nil
}

// Seen reports whether the document was already processed in a prior run.
func (mt *manifestTracker) Seen(id string) bool {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	_, ok := mt.manifest.ProcessedIDs[id]
	return ok
}

// Record marks one document with the given outcome. Only committed records
// (loaded or already present) become processed IDs; failed ones stay out of
// the manifest so a rerun retries them.
func (mt *manifestTracker) Record(id string, outcome UpsertResult) error {
	mt.mu.Lock()
	switch outcome {
	case ResultLoaded:
		mt.manifest.Loaded++
		mt.markProcessed(id)
	case ResultPresent:
		mt.manifest.Present++
		mt.markProcessed(id)
	case ResultFailed:
		mt.manifest.Failed++
	}
	mt.manifest.UpdatedAt = time.Now()
	mt.dirty++
	shouldSave := mt.dirty >= mt.saveEvery
	mt.mu.Unlock()

	if shouldSave {
		return mt.Flush()
	}
	return nil
}

// markProcessed adds id to the committed set. Callers hold mu.
func (mt *manifestTracker) markProcessed(id string) {
	if _, dup := mt.manifest.ProcessedIDs[id]; !dup {
		mt.manifest.ProcessedIDs[id] = struct{}{}
		mt.manifest.Processed = append(mt.manifest.Processed, id)
	}
}

// Snapshot returns a copy of the current counters.
func (mt *manifestTracker) Snapshot() Manifest {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return Manifest{
		Loaded:    mt.manifest.Loaded,
		Present:   mt.manifest.Present,
		Failed:    mt.manifest.Failed,
		UpdatedAt: mt.manifest.UpdatedAt,
	}
}

// Flush writes the manifest to disk.
func (mt *manifestTracker) Flush() error {
	mt.mu.Lock()
	data, err := json.MarshalIndent(mt.manifest, "", "  ")
	if err != nil {
		mt.mu.Unlock()
		return fmt.Errorf("marshal manifest: %w", err)
	}
	mt.dirty = 0
	mt.mu.Unlock()

	tmp := mt.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, mt.path); err != nil {
		return fmt.Errorf("rename manifest: %w", err)
	}
	return nil
}
