// Package document persists labeled examples as Redis hashes under the FT
// index. Upserts are idempotent by content-derived ID.
package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/scamlens/scamlens/internal/db"
	"github.com/scamlens/scamlens/internal/domain"
	domdoc "github.com/scamlens/scamlens/internal/domain/document"
)

// IndexName is the FT index over the example collection.
var IndexName = domain.KeyPrefix + "examples:idx"

// UpsertOutcome describes what an idempotent upsert actually did.
type UpsertOutcome int

const (
	// UpsertCreated means the document did not exist before.
	UpsertCreated UpsertOutcome = iota
	// UpsertUnchanged means an identical document was already present (no-op).
	UpsertUnchanged
	// UpsertOverwritten means the ID existed with different content;
	// last-write-wins applied. Callers log this as a conflict warning.
	UpsertOverwritten
)

// store is the consumer interface for document persistence (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	ExistsMulti(ctx context.Context, keys []string) ([]bool, error)
	Del(ctx context.Context, key string) error
	SearchCount(ctx context.Context, index string) (int, error)
}

// Repo stores and fetches labeled example documents.
type Repo struct {
	store store
}

// New creates a document repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Upsert writes a document with its embedding. Re-upserting identical
// content is a no-op; different content under the same ID overwrites.
func (r *Repo) Upsert(ctx context.Context, doc *domdoc.Document, vector []float32) (UpsertOutcome, error) {
	key := docKey(doc.ID())

	existing, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return 0, storeErr(fmt.Errorf("read existing %s: %w", key, err))
	}

	outcome := UpsertCreated
	if len(existing) > 0 {
		if existing[fieldText] == doc.Text() && existing[fieldLabel] == string(doc.Label()) {
			return UpsertUnchanged, nil
		}
		outcome = UpsertOverwritten
	}

	if err := r.store.HSet(ctx, key, buildHashFields(doc, vector)); err != nil {
		return 0, storeErr(fmt.Errorf("hset %s: %w", key, err))
	}
	return outcome, nil
}

// UpsertBatch pipelines writes for documents already known to be absent.
// Vectors are positionally aligned with docs.
func (r *Repo) UpsertBatch(ctx context.Context, docs []domdoc.Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("docs/vectors length mismatch: %d != %d", len(docs), len(vectors))
	}
	items := make([]db.HashSetItem, len(docs))
	for i := range docs {
		items[i] = db.HashSetItem{
			Key:    docKey(docs[i].ID()),
			Fields: buildHashFields(&docs[i], vectors[i]),
		}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return storeErr(fmt.Errorf("hset batch: %w", err))
	}
	return nil
}

// ExistsBatch reports which of the given document IDs are present,
// positionally aligned with ids.
func (r *Repo) ExistsBatch(ctx context.Context, ids []string) ([]bool, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(id)
	}
	present, err := r.store.ExistsMulti(ctx, keys)
	if err != nil {
		return nil, storeErr(fmt.Errorf("exists batch: %w", err))
	}
	return present, nil
}

// Get returns a document by ID.
func (r *Repo) Get(ctx context.Context, id string) (domdoc.Document, error) {
	m, err := r.store.HGetAll(ctx, docKey(id))
	if err != nil {
		return domdoc.Document{}, storeErr(fmt.Errorf("hgetall %s: %w", docKey(id), err))
	}
	if len(m) == 0 {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	return parseHashFields(id, m), nil
}

// Delete removes a document by ID. Deleting an absent document returns
// domain.ErrDocumentNotFound.
func (r *Repo) Delete(ctx context.Context, id string) error {
	key := docKey(id)
	present, err := r.store.Exists(ctx, key)
	if err != nil {
		return storeErr(fmt.Errorf("exists %s: %w", key, err))
	}
	if !present {
		return domain.ErrDocumentNotFound
	}
	if err := r.store.Del(ctx, key); err != nil {
		return storeErr(fmt.Errorf("del %s: %w", key, err))
	}
	return nil
}

// Count returns the number of indexed examples.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, IndexName)
	if err != nil {
		return 0, storeErr(fmt.Errorf("search count: %w", err))
	}
	return n, nil
}

func docKey(id string) string {
	return fmt.Sprintf("%sexamples:%s", domain.KeyPrefix, id)
}

// storeErr tags connectivity failures so callers can match
// domain.ErrStoreUnavailable without knowing the db layer.
func storeErr(err error) error {
	var dbErr *db.Error
	if errors.As(err, &dbErr) {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return err
}
