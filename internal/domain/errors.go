package domain

import "errors"

var (
	// ErrEmbeddingUnavailable signals an unreachable or failing embedding endpoint.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrEmbeddingDimMismatch signals a vector whose length disagrees with the configured model dimensions.
	ErrEmbeddingDimMismatch = errors.New("embedding dimension mismatch")
	// ErrStoreUnavailable signals a vector store connectivity failure.
	ErrStoreUnavailable = errors.New("vector store unavailable")
	// ErrMalformedModelOutput signals a model response that fails the verdict schema check.
	ErrMalformedModelOutput = errors.New("malformed model output")
	// ErrAllBackendsExhausted signals that every configured model backend failed.
	ErrAllBackendsExhausted = errors.New("all backends exhausted")
	// ErrSeedPartialFailure signals a seed load whose failure rate exceeded the configured threshold.
	ErrSeedPartialFailure = errors.New("seed load partial failure")
	// ErrBusy signals that the classify concurrency limit is reached.
	ErrBusy = errors.New("busy")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
)
