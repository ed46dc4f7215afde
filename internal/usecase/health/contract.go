package health

import "context"

// DBPinger checks vector store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// BackendChecker checks one model backend.
type BackendChecker interface {
	Name() string
	HealthCheck(ctx context.Context) error
}
