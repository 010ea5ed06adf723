package health

import "context"

// StorePinger checks section store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks large-model availability and reports whether
// the degraded on-the-fly path is live.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
	SmallAvailable() bool
}
