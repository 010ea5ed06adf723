package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrSectionNotFound signals a missing section.
	ErrSectionNotFound = errors.New("section not found")
	// ErrInvalidQuery signals a malformed query (empty text, non-positive budget).
	ErrInvalidQuery = errors.New("invalid query")
	// ErrModeNotAllowed signals a search mode outside the caller's tier.
	ErrModeNotAllowed = errors.New("search mode not allowed")
	// ErrVectorDimMismatch signals a vector dimension mismatch between models.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrRetrievalFailed signals a similarity-search collaborator failure.
	ErrRetrievalFailed = errors.New("retrieval failed")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmbeddingUnavailable signals that the requested embedding model is not loaded.
	ErrEmbeddingUnavailable = errors.New("embedding model unavailable")
)
