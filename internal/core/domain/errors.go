package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown provider or source type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrNoCredentials indicates the workspace has no usable credential
	// for a provider. Fatal for the job; nothing is written.
	ErrNoCredentials = errors.New("no credentials for provider")

	// ErrNoTargets indicates neither the job nor the integration named
	// anything to sync. A silent full-provider scan is never attempted.
	ErrNoTargets = errors.New("no sync targets configured")

	// ErrRateLimited indicates the provider API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Vector search is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrQueueClosed indicates the job queue has been shut down.
	ErrQueueClosed = errors.New("queue closed")
)
