package types

import "errors"

// Sentinel errors for common error conditions.
var (
	// ErrNotFound is returned when a requested resource is not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig is returned when configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrProviderNotAvailable is returned when a provider is not available.
	ErrProviderNotAvailable = errors.New("provider not available")

	// ErrProviderFatal is returned when a provider rejects the request
	// itself, for example bad credentials or an invalid model. Retrying
	// cannot help, so an indexing run aborts instead of degrading.
	ErrProviderFatal = errors.New("provider rejected request")

	// ErrIndexNotFound is returned when the index doesn't exist.
	ErrIndexNotFound = errors.New("index not found")

	// ErrIndexLocked is returned when another process holds the index lock.
	ErrIndexLocked = errors.New("index is locked by another process")

	// ErrMigrationRequired is returned when the stored index was built with
	// a different embedding provider, model or dimension than the active
	// configuration. A forced re-index clears the condition.
	ErrMigrationRequired = errors.New("index migration required")

	// ErrStoreCorrupt is returned when the index store is unusable, for
	// example when stored vector dimensions contradict the recorded
	// metadata. Deleting the index database and re-indexing recovers.
	ErrStoreCorrupt = errors.New("index store is corrupt")

	// ErrParseError is returned when parsing fails.
	ErrParseError = errors.New("parse error")

	// ErrEmbeddingFailed is returned when embedding generation fails.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrSearchFailed is returned when search fails.
	ErrSearchFailed = errors.New("search failed")

	// ErrStoreFailed is returned when store operation fails.
	ErrStoreFailed = errors.New("store operation failed")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("operation timed out")

	// ErrCancelled is returned when an operation is cancelled.
	ErrCancelled = errors.New("operation cancelled")
)
