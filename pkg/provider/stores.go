package provider

import (
	"context"

	"github.com/codescope/codescope/pkg/types"
)

// ChunkStore handles chunk storage operations.
type ChunkStore interface {
	// UpsertChunks stores chunks with their embeddings. Re-inserting a
	// chunk with an existing ID replaces it, so repeated indexing of
	// unchanged content leaves the store identical.
	UpsertChunks(chunks []*types.ChunkWithEmbedding) error

	// GetChunk retrieves a chunk by ID.
	GetChunk(id string) (*types.Chunk, error)

	// DeleteChunksByFile removes all chunks for a file.
	DeleteChunksByFile(filePath string) error
}

// Searcher handles search operations.
type Searcher interface {
	// Search performs vector, BM25 or hybrid search.
	Search(ctx context.Context, req *types.SearchRequest) ([]*types.SearchResult, error)
}

// MetadataStore handles index metadata.
type MetadataStore interface {
	// GetMetadata returns index metadata, or ErrNotFound when the index
	// has never been written.
	GetMetadata() (*types.IndexMetadata, error)

	// SetMetadata stores index metadata.
	SetMetadata(meta *types.IndexMetadata) error

	// GetStats returns store statistics.
	GetStats() (*types.StoreStats, error)
}

// FileHashStore records one content hash per indexed file. It is the
// source of truth for incremental change detection.
type FileHashStore interface {
	// GetFileHash returns the stored hash for a file, or ErrNotFound.
	GetFileHash(filePath string) (string, error)

	// SetFileHash stores the hash for a file. It is written only after
	// the file's chunks have been committed.
	SetFileHash(filePath, hash string) error

	// GetAllFileHashes returns all stored file hashes.
	GetAllFileHashes() (map[string]string, error)

	// DeleteFileHash removes a file from the hash store.
	DeleteFileHash(filePath string) error
}

// FileCommitter commits one file's index state atomically.
type FileCommitter interface {
	// CommitFile replaces a file's chunks and records its hash in a
	// single transaction. A crash mid-run leaves every previously
	// committed file intact and the interrupted file absent, so the
	// next run resumes from a valid state.
	CommitFile(filePath, hash string, chunks []*types.ChunkWithEmbedding) error
}

// Store is a minimal interface for basic store operations.
type Store interface {
	// Name returns the store name (e.g., "sqlitevec").
	Name() string

	// Init initializes the store at the given path with the expected
	// embedding dimension.
	Init(path string, dimensions int) error

	// Clear removes all indexed data but keeps the store usable.
	Clear() error

	// Close releases resources and closes connections.
	Close() error
}
