// Package types contains shared data types used across codescope.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// SourceFile represents a source code file to be indexed.
type SourceFile struct {
	Path     string // Path relative to the project root
	Content  []byte // File content
	Language string // Detected language (go, python, javascript, etc.)
	Hash     string // SHA256 hash for incremental indexing
}

// ComputeHash calculates SHA256 hash of the file content.
func (f *SourceFile) ComputeHash() string {
	h := sha256.Sum256(f.Content)
	return hex.EncodeToString(h[:])
}

// ChunkType represents the type of code chunk.
type ChunkType string

const (
	ChunkTypeFunction ChunkType = "function"
	ChunkTypeClass    ChunkType = "class"
	ChunkTypeMethod   ChunkType = "method"
	ChunkTypeBlock    ChunkType = "block"
	ChunkTypeFile     ChunkType = "file"
)

// Chunk represents a piece of code that will be embedded.
type Chunk struct {
	ID         string    // Deterministic ID, see ChunkID
	FilePath   string    // Path to source file
	Language   string    // Programming language
	Content    string    // Chunk content
	ChunkType  ChunkType // Type of chunk
	Name       string    // Name of function/class/method
	ParentName string    // Parent scope name
	StartLine  int       // Starting line number (1-based)
	EndLine    int       // Ending line number (1-based)
}

// ChunkID builds a deterministic chunk identifier from the file path,
// the chunk's position within the file, and the enclosing symbol name.
// It does not depend on chunk content, so IDs stay stable as long as
// the file's chunk layout is unchanged.
func ChunkID(filePath string, index int, symbol string) string {
	h := sha256.Sum256([]byte(filePath + "|" + strconv.Itoa(index) + "|" + symbol))
	return filePath + "#" + strconv.Itoa(index) + ":" + hex.EncodeToString(h[:4])
}

// ChunkWithEmbedding is a Chunk with its vector embedding.
type ChunkWithEmbedding struct {
	Chunk     *Chunk
	Embedding []float32
}

// SearchMode represents the type of search to perform.
type SearchMode string

const (
	SearchModeVector SearchMode = "vector"
	SearchModeBM25   SearchMode = "bm25"
	SearchModeHybrid SearchMode = "hybrid"
)

// SearchFilters contains filters for search queries.
type SearchFilters struct {
	Languages  []string    // Filter by language
	ChunkTypes []ChunkType // Filter by chunk type
	PathPrefix string      // Restrict results to paths under this prefix
}

// SearchRequest represents a search query.
type SearchRequest struct {
	Query    string    // Text query (for BM25)
	QueryVec []float32 // Query embedding (for vector search)
	Limit    int       // Max results to return
	MinScore float32   // Drop results scoring below this
	Filters  *SearchFilters
	Mode     SearchMode // vector, bm25, hybrid

	// Hybrid search weights
	VectorWeight float32 // Default 0.7
	BM25Weight   float32 // Default 0.3

	// Context
	IncludeContext bool // Include surrounding lines
	ContextLines   int  // Default 5
}

// SearchResult represents a single search result.
type SearchResult struct {
	Chunk         *Chunk
	Score         float32 // Final combined score
	VectorScore   float32 // For debugging
	BM25Score     float32 // For debugging
	ContextBefore string  // Lines before chunk (if IncludeContext=true)
	ContextAfter  string  // Lines after chunk
}

// FileDiff partitions the current file set against the stored hashes.
// The four sets are disjoint and together cover every path seen in
// either the scan or the hash store.
type FileDiff struct {
	Added     []string // On disk, not in the hash store
	Modified  []string // On disk with a different hash
	Deleted   []string // In the hash store, gone from disk
	Unchanged []string // On disk with an identical hash
}

// Total returns the number of paths on disk covered by the diff.
func (d *FileDiff) Total() int {
	return len(d.Added) + len(d.Modified) + len(d.Unchanged)
}

// IndexResult summarizes one indexing run.
type IndexResult struct {
	ChunksIndexed  int           `json:"chunks_indexed"`
	FilesChanged   int           `json:"files_changed"` // added + modified
	FilesDeleted   int           `json:"files_deleted"`
	FilesUnchanged int           `json:"files_unchanged"`
	FilesFailed    int           `json:"files_failed"` // unreadable or skipped with error
	Degraded       bool          `json:"degraded"`     // failed fraction exceeded threshold
	Duration       time.Duration `json:"duration"`
}

// StoreStats contains statistics about the index.
type StoreStats struct {
	TotalChunks  int
	IndexedFiles int
	LastIndexed  time.Time
	DBSizeBytes  int64
}

// IndexMetadata contains metadata about the index.
type IndexMetadata struct {
	SchemaVersion int       // For detecting incompatible changes
	CreatedAt     time.Time // When index was created
	LastUpdated   time.Time // Last update time
	ToolVersion   string    // codescope version
	ConfigHash    string    // Hash of configuration

	// Provider info
	EmbeddingProvider   string // "local", "openai", "ollama"
	EmbeddingModel      string
	EmbeddingDimensions int
	ChunkingStrategy    string // "treesitter", "linewindow"

	// Stats
	Stats StoreStats
}

// IndexProgress represents the current state of indexing.
type IndexProgress struct {
	Phase           string // "scanning", "chunking", "embedding", "storing"
	TotalFiles      int
	ProcessedFiles  int
	TotalChunks     int
	ProcessedChunks int
	CurrentFile     string
	Error           error // Non-fatal error (e.g., cannot read file)
}

// SessionSnapshot captures the path to hash map of a project at the
// moment a session begins.
type SessionSnapshot struct {
	StartedAt time.Time         `json:"started_at"`
	Files     map[string]string `json:"files"` // relative path -> sha256
}
