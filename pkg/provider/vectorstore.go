package provider

// VectorStore stores and searches vector embeddings.
// It composes the smaller store interfaces. New code should depend on
// the smaller interfaces (ChunkStore, Searcher, ...) when possible.
type VectorStore interface {
	Store
	ChunkStore
	Searcher
	MetadataStore
	FileHashStore
	FileCommitter
}

// VectorStoreConfig contains configuration for vector stores.
type VectorStoreConfig struct {
	Provider string // "sqlitevec"
	Path     string // Path to database file
}
