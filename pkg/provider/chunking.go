package provider

import (
	"github.com/codescope/codescope/pkg/types"
)

// ChunkingStrategy splits source files into chunks.
type ChunkingStrategy interface {
	// Name returns the strategy name (e.g., "treesitter", "linewindow").
	Name() string

	// Chunk splits a source file into chunks. Every non-blank line of
	// the file is covered by at least one chunk.
	Chunk(file *types.SourceFile) ([]*types.Chunk, error)

	// SupportedLanguages returns languages this strategy supports.
	// Empty slice means all languages (for line-window chunking).
	SupportedLanguages() []string

	// SupportsLanguage checks if a language is supported.
	SupportsLanguage(lang string) bool

	// Close releases any resources.
	Close() error
}

// ChunkingConfig contains configuration for chunking strategies.
type ChunkingConfig struct {
	Strategy      string // "treesitter", "linewindow"
	MaxChunkLines int    // Max lines per chunk before splitting
	OverlapLines  int    // Overlap between sliding-window chunks
}
