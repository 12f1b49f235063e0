// Package builtin registers all built-in providers with the default registry.
package builtin

import (
	"github.com/codescope/codescope/builtin/chunking/linewindow"
	tsChunker "github.com/codescope/codescope/builtin/chunking/treesitter"
	localEmbed "github.com/codescope/codescope/builtin/embedding/local"
	ollamaEmbed "github.com/codescope/codescope/builtin/embedding/ollama"
	openaiEmbed "github.com/codescope/codescope/builtin/embedding/openai"
	"github.com/codescope/codescope/builtin/vectorstore/sqlitevec"
	"github.com/codescope/codescope/pkg/provider"
)

func init() {
	// Register embedding providers
	provider.RegisterEmbedding("local", func(cfg provider.EmbeddingConfig) (provider.EmbeddingProvider, error) {
		return localEmbed.New(localEmbed.Config{
			BatchSize: cfg.BatchSize,
		}), nil
	})

	provider.RegisterEmbedding("ollama", func(cfg provider.EmbeddingConfig) (provider.EmbeddingProvider, error) {
		return ollamaEmbed.New(ollamaEmbed.Config{
			Endpoint:  cfg.Endpoint,
			Model:     cfg.Model,
			BatchSize: cfg.BatchSize,
		}), nil
	})

	provider.RegisterEmbedding("openai", func(cfg provider.EmbeddingConfig) (provider.EmbeddingProvider, error) {
		return openaiEmbed.New(openaiEmbed.Config{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BatchSize: cfg.BatchSize,
		})
	})

	// Register chunking strategies
	provider.RegisterChunking("treesitter", func(cfg provider.ChunkingConfig) (provider.ChunkingStrategy, error) {
		return tsChunker.New(tsChunker.Config{
			MaxChunkLines: cfg.MaxChunkLines,
			OverlapLines:  cfg.OverlapLines,
		}), nil
	})

	provider.RegisterChunking("linewindow", func(cfg provider.ChunkingConfig) (provider.ChunkingStrategy, error) {
		return linewindow.New(linewindow.Config{
			WindowLines:  cfg.MaxChunkLines,
			OverlapLines: cfg.OverlapLines,
		}), nil
	})

	// Register vector stores
	provider.RegisterVectorStore("sqlitevec", func() (provider.VectorStore, error) {
		return sqlitevec.New(), nil
	})
}
