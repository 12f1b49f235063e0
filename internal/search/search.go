// Package search implements query embedding, hybrid retrieval and
// result ranking over the vector store.
package search

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/codescope/codescope/pkg/provider"
	"github.com/codescope/codescope/pkg/types"
)

// Engine handles search operations.
type Engine struct {
	store      provider.VectorStore
	embedding  provider.EmbeddingProvider
	projectDir string

	defaultLimit    int
	defaultMode     types.SearchMode
	defaultMinScore float32
	vectorWeight    float32
	bm25Weight      float32
}

// Config contains search engine configuration.
type Config struct {
	Store      provider.VectorStore
	Embedding  provider.EmbeddingProvider
	ProjectDir string

	DefaultLimit    int
	DefaultMode     types.SearchMode
	DefaultMinScore float32
	VectorWeight    float32
	BM25Weight      float32
}

// New creates a new search engine.
func New(cfg Config) *Engine {
	e := &Engine{
		store:           cfg.Store,
		embedding:       cfg.Embedding,
		projectDir:      cfg.ProjectDir,
		defaultLimit:    cfg.DefaultLimit,
		defaultMode:     cfg.DefaultMode,
		defaultMinScore: cfg.DefaultMinScore,
		vectorWeight:    cfg.VectorWeight,
		bm25Weight:      cfg.BM25Weight,
	}
	if e.defaultLimit == 0 {
		e.defaultLimit = 10
	}
	if e.defaultMode == "" {
		e.defaultMode = types.SearchModeVector
	}
	if e.vectorWeight == 0 && e.bm25Weight == 0 {
		e.vectorWeight = 0.7
		e.bm25Weight = 0.3
	}
	return e
}

// Search embeds the query when needed, retrieves candidates from the
// store and ranks them. Results whose definition name matches the query
// get a boost on top of the store score.
func (e *Engine) Search(ctx context.Context, req *types.SearchRequest) ([]*types.SearchResult, error) {
	if strings.TrimSpace(req.Query) == "" && len(req.QueryVec) == 0 {
		return nil, fmt.Errorf("%w: empty query", types.ErrSearchFailed)
	}

	if req.Limit <= 0 {
		req.Limit = e.defaultLimit
	}
	if req.Mode == "" {
		req.Mode = e.defaultMode
	}
	if req.MinScore == 0 {
		req.MinScore = e.defaultMinScore
	}
	if req.VectorWeight == 0 && req.BM25Weight == 0 {
		req.VectorWeight = e.vectorWeight
		req.BM25Weight = e.bm25Weight
	}

	if req.Mode == types.SearchModeVector || req.Mode == types.SearchModeHybrid {
		if err := e.checkProvider(); err != nil {
			return nil, err
		}
		if len(req.QueryVec) == 0 && req.Query != "" {
			embeddings, err := e.embedding.Embed(ctx, []string{req.Query})
			if err != nil {
				return nil, fmt.Errorf("failed to embed query: %w", err)
			}
			req.QueryVec = embeddings[0]
		}
	}

	results, err := e.store.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	results = boostNameMatches(req.Query, results)

	if len(results) > req.Limit {
		results = results[:req.Limit]
	}

	if req.IncludeContext {
		for _, result := range results {
			e.addContext(result, req.ContextLines)
		}
	}

	return results, nil
}

// checkProvider verifies that the active embedding configuration matches
// the one the index was built with. Searching with a different provider,
// model or dimension count would compare vectors from incompatible
// spaces, so a mismatch fails instead of returning nonsense scores.
func (e *Engine) checkProvider() error {
	meta, err := e.store.GetMetadata()
	if errors.Is(err, types.ErrNotFound) {
		// Empty index; the store search will simply find nothing.
		return nil
	}
	if err != nil {
		return err
	}

	if meta.EmbeddingProvider != e.embedding.Name() ||
		meta.EmbeddingModel != e.embedding.Model() ||
		meta.EmbeddingDimensions != e.embedding.Dimensions() {
		return fmt.Errorf("%w: index built with %s/%s (%d dims), active config is %s/%s (%d dims)",
			types.ErrMigrationRequired,
			meta.EmbeddingProvider, meta.EmbeddingModel, meta.EmbeddingDimensions,
			e.embedding.Name(), e.embedding.Model(), e.embedding.Dimensions(),
		)
	}

	return nil
}

// addContext adds surrounding lines from the live file to a result.
func (e *Engine) addContext(result *types.SearchResult, contextLines int) {
	result.ContextBefore, result.ContextAfter = e.ChunkContext(result.Chunk, contextLines)
}

// ChunkContext reads the lines surrounding a chunk from the live file.
// The file may have changed or vanished since indexing, in which case
// both strings are empty.
func (e *Engine) ChunkContext(chunk *types.Chunk, contextLines int) (before, after string) {
	if contextLines == 0 {
		contextLines = 5
	}

	path := chunk.FilePath
	if e.projectDir != "" {
		path = filepath.Join(e.projectDir, path)
	}

	file, err := os.Open(path)
	if err != nil {
		return "", ""
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var allLines []string
	for scanner.Scan() {
		allLines = append(allLines, scanner.Text())
	}

	startLine := chunk.StartLine
	endLine := chunk.EndLine
	if startLine < 1 || endLine > len(allLines) {
		// Chunk no longer maps onto the current file.
		return "", ""
	}

	contextStart := startLine - contextLines - 1
	if contextStart < 0 {
		contextStart = 0
	}
	if contextStart < startLine-1 {
		before = strings.Join(allLines[contextStart:startLine-1], "\n")
	}

	contextEnd := endLine + contextLines
	if contextEnd > len(allLines) {
		contextEnd = len(allLines)
	}
	if endLine < contextEnd {
		after = strings.Join(allLines[endLine:contextEnd], "\n")
	}

	return before, after
}
