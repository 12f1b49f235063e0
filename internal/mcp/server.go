// Package mcp exposes indexing, search and session management as MCP
// tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/internal/index"
	"github.com/codescope/codescope/internal/search"
	"github.com/codescope/codescope/internal/session"
	"github.com/codescope/codescope/pkg/provider"
	"github.com/codescope/codescope/pkg/types"
)

// Server implements the MCP server.
type Server struct {
	mcpServer  *server.MCPServer
	projectDir string
	config     *config.Config
	store      provider.VectorStore
	embedding  provider.EmbeddingProvider
	chunker    provider.ChunkingStrategy
	search     *search.Engine
	sessions   *session.Manager
}

// Config contains server configuration.
type Config struct {
	ProjectDir string
	Config     *config.Config
	Store      provider.VectorStore
	Embedding  provider.EmbeddingProvider
	Chunker    provider.ChunkingStrategy
}

// New creates a new MCP server.
func New(cfg Config) (*Server, error) {
	s := &Server{
		projectDir: cfg.ProjectDir,
		config:     cfg.Config,
		store:      cfg.Store,
		embedding:  cfg.Embedding,
		chunker:    cfg.Chunker,
	}

	s.search = search.New(search.Config{
		Store:           cfg.Store,
		Embedding:       cfg.Embedding,
		ProjectDir:      cfg.ProjectDir,
		DefaultLimit:    cfg.Config.Search.DefaultLimit,
		DefaultMode:     types.SearchMode(cfg.Config.Search.Mode),
		DefaultMinScore: cfg.Config.Search.MinScore,
		VectorWeight:    cfg.Config.Search.VectorWeight,
		BM25Weight:      cfg.Config.Search.BM25Weight,
	})

	s.sessions = session.New(cfg.ProjectDir, s.newIndexer())

	mcpServer := server.NewMCPServer(
		"codescope",
		index.ToolVersion,
		server.WithLogging(),
	)

	s.registerTools(mcpServer)

	s.mcpServer = mcpServer
	return s, nil
}

func (s *Server) newIndexer() *index.Indexer {
	return index.New(index.Config{
		ProjectDir: s.projectDir,
		Config:     s.config,
		Store:      s.store,
		Embedding:  s.embedding,
		Chunker:    s.chunker,
		OnProgress: func(p types.IndexProgress) {
			slog.Debug("progress", "phase", p.Phase, "files", p.ProcessedFiles, "current", p.CurrentFile)
		},
	})
}

// registerTools registers all MCP tools.
func (s *Server) registerTools(mcpServer *server.MCPServer) {
	// search_codebase - Semantic code search
	mcpServer.AddTool(mcp.NewTool("search_codebase",
		mcp.WithDescription("Search the indexed codebase using semantic similarity"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural language or code search query")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 10)")),
		mcp.WithString("mode", mcp.Description("Search mode: vector (default), bm25, hybrid")),
		mcp.WithBoolean("include_context", mcp.Description("Include surrounding lines from the current file")),
		mcp.WithArray("languages", mcp.Description("Filter by languages")),
		mcp.WithString("path_prefix", mcp.Description("Only return chunks under this path prefix")),
	), s.handleSearchCodebase)

	// index_codebase - Bring the index up to date
	mcpServer.AddTool(mcp.NewTool("index_codebase",
		mcp.WithDescription("Index the codebase incrementally; only changed files are re-embedded"),
		mcp.WithBoolean("force", mcp.Description("Force reindex all files (required after switching embedding provider)")),
	), s.handleIndexCodebase)

	// get_status - Index status and statistics
	mcpServer.AddTool(mcp.NewTool("get_status",
		mcp.WithDescription("Get index status and statistics"),
	), s.handleGetStatus)

	// begin_session - Snapshot the project at session start
	mcpServer.AddTool(mcp.NewTool("begin_session",
		mcp.WithDescription("Start a coding session: index the project and snapshot its state"),
	), s.handleBeginSession)

	// end_session - Re-index whatever the session changed
	mcpServer.AddTool(mcp.NewTool("end_session",
		mcp.WithDescription("End the coding session and re-index files changed during it"),
	), s.handleEndSession)

	// clear_index - Drop all indexed data
	mcpServer.AddTool(mcp.NewTool("clear_index",
		mcp.WithDescription("Clear the search index"),
	), s.handleClearIndex)

	// get_chunk - Retrieve one chunk with live context
	mcpServer.AddTool(mcp.NewTool("get_chunk",
		mcp.WithDescription("Get a specific code chunk by ID with surrounding context"),
		mcp.WithString("chunk_id", mcp.Required(), mcp.Description("Chunk ID from a search result")),
		mcp.WithNumber("context_lines", mcp.Description("Lines of context (default 5)")),
	), s.handleGetChunk)

	// grep_codebase - Exact text search over indexed files
	mcpServer.AddTool(mcp.NewTool("grep_codebase",
		mcp.WithDescription("Search indexed files for an exact text or regex pattern"),
		mcp.WithString("pattern", mcp.Required(), mcp.Description("Regular expression (or literal text with literal=true)")),
		mcp.WithString("path_prefix", mcp.Description("Only search files under this path prefix")),
		mcp.WithNumber("context_lines", mcp.Description("Lines of context around each match")),
		mcp.WithNumber("max_results", mcp.Description("Maximum matches (default 50)")),
		mcp.WithBoolean("case_sensitive", mcp.Description("Case sensitive matching")),
		mcp.WithBoolean("literal", mcp.Description("Treat pattern as literal text")),
	), s.handleGrepCodebase)

	// find_files - Fuzzy file path lookup
	mcpServer.AddTool(mcp.NewTool("find_files",
		mcp.WithDescription("Fuzzy-search indexed file paths by name"),
		mcp.WithString("query", mcp.Required(), mcp.Description("File name or path fragment")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 20)")),
	), s.handleFindFiles)
}

// Tool handlers

func (s *Server) handleSearchCodebase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	limit := req.GetInt("limit", 0)
	modeStr := req.GetString("mode", "")
	includeContext := req.GetBool("include_context", false)
	languages := req.GetStringSlice("languages", nil)
	pathPrefix := req.GetString("path_prefix", "")

	var mode types.SearchMode
	switch modeStr {
	case "vector":
		mode = types.SearchModeVector
	case "bm25":
		mode = types.SearchModeBM25
	case "hybrid":
		mode = types.SearchModeHybrid
	}

	searchReq := &types.SearchRequest{
		Query:          query,
		Limit:          limit,
		Mode:           mode,
		IncludeContext: includeContext,
		ContextLines:   5,
	}

	if len(languages) > 0 || pathPrefix != "" {
		searchReq.Filters = &types.SearchFilters{
			Languages:  languages,
			PathPrefix: pathPrefix,
		}
	}

	results, err := s.search.Search(ctx, searchReq)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	var formatted []map[string]any
	for _, r := range results {
		entry := map[string]any{
			"id":         r.Chunk.ID,
			"file":       r.Chunk.FilePath,
			"start_line": r.Chunk.StartLine,
			"end_line":   r.Chunk.EndLine,
			"language":   r.Chunk.Language,
			"type":       r.Chunk.ChunkType,
			"name":       r.Chunk.Name,
			"score":      r.Score,
			"content":    r.Chunk.Content,
		}

		if includeContext {
			if r.ContextBefore != "" {
				entry["context_before"] = r.ContextBefore
			}
			if r.ContextAfter != "" {
				entry["context_after"] = r.ContextAfter
			}
		}

		formatted = append(formatted, entry)
	}

	jsonResult, _ := json.MarshalIndent(formatted, "", "  ")
	return mcp.NewToolResultText(string(jsonResult)), nil
}

func (s *Server) handleIndexCodebase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	force := req.GetBool("force", false)

	slog.Info("starting indexing", "force", force)

	result, err := s.newIndexer().Index(ctx, index.Options{Force: force})
	if err != nil {
		if errors.Is(err, types.ErrMigrationRequired) {
			return mcp.NewToolResultError(fmt.Sprintf("%v; call index_codebase with force=true", err)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("indexing failed: %v", err)), nil
	}

	return s.indexResultJSON(result)
}

func (s *Server) indexResultJSON(result *types.IndexResult) (*mcp.CallToolResult, error) {
	stats, err := s.store.GetStats()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get stats: %v", err)), nil
	}

	out := map[string]any{
		"success":         !result.Degraded,
		"files_changed":   result.FilesChanged,
		"files_deleted":   result.FilesDeleted,
		"files_unchanged": result.FilesUnchanged,
		"files_failed":    result.FilesFailed,
		"chunks_indexed":  result.ChunksIndexed,
		"degraded":        result.Degraded,
		"duration":        result.Duration.Round(time.Millisecond).String(),
		"total_files":     stats.IndexedFiles,
		"total_chunks":    stats.TotalChunks,
		"db_size":         formatBytes(stats.DBSizeBytes),
	}

	jsonResult, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(jsonResult)), nil
}

func (s *Server) handleGetStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.store.GetStats()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get stats: %v", err)), nil
	}

	result := map[string]any{
		"indexed_files": stats.IndexedFiles,
		"total_chunks":  stats.TotalChunks,
		"db_size":       formatBytes(stats.DBSizeBytes),
	}
	if !stats.LastIndexed.IsZero() {
		result["last_indexed"] = stats.LastIndexed.Format("2006-01-02 15:04:05")
	}

	meta, err := s.store.GetMetadata()
	if err == nil {
		result["embedding_provider"] = meta.EmbeddingProvider
		result["embedding_model"] = meta.EmbeddingModel
		result["chunking_strategy"] = meta.ChunkingStrategy
		result["tool_version"] = meta.ToolVersion
	}

	if snapshot, err := s.sessions.Active(); err == nil {
		result["session_started_at"] = snapshot.StartedAt.Format(time.RFC3339)
		result["session_files"] = len(snapshot.Files)
	}

	jsonResult, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(jsonResult)), nil
}

func (s *Server) handleBeginSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snapshot, result, err := s.sessions.Begin(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to begin session: %v", err)), nil
	}

	out := map[string]any{
		"success":        true,
		"started_at":     snapshot.StartedAt.Format(time.RFC3339),
		"files":          len(snapshot.Files),
		"files_changed":  result.FilesChanged,
		"chunks_indexed": result.ChunksIndexed,
	}

	jsonResult, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(jsonResult)), nil
}

func (s *Server) handleEndSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.sessions.End(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to end session: %v", err)), nil
	}

	return s.indexResultJSON(result)
}

func (s *Server) handleClearIndex(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.store.Clear(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to clear index: %v", err)), nil
	}

	return mcp.NewToolResultText(`{"success": true, "message": "Index cleared"}`), nil
}

func (s *Server) handleGetChunk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chunkID := req.GetString("chunk_id", "")
	if chunkID == "" {
		return mcp.NewToolResultError("chunk_id is required"), nil
	}

	contextLines := req.GetInt("context_lines", 5)

	chunk, err := s.store.GetChunk(chunkID)
	if errors.Is(err, types.ErrNotFound) {
		return mcp.NewToolResultError("chunk not found"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get chunk: %v", err)), nil
	}

	out := map[string]any{
		"id":         chunk.ID,
		"file":       chunk.FilePath,
		"start_line": chunk.StartLine,
		"end_line":   chunk.EndLine,
		"language":   chunk.Language,
		"type":       chunk.ChunkType,
		"name":       chunk.Name,
		"content":    chunk.Content,
	}

	// Context comes from the live file and may be empty if the file
	// changed since indexing.
	before, after := s.search.ChunkContext(chunk, contextLines)
	if before != "" {
		out["context_before"] = before
	}
	if after != "" {
		out["context_after"] = after
	}

	jsonResult, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(jsonResult)), nil
}

func (s *Server) handleFindFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	limit := req.GetInt("limit", 20)

	files, err := s.search.FindFiles(query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to find files: %v", err)), nil
	}

	jsonResult, _ := json.MarshalIndent(files, "", "  ")
	return mcp.NewToolResultText(string(jsonResult)), nil
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// formatBytes formats bytes to human readable string.
func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
