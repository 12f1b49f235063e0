// codescope indexes a codebase for semantic retrieval and serves it
// to coding agents over MCP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	_ "github.com/codescope/codescope/builtin"
	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/internal/index"
	"github.com/codescope/codescope/internal/mcp"
	"github.com/codescope/codescope/internal/search"
	"github.com/codescope/codescope/internal/session"
	"github.com/codescope/codescope/pkg/provider"
	"github.com/codescope/codescope/pkg/types"
)

var (
	logLevel  string
	logFormat string
)

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "codescope",
	Short: "Semantic code indexing and retrieval for coding agents",
	Long: `codescope builds an incremental semantic index of a codebase and
answers natural-language queries over it.

It supports:
- Multiple embedding providers (local, Ollama, OpenAI)
- Hybrid search (vector + BM25)
- Session-scoped incremental re-indexing
- An MCP server for agent integration`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("codescope %s\n", index.ToolVersion)
		fmt.Printf("Go version: %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a codebase",
	Long:  `Index a codebase for semantic search. If no path is provided, indexes the current directory.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")
		paths, _ := cmd.Flags().GetStringSlice("only")
		runIndex(path, force, paths)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the codebase",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		mode, _ := cmd.Flags().GetString("mode")
		withContext, _ := cmd.Flags().GetBool("context")
		pathPrefix, _ := cmd.Flags().GetString("path-prefix")
		languages, _ := cmd.Flags().GetStringSlice("language")
		runSearch(args[0], limit, mode, withContext, pathPrefix, languages)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index status",
	Run: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		runStatus(verbose)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start MCP server on stdio",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Watch for file changes and re-index automatically",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}
		debounce, _ := cmd.Flags().GetInt("debounce")
		runWatch(path, debounce)
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Session-scoped index management",
	Long:  `Mark the start and end of a working session. Begin snapshots the file state; end re-indexes only what changed since.`,
}

var sessionBeginCmd = &cobra.Command{
	Use:   "begin",
	Short: "Start a session (index and snapshot current state)",
	Run: func(cmd *cobra.Command, args []string) {
		runSessionBegin()
	},
}

var sessionEndCmd = &cobra.Command{
	Use:   "end",
	Short: "End a session (re-index files changed since begin)",
	Run: func(cmd *cobra.Command, args []string) {
		runSessionEnd()
	},
}

var chunkCmd = &cobra.Command{
	Use:   "chunk <id>",
	Short: "Get chunk content with context",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		contextLines, _ := cmd.Flags().GetInt("context")
		runChunk(args[0], contextLines)
	},
}

var filesCmd = &cobra.Command{
	Use:   "files <query>",
	Short: "Fuzzy search indexed file paths",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		runFindFiles(args[0], limit)
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the index",
	Long:  `Remove all indexed data. This will require re-indexing.`,
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		runClear(force)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration",
	Run: func(cmd *cobra.Command, args []string) {
		runConfigInit()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Run: func(cmd *cobra.Command, args []string) {
		runConfigShow()
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Run: func(cmd *cobra.Command, args []string) {
		runConfigValidate()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")

	indexCmd.Flags().Bool("force", false, "force reindex all files")
	indexCmd.Flags().StringSlice("only", nil, "restrict to specific project-relative paths")

	searchCmd.Flags().IntP("limit", "l", 0, "maximum results (0 = config default)")
	searchCmd.Flags().StringP("mode", "m", "", "search mode (vector, bm25, hybrid)")
	searchCmd.Flags().BoolP("context", "c", false, "include surrounding lines from live files")
	searchCmd.Flags().String("path-prefix", "", "restrict to files under this path prefix")
	searchCmd.Flags().StringSlice("language", nil, "restrict to these languages")

	statusCmd.Flags().BoolP("verbose", "v", false, "show detailed statistics")

	watchCmd.Flags().Int("debounce", 500, "debounce time in milliseconds")

	chunkCmd.Flags().IntP("context", "c", 5, "number of context lines")
	filesCmd.Flags().IntP("limit", "l", 20, "maximum results")

	clearCmd.Flags().BoolP("force", "f", false, "clear without confirmation")

	sessionCmd.AddCommand(sessionBeginCmd)
	sessionCmd.AddCommand(sessionEndCmd)

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(chunkCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(configCmd)
}

func setupLogging() {
	// Flags override the config file. The config is loaded again by the
	// command itself, so a failure here just means default logging.
	level := logLevel
	format := logFormat
	if level == "" || format == "" {
		cwd, _ := os.Getwd()
		if cfg, _, err := config.Load(cwd); err == nil {
			if level == "" {
				level = cfg.Logging.Level
			}
			if format == "" {
				format = cfg.Logging.Format
			}
		}
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: slogLevel}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// createProviders builds the store, embedder and chunker from config via
// the builtin registry.
func createProviders(cfg *config.Config) (provider.VectorStore, provider.EmbeddingProvider, provider.ChunkingStrategy, error) {
	store, err := provider.DefaultRegistry.CreateVectorStore(cfg.VectorStore.Provider)
	if err != nil {
		return nil, nil, nil, err
	}

	embedding, err := provider.DefaultRegistry.CreateEmbedding(cfg.Embedding.Provider, provider.EmbeddingConfig{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		Endpoint:  cfg.Embedding.Endpoint,
		APIKey:    cfg.Embedding.APIKey,
		BatchSize: cfg.Embedding.BatchSize,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	chunker, err := provider.DefaultRegistry.CreateChunking(cfg.Chunking.Strategy, provider.ChunkingConfig{
		Strategy:      cfg.Chunking.Strategy,
		MaxChunkLines: cfg.Chunking.MaxChunkLines,
		OverlapLines:  cfg.Chunking.OverlapLines,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	return store, embedding, chunker, nil
}

// openProject loads config and providers for projectDir and initializes
// the store. The returned cleanup closes everything.
func openProject(projectDir string) (*config.Config, provider.VectorStore, provider.EmbeddingProvider, provider.ChunkingStrategy, func(), error) {
	cfg, warnings, err := config.Load(projectDir)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	for _, w := range warnings {
		slog.Warn(w)
	}

	store, embedding, chunker, err := createProviders(cfg)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}

	cleanup := func() {
		store.Close()
		embedding.Close()
		chunker.Close()
	}

	if err := store.Init(config.IndexDBPath(projectDir), embedding.Dimensions()); err != nil {
		cleanup()
		return nil, nil, nil, nil, nil, err
	}

	return cfg, store, embedding, chunker, cleanup, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newIndexer(projectDir string, cfg *config.Config, store provider.VectorStore, embedding provider.EmbeddingProvider, chunker provider.ChunkingStrategy) *index.Indexer {
	return index.New(index.Config{
		ProjectDir: projectDir,
		Config:     cfg,
		Store:      store,
		Embedding:  embedding,
		Chunker:    chunker,
		OnProgress: func(p types.IndexProgress) {
			if p.Phase != "" {
				fmt.Fprintf(os.Stderr, "\r[%s] Files: %d/%d", p.Phase, p.ProcessedFiles, p.TotalFiles)
			}
		},
	})
}

func printIndexResult(result *types.IndexResult) {
	fmt.Fprintln(os.Stderr)
	fmt.Printf("Indexed %d chunks in %s\n", result.ChunksIndexed, result.Duration.Round(time.Millisecond))
	fmt.Printf("Files: %d changed, %d deleted, %d unchanged, %d failed\n",
		result.FilesChanged, result.FilesDeleted, result.FilesUnchanged, result.FilesFailed)
	if result.Degraded {
		fmt.Println("Warning: index is degraded, too many files failed")
	}
}

func runIndex(path string, force bool, only []string) {
	projectDir, err := filepath.Abs(path)
	if err != nil {
		slog.Error("invalid path", "error", err)
		os.Exit(1)
	}

	cfg, store, embedding, chunker, cleanup, err := openProject(projectDir)
	if err != nil {
		slog.Error("failed to open project", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	if err := embedding.Warmup(ctx); err != nil {
		slog.Warn("embedding warmup failed", "error", err)
	}

	indexer := newIndexer(projectDir, cfg, store, embedding, chunker)

	result, err := indexer.Index(ctx, index.Options{Force: force, Paths: only})
	if err != nil {
		switch {
		case ctx.Err() != nil:
			fmt.Fprintln(os.Stderr, "\nIndexing interrupted. Progress saved, run again to resume.")
		case errors.Is(err, types.ErrMigrationRequired):
			slog.Error("embedding configuration changed", "error", err)
			fmt.Fprintln(os.Stderr, "Run 'codescope index --force' to rebuild the index.")
			os.Exit(1)
		case errors.Is(err, types.ErrIndexLocked):
			slog.Error("another codescope process is indexing this project")
			os.Exit(1)
		default:
			slog.Error("indexing failed", "error", err)
			os.Exit(1)
		}
		return
	}

	printIndexResult(result)
}

func runSearch(query string, limit int, mode string, withContext bool, pathPrefix string, languages []string) {
	cwd, _ := os.Getwd()

	cfg, store, embedding, _, cleanup, err := openProject(cwd)
	if err != nil {
		slog.Error("failed to open project", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	engine := search.New(search.Config{
		Store:           store,
		Embedding:       embedding,
		ProjectDir:      cwd,
		DefaultLimit:    cfg.Search.DefaultLimit,
		DefaultMode:     types.SearchMode(cfg.Search.Mode),
		DefaultMinScore: cfg.Search.MinScore,
		VectorWeight:    cfg.Search.VectorWeight,
		BM25Weight:      cfg.Search.BM25Weight,
	})

	req := &types.SearchRequest{
		Query:          query,
		Limit:          limit,
		Mode:           types.SearchMode(mode),
		IncludeContext: withContext,
	}
	if pathPrefix != "" || len(languages) > 0 {
		req.Filters = &types.SearchFilters{
			PathPrefix: pathPrefix,
			Languages:  languages,
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	results, err := engine.Search(ctx, req)
	if err != nil {
		slog.Error("search failed", "error", err)
		os.Exit(1)
	}

	if len(results) == 0 {
		fmt.Println("No results found")
		return
	}

	for i, r := range results {
		fmt.Printf("\n=== Result %d (score: %.3f) ===\n", i+1, r.Score)
		fmt.Printf("File: %s:%d-%d\n", r.Chunk.FilePath, r.Chunk.StartLine, r.Chunk.EndLine)
		if r.Chunk.Name != "" {
			fmt.Printf("Name: %s (%s)\n", r.Chunk.Name, r.Chunk.ChunkType)
		}
		if r.ContextBefore != "" {
			fmt.Printf("\n%s\n", r.ContextBefore)
		}
		fmt.Printf("\n%s\n", r.Chunk.Content)
		if r.ContextAfter != "" {
			fmt.Printf("\n%s\n", r.ContextAfter)
		}
	}
}

func runStatus(verbose bool) {
	cwd, _ := os.Getwd()

	cfg, store, embedding, _, cleanup, err := openProject(cwd)
	if err != nil {
		fmt.Println("No index found. Run 'codescope index' to create one.")
		return
	}
	defer cleanup()

	stats, err := store.GetStats()
	if err != nil {
		slog.Error("failed to get stats", "error", err)
		os.Exit(1)
	}

	fmt.Println("=== Index Status ===")
	fmt.Printf("Indexed files: %d\n", stats.IndexedFiles)
	fmt.Printf("Total chunks:  %d\n", stats.TotalChunks)
	fmt.Printf("Database size: %s\n", formatBytes(stats.DBSizeBytes))
	if !stats.LastIndexed.IsZero() {
		fmt.Printf("Last indexed:  %s\n", stats.LastIndexed.Format("2006-01-02 15:04:05"))
	}

	meta, metaErr := store.GetMetadata()
	if metaErr == nil {
		fmt.Println("\n=== Index Metadata ===")
		fmt.Printf("Embedding:  %s/%s\n", meta.EmbeddingProvider, meta.EmbeddingModel)
		fmt.Printf("Dimensions: %d\n", meta.EmbeddingDimensions)
		fmt.Printf("Chunking:   %s\n", meta.ChunkingStrategy)
		fmt.Printf("Tool:       %s\n", meta.ToolVersion)
	}

	sessions := session.New(cwd, nil)
	if snapshot, err := sessions.Active(); err == nil {
		fmt.Println("\n=== Active Session ===")
		fmt.Printf("Started: %s\n", snapshot.StartedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Files:   %d\n", len(snapshot.Files))
	}

	if verbose {
		fmt.Println("\n=== Current Config ===")
		fmt.Printf("Embedding:  %s/%s (%d dims)\n", cfg.Embedding.Provider, cfg.Embedding.Model, embedding.Dimensions())
		fmt.Printf("Chunking:   %s\n", cfg.Chunking.Strategy)
		fmt.Printf("Search:     %s (vector %.1f, bm25 %.1f)\n", cfg.Search.Mode, cfg.Search.VectorWeight, cfg.Search.BM25Weight)
		fmt.Printf("Workers:    %d\n", cfg.Limits.Workers)
	}
}

func runServe() {
	cwd, _ := os.Getwd()
	slog.Info("starting MCP server")

	cfg, store, embedding, chunker, cleanup, err := openProject(cwd)
	if err != nil {
		slog.Error("failed to open project", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	if err := embedding.Warmup(ctx); err != nil {
		slog.Warn("embedding warmup failed", "error", err)
	}

	server, err := mcp.New(mcp.Config{
		ProjectDir: cwd,
		Config:     cfg,
		Store:      store,
		Embedding:  embedding,
		Chunker:    chunker,
	})
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	slog.Info("MCP server running on stdio (press Ctrl+C to stop)")
	if err := server.ServeStdio(); err != nil {
		if ctx.Err() != nil {
			slog.Info("server stopped")
			return
		}
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func runWatch(path string, debounceMs int) {
	projectDir, err := filepath.Abs(path)
	if err != nil {
		slog.Error("invalid path", "error", err)
		os.Exit(1)
	}

	cfg, store, embedding, chunker, cleanup, err := openProject(projectDir)
	if err != nil {
		slog.Error("failed to open project", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	watcher, err := index.NewWatcher(index.WatcherConfig{
		ProjectDir:   projectDir,
		Config:       cfg,
		Store:        store,
		Embedding:    embedding,
		Chunker:      chunker,
		DebounceTime: time.Duration(debounceMs) * time.Millisecond,
	})
	if err != nil {
		slog.Error("failed to create watcher", "error", err)
		os.Exit(1)
	}
	defer watcher.Close()

	ctx, cancel := signalContext()
	defer cancel()

	slog.Info("watching for changes", "path", projectDir, "debounce_ms", debounceMs)
	if err := watcher.Watch(ctx); err != nil && ctx.Err() == nil {
		slog.Error("watcher failed", "error", err)
		os.Exit(1)
	}
}

func runSessionBegin() {
	cwd, _ := os.Getwd()

	cfg, store, embedding, chunker, cleanup, err := openProject(cwd)
	if err != nil {
		slog.Error("failed to open project", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	indexer := newIndexer(cwd, cfg, store, embedding, chunker)
	sessions := session.New(cwd, indexer)

	snapshot, result, err := sessions.Begin(ctx)
	if err != nil {
		slog.Error("session begin failed", "error", err)
		os.Exit(1)
	}

	printIndexResult(result)
	fmt.Printf("Session started with %d files tracked\n", len(snapshot.Files))
}

func runSessionEnd() {
	cwd, _ := os.Getwd()

	cfg, store, embedding, chunker, cleanup, err := openProject(cwd)
	if err != nil {
		slog.Error("failed to open project", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	indexer := newIndexer(cwd, cfg, store, embedding, chunker)
	sessions := session.New(cwd, indexer)

	result, err := sessions.End(ctx)
	if err != nil {
		slog.Error("session end failed", "error", err)
		os.Exit(1)
	}

	printIndexResult(result)
	fmt.Println("Session ended")
}

func runChunk(chunkID string, contextLines int) {
	cwd, _ := os.Getwd()

	cfg, store, embedding, _, cleanup, err := openProject(cwd)
	if err != nil {
		slog.Error("failed to open project", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	chunk, err := store.GetChunk(chunkID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			fmt.Printf("Chunk not found: %s\n", chunkID)
			os.Exit(1)
		}
		slog.Error("failed to get chunk", "error", err)
		os.Exit(1)
	}

	engine := search.New(search.Config{
		Store:       store,
		Embedding:   embedding,
		ProjectDir:  cwd,
		DefaultMode: types.SearchMode(cfg.Search.Mode),
	})

	before, after := engine.ChunkContext(chunk, contextLines)

	fmt.Printf("File: %s:%d-%d\n", chunk.FilePath, chunk.StartLine, chunk.EndLine)
	if chunk.Name != "" {
		fmt.Printf("Name: %s (%s)\n", chunk.Name, chunk.ChunkType)
	}
	if before != "" {
		fmt.Printf("\n%s\n", before)
	}
	fmt.Printf("\n%s\n", chunk.Content)
	if after != "" {
		fmt.Printf("\n%s\n", after)
	}
}

func runFindFiles(query string, limit int) {
	cwd, _ := os.Getwd()

	cfg, store, embedding, _, cleanup, err := openProject(cwd)
	if err != nil {
		slog.Error("failed to open project", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	engine := search.New(search.Config{
		Store:       store,
		Embedding:   embedding,
		ProjectDir:  cwd,
		DefaultMode: types.SearchMode(cfg.Search.Mode),
	})

	paths, err := engine.FindFiles(query, limit)
	if err != nil {
		slog.Error("file search failed", "error", err)
		os.Exit(1)
	}

	if len(paths) == 0 {
		fmt.Println("No matching files")
		return
	}
	for _, p := range paths {
		fmt.Println(p)
	}
}

func runClear(force bool) {
	cwd, _ := os.Getwd()

	if !force {
		fmt.Print("This removes all indexed data. Continue? (y/N): ")
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return
		}
	}

	_, store, _, _, cleanup, err := openProject(cwd)
	if err != nil {
		slog.Error("failed to open project", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	if err := store.Clear(); err != nil {
		slog.Error("failed to clear index", "error", err)
		os.Exit(1)
	}

	fmt.Println("Index cleared")
}

func runConfigInit() {
	cwd, _ := os.Getwd()
	cfg := config.DefaultConfig()

	if err := config.Save(cwd, cfg); err != nil {
		slog.Error("failed to save config", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Created config at %s\n", config.ConfigPath(cwd))
}

func runConfigShow() {
	cwd, _ := os.Getwd()

	cfg, warnings, err := config.Load(cwd)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	for _, w := range warnings {
		fmt.Printf("Warning: %s\n", w)
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		slog.Error("failed to encode config", "error", err)
		os.Exit(1)
	}
	fmt.Print(string(out))
}

func runConfigValidate() {
	cwd, _ := os.Getwd()

	cfg, warnings, err := config.Load(cwd)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	for _, w := range warnings {
		fmt.Printf("Warning: %s\n", w)
	}

	errs := config.Validate(cfg)
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Printf("Error: %v\n", e)
		}
		os.Exit(1)
	}

	fmt.Println("Configuration is valid")
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
