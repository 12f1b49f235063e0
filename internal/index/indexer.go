// Package index implements incremental, parallel indexing of a project
// into a vector store.
package index

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codescope/codescope/builtin/chunking/linewindow"
	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/pkg/provider"
	"github.com/codescope/codescope/pkg/types"
)

// ToolVersion is recorded in the index metadata.
const ToolVersion = "0.1.0"

// Indexer drives the index pipeline: scan, diff, chunk, embed, commit.
type Indexer struct {
	config     *config.Config
	store      provider.VectorStore
	embedding  provider.EmbeddingProvider
	chunker    provider.ChunkingStrategy
	projectDir string
	configHash string

	// Progress tracking
	progressMu sync.Mutex
	progress   types.IndexProgress
	onProgress func(types.IndexProgress)
}

// Config contains indexer configuration.
type Config struct {
	ProjectDir string
	Config     *config.Config
	Store      provider.VectorStore
	Embedding  provider.EmbeddingProvider
	Chunker    provider.ChunkingStrategy
	OnProgress func(types.IndexProgress)
}

// Options control a single indexing run.
type Options struct {
	// Force re-indexes everything, clearing the store first. Required
	// to migrate after an embedding provider or model change.
	Force bool

	// Paths restricts the run to the given project-relative paths.
	// Empty means the whole project unless Deletes is set.
	Paths []string

	// Deletes lists project-relative paths to purge from the index.
	// Honored only on restricted runs; a full scan computes deletions
	// from the stored hashes itself.
	Deletes []string
}

// restricted reports whether the run is limited to an explicit file
// set instead of a full project scan.
func (o Options) restricted() bool {
	return len(o.Paths) > 0 || len(o.Deletes) > 0
}

// New creates a new indexer.
func New(cfg Config) *Indexer {
	return &Indexer{
		config:     cfg.Config,
		store:      cfg.Store,
		embedding:  cfg.Embedding,
		chunker:    cfg.Chunker,
		projectDir: cfg.ProjectDir,
		configHash: cfg.Config.Hash(),
		onProgress: cfg.OnProgress,
	}
}

// Index runs one indexing pass. Unchanged files are skipped, changed
// files are re-chunked and re-embedded, deleted files are purged. Each
// file is committed atomically, so an interrupted run leaves the index
// consistent and the next run continues from where it stopped.
func (idx *Indexer) Index(ctx context.Context, opts Options) (*types.IndexResult, error) {
	startTime := time.Now()

	if idx.config.Limits.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, idx.config.Limits.Timeout)
		defer cancel()
	}

	lock, err := AcquireLock(config.LockPath(idx.projectDir))
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	force, err := idx.checkMigration(opts.Force)
	if err != nil {
		return nil, err
	}
	if force {
		if err := idx.store.Clear(); err != nil {
			return nil, fmt.Errorf("failed to clear store: %w", err)
		}
	}

	// Phase 1: Scan files
	idx.updateProgress("scanning", 0, 0, 0, 0, "")

	files, unreadable, err := idx.scanFiles(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to scan files: %w", err)
	}

	slog.Info("scanned files", "total", len(files), "unreadable", len(unreadable))
	idx.updateProgress("scanning", len(files), 0, 0, 0, "")

	// Phase 2: Diff against stored hashes
	stored, err := idx.store.GetAllFileHashes()
	if err != nil {
		return nil, fmt.Errorf("failed to load file hashes: %w", err)
	}
	diff := ComputeDiff(files, stored)

	fileByPath := make(map[string]*types.SourceFile, len(files))
	for _, f := range files {
		fileByPath[f.Path] = f
	}

	changed := make([]*types.SourceFile, 0, len(diff.Added)+len(diff.Modified))
	for _, path := range diff.Added {
		changed = append(changed, fileByPath[path])
	}
	for _, path := range diff.Modified {
		changed = append(changed, fileByPath[path])
	}

	// A restricted run must not treat the rest of the project as
	// deleted; it purges only what the caller names. On a full scan,
	// files that could not be read are absent from the scan set, but
	// their records are kept so the next run retries them.
	deleted := diff.Deleted
	if opts.restricted() {
		deleted = opts.Deletes
	} else if len(unreadable) > 0 {
		deleted = withoutPaths(deleted, unreadable)
	}

	slog.Info("change detection complete",
		"added", len(diff.Added),
		"modified", len(diff.Modified),
		"deleted", len(deleted),
		"unchanged", len(diff.Unchanged),
		"unreadable", len(unreadable),
	)

	result := &types.IndexResult{
		FilesChanged:   len(changed),
		FilesDeleted:   len(deleted),
		FilesUnchanged: len(diff.Unchanged),
		FilesFailed:    len(unreadable),
	}

	// Phase 3: Chunk, embed and commit changed files in parallel. Each
	// file is one store transaction.
	if len(changed) > 0 {
		idx.updateProgress("chunking", len(changed), 0, 0, 0, "")

		chunksIndexed, failed, err := idx.processFiles(ctx, changed)
		if err != nil {
			return nil, err
		}
		result.ChunksIndexed = chunksIndexed
		result.FilesFailed += failed
	}

	// Phase 4: Purge deleted files
	for _, path := range deleted {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err := idx.store.DeleteChunksByFile(path); err != nil {
			slog.Warn("failed to delete chunks", "file", path, "error", err)
			result.FilesFailed++
			continue
		}
		if err := idx.store.DeleteFileHash(path); err != nil {
			slog.Warn("failed to delete file hash", "file", path, "error", err)
		}
	}

	if candidates := len(changed) + len(unreadable); candidates > 0 {
		threshold := idx.config.Limits.DegradedThreshold
		if float32(result.FilesFailed)/float32(candidates) > threshold {
			result.Degraded = true
		}
	}

	// Phase 5: Record index metadata
	if err := idx.writeMetadata(); err != nil {
		return nil, fmt.Errorf("failed to store metadata: %w", err)
	}

	result.Duration = time.Since(startTime)
	slog.Info("indexing complete",
		"changed", result.FilesChanged,
		"deleted", result.FilesDeleted,
		"unchanged", result.FilesUnchanged,
		"failed", result.FilesFailed,
		"chunks", result.ChunksIndexed,
		"degraded", result.Degraded,
		"duration", result.Duration.Round(time.Millisecond),
	)

	return result, nil
}

// checkMigration compares stored metadata against the active embedding
// configuration. A mismatch requires a forced re-index; the returned
// bool reports whether the store must be cleared before indexing.
func (idx *Indexer) checkMigration(force bool) (bool, error) {
	meta, err := idx.store.GetMetadata()
	if errors.Is(err, types.ErrNotFound) {
		// Fresh index, nothing to migrate. Force on a fresh index still
		// clears leftovers from a partial previous run.
		return force, nil
	}
	if err != nil {
		return false, err
	}

	mismatch := meta.EmbeddingProvider != idx.embedding.Name() ||
		meta.EmbeddingModel != idx.embedding.Model() ||
		meta.EmbeddingDimensions != idx.embedding.Dimensions()

	if mismatch && !force {
		return false, fmt.Errorf("%w: index built with %s/%s (%d dims), active config is %s/%s (%d dims); re-run with force",
			types.ErrMigrationRequired,
			meta.EmbeddingProvider, meta.EmbeddingModel, meta.EmbeddingDimensions,
			idx.embedding.Name(), idx.embedding.Model(), idx.embedding.Dimensions(),
		)
	}

	return force, nil
}

// processFiles chunks, embeds and commits the given files using a
// bounded worker pool. A single file failing to embed fails only that
// file; the rest of the run continues.
func (idx *Indexer) processFiles(ctx context.Context, files []*types.SourceFile) (int, int, error) {
	workers := idx.config.Limits.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}

	var (
		mu            sync.Mutex
		chunksIndexed int
		failed        int
		processed     int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, file := range files {
		file := file
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			idx.updateProgress("chunking", 0, 0, 0, 0, file.Path)

			n, err := idx.indexFile(gctx, file)

			mu.Lock()
			processed++
			done := processed
			if err != nil {
				failed++
			} else {
				chunksIndexed += n
			}
			mu.Unlock()

			if err != nil {
				// Context and provider-fatal errors abort the run,
				// per-file errors degrade it.
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if isFatal(err) {
					return fmt.Errorf("%s: %w", file.Path, err)
				}
				slog.Warn("failed to index file", "file", file.Path, "error", err)
			}

			idx.updateProgress("embedding", 0, done, 0, 0, "")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return chunksIndexed, failed, err
	}

	return chunksIndexed, failed, nil
}

// isFatal reports whether a per-file error must abort the whole run.
// Retrying other files cannot succeed when the provider rejects the
// credentials or the store is unusable.
func isFatal(err error) bool {
	return errors.Is(err, types.ErrProviderFatal) ||
		errors.Is(err, types.ErrInvalidConfig) ||
		errors.Is(err, types.ErrStoreCorrupt)
}

// withoutPaths returns paths with the given set removed.
func withoutPaths(paths, remove []string) []string {
	removeSet := make(map[string]bool, len(remove))
	for _, p := range remove {
		removeSet[p] = true
	}

	kept := paths[:0]
	for _, p := range paths {
		if !removeSet[p] {
			kept = append(kept, p)
		}
	}
	return kept
}

// indexFile chunks and embeds one file, then commits its chunks and
// hash in a single transaction. Returns the number of chunks stored.
func (idx *Indexer) indexFile(ctx context.Context, file *types.SourceFile) (int, error) {
	chunks, err := idx.chunker.Chunk(file)
	if err != nil {
		return 0, fmt.Errorf("chunking failed: %w", err)
	}

	if len(chunks) == 0 {
		// Empty files are recorded so they are skipped next run.
		return 0, idx.store.CommitFile(file.Path, file.Hash, nil)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	embeddings, err := idx.embedding.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("%w: got %d embeddings for %d chunks", types.ErrEmbeddingFailed, len(embeddings), len(chunks))
	}

	withEmbeddings := make([]*types.ChunkWithEmbedding, len(chunks))
	for i, chunk := range chunks {
		withEmbeddings[i] = &types.ChunkWithEmbedding{
			Chunk:     chunk,
			Embedding: embeddings[i],
		}
	}

	if err := idx.store.CommitFile(file.Path, file.Hash, withEmbeddings); err != nil {
		return 0, err
	}

	return len(chunks), nil
}

// writeMetadata records the active embedding and chunking configuration
// in the store, preserving the original creation time.
func (idx *Indexer) writeMetadata() error {
	now := time.Now()
	createdAt := now
	if existing, err := idx.store.GetMetadata(); err == nil && !existing.CreatedAt.IsZero() {
		createdAt = existing.CreatedAt
	}

	stats, err := idx.store.GetStats()
	if err != nil {
		return err
	}

	meta := &types.IndexMetadata{
		SchemaVersion:       1,
		CreatedAt:           createdAt,
		LastUpdated:         now,
		ToolVersion:         ToolVersion,
		ConfigHash:          idx.configHash,
		EmbeddingProvider:   idx.embedding.Name(),
		EmbeddingModel:      idx.embedding.Model(),
		EmbeddingDimensions: idx.embedding.Dimensions(),
		ChunkingStrategy:    idx.chunker.Name(),
		Stats:               *stats,
	}

	return idx.store.SetMetadata(meta)
}

// scanFiles scans the project for files to index. A restricted run
// visits only opts.Paths. The second return value lists paths that
// matched the include patterns but could not be read (unreadable,
// oversized or binary); their existing index records must be kept.
func (idx *Indexer) scanFiles(ctx context.Context, opts Options) ([]*types.SourceFile, []string, error) {
	if opts.restricted() {
		var (
			files      []*types.SourceFile
			unreadable []string
		)
		for _, relPath := range opts.Paths {
			if !idx.includePath(relPath) {
				continue
			}
			file, err := idx.readFile(relPath)
			if err != nil {
				slog.Warn("failed to read file", "path", relPath, "error", err)
				unreadable = append(unreadable, filepath.ToSlash(relPath))
				continue
			}
			files = append(files, file)
		}
		return files, unreadable, nil
	}

	// Try to use git ls-files first
	if idx.config.Index.UseGitIgnore {
		gitFiles, unreadable, err := idx.scanWithGit(ctx)
		if err == nil && len(gitFiles) > 0 {
			return gitFiles, unreadable, nil
		}
		slog.Debug("git scan failed, falling back to filesystem", "error", err)
	}

	// Fall back to filesystem walk
	var (
		files      []*types.SourceFile
		unreadable []string
	)
	err := filepath.WalkDir(idx.projectDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip errors
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		relPath, _ := filepath.Rel(idx.projectDir, path)

		// Skip directories in exclude list
		if d.IsDir() {
			if relPath == "." {
				return nil
			}
			for _, pattern := range idx.config.Index.Exclude {
				if matchGlob(pattern, relPath+"/") {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if !idx.includePath(relPath) {
			return nil
		}

		file, err := idx.readFile(relPath)
		if err != nil {
			slog.Warn("failed to read file", "path", relPath, "error", err)
			unreadable = append(unreadable, filepath.ToSlash(relPath))
			return nil
		}

		files = append(files, file)

		if len(files) >= idx.config.Limits.MaxFiles {
			slog.Warn("max files limit reached", "limit", idx.config.Limits.MaxFiles)
			return fs.SkipAll
		}

		return nil
	})

	return files, unreadable, err
}

// scanWithGit uses git ls-files to get tracked and untracked,
// non-ignored files.
func (idx *Indexer) scanWithGit(ctx context.Context) ([]*types.SourceFile, []string, error) {
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = idx.projectDir

	output, err := cmd.Output()
	if err != nil {
		return nil, nil, err
	}

	var (
		files      []*types.SourceFile
		unreadable []string
	)
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if !idx.includePath(line) {
			continue
		}

		file, err := idx.readFile(line)
		if err != nil {
			slog.Warn("failed to read file", "path", line, "error", err)
			unreadable = append(unreadable, filepath.ToSlash(line))
			continue
		}

		files = append(files, file)

		if len(files) >= idx.config.Limits.MaxFiles {
			slog.Warn("max files limit reached", "limit", idx.config.Limits.MaxFiles)
			break
		}
	}

	return files, unreadable, nil
}

// includePath applies the include and exclude patterns to a
// project-relative path.
func (idx *Indexer) includePath(relPath string) bool {
	included := false
	for _, pattern := range idx.config.Index.Include {
		if matchGlob(pattern, relPath) {
			included = true
			break
		}
	}
	if !included {
		return false
	}

	for _, pattern := range idx.config.Index.Exclude {
		if matchGlob(pattern, relPath) {
			return false
		}
	}

	return true
}

// readFile reads a project-relative file and creates a SourceFile. The
// stored path stays relative so the index is portable across checkouts.
func (idx *Indexer) readFile(relPath string) (*types.SourceFile, error) {
	fullPath := filepath.Join(idx.projectDir, relPath)

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, err
	}

	maxSize := parseSize(idx.config.Limits.MaxFileSize)
	if info.Size() > maxSize {
		return nil, fmt.Errorf("file too large: %d > %d", info.Size(), maxSize)
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, err
	}

	if isBinary(content) {
		return nil, fmt.Errorf("binary file")
	}

	file := &types.SourceFile{
		Path:     filepath.ToSlash(relPath),
		Content:  content,
		Language: linewindow.DetectLanguage(relPath),
	}
	file.Hash = file.ComputeHash()

	return file, nil
}

// isBinary sniffs for a NUL byte in the first 8KB, the same heuristic
// git uses to distinguish binary from text.
func isBinary(content []byte) bool {
	sniff := content
	if len(sniff) > 8192 {
		sniff = sniff[:8192]
	}
	return bytes.IndexByte(sniff, 0) >= 0
}

// ScanHashes scans the project and returns the current relative-path
// to content-hash map. The store is not consulted or touched.
func (idx *Indexer) ScanHashes(ctx context.Context) (map[string]string, error) {
	files, _, err := idx.scanFiles(ctx, Options{})
	if err != nil {
		return nil, err
	}

	hashes := make(map[string]string, len(files))
	for _, f := range files {
		hashes[f.Path] = f.Hash
	}
	return hashes, nil
}

// updateProgress updates the progress state.
func (idx *Indexer) updateProgress(phase string, totalFiles, processedFiles, totalChunks, processedChunks int, currentFile string) {
	idx.progressMu.Lock()
	defer idx.progressMu.Unlock()

	if phase != "" {
		idx.progress.Phase = phase
	}
	if totalFiles > 0 {
		idx.progress.TotalFiles = totalFiles
	}
	if processedFiles > 0 {
		idx.progress.ProcessedFiles = processedFiles
	}
	if totalChunks > 0 {
		idx.progress.TotalChunks = totalChunks
	}
	if processedChunks > 0 {
		idx.progress.ProcessedChunks = processedChunks
	}
	if currentFile != "" {
		idx.progress.CurrentFile = currentFile
	}

	if idx.onProgress != nil {
		idx.onProgress(idx.progress)
	}
}

// matchGlob matches a path against a glob pattern.
func matchGlob(pattern, path string) bool {
	// Handle ** for recursive matching
	if strings.Contains(pattern, "**") {
		parts := strings.Split(pattern, "**")
		if len(parts) == 2 {
			prefix := strings.TrimSuffix(parts[0], "/")
			suffix := strings.TrimPrefix(parts[1], "/")

			if prefix != "" && !strings.HasPrefix(path, prefix) {
				return false
			}

			if suffix == "" {
				return true
			}

			// If suffix contains *, match against the basename or the
			// remaining path.
			if strings.Contains(suffix, "*") {
				base := filepath.Base(path)
				matched, _ := filepath.Match(suffix, base)
				if matched {
					return true
				}
				remaining := path
				if prefix != "" {
					remaining = strings.TrimPrefix(path, prefix)
					remaining = strings.TrimPrefix(remaining, "/")
				}
				matched, _ = filepath.Match(suffix, remaining)
				return matched
			}

			return strings.HasSuffix(path, suffix) || strings.Contains(path, suffix)
		}
	}

	// Standard glob match
	matched, _ := filepath.Match(pattern, path)
	if matched {
		return true
	}

	base := filepath.Base(path)
	matched, _ = filepath.Match(pattern, base)
	return matched
}

// parseSize parses a size string like "1MB" to bytes.
func parseSize(s string) int64 {
	s = strings.ToUpper(strings.TrimSpace(s))

	multiplier := int64(1)
	switch {
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "B"):
		s = strings.TrimSuffix(s, "B")
	}

	var value int64
	_, _ = fmt.Sscanf(s, "%d", &value)

	return value * multiplier
}
