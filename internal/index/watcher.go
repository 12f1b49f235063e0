package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codescope/codescope/builtin/chunking/linewindow"
	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/pkg/provider"
	"github.com/codescope/codescope/pkg/types"
)

// Watcher watches for file changes and keeps the index up to date.
type Watcher struct {
	config     *config.Config
	store      provider.VectorStore
	embedding  provider.EmbeddingProvider
	chunker    provider.ChunkingStrategy
	projectDir string

	watcher *fsnotify.Watcher

	// Debouncing
	pendingMu    sync.Mutex
	pendingFiles map[string]time.Time
	debounceTime time.Duration
}

// WatcherConfig contains watcher configuration.
type WatcherConfig struct {
	ProjectDir   string
	Config       *config.Config
	Store        provider.VectorStore
	Embedding    provider.EmbeddingProvider
	Chunker      provider.ChunkingStrategy
	DebounceTime time.Duration // Default: 500ms
}

// NewWatcher creates a new file watcher.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounceTime := cfg.DebounceTime
	if debounceTime == 0 {
		debounceTime = 500 * time.Millisecond
	}

	return &Watcher{
		config:       cfg.Config,
		store:        cfg.Store,
		embedding:    cfg.Embedding,
		chunker:      cfg.Chunker,
		projectDir:   cfg.ProjectDir,
		watcher:      watcher,
		pendingFiles: make(map[string]time.Time),
		debounceTime: debounceTime,
	}, nil
}

// Watch starts watching for file changes.
// It blocks until the context is cancelled.
func (w *Watcher) Watch(ctx context.Context) error {
	if err := w.addWatchDirs(); err != nil {
		return err
	}

	slog.Info("watching for file changes", "dir", w.projectDir)

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping watcher")
			return w.watcher.Close()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", "error", err)
		}
	}
}

// addWatchDirs recursively adds directories to watch.
func (w *Watcher) addWatchDirs() error {
	return filepath.WalkDir(w.projectDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		if d.IsDir() {
			relPath, _ := filepath.Rel(w.projectDir, path)
			if relPath != "." {
				for _, pattern := range w.config.Index.Exclude {
					if matchGlob(pattern, relPath+"/") {
						return filepath.SkipDir
					}
				}

				if strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
			}

			if err := w.watcher.Add(path); err != nil {
				slog.Warn("failed to watch directory", "path", path, "error", err)
			}
		}
		return nil
	})
}

// handleEvent records a relevant file system event for debounced
// processing.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	relPath, err := filepath.Rel(w.projectDir, event.Name)
	if err != nil {
		return
	}
	relPath = filepath.ToSlash(relPath)

	included := false
	for _, pattern := range w.config.Index.Include {
		if matchGlob(pattern, relPath) {
			included = true
			break
		}
	}
	if !included {
		return
	}

	for _, pattern := range w.config.Index.Exclude {
		if matchGlob(pattern, relPath) {
			return
		}
	}

	w.pendingMu.Lock()
	w.pendingFiles[relPath] = time.Now()
	w.pendingMu.Unlock()

	slog.Debug("file changed", "path", relPath, "op", event.Op.String())
}

// processDebounced processes pending files after the debounce period.
func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processPendingFiles(ctx)
		}
	}
}

// processPendingFiles re-indexes files that have been stable for the
// debounce period.
func (w *Watcher) processPendingFiles(ctx context.Context) {
	w.pendingMu.Lock()
	now := time.Now()
	var toProcess []string
	for path, changedAt := range w.pendingFiles {
		if now.Sub(changedAt) >= w.debounceTime {
			toProcess = append(toProcess, path)
			delete(w.pendingFiles, path)
		}
	}
	w.pendingMu.Unlock()

	if len(toProcess) == 0 {
		return
	}

	w.reindexFiles(ctx, toProcess)
}

// reindexFiles re-indexes the given project-relative paths.
func (w *Watcher) reindexFiles(ctx context.Context, paths []string) {
	slog.Info("re-indexing changed files", "count", len(paths))

	for _, relPath := range paths {
		if ctx.Err() != nil {
			return
		}

		fullPath := filepath.Join(w.projectDir, relPath)

		info, err := os.Stat(fullPath)
		if os.IsNotExist(err) {
			if err := w.store.DeleteChunksByFile(relPath); err != nil {
				slog.Warn("failed to delete chunks", "file", relPath, "error", err)
				continue
			}
			if err := w.store.DeleteFileHash(relPath); err != nil {
				slog.Warn("failed to delete file hash", "file", relPath, "error", err)
			}
			slog.Info("removed deleted file from index", "file", relPath)
			continue
		}

		if err != nil {
			slog.Warn("failed to stat file", "file", relPath, "error", err)
			continue
		}

		if info.IsDir() {
			continue
		}

		if err := w.indexFile(ctx, relPath); err != nil {
			slog.Warn("failed to index file", "file", relPath, "error", err)
		}
	}
}

// indexFile chunks, embeds and commits a single file.
func (w *Watcher) indexFile(ctx context.Context, relPath string) error {
	fullPath := filepath.Join(w.projectDir, relPath)

	maxSize := parseSize(w.config.Limits.MaxFileSize)
	info, err := os.Stat(fullPath)
	if err != nil {
		return err
	}
	if info.Size() > maxSize {
		return nil // Skip large files
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return err
	}

	file := &types.SourceFile{
		Path:     relPath,
		Content:  content,
		Language: linewindow.DetectLanguage(relPath),
	}
	file.Hash = file.ComputeHash()

	cachedHash, err := w.store.GetFileHash(relPath)
	if err == nil && cachedHash == file.Hash {
		return nil // Already up to date
	}

	chunks, err := w.chunker.Chunk(file)
	if err != nil {
		return err
	}

	if len(chunks) == 0 {
		return w.store.CommitFile(relPath, file.Hash, nil)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	embeddings, err := w.embedding.Embed(ctx, texts)
	if err != nil {
		return err
	}

	withEmbeddings := make([]*types.ChunkWithEmbedding, len(chunks))
	for i, chunk := range chunks {
		withEmbeddings[i] = &types.ChunkWithEmbedding{
			Chunk:     chunk,
			Embedding: embeddings[i],
		}
	}

	if err := w.store.CommitFile(relPath, file.Hash, withEmbeddings); err != nil {
		return err
	}

	slog.Info("indexed file", "file", relPath, "chunks", len(chunks))
	return nil
}

// Close closes the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
