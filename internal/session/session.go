// Package session tracks what changed in a project over the course of a
// coding session. Begin snapshots the current file hashes, End diffs
// the tree against that snapshot and re-indexes exactly what the
// session touched.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/internal/index"
	"github.com/codescope/codescope/pkg/types"
)

// Manager persists session snapshots and drives the indexing runs at
// session boundaries.
type Manager struct {
	projectDir string
	indexer    *index.Indexer
}

// New creates a session manager for the given project.
func New(projectDir string, indexer *index.Indexer) *Manager {
	return &Manager{
		projectDir: projectDir,
		indexer:    indexer,
	}
}

// Begin brings the index up to date and records a snapshot of the
// current file hashes. The snapshot comes from a fresh scan of the
// tree, not from the store, so later store changes cannot distort the
// session diff. Beginning a new session overwrites any previous
// snapshot, the last writer wins.
func (m *Manager) Begin(ctx context.Context) (*types.SessionSnapshot, *types.IndexResult, error) {
	result, err := m.indexer.Index(ctx, index.Options{})
	if err != nil {
		return nil, nil, err
	}

	files, err := m.indexer.ScanHashes(ctx)
	if err != nil {
		return nil, nil, err
	}

	snapshot := &types.SessionSnapshot{
		StartedAt: time.Now(),
		Files:     files,
	}
	if err := m.save(snapshot); err != nil {
		return nil, nil, err
	}

	slog.Info("session started", "files", len(snapshot.Files))
	return snapshot, result, nil
}

// End diffs the current tree against the session snapshot, re-indexes
// exactly the files the session changed or added including purging the
// ones it removed, and deletes the snapshot. Without a prior Begin it
// falls back to a regular incremental run, which detects the same
// changes from the stored hashes.
func (m *Manager) End(ctx context.Context) (*types.IndexResult, error) {
	snapshot, err := m.load()
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}

	if snapshot == nil {
		slog.Info("no active session, running incremental index")
		result, err := m.indexer.Index(ctx, index.Options{})
		if err != nil {
			return nil, err
		}
		return result, m.clearLogged()
	}

	current, err := m.indexer.ScanHashes(ctx)
	if err != nil {
		return nil, err
	}

	changed, removed := snapshotDiff(snapshot.Files, current)

	slog.Info("session ending",
		"started_at", snapshot.StartedAt.Format(time.RFC3339),
		"files_at_start", len(snapshot.Files),
		"changed", len(changed),
		"removed", len(removed),
	)

	if len(changed) == 0 && len(removed) == 0 {
		result := &types.IndexResult{FilesUnchanged: len(current)}
		return result, m.clearLogged()
	}

	result, err := m.indexer.Index(ctx, index.Options{
		Paths:   changed,
		Deletes: removed,
	})
	if err != nil {
		return nil, err
	}

	return result, m.clearLogged()
}

// snapshotDiff returns the paths whose hash changed or that are new
// since the snapshot, and the paths the snapshot had that are gone.
func snapshotDiff(snapshot, current map[string]string) (changed, removed []string) {
	for path, hash := range current {
		if snapshot[path] != hash {
			changed = append(changed, path)
		}
	}
	for path := range snapshot {
		if _, ok := current[path]; !ok {
			removed = append(removed, path)
		}
	}
	sort.Strings(changed)
	sort.Strings(removed)
	return changed, removed
}

// Active returns the current snapshot, or ErrNotFound when no session
// is in progress.
func (m *Manager) Active() (*types.SessionSnapshot, error) {
	return m.load()
}

func (m *Manager) save(snapshot *types.SessionSnapshot) error {
	path := config.SessionPath(m.projectDir)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}

	// Write-then-rename so a crash never leaves a torn snapshot.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (m *Manager) load() (*types.SessionSnapshot, error) {
	data, err := os.ReadFile(config.SessionPath(m.projectDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var snapshot types.SessionSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unreadable session snapshot: %w", err)
	}

	return &snapshot, nil
}

func (m *Manager) clear() error {
	err := os.Remove(config.SessionPath(m.projectDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (m *Manager) clearLogged() error {
	if err := m.clear(); err != nil {
		slog.Warn("failed to remove session snapshot", "error", err)
	}
	return nil
}
