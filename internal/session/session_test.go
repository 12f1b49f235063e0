package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/codescope/codescope/builtin/chunking/linewindow"
	"github.com/codescope/codescope/builtin/embedding/local"
	"github.com/codescope/codescope/builtin/vectorstore/sqlitevec"
	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/internal/index"
	"github.com/codescope/codescope/pkg/provider"
	"github.com/codescope/codescope/pkg/types"
)

// recordingProvider keeps every text it embeds, so tests can assert
// which files a run touched.
type recordingProvider struct {
	provider.EmbeddingProvider

	mu    sync.Mutex
	texts []string
}

func (r *recordingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	r.mu.Lock()
	r.texts = append(r.texts, texts...)
	r.mu.Unlock()
	return r.EmbeddingProvider.Embed(ctx, texts)
}

func (r *recordingProvider) embeddedSince(mark int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.texts[mark:]
}

func (r *recordingProvider) mark() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.texts)
}

func newTestManager(t *testing.T, projectDir string) (*Manager, provider.VectorStore, *recordingProvider) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Index.Include = []string{"**/*.go"}
	cfg.Index.Exclude = []string{"**/.codescope/**"}
	cfg.Index.UseGitIgnore = false
	cfg.Limits.Workers = 2

	emb := &recordingProvider{EmbeddingProvider: local.New(local.Config{})}

	store := sqlitevec.New()
	if err := store.Init(config.IndexDBPath(projectDir), emb.Dimensions()); err != nil {
		t.Fatalf("store.Init() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	indexer := index.New(index.Config{
		ProjectDir: projectDir,
		Config:     cfg,
		Store:      store,
		Embedding:  emb,
		Chunker:    linewindow.New(linewindow.Config{}),
	})

	return New(projectDir, indexer), store, emb
}

func writeProjectFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestBeginWritesSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "a.go", "package a\n\nfunc A() {}\n")

	m, _, _ := newTestManager(t, dir)

	snapshot, result, err := m.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if result.FilesChanged != 1 {
		t.Errorf("Begin() indexed %d files, want 1", result.FilesChanged)
	}
	if len(snapshot.Files) != 1 {
		t.Errorf("snapshot has %d files, want 1", len(snapshot.Files))
	}
	if snapshot.StartedAt.IsZero() {
		t.Error("snapshot StartedAt is zero")
	}

	if _, err := os.Stat(config.SessionPath(dir)); err != nil {
		t.Errorf("session file missing: %v", err)
	}

	active, err := m.Active()
	if err != nil {
		t.Fatalf("Active() error = %v", err)
	}
	if len(active.Files) != 1 {
		t.Errorf("Active() snapshot has %d files, want 1", len(active.Files))
	}
}

func TestEndReindexesChanges(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "a.go", "package a\n\nfunc A() {}\n")

	m, _, _ := newTestManager(t, dir)

	if _, _, err := m.Begin(context.Background()); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	// Edits during the session.
	writeProjectFile(t, dir, "a.go", "package a\n\nfunc A() {}\n\nfunc A2() {}\n")
	writeProjectFile(t, dir, "b.go", "package b\n\nfunc B() {}\n")

	result, err := m.End(context.Background())
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if result.FilesChanged != 2 {
		t.Errorf("End() FilesChanged = %d, want 2", result.FilesChanged)
	}

	if _, err := m.Active(); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Active() after End() error = %v, want ErrNotFound", err)
	}
}

func TestEndDiffsAgainstSnapshotNotStore(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "a.go", "package a\n\nfunc A() {}\n")
	writeProjectFile(t, dir, "b.go", "package b\n\nfunc B() {}\n")

	m, store, emb := newTestManager(t, dir)

	if _, _, err := m.Begin(context.Background()); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	// Corrupt the stored hash of b.go mid-session. The session did not
	// touch b.go, so End must not re-index it.
	if err := store.SetFileHash("b.go", "bogus"); err != nil {
		t.Fatal(err)
	}
	writeProjectFile(t, dir, "a.go", "package a\n\nfunc A() {}\n\nfunc A2() {}\n")

	mark := emb.mark()
	result, err := m.End(context.Background())
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}

	if result.FilesChanged != 1 {
		t.Errorf("End() FilesChanged = %d, want 1", result.FilesChanged)
	}
	for _, text := range emb.embeddedSince(mark) {
		if strings.Contains(text, "func B()") {
			t.Errorf("End() re-embedded b.go, which the session never touched")
		}
	}

	hashes, err := store.GetAllFileHashes()
	if err != nil {
		t.Fatalf("GetAllFileHashes() error = %v", err)
	}
	if hashes["b.go"] != "bogus" {
		t.Errorf("b.go hash = %q, want the mid-session value left alone", hashes["b.go"])
	}
}

func TestEndEmbedsOnlySessionChanges(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "a.go", "package a\n\nfunc A() {}\n")
	writeProjectFile(t, dir, "b.go", "package b\n\nfunc B() {}\n")

	m, _, emb := newTestManager(t, dir)

	if _, _, err := m.Begin(context.Background()); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	writeProjectFile(t, dir, "a.go", "package a\n\nfunc A() {}\n\nfunc A2() {}\n")
	writeProjectFile(t, dir, "c.go", "package c\n\nfunc C() {}\n")

	mark := emb.mark()
	result, err := m.End(context.Background())
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}

	if result.FilesChanged != 2 {
		t.Errorf("End() FilesChanged = %d, want a.go and c.go", result.FilesChanged)
	}

	var sawA, sawC bool
	for _, text := range emb.embeddedSince(mark) {
		switch {
		case strings.Contains(text, "func A2()"):
			sawA = true
		case strings.Contains(text, "func C()"):
			sawC = true
		case strings.Contains(text, "func B()"):
			t.Error("End() re-embedded unchanged b.go")
		}
	}
	if !sawA || !sawC {
		t.Errorf("End() embedded a.go=%v c.go=%v, want both", sawA, sawC)
	}
}

func TestEndUnchangedTreeEmbedsNothing(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "a.go", "package a\n\nfunc A() {}\n")
	writeProjectFile(t, dir, "b.go", "package b\n\nfunc B() {}\n")

	m, _, emb := newTestManager(t, dir)

	if _, _, err := m.Begin(context.Background()); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	mark := emb.mark()
	result, err := m.End(context.Background())
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}

	if result.FilesChanged != 0 || result.FilesUnchanged != 2 {
		t.Errorf("End() result = %+v, want 0 changed, 2 unchanged", result)
	}
	if texts := emb.embeddedSince(mark); len(texts) != 0 {
		t.Errorf("End() embedded %d texts on an unchanged tree, want 0", len(texts))
	}
}

func TestEndPurgesFilesRemovedDuringSession(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "a.go", "package a\n\nfunc A() {}\n")
	writeProjectFile(t, dir, "b.go", "package b\n\nfunc B() {}\n")

	m, store, _ := newTestManager(t, dir)

	if _, _, err := m.Begin(context.Background()); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	if err := os.Remove(filepath.Join(dir, "b.go")); err != nil {
		t.Fatal(err)
	}

	result, err := m.End(context.Background())
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}

	if result.FilesDeleted != 1 {
		t.Errorf("End() FilesDeleted = %d, want 1", result.FilesDeleted)
	}

	hashes, err := store.GetAllFileHashes()
	if err != nil {
		t.Fatalf("GetAllFileHashes() error = %v", err)
	}
	if _, ok := hashes["b.go"]; ok {
		t.Error("b.go still in hash store after session deletion")
	}
}

func TestEndWithoutBeginFallsBackToIncremental(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "a.go", "package a\n\nfunc A() {}\n")

	m, _, _ := newTestManager(t, dir)

	result, err := m.End(context.Background())
	if err != nil {
		t.Fatalf("End() without Begin() error = %v", err)
	}
	if result.FilesChanged != 1 {
		t.Errorf("End() FilesChanged = %d, want 1", result.FilesChanged)
	}
}

func TestBeginOverwritesPreviousSession(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "a.go", "package a\n")

	m, _, _ := newTestManager(t, dir)

	first, _, err := m.Begin(context.Background())
	if err != nil {
		t.Fatalf("first Begin() error = %v", err)
	}

	writeProjectFile(t, dir, "b.go", "package b\n")

	second, _, err := m.Begin(context.Background())
	if err != nil {
		t.Fatalf("second Begin() error = %v", err)
	}

	if len(second.Files) != 2 {
		t.Errorf("second snapshot has %d files, want 2", len(second.Files))
	}
	if !second.StartedAt.After(first.StartedAt) && !second.StartedAt.Equal(first.StartedAt) {
		t.Errorf("second StartedAt %v before first %v", second.StartedAt, first.StartedAt)
	}

	active, err := m.Active()
	if err != nil {
		t.Fatalf("Active() error = %v", err)
	}
	if len(active.Files) != 2 {
		t.Errorf("Active() snapshot has %d files, want the second snapshot", len(active.Files))
	}
}
