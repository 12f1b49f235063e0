package mcp

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/codescope/codescope/builtin/vectorstore/sqlitevec"
)

func TestGrepFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	content := "package a\n\nfunc Login() {}\n\nfunc Logout() {}\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	re := regexp.MustCompile(`func Log\w+`)
	matches, err := grepFile(path, "a.go", re, 1, 10)
	if err != nil {
		t.Fatalf("grepFile() error = %v", err)
	}

	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0].Line != 3 || matches[0].File != "a.go" {
		t.Errorf("first match = %+v, want line 3 in a.go", matches[0])
	}
	if len(matches[0].ContextBefore) != 1 || matches[0].ContextBefore[0] != "" {
		t.Errorf("ContextBefore = %v, want one blank line", matches[0].ContextBefore)
	}
}

func TestGrepFileMaxMatches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("x\nx\nx\nx\n"), 0644); err != nil {
		t.Fatal(err)
	}

	matches, err := grepFile(path, "a.txt", regexp.MustCompile("x"), 0, 2)
	if err != nil {
		t.Fatalf("grepFile() error = %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("got %d matches, want 2", len(matches))
	}
}

func TestGrepWalksIndexedFilesOnly(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"indexed.go":    "package a\n\nvar needle = 1\n",
		"unindexed.log": "needle here too\n",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	store := sqlitevec.New()
	if err := store.Init(filepath.Join(t.TempDir(), "index.db"), 4); err != nil {
		t.Fatalf("store.Init() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.SetFileHash("indexed.go", "h1"); err != nil {
		t.Fatal(err)
	}

	s := &Server{projectDir: dir, store: store}

	result, err := s.grep(context.Background(), regexp.MustCompile("needle"), "", 0, 10)
	if err != nil {
		t.Fatalf("grep() error = %v", err)
	}

	if result.TotalCount != 1 {
		t.Fatalf("TotalCount = %d, want 1", result.TotalCount)
	}
	if result.Matches[0].File != "indexed.go" {
		t.Errorf("match in %s, want indexed.go only", result.Matches[0].File)
	}
}
