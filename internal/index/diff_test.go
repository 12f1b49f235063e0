package index

import (
	"sort"
	"testing"

	"github.com/codescope/codescope/pkg/types"
)

func sourceFile(path, content string) *types.SourceFile {
	f := &types.SourceFile{Path: path, Content: []byte(content)}
	f.Hash = f.ComputeHash()
	return f
}

func TestComputeDiff(t *testing.T) {
	added := sourceFile("new.go", "package new")
	modified := sourceFile("changed.go", "package changed // v2")
	unchanged := sourceFile("same.go", "package same")

	stored := map[string]string{
		"changed.go": sourceFile("changed.go", "package changed").Hash,
		"same.go":    unchanged.Hash,
		"gone.go":    "deadbeef",
	}

	diff := ComputeDiff([]*types.SourceFile{added, modified, unchanged}, stored)

	if len(diff.Added) != 1 || diff.Added[0] != "new.go" {
		t.Errorf("Added = %v, want [new.go]", diff.Added)
	}
	if len(diff.Modified) != 1 || diff.Modified[0] != "changed.go" {
		t.Errorf("Modified = %v, want [changed.go]", diff.Modified)
	}
	if len(diff.Unchanged) != 1 || diff.Unchanged[0] != "same.go" {
		t.Errorf("Unchanged = %v, want [same.go]", diff.Unchanged)
	}
	if len(diff.Deleted) != 1 || diff.Deleted[0] != "gone.go" {
		t.Errorf("Deleted = %v, want [gone.go]", diff.Deleted)
	}
	if diff.Total() != 3 {
		t.Errorf("Total() = %d, want 3", diff.Total())
	}
}

func TestComputeDiffEmptyStore(t *testing.T) {
	files := []*types.SourceFile{
		sourceFile("a.go", "package a"),
		sourceFile("b.go", "package b"),
	}

	diff := ComputeDiff(files, nil)

	var got []string
	got = append(got, diff.Added...)
	sort.Strings(got)
	want := []string{"a.go", "b.go"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Added = %v, want %v", got, want)
	}
	if len(diff.Modified)+len(diff.Deleted)+len(diff.Unchanged) != 0 {
		t.Errorf("diff = %+v, want everything in Added", diff)
	}
}

func TestComputeDiffEmptyScan(t *testing.T) {
	stored := map[string]string{"a.go": "h1", "b.go": "h2"}

	diff := ComputeDiff(nil, stored)

	if len(diff.Deleted) != 2 {
		t.Errorf("Deleted = %v, want both stored paths", diff.Deleted)
	}
	if diff.Total() != 0 {
		t.Errorf("Total() = %d, want 0", diff.Total())
	}
}

func TestComputeDiffPartitionsAreDisjoint(t *testing.T) {
	files := []*types.SourceFile{
		sourceFile("a.go", "package a"),
		sourceFile("b.go", "package b"),
		sourceFile("c.go", "package c"),
	}
	stored := map[string]string{
		"b.go": files[1].Hash,
		"c.go": "stale",
		"d.go": "h4",
	}

	diff := ComputeDiff(files, stored)

	seen := make(map[string]int)
	for _, p := range diff.Added {
		seen[p]++
	}
	for _, p := range diff.Modified {
		seen[p]++
	}
	for _, p := range diff.Unchanged {
		seen[p]++
	}
	for _, p := range diff.Deleted {
		seen[p]++
	}

	for path, count := range seen {
		if count != 1 {
			t.Errorf("path %s appears in %d partitions", path, count)
		}
	}
	if len(seen) != 4 {
		t.Errorf("diff covers %d paths, want 4", len(seen))
	}
}
