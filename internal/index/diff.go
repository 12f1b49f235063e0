package index

import (
	"github.com/codescope/codescope/pkg/types"
)

// ComputeDiff partitions the scanned files against the stored hashes.
// Every scanned path lands in exactly one of Added, Modified or
// Unchanged; stored paths absent from the scan land in Deleted.
func ComputeDiff(files []*types.SourceFile, stored map[string]string) *types.FileDiff {
	diff := &types.FileDiff{}

	seen := make(map[string]bool, len(files))
	for _, file := range files {
		seen[file.Path] = true

		hash, ok := stored[file.Path]
		switch {
		case !ok:
			diff.Added = append(diff.Added, file.Path)
		case hash != file.Hash:
			diff.Modified = append(diff.Modified, file.Path)
		default:
			diff.Unchanged = append(diff.Unchanged, file.Path)
		}
	}

	for path := range stored {
		if !seen[path] {
			diff.Deleted = append(diff.Deleted, path)
		}
	}

	return diff
}
