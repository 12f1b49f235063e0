package sqlitevec

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/codescope/codescope/pkg/types"
)

const testDims = 4

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s := New()
	path := filepath.Join(t.TempDir(), "index.db")
	if err := s.Init(path, testDims); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testChunk(id, filePath, name, content string) *types.ChunkWithEmbedding {
	return &types.ChunkWithEmbedding{
		Chunk: &types.Chunk{
			ID:        id,
			FilePath:  filePath,
			Language:  "go",
			Content:   content,
			ChunkType: types.ChunkTypeFunction,
			Name:      name,
			StartLine: 1,
			EndLine:   10,
		},
		Embedding: []float32{1, 0, 0, 0},
	}
}

func withEmbedding(c *types.ChunkWithEmbedding, vec []float32) *types.ChunkWithEmbedding {
	c.Embedding = vec
	return c
}

func TestUpsertAndGetChunk(t *testing.T) {
	s := newTestStore(t)

	chunk := testChunk("a.go#0:deadbeef", "a.go", "Parse", "func Parse() {}")
	if err := s.UpsertChunks([]*types.ChunkWithEmbedding{chunk}); err != nil {
		t.Fatalf("UpsertChunks() error = %v", err)
	}

	got, err := s.GetChunk(chunk.Chunk.ID)
	if err != nil {
		t.Fatalf("GetChunk() error = %v", err)
	}
	if got.Name != "Parse" || got.FilePath != "a.go" {
		t.Errorf("GetChunk() = %+v, want Parse in a.go", got)
	}

	if _, err := s.GetChunk("missing"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("GetChunk(missing) error = %v, want ErrNotFound", err)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	s := newTestStore(t)

	chunk := testChunk("a.go#0:deadbeef", "a.go", "Parse", "func Parse() {}")
	for i := 0; i < 3; i++ {
		if err := s.UpsertChunks([]*types.ChunkWithEmbedding{chunk}); err != nil {
			t.Fatalf("UpsertChunks() round %d error = %v", i, err)
		}
	}

	stats, err := s.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.TotalChunks != 1 {
		t.Errorf("TotalChunks = %d after repeated upserts, want 1", stats.TotalChunks)
	}
}

func TestCommitFileReplacesChunks(t *testing.T) {
	s := newTestStore(t)

	old := []*types.ChunkWithEmbedding{
		testChunk("a.go#0:aaaa0000", "a.go", "Old1", "func Old1() {}"),
		testChunk("a.go#1:aaaa0001", "a.go", "Old2", "func Old2() {}"),
	}
	if err := s.CommitFile("a.go", "hash-v1", old); err != nil {
		t.Fatalf("CommitFile() error = %v", err)
	}

	newer := []*types.ChunkWithEmbedding{
		testChunk("a.go#0:bbbb0000", "a.go", "New1", "func New1() {}"),
	}
	if err := s.CommitFile("a.go", "hash-v2", newer); err != nil {
		t.Fatalf("CommitFile() error = %v", err)
	}

	if _, err := s.GetChunk("a.go#0:aaaa0000"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("old chunk still present after commit, err = %v", err)
	}
	if _, err := s.GetChunk("a.go#0:bbbb0000"); err != nil {
		t.Errorf("new chunk missing after commit, err = %v", err)
	}

	hash, err := s.GetFileHash("a.go")
	if err != nil {
		t.Fatalf("GetFileHash() error = %v", err)
	}
	if hash != "hash-v2" {
		t.Errorf("GetFileHash() = %q, want hash-v2", hash)
	}
}

func TestDeleteChunksByFile(t *testing.T) {
	s := newTestStore(t)

	chunks := []*types.ChunkWithEmbedding{
		testChunk("a.go#0:aaaa0000", "a.go", "A", "func A() {}"),
		testChunk("b.go#0:bbbb0000", "b.go", "B", "func B() {}"),
	}
	if err := s.UpsertChunks(chunks); err != nil {
		t.Fatalf("UpsertChunks() error = %v", err)
	}

	if err := s.DeleteChunksByFile("a.go"); err != nil {
		t.Fatalf("DeleteChunksByFile() error = %v", err)
	}

	if _, err := s.GetChunk("a.go#0:aaaa0000"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("a.go chunk still present, err = %v", err)
	}
	if _, err := s.GetChunk("b.go#0:bbbb0000"); err != nil {
		t.Errorf("b.go chunk removed by unrelated delete, err = %v", err)
	}
}

func TestFileHashRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetFileHash("a.go"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("GetFileHash(unknown) error = %v, want ErrNotFound", err)
	}

	if err := s.SetFileHash("a.go", "abc123"); err != nil {
		t.Fatalf("SetFileHash() error = %v", err)
	}
	hash, err := s.GetFileHash("a.go")
	if err != nil {
		t.Fatalf("GetFileHash() error = %v", err)
	}
	if hash != "abc123" {
		t.Errorf("GetFileHash() = %q, want abc123", hash)
	}

	if err := s.SetFileHash("b.go", "def456"); err != nil {
		t.Fatalf("SetFileHash() error = %v", err)
	}
	all, err := s.GetAllFileHashes()
	if err != nil {
		t.Fatalf("GetAllFileHashes() error = %v", err)
	}
	if len(all) != 2 || all["a.go"] != "abc123" || all["b.go"] != "def456" {
		t.Errorf("GetAllFileHashes() = %v", all)
	}

	if err := s.DeleteFileHash("a.go"); err != nil {
		t.Fatalf("DeleteFileHash() error = %v", err)
	}
	if _, err := s.GetFileHash("a.go"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("GetFileHash(deleted) error = %v, want ErrNotFound", err)
	}
}

func TestVectorSearchOrdering(t *testing.T) {
	s := newTestStore(t)

	chunks := []*types.ChunkWithEmbedding{
		withEmbedding(testChunk("a.go#0:aaaa0000", "a.go", "Near", "near"), []float32{1, 0, 0, 0}),
		withEmbedding(testChunk("b.go#0:bbbb0000", "b.go", "Mid", "mid"), []float32{0.7, 0.7, 0, 0}),
		withEmbedding(testChunk("c.go#0:cccc0000", "c.go", "Far", "far"), []float32{0, 0, 1, 0}),
	}
	if err := s.UpsertChunks(chunks); err != nil {
		t.Fatalf("UpsertChunks() error = %v", err)
	}

	results, err := s.Search(context.Background(), &types.SearchRequest{
		QueryVec: []float32{1, 0, 0, 0},
		Limit:    3,
		Mode:     types.SearchModeVector,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Search() returned %d results, want 3", len(results))
	}
	if results[0].Chunk.Name != "Near" {
		t.Errorf("top result = %s, want Near", results[0].Chunk.Name)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted by score: %f > %f at %d", results[i].Score, results[i-1].Score, i)
		}
	}
}

func TestVectorSearchMinScore(t *testing.T) {
	s := newTestStore(t)

	chunks := []*types.ChunkWithEmbedding{
		withEmbedding(testChunk("a.go#0:aaaa0000", "a.go", "Near", "near"), []float32{1, 0, 0, 0}),
		withEmbedding(testChunk("c.go#0:cccc0000", "c.go", "Far", "far"), []float32{0, 0, 1, 0}),
	}
	if err := s.UpsertChunks(chunks); err != nil {
		t.Fatalf("UpsertChunks() error = %v", err)
	}

	results, err := s.Search(context.Background(), &types.SearchRequest{
		QueryVec: []float32{1, 0, 0, 0},
		Limit:    10,
		MinScore: 0.5,
		Mode:     types.SearchModeVector,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Chunk.Name != "Near" {
		t.Errorf("Search() with MinScore = %v, want only Near", results)
	}
}

func TestSearchPathPrefixFilter(t *testing.T) {
	s := newTestStore(t)

	chunks := []*types.ChunkWithEmbedding{
		testChunk("internal/auth/a.go#0:aaaa0000", "internal/auth/a.go", "Login", "func Login() {}"),
		testChunk("cmd/main.go#0:bbbb0000", "cmd/main.go", "Main", "func main() {}"),
	}
	if err := s.UpsertChunks(chunks); err != nil {
		t.Fatalf("UpsertChunks() error = %v", err)
	}

	results, err := s.Search(context.Background(), &types.SearchRequest{
		QueryVec: []float32{1, 0, 0, 0},
		Limit:    10,
		Mode:     types.SearchModeVector,
		Filters:  &types.SearchFilters{PathPrefix: "internal/"},
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Chunk.FilePath != "internal/auth/a.go" {
		t.Errorf("PathPrefix filter returned %v, want internal/auth/a.go only", results)
	}
}

func TestBM25Search(t *testing.T) {
	s := newTestStore(t)

	chunks := []*types.ChunkWithEmbedding{
		testChunk("a.go#0:aaaa0000", "a.go", "authenticateUser", "func authenticateUser(token string) error { return validateToken(token) }"),
		testChunk("b.go#0:bbbb0000", "b.go", "parseFloat", "func parseFloat(s string) (float64, error) { return strconv.ParseFloat(s, 64) }"),
	}
	if err := s.UpsertChunks(chunks); err != nil {
		t.Fatalf("UpsertChunks() error = %v", err)
	}

	results, err := s.Search(context.Background(), &types.SearchRequest{
		Query: "authenticate token",
		Limit: 10,
		Mode:  types.SearchModeBM25,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) == 0 {
		t.Fatal("BM25 search returned no results")
	}
	if results[0].Chunk.Name != "authenticateUser" {
		t.Errorf("top result = %s, want authenticateUser", results[0].Chunk.Name)
	}
}

func TestHybridSearch(t *testing.T) {
	s := newTestStore(t)

	chunks := []*types.ChunkWithEmbedding{
		withEmbedding(testChunk("a.go#0:aaaa0000", "a.go", "authenticateUser", "func authenticateUser(token string) error"), []float32{1, 0, 0, 0}),
		withEmbedding(testChunk("b.go#0:bbbb0000", "b.go", "parseFloat", "func parseFloat(s string) (float64, error)"), []float32{0, 1, 0, 0}),
	}
	if err := s.UpsertChunks(chunks); err != nil {
		t.Fatalf("UpsertChunks() error = %v", err)
	}

	results, err := s.Search(context.Background(), &types.SearchRequest{
		Query:        "authenticate",
		QueryVec:     []float32{1, 0, 0, 0},
		Limit:        10,
		Mode:         types.SearchModeHybrid,
		VectorWeight: 0.7,
		BM25Weight:   0.3,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) == 0 {
		t.Fatal("hybrid search returned no results")
	}
	if results[0].Chunk.Name != "authenticateUser" {
		t.Errorf("top result = %s, want authenticateUser", results[0].Chunk.Name)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetMetadata(); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("GetMetadata() on fresh store error = %v, want ErrNotFound", err)
	}

	meta := &types.IndexMetadata{
		SchemaVersion:       SchemaVersion,
		CreatedAt:           time.Now().UTC().Truncate(time.Second),
		LastUpdated:         time.Now().UTC().Truncate(time.Second),
		ToolVersion:         "test",
		EmbeddingProvider:   "local",
		EmbeddingModel:      "trigram-384",
		EmbeddingDimensions: testDims,
		ChunkingStrategy:    "treesitter",
	}
	if err := s.SetMetadata(meta); err != nil {
		t.Fatalf("SetMetadata() error = %v", err)
	}

	got, err := s.GetMetadata()
	if err != nil {
		t.Fatalf("GetMetadata() error = %v", err)
	}
	if got.EmbeddingProvider != "local" || got.EmbeddingDimensions != testDims {
		t.Errorf("GetMetadata() = %+v", got)
	}
}

func TestClear(t *testing.T) {
	s := newTestStore(t)

	if err := s.CommitFile("a.go", "h1", []*types.ChunkWithEmbedding{
		testChunk("a.go#0:aaaa0000", "a.go", "A", "func A() {}"),
	}); err != nil {
		t.Fatalf("CommitFile() error = %v", err)
	}
	if err := s.SetMetadata(&types.IndexMetadata{EmbeddingDimensions: testDims}); err != nil {
		t.Fatalf("SetMetadata() error = %v", err)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	stats, err := s.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.TotalChunks != 0 || stats.IndexedFiles != 0 {
		t.Errorf("stats after Clear() = %+v, want empty", stats)
	}
	if _, err := s.GetMetadata(); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("GetMetadata() after Clear() error = %v, want ErrNotFound", err)
	}

	// The store accepts writes again after clearing.
	if err := s.UpsertChunks([]*types.ChunkWithEmbedding{
		testChunk("b.go#0:bbbb0000", "b.go", "B", "func B() {}"),
	}); err != nil {
		t.Errorf("UpsertChunks() after Clear() error = %v", err)
	}
}

func TestReopenPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	s := New()
	if err := s.Init(path, testDims); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := s.CommitFile("a.go", "h1", []*types.ChunkWithEmbedding{
		testChunk("a.go#0:aaaa0000", "a.go", "A", "func A() {}"),
	}); err != nil {
		t.Fatalf("CommitFile() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s2 := New()
	if err := s2.Init(path, testDims); err != nil {
		t.Fatalf("reopen Init() error = %v", err)
	}
	defer s2.Close()

	if _, err := s2.GetChunk("a.go#0:aaaa0000"); err != nil {
		t.Errorf("GetChunk() after reopen error = %v", err)
	}
	if hash, err := s2.GetFileHash("a.go"); err != nil || hash != "h1" {
		t.Errorf("GetFileHash() after reopen = %q, %v", hash, err)
	}
}
