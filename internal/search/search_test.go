package search

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/codescope/codescope/builtin/embedding/local"
	"github.com/codescope/codescope/builtin/vectorstore/sqlitevec"
	"github.com/codescope/codescope/pkg/provider"
	"github.com/codescope/codescope/pkg/types"
)

// indexed seeds a store with the given named snippets, embedded with
// the local provider.
func newTestEngine(t *testing.T, projectDir string, chunks []*types.Chunk) (*Engine, provider.VectorStore) {
	t.Helper()

	emb := local.New(local.Config{})

	store := sqlitevec.New()
	path := filepath.Join(t.TempDir(), "index.db")
	if err := store.Init(path, emb.Dimensions()); err != nil {
		t.Fatalf("store.Init() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}
		embeddings, err := emb.Embed(context.Background(), texts)
		if err != nil {
			t.Fatalf("Embed() error = %v", err)
		}

		withEmbeddings := make([]*types.ChunkWithEmbedding, len(chunks))
		for i, c := range chunks {
			withEmbeddings[i] = &types.ChunkWithEmbedding{Chunk: c, Embedding: embeddings[i]}
		}
		if err := store.UpsertChunks(withEmbeddings); err != nil {
			t.Fatalf("UpsertChunks() error = %v", err)
		}
	}

	engine := New(Config{
		Store:      store,
		Embedding:  emb,
		ProjectDir: projectDir,
	})

	return engine, store
}

func chunk(id, filePath, name, content string) *types.Chunk {
	return &types.Chunk{
		ID:        id,
		FilePath:  filePath,
		Language:  "go",
		Content:   content,
		ChunkType: types.ChunkTypeFunction,
		Name:      name,
		StartLine: 1,
		EndLine:   5,
	}
}

func corpus() []*types.Chunk {
	return []*types.Chunk{
		chunk("auth.go#0:a0", "auth.go", "authenticateUser",
			"func authenticateUser(token string) (*User, error) {\n\tclaims, err := verifyToken(token)\n\tif err != nil {\n\t\treturn nil, err\n\t}\n\treturn lookupUser(claims.Subject)\n}"),
		chunk("auth.go#1:a1", "auth.go", "AuthMiddleware",
			"func AuthMiddleware(next http.Handler) http.Handler {\n\treturn http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {\n\t\tuser, err := authenticateUser(r.Header.Get(\"Authorization\"))\n\t\tif err != nil {\n\t\t\thttp.Error(w, \"unauthorized\", 401)\n\t\t\treturn\n\t\t}\n\t\tnext.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))\n\t})\n}"),
		chunk("strconv.go#0:s0", "strconv.go", "parseFloat",
			"func parseFloat(s string) (float64, error) {\n\treturn strconv.ParseFloat(strings.TrimSpace(s), 64)\n}"),
		chunk("render.go#0:r0", "render.go", "renderTemplate",
			"func renderTemplate(w io.Writer, name string, data any) error {\n\treturn templates.ExecuteTemplate(w, name, data)\n}"),
	}
}

func TestSearchFindsRelevantCode(t *testing.T) {
	engine, _ := newTestEngine(t, "", corpus())

	results, err := engine.Search(context.Background(), &types.SearchRequest{
		Query: "authentication middleware",
		Limit: 5,
		Mode:  types.SearchModeVector,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) == 0 {
		t.Fatal("Search() returned no results")
	}

	found := false
	for _, r := range results {
		if r.Chunk.FilePath == "auth.go" {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("no auth.go chunk in top results: %v", resultNames(results))
	}

	top := results[0]
	if top.Chunk.Name != "AuthMiddleware" && top.Chunk.Name != "authenticateUser" {
		t.Errorf("top result = %s, want an auth chunk", top.Chunk.Name)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	engine, _ := newTestEngine(t, "", corpus())

	if _, err := engine.Search(context.Background(), &types.SearchRequest{Query: "   "}); !errors.Is(err, types.ErrSearchFailed) {
		t.Errorf("Search(blank) error = %v, want ErrSearchFailed", err)
	}
}

func TestSearchAppliesDefaults(t *testing.T) {
	engine, _ := newTestEngine(t, "", corpus())

	results, err := engine.Search(context.Background(), &types.SearchRequest{
		Query: "parse a float from a string",
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) > 10 {
		t.Errorf("default limit not applied, got %d results", len(results))
	}
}

func TestSearchRespectsLimit(t *testing.T) {
	engine, _ := newTestEngine(t, "", corpus())

	results, err := engine.Search(context.Background(), &types.SearchRequest{
		Query: "function",
		Limit: 2,
		Mode:  types.SearchModeVector,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) > 2 {
		t.Errorf("got %d results, want <= 2", len(results))
	}
}

func TestSearchIncludeContext(t *testing.T) {
	dir := t.TempDir()
	content := "// header comment\n// more header\nline three\nline four\nline five\nline six\nline seven\nline eight\n"
	if err := os.WriteFile(filepath.Join(dir, "ctx.go"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	c := chunk("ctx.go#0:c0", "ctx.go", "", "line three\nline four")
	c.StartLine = 3
	c.EndLine = 4

	engine, _ := newTestEngine(t, dir, []*types.Chunk{c})

	results, err := engine.Search(context.Background(), &types.SearchRequest{
		Query:          "line three",
		Limit:          1,
		Mode:           types.SearchModeVector,
		IncludeContext: true,
		ContextLines:   2,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}

	r := results[0]
	if r.ContextBefore != "// header comment\n// more header" {
		t.Errorf("ContextBefore = %q", r.ContextBefore)
	}
	if r.ContextAfter != "line five\nline six" {
		t.Errorf("ContextAfter = %q", r.ContextAfter)
	}
}

func TestSearchContextMissingFile(t *testing.T) {
	c := chunk("gone.go#0:g0", "gone.go", "", "some content")

	engine, _ := newTestEngine(t, t.TempDir(), []*types.Chunk{c})

	results, err := engine.Search(context.Background(), &types.SearchRequest{
		Query:          "some content",
		Limit:          1,
		Mode:           types.SearchModeVector,
		IncludeContext: true,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].ContextBefore != "" || results[0].ContextAfter != "" {
		t.Errorf("context set for a missing file: %+v", results[0])
	}
}

func TestSearchProviderMismatch(t *testing.T) {
	engine, store := newTestEngine(t, "", corpus())

	if err := store.SetMetadata(&types.IndexMetadata{
		EmbeddingProvider:   "openai",
		EmbeddingModel:      "text-embedding-3-small",
		EmbeddingDimensions: 1536,
	}); err != nil {
		t.Fatal(err)
	}

	_, err := engine.Search(context.Background(), &types.SearchRequest{
		Query: "authentication middleware",
		Mode:  types.SearchModeVector,
	})
	if !errors.Is(err, types.ErrMigrationRequired) {
		t.Fatalf("Search() error = %v, want ErrMigrationRequired", err)
	}

	// Matching metadata clears the precondition.
	emb := local.New(local.Config{})
	if err := store.SetMetadata(&types.IndexMetadata{
		EmbeddingProvider:   emb.Name(),
		EmbeddingModel:      emb.Model(),
		EmbeddingDimensions: emb.Dimensions(),
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Search(context.Background(), &types.SearchRequest{
		Query: "authentication middleware",
		Mode:  types.SearchModeVector,
	}); err != nil {
		t.Fatalf("Search() after matching metadata error = %v", err)
	}
}

func TestFindFiles(t *testing.T) {
	engine, store := newTestEngine(t, "", nil)

	for path, hash := range map[string]string{
		"internal/auth/login.go": "h1",
		"internal/auth/token.go": "h2",
		"cmd/server/main.go":     "h3",
		"docs/architecture.md":   "h4",
	} {
		if err := store.SetFileHash(path, hash); err != nil {
			t.Fatal(err)
		}
	}

	files, err := engine.FindFiles("login", 10)
	if err != nil {
		t.Fatalf("FindFiles() error = %v", err)
	}
	if len(files) == 0 || files[0] != "internal/auth/login.go" {
		t.Errorf("FindFiles(login) = %v, want login.go first", files)
	}

	files, err = engine.FindFiles("auth", 10)
	if err != nil {
		t.Fatalf("FindFiles() error = %v", err)
	}
	if len(files) < 2 {
		t.Errorf("FindFiles(auth) = %v, want both auth files", files)
	}
}

func resultNames(results []*types.SearchResult) []string {
	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.Chunk.Name
	}
	return names
}
