package treesitter

import (
	"fmt"
	"strings"
	"testing"

	"github.com/codescope/codescope/pkg/types"
)

const goSample = `package auth

import "net/http"

// authenticateUser validates the request credentials.
func authenticateUser(r *http.Request) bool {
	token := r.Header.Get("Authorization")
	return token != ""
}

type Middleware struct {
	next http.Handler
}

func (m *Middleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !authenticateUser(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	m.next.ServeHTTP(w, r)
}
`

func goFile(path, content string) *types.SourceFile {
	return &types.SourceFile{Path: path, Content: []byte(content), Language: "go"}
}

func TestChunkGoTopLevelDefinitions(t *testing.T) {
	c := New(Config{})

	chunks, err := c.Chunk(goFile("auth/middleware.go", goSample))
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}

	byName := make(map[string]*types.Chunk)
	for _, ch := range chunks {
		if ch.Name != "" {
			byName[ch.Name] = ch
		}
	}

	fn, ok := byName["authenticateUser"]
	if !ok {
		t.Fatal("no chunk for authenticateUser")
	}
	if fn.ChunkType != types.ChunkTypeFunction {
		t.Errorf("authenticateUser ChunkType = %q, want %q", fn.ChunkType, types.ChunkTypeFunction)
	}
	if !strings.Contains(fn.Content, "Authorization") {
		t.Errorf("authenticateUser chunk missing body: %q", fn.Content)
	}

	if mw, ok := byName["Middleware"]; !ok {
		t.Error("no chunk for type Middleware")
	} else if mw.ChunkType != types.ChunkTypeClass {
		t.Errorf("Middleware ChunkType = %q, want %q", mw.ChunkType, types.ChunkTypeClass)
	}

	if m, ok := byName["ServeHTTP"]; !ok {
		t.Error("no chunk for method ServeHTTP")
	} else if m.ChunkType != types.ChunkTypeMethod {
		t.Errorf("ServeHTTP ChunkType = %q, want %q", m.ChunkType, types.ChunkTypeMethod)
	}
}

func TestChunkCoversAllNonBlankLines(t *testing.T) {
	c := New(Config{})

	chunks, err := c.Chunk(goFile("auth/middleware.go", goSample))
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}

	covered := make(map[int]bool)
	for _, ch := range chunks {
		for l := ch.StartLine; l <= ch.EndLine; l++ {
			covered[l] = true
		}
	}

	lines := strings.Split(goSample, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !covered[i+1] {
			t.Errorf("non-blank line %d not covered: %q", i+1, line)
		}
	}
}

func TestChunkOversizedFunctionUsesWindows(t *testing.T) {
	var b strings.Builder
	b.WriteString("package big\n\nfunc huge() {\n")
	for i := 0; i < 100; i++ {
		fmt.Fprintf(&b, "\t_ = %d\n", i)
	}
	b.WriteString("}\n")

	c := New(Config{MaxChunkLines: 30, OverlapLines: 2})
	chunks, err := c.Chunk(goFile("big/big.go", b.String()))
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}

	var fnChunks []*types.Chunk
	for _, ch := range chunks {
		if ch.Name == "huge" {
			fnChunks = append(fnChunks, ch)
		}
	}
	if len(fnChunks) < 3 {
		t.Fatalf("got %d chunks for oversized function, want at least 3", len(fnChunks))
	}

	fnStart, fnEnd := fnChunks[0].StartLine, fnChunks[len(fnChunks)-1].EndLine
	for _, ch := range fnChunks {
		if ch.StartLine < fnStart || ch.EndLine > fnEnd {
			t.Errorf("window chunk %d-%d escapes function span %d-%d",
				ch.StartLine, ch.EndLine, fnStart, fnEnd)
		}
		if ch.EndLine-ch.StartLine+1 > 30 {
			t.Errorf("window chunk %d-%d exceeds max lines", ch.StartLine, ch.EndLine)
		}
	}

	for i := 1; i < len(fnChunks); i++ {
		if fnChunks[i].StartLine > fnChunks[i-1].EndLine+1 {
			t.Errorf("gap between window chunks at %d", fnChunks[i].StartLine)
		}
	}
}

func TestChunkIDsStableAcrossRuns(t *testing.T) {
	c := New(Config{})

	first, err := c.Chunk(goFile("auth/middleware.go", goSample))
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	second, err := c.Chunk(goFile("auth/middleware.go", goSample))
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("chunk %d ID changed: %q vs %q", i, first[i].ID, second[i].ID)
		}
	}

	seen := make(map[string]bool)
	for _, ch := range first {
		if seen[ch.ID] {
			t.Errorf("duplicate chunk ID %q", ch.ID)
		}
		seen[ch.ID] = true
	}
}

func TestChunkUnsupportedLanguageFallsBack(t *testing.T) {
	c := New(Config{})

	file := &types.SourceFile{
		Path:     "data.cob",
		Content:  []byte("IDENTIFICATION DIVISION.\nPROGRAM-ID. HELLO.\n"),
		Language: "text",
	}
	chunks, err := c.Chunk(file)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1 fallback chunk", len(chunks))
	}
	if chunks[0].ChunkType != types.ChunkTypeFile {
		t.Errorf("ChunkType = %q, want %q", chunks[0].ChunkType, types.ChunkTypeFile)
	}
}

func TestChunkPythonDefinitions(t *testing.T) {
	src := `import os

def load_config(path):
    with open(path) as f:
        return f.read()

class Server:
    def __init__(self):
        self.config = None
`
	c := New(Config{})
	chunks, err := c.Chunk(&types.SourceFile{
		Path:     "server.py",
		Content:  []byte(src),
		Language: "python",
	})
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}

	names := make(map[string]types.ChunkType)
	for _, ch := range chunks {
		if ch.Name != "" {
			names[ch.Name] = ch.ChunkType
		}
	}
	if names["load_config"] != types.ChunkTypeFunction {
		t.Errorf("load_config = %q, want function", names["load_config"])
	}
	if names["Server"] != types.ChunkTypeClass {
		t.Errorf("Server = %q, want class", names["Server"])
	}
}

func TestSupportsLanguage(t *testing.T) {
	c := New(Config{})

	for _, lang := range []string{"go", "python", "typescript", "rust"} {
		if !c.SupportsLanguage(lang) {
			t.Errorf("SupportsLanguage(%q) = false, want true", lang)
		}
	}
	if c.SupportsLanguage("cobol") {
		t.Error("SupportsLanguage(cobol) = true, want false")
	}
}
