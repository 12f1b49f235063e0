// Package linewindow implements a fixed-size line window chunking
// strategy. It is the fallback for languages without a tree-sitter
// grammar and for files that fail to parse.
package linewindow

import (
	"path/filepath"
	"strings"

	"github.com/codescope/codescope/pkg/provider"
	"github.com/codescope/codescope/pkg/types"
)

// Default values
const (
	DefaultWindowLines  = 60
	DefaultOverlapLines = 2
)

// Config contains configuration for line-window chunking.
type Config struct {
	WindowLines  int // Lines per window
	OverlapLines int // Lines shared between consecutive windows
}

// Chunker implements a fixed line-window chunking strategy.
type Chunker struct {
	config Config
}

// New creates a new line-window chunker.
func New(cfg Config) *Chunker {
	if cfg.WindowLines == 0 {
		cfg.WindowLines = DefaultWindowLines
	}
	if cfg.OverlapLines == 0 {
		cfg.OverlapLines = DefaultOverlapLines
	}
	if cfg.OverlapLines >= cfg.WindowLines {
		cfg.OverlapLines = cfg.WindowLines - 1
	}
	return &Chunker{config: cfg}
}

// Name returns the strategy name.
func (c *Chunker) Name() string {
	return "linewindow"
}

// Chunk splits a file into overlapping fixed-size line windows. A file
// shorter than one window becomes a single whole-file chunk.
func (c *Chunker) Chunk(file *types.SourceFile) ([]*types.Chunk, error) {
	content := string(file.Content)
	if content == "" {
		return nil, nil
	}
	lines := strings.Split(content, "\n")

	if len(lines) <= c.config.WindowLines {
		return []*types.Chunk{{
			ID:        types.ChunkID(file.Path, 0, ""),
			FilePath:  file.Path,
			Language:  file.Language,
			Content:   content,
			ChunkType: types.ChunkTypeFile,
			StartLine: 1,
			EndLine:   len(lines),
		}}, nil
	}

	step := c.config.WindowLines - c.config.OverlapLines

	var chunks []*types.Chunk
	for start := 0; start < len(lines); start += step {
		end := start + c.config.WindowLines
		if end > len(lines) {
			end = len(lines)
		}

		window := lines[start:end]
		if allBlank(window) {
			if end == len(lines) {
				break
			}
			continue
		}

		chunks = append(chunks, &types.Chunk{
			ID:        types.ChunkID(file.Path, len(chunks), ""),
			FilePath:  file.Path,
			Language:  file.Language,
			Content:   strings.Join(window, "\n"),
			ChunkType: types.ChunkTypeBlock,
			StartLine: start + 1,
			EndLine:   end,
		})

		if end == len(lines) {
			break
		}
	}

	return chunks, nil
}

func allBlank(lines []string) bool {
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			return false
		}
	}
	return true
}

// SupportedLanguages returns an empty slice: the line-window chunker
// works with any text.
func (c *Chunker) SupportedLanguages() []string {
	return nil
}

// SupportsLanguage returns true for any language.
func (c *Chunker) SupportsLanguage(lang string) bool {
	return true
}

// Close releases resources.
func (c *Chunker) Close() error {
	return nil
}

// DetectLanguage detects language from file extension.
func DetectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	base := strings.ToLower(filepath.Base(path))

	if base == "dockerfile" {
		return "dockerfile"
	}

	switch ext {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".js", ".mjs", ".cjs":
		return "javascript"
	case ".ts":
		return "typescript"
	case ".jsx":
		return "jsx"
	case ".tsx":
		return "tsx"
	case ".rs":
		return "rust"
	case ".java":
		return "java"
	case ".c":
		return "c"
	case ".cpp", ".cc", ".cxx":
		return "cpp"
	case ".h", ".hpp":
		return "h"
	case ".rb":
		return "ruby"
	case ".php":
		return "php"
	case ".swift":
		return "swift"
	case ".kt", ".kts":
		return "kotlin"
	case ".scala", ".sc":
		return "scala"
	case ".cs":
		return "csharp"
	case ".lua":
		return "lua"
	case ".sql":
		return "sql"
	case ".html", ".htm":
		return "html"
	case ".css":
		return "css"
	case ".md", ".markdown":
		return "markdown"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	case ".sh", ".bash":
		return "bash"
	default:
		return "text"
	}
}

// Ensure Chunker implements ChunkingStrategy interface
var _ provider.ChunkingStrategy = (*Chunker)(nil)
