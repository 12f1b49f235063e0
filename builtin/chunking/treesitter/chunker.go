// Package treesitter implements chunking using Tree-sitter for AST-aware splitting.
//
// Each top-level definition (function, method, type, class) becomes one
// chunk. Definitions longer than the configured window are split with a
// sliding window bounded to the definition's span. Regions between
// definitions become plain block chunks, so every non-blank line of a
// file is covered by at least one chunk.
package treesitter

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	tsc "github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	tstype "github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/codescope/codescope/builtin/chunking/linewindow"
	"github.com/codescope/codescope/pkg/provider"
	"github.com/codescope/codescope/pkg/types"
)

// Default values
const (
	DefaultMaxChunkLines = 60
	DefaultOverlapLines  = 2
)

// Config contains configuration for TreeSitter chunking.
type Config struct {
	MaxChunkLines int // Max lines per chunk before the sliding window kicks in
	OverlapLines  int // Overlap between window chunks
}

// Chunker implements AST-aware chunking using Tree-sitter.
type Chunker struct {
	config   Config
	fallback *linewindow.Chunker
}

// New creates a new TreeSitter chunker.
func New(cfg Config) *Chunker {
	if cfg.MaxChunkLines == 0 {
		cfg.MaxChunkLines = DefaultMaxChunkLines
	}
	if cfg.OverlapLines == 0 {
		cfg.OverlapLines = DefaultOverlapLines
	}

	return &Chunker{
		config: cfg,
		fallback: linewindow.New(linewindow.Config{
			WindowLines:  cfg.MaxChunkLines,
			OverlapLines: cfg.OverlapLines,
		}),
	}
}

// Name returns the strategy name.
func (c *Chunker) Name() string {
	return "treesitter"
}

// getParser returns a parser for the given language.
func (c *Chunker) getParser(lang string) (*sitter.Parser, bool) {
	language, ok := languageFor(lang)
	if !ok {
		return nil, false
	}

	parser := sitter.NewParser()
	parser.SetLanguage(language)

	return parser, true
}

func languageFor(lang string) (*sitter.Language, bool) {
	var language *sitter.Language

	switch lang {
	case "go":
		language = golang.GetLanguage()
	case "python":
		language = python.GetLanguage()
	case "javascript", "jsx":
		language = javascript.GetLanguage()
	case "typescript":
		language = tstype.GetLanguage()
	case "tsx":
		language = tsx.GetLanguage()
	case "rust":
		language = rust.GetLanguage()
	case "java":
		language = java.GetLanguage()
	case "c", "h":
		language = tsc.GetLanguage()
	case "cpp", "hpp":
		language = cpp.GetLanguage()
	case "ruby":
		language = ruby.GetLanguage()
	case "php":
		language = php.GetLanguage()
	case "bash":
		language = bash.GetLanguage()
	default:
		return nil, false
	}

	return language, true
}

// definition is a classified top-level node span.
type definition struct {
	chunkType types.ChunkType
	name      string
	startLine int // 1-based, inclusive
	endLine   int // 1-based, inclusive
}

// Chunk splits a file into semantic chunks based on AST structure.
// Unsupported languages and parse failures degrade to line windows;
// a file is never rejected.
func (c *Chunker) Chunk(file *types.SourceFile) ([]*types.Chunk, error) {
	if len(file.Content) == 0 {
		return nil, nil
	}

	parser, ok := c.getParser(file.Language)
	if !ok {
		return c.fallback.Chunk(file)
	}
	defer parser.Close()

	tree, err := parser.ParseCtx(context.Background(), nil, file.Content)
	if err != nil {
		return c.fallback.Chunk(file)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() && root.NamedChildCount() == 0 {
		return c.fallback.Chunk(file)
	}

	content := string(file.Content)
	lines := strings.Split(content, "\n")

	defs := c.collectDefinitions(root, content, file.Language)
	if len(defs) == 0 {
		return c.fallback.Chunk(file)
	}

	var chunks []*types.Chunk
	cursor := 1 // next line not yet covered

	for _, def := range defs {
		if def.startLine > cursor {
			c.emitRegion(file, lines, cursor, def.startLine-1, types.ChunkTypeBlock, "", "", &chunks)
		}
		c.emitRegion(file, lines, def.startLine, def.endLine, def.chunkType, def.name, "", &chunks)
		if def.endLine+1 > cursor {
			cursor = def.endLine + 1
		}
	}

	if cursor <= len(lines) {
		c.emitRegion(file, lines, cursor, len(lines), types.ChunkTypeBlock, "", "", &chunks)
	}

	return chunks, nil
}

// collectDefinitions classifies the top-level named children of the root
// node. Overlapping spans are dropped so the emitted chunks stay ordered.
func (c *Chunker) collectDefinitions(root *sitter.Node, content, lang string) []definition {
	var defs []definition
	lastEnd := 0

	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		chunkType, name := c.classifyNode(node.Type(), node, content, lang)
		if chunkType == "" {
			continue
		}

		startLine := int(node.StartPoint().Row) + 1
		endLine := int(node.EndPoint().Row) + 1
		if startLine <= lastEnd {
			continue
		}

		defs = append(defs, definition{
			chunkType: chunkType,
			name:      name,
			startLine: startLine,
			endLine:   endLine,
		})
		lastEnd = endLine
	}

	return defs
}

// emitRegion turns a line range into one chunk, or several overlapping
// window chunks when the range exceeds the configured maximum. Blank
// regions are skipped.
func (c *Chunker) emitRegion(file *types.SourceFile, lines []string, startLine, endLine int, chunkType types.ChunkType, name, parentName string, chunks *[]*types.Chunk) {
	if startLine < 1 {
		startLine = 1
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > endLine {
		return
	}

	region := lines[startLine-1 : endLine]
	if regionBlank(region) {
		return
	}

	if endLine-startLine+1 <= c.config.MaxChunkLines {
		c.appendChunk(file, strings.Join(region, "\n"), chunkType, name, parentName, startLine, endLine, chunks)
		return
	}

	// Sliding window bounded to the region span.
	step := c.config.MaxChunkLines - c.config.OverlapLines
	for ws := startLine; ws <= endLine; ws += step {
		we := ws + c.config.MaxChunkLines - 1
		if we > endLine {
			we = endLine
		}

		window := lines[ws-1 : we]
		if !regionBlank(window) {
			c.appendChunk(file, strings.Join(window, "\n"), chunkType, name, parentName, ws, we, chunks)
		}

		if we == endLine {
			break
		}
	}
}

func (c *Chunker) appendChunk(file *types.SourceFile, content string, chunkType types.ChunkType, name, parentName string, startLine, endLine int, chunks *[]*types.Chunk) {
	*chunks = append(*chunks, &types.Chunk{
		ID:         types.ChunkID(file.Path, len(*chunks), name),
		FilePath:   file.Path,
		Language:   file.Language,
		Content:    content,
		ChunkType:  chunkType,
		Name:       name,
		ParentName: parentName,
		StartLine:  startLine,
		EndLine:    endLine,
	})
}

func regionBlank(lines []string) bool {
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			return false
		}
	}
	return true
}

// classifyNode determines the chunk type and name for a node.
func (c *Chunker) classifyNode(nodeType string, node *sitter.Node, content string, lang string) (types.ChunkType, string) {
	switch lang {
	case "go":
		return c.classifyGoNode(nodeType, node, content)
	case "python":
		return c.classifyPythonNode(nodeType, node, content)
	case "javascript", "jsx", "typescript", "tsx":
		return c.classifyJSNode(nodeType, node, content)
	case "rust":
		return c.classifyRustNode(nodeType, node, content)
	case "java":
		return c.classifyJavaNode(nodeType, node, content)
	case "c", "cpp", "h", "hpp":
		return c.classifyCNode(nodeType, node, content)
	case "ruby":
		return c.classifyRubyNode(nodeType, node, content)
	case "php":
		return c.classifyPHPNode(nodeType, node, content)
	case "bash":
		return c.classifyBashNode(nodeType, node, content)
	}
	return "", ""
}

func (c *Chunker) classifyGoNode(nodeType string, node *sitter.Node, content string) (types.ChunkType, string) {
	switch nodeType {
	case "function_declaration":
		return types.ChunkTypeFunction, c.findChildByType(node, "identifier", content)
	case "method_declaration":
		return types.ChunkTypeMethod, c.findChildByType(node, "field_identifier", content)
	case "type_declaration":
		spec := c.findChildNodeByType(node, "type_spec")
		if spec != nil {
			return types.ChunkTypeClass, c.findChildByType(spec, "type_identifier", content)
		}
	}
	return "", ""
}

func (c *Chunker) classifyPythonNode(nodeType string, node *sitter.Node, content string) (types.ChunkType, string) {
	switch nodeType {
	case "function_definition":
		return types.ChunkTypeFunction, c.findChildByType(node, "identifier", content)
	case "class_definition":
		return types.ChunkTypeClass, c.findChildByType(node, "identifier", content)
	case "decorated_definition":
		// Classify by the wrapped definition, span covers the decorators.
		if def := c.findChildNodeByType(node, "function_definition"); def != nil {
			return types.ChunkTypeFunction, c.findChildByType(def, "identifier", content)
		}
		if def := c.findChildNodeByType(node, "class_definition"); def != nil {
			return types.ChunkTypeClass, c.findChildByType(def, "identifier", content)
		}
	}
	return "", ""
}

func (c *Chunker) classifyJSNode(nodeType string, node *sitter.Node, content string) (types.ChunkType, string) {
	switch nodeType {
	case "function_declaration", "generator_function_declaration":
		return types.ChunkTypeFunction, c.findChildByType(node, "identifier", content)
	case "class_declaration":
		name := c.findChildByType(node, "identifier", content)
		if name == "" {
			name = c.findChildByType(node, "type_identifier", content)
		}
		return types.ChunkTypeClass, name
	case "method_definition":
		return types.ChunkTypeMethod, c.findChildByType(node, "property_identifier", content)
	case "lexical_declaration", "variable_declaration":
		// const f = () => {} and friends
		decl := c.findChildNodeByType(node, "variable_declarator")
		if decl != nil {
			if c.findChildNodeByType(decl, "arrow_function") != nil ||
				c.findChildNodeByType(decl, "function_expression") != nil ||
				c.findChildNodeByType(decl, "function") != nil {
				return types.ChunkTypeFunction, c.findChildByType(decl, "identifier", content)
			}
		}
	case "export_statement":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if t, name := c.classifyJSNode(child.Type(), child, content); t != "" {
				return t, name
			}
		}
	case "interface_declaration", "enum_declaration", "type_alias_declaration":
		name := c.findChildByType(node, "type_identifier", content)
		if name == "" {
			name = c.findChildByType(node, "identifier", content)
		}
		return types.ChunkTypeClass, name
	}
	return "", ""
}

func (c *Chunker) classifyRustNode(nodeType string, node *sitter.Node, content string) (types.ChunkType, string) {
	switch nodeType {
	case "function_item":
		return types.ChunkTypeFunction, c.findChildByType(node, "identifier", content)
	case "impl_item":
		typeNode := c.findChildNodeByType(node, "type_identifier")
		if typeNode != nil {
			return types.ChunkTypeClass, "impl " + content[typeNode.StartByte():typeNode.EndByte()]
		}
	case "struct_item", "enum_item", "trait_item":
		return types.ChunkTypeClass, c.findChildByType(node, "type_identifier", content)
	}
	return "", ""
}

func (c *Chunker) classifyJavaNode(nodeType string, node *sitter.Node, content string) (types.ChunkType, string) {
	switch nodeType {
	case "method_declaration":
		return types.ChunkTypeMethod, c.findChildByType(node, "identifier", content)
	case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration":
		return types.ChunkTypeClass, c.findChildByType(node, "identifier", content)
	}
	return "", ""
}

func (c *Chunker) classifyCNode(nodeType string, node *sitter.Node, content string) (types.ChunkType, string) {
	switch nodeType {
	case "function_definition":
		declarator := c.findChildNodeByType(node, "function_declarator")
		if declarator != nil {
			return types.ChunkTypeFunction, c.findChildByType(declarator, "identifier", content)
		}
	case "struct_specifier", "class_specifier":
		return types.ChunkTypeClass, c.findChildByType(node, "type_identifier", content)
	}
	return "", ""
}

func (c *Chunker) classifyRubyNode(nodeType string, node *sitter.Node, content string) (types.ChunkType, string) {
	switch nodeType {
	case "method":
		return types.ChunkTypeFunction, c.findChildByType(node, "identifier", content)
	case "singleton_method":
		return types.ChunkTypeMethod, c.findChildByType(node, "identifier", content)
	case "class", "module":
		return types.ChunkTypeClass, c.findChildByType(node, "constant", content)
	}
	return "", ""
}

func (c *Chunker) classifyPHPNode(nodeType string, node *sitter.Node, content string) (types.ChunkType, string) {
	switch nodeType {
	case "function_definition":
		return types.ChunkTypeFunction, c.findChildByType(node, "name", content)
	case "class_declaration", "interface_declaration", "trait_declaration":
		return types.ChunkTypeClass, c.findChildByType(node, "name", content)
	case "method_declaration":
		return types.ChunkTypeMethod, c.findChildByType(node, "name", content)
	}
	return "", ""
}

func (c *Chunker) classifyBashNode(nodeType string, node *sitter.Node, content string) (types.ChunkType, string) {
	if nodeType == "function_definition" {
		return types.ChunkTypeFunction, c.findChildByType(node, "word", content)
	}
	return "", ""
}

func (c *Chunker) findChildByType(node *sitter.Node, childType string, content string) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == childType {
			return content[child.StartByte():child.EndByte()]
		}
	}
	return ""
}

func (c *Chunker) findChildNodeByType(node *sitter.Node, childType string) *sitter.Node {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == childType {
			return child
		}
	}
	return nil
}

// SupportedLanguages returns languages with a tree-sitter grammar.
func (c *Chunker) SupportedLanguages() []string {
	return []string{
		"go", "python", "javascript", "jsx", "typescript", "tsx",
		"rust", "java", "c", "h", "cpp", "hpp", "ruby", "php", "bash",
	}
}

// SupportsLanguage checks if a language has a grammar. The chunker still
// accepts any language; unsupported ones use the line-window fallback.
func (c *Chunker) SupportsLanguage(lang string) bool {
	_, ok := languageFor(lang)
	return ok
}

// Close releases resources.
func (c *Chunker) Close() error {
	return nil
}

// Ensure Chunker implements ChunkingStrategy interface
var _ provider.ChunkingStrategy = (*Chunker)(nil)
