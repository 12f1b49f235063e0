package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// GrepMatch is a single line matched by grep_codebase.
type GrepMatch struct {
	File          string   `json:"file"`
	Line          int      `json:"line"`
	Content       string   `json:"content"`
	ContextBefore []string `json:"context_before,omitempty"`
	ContextAfter  []string `json:"context_after,omitempty"`
}

// GrepResult is the result of grep_codebase.
type GrepResult struct {
	Matches    []GrepMatch `json:"matches"`
	TotalCount int         `json:"total_count"`
	Truncated  bool        `json:"truncated"`
}

// handleGrepCodebase searches file contents with a regular expression.
// It complements semantic search for exact identifiers and strings, and
// honors the same include and exclude patterns as the indexer.
func (s *Server) handleGrepCodebase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pattern := req.GetString("pattern", "")
	if pattern == "" {
		return mcp.NewToolResultError("pattern is required"), nil
	}

	pathPrefix := req.GetString("path_prefix", "")
	contextLines := req.GetInt("context_lines", 0)
	maxResults := req.GetInt("max_results", 50)
	caseSensitive := req.GetBool("case_sensitive", false)
	literal := req.GetBool("literal", false)

	if literal {
		pattern = regexp.QuoteMeta(pattern)
	}
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid pattern: %v", err)), nil
	}

	result, err := s.grep(ctx, re, pathPrefix, contextLines, maxResults)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("grep failed: %v", err)), nil
	}

	jsonResult, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(jsonResult)), nil
}

// grep walks the indexed file set and collects matching lines.
func (s *Server) grep(ctx context.Context, re *regexp.Regexp, pathPrefix string, contextLines, maxResults int) (*GrepResult, error) {
	hashes, err := s.store.GetAllFileHashes()
	if err != nil {
		return nil, err
	}

	var matches []GrepMatch
	truncated := false

	for relPath := range hashes {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if len(matches) >= maxResults {
			truncated = true
			break
		}
		if pathPrefix != "" && !strings.HasPrefix(relPath, pathPrefix) {
			continue
		}

		fileMatches, err := grepFile(filepath.Join(s.projectDir, relPath), relPath, re, contextLines, maxResults-len(matches))
		if err != nil {
			continue // Skip files that vanished or cannot be read
		}
		matches = append(matches, fileMatches...)
	}

	return &GrepResult{
		Matches:    matches,
		TotalCount: len(matches),
		Truncated:  truncated,
	}, nil
}

// grepFile collects up to maxMatches matching lines from one file.
func grepFile(path, relPath string, re *regexp.Regexp, contextLines, maxMatches int) ([]GrepMatch, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	var matches []GrepMatch
	for i, line := range lines {
		if len(matches) >= maxMatches {
			break
		}
		if !re.MatchString(line) {
			continue
		}

		m := GrepMatch{
			File:    relPath,
			Line:    i + 1,
			Content: line,
		}

		if contextLines > 0 {
			start := i - contextLines
			if start < 0 {
				start = 0
			}
			if start < i {
				m.ContextBefore = append([]string(nil), lines[start:i]...)
			}

			end := i + 1 + contextLines
			if end > len(lines) {
				end = len(lines)
			}
			if i+1 < end {
				m.ContextAfter = append([]string(nil), lines[i+1:end]...)
			}
		}

		matches = append(matches, m)
	}

	return matches, nil
}
