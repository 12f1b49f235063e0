package search

import (
	"sort"
	"strings"
	"unicode"

	"github.com/codescope/codescope/pkg/types"
)

// nameBoostWeight controls how much a definition-name match can lift a
// result above its store score.
const nameBoostWeight = 0.15

// boostNameMatches lifts results whose chunk name matches the query,
// so searching for "login handler" surfaces LoginHandler before a
// block of prose that merely mentions logging in. The store score
// stays dominant.
func boostNameMatches(query string, results []*types.SearchResult) []*types.SearchResult {
	query = strings.TrimSpace(query)
	if query == "" || len(results) == 0 {
		return results
	}

	queryTokens := tokenize(query)

	for _, r := range results {
		if r.Chunk.Name == "" {
			continue
		}
		if match := nameMatchScore(query, queryTokens, r.Chunk.Name); match > 0 {
			r.Score += match * nameBoostWeight
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results
}

// nameMatchScore rates how well a query matches a definition name,
// from exact match down to a fuzzy subsequence.
func nameMatchScore(query string, queryTokens []string, name string) float32 {
	queryLower := strings.ToLower(query)
	nameLower := strings.ToLower(name)

	switch {
	case nameLower == queryLower:
		return 1.0
	case strings.HasPrefix(nameLower, queryLower):
		return 0.9
	case strings.Contains(nameLower, queryLower):
		return 0.7
	}

	// CamelCase/snake_case token matching
	score := tokenMatch(queryTokens, tokenize(name)) * 0.8

	if fuzzy := fuzzyMatch(queryLower, nameLower) * 0.6; fuzzy > score {
		score = fuzzy
	}

	if score < 0.3 {
		return 0
	}
	return score
}

// fuzzyMatch calculates fuzzy similarity using the longest common
// subsequence of the two strings.
func fuzzyMatch(query, target string) float32 {
	if len(query) == 0 || len(target) == 0 {
		return 0
	}

	lcs, indices := longestCommonSubsequence(query, target)
	if len(lcs) == 0 {
		return 0
	}

	matchRatio := float32(len(lcs)) / float32(len(query))
	targetRatio := float32(len(lcs)) / float32(len(target))

	consecutiveBonus := float32(0)
	for i := 1; i < len(indices); i++ {
		if indices[i] == indices[i-1]+1 {
			consecutiveBonus += 0.05
		}
	}

	score := matchRatio*0.6 + targetRatio*0.3 + consecutiveBonus*0.1
	if score > 1.0 {
		score = 1.0
	}

	return score
}

// longestCommonSubsequence finds the LCS and returns matched indices in
// the target.
func longestCommonSubsequence(s1, s2 string) (string, []int) {
	m, n := len(s1), len(s2)
	if m == 0 || n == 0 {
		return "", nil
	}

	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}

	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if s1[i-1] == s2[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else if dp[i-1][j] > dp[i][j-1] {
				dp[i][j] = dp[i-1][j]
			} else {
				dp[i][j] = dp[i][j-1]
			}
		}
	}

	lcs := make([]byte, 0, dp[m][n])
	indices := make([]int, 0, dp[m][n])
	i, j := m, n
	for i > 0 && j > 0 {
		if s1[i-1] == s2[j-1] {
			lcs = append([]byte{s1[i-1]}, lcs...)
			indices = append([]int{j - 1}, indices...)
			i--
			j--
		} else if dp[i-1][j] > dp[i][j-1] {
			i--
		} else {
			j--
		}
	}

	return string(lcs), indices
}

// tokenize splits a name into tokens (handles camelCase and snake_case).
func tokenize(name string) []string {
	var tokens []string
	var current strings.Builder

	for i, r := range name {
		if r == '_' || r == '-' || r == '.' || r == ' ' {
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
			continue
		}

		// CamelCase boundary
		if unicode.IsUpper(r) && i > 0 {
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		}

		current.WriteRune(unicode.ToLower(r))
	}

	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}

	return tokens
}

// tokenMatch calculates how well query tokens match target tokens.
func tokenMatch(queryTokens, targetTokens []string) float32 {
	if len(queryTokens) == 0 || len(targetTokens) == 0 {
		return 0
	}

	matched := 0
	for _, qt := range queryTokens {
		for _, tt := range targetTokens {
			if strings.HasPrefix(tt, qt) {
				matched++
				break
			}
		}
	}

	return float32(matched) / float32(len(queryTokens))
}

// FindFiles performs fuzzy search on indexed file paths.
func (e *Engine) FindFiles(query string, limit int) ([]string, error) {
	if limit == 0 {
		limit = 20
	}

	fileHashes, err := e.store.GetAllFileHashes()
	if err != nil {
		return nil, err
	}

	queryLower := strings.ToLower(query)
	type fileMatch struct {
		path  string
		score float32
	}

	var matches []fileMatch

	for path := range fileHashes {
		pathLower := strings.ToLower(path)
		fileName := pathLower
		if idx := strings.LastIndex(pathLower, "/"); idx >= 0 {
			fileName = pathLower[idx+1:]
		}

		var score float32

		// The filename outranks the full path.
		if strings.Contains(fileName, queryLower) {
			if fileName == queryLower {
				score = 1.0
			} else if strings.HasPrefix(fileName, queryLower) {
				score = 0.9
			} else {
				score = 0.7
			}
		} else if strings.Contains(pathLower, queryLower) {
			score = 0.5
		} else {
			score = fuzzyMatch(queryLower, fileName) * 0.4
		}

		if score > 0.2 {
			matches = append(matches, fileMatch{path: path, score: score})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].path < matches[j].path
	})

	result := make([]string, 0, limit)
	for i := 0; i < len(matches) && i < limit; i++ {
		result = append(result, matches[i].path)
	}

	return result, nil
}
