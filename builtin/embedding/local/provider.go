// Package local implements a deterministic, offline embedding provider.
//
// Texts are embedded by hashing character trigrams into a fixed-size
// vector (feature hashing) and L2-normalizing the result. The same text
// always produces the same vector, no network or model files are
// needed, and texts sharing vocabulary land close together under cosine
// distance. Quality is far below a learned model; the point is a
// dependable default that works everywhere.
package local

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/codescope/codescope/pkg/provider"
)

// Default values
const (
	Dimensions       = 384
	DefaultBatchSize = 256
	ModelName        = "trigram-384"
)

// Provider implements the EmbeddingProvider interface with trigram
// feature hashing.
type Provider struct {
	batchSize int
}

// Config contains local provider configuration.
type Config struct {
	BatchSize int
}

// New creates a new local embedding provider.
func New(cfg Config) *Provider {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Provider{batchSize: cfg.BatchSize}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "local"
}

// Model returns the model identifier.
func (p *Provider) Model() string {
	return ModelName
}

// Embed generates embeddings for the given texts.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		results[i] = embedText(text)
	}
	return results, nil
}

// embedText hashes the character trigrams of the normalized text into a
// fixed-size vector and L2-normalizes it.
func embedText(text string) []float32 {
	vec := make([]float32, Dimensions)

	norm := normalize(text)
	if len(norm) < 3 {
		if len(norm) > 0 {
			vec[bucket(norm)]++
		}
		return l2normalize(vec)
	}

	for i := 0; i+3 <= len(norm); i++ {
		vec[bucket(norm[i:i+3])]++
	}
	return l2normalize(vec)
}

// normalize lowercases the text, breaks camelCase boundaries and
// collapses runs of non-alphanumeric characters into single spaces, so
// "authenticateUser" and "authenticate user" share trigrams.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/8)

	prevLower := false
	prevSpace := true
	for _, r := range text {
		switch {
		case r >= 'A' && r <= 'Z':
			if prevLower {
				b.WriteByte(' ')
			}
			b.WriteRune(r - 'A' + 'a')
			prevLower = false
			prevSpace = false
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			prevLower = r >= 'a' && r <= 'z'
			prevSpace = false
		default:
			if !prevSpace {
				b.WriteByte(' ')
			}
			prevLower = false
			prevSpace = true
		}
	}

	return strings.TrimSpace(b.String())
}

func bucket(s string) int {
	h := fnv.New32a()
	h.Write([]byte(s))
	return int(h.Sum32() % Dimensions)
}

func l2normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

// Dimensions returns the embedding dimensions.
func (p *Provider) Dimensions() int {
	return Dimensions
}

// MaxBatchSize returns the maximum batch size.
func (p *Provider) MaxBatchSize() int {
	return p.batchSize
}

// Warmup is a no-op for the local provider.
func (p *Provider) Warmup(ctx context.Context) error {
	return nil
}

// Close releases resources.
func (p *Provider) Close() error {
	return nil
}

// Ensure Provider implements EmbeddingProvider interface
var _ provider.EmbeddingProvider = (*Provider)(nil)
