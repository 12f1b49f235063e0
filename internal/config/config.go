// Package config handles configuration loading and validation.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete configuration.
type Config struct {
	Embedding   EmbeddingConfig   `mapstructure:"embedding" yaml:"embedding"`
	Chunking    ChunkingConfig    `mapstructure:"chunking" yaml:"chunking"`
	Search      SearchConfig      `mapstructure:"search" yaml:"search"`
	VectorStore VectorStoreConfig `mapstructure:"vectorstore" yaml:"vectorstore"`
	Index       IndexConfig       `mapstructure:"index" yaml:"index"`
	Limits      LimitsConfig      `mapstructure:"limits" yaml:"limits"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
}

// EmbeddingConfig contains embedding provider configuration.
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider" yaml:"provider"`     // local, openai, ollama
	Model     string `mapstructure:"model" yaml:"model"`           // model name
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`     // API endpoint (ollama)
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`       // API key (openai)
	BatchSize int    `mapstructure:"batch_size" yaml:"batch_size"` // documents per batch
}

// ChunkingConfig contains chunking strategy configuration.
type ChunkingConfig struct {
	Strategy      string `mapstructure:"strategy" yaml:"strategy"`               // treesitter, linewindow
	MaxChunkLines int    `mapstructure:"max_chunk_lines" yaml:"max_chunk_lines"` // max lines per chunk
	OverlapLines  int    `mapstructure:"overlap_lines" yaml:"overlap_lines"`     // sliding window overlap
}

// SearchConfig contains search configuration.
type SearchConfig struct {
	Mode         string  `mapstructure:"mode" yaml:"mode"`                   // vector, bm25, hybrid
	VectorWeight float32 `mapstructure:"vector_weight" yaml:"vector_weight"` // weight for vector search
	BM25Weight   float32 `mapstructure:"bm25_weight" yaml:"bm25_weight"`     // weight for BM25
	DefaultLimit int     `mapstructure:"default_limit" yaml:"default_limit"` // default result limit
	MinScore     float32 `mapstructure:"min_score" yaml:"min_score"`         // drop results below this
}

// VectorStoreConfig contains vector store configuration.
type VectorStoreConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"` // sqlitevec
}

// IndexConfig contains indexing configuration.
type IndexConfig struct {
	Include      []string `mapstructure:"include" yaml:"include"`             // glob patterns to include
	Exclude      []string `mapstructure:"exclude" yaml:"exclude"`             // glob patterns to exclude
	UseGitIgnore bool     `mapstructure:"use_gitignore" yaml:"use_gitignore"` // scan via git ls-files when available
}

// LimitsConfig contains resource limits.
type LimitsConfig struct {
	MaxFileSize       string        `mapstructure:"max_file_size" yaml:"max_file_size"` // e.g., "1MB"
	MaxFiles          int           `mapstructure:"max_files" yaml:"max_files"`         // max files to index
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`             // indexing timeout
	Workers           int           `mapstructure:"workers" yaml:"workers"`             // parallel workers
	DegradedThreshold float32       `mapstructure:"degraded_threshold" yaml:"degraded_threshold"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // text, json
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:  "local",
			Model:     "trigram-384",
			Endpoint:  "http://localhost:11434",
			BatchSize: 64,
		},
		Chunking: ChunkingConfig{
			Strategy:      "treesitter",
			MaxChunkLines: 60,
			OverlapLines:  2,
		},
		Search: SearchConfig{
			Mode:         "vector",
			VectorWeight: 0.7,
			BM25Weight:   0.3,
			DefaultLimit: 10,
			MinScore:     0,
		},
		VectorStore: VectorStoreConfig{
			Provider: "sqlitevec",
		},
		Index: IndexConfig{
			Include: []string{
				"**/*.go", "**/*.py", "**/*.js", "**/*.mjs", "**/*.cjs", "**/*.ts",
				"**/*.jsx", "**/*.tsx", "**/*.rs", "**/*.java",
				"**/*.c", "**/*.cpp", "**/*.cc", "**/*.h", "**/*.hpp",
				"**/*.rb", "**/*.php", "**/*.cs", "**/*.kt",
				"**/*.swift", "**/*.scala", "**/*.lua", "**/*.sh",
				"**/*.yaml", "**/*.yml", "**/*.toml", "**/*.json", "**/*.md",
			},
			Exclude: []string{
				"**/vendor/**", "**/node_modules/**", "**/.git/**",
				"**/dist/**", "**/build/**", "**/target/**", "**/bin/**",
				"**/*.min.js", "**/*.min.css", "**/*.generated.*",
				"**/package-lock.json", "**/yarn.lock", "**/pnpm-lock.yaml",
				"**/go.sum", "**/Cargo.lock", "**/composer.lock",
				"**/.codescope/**",
			},
			UseGitIgnore: true,
		},
		Limits: LimitsConfig{
			MaxFileSize:       "1MB",
			MaxFiles:          50000,
			Timeout:           30 * time.Minute,
			Workers:           0, // 0 = use runtime.NumCPU()
			DegradedThreshold: 0.1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ConfigDir returns the path to the .codescope directory.
func ConfigDir(projectRoot string) string {
	return filepath.Join(projectRoot, ".codescope")
}

// ConfigPath returns the path to config.yaml.
func ConfigPath(projectRoot string) string {
	return filepath.Join(ConfigDir(projectRoot), "config.yaml")
}

// IndexDBPath returns the path to index.db.
func IndexDBPath(projectRoot string) string {
	return filepath.Join(ConfigDir(projectRoot), "index.db")
}

// SessionPath returns the path to the session snapshot file.
func SessionPath(projectRoot string) string {
	return filepath.Join(ConfigDir(projectRoot), "session.json")
}

// LockPath returns the path to the index lock file.
func LockPath(projectRoot string) string {
	return filepath.Join(ConfigDir(projectRoot), "index.lock")
}

// Load loads configuration from file, falling back to defaults.
// Environment variables prefixed with CODESCOPE_ override file values,
// e.g. CODESCOPE_EMBEDDING_PROVIDER=openai.
func Load(projectRoot string) (*Config, []string, error) {
	cfg := DefaultConfig()
	warnings := []string{}

	configPath := ConfigPath(projectRoot)

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CODESCOPE")
	v.AutomaticEnv()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		warnings = append(warnings, "No config file found, using defaults")
	} else {
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Apply defaults for missing values
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "local"
		warnings = append(warnings, "Using default embedding provider: local")
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = defaultModelFor(cfg.Embedding.Provider)
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 64
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if cfg.Chunking.Strategy == "" {
		cfg.Chunking.Strategy = "treesitter"
	}
	if cfg.Chunking.MaxChunkLines == 0 {
		cfg.Chunking.MaxChunkLines = 60
	}
	if cfg.Chunking.OverlapLines == 0 {
		cfg.Chunking.OverlapLines = 2
	}

	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.VectorWeight == 0 && cfg.Search.BM25Weight == 0 {
		cfg.Search.VectorWeight = 0.7
		cfg.Search.BM25Weight = 0.3
	}

	if cfg.Limits.DegradedThreshold == 0 {
		cfg.Limits.DegradedThreshold = 0.1
	}

	return cfg, warnings, nil
}

func defaultModelFor(provider string) string {
	switch provider {
	case "openai":
		return "text-embedding-3-small"
	case "ollama":
		return "nomic-embed-text"
	default:
		return "trigram-384"
	}
}

// Save saves configuration to file.
func Save(projectRoot string, cfg *Config) error {
	configDir := ConfigDir(projectRoot)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(ConfigPath(projectRoot))
	v.SetConfigType("yaml")

	v.Set("embedding", cfg.Embedding)
	v.Set("chunking", cfg.Chunking)
	v.Set("search", cfg.Search)
	v.Set("vectorstore", cfg.VectorStore)
	v.Set("index", cfg.Index)
	v.Set("limits", cfg.Limits)
	v.Set("logging", cfg.Logging)

	return v.WriteConfig()
}

// Validate validates the configuration.
func Validate(cfg *Config) []error {
	var errs []error

	validEmbeddingProviders := map[string]bool{
		"local": true, "openai": true, "ollama": true,
	}
	if !validEmbeddingProviders[cfg.Embedding.Provider] {
		errs = append(errs, fmt.Errorf("invalid embedding provider: %s", cfg.Embedding.Provider))
	}

	validChunkingStrategies := map[string]bool{
		"treesitter": true, "linewindow": true,
	}
	if !validChunkingStrategies[cfg.Chunking.Strategy] {
		errs = append(errs, fmt.Errorf("invalid chunking strategy: %s", cfg.Chunking.Strategy))
	}

	validSearchModes := map[string]bool{
		"vector": true, "bm25": true, "hybrid": true, "": true,
	}
	if !validSearchModes[cfg.Search.Mode] {
		errs = append(errs, fmt.Errorf("invalid search mode: %s", cfg.Search.Mode))
	}

	if cfg.Chunking.OverlapLines >= cfg.Chunking.MaxChunkLines && cfg.Chunking.MaxChunkLines > 0 {
		errs = append(errs, fmt.Errorf("overlap_lines (%d) must be smaller than max_chunk_lines (%d)",
			cfg.Chunking.OverlapLines, cfg.Chunking.MaxChunkLines))
	}

	if cfg.Limits.DegradedThreshold < 0 || cfg.Limits.DegradedThreshold > 1 {
		errs = append(errs, fmt.Errorf("degraded_threshold must be in [0,1], got %v", cfg.Limits.DegradedThreshold))
	}

	return errs
}

// Hash returns a hash of configuration that affects indexing.
// Used for detecting when reindexing is needed.
func (c *Config) Hash() string {
	data := fmt.Sprintf("%s:%s:%s:%d",
		c.Embedding.Provider,
		c.Embedding.Model,
		c.Chunking.Strategy,
		c.Chunking.MaxChunkLines,
	)
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:])
}

// Copy creates a deep copy of the config.
// Components receive copies so a loaded config stays immutable.
func (c *Config) Copy() *Config {
	cp := *c

	if c.Index.Include != nil {
		cp.Index.Include = append([]string(nil), c.Index.Include...)
	}
	if c.Index.Exclude != nil {
		cp.Index.Exclude = append([]string(nil), c.Index.Exclude...)
	}

	return &cp
}
