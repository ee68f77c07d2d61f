// Package config loads the application configuration: YAML file, then
// RAGLINE_* environment overrides, then validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = "ragline.yaml"

// Duration wraps time.Duration so YAML accepts human-readable values like
// "5m" or "1h30m".
type Duration time.Duration

// UnmarshalYAML parses either a duration string or a nanosecond integer.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	*d = Duration(n)
	return nil
}

// MarshalYAML renders the duration in human-readable form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the complete application configuration.
type Config struct {
	Search     SearchConfig     `yaml:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Storage    StorageConfig    `yaml:"storage"`
	Cache      CacheConfig      `yaml:"cache"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SearchConfig tunes ranking and result shaping.
type SearchConfig struct {
	// FusionMethod is "rrf" or "weighted".
	FusionMethod string `yaml:"fusion_method"`

	// SemanticWeight and KeywordWeight drive weighted fusion.
	SemanticWeight float64 `yaml:"semantic_weight"`
	KeywordWeight  float64 `yaml:"keyword_weight"`

	// RRFConstant is the RRF smoothing parameter k.
	RRFConstant int `yaml:"rrf_constant"`

	MaxResults                  int     `yaml:"max_results"`
	MinRelevanceScore           float64 `yaml:"min_relevance_score"`
	SimilarityThreshold         float64 `yaml:"similarity_threshold"`
	FilenameSimilarityThreshold float64 `yaml:"filename_similarity_threshold"`
	FilenameMatchBoost          float64 `yaml:"filename_match_boost"`
	MaxChunksPerFile            int     `yaml:"max_chunks_per_file"`
	MaxCharsPerChunk            int     `yaml:"max_chars_per_chunk"`
	BatchSize                   int     `yaml:"batch_size"`
	UseCache                    bool    `yaml:"use_cache"`
}

// EmbeddingsConfig selects and tunes the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "openai" or "static".
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`

	CacheSize int      `yaml:"cache_size"`
	CacheTTL  Duration `yaml:"cache_ttl"`

	// NoFallback fails hard when the remote provider is unreachable
	// instead of degrading to the static embedder.
	NoFallback bool `yaml:"no_fallback"`
}

// StorageConfig places the persistent stores.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// CollectionPath returns the SQLite database location.
func (s StorageConfig) CollectionPath() string {
	return filepath.Join(s.DataDir, "chunks.db")
}

// VectorIndexPath returns the HNSW snapshot location.
func (s StorageConfig) VectorIndexPath() string {
	return filepath.Join(s.DataDir, "vectors.hnsw")
}

// LexicalIndexPath returns the bleve index location.
func (s StorageConfig) LexicalIndexPath() string {
	return filepath.Join(s.DataDir, "lexical.bleve")
}

// CacheConfig tunes the search result cache.
type CacheConfig struct {
	ResultCacheSize int      `yaml:"result_cache_size"`
	ResultCacheTTL  Duration `yaml:"result_cache_ttl"`
}

// IngestConfig tunes document chunking.
type IngestConfig struct {
	MaxChunkTokens int `yaml:"max_chunk_tokens"`
	OverlapTokens  int `yaml:"overlap_tokens"`
}

// LoggingConfig tunes log output.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	FilePath  string `yaml:"file_path"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files"`
}

// Default returns the baked-in configuration.
func Default() *Config {
	return &Config{
		Search: SearchConfig{
			FusionMethod:                "rrf",
			SemanticWeight:              0.6,
			KeywordWeight:               0.4,
			RRFConstant:                 60,
			MaxResults:                  10,
			FilenameSimilarityThreshold: 0.6,
			FilenameMatchBoost:          1.5,
			BatchSize:                   1000,
			UseCache:                    true,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "openai",
			CacheSize: 1000,
			CacheTTL:  Duration(time.Hour),
		},
		Storage: StorageConfig{
			DataDir: ".ragline",
		},
		Cache: CacheConfig{
			ResultCacheSize: 512,
			ResultCacheTTL:  Duration(5 * time.Minute),
		},
		Ingest: IngestConfig{
			MaxChunkTokens: 512,
			OverlapTokens:  64,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// Load reads path (optional), applies environment overrides, and
// validates. A missing file is not an error; an unreadable or malformed
// one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults + env only.
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies RAGLINE_* environment variables, which take
// precedence over the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RAGLINE_FUSION_METHOD"); v != "" {
		c.Search.FusionMethod = v
	}
	if v := os.Getenv("RAGLINE_SEMANTIC_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.SemanticWeight = f
		}
	}
	if v := os.Getenv("RAGLINE_KEYWORD_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.KeywordWeight = f
		}
	}
	if v := os.Getenv("RAGLINE_RRF_CONSTANT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.RRFConstant = n
		}
	}
	if v := os.Getenv("RAGLINE_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.MaxResults = n
		}
	}
	if v := os.Getenv("RAGLINE_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("RAGLINE_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("RAGLINE_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("RAGLINE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate rejects configurations the engines cannot honor.
func (c *Config) Validate() error {
	switch c.Search.FusionMethod {
	case "rrf", "weighted":
	default:
		return fmt.Errorf("search.fusion_method must be rrf or weighted, got %q", c.Search.FusionMethod)
	}

	if c.Search.SemanticWeight < 0 || c.Search.SemanticWeight > 1 {
		return fmt.Errorf("search.semantic_weight must be in [0, 1], got %g", c.Search.SemanticWeight)
	}
	if c.Search.KeywordWeight < 0 || c.Search.KeywordWeight > 1 {
		return fmt.Errorf("search.keyword_weight must be in [0, 1], got %g", c.Search.KeywordWeight)
	}
	if c.Search.SemanticWeight+c.Search.KeywordWeight <= 0 {
		return fmt.Errorf("fusion weights must not both be zero")
	}
	if c.Search.RRFConstant <= 0 {
		return fmt.Errorf("search.rrf_constant must be positive, got %d", c.Search.RRFConstant)
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be positive, got %d", c.Search.MaxResults)
	}
	for name, v := range map[string]float64{
		"search.min_relevance_score":           c.Search.MinRelevanceScore,
		"search.similarity_threshold":          c.Search.SimilarityThreshold,
		"search.filename_similarity_threshold": c.Search.FilenameSimilarityThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0, 1], got %g", name, v)
		}
	}
	if c.Search.FilenameMatchBoost < 1 {
		return fmt.Errorf("search.filename_match_boost must be >= 1, got %g", c.Search.FilenameMatchBoost)
	}

	switch c.Embeddings.Provider {
	case "openai", "static":
	default:
		return fmt.Errorf("embeddings.provider must be openai or static, got %q", c.Embeddings.Provider)
	}

	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir must not be empty")
	}
	if c.Ingest.OverlapTokens >= c.Ingest.MaxChunkTokens {
		return fmt.Errorf("ingest.overlap_tokens (%d) must be smaller than max_chunk_tokens (%d)",
			c.Ingest.OverlapTokens, c.Ingest.MaxChunkTokens)
	}
	return nil
}
