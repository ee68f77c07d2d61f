package embed

import (
	"fmt"
	"log/slog"
	"time"
)

// Provider selects the embedding backend.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderStatic Provider = "static"
)

// FactoryConfig configures embedder construction.
type FactoryConfig struct {
	Provider   Provider
	OpenAI     OpenAIConfig
	CacheSize  int
	CacheTTL   time.Duration
	NoFallback bool // Fail hard instead of falling back to static
}

// New constructs the configured embedder wrapped in a cache. When the
// OpenAI provider cannot be constructed and fallback is allowed, the
// static embedder is used so indexing and search keep working offline.
func New(cfg FactoryConfig) (Embedder, error) {
	inner, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	return NewCachedEmbedder(inner, cfg.CacheSize, cfg.CacheTTL), nil
}

func newProvider(cfg FactoryConfig) (Embedder, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		e, err := NewOpenAIEmbedder(cfg.OpenAI)
		if err != nil {
			if cfg.NoFallback {
				return nil, err
			}
			slog.Warn("openai embedder unavailable, falling back to static",
				slog.String("error", err.Error()))
			return NewStaticEmbedder(), nil
		}
		return e, nil
	case ProviderStatic, "":
		return NewStaticEmbedder(), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Provider)
	}
}
