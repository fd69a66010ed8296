package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Config holds embedder configuration
type Config struct {
	Provider  string // jina, openai, gemini, local; empty means local
	APIKey    string
	Model     string // empty uses the provider default
	Endpoint  string // overrides the API URL of OpenAI-compatible providers
	Dimension int    // 0 uses the provider default
	CacheSize int    // 0 disables the in-process cache

	// RequestsPerSecond limits calls to remote providers; 0 uses DefaultGuardConfig
	RequestsPerSecond float64
}

// New creates an embedder with explicit configuration. Remote providers are
// wrapped in a Guarded rate limiter and circuit breaker.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	guard := DefaultGuardConfig()
	if cfg.RequestsPerSecond > 0 {
		guard.RequestsPerSecond = cfg.RequestsPerSecond
		guard.Burst = max(1, int(cfg.RequestsPerSecond))
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderJina:
		p, err := NewJinaProvider(cfg.APIKey, cfg.Model, cfg.Endpoint, cache)
		if err != nil {
			return nil, err
		}
		return NewGuarded(p.WithDimension(cfg.Dimension), guard, logger), nil
	case ProviderOpenAI:
		p, err := NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.Endpoint, cache)
		if err != nil {
			return nil, err
		}
		return NewGuarded(p.WithDimension(cfg.Dimension), guard, logger), nil
	case ProviderGemini:
		p, err := NewGeminiProvider(ctx, cfg.APIKey, cfg.Model, cache)
		if err != nil {
			return nil, err
		}
		return NewGuarded(p.WithDimension(cfg.Dimension), guard, logger), nil
	case ProviderLocal, "":
		return NewLocalProvider(cfg.Dimension, cache), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}
