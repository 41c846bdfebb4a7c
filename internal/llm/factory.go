package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/monetadev/moneta/internal/store"
	"github.com/rs/zerolog"
)

// embeddingCacheTTL bounds how long a cached vector is served.
const embeddingCacheTTL = 30 * 24 * time.Hour

// NewProvider creates a Provider from configuration.
// It returns the provider wrapped with retry, timeout and logging middleware.
func NewProvider(ctx context.Context, cfg Config, eventRepo store.EventRepo, log zerolog.Logger) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "openrouter":
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	// Wrap with middleware: caller → retry → timeout → logging → base
	logged := WithLogging(base, eventRepo, log)
	bounded := WithTimeout(logged, cfg.Timeout)
	retried := WithRetry(bounded, cfg.Retry)

	return retried, nil
}

// NewEmbedder creates the configured Embedder. A non-nil kv enables the
// embedding cache.
func NewEmbedder(ctx context.Context, cfg Config, kv KV, log zerolog.Logger) (Embedder, error) {
	provider := cfg.Embedding.Provider
	if provider == "" {
		provider = "hash"
		switch {
		case cfg.Provider == "openai" && cfg.OpenAI.APIKey != "":
			provider = "openai"
		case cfg.Provider == "gemini" && cfg.Gemini.APIKey != "":
			provider = "gemini"
		}
	}

	var base Embedder
	var err error
	switch provider {
	case "openai":
		base, err = NewOpenAIEmbedder(cfg.OpenAI, cfg.Embedding)
	case "gemini":
		base, err = NewGeminiEmbedder(ctx, cfg.Gemini, cfg.Embedding)
	case "hash":
		return NewHashEmbedder(cfg.Embedding.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s embedder: %w", provider, err)
	}
	// caller → cache → retry → timeout → base
	base = WithEmbedderRetry(base, cfg.Retry, cfg.Timeout)

	if kv == nil {
		return base, nil
	}
	model := cfg.Embedding.Model
	if model == "" {
		model = provider
	}
	return WithEmbeddingCache(base, kv, model, embeddingCacheTTL, log), nil
}
