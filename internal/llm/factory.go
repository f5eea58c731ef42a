package llm

import (
	"context"
	"fmt"
	"strings"

	"projectarchitect/internal/config"
	llmclient "projectarchitect/internal/llm/client"
)

// NewProvider builds the bare provider client named by cfg.Provider.
func NewProvider(ctx context.Context, cfg config.LLM) (llmclient.Generator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "gemini":
		return llmclient.NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
	case "openai":
		return llmclient.NewOpenAIClient(ctx, cfg.APIKey, cfg.BaseURL, cfg.Model)
	case "fake":
		return nil, fmt.Errorf("provider %q needs a scripted client; pass one to NewGenerator", cfg.Provider)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

// NewGenerator wraps a provider in the standard middleware chain:
// logging -> hook -> cache -> retry -> rate limit -> provider.
// If base is nil the provider is built from cfg.
func NewGenerator(ctx context.Context, cfg config.LLM, base llmclient.Generator, hook PromptHook) (llmclient.Generator, error) {
	if base == nil {
		p, err := NewProvider(ctx, cfg)
		if err != nil {
			return nil, err
		}
		base = p
	}
	return Wrap(base,
		WithLogging(),
		WithHook(hook),
		Cache(cfg.CacheSize),
		Retry(RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			Multiplier:  cfg.Retry.Multiplier,
			MaxDelay:    cfg.Retry.MaxDelay,
			Jitter:      cfg.Retry.Jitter,
		}),
		RateLimit(NewWindowLimiter(cfg.RateLimit.Calls, cfg.RateLimit.Window)),
	), nil
}
