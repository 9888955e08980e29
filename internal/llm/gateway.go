package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/fincommerce/internal/config"
)

const (
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

var ErrNoProvider = errors.New("llm provider not configured")

type gateway struct {
	providers        map[string]Provider
	defaultProvider  string
	fallbackProvider string
	maxRetries       int
	backoff          func(attempt int) time.Duration
}

// Options tune a gateway built from explicit providers.
type Options struct {
	DefaultProvider  string
	FallbackProvider string
	MaxRetries       int
	// Backoff returns the wait before retry attempt n (1-based). Nil uses
	// quadratic backoff starting at 500ms.
	Backoff func(attempt int) time.Duration
}

func NewGateway(providers []Provider, opts Options) Gateway {
	g := &gateway{
		providers:        make(map[string]Provider, len(providers)),
		defaultProvider:  opts.DefaultProvider,
		fallbackProvider: opts.FallbackProvider,
		maxRetries:       opts.MaxRetries,
		backoff:          opts.Backoff,
	}
	if g.backoff == nil {
		g.backoff = func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * 500 * time.Millisecond
		}
	}
	for _, p := range providers {
		g.providers[p.Name()] = p
	}
	return g
}

// NewGatewayFromConfig registers every provider that has credentials.
func NewGatewayFromConfig(cfg config.LLMConfig) Gateway {
	var providers []Provider
	if cfg.GroqKey != "" {
		providers = append(providers, NewOpenAICompatibleProvider(ProviderGroq, cfg.GroqKey, cfg.GroqBaseURL))
	}
	if cfg.OpenAIKey != "" {
		providers = append(providers, NewOpenAIProvider(cfg.OpenAIKey))
	}
	if cfg.AnthropicKey != "" {
		providers = append(providers, NewAnthropicProvider(cfg.AnthropicKey))
	}
	if cfg.OllamaURL != "" {
		providers = append(providers, NewOllamaProvider(cfg.OllamaURL))
	}

	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	slog.Info("llm providers registered", "providers", names, "default", cfg.DefaultProvider, "fallback", cfg.FallbackProvider)

	return NewGateway(providers, Options{
		DefaultProvider:  cfg.DefaultProvider,
		FallbackProvider: cfg.FallbackProvider,
		MaxRetries:       cfg.MaxRetries,
	})
}

func (g *gateway) HasProvider(name string) bool {
	if name == "" {
		name = g.defaultProvider
	}
	_, ok := g.providers[name]
	return ok
}

func (g *gateway) provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoProvider, name)
	}
	return p, nil
}

func (g *gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.defaultProvider
	}

	resp, err := g.chatWithRetry(ctx, providerName, req)
	if err == nil || g.fallbackProvider == "" || g.fallbackProvider == providerName || ctx.Err() != nil {
		return resp, err
	}

	slog.Warn("primary provider failed, trying fallback",
		"primary", providerName,
		"fallback", g.fallbackProvider,
		"error", err,
	)
	// The primary's model name means nothing to the fallback provider.
	fallbackReq := req
	fallbackReq.Model = ""
	return g.chatWithRetry(ctx, g.fallbackProvider, fallbackReq)
}

func (g *gateway) chatWithRetry(ctx context.Context, providerName string, req ChatRequest) (*ChatResponse, error) {
	p, err := g.provider(providerName)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(g.backoff(attempt)):
			}
			slog.Debug("retrying LLM call", "provider", providerName, "attempt", attempt)
		}

		resp, err := p.ChatCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("all retries exhausted for %s: %w", providerName, lastErr)
}

func (g *gateway) Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.defaultProvider
	}
	p, err := g.provider(providerName)
	if err != nil {
		return nil, err
	}
	return p.GenerateEmbedding(ctx, req)
}
