package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/nikhilbhutani/fincommerce/internal/llm"
)

const batchSize = 100

var ErrEmptyEmbedding = errors.New("provider returned no embedding")

// Service embeds behavior text for the Postgres event store through the
// gateway's embedding-capable provider.
type Service struct {
	gateway  llm.Gateway
	provider string
	model    string
}

func NewService(gw llm.Gateway, provider, model string) *Service {
	return &Service{gateway: gw, provider: provider, model: model}
}

// Available reports whether the configured provider is registered.
func (s *Service) Available() bool {
	return s != nil && s.gateway != nil && s.gateway.HasProvider(s.provider)
}

func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += batchSize {
		batch := texts[i:min(i+batchSize, len(texts))]

		resp, err := s.gateway.Embed(ctx, llm.EmbeddingRequest{
			Provider: s.provider,
			Model:    s.model,
			Input:    batch,
		})
		if err != nil {
			return nil, fmt.Errorf("embed batch %d: %w", i/batchSize, err)
		}
		if len(resp.Embeddings) != len(batch) {
			return nil, fmt.Errorf("embed batch %d: got %d vectors for %d inputs", i/batchSize, len(resp.Embeddings), len(batch))
		}
		out = append(out, resp.Embeddings...)
	}
	return out, nil
}

func (s *Service) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return embeddings[0], nil
}
