package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/fincommerce/internal/llm"
)

type countingProvider struct {
	batches []int
	short   bool
}

func (p *countingProvider) Name() string { return "ollama" }

func (p *countingProvider) ChatCompletion(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, nil
}

func (p *countingProvider) GenerateEmbedding(_ context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	p.batches = append(p.batches, len(req.Input))
	n := len(req.Input)
	if p.short {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{float32(i), 1}
	}
	return &llm.EmbeddingResponse{Embeddings: out}, nil
}

func TestEmbed_Batches(t *testing.T) {
	p := &countingProvider{}
	svc := NewService(llm.NewGateway([]llm.Provider{p}, llm.Options{}), "ollama", "nomic-embed-text")

	texts := make([]string, 250)
	got, err := svc.Embed(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, got, 250)
	assert.Equal(t, []int{100, 100, 50}, p.batches)
}

func TestEmbed_CountMismatch(t *testing.T) {
	p := &countingProvider{short: true}
	svc := NewService(llm.NewGateway([]llm.Provider{p}, llm.Options{}), "ollama", "")

	_, err := svc.EmbedSingle(context.Background(), "User searched for: laptop")
	assert.Error(t, err)
}

func TestAvailable(t *testing.T) {
	gw := llm.NewGateway([]llm.Provider{&countingProvider{}}, llm.Options{})
	assert.True(t, NewService(gw, "ollama", "").Available())
	assert.False(t, NewService(gw, "openai", "").Available())

	var nilSvc *Service
	assert.False(t, nilSvc.Available())
}
