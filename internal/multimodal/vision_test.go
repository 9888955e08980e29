package multimodal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/fincommerce/internal/llm"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type visionGateway struct {
	req     llm.ChatRequest
	content string
	err     error
}

func (g *visionGateway) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	g.req = req
	if g.err != nil {
		return nil, g.err
	}
	return &llm.ChatResponse{Content: g.content, Model: req.Model}, nil
}

func (g *visionGateway) Embed(context.Context, llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	return nil, errors.New("not used")
}

func (g *visionGateway) HasProvider(string) bool { return true }

func TestDescribeProduct(t *testing.T) {
	gw := &visionGateway{content: `"A silver 14-inch laptop with an aluminum chassis."`}
	svc := NewVisionService(gw, "groq", "llama-3.2-11b-vision-preview", 1<<20)

	desc, err := svc.DescribeProduct(context.Background(), llm.Image{Data: pngHeader})
	require.NoError(t, err)
	assert.Equal(t, "A silver 14-inch laptop with an aluminum chassis.", desc.Text)

	require.Len(t, gw.req.Messages, 1)
	msg := gw.req.Messages[0]
	assert.Equal(t, llm.RoleUser, msg.Role)
	require.Len(t, msg.Images, 1)
	assert.Equal(t, "image/png", msg.Images[0].MIMEType)
	assert.Equal(t, "groq", gw.req.Provider)
}

func TestDescribeProduct_Errors(t *testing.T) {
	svc := NewVisionService(&visionGateway{content: "x"}, "", "", 8)

	_, err := svc.DescribeProduct(context.Background(), llm.Image{})
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = svc.DescribeProduct(context.Background(), llm.Image{Data: pngHeader})
	assert.ErrorIs(t, err, ErrImageTooLarge)

	big := NewVisionService(&visionGateway{content: "x"}, "", "", 0)
	_, err = big.DescribeProduct(context.Background(), llm.Image{Data: []byte("just some text")})
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	failing := NewVisionService(&visionGateway{err: errors.New("rate limited")}, "", "", 0)
	_, err = failing.DescribeProduct(context.Background(), llm.Image{Data: pngHeader, MIMEType: "image/png"})
	assert.Error(t, err)
}

func TestMIMEFromFilename(t *testing.T) {
	assert.Equal(t, "image/jpeg", MIMEFromFilename("Photo.JPG"))
	assert.Equal(t, "image/webp", MIMEFromFilename("a.webp"))
	assert.Equal(t, "", MIMEFromFilename("notes.txt"))
}
