package multimodal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/nikhilbhutani/fincommerce/internal/llm"
	"github.com/nikhilbhutani/fincommerce/internal/prompt"
)

var (
	ErrEmptyImage       = errors.New("image is empty")
	ErrUnsupportedImage = errors.New("unsupported image type")
	ErrImageTooLarge    = errors.New("image too large")
)

var supportedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// VisionService turns a product photo into a text description that can be
// searched like a typed query.
type VisionService struct {
	gateway  llm.Gateway
	provider string
	model    string
	maxBytes int64
}

func NewVisionService(gw llm.Gateway, provider, model string, maxBytes int64) *VisionService {
	return &VisionService{gateway: gw, provider: provider, model: model, maxBytes: maxBytes}
}

// Description is the vision model's answer plus its usage for the audit log.
type Description struct {
	Text     string
	Response *llm.ChatResponse
}

func (v *VisionService) DescribeProduct(ctx context.Context, img llm.Image) (*Description, error) {
	if err := v.Validate(&img); err != nil {
		return nil, err
	}

	instructions, err := prompt.ImageQueryExtraction.Render(nil)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	resp, err := v.gateway.Chat(ctx, llm.ChatRequest{
		Provider:    v.provider,
		Model:       v.model,
		Temperature: 0.2,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: instructions,
			Images:  []llm.Image{img},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("describe image: %w", err)
	}

	text := strings.Trim(strings.TrimSpace(resp.Content), `"`)
	if text == "" {
		return nil, errors.New("describe image: empty description")
	}
	return &Description{Text: text, Response: resp}, nil
}

// Validate checks size and type, sniffing the MIME type when the caller did
// not provide a usable one.
func (v *VisionService) Validate(img *llm.Image) error {
	if len(img.Data) == 0 {
		return ErrEmptyImage
	}
	if v.maxBytes > 0 && int64(len(img.Data)) > v.maxBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrImageTooLarge, len(img.Data), v.maxBytes)
	}
	if !supportedImageTypes[img.MIMEType] {
		img.MIMEType = http.DetectContentType(img.Data)
	}
	if !supportedImageTypes[img.MIMEType] {
		return fmt.Errorf("%w: %s", ErrUnsupportedImage, img.MIMEType)
	}
	return nil
}

// MIMEFromFilename guesses an image type from an upload's file name.
func MIMEFromFilename(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return ""
	}
}
