package rag

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nikhilbhutani/fincommerce/internal/llm"
	"github.com/nikhilbhutani/fincommerce/internal/models"
	"github.com/nikhilbhutani/fincommerce/internal/prompt"
)

// ProductChooser asks the LLM to pick and justify products for a shopper.
type ProductChooser struct {
	gateway llm.Gateway
	model   string
}

func NewProductChooser(gw llm.Gateway, model string) *ProductChooser {
	return &ProductChooser{gateway: gw, model: model}
}

type candidate struct {
	Title           string  `json:"title"`
	Category        string  `json:"category,omitempty"`
	Rating          float64 `json:"rating,omitempty"`
	ActualPrice     float64 `json:"actual_price,omitempty"`
	DiscountedPrice float64 `json:"discounted_price"`
}

func (c *ProductChooser) Choose(ctx context.Context, query string, products []models.Product, user *models.User) (*llm.ChatResponse, error) {
	rendered, err := choicePrompt(query, products, user)
	if err != nil {
		return nil, err
	}

	resp, err := c.gateway.Chat(ctx, llm.ChatRequest{
		Model:       c.model,
		Temperature: 0.3,
		MaxTokens:   700,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: rendered}},
	})
	if err != nil {
		return nil, fmt.Errorf("choose products: %w", err)
	}
	return resp, nil
}

func choicePrompt(query string, products []models.Product, user *models.User) (string, error) {
	list := make([]candidate, len(products))
	for i, p := range products {
		list[i] = candidate{
			Title:           p.Title,
			Category:        p.Category,
			Rating:          p.Rating,
			ActualPrice:     p.ActualPrice,
			DiscountedPrice: p.DiscountedPrice,
		}
	}
	productJSON, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode candidates: %w", err)
	}

	userContext := "unknown"
	if user != nil {
		userContext = fmt.Sprintf("balance $%.2f, monthly budget $%.2f", user.Balance, user.MonthlyBudget)
	}

	return prompt.ProductsChoice.Render(map[string]string{
		"query":        query,
		"user_context": userContext,
		"product_list": string(productJSON),
	})
}
