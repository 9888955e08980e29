package models

// Product is a catalog record as returned by the retrieval service.
// All fields are scalar so two records can be compared with ==.
type Product struct {
	ID              string  `json:"id"`
	Title           string  `json:"title,omitempty"`
	Description     string  `json:"description,omitempty"`
	Category        string  `json:"category"`
	Rating          float64 `json:"rating"`
	ActualPrice     float64 `json:"actual_price"`
	DiscountedPrice float64 `json:"discounted_price"`
	ImageURL        string  `json:"image_url"`
	ProductURL      string  `json:"product_url,omitempty"`
	Score           float64 `json:"score,omitempty"`
}

// EmbeddingText is the text indexed for a product.
func (p Product) EmbeddingText() string {
	switch {
	case p.Title != "" && p.Description != "":
		return p.Title + " " + p.Description
	case p.Title != "":
		return p.Title
	case p.Description != "":
		return p.Description
	default:
		return p.Category
	}
}
