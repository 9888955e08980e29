// Package catalog loads product files and indexes them into the vector
// store.
package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/nikhilbhutani/fincommerce/internal/models"
)

// Load reads a JSON array of products from path. See Decode for the
// accepted shapes.
func Load(path string) ([]models.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	products, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return products, nil
}

// Decode accepts both the DummyJSON shape (title, description, price,
// thumbnail or image) and the scraped shape (actual_price,
// discounted_price, image_url, product_url). Prices may be numbers or
// formatted strings. Records without an id get their array index.
func Decode(r io.Reader) ([]models.Product, error) {
	var raw []map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, err
	}

	products := make([]models.Product, 0, len(raw))
	for i, rec := range raw {
		p := models.Product{
			ID:          str(rec, "id", "product_id"),
			Title:       str(rec, "title", "name"),
			Description: str(rec, "description"),
			Category:    str(rec, "category"),
			Rating:      num(rec, "rating"),
			ImageURL:    str(rec, "image_url", "image", "thumbnail"),
			ProductURL:  str(rec, "product_url", "url"),
		}
		price := num(rec, "price")
		p.ActualPrice = firstPositive(num(rec, "actual_price"), price)
		p.DiscountedPrice = firstPositive(num(rec, "discounted_price"), price, p.ActualPrice)
		if p.ID == "" {
			p.ID = strconv.Itoa(i)
		}
		if p.Title == "" && p.Description == "" {
			return nil, fmt.Errorf("record %d: no title or description", i)
		}
		products = append(products, p)
	}
	return products, nil
}

func str(rec map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := rec[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func num(rec map[string]any, key string) float64 {
	switch v := rec[key].(type) {
	case float64:
		return v
	case string:
		return parsePrice(v)
	case map[string]any:
		// {"rate": 4.1, "count": 120}
		if rate, ok := v["rate"].(float64); ok {
			return rate
		}
	}
	return 0
}

// parsePrice reads strings like "₹1,299", "$24.99" or "4.1 out of 5".
func parsePrice(s string) float64 {
	var b strings.Builder
	seenDigit := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			seenDigit = true
		case r == '.':
			b.WriteRune(r)
		case r == ',':
		default:
			if seenDigit {
				f, _ := strconv.ParseFloat(b.String(), 64)
				return f
			}
			b.Reset()
		}
	}
	f, _ := strconv.ParseFloat(b.String(), 64)
	return f
}

func firstPositive(vals ...float64) float64 {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
