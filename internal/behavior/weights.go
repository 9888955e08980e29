package behavior

import (
	"fmt"
	"strings"

	"github.com/nikhilbhutani/fincommerce/internal/models"
)

// UnknownEventWeight applies to event types outside the table.
const UnknownEventWeight = 0.2

var eventWeights = map[string]float64{
	models.EventAddToCart:    1.0,
	models.EventProductClick: 0.5,
	models.EventSearch:       0.3,
}

// Weight returns the preference strength of an event type:
// cart > click > search > anything else.
func Weight(eventType string) float64 {
	if w, ok := eventWeights[eventType]; ok {
		return w
	}
	return UnknownEventWeight
}

// NormalizeTerm trims and lower-cases an interest term so "Laptop" and
// " laptop " land in the same bucket.
func NormalizeTerm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Describe renders the natural-language text stored alongside an event and
// used as its embedding input.
func Describe(eventType string, attrs map[string]any) string {
	switch eventType {
	case models.EventSearch:
		query := stringAttr(attrs, "query")
		if budget := stringAttr(attrs, "budget"); budget != "" {
			return fmt.Sprintf("User searched for: %s with budget $%s", query, budget)
		}
		return "User searched for: " + query
	case models.EventProductClick:
		return fmt.Sprintf("User clicked on %s priced at $%s", categoryOrDefault(attrs), stringAttr(attrs, "price"))
	case models.EventAddToCart:
		return fmt.Sprintf("User added %s to cart, price $%s", categoryOrDefault(attrs), stringAttr(attrs, "price"))
	default:
		return "User action: " + eventType
	}
}

func categoryOrDefault(attrs map[string]any) string {
	if c := stringAttr(attrs, "category"); c != "" {
		return c
	}
	return "product"
}

// stringAttr reads a free-form attribute as text. Missing, null and
// structured values read as "".
func stringAttr(attrs map[string]any, key string) string {
	v, ok := attrs[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", t), "0"), ".")
	case float32, int, int32, int64, uint, uint32, uint64, bool:
		return fmt.Sprint(t)
	default:
		return ""
	}
}
