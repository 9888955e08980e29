package vectorstore

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/nikhilbhutani/fincommerce/internal/models"
)

// Payload fields indexed for filtering.
const (
	fieldCategory        = "category"
	fieldRating          = "rating"
	fieldActualPrice     = "actual_price"
	fieldDiscountedPrice = "discounted_price"
)

var productNamespace = uuid.MustParse("b7a4f7c2-3d0e-4c5b-8f61-9a2e5d1c0b34")

// pointID maps a catalog id onto a Qdrant point id. Numeric ids and UUIDs
// are used as-is; anything else is hashed into a stable UUID.
func pointID(id string) *qdrant.PointId {
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return qdrant.NewIDNum(n)
	}
	if u, err := uuid.Parse(id); err == nil {
		return qdrant.NewID(u.String())
	}
	return qdrant.NewID(uuid.NewSHA1(productNamespace, []byte(id)).String())
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

// buildFilter turns a Filter into Qdrant conditions. It returns nil when
// nothing is constrained.
func buildFilter(f Filter) *qdrant.Filter {
	var must []*qdrant.Condition

	if f.MaxPrice > 0 || f.MinPrice > 0 {
		r := &qdrant.Range{}
		if f.MaxPrice > 0 {
			r.Lte = qdrant.PtrOf(f.MaxPrice)
		}
		if f.MinPrice > 0 {
			r.Gte = qdrant.PtrOf(f.MinPrice)
		}
		must = append(must, qdrant.NewRange(fieldDiscountedPrice, r))
	}
	if f.MinRating > 0 {
		must = append(must, qdrant.NewRange(fieldRating, &qdrant.Range{Gte: qdrant.PtrOf(f.MinRating)}))
	}
	if f.Category != "" {
		must = append(must, qdrant.NewMatch(fieldCategory, f.Category))
	}

	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

func productPayload(p models.Product) map[string]any {
	return map[string]any{
		"id":                 p.ID,
		"title":              p.Title,
		"description":        p.Description,
		fieldCategory:        p.Category,
		fieldRating:          p.Rating,
		fieldActualPrice:     p.ActualPrice,
		fieldDiscountedPrice: p.DiscountedPrice,
		"image_url":          p.ImageURL,
		"product_url":        p.ProductURL,
	}
}

// productFromPayload reads a stored product. Older uploads used price,
// image and product_id instead of the current field names.
func productFromPayload(id *qdrant.PointId, payload map[string]*qdrant.Value, score float32) models.Product {
	p := models.Product{
		ID:          firstString(payload, "id", "product_id"),
		Title:       firstString(payload, "title", "name"),
		Description: firstString(payload, "description"),
		Category:    firstString(payload, fieldCategory),
		ImageURL:    firstString(payload, "image_url", "image", "thumbnail"),
		ProductURL:  firstString(payload, "product_url", "url"),
		Score:       float64(score),
	}
	if p.ID == "" {
		p.ID = pointIDString(id)
	}
	p.Rating, _ = firstNumber(payload, fieldRating)
	p.ActualPrice, _ = firstNumber(payload, fieldActualPrice, "price")
	p.DiscountedPrice, _ = firstNumber(payload, fieldDiscountedPrice, "price")
	return p
}

func firstString(payload map[string]*qdrant.Value, keys ...string) string {
	for _, k := range keys {
		v, ok := payload[k]
		if !ok || v == nil {
			continue
		}
		switch kind := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			if kind.StringValue != "" {
				return kind.StringValue
			}
		case *qdrant.Value_IntegerValue:
			return strconv.FormatInt(kind.IntegerValue, 10)
		case *qdrant.Value_DoubleValue:
			return strconv.FormatFloat(kind.DoubleValue, 'f', -1, 64)
		}
	}
	return ""
}

// firstNumber accepts numbers stored as strings, which scraped catalogs
// contain.
func firstNumber(payload map[string]*qdrant.Value, keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := payload[k]
		if !ok || v == nil {
			continue
		}
		switch kind := v.GetKind().(type) {
		case *qdrant.Value_DoubleValue:
			return kind.DoubleValue, true
		case *qdrant.Value_IntegerValue:
			return float64(kind.IntegerValue), true
		case *qdrant.Value_StringValue:
			if f, err := strconv.ParseFloat(kind.StringValue, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// toAny converts a payload value back into plain Go values, the same shapes
// encoding/json produces.
func toAny(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_IntegerValue:
		return float64(kind.IntegerValue)
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_StructValue:
		return toMap(kind.StructValue.GetFields())
	case *qdrant.Value_ListValue:
		values := kind.ListValue.GetValues()
		out := make([]any, len(values))
		for i, item := range values {
			out[i] = toAny(item)
		}
		return out
	default:
		return nil
	}
}

func toMap(fields map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = toAny(v)
	}
	return out
}
