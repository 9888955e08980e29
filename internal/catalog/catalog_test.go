package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/fincommerce/internal/models"
)

func TestDecode_DummyJSONShape(t *testing.T) {
	in := `[{"id": 1, "title": "iPhone 9", "description": "An apple mobile", "price": 549,
	         "category": "smartphones", "rating": 4.69, "thumbnail": "https://img/1.jpg"}]`

	products, err := Decode(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, products, 1)

	p := products[0]
	assert.Equal(t, "1", p.ID)
	assert.Equal(t, "iPhone 9", p.Title)
	assert.Equal(t, 549.0, p.ActualPrice)
	assert.Equal(t, 549.0, p.DiscountedPrice)
	assert.Equal(t, 4.69, p.Rating)
	assert.Equal(t, "https://img/1.jpg", p.ImageURL)
}

func TestDecode_ScrapedShape(t *testing.T) {
	in := `[{"id": "6f1d7c1e-9a59-4f53-bb6f-1b1d1c1e2f3a", "title": "Running Shoes", "description": "Lightweight",
	         "category": "footwear", "rating": "4.2 out of 5 stars", "actual_price": "₹2,499",
	         "discounted_price": "₹1,299", "image_url": "https://img/s.jpg", "product_url": "https://shop/s"}]`

	products, err := Decode(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, products, 1)

	p := products[0]
	assert.Equal(t, 2499.0, p.ActualPrice)
	assert.Equal(t, 1299.0, p.DiscountedPrice)
	assert.Equal(t, 4.2, p.Rating)
	assert.Equal(t, "https://shop/s", p.ProductURL)
}

func TestDecode_MissingIDUsesIndex(t *testing.T) {
	products, err := Decode(strings.NewReader(`[{"title": "a"}, {"name": "b", "rating": {"rate": 3.9, "count": 12}}]`))
	require.NoError(t, err)
	assert.Equal(t, "0", products[0].ID)
	assert.Equal(t, "1", products[1].ID)
	assert.Equal(t, "b", products[1].Title)
	assert.Equal(t, 3.9, products[1].Rating)
}

func TestDecode_Rejects(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"not": "an array"}`))
	assert.Error(t, err)

	_, err = Decode(strings.NewReader(`[{"category": "x"}]`))
	assert.Error(t, err)
}

func TestParsePrice(t *testing.T) {
	tests := map[string]float64{
		"$24.99":        24.99,
		"₹1,299":        1299,
		"Rs. 500":       500,
		"4.1 out of 5":  4.1,
		"":              0,
		"free shipping": 0,
	}
	for in, want := range tests {
		assert.InDelta(t, want, parsePrice(in), 1e-9, in)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id": 7, "title": "Desk lamp", "price": 19.5}]`), 0o600))

	products, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7", products[0].ID)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

type fakeWriter struct {
	recreated bool
	indexed   bool
	batches   [][]models.Product
	failAt    int
}

func (w *fakeWriter) EnsureCollection(_ context.Context, recreate bool) error {
	w.recreated = recreate
	return nil
}

func (w *fakeWriter) EnsurePayloadIndexes(context.Context) error {
	w.indexed = true
	return nil
}

func (w *fakeWriter) Upsert(_ context.Context, products []models.Product) error {
	if w.failAt > 0 && len(w.batches)+1 == w.failAt {
		return errors.New("upsert failed")
	}
	w.batches = append(w.batches, products)
	return nil
}

func manyProducts(n int) []models.Product {
	out := make([]models.Product, n)
	for i := range out {
		out[i] = models.Product{ID: string(rune('a' + i%26)), Title: "p"}
	}
	return out
}

func TestIngest_Batches(t *testing.T) {
	w := &fakeWriter{}
	var progress [][2]int

	n, err := NewIngester(w, 100).Ingest(context.Background(), manyProducts(250), IngestOptions{
		Recreate: true,
		Progress: func(done, total int) { progress = append(progress, [2]int{done, total}) },
	})
	require.NoError(t, err)
	assert.Equal(t, 250, n)
	assert.True(t, w.recreated)
	assert.True(t, w.indexed)
	require.Len(t, w.batches, 3)
	assert.Len(t, w.batches[2], 50)
	assert.Equal(t, [][2]int{{100, 250}, {200, 250}, {250, 250}}, progress)
}

func TestIngest_StopsAtFailedBatch(t *testing.T) {
	w := &fakeWriter{failAt: 2}

	n, err := NewIngester(w, 10).Ingest(context.Background(), manyProducts(30), IngestOptions{})
	assert.Error(t, err)
	assert.Equal(t, 10, n)
}

func TestIngest_DefaultBatchSize(t *testing.T) {
	w := &fakeWriter{}
	_, err := NewIngester(w, 0).Ingest(context.Background(), manyProducts(150), IngestOptions{})
	require.NoError(t, err)
	assert.Len(t, w.batches, 2)
}
