package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/fincommerce/internal/models"
)

func TestPruneCutoff(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	got, err := pruneCutoff("", now, 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC), got)

	got, err = pruneCutoff("2026-01-01T02:00:00+02:00", now, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = pruneCutoff("yesterday", now, time.Hour)
	assert.Error(t, err)

	_, err = pruneCutoff("", now, 0)
	assert.Error(t, err)
}

func TestPrintProducts(t *testing.T) {
	var buf bytes.Buffer
	printProducts(&buf, []models.Product{
		{ID: "p1", Title: "Trail Shoes", ActualPrice: 120, DiscountedPrice: 89.5, Score: 0.91},
		{ID: "p2", Title: "Socks", ActualPrice: 10, DiscountedPrice: 10},
	})

	out := buf.String()
	assert.Contains(t, out, " 1. Trail Shoes  $89.50 (was $120.00)  [p1, score 0.910]")
	assert.Contains(t, out, " 2. Socks  $10.00  [p2, score 0.000]")
}

func TestPrintProducts_Empty(t *testing.T) {
	var buf bytes.Buffer
	printProducts(&buf, nil)
	assert.Equal(t, "No products found\n", buf.String())
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"index", "upload", "search", "prune", "token"} {
		assert.True(t, names[want], want)
	}
}
