package workers

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/fincommerce/internal/catalog"
	"github.com/nikhilbhutani/fincommerce/internal/models"
	"github.com/nikhilbhutani/fincommerce/internal/queue"
)

type fakePruner struct {
	cutoff time.Time
	err    error
}

func (p *fakePruner) PruneBefore(_ context.Context, cutoff time.Time) error {
	p.cutoff = cutoff
	return p.err
}

func task(t *testing.T, typ string, payload any) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(typ, data)
}

func TestPruneWorker_DefaultCutoff(t *testing.T) {
	p := &fakePruner{}
	w := NewPruneWorker(p, 30*24*time.Hour)
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	require.NoError(t, w.ProcessTask(context.Background(), task(t, queue.TypeBehaviorPrune, queue.BehaviorPrunePayload{})))
	assert.Equal(t, time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC), p.cutoff)
}

func TestPruneWorker_ExplicitCutoff(t *testing.T) {
	p := &fakePruner{}
	before := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, NewPruneWorker(p, time.Hour).ProcessTask(context.Background(),
		task(t, queue.TypeBehaviorPrune, queue.BehaviorPrunePayload{Before: before})))
	assert.Equal(t, before, p.cutoff)
}

func TestPruneWorker_Errors(t *testing.T) {
	w := NewPruneWorker(&fakePruner{err: errors.New("qdrant down")}, time.Hour)
	assert.Error(t, w.ProcessTask(context.Background(), task(t, queue.TypeBehaviorPrune, queue.BehaviorPrunePayload{})))

	err := w.ProcessTask(context.Background(), asynq.NewTask(queue.TypeBehaviorPrune, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestPruneWorker_RefusesNonPositiveRetention(t *testing.T) {
	for _, retention := range []time.Duration{0, -time.Hour} {
		p := &fakePruner{}
		err := NewPruneWorker(p, retention).ProcessTask(context.Background(),
			task(t, queue.TypeBehaviorPrune, queue.BehaviorPrunePayload{}))
		assert.ErrorIs(t, err, asynq.SkipRetry)
		assert.True(t, p.cutoff.IsZero(), "retention %s must not prune", retention)
	}

	p := &fakePruner{}
	before := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, NewPruneWorker(p, 0).ProcessTask(context.Background(),
		task(t, queue.TypeBehaviorPrune, queue.BehaviorPrunePayload{Before: before})))
	assert.Equal(t, before, p.cutoff)
}

type fakeWriter struct {
	upserted []models.Product
}

func (w *fakeWriter) EnsureCollection(context.Context, bool) error { return nil }
func (w *fakeWriter) EnsurePayloadIndexes(context.Context) error { return nil }
func (w *fakeWriter) Upsert(_ context.Context, p []models.Product) error {
	w.upserted = append(w.upserted, p...)
	return nil
}

func TestCatalogWorker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id": 1, "title": "Mug", "price": 9}]`), 0o600))

	fw := &fakeWriter{}
	w := NewCatalogWorker(catalog.NewIngester(fw, 10))

	require.NoError(t, w.ProcessTask(context.Background(), task(t, queue.TypeCatalogIngest, queue.CatalogIngestPayload{Path: path})))
	require.Len(t, fw.upserted, 1)
	assert.Equal(t, "Mug", fw.upserted[0].Title)
}

func TestCatalogWorker_MissingFileSkipsRetry(t *testing.T) {
	w := NewCatalogWorker(catalog.NewIngester(&fakeWriter{}, 10))

	err := w.ProcessTask(context.Background(), task(t, queue.TypeCatalogIngest, queue.CatalogIngestPayload{Path: "/nope.json"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
