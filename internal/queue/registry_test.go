package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RoutesByType(t *testing.T) {
	r := NewRegistry()
	var got []string
	r.Register(TypeBehaviorPrune, func(_ context.Context, t *asynq.Task) error {
		got = append(got, t.Type())
		return nil
	})
	boom := errors.New("boom")
	r.Register(TypeCatalogIngest, func(context.Context, *asynq.Task) error { return boom })

	task, err := NewBehaviorPruneTask(BehaviorPrunePayload{})
	require.NoError(t, err)
	require.NoError(t, r.Mux().ProcessTask(context.Background(), task))
	assert.Equal(t, []string{TypeBehaviorPrune}, got)

	err = r.Mux().ProcessTask(context.Background(), asynq.NewTask(TypeCatalogIngest, []byte(`{}`)))
	assert.ErrorIs(t, err, boom)
}

func TestRegistry_UnknownTypeFails(t *testing.T) {
	r := NewRegistry()
	err := r.Mux().ProcessTask(context.Background(), asynq.NewTask("unknown:type", nil))
	assert.Error(t, err)
}
