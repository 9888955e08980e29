package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = r.values[i].(int64)
		case *string:
			*p = r.values[i].(string)
		case *float64:
			*p = r.values[i].(float64)
		case *[]string:
			if v := r.values[i]; v != nil {
				*p = v.([]string)
			}
		case *time.Time:
			*p = r.values[i].(time.Time)
		}
	}
	return nil
}

func TestScanUser(t *testing.T) {
	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	u, err := scanUser(fakeRow{values: []any{int64(1), "demo_user", 1500.0, 500.0, []string{"Amex_Gold"}, created}})
	require.NoError(t, err)

	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, "demo_user", u.Username)
	assert.Equal(t, map[string]any{"username": "demo_user", "balance": 1500.0, "budget": 500.0}, u.Context())
	assert.Equal(t, []string{"Amex_Gold"}, u.CreditCards)
	assert.Equal(t, created, u.CreatedAt)
}

func TestScanUser_NilCards(t *testing.T) {
	u, err := scanUser(fakeRow{values: []any{int64(2), "x", 0.0, 0.0, nil, time.Time{}}})
	require.NoError(t, err)
	assert.NotNil(t, u.CreditCards)
}

func TestScanUser_NoRows(t *testing.T) {
	_, err := scanUser(fakeRow{err: pgx.ErrNoRows})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScanUser_OtherError(t *testing.T) {
	boom := errors.New("conn reset")
	_, err := scanUser(fakeRow{err: boom})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestService_WithoutDatabase(t *testing.T) {
	var nilSvc *Service
	_, err := nilSvc.GetByID(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = NewService(nil).GetByUsername(context.Background(), "demo_user")
	assert.ErrorIs(t, err, ErrUnavailable)
}
