// Package user reads the demo shopper accounts whose balance and budget are
// attached to search responses.
package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/fincommerce/internal/models"
)

var (
	ErrNotFound    = errors.New("user not found")
	ErrUnavailable = errors.New("user store unavailable: no database configured")
)

const selectUser = `SELECT id, username, balance::float8, monthly_budget::float8, credit_cards, created_at FROM users`

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

func (s *Service) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if s == nil || s.db == nil {
		return nil, ErrUnavailable
	}
	u, err := scanUser(s.db.QueryRow(ctx, selectUser+" WHERE id = $1", id))
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

func (s *Service) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if s == nil || s.db == nil {
		return nil, ErrUnavailable
	}
	u, err := scanUser(s.db.QueryRow(ctx, selectUser+" WHERE username = $1", username))
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", username, err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Balance, &u.MonthlyBudget, &u.CreditCards, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if u.CreditCards == nil {
		u.CreditCards = []string{}
	}
	return &u, nil
}
