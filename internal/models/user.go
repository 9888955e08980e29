package models

import "time"

type User struct {
	ID            int64     `json:"id" db:"id"`
	Username      string    `json:"username" db:"username"`
	Balance       float64   `json:"balance" db:"balance"`
	MonthlyBudget float64   `json:"monthly_budget" db:"monthly_budget"`
	CreditCards   []string  `json:"credit_cards" db:"credit_cards"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Context is the financial summary attached to search responses.
func (u *User) Context() map[string]any {
	return map[string]any{
		"username": u.Username,
		"balance":  u.Balance,
		"budget":   u.MonthlyBudget,
	}
}
