package models

import "time"

type LLMUsageLog struct {
	ID           int64          `json:"id" db:"id"`
	SessionID    string         `json:"session_id,omitempty" db:"session_id"`
	Provider     string         `json:"provider" db:"provider"`
	Model        string         `json:"model" db:"model"`
	InputTokens  int            `json:"input_tokens" db:"input_tokens"`
	OutputTokens int            `json:"output_tokens" db:"output_tokens"`
	TotalTokens  int            `json:"total_tokens" db:"total_tokens"`
	CostUSD      float64        `json:"cost_usd" db:"cost_usd"`
	LatencyMs    int64          `json:"latency_ms" db:"latency_ms"`
	Endpoint     string         `json:"endpoint" db:"endpoint"`
	Metadata     map[string]any `json:"metadata,omitempty" db:"metadata"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
}
