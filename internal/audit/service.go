package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/fincommerce/internal/models"
)

var ErrDisabled = errors.New("usage log is disabled: no database configured")

// Service records LLM usage. A nil pool turns writes into no-ops so the
// assistant keeps working without Postgres.
type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

func (s *Service) LogLLMUsage(ctx context.Context, record models.LLMUsageLog) error {
	if s == nil || s.db == nil {
		return nil
	}

	metadata, err := json.Marshal(record.Metadata)
	if err != nil || record.Metadata == nil {
		metadata = []byte("{}")
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO llm_usage_logs (session_id, provider, model, input_tokens, output_tokens, total_tokens, cost_usd, latency_ms, endpoint, metadata)
		 VALUES (NULLIF($1, ''), $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		record.SessionID, record.Provider, record.Model, record.InputTokens, record.OutputTokens,
		record.TotalTokens, record.CostUSD, record.LatencyMs, record.Endpoint, metadata,
	)
	if err != nil {
		return fmt.Errorf("insert LLM usage log: %w", err)
	}
	return nil
}

type UsageSummary struct {
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	Endpoint     string  `json:"endpoint"`
	TotalCalls   int     `json:"total_calls"`
	TotalTokens  int     `json:"total_tokens"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

func (s *Service) GetUsageSummary(ctx context.Context, start, end *time.Time) ([]UsageSummary, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}

	query, args := usageSummaryQuery(start, end)
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query usage summary: %w", err)
	}
	defer rows.Close()

	summaries := []UsageSummary{}
	for rows.Next() {
		var us UsageSummary
		if err := rows.Scan(&us.Provider, &us.Model, &us.Endpoint, &us.TotalCalls, &us.TotalTokens, &us.TotalCostUSD, &us.AvgLatencyMs); err != nil {
			return nil, fmt.Errorf("scan usage summary: %w", err)
		}
		summaries = append(summaries, us)
	}
	return summaries, rows.Err()
}

func usageSummaryQuery(start, end *time.Time) (string, []any) {
	var (
		where []string
		args  []any
	)
	if start != nil {
		args = append(args, *start)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if end != nil {
		args = append(args, *end)
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString(`SELECT provider, model, endpoint, COUNT(*),
	       COALESCE(SUM(total_tokens), 0),
	       COALESCE(SUM(cost_usd), 0)::float8,
	       COALESCE(AVG(latency_ms), 0)::float8
	FROM llm_usage_logs`)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" GROUP BY provider, model, endpoint ORDER BY 6 DESC")
	return b.String(), args
}
