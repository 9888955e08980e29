package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/nikhilbhutani/fincommerce/internal/models"
)

// Embedder turns behavior text into a vector.
type Embedder interface {
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
}

// PgEventStore keeps behavior events in Postgres. When an embedder is set
// the behavior text is stored as a pgvector embedding next to the row.
type PgEventStore struct {
	db       *pgxpool.Pool
	embedder Embedder
}

func NewPgEventStore(db *pgxpool.Pool, embedder Embedder) *PgEventStore {
	return &PgEventStore{db: db, embedder: embedder}
}

func (s *PgEventStore) Append(ctx context.Context, ev *models.BehaviorEvent) (err error) {
	defer func(start time.Time) { observe("event_append", start, err) }(time.Now())

	data, err := json.Marshal(plainAttributes(ev.Attributes))
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}

	var embedding *pgvector.Vector
	if s.embedder != nil && ev.BehaviorText != "" {
		vec, embedErr := s.embedder.EmbedSingle(ctx, ev.BehaviorText)
		if embedErr != nil {
			// The event is still worth keeping without its vector.
			slog.Warn("embed behavior text failed", "session_id", ev.SessionID, "error", embedErr)
		} else {
			v := pgvector.NewVector(vec)
			embedding = &v
		}
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO behavior_events (id, session_id, event_type, data, behavior_text, weight, embedding, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.SessionID, ev.EventType, data, ev.BehaviorText, ev.Weight, embedding, ev.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert behavior event: %w", err)
	}
	return nil
}

func (s *PgEventStore) FetchBySession(ctx context.Context, sessionID string, limit int) (events []models.BehaviorEvent, err error) {
	defer func(start time.Time) { observe("event_fetch", start, err) }(time.Now())

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, session_id, event_type, data, behavior_text, weight, created_at
		 FROM behavior_events
		 WHERE session_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query behavior events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ev   models.BehaviorEvent
			data []byte
		)
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.EventType, &data, &ev.BehaviorText, &ev.Weight, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan behavior event: %w", err)
		}
		ev.Attributes = map[string]any{}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &ev.Attributes); err != nil {
				slog.Warn("unreadable event attributes", "event_id", ev.ID, "error", err)
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *PgEventStore) PruneBefore(ctx context.Context, cutoff time.Time) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM behavior_events WHERE created_at < $1", cutoff)
	if err != nil {
		return fmt.Errorf("prune behavior events: %w", err)
	}
	slog.Info("pruned behavior events", "deleted", tag.RowsAffected(), "cutoff", cutoff)
	return nil
}
