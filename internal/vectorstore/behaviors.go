package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/nikhilbhutani/fincommerce/internal/config"
	"github.com/nikhilbhutani/fincommerce/internal/models"
)

const (
	fieldSessionID   = "session_id"
	fieldEventType   = "event_type"
	fieldCreatedUnix = "created_unix"
)

// QdrantEventStore keeps behavior events as points in their own collection,
// one point per event with the behavior text embedded by Qdrant.
type QdrantEventStore struct {
	client *qdrant.Client
	cfg    config.QdrantConfig

	mu    sync.Mutex
	ready bool
}

func NewQdrantEventStore(client *qdrant.Client, cfg config.QdrantConfig) *QdrantEventStore {
	return &QdrantEventStore{client: client, cfg: cfg}
}

// ensure creates the collection and its payload indexes on first use.
func (s *QdrantEventStore) ensure(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}

	name := s.cfg.BehaviorCollection
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", name, err)
	}
	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
				BehaviorVector: {Size: uint64(s.cfg.DenseSize), Distance: qdrant.Distance_Cosine},
			}),
		})
		if err != nil {
			// Another replica may have won the race.
			again, checkErr := s.client.CollectionExists(ctx, name)
			if checkErr != nil || !again {
				return fmt.Errorf("create collection %s: %w", name, err)
			}
		} else {
			slog.Info("created collection", "collection", name)
		}
	}

	indexes := []struct {
		field string
		kind  qdrant.FieldType
	}{
		{fieldSessionID, qdrant.FieldType_FieldTypeKeyword},
		{fieldEventType, qdrant.FieldType_FieldTypeKeyword},
		{fieldCreatedUnix, qdrant.FieldType_FieldTypeFloat},
	}
	for _, idx := range indexes {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: name,
			FieldName:      idx.field,
			FieldType:      idx.kind.Enum(),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("index %s.%s: %w", name, idx.field, err)
		}
	}

	s.ready = true
	return nil
}

func (s *QdrantEventStore) Append(ctx context.Context, ev *models.BehaviorEvent) (err error) {
	defer func(start time.Time) { observe("event_append", start, err) }(time.Now())

	if err := s.ensure(ctx); err != nil {
		return err
	}

	payload, err := qdrant.TryValueMap(eventPayload(ev))
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.BehaviorCollection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id: qdrant.NewID(ev.ID.String()),
			Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
				BehaviorVector: qdrant.NewVectorDocument(&qdrant.Document{Text: ev.BehaviorText, Model: s.cfg.DenseModel}),
			}),
			Payload: payload,
		}},
	})
	if err != nil {
		return fmt.Errorf("upsert event: %w", err)
	}
	return nil
}

// FetchBySession returns the newest events of a session. Points are ordered
// server side by created_unix; callers still sort to be safe against stores
// that cannot.
func (s *QdrantEventStore) FetchBySession(ctx context.Context, sessionID string, limit int) (events []models.BehaviorEvent, err error) {
	defer func(start time.Time) { observe("event_fetch", start, err) }(time.Now())

	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.cfg.BehaviorCollection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(fieldSessionID, sessionID)},
		},
		Limit: qdrant.PtrOf(uint32(limit)),
		OrderBy: &qdrant.OrderBy{
			Key:       fieldCreatedUnix,
			Direction: qdrant.Direction_Desc.Enum(),
		},
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("scroll events: %w", err)
	}

	events = make([]models.BehaviorEvent, 0, len(points))
	for _, pt := range points {
		events = append(events, eventFromPayload(pt.GetId(), pt.GetPayload()))
	}
	return events, nil
}

// PruneBefore deletes every event recorded before cutoff.
func (s *QdrantEventStore) PruneBefore(ctx context.Context, cutoff time.Time) error {
	if err := s.ensure(ctx); err != nil {
		return err
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.BehaviorCollection,
		Wait:           qdrant.PtrOf(true),
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewRange(fieldCreatedUnix, &qdrant.Range{Lt: qdrant.PtrOf(unixSeconds(cutoff))}),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("prune events before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func eventPayload(ev *models.BehaviorEvent) map[string]any {
	return map[string]any{
		fieldSessionID:   ev.SessionID,
		fieldEventType:   ev.EventType,
		"data":           plainAttributes(ev.Attributes),
		"behavior_text":  ev.BehaviorText,
		"timestamp":      ev.Timestamp.Format(time.RFC3339Nano),
		fieldCreatedUnix: unixSeconds(ev.Timestamp),
		"weight":         ev.Weight,
	}
}

// plainAttributes reduces free-form attributes to JSON shapes the payload
// encoder accepts. Values that cannot be encoded are stored as text.
func plainAttributes(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		raw, err := json.Marshal(v)
		if err != nil {
			out[k] = fmt.Sprint(v)
			continue
		}
		var plain any
		if err := json.Unmarshal(raw, &plain); err != nil {
			out[k] = string(raw)
			continue
		}
		out[k] = plain
	}
	return out
}

func eventFromPayload(id *qdrant.PointId, payload map[string]*qdrant.Value) models.BehaviorEvent {
	ev := models.BehaviorEvent{
		SessionID:    firstString(payload, fieldSessionID),
		EventType:    firstString(payload, fieldEventType),
		BehaviorText: firstString(payload, "behavior_text"),
		Attributes:   map[string]any{},
	}
	if parsed, err := uuid.Parse(pointIDString(id)); err == nil {
		ev.ID = parsed
	}
	if data, ok := payload["data"]; ok {
		if m, ok := toAny(data).(map[string]any); ok {
			ev.Attributes = m
		}
	}
	ev.Weight, _ = firstNumber(payload, "weight")

	// Fetches order by created_unix, so every returned point carries it.
	if ts, err := time.Parse(time.RFC3339Nano, firstString(payload, "timestamp")); err == nil {
		ev.Timestamp = ts
	} else if secs, ok := firstNumber(payload, fieldCreatedUnix); ok {
		ev.Timestamp = time.Unix(0, int64(secs*1e9)).UTC()
	}
	return ev
}
