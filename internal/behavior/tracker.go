package behavior

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/fincommerce/internal/metrics"
	"github.com/nikhilbhutani/fincommerce/internal/models"
)

// EventStore is the durable, append-only event log. FetchBySession makes no
// ordering promise; callers sort.
type EventStore interface {
	Append(ctx context.Context, ev *models.BehaviorEvent) error
	FetchBySession(ctx context.Context, sessionID string, limit int) ([]models.BehaviorEvent, error)
}

// Pruner deletes events recorded before a cutoff.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) error
}

// Tracker records user behavior and derives personalization signals from it.
type Tracker struct {
	store EventStore
	now   func() time.Time
}

func NewTracker(store EventStore) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// RecordEvent stores one user action. Attributes are never rejected; an
// unknown event type is stored with the low default weight.
func (t *Tracker) RecordEvent(ctx context.Context, sessionID, eventType string, attrs map[string]any) (*models.BehaviorEvent, error) {
	if attrs == nil {
		attrs = map[string]any{}
	}
	ts := t.now().UTC()
	ev := &models.BehaviorEvent{
		ID:           eventID(sessionID, ts),
		SessionID:    sessionID,
		EventType:    eventType,
		Attributes:   attrs,
		BehaviorText: Describe(eventType, attrs),
		Weight:       Weight(eventType),
		Timestamp:    ts,
	}

	if err := t.store.Append(ctx, ev); err != nil {
		slog.Error("behavior store failed", "session_id", sessionID, "event_type", eventType, "error", err)
		metrics.EventsRecorded.WithLabelValues(metricEventType(eventType), "error").Inc()
		return nil, fmt.Errorf("record %s event: %w", eventType, err)
	}

	slog.Info("stored behavior", "session_id", sessionID, "event_type", eventType, "text", ev.BehaviorText)
	metrics.EventsRecorded.WithLabelValues(metricEventType(eventType), "ok").Inc()
	return ev, nil
}

// Preferences returns up to limit recent events of a session, newest first.
func (t *Tracker) Preferences(ctx context.Context, sessionID string, limit int) ([]models.BehaviorEvent, error) {
	events, err := t.store.FetchBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch events for session: %w", err)
	}
	SortByRecency(events)
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// InterestProfile aggregates the session's recent events into weighted
// interest terms, strongest first.
func (t *Tracker) InterestProfile(ctx context.Context, sessionID string, limit int) ([]models.Interest, error) {
	events, err := t.Preferences(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}
	return AggregateInterests(events), nil
}

// CumulativeContext joins the distinct recent interest terms into a single
// query string. An empty result means there is no personalization signal.
func (t *Tracker) CumulativeContext(ctx context.Context, sessionID string, limit int) (string, error) {
	events, err := t.Preferences(ctx, sessionID, limit)
	if err != nil {
		return "", err
	}
	return strings.Join(ContextTerms(events), " "), nil
}

// SortByRecency orders events newest first. Equal timestamps keep their
// storage order.
func SortByRecency(events []models.BehaviorEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
}

// AggregateInterests sums event weights per normalized term. Events must
// already be in recency order; ties in score keep first-seen order.
func AggregateInterests(events []models.BehaviorEvent) []models.Interest {
	index := make(map[string]int)
	var interests []models.Interest

	for _, ev := range events {
		term := stringAttr(ev.Attributes, "category")
		if strings.TrimSpace(term) == "" && ev.EventType == models.EventSearch {
			term = stringAttr(ev.Attributes, "query")
		}
		term = NormalizeTerm(term)
		if term == "" {
			continue
		}

		if i, ok := index[term]; ok {
			interests[i].Score += ev.Weight
			continue
		}
		index[term] = len(interests)
		interests = append(interests, models.Interest{Term: term, Score: ev.Weight})
	}

	sort.SliceStable(interests, func(i, j int) bool {
		return interests[i].Score > interests[j].Score
	})
	return interests
}

// ContextTerms returns each distinct term once, at its most recent mention.
func ContextTerms(events []models.BehaviorEvent) []string {
	seen := make(map[string]bool)
	var terms []string

	for _, ev := range events {
		var term string
		switch ev.EventType {
		case models.EventSearch:
			term = stringAttr(ev.Attributes, "query")
		case models.EventProductClick, models.EventAddToCart:
			term = stringAttr(ev.Attributes, "category")
		}
		term = NormalizeTerm(term)
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		terms = append(terms, term)
	}
	return terms
}

var eventNamespace = uuid.MustParse("6f0c1f43-61c5-4b5c-9d3c-2a8e7b0f4e11")

// eventID is deterministic in (session, timestamp) so a replayed write
// overwrites instead of duplicating.
func eventID(sessionID string, ts time.Time) uuid.UUID {
	return uuid.NewMD5(eventNamespace, []byte(sessionID+"_"+ts.Format(time.RFC3339Nano)))
}

// metricEventType keeps label cardinality bounded for free-form event types.
func metricEventType(eventType string) string {
	if _, ok := eventWeights[eventType]; ok {
		return eventType
	}
	return "other"
}
