package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventSearch       = "search"
	EventProductClick = "product_click"
	EventAddToCart    = "add_to_cart"
)

// BehaviorEvent is one recorded user action. Events are append-only.
type BehaviorEvent struct {
	ID           uuid.UUID      `json:"id"`
	SessionID    string         `json:"session_id"`
	EventType    string         `json:"event_type"`
	Attributes   map[string]any `json:"data"`
	BehaviorText string         `json:"behavior_text"`
	Weight       float64        `json:"weight"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Interest is a normalized interest term with its accumulated weight.
type Interest struct {
	Term  string  `json:"term"`
	Score float64 `json:"score"`
}
