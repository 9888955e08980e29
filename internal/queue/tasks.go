package queue

import "time"

const (
	TypeBehaviorPrune = "behavior:prune"
	TypeCatalogIngest = "catalog:ingest"
)

const (
	QueueDefault = "default"
	QueueLow     = "low"
)

// Priorities are the asynq queue weights the worker serves.
var Priorities = map[string]int{
	QueueDefault: 3,
	QueueLow:     1,
}

// BehaviorPrunePayload deletes events recorded before Before. A zero
// Before means "now minus the configured retention".
type BehaviorPrunePayload struct {
	Before time.Time `json:"before,omitempty"`
}

// CatalogIngestPayload indexes a product file. Path must be readable by
// the worker.
type CatalogIngestPayload struct {
	Path     string `json:"path"`
	Recreate bool   `json:"recreate"`
}
