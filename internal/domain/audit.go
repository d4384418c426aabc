package domain

import "time"

type EntityType string

const (
	EntityItem       EntityType = "item"
	EntityBorrowing  EntityType = "borrowing"
	EntitySubmission EntityType = "submission"
	EntityPatron     EntityType = "patron"
	EntityHold       EntityType = "hold"
)

// AuditEntry records one state transition.
type AuditEntry struct {
	ID         int32      `json:"id"`
	EntityType EntityType `json:"entity_type"`
	EntityID   int32      `json:"entity_id"`
	ActorID    int32      `json:"actor_id"`
	Action     string     `json:"action"`
	FromStatus string     `json:"from_status"`
	ToStatus   string     `json:"to_status"`
	Notes      string     `json:"notes,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
