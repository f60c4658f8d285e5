// Package audit records security-relevant events emitted by the
// permissions engine: authorization decisions and tuple mutations.
// Events are structured for later export to compliance tooling.
package audit

import (
	"context"
	"encoding/json"
	"time"
)

// Event is a single audit record.
type Event struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`     // e.g. "permissions.check"
	ActorID      string          `json:"actor_id"` // subject performing the action
	Status       string          `json:"status"`   // "allowed", "denied", "error"
	Message      string          `json:"message"`
	ResourceType string          `json:"resource_type,omitempty"`
	ResourceID   string          `json:"resource_id,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Store persists and queries audit events.
type Store interface {
	// SaveEvent persists an event.
	SaveEvent(ctx context.Context, event *Event) error

	// Query returns events matching the filter, newest first.
	Query(ctx context.Context, filter Filter) ([]Event, error)

	// Purge deletes events older than the given time and returns the
	// number removed.
	Purge(ctx context.Context, olderThan time.Time) (int64, error)
}

// Filter selects audit events. Zero fields are ignored.
type Filter struct {
	ActorID      string
	Types        []string
	Statuses     []string
	ResourceType string
	ResourceID   string
	StartTime    time.Time
	EndTime      time.Time
	Limit        int
	Offset       int
}

// Event types emitted by the engine.
const (
	EventCheck       = "permissions.check"
	EventTupleWrite  = "permissions.tuple.write"
	EventTupleDelete = "permissions.tuple.delete"
	EventCacheClear  = "permissions.cache.clear"
)

// Decision statuses.
const (
	StatusAllowed = "allowed"
	StatusDenied  = "denied"
	StatusError   = "error"
)
