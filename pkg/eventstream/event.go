// Package eventstream defines the events the memories proxy emits after
// successful writes and the Publisher interface backends implement.
package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/memories-sh/memories-go/pkg/memories"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeMemoryAdded is emitted after the upstream accepts a new memory.
	EventTypeMemoryAdded = "memories.memory.added"
)

// MemoryAddedEvent is a transport-neutral event payload for a stored memory.
// It carries metadata only; memory content never leaves the request path.
type MemoryAddedEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`
	RequestMeta   RequestMeta `json:"request_meta"`
	Memory        MemoryMeta  `json:"memory"`
}

// EventSource identifies the proxy instance and upstream that handled the write.
type EventSource struct {
	Service string `json:"service"`
	BaseURL string `json:"base_url"`
}

// RequestMeta captures request lifecycle metadata for the event.
type RequestMeta struct {
	Path        string    `json:"path,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	HTTPStatus  int       `json:"http_status"`
}

// MemoryMeta describes the stored memory.
type MemoryMeta struct {
	Type          memories.MemoryType `json:"type"`
	Tags          []string            `json:"tags"`
	ContentLength int                 `json:"content_length"`
	Scope         *memories.Scope     `json:"scope,omitempty"`
}

// NewMemoryAddedEvent stamps a fresh event ID and emission time onto the
// given metadata.
func NewMemoryAddedEvent(source EventSource, meta RequestMeta, memory MemoryMeta) *MemoryAddedEvent {
	return &MemoryAddedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeMemoryAdded,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		RequestMeta:   meta,
		Memory:        memory,
	}
}

// MemoryMetaFrom summarizes the request sent upstream.
func MemoryMetaFrom(req *memories.AddMemoryRequest) MemoryMeta {
	return MemoryMeta{
		Type:          req.Type,
		Tags:          req.Tags,
		ContentLength: len(req.Content),
		Scope:         req.Scope,
	}
}
