package eventlogger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const MetadataProjectID = "project_id"

type Event struct {
	ID        uuid.UUID         `json:"id,omitempty"`
	Type      string            `json:"event_type,omitempty"`
	Data      any               `json:"event_data,omitempty"`
	Metadata  map[string]string `json:"event_metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type EventOption func(*Event)

func WithType(eventType string) EventOption {
	return func(e *Event) {
		e.Type = eventType
	}
}

func WithData(data any) EventOption {
	return func(e *Event) {
		e.Data = data
	}
}

func WithMetadata(metadata map[string]string) EventOption {
	return func(e *Event) {
		for k, v := range metadata {
			e.Metadata[k] = v
		}
	}
}

// WithProject tags the event with the project it belongs to.
func WithProject(projectID uuid.UUID) EventOption {
	return func(e *Event) {
		e.Metadata[MetadataProjectID] = projectID.String()
	}
}

func WithTime(at time.Time) EventOption {
	return func(e *Event) {
		e.CreatedAt = at
	}
}

func NewEvent(opts ...EventOption) Event {
	e := Event{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
		Metadata:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// ProjectID returns the project the event was tagged with, if any.
func (e Event) ProjectID() (uuid.UUID, bool) {
	id, err := uuid.Parse(e.Metadata[MetadataProjectID])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

type EventLogger interface {
	Save(ctx context.Context, e Event) error
	GetByType(ctx context.Context, eventType string) ([]Event, error)
}
