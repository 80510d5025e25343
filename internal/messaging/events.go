package messaging

import (
	"context"
	"time"
)

// EventType names a storyboard event.
type EventType string

const (
	EventStoryboardCreated EventType = "storyboard.created"
	EventFrameRendered     EventType = "frame.rendered"
	EventFrameErrored      EventType = "frame.errored"
	EventBatchCompleted    EventType = "batch.completed"
)

// Event is published after a successful write.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	ProjectID  string    `json:"project_id"`
	OwnerID    string    `json:"owner_id"`
	ShotNumber int       `json:"shot_number,omitempty"`
	Fallback   bool      `json:"fallback,omitempty"`
	Error      string    `json:"error,omitempty"`
	ShotCount  int       `json:"shot_count,omitempty"`
	Rendered   []int     `json:"rendered,omitempty"`
	Errored    []int     `json:"errored,omitempty"`
	Skipped    []int     `json:"skipped,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher delivers storyboard events. Callers treat failures as non-fatal.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type nopPublisher struct{}

// NewNopPublisher returns a publisher that drops every event.
func NewNopPublisher() EventPublisher {
	return nopPublisher{}
}

func (nopPublisher) Publish(context.Context, Event) error { return nil }

func (nopPublisher) Close() error { return nil }
