package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the review core.
const (
	// TypeSessionCompleted is emitted once when a review session reaches Completed.
	TypeSessionCompleted = "session.completed"

	// TypeStateWriteFailed is emitted when a learning state write exhausts its
	// retries or cannot be queued. The write is kept for a later sync.
	TypeStateWriteFailed = "state.write_failed"
)

// Event is a notification emitted by a component of the review core.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type identifies the payload shape, one of the Type* constants
	Type string `json:"type"`

	// Payload contains the event-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// NewEvent creates a new Event with the specified type and payload.
func NewEvent(eventType string, payload any) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// SessionCompletedPayload is the payload of TypeSessionCompleted.
type SessionCompletedPayload struct {
	SessionID          uuid.UUID     `json:"session_id"`
	UserID             uuid.UUID     `json:"user_id"`
	CardsReviewed      int           `json:"cards_reviewed"`
	MasteredCount      int           `json:"mastered_count"`
	StillLearningCount int           `json:"still_learning_count"`
	Duration           time.Duration `json:"duration"`
	Terminated         bool          `json:"terminated"`
}

// StateWriteFailedPayload is the payload of TypeStateWriteFailed.
type StateWriteFailedPayload struct {
	UserID   uuid.UUID `json:"user_id"`
	CardID   uuid.UUID `json:"card_id"`
	Error    string    `json:"error"`
	Deferred int       `json:"deferred"`
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *Event) error
}

// HandlerFunc adapts an ordinary function to EventHandler.
type HandlerFunc func(ctx context.Context, event *Event) error

// HandleEvent calls f(ctx, event).
func (f HandlerFunc) HandleEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows components to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *Event) error
}
