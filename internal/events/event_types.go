package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketUpdated       EventType = "ticket_updated"
	EventTicketCommentPosted EventType = "ticket_comment_posted"
)

// TicketEventTypes lists every event emitted after a ticket command commits.
func TicketEventTypes() []EventType {
	return []EventType{EventTicketCreated, EventTicketUpdated, EventTicketCommentPosted}
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID *string `json:"user_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewEvent stamps a fresh event id.
func NewEvent(eventType EventType, ticketID string, actorID *string, at time.Time, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     Actor{UserID: actorID},
		Timestamp: at,
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Reference string                `json:"reference"`
	Status    domain.TicketStatus   `json:"status"`
	Priority  domain.TicketPriority `json:"priority"`
}

// TicketUpdatedPayload payload.
type TicketUpdatedPayload struct {
	Reference  string                `json:"reference"`
	Fields     []domain.TicketField  `json:"fields"`
	Activities []domain.ActivityType `json:"activities"`
}

// TicketCommentPostedPayload payload.
type TicketCommentPostedPayload struct {
	CommentID     string `json:"comment_id"`
	IsInternal    bool   `json:"is_internal"`
	BodyPreview   string `json:"body_preview"`
	FirstResponse bool   `json:"first_response"`
}
