package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusWaiting    TicketStatus = "waiting_on_customer"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketPriority enumerates request urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityNormal TicketPriority = "normal"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Statuses lists every status in display order.
func Statuses() []TicketStatus {
	return []TicketStatus{
		TicketStatusOpen,
		TicketStatusInProgress,
		TicketStatusWaiting,
		TicketStatusResolved,
		TicketStatusClosed,
	}
}

// Priorities lists every priority from least to most urgent.
func Priorities() []TicketPriority {
	return []TicketPriority{
		TicketPriorityLow,
		TicketPriorityNormal,
		TicketPriorityHigh,
		TicketPriorityUrgent,
	}
}

// ActiveStatuses are the statuses that still count against SLA.
func ActiveStatuses() []TicketStatus {
	return []TicketStatus{TicketStatusOpen, TicketStatusInProgress, TicketStatusWaiting}
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusWaiting, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// IsResolved reports whether s belongs to the resolved set {resolved, closed}.
func (s TicketStatus) IsResolved() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// IsActive reports whether s is open, in progress or waiting on the customer.
func (s TicketStatus) IsActive() bool {
	return s == TicketStatusOpen || s == TicketStatusInProgress || s == TicketStatusWaiting
}

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityNormal, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID                   string
	Reference            string
	RequesterID          string
	AssigneeID           *string
	Subject              string
	Description          string
	Status               TicketStatus
	Priority             TicketPriority
	Category             *string
	Tags                 []string
	DueAt                *time.Time
	ResolvedAt           *time.Time
	FirstResponseAt      *time.Time
	FirstResponseMinutes *int
	ReopenCount          int
	LastActivityAt       time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time

	// CommentCount is populated by read queries only.
	CommentCount int
}

// Clone returns a deep copy so callers can diff before/after states.
func (t Ticket) Clone() Ticket {
	out := t
	out.AssigneeID = clonePtr(t.AssigneeID)
	out.Category = clonePtr(t.Category)
	out.DueAt = clonePtr(t.DueAt)
	out.ResolvedAt = clonePtr(t.ResolvedAt)
	out.FirstResponseAt = clonePtr(t.FirstResponseAt)
	out.FirstResponseMinutes = clonePtr(t.FirstResponseMinutes)
	out.Tags = append([]string{}, t.Tags...)
	return out
}

// TicketSummary is the list-oriented read model.
type TicketSummary struct {
	Ticket
	Requester *UserRef
	Assignee  *UserRef
}

// TicketDetail is the full read model including the merged timeline.
type TicketDetail struct {
	Ticket
	Requester    *UserRef
	Assignee     *UserRef
	Timeline     []TimelineItem
	Participants []UserRef
}

// Page is one offset-paginated slice of a listing.
type Page[T any] struct {
	Items   []T
	Page    int
	PerPage int
	Total   int
}

// LastPage returns the index of the final page, never less than 1.
func (p Page[T]) LastPage() int {
	if p.PerPage <= 0 || p.Total == 0 {
		return 1
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
