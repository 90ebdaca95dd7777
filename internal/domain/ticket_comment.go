package domain

import "time"

// MaxCommentLength bounds comment bodies, counted in characters.
const MaxCommentLength = 4000

// TicketComment is a reply or internal note in a ticket thread.
type TicketComment struct {
	ID         string
	TicketID   string
	UserID     string
	Body       string
	IsInternal bool
	CreatedAt  time.Time
}
