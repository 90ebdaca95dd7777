package domain

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// Optional carries a patch value for a nullable field. Set false means the
// field was absent; Set true with a nil Value means an explicit null.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some wraps a present, non-null value.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null is a present, explicitly null value.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// TicketField names a ticket attribute tracked by the change set.
type TicketField string

const (
	FieldStatus      TicketField = "status"
	FieldPriority    TicketField = "priority"
	FieldAssignee    TicketField = "assignee_id"
	FieldDueAt       TicketField = "due_at"
	FieldTags        TicketField = "tags"
	FieldCategory    TicketField = "category"
	FieldSubject     TicketField = "subject"
	FieldDescription TicketField = "description"
)

// FieldChange is an old/new pair for one changed field. Nullable fields
// carry nil or the dereferenced value.
type FieldChange struct {
	Field TicketField
	Old   any
	New   any
}

// NewTicketInput is the validated payload for ticket creation.
type NewTicketInput struct {
	Subject     string
	Description string
	Priority    TicketPriority
	Status      TicketStatus
	Category    *string
	Tags        []string
	DueAt       *time.Time
	AssigneeID  *string
}

// TicketPatch is a partial update; nil / unset fields are left untouched.
type TicketPatch struct {
	Subject     *string
	Description *string
	Status      *TicketStatus
	Priority    *TicketPriority
	Category    Optional[string]
	Tags        Optional[[]string]
	DueAt       Optional[time.Time]
	AssigneeID  Optional[string]
}

// UpdateOutcome is the result of ApplyUpdate.
type UpdateOutcome struct {
	Ticket  Ticket
	Changes []FieldChange
}

// Dirty reports whether any field changed.
func (o UpdateOutcome) Dirty() bool {
	return len(o.Changes) > 0
}

// NewTicket builds a ticket with creation defaults applied and returns the
// changes describing the initial state for the created activity.
func NewTicket(input NewTicketInput, requesterID, reference string, now time.Time) (Ticket, []FieldChange, error) {
	status := input.Status
	if status == "" {
		status = TicketStatusOpen
	}
	if !status.Valid() {
		return Ticket{}, nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	priority := input.Priority
	if priority == "" {
		priority = TicketPriorityNormal
	}
	if !priority.Valid() {
		return Ticket{}, nil, fmt.Errorf("%w: %q", ErrInvalidPriority, priority)
	}

	ticket := Ticket{
		Reference:      reference,
		RequesterID:    requesterID,
		AssigneeID:     clonePtr(input.AssigneeID),
		Subject:        strings.TrimSpace(input.Subject),
		Description:    strings.TrimSpace(input.Description),
		Status:         status,
		Priority:       priority,
		Category:       normalizeCategory(input.Category),
		Tags:           NormalizeTags(input.Tags),
		DueAt:          normalizeInstant(input.DueAt),
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if status.IsResolved() {
		resolvedAt := now
		ticket.ResolvedAt = &resolvedAt
	}

	changes := []FieldChange{
		{Field: FieldStatus, New: status},
		{Field: FieldPriority, New: priority},
	}
	return ticket, changes, nil
}

// ApplyUpdate applies patch to ticket at now. Status side effects are
// evaluated against the status held before the patch. The returned
// changes list tracked fields in activity checklist order followed by
// subject and description.
func ApplyUpdate(ticket Ticket, patch TicketPatch, now time.Time) (UpdateOutcome, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return UpdateOutcome{}, fmt.Errorf("%w: %q", ErrInvalidStatus, *patch.Status)
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return UpdateOutcome{}, fmt.Errorf("%w: %q", ErrInvalidPriority, *patch.Priority)
	}

	before := ticket.Clone()
	after := ticket.Clone()

	if patch.Status != nil {
		next := *patch.Status
		switch {
		case !before.Status.IsResolved() && next.IsResolved():
			if after.ResolvedAt == nil {
				resolvedAt := now
				after.ResolvedAt = &resolvedAt
			}
		case before.Status.IsResolved() && !next.IsResolved():
			after.ResolvedAt = nil
			after.ReopenCount++
		}
		after.Status = next
	}
	if patch.Priority != nil {
		after.Priority = *patch.Priority
	}
	if patch.Subject != nil {
		after.Subject = strings.TrimSpace(*patch.Subject)
	}
	if patch.Description != nil {
		after.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.AssigneeID.Set {
		after.AssigneeID = clonePtr(patch.AssigneeID.Value)
	}
	if patch.DueAt.Set {
		after.DueAt = normalizeInstant(patch.DueAt.Value)
	}
	if patch.Tags.Set {
		var raw []string
		if patch.Tags.Value != nil {
			raw = *patch.Tags.Value
		}
		after.Tags = NormalizeTags(raw)
	}
	if patch.Category.Set {
		after.Category = normalizeCategory(patch.Category.Value)
	}

	changes := Diff(before, after)
	if len(changes) > 0 {
		after.LastActivityAt = now
		after.UpdatedAt = now
	}
	if err := CheckInvariants(before, after); err != nil {
		return UpdateOutcome{}, err
	}
	return UpdateOutcome{Ticket: after, Changes: changes}, nil
}

// Diff compares two states of one ticket and returns the changed fields.
func Diff(before, after Ticket) []FieldChange {
	var changes []FieldChange
	if before.Status != after.Status {
		changes = append(changes, FieldChange{Field: FieldStatus, Old: before.Status, New: after.Status})
	}
	if before.Priority != after.Priority {
		changes = append(changes, FieldChange{Field: FieldPriority, Old: before.Priority, New: after.Priority})
	}
	if !equalPtr(before.AssigneeID, after.AssigneeID) {
		changes = append(changes, FieldChange{Field: FieldAssignee, Old: derefAny(before.AssigneeID), New: derefAny(after.AssigneeID)})
	}
	if !equalTime(before.DueAt, after.DueAt) {
		changes = append(changes, FieldChange{Field: FieldDueAt, Old: derefAny(before.DueAt), New: derefAny(after.DueAt)})
	}
	if !slices.Equal(before.Tags, after.Tags) {
		changes = append(changes, FieldChange{Field: FieldTags, Old: slices.Clone(before.Tags), New: slices.Clone(after.Tags)})
	}
	if !equalPtr(before.Category, after.Category) {
		changes = append(changes, FieldChange{Field: FieldCategory, Old: derefAny(before.Category), New: derefAny(after.Category)})
	}
	if before.Subject != after.Subject {
		changes = append(changes, FieldChange{Field: FieldSubject, Old: before.Subject, New: after.Subject})
	}
	if before.Description != after.Description {
		changes = append(changes, FieldChange{Field: FieldDescription, Old: before.Description, New: after.Description})
	}
	return changes
}

// CheckInvariants verifies the monotonic and write-once ticket fields.
func CheckInvariants(before, after Ticket) error {
	if after.ReopenCount < 0 {
		return fmt.Errorf("%w: reopen count %d is negative", ErrInconsistentTicket, after.ReopenCount)
	}
	if after.ReopenCount < before.ReopenCount {
		return fmt.Errorf("%w: reopen count decreased from %d to %d", ErrInconsistentTicket, before.ReopenCount, after.ReopenCount)
	}
	if before.FirstResponseAt != nil && !equalTime(before.FirstResponseAt, after.FirstResponseAt) {
		return fmt.Errorf("%w: first response already recorded", ErrInconsistentTicket)
	}
	if before.Reference != "" && before.Reference != after.Reference {
		return fmt.Errorf("%w: reference is immutable", ErrInconsistentTicket)
	}
	return nil
}

// RecordFirstResponse stamps the first response when authorID is not the
// requester and no response has been recorded yet. It reports whether the
// ticket changed.
func RecordFirstResponse(ticket *Ticket, authorID string, now time.Time) bool {
	if ticket.FirstResponseAt != nil || ticket.RequesterID == authorID {
		return false
	}
	respondedAt := now
	minutes := 0
	if !ticket.CreatedAt.IsZero() {
		minutes = int(math.Round(now.Sub(ticket.CreatedAt).Minutes()))
		if minutes < 0 {
			minutes = 0
		}
	}
	ticket.FirstResponseAt = &respondedAt
	ticket.FirstResponseMinutes = &minutes
	return true
}

func normalizeCategory(category *string) *string {
	if category == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*category)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// normalizeInstant drops sub-microsecond precision so values survive a
// Postgres round trip unchanged.
func normalizeInstant(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.Truncate(time.Microsecond)
	return &v
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func derefAny[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}
