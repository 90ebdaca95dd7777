package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// ActivityType names an audit event recorded on a ticket.
type ActivityType string

const (
	ActivityCreated           ActivityType = "created"
	ActivityStatusChanged     ActivityType = "status_changed"
	ActivityPriorityChanged   ActivityType = "priority_changed"
	ActivityAssigneeChanged   ActivityType = "assignee_changed"
	ActivityDueDateChanged    ActivityType = "due_date_changed"
	ActivityTagsUpdated       ActivityType = "tags_updated"
	ActivityCategoryUpdated   ActivityType = "category_updated"
	ActivityCommentAdded      ActivityType = "comment_added"
	ActivityInternalNoteAdded ActivityType = "internal_note_added"
)

// CommentPreviewLength is the number of body characters kept in comment activities.
const CommentPreviewLength = 160

// TicketActivity is an immutable audit trail entry.
type TicketActivity struct {
	ID          string
	TicketID    string
	PerformedBy *string
	Type        ActivityType
	Details     map[string]any
	CreatedAt   time.Time
}

// ActivityContext identifies who recorded a batch of activities and when.
type ActivityContext struct {
	TicketID    string
	PerformedBy *string
	At          time.Time
	// AssigneeName is copied into assignee_changed details when known.
	AssigneeName *string
}

// activityChecklist fixes the order in which field changes are recorded.
var activityChecklist = []struct {
	field TicketField
	kind  ActivityType
}{
	{FieldStatus, ActivityStatusChanged},
	{FieldPriority, ActivityPriorityChanged},
	{FieldAssignee, ActivityAssigneeChanged},
	{FieldDueAt, ActivityDueDateChanged},
	{FieldTags, ActivityTagsUpdated},
	{FieldCategory, ActivityCategoryUpdated},
}

// RecordChanges derives one activity per changed checklist field. Fields
// outside the checklist (subject, description) are ignored.
func RecordChanges(actx ActivityContext, changes []FieldChange) []TicketActivity {
	byField := make(map[TicketField]FieldChange, len(changes))
	for _, change := range changes {
		byField[change.Field] = change
	}

	var activities []TicketActivity
	for _, item := range activityChecklist {
		change, ok := byField[item.field]
		if !ok {
			continue
		}
		activities = append(activities, newActivity(actx, item.kind, changeDetails(actx, change)))
	}
	return activities
}

// CreatedActivity records the initial status and priority of a new ticket.
func CreatedActivity(actx ActivityContext, ticket Ticket) TicketActivity {
	return newActivity(actx, ActivityCreated, map[string]any{
		"status":   ticket.Status,
		"priority": ticket.Priority,
	})
}

// CommentActivity records a posted comment or internal note.
func CommentActivity(actx ActivityContext, comment TicketComment) TicketActivity {
	kind := ActivityCommentAdded
	if comment.IsInternal {
		kind = ActivityInternalNoteAdded
	}
	return newActivity(actx, kind, map[string]any{
		"body_preview": Preview(comment.Body, CommentPreviewLength),
		"is_internal":  comment.IsInternal,
	})
}

// Preview keeps the first limit characters of body, appending "..." when
// anything was cut.
func Preview(body string, limit int) string {
	if utf8.RuneCountInString(body) <= limit {
		return body
	}
	runes := []rune(body)
	return strings.TrimRight(string(runes[:limit]), " \t\r\n") + "..."
}

func newActivity(actx ActivityContext, kind ActivityType, details map[string]any) TicketActivity {
	return TicketActivity{
		TicketID:    actx.TicketID,
		PerformedBy: clonePtr(actx.PerformedBy),
		Type:        kind,
		Details:     details,
		CreatedAt:   actx.At,
	}
}

func changeDetails(actx ActivityContext, change FieldChange) map[string]any {
	switch change.Field {
	case FieldStatus:
		return map[string]any{"from": change.Old, "to": change.New}
	case FieldPriority:
		return map[string]any{"to": change.New}
	case FieldAssignee:
		details := map[string]any{"assignee_id": change.New, "assignee_name": nil}
		if actx.AssigneeName != nil && change.New != nil {
			details["assignee_name"] = *actx.AssigneeName
		}
		return details
	case FieldDueAt:
		var due any
		if t, ok := change.New.(time.Time); ok {
			due = t.Format(time.RFC3339)
		}
		return map[string]any{"due_at": due}
	case FieldTags:
		return map[string]any{"tags": change.New}
	case FieldCategory:
		return map[string]any{"category": change.New}
	}
	return map[string]any{}
}

// RecentActivity is an activity joined with its ticket for the dashboard feed.
type RecentActivity struct {
	TicketActivity
	TicketReference string
	TicketSubject   string
	Performer       *UserRef
}
