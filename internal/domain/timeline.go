package domain

import (
	"sort"
	"time"
)

// TimelineComment is the item type used for comments in a timeline.
const TimelineComment = "comment"

// TimelineItem is one entry of the merged comment/activity timeline.
// Comment items carry IsInternal and Body; activity items carry Details.
type TimelineItem struct {
	ID         string
	Type       string
	CreatedAt  time.Time
	Actor      *UserRef
	IsInternal bool
	Body       string
	Details    map[string]any
}

// IsComment reports whether the item was built from a comment.
func (i TimelineItem) IsComment() bool {
	return i.Type == TimelineComment
}

// BuildTimeline merges comments and activities into one chronologically
// ascending sequence. Activities must be supplied oldest first; items with
// equal timestamps keep their input order, comments ahead of activities.
func BuildTimeline(comments []TicketComment, activities []TicketActivity, users map[string]UserRef) []TimelineItem {
	items := make([]TimelineItem, 0, len(comments)+len(activities))
	for _, comment := range comments {
		items = append(items, TimelineItem{
			ID:         "comment-" + comment.ID,
			Type:       TimelineComment,
			CreatedAt:  comment.CreatedAt,
			Actor:      lookupUser(users, &comment.UserID),
			IsInternal: comment.IsInternal,
			Body:       comment.Body,
		})
	}
	for _, activity := range activities {
		details := activity.Details
		if details == nil {
			details = map[string]any{}
		}
		items = append(items, TimelineItem{
			ID:        "activity-" + activity.ID,
			Type:      string(activity.Type),
			CreatedAt: activity.CreatedAt,
			Actor:     lookupUser(users, activity.PerformedBy),
			Details:   details,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items
}

// Participants lists comment authors in comment order, then the assignee,
// then the requester, unique by id. Unknown users are skipped.
func Participants(comments []TicketComment, assigneeID *string, requesterID string, users map[string]UserRef) []UserRef {
	ids := make([]string, 0, len(comments)+2)
	for _, comment := range comments {
		ids = append(ids, comment.UserID)
	}
	if assigneeID != nil {
		ids = append(ids, *assigneeID)
	}
	ids = append(ids, requesterID)

	out := make([]UserRef, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		user, ok := users[id]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, user)
	}
	return out
}

func lookupUser(users map[string]UserRef, id *string) *UserRef {
	if id == nil {
		return nil
	}
	user, ok := users[*id]
	if !ok {
		return nil
	}
	return &user
}
