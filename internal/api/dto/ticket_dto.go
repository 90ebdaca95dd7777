package dto

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

const (
	MaxSubjectLength  = 255
	MaxCategoryLength = 120
	dateOnlyLayout    = "2006-01-02"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject     string  `json:"subject"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	Status      string  `json:"status"`
	Category    *string `json:"category"`
	Tags        TagList `json:"tags"`
	DueAt       *string `json:"due_at"`
	AssigneeID  *string `json:"assignee_id"`
}

// UpdateTicketRequest payload. Absent keys are left untouched; explicit
// nulls clear nullable fields.
type UpdateTicketRequest struct {
	Subject     *string          `json:"subject"`
	Description *string          `json:"description"`
	Status      *string          `json:"status"`
	Priority    *string          `json:"priority"`
	Category    Nullable[string] `json:"category"`
	Tags        TagList          `json:"tags"`
	DueAt       Nullable[string] `json:"due_at"`
	AssigneeID  Nullable[string] `json:"assignee_id"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body       string `json:"body"`
	IsInternal *bool  `json:"is_internal"`
}

type fieldErrors map[string]any

func (f fieldErrors) add(field, message string) {
	if _, exists := f[field]; !exists {
		f[field] = message
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return apperrors.NewValidationError("validation failed", f)
}

// Validate checks the payload and converts it into the domain input.
func (r CreateTicketRequest) Validate() (domain.NewTicketInput, error) {
	errs := fieldErrors{}
	input := domain.NewTicketInput{
		Subject:     strings.TrimSpace(r.Subject),
		Description: strings.TrimSpace(r.Description),
		Category:    r.Category,
		AssigneeID:  blankToNil(r.AssigneeID),
	}

	checkSubject(errs, input.Subject)
	if input.Description == "" {
		errs.add("description", "description is required")
	}
	switch priority := domain.TicketPriority(strings.TrimSpace(r.Priority)); {
	case priority == "":
		errs.add("priority", "priority is required")
	case !priority.Valid():
		errs.add("priority", fmt.Sprintf("priority must be one of %v", domain.Priorities()))
	default:
		input.Priority = priority
	}
	if status := domain.TicketStatus(strings.TrimSpace(r.Status)); status != "" {
		if !status.Valid() {
			errs.add("status", fmt.Sprintf("status must be one of %v", domain.Statuses()))
		}
		input.Status = status
	}
	checkCategory(errs, r.Category)
	input.Tags = checkTags(errs, r.Tags.Values)
	if r.DueAt != nil {
		input.DueAt = parseDue(errs, *r.DueAt)
	}

	return input, errs.err()
}

// Patch checks the payload and converts it into a domain patch.
func (r UpdateTicketRequest) Patch() (domain.TicketPatch, error) {
	errs := fieldErrors{}
	patch := domain.TicketPatch{
		Category:   r.Category.Optional(),
		AssigneeID: r.AssigneeID.Optional(),
	}

	if r.Subject != nil {
		subject := strings.TrimSpace(*r.Subject)
		checkSubject(errs, subject)
		patch.Subject = &subject
	}
	if r.Description != nil {
		description := strings.TrimSpace(*r.Description)
		if description == "" {
			errs.add("description", "description cannot be empty")
		}
		patch.Description = &description
	}
	if r.Status != nil {
		status := domain.TicketStatus(strings.TrimSpace(*r.Status))
		if !status.Valid() {
			errs.add("status", fmt.Sprintf("status must be one of %v", domain.Statuses()))
		}
		patch.Status = &status
	}
	if r.Priority != nil {
		priority := domain.TicketPriority(strings.TrimSpace(*r.Priority))
		if !priority.Valid() {
			errs.add("priority", fmt.Sprintf("priority must be one of %v", domain.Priorities()))
		}
		patch.Priority = &priority
	}
	if r.Category.Set {
		checkCategory(errs, r.Category.Value)
	}
	if r.Tags.Set {
		tags := checkTags(errs, r.Tags.Values)
		patch.Tags = domain.Some(tags)
	}
	if r.DueAt.Set {
		patch.DueAt = domain.Null[time.Time]()
		if r.DueAt.Value != nil && strings.TrimSpace(*r.DueAt.Value) != "" {
			if due := parseDue(errs, *r.DueAt.Value); due != nil {
				patch.DueAt = domain.Some(*due)
			}
		}
	}
	if r.AssigneeID.Set {
		patch.AssigneeID.Value = blankToNil(r.AssigneeID.Value)
	}

	return patch, errs.err()
}

// Validate trims the body and enforces its bounds.
func (r CreateCommentRequest) Validate() (string, bool, error) {
	errs := fieldErrors{}
	body := strings.TrimSpace(r.Body)
	switch n := utf8.RuneCountInString(body); {
	case n == 0:
		errs.add("body", "body is required")
	case n > domain.MaxCommentLength:
		errs.add("body", fmt.Sprintf("body may not exceed %d characters", domain.MaxCommentLength))
	}
	internal := r.IsInternal != nil && *r.IsInternal
	return body, internal, errs.err()
}

func checkSubject(errs fieldErrors, subject string) {
	switch n := utf8.RuneCountInString(subject); {
	case n == 0:
		errs.add("subject", "subject is required")
	case n > MaxSubjectLength:
		errs.add("subject", fmt.Sprintf("subject may not exceed %d characters", MaxSubjectLength))
	}
}

func checkCategory(errs fieldErrors, category *string) {
	if category != nil && utf8.RuneCountInString(strings.TrimSpace(*category)) > MaxCategoryLength {
		errs.add("category", fmt.Sprintf("category may not exceed %d characters", MaxCategoryLength))
	}
}

func checkTags(errs fieldErrors, raw []string) []string {
	tags := make([]string, 0, len(raw))
	for _, tag := range raw {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	if len(tags) > domain.MaxTags {
		errs.add("tags", fmt.Sprintf("at most %d tags are allowed", domain.MaxTags))
	}
	for _, tag := range tags {
		if utf8.RuneCountInString(tag) > domain.MaxTagLength {
			errs.add("tags", fmt.Sprintf("each tag may not exceed %d characters", domain.MaxTagLength))
			break
		}
	}
	return tags
}

// parseDue accepts RFC 3339 instants and calendar dates (midnight UTC).
func parseDue(errs fieldErrors, raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	if t, err := time.Parse(dateOnlyLayout, raw); err == nil {
		return &t
	}
	errs.add("due_at", "due_at must be an RFC 3339 timestamp or a YYYY-MM-DD date")
	return nil
}

func blankToNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// UserRefResponse is the embedded user shape.
type UserRefResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TicketResponse is the ticket representation shared by every endpoint.
type TicketResponse struct {
	ID                   string                `json:"id"`
	Reference            string                `json:"reference"`
	Subject              string                `json:"subject"`
	Description          string                `json:"description"`
	Status               domain.TicketStatus   `json:"status"`
	Priority             domain.TicketPriority `json:"priority"`
	Category             *string               `json:"category"`
	Tags                 []string              `json:"tags"`
	DueAt                *time.Time            `json:"due_at"`
	ResolvedAt           *time.Time            `json:"resolved_at"`
	FirstResponseAt      *time.Time            `json:"first_response_at"`
	FirstResponseMinutes *int                  `json:"first_response_minutes"`
	ReopenCount          int                   `json:"reopen_count"`
	LastActivityAt       time.Time             `json:"last_activity_at"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
	CommentCount         int                   `json:"comment_count"`
	RequesterID          string                `json:"requester_id"`
	AssigneeID           *string               `json:"assignee_id"`
	Requester            *UserRefResponse      `json:"requester,omitempty"`
	Assignee             *UserRefResponse      `json:"assignee,omitempty"`
}

// TicketDetailResponse adds the timeline and participants.
type TicketDetailResponse struct {
	TicketResponse
	Timeline     []TimelineItemResponse `json:"timeline"`
	Participants []UserRefResponse      `json:"participants"`
}

// TimelineItemResponse is one merged timeline entry.
type TimelineItemResponse struct {
	ID         string           `json:"id"`
	Type       string           `json:"type"`
	CreatedAt  time.Time        `json:"created_at"`
	Actor      *UserRefResponse `json:"actor"`
	IsInternal bool             `json:"is_internal,omitempty"`
	Body       string           `json:"body,omitempty"`
	Details    map[string]any   `json:"details,omitempty"`
}

// CommentResponse is a posted comment.
type CommentResponse struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	UserID     string    `json:"user_id"`
	Body       string    `json:"body"`
	IsInternal bool      `json:"is_internal"`
	CreatedAt  time.Time `json:"created_at"`
}

// StatsResponse is the dashboard summary.
type StatsResponse struct {
	Open                    int `json:"open"`
	InProgress              int `json:"in_progress"`
	Waiting                 int `json:"waiting"`
	Resolved                int `json:"resolved"`
	Closed                  int `json:"closed"`
	ResolvedThisWeek        int `json:"resolved_this_week"`
	Unassigned              int `json:"unassigned"`
	DueSoon                 int `json:"due_soon"`
	PastDue                 int `json:"past_due"`
	Active                  int `json:"active"`
	Reopened                int `json:"reopened"`
	SLABreachRate           int `json:"sla_breach_rate"`
	AvgFirstResponseMinutes int `json:"avg_first_response_minutes"`
}

// OptionResponse is a value/label pair for form selects.
type OptionResponse struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// OptionsResponse lists the values offered by ticket forms and filters.
type OptionsResponse struct {
	Statuses   []OptionResponse  `json:"statuses"`
	Priorities []OptionResponse  `json:"priorities"`
	Assignees  []UserRefResponse `json:"assignees"`
	Tags       []string          `json:"tags"`
}

// ActivityFeedItem is one entry of the recent activity feed.
type ActivityFeedItem struct {
	ID              string           `json:"id"`
	Type            string           `json:"type"`
	TicketID        string           `json:"ticket_id"`
	TicketReference string           `json:"ticket_reference"`
	TicketSubject   string           `json:"ticket_subject"`
	Performer       *UserRefResponse `json:"performer"`
	Details         map[string]any   `json:"details"`
	CreatedAt       time.Time        `json:"created_at"`
}

// PageMeta describes an offset page.
type PageMeta struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
}

// PageLinks are navigation URLs that keep the active filters.
type PageLinks struct {
	First string  `json:"first"`
	Prev  *string `json:"prev"`
	Next  *string `json:"next"`
	Last  string  `json:"last"`
}

// TicketListResponse is the GET /tickets payload.
type TicketListResponse struct {
	Data    []TicketResponse  `json:"data"`
	Meta    PageMeta          `json:"meta"`
	Links   PageLinks         `json:"links"`
	Filters map[string]string `json:"filters"`
}

// NewUserRef converts a domain user reference.
func NewUserRef(ref *domain.UserRef) *UserRefResponse {
	if ref == nil {
		return nil
	}
	return &UserRefResponse{ID: ref.ID, Name: ref.Name, Email: ref.Email}
}

// NewTicketResponse converts a ticket.
func NewTicketResponse(t domain.Ticket) TicketResponse {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	return TicketResponse{
		ID:                   t.ID,
		Reference:            t.Reference,
		Subject:              t.Subject,
		Description:          t.Description,
		Status:               t.Status,
		Priority:             t.Priority,
		Category:             t.Category,
		Tags:                 tags,
		DueAt:                t.DueAt,
		ResolvedAt:           t.ResolvedAt,
		FirstResponseAt:      t.FirstResponseAt,
		FirstResponseMinutes: t.FirstResponseMinutes,
		ReopenCount:          t.ReopenCount,
		LastActivityAt:       t.LastActivityAt,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
		CommentCount:         t.CommentCount,
		RequesterID:          t.RequesterID,
		AssigneeID:           t.AssigneeID,
	}
}

// NewTicketSummaryResponse converts a listing row.
func NewTicketSummaryResponse(s domain.TicketSummary) TicketResponse {
	resp := NewTicketResponse(s.Ticket)
	resp.Requester = NewUserRef(s.Requester)
	resp.Assignee = NewUserRef(s.Assignee)
	return resp
}

// NewTicketDetailResponse converts the detail read model.
func NewTicketDetailResponse(d domain.TicketDetail) TicketDetailResponse {
	resp := TicketDetailResponse{
		TicketResponse: NewTicketResponse(d.Ticket),
		Timeline:       make([]TimelineItemResponse, 0, len(d.Timeline)),
		Participants:   make([]UserRefResponse, 0, len(d.Participants)),
	}
	resp.Requester = NewUserRef(d.Requester)
	resp.Assignee = NewUserRef(d.Assignee)
	for _, item := range d.Timeline {
		resp.Timeline = append(resp.Timeline, TimelineItemResponse{
			ID:         item.ID,
			Type:       item.Type,
			CreatedAt:  item.CreatedAt,
			Actor:      NewUserRef(item.Actor),
			IsInternal: item.IsInternal,
			Body:       item.Body,
			Details:    item.Details,
		})
	}
	for i := range d.Participants {
		resp.Participants = append(resp.Participants, *NewUserRef(&d.Participants[i]))
	}
	return resp
}

// NewCommentResponse converts a comment.
func NewCommentResponse(c domain.TicketComment) CommentResponse {
	return CommentResponse{
		ID:         c.ID,
		TicketID:   c.TicketID,
		UserID:     c.UserID,
		Body:       c.Body,
		IsInternal: c.IsInternal,
		CreatedAt:  c.CreatedAt,
	}
}

// NewStatsResponse converts dashboard stats.
func NewStatsResponse(s domain.Stats) StatsResponse {
	return StatsResponse{
		Open:                    s.Open,
		InProgress:              s.InProgress,
		Waiting:                 s.Waiting,
		Resolved:                s.Resolved,
		Closed:                  s.Closed,
		ResolvedThisWeek:        s.ResolvedThisWeek,
		Unassigned:              s.Unassigned,
		DueSoon:                 s.DueSoon,
		PastDue:                 s.PastDue,
		Active:                  s.Active,
		Reopened:                s.Reopened,
		SLABreachRate:           s.SLABreachRate,
		AvgFirstResponseMinutes: s.AvgFirstResponseMinutes,
	}
}

// NewActivityFeedItem converts a recent activity.
func NewActivityFeedItem(a domain.RecentActivity) ActivityFeedItem {
	details := a.Details
	if details == nil {
		details = map[string]any{}
	}
	return ActivityFeedItem{
		ID:              a.ID,
		Type:            string(a.Type),
		TicketID:        a.TicketID,
		TicketReference: a.TicketReference,
		TicketSubject:   a.TicketSubject,
		Performer:       NewUserRef(a.Performer),
		Details:         details,
		CreatedAt:       a.CreatedAt,
	}
}

// Label turns an enum value such as in_progress into "In progress".
func Label(value string) string {
	words := strings.ReplaceAll(value, "_", " ")
	if words == "" {
		return words
	}
	return strings.ToUpper(words[:1]) + words[1:]
}
