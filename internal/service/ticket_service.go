package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// TicketService coordinates ticket commands and the detail read model.
type TicketService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	clock      clock.Clock
	references *domain.ReferenceGenerator
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store             repository.Store
	Dispatcher        events.Dispatcher
	Clock             clock.Clock
	Logger            *zap.Logger
	ReferenceAttempts int
	// Random overrides the reference suffix source; nil uses math/rand.
	Random func(n int) int
}

// NewTicketService builds the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	refs := domain.NewReferenceGenerator(clk.Now, deps.ReferenceAttempts)
	if deps.Random != nil {
		refs = refs.WithRandom(deps.Random)
	}
	return &TicketService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		clock:      clk,
		references: refs,
		logger:     logger,
	}
}

// CommentInput describes a comment or internal note.
type CommentInput struct {
	Body       string
	IsInternal bool
}

// CreateTicket opens a ticket on behalf of actorID, who becomes the requester.
func (s *TicketService) CreateTicket(ctx context.Context, actorID string, input domain.NewTicketInput) (*domain.Ticket, error) {
	now := s.clock.Now()
	var created domain.Ticket

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if input.AssigneeID != nil {
			if _, err := loadUser(ctx, tx, *input.AssigneeID, "assignee"); err != nil {
				return err
			}
		}
		reference, err := s.references.Generate(ctx, tx.Tickets().ReferenceExists)
		if err != nil {
			return err
		}
		ticket, _, err := domain.NewTicket(input, actorID, reference, now)
		if err != nil {
			return err
		}
		if err := tx.Tickets().Create(ctx, &ticket); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return errors.Join(domain.ErrReferenceExhausted, err)
			}
			return err
		}
		activity := domain.CreatedActivity(activityContext(ticket.ID, actorID, now), ticket)
		if err := tx.Activities().Create(ctx, &activity); err != nil {
			return err
		}
		created = ticket
		return nil
	})
	if err != nil {
		return nil, mapTicketError(err)
	}

	s.publish(ctx, events.NewEvent(events.EventTicketCreated, created.ID, &actorID, now, events.TicketCreatedPayload{
		Reference: created.Reference,
		Status:    created.Status,
		Priority:  created.Priority,
	}))
	return &created, nil
}

// UpdateTicket applies a partial update and records one activity per
// tracked field that changed. An update that changes nothing writes nothing.
func (s *TicketService) UpdateTicket(ctx context.Context, actorID, ticketID string, patch domain.TicketPatch) (*domain.Ticket, error) {
	now := s.clock.Now()
	var outcome domain.UpdateOutcome
	var recorded []domain.TicketActivity

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		current, err := loadTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		actx := activityContext(current.ID, actorID, now)
		if patch.AssigneeID.Set && patch.AssigneeID.Value != nil {
			assignee, err := loadUser(ctx, tx, *patch.AssigneeID.Value, "assignee")
			if err != nil {
				return err
			}
			actx.AssigneeName = &assignee.Name
		}

		outcome, err = domain.ApplyUpdate(*current, patch, now)
		if err != nil {
			return err
		}
		if !outcome.Dirty() {
			return nil
		}
		if err := tx.Tickets().Update(ctx, &outcome.Ticket); err != nil {
			return err
		}
		recorded = domain.RecordChanges(actx, outcome.Changes)
		for i := range recorded {
			if err := tx.Activities().Create(ctx, &recorded[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, mapTicketError(err)
	}

	if outcome.Dirty() {
		fields := make([]domain.TicketField, 0, len(outcome.Changes))
		for _, change := range outcome.Changes {
			fields = append(fields, change.Field)
		}
		kinds := make([]domain.ActivityType, 0, len(recorded))
		for _, activity := range recorded {
			kinds = append(kinds, activity.Type)
		}
		s.publish(ctx, events.NewEvent(events.EventTicketUpdated, outcome.Ticket.ID, &actorID, now, events.TicketUpdatedPayload{
			Reference:  outcome.Ticket.Reference,
			Fields:     fields,
			Activities: kinds,
		}))
	}
	return &outcome.Ticket, nil
}

// PostComment adds a comment or internal note, bumps the ticket's last
// activity and stamps the first response when actorID is not the requester.
func (s *TicketService) PostComment(ctx context.Context, actorID, ticketID string, input CommentInput) (*domain.TicketComment, error) {
	now := s.clock.Now()
	var comment domain.TicketComment
	firstResponse := false

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		current, err := loadTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		comment = domain.TicketComment{
			TicketID:   current.ID,
			UserID:     actorID,
			Body:       strings.TrimSpace(input.Body),
			IsInternal: input.IsInternal,
			CreatedAt:  now,
		}
		if err := tx.Comments().Create(ctx, &comment); err != nil {
			return err
		}

		updated := current.Clone()
		firstResponse = domain.RecordFirstResponse(&updated, actorID, now)
		updated.LastActivityAt = now
		updated.UpdatedAt = now
		if err := domain.CheckInvariants(*current, updated); err != nil {
			return err
		}
		if err := tx.Tickets().Update(ctx, &updated); err != nil {
			return err
		}

		activity := domain.CommentActivity(activityContext(current.ID, actorID, now), comment)
		return tx.Activities().Create(ctx, &activity)
	})
	if err != nil {
		return nil, mapTicketError(err)
	}

	s.publish(ctx, events.NewEvent(events.EventTicketCommentPosted, comment.TicketID, &actorID, now, events.TicketCommentPostedPayload{
		CommentID:     comment.ID,
		IsInternal:    comment.IsInternal,
		BodyPreview:   domain.Preview(comment.Body, domain.CommentPreviewLength),
		FirstResponse: firstResponse,
	}))
	return &comment, nil
}

// GetTicketDetail loads a ticket with its merged timeline and participants.
func (s *TicketService) GetTicketDetail(ctx context.Context, ticketID string) (*domain.TicketDetail, error) {
	ticket, err := loadTicket(ctx, s.store, ticketID)
	if err != nil {
		return nil, mapTicketError(err)
	}
	comments, err := s.store.Comments().ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	activities, err := s.store.Activities().ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	oldestFirst := slices.Clone(activities)
	slices.Reverse(oldestFirst)

	ids := []string{ticket.RequesterID}
	if ticket.AssigneeID != nil {
		ids = append(ids, *ticket.AssigneeID)
	}
	for _, c := range comments {
		ids = append(ids, c.UserID)
	}
	for _, a := range activities {
		if a.PerformedBy != nil {
			ids = append(ids, *a.PerformedBy)
		}
	}
	users, err := userRefs(ctx, s.store.Users(), ids)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	return &domain.TicketDetail{
		Ticket:       *ticket,
		Requester:    refFor(users, &ticket.RequesterID),
		Assignee:     refFor(users, ticket.AssigneeID),
		Timeline:     domain.BuildTimeline(comments, oldestFirst, users),
		Participants: domain.Participants(comments, ticket.AssigneeID, ticket.RequesterID, users),
	}, nil
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func activityContext(ticketID, actorID string, now time.Time) domain.ActivityContext {
	return domain.ActivityContext{TicketID: ticketID, PerformedBy: &actorID, At: now}
}

func loadTicket(ctx context.Context, store repository.Store, id string) (*domain.Ticket, error) {
	ticket, err := store.Tickets().GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	return ticket, err
}

func loadUser(ctx context.Context, store repository.Store, id, role string) (*domain.User, error) {
	user, err := store.Users().GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound(role, map[string]any{"id": id})
	}
	return user, err
}

func userRefs(ctx context.Context, users repository.UserRepository, ids []string) (map[string]domain.UserRef, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	out := make(map[string]domain.UserRef, len(unique))
	if len(unique) == 0 {
		return out, nil
	}
	found, err := users.ListByIDs(ctx, unique)
	if err != nil {
		return nil, err
	}
	for _, u := range found {
		out[u.ID] = u.Ref()
	}
	return out, nil
}

func refFor(users map[string]domain.UserRef, id *string) *domain.UserRef {
	if id == nil {
		return nil
	}
	ref, ok := users[*id]
	if !ok {
		return nil
	}
	return &ref
}

// mapTicketError converts domain and repository failures into DomainErrors.
func mapTicketError(err error) error {
	var domainErr *apperrors.DomainError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, domain.ErrReferenceExhausted):
		return apperrors.NewReferenceGenerationError(err)
	case errors.Is(err, domain.ErrInconsistentTicket):
		return apperrors.NewConsistencyError(err)
	case errors.Is(err, domain.ErrInvalidStatus):
		return apperrors.NewValidationError("invalid status", map[string]any{"status": err.Error()})
	case errors.Is(err, domain.ErrInvalidPriority):
		return apperrors.NewValidationError("invalid priority", map[string]any{"priority": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("resource", nil)
	}
	return apperrors.NewInternalError(err)
}
