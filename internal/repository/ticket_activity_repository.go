package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// ActivityRepository stores the ticket audit trail.
type ActivityRepository interface {
	Create(ctx context.Context, activity *domain.TicketActivity) error
	// ListByTicket returns a ticket's activities newest first.
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketActivity, error)
	// ListRecent returns the latest activities across all tickets.
	ListRecent(ctx context.Context, limit int) ([]domain.RecentActivity, error)
}

type activityRepository struct {
	db DBTX
}

func (r *activityRepository) Create(ctx context.Context, activity *domain.TicketActivity) error {
	const query = `
        INSERT INTO ticket_activities (ticket_id, performed_by, type, details, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$5)
        RETURNING id`
	details := activity.Details
	if details == nil {
		details = map[string]any{}
	}
	err := r.db.QueryRow(ctx, query,
		activity.TicketID,
		nullable(activity.PerformedBy),
		string(activity.Type),
		details,
		activity.CreatedAt,
	).Scan(&activity.ID)
	return mapPgError(err)
}

func (r *activityRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketActivity, error) {
	if _, err := uuid.Parse(ticketID); err != nil {
		return []domain.TicketActivity{}, nil
	}
	const query = `
        SELECT id, ticket_id, performed_by, type, details, created_at
        FROM ticket_activities WHERE ticket_id=$1 ORDER BY created_at DESC, seq DESC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.TicketActivity{}
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, activity)
	}
	return result, rows.Err()
}

func (r *activityRepository) ListRecent(ctx context.Context, limit int) ([]domain.RecentActivity, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
        SELECT a.id, a.ticket_id, a.performed_by, a.type, a.details, a.created_at, t.reference, t.subject
        FROM ticket_activities a
        JOIN tickets t ON t.id = a.ticket_id
        ORDER BY a.created_at DESC, a.seq DESC
        LIMIT $1`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.RecentActivity{}
	for rows.Next() {
		var (
			item domain.RecentActivity
			kind string
		)
		if err := rows.Scan(
			&item.ID,
			&item.TicketID,
			&item.PerformedBy,
			&kind,
			&item.Details,
			&item.CreatedAt,
			&item.TicketReference,
			&item.TicketSubject,
		); err != nil {
			return nil, err
		}
		item.Type = domain.ActivityType(kind)
		if item.Details == nil {
			item.Details = map[string]any{}
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func scanActivity(rows pgx.Rows) (domain.TicketActivity, error) {
	var (
		activity domain.TicketActivity
		kind     string
	)
	err := rows.Scan(
		&activity.ID,
		&activity.TicketID,
		&activity.PerformedBy,
		&kind,
		&activity.Details,
		&activity.CreatedAt,
	)
	activity.Type = domain.ActivityType(kind)
	if activity.Details == nil {
		activity.Details = map[string]any{}
	}
	return activity, err
}
