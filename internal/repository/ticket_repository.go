package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// TicketFilter captures the dashboard listing filters. Empty fields are
// ignored; values are matched exactly.
type TicketFilter struct {
	Status   string
	Priority string
	// Assignee is a user id or AssigneeUnassigned.
	Assignee string
	Search   string
	Tag      string
}

// AssigneeUnassigned selects tickets without an assignee.
const AssigneeUnassigned = "unassigned"

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	// Update persists mutable fields. Reference, requester and creation
	// time are never written.
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ReferenceExists(ctx context.Context, reference string) (bool, error)
	List(ctx context.Context, filter TicketFilter, limit, offset int) ([]domain.Ticket, error)
	Count(ctx context.Context, filter TicketFilter) (int, error)
	Stats(ctx context.Context, window domain.StatsWindow) (domain.StatsCounts, error)
	TagCatalog(ctx context.Context) ([]string, error)
}

type ticketRepository struct {
	db DBTX
}

const ticketColumns = `t.id, t.reference, t.requester_id, t.assignee_id, t.subject, t.description,
               t.status, t.priority, t.category, t.tags, t.due_at, t.resolved_at,
               t.first_response_at, t.first_response_minutes, t.reopen_count,
               t.last_activity_at, t.created_at, t.updated_at,
               (SELECT COUNT(*) FROM ticket_comments c WHERE c.ticket_id = t.id) AS comment_count`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (reference, requester_id, assignee_id, subject, description, status, priority,
            category, tags, due_at, resolved_at, first_response_at, first_response_minutes, reopen_count,
            last_activity_at, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
        RETURNING id`
	err := r.db.QueryRow(ctx, query,
		ticket.Reference,
		ticket.RequesterID,
		nullable(ticket.AssigneeID),
		ticket.Subject,
		ticket.Description,
		string(ticket.Status),
		string(ticket.Priority),
		ticket.Category,
		tagsArg(ticket.Tags),
		ticket.DueAt,
		ticket.ResolvedAt,
		ticket.FirstResponseAt,
		ticket.FirstResponseMinutes,
		ticket.ReopenCount,
		ticket.LastActivityAt,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	).Scan(&ticket.ID)
	return mapPgError(err)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET assignee_id=$1, subject=$2, description=$3, status=$4, priority=$5,
            category=$6, tags=$7, due_at=$8, resolved_at=$9, first_response_at=$10,
            first_response_minutes=$11, reopen_count=$12, last_activity_at=$13, updated_at=$14
        WHERE id=$15`
	cmd, err := r.db.Exec(ctx, query,
		nullable(ticket.AssigneeID),
		ticket.Subject,
		ticket.Description,
		string(ticket.Status),
		string(ticket.Priority),
		ticket.Category,
		tagsArg(ticket.Tags),
		ticket.DueAt,
		ticket.ResolvedAt,
		ticket.FirstResponseAt,
		ticket.FirstResponseMinutes,
		ticket.ReopenCount,
		ticket.LastActivityAt,
		ticket.UpdatedAt,
		ticket.ID,
	)
	if err != nil {
		return mapPgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets t WHERE t.id=$1`
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, ErrNotFound
	}
	return &tickets[0], nil
}

func (r *ticketRepository) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE reference=$1)`, reference).Scan(&exists)
	return exists, err
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter, limit, offset int) ([]domain.Ticket, error) {
	where, args := buildTicketWhere(filter)
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT %s FROM tickets t WHERE %s
        ORDER BY t.last_activity_at DESC, t.updated_at DESC, t.id DESC LIMIT %d OFFSET %d`,
		ticketColumns, where, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Count(ctx context.Context, filter TicketFilter) (int, error) {
	where, args := buildTicketWhere(filter)
	var total int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tickets t WHERE `+where, args...).Scan(&total)
	return total, err
}

func (r *ticketRepository) Stats(ctx context.Context, window domain.StatsWindow) (domain.StatsCounts, error) {
	const active = `t.status IN ('open','in_progress','waiting_on_customer')`
	query := `
        SELECT
            COUNT(*) FILTER (WHERE t.status = 'open'),
            COUNT(*) FILTER (WHERE t.status = 'in_progress'),
            COUNT(*) FILTER (WHERE t.status = 'waiting_on_customer'),
            COUNT(*) FILTER (WHERE t.status = 'resolved'),
            COUNT(*) FILTER (WHERE t.status = 'closed'),
            COUNT(*) FILTER (WHERE t.status = 'resolved' AND t.resolved_at BETWEEN $1 AND $2),
            COUNT(*) FILTER (WHERE t.assignee_id IS NULL),
            COUNT(*) FILTER (WHERE ` + active + ` AND t.due_at BETWEEN $2 AND $3),
            COUNT(*) FILTER (WHERE ` + active + ` AND t.due_at < $2),
            COUNT(*) FILTER (WHERE ` + active + `),
            COUNT(*) FILTER (WHERE t.reopen_count > 0),
            COALESCE(AVG(t.first_response_minutes), 0)::float8,
            MIN(t.due_at) FILTER (WHERE ` + active + ` AND t.due_at >= $2),
            MIN(t.due_at) FILTER (WHERE ` + active + ` AND t.due_at > $3)
        FROM tickets t`

	var (
		c                  domain.StatsCounts
		nextDue, nextLater *time.Time
	)
	err := r.db.QueryRow(ctx, query, window.WeekStart, window.Now, window.DueSoonUntil).Scan(
		&c.Open,
		&c.InProgress,
		&c.Waiting,
		&c.Resolved,
		&c.Closed,
		&c.ResolvedThisWeek,
		&c.Unassigned,
		&c.DueSoon,
		&c.PastDue,
		&c.Active,
		&c.Reopened,
		&c.AvgFirstResponse,
		&nextDue,
		&nextLater,
	)
	if err != nil {
		return domain.StatsCounts{}, err
	}
	if nextDue != nil {
		c.NextDueAt = *nextDue
	}
	if nextLater != nil {
		c.NextDueAfterWindow = *nextLater
	}
	return c, nil
}

func (r *ticketRepository) TagCatalog(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT tag FROM tickets t, unnest(t.tags) AS tag ORDER BY tag`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// buildTicketWhere renders filter as a WHERE clause with positional args.
func buildTicketWhere(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("t.status=$%d", len(args)))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		clauses = append(clauses, fmt.Sprintf("t.priority=$%d", len(args)))
	}
	switch filter.Assignee {
	case "":
	case AssigneeUnassigned:
		clauses = append(clauses, "t.assignee_id IS NULL")
	default:
		args = append(args, filter.Assignee)
		clauses = append(clauses, fmt.Sprintf("t.assignee_id::text=$%d", len(args)))
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		args = append(args, "%"+EscapeLike(term)+"%")
		p := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(t.subject ILIKE %s OR t.description ILIKE %s OR t.reference ILIKE %s)", p, p, p))
	}
	if filter.Tag != "" {
		args = append(args, filter.Tag)
		clauses = append(clauses, fmt.Sprintf("$%d = ANY(t.tags)", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

// EscapeLike escapes LIKE wildcards so term matches literally.
func EscapeLike(term string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
}

func tagsArg(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var (
			ticket   domain.Ticket
			status   string
			priority string
		)
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Reference,
			&ticket.RequesterID,
			&ticket.AssigneeID,
			&ticket.Subject,
			&ticket.Description,
			&status,
			&priority,
			&ticket.Category,
			&ticket.Tags,
			&ticket.DueAt,
			&ticket.ResolvedAt,
			&ticket.FirstResponseAt,
			&ticket.FirstResponseMinutes,
			&ticket.ReopenCount,
			&ticket.LastActivityAt,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
			&ticket.CommentCount,
		); err != nil {
			return nil, err
		}
		ticket.Status = domain.TicketStatus(status)
		ticket.Priority = domain.TicketPriority(priority)
		if ticket.Tags == nil {
			ticket.Tags = []string{}
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
