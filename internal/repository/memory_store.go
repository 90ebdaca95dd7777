package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// MemoryStore is a Store held in process memory. Transactions take an
// exclusive lock, work on a copy of the data and swap it in on success.
type MemoryStore struct {
	state *memoryState
	// tx is the working copy when the store is a transactional view.
	tx *memoryData
}

type memoryState struct {
	mu   sync.RWMutex
	data *memoryData
}

type memoryData struct {
	users      map[string]domain.User
	tickets    map[string]domain.Ticket
	comments   []domain.TicketComment
	activities []domain.TicketActivity
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memoryState{data: &memoryData{
		users:   map[string]domain.User{},
		tickets: map[string]domain.Ticket{},
	}}}
}

func (d *memoryData) clone() *memoryData {
	out := &memoryData{
		users:      make(map[string]domain.User, len(d.users)),
		tickets:    make(map[string]domain.Ticket, len(d.tickets)),
		comments:   slices.Clone(d.comments),
		activities: slices.Clone(d.activities),
	}
	for id, u := range d.users {
		out.users[id] = u
	}
	for id, t := range d.tickets {
		out.tickets[id] = t.Clone()
	}
	return out
}

func (s *MemoryStore) Tickets() TicketRepository      { return memoryTickets{s} }
func (s *MemoryStore) Comments() CommentRepository    { return memoryComments{s} }
func (s *MemoryStore) Activities() ActivityRepository { return memoryActivities{s} }
func (s *MemoryStore) Users() UserRepository          { return memoryUsers{s} }

// WithinTx implements Store.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	working := s.state.data.clone()
	if err := fn(&MemoryStore{state: s.state, tx: working}); err != nil {
		return err
	}
	s.state.data = working
	return nil
}

func (s *MemoryStore) view(fn func(d *memoryData) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	return fn(s.state.data)
}

func (s *MemoryStore) update(fn func(d *memoryData) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	return fn(s.state.data)
}

func (d *memoryData) commentCount(ticketID string) int {
	n := 0
	for _, c := range d.comments {
		if c.TicketID == ticketID {
			n++
		}
	}
	return n
}

func (d *memoryData) requireUser(id string, role string) error {
	if _, ok := d.users[id]; !ok {
		return fmt.Errorf("%w: %s %s", ErrNotFound, role, id)
	}
	return nil
}

type memoryTickets struct{ s *MemoryStore }

func (r memoryTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	return r.s.update(func(d *memoryData) error {
		if err := d.requireUser(ticket.RequesterID, "requester"); err != nil {
			return err
		}
		if ticket.AssigneeID != nil {
			if err := d.requireUser(*ticket.AssigneeID, "assignee"); err != nil {
				return err
			}
		}
		for _, existing := range d.tickets {
			if existing.Reference == ticket.Reference {
				return fmt.Errorf("%w: reference %s", ErrDuplicate, ticket.Reference)
			}
		}
		if ticket.ReopenCount < 0 {
			return fmt.Errorf("reopen count %d violates check constraint", ticket.ReopenCount)
		}
		ticket.ID = uuid.NewString()
		stored := ticket.Clone()
		stored.Tags = tagsArg(stored.Tags)
		stored.CommentCount = 0
		d.tickets[ticket.ID] = stored
		return nil
	})
}

func (r memoryTickets) Update(_ context.Context, ticket *domain.Ticket) error {
	return r.s.update(func(d *memoryData) error {
		existing, ok := d.tickets[ticket.ID]
		if !ok {
			return ErrNotFound
		}
		if ticket.AssigneeID != nil {
			if err := d.requireUser(*ticket.AssigneeID, "assignee"); err != nil {
				return err
			}
		}
		if ticket.ReopenCount < 0 {
			return fmt.Errorf("reopen count %d violates check constraint", ticket.ReopenCount)
		}
		stored := ticket.Clone()
		stored.Reference = existing.Reference
		stored.RequesterID = existing.RequesterID
		stored.CreatedAt = existing.CreatedAt
		stored.Tags = tagsArg(stored.Tags)
		stored.CommentCount = 0
		d.tickets[ticket.ID] = stored
		return nil
	})
}

func (r memoryTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := r.s.view(func(d *memoryData) error {
		ticket, ok := d.tickets[id]
		if !ok {
			return ErrNotFound
		}
		t := ticket.Clone()
		t.CommentCount = d.commentCount(id)
		out = &t
		return nil
	})
	return out, err
}

func (r memoryTickets) ReferenceExists(_ context.Context, reference string) (bool, error) {
	exists := false
	err := r.s.view(func(d *memoryData) error {
		for _, t := range d.tickets {
			if t.Reference == reference {
				exists = true
				return nil
			}
		}
		return nil
	})
	return exists, err
}

func (r memoryTickets) List(_ context.Context, filter TicketFilter, limit, offset int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	var out []domain.Ticket
	err := r.s.view(func(d *memoryData) error {
		matched := d.filterTickets(filter)
		sort.Slice(matched, func(i, j int) bool {
			a, b := matched[i], matched[j]
			if !a.LastActivityAt.Equal(b.LastActivityAt) {
				return a.LastActivityAt.After(b.LastActivityAt)
			}
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.After(b.UpdatedAt)
			}
			return a.ID > b.ID
		})
		if offset >= len(matched) {
			out = []domain.Ticket{}
			return nil
		}
		end := min(offset+limit, len(matched))
		out = make([]domain.Ticket, 0, end-offset)
		for _, t := range matched[offset:end] {
			t = t.Clone()
			t.CommentCount = d.commentCount(t.ID)
			out = append(out, t)
		}
		return nil
	})
	return out, err
}

func (r memoryTickets) Count(_ context.Context, filter TicketFilter) (int, error) {
	total := 0
	err := r.s.view(func(d *memoryData) error {
		total = len(d.filterTickets(filter))
		return nil
	})
	return total, err
}

func (r memoryTickets) Stats(_ context.Context, window domain.StatsWindow) (domain.StatsCounts, error) {
	var counts domain.StatsCounts
	err := r.s.view(func(d *memoryData) error {
		all := make([]domain.Ticket, 0, len(d.tickets))
		for _, t := range d.tickets {
			all = append(all, t)
		}
		counts = domain.CountStats(all, window)
		return nil
	})
	return counts, err
}

func (r memoryTickets) TagCatalog(_ context.Context) ([]string, error) {
	tags := []string{}
	err := r.s.view(func(d *memoryData) error {
		seen := map[string]struct{}{}
		for _, t := range d.tickets {
			for _, tag := range t.Tags {
				if _, ok := seen[tag]; ok {
					continue
				}
				seen[tag] = struct{}{}
				tags = append(tags, tag)
			}
		}
		sort.Strings(tags)
		return nil
	})
	return tags, err
}

func (d *memoryData) filterTickets(filter TicketFilter) []domain.Ticket {
	term := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]domain.Ticket, 0, len(d.tickets))
	for _, t := range d.tickets {
		if filter.Status != "" && string(t.Status) != filter.Status {
			continue
		}
		if filter.Priority != "" && string(t.Priority) != filter.Priority {
			continue
		}
		switch filter.Assignee {
		case "":
		case AssigneeUnassigned:
			if t.AssigneeID != nil {
				continue
			}
		default:
			if t.AssigneeID == nil || *t.AssigneeID != filter.Assignee {
				continue
			}
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(t.Subject), term) &&
			!strings.Contains(strings.ToLower(t.Description), term) &&
			!strings.Contains(strings.ToLower(t.Reference), term) {
			continue
		}
		if filter.Tag != "" && !slices.Contains(t.Tags, filter.Tag) {
			continue
		}
		out = append(out, t)
	}
	return out
}

type memoryComments struct{ s *MemoryStore }

func (r memoryComments) Create(_ context.Context, comment *domain.TicketComment) error {
	return r.s.update(func(d *memoryData) error {
		if _, ok := d.tickets[comment.TicketID]; !ok {
			return fmt.Errorf("%w: ticket %s", ErrNotFound, comment.TicketID)
		}
		if err := d.requireUser(comment.UserID, "author"); err != nil {
			return err
		}
		comment.ID = uuid.NewString()
		d.comments = append(d.comments, *comment)
		return nil
	})
}

func (r memoryComments) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketComment, error) {
	out := []domain.TicketComment{}
	err := r.s.view(func(d *memoryData) error {
		for _, c := range d.comments {
			if c.TicketID == ticketID {
				out = append(out, c)
			}
		}
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		})
		return nil
	})
	return out, err
}

type memoryActivities struct{ s *MemoryStore }

func (r memoryActivities) Create(_ context.Context, activity *domain.TicketActivity) error {
	return r.s.update(func(d *memoryData) error {
		if _, ok := d.tickets[activity.TicketID]; !ok {
			return fmt.Errorf("%w: ticket %s", ErrNotFound, activity.TicketID)
		}
		if activity.Details == nil {
			activity.Details = map[string]any{}
		}
		activity.ID = uuid.NewString()
		d.activities = append(d.activities, *activity)
		return nil
	})
}

func (r memoryActivities) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketActivity, error) {
	out := []domain.TicketActivity{}
	err := r.s.view(func(d *memoryData) error {
		for _, a := range newestFirst(d.activities) {
			if a.TicketID == ticketID {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

func (r memoryActivities) ListRecent(_ context.Context, limit int) ([]domain.RecentActivity, error) {
	if limit <= 0 {
		limit = 10
	}
	out := []domain.RecentActivity{}
	err := r.s.view(func(d *memoryData) error {
		for _, a := range newestFirst(d.activities) {
			if len(out) == limit {
				break
			}
			ticket, ok := d.tickets[a.TicketID]
			if !ok {
				continue
			}
			out = append(out, domain.RecentActivity{
				TicketActivity:  a,
				TicketReference: ticket.Reference,
				TicketSubject:   ticket.Subject,
			})
		}
		return nil
	})
	return out, err
}

// newestFirst orders by creation time descending, later inserts first on ties.
func newestFirst(activities []domain.TicketActivity) []domain.TicketActivity {
	out := slices.Clone(activities)
	slices.Reverse(out)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) Create(_ context.Context, user *domain.User) error {
	return r.s.update(func(d *memoryData) error {
		for _, existing := range d.users {
			if strings.EqualFold(existing.Email, user.Email) {
				return fmt.Errorf("%w: email %s", ErrDuplicate, user.Email)
			}
		}
		user.ID = uuid.NewString()
		d.users[user.ID] = *user
		return nil
	})
}

func (r memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	var out *domain.User
	err := r.s.view(func(d *memoryData) error {
		user, ok := d.users[id]
		if !ok {
			return ErrNotFound
		}
		out = &user
		return nil
	})
	return out, err
}

func (r memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	var out *domain.User
	err := r.s.view(func(d *memoryData) error {
		for _, user := range d.users {
			if strings.EqualFold(user.Email, email) {
				u := user
				out = &u
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

func (r memoryUsers) ListByIDs(_ context.Context, ids []string) ([]domain.User, error) {
	out := []domain.User{}
	err := r.s.view(func(d *memoryData) error {
		seen := map[string]struct{}{}
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if user, ok := d.users[id]; ok {
				out = append(out, user)
			}
		}
		return nil
	})
	return out, err
}

func (r memoryUsers) ListOrderedByName(_ context.Context) ([]domain.User, error) {
	out := []domain.User{}
	err := r.s.view(func(d *memoryData) error {
		for _, user := range d.users {
			out = append(out, user)
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Name != out[j].Name {
				return out[i].Name < out[j].Name
			}
			return out[i].Email < out[j].Email
		})
		return nil
	})
	return out, err
}
