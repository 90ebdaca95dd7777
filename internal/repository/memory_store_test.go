package repository

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

var baseTime = time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)

func seedUser(t *testing.T, store Store, name, email string) domain.User {
	t.Helper()
	user := domain.User{Name: name, Email: email, PasswordHash: "x", CreatedAt: baseTime, UpdatedAt: baseTime}
	if err := store.Users().Create(context.Background(), &user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func seedTicket(t *testing.T, store Store, ticket domain.Ticket) domain.Ticket {
	t.Helper()
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusOpen
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityNormal
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = baseTime
	}
	if ticket.LastActivityAt.IsZero() {
		ticket.LastActivityAt = ticket.CreatedAt
	}
	if ticket.UpdatedAt.IsZero() {
		ticket.UpdatedAt = ticket.CreatedAt
	}
	if err := store.Tickets().Create(context.Background(), &ticket); err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return ticket
}

func TestMemoryStoreTicketRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	requester := seedUser(t, store, "Riley", "riley@example.com")

	ticket := seedTicket(t, store, domain.Ticket{Reference: "TCK-20250305-0001", RequesterID: requester.ID, Subject: "Export stuck"})
	if ticket.ID == "" {
		t.Fatal("Create did not assign an id")
	}

	got, err := store.Tickets().GetByID(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Tags == nil {
		t.Fatal("tags should never be nil")
	}

	got.Reference = "TCK-20990101-9999"
	got.Subject = "Export stuck again"
	if err := store.Tickets().Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	again, _ := store.Tickets().GetByID(ctx, ticket.ID)
	if again.Reference != "TCK-20250305-0001" {
		t.Fatalf("reference overwritten: %q", again.Reference)
	}
	if again.Subject != "Export stuck again" {
		t.Fatalf("subject = %q", again.Subject)
	}

	if _, err := store.Tickets().GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := store.Tickets().Update(ctx, &domain.Ticket{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreConstraints(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	requester := seedUser(t, store, "Riley", "riley@example.com")
	seedTicket(t, store, domain.Ticket{Reference: "TCK-20250305-0001", RequesterID: requester.ID})

	dup := domain.Ticket{Reference: "TCK-20250305-0001", RequesterID: requester.ID}
	if err := store.Tickets().Create(ctx, &dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate reference: err = %v", err)
	}
	orphan := domain.Ticket{Reference: "TCK-20250305-0002", RequesterID: "ghost"}
	if err := store.Tickets().Create(ctx, &orphan); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing requester: err = %v", err)
	}
	user := domain.User{Name: "Other", Email: "RILEY@example.com"}
	if err := store.Users().Create(ctx, &user); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate email: err = %v", err)
	}

	exists, err := store.Tickets().ReferenceExists(ctx, "TCK-20250305-0001")
	if err != nil || !exists {
		t.Fatalf("ReferenceExists = %v, %v", exists, err)
	}
	exists, _ = store.Tickets().ReferenceExists(ctx, "TCK-20250305-0003")
	if exists {
		t.Fatal("unexpected reference")
	}
}

func TestMemoryStoreWithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	requester := seedUser(t, store, "Riley", "riley@example.com")
	boom := errors.New("activity insert failed")

	err := store.WithinTx(ctx, func(tx Store) error {
		ticket := domain.Ticket{Reference: "TCK-20250305-0001", RequesterID: requester.ID, Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityNormal}
		if err := tx.Tickets().Create(ctx, &ticket); err != nil {
			return err
		}
		if n, _ := tx.Tickets().Count(ctx, TicketFilter{}); n != 1 {
			t.Fatalf("ticket not visible inside tx: %d", n)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if n, _ := store.Tickets().Count(ctx, TicketFilter{}); n != 0 {
		t.Fatalf("rolled back ticket persisted: %d", n)
	}

	err = store.WithinTx(ctx, func(tx Store) error {
		ticket := domain.Ticket{Reference: "TCK-20250305-0002", RequesterID: requester.ID, Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityNormal}
		return tx.Tickets().Create(ctx, &ticket)
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if n, _ := store.Tickets().Count(ctx, TicketFilter{}); n != 1 {
		t.Fatalf("committed ticket missing: %d", n)
	}
}

func TestMemoryStoreListFiltersAndOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	requester := seedUser(t, store, "Riley", "riley@example.com")
	agent := seedUser(t, store, "Dana", "dana@example.com")

	a := seedTicket(t, store, domain.Ticket{Reference: "TCK-20250305-0001", RequesterID: requester.ID, Subject: "Billing export 100% broken",
		Tags: []string{"vip"}, LastActivityAt: baseTime.Add(time.Hour)})
	b := seedTicket(t, store, domain.Ticket{Reference: "TCK-20250305-0002", RequesterID: requester.ID, Subject: "Login loop",
		AssigneeID: &agent.ID, Priority: domain.TicketPriorityHigh, LastActivityAt: baseTime.Add(3 * time.Hour)})
	c := seedTicket(t, store, domain.Ticket{Reference: "TCK-20250305-0003", RequesterID: requester.ID, Subject: "Webhook retries",
		Description: "billing webhooks", Status: domain.TicketStatusResolved, Tags: []string{"vip", "sla-risk"}, LastActivityAt: baseTime.Add(2 * time.Hour)})

	ids := func(tickets []domain.Ticket) []string {
		out := make([]string, 0, len(tickets))
		for _, tk := range tickets {
			out = append(out, tk.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter TicketFilter
		want   []string
	}{
		{name: "all by last activity", filter: TicketFilter{}, want: []string{b.ID, c.ID, a.ID}},
		{name: "status", filter: TicketFilter{Status: "resolved"}, want: []string{c.ID}},
		{name: "priority", filter: TicketFilter{Priority: "high"}, want: []string{b.ID}},
		{name: "unassigned", filter: TicketFilter{Assignee: AssigneeUnassigned}, want: []string{c.ID, a.ID}},
		{name: "assignee", filter: TicketFilter{Assignee: agent.ID}, want: []string{b.ID}},
		{name: "search subject or description", filter: TicketFilter{Search: "BILLING"}, want: []string{c.ID, a.ID}},
		{name: "search reference", filter: TicketFilter{Search: "0002"}, want: []string{b.ID}},
		{name: "search literal percent", filter: TicketFilter{Search: "100%"}, want: []string{a.ID}},
		{name: "tag", filter: TicketFilter{Tag: "sla-risk"}, want: []string{c.ID}},
		{name: "unknown status", filter: TicketFilter{Status: "archived"}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Tickets().List(ctx, tt.filter, 10, 0)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if !slices.Equal(ids(got), tt.want) {
				t.Fatalf("ids = %v, want %v", ids(got), tt.want)
			}
			n, err := store.Tickets().Count(ctx, tt.filter)
			if err != nil || n != len(tt.want) {
				t.Fatalf("Count = %d, %v; want %d", n, err, len(tt.want))
			}
		})
	}

	page, _ := store.Tickets().List(ctx, TicketFilter{}, 2, 2)
	if !slices.Equal(ids(page), []string{a.ID}) {
		t.Fatalf("second page = %v", ids(page))
	}
	if empty, _ := store.Tickets().List(ctx, TicketFilter{}, 2, 10); len(empty) != 0 {
		t.Fatalf("out of range page = %v", ids(empty))
	}

	catalog, _ := store.Tickets().TagCatalog(ctx)
	if !slices.Equal(catalog, []string{"sla-risk", "vip"}) {
		t.Fatalf("tag catalog = %v", catalog)
	}
}

func TestMemoryStoreCommentsAndActivities(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	requester := seedUser(t, store, "Riley", "riley@example.com")
	ticket := seedTicket(t, store, domain.Ticket{Reference: "TCK-20250305-0001", RequesterID: requester.ID, Subject: "Export"})

	for i, body := range []string{"second", "first"} {
		comment := domain.TicketComment{TicketID: ticket.ID, UserID: requester.ID, Body: body, CreatedAt: baseTime.Add(time.Duration(2-i) * time.Minute)}
		if err := store.Comments().Create(ctx, &comment); err != nil {
			t.Fatalf("create comment: %v", err)
		}
	}
	comments, _ := store.Comments().ListByTicket(ctx, ticket.ID)
	if len(comments) != 2 || comments[0].Body != "first" {
		t.Fatalf("comments = %+v", comments)
	}
	got, _ := store.Tickets().GetByID(ctx, ticket.ID)
	if got.CommentCount != 2 {
		t.Fatalf("comment count = %d", got.CommentCount)
	}

	for _, kind := range []domain.ActivityType{domain.ActivityCreated, domain.ActivityStatusChanged, domain.ActivityPriorityChanged} {
		activity := domain.TicketActivity{TicketID: ticket.ID, PerformedBy: &requester.ID, Type: kind, CreatedAt: baseTime}
		if err := store.Activities().Create(ctx, &activity); err != nil {
			t.Fatalf("create activity: %v", err)
		}
	}
	later := domain.TicketActivity{TicketID: ticket.ID, Type: domain.ActivityCommentAdded, CreatedAt: baseTime.Add(time.Hour)}
	if err := store.Activities().Create(ctx, &later); err != nil {
		t.Fatalf("create activity: %v", err)
	}

	activities, _ := store.Activities().ListByTicket(ctx, ticket.ID)
	var kinds []domain.ActivityType
	for _, a := range activities {
		kinds = append(kinds, a.Type)
	}
	want := []domain.ActivityType{domain.ActivityCommentAdded, domain.ActivityPriorityChanged, domain.ActivityStatusChanged, domain.ActivityCreated}
	if !slices.Equal(kinds, want) {
		t.Fatalf("activities = %v, want %v", kinds, want)
	}
	if later.Details == nil {
		t.Fatal("details should default to an empty map")
	}

	recent, _ := store.Activities().ListRecent(ctx, 2)
	if len(recent) != 2 || recent[0].Type != domain.ActivityCommentAdded || recent[0].TicketReference != "TCK-20250305-0001" {
		t.Fatalf("recent = %+v", recent)
	}

	orphan := domain.TicketActivity{TicketID: "missing", Type: domain.ActivityCreated}
	if err := store.Activities().Create(ctx, &orphan); !errors.Is(err, ErrNotFound) {
		t.Fatalf("orphan activity: err = %v", err)
	}
}

func TestMemoryStoreUsers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	zed := seedUser(t, store, "Zed", "zed@example.com")
	amy := seedUser(t, store, "Amy", "amy@example.com")

	byEmail, err := store.Users().GetByEmail(ctx, "AMY@example.com")
	if err != nil || byEmail.ID != amy.ID {
		t.Fatalf("GetByEmail = %+v, %v", byEmail, err)
	}
	if _, err := store.Users().GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	ordered, _ := store.Users().ListOrderedByName(ctx)
	if len(ordered) != 2 || ordered[0].ID != amy.ID || ordered[1].ID != zed.ID {
		t.Fatalf("ordered = %+v", ordered)
	}

	some, _ := store.Users().ListByIDs(ctx, []string{zed.ID, "ghost", zed.ID})
	if len(some) != 1 || some[0].ID != zed.ID {
		t.Fatalf("ListByIDs = %+v", some)
	}
}

func TestMemoryStoreStats(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	requester := seedUser(t, store, "Riley", "riley@example.com")
	now := baseTime
	pastDue := now.Add(-time.Hour)

	seedTicket(t, store, domain.Ticket{Reference: "TCK-1", RequesterID: requester.ID, DueAt: &pastDue})
	seedTicket(t, store, domain.Ticket{Reference: "TCK-2", RequesterID: requester.ID})
	seedTicket(t, store, domain.Ticket{Reference: "TCK-3", RequesterID: requester.ID, Status: domain.TicketStatusClosed})

	counts, err := store.Tickets().Stats(ctx, domain.NewStatsWindow(now))
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	stats := counts.Stats()
	if stats.Open != 2 || stats.Closed != 1 || stats.Active != 2 || stats.PastDue != 1 || stats.SLABreachRate != 50 {
		t.Fatalf("stats = %+v", stats)
	}
}
