package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

type testServer struct {
	app   *fiber.App
	clock *clock.FakeClock
	token string
}

type envelope struct {
	Data    json.RawMessage   `json:"data"`
	Meta    map[string]int    `json:"meta"`
	Links   map[string]any    `json:"links"`
	Filters map[string]string `json:"filters"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newTestServer(t *testing.T, pageSize int) *testServer {
	t.Helper()
	store := repository.NewMemoryStore()
	clk := clock.Fake(time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC))
	cfg := config.Config{Auth: config.AuthConfig{JWTSecret: "test", AccessTokenTTLMinutes: 60, BcryptCost: bcrypt.MinCost}}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	authService := service.NewAuthService(cfg, service.AuthDependencies{UserRepo: store.Users(), Tokens: tokens, Clock: clk})
	tickets := service.NewTicketService(service.TicketDependencies{
		Store: store, Dispatcher: events.NewInMemoryDispatcher(), Clock: clk, Logger: logger,
	})
	dashboard := service.NewDashboardService(service.DashboardDependencies{
		Store: store, Clock: clk, Logger: logger, PageSize: pageSize,
	})

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("helpdesk", "test", metrics,
			handlers.HealthCheck{Name: "memory", Check: func(context.Context) error { return nil }}),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(tickets, dashboard),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, store.Users()),
	})

	srv := &testServer{app: app, clock: clk}
	var session struct {
		Auth struct {
			Token string `json:"token"`
		} `json:"auth"`
	}
	srv.decode(t, srv.do(t, "POST", "/auth/register", `{"name":"Dana Agent","email":"dana@example.com","password":"correct horse"}`, 201), &session)
	srv.token = session.Auth.Token
	return srv
}

func (s *testServer) do(t *testing.T, method, target, body string, wantStatus int) envelope {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s = %d, want %d: %s", method, target, resp.StatusCode, wantStatus, raw)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return env
}

func (s *testServer) decode(t *testing.T, env envelope, into any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, into); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
}

type ticketJSON struct {
	ID             string   `json:"id"`
	Reference      string   `json:"reference"`
	Status         string   `json:"status"`
	Priority       string   `json:"priority"`
	Tags           []string `json:"tags"`
	AssigneeID     *string  `json:"assignee_id"`
	ResolvedAt     *string  `json:"resolved_at"`
	ReopenCount    int      `json:"reopen_count"`
	CommentCount   int      `json:"comment_count"`
	FirstResponse  *int     `json:"first_response_minutes"`
	Timeline       []struct {
		ID      string         `json:"id"`
		Type    string         `json:"type"`
		Details map[string]any `json:"details"`
	} `json:"timeline"`
	Participants []struct {
		ID string `json:"id"`
	} `json:"participants"`
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, 10)

	var created ticketJSON
	srv.decode(t, srv.do(t, "POST", "/tickets", `{"subject":"VPN down","description":"No tunnel","priority":"high","tags":"vpn, Remote Access"}`, 201), &created)
	if created.Status != "open" || created.Priority != "high" || strings.Join(created.Tags, ",") != "vpn,remote-access" {
		t.Fatalf("created = %+v", created)
	}
	if !strings.HasPrefix(created.Reference, "TCK-20250305-") {
		t.Fatalf("reference = %q", created.Reference)
	}

	srv.clock.Advance(30 * time.Minute)
	var updated ticketJSON
	srv.decode(t, srv.do(t, "PATCH", "/tickets/"+created.ID, `{"status":"resolved","tags":null}`, 200), &updated)
	if updated.Status != "resolved" || updated.ResolvedAt == nil || len(updated.Tags) != 0 {
		t.Fatalf("updated = %+v", updated)
	}

	srv.clock.Advance(time.Minute)
	srv.decode(t, srv.do(t, "PATCH", "/tickets/"+created.ID, `{"status":"open"}`, 200), &updated)
	if updated.ResolvedAt != nil || updated.ReopenCount != 1 {
		t.Fatalf("reopened = %+v", updated)
	}

	srv.clock.Advance(time.Minute)
	srv.do(t, "POST", "/tickets/"+created.ID+"/comments", `{"body":"Restarted the gateway","is_internal":true}`, 201)

	var detail ticketJSON
	srv.decode(t, srv.do(t, "GET", "/tickets/"+created.ID, "", 200), &detail)
	if detail.CommentCount != 1 || detail.FirstResponse != nil {
		t.Fatalf("detail = %+v", detail)
	}
	types := make([]string, 0, len(detail.Timeline))
	for _, item := range detail.Timeline {
		types = append(types, item.Type)
	}
	want := "created,status_changed,tags_updated,status_changed,comment,internal_note_added"
	if strings.Join(types, ",") != want {
		t.Fatalf("timeline = %v, want %s", types, want)
	}
	if len(detail.Participants) != 1 {
		t.Fatalf("participants = %+v", detail.Participants)
	}
}

func TestValidationAndNotFoundErrors(t *testing.T) {
	srv := newTestServer(t, 10)

	env := srv.do(t, "POST", "/tickets", `{"subject":"","description":"x","priority":"critical"}`, 400)
	if env.Error == nil || env.Error.Code != "VALIDATION_FAILED" {
		t.Fatalf("error = %+v", env.Error)
	}
	if _, ok := env.Error.Details["subject"]; !ok {
		t.Fatalf("details = %v", env.Error.Details)
	}
	if _, ok := env.Error.Details["priority"]; !ok {
		t.Fatalf("details = %v", env.Error.Details)
	}

	env = srv.do(t, "POST", "/tickets", `{"subject":"s","description":"d","priority":"low","assignee_id":"nobody"}`, 404)
	if env.Error.Code != "NOT_FOUND" {
		t.Fatalf("error = %+v", env.Error)
	}

	srv.do(t, "GET", "/tickets/missing", "", 404)
	srv.do(t, "PATCH", "/tickets/missing", `{"status":"closed"}`, 404)
	srv.do(t, "POST", "/tickets/missing/comments", `{"body":"hi"}`, 404)
	srv.do(t, "POST", "/tickets", `{"tags":42}`, 400)
}

func TestTicketsRequireBearerToken(t *testing.T) {
	srv := newTestServer(t, 10)
	srv.token = ""
	env := srv.do(t, "GET", "/tickets", "", 401)
	if env.Error == nil || env.Error.Code != "UNAUTHORIZED" {
		t.Fatalf("error = %+v", env.Error)
	}
	srv.token = "garbage"
	srv.do(t, "GET", "/tickets/stats", "", 401)
}

func TestLoginOverHTTP(t *testing.T) {
	srv := newTestServer(t, 10)
	srv.token = ""
	srv.do(t, "POST", "/auth/login", `{"email":"dana@example.com","password":"correct horse"}`, 200)
	srv.do(t, "POST", "/auth/login", `{"email":"dana@example.com","password":"wrong"}`, 401)
	srv.do(t, "POST", "/auth/register", `{"name":"Dana","email":"DANA@example.com","password":"correct horse"}`, 409)
	srv.do(t, "POST", "/auth/register", `{"name":"Lee","email":"not-an-email","password":"correct horse"}`, 400)
}

func TestListTicketsPaginationKeepsFilters(t *testing.T) {
	srv := newTestServer(t, 2)
	for i := 0; i < 5; i++ {
		srv.clock.Advance(time.Minute)
		srv.do(t, "POST", "/tickets", `{"subject":"Printer","description":"d","priority":"low","tags":["hardware"]}`, 201)
	}
	srv.do(t, "POST", "/tickets", `{"subject":"Other","description":"d","priority":"urgent"}`, 201)

	env := srv.do(t, "GET", "/tickets?priority=low&tag=hardware&page=2", "", 200)
	var items []ticketJSON
	srv.decode(t, env, &items)
	if len(items) != 2 {
		t.Fatalf("items = %d", len(items))
	}
	if env.Meta["total"] != 5 || env.Meta["last_page"] != 3 || env.Meta["current_page"] != 2 || env.Meta["per_page"] != 2 {
		t.Fatalf("meta = %v", env.Meta)
	}
	if env.Filters["priority"] != "low" || env.Filters["tag"] != "hardware" {
		t.Fatalf("filters = %v", env.Filters)
	}

	for _, key := range []string{"first", "prev", "next", "last"} {
		raw, ok := env.Links[key].(string)
		if !ok {
			t.Fatalf("link %s = %v", key, env.Links[key])
		}
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatal(err)
		}
		q := u.Query()
		if u.Path != "/tickets" || q.Get("priority") != "low" || q.Get("tag") != "hardware" {
			t.Fatalf("link %s = %s", key, raw)
		}
	}
	if next, _ := env.Links["next"].(string); !strings.Contains(next, "page=3") {
		t.Fatalf("next = %s", next)
	}

	env = srv.do(t, "GET", "/tickets?priority=low&page=3", "", 200)
	if env.Links["next"] != nil {
		t.Fatalf("next on last page = %v", env.Links["next"])
	}
}

func TestDashboardEndpoints(t *testing.T) {
	srv := newTestServer(t, 10)
	srv.do(t, "POST", "/tickets", `{"subject":"Laptop","description":"d","priority":"normal","due_at":"2025-03-01","tags":"hardware"}`, 201)

	var stats map[string]int
	srv.decode(t, srv.do(t, "GET", "/tickets/stats", "", 200), &stats)
	if stats["open"] != 1 || stats["past_due"] != 1 || stats["sla_breach_rate"] != 100 {
		t.Fatalf("stats = %v", stats)
	}

	var opts struct {
		Statuses []struct {
			Value string `json:"value"`
			Label string `json:"label"`
		} `json:"statuses"`
		Assignees []struct {
			Name string `json:"name"`
		} `json:"assignees"`
		Tags []string `json:"tags"`
	}
	srv.decode(t, srv.do(t, "GET", "/tickets/options", "", 200), &opts)
	if len(opts.Statuses) != 5 || opts.Statuses[1].Label != "In progress" {
		t.Fatalf("statuses = %+v", opts.Statuses)
	}
	if len(opts.Assignees) != 1 || opts.Assignees[0].Name != "Dana Agent" || strings.Join(opts.Tags, ",") != "hardware" {
		t.Fatalf("options = %+v", opts)
	}

	var feed []struct {
		Type      string `json:"type"`
		Reference string `json:"ticket_reference"`
		Performer *struct {
			Name string `json:"name"`
		} `json:"performer"`
	}
	srv.decode(t, srv.do(t, "GET", "/tickets/activity?limit=5", "", 200), &feed)
	if len(feed) != 1 || feed[0].Type != "created" || feed[0].Performer == nil || feed[0].Performer.Name != "Dana Agent" {
		t.Fatalf("feed = %+v", feed)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, 10)
	srv.do(t, "GET", "/health/live", "", 200)
	srv.do(t, "GET", "/health/ready", "", 200)
	srv.do(t, "GET", "/nowhere", "", 404)

	var snap observability.Snapshot
	srv.decode(t, srv.do(t, "GET", "/metrics", "", 200), &snap)
	found := false
	for _, row := range snap.Requests {
		if row.Path == "/auth/register" && row.Status == 201 {
			found = true
		}
	}
	if !found {
		t.Fatalf("requests = %+v", snap.Requests)
	}
}

func TestReadinessFailure(t *testing.T) {
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), nil, 0)
	health := handlers.NewHealthHandler("helpdesk", "test", nil,
		handlers.HealthCheck{Name: "postgres", Check: func(context.Context) error { return errors.New("connection refused") }})
	app.Get("/health/ready", health.Ready)

	resp, err := app.Test(httptest.NewRequest("GET", "/health/ready", nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
