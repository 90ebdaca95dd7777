package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/tickets", "GET", 200, 2*time.Millisecond)
	m.RecordRequest("/tickets", "GET", 200, 4*time.Millisecond)
	m.RecordRequest("/tickets/:id", "GET", 404, time.Millisecond)
	m.RecordError("/tickets/:id", "GET", "NOT_FOUND")

	snap := m.Snapshot()
	if len(snap.Requests) != 2 {
		t.Fatalf("requests = %+v", snap.Requests)
	}
	var list *RequestStat
	for i := range snap.Requests {
		if snap.Requests[i].Path == "/tickets" {
			list = &snap.Requests[i]
		}
	}
	if list == nil || list.Status != 200 || list.Count != 2 || list.AvgLatencyMS != 3 {
		t.Fatalf("listing row = %+v", list)
	}
	if len(snap.Errors) != 1 || snap.Errors[0].Code != "NOT_FOUND" || snap.Errors[0].Count != 1 {
		t.Fatalf("errors = %+v", snap.Errors)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "X")
	if snap := m.Snapshot(); len(snap.Requests) != 0 || len(snap.Errors) != 0 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestRequestLoggerRecordsRoutePattern(t *testing.T) {
	metrics := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), metrics))
	app.Get("/tickets/:id", func(c *fiber.Ctx) error {
		if c.Params("id") == "missing" {
			return apperrors.NewNotFound("ticket", nil)
		}
		return c.SendStatus(fiber.StatusOK)
	})

	for _, id := range []string{"a", "b", "missing"} {
		resp, err := app.Test(httptest.NewRequest("GET", "/tickets/"+id, nil))
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		resp.Body.Close()
	}

	snap := metrics.Snapshot()
	if len(snap.Requests) != 2 {
		t.Fatalf("requests = %+v", snap.Requests)
	}
	if snap.Requests[0].Path != "/tickets/:id" || snap.Requests[0].Status != 200 || snap.Requests[0].Count != 2 {
		t.Fatalf("ok row = %+v", snap.Requests[0])
	}
	if snap.Requests[1].Status != 404 || snap.Requests[1].Count != 1 {
		t.Fatalf("not found row = %+v", snap.Requests[1])
	}
}
