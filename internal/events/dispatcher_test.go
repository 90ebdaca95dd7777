package events

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDispatcherDeliversToSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var got []string
	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		got = append(got, "first:"+e.TicketID)
		return nil
	})
	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		got = append(got, "second:"+e.TicketID)
		return nil
	})
	d.Subscribe(EventTicketUpdated, func(context.Context, Event) error {
		t.Fatal("handler for another type invoked")
		return nil
	})

	actor := "u-1"
	event := NewEvent(EventTicketCreated, "t-1", &actor, time.Now(), TicketCreatedPayload{Reference: "TCK-20250305-0001"})
	if event.ID == "" {
		t.Fatal("event id not set")
	}
	if err := d.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(got) != 2 || got[0] != "first:t-1" || got[1] != "second:t-1" {
		t.Fatalf("deliveries = %v", got)
	}
}

func TestDispatcherJoinsHandlerErrors(t *testing.T) {
	d := NewInMemoryDispatcher()
	boom := errors.New("cache down")
	calls := 0
	d.Subscribe(EventTicketUpdated, func(context.Context, Event) error {
		calls++
		return boom
	})
	d.Subscribe(EventTicketUpdated, func(context.Context, Event) error {
		calls++
		return nil
	})

	err := d.Publish(context.Background(), NewEvent(EventTicketUpdated, "t-1", nil, time.Now(), nil))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}
