package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/cache"
	"github.com/spec-kit/helpdesk-service/internal/events"
)

// StatsInvalidationWorker drops cached dashboard stats whenever a ticket
// command commits.
type StatsInvalidationWorker struct {
	dispatcher events.Dispatcher
	cache      cache.StatsCache
	logger     *zap.Logger
}

// NewStatsInvalidationWorker creates the worker.
func NewStatsInvalidationWorker(dispatcher events.Dispatcher, statsCache cache.StatsCache, logger *zap.Logger) *StatsInvalidationWorker {
	return &StatsInvalidationWorker{dispatcher: dispatcher, cache: statsCache, logger: logger}
}

// RegisterHandlers subscribes to every ticket event.
func (w *StatsInvalidationWorker) RegisterHandlers() {
	if w == nil || w.dispatcher == nil || w.cache == nil {
		return
	}
	for _, eventType := range events.TicketEventTypes() {
		w.dispatcher.Subscribe(eventType, w.handleTicketEvent)
	}
}

func (w *StatsInvalidationWorker) handleTicketEvent(ctx context.Context, event events.Event) error {
	if err := w.cache.Invalidate(ctx); err != nil {
		w.logger.Warn("stats cache invalidation failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
		return err
	}
	w.logger.Debug("stats cache invalidated",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID))
	return nil
}

// StartStatsInvalidationWorker registers the worker's handlers.
func StartStatsInvalidationWorker(dispatcher events.Dispatcher, statsCache cache.StatsCache, logger *zap.Logger) *StatsInvalidationWorker {
	w := NewStatsInvalidationWorker(dispatcher, statsCache, logger)
	w.RegisterHandlers()
	return w
}
