package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/cache"
	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// DashboardService serves the listing, stats and lookup read models.
type DashboardService struct {
	store         repository.Store
	cache         cache.StatsCache
	clock         clock.Clock
	logger        *zap.Logger
	pageSize      int
	recentDefault int
	recentMax     int
}

// DashboardDependencies bundles collaborators for the dashboard service.
type DashboardDependencies struct {
	Store               repository.Store
	Cache               cache.StatsCache
	Clock               clock.Clock
	Logger              *zap.Logger
	PageSize            int
	RecentActivityLimit int
	// RecentActivityMax caps the limit a caller may ask for.
	RecentActivityMax   int
}

// TicketOptions lists the values offered by ticket forms and filters.
type TicketOptions struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Assignees  []domain.UserRef
	Tags       []string
}

// NewDashboardService builds the service.
func NewDashboardService(deps DashboardDependencies) *DashboardService {
	svc := &DashboardService{
		store:         deps.Store,
		cache:         deps.Cache,
		clock:         deps.Clock,
		logger:        deps.Logger,
		pageSize:      deps.PageSize,
		recentDefault: deps.RecentActivityLimit,
		recentMax:     deps.RecentActivityMax,
	}
	if svc.cache == nil {
		svc.cache = cache.Noop{}
	}
	if svc.clock == nil {
		svc.clock = clock.Real()
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.pageSize <= 0 {
		svc.pageSize = 10
	}
	if svc.recentDefault <= 0 {
		svc.recentDefault = 10
	}
	if svc.recentMax <= 0 {
		svc.recentMax = 50
	}
	if svc.recentDefault > svc.recentMax {
		svc.recentDefault = svc.recentMax
	}
	return svc
}

// PageSize is the number of tickets per listing page.
func (s *DashboardService) PageSize() int {
	return s.pageSize
}

// ListTickets returns one page of tickets matching filter. Pages start at 1.
func (s *DashboardService) ListTickets(ctx context.Context, filter repository.TicketFilter, page int) (domain.Page[domain.TicketSummary], error) {
	if page < 1 {
		page = 1
	}
	if filter.Tag != "" {
		tags := domain.NormalizeTags([]string{filter.Tag})
		if len(tags) == 0 {
			filter.Tag = ""
		} else {
			filter.Tag = tags[0]
		}
	}

	result := domain.Page[domain.TicketSummary]{Items: []domain.TicketSummary{}, Page: page, PerPage: s.pageSize}
	total, err := s.store.Tickets().Count(ctx, filter)
	if err != nil {
		return result, apperrors.NewInternalError(err)
	}
	result.Total = total
	if total == 0 || page > result.LastPage() {
		return result, nil
	}

	tickets, err := s.store.Tickets().List(ctx, filter, s.pageSize, (page-1)*s.pageSize)
	if err != nil {
		return result, apperrors.NewInternalError(err)
	}
	ids := make([]string, 0, len(tickets)*2)
	for _, t := range tickets {
		ids = append(ids, t.RequesterID)
		if t.AssigneeID != nil {
			ids = append(ids, *t.AssigneeID)
		}
	}
	users, err := userRefs(ctx, s.store.Users(), ids)
	if err != nil {
		return result, apperrors.NewInternalError(err)
	}
	for _, t := range tickets {
		result.Items = append(result.Items, domain.TicketSummary{
			Ticket:    t,
			Requester: refFor(users, &t.RequesterID),
			Assignee:  refFor(users, t.AssigneeID),
		})
	}
	return result, nil
}

// ComputeStats returns the dashboard stats as of now. A cached copy is
// served only while no counter can have moved since it was taken.
func (s *DashboardService) ComputeStats(ctx context.Context) (domain.Stats, error) {
	now := s.clock.Now()
	if entry, ok, err := s.cache.Get(ctx); err != nil {
		s.logger.Warn("stats cache read failed", zap.Error(err))
	} else if ok && entry.FreshAt(now) {
		return entry.Stats, nil
	}

	gen, genErr := s.cache.Generation(ctx)
	if genErr != nil {
		s.logger.Warn("stats cache generation read failed", zap.Error(genErr))
	}

	window := domain.NewStatsWindow(now)
	counts, err := s.store.Tickets().Stats(ctx, window)
	if err != nil {
		return domain.Stats{}, apperrors.NewInternalError(err)
	}
	stats := counts.Stats()
	if genErr != nil {
		return stats, nil
	}
	entry := cache.Entry{
		Stats:      stats,
		AsOf:       now,
		FreshUntil: window.FreshUntil(counts),
		Generation: gen,
	}
	if err := s.cache.Set(ctx, entry); err != nil {
		s.logger.Warn("stats cache write failed", zap.Error(err))
	}
	return stats, nil
}

// Options returns statuses, priorities, assignable users and known tags.
func (s *DashboardService) Options(ctx context.Context) (TicketOptions, error) {
	users, err := s.store.Users().ListOrderedByName(ctx)
	if err != nil {
		return TicketOptions{}, apperrors.NewInternalError(err)
	}
	tags, err := s.store.Tickets().TagCatalog(ctx)
	if err != nil {
		return TicketOptions{}, apperrors.NewInternalError(err)
	}
	assignees := make([]domain.UserRef, 0, len(users))
	for _, u := range users {
		assignees = append(assignees, u.Ref())
	}
	if tags == nil {
		tags = []string{}
	}
	return TicketOptions{
		Statuses:   domain.Statuses(),
		Priorities: domain.Priorities(),
		Assignees:  assignees,
		Tags:       tags,
	}, nil
}

// RecentActivity returns the latest activities across all tickets. A
// non-positive limit uses the configured default; larger limits are capped
// at the configured maximum.
func (s *DashboardService) RecentActivity(ctx context.Context, limit int) ([]domain.RecentActivity, error) {
	if limit <= 0 {
		limit = s.recentDefault
	}
	limit = min(limit, s.recentMax)
	items, err := s.store.Activities().ListRecent(ctx, limit)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item.PerformedBy != nil {
			ids = append(ids, *item.PerformedBy)
		}
	}
	users, err := userRefs(ctx, s.store.Users(), ids)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	for i := range items {
		items[i].Performer = refFor(users, items[i].PerformedBy)
	}
	return items, nil
}
