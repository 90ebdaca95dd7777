package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// filterKeys are the listing query parameters carried into pagination links.
var filterKeys = []string{"status", "priority", "assignee", "search", "tag"}

// TicketsHandler manages the ticket dashboard endpoints.
type TicketsHandler struct {
	tickets   *service.TicketService
	dashboard *service.DashboardService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, dashboardService *service.DashboardService) *TicketsHandler {
	return &TicketsHandler{tickets: ticketService, dashboard: dashboardService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", map[string]any{"body": err.Error()})
	}
	input, err := req.Validate()
	if err != nil {
		return err
	}

	ticket, err := h.tickets.CreateTicket(c.UserContext(), principal.User.ID, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(*ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filters := map[string]string{}
	for _, key := range filterKeys {
		if v := strings.TrimSpace(c.Query(key)); v != "" {
			filters[key] = v
		}
	}
	filter := repository.TicketFilter{
		Status:   filters["status"],
		Priority: filters["priority"],
		Assignee: filters["assignee"],
		Search:   filters["search"],
		Tag:      filters["tag"],
	}

	page, err := h.dashboard.ListTickets(c.UserContext(), filter, parseInt(c.Query("page"), 1))
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(page.Items))
	for _, summary := range page.Items {
		items = append(items, dto.NewTicketSummaryResponse(summary))
	}
	lastPage := page.LastPage()
	return c.JSON(dto.TicketListResponse{
		Data: items,
		Meta: dto.PageMeta{
			CurrentPage: page.Page,
			PerPage:     page.PerPage,
			Total:       page.Total,
			LastPage:    lastPage,
		},
		Links:   pageLinks(c.Path(), filters, page.Page, lastPage),
		Filters: filters,
	})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	detail, err := h.tickets.GetTicketDetail(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetailResponse(*detail)})
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", map[string]any{"body": err.Error()})
	}
	patch, err := req.Patch()
	if err != nil {
		return err
	}

	ticket, err := h.tickets.UpdateTicket(c.UserContext(), principal.User.ID, c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(*ticket)})
}

// PostComment POST /tickets/:id/comments.
func (h *TicketsHandler) PostComment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", map[string]any{"body": err.Error()})
	}
	body, internal, err := req.Validate()
	if err != nil {
		return err
	}

	comment, err := h.tickets.PostComment(c.UserContext(), principal.User.ID, c.Params("id"), service.CommentInput{
		Body:       body,
		IsInternal: internal,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCommentResponse(*comment)})
}

// Stats GET /tickets/stats.
func (h *TicketsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.dashboard.ComputeStats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewStatsResponse(stats)})
}

// Options GET /tickets/options.
func (h *TicketsHandler) Options(c *fiber.Ctx) error {
	opts, err := h.dashboard.Options(c.UserContext())
	if err != nil {
		return err
	}
	resp := dto.OptionsResponse{
		Statuses:   make([]dto.OptionResponse, 0, len(opts.Statuses)),
		Priorities: make([]dto.OptionResponse, 0, len(opts.Priorities)),
		Assignees:  make([]dto.UserRefResponse, 0, len(opts.Assignees)),
		Tags:       opts.Tags,
	}
	for _, s := range opts.Statuses {
		resp.Statuses = append(resp.Statuses, dto.OptionResponse{Value: string(s), Label: dto.Label(string(s))})
	}
	for _, p := range opts.Priorities {
		resp.Priorities = append(resp.Priorities, dto.OptionResponse{Value: string(p), Label: dto.Label(string(p))})
	}
	for i := range opts.Assignees {
		resp.Assignees = append(resp.Assignees, *dto.NewUserRef(&opts.Assignees[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// RecentActivity GET /tickets/activity.
func (h *TicketsHandler) RecentActivity(c *fiber.Ctx) error {
	items, err := h.dashboard.RecentActivity(c.UserContext(), parseInt(c.Query("limit"), 0))
	if err != nil {
		return err
	}
	feed := make([]dto.ActivityFeedItem, 0, len(items))
	for _, item := range items {
		feed = append(feed, dto.NewActivityFeedItem(item))
	}
	return c.JSON(fiber.Map{"data": feed})
}

func pageLinks(path string, filters map[string]string, current, last int) dto.PageLinks {
	link := func(page int) string {
		q := url.Values{}
		for key, value := range filters {
			q.Set(key, value)
		}
		q.Set("page", strconv.Itoa(page))
		return path + "?" + q.Encode()
	}
	links := dto.PageLinks{First: link(1), Last: link(last)}
	if current > 1 {
		prev := link(min(current-1, last))
		links.Prev = &prev
	}
	if current < last {
		next := link(current + 1)
		links.Next = &next
	}
	return links
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
