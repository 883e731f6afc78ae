package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hris-api/internal/dto"
	"github.com/noah-isme/hris-api/internal/models"
	"github.com/noah-isme/hris-api/pkg/response"
)

type helpdeskService interface {
	Create(ctx context.Context, req dto.CreateTicketRequest, actor *models.JWTClaims) (*models.HelpdeskTicket, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.HelpdeskTicket, error)
	List(ctx context.Context, query dto.TicketQuery, actor *models.JWTClaims) ([]models.HelpdeskTicket, *models.Pagination, error)
	Assign(ctx context.Context, id string, req dto.AssignTicketRequest, actor *models.JWTClaims) (*models.HelpdeskTicket, error)
	Resolve(ctx context.Context, id string, req dto.ResolveTicketRequest, actor *models.JWTClaims) (*models.HelpdeskTicket, error)
	Close(ctx context.Context, id string, actor *models.JWTClaims) (*models.HelpdeskTicket, error)
	Reopen(ctx context.Context, id string, actor *models.JWTClaims) (*models.HelpdeskTicket, error)
}

// HelpdeskHandler exposes HR helpdesk tickets.
type HelpdeskHandler struct {
	service helpdeskService
}

// NewHelpdeskHandler constructs the handler.
func NewHelpdeskHandler(svc helpdeskService) *HelpdeskHandler {
	return &HelpdeskHandler{service: svc}
}

// Create godoc
// @Summary File a ticket
// @Tags Helpdesk
// @Accept json
// @Produce json
// @Param payload body dto.CreateTicketRequest true "Ticket"
// @Success 201 {object} response.Envelope
// @Router /tickets [post]
func (h *HelpdeskHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.CreateTicketRequest
	if !bindJSON(c, &req) {
		return
	}
	ticket, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ticket)
}

// List godoc
// @Summary List tickets
// @Tags Helpdesk
// @Produce json
// @Param scope query string false "mine|assigned|all"
// @Param status query string false "Comma separated statuses"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /tickets [get]
func (h *HelpdeskHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	page, size := pageParams(c)
	query := dto.TicketQuery{
		Status:   statusFilter[models.TicketStatus](c, "status"),
		Scope:    c.Query("scope"),
		Page:     page,
		PageSize: size,
	}
	items, pagination, err := h.service.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get ticket
// @Tags Helpdesk
// @Produce json
// @Param id path string true "Ticket ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tickets/{id} [get]
func (h *HelpdeskHandler) Get(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	ticket, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ticket, nil)
}

// Assign godoc
// @Summary Assign ticket to an HR handler
// @Tags Helpdesk
// @Accept json
// @Produce json
// @Param id path string true "Ticket ID"
// @Param payload body dto.AssignTicketRequest false "Assignee, defaults to caller"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tickets/{id}/assign [post]
func (h *HelpdeskHandler) Assign(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.AssignTicketRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	ticket, err := h.service.Assign(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ticket, nil)
}

// Resolve godoc
// @Summary Resolve ticket
// @Tags Helpdesk
// @Accept json
// @Produce json
// @Param id path string true "Ticket ID"
// @Param payload body dto.ResolveTicketRequest true "Resolution"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tickets/{id}/resolve [post]
func (h *HelpdeskHandler) Resolve(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.ResolveTicketRequest
	if !bindJSON(c, &req) {
		return
	}
	ticket, err := h.service.Resolve(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ticket, nil)
}

// Close godoc
// @Summary Close a resolved ticket
// @Tags Helpdesk
// @Produce json
// @Param id path string true "Ticket ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tickets/{id}/close [post]
func (h *HelpdeskHandler) Close(c *gin.Context) {
	h.requesterAction(c, h.service.Close)
}

// Reopen godoc
// @Summary Reopen a resolved ticket
// @Tags Helpdesk
// @Produce json
// @Param id path string true "Ticket ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tickets/{id}/reopen [post]
func (h *HelpdeskHandler) Reopen(c *gin.Context) {
	h.requesterAction(c, h.service.Reopen)
}

func (h *HelpdeskHandler) requesterAction(c *gin.Context, fn func(context.Context, string, *models.JWTClaims) (*models.HelpdeskTicket, error)) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	ticket, err := fn(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ticket, nil)
}
