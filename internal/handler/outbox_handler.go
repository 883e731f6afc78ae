package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hris-api/internal/models"
	"github.com/noah-isme/hris-api/pkg/response"
)

type outboxService interface {
	Stats(ctx context.Context, actor *models.JWTClaims) (models.OutboxStats, error)
	Failed(ctx context.Context, limit int, actor *models.JWTClaims) ([]models.OutboxEvent, error)
	Retry(ctx context.Context, id string, actor *models.JWTClaims) error
}

// OutboxHandler exposes outbox operations to administrators.
type OutboxHandler struct {
	service outboxService
}

// NewOutboxHandler constructs the handler.
func NewOutboxHandler(svc outboxService) *OutboxHandler {
	return &OutboxHandler{service: svc}
}

// Stats godoc
// @Summary Outbox backlog
// @Tags Outbox
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /outbox/stats [get]
func (h *OutboxHandler) Stats(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	stats, err := h.service.Stats(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Failed godoc
// @Summary Parked outbox events
// @Tags Outbox
// @Produce json
// @Param limit query int false "Max events"
// @Success 200 {object} response.Envelope
// @Router /outbox/failed [get]
func (h *OutboxHandler) Failed(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	events, err := h.service.Failed(c.Request.Context(), parseQueryInt(c, "limit", 50), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// Retry godoc
// @Summary Re-queue a parked event
// @Tags Outbox
// @Param id path string true "Event ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /outbox/{id}/retry [post]
func (h *OutboxHandler) Retry(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	if err := h.service.Retry(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
