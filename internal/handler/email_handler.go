package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hris-api/internal/dto"
	"github.com/noah-isme/hris-api/internal/models"
	"github.com/noah-isme/hris-api/pkg/response"
)

type emailService interface {
	Send(ctx context.Context, req dto.SendEmailRequest, actor *models.JWTClaims) error
}

// EmailHandler exposes the SMTP relay.
type EmailHandler struct {
	service emailService
}

// NewEmailHandler constructs the handler.
func NewEmailHandler(svc emailService) *EmailHandler {
	return &EmailHandler{service: svc}
}

// Send godoc
// @Summary Relay an email
// @Description Sends through the configured SMTP server. Disabled in production.
// @Tags Email
// @Accept json
// @Produce json
// @Param payload body dto.SendEmailRequest true "Message"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /email/send [post]
func (h *EmailHandler) Send(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.SendEmailRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.service.Send(c.Request.Context(), req, claims); err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, gin.H{"sent": len(req.To)})
}
