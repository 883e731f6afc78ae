package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hris-api/internal/models"
	appErrors "github.com/noah-isme/hris-api/pkg/errors"
	"github.com/noah-isme/hris-api/pkg/response"
)

type auditService interface {
	List(ctx context.Context, filter models.AuditFilter, actor *models.JWTClaims) ([]models.AuditLog, *models.Pagination, error)
}

// AuditHandler exposes the audit trail to HR.
type AuditHandler struct {
	service auditService
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(svc auditService) *AuditHandler {
	return &AuditHandler{service: svc}
}

// List godoc
// @Summary Query the audit trail
// @Tags Audit
// @Produce json
// @Param entity query string false "Entity"
// @Param entity_id query string false "Entity ID"
// @Param user_id query string false "Actor"
// @Param action query string false "Action"
// @Param from query string false "RFC3339 or YYYY-MM-DD"
// @Param to query string false "RFC3339 or YYYY-MM-DD"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	from, err := parseTimeParam(c.Query("from"))
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := parseTimeParam(c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	page, size := pageParams(c)
	filter := models.AuditFilter{
		Entity:   c.Query("entity"),
		EntityID: c.Query("entity_id"),
		UserID:   c.Query("user_id"),
		Action:   c.Query("action"),
		From:     from,
		To:       to,
		Page:     page,
		PageSize: size,
	}
	items, pagination, err := h.service.List(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

func parseTimeParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return &parsed, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid time, expected RFC3339 or YYYY-MM-DD")
	}
	return &parsed, nil
}
