package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hris-api/internal/dto"
	"github.com/noah-isme/hris-api/internal/models"
	"github.com/noah-isme/hris-api/pkg/response"
)

type panService interface {
	CreateDraft(ctx context.Context, req dto.CreatePANRequest, actor *models.JWTClaims) (*models.PANDetail, error)
	UpdateDraft(ctx context.Context, id string, req dto.UpdatePANRequest, actor *models.JWTClaims) (*models.PANDetail, error)
	Submit(ctx context.Context, id string, actor *models.JWTClaims) (*models.PANDetail, error)
	ApproveStep(ctx context.Context, panID, stepID string, body dto.StepDecisionRequest, actor *models.JWTClaims) (*models.PANDetail, error)
	DeclineStep(ctx context.Context, panID, stepID string, body dto.StepDecisionRequest, actor *models.JWTClaims) (*models.PANDetail, error)
	Acknowledge(ctx context.Context, id string, body dto.AcknowledgePANRequest, actor *models.JWTClaims) (*models.PANDetail, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.PANDetail, error)
	List(ctx context.Context, query dto.PANQuery, actor *models.JWTClaims) ([]models.PAN, *models.Pagination, error)
}

type panCertificates interface {
	PANCertificate(ctx context.Context, panID, format string, actor *models.JWTClaims) (*models.RenderedDocument, error)
}

// PANHandler exposes personnel action notices.
type PANHandler struct {
	service   panService
	documents panCertificates
}

// NewPANHandler constructs the handler.
func NewPANHandler(svc panService, documents panCertificates) *PANHandler {
	return &PANHandler{service: svc, documents: documents}
}

// Create godoc
// @Summary Draft a PAN
// @Tags PAN
// @Accept json
// @Produce json
// @Param payload body dto.CreatePANRequest true "PAN draft"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /pans [post]
func (h *PANHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.CreatePANRequest
	if !bindJSON(c, &req) {
		return
	}
	pan, err := h.service.CreateDraft(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, pan)
}

// Update godoc
// @Summary Update a PAN draft
// @Tags PAN
// @Accept json
// @Produce json
// @Param id path string true "PAN ID"
// @Param payload body dto.UpdatePANRequest true "PAN draft"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pans/{id} [put]
func (h *PANHandler) Update(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.UpdatePANRequest
	if !bindJSON(c, &req) {
		return
	}
	pan, err := h.service.UpdateDraft(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pan, nil)
}

// Submit godoc
// @Summary Submit a PAN for routing
// @Tags PAN
// @Produce json
// @Param id path string true "PAN ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pans/{id}/submit [post]
func (h *PANHandler) Submit(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	pan, err := h.service.Submit(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pan, nil)
}

// ApproveStep godoc
// @Summary Approve a routing step
// @Tags PAN
// @Accept json
// @Produce json
// @Param id path string true "PAN ID"
// @Param stepId path string true "Routing step ID"
// @Param payload body dto.StepDecisionRequest false "Remarks"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pans/{id}/steps/{stepId}/approve [post]
func (h *PANHandler) ApproveStep(c *gin.Context) {
	h.decide(c, h.service.ApproveStep)
}

// DeclineStep godoc
// @Summary Decline a routing step
// @Tags PAN
// @Accept json
// @Produce json
// @Param id path string true "PAN ID"
// @Param stepId path string true "Routing step ID"
// @Param payload body dto.StepDecisionRequest false "Remarks"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pans/{id}/steps/{stepId}/decline [post]
func (h *PANHandler) DeclineStep(c *gin.Context) {
	h.decide(c, h.service.DeclineStep)
}

func (h *PANHandler) decide(c *gin.Context, fn func(context.Context, string, string, dto.StepDecisionRequest, *models.JWTClaims) (*models.PANDetail, error)) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var body dto.StepDecisionRequest
	if !bindOptionalJSON(c, &body) {
		return
	}
	pan, err := fn(c.Request.Context(), c.Param("id"), c.Param("stepId"), body, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pan, nil)
}

// Acknowledge godoc
// @Summary Employee acknowledgement
// @Tags PAN
// @Accept json
// @Produce json
// @Param id path string true "PAN ID"
// @Param payload body dto.AcknowledgePANRequest true "Typed signature"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pans/{id}/acknowledge [post]
func (h *PANHandler) Acknowledge(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var body dto.AcknowledgePANRequest
	if !bindJSON(c, &body) {
		return
	}
	pan, err := h.service.Acknowledge(c.Request.Context(), c.Param("id"), body, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pan, nil)
}

// Get godoc
// @Summary Get a PAN with its routing
// @Tags PAN
// @Produce json
// @Param id path string true "PAN ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /pans/{id} [get]
func (h *PANHandler) Get(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	pan, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pan, nil)
}

// List godoc
// @Summary List PANs
// @Tags PAN
// @Produce json
// @Param scope query string false "all|approvals|mine"
// @Param status query string false "Comma separated statuses"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /pans [get]
func (h *PANHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	page, size := pageParams(c)
	query := dto.PANQuery{
		Status:   statusFilter[models.PANStatus](c, "status"),
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

// Certificate godoc
// @Summary Printable PAN certificate
// @Tags PAN
// @Produce text/html
// @Produce application/pdf
// @Param id path string true "PAN ID"
// @Param format query string false "html|pdf"
// @Success 200 {file} file
// @Failure 412 {object} response.Envelope
// @Router /pans/{id}/certificate [get]
func (h *PANHandler) Certificate(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	doc, err := h.documents.PANCertificate(c.Request.Context(), c.Param("id"), c.Query("format"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	renderDocument(c, doc)
}
