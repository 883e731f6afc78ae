package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hris-api/internal/dto"
	"github.com/noah-isme/hris-api/internal/models"
	"github.com/noah-isme/hris-api/pkg/response"
)

type benefitService interface {
	ListTypes(ctx context.Context, activeOnly bool) ([]models.BenefitType, error)
	GetType(ctx context.Context, id string) (*models.BenefitType, error)
	CreateType(ctx context.Context, req dto.CreateBenefitTypeRequest, actor *models.JWTClaims) (*models.BenefitType, error)
	UpdateType(ctx context.Context, id string, req dto.UpdateBenefitTypeRequest, actor *models.JWTClaims) (*models.BenefitType, error)
	Submit(ctx context.Context, req dto.SubmitBenefitRequest, actor *models.JWTClaims) (*models.BenefitRequest, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.BenefitRequest, error)
	List(ctx context.Context, query dto.BenefitRequestQuery, actor *models.JWTClaims) ([]models.BenefitRequest, *models.Pagination, error)
	HRApprove(ctx context.Context, id string, body dto.HRApproveBenefitRequest, actor *models.JWTClaims) (*models.BenefitRequest, error)
	BODApprove(ctx context.Context, id string, actor *models.JWTClaims) (*models.BenefitRequest, error)
	Reject(ctx context.Context, id string, body dto.RejectBenefitRequest, actor *models.JWTClaims) (*models.BenefitRequest, error)
	Cancel(ctx context.Context, id string, actor *models.JWTClaims) (*models.BenefitRequest, error)
	Fulfill(ctx context.Context, id string, body dto.FulfillBenefitRequest, actor *models.JWTClaims) (*models.BenefitRequest, error)
}

type benefitExporter interface {
	BenefitRequests(ctx context.Context, query dto.BenefitRequestQuery, format string, actor *models.JWTClaims) (*models.RenderedDocument, error)
}

// BenefitHandler exposes the benefit catalog and request workflow.
type BenefitHandler struct {
	service benefitService
	export  benefitExporter
}

// NewBenefitHandler constructs the handler.
func NewBenefitHandler(svc benefitService, export benefitExporter) *BenefitHandler {
	return &BenefitHandler{service: svc, export: export}
}

// ListTypes godoc
// @Summary List benefit types
// @Tags Benefits
// @Produce json
// @Param active query bool false "Only active types"
// @Success 200 {object} response.Envelope
// @Router /benefit-types [get]
func (h *BenefitHandler) ListTypes(c *gin.Context) {
	types, err := h.service.ListTypes(c.Request.Context(), queryBool(c, "active"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, types, nil)
}

// GetType godoc
// @Summary Get benefit type
// @Tags Benefits
// @Produce json
// @Param id path string true "Benefit type ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /benefit-types/{id} [get]
func (h *BenefitHandler) GetType(c *gin.Context) {
	bt, err := h.service.GetType(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bt, nil)
}

// CreateType godoc
// @Summary Create benefit type
// @Tags Benefits
// @Accept json
// @Produce json
// @Param payload body dto.CreateBenefitTypeRequest true "Benefit type"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /benefit-types [post]
func (h *BenefitHandler) CreateType(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.CreateBenefitTypeRequest
	if !bindJSON(c, &req) {
		return
	}
	bt, err := h.service.CreateType(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, bt)
}

// UpdateType godoc
// @Summary Update benefit type
// @Tags Benefits
// @Accept json
// @Produce json
// @Param id path string true "Benefit type ID"
// @Param payload body dto.UpdateBenefitTypeRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /benefit-types/{id} [patch]
func (h *BenefitHandler) UpdateType(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.UpdateBenefitTypeRequest
	if !bindJSON(c, &req) {
		return
	}
	bt, err := h.service.UpdateType(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bt, nil)
}

// Submit godoc
// @Summary Submit benefit request
// @Tags Benefits
// @Accept json
// @Produce json
// @Param payload body dto.SubmitBenefitRequest true "Benefit request"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /benefit-requests [post]
func (h *BenefitHandler) Submit(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.SubmitBenefitRequest
	if !bindJSON(c, &req) {
		return
	}
	br, err := h.service.Submit(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, br)
}

// List godoc
// @Summary List benefit requests
// @Tags Benefits
// @Produce json
// @Param scope query string false "mine|board|all"
// @Param status query string false "Comma separated statuses"
// @Param benefit_type_id query string false "Benefit type"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /benefit-requests [get]
func (h *BenefitHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	query := benefitQuery(c)
	items, pagination, err := h.service.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get benefit request
// @Tags Benefits
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /benefit-requests/{id} [get]
func (h *BenefitHandler) Get(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	br, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, br, nil)
}

// HRApprove godoc
// @Summary HR approval
// @Description Approves a PENDING_HR request. BOD-routed types need board_member_ids.
// @Tags Benefits
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.HRApproveBenefitRequest false "Board selection"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /benefit-requests/{id}/hr-approve [post]
func (h *BenefitHandler) HRApprove(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var body dto.HRApproveBenefitRequest
	if !bindOptionalJSON(c, &body) {
		return
	}
	br, err := h.service.HRApprove(c.Request.Context(), c.Param("id"), body, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, br, nil)
}

// BODApprove godoc
// @Summary Board approval
// @Tags Benefits
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /benefit-requests/{id}/bod-approve [post]
func (h *BenefitHandler) BODApprove(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	br, err := h.service.BODApprove(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, br, nil)
}

// Reject godoc
// @Summary Reject benefit request
// @Tags Benefits
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.RejectBenefitRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /benefit-requests/{id}/reject [post]
func (h *BenefitHandler) Reject(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var body dto.RejectBenefitRequest
	if !bindJSON(c, &body) {
		return
	}
	br, err := h.service.Reject(c.Request.Context(), c.Param("id"), body, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, br, nil)
}

// Cancel godoc
// @Summary Cancel own benefit request
// @Tags Benefits
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /benefit-requests/{id}/cancel [post]
func (h *BenefitHandler) Cancel(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	br, err := h.service.Cancel(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, br, nil)
}

// Fulfill godoc
// @Summary Record voucher for an approved request
// @Tags Benefits
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.FulfillBenefitRequest true "Voucher"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /benefit-requests/{id}/fulfill [post]
func (h *BenefitHandler) Fulfill(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var body dto.FulfillBenefitRequest
	if !bindJSON(c, &body) {
		return
	}
	br, err := h.service.Fulfill(c.Request.Context(), c.Param("id"), body, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, br, nil)
}

// Export godoc
// @Summary Export benefit requests
// @Tags Benefits
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv|pdf"
// @Param status query string false "Comma separated statuses"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /benefit-requests/export [get]
func (h *BenefitHandler) Export(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	doc, err := h.export.BenefitRequests(c.Request.Context(), benefitQuery(c), c.Query("format"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, doc.ContentType, doc.Filename, doc.Content, false)
}

func benefitQuery(c *gin.Context) dto.BenefitRequestQuery {
	page, size := pageParams(c)
	return dto.BenefitRequestQuery{
		Status:        statusFilter[models.BenefitStatus](c, "status"),
		Scope:         c.Query("scope"),
		BenefitTypeID: c.Query("benefit_type_id"),
		Page:          page,
		PageSize:      size,
	}
}
