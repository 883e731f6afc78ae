package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hris-api/internal/dto"
	"github.com/noah-isme/hris-api/internal/models"
	"github.com/noah-isme/hris-api/pkg/response"
)

type assetService interface {
	Create(ctx context.Context, req dto.CreateAssetRequest, actor *models.JWTClaims) (*models.Asset, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.AssetDetail, error)
	List(ctx context.Context, query dto.AssetQuery, actor *models.JWTClaims) ([]models.Asset, *models.Pagination, error)
	Assign(ctx context.Context, assetID string, req dto.AssignAssetRequest, actor *models.JWTClaims) (*models.AssetAssignment, error)
	Return(ctx context.Context, assetID string, req dto.ReturnAssetRequest, actor *models.JWTClaims) (*models.AssetDetail, error)
	SendToRepair(ctx context.Context, assetID string, req dto.AssetNoteRequest, actor *models.JWTClaims) (*models.AssetDetail, error)
	CompleteRepair(ctx context.Context, assetID string, req dto.AssetNoteRequest, actor *models.JWTClaims) (*models.AssetDetail, error)
	Retire(ctx context.Context, assetID string, req dto.AssetNoteRequest, actor *models.JWTClaims) (*models.AssetDetail, error)
	AcknowledgeAssignment(ctx context.Context, assignmentID string, req dto.AcknowledgeAssignmentRequest, actor *models.JWTClaims) (*models.AssetAssignment, error)
	MyAssignments(ctx context.Context, actor *models.JWTClaims, openOnly bool) ([]models.AssetAssignment, error)
	SubmitRequest(ctx context.Context, req dto.SubmitAssetRequest, actor *models.JWTClaims) (*models.AssetRequest, error)
	ApproveRequest(ctx context.Context, id string, actor *models.JWTClaims) (*models.AssetRequest, error)
	RejectRequest(ctx context.Context, id string, body dto.RejectAssetRequest, actor *models.JWTClaims) (*models.AssetRequest, error)
	GetRequest(ctx context.Context, id string, actor *models.JWTClaims) (*models.AssetRequest, error)
	ListRequests(ctx context.Context, query dto.AssetRequestQuery, actor *models.JWTClaims) ([]models.AssetRequest, *models.Pagination, error)
}

// AssetHandler exposes the asset register, custody and asset requests.
type AssetHandler struct {
	service assetService
}

// NewAssetHandler constructs the handler.
func NewAssetHandler(svc assetService) *AssetHandler {
	return &AssetHandler{service: svc}
}

// Create godoc
// @Summary Register an asset
// @Tags Assets
// @Accept json
// @Produce json
// @Param payload body dto.CreateAssetRequest true "Asset"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assets [post]
func (h *AssetHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.CreateAssetRequest
	if !bindJSON(c, &req) {
		return
	}
	asset, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, asset)
}

// List godoc
// @Summary List assets
// @Tags Assets
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param category query string false "Category"
// @Param search query string false "Tag, name or serial"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /assets [get]
func (h *AssetHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	page, size := pageParams(c)
	query := dto.AssetQuery{
		Status:   statusFilter[models.AssetStatus](c, "status"),
		Category: c.Query("category"),
		Search:   c.Query("search"),
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
// @Summary Get asset with custody history
// @Tags Assets
// @Produce json
// @Param id path string true "Asset ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assets/{id} [get]
func (h *AssetHandler) Get(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	asset, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, asset, nil)
}

// Assign godoc
// @Summary Assign an available asset
// @Tags Assets
// @Accept json
// @Produce json
// @Param id path string true "Asset ID"
// @Param payload body dto.AssignAssetRequest true "Custodian"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assets/{id}/assign [post]
func (h *AssetHandler) Assign(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.AssignAssetRequest
	if !bindJSON(c, &req) {
		return
	}
	assignment, err := h.service.Assign(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// Return godoc
// @Summary Return an assigned asset
// @Tags Assets
// @Accept json
// @Produce json
// @Param id path string true "Asset ID"
// @Param payload body dto.ReturnAssetRequest false "Return routing"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assets/{id}/return [post]
func (h *AssetHandler) Return(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.ReturnAssetRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	asset, err := h.service.Return(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, asset, nil)
}

// Repair godoc
// @Summary Send an asset to repair
// @Tags Assets
// @Accept json
// @Produce json
// @Param id path string true "Asset ID"
// @Param payload body dto.AssetNoteRequest false "Notes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assets/{id}/repair [post]
func (h *AssetHandler) Repair(c *gin.Context) {
	h.lifecycle(c, h.service.SendToRepair)
}

// CompleteRepair godoc
// @Summary Return a repaired asset to stock
// @Tags Assets
// @Accept json
// @Produce json
// @Param id path string true "Asset ID"
// @Param payload body dto.AssetNoteRequest false "Notes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assets/{id}/repair/complete [post]
func (h *AssetHandler) CompleteRepair(c *gin.Context) {
	h.lifecycle(c, h.service.CompleteRepair)
}

// Retire godoc
// @Summary Retire an asset
// @Tags Assets
// @Accept json
// @Produce json
// @Param id path string true "Asset ID"
// @Param payload body dto.AssetNoteRequest false "Notes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assets/{id}/retire [post]
func (h *AssetHandler) Retire(c *gin.Context) {
	h.lifecycle(c, h.service.Retire)
}

func (h *AssetHandler) lifecycle(c *gin.Context, fn func(context.Context, string, dto.AssetNoteRequest, *models.JWTClaims) (*models.AssetDetail, error)) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.AssetNoteRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	asset, err := fn(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, asset, nil)
}

// MyAssignments godoc
// @Summary Assets in my custody
// @Tags Assets
// @Produce json
// @Param open query bool false "Only open assignments"
// @Success 200 {object} response.Envelope
// @Router /asset-assignments/me [get]
func (h *AssetHandler) MyAssignments(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	items, err := h.service.MyAssignments(c.Request.Context(), claims, queryBool(c, "open"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// AcknowledgeAssignment godoc
// @Summary Acknowledge receipt of an asset
// @Tags Assets
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.AcknowledgeAssignmentRequest false "Signed hand-over"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /asset-assignments/{id}/acknowledge [post]
func (h *AssetHandler) AcknowledgeAssignment(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.AcknowledgeAssignmentRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	assignment, err := h.service.AcknowledgeAssignment(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// SubmitRequest godoc
// @Summary Request equipment
// @Tags Asset Requests
// @Accept json
// @Produce json
// @Param payload body dto.SubmitAssetRequest true "Request"
// @Success 201 {object} response.Envelope
// @Router /asset-requests [post]
func (h *AssetHandler) SubmitRequest(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.SubmitAssetRequest
	if !bindJSON(c, &req) {
		return
	}
	ar, err := h.service.SubmitRequest(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ar)
}

// ListRequests godoc
// @Summary List asset requests
// @Tags Asset Requests
// @Produce json
// @Param scope query string false "mine|all"
// @Param status query string false "Comma separated statuses"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /asset-requests [get]
func (h *AssetHandler) ListRequests(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	page, size := pageParams(c)
	query := dto.AssetRequestQuery{
		Status:   statusFilter[models.AssetRequestStatus](c, "status"),
		Scope:    c.Query("scope"),
		Page:     page,
		PageSize: size,
	}
	items, pagination, err := h.service.ListRequests(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// GetRequest godoc
// @Summary Get asset request
// @Tags Asset Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /asset-requests/{id} [get]
func (h *AssetHandler) GetRequest(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	ar, err := h.service.GetRequest(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ar, nil)
}

// ApproveRequest godoc
// @Summary Approve asset request
// @Tags Asset Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /asset-requests/{id}/approve [post]
func (h *AssetHandler) ApproveRequest(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	ar, err := h.service.ApproveRequest(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ar, nil)
}

// RejectRequest godoc
// @Summary Reject asset request
// @Tags Asset Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.RejectAssetRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /asset-requests/{id}/reject [post]
func (h *AssetHandler) RejectRequest(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var body dto.RejectAssetRequest
	if !bindJSON(c, &body) {
		return
	}
	ar, err := h.service.RejectRequest(c.Request.Context(), c.Param("id"), body, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ar, nil)
}
