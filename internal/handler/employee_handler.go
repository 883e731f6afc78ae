package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hris-api/internal/dto"
	"github.com/noah-isme/hris-api/internal/models"
	"github.com/noah-isme/hris-api/pkg/response"
)

type employeeService interface {
	List(ctx context.Context, filter models.EmployeeFilter, actor *models.JWTClaims) ([]models.Employee, *models.Pagination, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Employee, error)
	Me(ctx context.Context, actor *models.JWTClaims) (*models.Employee, error)
	Create(ctx context.Context, req dto.EmployeeRequest, actor *models.JWTClaims) (*models.Employee, error)
	Update(ctx context.Context, id string, req dto.EmployeeRequest, actor *models.JWTClaims) (*models.Employee, error)
	Separate(ctx context.Context, id string, actor *models.JWTClaims) (*models.Employee, error)
}

type employmentCertificates interface {
	COE(ctx context.Context, employeeID, format string, actor *models.JWTClaims) (*models.RenderedDocument, error)
}

// EmployeeHandler exposes personnel records.
type EmployeeHandler struct {
	service   employeeService
	documents employmentCertificates
}

// NewEmployeeHandler constructs the handler.
func NewEmployeeHandler(svc employeeService, documents employmentCertificates) *EmployeeHandler {
	return &EmployeeHandler{service: svc, documents: documents}
}

// List godoc
// @Summary List employees
// @Description HR sees everyone, managers see their direct reports.
// @Tags Employees
// @Produce json
// @Param search query string false "Name, number or email"
// @Param department query string false "Department"
// @Param status query string false "Employment status"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /employees [get]
func (h *EmployeeHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	page, size := pageParams(c)
	filter := models.EmployeeFilter{
		Search:     c.Query("search"),
		Department: c.Query("department"),
		Status:     models.EmploymentStatus(strings.ToUpper(c.Query("status"))),
		Page:       page,
		PageSize:   size,
	}
	items, pagination, err := h.service.List(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Me godoc
// @Summary My employee record
// @Tags Employees
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /employees/me [get]
func (h *EmployeeHandler) Me(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	emp, err := h.service.Me(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, emp, nil)
}

// Get godoc
// @Summary Get employee
// @Tags Employees
// @Produce json
// @Param id path string true "Employee ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /employees/{id} [get]
func (h *EmployeeHandler) Get(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	emp, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, emp, nil)
}

// Create godoc
// @Summary Create employee
// @Tags Employees
// @Accept json
// @Produce json
// @Param payload body dto.EmployeeRequest true "Employee"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /employees [post]
func (h *EmployeeHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.EmployeeRequest
	if !bindJSON(c, &req) {
		return
	}
	emp, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, emp)
}

// Update godoc
// @Summary Update employee
// @Tags Employees
// @Accept json
// @Produce json
// @Param id path string true "Employee ID"
// @Param payload body dto.EmployeeRequest true "Employee"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /employees/{id} [put]
func (h *EmployeeHandler) Update(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.EmployeeRequest
	if !bindJSON(c, &req) {
		return
	}
	emp, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, emp, nil)
}

// Separate godoc
// @Summary Mark employee separated
// @Tags Employees
// @Produce json
// @Param id path string true "Employee ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /employees/{id}/separate [post]
func (h *EmployeeHandler) Separate(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	emp, err := h.service.Separate(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, emp, nil)
}

// COE godoc
// @Summary Certificate of employment
// @Tags Employees
// @Produce text/html
// @Produce application/pdf
// @Param id path string true "Employee ID"
// @Param format query string false "html|pdf"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /employees/{id}/coe [get]
func (h *EmployeeHandler) COE(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	doc, err := h.documents.COE(c.Request.Context(), c.Param("id"), c.Query("format"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	renderDocument(c, doc)
}
