package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/hris-api/internal/dto"
	"github.com/noah-isme/hris-api/internal/models"
	appErrors "github.com/noah-isme/hris-api/pkg/errors"
)

type employeeRepository interface {
	Create(ctx context.Context, e *models.Employee) error
	Update(ctx context.Context, e *models.Employee) error
	FindByID(ctx context.Context, id string) (*models.Employee, error)
	FindByUserID(ctx context.Context, userID string) (*models.Employee, error)
	List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, int, error)
}

// EmployeeService maintains personnel records.
type EmployeeService struct {
	repo      employeeRepository
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEmployeeService constructs the employee service.
func NewEmployeeService(repo employeeRepository, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *EmployeeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmployeeService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// List returns employees. HR sees everyone, managers only their direct reports.
func (s *EmployeeService) List(ctx context.Context, filter models.EmployeeFilter, actor *models.JWTClaims) ([]models.Employee, *models.Pagination, error) {
	if !hasRole(actor, models.RoleHR, models.RoleManager) {
		return nil, nil, appErrors.ErrForbidden
	}
	if !hasRole(actor, models.RoleHR) {
		manager, err := s.repo.FindByUserID(ctx, actor.UserID)
		if err != nil {
			return nil, nil, loadFailure(err, "manager record")
		}
		filter.ManagerID = manager.ID
	}
	employees, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list employees")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	pagination.Normalize()
	return employees, pagination, nil
}

// Get returns an employee visible to actor.
func (s *EmployeeService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Employee, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	emp, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadFailure(err, "employee")
	}
	if hasRole(actor, models.RoleHR) || derefString(emp.UserID) == actor.UserID {
		return emp, nil
	}
	if actor.Role == models.RoleManager && emp.ManagerID != nil {
		if manager, err := s.repo.FindByUserID(ctx, actor.UserID); err == nil && manager.ID == *emp.ManagerID {
			return emp, nil
		}
	}
	return nil, appErrors.ErrForbidden
}

// Me returns the record linked to the caller's account.
func (s *EmployeeService) Me(ctx context.Context, actor *models.JWTClaims) (*models.Employee, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	emp, err := s.repo.FindByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, loadFailure(err, "employee record")
	}
	return emp, nil
}

// Create adds a personnel record.
func (s *EmployeeService) Create(ctx context.Context, req dto.EmployeeRequest, actor *models.JWTClaims) (*models.Employee, error) {
	if !hasRole(actor, models.RoleHR) {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationFailure(err)
	}
	emp := &models.Employee{ID: uuid.NewString(), EmploymentStatus: models.EmploymentProbationary}
	if err := applyEmployeeFields(emp, req); err != nil {
		return nil, err
	}
	if err := s.ensureManager(ctx, emp); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, emp); err != nil {
		return nil, employeeWriteFailure(err)
	}
	s.record(ctx, actor, models.AuditActionEmployeeCreate, emp.ID, nil, employeeSnapshot(emp))
	return emp, nil
}

// Update replaces the mutable fields of a record.
func (s *EmployeeService) Update(ctx context.Context, id string, req dto.EmployeeRequest, actor *models.JWTClaims) (*models.Employee, error) {
	if !hasRole(actor, models.RoleHR) {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationFailure(err)
	}
	emp, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadFailure(err, "employee")
	}
	before := employeeSnapshot(emp)
	if err := applyEmployeeFields(emp, req); err != nil {
		return nil, err
	}
	if emp.ManagerID != nil && *emp.ManagerID == emp.ID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "an employee cannot manage themselves")
	}
	if err := s.ensureManager(ctx, emp); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, emp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, employeeWriteFailure(err)
	}
	s.record(ctx, actor, models.AuditActionEmployeeUpdate, emp.ID, before, employeeSnapshot(emp))
	return emp, nil
}

// Separate flags an employee as SEPARATED. Already separated records conflict.
func (s *EmployeeService) Separate(ctx context.Context, id string, actor *models.JWTClaims) (*models.Employee, error) {
	if !hasRole(actor, models.RoleHR) {
		return nil, appErrors.ErrForbidden
	}
	emp, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadFailure(err, "employee")
	}
	if emp.EmploymentStatus == models.EmploymentSeparated {
		return nil, appErrors.Clone(appErrors.ErrConflict, "employee is already separated")
	}
	before := employeeSnapshot(emp)
	emp.EmploymentStatus = models.EmploymentSeparated
	if err := s.repo.Update(ctx, emp); err != nil {
		return nil, employeeWriteFailure(err)
	}
	s.record(ctx, actor, models.AuditActionEmployeeSeparate, emp.ID, before, employeeSnapshot(emp))
	s.logger.Info("employee separated", zap.String("employee_id", emp.ID), zap.String("actor", actor.UserID))
	return emp, nil
}

func applyEmployeeFields(emp *models.Employee, req dto.EmployeeRequest) error {
	hired, err := time.Parse("2006-01-02", req.DateHired)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "date_hired must be YYYY-MM-DD")
	}
	emp.UserID = trimmedOrNil(req.UserID)
	emp.EmployeeNo = strings.TrimSpace(req.EmployeeNo)
	emp.FirstName = strings.TrimSpace(req.FirstName)
	emp.LastName = strings.TrimSpace(req.LastName)
	emp.Email = strings.ToLower(strings.TrimSpace(req.Email))
	emp.Department = strings.TrimSpace(req.Department)
	emp.Position = strings.TrimSpace(req.Position)
	emp.DateHired = hired
	emp.ManagerID = trimmedOrNil(req.ManagerID)
	if req.EmploymentStatus != "" {
		emp.EmploymentStatus = req.EmploymentStatus
	}
	return nil
}

func (s *EmployeeService) ensureManager(ctx context.Context, emp *models.Employee) error {
	if emp.ManagerID == nil {
		return nil
	}
	manager, err := s.repo.FindByID(ctx, *emp.ManagerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "manager not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load manager")
	}
	if manager.EmploymentStatus == models.EmploymentSeparated {
		return appErrors.Clone(appErrors.ErrValidation, "manager is separated")
	}
	return nil
}

func trimmedOrNil(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	return strPtr(strings.TrimSpace(*v))
}

func employeeWriteFailure(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "employee number, email or account link already in use")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save employee")
}

func employeeSnapshot(emp *models.Employee) []byte {
	payload, _ := json.Marshal(map[string]interface{}{
		"employee_no":       emp.EmployeeNo,
		"department":        emp.Department,
		"position":          emp.Position,
		"employment_status": emp.EmploymentStatus,
		"manager_id":        emp.ManagerID,
		"user_id":           emp.UserID,
	})
	return payload
}

func (s *EmployeeService) record(ctx context.Context, actor *models.JWTClaims, action, employeeID string, before, after []byte) {
	if s.audit == nil {
		return
	}
	userID := actor.UserID
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   models.EntityEmployee,
		ResourceID: &employeeID,
		OldValues:  before,
		NewValues:  after,
	}); err != nil {
		s.logger.Warn("failed to record employee audit log", zap.String("action", action), zap.Error(err))
	}
}
