package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/hris-api/internal/dto"
	"github.com/noah-isme/hris-api/internal/models"
	"github.com/noah-isme/hris-api/internal/repository"
	"github.com/noah-isme/hris-api/internal/workflow"
	appErrors "github.com/noah-isme/hris-api/pkg/errors"
)

// Audit actions recorded for assets.
const (
	AuditAssetCreate         = "ASSET_CREATE"
	AuditAssetAssign         = "ASSET_ASSIGN"
	AuditAssetReturn         = "ASSET_RETURN"
	AuditAssetRepair         = "ASSET_SEND_TO_REPAIR"
	AuditAssetRepairComplete = "ASSET_REPAIR_COMPLETE"
	AuditAssetRetire         = "ASSET_RETIRE"
	AuditAssetAcknowledge    = "ASSET_ASSIGNMENT_ACKNOWLEDGE"
	AuditAssetRequestSubmit  = "ASSET_REQUEST_SUBMIT"
	AuditAssetRequestApprove = "ASSET_REQUEST_APPROVE"
	AuditAssetRequestReject  = "ASSET_REQUEST_REJECT"
)

type assetStore interface {
	Create(ctx context.Context, asset *models.Asset, events []models.OutboxEvent) error
	Get(ctx context.Context, id string) (*models.AssetDetail, error)
	List(ctx context.Context, filter models.AssetFilter) ([]models.Asset, int, error)
	ListAssignmentsForUser(ctx context.Context, userID string, openOnly bool) ([]models.AssetAssignment, error)
	GetAssignment(ctx context.Context, id string) (*models.AssetAssignment, error)
	Assign(ctx context.Context, assignment *models.AssetAssignment, events []models.OutboxEvent) error
	Return(ctx context.Context, assetID string, target models.AssetStatus, notes *string, returnedAt time.Time, events []models.OutboxEvent) error
	Transition(ctx context.Context, t repository.Transition, events []models.OutboxEvent) error
	AcknowledgeAssignment(ctx context.Context, id string, signedPath *string, at time.Time, events []models.OutboxEvent) error
	CreateRequest(ctx context.Context, req *models.AssetRequest, events []models.OutboxEvent) error
	GetRequest(ctx context.Context, id string) (*models.AssetRequest, error)
	ListRequests(ctx context.Context, filter models.AssetRequestFilter) ([]models.AssetRequest, int, error)
	TransitionRequest(ctx context.Context, t repository.Transition, events []models.OutboxEvent) error
}

// AssetService manages company property and its custody.
type AssetService struct {
	repo        assetStore
	employees   employeeLookup
	directory   roleDirectory
	attachments attachmentLookup
	metrics     TransitionObserver
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// AssetServiceOption configures the service.
type AssetServiceOption func(*AssetService)

// WithAssetMetrics records committed transitions.
func WithAssetMetrics(m TransitionObserver) AssetServiceOption {
	return func(s *AssetService) {
		s.metrics = m
	}
}

// WithAssetAttachments enables signed hand-over documents on acknowledgement.
func WithAssetAttachments(a attachmentLookup) AssetServiceOption {
	return func(s *AssetService) {
		s.attachments = a
	}
}

// WithAssetClock overrides the time source.
func WithAssetClock(now func() time.Time) AssetServiceOption {
	return func(s *AssetService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewAssetService constructs the service.
func NewAssetService(repo assetStore, employees employeeLookup, directory roleDirectory, validate *validator.Validate, logger *zap.Logger, opts ...AssetServiceOption) *AssetService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AssetService{
		repo:      repo,
		employees: employees,
		directory: directory,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create registers a new AVAILABLE asset.
func (s *AssetService) Create(ctx context.Context, req dto.CreateAssetRequest, actor *models.JWTClaims) (*models.Asset, error) {
	if !hasRole(actor, models.RoleHR) {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid asset payload")
	}
	asset := &models.Asset{
		ID:             uuid.NewString(),
		AssetTag:       strings.TrimSpace(req.AssetTag),
		Name:           strings.TrimSpace(req.Name),
		Category:       strings.TrimSpace(req.Category),
		SerialNumber:   req.SerialNumber,
		ConditionNotes: req.ConditionNotes,
		Status:         models.AssetStatusAvailable,
	}
	events, err := outboxEvent(actor, AuditAssetCreate, models.EntityAsset, asset.ID,
		map[string]interface{}{"asset_tag": asset.AssetTag, "category": asset.Category}, nil)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, asset, events); err != nil {
		return nil, transitionFailure(err, "asset")
	}
	return asset, nil
}

// Get returns an asset with its assignment history.
func (s *AssetService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.AssetDetail, error) {
	if !hasRole(actor, models.RoleHR) {
		return nil, appErrors.ErrForbidden
	}
	detail, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, loadFailure(err, "asset")
	}
	return detail, nil
}

// List returns assets by status and category.
func (s *AssetService) List(ctx context.Context, query dto.AssetQuery, actor *models.JWTClaims) ([]models.Asset, *models.Pagination, error) {
	if !hasRole(actor, models.RoleHR) {
		return nil, nil, appErrors.ErrForbidden
	}
	filter := models.AssetFilter{
		Status:   query.Status,
		Category: query.Category,
		Search:   strings.TrimSpace(query.Search),
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assets")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	pagination.Normalize()
	return items, pagination, nil
}

// Assign hands an AVAILABLE asset to an employee. When AssetRequestID is set
// the approved request for that employee is fulfilled in the same transaction.
func (s *AssetService) Assign(ctx context.Context, assetID string, req dto.AssignAssetRequest, actor *models.JWTClaims) (*models.AssetAssignment, error) {
	if !hasRole(actor, models.RoleHR) {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	detail, err := s.repo.Get(ctx, assetID)
	if err != nil {
		return nil, loadFailure(err, "asset")
	}
	if err := workflow.Assets.Check(workflow.AssetAssign, detail.Status, models.AssetStatusAssigned); err != nil {
		return nil, transitionFailure(err, "asset")
	}
	employee, err := s.employees.FindByID(ctx, req.EmployeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown employee")
		}
		return nil, loadFailure(err, "employee")
	}
	if employee.EmploymentStatus == models.EmploymentSeparated {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot assign assets to a separated employee")
	}
	if req.AssetRequestID != nil {
		request, err := s.repo.GetRequest(ctx, *req.AssetRequestID)
		if err != nil {
			return nil, loadFailure(err, "asset request")
		}
		if request.RequesterID != employee.ID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "asset request belongs to another employee")
		}
		if err := workflow.AssetRequests.Check(workflow.AssetRequestFulfill, request.Status, models.AssetRequestFulfilled); err != nil {
			return nil, transitionFailure(err, "asset request")
		}
	}

	assignment := &models.AssetAssignment{
		ID:             uuid.NewString(),
		AssetID:        detail.ID,
		EmployeeID:     employee.ID,
		EmployeeUserID: employee.UserID,
		EmployeeName:   employee.FullName(),
		RequestID:      req.AssetRequestID,
		DateAssigned:   s.now(),
		AssignedBy:     actor.UserID,
	}
	events, err := outboxEvent(actor, AuditAssetAssign, models.EntityAsset, detail.ID,
		map[string]interface{}{"assignment_id": assignment.ID, "employee_id": employee.ID, "asset_request_id": derefString(req.AssetRequestID)},
		drafts([]string{derefString(employee.UserID)}, "Asset assigned to you",
			detail.Name+" ("+detail.AssetTag+") was assigned to you. Please acknowledge receipt."))
	if err != nil {
		return nil, err
	}
	if err := s.repo.Assign(ctx, assignment, events); err != nil {
		return nil, transitionFailure(err, "asset")
	}
	s.observe(models.EntityAsset, workflow.AssetAssign)
	return assignment, nil
}

// Return closes custody and moves the asset to AVAILABLE, IN_REPAIR or RETIRED.
func (s *AssetService) Return(ctx context.Context, assetID string, req dto.ReturnAssetRequest, actor *models.JWTClaims) (*models.AssetDetail, error) {
	if !hasRole(actor, models.RoleHR) {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid return payload")
	}
	target, err := workflow.ReturnTarget(req.Status)
	if err != nil {
		return nil, validationFailure(err)
	}
	detail, err := s.repo.Get(ctx, assetID)
	if err != nil {
		return nil, loadFailure(err, "asset")
	}
	if err := workflow.Assets.Check(workflow.AssetReturn, detail.Status, target); err != nil {
		return nil, transitionFailure(err, "asset")
	}
	var holder []string
	for _, a := range detail.Assignments {
		if a.DateReturned == nil {
			holder = append(holder, derefString(a.EmployeeUserID))
		}
	}
	events, err := outboxEvent(actor, AuditAssetReturn, models.EntityAsset, assetID,
		map[string]interface{}{"to": target, "notes": derefString(req.Notes)},
		drafts(holder, "Asset return recorded", detail.Name+" ("+detail.AssetTag+") was checked back in"))
	if err != nil {
		return nil, err
	}
	if err := s.repo.Return(ctx, assetID, target, req.Notes, s.now(), events); err != nil {
		return nil, transitionFailure(err, "asset")
	}
	s.observe(models.EntityAsset, workflow.AssetReturn)
	return s.reload(ctx, assetID)
}

// SendToRepair moves an AVAILABLE asset to IN_REPAIR.
func (s *AssetService) SendToRepair(ctx context.Context, assetID string, req dto.AssetNoteRequest, actor *models.JWTClaims) (*models.AssetDetail, error) {
	return s.move(ctx, assetID, workflow.AssetSendToRepair, models.AssetStatusInRepair, AuditAssetRepair, req, actor)
}

// CompleteRepair returns an IN_REPAIR asset to AVAILABLE.
func (s *AssetService) CompleteRepair(ctx context.Context, assetID string, req dto.AssetNoteRequest, actor *models.JWTClaims) (*models.AssetDetail, error) {
	return s.move(ctx, assetID, workflow.AssetCompleteRepair, models.AssetStatusAvailable, AuditAssetRepairComplete, req, actor)
}

// Retire takes an AVAILABLE or IN_REPAIR asset out of service for good.
func (s *AssetService) Retire(ctx context.Context, assetID string, req dto.AssetNoteRequest, actor *models.JWTClaims) (*models.AssetDetail, error) {
	return s.move(ctx, assetID, workflow.AssetRetire, models.AssetStatusRetired, AuditAssetRetire, req, actor)
}

func (s *AssetService) move(ctx context.Context, assetID string, action workflow.Action, to models.AssetStatus, auditAction string, req dto.AssetNoteRequest, actor *models.JWTClaims) (*models.AssetDetail, error) {
	if !hasRole(actor, models.RoleHR) {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid asset payload")
	}
	detail, err := s.repo.Get(ctx, assetID)
	if err != nil {
		return nil, loadFailure(err, "asset")
	}
	if err := workflow.Assets.Check(action, detail.Status, to); err != nil {
		return nil, transitionFailure(err, "asset")
	}
	set := map[string]interface{}{"updated_at": s.now()}
	if req.Notes != nil {
		set["condition_notes"] = *req.Notes
	}
	events, err := outboxEvent(actor, auditAction, models.EntityAsset, assetID,
		map[string]interface{}{"from": detail.Status, "to": to, "notes": derefString(req.Notes)}, nil)
	if err != nil {
		return nil, err
	}
	t := repository.Transition{ID: assetID, From: string(detail.Status), To: string(to), Set: set}
	if err := s.repo.Transition(ctx, t, events); err != nil {
		return nil, transitionFailure(err, "asset")
	}
	s.observe(models.EntityAsset, action)
	return s.reload(ctx, assetID)
}

// AcknowledgeAssignment records the assigned employee's receipt of an asset.
func (s *AssetService) AcknowledgeAssignment(ctx context.Context, assignmentID string, req dto.AcknowledgeAssignmentRequest, actor *models.JWTClaims) (*models.AssetAssignment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	assignment, err := s.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, loadFailure(err, "assignment")
	}
	if derefString(assignment.EmployeeUserID) != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned employee may acknowledge")
	}
	if assignment.IsAcknowledged {
		return nil, appErrors.Clone(appErrors.ErrAlreadyProcessed, "assignment was already acknowledged")
	}
	var signedPath *string
	if req.SignedAttachmentID != "" {
		path, err := s.signedDocument(ctx, req.SignedAttachmentID, actor)
		if err != nil {
			return nil, err
		}
		signedPath = &path
	}
	events, err := outboxEvent(actor, AuditAssetAcknowledge, models.EntityAsset, assignment.AssetID,
		map[string]interface{}{"assignment_id": assignment.ID, "signed": signedPath != nil},
		drafts([]string{assignment.AssignedBy}, "Asset receipt acknowledged", assignment.EmployeeName+" acknowledged receipt of an asset"))
	if err != nil {
		return nil, err
	}
	if err := s.repo.AcknowledgeAssignment(ctx, assignmentID, signedPath, s.now(), events); err != nil {
		return nil, transitionFailure(err, "assignment")
	}
	updated, err := s.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, loadFailure(err, "assignment")
	}
	return updated, nil
}

func (s *AssetService) signedDocument(ctx context.Context, attachmentID string, actor *models.JWTClaims) (string, error) {
	if s.attachments == nil {
		return "", appErrors.Clone(appErrors.ErrValidation, "document uploads are not configured")
	}
	att, err := s.attachments.Get(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrValidation, "signed document not found")
		}
		return "", loadFailure(err, "attachment")
	}
	if att.UploadedBy != actor.UserID {
		return "", appErrors.Clone(appErrors.ErrValidation, "signed document must be uploaded by you")
	}
	return att.FilePath, nil
}

// MyAssignments lists the actor's assignments, optionally only the open ones.
func (s *AssetService) MyAssignments(ctx context.Context, actor *models.JWTClaims, openOnly bool) ([]models.AssetAssignment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	items, err := s.repo.ListAssignmentsForUser(ctx, actor.UserID, openOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	if items == nil {
		items = []models.AssetAssignment{}
	}
	return items, nil
}

// SubmitRequest files an employee's request for equipment.
func (s *AssetService) SubmitRequest(ctx context.Context, req dto.SubmitAssetRequest, actor *models.JWTClaims) (*models.AssetRequest, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid asset request payload")
	}
	employee, err := s.employees.FindByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no employee record is linked to this account")
		}
		return nil, loadFailure(err, "employee")
	}
	hrPool, err := s.directory.ListIDsByRole(ctx, models.RoleHR)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve HR reviewers")
	}
	request := &models.AssetRequest{
		ID:              uuid.NewString(),
		RequesterID:     employee.ID,
		RequesterUserID: actor.UserID,
		RequesterName:   employee.FullName(),
		Category:        strings.TrimSpace(req.Category),
		Justification:   strings.TrimSpace(req.Justification),
		Status:          models.AssetRequestPending,
	}
	events, err := outboxEvent(actor, AuditAssetRequestSubmit, models.EntityAssetRequest, request.ID,
		map[string]interface{}{"category": request.Category},
		drafts(hrPool, "New asset request", request.RequesterName+" requested a "+request.Category))
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateRequest(ctx, request, events); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create asset request")
	}
	return request, nil
}

// ApproveRequest approves a PENDING asset request; it is fulfilled by Assign.
func (s *AssetService) ApproveRequest(ctx context.Context, id string, actor *models.JWTClaims) (*models.AssetRequest, error) {
	return s.review(ctx, id, workflow.AssetRequestApprove, models.AssetRequestApproved, "", actor)
}

// RejectRequest rejects a PENDING asset request with a reason.
func (s *AssetService) RejectRequest(ctx context.Context, id string, body dto.RejectAssetRequest, actor *models.JWTClaims) (*models.AssetRequest, error) {
	if err := s.validator.Struct(body); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "a rejection reason is required")
	}
	return s.review(ctx, id, workflow.AssetRequestReject, models.AssetRequestRejected, strings.TrimSpace(body.Reason), actor)
}

func (s *AssetService) review(ctx context.Context, id string, action workflow.Action, to models.AssetRequestStatus, reason string, actor *models.JWTClaims) (*models.AssetRequest, error) {
	if !hasRole(actor, models.RoleHR) {
		return nil, appErrors.ErrForbidden
	}
	request, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return nil, loadFailure(err, "asset request")
	}
	if err := workflow.AssetRequests.Check(action, request.Status, to); err != nil {
		return nil, transitionFailure(err, "asset request")
	}
	now := s.now()
	set := map[string]interface{}{"reviewed_by": actor.UserID, "reviewed_at": now, "updated_at": now}
	auditAction, title, message := AuditAssetRequestApprove, "Asset request approved", "Your "+request.Category+" request was approved"
	if to == models.AssetRequestRejected {
		set["rejection_reason"] = reason
		auditAction, title, message = AuditAssetRequestReject, "Asset request rejected", "Your "+request.Category+" request was rejected: "+reason
	}
	events, err := outboxEvent(actor, auditAction, models.EntityAssetRequest, id,
		map[string]interface{}{"from": request.Status, "to": to, "reason": reason},
		drafts([]string{request.RequesterUserID}, title, message))
	if err != nil {
		return nil, err
	}
	t := repository.Transition{ID: id, From: string(request.Status), To: string(to), Set: set}
	if err := s.repo.TransitionRequest(ctx, t, events); err != nil {
		return nil, transitionFailure(err, "asset request")
	}
	s.observe(models.EntityAssetRequest, action)
	updated, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return nil, loadFailure(err, "asset request")
	}
	return updated, nil
}

// GetRequest returns an asset request to HR or its requester.
func (s *AssetService) GetRequest(ctx context.Context, id string, actor *models.JWTClaims) (*models.AssetRequest, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	request, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return nil, loadFailure(err, "asset request")
	}
	if request.RequesterUserID != actor.UserID && !hasRole(actor, models.RoleHR) {
		return nil, appErrors.ErrForbidden
	}
	return request, nil
}

// ListRequests returns all requests for HR and the actor's own otherwise.
func (s *AssetService) ListRequests(ctx context.Context, query dto.AssetRequestQuery, actor *models.JWTClaims) ([]models.AssetRequest, *models.Pagination, error) {
	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}
	filter := models.AssetRequestFilter{Status: query.Status, Page: query.Page, PageSize: query.PageSize}
	switch query.Scope {
	case "":
		if !hasRole(actor, models.RoleHR) {
			filter.RequesterUserID = actor.UserID
		}
	case dto.ScopeMine:
		filter.RequesterUserID = actor.UserID
	case dto.ScopeAll:
		if !hasRole(actor, models.RoleHR) {
			return nil, nil, appErrors.ErrForbidden
		}
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown scope "+query.Scope)
	}
	items, total, err := s.repo.ListRequests(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list asset requests")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	pagination.Normalize()
	return items, pagination, nil
}

func (s *AssetService) reload(ctx context.Context, id string) (*models.AssetDetail, error) {
	detail, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, loadFailure(err, "asset")
	}
	return detail, nil
}

func (s *AssetService) observe(entity string, action workflow.Action) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(entity, string(action))
	}
}
