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
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/hris-api/internal/dto"
	"github.com/noah-isme/hris-api/internal/models"
	"github.com/noah-isme/hris-api/internal/repository"
	"github.com/noah-isme/hris-api/internal/workflow"
	appErrors "github.com/noah-isme/hris-api/pkg/errors"
	"github.com/noah-isme/hris-api/pkg/storage"
)

// Audit actions recorded for PANs.
const (
	AuditPANCreate      = "PAN_CREATE"
	AuditPANUpdate      = "PAN_UPDATE"
	AuditPANSubmit      = "PAN_SUBMIT"
	AuditPANStepApprove = "PAN_STEP_APPROVE"
	AuditPANStepDecline = "PAN_STEP_DECLINE"
	AuditPANRouted      = "PAN_ROUTING_COMPLETE"
	AuditPANAcknowledge = "PAN_ACKNOWLEDGE"
)

const effectiveDateLayout = "2006-01-02"

type panStore interface {
	CreateDraft(ctx context.Context, pan *models.PAN, steps []models.PANRoutingStep, events []models.OutboxEvent) error
	UpdateDraft(ctx context.Context, pan *models.PAN, steps []models.PANRoutingStep) error
	Get(ctx context.Context, id string) (*models.PANDetail, error)
	List(ctx context.Context, filter models.PANFilter) ([]models.PAN, int, error)
	Transition(ctx context.Context, t repository.Transition, events []models.OutboxEvent) error
	ApproveStep(ctx context.Context, d repository.StepDecision, stepEvents, advanceEvents []models.OutboxEvent) (bool, error)
	DeclineStep(ctx context.Context, d repository.StepDecision, events []models.OutboxEvent) error
	Acknowledge(ctx context.Context, t repository.Transition, events []models.OutboxEvent) error
}

// PANService drives personnel action notices through their routing.
type PANService struct {
	repo        panStore
	employees   employeeLookup
	users       userLookup
	attachments attachmentLookup
	metrics     TransitionObserver
	validator   *validator.Validate
	logger      *zap.Logger
	sequential  bool
	now         func() time.Time
}

// PANServiceOption configures the service.
type PANServiceOption func(*PANService)

// WithSequentialRouting requires routing steps to be approved in step order.
func WithSequentialRouting(enabled bool) PANServiceOption {
	return func(s *PANService) {
		s.sequential = enabled
	}
}

// WithPANMetrics records committed transitions.
func WithPANMetrics(m TransitionObserver) PANServiceOption {
	return func(s *PANService) {
		s.metrics = m
	}
}

// WithPANClock overrides the time source.
func WithPANClock(now func() time.Time) PANServiceOption {
	return func(s *PANService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewPANService constructs the service.
func NewPANService(repo panStore, employees employeeLookup, users userLookup, attachments attachmentLookup, validate *validator.Validate, logger *zap.Logger, opts ...PANServiceOption) *PANService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &PANService{
		repo:        repo,
		employees:   employees,
		users:       users,
		attachments: attachments,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// CreateDraft stores a new DRAFT PAN for an employee.
func (s *PANService) CreateDraft(ctx context.Context, req dto.CreatePANRequest, actor *models.JWTClaims) (*models.PANDetail, error) {
	if !hasRole(actor, models.RoleHR) {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid PAN payload")
	}
	employee, err := s.employees.FindByID(ctx, req.EmployeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown employee")
		}
		return nil, loadFailure(err, "employee")
	}
	if derefString(employee.UserID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "employee has no user account to acknowledge the PAN")
	}
	pan := &models.PAN{
		ID:             uuid.NewString(),
		EmployeeID:     employee.ID,
		EmployeeUserID: employee.UserID,
		EmployeeName:   employee.FullName(),
		CreatedBy:      actor.UserID,
	}
	if err := applyPANFields(pan, req.ActionType, req.EffectiveDate, req.CurrentDetails, req.ProposedDetails, req.Remarks); err != nil {
		return nil, err
	}
	steps, err := s.buildRouting(ctx, req.Routing)
	if err != nil {
		return nil, err
	}
	events, err := outboxEvent(actor, AuditPANCreate, models.EntityPAN, pan.ID,
		map[string]interface{}{"employee_id": employee.ID, "action_type": pan.ActionType}, nil)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateDraft(ctx, pan, steps, events); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create PAN")
	}
	return &models.PANDetail{PAN: *pan, Steps: steps}, nil
}

// UpdateDraft rewrites a PAN that has not been submitted yet.
func (s *PANService) UpdateDraft(ctx context.Context, id string, req dto.UpdatePANRequest, actor *models.JWTClaims) (*models.PANDetail, error) {
	if !hasRole(actor, models.RoleHR) {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid PAN payload")
	}
	detail, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, loadFailure(err, "PAN")
	}
	if err := workflow.PANs.Require(workflow.PANUpdateDraft, detail.Status); err != nil {
		return nil, transitionFailure(err, "PAN")
	}
	pan := detail.PAN
	if err := applyPANFields(&pan, req.ActionType, req.EffectiveDate, req.CurrentDetails, req.ProposedDetails, req.Remarks); err != nil {
		return nil, err
	}
	var steps []models.PANRoutingStep
	if req.Routing != nil {
		if steps, err = s.buildRouting(ctx, req.Routing); err != nil {
			return nil, err
		}
	}
	if err := s.repo.UpdateDraft(ctx, &pan, steps); err != nil {
		return nil, transitionFailure(err, "PAN")
	}
	return s.reload(ctx, id)
}

func applyPANFields(pan *models.PAN, action models.PANActionType, effective string, current, proposed json.RawMessage, remarks string) error {
	if !action.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown action type "+string(action))
	}
	date, err := time.Parse(effectiveDateLayout, effective)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "effective_date must be YYYY-MM-DD")
	}
	cur, err := detailsJSON(current)
	if err != nil {
		return err
	}
	prop, err := detailsJSON(proposed)
	if err != nil {
		return err
	}
	pan.ActionType = action
	pan.EffectiveDate = date
	pan.CurrentDetails = cur
	pan.ProposedDetails = prop
	pan.Remarks = strings.TrimSpace(remarks)
	return nil
}

func detailsJSON(raw json.RawMessage) (types.JSONText, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return types.JSONText(`{}`), nil
	}
	if !json.Valid(raw) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "details must be valid JSON")
	}
	return types.JSONText(raw), nil
}

// buildRouting validates the routing definition and resolves signatory names.
func (s *PANService) buildRouting(ctx context.Context, input []dto.RoutingStepInput) ([]models.PANRoutingStep, error) {
	steps := make([]models.PANRoutingStep, 0, len(input))
	ids := make([]string, 0, len(input))
	for _, in := range input {
		steps = append(steps, models.PANRoutingStep{
			ID:        uuid.NewString(),
			StepOrder: in.Order,
			Role:      in.Role,
			UserID:    in.UserID,
			Status:    models.StepStatusPending,
		})
		ids = append(ids, in.UserID)
	}
	if err := workflow.ValidateRouting(steps); err != nil {
		return nil, validationFailure(err)
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve signatories")
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		if u.Active {
			names[u.ID] = u.FullName
		}
	}
	for i := range steps {
		name, ok := names[steps[i].UserID]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "signatory "+steps[i].UserID+" is not an active user")
		}
		steps[i].UserName = name
	}
	return steps, nil
}

// Submit sends a DRAFT into routing and notifies every approving signatory.
func (s *PANService) Submit(ctx context.Context, id string, actor *models.JWTClaims) (*models.PANDetail, error) {
	if !hasRole(actor, models.RoleHR) {
		return nil, appErrors.ErrForbidden
	}
	detail, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, loadFailure(err, "PAN")
	}
	if err := workflow.PANs.Check(workflow.PANSubmit, detail.Status, models.PANStatusPendingApproval); err != nil {
		return nil, transitionFailure(err, "PAN")
	}
	if derefString(detail.EmployeeUserID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "employee has no user account to acknowledge the PAN")
	}
	notes := drafts(workflow.ApproverIDs(detail.Steps), "PAN awaiting your signature",
		string(detail.ActionType)+" notice for "+detail.EmployeeName+" needs your approval")
	events, err := outboxEvent(actor, AuditPANSubmit, models.EntityPAN, id, map[string]interface{}{"from": detail.Status}, notes)
	if err != nil {
		return nil, err
	}
	now := s.now()
	t := repository.Transition{
		ID:   id,
		From: string(detail.Status),
		To:   string(models.PANStatusPendingApproval),
		Set:  map[string]interface{}{"submitted_at": now, "updated_at": now},
	}
	if err := s.repo.Transition(ctx, t, events); err != nil {
		return nil, transitionFailure(err, "PAN")
	}
	s.observe(workflow.PANSubmit)
	return s.reload(ctx, id)
}

// ApproveStep records the actor's approval on their routing step. Once every
// non-acknowledger step is approved the PAN moves to PENDING_EMPLOYEE.
func (s *PANService) ApproveStep(ctx context.Context, panID, stepID string, body dto.StepDecisionRequest, actor *models.JWTClaims) (*models.PANDetail, error) {
	detail, step, err := s.loadStep(ctx, panID, stepID, body, actor)
	if err != nil {
		return nil, err
	}
	if err := workflow.PANs.Require(workflow.PANApproveStep, detail.Status); err != nil {
		return nil, transitionFailure(err, "PAN")
	}
	if err := workflow.CanActOnStep(detail.Steps, *step, s.sequential); err != nil {
		return nil, stepFailure(err)
	}

	remarks := optionalRemarks(body.Remarks)
	stepEvents, err := outboxEvent(actor, AuditPANStepApprove, models.EntityPAN, panID,
		map[string]interface{}{"step_id": step.ID, "step_order": step.StepOrder, "role": step.Role, "remarks": derefString(remarks)},
		drafts([]string{detail.CreatedBy}, "PAN step approved", step.UserName+" approved the "+string(detail.ActionType)+" notice for "+detail.EmployeeName))
	if err != nil {
		return nil, err
	}
	advanceEvents, err := outboxEvent(actor, AuditPANRouted, models.EntityPAN, panID,
		map[string]interface{}{"from": models.PANStatusPendingApproval, "to": models.PANStatusPendingEmployee},
		drafts([]string{derefString(detail.EmployeeUserID)}, "PAN ready for acknowledgement",
			"Your "+string(detail.ActionType)+" notice is ready for your acknowledgement"))
	if err != nil {
		return nil, err
	}
	decision := repository.StepDecision{PANID: panID, StepID: step.ID, Remarks: remarks, ActedAt: s.now()}
	advanced, err := s.repo.ApproveStep(ctx, decision, stepEvents, advanceEvents)
	if err != nil {
		return nil, transitionFailure(err, "PAN step")
	}
	s.observe(workflow.PANApproveStep)
	if advanced {
		s.logger.Info("pan routing complete", zap.String("pan_id", panID))
	}
	return s.reload(ctx, panID)
}

// DeclineStep declines the PAN on the actor's routing step. Remarks are required.
func (s *PANService) DeclineStep(ctx context.Context, panID, stepID string, body dto.StepDecisionRequest, actor *models.JWTClaims) (*models.PANDetail, error) {
	remarks := optionalRemarks(body.Remarks)
	if remarks == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "remarks are required when declining")
	}
	detail, step, err := s.loadStep(ctx, panID, stepID, body, actor)
	if err != nil {
		return nil, err
	}
	if err := workflow.PANs.Check(workflow.PANDeclineStep, detail.Status, models.PANStatusDeclined); err != nil {
		return nil, transitionFailure(err, "PAN")
	}
	if step.Role == models.RoutingRoleAcknowledger {
		return nil, stepFailure(workflow.ErrAcknowledgerStep)
	}
	if err := workflow.Steps.Require(workflow.StepDecline, step.Status); err != nil {
		return nil, transitionFailure(err, "PAN step")
	}
	events, err := outboxEvent(actor, AuditPANStepDecline, models.EntityPAN, panID,
		map[string]interface{}{"step_id": step.ID, "step_order": step.StepOrder, "remarks": *remarks},
		drafts([]string{detail.CreatedBy, derefString(detail.EmployeeUserID)}, "PAN declined",
			step.UserName+" declined the "+string(detail.ActionType)+" notice for "+detail.EmployeeName+": "+*remarks))
	if err != nil {
		return nil, err
	}
	decision := repository.StepDecision{PANID: panID, StepID: step.ID, Remarks: remarks, ActedAt: s.now()}
	if err := s.repo.DeclineStep(ctx, decision, events); err != nil {
		return nil, transitionFailure(err, "PAN step")
	}
	s.observe(workflow.PANDeclineStep)
	return s.reload(ctx, panID)
}

func (s *PANService) loadStep(ctx context.Context, panID, stepID string, body dto.StepDecisionRequest, actor *models.JWTClaims) (*models.PANDetail, *models.PANRoutingStep, error) {
	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}
	if err := s.validator.Struct(body); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	detail, err := s.repo.Get(ctx, panID)
	if err != nil {
		return nil, nil, loadFailure(err, "PAN")
	}
	for i := range detail.Steps {
		if detail.Steps[i].ID != stepID {
			continue
		}
		if detail.Steps[i].UserID != actor.UserID {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "this routing step is assigned to another signatory")
		}
		return detail, &detail.Steps[i], nil
	}
	return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "routing step not found")
}

func stepFailure(err error) error {
	switch {
	case errors.Is(err, workflow.ErrStepOutOfOrder):
		return appErrors.Wrap(err, appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, err.Error())
	case errors.Is(err, workflow.ErrAcknowledgerStep):
		return validationFailure(err)
	}
	return transitionFailure(err, "PAN step")
}

func optionalRemarks(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// Acknowledge completes a PAN with the employee's typed name and optional
// signature image.
func (s *PANService) Acknowledge(ctx context.Context, id string, body dto.AcknowledgePANRequest, actor *models.JWTClaims) (*models.PANDetail, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(body); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "acknowledged name is required")
	}
	detail, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, loadFailure(err, "PAN")
	}
	if derefString(detail.EmployeeUserID) != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the subject employee may acknowledge")
	}
	if err := workflow.PANs.Check(workflow.PANAcknowledge, detail.Status, models.PANStatusCompleted); err != nil {
		return nil, transitionFailure(err, "PAN")
	}
	now := s.now()
	name := strings.TrimSpace(body.AcknowledgedName)
	set := map[string]interface{}{
		"acknowledged_name": name,
		"completed_at":      now,
		"updated_at":        now,
	}
	if body.SignatureID != "" {
		signature, err := s.signature(ctx, body.SignatureID, actor)
		if err != nil {
			return nil, err
		}
		set["signature_path"] = signature.FilePath
	}
	recipientIDs := append([]string{detail.CreatedBy}, workflow.ApproverIDs(detail.Steps)...)
	events, err := outboxEvent(actor, AuditPANAcknowledge, models.EntityPAN, id,
		map[string]interface{}{"acknowledged_name": name, "signature_attachment_id": body.SignatureID},
		drafts(recipientIDs, "PAN acknowledged", detail.EmployeeName+" acknowledged the "+string(detail.ActionType)+" notice"))
	if err != nil {
		return nil, err
	}
	t := repository.Transition{ID: id, From: string(detail.Status), To: string(models.PANStatusCompleted), Set: set}
	if err := s.repo.Acknowledge(ctx, t, events); err != nil {
		return nil, transitionFailure(err, "PAN")
	}
	s.observe(workflow.PANAcknowledge)
	return s.reload(ctx, id)
}

func (s *PANService) signature(ctx context.Context, attachmentID string, actor *models.JWTClaims) (*models.Attachment, error) {
	if s.attachments == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "signature uploads are not configured")
	}
	att, err := s.attachments.Get(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "signature attachment not found")
		}
		return nil, loadFailure(err, "attachment")
	}
	if att.Bucket != storage.BucketSignatures || att.UploadedBy != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "signature must be an image you uploaded to the signatures bucket")
	}
	return att, nil
}

// Get returns a PAN visible to actor: HR, the subject employee, or a signatory.
func (s *PANService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.PANDetail, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	detail, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, loadFailure(err, "PAN")
	}
	if !canViewPAN(detail, actor) {
		return nil, appErrors.ErrForbidden
	}
	return detail, nil
}

func canViewPAN(detail *models.PANDetail, actor *models.JWTClaims) bool {
	if hasRole(actor, models.RoleHR) || derefString(detail.EmployeeUserID) == actor.UserID {
		return true
	}
	for _, step := range detail.Steps {
		if step.UserID == actor.UserID {
			return true
		}
	}
	return false
}

// List returns PANs within the requested scope.
func (s *PANService) List(ctx context.Context, query dto.PANQuery, actor *models.JWTClaims) ([]models.PAN, *models.Pagination, error) {
	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}
	filter := models.PANFilter{Status: query.Status, Page: query.Page, PageSize: query.PageSize}
	scope := query.Scope
	if scope == "" {
		if hasRole(actor, models.RoleHR) {
			scope = dto.ScopeAll
		} else {
			scope = dto.ScopeApprovals
		}
	}
	switch scope {
	case dto.ScopeAll:
		if !hasRole(actor, models.RoleHR) {
			return nil, nil, appErrors.ErrForbidden
		}
	case dto.ScopeApprovals:
		filter.ApproverUserID = actor.UserID
	case dto.ScopeMine:
		filter.EmployeeUserID = actor.UserID
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown scope "+scope)
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list PANs")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	pagination.Normalize()
	return items, pagination, nil
}

func (s *PANService) reload(ctx context.Context, id string) (*models.PANDetail, error) {
	detail, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, loadFailure(err, "PAN")
	}
	return detail, nil
}

func (s *PANService) observe(action workflow.Action) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(models.EntityPAN, string(action))
	}
}
