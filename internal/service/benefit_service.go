package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/hris-api/internal/dto"
	"github.com/noah-isme/hris-api/internal/models"
	"github.com/noah-isme/hris-api/internal/repository"
	"github.com/noah-isme/hris-api/internal/workflow"
	"github.com/noah-isme/hris-api/pkg/cache"
	appErrors "github.com/noah-isme/hris-api/pkg/errors"
)

// Audit actions recorded for benefit requests.
const (
	AuditBenefitSubmit     = "BENEFIT_SUBMIT"
	AuditBenefitHRApprove  = "BENEFIT_HR_APPROVE"
	AuditBenefitBODApprove = "BENEFIT_BOD_APPROVE"
	AuditBenefitReject     = "BENEFIT_REJECT"
	AuditBenefitCancel     = "BENEFIT_CANCEL"
	AuditBenefitFulfill    = "BENEFIT_FULFILL"
)

type benefitStore interface {
	CreateType(ctx context.Context, bt *models.BenefitType) error
	UpdateType(ctx context.Context, bt *models.BenefitType) error
	GetType(ctx context.Context, id string) (*models.BenefitType, error)
	ListTypes(ctx context.Context, activeOnly bool) ([]models.BenefitType, error)
	CreateRequest(ctx context.Context, req *models.BenefitRequest, events []models.OutboxEvent) error
	GetRequest(ctx context.Context, id string) (*models.BenefitRequest, error)
	ListRequests(ctx context.Context, filter models.BenefitRequestFilter) ([]models.BenefitRequest, int, error)
	ListRequestsForExport(ctx context.Context, filter models.BenefitRequestFilter) ([]models.BenefitRequest, error)
	TransitionRequest(ctx context.Context, t repository.Transition, events []models.OutboxEvent) error
}

type benefitDirectory interface {
	roleDirectory
	userLookup
}

// BenefitService runs the benefit request approval workflow.
type BenefitService struct {
	repo      benefitStore
	employees employeeLookup
	users     benefitDirectory
	cache     *CacheService
	cacheTTL  time.Duration
	metrics   TransitionObserver
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// BenefitServiceOption configures the service.
type BenefitServiceOption func(*BenefitService)

// WithBenefitTypeCache caches the benefit type catalog.
func WithBenefitTypeCache(c *CacheService, ttl time.Duration) BenefitServiceOption {
	return func(s *BenefitService) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithBenefitMetrics records committed transitions.
func WithBenefitMetrics(m TransitionObserver) BenefitServiceOption {
	return func(s *BenefitService) {
		s.metrics = m
	}
}

// WithBenefitClock overrides the time source.
func WithBenefitClock(now func() time.Time) BenefitServiceOption {
	return func(s *BenefitService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewBenefitService constructs the service.
func NewBenefitService(repo benefitStore, employees employeeLookup, users benefitDirectory, validate *validator.Validate, logger *zap.Logger, opts ...BenefitServiceOption) *BenefitService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &BenefitService{
		repo:      repo,
		employees: employees,
		users:     users,
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

func benefitTypesKey(activeOnly bool) string {
	if activeOnly {
		return cache.Key("benefit-types", "active")
	}
	return cache.Key("benefit-types", "all")
}

// ListTypes returns the benefit catalog, served from cache when possible.
func (s *BenefitService) ListTypes(ctx context.Context, activeOnly bool) ([]models.BenefitType, error) {
	key := benefitTypesKey(activeOnly)
	var cached []models.BenefitType
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}
	types, err := s.repo.ListTypes(ctx, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list benefit types")
	}
	if types == nil {
		types = []models.BenefitType{}
	}
	_ = s.cache.Set(ctx, key, types, s.cacheTTL)
	return types, nil
}

// GetType returns one benefit type.
func (s *BenefitService) GetType(ctx context.Context, id string) (*models.BenefitType, error) {
	bt, err := s.repo.GetType(ctx, id)
	if err != nil {
		return nil, loadFailure(err, "benefit type")
	}
	return bt, nil
}

// CreateType adds a benefit type to the catalog.
func (s *BenefitService) CreateType(ctx context.Context, req dto.CreateBenefitTypeRequest, actor *models.JWTClaims) (*models.BenefitType, error) {
	if !hasRole(actor, models.RoleHR) {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid benefit type payload")
	}
	bt := &models.BenefitType{
		Name:                strings.TrimSpace(req.Name),
		Description:         req.Description,
		MaxValue:            req.MaxValue,
		RequiresBODApproval: req.RequiresBODApproval,
		Active:              req.Active == nil || *req.Active,
	}
	if err := s.repo.CreateType(ctx, bt); err != nil {
		return nil, transitionFailure(err, "benefit type")
	}
	s.invalidateTypes(ctx)
	return bt, nil
}

// UpdateType patches a benefit type. Existing requests keep the snapshot of
// the type name they were filed under.
func (s *BenefitService) UpdateType(ctx context.Context, id string, req dto.UpdateBenefitTypeRequest, actor *models.JWTClaims) (*models.BenefitType, error) {
	if !hasRole(actor, models.RoleHR) {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid benefit type payload")
	}
	bt, err := s.repo.GetType(ctx, id)
	if err != nil {
		return nil, loadFailure(err, "benefit type")
	}
	if req.Name != nil {
		bt.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		bt.Description = *req.Description
	}
	if req.MaxValue != nil {
		bt.MaxValue = *req.MaxValue
	}
	if req.RequiresBODApproval != nil {
		bt.RequiresBODApproval = *req.RequiresBODApproval
	}
	if req.Active != nil {
		bt.Active = *req.Active
	}
	if err := s.repo.UpdateType(ctx, bt); err != nil {
		return nil, transitionFailure(err, "benefit type")
	}
	s.invalidateTypes(ctx)
	return bt, nil
}

func (s *BenefitService) invalidateTypes(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, cache.Key("benefit-types", "*")); err != nil {
		s.logger.Warn("benefit type cache invalidation failed", zap.Error(err))
	}
}

// Submit files a new benefit request in PENDING_HR. The amount guard runs
// before any write, so an over-limit request leaves no row behind.
func (s *BenefitService) Submit(ctx context.Context, req dto.SubmitBenefitRequest, actor *models.JWTClaims) (*models.BenefitRequest, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid benefit request payload")
	}
	employee, err := s.employees.FindByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no employee record is linked to this account")
		}
		return nil, loadFailure(err, "employee")
	}
	bt, err := s.repo.GetType(ctx, req.BenefitTypeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown benefit type")
		}
		return nil, loadFailure(err, "benefit type")
	}
	if err := workflow.ValidateBenefitAmount(req.Amount, *bt); err != nil {
		var limitErr *workflow.LimitError
		if errors.As(err, &limitErr) {
			return nil, appErrors.Wrap(err, appErrors.ErrLimitExceeded.Code, appErrors.ErrLimitExceeded.Status, err.Error())
		}
		return nil, validationFailure(err)
	}

	request := &models.BenefitRequest{
		BenefitTypeID:   bt.ID,
		BenefitTypeName: bt.Name,
		RequesterID:     employee.ID,
		RequesterUserID: actor.UserID,
		RequesterName:   employee.FullName(),
		Amount:          req.Amount,
		Justification:   strings.TrimSpace(req.Justification),
		Status:          models.BenefitStatusPendingHR,
		SubmissionDate:  s.now(),
		BoardMemberIDs:  pq.StringArray{},
	}
	request.ID = uuid.NewString()

	hrPool, err := s.users.ListIDsByRole(ctx, models.RoleHR)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve HR reviewers")
	}
	events, err := outboxEvent(actor, AuditBenefitSubmit, models.EntityBenefitRequest, request.ID,
		map[string]interface{}{"benefit_type": bt.Name, "amount": req.Amount},
		drafts(hrPool, "New benefit request", request.RequesterName+" requested "+bt.Name))
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateRequest(ctx, request, events); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create benefit request")
	}
	s.observe(workflow.BenefitSubmit)
	return request, nil
}

// Get returns a request visible to actor: the requester, HR, or a selected board member.
func (s *BenefitService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.BenefitRequest, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	req, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return nil, loadFailure(err, "benefit request")
	}
	if !canViewBenefit(req, actor) {
		return nil, appErrors.ErrForbidden
	}
	return req, nil
}

func canViewBenefit(req *models.BenefitRequest, actor *models.JWTClaims) bool {
	switch {
	case req.RequesterUserID == actor.UserID:
		return true
	case hasRole(actor, models.RoleHR):
		return true
	case actor.Role == models.RoleBoard && req.HasBoardMember(actor.UserID):
		return true
	}
	return false
}

// List returns requests within the scope the actor may see.
func (s *BenefitService) List(ctx context.Context, query dto.BenefitRequestQuery, actor *models.JWTClaims) ([]models.BenefitRequest, *models.Pagination, error) {
	filter, err := benefitFilter(query, actor)
	if err != nil {
		return nil, nil, err
	}
	items, total, err := s.repo.ListRequests(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list benefit requests")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	pagination.Normalize()
	return items, pagination, nil
}

func benefitFilter(query dto.BenefitRequestQuery, actor *models.JWTClaims) (models.BenefitRequestFilter, error) {
	if err := requireActor(actor); err != nil {
		return models.BenefitRequestFilter{}, err
	}
	filter := models.BenefitRequestFilter{
		Status:        query.Status,
		BenefitTypeID: query.BenefitTypeID,
		Page:          query.Page,
		PageSize:      query.PageSize,
	}
	scope := query.Scope
	if scope == "" {
		switch {
		case hasRole(actor, models.RoleHR):
			scope = dto.ScopeAll
		case actor.Role == models.RoleBoard:
			scope = dto.ScopeBoard
		default:
			scope = dto.ScopeMine
		}
	}
	switch scope {
	case dto.ScopeMine:
		filter.RequesterUserID = actor.UserID
	case dto.ScopeBoard:
		if actor.Role != models.RoleBoard {
			return filter, appErrors.ErrForbidden
		}
		filter.BoardMemberID = actor.UserID
	case dto.ScopeAll:
		if !hasRole(actor, models.RoleHR) {
			return filter, appErrors.ErrForbidden
		}
	default:
		return filter, appErrors.Clone(appErrors.ErrValidation, "unknown scope "+scope)
	}
	return filter, nil
}

// HRApprove endorses a PENDING_HR request. Types that need board approval
// move to PENDING_BOD with the selected board members; others are APPROVED.
func (s *BenefitService) HRApprove(ctx context.Context, id string, body dto.HRApproveBenefitRequest, actor *models.JWTClaims) (*models.BenefitRequest, error) {
	if !hasRole(actor, models.RoleHR) {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(body); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid approval payload")
	}
	req, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return nil, loadFailure(err, "benefit request")
	}
	if err := workflow.Benefits.Require(workflow.BenefitHRApprove, req.Status); err != nil {
		return nil, transitionFailure(err, "benefit request")
	}
	bt, err := s.repo.GetType(ctx, req.BenefitTypeID)
	if err != nil {
		return nil, loadFailure(err, "benefit type")
	}
	board, err := workflow.NormalizeBoardSelection(*bt, body.BoardMemberIDs)
	if err != nil {
		return nil, validationFailure(err)
	}
	if err := s.ensureBoardMembers(ctx, board); err != nil {
		return nil, err
	}

	now := s.now()
	target := workflow.HRApprovalTarget(*bt)
	set := map[string]interface{}{
		"hr_endorsed_by": actor.UserID,
		"hr_endorsed_at": now,
	}
	var notes []models.NotificationDraft
	if target == models.BenefitStatusPendingBOD {
		set["board_member_ids"] = pq.StringArray(board)
		notes = drafts(board, "Benefit request awaiting board approval",
			req.RequesterName+"'s "+req.BenefitTypeName+" request needs your approval")
	} else {
		hrPool, err := s.users.ListIDsByRole(ctx, models.RoleHR)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve HR pool")
		}
		notes = append(drafts([]string{req.RequesterUserID}, "Benefit request approved",
			"Your "+req.BenefitTypeName+" request was approved"),
			drafts(hrPool, "Benefit ready for fulfillment", req.RequesterName+"'s "+req.BenefitTypeName+" request is ready for fulfillment")...)
	}
	details := map[string]interface{}{"from": req.Status, "to": target}
	if body.Remarks != "" {
		details["remarks"] = body.Remarks
	}
	if len(board) > 0 {
		details["board_member_ids"] = board
	}
	return s.transition(ctx, req, workflow.BenefitHRApprove, target, set, actor, AuditBenefitHRApprove, details, notes)
}

func (s *BenefitService) ensureBoardMembers(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load board members")
	}
	valid := make(map[string]bool, len(users))
	for _, u := range users {
		valid[u.ID] = u.Active && u.Role == models.RoleBoard
	}
	for _, id := range ids {
		if !valid[id] {
			return appErrors.Clone(appErrors.ErrValidation, "user "+id+" is not an active board member")
		}
	}
	return nil
}

// BODApprove is the board decision on a PENDING_BOD request. Only a selected
// board member (or a superadmin) may approve.
func (s *BenefitService) BODApprove(ctx context.Context, id string, actor *models.JWTClaims) (*models.BenefitRequest, error) {
	if !hasRole(actor, models.RoleBoard) {
		return nil, appErrors.ErrForbidden
	}
	req, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return nil, loadFailure(err, "benefit request")
	}
	if actor.Role != models.RoleSuperAdmin && !req.HasBoardMember(actor.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you were not selected to review this request")
	}
	hrPool, err := s.users.ListIDsByRole(ctx, models.RoleHR)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve HR pool")
	}
	notes := append(drafts([]string{req.RequesterUserID}, "Benefit request approved",
		"Your "+req.BenefitTypeName+" request was approved by the board"),
		drafts(hrPool, "Benefit ready for fulfillment", req.RequesterName+"'s "+req.BenefitTypeName+" request is ready for fulfillment")...)
	set := map[string]interface{}{
		"bod_approved_by": actor.UserID,
		"bod_approved_at": s.now(),
	}
	return s.transition(ctx, req, workflow.BenefitBODApprove, models.BenefitStatusApproved, set, actor, AuditBenefitBODApprove,
		map[string]interface{}{"from": req.Status, "to": models.BenefitStatusApproved}, notes)
}

// Reject closes a pending request. HR rejects PENDING_HR; the selected board
// rejects PENDING_BOD.
func (s *BenefitService) Reject(ctx context.Context, id string, body dto.RejectBenefitRequest, actor *models.JWTClaims) (*models.BenefitRequest, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(body); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "a rejection reason is required")
	}
	req, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return nil, loadFailure(err, "benefit request")
	}
	if err := workflow.Benefits.Require(workflow.BenefitReject, req.Status); err != nil {
		return nil, transitionFailure(err, "benefit request")
	}
	reviewer := workflow.RejectionReviewer(req.Status)
	if !hasRole(actor, reviewer) {
		return nil, appErrors.ErrForbidden
	}
	if actor.Role == models.RoleBoard && !req.HasBoardMember(actor.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you were not selected to review this request")
	}
	reason := strings.TrimSpace(body.Reason)
	set := map[string]interface{}{
		"rejection_reason": reason,
		"rejected_by":      actor.UserID,
		"rejected_at":      s.now(),
	}
	notes := drafts([]string{req.RequesterUserID}, "Benefit request rejected",
		"Your "+req.BenefitTypeName+" request was rejected: "+reason)
	return s.transition(ctx, req, workflow.BenefitReject, models.BenefitStatusRejected, set, actor, AuditBenefitReject,
		map[string]interface{}{"from": req.Status, "reason": reason}, notes)
}

// Cancel withdraws a pending request on behalf of its requester.
func (s *BenefitService) Cancel(ctx context.Context, id string, actor *models.JWTClaims) (*models.BenefitRequest, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	req, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return nil, loadFailure(err, "benefit request")
	}
	if req.RequesterUserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the requester may cancel")
	}
	// whoever currently holds the request hears that it was withdrawn
	var approvers []string
	switch req.Status {
	case models.BenefitStatusPendingBOD:
		approvers = []string(req.BoardMemberIDs)
	case models.BenefitStatusPendingHR:
		approvers, err = s.users.ListIDsByRole(ctx, models.RoleHR)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve HR pool")
		}
	}
	notes := drafts(approvers, "Benefit request withdrawn",
		req.RequesterName+" withdrew the "+req.BenefitTypeName+" request")
	set := map[string]interface{}{"cancelled_at": s.now()}
	return s.transition(ctx, req, workflow.BenefitCancel, models.BenefitStatusCancelled, set, actor, AuditBenefitCancel,
		map[string]interface{}{"from": req.Status}, notes)
}

// Fulfill records the voucher handed over for an APPROVED request.
func (s *BenefitService) Fulfill(ctx context.Context, id string, body dto.FulfillBenefitRequest, actor *models.JWTClaims) (*models.BenefitRequest, error) {
	if !hasRole(actor, models.RoleHR) {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(body); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "a voucher code is required")
	}
	req, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return nil, loadFailure(err, "benefit request")
	}
	voucher := strings.TrimSpace(body.VoucherCode)
	set := map[string]interface{}{
		"voucher_code": voucher,
		"fulfilled_by": actor.UserID,
		"fulfilled_at": s.now(),
	}
	notes := drafts([]string{req.RequesterUserID}, "Benefit fulfilled",
		"Your "+req.BenefitTypeName+" request was fulfilled. Voucher: "+voucher)
	return s.transition(ctx, req, workflow.BenefitFulfill, models.BenefitStatusFulfilled, set, actor, AuditBenefitFulfill,
		map[string]interface{}{"voucher_code": voucher}, notes)
}

// transition validates the move, applies it with a compare-and-swap and
// returns the request as stored afterwards.
func (s *BenefitService) transition(ctx context.Context, req *models.BenefitRequest, action workflow.Action, to models.BenefitStatus,
	set map[string]interface{}, actor *models.JWTClaims, auditAction string, details map[string]interface{}, notes []models.NotificationDraft) (*models.BenefitRequest, error) {
	if err := workflow.Benefits.Check(action, req.Status, to); err != nil {
		return nil, transitionFailure(err, "benefit request")
	}
	events, err := outboxEvent(actor, auditAction, models.EntityBenefitRequest, req.ID, details, notes)
	if err != nil {
		return nil, err
	}
	set["updated_at"] = s.now()
	t := repository.Transition{ID: req.ID, From: string(req.Status), To: string(to), Set: set}
	if err := s.repo.TransitionRequest(ctx, t, events); err != nil {
		return nil, transitionFailure(err, "benefit request")
	}
	s.observe(action)

	updated, err := s.repo.GetRequest(ctx, req.ID)
	if err != nil {
		s.logger.Warn("reload benefit request after transition failed", zap.String("id", req.ID), zap.Error(err))
		req.Status = to
		return req, nil
	}
	return updated, nil
}

func (s *BenefitService) observe(action workflow.Action) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(models.EntityBenefitRequest, string(action))
	}
}
