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

// Audit actions recorded for helpdesk tickets.
const (
	AuditTicketCreate  = "TICKET_CREATE"
	AuditTicketAssign  = "TICKET_ASSIGN"
	AuditTicketResolve = "TICKET_RESOLVE"
	AuditTicketClose   = "TICKET_CLOSE"
	AuditTicketReopen  = "TICKET_REOPEN"
)

type ticketStore interface {
	Create(ctx context.Context, t *models.HelpdeskTicket, events []models.OutboxEvent) error
	Get(ctx context.Context, id string) (*models.HelpdeskTicket, error)
	List(ctx context.Context, filter models.TicketFilter) ([]models.HelpdeskTicket, int, error)
	Transition(ctx context.Context, t repository.Transition, events []models.OutboxEvent) error
}

type helpdeskDirectory interface {
	roleDirectory
	userLookup
}

// HelpdeskService handles employee inquiries routed to HR.
type HelpdeskService struct {
	repo      ticketStore
	employees employeeLookup
	directory helpdeskDirectory
	metrics   TransitionObserver
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// HelpdeskServiceOption configures the service.
type HelpdeskServiceOption func(*HelpdeskService)

// WithHelpdeskMetrics records committed transitions.
func WithHelpdeskMetrics(m TransitionObserver) HelpdeskServiceOption {
	return func(s *HelpdeskService) {
		s.metrics = m
	}
}

// NewHelpdeskService constructs the service.
func NewHelpdeskService(repo ticketStore, employees employeeLookup, directory helpdeskDirectory, validate *validator.Validate, logger *zap.Logger, opts ...HelpdeskServiceOption) *HelpdeskService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &HelpdeskService{
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

// Create files a ticket and notifies the HR pool.
func (s *HelpdeskService) Create(ctx context.Context, req dto.CreateTicketRequest, actor *models.JWTClaims) (*models.HelpdeskTicket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ticket payload")
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
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve HR pool")
	}
	ticket := &models.HelpdeskTicket{
		ID:              uuid.NewString(),
		RequesterID:     employee.ID,
		RequesterUserID: actor.UserID,
		RequesterName:   employee.FullName(),
		Category:        strings.TrimSpace(req.Category),
		Subject:         strings.TrimSpace(req.Subject),
		Description:     strings.TrimSpace(req.Description),
		Priority:        req.Priority,
	}
	events, err := outboxEvent(actor, AuditTicketCreate, models.EntityTicket, ticket.ID,
		map[string]interface{}{"category": ticket.Category, "subject": ticket.Subject},
		drafts(hrPool, "New helpdesk ticket", ticket.RequesterName+": "+ticket.Subject))
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, ticket, events); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create ticket")
	}
	return ticket, nil
}

// Get returns a ticket to its requester, its assignee or HR.
func (s *HelpdeskService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.HelpdeskTicket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	ticket, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, loadFailure(err, "ticket")
	}
	if ticket.RequesterUserID != actor.UserID && derefString(ticket.AssigneeUserID) != actor.UserID && !hasRole(actor, models.RoleHR) {
		return nil, appErrors.ErrForbidden
	}
	return ticket, nil
}

// List returns tickets in scope: HR sees all, others their own.
func (s *HelpdeskService) List(ctx context.Context, query dto.TicketQuery, actor *models.JWTClaims) ([]models.HelpdeskTicket, *models.Pagination, error) {
	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}
	filter := models.TicketFilter{Status: query.Status, Page: query.Page, PageSize: query.PageSize}
	scope := query.Scope
	if scope == "" {
		scope = dto.ScopeMine
		if hasRole(actor, models.RoleHR) {
			scope = dto.ScopeAll
		}
	}
	switch scope {
	case dto.ScopeMine:
		filter.RequesterUserID = actor.UserID
	case dto.ScopeAssigned:
		filter.AssigneeUserID = actor.UserID
	case dto.ScopeAll:
		if !hasRole(actor, models.RoleHR) {
			return nil, nil, appErrors.ErrForbidden
		}
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown scope "+scope)
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tickets")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	pagination.Normalize()
	return items, pagination, nil
}

// Assign gives an OPEN ticket to an HR handler, the caller by default.
func (s *HelpdeskService) Assign(ctx context.Context, id string, req dto.AssignTicketRequest, actor *models.JWTClaims) (*models.HelpdeskTicket, error) {
	if !hasRole(actor, models.RoleHR) {
		return nil, appErrors.ErrForbidden
	}
	assignee := strings.TrimSpace(req.AssigneeUserID)
	if assignee == "" {
		assignee = actor.UserID
	} else if err := s.ensureHandler(ctx, assignee); err != nil {
		return nil, err
	}
	ticket, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, loadFailure(err, "ticket")
	}
	notes := drafts([]string{ticket.RequesterUserID}, "Ticket in progress", "Your ticket \""+ticket.Subject+"\" is being handled")
	if assignee != actor.UserID {
		notes = append(notes, drafts([]string{assignee}, "Ticket assigned to you", ticket.RequesterName+": "+ticket.Subject)...)
	}
	set := map[string]interface{}{"assignee_user_id": assignee}
	return s.transition(ctx, ticket, workflow.TicketAssign, models.TicketStatusInProgress, set, actor, AuditTicketAssign,
		map[string]interface{}{"assignee_user_id": assignee}, notes)
}

func (s *HelpdeskService) ensureHandler(ctx context.Context, userID string) error {
	users, err := s.directory.FindByIDs(ctx, []string{userID})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignee")
	}
	for _, u := range users {
		if u.ID == userID && u.Active && (u.Role == models.RoleHR || u.Role == models.RoleSuperAdmin) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrValidation, "assignee must be an active HR user")
}

// Resolve records the resolution on an OPEN or IN_PROGRESS ticket.
func (s *HelpdeskService) Resolve(ctx context.Context, id string, req dto.ResolveTicketRequest, actor *models.JWTClaims) (*models.HelpdeskTicket, error) {
	if !hasRole(actor, models.RoleHR) {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "a resolution is required")
	}
	ticket, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, loadFailure(err, "ticket")
	}
	resolution := strings.TrimSpace(req.Resolution)
	set := map[string]interface{}{"resolution": resolution, "resolved_at": s.now()}
	if ticket.AssigneeUserID == nil {
		set["assignee_user_id"] = actor.UserID
	}
	notes := drafts([]string{ticket.RequesterUserID}, "Ticket resolved", "Your ticket \""+ticket.Subject+"\" was resolved: "+resolution)
	return s.transition(ctx, ticket, workflow.TicketResolve, models.TicketStatusResolved, set, actor, AuditTicketResolve,
		map[string]interface{}{"resolution": resolution}, notes)
}

// Close confirms a RESOLVED ticket on behalf of its requester.
func (s *HelpdeskService) Close(ctx context.Context, id string, actor *models.JWTClaims) (*models.HelpdeskTicket, error) {
	ticket, err := s.requesterTicket(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	notes := drafts([]string{derefString(ticket.AssigneeUserID)}, "Ticket closed", ticket.RequesterName+" closed \""+ticket.Subject+"\"")
	return s.transition(ctx, ticket, workflow.TicketClose, models.TicketStatusClosed, map[string]interface{}{"closed_at": s.now()},
		actor, AuditTicketClose, nil, notes)
}

// Reopen sends a RESOLVED ticket back to OPEN.
func (s *HelpdeskService) Reopen(ctx context.Context, id string, actor *models.JWTClaims) (*models.HelpdeskTicket, error) {
	ticket, err := s.requesterTicket(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	notes := drafts([]string{derefString(ticket.AssigneeUserID)}, "Ticket reopened", ticket.RequesterName+" reopened \""+ticket.Subject+"\"")
	set := map[string]interface{}{"resolved_at": nil, "resolution": nil}
	return s.transition(ctx, ticket, workflow.TicketReopen, models.TicketStatusOpen, set, actor, AuditTicketReopen, nil, notes)
}

func (s *HelpdeskService) requesterTicket(ctx context.Context, id string, actor *models.JWTClaims) (*models.HelpdeskTicket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	ticket, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, loadFailure(err, "ticket")
	}
	if ticket.RequesterUserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the requester may do this")
	}
	return ticket, nil
}

func (s *HelpdeskService) transition(ctx context.Context, ticket *models.HelpdeskTicket, action workflow.Action, to models.TicketStatus,
	set map[string]interface{}, actor *models.JWTClaims, auditAction string, details map[string]interface{}, notes []models.NotificationDraft) (*models.HelpdeskTicket, error) {
	if err := workflow.Tickets.Check(action, ticket.Status, to); err != nil {
		return nil, transitionFailure(err, "ticket")
	}
	if details == nil {
		details = map[string]interface{}{}
	}
	details["from"] = ticket.Status
	details["to"] = to
	events, err := outboxEvent(actor, auditAction, models.EntityTicket, ticket.ID, details, notes)
	if err != nil {
		return nil, err
	}
	set["updated_at"] = s.now()
	t := repository.Transition{ID: ticket.ID, From: string(ticket.Status), To: string(to), Set: set}
	if err := s.repo.Transition(ctx, t, events); err != nil {
		return nil, transitionFailure(err, "ticket")
	}
	if s.metrics != nil {
		s.metrics.ObserveTransition(models.EntityTicket, string(action))
	}
	updated, err := s.repo.Get(ctx, ticket.ID)
	if err != nil {
		return nil, loadFailure(err, "ticket")
	}
	return updated, nil
}
