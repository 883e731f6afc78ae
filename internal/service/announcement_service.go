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
	appErrors "github.com/noah-isme/hris-api/pkg/errors"
)

type announcementRepository interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error)
	GetByID(ctx context.Context, id string) (*models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement) error
	Update(ctx context.Context, announcement *models.Announcement) error
	Delete(ctx context.Context, id string) error
}

type departmentLookup interface {
	FindByUserID(ctx context.Context, userID string) (*models.Employee, error)
}

// roleAudiences maps a reader's role to the role-targeted audiences they see.
var roleAudiences = map[models.UserRole][]models.AnnouncementAudience{
	models.RoleHR:      {models.AnnouncementAudienceHR},
	models.RoleBoard:   {models.AnnouncementAudienceBoard},
	models.RoleManager: {models.AnnouncementAudienceManagers},
}

// AnnouncementService handles company announcements.
type AnnouncementService struct {
	repo      announcementRepository
	employees departmentLookup
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAnnouncementService constructs the service.
func NewAnnouncementService(repo announcementRepository, employees departmentLookup, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AnnouncementService{repo: repo, employees: employees, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
	_ = svc.validator.RegisterValidation("audience", func(fl validator.FieldLevel) bool {
		switch models.AnnouncementAudience(strings.ToUpper(fl.Field().String())) {
		case models.AnnouncementAudienceAll, models.AnnouncementAudienceHR, models.AnnouncementAudienceBoard,
			models.AnnouncementAudienceManagers, models.AnnouncementAudienceDepartment:
			return true
		default:
			return false
		}
	})
	_ = svc.validator.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		switch models.AnnouncementPriority(strings.ToUpper(fl.Field().String())) {
		case models.AnnouncementPriorityLow, models.AnnouncementPriorityNormal, models.AnnouncementPriorityHigh:
			return true
		default:
			return false
		}
	})
	return svc
}

// List returns the announcements currently visible to actor, pinned first.
// With manage set, HR sees every active announcement regardless of audience.
func (s *AnnouncementService) List(ctx context.Context, actor *models.JWTClaims, manage bool, page, pageSize int) ([]models.Announcement, *models.Pagination, error) {
	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}
	filter := models.AnnouncementFilter{ActiveAt: s.now(), Page: page, PageSize: pageSize}
	switch {
	case manage:
		if !hasRole(actor, models.RoleHR) {
			return nil, nil, appErrors.ErrForbidden
		}
		filter.Unrestricted = true
	case actor.Role == models.RoleSuperAdmin:
		filter.Unrestricted = true
	default:
		filter.Audiences = roleAudiences[actor.Role]
		if s.employees != nil {
			emp, err := s.employees.FindByUserID(ctx, actor.UserID)
			if err == nil && emp.Department != "" {
				filter.Departments = []string{emp.Department}
			} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
				s.logger.Warn("failed to resolve reader department", zap.String("user_id", actor.UserID), zap.Error(err))
			}
		}
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	pagination.Normalize()
	return rows, pagination, nil
}

// Get returns an announcement by id.
func (s *AnnouncementService) Get(ctx context.Context, id string) (*models.Announcement, error) {
	ann, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get announcement")
	}
	return ann, nil
}

// Create publishes a new announcement. HR only.
func (s *AnnouncementService) Create(ctx context.Context, req dto.AnnouncementRequest, actor *models.JWTClaims) (*models.Announcement, error) {
	if !hasRole(actor, models.RoleHR) {
		return nil, appErrors.ErrForbidden
	}
	announcement := &models.Announcement{ID: uuid.NewString(), CreatedBy: actor.UserID}
	if err := s.apply(announcement, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}
	return announcement, nil
}

// Update replaces an announcement. HR only.
func (s *AnnouncementService) Update(ctx context.Context, id string, req dto.AnnouncementRequest, actor *models.JWTClaims) (*models.Announcement, error) {
	if !hasRole(actor, models.RoleHR) {
		return nil, appErrors.ErrForbidden
	}
	announcement, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(announcement, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update announcement")
	}
	return announcement, nil
}

// Delete removes an announcement. HR only.
func (s *AnnouncementService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if !hasRole(actor, models.RoleHR) {
		return appErrors.ErrForbidden
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcement")
	}
	return nil
}

func (s *AnnouncementService) apply(a *models.Announcement, req dto.AnnouncementRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	audience := models.AnnouncementAudience(strings.ToUpper(req.Audience))
	var target *string
	if audience == models.AnnouncementAudienceDepartment {
		if req.TargetDepartment == nil || strings.TrimSpace(*req.TargetDepartment) == "" {
			return appErrors.Clone(appErrors.ErrValidation, "target_department is required for DEPARTMENT announcements")
		}
		target = strPtr(strings.TrimSpace(*req.TargetDepartment))
	}
	publishedAt := s.now()
	if req.PublishedAt != nil {
		publishedAt = req.PublishedAt.UTC()
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(publishedAt) {
		return appErrors.Clone(appErrors.ErrValidation, "expires_at must be after published_at")
	}
	priority := models.AnnouncementPriority(strings.ToUpper(req.Priority))
	if priority == "" {
		priority = models.AnnouncementPriorityNormal
	}

	a.Title = strings.TrimSpace(req.Title)
	a.Content = req.Content
	a.Audience = audience
	a.TargetDepartment = target
	a.Priority = priority
	a.IsPinned = req.IsPinned
	a.PublishedAt = publishedAt
	a.ExpiresAt = req.ExpiresAt
	return nil
}
