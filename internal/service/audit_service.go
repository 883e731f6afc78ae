package service

import (
	"context"
	"time"

	"github.com/noah-isme/hris-api/internal/models"
	appErrors "github.com/noah-isme/hris-api/pkg/errors"
)

type auditStore interface {
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error)
}

// AuditService reads the append-only audit trail.
type AuditService struct {
	repo auditStore
}

// NewAuditService constructs the service.
func NewAuditService(repo auditStore) *AuditService {
	return &AuditService{repo: repo}
}

// List returns audit entries matching filter. Only HR and superadmins may read the trail.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter, actor *models.JWTClaims) ([]models.AuditLog, *models.Pagination, error) {
	if !hasRole(actor, models.RoleHR) {
		return nil, nil, appErrors.ErrForbidden
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	if filter.To != nil {
		end := filter.To.Add(24*time.Hour - time.Nanosecond)
		if filter.To.Equal(filter.To.Truncate(24 * time.Hour)) {
			filter.To = &end
		}
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	if items == nil {
		items = []models.AuditLog{}
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	pagination.Normalize()
	return items, pagination, nil
}
