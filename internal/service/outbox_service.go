package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/noah-isme/hris-api/internal/models"
	appErrors "github.com/noah-isme/hris-api/pkg/errors"
)

type outboxAdminStore interface {
	Stats(ctx context.Context) (models.OutboxStats, error)
	ListFailed(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	Retry(ctx context.Context, eventID string) error
}

// OutboxService lets operators inspect and re-queue parked outbox events.
type OutboxService struct {
	repo outboxAdminStore
}

// NewOutboxService constructs the service.
func NewOutboxService(repo outboxAdminStore) *OutboxService {
	return &OutboxService{repo: repo}
}

// Stats reports pending and parked event counts.
func (s *OutboxService) Stats(ctx context.Context, actor *models.JWTClaims) (models.OutboxStats, error) {
	if !hasRole(actor, models.RoleHR) {
		return models.OutboxStats{}, appErrors.ErrForbidden
	}
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return stats, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load outbox stats")
	}
	return stats, nil
}

// Failed lists parked events, newest first. SUPERADMIN only.
func (s *OutboxService) Failed(ctx context.Context, limit int, actor *models.JWTClaims) ([]models.OutboxEvent, error) {
	if !hasRole(actor) {
		return nil, appErrors.ErrForbidden
	}
	events, err := s.repo.ListFailed(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list outbox events")
	}
	if events == nil {
		events = []models.OutboxEvent{}
	}
	return events, nil
}

// Retry gives a parked event a fresh attempt budget. SUPERADMIN only.
func (s *OutboxService) Retry(ctx context.Context, id string, actor *models.JWTClaims) error {
	if !hasRole(actor) {
		return appErrors.ErrForbidden
	}
	if err := s.repo.Retry(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "no parked outbox event with that id")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to retry outbox event")
	}
	return nil
}
