package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/hris-api/internal/models"
	"github.com/noah-isme/hris-api/pkg/cache"
	appErrors "github.com/noah-isme/hris-api/pkg/errors"
)

type notificationStore interface {
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string, at time.Time) error
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error)
}

// NotificationService exposes a user's in-app notifications. Rows are only
// written by the outbox dispatcher; this service reads them and flips is_read.
type NotificationService struct {
	repo     notificationStore
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewNotificationService constructs the service. The unread counter is cached
// for ttl when cacheSvc is enabled.
func NewNotificationService(repo notificationStore, cacheSvc *CacheService, ttl time.Duration, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		repo:     repo,
		cache:    cacheSvc,
		cacheTTL: ttl,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func unreadKey(userID string) string {
	return cache.Key("notifications", "unread", userID)
}

// List returns the actor's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, actor *models.JWTClaims, unreadOnly bool, page, pageSize int) ([]models.Notification, *models.Pagination, error) {
	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}
	filter := models.NotificationFilter{UserID: actor.UserID, UnreadOnly: unreadOnly, Page: page, PageSize: pageSize}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	if items == nil {
		items = []models.Notification{}
	}
	pagination := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
	pagination.Normalize()
	return items, pagination, nil
}

// UnreadCount returns how many of the actor's notifications are unread and
// whether the value came from cache.
func (s *NotificationService) UnreadCount(ctx context.Context, actor *models.JWTClaims) (int, bool, error) {
	if err := requireActor(actor); err != nil {
		return 0, false, err
	}
	key := unreadKey(actor.UserID)
	var count int
	if hit, _ := s.cache.Get(ctx, key, &count); hit {
		return count, true, nil
	}
	count, err := s.repo.CountUnread(ctx, actor.UserID)
	if err != nil {
		return 0, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	_ = s.cache.Set(ctx, key, count, s.cacheTTL)
	return count, false, nil
}

// MarkRead flags one of the actor's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id string, actor *models.JWTClaims) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if err := s.repo.MarkRead(ctx, id, actor.UserID, s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notification")
	}
	s.InvalidateUnread(ctx, actor.UserID)
	return nil
}

// MarkAllRead flags every unread notification of the actor and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, actor *models.JWTClaims) (int64, error) {
	if err := requireActor(actor); err != nil {
		return 0, err
	}
	n, err := s.repo.MarkAllRead(ctx, actor.UserID, s.now())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notifications")
	}
	s.InvalidateUnread(ctx, actor.UserID)
	return n, nil
}

// InvalidateUnread drops cached unread counters for userIDs.
func (s *NotificationService) InvalidateUnread(ctx context.Context, userIDs ...string) {
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		if err := s.cache.Invalidate(ctx, unreadKey(id)); err != nil {
			s.logger.Debug("unread counter invalidation failed", zap.String("user_id", id), zap.Error(err))
		}
	}
}
