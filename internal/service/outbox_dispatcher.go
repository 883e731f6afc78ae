package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/noah-isme/hris-api/internal/models"
	"github.com/noah-isme/hris-api/internal/repository"
	"github.com/noah-isme/hris-api/pkg/config"
	"github.com/noah-isme/hris-api/pkg/jobs"
	"github.com/noah-isme/hris-api/pkg/telemetry"
)

// Outbox event results reported to metrics.
const (
	OutboxProcessed = "processed"
	OutboxRetry     = "retry"
	OutboxFailed    = "failed"
	OutboxSkipped   = "skipped"
)

type outboxStore interface {
	FetchPending(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	Apply(ctx context.Context, eventID string, audit *models.AuditLog, notifications []models.Notification) (bool, error)
	MarkFailed(ctx context.Context, eventID, reason string, maxAttempts int, retryAt time.Time) error
	Stats(ctx context.Context) (models.OutboxStats, error)
}

type outboxMetrics interface {
	ObserveOutboxEvent(result string)
	SetOutboxBacklog(stats models.OutboxStats)
}

type unreadInvalidator interface {
	InvalidateUnread(ctx context.Context, userIDs ...string)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type contactDirectory interface {
	ListContacts(ctx context.Context, ids []string) ([]repository.UserContact, error)
}

// OutboxDispatcher turns committed outbox events into audit entries and
// notifications.
type OutboxDispatcher struct {
	repo     outboxStore
	cfg      config.OutboxConfig
	metrics  outboxMetrics
	unread   unreadInvalidator
	contacts contactDirectory
	mail     jobDispatcher
	logger   *zap.Logger
	now      func() time.Time
}

// DispatcherOption configures the dispatcher.
type DispatcherOption func(*OutboxDispatcher)

// WithDispatcherMetrics reports event results and backlog size.
func WithDispatcherMetrics(m outboxMetrics) DispatcherOption {
	return func(d *OutboxDispatcher) {
		d.metrics = m
	}
}

// WithUnreadInvalidation drops cached unread counters of notified users.
func WithUnreadInvalidation(u unreadInvalidator) DispatcherOption {
	return func(d *OutboxDispatcher) {
		d.unread = u
	}
}

// WithEmailFanout enqueues one email job per notified user with an address.
func WithEmailFanout(contacts contactDirectory, queue jobDispatcher) DispatcherOption {
	return func(d *OutboxDispatcher) {
		d.contacts = contacts
		d.mail = queue
	}
}

// NewOutboxDispatcher constructs a dispatcher.
func NewOutboxDispatcher(repo outboxStore, cfg config.OutboxConfig, logger *zap.Logger, opts ...DispatcherOption) *OutboxDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 5 * time.Second
	}
	d := &OutboxDispatcher{
		repo:   repo,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "outbox")),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Run polls until ctx is cancelled. A full batch that settled at least one
// event is followed immediately by the next poll.
func (d *OutboxDispatcher) Run(ctx context.Context) {
	d.logger.Info("outbox dispatcher started", zap.Duration("interval", d.cfg.PollInterval), zap.Int("batch", d.cfg.BatchSize))
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	for {
		for {
			fetched, settled, err := d.dispatch(ctx)
			if err != nil {
				d.logger.Sugar().Warnw("outbox batch failed", "error", err)
			}
			if err != nil || fetched < d.cfg.BatchSize || settled == 0 || ctx.Err() != nil {
				break
			}
		}
		select {
		case <-ctx.Done():
			d.logger.Info("outbox dispatcher stopped")
			return
		case <-ticker.C:
		}
	}
}

// DispatchOnce processes one batch and returns how many events it fetched.
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) (int, error) {
	fetched, _, err := d.dispatch(ctx)
	return fetched, err
}

// dispatch reports how many events were fetched and how many of them left the
// pending set for good (processed, skipped or parked).
func (d *OutboxDispatcher) dispatch(ctx context.Context) (int, int, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "outbox.dispatch")
	defer span.End()

	events, err := d.repo.FetchPending(ctx, d.cfg.BatchSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return 0, 0, err
	}
	span.SetAttributes(attribute.Int("outbox.batch_size", len(events)))

	var settled atomic.Int64
	work := make(chan models.OutboxEvent)
	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Workers && i < len(events); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ev := range work {
				result := d.handle(ctx, ev)
				if result != OutboxRetry {
					settled.Add(1)
				}
				d.observe(result)
			}
		}()
	}
	for _, ev := range events {
		work <- ev
	}
	close(work)
	wg.Wait()

	if d.metrics != nil {
		if stats, err := d.repo.Stats(ctx); err == nil {
			d.metrics.SetOutboxBacklog(stats)
		}
	}
	span.SetAttributes(attribute.Int64("outbox.settled", settled.Load()))
	return len(events), int(settled.Load()), nil
}

func (d *OutboxDispatcher) handle(ctx context.Context, ev models.OutboxEvent) string {
	var payload models.EventPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		// malformed payloads never succeed; park on the first attempt
		d.fail(ctx, ev, fmt.Sprintf("decode payload: %v", err), 1)
		return OutboxFailed
	}

	audit, notifications, err := d.materialise(ev, payload)
	if err != nil {
		d.fail(ctx, ev, err.Error(), 1)
		return OutboxFailed
	}

	applied, err := d.repo.Apply(ctx, ev.ID, audit, notifications)
	if err != nil {
		d.fail(ctx, ev, err.Error(), d.cfg.MaxAttempts)
		if ev.Attempts+1 >= d.cfg.MaxAttempts {
			return OutboxFailed
		}
		return OutboxRetry
	}
	if !applied {
		return OutboxSkipped
	}

	userIDs := make([]string, 0, len(notifications))
	for _, n := range notifications {
		userIDs = append(userIDs, n.UserID)
	}
	if d.unread != nil && len(userIDs) > 0 {
		d.unread.InvalidateUnread(ctx, userIDs...)
	}
	d.fanOut(ctx, notifications)
	return OutboxProcessed
}

func (d *OutboxDispatcher) materialise(ev models.OutboxEvent, payload models.EventPayload) (*models.AuditLog, []models.Notification, error) {
	details := []byte("{}")
	if len(payload.Details) > 0 {
		raw, err := json.Marshal(payload.Details)
		if err != nil {
			return nil, nil, fmt.Errorf("encode details: %w", err)
		}
		details = raw
	}
	entityID := payload.EntityID
	audit := &models.AuditLog{
		ID:         uuid.NewString(),
		UserID:     payload.ActorID,
		Action:     payload.Action,
		Resource:   payload.Entity,
		ResourceID: &entityID,
		NewValues:  details,
		CreatedAt:  ev.CreatedAt,
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = d.now()
	}

	notifications := make([]models.Notification, 0, len(payload.Notifications))
	for _, draft := range payload.Notifications {
		if draft.UserID == "" {
			continue
		}
		related := entityID
		notifications = append(notifications, models.Notification{
			ID:              uuid.NewString(),
			UserID:          draft.UserID,
			Title:           draft.Title,
			Message:         draft.Message,
			Entity:          payload.Entity,
			RelatedEntityID: &related,
			CreatedAt:       d.now(),
		})
	}
	return audit, notifications, nil
}

// fail records the attempt and delays the next one by RetryBackoff times the
// attempt number.
func (d *OutboxDispatcher) fail(ctx context.Context, ev models.OutboxEvent, reason string, maxAttempts int) {
	attempt := ev.Attempts + 1
	retryAt := d.now().Add(d.cfg.RetryBackoff * time.Duration(attempt))
	d.logger.Warn("outbox event failed",
		zap.String("event_id", ev.ID),
		zap.String("event_type", ev.EventType),
		zap.Int("attempt", attempt),
		zap.Time("retry_at", retryAt),
		zap.String("reason", reason),
	)
	if err := d.repo.MarkFailed(ctx, ev.ID, reason, maxAttempts, retryAt); err != nil {
		d.logger.Error("record outbox failure", zap.String("event_id", ev.ID), zap.Error(err))
	}
}

// fanOut is best effort: email problems never fail the event.
func (d *OutboxDispatcher) fanOut(ctx context.Context, notifications []models.Notification) {
	if d.mail == nil || d.contacts == nil || len(notifications) == 0 {
		return
	}
	ids := make([]string, 0, len(notifications))
	for _, n := range notifications {
		ids = append(ids, n.UserID)
	}
	contacts, err := d.contacts.ListContacts(ctx, ids)
	if err != nil {
		d.logger.Sugar().Warnw("load notification contacts", "error", err)
		return
	}
	byID := make(map[string]repository.UserContact, len(contacts))
	for _, c := range contacts {
		byID[c.ID] = c
	}
	for _, n := range notifications {
		contact, ok := byID[n.UserID]
		if !ok || contact.Email == "" {
			continue
		}
		job := jobs.Job{
			ID:      n.ID,
			Type:    JobTypeNotificationEmail,
			Payload: NotificationEmail{To: contact.Email, Name: contact.FullName, Title: n.Title, Message: n.Message},
		}
		if err := d.mail.Enqueue(job); err != nil {
			d.logger.Sugar().Warnw("enqueue notification email", "notification_id", n.ID, "error", err)
		}
	}
}

func (d *OutboxDispatcher) observe(result string) {
	if d.metrics != nil {
		d.metrics.ObserveOutboxEvent(result)
	}
}
