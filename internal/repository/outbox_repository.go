package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hris-api/internal/models"
	"github.com/noah-isme/hris-api/pkg/database"
)

const outboxColumns = `id, aggregate, aggregate_id, event_type, payload, created_at, processed_at, attempts, last_error, failed_at, next_attempt_at`

// OutboxRepository reads and settles outbox events.
type OutboxRepository struct {
	db *sqlx.DB
}

// NewOutboxRepository constructs the repository.
func NewOutboxRepository(db *sqlx.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// FetchPending returns up to limit unprocessed, non-failed events that are due,
// oldest first.
func (r *OutboxRepository) FetchPending(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + outboxColumns + ` FROM outbox_events
WHERE processed_at IS NULL AND failed_at IS NULL AND next_attempt_at <= NOW()
ORDER BY created_at ASC LIMIT $1`
	var events []models.OutboxEvent
	if err := r.db.SelectContext(ctx, &events, query, limit); err != nil {
		return nil, fmt.Errorf("fetch outbox events: %w", err)
	}
	return events, nil
}

// Apply writes the audit entry and notifications derived from an event and
// marks it processed, all in one transaction. It returns false without
// writing anything when another dispatcher holds or already settled the event.
func (r *OutboxRepository) Apply(ctx context.Context, eventID string, audit *models.AuditLog, notifications []models.Notification) (bool, error) {
	applied := false
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var id string
		const lockQuery = `SELECT id FROM outbox_events WHERE id = $1 AND processed_at IS NULL AND failed_at IS NULL
FOR UPDATE SKIP LOCKED`
		if err := tx.GetContext(ctx, &id, lockQuery, eventID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("lock outbox event: %w", err)
		}

		if audit != nil {
			if err := insertAuditLog(ctx, tx, audit); err != nil {
				return err
			}
		}
		for i := range notifications {
			if err := insertNotification(ctx, tx, &notifications[i]); err != nil {
				return err
			}
		}

		const doneQuery = `UPDATE outbox_events SET processed_at = $1, attempts = attempts + 1, last_error = NULL WHERE id = $2`
		if _, err := tx.ExecContext(ctx, doneQuery, time.Now().UTC(), eventID); err != nil {
			return fmt.Errorf("mark outbox event processed: %w", err)
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// MarkFailed records a failed attempt and holds the event back until retryAt.
// Once attempts reach maxAttempts the event is parked with failed_at set and
// is no longer fetched.
func (r *OutboxRepository) MarkFailed(ctx context.Context, eventID, reason string, maxAttempts int, retryAt time.Time) error {
	const query = `UPDATE outbox_events SET attempts = attempts + 1, last_error = $1,
failed_at = CASE WHEN attempts + 1 >= $2 THEN $3 ELSE NULL END, next_attempt_at = $4
WHERE id = $5 AND processed_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, reason, maxAttempts, time.Now().UTC(), retryAt.UTC(), eventID); err != nil {
		return fmt.Errorf("mark outbox event failed: %w", err)
	}
	return nil
}

// Stats counts pending and parked events.
func (r *OutboxRepository) Stats(ctx context.Context) (models.OutboxStats, error) {
	const query = `SELECT
COUNT(*) FILTER (WHERE processed_at IS NULL AND failed_at IS NULL) AS pending,
COUNT(*) FILTER (WHERE failed_at IS NOT NULL AND processed_at IS NULL) AS failed
FROM outbox_events`
	var stats models.OutboxStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return stats, fmt.Errorf("outbox stats: %w", err)
	}
	return stats, nil
}

// ListFailed returns parked events, newest first.
func (r *OutboxRepository) ListFailed(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + outboxColumns + ` FROM outbox_events
WHERE failed_at IS NOT NULL AND processed_at IS NULL ORDER BY failed_at DESC LIMIT $1`
	var events []models.OutboxEvent
	if err := r.db.SelectContext(ctx, &events, query, limit); err != nil {
		return nil, fmt.Errorf("list failed outbox events: %w", err)
	}
	return events, nil
}

// Retry re-queues a parked event with a fresh attempt budget.
func (r *OutboxRepository) Retry(ctx context.Context, eventID string) error {
	const query = `UPDATE outbox_events SET failed_at = NULL, attempts = 0, last_error = NULL, next_attempt_at = NOW()
WHERE id = $1 AND failed_at IS NOT NULL AND processed_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, eventID)
	if err != nil {
		return fmt.Errorf("retry outbox event: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const insertAuditQuery = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at)
VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`

func insertAuditLog(ctx context.Context, ext sqlx.ExtContext, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	if _, err := sqlx.NamedExecContext(ctx, ext, insertAuditQuery, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

const insertNotificationQuery = `INSERT INTO notifications (id, user_id, title, message, entity, related_entity_id, is_read, created_at)
VALUES (:id, :user_id, :title, :message, :entity, :related_entity_id, :is_read, :created_at)`

func insertNotification(ctx context.Context, ext sqlx.ExtContext, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if _, err := sqlx.NamedExecContext(ctx, ext, insertNotificationQuery, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}
