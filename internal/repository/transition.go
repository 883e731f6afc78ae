package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hris-api/internal/models"
)

// Transition is a compare-and-swap status update: the row is only written when
// it still holds From. Set carries the bookkeeping columns written alongside.
type Transition struct {
	ID   string
	From string
	To   string
	Set  map[string]interface{}
}

// compareAndSwap applies t to table inside tx. It returns sql.ErrNoRows when
// the row is missing or no longer in t.From.
func compareAndSwap(ctx context.Context, tx *sqlx.Tx, table string, t Transition) error {
	args := []interface{}{t.To}
	setParts := []string{"status = $1"}

	keys := make([]string, 0, len(t.Set))
	for key := range t.Set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		args = append(args, t.Set[key])
		setParts = append(setParts, fmt.Sprintf("%s = $%d", key, len(args)))
	}

	args = append(args, t.ID, t.From)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d AND status = $%d",
		table, strings.Join(setParts, ", "), len(args)-1, len(args))

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s status: %w", table, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s update rows: %w", table, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// NewOutboxEvent marshals payload into an event row for entity/id.
func NewOutboxEvent(eventType string, payload models.EventPayload) (models.OutboxEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return models.OutboxEvent{}, fmt.Errorf("marshal outbox payload: %w", err)
	}
	return models.OutboxEvent{
		ID:          uuid.NewString(),
		Aggregate:   payload.Entity,
		AggregateID: payload.EntityID,
		EventType:   eventType,
		Payload:     raw,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

const insertOutboxQuery = `INSERT INTO outbox_events (id, aggregate, aggregate_id, event_type, payload, created_at)
VALUES (:id, :aggregate, :aggregate_id, :event_type, :payload, :created_at)`

func insertOutbox(ctx context.Context, tx *sqlx.Tx, events []models.OutboxEvent) error {
	for i := range events {
		if events[i].ID == "" {
			events[i].ID = uuid.NewString()
		}
		if events[i].CreatedAt.IsZero() {
			events[i].CreatedAt = time.Now().UTC()
		}
		if _, err := tx.NamedExecContext(ctx, insertOutboxQuery, events[i]); err != nil {
			return fmt.Errorf("insert outbox event: %w", err)
		}
	}
	return nil
}

// pageBounds normalises page/pageSize into LIMIT and OFFSET.
func pageBounds(page, pageSize int) (limit, offset int) {
	p := models.Pagination{Page: page, PageSize: pageSize}
	offset = p.Normalize()
	return p.PageSize, offset
}

// inClause appends values to args and returns "col IN ($n,...)".
func inClause[S ~string](column string, values []S, args *[]interface{}) string {
	placeholders := make([]string, len(values))
	for i, v := range values {
		*args = append(*args, string(v))
		placeholders[i] = fmt.Sprintf("$%d", len(*args))
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ","))
}
