package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hris-api/internal/models"
	"github.com/noah-isme/hris-api/pkg/database"
)

const ticketColumns = `id, requester_id, requester_user_id, requester_name, category, subject, description, priority,
       status, assignee_user_id, resolution, created_at, resolved_at, closed_at, updated_at`

// HelpdeskRepository persists HR helpdesk tickets.
type HelpdeskRepository struct {
	db *sqlx.DB
}

// NewHelpdeskRepository constructs the repository.
func NewHelpdeskRepository(db *sqlx.DB) *HelpdeskRepository {
	return &HelpdeskRepository{db: db}
}

// Create inserts a ticket in OPEN status.
func (r *HelpdeskRepository) Create(ctx context.Context, t *models.HelpdeskTicket, events []models.OutboxEvent) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	t.Status = models.TicketStatusOpen
	if t.Priority == "" {
		t.Priority = models.TicketPriorityNormal
	}
	const query = `INSERT INTO helpdesk_tickets (id, requester_id, requester_user_id, requester_name, category, subject,
description, priority, status, created_at, updated_at)
VALUES (:id, :requester_id, :requester_user_id, :requester_name, :category, :subject, :description, :priority,
:status, :created_at, :updated_at)`
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, query, t); err != nil {
			return fmt.Errorf("create ticket: %w", err)
		}
		return insertOutbox(ctx, tx, events)
	})
}

// Get fetches a ticket.
func (r *HelpdeskRepository) Get(ctx context.Context, id string) (*models.HelpdeskTicket, error) {
	var t models.HelpdeskTicket
	if err := r.db.GetContext(ctx, &t, `SELECT `+ticketColumns+` FROM helpdesk_tickets WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns tickets matching filter and the total count. High priority
// tickets sort first.
func (r *HelpdeskRepository) List(ctx context.Context, filter models.TicketFilter) ([]models.HelpdeskTicket, int, error) {
	args := make([]interface{}, 0, 3)
	conditions := make([]string, 0, 3)
	if len(filter.Status) > 0 {
		conditions = append(conditions, inClause("status", filter.Status, &args))
	}
	if filter.RequesterUserID != "" {
		args = append(args, filter.RequesterUserID)
		conditions = append(conditions, fmt.Sprintf("requester_user_id = $%d", len(args)))
	}
	if filter.AssigneeUserID != "" {
		args = append(args, filter.AssigneeUserID)
		conditions = append(conditions, fmt.Sprintf("assignee_user_id = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s FROM helpdesk_tickets%s
ORDER BY CASE priority WHEN 'HIGH' THEN 0 WHEN 'NORMAL' THEN 1 ELSE 2 END, created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, where, limit, offset)
	var tickets []models.HelpdeskTicket
	if err := r.db.SelectContext(ctx, &tickets, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list tickets: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM helpdesk_tickets`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count tickets: %w", err)
	}
	return tickets, total, nil
}

// Transition applies a compare-and-swap on the ticket status.
func (r *HelpdeskRepository) Transition(ctx context.Context, t Transition, events []models.OutboxEvent) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := compareAndSwap(ctx, tx, "helpdesk_tickets", t); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, events)
	})
}
