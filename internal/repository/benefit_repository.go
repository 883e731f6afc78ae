package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hris-api/internal/models"
	"github.com/noah-isme/hris-api/pkg/database"
)

const benefitTypeColumns = `id, name, description, max_value, requires_bod_approval, active, created_at, updated_at`

const benefitRequestColumns = `id, benefit_type_id, benefit_type_name, requester_id, requester_user_id, requester_name,
       amount, justification, status, submission_date, board_member_ids, hr_endorsed_by, hr_endorsed_at,
       bod_approved_by, bod_approved_at, fulfilled_by, fulfilled_at, voucher_code, rejection_reason,
       rejected_by, rejected_at, cancelled_at, updated_at`

// BenefitRepository persists benefit types and benefit requests.
type BenefitRepository struct {
	db *sqlx.DB
}

// NewBenefitRepository constructs the repository.
func NewBenefitRepository(db *sqlx.DB) *BenefitRepository {
	return &BenefitRepository{db: db}
}

// CreateType inserts a benefit type.
func (r *BenefitRepository) CreateType(ctx context.Context, bt *models.BenefitType) error {
	if bt.ID == "" {
		bt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	bt.CreatedAt, bt.UpdatedAt = now, now
	const query = `INSERT INTO benefit_types (` + benefitTypeColumns + `)
VALUES (:id, :name, :description, :max_value, :requires_bod_approval, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, bt); err != nil {
		return fmt.Errorf("create benefit type: %w", err)
	}
	return nil
}

// UpdateType rewrites the mutable benefit type columns.
func (r *BenefitRepository) UpdateType(ctx context.Context, bt *models.BenefitType) error {
	bt.UpdatedAt = time.Now().UTC()
	const query = `UPDATE benefit_types SET name = :name, description = :description, max_value = :max_value,
requires_bod_approval = :requires_bod_approval, active = :active, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, bt)
	if err != nil {
		return fmt.Errorf("update benefit type: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpsertTypeByName inserts or refreshes a catalog entry keyed by name.
func (r *BenefitRepository) UpsertTypeByName(ctx context.Context, bt *models.BenefitType) error {
	if bt.ID == "" {
		bt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	bt.CreatedAt, bt.UpdatedAt = now, now
	const query = `INSERT INTO benefit_types (` + benefitTypeColumns + `)
VALUES (:id, :name, :description, :max_value, :requires_bod_approval, :active, :created_at, :updated_at)
ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description, max_value = EXCLUDED.max_value,
requires_bod_approval = EXCLUDED.requires_bod_approval, active = EXCLUDED.active, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, bt); err != nil {
		return fmt.Errorf("upsert benefit type: %w", err)
	}
	return nil
}

// GetType fetches a benefit type by id.
func (r *BenefitRepository) GetType(ctx context.Context, id string) (*models.BenefitType, error) {
	const query = `SELECT ` + benefitTypeColumns + ` FROM benefit_types WHERE id = $1`
	var bt models.BenefitType
	if err := r.db.GetContext(ctx, &bt, query, id); err != nil {
		return nil, err
	}
	return &bt, nil
}

// ListTypes returns the catalog ordered by name.
func (r *BenefitRepository) ListTypes(ctx context.Context, activeOnly bool) ([]models.BenefitType, error) {
	query := `SELECT ` + benefitTypeColumns + ` FROM benefit_types`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY name ASC`
	var types []models.BenefitType
	if err := r.db.SelectContext(ctx, &types, query); err != nil {
		return nil, fmt.Errorf("list benefit types: %w", err)
	}
	return types, nil
}

// CreateRequest inserts a benefit request together with its outbox events.
func (r *BenefitRepository) CreateRequest(ctx context.Context, req *models.BenefitRequest, events []models.OutboxEvent) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if req.SubmissionDate.IsZero() {
		req.SubmissionDate = now
	}
	req.UpdatedAt = now
	if req.BoardMemberIDs == nil {
		req.BoardMemberIDs = []string{}
	}
	const query = `INSERT INTO benefit_requests (id, benefit_type_id, benefit_type_name, requester_id, requester_user_id,
requester_name, amount, justification, status, submission_date, board_member_ids, updated_at)
VALUES (:id, :benefit_type_id, :benefit_type_name, :requester_id, :requester_user_id, :requester_name, :amount,
:justification, :status, :submission_date, :board_member_ids, :updated_at)`

	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, query, req); err != nil {
			return fmt.Errorf("create benefit request: %w", err)
		}
		return insertOutbox(ctx, tx, events)
	})
}

// GetRequest fetches a benefit request by id.
func (r *BenefitRepository) GetRequest(ctx context.Context, id string) (*models.BenefitRequest, error) {
	const query = `SELECT ` + benefitRequestColumns + ` FROM benefit_requests WHERE id = $1`
	var req models.BenefitRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// ListRequests returns requests matching filter (newest first) and the total count.
func (r *BenefitRepository) ListRequests(ctx context.Context, filter models.BenefitRequestFilter) ([]models.BenefitRequest, int, error) {
	where, args := benefitRequestWhere(filter)
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s FROM benefit_requests%s ORDER BY submission_date DESC LIMIT %d OFFSET %d`,
		benefitRequestColumns, where, limit, offset)
	var requests []models.BenefitRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list benefit requests: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM benefit_requests`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count benefit requests: %w", err)
	}
	return requests, total, nil
}

// ListRequestsForExport returns every request matching filter without paging.
func (r *BenefitRepository) ListRequestsForExport(ctx context.Context, filter models.BenefitRequestFilter) ([]models.BenefitRequest, error) {
	where, args := benefitRequestWhere(filter)
	query := `SELECT ` + benefitRequestColumns + ` FROM benefit_requests` + where + ` ORDER BY submission_date ASC`
	var requests []models.BenefitRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("export benefit requests: %w", err)
	}
	return requests, nil
}

// TransitionRequest applies a compare-and-swap status change and records the
// outbox events in the same transaction. sql.ErrNoRows means the request was
// no longer in t.From.
func (r *BenefitRepository) TransitionRequest(ctx context.Context, t Transition, events []models.OutboxEvent) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := compareAndSwap(ctx, tx, "benefit_requests", t); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, events)
	})
}

func benefitRequestWhere(filter models.BenefitRequestFilter) (string, []interface{}) {
	args := make([]interface{}, 0, 4)
	conditions := make([]string, 0, 4)
	if len(filter.Status) > 0 {
		conditions = append(conditions, inClause("status", filter.Status, &args))
	}
	if filter.RequesterUserID != "" {
		args = append(args, filter.RequesterUserID)
		conditions = append(conditions, fmt.Sprintf("requester_user_id = $%d", len(args)))
	}
	if filter.BoardMemberID != "" {
		args = append(args, filter.BoardMemberID)
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(board_member_ids)", len(args)))
	}
	if filter.BenefitTypeID != "" {
		args = append(args, filter.BenefitTypeID)
		conditions = append(conditions, fmt.Sprintf("benefit_type_id = $%d", len(args)))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
