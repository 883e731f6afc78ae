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

const assetColumns = `id, asset_tag, name, category, serial_number, status, condition_notes, created_at, updated_at`

const assignmentColumns = `id, asset_id, employee_id, employee_user_id, employee_name, request_id, date_assigned,
       date_returned, assigned_by, return_notes, is_acknowledged, acknowledged_at, signed_document_path`

const assetRequestColumns = `id, requester_id, requester_user_id, requester_name, category, justification, status,
       reviewed_by, reviewed_at, rejection_reason, fulfilled_assignment_id, submission_date, updated_at`

// AssetRepository persists assets, custody history and equipment requests.
type AssetRepository struct {
	db *sqlx.DB
}

// NewAssetRepository constructs the repository.
func NewAssetRepository(db *sqlx.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// Create inserts an asset.
func (r *AssetRepository) Create(ctx context.Context, asset *models.Asset, events []models.OutboxEvent) error {
	if asset.ID == "" {
		asset.ID = uuid.NewString()
	}
	if asset.Status == "" {
		asset.Status = models.AssetStatusAvailable
	}
	now := time.Now().UTC()
	asset.CreatedAt, asset.UpdatedAt = now, now
	const query = `INSERT INTO assets (` + assetColumns + `)
VALUES (:id, :asset_tag, :name, :category, :serial_number, :status, :condition_notes, :created_at, :updated_at)`
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, query, asset); err != nil {
			return fmt.Errorf("create asset: %w", err)
		}
		return insertOutbox(ctx, tx, events)
	})
}

// Get returns an asset with its assignment history.
func (r *AssetRepository) Get(ctx context.Context, id string) (*models.AssetDetail, error) {
	var asset models.Asset
	if err := r.db.GetContext(ctx, &asset, `SELECT `+assetColumns+` FROM assets WHERE id = $1`, id); err != nil {
		return nil, err
	}
	var history []models.AssetAssignment
	query := `SELECT ` + assignmentColumns + ` FROM asset_assignments WHERE asset_id = $1 ORDER BY date_assigned DESC`
	if err := r.db.SelectContext(ctx, &history, query, id); err != nil {
		return nil, fmt.Errorf("list asset history: %w", err)
	}
	return &models.AssetDetail{Asset: asset, Assignments: history}, nil
}

// List returns assets matching filter and the total count.
func (r *AssetRepository) List(ctx context.Context, filter models.AssetFilter) ([]models.Asset, int, error) {
	args := make([]interface{}, 0, 3)
	conditions := make([]string, 0, 3)
	if len(filter.Status) > 0 {
		conditions = append(conditions, inClause("status", filter.Status, &args))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(asset_tag) LIKE $%d)", len(args), len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	var assets []models.Asset
	query := fmt.Sprintf(`SELECT %s FROM assets%s ORDER BY asset_tag ASC LIMIT %d OFFSET %d`, assetColumns, where, limit, offset)
	if err := r.db.SelectContext(ctx, &assets, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list assets: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM assets`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count assets: %w", err)
	}
	return assets, total, nil
}

// ListAssignmentsForUser returns custody records of the employee linked to userID.
func (r *AssetRepository) ListAssignmentsForUser(ctx context.Context, userID string, openOnly bool) ([]models.AssetAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM asset_assignments WHERE employee_user_id = $1`
	if openOnly {
		query += ` AND date_returned IS NULL`
	}
	query += ` ORDER BY date_assigned DESC`
	var assignments []models.AssetAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, userID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// GetAssignment fetches one custody record.
func (r *AssetRepository) GetAssignment(ctx context.Context, id string) (*models.AssetAssignment, error) {
	var a models.AssetAssignment
	if err := r.db.GetContext(ctx, &a, `SELECT `+assignmentColumns+` FROM asset_assignments WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &a, nil
}

// Assign moves an AVAILABLE asset to ASSIGNED and opens a custody record.
// When the assignment fulfils an approved asset request, that request is
// closed in the same transaction.
func (r *AssetRepository) Assign(ctx context.Context, assignment *models.AssetAssignment, events []models.OutboxEvent) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.DateAssigned.IsZero() {
		assignment.DateAssigned = time.Now().UTC()
	}
	const insertQuery = `INSERT INTO asset_assignments (id, asset_id, employee_id, employee_user_id, employee_name,
request_id, date_assigned, assigned_by)
VALUES (:id, :asset_id, :employee_id, :employee_user_id, :employee_name, :request_id, :date_assigned, :assigned_by)`

	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		swap := Transition{
			ID:   assignment.AssetID,
			From: string(models.AssetStatusAvailable),
			To:   string(models.AssetStatusAssigned),
			Set:  map[string]interface{}{"updated_at": assignment.DateAssigned},
		}
		if err := compareAndSwap(ctx, tx, "assets", swap); err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, insertQuery, assignment); err != nil {
			return fmt.Errorf("create assignment: %w", err)
		}
		if assignment.RequestID != nil {
			fulfil := Transition{
				ID:   *assignment.RequestID,
				From: string(models.AssetRequestApproved),
				To:   string(models.AssetRequestFulfilled),
				Set: map[string]interface{}{
					"fulfilled_assignment_id": assignment.ID,
					"updated_at":              assignment.DateAssigned,
				},
			}
			if err := compareAndSwap(ctx, tx, "asset_requests", fulfil); err != nil {
				return err
			}
		}
		return insertOutbox(ctx, tx, events)
	})
}

// Return closes the open custody record and moves the asset from ASSIGNED to
// target (AVAILABLE or IN_REPAIR).
func (r *AssetRepository) Return(ctx context.Context, assetID string, target models.AssetStatus, notes *string, returnedAt time.Time, events []models.OutboxEvent) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		swap := Transition{
			ID:   assetID,
			From: string(models.AssetStatusAssigned),
			To:   string(target),
			Set:  map[string]interface{}{"updated_at": returnedAt},
		}
		if notes != nil {
			swap.Set["condition_notes"] = *notes
		}
		if err := compareAndSwap(ctx, tx, "assets", swap); err != nil {
			return err
		}
		const query = `UPDATE asset_assignments SET date_returned = $1, return_notes = $2
WHERE asset_id = $3 AND date_returned IS NULL`
		if _, err := tx.ExecContext(ctx, query, returnedAt, notes, assetID); err != nil {
			return fmt.Errorf("close assignment: %w", err)
		}
		return insertOutbox(ctx, tx, events)
	})
}

// Transition applies a compare-and-swap on the asset status.
func (r *AssetRepository) Transition(ctx context.Context, t Transition, events []models.OutboxEvent) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := compareAndSwap(ctx, tx, "assets", t); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, events)
	})
}

// AcknowledgeAssignment marks a custody record as acknowledged by the
// employee. sql.ErrNoRows means it was missing or already acknowledged.
func (r *AssetRepository) AcknowledgeAssignment(ctx context.Context, id string, signedPath *string, at time.Time, events []models.OutboxEvent) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const query = `UPDATE asset_assignments SET is_acknowledged = TRUE, acknowledged_at = $1, signed_document_path = $2
WHERE id = $3 AND is_acknowledged = FALSE`
		result, err := tx.ExecContext(ctx, query, at, signedPath, id)
		if err != nil {
			return fmt.Errorf("acknowledge assignment: %w", err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return sql.ErrNoRows
		}
		return insertOutbox(ctx, tx, events)
	})
}

// CreateRequest inserts an equipment request.
func (r *AssetRepository) CreateRequest(ctx context.Context, req *models.AssetRequest, events []models.OutboxEvent) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.SubmissionDate, req.UpdatedAt = now, now
	req.Status = models.AssetRequestPending
	const query = `INSERT INTO asset_requests (id, requester_id, requester_user_id, requester_name, category,
justification, status, submission_date, updated_at)
VALUES (:id, :requester_id, :requester_user_id, :requester_name, :category, :justification, :status,
:submission_date, :updated_at)`
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, query, req); err != nil {
			return fmt.Errorf("create asset request: %w", err)
		}
		return insertOutbox(ctx, tx, events)
	})
}

// GetRequest fetches an equipment request.
func (r *AssetRepository) GetRequest(ctx context.Context, id string) (*models.AssetRequest, error) {
	var req models.AssetRequest
	if err := r.db.GetContext(ctx, &req, `SELECT `+assetRequestColumns+` FROM asset_requests WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// ListRequests returns equipment requests matching filter and the total count.
func (r *AssetRepository) ListRequests(ctx context.Context, filter models.AssetRequestFilter) ([]models.AssetRequest, int, error) {
	args := make([]interface{}, 0, 2)
	conditions := make([]string, 0, 2)
	if len(filter.Status) > 0 {
		conditions = append(conditions, inClause("status", filter.Status, &args))
	}
	if filter.RequesterUserID != "" {
		args = append(args, filter.RequesterUserID)
		conditions = append(conditions, fmt.Sprintf("requester_user_id = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	var requests []models.AssetRequest
	query := fmt.Sprintf(`SELECT %s FROM asset_requests%s ORDER BY submission_date DESC LIMIT %d OFFSET %d`,
		assetRequestColumns, where, limit, offset)
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list asset requests: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM asset_requests`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count asset requests: %w", err)
	}
	return requests, total, nil
}

// TransitionRequest applies a compare-and-swap on an equipment request.
func (r *AssetRepository) TransitionRequest(ctx context.Context, t Transition, events []models.OutboxEvent) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := compareAndSwap(ctx, tx, "asset_requests", t); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, events)
	})
}
