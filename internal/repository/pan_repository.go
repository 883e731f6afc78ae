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

const panColumns = `id, employee_id, employee_user_id, employee_name, action_type, effective_date, current_details,
       proposed_details, remarks, status, created_by, created_at, submitted_at, completed_at, declined_reason,
       acknowledged_name, signature_path, updated_at`

const panStepColumns = `id, pan_id, step_order, role, user_id, user_name, status, acted_at, remarks`

// StepDecision identifies a routing step decision on a PAN.
type StepDecision struct {
	PANID   string
	StepID  string
	Remarks *string
	ActedAt time.Time
}

// PANRepository persists personnel action notices and their routing.
type PANRepository struct {
	db *sqlx.DB
}

// NewPANRepository constructs the repository.
func NewPANRepository(db *sqlx.DB) *PANRepository {
	return &PANRepository{db: db}
}

// CreateDraft inserts a DRAFT PAN with its routing steps.
func (r *PANRepository) CreateDraft(ctx context.Context, pan *models.PAN, steps []models.PANRoutingStep, events []models.OutboxEvent) error {
	if pan.ID == "" {
		pan.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	pan.CreatedAt, pan.UpdatedAt = now, now
	pan.Status = models.PANStatusDraft
	const query = `INSERT INTO pans (id, employee_id, employee_user_id, employee_name, action_type, effective_date,
current_details, proposed_details, remarks, status, created_by, created_at, updated_at)
VALUES (:id, :employee_id, :employee_user_id, :employee_name, :action_type, :effective_date, :current_details,
:proposed_details, :remarks, :status, :created_by, :created_at, :updated_at)`

	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, query, pan); err != nil {
			return fmt.Errorf("create pan: %w", err)
		}
		if err := insertSteps(ctx, tx, pan.ID, steps); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, events)
	})
}

// UpdateDraft rewrites a PAN that is still a DRAFT and replaces its routing.
func (r *PANRepository) UpdateDraft(ctx context.Context, pan *models.PAN, steps []models.PANRoutingStep) error {
	pan.UpdatedAt = time.Now().UTC()
	const query = `UPDATE pans SET action_type = :action_type, effective_date = :effective_date,
current_details = :current_details, proposed_details = :proposed_details, remarks = :remarks, updated_at = :updated_at
WHERE id = :id AND status = 'DRAFT'`

	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.NamedExecContext(ctx, query, pan)
		if err != nil {
			return fmt.Errorf("update pan: %w", err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return sql.ErrNoRows
		}
		if steps == nil {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM pan_routing_steps WHERE pan_id = $1`, pan.ID); err != nil {
			return fmt.Errorf("clear pan routing: %w", err)
		}
		return insertSteps(ctx, tx, pan.ID, steps)
	})
}

func insertSteps(ctx context.Context, tx *sqlx.Tx, panID string, steps []models.PANRoutingStep) error {
	const query = `INSERT INTO pan_routing_steps (` + panStepColumns + `)
VALUES (:id, :pan_id, :step_order, :role, :user_id, :user_name, :status, :acted_at, :remarks)`
	for i := range steps {
		if steps[i].ID == "" {
			steps[i].ID = uuid.NewString()
		}
		steps[i].PANID = panID
		if steps[i].Status == "" {
			steps[i].Status = models.StepStatusPending
		}
		if _, err := tx.NamedExecContext(ctx, query, steps[i]); err != nil {
			return fmt.Errorf("insert pan routing step: %w", err)
		}
	}
	return nil
}

// Get returns a PAN with its routing steps.
func (r *PANRepository) Get(ctx context.Context, id string) (*models.PANDetail, error) {
	var pan models.PAN
	if err := r.db.GetContext(ctx, &pan, `SELECT `+panColumns+` FROM pans WHERE id = $1`, id); err != nil {
		return nil, err
	}
	steps, err := r.steps(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.PANDetail{PAN: pan, Steps: steps}, nil
}

func (r *PANRepository) steps(ctx context.Context, panID string) ([]models.PANRoutingStep, error) {
	var steps []models.PANRoutingStep
	query := `SELECT ` + panStepColumns + ` FROM pan_routing_steps WHERE pan_id = $1 ORDER BY step_order ASC`
	if err := r.db.SelectContext(ctx, &steps, query, panID); err != nil {
		return nil, fmt.Errorf("list pan routing: %w", err)
	}
	return steps, nil
}

// List returns PANs matching filter and the total count.
func (r *PANRepository) List(ctx context.Context, filter models.PANFilter) ([]models.PAN, int, error) {
	args := make([]interface{}, 0, 3)
	conditions := make([]string, 0, 3)
	if len(filter.Status) > 0 {
		conditions = append(conditions, inClause("status", filter.Status, &args))
	}
	if filter.EmployeeUserID != "" {
		args = append(args, filter.EmployeeUserID)
		conditions = append(conditions, fmt.Sprintf("employee_user_id = $%d", len(args)))
	}
	if filter.ApproverUserID != "" {
		args = append(args, filter.ApproverUserID)
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM pan_routing_steps s WHERE s.pan_id = pans.id AND s.user_id = $%d)", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	var pans []models.PAN
	query := fmt.Sprintf(`SELECT %s FROM pans%s ORDER BY created_at DESC LIMIT %d OFFSET %d`, panColumns, where, limit, offset)
	if err := r.db.SelectContext(ctx, &pans, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list pans: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM pans`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count pans: %w", err)
	}
	return pans, total, nil
}

// Transition applies a compare-and-swap on the PAN status with outbox events.
func (r *PANRepository) Transition(ctx context.Context, t Transition, events []models.OutboxEvent) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := compareAndSwap(ctx, tx, "pans", t); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, events)
	})
}

// ApproveStep records an approval on a routing step. When it was the last
// non-acknowledger step the PAN advances to PENDING_EMPLOYEE and
// advanceEvents are written as well. The returned flag reports the advance.
func (r *PANRepository) ApproveStep(ctx context.Context, d StepDecision, stepEvents, advanceEvents []models.OutboxEvent) (bool, error) {
	advanced := false
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := lockPendingPAN(ctx, tx, d.PANID); err != nil {
			return err
		}
		if err := decideStep(ctx, tx, d, models.StepStatusApproved); err != nil {
			return err
		}
		if err := insertOutbox(ctx, tx, stepEvents); err != nil {
			return err
		}

		var remaining int
		const countQuery = `SELECT COUNT(*) FROM pan_routing_steps
WHERE pan_id = $1 AND role <> 'ACKNOWLEDGER' AND status <> 'APPROVED'`
		if err := tx.GetContext(ctx, &remaining, countQuery, d.PANID); err != nil {
			return fmt.Errorf("count open pan steps: %w", err)
		}
		if remaining > 0 {
			return nil
		}

		advance := Transition{
			ID:   d.PANID,
			From: string(models.PANStatusPendingApproval),
			To:   string(models.PANStatusPendingEmployee),
			Set:  map[string]interface{}{"updated_at": d.ActedAt},
		}
		if err := compareAndSwap(ctx, tx, "pans", advance); err != nil {
			return err
		}
		advanced = true
		return insertOutbox(ctx, tx, advanceEvents)
	})
	if err != nil {
		return false, err
	}
	return advanced, nil
}

// DeclineStep records a decline on a routing step and declines the PAN.
func (r *PANRepository) DeclineStep(ctx context.Context, d StepDecision, events []models.OutboxEvent) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := lockPendingPAN(ctx, tx, d.PANID); err != nil {
			return err
		}
		if err := decideStep(ctx, tx, d, models.StepStatusDeclined); err != nil {
			return err
		}
		decline := Transition{
			ID:   d.PANID,
			From: string(models.PANStatusPendingApproval),
			To:   string(models.PANStatusDeclined),
			Set:  map[string]interface{}{"declined_reason": d.Remarks, "updated_at": d.ActedAt},
		}
		if err := compareAndSwap(ctx, tx, "pans", decline); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, events)
	})
}

// Acknowledge completes a PAN awaiting the employee and closes any
// acknowledger steps.
func (r *PANRepository) Acknowledge(ctx context.Context, t Transition, events []models.OutboxEvent) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := compareAndSwap(ctx, tx, "pans", t); err != nil {
			return err
		}
		const query = `UPDATE pan_routing_steps SET status = 'APPROVED', acted_at = NOW()
WHERE pan_id = $1 AND role = 'ACKNOWLEDGER' AND status = 'PENDING'`
		if _, err := tx.ExecContext(ctx, query, t.ID); err != nil {
			return fmt.Errorf("close acknowledger steps: %w", err)
		}
		return insertOutbox(ctx, tx, events)
	})
}

// lockPendingPAN serialises step decisions on one PAN. sql.ErrNoRows means the
// PAN is missing or no longer pending approval.
func lockPendingPAN(ctx context.Context, tx *sqlx.Tx, panID string) error {
	var status string
	if err := tx.GetContext(ctx, &status, `SELECT status FROM pans WHERE id = $1 FOR UPDATE`, panID); err != nil {
		return err
	}
	if status != string(models.PANStatusPendingApproval) {
		return sql.ErrNoRows
	}
	return nil
}

func decideStep(ctx context.Context, tx *sqlx.Tx, d StepDecision, status models.StepStatus) error {
	const query = `UPDATE pan_routing_steps SET status = $1, acted_at = $2, remarks = $3
WHERE id = $4 AND pan_id = $5 AND status = 'PENDING'`
	result, err := tx.ExecContext(ctx, query, string(status), d.ActedAt, d.Remarks, d.StepID, d.PANID)
	if err != nil {
		return fmt.Errorf("update pan routing step: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
