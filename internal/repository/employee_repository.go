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
)

const employeeColumns = `id, user_id, employee_no, first_name, last_name, email, department, position,
       employment_status, date_hired, manager_id, created_at, updated_at`

// EmployeeRepository persists personnel records.
type EmployeeRepository struct {
	db *sqlx.DB
}

// NewEmployeeRepository constructs the repository.
func NewEmployeeRepository(db *sqlx.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// Create inserts an employee.
func (r *EmployeeRepository) Create(ctx context.Context, e *models.Employee) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	const query = `INSERT INTO employees (` + employeeColumns + `)
VALUES (:id, :user_id, :employee_no, :first_name, :last_name, :email, :department, :position, :employment_status,
:date_hired, :manager_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, e); err != nil {
		return fmt.Errorf("create employee: %w", err)
	}
	return nil
}

// Upsert inserts or refreshes an employee keyed by employee number.
func (r *EmployeeRepository) Upsert(ctx context.Context, e *models.Employee) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	const query = `INSERT INTO employees (` + employeeColumns + `)
VALUES (:id, :user_id, :employee_no, :first_name, :last_name, :email, :department, :position, :employment_status,
:date_hired, :manager_id, :created_at, :updated_at)
ON CONFLICT (employee_no) DO UPDATE SET user_id = EXCLUDED.user_id, first_name = EXCLUDED.first_name,
last_name = EXCLUDED.last_name, email = EXCLUDED.email, department = EXCLUDED.department,
position = EXCLUDED.position, employment_status = EXCLUDED.employment_status, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, e); err != nil {
		return fmt.Errorf("upsert employee: %w", err)
	}
	return nil
}

// Update rewrites the mutable employee columns.
func (r *EmployeeRepository) Update(ctx context.Context, e *models.Employee) error {
	e.UpdatedAt = time.Now().UTC()
	const query = `UPDATE employees SET user_id = :user_id, first_name = :first_name, last_name = :last_name,
email = :email, department = :department, position = :position, employment_status = :employment_status,
date_hired = :date_hired, manager_id = :manager_id, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, e)
	if err != nil {
		return fmt.Errorf("update employee: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindByID fetches an employee.
func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*models.Employee, error) {
	var e models.Employee
	if err := r.db.GetContext(ctx, &e, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &e, nil
}

// FindByUserID fetches the employee linked to a login account.
func (r *EmployeeRepository) FindByUserID(ctx context.Context, userID string) (*models.Employee, error) {
	var e models.Employee
	if err := r.db.GetContext(ctx, &e, `SELECT `+employeeColumns+` FROM employees WHERE user_id = $1`, userID); err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns employees matching filter and the total count.
func (r *EmployeeRepository) List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, int, error) {
	args := make([]interface{}, 0, 3)
	conditions := make([]string, 0, 3)
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(
			"(LOWER(first_name) LIKE $%d OR LOWER(last_name) LIKE $%d OR LOWER(employee_no) LIKE $%d OR LOWER(email) LIKE $%d)", n, n, n, n))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("employment_status = $%d", len(args)))
	}
	if filter.ManagerID != "" {
		args = append(args, filter.ManagerID)
		conditions = append(conditions, fmt.Sprintf("manager_id = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	var employees []models.Employee
	query := fmt.Sprintf(`SELECT %s FROM employees%s ORDER BY last_name ASC, first_name ASC LIMIT %d OFFSET %d`,
		employeeColumns, where, limit, offset)
	if err := r.db.SelectContext(ctx, &employees, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list employees: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM employees`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count employees: %w", err)
	}
	return employees, total, nil
}
