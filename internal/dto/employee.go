package dto

import "github.com/noah-isme/hris-api/internal/models"

// EmployeeRequest creates or updates a personnel record.
type EmployeeRequest struct {
	UserID           *string                 `json:"user_id"`
	EmployeeNo       string                  `json:"employee_no" validate:"required,max=32"`
	FirstName        string                  `json:"first_name" validate:"required,max=120"`
	LastName         string                  `json:"last_name" validate:"max=120"`
	Email            string                  `json:"email" validate:"required,email"`
	Department       string                  `json:"department" validate:"max=120"`
	Position         string                  `json:"position" validate:"max=120"`
	EmploymentStatus models.EmploymentStatus `json:"employment_status" validate:"omitempty,oneof=PROBATIONARY REGULAR CONTRACTUAL SEPARATED"`
	DateHired        string                  `json:"date_hired" validate:"required,datetime=2006-01-02"`
	ManagerID        *string                 `json:"manager_id"`
}

// CreateUserRequest provisions a login account.
type CreateUserRequest struct {
	Email      string          `json:"email" validate:"required,email"`
	FullName   string          `json:"full_name" validate:"required,max=200"`
	Password   string          `json:"password" validate:"required,min=8"`
	Role       models.UserRole `json:"role" validate:"required"`
	EmployeeID *string         `json:"employee_id"`
}

// UpdateUserRequest changes an account's name, role or active flag.
type UpdateUserRequest struct {
	FullName string          `json:"full_name" validate:"required,max=200"`
	Role     models.UserRole `json:"role" validate:"required"`
	Active   *bool           `json:"active"`
}
