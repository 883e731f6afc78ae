package models

import "time"

// EmploymentStatus tracks an employee's contract state.
type EmploymentStatus string

const (
	EmploymentProbationary EmploymentStatus = "PROBATIONARY"
	EmploymentRegular      EmploymentStatus = "REGULAR"
	EmploymentContractual  EmploymentStatus = "CONTRACTUAL"
	EmploymentSeparated    EmploymentStatus = "SEPARATED"
)

// Employee is an HR personnel record. UserID links the login account, if any.
type Employee struct {
	ID               string           `db:"id" json:"id"`
	UserID           *string          `db:"user_id" json:"user_id,omitempty"`
	EmployeeNo       string           `db:"employee_no" json:"employee_no"`
	FirstName        string           `db:"first_name" json:"first_name"`
	LastName         string           `db:"last_name" json:"last_name"`
	Email            string           `db:"email" json:"email"`
	Department       string           `db:"department" json:"department"`
	Position         string           `db:"position" json:"position"`
	EmploymentStatus EmploymentStatus `db:"employment_status" json:"employment_status"`
	DateHired        time.Time        `db:"date_hired" json:"date_hired"`
	ManagerID        *string          `db:"manager_id" json:"manager_id,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name.
func (e Employee) FullName() string {
	if e.LastName == "" {
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}

// EmployeeFilter narrows employee listings.
type EmployeeFilter struct {
	Search     string
	Department string
	Status     EmploymentStatus
	ManagerID  string
	Page       int
	PageSize   int
}
