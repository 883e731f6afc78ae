package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Audit actions written by authentication and record maintenance.
const (
	AuditActionLogin            = "LOGIN"
	AuditActionLogout           = "LOGOUT"
	AuditActionUserCreate       = "USER_CREATE"
	AuditActionUserUpdate       = "USER_UPDATE"
	AuditActionUserDelete       = "USER_DEACTIVATE"
	AuditActionPasswordChange   = "PASSWORD_CHANGE"
	AuditActionEmployeeCreate   = "EMPLOYEE_CREATE"
	AuditActionEmployeeUpdate   = "EMPLOYEE_UPDATE"
	AuditActionEmployeeSeparate = "EMPLOYEE_SEPARATE"
)

// AuditLog is an append-only trail entry.
type AuditLog struct {
	ID         string         `db:"id" json:"id"`
	UserID     *string        `db:"user_id" json:"user_id,omitempty"`
	Action     string         `db:"action" json:"action"`
	Resource   string         `db:"resource" json:"entity"`
	ResourceID *string        `db:"resource_id" json:"entity_id,omitempty"`
	OldValues  types.JSONText `db:"old_values" json:"old_values,omitempty"`
	NewValues  types.JSONText `db:"new_values" json:"details,omitempty"`
	IPAddress  string         `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent  string         `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"timestamp"`
}

// AuditFilter narrows audit log queries.
type AuditFilter struct {
	Entity   string
	EntityID string
	UserID   string
	Action   string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}
