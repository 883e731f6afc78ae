package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// PANStatus is the aggregate state of a personnel action notice.
type PANStatus string

const (
	PANStatusDraft           PANStatus = "DRAFT"
	PANStatusPendingApproval PANStatus = "PENDING_APPROVAL"
	PANStatusPendingEmployee PANStatus = "PENDING_EMPLOYEE"
	PANStatusCompleted       PANStatus = "COMPLETED"
	PANStatusDeclined        PANStatus = "DECLINED"
)

// PANActionType classifies the personnel change.
type PANActionType string

const (
	PANActionPromotion        PANActionType = "PROMOTION"
	PANActionSalaryAdjustment PANActionType = "SALARY_ADJUSTMENT"
	PANActionTransfer         PANActionType = "TRANSFER"
	PANActionRegularization   PANActionType = "REGULARIZATION"
	PANActionSeparation       PANActionType = "SEPARATION"
	PANActionOther            PANActionType = "OTHER"
)

// Valid reports whether a is a known action type.
func (a PANActionType) Valid() bool {
	switch a {
	case PANActionPromotion, PANActionSalaryAdjustment, PANActionTransfer,
		PANActionRegularization, PANActionSeparation, PANActionOther:
		return true
	default:
		return false
	}
}

// RoutingRole is the capacity in which a user signs a PAN.
type RoutingRole string

const (
	RoutingRolePreparer     RoutingRole = "PREPARER"
	RoutingRoleReviewer     RoutingRole = "REVIEWER"
	RoutingRoleApprover     RoutingRole = "APPROVER"
	RoutingRoleAcknowledger RoutingRole = "ACKNOWLEDGER"
)

// StepStatus is the decision recorded on a routing step.
type StepStatus string

const (
	StepStatusPending  StepStatus = "PENDING"
	StepStatusApproved StepStatus = "APPROVED"
	StepStatusDeclined StepStatus = "DECLINED"
)

// PAN is a personnel action notice.
type PAN struct {
	ID               string         `db:"id" json:"id"`
	EmployeeID       string         `db:"employee_id" json:"employee_id"`
	EmployeeUserID   *string        `db:"employee_user_id" json:"employee_user_id,omitempty"`
	EmployeeName     string         `db:"employee_name" json:"employee_name"`
	ActionType       PANActionType  `db:"action_type" json:"action_type"`
	EffectiveDate    time.Time      `db:"effective_date" json:"effective_date"`
	CurrentDetails   types.JSONText `db:"current_details" json:"current_details"`
	ProposedDetails  types.JSONText `db:"proposed_details" json:"proposed_details"`
	Remarks          string         `db:"remarks" json:"remarks"`
	Status           PANStatus      `db:"status" json:"status"`
	CreatedBy        string         `db:"created_by" json:"created_by"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	SubmittedAt      *time.Time     `db:"submitted_at" json:"submitted_at,omitempty"`
	CompletedAt      *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	DeclinedReason   *string        `db:"declined_reason" json:"declined_reason,omitempty"`
	AcknowledgedName *string        `db:"acknowledged_name" json:"acknowledged_name,omitempty"`
	SignaturePath    *string        `db:"signature_path" json:"signature_path,omitempty"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// PANRoutingStep is one signatory on a PAN.
type PANRoutingStep struct {
	ID        string      `db:"id" json:"id"`
	PANID     string      `db:"pan_id" json:"pan_id"`
	StepOrder int         `db:"step_order" json:"step_order"`
	Role      RoutingRole `db:"role" json:"role"`
	UserID    string      `db:"user_id" json:"user_id"`
	UserName  string      `db:"user_name" json:"user_name"`
	Status    StepStatus  `db:"status" json:"status"`
	ActedAt   *time.Time  `db:"acted_at" json:"acted_at,omitempty"`
	Remarks   *string     `db:"remarks" json:"remarks,omitempty"`
}

// PANDetail is a PAN with its routing steps ordered by step_order.
type PANDetail struct {
	PAN
	Steps []PANRoutingStep `json:"steps"`
}

// PANFilter narrows PAN listings.
type PANFilter struct {
	Status         []PANStatus
	EmployeeUserID string
	ApproverUserID string
	Page           int
	PageSize       int
}
