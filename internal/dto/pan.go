package dto

import (
	"encoding/json"

	"github.com/noah-isme/hris-api/internal/models"
)

// RoutingStepInput is one signatory in a PAN routing definition.
type RoutingStepInput struct {
	Order  int                `json:"order" validate:"required,gt=0"`
	Role   models.RoutingRole `json:"role" validate:"required"`
	UserID string             `json:"user_id" validate:"required"`
}

// CreatePANRequest drafts a personnel action notice.
type CreatePANRequest struct {
	EmployeeID      string               `json:"employee_id" validate:"required"`
	ActionType      models.PANActionType `json:"action_type" validate:"required"`
	EffectiveDate   string               `json:"effective_date" validate:"required,datetime=2006-01-02"`
	CurrentDetails  json.RawMessage      `json:"current_details"`
	ProposedDetails json.RawMessage      `json:"proposed_details"`
	Remarks         string               `json:"remarks" validate:"max=4000"`
	Routing         []RoutingStepInput   `json:"routing" validate:"required,min=1,dive"`
}

// UpdatePANRequest rewrites a draft. A nil Routing keeps the current routing.
type UpdatePANRequest struct {
	ActionType      models.PANActionType `json:"action_type" validate:"required"`
	EffectiveDate   string               `json:"effective_date" validate:"required,datetime=2006-01-02"`
	CurrentDetails  json.RawMessage      `json:"current_details"`
	ProposedDetails json.RawMessage      `json:"proposed_details"`
	Remarks         string               `json:"remarks" validate:"max=4000"`
	Routing         []RoutingStepInput   `json:"routing" validate:"omitempty,min=1,dive"`
}

// StepDecisionRequest approves or declines a routing step.
type StepDecisionRequest struct {
	Remarks string `json:"remarks" validate:"max=2000"`
}

// AcknowledgePANRequest is the employee's typed signature.
type AcknowledgePANRequest struct {
	AcknowledgedName string `json:"acknowledged_name" validate:"required,max=200"`
	SignatureID      string `json:"signature_attachment_id"`
}

// PANQuery mirrors list filters. Scope is one of ScopeAll, ScopeApprovals or ScopeMine.
type PANQuery struct {
	Status   []models.PANStatus
	Scope    string
	Page     int
	PageSize int
}

// ScopeApprovals lists PANs on which the caller is a signatory.
const ScopeApprovals = "approvals"
