package dto

import "github.com/noah-isme/hris-api/internal/models"

// CreateBenefitTypeRequest adds a catalog entry.
type CreateBenefitTypeRequest struct {
	Name                string `json:"name" validate:"required,max=120"`
	Description         string `json:"description" validate:"max=2000"`
	MaxValue            int64  `json:"max_value" validate:"required,gt=0"`
	RequiresBODApproval bool   `json:"requires_bod_approval"`
	Active              *bool  `json:"active"`
}

// UpdateBenefitTypeRequest patches a catalog entry; nil fields are kept.
type UpdateBenefitTypeRequest struct {
	Name                *string `json:"name" validate:"omitempty,max=120"`
	Description         *string `json:"description" validate:"omitempty,max=2000"`
	MaxValue            *int64  `json:"max_value" validate:"omitempty,gt=0"`
	RequiresBODApproval *bool   `json:"requires_bod_approval"`
	Active              *bool   `json:"active"`
}

// SubmitBenefitRequest is an employee's claim.
type SubmitBenefitRequest struct {
	BenefitTypeID string `json:"benefit_type_id" validate:"required"`
	Amount        int64  `json:"amount"`
	Justification string `json:"justification" validate:"max=4000"`
}

// HRApproveBenefitRequest carries the board selection for BOD-routed types.
type HRApproveBenefitRequest struct {
	BoardMemberIDs []string `json:"board_member_ids"`
	Remarks        string   `json:"remarks" validate:"max=2000"`
}

// RejectBenefitRequest requires a reason.
type RejectBenefitRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

// FulfillBenefitRequest records the voucher handed over.
type FulfillBenefitRequest struct {
	VoucherCode string `json:"voucher_code" validate:"required,max=120"`
}

// BenefitRequestQuery mirrors list filters.
type BenefitRequestQuery struct {
	Status        []models.BenefitStatus
	Scope         string
	BenefitTypeID string
	Page          int
	PageSize      int
}

// Benefit list scopes.
const (
	ScopeMine  = "mine"
	ScopeBoard = "board"
	ScopeAll   = "all"
)
