package models

import (
	"time"

	"github.com/lib/pq"
)

// BenefitStatus is the lifecycle state of a benefit request.
type BenefitStatus string

const (
	BenefitStatusPendingHR  BenefitStatus = "PENDING_HR"
	BenefitStatusPendingBOD BenefitStatus = "PENDING_BOD"
	BenefitStatusApproved   BenefitStatus = "APPROVED"
	BenefitStatusRejected   BenefitStatus = "REJECTED"
	BenefitStatusFulfilled  BenefitStatus = "FULFILLED"
	BenefitStatusCancelled  BenefitStatus = "CANCELLED"
)

// BenefitType is a catalog entry employees can request against.
// MaxValue is expressed in minor currency units.
type BenefitType struct {
	ID                  string    `db:"id" json:"id"`
	Name                string    `db:"name" json:"name"`
	Description         string    `db:"description" json:"description"`
	MaxValue            int64     `db:"max_value" json:"max_value"`
	RequiresBODApproval bool      `db:"requires_bod_approval" json:"requires_bod_approval"`
	Active              bool      `db:"active" json:"active"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// BenefitRequest is an employee's claim against a benefit type.
type BenefitRequest struct {
	ID              string         `db:"id" json:"id"`
	BenefitTypeID   string         `db:"benefit_type_id" json:"benefit_type_id"`
	BenefitTypeName string         `db:"benefit_type_name" json:"benefit_type_name"`
	RequesterID     string         `db:"requester_id" json:"requester_id"`
	RequesterUserID string         `db:"requester_user_id" json:"requester_user_id"`
	RequesterName   string         `db:"requester_name" json:"requester_name"`
	Amount          int64          `db:"amount" json:"amount"`
	Justification   string         `db:"justification" json:"justification"`
	Status          BenefitStatus  `db:"status" json:"status"`
	SubmissionDate  time.Time      `db:"submission_date" json:"submission_date"`
	BoardMemberIDs  pq.StringArray `db:"board_member_ids" json:"board_member_ids"`
	HREndorsedBy    *string        `db:"hr_endorsed_by" json:"hr_endorsed_by,omitempty"`
	HREndorsedAt    *time.Time     `db:"hr_endorsed_at" json:"hr_endorsed_at,omitempty"`
	BODApprovedBy   *string        `db:"bod_approved_by" json:"bod_approved_by,omitempty"`
	BODApprovedAt   *time.Time     `db:"bod_approved_at" json:"bod_approved_at,omitempty"`
	FulfilledBy     *string        `db:"fulfilled_by" json:"fulfilled_by,omitempty"`
	FulfilledAt     *time.Time     `db:"fulfilled_at" json:"fulfilled_at,omitempty"`
	VoucherCode     *string        `db:"voucher_code" json:"voucher_code,omitempty"`
	RejectionReason *string        `db:"rejection_reason" json:"rejection_reason,omitempty"`
	RejectedBy      *string        `db:"rejected_by" json:"rejected_by,omitempty"`
	RejectedAt      *time.Time     `db:"rejected_at" json:"rejected_at,omitempty"`
	CancelledAt     *time.Time     `db:"cancelled_at" json:"cancelled_at,omitempty"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// HasBoardMember reports whether userID was selected for board review.
func (r BenefitRequest) HasBoardMember(userID string) bool {
	for _, id := range r.BoardMemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// BenefitRequestFilter narrows benefit request listings.
type BenefitRequestFilter struct {
	Status          []BenefitStatus
	RequesterUserID string
	BoardMemberID   string
	BenefitTypeID   string
	Page            int
	PageSize        int
}
