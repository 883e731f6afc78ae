package workflow

import (
	"errors"
	"fmt"

	"github.com/noah-isme/hris-api/internal/models"
)

const (
	BenefitSubmit     Action = "submit"
	BenefitHRApprove  Action = "hr_approve"
	BenefitBODApprove Action = "bod_approve"
	BenefitReject     Action = "reject"
	BenefitCancel     Action = "cancel"
	BenefitFulfill    Action = "fulfill"
)

// Benefits is the benefit request state machine.
var Benefits = Table[models.BenefitStatus]{
	Entity: models.EntityBenefitRequest,
	Rules: map[Action]Rule[models.BenefitStatus]{
		BenefitHRApprove: {
			From: []models.BenefitStatus{models.BenefitStatusPendingHR},
			To:   []models.BenefitStatus{models.BenefitStatusApproved, models.BenefitStatusPendingBOD},
		},
		BenefitBODApprove: {
			From: []models.BenefitStatus{models.BenefitStatusPendingBOD},
			To:   []models.BenefitStatus{models.BenefitStatusApproved},
		},
		BenefitReject: {
			From: []models.BenefitStatus{models.BenefitStatusPendingHR, models.BenefitStatusPendingBOD},
			To:   []models.BenefitStatus{models.BenefitStatusRejected},
		},
		BenefitCancel: {
			From: []models.BenefitStatus{models.BenefitStatusPendingHR, models.BenefitStatusPendingBOD},
			To:   []models.BenefitStatus{models.BenefitStatusCancelled},
		},
		BenefitFulfill: {
			From: []models.BenefitStatus{models.BenefitStatusApproved},
			To:   []models.BenefitStatus{models.BenefitStatusFulfilled},
		},
	},
}

var (
	ErrAmountNotPositive    = errors.New("amount must be greater than zero")
	ErrBenefitTypeInactive  = errors.New("benefit type is not accepting requests")
	ErrBoardMembersRequired = errors.New("at least one board member must be selected")
)

// LimitError is returned when a requested amount exceeds the benefit cap.
type LimitError struct {
	Amount int64
	Max    int64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("amount %d exceeds maximum of %d", e.Amount, e.Max)
}

// ValidateBenefitAmount is the submission guard: the type must be active and
// 0 < amount <= MaxValue.
func ValidateBenefitAmount(amount int64, bt models.BenefitType) error {
	if !bt.Active {
		return ErrBenefitTypeInactive
	}
	if amount <= 0 {
		return ErrAmountNotPositive
	}
	if amount > bt.MaxValue {
		return &LimitError{Amount: amount, Max: bt.MaxValue}
	}
	return nil
}

// HRApprovalTarget returns the status an HR approval moves a request to.
func HRApprovalTarget(bt models.BenefitType) models.BenefitStatus {
	if bt.RequiresBODApproval {
		return models.BenefitStatusPendingBOD
	}
	return models.BenefitStatusApproved
}

// NormalizeBoardSelection de-duplicates the selected board members and
// enforces that a BOD-routed approval names at least one.
func NormalizeBoardSelection(bt models.BenefitType, ids []string) ([]string, error) {
	if !bt.RequiresBODApproval {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, ErrBoardMembersRequired
	}
	return out, nil
}

// RejectionReviewer reports which reviewer role owns a rejection from status.
func RejectionReviewer(from models.BenefitStatus) models.UserRole {
	if from == models.BenefitStatusPendingBOD {
		return models.RoleBoard
	}
	return models.RoleHR
}
