package workflow

import (
	"errors"
	"fmt"

	"github.com/noah-isme/hris-api/internal/models"
)

const (
	PANUpdateDraft Action = "update_draft"
	PANSubmit      Action = "submit"
	PANApproveStep Action = "approve_step"
	PANDeclineStep Action = "decline_step"
	PANAcknowledge Action = "acknowledge"

	StepApprove Action = "approve"
	StepDecline Action = "decline"
)

// PANs is the aggregate PAN state machine.
var PANs = Table[models.PANStatus]{
	Entity: models.EntityPAN,
	Rules: map[Action]Rule[models.PANStatus]{
		PANUpdateDraft: {
			From: []models.PANStatus{models.PANStatusDraft},
			To:   []models.PANStatus{models.PANStatusDraft},
		},
		PANSubmit: {
			From: []models.PANStatus{models.PANStatusDraft},
			To:   []models.PANStatus{models.PANStatusPendingApproval},
		},
		PANApproveStep: {
			From: []models.PANStatus{models.PANStatusPendingApproval},
			To:   []models.PANStatus{models.PANStatusPendingApproval, models.PANStatusPendingEmployee},
		},
		PANDeclineStep: {
			From: []models.PANStatus{models.PANStatusPendingApproval},
			To:   []models.PANStatus{models.PANStatusDeclined},
		},
		PANAcknowledge: {
			From: []models.PANStatus{models.PANStatusPendingEmployee},
			To:   []models.PANStatus{models.PANStatusCompleted},
		},
	},
}

// Steps is the per-signatory state machine.
var Steps = Table[models.StepStatus]{
	Entity: "pan_routing_step",
	Rules: map[Action]Rule[models.StepStatus]{
		StepApprove: {
			From: []models.StepStatus{models.StepStatusPending},
			To:   []models.StepStatus{models.StepStatusApproved},
		},
		StepDecline: {
			From: []models.StepStatus{models.StepStatusPending},
			To:   []models.StepStatus{models.StepStatusDeclined},
		},
	},
}

var (
	ErrNoApprovers      = errors.New("routing needs at least one non-acknowledger step")
	ErrStepOutOfOrder   = errors.New("earlier routing steps are still pending")
	ErrAcknowledgerStep = errors.New("acknowledger steps are completed by the employee acknowledgement")
)

// RoutingError describes an invalid routing definition.
type RoutingError struct {
	Index  int
	Reason string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing step %d: %s", e.Index, e.Reason)
}

// ValidRoutingRole reports whether r is a known routing role.
func ValidRoutingRole(r models.RoutingRole) bool {
	switch r {
	case models.RoutingRolePreparer, models.RoutingRoleReviewer, models.RoutingRoleApprover, models.RoutingRoleAcknowledger:
		return true
	default:
		return false
	}
}

// ValidateRouting checks a routing definition: positive unique orders, a user
// per step, known roles and at least one approving step.
func ValidateRouting(steps []models.PANRoutingStep) error {
	orders := make(map[int]struct{}, len(steps))
	approvers := 0
	for i, step := range steps {
		switch {
		case step.StepOrder <= 0:
			return &RoutingError{Index: i, Reason: "order must be positive"}
		case step.UserID == "":
			return &RoutingError{Index: i, Reason: "user is required"}
		case !ValidRoutingRole(step.Role):
			return &RoutingError{Index: i, Reason: fmt.Sprintf("unknown role %q", step.Role)}
		}
		if _, dup := orders[step.StepOrder]; dup {
			return &RoutingError{Index: i, Reason: fmt.Sprintf("duplicate order %d", step.StepOrder)}
		}
		orders[step.StepOrder] = struct{}{}
		if step.Role != models.RoutingRoleAcknowledger {
			approvers++
		}
	}
	if approvers == 0 {
		return ErrNoApprovers
	}
	return nil
}

// RoutingComplete reports whether every non-acknowledger step is approved.
// The PAN advances to PENDING_EMPLOYEE exactly when this holds.
func RoutingComplete(steps []models.PANRoutingStep) bool {
	for _, step := range steps {
		if step.Role == models.RoutingRoleAcknowledger {
			continue
		}
		if step.Status != models.StepStatusApproved {
			return false
		}
	}
	return true
}

// CanActOnStep validates that target may be decided now. With sequential
// routing every lower-order approving step must already be approved;
// otherwise order is informational only.
func CanActOnStep(steps []models.PANRoutingStep, target models.PANRoutingStep, sequential bool) error {
	if target.Role == models.RoutingRoleAcknowledger {
		return ErrAcknowledgerStep
	}
	if err := Steps.Require(StepApprove, target.Status); err != nil {
		return err
	}
	if !sequential {
		return nil
	}
	for _, step := range steps {
		if step.ID == target.ID || step.Role == models.RoutingRoleAcknowledger {
			continue
		}
		if step.StepOrder < target.StepOrder && step.Status != models.StepStatusApproved {
			return ErrStepOutOfOrder
		}
	}
	return nil
}

// ApproverIDs returns the distinct users of non-acknowledger steps in order.
func ApproverIDs(steps []models.PANRoutingStep) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, step := range steps {
		if step.Role == models.RoutingRoleAcknowledger {
			continue
		}
		if _, ok := seen[step.UserID]; ok {
			continue
		}
		seen[step.UserID] = struct{}{}
		ids = append(ids, step.UserID)
	}
	return ids
}
