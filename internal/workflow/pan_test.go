package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hris-api/internal/models"
)

func step(id string, order int, role models.RoutingRole, status models.StepStatus) models.PANRoutingStep {
	return models.PANRoutingStep{ID: id, StepOrder: order, Role: role, UserID: "u-" + id, Status: status}
}

func TestPANTransitions(t *testing.T) {
	cases := []struct {
		action Action
		from   models.PANStatus
		valid  bool
	}{
		{PANUpdateDraft, models.PANStatusDraft, true},
		{PANUpdateDraft, models.PANStatusPendingApproval, false},
		{PANSubmit, models.PANStatusDraft, true},
		{PANSubmit, models.PANStatusPendingApproval, false},
		{PANApproveStep, models.PANStatusPendingApproval, true},
		{PANApproveStep, models.PANStatusDraft, false},
		{PANDeclineStep, models.PANStatusPendingApproval, true},
		{PANDeclineStep, models.PANStatusPendingEmployee, false},
		{PANAcknowledge, models.PANStatusPendingEmployee, true},
		{PANAcknowledge, models.PANStatusPendingApproval, false},
		{PANAcknowledge, models.PANStatusCompleted, false},
	}
	for _, tt := range cases {
		if got := PANs.Allowed(tt.action, tt.from); got != tt.valid {
			t.Fatalf("PANs.Allowed(%q, %q)=%v, want %v", tt.action, tt.from, got, tt.valid)
		}
	}
}

func TestRoutingCompleteIgnoresAcknowledger(t *testing.T) {
	steps := []models.PANRoutingStep{
		step("1", 1, models.RoutingRolePreparer, models.StepStatusApproved),
		step("2", 2, models.RoutingRoleApprover, models.StepStatusPending),
		step("3", 3, models.RoutingRoleAcknowledger, models.StepStatusPending),
	}
	assert.False(t, RoutingComplete(steps))

	steps[1].Status = models.StepStatusApproved
	assert.True(t, RoutingComplete(steps), "acknowledger step must not block the advance")

	steps[0].Status = models.StepStatusDeclined
	assert.False(t, RoutingComplete(steps))
}

func TestCanActOnStep(t *testing.T) {
	steps := []models.PANRoutingStep{
		step("1", 1, models.RoutingRoleReviewer, models.StepStatusPending),
		step("2", 2, models.RoutingRoleApprover, models.StepStatusPending),
		step("3", 3, models.RoutingRoleAcknowledger, models.StepStatusPending),
	}

	assert.NoError(t, CanActOnStep(steps, steps[1], false), "order is informational by default")
	assert.ErrorIs(t, CanActOnStep(steps, steps[1], true), ErrStepOutOfOrder)
	assert.NoError(t, CanActOnStep(steps, steps[0], true))
	assert.ErrorIs(t, CanActOnStep(steps, steps[2], false), ErrAcknowledgerStep)

	steps[0].Status = models.StepStatusApproved
	assert.NoError(t, CanActOnStep(steps, steps[1], true))

	var transitionErr *TransitionError
	require.True(t, errors.As(CanActOnStep(steps, steps[0], false), &transitionErr))
}

func TestValidateRouting(t *testing.T) {
	valid := []models.PANRoutingStep{
		{StepOrder: 1, Role: models.RoutingRolePreparer, UserID: "hr"},
		{StepOrder: 2, Role: models.RoutingRoleApprover, UserID: "boss"},
		{StepOrder: 3, Role: models.RoutingRoleAcknowledger, UserID: "emp"},
	}
	require.NoError(t, ValidateRouting(valid))

	assert.ErrorIs(t, ValidateRouting([]models.PANRoutingStep{{StepOrder: 1, Role: models.RoutingRoleAcknowledger, UserID: "emp"}}), ErrNoApprovers)

	dup := append([]models.PANRoutingStep{}, valid...)
	dup[1].StepOrder = 1
	var routingErr *RoutingError
	require.True(t, errors.As(ValidateRouting(dup), &routingErr))
	assert.Equal(t, 1, routingErr.Index)

	assert.Error(t, ValidateRouting([]models.PANRoutingStep{{StepOrder: 1, Role: "SIGNER", UserID: "x"}}))
	assert.Error(t, ValidateRouting([]models.PANRoutingStep{{StepOrder: 0, Role: models.RoutingRoleApprover, UserID: "x"}}))
	assert.Error(t, ValidateRouting([]models.PANRoutingStep{{StepOrder: 1, Role: models.RoutingRoleApprover}}))
}

func TestApproverIDs(t *testing.T) {
	steps := []models.PANRoutingStep{
		{UserID: "a", Role: models.RoutingRoleReviewer},
		{UserID: "b", Role: models.RoutingRoleApprover},
		{UserID: "a", Role: models.RoutingRoleApprover},
		{UserID: "emp", Role: models.RoutingRoleAcknowledger},
	}
	assert.Equal(t, []string{"a", "b"}, ApproverIDs(steps))
}
