package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hris-api/internal/models"
)

func TestBenefitTransitions(t *testing.T) {
	cases := []struct {
		action Action
		from   models.BenefitStatus
		valid  bool
	}{
		{BenefitHRApprove, models.BenefitStatusPendingHR, true},
		{BenefitHRApprove, models.BenefitStatusPendingBOD, false},
		{BenefitHRApprove, models.BenefitStatusApproved, false},
		{BenefitBODApprove, models.BenefitStatusPendingBOD, true},
		{BenefitBODApprove, models.BenefitStatusPendingHR, false},
		{BenefitReject, models.BenefitStatusPendingHR, true},
		{BenefitReject, models.BenefitStatusPendingBOD, true},
		{BenefitReject, models.BenefitStatusApproved, false},
		{BenefitCancel, models.BenefitStatusPendingHR, true},
		{BenefitCancel, models.BenefitStatusPendingBOD, true},
		{BenefitCancel, models.BenefitStatusFulfilled, false},
		{BenefitFulfill, models.BenefitStatusApproved, true},
		{BenefitFulfill, models.BenefitStatusPendingBOD, false},
		{BenefitFulfill, models.BenefitStatusFulfilled, false},
		{"unknown", models.BenefitStatusPendingHR, false},
	}

	for _, tt := range cases {
		if got := Benefits.Allowed(tt.action, tt.from); got != tt.valid {
			t.Fatalf("Benefits.Allowed(%q, %q)=%v, want %v", tt.action, tt.from, got, tt.valid)
		}
	}
}

func TestTerminalBenefitStatusesAbsorb(t *testing.T) {
	terminal := []models.BenefitStatus{models.BenefitStatusRejected, models.BenefitStatusCancelled, models.BenefitStatusFulfilled}
	for _, status := range terminal {
		for action := range Benefits.Rules {
			assert.Falsef(t, Benefits.Allowed(action, status), "%s must not leave %s", action, status)
		}
	}
}

func TestHRApprovalTarget(t *testing.T) {
	assert.Equal(t, models.BenefitStatusPendingBOD, HRApprovalTarget(models.BenefitType{RequiresBODApproval: true}))
	assert.Equal(t, models.BenefitStatusApproved, HRApprovalTarget(models.BenefitType{RequiresBODApproval: false}))

	require.NoError(t, Benefits.Check(BenefitHRApprove, models.BenefitStatusPendingHR, models.BenefitStatusPendingBOD))
	require.Error(t, Benefits.Check(BenefitHRApprove, models.BenefitStatusPendingHR, models.BenefitStatusFulfilled))
}

func TestValidateBenefitAmount(t *testing.T) {
	laptop := models.BenefitType{Name: "Laptop Allowance", MaxValue: 50000, RequiresBODApproval: true, Active: true}

	err := ValidateBenefitAmount(60000, laptop)
	var limitErr *LimitError
	require.True(t, errors.As(err, &limitErr))
	assert.EqualValues(t, 50000, limitErr.Max)

	assert.NoError(t, ValidateBenefitAmount(40000, laptop))
	assert.NoError(t, ValidateBenefitAmount(50000, laptop))
	assert.ErrorIs(t, ValidateBenefitAmount(0, laptop), ErrAmountNotPositive)

	laptop.Active = false
	assert.ErrorIs(t, ValidateBenefitAmount(100, laptop), ErrBenefitTypeInactive)
}

func TestNormalizeBoardSelection(t *testing.T) {
	bod := models.BenefitType{RequiresBODApproval: true}

	ids, err := NormalizeBoardSelection(bod, []string{"b1", "", "b2", "b1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "b2"}, ids)

	_, err = NormalizeBoardSelection(bod, nil)
	assert.ErrorIs(t, err, ErrBoardMembersRequired)

	ids, err = NormalizeBoardSelection(models.BenefitType{}, []string{"b1"})
	require.NoError(t, err)
	assert.Nil(t, ids)
}

func TestRejectionReviewer(t *testing.T) {
	assert.Equal(t, models.RoleHR, RejectionReviewer(models.BenefitStatusPendingHR))
	assert.Equal(t, models.RoleBoard, RejectionReviewer(models.BenefitStatusPendingBOD))
}
