package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hris-api/internal/models"
)

func TestPANRepositoryApproveStepAdvancesOnLastApprover(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPANRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM pans WHERE id = $1 FOR UPDATE")).
		WithArgs("pan-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("PENDING_APPROVAL"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE pan_routing_steps SET status = $1")).
		WithArgs("APPROVED", sqlmock.AnyArg(), sqlmock.AnyArg(), "step-2", "pan-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM pan_routing_steps")).
		WithArgs("pan-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE pans SET status = $1")).
		WithArgs("PENDING_EMPLOYEE", sqlmock.AnyArg(), "pan-1", "PENDING_APPROVAL").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO outbox_events").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	event, err := NewOutboxEvent("pan.ready_for_employee", models.EventPayload{Action: "PAN_ADVANCE", Entity: models.EntityPAN, EntityID: "pan-1"})
	require.NoError(t, err)

	advanced, err := repo.ApproveStep(context.Background(), StepDecision{PANID: "pan-1", StepID: "step-2", ActedAt: time.Now()},
		nil, []models.OutboxEvent{event})
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPANRepositoryApproveStepKeepsPendingWhileStepsRemain(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPANRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM pans").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("PENDING_APPROVAL"))
	mock.ExpectExec("UPDATE pan_routing_steps SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO outbox_events").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM pan_routing_steps")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectCommit()

	event, err := NewOutboxEvent("pan.step_approved", models.EventPayload{Action: "PAN_STEP_APPROVE", Entity: models.EntityPAN, EntityID: "pan-1"})
	require.NoError(t, err)

	advanced, err := repo.ApproveStep(context.Background(), StepDecision{PANID: "pan-1", StepID: "step-1", ActedAt: time.Now()},
		[]models.OutboxEvent{event}, nil)
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPANRepositoryApproveStepRejectsDeclinedPAN(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPANRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM pans").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("DECLINED"))
	mock.ExpectRollback()

	_, err := repo.ApproveStep(context.Background(), StepDecision{PANID: "pan-1", StepID: "step-1", ActedAt: time.Now()}, nil, nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPANRepositoryDeclineStep(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPANRepository(db)

	reason := "budget freeze"
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM pans").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("PENDING_APPROVAL"))
	mock.ExpectExec("UPDATE pan_routing_steps SET status").
		WithArgs("DECLINED", sqlmock.AnyArg(), &reason, "step-1", "pan-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE pans SET status = $1, declined_reason = $2, updated_at = $3 WHERE id = $4 AND status = $5")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.DeclineStep(context.Background(), StepDecision{PANID: "pan-1", StepID: "step-1", Remarks: &reason, ActedAt: time.Now()}, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPANRepositoryCreateDraftInsertsSteps(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPANRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO pans").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO pan_routing_steps").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO pan_routing_steps").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	pan := &models.PAN{EmployeeID: "emp-1", ActionType: models.PANActionPromotion, EffectiveDate: time.Now(), CreatedBy: "hr-1"}
	steps := []models.PANRoutingStep{
		{StepOrder: 1, Role: models.RoutingRoleReviewer, UserID: "mgr-1"},
		{StepOrder: 2, Role: models.RoutingRoleApprover, UserID: "bod-1"},
	}
	require.NoError(t, repo.CreateDraft(context.Background(), pan, steps, nil))
	assert.Equal(t, models.PANStatusDraft, pan.Status)
	for _, step := range steps {
		assert.Equal(t, pan.ID, step.PANID)
		assert.Equal(t, models.StepStatusPending, step.Status)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}
