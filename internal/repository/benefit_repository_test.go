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

func TestBenefitRepositoryCreateRequestWritesOutbox(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBenefitRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO benefit_requests").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO outbox_events").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	event, err := NewOutboxEvent("benefit.submitted", models.EventPayload{Action: "BENEFIT_SUBMIT", Entity: models.EntityBenefitRequest, EntityID: "br-1"})
	require.NoError(t, err)

	req := &models.BenefitRequest{
		ID:              "br-1",
		BenefitTypeID:   "bt-1",
		RequesterID:     "emp-1",
		RequesterUserID: "u-1",
		Amount:          50000,
		Status:          models.BenefitStatusPendingHR,
	}
	require.NoError(t, repo.CreateRequest(context.Background(), req, []models.OutboxEvent{event}))
	assert.False(t, req.SubmissionDate.IsZero())
	assert.NotNil(t, req.BoardMemberIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBenefitRepositoryTransitionRollsBackWhenStale(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBenefitRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE benefit_requests SET status = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.TransitionRequest(context.Background(), Transition{
		ID:   "br-1",
		From: string(models.BenefitStatusPendingHR),
		To:   string(models.BenefitStatusApproved),
		Set:  map[string]interface{}{"updated_at": time.Now()},
	}, nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBenefitRepositoryTransitionCommits(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBenefitRepository(db)

	hr := "hr-1"
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE benefit_requests SET status = $1, hr_endorsed_at = $2, hr_endorsed_by = $3, updated_at = $4 WHERE id = $5 AND status = $6")).
		WithArgs("PENDING_BOD", now, &hr, now, "br-1", "PENDING_HR").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO outbox_events").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	event, err := NewOutboxEvent("benefit.hr_endorsed", models.EventPayload{Action: "BENEFIT_HR_APPROVE", Entity: models.EntityBenefitRequest, EntityID: "br-1"})
	require.NoError(t, err)

	err = repo.TransitionRequest(context.Background(), Transition{
		ID:   "br-1",
		From: string(models.BenefitStatusPendingHR),
		To:   string(models.BenefitStatusPendingBOD),
		Set:  map[string]interface{}{"hr_endorsed_by": &hr, "hr_endorsed_at": now, "updated_at": now},
	}, []models.OutboxEvent{event})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBenefitRepositoryListRequestsFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBenefitRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "benefit_type_id", "benefit_type_name", "requester_id", "requester_user_id",
		"requester_name", "amount", "justification", "status", "submission_date", "board_member_ids", "hr_endorsed_by",
		"hr_endorsed_at", "bod_approved_by", "bod_approved_at", "fulfilled_by", "fulfilled_at", "voucher_code",
		"rejection_reason", "rejected_by", "rejected_at", "cancelled_at", "updated_at"}).
		AddRow("br-1", "bt-1", "Laptop Allowance", "emp-1", "u-1", "Ana Cruz", 50000, "new laptop", "PENDING_BOD", now,
			"{bod-1,bod-2}", "hr-1", now, nil, nil, nil, nil, nil, nil, nil, nil, nil, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM benefit_requests WHERE status IN ($1) AND $2 = ANY(board_member_ids) ORDER BY submission_date DESC LIMIT 20 OFFSET 0")).
		WithArgs("PENDING_BOD", "bod-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM benefit_requests WHERE status IN ($1) AND $2 = ANY(board_member_ids)")).
		WithArgs("PENDING_BOD", "bod-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.ListRequests(context.Background(), models.BenefitRequestFilter{
		Status:        []models.BenefitStatus{models.BenefitStatusPendingBOD},
		BoardMemberID: "bod-1",
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, total)
	assert.True(t, items[0].HasBoardMember("bod-2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
