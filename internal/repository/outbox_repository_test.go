package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hris-api/internal/models"
)

func TestOutboxRepositoryApplyWritesAuditAndNotifications(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewOutboxRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
		WithArgs("ev-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ev-1"))
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE outbox_events SET processed_at = $1")).
		WithArgs(sqlmock.AnyArg(), "ev-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := repo.Apply(context.Background(), "ev-1",
		&models.AuditLog{Action: "BENEFIT_SUBMIT", Resource: models.EntityBenefitRequest},
		[]models.Notification{{UserID: "hr-1", Title: "t"}, {UserID: "hr-2", Title: "t"}})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepositoryApplySkipsSettledEvent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewOutboxRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM outbox_events").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	applied, err := repo.Apply(context.Background(), "ev-1", &models.AuditLog{Action: "X"}, nil)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepositoryMarkFailed(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewOutboxRepository(db)
	retryAt := time.Date(2026, 3, 2, 9, 0, 10, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE outbox_events SET attempts = attempts + 1")).
		WithArgs("boom", 5, sqlmock.AnyArg(), retryAt, "ev-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkFailed(context.Background(), "ev-1", "boom", 5, retryAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepositoryStats(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewOutboxRepository(db)

	mock.ExpectQuery("FROM outbox_events").
		WillReturnRows(sqlmock.NewRows([]string{"pending", "failed"}).AddRow(3, 1))

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.OutboxStats{Pending: 3, Failed: 1}, stats)
}

func TestOutboxRepositoryFetchPendingSkipsHeldEvents(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewOutboxRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("AND next_attempt_at <= NOW()")).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "aggregate", "aggregate_id", "event_type", "payload", "created_at",
			"processed_at", "attempts", "last_error", "failed_at", "next_attempt_at"}).
			AddRow("ev-1", "benefit_request", "br-1", "benefit_request.HR_APPROVE", []byte("{}"), time.Now(), nil, 1, "boom", nil, time.Now()))

	events, err := repo.FetchPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].Attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
