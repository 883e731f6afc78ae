package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/hris-api/internal/models"
	"github.com/noah-isme/hris-api/internal/repository"
	"github.com/noah-isme/hris-api/pkg/config"
	"github.com/noah-isme/hris-api/pkg/jobs"
)

type fakeOutboxRepo struct {
	mu            sync.Mutex
	pending       []models.OutboxEvent
	applyErr      error
	processed     map[string]bool
	audits        []models.AuditLog
	notifications []models.Notification
	failures      map[string]int
	retryAt       map[string]time.Time
	applies       int
}

func newFakeOutboxRepo(events ...models.OutboxEvent) *fakeOutboxRepo {
	return &fakeOutboxRepo{pending: events, processed: map[string]bool{}, failures: map[string]int{}, retryAt: map[string]time.Time{}}
}

func (f *fakeOutboxRepo) FetchPending(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.OutboxEvent
	for _, ev := range f.pending {
		if at, held := f.retryAt[ev.ID]; held && at.After(time.Now()) {
			continue
		}
		if !f.processed[ev.ID] && len(out) < limit {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeOutboxRepo) Apply(ctx context.Context, eventID string, audit *models.AuditLog, notifications []models.Notification) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applies++
	if f.applyErr != nil {
		return false, f.applyErr
	}
	if f.processed[eventID] {
		return false, nil
	}
	f.processed[eventID] = true
	f.audits = append(f.audits, *audit)
	f.notifications = append(f.notifications, notifications...)
	return true, nil
}

func (f *fakeOutboxRepo) MarkFailed(ctx context.Context, eventID, reason string, maxAttempts int, retryAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[eventID] = maxAttempts
	f.retryAt[eventID] = retryAt
	return nil
}

func (f *fakeOutboxRepo) Stats(ctx context.Context) (models.OutboxStats, error) {
	return models.OutboxStats{Pending: 0}, nil
}

func (f *fakeOutboxRepo) ListFailed(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	return nil, nil
}

func (f *fakeOutboxRepo) Retry(ctx context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.failures[eventID]; !ok {
		return sql.ErrNoRows
	}
	delete(f.failures, eventID)
	delete(f.retryAt, eventID)
	return nil
}

type recordingOutboxMetrics struct {
	mu      sync.Mutex
	results []string
	backlog *models.OutboxStats
}

func (m *recordingOutboxMetrics) ObserveOutboxEvent(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, result)
}

func (m *recordingOutboxMetrics) SetOutboxBacklog(stats models.OutboxStats) {
	m.backlog = &stats
}

type recordingUnread struct {
	mu    sync.Mutex
	users []string
}

func (r *recordingUnread) InvalidateUnread(ctx context.Context, userIDs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userIDs...)
}

type stubContacts []repository.UserContact

func (s stubContacts) ListContacts(ctx context.Context, ids []string) ([]repository.UserContact, error) {
	return s, nil
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []jobs.Job
}

func (q *recordingQueue) Enqueue(job jobs.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func benefitEvent(t *testing.T, id string) models.OutboxEvent {
	t.Helper()
	actor := actorFor("u-hr", models.RoleHR)
	events, err := outboxEvent(actor, AuditBenefitHRApprove, models.EntityBenefitRequest, "br-1",
		map[string]interface{}{"from": "PENDING_HR", "to": "PENDING_BOD"},
		drafts([]string{"u-bod1", "u-bod2"}, "Benefit request awaiting board approval", "Laptop Allowance for Ana Cruz"))
	require.NoError(t, err)
	ev := events[0]
	ev.ID = id
	ev.CreatedAt = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return ev
}

func TestDispatchOnceMaterialisesEvent(t *testing.T) {
	repo := newFakeOutboxRepo(benefitEvent(t, "ev-1"))
	metrics := &recordingOutboxMetrics{}
	unread := &recordingUnread{}
	queue := &recordingQueue{}
	contacts := stubContacts{{ID: "u-bod1", Email: "bod1@example.com", FullName: "Board One"}}
	d := NewOutboxDispatcher(repo, config.OutboxConfig{BatchSize: 10, Workers: 2}, zap.NewNop(),
		WithDispatcherMetrics(metrics), WithUnreadInvalidation(unread), WithEmailFanout(contacts, queue))

	n, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, repo.audits, 1)
	audit := repo.audits[0]
	assert.Equal(t, AuditBenefitHRApprove, audit.Action)
	assert.Equal(t, models.EntityBenefitRequest, audit.Resource)
	assert.Equal(t, "br-1", *audit.ResourceID)
	assert.Equal(t, "u-hr", *audit.UserID)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), audit.CreatedAt)
	var details map[string]string
	require.NoError(t, json.Unmarshal(audit.NewValues, &details))
	assert.Equal(t, "PENDING_BOD", details["to"])

	require.Len(t, repo.notifications, 2)
	assert.Equal(t, "br-1", *repo.notifications[0].RelatedEntityID)
	assert.ElementsMatch(t, []string{"u-bod1", "u-bod2"}, unread.users)
	assert.Equal(t, []string{OutboxProcessed}, metrics.results)
	assert.NotNil(t, metrics.backlog)

	require.Len(t, queue.jobs, 1)
	mail := queue.jobs[0].Payload.(NotificationEmail)
	assert.Equal(t, "bod1@example.com", mail.To)

	n, err = d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, repo.audits, 1)
}

func TestDispatchOnceParksMalformedPayload(t *testing.T) {
	repo := newFakeOutboxRepo(models.OutboxEvent{ID: "ev-bad", EventType: "x.Y", Payload: []byte("{not json")})
	metrics := &recordingOutboxMetrics{}
	d := NewOutboxDispatcher(repo, config.OutboxConfig{MaxAttempts: 5}, zap.NewNop(), WithDispatcherMetrics(metrics))

	_, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.failures["ev-bad"])
	assert.Equal(t, []string{OutboxFailed}, metrics.results)
	assert.Empty(t, repo.audits)
}

func TestDispatchOnceRetriesApplyFailure(t *testing.T) {
	ev := benefitEvent(t, "ev-1")
	repo := newFakeOutboxRepo(ev)
	repo.applyErr = errors.New("deadlock detected")
	metrics := &recordingOutboxMetrics{}
	unread := &recordingUnread{}
	d := NewOutboxDispatcher(repo, config.OutboxConfig{MaxAttempts: 3}, zap.NewNop(), WithDispatcherMetrics(metrics), WithUnreadInvalidation(unread))

	_, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, repo.failures["ev-1"])
	assert.Equal(t, []string{OutboxRetry}, metrics.results)
	assert.Empty(t, unread.users)

	ev.Attempts = 2
	repo.pending = []models.OutboxEvent{ev}
	delete(repo.retryAt, ev.ID)
	metrics.results = nil
	_, err = d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{OutboxFailed}, metrics.results)
}

func TestRunStopsOnCancel(t *testing.T) {
	repo := newFakeOutboxRepo(benefitEvent(t, "ev-1"))
	d := NewOutboxDispatcher(repo, config.OutboxConfig{PollInterval: 10 * time.Millisecond}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return repo.processed["ev-1"]
	}, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestDispatchOnceDelaysRetryByAttempt(t *testing.T) {
	ev := benefitEvent(t, "ev-1")
	ev.Attempts = 2
	repo := newFakeOutboxRepo(ev)
	repo.applyErr = errors.New("connection reset")
	d := NewOutboxDispatcher(repo, config.OutboxConfig{MaxAttempts: 5, RetryBackoff: 10 * time.Second}, zap.NewNop())
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	_, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now.Add(30*time.Second), repo.retryAt["ev-1"])
}

func TestRunWaitsForPollAfterFailedBatch(t *testing.T) {
	repo := newFakeOutboxRepo(benefitEvent(t, "ev-1"))
	repo.applyErr = errors.New("connection reset")
	d := NewOutboxDispatcher(repo, config.OutboxConfig{BatchSize: 1, MaxAttempts: 5, PollInterval: time.Hour, RetryBackoff: time.Millisecond}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return repo.applies > 0
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, 1, repo.applies)
	assert.Contains(t, repo.failures, "ev-1")
}
