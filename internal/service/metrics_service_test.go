package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hris-api/internal/models"
)

func TestMetricsSnapshotAggregates(t *testing.T) {
	m := NewMetricsService()

	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/benefit-requests/:id", 200, 20*time.Millisecond)
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/benefit-requests", 201, 40*time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.ObserveTransition(models.EntityBenefitRequest, "HR_APPROVE")
	m.ObserveTransition(models.EntityBenefitRequest, "HR_APPROVE")
	m.SetOutboxBacklog(models.OutboxStats{Pending: 4, Failed: 1})
	m.ObserveEmailJob(EmailResultSent)
	m.ObserveEmailJob(EmailResultDropped)

	snap := m.Snapshot()
	assert.EqualValues(t, 2, snap.RequestsTotal)
	assert.InDelta(t, 30.0, snap.AverageRequestDurationMs, 0.001)
	assert.InDelta(t, 2.0/3.0, snap.CacheHitRatio, 0.0001)
	assert.EqualValues(t, 2, snap.Transitions[models.EntityBenefitRequest+".HR_APPROVE"])
	assert.Equal(t, models.OutboxStats{Pending: 4, Failed: 1}, snap.Outbox)
	assert.EqualValues(t, 1, snap.EmailsSent)
	assert.EqualValues(t, 1, snap.EmailsDropped)
}

func TestMetricsHandlerExposesNamespace(t *testing.T) {
	m := NewMetricsService()
	m.ObserveOutboxEvent("processed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `hris_outbox_events_total{result="processed"} 1`)
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveTransition("x", "y")
	m.ObserveEmailJob(EmailResultSent)
	assert.Equal(t, models.SystemMetrics{}, m.Snapshot())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
