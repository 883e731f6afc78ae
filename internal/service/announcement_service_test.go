package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/hris-api/internal/dto"
	"github.com/noah-isme/hris-api/internal/models"
	appErrors "github.com/noah-isme/hris-api/pkg/errors"
)

type fakeAnnouncementRepo struct {
	rows       map[string]*models.Announcement
	lastFilter models.AnnouncementFilter
}

func (f *fakeAnnouncementRepo) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	f.lastFilter = filter
	return []models.Announcement{}, 0, nil
}

func (f *fakeAnnouncementRepo) GetByID(ctx context.Context, id string) (*models.Announcement, error) {
	if a, ok := f.rows[id]; ok {
		copy := *a
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAnnouncementRepo) Create(ctx context.Context, a *models.Announcement) error {
	copy := *a
	f.rows[a.ID] = &copy
	return nil
}

func (f *fakeAnnouncementRepo) Update(ctx context.Context, a *models.Announcement) error {
	copy := *a
	f.rows[a.ID] = &copy
	return nil
}

func (f *fakeAnnouncementRepo) Delete(ctx context.Context, id string) error {
	delete(f.rows, id)
	return nil
}

func newAnnouncementFixture() (*AnnouncementService, *fakeAnnouncementRepo) {
	repo := &fakeAnnouncementRepo{rows: map[string]*models.Announcement{}}
	userID := "u-mgr"
	employees := &stubEmployees{byID: map[string]*models.Employee{"e-mgr": {ID: "e-mgr", UserID: &userID, Department: "Finance"}}}
	svc := NewAnnouncementService(repo, employees, nil, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC) }
	return svc, repo
}

func TestAnnouncementCreateDefaults(t *testing.T) {
	svc, repo := newAnnouncementFixture()

	ann, err := svc.Create(context.Background(), dto.AnnouncementRequest{Title: " Town hall ", Content: "Friday 3pm", Audience: "all"}, actorFor("u-hr", models.RoleHR))
	require.NoError(t, err)
	assert.Equal(t, "Town hall", ann.Title)
	assert.Equal(t, models.AnnouncementAudienceAll, ann.Audience)
	assert.Equal(t, models.AnnouncementPriorityNormal, ann.Priority)
	assert.Equal(t, svc.now(), ann.PublishedAt)
	assert.Equal(t, "u-hr", ann.CreatedBy)
	assert.Contains(t, repo.rows, ann.ID)
}

func TestAnnouncementValidation(t *testing.T) {
	svc, _ := newAnnouncementFixture()
	hr := actorFor("u-hr", models.RoleHR)

	_, err := svc.Create(context.Background(), dto.AnnouncementRequest{Title: "x", Content: "y", Audience: "DEPARTMENT"}, hr)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(context.Background(), dto.AnnouncementRequest{Title: "x", Content: "y", Audience: "CONTRACTORS"}, hr)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	past := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err = svc.Create(context.Background(), dto.AnnouncementRequest{Title: "x", Content: "y", Audience: "ALL", ExpiresAt: &past}, hr)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(context.Background(), dto.AnnouncementRequest{Title: "x", Content: "y", Audience: "ALL"}, actorFor("u-emp", models.RoleEmployee))
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestAnnouncementListAudience(t *testing.T) {
	svc, repo := newAnnouncementFixture()

	_, _, err := svc.List(context.Background(), actorFor("u-mgr", models.RoleManager), false, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, []models.AnnouncementAudience{models.AnnouncementAudienceManagers}, repo.lastFilter.Audiences)
	assert.Equal(t, []string{"Finance"}, repo.lastFilter.Departments)
	assert.False(t, repo.lastFilter.Unrestricted)

	_, _, err = svc.List(context.Background(), actorFor("u-emp", models.RoleEmployee), false, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, repo.lastFilter.Audiences)
	assert.Empty(t, repo.lastFilter.Departments)

	_, _, err = svc.List(context.Background(), actorFor("u-hr", models.RoleHR), true, 1, 20)
	require.NoError(t, err)
	assert.True(t, repo.lastFilter.Unrestricted)

	_, _, err = svc.List(context.Background(), actorFor("u-emp", models.RoleEmployee), true, 1, 20)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}
