package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/hris-api/internal/dto"
	"github.com/noah-isme/hris-api/internal/models"
	appErrors "github.com/noah-isme/hris-api/pkg/errors"
)

type fakeEmployeeRepo struct {
	stubEmployees
	createErr  error
	lastFilter models.EmployeeFilter
}

func (f *fakeEmployeeRepo) Create(ctx context.Context, e *models.Employee) error {
	if f.createErr != nil {
		return f.createErr
	}
	copy := *e
	f.byID[e.ID] = &copy
	return nil
}

func (f *fakeEmployeeRepo) Update(ctx context.Context, e *models.Employee) error {
	if _, ok := f.byID[e.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *e
	f.byID[e.ID] = &copy
	return nil
}

func (f *fakeEmployeeRepo) List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, int, error) {
	f.lastFilter = filter
	return []models.Employee{}, 0, nil
}

type recordingAudit struct {
	logs []models.AuditLog
}

func (r *recordingAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, *log)
	return nil
}

func newEmployeeFixture() (*EmployeeService, *fakeEmployeeRepo, *recordingAudit) {
	mgrUser, empUser := "u-mgr", "u-emp"
	mgrID := "e-mgr"
	repo := &fakeEmployeeRepo{stubEmployees: stubEmployees{byID: map[string]*models.Employee{
		"e-mgr": {ID: "e-mgr", UserID: &mgrUser, FirstName: "Mia", EmploymentStatus: models.EmploymentRegular},
		"e-1":   {ID: "e-1", UserID: &empUser, FirstName: "Ana", ManagerID: &mgrID, EmploymentStatus: models.EmploymentRegular},
	}}}
	audit := &recordingAudit{}
	return NewEmployeeService(repo, audit, nil, zap.NewNop()), repo, audit
}

func employeeRequest() dto.EmployeeRequest {
	return dto.EmployeeRequest{
		EmployeeNo: "EMP-0100", FirstName: " Leo ", LastName: "Tan", Email: "Leo.Tan@Example.com",
		Department: "Engineering", DateHired: "2026-01-05", ManagerID: strPtr("e-mgr"),
	}
}

func TestEmployeeCreate(t *testing.T) {
	svc, repo, audit := newEmployeeFixture()

	emp, err := svc.Create(context.Background(), employeeRequest(), actorFor("u-hr", models.RoleHR))
	require.NoError(t, err)
	assert.Equal(t, "Leo", emp.FirstName)
	assert.Equal(t, "leo.tan@example.com", emp.Email)
	assert.Equal(t, models.EmploymentProbationary, emp.EmploymentStatus)
	assert.Contains(t, repo.byID, emp.ID)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionEmployeeCreate, audit.logs[0].Action)

	_, err = svc.Create(context.Background(), employeeRequest(), actorFor("u-emp", models.RoleEmployee))
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	bad := employeeRequest()
	bad.ManagerID = strPtr("ghost")
	_, err = svc.Create(context.Background(), bad, actorFor("u-hr", models.RoleHR))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	repo.createErr = &pq.Error{Code: "23505"}
	_, err = svc.Create(context.Background(), employeeRequest(), actorFor("u-hr", models.RoleHR))
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestEmployeeGetVisibility(t *testing.T) {
	svc, _, _ := newEmployeeFixture()

	_, err := svc.Get(context.Background(), "e-1", actorFor("u-emp", models.RoleEmployee))
	assert.NoError(t, err)
	_, err = svc.Get(context.Background(), "e-1", actorFor("u-mgr", models.RoleManager))
	assert.NoError(t, err)
	_, err = svc.Get(context.Background(), "e-mgr", actorFor("u-emp", models.RoleEmployee))
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	_, err = svc.Get(context.Background(), "ghost", actorFor("u-hr", models.RoleHR))
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestEmployeeListScopesManagers(t *testing.T) {
	svc, repo, _ := newEmployeeFixture()

	_, _, err := svc.List(context.Background(), models.EmployeeFilter{}, actorFor("u-mgr", models.RoleManager))
	require.NoError(t, err)
	assert.Equal(t, "e-mgr", repo.lastFilter.ManagerID)

	_, _, err = svc.List(context.Background(), models.EmployeeFilter{Department: "Finance"}, actorFor("u-hr", models.RoleHR))
	require.NoError(t, err)
	assert.Empty(t, repo.lastFilter.ManagerID)

	_, _, err = svc.List(context.Background(), models.EmployeeFilter{}, actorFor("u-emp", models.RoleEmployee))
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestEmployeeSeparate(t *testing.T) {
	svc, repo, audit := newEmployeeFixture()

	emp, err := svc.Separate(context.Background(), "e-1", actorFor("u-hr", models.RoleHR))
	require.NoError(t, err)
	assert.Equal(t, models.EmploymentSeparated, emp.EmploymentStatus)
	assert.Equal(t, models.EmploymentSeparated, repo.byID["e-1"].EmploymentStatus)
	require.Len(t, audit.logs, 1)
	assert.NotEmpty(t, audit.logs[0].OldValues)

	_, err = svc.Separate(context.Background(), "e-1", actorFor("u-hr", models.RoleHR))
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestEmployeeMe(t *testing.T) {
	svc, _, _ := newEmployeeFixture()
	emp, err := svc.Me(context.Background(), actorFor("u-emp", models.RoleEmployee))
	require.NoError(t, err)
	assert.Equal(t, "e-1", emp.ID)

	_, err = svc.Me(context.Background(), actorFor("u-hr", models.RoleHR))
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
