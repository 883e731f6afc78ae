package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/hris-api/internal/dto"
	"github.com/noah-isme/hris-api/internal/models"
	"github.com/noah-isme/hris-api/internal/repository"
	"github.com/noah-isme/hris-api/internal/workflow"
	appErrors "github.com/noah-isme/hris-api/pkg/errors"
	"github.com/noah-isme/hris-api/pkg/storage"
)

type fakePANRepo struct {
	pans     map[string]*models.PANDetail
	events   []models.OutboxEvent
	lastSet  map[string]interface{}
	filter   models.PANFilter
	advanced bool
}

func newFakePANRepo() *fakePANRepo {
	return &fakePANRepo{pans: map[string]*models.PANDetail{}}
}

func (f *fakePANRepo) clone(id string) *models.PANDetail {
	d := f.pans[id]
	copy := *d
	copy.Steps = append([]models.PANRoutingStep(nil), d.Steps...)
	return &copy
}

func (f *fakePANRepo) CreateDraft(ctx context.Context, pan *models.PAN, steps []models.PANRoutingStep, events []models.OutboxEvent) error {
	pan.Status = models.PANStatusDraft
	f.pans[pan.ID] = &models.PANDetail{PAN: *pan, Steps: append([]models.PANRoutingStep(nil), steps...)}
	f.events = append(f.events, events...)
	return nil
}

func (f *fakePANRepo) UpdateDraft(ctx context.Context, pan *models.PAN, steps []models.PANRoutingStep) error {
	current, ok := f.pans[pan.ID]
	if !ok || current.Status != models.PANStatusDraft {
		return sql.ErrNoRows
	}
	current.PAN = *pan
	if steps != nil {
		current.Steps = steps
	}
	return nil
}

func (f *fakePANRepo) Get(ctx context.Context, id string) (*models.PANDetail, error) {
	if _, ok := f.pans[id]; !ok {
		return nil, sql.ErrNoRows
	}
	return f.clone(id), nil
}

func (f *fakePANRepo) List(ctx context.Context, filter models.PANFilter) ([]models.PAN, int, error) {
	f.filter = filter
	return nil, 0, nil
}

func (f *fakePANRepo) Transition(ctx context.Context, t repository.Transition, events []models.OutboxEvent) error {
	d, ok := f.pans[t.ID]
	if !ok || string(d.Status) != t.From {
		return sql.ErrNoRows
	}
	d.Status = models.PANStatus(t.To)
	f.lastSet = t.Set
	f.events = append(f.events, events...)
	return nil
}

func (f *fakePANRepo) decide(d repository.StepDecision, status models.StepStatus) error {
	pan, ok := f.pans[d.PANID]
	if !ok || pan.Status != models.PANStatusPendingApproval {
		return sql.ErrNoRows
	}
	for i := range pan.Steps {
		if pan.Steps[i].ID == d.StepID && pan.Steps[i].Status == models.StepStatusPending {
			pan.Steps[i].Status = status
			pan.Steps[i].Remarks = d.Remarks
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakePANRepo) ApproveStep(ctx context.Context, d repository.StepDecision, stepEvents, advanceEvents []models.OutboxEvent) (bool, error) {
	if err := f.decide(d, models.StepStatusApproved); err != nil {
		return false, err
	}
	f.events = append(f.events, stepEvents...)
	pan := f.pans[d.PANID]
	if !workflow.RoutingComplete(pan.Steps) {
		return false, nil
	}
	pan.Status = models.PANStatusPendingEmployee
	f.events = append(f.events, advanceEvents...)
	f.advanced = true
	return true, nil
}

func (f *fakePANRepo) DeclineStep(ctx context.Context, d repository.StepDecision, events []models.OutboxEvent) error {
	if err := f.decide(d, models.StepStatusDeclined); err != nil {
		return err
	}
	f.pans[d.PANID].Status = models.PANStatusDeclined
	f.pans[d.PANID].DeclinedReason = d.Remarks
	f.events = append(f.events, events...)
	return nil
}

func (f *fakePANRepo) Acknowledge(ctx context.Context, t repository.Transition, events []models.OutboxEvent) error {
	return f.Transition(ctx, t, events)
}

type stubAttachments map[string]*models.Attachment

func (s stubAttachments) Get(ctx context.Context, id string) (*models.Attachment, error) {
	if a, ok := s[id]; ok {
		return a, nil
	}
	return nil, sql.ErrNoRows
}

type panFixture struct {
	repo *fakePANRepo
	svc  *PANService
}

func newPANFixture(sequential bool) panFixture {
	repo := newFakePANRepo()
	empUser := "u-emp"
	employees := &stubEmployees{byID: map[string]*models.Employee{
		"e-1": {ID: "e-1", UserID: &empUser, FirstName: "Ben", LastName: "Reyes"},
		"e-2": {ID: "e-2", FirstName: "Lia", LastName: "Santos"},
	}}
	directory := &stubDirectory{users: map[string]models.User{
		"u-mgr": {ID: "u-mgr", FullName: "Maria Manager", Active: true},
		"u-dir": {ID: "u-dir", FullName: "Dan Director", Active: true},
		"u-emp": {ID: "u-emp", FullName: "Ben Reyes", Active: true},
		"u-old": {ID: "u-old", FullName: "Former", Active: false},
	}}
	attachments := stubAttachments{
		"sig-1": {ID: "sig-1", Bucket: storage.BucketSignatures, FilePath: "signatures/sig-1.png", UploadedBy: "u-emp"},
		"doc-1": {ID: "doc-1", Bucket: storage.BucketAttachments, FilePath: "attachments/doc-1.pdf", UploadedBy: "u-emp"},
	}
	svc := NewPANService(repo, employees, directory, attachments, nil, zap.NewNop(), WithSequentialRouting(sequential))
	return panFixture{repo: repo, svc: svc}
}

func promotionRequest() dto.CreatePANRequest {
	return dto.CreatePANRequest{
		EmployeeID:      "e-1",
		ActionType:      models.PANActionPromotion,
		EffectiveDate:   "2026-04-01",
		ProposedDetails: json.RawMessage(`{"position":"Senior Engineer"}`),
		Routing: []dto.RoutingStepInput{
			{Order: 1, Role: models.RoutingRoleReviewer, UserID: "u-mgr"},
			{Order: 2, Role: models.RoutingRoleApprover, UserID: "u-dir"},
			{Order: 3, Role: models.RoutingRoleAcknowledger, UserID: "u-emp"},
		},
	}
}

func stepFor(t *testing.T, d *models.PANDetail, userID string, role models.RoutingRole) string {
	t.Helper()
	for _, s := range d.Steps {
		if s.UserID == userID && s.Role == role {
			return s.ID
		}
	}
	t.Fatalf("no %s step for %s", role, userID)
	return ""
}

func TestPANFullRouting(t *testing.T) {
	f := newPANFixture(false)
	ctx := context.Background()
	hr := actorFor("u-hr", models.RoleHR)

	pan, err := f.svc.CreateDraft(ctx, promotionRequest(), hr)
	require.NoError(t, err)
	assert.Equal(t, models.PANStatusDraft, pan.Status)
	assert.Equal(t, "Ben Reyes", pan.EmployeeName)
	assert.JSONEq(t, `{}`, string(pan.CurrentDetails))
	assert.Equal(t, "Maria Manager", pan.Steps[0].UserName)

	pan, err = f.svc.Submit(ctx, pan.ID, hr)
	require.NoError(t, err)
	assert.Equal(t, models.PANStatusPendingApproval, pan.Status)
	submitted := decodePayload(t, f.repo.events[len(f.repo.events)-1])
	assert.Equal(t, []string{"u-mgr", "u-dir"}, recipients(submitted.Notifications))

	mgrStep := stepFor(t, pan, "u-mgr", models.RoutingRoleReviewer)
	dirStep := stepFor(t, pan, "u-dir", models.RoutingRoleApprover)

	_, err = f.svc.ApproveStep(ctx, pan.ID, mgrStep, dto.StepDecisionRequest{}, actorFor("u-dir", models.RoleManager))
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	pan, err = f.svc.ApproveStep(ctx, pan.ID, dirStep, dto.StepDecisionRequest{Remarks: "ok"}, actorFor("u-dir", models.RoleManager))
	require.NoError(t, err)
	assert.Equal(t, models.PANStatusPendingApproval, pan.Status)

	pan, err = f.svc.ApproveStep(ctx, pan.ID, mgrStep, dto.StepDecisionRequest{}, actorFor("u-mgr", models.RoleManager))
	require.NoError(t, err)
	assert.Equal(t, models.PANStatusPendingEmployee, pan.Status)
	routed := decodePayload(t, f.repo.events[len(f.repo.events)-1])
	assert.Equal(t, AuditPANRouted, routed.Action)
	assert.Equal(t, []string{"u-emp"}, recipients(routed.Notifications))

	_, err = f.svc.Acknowledge(ctx, pan.ID, dto.AcknowledgePANRequest{AcknowledgedName: "Ben Reyes"}, actorFor("u-mgr", models.RoleManager))
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = f.svc.Acknowledge(ctx, pan.ID, dto.AcknowledgePANRequest{AcknowledgedName: "Ben Reyes", SignatureID: "doc-1"}, actorFor("u-emp", models.RoleEmployee))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	pan, err = f.svc.Acknowledge(ctx, pan.ID, dto.AcknowledgePANRequest{AcknowledgedName: "Ben Reyes", SignatureID: "sig-1"}, actorFor("u-emp", models.RoleEmployee))
	require.NoError(t, err)
	assert.Equal(t, models.PANStatusCompleted, pan.Status)
	assert.Equal(t, "signatures/sig-1.png", f.repo.lastSet["signature_path"])
}

func TestPANSequentialRoutingEnforcesOrder(t *testing.T) {
	f := newPANFixture(true)
	ctx := context.Background()
	hr := actorFor("u-hr", models.RoleHR)
	pan, err := f.svc.CreateDraft(ctx, promotionRequest(), hr)
	require.NoError(t, err)
	pan, err = f.svc.Submit(ctx, pan.ID, hr)
	require.NoError(t, err)

	_, err = f.svc.ApproveStep(ctx, pan.ID, stepFor(t, pan, "u-dir", models.RoutingRoleApprover), dto.StepDecisionRequest{}, actorFor("u-dir", models.RoleManager))
	assert.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))
}

func TestPANAcknowledgerStepCannotBeApproved(t *testing.T) {
	f := newPANFixture(false)
	ctx := context.Background()
	hr := actorFor("u-hr", models.RoleHR)
	pan, err := f.svc.CreateDraft(ctx, promotionRequest(), hr)
	require.NoError(t, err)
	pan, err = f.svc.Submit(ctx, pan.ID, hr)
	require.NoError(t, err)

	_, err = f.svc.ApproveStep(ctx, pan.ID, stepFor(t, pan, "u-emp", models.RoutingRoleAcknowledger), dto.StepDecisionRequest{}, actorFor("u-emp", models.RoleEmployee))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestPANDeclineRequiresRemarks(t *testing.T) {
	f := newPANFixture(false)
	ctx := context.Background()
	hr := actorFor("u-hr", models.RoleHR)
	pan, err := f.svc.CreateDraft(ctx, promotionRequest(), hr)
	require.NoError(t, err)
	pan, err = f.svc.Submit(ctx, pan.ID, hr)
	require.NoError(t, err)
	mgrStep := stepFor(t, pan, "u-mgr", models.RoutingRoleReviewer)

	_, err = f.svc.DeclineStep(ctx, pan.ID, mgrStep, dto.StepDecisionRequest{Remarks: "  "}, actorFor("u-mgr", models.RoleManager))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	pan, err = f.svc.DeclineStep(ctx, pan.ID, mgrStep, dto.StepDecisionRequest{Remarks: "budget freeze"}, actorFor("u-mgr", models.RoleManager))
	require.NoError(t, err)
	assert.Equal(t, models.PANStatusDeclined, pan.Status)
	assert.Equal(t, "budget freeze", derefString(pan.DeclinedReason))

	_, err = f.svc.ApproveStep(ctx, pan.ID, stepFor(t, pan, "u-dir", models.RoutingRoleApprover), dto.StepDecisionRequest{}, actorFor("u-dir", models.RoleManager))
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
}

func TestPANDraftValidation(t *testing.T) {
	f := newPANFixture(false)
	ctx := context.Background()
	hr := actorFor("u-hr", models.RoleHR)

	req := promotionRequest()
	req.Routing = []dto.RoutingStepInput{{Order: 1, Role: models.RoutingRoleAcknowledger, UserID: "u-emp"}}
	_, err := f.svc.CreateDraft(ctx, req, hr)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	req = promotionRequest()
	req.Routing[1].UserID = "u-old"
	_, err = f.svc.CreateDraft(ctx, req, hr)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	req = promotionRequest()
	req.ActionType = "DEMOTION"
	_, err = f.svc.CreateDraft(ctx, req, hr)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.CreateDraft(ctx, promotionRequest(), actorFor("u-emp", models.RoleEmployee))
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestPANUpdateDraftOnlyWhileDraft(t *testing.T) {
	f := newPANFixture(false)
	ctx := context.Background()
	hr := actorFor("u-hr", models.RoleHR)
	pan, err := f.svc.CreateDraft(ctx, promotionRequest(), hr)
	require.NoError(t, err)

	update := dto.UpdatePANRequest{ActionType: models.PANActionTransfer, EffectiveDate: "2026-05-01", Remarks: "moved"}
	updated, err := f.svc.UpdateDraft(ctx, pan.ID, update, hr)
	require.NoError(t, err)
	assert.Equal(t, models.PANActionTransfer, updated.ActionType)
	assert.Len(t, updated.Steps, 3)

	_, err = f.svc.Submit(ctx, pan.ID, hr)
	require.NoError(t, err)
	_, err = f.svc.UpdateDraft(ctx, pan.ID, update, hr)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
}

func TestPANListScopes(t *testing.T) {
	f := newPANFixture(false)
	ctx := context.Background()

	_, _, err := f.svc.List(ctx, dto.PANQuery{}, actorFor("u-mgr", models.RoleManager))
	require.NoError(t, err)
	assert.Equal(t, "u-mgr", f.repo.filter.ApproverUserID)

	_, _, err = f.svc.List(ctx, dto.PANQuery{Scope: dto.ScopeMine}, actorFor("u-emp", models.RoleEmployee))
	require.NoError(t, err)
	assert.Equal(t, "u-emp", f.repo.filter.EmployeeUserID)

	_, _, err = f.svc.List(ctx, dto.PANQuery{Scope: dto.ScopeAll}, actorFor("u-emp", models.RoleEmployee))
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestPANRequiresEmployeeWithUserAccount(t *testing.T) {
	f := newPANFixture(false)
	ctx := context.Background()
	hr := actorFor("u-hr", models.RoleHR)

	req := promotionRequest()
	req.EmployeeID = "e-2"
	_, err := f.svc.CreateDraft(ctx, req, hr)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, f.repo.pans)

	pan, err := f.svc.CreateDraft(ctx, promotionRequest(), hr)
	require.NoError(t, err)
	f.repo.pans[pan.ID].EmployeeUserID = nil

	_, err = f.svc.Submit(ctx, pan.ID, hr)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, models.PANStatusDraft, f.repo.pans[pan.ID].Status)
}
