package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/hris-api/internal/dto"
	"github.com/noah-isme/hris-api/internal/models"
	"github.com/noah-isme/hris-api/internal/repository"
	appErrors "github.com/noah-isme/hris-api/pkg/errors"
)

type fakeTicketRepo struct {
	tickets map[string]*models.HelpdeskTicket
	events  []models.OutboxEvent
	filter  models.TicketFilter
}

func (f *fakeTicketRepo) Create(ctx context.Context, t *models.HelpdeskTicket, events []models.OutboxEvent) error {
	t.Status = models.TicketStatusOpen
	if t.Priority == "" {
		t.Priority = models.TicketPriorityNormal
	}
	copy := *t
	f.tickets[t.ID] = &copy
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeTicketRepo) Get(ctx context.Context, id string) (*models.HelpdeskTicket, error) {
	if t, ok := f.tickets[id]; ok {
		copy := *t
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeTicketRepo) List(ctx context.Context, filter models.TicketFilter) ([]models.HelpdeskTicket, int, error) {
	f.filter = filter
	return nil, 0, nil
}

func (f *fakeTicketRepo) Transition(ctx context.Context, t repository.Transition, events []models.OutboxEvent) error {
	ticket, ok := f.tickets[t.ID]
	if !ok || string(ticket.Status) != t.From {
		return sql.ErrNoRows
	}
	ticket.Status = models.TicketStatus(t.To)
	if v, ok := t.Set["assignee_user_id"].(string); ok {
		ticket.AssigneeUserID = &v
	}
	f.events = append(f.events, events...)
	return nil
}

func newHelpdeskFixture() (*fakeTicketRepo, *HelpdeskService) {
	repo := &fakeTicketRepo{tickets: map[string]*models.HelpdeskTicket{}}
	empUser := "u-emp"
	employees := &stubEmployees{byID: map[string]*models.Employee{"e-1": {ID: "e-1", UserID: &empUser, FirstName: "Ana"}}}
	directory := &stubDirectory{
		byRole: map[models.UserRole][]string{models.RoleHR: {"u-hr", "u-hr2"}},
		users: map[string]models.User{
			"u-hr2": {ID: "u-hr2", Role: models.RoleHR, Active: true},
			"u-mgr": {ID: "u-mgr", Role: models.RoleManager, Active: true},
		},
	}
	return repo, NewHelpdeskService(repo, employees, directory, nil, zap.NewNop())
}

func TestHelpdeskTicketLifecycle(t *testing.T) {
	repo, svc := newHelpdeskFixture()
	ctx := context.Background()
	employee := actorFor("u-emp", models.RoleEmployee)
	hr := actorFor("u-hr", models.RoleHR)

	ticket, err := svc.Create(ctx, dto.CreateTicketRequest{Category: "payroll", Subject: "Missing overtime"}, employee)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusOpen, ticket.Status)
	assert.ElementsMatch(t, []string{"u-hr", "u-hr2"}, recipients(decodePayload(t, repo.events[0]).Notifications))

	_, err = svc.Assign(ctx, ticket.ID, dto.AssignTicketRequest{AssigneeUserID: "u-mgr"}, hr)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	ticket, err = svc.Assign(ctx, ticket.ID, dto.AssignTicketRequest{AssigneeUserID: "u-hr2"}, hr)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusInProgress, ticket.Status)
	assert.Equal(t, "u-hr2", derefString(ticket.AssigneeUserID))
	assert.ElementsMatch(t, []string{"u-emp", "u-hr2"}, recipients(decodePayload(t, repo.events[len(repo.events)-1]).Notifications))

	_, err = svc.Close(ctx, ticket.ID, employee)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))

	ticket, err = svc.Resolve(ctx, ticket.ID, dto.ResolveTicketRequest{Resolution: "paid next cycle"}, hr)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusResolved, ticket.Status)

	ticket, err = svc.Reopen(ctx, ticket.ID, employee)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusOpen, ticket.Status)

	ticket, err = svc.Resolve(ctx, ticket.ID, dto.ResolveTicketRequest{Resolution: "paid"}, hr)
	require.NoError(t, err)

	_, err = svc.Close(ctx, ticket.ID, actorFor("u-other", models.RoleEmployee))
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	ticket, err = svc.Close(ctx, ticket.ID, employee)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusClosed, ticket.Status)
	assert.Equal(t, []string{"u-hr2"}, recipients(decodePayload(t, repo.events[len(repo.events)-1]).Notifications))
}

func TestHelpdeskResolveRequiresResolution(t *testing.T) {
	repo, svc := newHelpdeskFixture()
	repo.tickets["t-1"] = &models.HelpdeskTicket{ID: "t-1", RequesterUserID: "u-emp", Status: models.TicketStatusOpen}
	_, err := svc.Resolve(context.Background(), "t-1", dto.ResolveTicketRequest{}, actorFor("u-hr", models.RoleHR))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestHelpdeskListScopes(t *testing.T) {
	repo, svc := newHelpdeskFixture()
	ctx := context.Background()

	_, _, err := svc.List(ctx, dto.TicketQuery{}, actorFor("u-emp", models.RoleEmployee))
	require.NoError(t, err)
	assert.Equal(t, "u-emp", repo.filter.RequesterUserID)

	_, _, err = svc.List(ctx, dto.TicketQuery{Scope: dto.ScopeAssigned}, actorFor("u-hr", models.RoleHR))
	require.NoError(t, err)
	assert.Equal(t, "u-hr", repo.filter.AssigneeUserID)

	_, _, err = svc.List(ctx, dto.TicketQuery{Scope: dto.ScopeAll}, actorFor("u-emp", models.RoleEmployee))
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}
