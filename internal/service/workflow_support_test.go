package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hris-api/internal/models"
	"github.com/noah-isme/hris-api/internal/workflow"
	appErrors "github.com/noah-isme/hris-api/pkg/errors"
)

type stubDirectory struct {
	byRole map[models.UserRole][]string
	users  map[string]models.User
}

func (s *stubDirectory) ListIDsByRole(ctx context.Context, role models.UserRole) ([]string, error) {
	return s.byRole[role], nil
}

func (s *stubDirectory) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type stubEmployees struct {
	byID map[string]*models.Employee
}

func (s *stubEmployees) FindByID(ctx context.Context, id string) (*models.Employee, error) {
	if e, ok := s.byID[id]; ok {
		copy := *e
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubEmployees) FindByUserID(ctx context.Context, userID string) (*models.Employee, error) {
	for _, e := range s.byID {
		if e.UserID != nil && *e.UserID == userID {
			copy := *e
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

type stubObserver struct {
	transitions []string
}

func (s *stubObserver) ObserveTransition(entity, action string) {
	s.transitions = append(s.transitions, entity+":"+action)
}

func decodePayload(t *testing.T, ev models.OutboxEvent) models.EventPayload {
	t.Helper()
	var payload models.EventPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	return payload
}

func recipients(notes []models.NotificationDraft) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.UserID)
	}
	return out
}

func actorFor(userID string, role models.UserRole) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: role, FullName: userID}
}

func TestTransitionFailureMapping(t *testing.T) {
	err := transitionFailure(fmt.Errorf("cas: %w", sql.ErrNoRows), "benefit request")
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyProcessed))

	err = transitionFailure(workflow.Benefits.Require(workflow.BenefitFulfill, models.BenefitStatusPendingHR), "benefit request")
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))

	err = transitionFailure(&pq.Error{Code: "23505"}, "asset")
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	err = transitionFailure(appErrors.ErrForbidden, "asset")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	err = transitionFailure(errors.New("boom"), "asset")
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

func TestHasRoleSuperAdminPasses(t *testing.T) {
	assert.True(t, hasRole(actorFor("u", models.RoleSuperAdmin), models.RoleHR))
	assert.True(t, hasRole(actorFor("u", models.RoleHR), models.RoleHR, models.RoleBoard))
	assert.False(t, hasRole(actorFor("u", models.RoleEmployee), models.RoleHR))
	assert.False(t, hasRole(nil, models.RoleHR))
}

func TestDraftsDeduplicates(t *testing.T) {
	notes := drafts([]string{"a", "", "b", "a"}, "t", "m")
	assert.Equal(t, []string{"a", "b"}, recipients(notes))
}
