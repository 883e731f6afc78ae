package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/noah-isme/hris-api/internal/models"
	"github.com/noah-isme/hris-api/internal/repository"
	"github.com/noah-isme/hris-api/internal/workflow"
	appErrors "github.com/noah-isme/hris-api/pkg/errors"
)

// TransitionObserver is told about every committed workflow transition.
type TransitionObserver interface {
	ObserveTransition(entity, action string)
}

type roleDirectory interface {
	ListIDsByRole(ctx context.Context, role models.UserRole) ([]string, error)
}

type userLookup interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

type employeeLookup interface {
	FindByID(ctx context.Context, id string) (*models.Employee, error)
	FindByUserID(ctx context.Context, userID string) (*models.Employee, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type attachmentLookup interface {
	Get(ctx context.Context, id string) (*models.Attachment, error)
}

const uniqueViolation = "23505"

// transitionFailure maps repository and state machine errors of a transition
// onto API errors. A compare-and-swap miss means another request won the race.
func transitionFailure(err error, subject string) error {
	var transitionErr *workflow.TransitionError
	var pqErr *pq.Error
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrAlreadyProcessed, subject+" was already processed")
	case errors.As(err, &transitionErr):
		return appErrors.Wrap(err, appErrors.ErrInvalidTransition.Code, appErrors.ErrInvalidTransition.Status, transitionErr.Error())
	case errors.As(err, &pqErr) && pqErr.Code == uniqueViolation:
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, subject+" conflicts with an existing record")
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update "+subject)
}

// loadFailure maps a lookup error, turning sql.ErrNoRows into NOT_FOUND.
func loadFailure(err error, subject string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, subject+" not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load "+subject)
}

func validationFailure(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
}

// hasRole reports whether actor holds one of roles. SUPERADMIN always passes.
func hasRole(actor *models.JWTClaims, roles ...models.UserRole) bool {
	if actor == nil {
		return false
	}
	if actor.Role == models.RoleSuperAdmin {
		return true
	}
	for _, role := range roles {
		if actor.Role == role {
			return true
		}
	}
	return false
}

func requireActor(actor *models.JWTClaims) error {
	if actor == nil || actor.UserID == "" {
		return appErrors.ErrUnauthorized
	}
	return nil
}

// drafts builds one notification per distinct, non-empty user id.
func drafts(userIDs []string, title, message string) []models.NotificationDraft {
	seen := make(map[string]struct{}, len(userIDs))
	out := make([]models.NotificationDraft, 0, len(userIDs))
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, models.NotificationDraft{UserID: id, Title: title, Message: message})
	}
	return out
}

// outboxEvent builds a single outbox event for a transition.
func outboxEvent(actor *models.JWTClaims, action, entity, entityID string, details map[string]interface{}, notes []models.NotificationDraft) ([]models.OutboxEvent, error) {
	payload := models.EventPayload{
		Action:        action,
		Entity:        entity,
		EntityID:      entityID,
		Details:       details,
		Notifications: notes,
	}
	if actor != nil && actor.UserID != "" {
		id := actor.UserID
		payload.ActorID = &id
	}
	ev, err := repository.NewOutboxEvent(fmt.Sprintf("%s.%s", entity, action), payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build outbox event")
	}
	return []models.OutboxEvent{ev}, nil
}

func strPtr(v string) *string {
	return &v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
