package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Entities referenced by audit entries, notifications and outbox events.
const (
	EntityBenefitRequest = "benefit_request"
	EntityBenefitType    = "benefit_type"
	EntityPAN            = "pan"
	EntityAsset          = "asset"
	EntityAssetRequest   = "asset_request"
	EntityTicket         = "helpdesk_ticket"
	EntityEmployee       = "employee"
	EntityUser           = "user"
)

// OutboxEvent is written in the same transaction as a state change and later
// fanned out into audit entries and notifications by the dispatcher.
type OutboxEvent struct {
	ID          string         `db:"id" json:"id"`
	Aggregate   string         `db:"aggregate" json:"aggregate"`
	AggregateID string         `db:"aggregate_id" json:"aggregate_id"`
	EventType   string         `db:"event_type" json:"event_type"`
	Payload     types.JSONText `db:"payload" json:"payload"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	ProcessedAt *time.Time     `db:"processed_at" json:"processed_at,omitempty"`
	Attempts    int            `db:"attempts" json:"attempts"`
	LastError   *string        `db:"last_error" json:"last_error,omitempty"`
	FailedAt    *time.Time     `db:"failed_at" json:"failed_at,omitempty"`
	// NextAttemptAt holds a failed event back until its retry delay passes.
	NextAttemptAt time.Time `db:"next_attempt_at" json:"next_attempt_at"`
}

// EventPayload is the JSON body of an outbox event.
type EventPayload struct {
	ActorID       *string                `json:"actor_id,omitempty"`
	Action        string                 `json:"action"`
	Entity        string                 `json:"entity"`
	EntityID      string                 `json:"entity_id"`
	Details       map[string]interface{} `json:"details,omitempty"`
	Notifications []NotificationDraft    `json:"notifications,omitempty"`
}

// NotificationDraft is a notification yet to be materialised.
type NotificationDraft struct {
	UserID  string `json:"user_id"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// OutboxStats summarises the dispatcher backlog.
type OutboxStats struct {
	Pending int `db:"pending" json:"pending"`
	Failed  int `db:"failed" json:"failed"`
}
