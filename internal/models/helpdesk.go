package models

import "time"

// TicketStatus is the lifecycle state of a helpdesk ticket.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// TicketPriority orders the HR queue.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityNormal TicketPriority = "NORMAL"
	TicketPriorityHigh   TicketPriority = "HIGH"
)

// HelpdeskTicket is an employee inquiry handled by HR.
type HelpdeskTicket struct {
	ID              string         `db:"id" json:"id"`
	RequesterID     string         `db:"requester_id" json:"requester_id"`
	RequesterUserID string         `db:"requester_user_id" json:"requester_user_id"`
	RequesterName   string         `db:"requester_name" json:"requester_name"`
	Category        string         `db:"category" json:"category"`
	Subject         string         `db:"subject" json:"subject"`
	Description     string         `db:"description" json:"description"`
	Priority        TicketPriority `db:"priority" json:"priority"`
	Status          TicketStatus   `db:"status" json:"status"`
	AssigneeUserID  *string        `db:"assignee_user_id" json:"assignee_user_id,omitempty"`
	Resolution      *string        `db:"resolution" json:"resolution,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	ResolvedAt      *time.Time     `db:"resolved_at" json:"resolved_at,omitempty"`
	ClosedAt        *time.Time     `db:"closed_at" json:"closed_at,omitempty"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// TicketFilter narrows ticket listings.
type TicketFilter struct {
	Status          []TicketStatus
	RequesterUserID string
	AssigneeUserID  string
	Page            int
	PageSize        int
}
