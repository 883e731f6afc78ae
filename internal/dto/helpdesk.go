package dto

import "github.com/noah-isme/hris-api/internal/models"

// CreateTicketRequest files a helpdesk inquiry.
type CreateTicketRequest struct {
	Category    string                `json:"category" validate:"required,max=64"`
	Subject     string                `json:"subject" validate:"required,max=200"`
	Description string                `json:"description" validate:"max=8000"`
	Priority    models.TicketPriority `json:"priority" validate:"omitempty,oneof=LOW NORMAL HIGH"`
}

// AssignTicketRequest picks the HR handler; empty means the caller.
type AssignTicketRequest struct {
	AssigneeUserID string `json:"assignee_user_id"`
}

// ResolveTicketRequest requires a resolution note.
type ResolveTicketRequest struct {
	Resolution string `json:"resolution" validate:"required,max=8000"`
}

// TicketQuery mirrors ticket list filters. Scope is ScopeMine, ScopeAssigned or ScopeAll.
type TicketQuery struct {
	Status   []models.TicketStatus
	Scope    string
	Page     int
	PageSize int
}

// ScopeAssigned lists tickets handled by the caller.
const ScopeAssigned = "assigned"
