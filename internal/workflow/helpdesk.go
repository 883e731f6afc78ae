package workflow

import "github.com/noah-isme/hris-api/internal/models"

const (
	TicketAssign  Action = "assign"
	TicketResolve Action = "resolve"
	TicketClose   Action = "close"
	TicketReopen  Action = "reopen"
)

// Tickets is the helpdesk ticket lifecycle.
var Tickets = Table[models.TicketStatus]{
	Entity: models.EntityTicket,
	Rules: map[Action]Rule[models.TicketStatus]{
		TicketAssign: {
			From: []models.TicketStatus{models.TicketStatusOpen},
			To:   []models.TicketStatus{models.TicketStatusInProgress},
		},
		TicketResolve: {
			From: []models.TicketStatus{models.TicketStatusOpen, models.TicketStatusInProgress},
			To:   []models.TicketStatus{models.TicketStatusResolved},
		},
		TicketClose: {
			From: []models.TicketStatus{models.TicketStatusResolved},
			To:   []models.TicketStatus{models.TicketStatusClosed},
		},
		TicketReopen: {
			From: []models.TicketStatus{models.TicketStatusResolved},
			To:   []models.TicketStatus{models.TicketStatusOpen},
		},
	},
}
