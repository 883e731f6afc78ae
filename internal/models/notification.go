package models

import "time"

// Notification is an in-app message for a single user.
type Notification struct {
	ID              string     `db:"id" json:"id"`
	UserID          string     `db:"user_id" json:"user_id"`
	Title           string     `db:"title" json:"title"`
	Message         string     `db:"message" json:"message"`
	Entity          string     `db:"entity" json:"entity"`
	RelatedEntityID *string    `db:"related_entity_id" json:"related_entity_id,omitempty"`
	IsRead          bool       `db:"is_read" json:"is_read"`
	ReadAt          *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// NotificationFilter narrows a user's notification listing.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Page       int
	PageSize   int
}
