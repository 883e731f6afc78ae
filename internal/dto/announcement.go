package dto

import "time"

// AnnouncementRequest creates or replaces an announcement.
type AnnouncementRequest struct {
	Title            string     `json:"title" validate:"required,max=200"`
	Content          string     `json:"content" validate:"required"`
	Audience         string     `json:"audience" validate:"required,audience"`
	TargetDepartment *string    `json:"target_department"`
	Priority         string     `json:"priority" validate:"omitempty,priority"`
	IsPinned         bool       `json:"is_pinned"`
	PublishedAt      *time.Time `json:"published_at"`
	ExpiresAt        *time.Time `json:"expires_at"`
}
