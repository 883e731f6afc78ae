package models

import "time"

// AnnouncementAudience defines who can see an announcement.
type AnnouncementAudience string

const (
	AnnouncementAudienceAll        AnnouncementAudience = "ALL"
	AnnouncementAudienceHR         AnnouncementAudience = "HR"
	AnnouncementAudienceBoard      AnnouncementAudience = "BOARD"
	AnnouncementAudienceManagers   AnnouncementAudience = "MANAGERS"
	AnnouncementAudienceDepartment AnnouncementAudience = "DEPARTMENT"
)

// AnnouncementPriority defines ordering for announcements.
type AnnouncementPriority string

const (
	AnnouncementPriorityLow    AnnouncementPriority = "LOW"
	AnnouncementPriorityNormal AnnouncementPriority = "NORMAL"
	AnnouncementPriorityHigh   AnnouncementPriority = "HIGH"
)

// Announcement represents a persisted announcement row.
type Announcement struct {
	ID               string               `db:"id" json:"id"`
	Title            string               `db:"title" json:"title"`
	Content          string               `db:"content" json:"content"`
	Audience         AnnouncementAudience `db:"audience" json:"audience"`
	TargetDepartment *string              `db:"target_department" json:"target_department,omitempty"`
	Priority         AnnouncementPriority `db:"priority" json:"priority"`
	IsPinned         bool                 `db:"is_pinned" json:"is_pinned"`
	PublishedAt      time.Time            `db:"published_at" json:"published_at"`
	ExpiresAt        *time.Time           `db:"expires_at" json:"expires_at,omitempty"`
	CreatedBy        string               `db:"created_by" json:"created_by"`
	CreatedAt        time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time            `db:"updated_at" json:"updated_at"`
}

// AnnouncementFilter selects announcements visible to a reader. Unrestricted
// skips the audience check and is used for HR's management view.
type AnnouncementFilter struct {
	Audiences    []AnnouncementAudience
	Departments  []string
	Unrestricted bool
	ActiveAt     time.Time
	Page         int
	PageSize     int
}
