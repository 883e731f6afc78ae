package models

import "time"

// Attachment is metadata for an uploaded file.
type Attachment struct {
	ID           string    `db:"id" json:"id"`
	Bucket       string    `db:"bucket" json:"bucket"`
	FilePath     string    `db:"file_path" json:"-"`
	OriginalName string    `db:"original_name" json:"original_name"`
	MimeType     string    `db:"mime_type" json:"mime_type"`
	SizeBytes    int64     `db:"size_bytes" json:"size_bytes"`
	UploadedBy   string    `db:"uploaded_by" json:"uploaded_by"`
	UploadedAt   time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// SignedAttachment pairs an attachment with a time-limited download URL.
type SignedAttachment struct {
	Attachment
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
