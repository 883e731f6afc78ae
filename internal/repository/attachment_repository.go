package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hris-api/internal/models"
)

// AttachmentRepository stores uploaded file metadata.
type AttachmentRepository struct {
	db *sqlx.DB
}

// NewAttachmentRepository constructs the repository.
func NewAttachmentRepository(db *sqlx.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

// Create inserts attachment metadata.
func (r *AttachmentRepository) Create(ctx context.Context, a *models.Attachment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.UploadedAt.IsZero() {
		a.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attachments (id, bucket, file_path, original_name, mime_type, size_bytes, uploaded_by, uploaded_at)
VALUES (:id, :bucket, :file_path, :original_name, :mime_type, :size_bytes, :uploaded_by, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("create attachment: %w", err)
	}
	return nil
}

// Get fetches attachment metadata.
func (r *AttachmentRepository) Get(ctx context.Context, id string) (*models.Attachment, error) {
	var a models.Attachment
	const query = `SELECT id, bucket, file_path, original_name, mime_type, size_bytes, uploaded_by, uploaded_at
FROM attachments WHERE id = $1`
	if err := r.db.GetContext(ctx, &a, query, id); err != nil {
		return nil, err
	}
	return &a, nil
}
