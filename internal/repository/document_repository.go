package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hris-api/internal/models"
)

// DocumentTemplateRepository stores printable templates, one per kind.
type DocumentTemplateRepository struct {
	db *sqlx.DB
}

// NewDocumentTemplateRepository constructs the repository.
func NewDocumentTemplateRepository(db *sqlx.DB) *DocumentTemplateRepository {
	return &DocumentTemplateRepository{db: db}
}

// GetByKind fetches the template for kind.
func (r *DocumentTemplateRepository) GetByKind(ctx context.Context, kind models.DocumentKind) (*models.DocumentTemplate, error) {
	var tpl models.DocumentTemplate
	if err := r.db.GetContext(ctx, &tpl, `SELECT id, kind, title, body, updated_at FROM document_templates WHERE kind = $1`, kind); err != nil {
		return nil, err
	}
	return &tpl, nil
}

// Upsert replaces the template for tpl.Kind.
func (r *DocumentTemplateRepository) Upsert(ctx context.Context, tpl *models.DocumentTemplate) error {
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	tpl.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO document_templates (id, kind, title, body, updated_at)
VALUES (:id, :kind, :title, :body, :updated_at)
ON CONFLICT (kind) DO UPDATE SET title = EXCLUDED.title, body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, tpl); err != nil {
		return fmt.Errorf("upsert document template: %w", err)
	}
	return nil
}
