package models

import "time"

// DocumentKind identifies a printable template.
type DocumentKind string

const (
	DocumentCOE DocumentKind = "COE"
	DocumentPAN DocumentKind = "PAN"
)

// DocumentTemplate holds a body with {{placeholder}} tokens.
type DocumentTemplate struct {
	ID        string       `db:"id" json:"id" yaml:"id"`
	Kind      DocumentKind `db:"kind" json:"kind" yaml:"kind"`
	Title     string       `db:"title" json:"title" yaml:"title"`
	Body      string       `db:"body" json:"body" yaml:"body"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at" yaml:"-"`
}

// RenderedDocument is a filled template ready to be served.
type RenderedDocument struct {
	Filename    string
	ContentType string
	Content     []byte
}
