package documents

import (
	"errors"
	"fmt"
	"strings"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidDocumentID indicates that a document identifier is empty or exceeds storage bounds.
	ErrInvalidDocumentID = errors.New("documents: invalid document id")
	// ErrInvalidProjectID indicates that a project identifier is empty or exceeds storage bounds.
	ErrInvalidProjectID = errors.New("documents: invalid project id")
	// ErrInvalidOwnerID indicates that an owner identifier is empty or exceeds storage bounds.
	ErrInvalidOwnerID = errors.New("documents: invalid owner id")
	// ErrNotFound indicates the requested record does not exist or is not visible to the caller.
	ErrNotFound = errors.New("documents: not found")
)

// DocType enumerates the kinds of documents a project holds.
type DocType string

const (
	DocTypeDocumentation DocType = "documentation"
	DocTypeSpecification DocType = "specification"
	DocTypeNotes         DocType = "notes"
)

func validateIdentifier(raw string, sentinel error) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", sentinel)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", sentinel, maxIdentifierLength)
	}
	return trimmed, nil
}

// Project groups documents under one owner.
type Project struct {
	ProjectID        string `gorm:"column:project_id;primaryKey;size:190;not null"`
	OwnerID          string `gorm:"column:owner_id;size:190;not null;index:idx_projects_owner"`
	Name             string `gorm:"column:name;size:320;not null"`
	Description      string `gorm:"column:description;type:text;not null;default:''"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Project) TableName() string {
	return "projects"
}

// Document is the authoritative persisted copy of one document. Live edits
// flow through the realtime channel; this row only changes on explicit save,
// and a save overwrites the content unconditionally.
type Document struct {
	DocumentID       string  `gorm:"column:document_id;primaryKey;size:190;not null"`
	ProjectID        string  `gorm:"column:project_id;size:190;not null;index:idx_documents_project"`
	OwnerID          string  `gorm:"column:owner_id;size:190;not null;index:idx_documents_owner"`
	Title            string  `gorm:"column:title;size:320;not null"`
	Content          string  `gorm:"column:content;type:text;not null;default:''"`
	DocType          DocType `gorm:"column:doc_type;size:32;not null;default:'documentation'"`
	Version          int64   `gorm:"column:version;not null;default:1"`
	LastEditorID     string  `gorm:"column:last_editor_id;size:190;not null;default:''"`
	CreatedAtSeconds int64   `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64   `gorm:"column:updated_at_s;not null;index:idx_documents_updated"`
}

// TableName provides the explicit table binding for GORM.
func (Document) TableName() string {
	return "documents"
}
