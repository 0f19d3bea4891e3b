package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingTitle      = errors.New("title is required")
	errMissingName       = errors.New("name is required")
	noOpLogger           = zap.NewNop()
)

// ServiceError carries a dotted operation/reason code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew     = "documents.service.new"
	opCreateProject  = "documents.create_project"
	opListProjects   = "documents.list_projects"
	opCreateDocument = "documents.create_document"
	opListDocuments  = "documents.list_documents"
	opGetDocument    = "documents.get_document"
	opSaveContent    = "documents.save_content"
	opDeleteDocument = "documents.delete_document"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig describes the dependencies of the document store.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// IDProvider issues identifiers for new projects and documents.
type IDProvider interface {
	NewID() (string, error)
}

// Service persists projects and documents. It is the authority the session
// controller defers to on explicit save and initial load.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService validates the configuration and returns a document store.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// CreateProject stores a new project owned by ownerID.
func (s *Service) CreateProject(ctx context.Context, ownerID, name, description string) (Project, error) {
	owner, err := validateIdentifier(ownerID, ErrInvalidOwnerID)
	if err != nil {
		return Project{}, newServiceError(opCreateProject, "invalid_owner", err)
	}
	if name == "" {
		return Project{}, newServiceError(opCreateProject, "missing_name", errMissingName)
	}

	projectID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateProject, "id_generation_failed", err)
		return Project{}, newServiceError(opCreateProject, "id_generation_failed", err)
	}

	now := s.clock().UTC().Unix()
	project := Project{
		ProjectID:        projectID,
		OwnerID:          owner,
		Name:             name,
		Description:      description,
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}
	if err := s.db.WithContext(ctx).Create(&project).Error; err != nil {
		s.logError(opCreateProject, "insert_failed", err, zap.String("owner_id", owner))
		return Project{}, newServiceError(opCreateProject, "insert_failed", err)
	}
	return project, nil
}

// ListProjects returns the caller's projects, most recently updated first.
func (s *Service) ListProjects(ctx context.Context, ownerID string) ([]Project, error) {
	owner, err := validateIdentifier(ownerID, ErrInvalidOwnerID)
	if err != nil {
		return nil, newServiceError(opListProjects, "invalid_owner", err)
	}

	var projects []Project
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", owner).
		Order("updated_at_s DESC").
		Find(&projects).Error; err != nil {
		s.logError(opListProjects, "query_failed", err, zap.String("owner_id", owner))
		return nil, newServiceError(opListProjects, "query_failed", err)
	}
	return projects, nil
}

// CreateDocument stores a new document inside one of the caller's projects.
func (s *Service) CreateDocument(ctx context.Context, ownerID, projectID, title string, docType DocType) (Document, error) {
	owner, err := validateIdentifier(ownerID, ErrInvalidOwnerID)
	if err != nil {
		return Document{}, newServiceError(opCreateDocument, "invalid_owner", err)
	}
	project, err := validateIdentifier(projectID, ErrInvalidProjectID)
	if err != nil {
		return Document{}, newServiceError(opCreateDocument, "invalid_project", err)
	}
	if title == "" {
		return Document{}, newServiceError(opCreateDocument, "missing_title", errMissingTitle)
	}
	if docType == "" {
		docType = DocTypeDocumentation
	}

	var owned Project
	err = s.db.WithContext(ctx).
		Where("project_id = ? AND owner_id = ?", project, owner).
		Take(&owned).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, newServiceError(opCreateDocument, "project_not_found", ErrNotFound)
	} else if err != nil {
		s.logError(opCreateDocument, "project_select_failed", err, zap.String("project_id", project))
		return Document{}, newServiceError(opCreateDocument, "project_select_failed", err)
	}

	documentID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateDocument, "id_generation_failed", err)
		return Document{}, newServiceError(opCreateDocument, "id_generation_failed", err)
	}

	now := s.clock().UTC().Unix()
	document := Document{
		DocumentID:       documentID,
		ProjectID:        project,
		OwnerID:          owner,
		Title:            title,
		DocType:          docType,
		Version:          1,
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}
	if err := s.db.WithContext(ctx).Create(&document).Error; err != nil {
		s.logError(opCreateDocument, "insert_failed", err, zap.String("project_id", project))
		return Document{}, newServiceError(opCreateDocument, "insert_failed", err)
	}
	return document, nil
}

// ListDocuments returns the documents of one project owned by the caller.
func (s *Service) ListDocuments(ctx context.Context, ownerID, projectID string) ([]Document, error) {
	owner, err := validateIdentifier(ownerID, ErrInvalidOwnerID)
	if err != nil {
		return nil, newServiceError(opListDocuments, "invalid_owner", err)
	}
	project, err := validateIdentifier(projectID, ErrInvalidProjectID)
	if err != nil {
		return nil, newServiceError(opListDocuments, "invalid_project", err)
	}

	var docs []Document
	if err := s.db.WithContext(ctx).
		Where("owner_id = ? AND project_id = ?", owner, project).
		Order("updated_at_s DESC").
		Find(&docs).Error; err != nil {
		s.logError(opListDocuments, "query_failed", err, zap.String("project_id", project))
		return nil, newServiceError(opListDocuments, "query_failed", err)
	}
	return docs, nil
}

// GetDocument fetches one document visible to the caller.
func (s *Service) GetDocument(ctx context.Context, ownerID, documentID string) (Document, error) {
	owner, err := validateIdentifier(ownerID, ErrInvalidOwnerID)
	if err != nil {
		return Document{}, newServiceError(opGetDocument, "invalid_owner", err)
	}
	docID, err := validateIdentifier(documentID, ErrInvalidDocumentID)
	if err != nil {
		return Document{}, newServiceError(opGetDocument, "invalid_document", err)
	}

	var document Document
	err = s.db.WithContext(ctx).
		Where("document_id = ? AND owner_id = ?", docID, owner).
		Take(&document).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, newServiceError(opGetDocument, "not_found", ErrNotFound)
	} else if err != nil {
		s.logError(opGetDocument, "query_failed", err, zap.String("document_id", docID))
		return Document{}, newServiceError(opGetDocument, "query_failed", err)
	}
	return document, nil
}

// GetDocumentByID fetches a document without owner scoping. Collaborative
// sessions attach participants who do not own the document; REST reads stay
// owner-scoped via GetDocument.
func (s *Service) GetDocumentByID(ctx context.Context, documentID string) (Document, error) {
	docID, err := validateIdentifier(documentID, ErrInvalidDocumentID)
	if err != nil {
		return Document{}, newServiceError(opGetDocument, "invalid_document", err)
	}

	var document Document
	err = s.db.WithContext(ctx).
		Where("document_id = ?", docID).
		Take(&document).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, newServiceError(opGetDocument, "not_found", ErrNotFound)
	} else if err != nil {
		s.logError(opGetDocument, "query_failed", err, zap.String("document_id", docID))
		return Document{}, newServiceError(opGetDocument, "query_failed", err)
	}
	return document, nil
}

// SaveContent overwrites the stored content of a document and bumps its
// version. There is no compare-and-set: the store accepts whatever the editor
// hands it, matching the last-write-wins policy of the live session.
func (s *Service) SaveContent(ctx context.Context, ownerID, documentID, editorID, content string) (Document, error) {
	owner, err := validateIdentifier(ownerID, ErrInvalidOwnerID)
	if err != nil {
		return Document{}, newServiceError(opSaveContent, "invalid_owner", err)
	}
	docID, err := validateIdentifier(documentID, ErrInvalidDocumentID)
	if err != nil {
		return Document{}, newServiceError(opSaveContent, "invalid_document", err)
	}

	var saved Document
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Document
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("document_id = ? AND owner_id = ?", docID, owner).
			Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opSaveContent, "not_found", ErrNotFound)
		} else if err != nil {
			s.logError(opSaveContent, "select_failed", err, zap.String("document_id", docID))
			return newServiceError(opSaveContent, "select_failed", err)
		}

		existing.Content = content
		existing.Version = existing.Version + 1
		existing.LastEditorID = editorID
		existing.UpdatedAtSeconds = s.clock().UTC().Unix()

		if err := tx.Save(&existing).Error; err != nil {
			s.logError(opSaveContent, "save_failed", err, zap.String("document_id", docID))
			return newServiceError(opSaveContent, "save_failed", err)
		}
		saved = existing
		return nil
	})
	if txErr != nil {
		return Document{}, txErr
	}
	return saved, nil
}

// SaveContentByID overwrites content without owner scoping, for saves issued
// from inside a collaborative session. Any participant's save is accepted.
func (s *Service) SaveContentByID(ctx context.Context, documentID, editorID, content string) (Document, error) {
	docID, err := validateIdentifier(documentID, ErrInvalidDocumentID)
	if err != nil {
		return Document{}, newServiceError(opSaveContent, "invalid_document", err)
	}

	var saved Document
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Document
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("document_id = ?", docID).
			Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opSaveContent, "not_found", ErrNotFound)
		} else if err != nil {
			s.logError(opSaveContent, "select_failed", err, zap.String("document_id", docID))
			return newServiceError(opSaveContent, "select_failed", err)
		}

		existing.Content = content
		existing.Version = existing.Version + 1
		existing.LastEditorID = editorID
		existing.UpdatedAtSeconds = s.clock().UTC().Unix()

		if err := tx.Save(&existing).Error; err != nil {
			s.logError(opSaveContent, "save_failed", err, zap.String("document_id", docID))
			return newServiceError(opSaveContent, "save_failed", err)
		}
		saved = existing
		return nil
	})
	if txErr != nil {
		return Document{}, txErr
	}
	return saved, nil
}

// DeleteDocument removes a document owned by the caller.
func (s *Service) DeleteDocument(ctx context.Context, ownerID, documentID string) error {
	owner, err := validateIdentifier(ownerID, ErrInvalidOwnerID)
	if err != nil {
		return newServiceError(opDeleteDocument, "invalid_owner", err)
	}
	docID, err := validateIdentifier(documentID, ErrInvalidDocumentID)
	if err != nil {
		return newServiceError(opDeleteDocument, "invalid_document", err)
	}

	result := s.db.WithContext(ctx).
		Where("document_id = ? AND owner_id = ?", docID, owner).
		Delete(&Document{})
	if result.Error != nil {
		s.logError(opDeleteDocument, "delete_failed", result.Error, zap.String("document_id", docID))
		return newServiceError(opDeleteDocument, "delete_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return newServiceError(opDeleteDocument, "not_found", ErrNotFound)
	}
	return nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("documents service error", attrs...)
}
