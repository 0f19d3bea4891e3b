package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/livedoc-hq/livedoc/backend/internal/ai"
	"github.com/livedoc-hq/livedoc/backend/internal/auth"
	"github.com/livedoc-hq/livedoc/backend/internal/channel"
	"github.com/livedoc-hq/livedoc/backend/internal/documents"
	"github.com/livedoc-hq/livedoc/backend/internal/users"
	"go.uber.org/zap"
)

const sessionClaimsContextKey = "livedoc_session_claims"

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingUsersService     = errors.New("users service dependency required")
	errMissingDocumentsService = errors.New("documents service dependency required")
	errMissingAIService        = errors.New("ai service dependency required")
	errMissingChannelHub       = errors.New("channel hub dependency required")
	errInvalidAuthorization    = errors.New("authorization header missing or invalid")
)

// SessionValidator validates bearer tokens into session claims.
type SessionValidator interface {
	ValidateToken(token string) (auth.SessionClaims, error)
}

// Dependencies wires the HTTP layer to the service layer.
type Dependencies struct {
	SessionValidator SessionValidator
	UsersService     *users.Service
	DocumentsService *documents.Service
	AIService        ai.Service
	Channels         *channel.Hub
	Logger           *zap.Logger
}

// NewHTTPHandler builds the gin router for the API server.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.SessionValidator == nil {
		return nil, errMissingSessionValidator
	}
	if deps.UsersService == nil {
		return nil, errMissingUsersService
	}
	if deps.DocumentsService == nil {
		return nil, errMissingDocumentsService
	}
	if deps.AIService == nil {
		return nil, errMissingAIService
	}
	if deps.Channels == nil {
		return nil, errMissingChannelHub
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		validator: deps.SessionValidator,
		users:     deps.UsersService,
		documents: deps.DocumentsService,
		ai:        deps.AIService,
		channels:  deps.Channels,
		logger:    logger,
	}

	router.GET("/healthz", handler.handleHealth)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/projects", handler.handleCreateProject)
	protected.GET("/projects", handler.handleListProjects)
	protected.POST("/documents", handler.handleCreateDocument)
	protected.GET("/documents", handler.handleListDocuments)
	protected.GET("/documents/:id", handler.handleGetDocument)
	protected.PUT("/documents/:id/content", handler.handleSaveContent)
	protected.DELETE("/documents/:id", handler.handleDeleteDocument)
	protected.GET("/documents/:id/session", handler.handleDocumentSession)
	protected.POST("/ai/generate-content", handler.handleGenerateContent)
	protected.POST("/ai/analyze-code", handler.handleAnalyzeCode)
	protected.POST("/ai/improve-document", handler.handleImproveDocument)
	protected.POST("/ai/generate-spec", handler.handleGenerateSpec)

	return router, nil
}

type httpHandler struct {
	validator SessionValidator
	users     *users.Service
	documents *documents.Service
	ai        ai.Service
	channels  *channel.Hub
	logger    *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token := ""
	if strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	// websocket clients cannot set headers from the browser; accept the token
	// as a query parameter on the session route only.
	if token == "" && c.FullPath() == "/documents/:id/session" {
		token = strings.TrimSpace(c.Query("token"))
	}
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	claims, err := h.validator.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(sessionClaimsContextKey, claims)
	c.Next()
}

func (h *httpHandler) sessionClaims(c *gin.Context) (auth.SessionClaims, bool) {
	value, ok := c.Get(sessionClaimsContextKey)
	if !ok {
		return auth.SessionClaims{}, false
	}
	claims, ok := value.(auth.SessionClaims)
	return claims, ok
}

type projectPayload struct {
	ProjectID        string `json:"project_id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	CreatedAtSeconds int64  `json:"created_at_s"`
	UpdatedAtSeconds int64  `json:"updated_at_s"`
}

func toProjectPayload(project documents.Project) projectPayload {
	return projectPayload{
		ProjectID:        project.ProjectID,
		Name:             project.Name,
		Description:      project.Description,
		CreatedAtSeconds: project.CreatedAtSeconds,
		UpdatedAtSeconds: project.UpdatedAtSeconds,
	}
}

type documentPayload struct {
	DocumentID       string `json:"document_id"`
	ProjectID        string `json:"project_id"`
	Title            string `json:"title"`
	Content          string `json:"content"`
	DocType          string `json:"doc_type"`
	Version          int64  `json:"version"`
	LastEditorID     string `json:"last_editor_id"`
	CreatedAtSeconds int64  `json:"created_at_s"`
	UpdatedAtSeconds int64  `json:"updated_at_s"`
}

func toDocumentPayload(document documents.Document) documentPayload {
	return documentPayload{
		DocumentID:       document.DocumentID,
		ProjectID:        document.ProjectID,
		Title:            document.Title,
		Content:          document.Content,
		DocType:          string(document.DocType),
		Version:          document.Version,
		LastEditorID:     document.LastEditorID,
		CreatedAtSeconds: document.CreatedAtSeconds,
		UpdatedAtSeconds: document.UpdatedAtSeconds,
	}
}

type createProjectPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *httpHandler) handleCreateProject(c *gin.Context) {
	claims, ok := h.sessionClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var request createProjectPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	project, err := h.documents.CreateProject(c.Request.Context(), claims.UserID, request.Name, request.Description)
	if err != nil {
		h.logger.Error("failed to create project", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create_failed"})
		return
	}
	c.JSON(http.StatusCreated, toProjectPayload(project))
}

func (h *httpHandler) handleListProjects(c *gin.Context) {
	claims, ok := h.sessionClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	projects, err := h.documents.ListProjects(c.Request.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("failed to list projects", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	payloads := make([]projectPayload, 0, len(projects))
	for _, project := range projects {
		payloads = append(payloads, toProjectPayload(project))
	}
	c.JSON(http.StatusOK, gin.H{"projects": payloads})
}

type createDocumentPayload struct {
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	DocType   string `json:"doc_type"`
}

func (h *httpHandler) handleCreateDocument(c *gin.Context) {
	claims, ok := h.sessionClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var request createDocumentPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	document, err := h.documents.CreateDocument(
		c.Request.Context(), claims.UserID, request.ProjectID, request.Title, documents.DocType(request.DocType))
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project_not_found"})
			return
		}
		if errors.Is(err, documents.ErrInvalidProjectID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
		h.logger.Error("failed to create document", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create_failed"})
		return
	}
	c.JSON(http.StatusCreated, toDocumentPayload(document))
}

func (h *httpHandler) handleListDocuments(c *gin.Context) {
	claims, ok := h.sessionClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	docs, err := h.documents.ListDocuments(c.Request.Context(), claims.UserID, c.Query("project_id"))
	if err != nil {
		if errors.Is(err, documents.ErrInvalidProjectID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
		h.logger.Error("failed to list documents", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	payloads := make([]documentPayload, 0, len(docs))
	for _, doc := range docs {
		payloads = append(payloads, toDocumentPayload(doc))
	}
	c.JSON(http.StatusOK, gin.H{"documents": payloads})
}

func (h *httpHandler) handleGetDocument(c *gin.Context) {
	claims, ok := h.sessionClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	document, err := h.documents.GetDocument(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		h.logger.Error("failed to fetch document", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch_failed"})
		return
	}
	c.JSON(http.StatusOK, toDocumentPayload(document))
}

type saveContentPayload struct {
	Content string `json:"content"`
}

func (h *httpHandler) handleSaveContent(c *gin.Context) {
	claims, ok := h.sessionClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var request saveContentPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	document, err := h.documents.SaveContent(c.Request.Context(), claims.UserID, c.Param("id"), claims.UserID, request.Content)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		h.logger.Error("failed to save document", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save_failed"})
		return
	}
	c.JSON(http.StatusOK, toDocumentPayload(document))
}

func (h *httpHandler) handleDeleteDocument(c *gin.Context) {
	claims, ok := h.sessionClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.documents.DeleteDocument(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		h.logger.Error("failed to delete document", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleGenerateContent(c *gin.Context) {
	var request ai.GenerateContentRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	response, err := h.ai.GenerateContent(c.Request.Context(), request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleAnalyzeCode(c *gin.Context) {
	var request ai.AnalyzeCodeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	response, err := h.ai.AnalyzeCode(c.Request.Context(), request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleImproveDocument(c *gin.Context) {
	var request ai.ImproveDocumentRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	response, err := h.ai.ImproveDocument(c.Request.Context(), request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleGenerateSpec(c *gin.Context) {
	var request ai.GenerateSpecRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	response, err := h.ai.GenerateSpec(c.Request.Context(), request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, response)
}
