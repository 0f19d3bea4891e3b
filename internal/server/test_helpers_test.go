package server

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/livedoc-hq/livedoc/backend/internal/ai"
	"github.com/livedoc-hq/livedoc/backend/internal/auth"
	"github.com/livedoc-hq/livedoc/backend/internal/channel"
	"github.com/livedoc-hq/livedoc/backend/internal/documents"
	"github.com/livedoc-hq/livedoc/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSigningSecret = "router-test-secret"

type stubAIService struct {
	generateContent func(context.Context, ai.GenerateContentRequest) (ai.GenerateContentResponse, error)
}

func (s *stubAIService) GenerateContent(ctx context.Context, req ai.GenerateContentRequest) (ai.GenerateContentResponse, error) {
	if s.generateContent != nil {
		return s.generateContent(ctx, req)
	}
	return ai.GenerateContentResponse{Content: "stub content"}, nil
}

func (s *stubAIService) AnalyzeCode(context.Context, ai.AnalyzeCodeRequest) (ai.AnalyzeCodeResponse, error) {
	return ai.AnalyzeCodeResponse{Documentation: "stub docs"}, nil
}

func (s *stubAIService) ImproveDocument(_ context.Context, req ai.ImproveDocumentRequest) (ai.ImproveDocumentResponse, error) {
	return ai.ImproveDocumentResponse{ImprovedContent: req.Content}, nil
}

func (s *stubAIService) GenerateSpec(context.Context, ai.GenerateSpecRequest) (ai.GenerateSpecResponse, error) {
	return ai.GenerateSpecResponse{Specification: "stub spec"}, nil
}

type testEnv struct {
	handler   http.Handler
	documents *documents.Service
	issuer    *auth.TokenIssuer
	hub       *channel.Hub
	aiStub    *stubAIService
}

var testDatabaseSeq int

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	testDatabaseSeq++
	dsn := fmt.Sprintf("file:routertest%d?mode=memory&cache=shared", testDatabaseSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&documents.Project{}, &documents.Document{}, &users.Identity{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	documentsService, err := documents.NewService(documents.ServiceConfig{
		Database:   db,
		IDProvider: documents.NewUUIDProvider(),
		Logger:     zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build documents service: %v", err)
	}
	usersService, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build users service: %v", err)
	}
	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        auth.TokenIssuerName,
	})
	if err != nil {
		t.Fatalf("failed to build validator: %v", err)
	}

	hub := channel.NewHub(zap.NewNop())
	aiStub := &stubAIService{}
	handler, err := NewHTTPHandler(Dependencies{
		SessionValidator: validator,
		UsersService:     usersService,
		DocumentsService: documentsService,
		AIService:        aiStub,
		Channels:         hub,
		Logger:           zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	return &testEnv{
		handler:   handler,
		documents: documentsService,
		issuer: auth.NewTokenIssuer(auth.TokenIssuerConfig{
			SigningSecret: []byte(testSigningSecret),
			TokenTTL:      time.Hour,
		}),
		hub:    hub,
		aiStub: aiStub,
	}
}

func (env *testEnv) mintToken(t *testing.T, profile auth.UserProfile) string {
	t.Helper()
	token, _, err := env.issuer.IssueSessionToken(context.Background(), profile)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}
