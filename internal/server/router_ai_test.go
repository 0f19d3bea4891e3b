package server

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/livedoc-hq/livedoc/backend/internal/ai"
	"github.com/livedoc-hq/livedoc/backend/internal/auth"
)

func TestGenerateContentEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.mintToken(t, auth.UserProfile{UserID: "user-1"})

	recorder := performRequest(env, http.MethodPost, "/ai/generate-content", token, map[string]string{
		"prompt": "Describe the deployment pipeline",
		"type":   "documentation",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", recorder.Code, recorder.Body.String())
	}
	var response ai.GenerateContentResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Content != "stub content" {
		t.Fatalf("unexpected content %q", response.Content)
	}
}

func TestGenerateContentValidationErrorIsCallerError(t *testing.T) {
	env := newTestEnv(t)
	token := env.mintToken(t, auth.UserProfile{UserID: "user-1"})
	env.aiStub.generateContent = func(_ context.Context, req ai.GenerateContentRequest) (ai.GenerateContentResponse, error) {
		if req.Prompt == "" {
			return ai.GenerateContentResponse{}, ai.ErrEmptyPrompt
		}
		return ai.GenerateContentResponse{Content: "ok"}, nil
	}

	recorder := performRequest(env, http.MethodPost, "/ai/generate-content", token, map[string]string{
		"prompt": "",
		"type":   "documentation",
	})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", recorder.Code, recorder.Body.String())
	}
	if recorder.Body.String() != `{"error":"ai: prompt is required"}` {
		t.Fatalf("unexpected body %q", recorder.Body.String())
	}
}

func TestAnalyzeCodeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.mintToken(t, auth.UserProfile{UserID: "user-1"})

	recorder := performRequest(env, http.MethodPost, "/ai/analyze-code", token, map[string]string{
		"code":     "func main() {}",
		"language": "go",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", recorder.Code, recorder.Body.String())
	}
	var response ai.AnalyzeCodeResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Documentation != "stub docs" {
		t.Fatalf("unexpected documentation %q", response.Documentation)
	}
}

func TestImproveDocumentEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.mintToken(t, auth.UserProfile{UserID: "user-1"})

	recorder := performRequest(env, http.MethodPost, "/ai/improve-document", token, map[string]string{
		"content":          "rough draft",
		"improvement_type": "clarity",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", recorder.Code, recorder.Body.String())
	}
	var response ai.ImproveDocumentResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.ImprovedContent != "rough draft" {
		t.Fatalf("unexpected improved content %q", response.ImprovedContent)
	}
}

func TestGenerateSpecEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.mintToken(t, auth.UserProfile{UserID: "user-1"})

	recorder := performRequest(env, http.MethodPost, "/ai/generate-spec", token, map[string]string{
		"description": "todo app with auth",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", recorder.Code, recorder.Body.String())
	}
	var response ai.GenerateSpecResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Specification != "stub spec" {
		t.Fatalf("unexpected specification %q", response.Specification)
	}
}

func TestAIEndpointsRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	for _, target := range []string{
		"/ai/generate-content",
		"/ai/analyze-code",
		"/ai/improve-document",
		"/ai/generate-spec",
	} {
		recorder := performRequest(env, http.MethodPost, target, "", map[string]string{})
		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", target, recorder.Code)
		}
	}
}
