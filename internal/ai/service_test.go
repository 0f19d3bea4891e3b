package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"go.uber.org/zap"
)

func TestGenerateContentUsesUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate-content" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		var req GenerateContentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Model != "gpt-4o-mini" {
			t.Fatalf("expected default model applied, got %q", req.Model)
		}
		json.NewEncoder(w).Encode(GenerateContentResponse{ //nolint:errcheck
			Content:     "upstream content",
			Suggestions: []string{"a", "b", "c"},
			Metadata:    GenerationMetadata{ModelUsed: "gpt-4o-mini", TokensUsed: 321, ConfidenceScore: 0.92},
		})
	}))
	defer upstream.Close()

	client := NewClient(ClientConfig{BaseURL: upstream.URL, Model: "gpt-4o-mini", Logger: zap.NewNop()})
	resp, err := client.GenerateContent(context.Background(), GenerateContentRequest{
		Prompt: "Write docs for the session controller",
		Type:   GenerationTypeDocumentation,
	})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if resp.Content != "upstream content" {
		t.Fatalf("unexpected content %q", resp.Content)
	}
	if resp.Metadata.TokensUsed != 321 {
		t.Fatalf("unexpected metadata %+v", resp.Metadata)
	}
}

func TestGenerateContentFallsBackOnUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer upstream.Close()

	client := NewClient(ClientConfig{BaseURL: upstream.URL, Logger: zap.NewNop()})
	resp, err := client.GenerateContent(context.Background(), GenerateContentRequest{
		Prompt: "Write docs",
		Type:   GenerationTypeDocumentation,
	})
	if err != nil {
		t.Fatalf("fallback must not surface an error, got %v", err)
	}
	if resp.Metadata.ModelUsed != fallbackModelName {
		t.Fatalf("expected fallback response, got model %q", resp.Metadata.ModelUsed)
	}
	if len(resp.Suggestions) != 3 {
		t.Fatalf("expected 3 suggestions, got %d", len(resp.Suggestions))
	}
	if resp.Content == "" {
		t.Fatal("fallback content must not be empty")
	}
}

func TestGenerateContentFallbackIsDeterministic(t *testing.T) {
	client := NewClient(ClientConfig{Logger: zap.NewNop()}) // no upstream configured

	request := GenerateContentRequest{Prompt: "Same prompt", Type: GenerationTypeSpecification}
	first, err := client.GenerateContent(context.Background(), request)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	second, err := client.GenerateContent(context.Background(), request)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("fallback responses must be deterministic")
	}
}

func TestGenerateContentRejectsBadInput(t *testing.T) {
	client := NewClient(ClientConfig{Logger: zap.NewNop()})

	if _, err := client.GenerateContent(context.Background(), GenerateContentRequest{Type: GenerationTypeDocumentation}); !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", err)
	}
	if _, err := client.GenerateContent(context.Background(), GenerateContentRequest{Prompt: "x", Type: "poetry"}); !errors.Is(err, ErrInvalidGenerationType) {
		t.Fatalf("expected ErrInvalidGenerationType, got %v", err)
	}
}

func TestAnalyzeCodeFallbackScoresWithinBounds(t *testing.T) {
	client := NewClient(ClientConfig{Logger: zap.NewNop()})

	small, err := client.AnalyzeCode(context.Background(), AnalyzeCodeRequest{Code: "package main", Language: "go"})
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if small.ComplexityScore < 0 || small.ComplexityScore > 10 {
		t.Fatalf("score out of range: %f", small.ComplexityScore)
	}

	const branchy = `if a { } else if b { }
for i := range xs { if y { } }
switch v { case 1: case 2: }`
	big := branchy
	for i := 0; i < 50; i++ {
		big += "\n" + branchy
	}
	large, err := client.AnalyzeCode(context.Background(), AnalyzeCodeRequest{Code: big, Language: "go"})
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if large.ComplexityScore != 10 {
		t.Fatalf("expected capped score 10, got %f", large.ComplexityScore)
	}
	if large.ComplexityScore < small.ComplexityScore {
		t.Fatal("branchier code must not score lower")
	}
}

func TestImproveDocumentValidatesType(t *testing.T) {
	client := NewClient(ClientConfig{Logger: zap.NewNop()})

	if _, err := client.ImproveDocument(context.Background(), ImproveDocumentRequest{Content: "text", ImprovementType: "speed"}); !errors.Is(err, ErrInvalidImprovementType) {
		t.Fatalf("expected ErrInvalidImprovementType, got %v", err)
	}

	resp, err := client.ImproveDocument(context.Background(), ImproveDocumentRequest{Content: "text", ImprovementType: ImprovementTypeClarity})
	if err != nil {
		t.Fatalf("improve failed: %v", err)
	}
	if len(resp.ChangesMade) == 0 || len(resp.ChangesMade) > 5 {
		t.Fatalf("expected 1..5 changes, got %d", len(resp.ChangesMade))
	}
	if resp.QualityScore < 0 || resp.QualityScore > 10 {
		t.Fatalf("quality score out of range: %f", resp.QualityScore)
	}
}

func TestGenerateSpecFallbackKeywordHeuristic(t *testing.T) {
	client := NewClient(ClientConfig{Logger: zap.NewNop()})

	resp, err := client.GenerateSpec(context.Background(), GenerateSpecRequest{
		Description: "A mobile app with a database, a public API and auth",
	})
	if err != nil {
		t.Fatalf("generate spec failed: %v", err)
	}

	for _, expected := range []string{"React Native", "PostgreSQL", "REST API", "JWT authentication"} {
		found := false
		for _, tech := range resp.TechRecommendations {
			if tech == expected {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected %q in recommendations %v", expected, resp.TechRecommendations)
		}
	}
	if resp.TimelineEstimate == "" {
		t.Fatal("expected a timeline estimate")
	}

	plain, err := client.GenerateSpec(context.Background(), GenerateSpecRequest{Description: "A simple web page"})
	if err != nil {
		t.Fatalf("generate spec failed: %v", err)
	}
	for _, tech := range plain.TechRecommendations {
		if tech == "React Native" {
			t.Fatal("keyword heuristic fired without keyword")
		}
	}
}

func TestMalformedUpstreamResponseFallsBack(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("{not json")) //nolint:errcheck
	}))
	defer upstream.Close()

	client := NewClient(ClientConfig{BaseURL: upstream.URL, Logger: zap.NewNop()})
	resp, err := client.AnalyzeCode(context.Background(), AnalyzeCodeRequest{Code: "package main", Language: "go"})
	if err != nil {
		t.Fatalf("fallback must not surface an error, got %v", err)
	}
	if resp.Documentation == "" {
		t.Fatal("expected fallback documentation")
	}
}
