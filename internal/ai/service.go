// Package ai proxies content-generation requests to an upstream LLM gateway.
// Upstream failure is never surfaced as a hard error: every operation
// degrades to a deterministic locally synthesized response so callers always
// receive usable content.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Service is the capability handed to callers. Inject it rather than sharing
// a process-wide instance; tests substitute doubles.
type Service interface {
	GenerateContent(ctx context.Context, req GenerateContentRequest) (GenerateContentResponse, error)
	AnalyzeCode(ctx context.Context, req AnalyzeCodeRequest) (AnalyzeCodeResponse, error)
	ImproveDocument(ctx context.Context, req ImproveDocumentRequest) (ImproveDocumentResponse, error)
	GenerateSpec(ctx context.Context, req GenerateSpecRequest) (GenerateSpecResponse, error)
}

const defaultTimeout = 20 * time.Second

// ClientConfig configures the upstream gateway client.
type ClientConfig struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client implements Service against an HTTP gateway. An empty BaseURL runs
// the client in fallback-only mode, which keeps local development working
// without an upstream.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs a gateway client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: httpClient,
		logger:     logger,
	}
}

// GenerateContent produces new document content for the prompt.
func (c *Client) GenerateContent(ctx context.Context, req GenerateContentRequest) (GenerateContentResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return GenerateContentResponse{}, ErrEmptyPrompt
	}
	if !req.Type.valid() {
		return GenerateContentResponse{}, fmt.Errorf("%w: %q", ErrInvalidGenerationType, req.Type)
	}
	if req.Model == "" {
		req.Model = c.model
	}

	var resp GenerateContentResponse
	if err := c.post(ctx, "generate-content", req, &resp); err != nil {
		c.logger.Warn("generate-content degraded to fallback", zap.Error(err))
		return fallbackGenerateContent(req), nil
	}
	return resp, nil
}

// AnalyzeCode documents and scores a code snippet.
func (c *Client) AnalyzeCode(ctx context.Context, req AnalyzeCodeRequest) (AnalyzeCodeResponse, error) {
	if strings.TrimSpace(req.Code) == "" {
		return AnalyzeCodeResponse{}, ErrEmptyCode
	}

	var resp AnalyzeCodeResponse
	if err := c.post(ctx, "analyze-code", req, &resp); err != nil {
		c.logger.Warn("analyze-code degraded to fallback", zap.Error(err))
		return fallbackAnalyzeCode(req), nil
	}
	return resp, nil
}

// ImproveDocument rewrites content along the requested axis.
func (c *Client) ImproveDocument(ctx context.Context, req ImproveDocumentRequest) (ImproveDocumentResponse, error) {
	if strings.TrimSpace(req.Content) == "" {
		return ImproveDocumentResponse{}, ErrEmptyContent
	}
	if !req.ImprovementType.valid() {
		return ImproveDocumentResponse{}, fmt.Errorf("%w: %q", ErrInvalidImprovementType, req.ImprovementType)
	}

	var resp ImproveDocumentResponse
	if err := c.post(ctx, "improve-document", req, &resp); err != nil {
		c.logger.Warn("improve-document degraded to fallback", zap.Error(err))
		return fallbackImproveDocument(req), nil
	}
	return resp, nil
}

// GenerateSpec turns a product description into a project specification.
func (c *Client) GenerateSpec(ctx context.Context, req GenerateSpecRequest) (GenerateSpecResponse, error) {
	if strings.TrimSpace(req.Description) == "" {
		return GenerateSpecResponse{}, ErrEmptyDescription
	}

	var resp GenerateSpecResponse
	if err := c.post(ctx, "generate-spec", req, &resp); err != nil {
		c.logger.Warn("generate-spec degraded to fallback", zap.Error(err))
		return fallbackGenerateSpec(req), nil
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, function string, payload, out interface{}) error {
	if c.baseURL == "" {
		return fmt.Errorf("ai: no upstream configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+function, bytes.NewReader(body))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("ai: upstream returned status %d", response.StatusCode)
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("ai: malformed upstream response: %w", err)
	}
	return nil
}
