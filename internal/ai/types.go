package ai

import "errors"

// GenerationType selects the prompt template applied upstream.
type GenerationType string

const (
	GenerationTypeDocumentation GenerationType = "documentation"
	GenerationTypeSpecification GenerationType = "specification"
	GenerationTypeCodeAnalysis  GenerationType = "code_analysis"
	GenerationTypeImprovement   GenerationType = "improvement"
)

// ImprovementType selects the rewrite focus for document improvement.
type ImprovementType string

const (
	ImprovementTypeClarity      ImprovementType = "clarity"
	ImprovementTypeCompleteness ImprovementType = "completeness"
	ImprovementTypeStructure    ImprovementType = "structure"
)

var (
	// ErrEmptyPrompt indicates a generation request without a prompt.
	ErrEmptyPrompt = errors.New("ai: prompt is required")
	// ErrEmptyCode indicates an analysis request without code.
	ErrEmptyCode = errors.New("ai: code is required")
	// ErrEmptyContent indicates an improvement request without content.
	ErrEmptyContent = errors.New("ai: content is required")
	// ErrEmptyDescription indicates a spec request without a description.
	ErrEmptyDescription = errors.New("ai: description is required")
	// ErrInvalidGenerationType indicates an unknown generation type.
	ErrInvalidGenerationType = errors.New("ai: invalid generation type")
	// ErrInvalidImprovementType indicates an unknown improvement type.
	ErrInvalidImprovementType = errors.New("ai: invalid improvement type")
)

// GenerateContentRequest is the input of the generate-content operation.
type GenerateContentRequest struct {
	Prompt  string         `json:"prompt"`
	Type    GenerationType `json:"type"`
	Context string         `json:"context,omitempty"`
	Model   string         `json:"model,omitempty"`
}

// GenerationMetadata describes how a content response was produced.
type GenerationMetadata struct {
	ModelUsed       string  `json:"model_used"`
	TokensUsed      int     `json:"tokens_used"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// GenerateContentResponse is the output of the generate-content operation.
type GenerateContentResponse struct {
	Content     string             `json:"content"`
	Suggestions []string           `json:"suggestions"`
	Metadata    GenerationMetadata `json:"metadata"`
}

// AnalyzeCodeRequest is the input of the analyze-code operation.
type AnalyzeCodeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// AnalyzeCodeResponse is the output of the analyze-code operation.
type AnalyzeCodeResponse struct {
	Documentation   string   `json:"documentation"`
	Suggestions     []string `json:"suggestions"`
	ComplexityScore float64  `json:"complexity_score"`
}

// ImproveDocumentRequest is the input of the improve-document operation.
type ImproveDocumentRequest struct {
	Content         string          `json:"content"`
	ImprovementType ImprovementType `json:"improvement_type"`
}

// ImproveDocumentResponse is the output of the improve-document operation.
type ImproveDocumentResponse struct {
	ImprovedContent string   `json:"improved_content"`
	ChangesMade     []string `json:"changes_made"`
	QualityScore    float64  `json:"quality_score"`
}

// GenerateSpecRequest is the input of the generate-spec operation.
type GenerateSpecRequest struct {
	Description string `json:"description"`
}

// GenerateSpecResponse is the output of the generate-spec operation.
type GenerateSpecResponse struct {
	Specification       string   `json:"specification"`
	Architecture        string   `json:"architecture"`
	TechRecommendations []string `json:"tech_recommendations"`
	TimelineEstimate    string   `json:"timeline_estimate"`
}

func (t GenerationType) valid() bool {
	switch t {
	case GenerationTypeDocumentation, GenerationTypeSpecification, GenerationTypeCodeAnalysis, GenerationTypeImprovement:
		return true
	}
	return false
}

func (t ImprovementType) valid() bool {
	switch t {
	case ImprovementTypeClarity, ImprovementTypeCompleteness, ImprovementTypeStructure:
		return true
	}
	return false
}
