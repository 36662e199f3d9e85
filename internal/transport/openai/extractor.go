package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/invoicedex/internal/domain"
	"github.com/kailas-cloud/invoicedex/internal/metrics"
)

// ResponseFormat selects how structured output is requested.
type ResponseFormat string

const (
	// ResponseFormatJSONSchema asks for strict schema-conforming output.
	ResponseFormatJSONSchema ResponseFormat = "json_schema"
	// ResponseFormatJSONObject asks only for a JSON object, for backends
	// without strict schema support.
	ResponseFormatJSONObject ResponseFormat = "json_object"
)

// contentFilterReason is reported as the refusal reason when the provider
// blocks the answer.
const contentFilterReason = "response blocked by the provider content filter"

// Extractor is a structured-output generator over chat completions.
type Extractor struct {
	client   *openai.Client
	model    string
	format   ResponseFormat
	user     string
	provider string
	logger   *zap.Logger
}

// NewExtractor creates a chat completions generator. An empty format means
// strict JSON schema.
func NewExtractor(cfg *Config, format ResponseFormat) *Extractor {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	model := cfg.Model
	if model == "" {
		model = domain.DefaultExtractionModel
	}
	if format == "" {
		format = ResponseFormatJSONSchema
	}
	return &Extractor{
		client:   newClient(cfg.APIKey, cfg.BaseURL),
		model:    model,
		format:   format,
		user:     cfg.User,
		provider: cfg.Provider,
		logger:   logger,
	}
}

// Model returns the configured model name.
func (x *Extractor) Model() string { return x.model }

// Generate implements domain.Generator with one chat completion call.
func (x *Extractor) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	creq := openai.ChatCompletionRequest{
		Model: x.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.Instruction},
			{Role: openai.ChatMessageRoleUser, Content: req.Input},
		},
		ResponseFormat: x.responseFormat(req),
		User:           x.user,
	}

	start := time.Now()
	resp, err := x.client.CreateChatCompletion(ctx, creq)
	metrics.ExtractionRequestDuration.WithLabelValues(x.model).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ExtractionRequestsTotal.WithLabelValues(x.model, "error").Inc()
		return domain.GenerationResult{}, parseAPIError("chat completion", err)
	}

	result := domain.GenerationResult{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	x.recordTokens(ctx, result)

	if len(resp.Choices) == 0 {
		metrics.ExtractionRequestsTotal.WithLabelValues(x.model, "error").Inc()
		return result, fmt.Errorf("empty choices: %w", domain.ErrProviderError)
	}

	choice := resp.Choices[0]
	switch {
	case choice.Message.Refusal != "":
		result.Refusal = choice.Message.Refusal
	case choice.FinishReason == openai.FinishReasonContentFilter:
		result.Refusal = contentFilterReason
	}
	if result.Refused() {
		metrics.ExtractionRequestsTotal.WithLabelValues(x.model, "refused").Inc()
		metrics.ExtractionRefusalsTotal.WithLabelValues(x.model).Inc()
		return result, nil
	}

	if choice.FinishReason == openai.FinishReasonLength {
		metrics.ExtractionRequestsTotal.WithLabelValues(x.model, "error").Inc()
		return result, errors.New("output truncated at the token limit")
	}

	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		metrics.ExtractionRequestsTotal.WithLabelValues(x.model, "error").Inc()
		return result, errors.New("empty completion content")
	}

	metrics.ExtractionRequestsTotal.WithLabelValues(x.model, "success").Inc()
	x.logger.Debug("Chat completion done",
		zap.String("provider", x.provider),
		zap.String("model", x.model),
		zap.String("finish_reason", string(choice.FinishReason)),
		zap.Int("total_tokens", result.TotalTokens),
	)

	result.Content = []byte(content)
	return result, nil
}

// HealthCheck verifies API availability via ListModels.
func (x *Extractor) HealthCheck(ctx context.Context) error {
	if _, err := x.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func (x *Extractor) responseFormat(req domain.GenerationRequest) *openai.ChatCompletionResponseFormat {
	if x.format == ResponseFormatJSONObject || req.Schema == nil {
		return &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	return &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   req.SchemaName,
			Schema: req.Schema,
			Strict: true,
		},
	}
}

func (x *Extractor) recordTokens(ctx context.Context, r domain.GenerationResult) {
	if r.TotalTokens <= 0 {
		return
	}
	metrics.ExtractionTokensTotal.WithLabelValues(x.model, "prompt").Add(float64(r.PromptTokens))
	metrics.ExtractionTokensTotal.WithLabelValues(x.model, "completion").Add(float64(r.CompletionTokens))
	metrics.ExtractionTokensTotal.WithLabelValues(x.model, "total").Add(float64(r.TotalTokens))
	domain.UsageFromContext(ctx).AddExtraction(r.TotalTokens)
}
