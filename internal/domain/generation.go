package domain

import (
	"context"
	"encoding/json"
)

// Generator is the structured-output port of a generative model.
// It either returns a record matching Schema, an explicit refusal, or an error.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}

// GenerationRequest is one structured-output call.
type GenerationRequest struct {
	// Instruction is the fixed policy sent as the system message.
	Instruction string
	// Input is the raw document sent as the user message.
	Input string
	// SchemaName identifies the schema to the provider.
	SchemaName string
	// Schema is the JSON schema the answer must conform to.
	Schema json.Marshaler
}

// GenerationResult is the raw answer of a Generator.
// Exactly one of Content and Refusal is set on success.
type GenerationResult struct {
	Content          []byte
	Refusal          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Refused reports whether the model declined to answer.
func (r GenerationResult) Refused() bool { return r.Refusal != "" }
