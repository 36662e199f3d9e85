// Package openai adapts OpenAI-compatible APIs to the embedding and
// generation ports.
package openai

import (
	openai "github.com/sashabaranov/go-openai"
)

// newClient builds a go-openai client. go-openai does not retry, so every
// call is a single attempt.
func newClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}
