// Package ai turns one chat-completion round trip into a validated JSON object,
// retrying and falling back according to a per-stage Policy.
package ai

import (
	"context"
	"encoding/json"
)

// ChatRequest is a two-message conversation asking for a JSON object back.
type ChatRequest struct {
	Model  string
	System string
	User   string
}

// Usage is the token accounting reported by the endpoint.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the raw answer of one successful network call.
type Completion struct {
	Content string
	Usage   Usage
	// RawUsage is the provider usage object, token detail breakdowns included.
	RawUsage json.RawMessage
}

// Chatter performs exactly one network attempt. Retries belong to Client.
type Chatter interface {
	Chat(ctx context.Context, req ChatRequest) (*Completion, error)
}
