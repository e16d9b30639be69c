package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/spigell/jd-matcher/internal/ai"
)

const (
	Provider       = "openai"
	defaultTimeout = 60 * time.Second
)

type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

// Generator sends one chat completion per call and asks for a JSON object back.
type Generator struct {
	client chatCompleter
}

// NewGenerator creates a Generator for an OpenAI-compatible endpoint.
func NewGenerator(cfg Config) (*Generator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	clientCfg := goopenai.DefaultConfig(apiKey)
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(baseURL, "/")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Generator{client: goopenai.NewClientWithConfig(clientCfg)}, nil
}

func (g *Generator) Provider() string { return Provider }

// Chat implements ai.Chatter.
func (g *Generator) Chat(ctx context.Context, req ai.ChatRequest) (*ai.Completion, error) {
	if g == nil || g.client == nil {
		return nil, errors.New("openai generator is not initialized")
	}

	resp, err := g.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: req.System},
			{Role: goopenai.ChatMessageRoleUser, Content: req.User},
		},
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, transportError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, &ai.TransportError{Err: errors.New("response contains no choices")}
	}

	completion := &ai.Completion{
		Content: resp.Choices[0].Message.Content,
		Usage: ai.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	if raw, err := json.Marshal(resp.Usage); err == nil {
		completion.RawUsage = raw
	}
	return completion, nil
}

func transportError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &ai.TransportError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message, Err: err}
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		// Body holds what the server sent when it was not an OpenAI error object,
		// e.g. the HTML page of a proxy.
		body := string(reqErr.Body)
		if body == "" && reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return &ai.TransportError{StatusCode: reqErr.HTTPStatusCode, Body: body, Err: err}
	}

	return &ai.TransportError{Err: fmt.Errorf("send chat completion: %w", err)}
}
