package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spigell/jd-matcher/internal/utils"
	"go.uber.org/zap"
)

// ExhaustPolicy says what Complete does once every attempt has failed.
type ExhaustPolicy int

const (
	// ExhaustRaise returns an *ExhaustedError.
	ExhaustRaise ExhaustPolicy = iota
	// ExhaustFallback returns Policy.Fallback with zero usage.
	ExhaustFallback
)

func (p ExhaustPolicy) String() string {
	if p == ExhaustFallback {
		return "fallback"
	}
	return "raise"
}

const (
	DefaultRetryDelay   = 500 * time.Millisecond
	defaultMaxLogLength = 200
)

// Policy configures one pipeline stage.
type Policy struct {
	Stage      string
	Model      string
	MaxRetries int
	// RetryDelay is waited after a failed attempt when another one follows.
	RetryDelay  time.Duration
	OnExhausted ExhaustPolicy
	Fallback    json.RawMessage
	Validate    Validator
	// MaxLogLength bounds prompt and response previews in logs.
	MaxLogLength int
}

// Response is the accepted object, or the fallback when Fallback is true.
type Response struct {
	Data     json.RawMessage
	Usage    Usage
	RawUsage json.RawMessage
	Attempts int
	Fallback bool
}

type Client struct {
	chat   Chatter
	policy Policy
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

type Option func(*Client)

// WithSleep replaces the wait between attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

func NewClient(chat Chatter, policy Policy, logger *zap.Logger, opts ...Option) (*Client, error) {
	if chat == nil {
		return nil, errors.New("chat transport is required")
	}
	if strings.TrimSpace(policy.Model) == "" {
		return nil, fmt.Errorf("%s: model is required", policy.Stage)
	}
	if policy.MaxRetries < 1 {
		policy.MaxRetries = 1
	}
	if policy.RetryDelay < 0 {
		policy.RetryDelay = 0
	}
	if policy.Validate == nil {
		policy.Validate = AnyObject
	}
	if policy.MaxLogLength <= 0 {
		policy.MaxLogLength = defaultMaxLogLength
	}
	if policy.OnExhausted == ExhaustFallback {
		if err := AnyObject(policy.Fallback); err != nil {
			return nil, fmt.Errorf("%s: fallback must be a JSON object: %w", policy.Stage, err)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		chat:   chat,
		policy: policy,
		logger: logger,
		sleep:  utils.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Policy() Policy { return c.policy }

// WithLogger returns a copy of the client that logs to logger.
func (c *Client) WithLogger(logger *zap.Logger) *Client {
	if logger == nil {
		return c
	}
	clone := *c
	clone.logger = logger
	return &clone
}

// Complete makes up to MaxRetries attempts and returns the first response that parses
// and validates. Once attempts run out it raises or falls back per the policy.
func (c *Client) Complete(ctx context.Context, system, user string) (*Response, error) {
	req := ChatRequest{Model: c.policy.Model, System: system, User: user}

	c.logger.Debug("chat completion request",
		zap.Int("max_attempts", c.policy.MaxRetries),
		zap.Int("prompt_length", utf8.RuneCountInString(user)),
		zap.String("prompt_preview", utils.TruncateForLog(utils.SingleLine(user), c.policy.MaxLogLength)),
	)

	var last Outcome
	attempts := 0
	for attempt := 1; attempt <= c.policy.MaxRetries; attempt++ {
		attempts = attempt
		last = c.attempt(ctx, req, attempt)
		if last.Kind == OutcomeOK {
			return &Response{Data: last.Data, Usage: last.Usage, RawUsage: last.RawUsage, Attempts: attempt}, nil
		}

		c.logFailure(last)

		if attempt == c.policy.MaxRetries {
			break
		}
		if err := c.sleep(ctx, c.policy.RetryDelay); err != nil {
			c.logger.Warn("retry wait interrupted", zap.Int("attempt", attempt), zap.Error(err))
			break
		}
	}

	return c.exhausted(attempts, last)
}

func (c *Client) attempt(ctx context.Context, req ChatRequest, attempt int) Outcome {
	completion, err := c.chat.Chat(ctx, req)
	if err != nil {
		return Outcome{Kind: OutcomeTransport, Attempt: attempt, Err: err}
	}
	if completion == nil {
		return Outcome{Kind: OutcomeTransport, Attempt: attempt, Err: &TransportError{Err: errors.New("empty completion")}}
	}

	c.logger.Debug("chat completion response",
		zap.Int("attempt", attempt),
		zap.Int("response_length", utf8.RuneCountInString(completion.Content)),
		zap.String("response_preview", utils.TruncateForLog(utils.SingleLine(completion.Content), c.policy.MaxLogLength)),
		zap.Int("total_tokens", completion.Usage.TotalTokens),
	)

	outcome := Outcome{Attempt: attempt, Usage: completion.Usage, RawUsage: completion.RawUsage, Content: completion.Content}

	data := ParseObject(completion.Content)
	if data == nil {
		outcome.Kind = OutcomeParse
		outcome.Err = ErrNoJSON
		return outcome
	}

	if err := c.policy.Validate(data); err != nil {
		outcome.Kind = OutcomeValidation
		outcome.Err = err
		return outcome
	}

	outcome.Kind = OutcomeOK
	outcome.Data = data
	return outcome
}

func (c *Client) logFailure(o Outcome) {
	fields := []zap.Field{
		zap.Stringer("outcome", o.Kind),
		zap.Int("attempt", o.Attempt),
		zap.Int("max_attempts", c.policy.MaxRetries),
		zap.Error(o.Err),
	}

	var transportErr *TransportError
	if errors.As(o.Err, &transportErr) {
		if transportErr.StatusCode > 0 {
			fields = append(fields, zap.Int("status", transportErr.StatusCode))
		}
		if transportErr.Body != "" {
			fields = append(fields, zap.String("body_preview", utils.TruncateForLog(utils.SingleLine(transportErr.Body), c.policy.MaxLogLength)))
		}
	}
	if o.Content != "" {
		fields = append(fields, zap.String("response_preview", utils.TruncateForLog(utils.SingleLine(o.Content), c.policy.MaxLogLength)))
	}

	c.logger.Warn("chat completion attempt failed", fields...)
}

func (c *Client) exhausted(attempts int, last Outcome) (*Response, error) {
	if c.policy.OnExhausted == ExhaustFallback {
		c.logger.Warn("all chat completion attempts failed, using fallback",
			zap.Int("attempts", attempts),
			zap.Stringer("last_outcome", last.Kind),
		)
		data := make(json.RawMessage, len(c.policy.Fallback))
		copy(data, c.policy.Fallback)
		return &Response{Data: data, Attempts: attempts, Fallback: true}, nil
	}

	return nil, &ExhaustedError{Stage: c.policy.Stage, Attempts: attempts, Last: last}
}
