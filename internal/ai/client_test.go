package ai

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type scriptedReply struct {
	content  string
	usage    Usage
	rawUsage json.RawMessage
	err      error
}

type scriptedChat struct {
	mu       sync.Mutex
	replies  []scriptedReply
	requests []ChatRequest
}

func (s *scriptedChat) Chat(_ context.Context, req ChatRequest) (*Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if len(s.replies) == 0 {
		return nil, &TransportError{Err: errors.New("script exhausted")}
	}

	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	if reply.err != nil {
		return nil, reply.err
	}
	return &Completion{Content: reply.content, Usage: reply.usage, RawUsage: reply.rawUsage}, nil
}

func (s *scriptedChat) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type sleepRecorder struct {
	delays []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

var fallbackObject = json.RawMessage(`{"overall_eligibility":"grey","summary_explanation":"Comparator failed to return a valid structured result.","fields":{}}`)

func newTestClient(t *testing.T, chat Chatter, policy Policy, logger *zap.Logger) (*Client, *sleepRecorder) {
	t.Helper()
	rec := &sleepRecorder{}
	client, err := NewClient(chat, policy, logger, WithSleep(rec.sleep))
	require.NoError(t, err)
	return client, rec
}

func TestCompleteFirstAcceptedResponseWins(t *testing.T) {
	chat := &scriptedChat{replies: []scriptedReply{
		{content: "```json\n{\"title\":\"Go\"}\n```", usage: Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}},
	}}
	client, rec := newTestClient(t, chat, Policy{Stage: "extraction", Model: "gpt-4.1-mini", MaxRetries: 2, RetryDelay: DefaultRetryDelay}, nil)

	resp, err := client.Complete(context.Background(), "system", "user")
	require.NoError(t, err)

	assert.JSONEq(t, `{"title":"Go"}`, string(resp.Data))
	assert.Equal(t, Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, resp.Usage)
	assert.Equal(t, 1, resp.Attempts)
	assert.False(t, resp.Fallback)
	assert.Equal(t, 1, chat.calls())
	assert.Empty(t, rec.delays)

	assert.Equal(t, ChatRequest{Model: "gpt-4.1-mini", System: "system", User: "user"}, chat.requests[0])
}

func TestCompleteRetryAccounting(t *testing.T) {
	validate, err := SchemaValidator([]byte(`{"type":"object","required":["overall_eligibility","fields"],"properties":{"fields":{"type":"object"}}}`))
	require.NoError(t, err)

	chat := &scriptedChat{replies: []scriptedReply{
		{content: `{"overall_eligibility":"green"}`, usage: Usage{TotalTokens: 7}},
		{content: `{"overall_eligibility":"green","fields":{}}`, usage: Usage{TotalTokens: 9}},
	}}
	client, rec := newTestClient(t, chat, Policy{
		Stage:      "comparison",
		Model:      "gpt-5-mini",
		MaxRetries: 2,
		RetryDelay: DefaultRetryDelay,
		Validate:   validate,
	}, nil)

	resp, err := client.Complete(context.Background(), "system", "user")
	require.NoError(t, err)

	assert.Equal(t, 2, chat.calls())
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, rec.delays)
	assert.Equal(t, 2, resp.Attempts)
	assert.Equal(t, 9, resp.Usage.TotalTokens)
}

func TestCompleteKeepsRawUsageOfAcceptedAttempt(t *testing.T) {
	chat := &scriptedChat{replies: []scriptedReply{
		{content: "no json", usage: Usage{TotalTokens: 3}, rawUsage: json.RawMessage(`{"total_tokens":3}`)},
		{content: `{"title":"Go"}`, usage: Usage{TotalTokens: 9}, rawUsage: json.RawMessage(`{"total_tokens":9,"prompt_tokens_details":{"cached_tokens":4}}`)},
	}}
	client, _ := newTestClient(t, chat, Policy{Stage: "extraction", Model: "m", MaxRetries: 2}, nil)

	resp, err := client.Complete(context.Background(), "system", "user")
	require.NoError(t, err)

	assert.Equal(t, 9, resp.Usage.TotalTokens)
	assert.JSONEq(t, `{"total_tokens":9,"prompt_tokens_details":{"cached_tokens":4}}`, string(resp.RawUsage))
}

func TestCompleteRaisesWhenExhausted(t *testing.T) {
	chat := &scriptedChat{replies: []scriptedReply{
		{err: &TransportError{StatusCode: 500, Body: `{"error":"boom"}`}},
		{content: "I cannot help with that."},
	}}
	client, rec := newTestClient(t, chat, Policy{Stage: "extraction", Model: "m", MaxRetries: 2, RetryDelay: time.Second}, nil)

	resp, err := client.Complete(context.Background(), "s", "u")
	require.Nil(t, resp)
	require.ErrorIs(t, err, ErrExhausted)
	require.ErrorIs(t, err, ErrNoJSON)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "extraction", exhausted.Stage)
	assert.Equal(t, 2, exhausted.Attempts)
	assert.Equal(t, OutcomeParse, exhausted.Last.Kind)

	assert.Equal(t, 2, chat.calls())
	assert.Equal(t, []time.Duration{time.Second}, rec.delays)
}

func TestCompleteFallsBackWhenExhausted(t *testing.T) {
	chat := &scriptedChat{replies: []scriptedReply{
		{err: &TransportError{StatusCode: 429, Body: "rate limited"}},
	}}
	client, rec := newTestClient(t, chat, Policy{
		Stage:       "comparison",
		Model:       "gpt-5-mini",
		MaxRetries:  1,
		RetryDelay:  DefaultRetryDelay,
		OnExhausted: ExhaustFallback,
		Fallback:    fallbackObject,
	}, nil)

	resp, err := client.Complete(context.Background(), "s", "u")
	require.NoError(t, err)

	assert.True(t, resp.Fallback)
	assert.JSONEq(t, string(fallbackObject), string(resp.Data))
	assert.Equal(t, 0, resp.Usage.TotalTokens)
	assert.Equal(t, 1, resp.Attempts)
	assert.Empty(t, rec.delays)
}

func TestCompleteFallbackIsACopy(t *testing.T) {
	chat := &scriptedChat{replies: []scriptedReply{{content: "nope"}}}
	client, _ := newTestClient(t, chat, Policy{
		Stage: "comparison", Model: "m", MaxRetries: 1,
		OnExhausted: ExhaustFallback, Fallback: fallbackObject,
	}, nil)

	first, err := client.Complete(context.Background(), "s", "u")
	require.NoError(t, err)
	first.Data[0] = '['

	second, err := client.Complete(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.JSONEq(t, string(fallbackObject), string(second.Data))
}

func TestCompleteStopsRetryingWhenWaitIsInterrupted(t *testing.T) {
	chat := &scriptedChat{replies: []scriptedReply{{content: "not json"}}}
	client, err := NewClient(chat, Policy{Stage: "extraction", Model: "m", MaxRetries: 3}, nil,
		WithSleep(func(ctx context.Context, _ time.Duration) error { return context.Canceled }))
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "s", "u")
	require.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, chat.calls())
}

func TestCompleteLogsEachFailure(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	chat := &scriptedChat{replies: []scriptedReply{
		{err: &TransportError{StatusCode: 502, Body: "bad gateway\nupstream"}},
		{content: `["not","an","object"]`},
		{content: `{"ok":true}`},
	}}
	client, _ := newTestClient(t, chat, Policy{Stage: "extraction", Model: "m", MaxRetries: 3, Validate: AnyObject}, zap.New(core))

	_, err := client.Complete(context.Background(), "s", "u")
	require.NoError(t, err)

	failures := logs.FilterMessage("chat completion attempt failed").All()
	require.Len(t, failures, 2)

	first := failures[0].ContextMap()
	assert.Equal(t, "transport", first["outcome"])
	assert.EqualValues(t, 1, first["attempt"])
	assert.EqualValues(t, 502, first["status"])
	assert.Equal(t, "bad gateway upstream", first["body_preview"])
	assert.Equal(t, zapcore.WarnLevel, failures[0].Level)

	second := failures[1].ContextMap()
	assert.Equal(t, "parse", second["outcome"])
	assert.EqualValues(t, 2, second["attempt"])

	assert.Equal(t, 1, logs.FilterMessage("chat completion request").Len())
}

func TestNewClientValidatesPolicy(t *testing.T) {
	chat := &scriptedChat{}

	_, err := NewClient(nil, Policy{Model: "m"}, nil)
	assert.Error(t, err)

	_, err = NewClient(chat, Policy{Stage: "extraction"}, nil)
	assert.Error(t, err)

	_, err = NewClient(chat, Policy{Stage: "comparison", Model: "m", OnExhausted: ExhaustFallback}, nil)
	assert.ErrorIs(t, err, ErrInvalidShape)

	client, err := NewClient(chat, Policy{Stage: "extraction", Model: "m"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, client.Policy().MaxRetries)
	assert.Equal(t, defaultMaxLogLength, client.Policy().MaxLogLength)
}

func TestTransportErrorMessage(t *testing.T) {
	cases := []struct {
		err  *TransportError
		want string
	}{
		{err: &TransportError{StatusCode: 401, Body: "bad key"}, want: "chat completion failed with status 401: bad key"},
		{err: &TransportError{StatusCode: 500}, want: "chat completion failed with status 500"},
		{err: &TransportError{Err: context.DeadlineExceeded}, want: "chat completion failed: context deadline exceeded"},
	}

	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Fatalf("got %q, want %q", got, tc.want)
		}
	}

	if !errors.Is(&TransportError{Err: context.DeadlineExceeded}, context.DeadlineExceeded) {
		t.Fatalf("expected TransportError to unwrap")
	}
}
