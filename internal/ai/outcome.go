package ai

import (
	"encoding/json"
	"errors"
	"fmt"
)

// OutcomeKind tags what happened during one attempt.
type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeTransport
	OutcomeParse
	OutcomeValidation
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeTransport:
		return "transport"
	case OutcomeParse:
		return "parse"
	case OutcomeValidation:
		return "validation"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the result of a single attempt. Data is set only for OutcomeOK.
type Outcome struct {
	Kind     OutcomeKind
	Attempt  int
	Data     json.RawMessage
	Usage    Usage
	RawUsage json.RawMessage
	// Content is the raw model text, kept for diagnostics.
	Content string
	Err     error
}

// TransportError is a failed network call: a non-2xx status or no response at all.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode > 0 && e.Body != "":
		return fmt.Sprintf("chat completion failed with status %d: %s", e.StatusCode, e.Body)
	case e.StatusCode > 0:
		return fmt.Sprintf("chat completion failed with status %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("chat completion failed: %v", e.Err)
	default:
		return "chat completion failed"
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

var ErrExhausted = errors.New("all attempts failed")

// ExhaustedError is returned when every attempt failed and the policy says raise.
type ExhaustedError struct {
	Stage    string
	Attempts int
	Last     Outcome
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: %v after %d attempt(s), last %s failure: %v",
		e.Stage, ErrExhausted, e.Attempts, e.Last.Kind, e.Last.Err)
}

func (e *ExhaustedError) Unwrap() []error {
	if e.Last.Err == nil {
		return []error{ErrExhausted}
	}
	return []error{ErrExhausted, e.Last.Err}
}
