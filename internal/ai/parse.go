package ai

import (
	"encoding/json"
	"errors"
	"strings"
)

var ErrNoJSON = errors.New("no JSON object found in model response")

// ParseObject cuts the text from the first '{' to the last '}' and returns it when it
// is valid JSON. Prose or code fences around the object are ignored. Braces inside
// strings outside the object are not detected and make the parse fail.
func ParseObject(text string) json.RawMessage {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil
	}

	candidate := []byte(text[start : end+1])
	if !json.Valid(candidate) {
		return nil
	}
	return json.RawMessage(candidate)
}
