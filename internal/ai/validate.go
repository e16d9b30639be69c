package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

var ErrInvalidShape = errors.New("model response has an unexpected shape")

// Validator decides whether a parsed response is acceptable.
type Validator func(data json.RawMessage) error

// AnyObject accepts any JSON object.
func AnyObject(data json.RawMessage) error {
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		return fmt.Errorf("%w: not a JSON object", ErrInvalidShape)
	}
	return nil
}

// SchemaValidator compiles a JSON Schema document into a Validator.
func SchemaValidator(schemaJSON []byte) (Validator, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile json schema: %w", err)
	}

	return func(data json.RawMessage) error {
		result, err := compiled.Validate(gojsonschema.NewBytesLoader([]byte(data)))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidShape, err)
		}
		if result.Valid() {
			return nil
		}

		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidShape, strings.Join(problems, "; "))
	}, nil
}
