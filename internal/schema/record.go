package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/xeipuuv/gojsonschema"
)

var ErrNotObject = errors.New("record must be a JSON object")

// Record is one extraction result. The JSON object is kept as the model produced
// it, so key order survives when the record is embedded into later prompts.
type Record struct {
	raw []byte
}

// NewRecord wraps a JSON object. The input is copied.
func NewRecord(raw []byte) (Record, error) {
	raw = bytes.TrimSpace(raw)
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		return Record{}, ErrNotObject
	}
	return Record{raw: bytes.Clone(raw)}, nil
}

// Raw returns the JSON object; a zero Record reads as {}.
func (r Record) Raw() []byte {
	if len(r.raw) == 0 {
		return []byte("{}")
	}
	return bytes.Clone(r.raw)
}

func (r Record) IsZero() bool { return len(r.raw) == 0 }

// Get returns the value stored under a top-level key. Keys are matched literally,
// so model-chosen names containing path characters are safe.
func (r Record) Get(name string) gjson.Result {
	var found gjson.Result
	r.Each(func(key string, value gjson.Result) bool {
		if key == name {
			found = value
			return false
		}
		return true
	})
	return found
}

func (r Record) Has(name string) bool { return r.Get(name).Exists() }

// Each iterates top-level entries in document order until fn returns false.
func (r Record) Each(fn func(key string, value gjson.Result) bool) {
	gjson.ParseBytes(r.Raw()).ForEach(func(key, value gjson.Result) bool {
		return fn(key.String(), value)
	})
}

// Keys returns top-level keys in document order.
func (r Record) Keys() []string {
	var keys []string
	r.Each(func(key string, _ gjson.Result) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// Missing lists the schema fields absent from the record, in schema order.
func (r Record) Missing(s *Schema) []string {
	var missing []string
	for _, f := range s.fields {
		if !r.Has(f.Name) {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

// Complete returns a copy of the record with every absent schema field set to its default.
// Fields already present keep their values, even when they do not match the declared type.
func (r Record) Complete(s *Schema) (Record, error) {
	raw := r.Raw()
	for _, f := range s.fields {
		if (Record{raw: raw}).Has(f.Name) {
			continue
		}
		var err error
		if raw, err = sjson.SetRawBytes(raw, f.Name, f.Default()); err != nil {
			return Record{}, fmt.Errorf("set default for %s: %w", f.Name, err)
		}
	}
	return Record{raw: raw}, nil
}

// Decode copies the record into target, matching fields by their json tags.
func (r Record) Decode(target any) error {
	var data map[string]any
	if err := json.Unmarshal(r.Raw(), &data); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("create record decoder: %w", err)
	}

	if err := decoder.Decode(data); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	return r.Raw(), nil
}

func (r *Record) UnmarshalJSON(data []byte) error {
	rec, err := NewRecord(data)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

// Issue is a field whose value does not match its declared type.
type Issue struct {
	Field   string
	Message string
}

func (i Issue) String() string { return i.Field + ": " + i.Message }

// Conformance reports where the record deviates from the schema's declared types.
// Deviations are informational: models may return partial or loosely typed records.
func (s *Schema) Conformance(r Record) ([]Issue, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(s.JSONSchema()),
		gojsonschema.NewBytesLoader(r.Raw()),
	)
	if err != nil {
		return nil, fmt.Errorf("validate record: %w", err)
	}

	if result.Valid() {
		return nil, nil
	}

	issues := make([]Issue, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		issues = append(issues, Issue{Field: field, Message: desc.Description()})
	}
	return issues, nil
}
