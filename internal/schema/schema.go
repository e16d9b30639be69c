// Package schema describes the fields extracted from a job posting and the
// records produced from them.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Kind tells whether a field holds a single value or a list of strings.
type Kind int

const (
	Scalar Kind = iota
	List
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case List:
		return "list"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ValueType is the JSON type of a scalar field, or of the items of a list field.
type ValueType string

const (
	String ValueType = "string"
	Number ValueType = "number"
)

// Field is one entry of a Schema.
type Field struct {
	Name string
	Kind Kind
	Type ValueType
}

// StringField declares a nullable string field.
func StringField(name string) Field { return Field{Name: name, Kind: Scalar, Type: String} }

// NumberField declares a nullable number field.
func NumberField(name string) Field { return Field{Name: name, Kind: Scalar, Type: Number} }

// ListField declares a list of strings that defaults to [].
func ListField(name string) Field { return Field{Name: name, Kind: List, Type: String} }

// Hint renders the type hint shown to the model, e.g. "number|null" or "list[string]|[]".
func (f Field) Hint() string {
	if f.Kind == List {
		return fmt.Sprintf("list[%s]|[]", f.Type)
	}
	return fmt.Sprintf("%s|null", f.Type)
}

// Default returns the JSON literal a missing field takes.
func (f Field) Default() []byte {
	if f.Kind == List {
		return []byte("[]")
	}
	return []byte("null")
}

// Field names double as gjson/sjson paths, so they are restricted to identifiers.
var fieldNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var ErrInvalidSchema = errors.New("invalid schema")

// Schema is an ordered, immutable set of fields.
type Schema struct {
	fields []Field
	index  map[string]int
}

// New builds a schema preserving the order of fields.
func New(fields ...Field) (*Schema, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields", ErrInvalidSchema)
	}

	s := &Schema{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}

	for _, f := range fields {
		if !fieldNameRe.MatchString(f.Name) {
			return nil, fmt.Errorf("%w: bad field name %q", ErrInvalidSchema, f.Name)
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrInvalidSchema, f.Name)
		}
		if f.Kind != Scalar && f.Kind != List {
			return nil, fmt.Errorf("%w: field %q has unknown kind %s", ErrInvalidSchema, f.Name, f.Kind)
		}
		if f.Type != String && f.Type != Number {
			return nil, fmt.Errorf("%w: field %q has unknown type %q", ErrInvalidSchema, f.Name, f.Type)
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}

	return s, nil
}

// MustNew is New for schemas declared in code.
func MustNew(fields ...Field) *Schema {
	s, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Len() int { return len(s.fields) }

// Fields returns a copy of the fields in schema order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Names returns field names in schema order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

func (s *Schema) Lookup(name string) (Field, bool) {
	idx, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[idx], true
}

// FieldsText renders one "- name: hint" line per field.
func (s *Schema) FieldsText() string {
	lines := make([]string, len(s.fields))
	for i, f := range s.fields {
		lines[i] = fmt.Sprintf("- %s: %s", f.Name, f.Hint())
	}
	return strings.Join(lines, "\n")
}

// Template returns a compact JSON object holding every field at its default, in schema order.
func (s *Schema) Template() []byte {
	return s.Fallback().Raw()
}

// Fallback is the record returned when the model never produced a usable one: the empty
// record completed with every field default.
func (s *Schema) Fallback() Record {
	// Names are validated identifiers, so setting a top-level key cannot fail.
	rec, err := Record{}.Complete(s)
	if err != nil {
		panic(fmt.Sprintf("schema fallback: %v", err))
	}
	return rec
}

// JSONSchema derives a JSON Schema document used to report type mismatches in records.
func (s *Schema) JSONSchema() []byte {
	props := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		if f.Kind == List {
			props[f.Name] = map[string]any{
				"type":  "array",
				"items": map[string]any{"type": string(f.Type)},
			}
			continue
		}
		props[f.Name] = map[string]any{"type": []string{string(f.Type), "null"}}
	}

	doc := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": true,
	}

	out, err := json.Marshal(doc)
	if err != nil {
		panic(fmt.Sprintf("schema json schema: %v", err))
	}
	return out
}
