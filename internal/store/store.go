// Package store is a small JSON file holding the state the CLI keeps between runs.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	KeyLastAnalysis = "last_analysis"
	KeyPendingText  = "pending_jd_text"
)

var (
	ErrInvalidKey = errors.New("invalid store key")
	ErrCorrupted  = errors.New("store file is not a JSON object")
)

// Keys are used as gjson/sjson paths, so they must not contain path syntax.
var keyRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Store keeps one JSON object on disk. The last writer wins; the mutex only guards
// concurrent use of the same Store value.
type Store struct {
	path string
	mu   sync.Mutex
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path is required")
	}
	return &Store{path: path}, nil
}

func (s *Store) Path() string { return s.path }

// Get decodes the value under key into target. It reports false when the key is absent.
func (s *Store) Get(key string, target any) (bool, error) {
	if !keyRe.MatchString(key) {
		return false, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return false, err
	}

	value := gjson.GetBytes(doc, key)
	if !value.Exists() {
		return false, nil
	}
	if err := json.Unmarshal([]byte(value.Raw), target); err != nil {
		return true, fmt.Errorf("decode %q from store: %w", key, err)
	}
	return true, nil
}

// Set stores value under key and rewrites the file atomically.
func (s *Store) Set(key string, value any) error {
	if !keyRe.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q for store: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}

	doc, err = sjson.SetRawBytes(doc, key, raw)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return s.write(doc)
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	if !keyRe.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if !gjson.GetBytes(doc, key).Exists() {
		return nil
	}

	doc, err = sjson.DeleteBytes(doc, key)
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return s.write(doc)
}

func (s *Store) read() ([]byte, error) {
	doc, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []byte("{}"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}

	doc = bytes.TrimSpace(doc)
	if len(doc) == 0 {
		return []byte("{}"), nil
	}
	if !gjson.ValidBytes(doc) || !gjson.ParseBytes(doc).IsObject() {
		return nil, fmt.Errorf("%w: %s", ErrCorrupted, s.path)
	}
	return doc, nil
}

func (s *Store) write(doc []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".store-*.json")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("write store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}
