package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"subtitle-studio/internal/domain"
)

// Store loads and saves the user's settings.
type Store interface {
	Load() (domain.Settings, error)
	Save(domain.Settings) error
}

// JSONStore keeps settings in one JSON file. Missing fields read back as defaults.
type JSONStore struct {
	mu   sync.Mutex
	path string
}

func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Path returns the backing file location.
func (s *JSONStore) Path() string {
	return s.path
}

// Load returns defaults when the file does not exist yet.
func (s *JSONStore) Load() (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return domain.Settings{}, fmt.Errorf("read settings %s: %w", s.path, err)
	}

	var settings domain.Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return domain.Settings{}, fmt.Errorf("decode settings %s: %w", s.path, err)
	}
	return withDefaults(settings), nil
}

// Save replaces the file via a temp file and rename so a crash never leaves half-written JSON.
func (s *JSONStore) Save(settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	data, err := json.MarshalIndent(withDefaults(settings), "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*.json")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
