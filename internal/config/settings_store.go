package config

import (
	"os"
	"strings"
	"sync"
)

// FileSettingsStore persists runtime settings to a JSON file, falling back to
// the boot-time config when no file exists yet.
type FileSettingsStore struct {
	path string

	mu       sync.Mutex
	fallback RuntimeSettings
}

func NewFileSettingsStore(path string, fallback RuntimeSettings) *FileSettingsStore {
	return &FileSettingsStore{path: path, fallback: fallback}
}

func (s *FileSettingsStore) GetRuntimeSettings() (RuntimeSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := LoadRuntimeSettingsFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s.fallback, nil
		}
		return RuntimeSettings{}, err
	}
	return settings, nil
}

// UpdateRuntimeSettings validates and persists new settings. An empty or
// redacted API key keeps the current one, so clients can update the rest
// without re-submitting the secret.
func (s *FileSettingsStore) UpdateRuntimeSettings(next RuntimeSettings) (RuntimeSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := LoadRuntimeSettingsFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return RuntimeSettings{}, err
		}
		current = s.fallback
	}

	key := strings.TrimSpace(next.LLMAPIKey)
	if key == "" || strings.Trim(key, "*") == "" {
		next.LLMAPIKey = current.LLMAPIKey
	}

	if err := WriteRuntimeSettingsFile(s.path, next); err != nil {
		return RuntimeSettings{}, err
	}
	return next, nil
}
