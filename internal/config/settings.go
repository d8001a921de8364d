package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// APIKeySetting is the settings key holding the Gemini credential.
const APIKeySetting = "gemini_api_key"

// APIKeyEnv overrides the stored credential when set.
const APIKeyEnv = "ACTA_GEMINI_API_KEY"

// Settings is a small persistent key/value store at baseDir/settings.json.
// Nothing is cached: every Get reads the file so a key set from another
// process (web settings page, `acta config set-key`) is seen immediately.
type Settings struct {
	path string
	mu   sync.Mutex
}

// NewSettings returns the settings store for baseDir.
func NewSettings(baseDir string) *Settings {
	return &Settings{path: filepath.Join(baseDir, "settings.json")}
}

// Path returns the settings file location.
func (s *Settings) Path() string {
	return s.path
}

// Get returns the value for key and whether it was present.
func (s *Settings) Get(key string) (string, bool, error) {
	values, err := s.read()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// Set stores value under key. The file is written with 0600 permissions.
func (s *Settings) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	values[key] = value
	return s.write(values)
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Settings) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return s.write(values)
}

// APIKey returns the Gemini credential. The environment variable wins over
// the stored value. An absent key returns "" with a nil error; callers
// decide whether that is fatal.
func (s *Settings) APIKey() (string, error) {
	if v := strings.TrimSpace(os.Getenv(APIKeyEnv)); v != "" {
		return v, nil
	}
	v, _, err := s.Get(APIKeySetting)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(v), nil
}

// SetAPIKey stores the Gemini credential. An empty key clears it.
func (s *Settings) SetAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return s.Delete(APIKeySetting)
	}
	return s.Set(APIKeySetting, key)
}

func (s *Settings) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	values := map[string]string{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parsing settings file %s: %w", s.path, err)
	}
	return values, nil
}

func (s *Settings) write(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating settings dir: %w", err)
	}
	out, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing settings: %w", err)
	}
	_ = os.Chmod(s.path, 0o600)
	return nil
}

// MaskKey returns a display form of a credential: last four characters only.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", 8) + key[len(key)-4:]
}
