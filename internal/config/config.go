package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultModel                  = "gemini-2.5-flash-lite"
	DefaultGeminiBaseURL          = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGenerateTimeoutSeconds = 120
	DefaultLogLevel               = "info"
	DefaultWebBind                = "127.0.0.1"
	DefaultWebPort                = 4310

	// BaseDirName is the data directory under the user's home.
	BaseDirName = ".acta"
)

// DefaultBaseDir returns ~/.acta.
func DefaultBaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, BaseDirName), nil
}

// Config holds application configuration.
type Config struct {
	// Model is the Gemini model used for minutes generation
	Model string `json:"model,omitempty"`

	// GeminiBaseURL is the API root, overridable for proxies and tests
	GeminiBaseURL string `json:"gemini_base_url,omitempty"`

	// GenerateTimeoutSeconds bounds a single generation request end to end.
	GenerateTimeoutSeconds int `json:"generate_timeout_seconds,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// AllowedPaths is an allowlist of directories for import/export operations.
	// Paths outside ~/.acta/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is locked" errors).
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// WebBind and WebPort set the listen address of `acta serve`.
	WebBind string `json:"web_bind,omitempty"`
	WebPort int    `json:"web_port,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Model:                  DefaultModel,
		GeminiBaseURL:          DefaultGeminiBaseURL,
		GenerateTimeoutSeconds: DefaultGenerateTimeoutSeconds,
		LogLevel:               DefaultLogLevel,
		WebBind:                DefaultWebBind,
		WebPort:                DefaultWebPort,
	}
}

// GenerateTimeout returns the generation timeout as a duration.
func (c *Config) GenerateTimeout() time.Duration {
	if c.GenerateTimeoutSeconds <= 0 {
		return DefaultGenerateTimeoutSeconds * time.Second
	}
	return time.Duration(c.GenerateTimeoutSeconds) * time.Second
}

// WebAddr returns host:port for the web server.
func (c *Config) WebAddr() string {
	return fmt.Sprintf("%s:%d", c.WebBind, c.WebPort)
}

// Load loads configuration from baseDir/config.json, then applies ACTA_*
// environment overrides. Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.acta.
func Load(baseDir string) (*Config, error) {
	raw, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	cfg := Merge(DefaultConfig(), raw)
	applyEnvOverrides(cfg)
	return cfg, nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", configPath, err)
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.Model = pickString(overlay.Model, base.Model)
	result.GeminiBaseURL = strings.TrimRight(pickString(overlay.GeminiBaseURL, base.GeminiBaseURL), "/")
	result.LogLevel = pickString(overlay.LogLevel, base.LogLevel)
	result.WebBind = pickString(overlay.WebBind, base.WebBind)

	result.GenerateTimeoutSeconds = pickInt(overlay.GenerateTimeoutSeconds, base.GenerateTimeoutSeconds)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)
	result.WebPort = pickInt(overlay.WebPort, base.WebPort)

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return strings.TrimSpace(overlay)
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// applyEnvOverrides applies ACTA_* variables on top of file config.
// Unparseable values are reported on stderr and ignored.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ACTA_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("ACTA_GEMINI_BASE_URL"); v != "" {
		cfg.GeminiBaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("ACTA_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ACTA_GENERATE_TIMEOUT_SECONDS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			cfg.GenerateTimeoutSeconds = i
		} else {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var ACTA_GENERATE_TIMEOUT_SECONDS=%q. Using %d.\n", v, cfg.GenerateTimeoutSeconds)
		}
	}
	if v := os.Getenv("ACTA_WEB_PORT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			cfg.WebPort = i
		} else {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var ACTA_WEB_PORT=%q. Using %d.\n", v, cfg.WebPort)
		}
	}
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
