package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	appLog "cyclecal/internal/log"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions. Environment overrides live in env.go.

const (
	DefaultListen              = "127.0.0.1:8080"
	DefaultTimezone            = "Local"
	DefaultLogLevel            = "info"
	DefaultStateBackend        = "file"
	DefaultStatePath           = "/var/lib/cyclecal/state.json"
	DefaultHorizonDays         = 90
	DefaultForecastCount       = 6
	DefaultComplianceWindow    = 30
	DefaultRecomputeDebounceMS = 250
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// StateConfig selects where the tracker state is persisted.
type StateConfig struct {
	// Backend is "file" (one JSON document) or "sqlite".
	Backend string `yaml:"backend" json:"backend"`
	// Path is the JSON file or the SQLite database path.
	Path string `yaml:"path" json:"path"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone that defines "today" (e.g. "Europe/Berlin").
	// "Local" uses the host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	State StateConfig `yaml:"state" json:"state"`

	// HorizonDays bounds virtual medication schedule entries past today.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// ForecastCount is the number of predicted future periods.
	ForecastCount int `yaml:"forecast_count" json:"forecast_count"`

	// ComplianceWindowDays is the trailing window of the compliance figure.
	ComplianceWindowDays int `yaml:"compliance_window_days" json:"compliance_window_days"`

	// CondensedLabels makes condensed overlay labels the default.
	CondensedLabels bool `yaml:"condensed_labels" json:"condensed_labels"`

	// RecomputeDebounceMS is the quiet period before derived caches and
	// the reminder schedule are rebuilt after changes.
	RecomputeDebounceMS int `yaml:"recompute_debounce_ms" json:"recompute_debounce_ms"`

	// CORSOrigins lists allowed browser origins. Empty disables CORS.
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:               DefaultListen,
		Timezone:             DefaultTimezone,
		LogLevel:             DefaultLogLevel,
		State:                StateConfig{Backend: DefaultStateBackend, Path: DefaultStatePath},
		HorizonDays:          DefaultHorizonDays,
		ForecastCount:        DefaultForecastCount,
		ComplianceWindowDays: DefaultComplianceWindow,
		RecomputeDebounceMS:  DefaultRecomputeDebounceMS,
		CORSOrigins:          []string{},
		BasicAuth:            nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
		// ok
	default:
		c.LogLevel = DefaultLogLevel
	}
	switch c.State.Backend {
	case "file", "sqlite":
		// ok
	default:
		c.State.Backend = DefaultStateBackend
	}
	if c.State.Path == "" {
		c.State.Path = DefaultStatePath
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = DefaultHorizonDays
	}
	if c.ForecastCount <= 0 {
		c.ForecastCount = DefaultForecastCount
	}
	if c.ComplianceWindowDays <= 0 {
		c.ComplianceWindowDays = DefaultComplianceWindow
	}
	if c.RecomputeDebounceMS <= 0 {
		c.RecomputeDebounceMS = DefaultRecomputeDebounceMS
	}
	if c.CORSOrigins == nil {
		c.CORSOrigins = []string{}
	}
	// Treat half-configured credentials as disabled.
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		c.BasicAuth = nil
	}
}

// Location resolves Timezone, falling back to the host zone.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == DefaultTimezone {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", c.Timezone)
		return time.Local
	}
	return loc
}

// RecomputeDebounce returns RecomputeDebounceMS as a duration.
func (c *Config) RecomputeDebounce() time.Duration {
	return time.Duration(c.RecomputeDebounceMS) * time.Millisecond
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			appLog.Info("wrote default config", "path", path)
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".cyclecal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
