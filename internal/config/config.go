// Package config provides configuration loading and management for quorumdesk.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/quorumdesk/quorumdesk/internal/attendance"
	"github.com/quorumdesk/quorumdesk/internal/telemetry"
	"github.com/quorumdesk/quorumdesk/internal/versions"
)

const (
	// DefaultBaseURL is the address of a meeting service running on the same machine
	DefaultBaseURL = "http://localhost:5000"

	// DefaultTimeout bounds every request to the meeting service
	DefaultTimeout = 10 * time.Second

	// DefaultAutosaveInterval is how often pending edits are flushed without operator action
	DefaultAutosaveInterval = 30 * time.Second

	// DefaultClockInterval is how often the wall clock is repainted
	DefaultClockInterval = time.Second

	// DefaultPushPath is the push channel path relative to the base URL
	DefaultPushPath = "/ws"

	// DefaultPushMaxBackoff caps the delay between push reconnection attempts
	DefaultPushMaxBackoff = 30 * time.Second

	// EnvPrefix prefixes every environment variable read by quorumdesk
	EnvPrefix = "QUORUMDESK"

	// PasswordEnvVar is read when no password file is configured
	PasswordEnvVar = EnvPrefix + "_PASSWORD"
)

const (
	// MarkersDriverFile stores voted markers in a JSON file
	MarkersDriverFile = "file"

	// MarkersDriverSQLite stores voted markers in a SQLite database
	MarkersDriverSQLite = "sqlite"

	// MarkersDriverMemory keeps voted markers in memory
	MarkersDriverMemory = "memory"
)

// ErrNoPassword is returned when neither a password file nor the environment provide a password
var ErrNoPassword = errors.New("no password configured: set server.passwordFile or " + PasswordEnvVar)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// MinVersion is the oldest quorumdesk release this file is written for (e.g., "1.2.0")
	MinVersion string `yaml:"minVersion,omitempty"`

	Server    ServerConfig      `yaml:"server"`
	Scope     ScopeConfig       `yaml:"scope,omitempty"`
	Sync      SyncConfig        `yaml:"sync,omitempty"`
	Quorum    QuorumConfig      `yaml:"quorum,omitempty"`
	Push      PushConfig        `yaml:"push,omitempty"`
	Voting    VotingConfig      `yaml:"voting,omitempty"`
	Markers   MarkersConfig     `yaml:"markers,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// ServerConfig defines how the meeting service is reached
type ServerConfig struct {
	// BaseURL is the root URL of the meeting service
	BaseURL string `yaml:"baseURL" env:"QUORUMDESK_BASE_URL"`

	// Timeout bounds every request (e.g., "10s")
	Timeout string `yaml:"timeout,omitempty" env:"QUORUMDESK_TIMEOUT"`

	// Username is used to open a session when the service requires login
	Username string `yaml:"username,omitempty" env:"QUORUMDESK_USERNAME"`

	// PasswordFile is the path to a file containing the password.
	// The file should contain only the password with optional trailing whitespace.
	PasswordFile string `yaml:"passwordFile,omitempty" env:"QUORUMDESK_PASSWORD_FILE"`
}

// ScopeConfig selects the attendance list
type ScopeConfig struct {
	// VotingID ties the attendance list to a voting session. Empty means the global list.
	VotingID string `yaml:"votingID,omitempty" env:"QUORUMDESK_VOTING_ID"`
}

// SyncConfig defines the flush schedule
type SyncConfig struct {
	AutosaveInterval string `yaml:"autosaveInterval,omitempty" env:"QUORUMDESK_AUTOSAVE_INTERVAL"`
	ClockInterval    string `yaml:"clockInterval,omitempty" env:"QUORUMDESK_CLOCK_INTERVAL"`

	// DiscardPendingOnScopeChange drops unsaved edits when another scope is loaded
	DiscardPendingOnScopeChange bool `yaml:"discardPendingOnScopeChange,omitempty" env:"QUORUMDESK_DISCARD_PENDING_ON_SCOPE_CHANGE"`

	// MaxConcurrency bounds the status updates in flight during a flush. Zero means unbounded.
	MaxConcurrency int `yaml:"maxConcurrency,omitempty" env:"QUORUMDESK_SYNC_MAX_CONCURRENCY"`
}

// QuorumConfig defines the quorum threshold used outside voting sessions
type QuorumConfig struct {
	Minimum int64 `yaml:"minimum,omitempty" env:"QUORUMDESK_QUORUM_MINIMUM"`

	// Metric is "headcount" (default), "shares" or "percent".
	// With "percent" Minimum is a percentage of the whole list and defaults to 50.
	Metric string `yaml:"metric,omitempty" env:"QUORUMDESK_QUORUM_METRIC"`
}

// PushConfig defines the push channel subscription
type PushConfig struct {
	// Enabled defaults to true
	Enabled    *bool  `yaml:"enabled,omitempty" env:"QUORUMDESK_PUSH_ENABLED"`
	Path       string `yaml:"path,omitempty" env:"QUORUMDESK_PUSH_PATH"`
	MaxBackoff string `yaml:"maxBackoff,omitempty" env:"QUORUMDESK_PUSH_MAX_BACKOFF"`

	// SocketIO joins the default Socket.IO namespace after connecting
	SocketIO bool `yaml:"socketIO,omitempty" env:"QUORUMDESK_PUSH_SOCKETIO"`
}

// VotingConfig defines vote submission settings
type VotingConfig struct {
	// MaxConcurrency bounds the votes in flight for one question. Zero means unbounded.
	MaxConcurrency int `yaml:"maxConcurrency,omitempty" env:"QUORUMDESK_VOTING_MAX_CONCURRENCY"`
}

// MarkersConfig defines where voted markers are kept
type MarkersConfig struct {
	Driver string `yaml:"driver,omitempty" env:"QUORUMDESK_MARKERS_DRIVER"`

	// Path defaults to a file under the XDG data directory
	Path string `yaml:"path,omitempty" env:"QUORUMDESK_MARKERS_PATH"`
}

// LoadConfig loads configuration from the optional YAML file, then applies
// QUORUMDESK_* environment overrides and validates the result
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	var config Config
	if loaderCfg.path != "" {
		// Read the entire file into memory
		data, err := os.ReadFile(loaderCfg.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Parse YAML content
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("failed to parse environment overrides: %w", err)
	}

	// Validate the config
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := versions.CheckRequirement(versions.GetInfo().Version, c.MinVersion); err != nil {
		return fmt.Errorf("minVersion: %w", err)
	}

	if err := validateBaseURL(c.GetBaseURL()); err != nil {
		return err
	}

	durations := []struct {
		field string
		value string
	}{
		{"server.timeout", c.Server.Timeout},
		{"sync.autosaveInterval", c.Sync.AutosaveInterval},
		{"sync.clockInterval", c.Sync.ClockInterval},
		{"push.maxBackoff", c.Push.MaxBackoff},
	}
	for _, d := range durations {
		if err := validateDuration(d.field, d.value); err != nil {
			return err
		}
	}

	if c.Quorum.Minimum < 0 {
		return fmt.Errorf("quorum.minimum must not be negative, got %d", c.Quorum.Minimum)
	}
	metric, err := attendance.ParseQuorumMetric(c.Quorum.Metric)
	if err != nil {
		return fmt.Errorf("quorum.metric: %w", err)
	}
	if metric == attendance.QuorumByPercent && c.Quorum.Minimum > 100 {
		return fmt.Errorf("quorum.minimum must be at most 100 for the percent metric, got %d", c.Quorum.Minimum)
	}

	if c.Sync.MaxConcurrency < 0 {
		return fmt.Errorf("sync.maxConcurrency must not be negative")
	}
	if c.Voting.MaxConcurrency < 0 {
		return fmt.Errorf("voting.maxConcurrency must not be negative")
	}

	switch c.GetMarkersDriver() {
	case MarkersDriverFile, MarkersDriverSQLite, MarkersDriverMemory:
	default:
		return fmt.Errorf("markers.driver must be one of %s, %s or %s, got %q",
			MarkersDriverFile, MarkersDriverSQLite, MarkersDriverMemory, c.Markers.Driver)
	}

	if c.Telemetry != nil {
		if err := c.Telemetry.Validate(); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}

	return nil
}

func validateBaseURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("server.baseURL is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.baseURL must use http or https, got %q", value)
	}
	if u.Host == "" {
		return fmt.Errorf("server.baseURL must include a host, got %q", value)
	}
	return nil
}

func validateDuration(field, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s must be a valid duration (e.g., '30s', '1m'): %w", field, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", field, value)
	}
	return nil
}

// parseDuration returns the parsed value, or fallback when empty or invalid
func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetBaseURL returns the service base URL, using DefaultBaseURL if not specified
func (c *Config) GetBaseURL() string {
	if c.Server.BaseURL == "" {
		return DefaultBaseURL
	}
	return strings.TrimSuffix(c.Server.BaseURL, "/")
}

// GetTimeout returns the request timeout
func (c *Config) GetTimeout() time.Duration {
	return parseDuration(c.Server.Timeout, DefaultTimeout)
}

// GetScope returns the attendance scope to load
func (c *Config) GetScope() attendance.Scope {
	return attendance.Scope{VotingID: strings.TrimSpace(c.Scope.VotingID)}
}

// GetQuorumPolicy returns the configured quorum policy
func (c *Config) GetQuorumPolicy() attendance.QuorumPolicy {
	metric, err := attendance.ParseQuorumMetric(c.Quorum.Metric)
	if err != nil {
		metric = attendance.QuorumByHeadcount
	}
	return attendance.QuorumPolicy{Minimum: c.Quorum.Minimum, Metric: metric}
}

// IsPushEnabled reports whether the push channel should be subscribed
func (c *Config) IsPushEnabled() bool {
	return c.Push.Enabled == nil || *c.Push.Enabled
}

// GetPushPath returns the push channel path
func (c *Config) GetPushPath() string {
	if c.Push.Path == "" {
		return DefaultPushPath
	}
	return c.Push.Path
}

// GetPushMaxBackoff returns the maximum push reconnection delay
func (c *Config) GetPushMaxBackoff() time.Duration {
	return parseDuration(c.Push.MaxBackoff, DefaultPushMaxBackoff)
}

// GetMarkersDriver returns the markers driver, using the file driver if not specified
func (c *Config) GetMarkersDriver() string {
	if c.Markers.Driver == "" {
		return MarkersDriverFile
	}
	return strings.ToLower(c.Markers.Driver)
}

// GetPassword returns the login password using the following priority:
// 1. Read from Server.PasswordFile if specified
// 2. Read from QUORUMDESK_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (c *Config) GetPassword() (string, error) {
	// Priority 1: Read from file if specified
	if c.Server.PasswordFile != "" {
		// Use filepath.Clean to prevent path traversal attacks
		cleanPath := filepath.Clean(c.Server.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", c.Server.PasswordFile, err)
		}

		// Trim whitespace (including newlines) from file content
		return strings.TrimSpace(string(data)), nil
	}

	// Priority 2: Check environment variable
	if envPassword := os.Getenv(PasswordEnvVar); envPassword != "" {
		return envPassword, nil
	}

	return "", ErrNoPassword
}
