package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
	ErrInvalidProxy          = errors.New("invalid proxy url")
)

// RepositoryVersion is the repository version tag for config file references.
const RepositoryVersion = "v0.1.0"

// CurrentVersion is the current version of the config file.
const CurrentVersion = 1

// FileName is the name of the config file looked up in each search path.
const FileName = "relay.toml"

// Config represents the entire application configuration.
type Config struct {
	// Version of the config file.
	Version int     `koanf:"version"`
	Debug   Debug   `koanf:"debug"`
	Discord Discord `koanf:"discord"`
	Proxy   Proxy   `koanf:"proxy"`
	Redis   Redis   `koanf:"redis"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log sessions to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
	// Maximum lines per log file.
	MaxLogLines int `koanf:"max_log_lines"`
}

// Discord contains the account and dispatcher configuration.
type Discord struct {
	// User token sent in the Authorization header.
	Token string `koanf:"token"`
	// REST API root.
	APIBase string `koanf:"api_base"`
	// Browser user agent presented to Discord.
	UserAgent string `koanf:"user_agent"`
	// Browser version reported in the super properties.
	BrowserVersion string `koanf:"browser_version"`
	// System locale reported in the super properties.
	Locale string `koanf:"locale"`
	// Client build number reported in the super properties.
	BuildNumber int `koanf:"build_number"`
	// Compute reset delays from the absolute reset timestamp.
	SyncClock bool `koanf:"sync_clock"`
	// Measure absolute reset timestamps against the server Date header.
	CompensateSkew bool `koanf:"compensate_skew"`
	// Per-attempt timeout in milliseconds.
	RequestTimeout int `koanf:"request_timeout"`
	// Attempt budget for one request.
	MaxAttempts int `koanf:"max_attempts"`
	// First transient fault backoff in milliseconds.
	BackoffBase int `koanf:"backoff_base"`
	// Backoff increase per attempt in milliseconds.
	BackoffStep int `koanf:"backoff_step"`
	// Base gap between consecutive requests in milliseconds (0 disables).
	PaceInterval int `koanf:"pace_interval"`
	// Random jitter added to the gap in milliseconds.
	PaceJitter int `koanf:"pace_jitter"`
	// Maximum requests per second across all buckets (0 disables).
	GlobalRate float64 `koanf:"global_rate"`
}

// Proxy contains proxy-related configuration.
type Proxy struct {
	// Proxy URL, with credentials in the userinfo if needed.
	URL string `koanf:"url"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Share global rate limits with other processes through Redis.
	Enabled bool `koanf:"enabled"`
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
}

// RequestTimeoutDuration returns the per-attempt timeout.
func (d *Discord) RequestTimeoutDuration() time.Duration {
	return millis(d.RequestTimeout)
}

// BackoffBaseDuration returns the first transient fault backoff.
func (d *Discord) BackoffBaseDuration() time.Duration {
	return millis(d.BackoffBase)
}

// BackoffStepDuration returns the backoff increase per attempt.
func (d *Discord) BackoffStepDuration() time.Duration {
	return millis(d.BackoffStep)
}

// PaceIntervalDuration returns the base gap between requests.
func (d *Discord) PaceIntervalDuration() time.Duration {
	return millis(d.PaceInterval)
}

// PaceJitterDuration returns the random jitter added to the gap.
func (d *Discord) PaceJitterDuration() time.Duration {
	return millis(d.PaceJitter)
}

// ParsedURL returns the proxy URL, or nil when no proxy is configured.
func (p *Proxy) ParsedURL() (*url.URL, error) {
	if p.URL == "" {
		return nil, nil //nolint:nilnil // no proxy configured
	}

	u, err := url.Parse(p.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProxy, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProxy, u.Redacted())
	}
	return u, nil
}

// LoadConfig loads the configuration from the default search paths.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	// Get user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return LoadConfigFrom([]string{
		".relay",
		filepath.Join(homeDir, ".relay", "config"),
		"/etc/relay/config",
		"config",
		".",
	})
}

// LoadConfigFrom loads the first relay.toml found in configPaths.
func LoadConfigFrom(configPaths []string) (*Config, string, error) {
	k := koanf.New(".")

	var usedConfigPath string
	for _, path := range configPaths {
		configPath := filepath.Join(path, FileName)
		if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
			usedConfigPath = path
			break
		}
	}

	if usedConfigPath == "" {
		return nil, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, FileName)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := checkConfigVersion(config.Version, CurrentVersion); err != nil {
		return nil, "", err
	}

	config.applyDefaults()
	return &config, usedConfigPath, nil
}

// applyDefaults fills settings that have no sensible zero value.
func (c *Config) applyDefaults() {
	if c.Debug.LogLevel == "" {
		c.Debug.LogLevel = "info"
	}
	if c.Debug.MaxLogsToKeep <= 0 {
		c.Debug.MaxLogsToKeep = 10
	}
	if c.Debug.MaxLogLines <= 0 {
		c.Debug.MaxLogLines = 10000
	}
	if c.Discord.Locale == "" {
		c.Discord.Locale = "en-US"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s", ErrConfigVersionMissing, FileName)
	}

	if current != expected {
		return fmt.Errorf(
			"%w: %s (got: %d, expected: %d)\n"+
				"Please update your config file from: https://github.com/robalyx/relay/tree/%s/config/%s",
			ErrConfigVersionMismatch,
			FileName,
			current,
			expected,
			RepositoryVersion,
			FileName,
		)
	}

	return nil
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
