package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
	ErrUnknownBackend        = errors.New("unknown store backend")
)

// Current version of the config file.
const CurrentConfigVersion = 1

// Store backends selectable via the store section.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config represents the entire application configuration.
type Config struct {
	// Version of the config file.
	Version int    `koanf:"version"`
	Debug   Debug  `koanf:"debug"`
	Store   Store  `koanf:"store"`
	Social  Social `koanf:"social"`
	Worker  Worker `koanf:"worker"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum number of log files to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
}

// Store selects and configures the document store backend.
type Store struct {
	// Backend is one of memory, redis, postgres.
	Backend    string     `koanf:"backend"`
	Redis      Redis      `koanf:"redis"`
	PostgreSQL PostgreSQL `koanf:"postgresql"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// PostgreSQL contains PostgreSQL connection configuration.
type PostgreSQL struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	DBName   string `koanf:"db_name"`
}

// Social tunes the engagement layer.
type Social struct {
	// Minimum gap between repeated toggles by one user, in milliseconds.
	ToggleDebounceMs int `koanf:"toggle_debounce_ms"`
	// Maximum records returned by list reads.
	ListLimit int `koanf:"list_limit"`
	// Retry settings for conflicted transactions.
	Retry Retry `koanf:"retry"`
}

// Retry contains backoff settings for conflicted store transactions.
type Retry struct {
	// First retry delay in milliseconds.
	InitialIntervalMs int `koanf:"initial_interval_ms"`
	// Delay growth factor between attempts.
	Multiplier float64 `koanf:"multiplier"`
	// Retries after the first attempt.
	MaxRetries int `koanf:"max_retries"`
}

// Worker contains reconciliation worker configuration.
type Worker struct {
	// Delay between reconciliation sweeps in milliseconds.
	SweepIntervalMs int `koanf:"sweep_interval_ms"`
	// Startup delay in milliseconds.
	StartupDelayMs int `koanf:"startup_delay_ms"`
	// Clubs refreshed concurrently per sweep.
	SweepConcurrency int `koanf:"sweep_concurrency"`
}

// LoadConfig loads the configuration from the first search path holding a
// clubsync.toml. Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	k := koanf.New(".")

	// Get user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	// List search paths
	configPaths := []string{
		".clubsync",
		homeDir + "/.clubsync/config",
		"/etc/clubsync/config",
		"/app/config",
		"config",
		".",
	}

	var usedConfigPath string

	for _, path := range configPaths {
		configPath := fmt.Sprintf("%s/clubsync.toml", path)
		if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
			usedConfigPath = path
			break
		}
	}

	if usedConfigPath == "" {
		return nil, "", fmt.Errorf("%w: clubsync.toml", ErrConfigFileNotFound)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := checkConfigVersion(config.Version, CurrentConfigVersion); err != nil {
		return nil, "", err
	}

	switch config.Store.Backend {
	case BackendMemory, BackendRedis, BackendPostgres:
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownBackend, config.Store.Backend)
	}

	return &config, usedConfigPath, nil
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: clubsync.toml", ErrConfigVersionMissing)
	}

	if current != expected {
		return fmt.Errorf("%w: clubsync.toml (got: %d, expected: %d)",
			ErrConfigVersionMismatch, current, expected)
	}

	return nil
}
