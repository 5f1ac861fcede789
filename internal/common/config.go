package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the deepwork server configuration.
// Resolution order: defaults -> optional deepwork.toml -> environment -> CLI flags.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Logging  LoggingConfig  `toml:"logging"`
	Reviewer ReviewerConfig `toml:"reviewer"`
	Quality  QualityConfig  `toml:"quality"`
}

type ServerConfig struct {
	Transport string `toml:"transport"` // "stdio" or "sse"
	Port      int    `toml:"port"`      // SSE only
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "console", "file"
}

// ReviewerConfig tunes the external reviewer subprocess.
type ReviewerConfig struct {
	Command        string `toml:"command"`          // reviewer CLI binary (default "claude")
	TimeoutBase    int    `toml:"timeout_base"`     // seconds before per-file surcharge
	TimeoutPerFile int    `toml:"timeout_per_file"` // extra seconds per file beyond 5
	MaxInlineFiles int    `toml:"max_inline_files"` // inline file contents up to this count
}

// QualityConfig tunes the quality gate.
type QualityConfig struct {
	MaxAttempts int `toml:"max_attempts"` // failed review budget per step
}

// DefaultConfig returns the baseline configuration before file, env, and
// flag overrides are applied.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Transport: "stdio",
			Port:      8000,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Output: []string{"console"},
		},
		Reviewer: ReviewerConfig{
			Command:        "claude",
			TimeoutBase:    240,
			TimeoutPerFile: 30,
			MaxInlineFiles: 5,
		},
		Quality: QualityConfig{
			MaxAttempts: 3,
		},
	}
}

// LoadConfig loads configuration from an optional TOML file, then applies
// environment overrides. A missing file is not an error; a malformed one is.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := toml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies DEEPWORK_* environment variables on top of the
// file configuration.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("DEEPWORK_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("DEEPWORK_REVIEWER_COMMAND"); v != "" {
		config.Reviewer.Command = v
	}
	if v := os.Getenv("DEEPWORK_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Quality.MaxAttempts = n
		}
	}
	if v := os.Getenv("DEEPWORK_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Server.Port = n
		}
	}
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case "stdio", "sse":
	default:
		return fmt.Errorf("invalid transport '%s' (must be one of: stdio, sse)", c.Server.Transport)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d (must be 1-65535)", c.Server.Port)
	}
	if c.Quality.MaxAttempts < 1 {
		return fmt.Errorf("quality.max_attempts must be at least 1, got %d", c.Quality.MaxAttempts)
	}
	if c.Reviewer.TimeoutBase < 1 {
		return fmt.Errorf("reviewer.timeout_base must be positive, got %d", c.Reviewer.TimeoutBase)
	}
	return nil
}

// AdditionalJobsFolders returns the folders listed in the colon-delimited
// DEEPWORK_ADDITIONAL_JOBS_FOLDERS environment variable. Entries are
// trimmed; blanks are dropped.
func AdditionalJobsFolders() []string {
	raw := os.Getenv("DEEPWORK_ADDITIONAL_JOBS_FOLDERS")
	if raw == "" {
		return nil
	}

	var folders []string
	for _, entry := range strings.Split(raw, ":") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			folders = append(folders, entry)
		}
	}
	return folders
}
