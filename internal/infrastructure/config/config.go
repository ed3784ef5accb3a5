package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all engine configuration. Everything here is read-only after
// startup; the engine itself never writes configuration.
type Config struct {
	Server  ServerConfig
	Shell   ShellConfig
	History HistoryConfig
	Logging LogConfig
}

// ServerConfig holds the HTTP surface configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8090"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
}

// ShellConfig holds shell execution configuration.
type ShellConfig struct {
	Path           string `envconfig:"SHELL_PATH" default:"/bin/bash"`
	OutputLines    int    `envconfig:"OUTPUT_LINES" default:"500"`
	PTYPollMillis  int    `envconfig:"PTY_POLL_MS" default:"100"`
	TermRows       int    `envconfig:"TERM_ROWS" default:"20"`
	TermCols       int    `envconfig:"TERM_COLS" default:"80"`
	TeardownMillis int    `envconfig:"PTY_TEARDOWN_MS" default:"2000"`
}

// HistoryConfig holds command history configuration.
type HistoryConfig struct {
	File string `envconfig:"HISTORY_FILE" default:"command_history.json"`
	Max  int    `envconfig:"MAX_HISTORY" default:"100"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8090",
			Host: "127.0.0.1",
		},
		Shell: ShellConfig{
			Path:           "/bin/bash",
			OutputLines:    500,
			PTYPollMillis:  100,
			TermRows:       20,
			TermCols:       80,
			TeardownMillis: 2000,
		},
		History: HistoryConfig{
			File: "command_history.json",
			Max:  100,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}
