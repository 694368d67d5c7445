package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads and parses a YAML configuration file. Values from the
// process environment (and a .env file, if present) override the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(cfg)
	expandPaths(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to defaults when no
// config file exists at path.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		applyEnv(cfg)
		expandPaths(cfg)
		if err := validate(cfg); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}
	return Load(path)
}

// applyEnv layers BEACON_* variables over the file values. A .env file
// in the working directory is read first; missing is fine.
func applyEnv(cfg *Config) {
	_ = godotenv.Load()

	overlay := map[string]*string{
		"BEACON_API_KEY":     &cfg.App.APIKey,
		"BEACON_APP_ID":      &cfg.App.AppID,
		"BEACON_PROJECT_ID":  &cfg.App.ProjectID,
		"BEACON_SENDER_ID":   &cfg.App.SenderID,
		"BEACON_ENVIRONMENT": &cfg.App.Environment,
		"BEACON_ENDPOINT":    &cfg.Endpoints.Diagnostics,
		"BEACON_SOCKET":      &cfg.Agent.SocketPath,
		"BEACON_SPOOL":       &cfg.Spool.Path,
		"BEACON_TOKEN_PATH":  &cfg.Tokens.Path,
	}
	for key, dst := range overlay {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
}

// expandPaths resolves leading ~ in file paths.
func expandPaths(cfg *Config) {
	cfg.Spool.Path = expandHome(cfg.Spool.Path)
	cfg.Tokens.Path = expandHome(cfg.Tokens.Path)
	cfg.Scrub.Script = expandHome(cfg.Scrub.Script)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// validate checks the configuration for errors.
func validate(cfg *Config) error {
	switch cfg.Transport.Protocol {
	case ProtocolHTTP, ProtocolHTTP2, ProtocolGRPC:
	case "":
		cfg.Transport.Protocol = ProtocolHTTP
	default:
		return fmt.Errorf("transport.protocol %q is not one of http, http2, grpc", cfg.Transport.Protocol)
	}

	if cfg.Transport.RequestTimeout <= 0 {
		return fmt.Errorf("transport.request_timeout must be positive")
	}

	if cfg.Spool.Path == "" {
		return fmt.Errorf("spool.path is required")
	}
	if cfg.Spool.MaxEvents <= 0 {
		return fmt.Errorf("spool.max_events must be positive")
	}

	if cfg.Uploader.FlushInterval <= 0 {
		return fmt.Errorf("uploader.flush_interval must be positive")
	}
	if cfg.Uploader.BatchSize <= 0 {
		return fmt.Errorf("uploader.batch_size must be positive")
	}
	if cfg.Uploader.RatePerSecond < 0 {
		return fmt.Errorf("uploader.rate_per_second must not be negative")
	}
	if cfg.Uploader.MaxAttempts <= 0 {
		return fmt.Errorf("uploader.max_attempts must be positive")
	}

	if cfg.Scrub.Enabled && cfg.Scrub.Script == "" {
		return fmt.Errorf("scrub.script is required when scrub is enabled")
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Address == "" {
			return fmt.Errorf("metrics.address is required when metrics are enabled")
		}
		if cfg.Metrics.Path == "" {
			cfg.Metrics.Path = "/metrics"
		}
	}

	if cfg.Agent.SocketPath == "" {
		return fmt.Errorf("agent.socket_path is required")
	}

	if cfg.Probe.Count <= 0 {
		return fmt.Errorf("probe.count must be positive")
	}

	return nil
}
