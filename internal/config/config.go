package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/claude/bilbotrack/internal/drive"
)

type Config struct {
	Data      DataConfig      `yaml:"data"`
	Server    ServerConfig    `yaml:"server"`
	Sync      SyncConfig      `yaml:"sync"`
	Drive     drive.Config    `yaml:"drive"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
}

type DataConfig struct {
	Dir string `yaml:"dir"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type SyncConfig struct {
	DebounceMs int `yaml:"debounce_ms"`
}

// Debounce returns the configured sync debounce delay; zero means the
// coordinator's default.
func (s SyncConfig) Debounce() time.Duration {
	return time.Duration(s.DebounceMs) * time.Millisecond
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix BILBO_ and underscore-separated paths:
//
//	BILBO_DATA_DIR,
//	BILBO_SERVER_HOST, BILBO_SERVER_PORT,
//	BILBO_SYNC_DEBOUNCE_MS,
//	BILBO_DRIVE_API_BASE, BILBO_DRIVE_UPLOAD_BASE,
//	BILBO_TS_HOSTNAME, BILBO_TS_STATE_DIR
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BILBO_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("BILBO_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("BILBO_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("BILBO_SYNC_DEBOUNCE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Sync.DebounceMs = ms
		}
	}
	if v := os.Getenv("BILBO_DRIVE_API_BASE"); v != "" {
		cfg.Drive.APIBase = v
	}
	if v := os.Getenv("BILBO_DRIVE_UPLOAD_BASE"); v != "" {
		cfg.Drive.UploadBase = v
	}
	if v := os.Getenv("BILBO_TS_HOSTNAME"); v != "" {
		cfg.Tailscale.Hostname = v
	}
	if v := os.Getenv("BILBO_TS_STATE_DIR"); v != "" {
		cfg.Tailscale.StateDir = v
	}
}

func applyDefaults(cfg *Config) {
	defaults := drive.DefaultConfig()
	if cfg.Drive.APIBase == "" {
		cfg.Drive.APIBase = defaults.APIBase
	}
	if cfg.Drive.UploadBase == "" {
		cfg.Drive.UploadBase = defaults.UploadBase
	}
	if cfg.Drive.FileName == "" {
		cfg.Drive.FileName = defaults.FileName
	}
}

func (c *Config) validate() error {
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir is required")
	}
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Sync.DebounceMs < 0 {
		return fmt.Errorf("sync.debounce_ms must not be negative")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	return nil
}
