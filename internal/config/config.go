// Package config loads the gateway's YAML configuration and layers
// environment-variable overrides on top of it.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration surface for the gateway daemon.
type Config struct {
	Server struct {
		Port int    `yaml:"port" envconfig:"SERVER_PORT"`
		Host string `yaml:"host" envconfig:"SERVER_HOST"`
	} `yaml:"server"`

	Sessions struct {
		MaxSessions        int `yaml:"maxSessions" envconfig:"SESSIONS_MAX"`
		IdleTimeoutMinutes int `yaml:"idleTimeoutMinutes" envconfig:"SESSIONS_IDLE_TIMEOUT_MINUTES"`
	} `yaml:"sessions"`

	Persistence struct {
		ScrollbackLines int    `yaml:"scrollbackLines" envconfig:"PERSISTENCE_SCROLLBACK_LINES"`
		DataDir         string `yaml:"dataDir" envconfig:"PERSISTENCE_DATA_DIR"`
	} `yaml:"persistence"`

	Auth struct {
		Enabled      bool     `yaml:"enabled" envconfig:"AUTH_ENABLED"`
		AllowedUsers []string `yaml:"allowedUsers" envconfig:"AUTH_ALLOWED_USERS"`
		Token        string   `yaml:"token" envconfig:"AUTH_TOKEN"`
	} `yaml:"auth"`

	Logging struct {
		Level   string `yaml:"level" envconfig:"LOG_LEVEL"`
		Console bool   `yaml:"console" envconfig:"LOG_CONSOLE"`
	} `yaml:"logging"`

	// TmuxPrefix names the prefix used for external-multiplexer handles
	// created by the persistence helper's mux backend.
	TmuxPrefix string `yaml:"tmuxPrefix" envconfig:"TMUX_PREFIX"`

	// ProjectsAllowed lists the allowed project roots checked by
	// IsPathAllowed, carried forward from the teacher's path allow-list.
	// Session creation does not consult it.
	ProjectsAllowed []string `yaml:"projectsAllowed" envconfig:"PROJECTS_ALLOWED"`
}

// Load reads path as YAML, applies defaults first, then env overrides
// with the GATEWAY_ prefix, then validates cross-field invariants.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := envconfig.Process("GATEWAY", cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Server.Port = 4220
	cfg.Server.Host = "0.0.0.0"
	cfg.Sessions.MaxSessions = 10
	cfg.Sessions.IdleTimeoutMinutes = 0
	cfg.Persistence.ScrollbackLines = 10000
	cfg.Persistence.DataDir = "."
	cfg.Auth.Enabled = false
	cfg.TmuxPrefix = "gatewayd-"
	return cfg
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Sessions.MaxSessions < 1 {
		return fmt.Errorf("sessions.maxSessions must be >= 1")
	}
	if c.Persistence.ScrollbackLines < 1 {
		return fmt.Errorf("persistence.scrollbackLines must be >= 1")
	}
	if c.Auth.Enabled && c.Auth.Token == "" && len(c.Auth.AllowedUsers) == 0 {
		return fmt.Errorf("auth.enabled requires auth.token or auth.allowedUsers")
	}
	return nil
}

// DatabasePath returns the path to the metadata database file under the
// configured per-user data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Persistence.DataDir, "gatewayd.db")
}

// LogDir returns the path to the log directory under the configured
// per-user data directory.
func (c *Config) LogDir() string {
	return filepath.Join(c.Persistence.DataDir, "logs")
}

// IsPathAllowed reports whether path is equal to, or nested under, one
// of the configured allowed project roots. Empty ProjectsAllowed means
// no restriction (adapted from the teacher's allow-list, defaulting
// open rather than closed since this is a config knob, not a hard-coded
// security boundary).
func (c *Config) IsPathAllowed(path string) bool {
	if len(c.ProjectsAllowed) == 0 {
		return true
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	abs = filepath.Clean(abs)

	for _, allowed := range c.ProjectsAllowed {
		allowedAbs, err := filepath.Abs(allowed)
		if err != nil {
			continue
		}
		if resolved, err := filepath.EvalSymlinks(allowedAbs); err == nil {
			allowedAbs = resolved
		}
		allowedAbs = filepath.Clean(allowedAbs)

		if abs == allowedAbs {
			return true
		}
		prefix := allowedAbs + string(filepath.Separator)
		if len(abs) > len(prefix) && abs[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
