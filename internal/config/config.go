// Package config handles the XDG configuration directory, the task API
// endpoints and the session file path.
package config

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	// AppName is the application directory name.
	AppName = "taskdash"

	// ConfigFile is the optional settings file inside the config directory.
	ConfigFile = "config.yml"

	// SessionFile is the stored login session filename.
	SessionFile = "session.json"
)

// API holds the task gateway endpoints.
type API struct {
	URL        string        `yaml:"api_url" env:"TASKDASH_API_URL" env-default:"http://localhost:3000"`
	GraphQLURL string        `yaml:"graphql_url" env:"TASKDASH_GRAPHQL_URL"`
	WSURL      string        `yaml:"ws_url" env:"TASKDASH_WS_URL"`
	Timeout    time.Duration `yaml:"timeout" env:"TASKDASH_TIMEOUT" env-default:"10s"`

	// DefaultTeam is used for new tasks when the user has no team.
	DefaultTeam string `yaml:"default_team" env:"TASKDASH_DEFAULT_TEAM" env-default:"team-A"`
}

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// API holds the endpoints loaded from config.yml and the environment.
	API API

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool

	// In is where prompts read answers from. Nil means no interactive input.
	In io.Reader

	// loaded keeps the endpoints as read, before any were derived.
	loaded API
}

// New creates a Config rooted at configDir, or the default directory when
// configDir is empty, and loads API settings. config.yml is optional;
// environment variables override it.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	cfg := &Config{Dir: dir}

	var err error
	if _, statErr := os.Stat(cfg.ConfigPath()); statErr == nil {
		err = cleanenv.ReadConfig(cfg.ConfigPath(), &cfg.API)
	} else {
		err = cleanenv.ReadEnv(&cfg.API)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.loaded = cfg.API

	if err := cfg.SetAPIURL(cfg.API.URL); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetAPIURL sets the gateway base URL and fills in the GraphQL and WebSocket
// endpoints that were not configured explicitly.
func (c *Config) SetAPIURL(raw string) error {
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api url: %s", raw)
	}
	c.API.URL = u.String()

	if c.API.GraphQLURL == "" {
		c.API.GraphQLURL = c.API.URL + "/graphql"
	}
	if c.API.WSURL == "" {
		ws, err := websocketURL(c.API.GraphQLURL)
		if err != nil {
			return err
		}
		c.API.WSURL = ws
	}
	return nil
}

// OverrideAPIURL replaces the base URL, as --api-url does. Endpoints derived
// from the previous base URL are derived again; explicitly configured ones
// are kept.
func (c *Config) OverrideAPIURL(raw string) error {
	c.API.GraphQLURL = c.loaded.GraphQLURL
	c.API.WSURL = c.loaded.WSURL
	return c.SetAPIURL(raw)
}

// websocketURL swaps an http(s) scheme for ws(s).
func websocketURL(httpURL string) (string, error) {
	u, err := url.Parse(httpURL)
	if err != nil {
		return "", fmt.Errorf("invalid graphql url: %s", httpURL)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid graphql url: %s", httpURL)
	}
	return u.String(), nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// ConfigPath returns the path to the optional settings file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.Dir, ConfigFile)
}

// SessionPath returns the path to the stored session file.
func (c *Config) SessionPath() string {
	return filepath.Join(c.Dir, SessionFile)
}

// EnsureDir creates the config directory with mode 0700 if it doesn't exist.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}
