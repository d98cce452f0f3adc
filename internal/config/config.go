// Package config loads and finalizes the root configuration for the
// Paddock service: base config.toml, optional environment overlay, then
// defaults, environment variable overrides, and validation per section.
package config

import (
	"fmt"
	"os"
	"time"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
	"github.com/pelletier/go-toml/v2"

	"github.com/sampoursoltan11/paddock-sub000/internal/index"
	"github.com/sampoursoltan11/paddock-sub000/pkg/database"
	"github.com/sampoursoltan11/paddock-sub000/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvPaddockEnv             = "PADDOCK_ENV"
	EnvPaddockShutdownTimeout = "PADDOCK_SHUTDOWN_TIMEOUT"
	EnvPaddockVersion         = "PADDOCK_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "PADDOCK_DB_HOST",
	Port:            "PADDOCK_DB_PORT",
	Name:            "PADDOCK_DB_NAME",
	User:            "PADDOCK_DB_USER",
	Password:        "PADDOCK_DB_PASSWORD",
	SSLMode:         "PADDOCK_DB_SSL_MODE",
	MaxOpenConns:    "PADDOCK_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "PADDOCK_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "PADDOCK_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "PADDOCK_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "PADDOCK_STORAGE_CONTAINER_NAME",
	ConnectionString: "PADDOCK_STORAGE_CONNECTION_STRING",
	MaxListSize:      "PADDOCK_STORAGE_MAX_LIST_SIZE",
}

var indexEnv = &index.Env{
	Host:       "PADDOCK_INDEX_HOST",
	Port:       "PADDOCK_INDEX_PORT",
	Collection: "PADDOCK_INDEX_COLLECTION",
	Dimensions: "PADDOCK_INDEX_DIMENSIONS",
}

// Config is the root configuration for the Paddock service.
type Config struct {
	Server          ServerConfig         `toml:"server"`
	Database        database.Config      `toml:"database"`
	Storage         storage.Config       `toml:"storage"`
	Index           index.Config         `toml:"index"`
	Engine          EngineConfig         `toml:"engine"`
	Agent           gaconfig.AgentConfig `toml:"agent"`
	API             APIConfig            `toml:"api"`
	ShutdownTimeout string               `toml:"shutdown_timeout"`
	Version         string               `toml:"version"`
}

// Env returns the PADDOCK_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvPaddockEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.Index.Merge(&overlay.Index)
	c.Engine.Merge(&overlay.Engine)
	c.Agent.Merge(&overlay.Agent)
	c.API.Merge(&overlay.API)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Index.Finalize(indexEnv); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	if err := c.Engine.Finalize(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := FinalizeAgent(&c.Agent); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvPaddockShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvPaddockVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvPaddockEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
