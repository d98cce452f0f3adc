package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvEngineStageTimeout  = "PADDOCK_ENGINE_STAGE_TIMEOUT"
	EnvEngineMaxConcurrent = "PADDOCK_ENGINE_MAX_CONCURRENT"
	EnvEngineRulesPath     = "PADDOCK_ENGINE_RULES_PATH"
)

// EngineConfig holds pipeline execution parameters.
type EngineConfig struct {
	StageTimeout  string `toml:"stage_timeout"`
	MaxConcurrent int    `toml:"max_concurrent"`
	RulesPath     string `toml:"rules_path"`
}

// StageTimeoutDuration returns StageTimeout as a time.Duration.
func (c *EngineConfig) StageTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.StageTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *EngineConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *EngineConfig) Merge(overlay *EngineConfig) {
	if overlay.StageTimeout != "" {
		c.StageTimeout = overlay.StageTimeout
	}
	if overlay.MaxConcurrent != 0 {
		c.MaxConcurrent = overlay.MaxConcurrent
	}
	if overlay.RulesPath != "" {
		c.RulesPath = overlay.RulesPath
	}
}

func (c *EngineConfig) loadDefaults() {
	if c.StageTimeout == "" {
		c.StageTimeout = "10m"
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 2
	}
	if c.RulesPath == "" {
		c.RulesPath = "rules.json"
	}
}

func (c *EngineConfig) loadEnv() {
	if v := os.Getenv(EnvEngineStageTimeout); v != "" {
		c.StageTimeout = v
	}
	if v := os.Getenv(EnvEngineMaxConcurrent); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxConcurrent = n
		}
	}
	if v := os.Getenv(EnvEngineRulesPath); v != "" {
		c.RulesPath = v
	}
}

func (c *EngineConfig) validate() error {
	if _, err := time.ParseDuration(c.StageTimeout); err != nil {
		return fmt.Errorf("invalid stage_timeout: %w", err)
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("invalid max_concurrent: %d", c.MaxConcurrent)
	}
	if c.RulesPath == "" {
		return fmt.Errorf("rules_path required")
	}
	return nil
}
