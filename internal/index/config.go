package index

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds Qdrant connection and collection parameters.
type Config struct {
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	UseTLS     bool   `toml:"use_tls"`
	Collection string `toml:"collection"`
	Dimensions int    `toml:"dimensions"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Host       string
	Port       string
	Collection string
	Dimensions string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Host != "" {
		c.Host = overlay.Host
	}
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	if overlay.UseTLS {
		c.UseTLS = true
	}
	if overlay.Collection != "" {
		c.Collection = overlay.Collection
	}
	if overlay.Dimensions != 0 {
		c.Dimensions = overlay.Dimensions
	}
}

func (c *Config) loadDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = "paddock-knowledge"
	}
	if c.Dimensions == 0 {
		c.Dimensions = 512
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Host != "" {
		if v := os.Getenv(env.Host); v != "" {
			c.Host = v
		}
	}
	if env.Port != "" {
		if v := os.Getenv(env.Port); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.Port = n
			}
		}
	}
	if env.Collection != "" {
		if v := os.Getenv(env.Collection); v != "" {
			c.Collection = v
		}
	}
	if env.Dimensions != "" {
		if v := os.Getenv(env.Dimensions); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.Dimensions = n
			}
		}
	}
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Dimensions < 8 {
		return fmt.Errorf("dimensions too small: %d", c.Dimensions)
	}
	return nil
}
