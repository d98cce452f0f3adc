package config_test

import (
	"testing"
	"time"

	"github.com/sampoursoltan11/paddock-sub000/internal/config"
)

func TestEngineConfigDefaults(t *testing.T) {
	cfg := &config.EngineConfig{}

	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.StageTimeout != "10m" {
		t.Errorf("stage timeout: got %s, want 10m", cfg.StageTimeout)
	}
	if cfg.MaxConcurrent != 2 {
		t.Errorf("max concurrent: got %d, want 2", cfg.MaxConcurrent)
	}
	if cfg.RulesPath != "rules.json" {
		t.Errorf("rules path: got %s, want rules.json", cfg.RulesPath)
	}
	if cfg.StageTimeoutDuration() != 10*time.Minute {
		t.Errorf("stage timeout duration: got %s, want 10m", cfg.StageTimeoutDuration())
	}
}

func TestEngineConfigEnvOverrides(t *testing.T) {
	t.Setenv(config.EnvEngineStageTimeout, "90s")
	t.Setenv(config.EnvEngineMaxConcurrent, "8")
	t.Setenv(config.EnvEngineRulesPath, "/etc/paddock/rules.json")

	cfg := &config.EngineConfig{}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.StageTimeout != "90s" {
		t.Errorf("stage timeout: got %s, want 90s", cfg.StageTimeout)
	}
	if cfg.MaxConcurrent != 8 {
		t.Errorf("max concurrent: got %d, want 8", cfg.MaxConcurrent)
	}
	if cfg.RulesPath != "/etc/paddock/rules.json" {
		t.Errorf("rules path: got %s", cfg.RulesPath)
	}
}

func TestEngineConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.EngineConfig
	}{
		{"malformed stage timeout", config.EngineConfig{StageTimeout: "soon"}},
		{"negative max concurrent", config.EngineConfig{MaxConcurrent: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Finalize(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestEngineConfigMerge(t *testing.T) {
	cfg := &config.EngineConfig{
		StageTimeout:  "10m",
		MaxConcurrent: 2,
		RulesPath:     "rules.json",
	}

	cfg.Merge(&config.EngineConfig{MaxConcurrent: 6})

	if cfg.MaxConcurrent != 6 {
		t.Errorf("max concurrent: got %d, want 6", cfg.MaxConcurrent)
	}
	if cfg.StageTimeout != "10m" || cfg.RulesPath != "rules.json" {
		t.Errorf("zero overlay fields overwrote base: %+v", cfg)
	}
}
