package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/BuggedPlayer/ableton-mcpv2/internal/bridge"
)

// mcpctl config.toml key mapping to bridge transport settings.
type fileConfig struct {
	CommandAddr  string `toml:"command_addr"`
	ResponseAddr string `toml:"response_addr"`
	ControlAddr  string `toml:"control_addr"`
	StatusAddr   string `toml:"status_addr"`

	MinTimeout    string `toml:"min_timeout"`
	PerUnitCost   string `toml:"per_unit_cost"`
	BackoffInit   string `toml:"backoff_initial"`
	BackoffMax    string `toml:"backoff_max"`
	BackoffJitter bool   `toml:"backoff_jitter"`
}

// ctlConfig is the resolved runtime config for the controller binary.
type ctlConfig struct {
	Bridge     bridge.Config
	StatusAddr string
}

// loadCtlConfig overlays config.toml on top of the transport defaults.
func loadCtlConfig(path string) (ctlConfig, error) {
	cfg := ctlConfig{Bridge: bridge.DefaultConfig()}
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ctlConfig{}, fmt.Errorf("load bridge config: %w", err)
	}

	if meta.IsDefined("command_addr") {
		cfg.Bridge.CommandAddr = strings.TrimSpace(raw.CommandAddr)
	}
	if meta.IsDefined("response_addr") {
		cfg.Bridge.ResponseAddr = strings.TrimSpace(raw.ResponseAddr)
	}
	if meta.IsDefined("control_addr") {
		cfg.Bridge.ControlAddr = strings.TrimSpace(raw.ControlAddr)
	}
	if meta.IsDefined("status_addr") {
		cfg.StatusAddr = strings.TrimSpace(raw.StatusAddr)
	}

	if meta.IsDefined("min_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.MinTimeout))
		if err != nil {
			return ctlConfig{}, fmt.Errorf("parse min_timeout: %w", err)
		}
		cfg.Bridge.Policy.MinTimeout = d
	}
	if meta.IsDefined("per_unit_cost") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PerUnitCost))
		if err != nil {
			return ctlConfig{}, fmt.Errorf("parse per_unit_cost: %w", err)
		}
		cfg.Bridge.Policy.PerUnitCost = d
	}
	if meta.IsDefined("backoff_initial") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.BackoffInit))
		if err != nil {
			return ctlConfig{}, fmt.Errorf("parse backoff_initial: %w", err)
		}
		cfg.Bridge.Backoff.InitialDelay = d
	}
	if meta.IsDefined("backoff_max") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.BackoffMax))
		if err != nil {
			return ctlConfig{}, fmt.Errorf("parse backoff_max: %w", err)
		}
		cfg.Bridge.Backoff.MaxDelay = d
	}
	if meta.IsDefined("backoff_jitter") {
		cfg.Bridge.Backoff.Jitter = raw.BackoffJitter
	}
	return cfg, nil
}
