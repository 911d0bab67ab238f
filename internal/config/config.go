package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// BridgeConfig is the controller-side config file shape. Zero-valued
// fields fall back to the transport defaults at load time.
type BridgeConfig struct {
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

// HostConfig is the host-simulator config file shape.
type HostConfig struct {
	CommandAddr  string `toml:"command_addr"`
	ResponseAddr string `toml:"response_addr"`

	CallBudget      int `toml:"call_budget"`
	CursorPoolSize  int `toml:"cursor_pool_size"`
	Tracks          int `toml:"tracks"`
	DevicesPerTrack int `toml:"devices_per_track"`
	ParamsPerDevice int `toml:"params_per_device"`
}

func LoadBridgeConfig(path string) (BridgeConfig, error) {
	var cfg BridgeConfig
	if err := loadToml(path, &cfg); err != nil {
		return BridgeConfig{}, err
	}
	if cfg.CommandAddr == "" {
		cfg.CommandAddr = "127.0.0.1:9004"
	}
	if cfg.ResponseAddr == "" {
		cfg.ResponseAddr = "127.0.0.1:9005"
	}
	if cfg.ControlAddr == "" {
		cfg.ControlAddr = "127.0.0.1:9006"
	}
	if err := ValidateBridgeConfig(cfg); err != nil {
		return BridgeConfig{}, err
	}
	return cfg, nil
}

func LoadHostConfig(path string) (HostConfig, error) {
	var cfg HostConfig
	if err := loadToml(path, &cfg); err != nil {
		return HostConfig{}, err
	}
	if cfg.CommandAddr == "" {
		cfg.CommandAddr = "127.0.0.1:9004"
	}
	if cfg.ResponseAddr == "" {
		cfg.ResponseAddr = "127.0.0.1:9005"
	}
	if err := ValidateHostConfig(cfg); err != nil {
		return HostConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateBridgeConfig(cfg BridgeConfig) error {
	if strings.TrimSpace(cfg.CommandAddr) == "" {
		return fmt.Errorf("bridge config missing command_addr")
	}
	if strings.TrimSpace(cfg.ResponseAddr) == "" {
		return fmt.Errorf("bridge config missing response_addr")
	}
	if strings.TrimSpace(cfg.ControlAddr) == "" {
		return fmt.Errorf("bridge config missing control_addr")
	}
	return nil
}

func ValidateHostConfig(cfg HostConfig) error {
	if strings.TrimSpace(cfg.CommandAddr) == "" {
		return fmt.Errorf("host config missing command_addr")
	}
	if strings.TrimSpace(cfg.ResponseAddr) == "" {
		return fmt.Errorf("host config missing response_addr")
	}
	if cfg.CallBudget < 0 {
		return fmt.Errorf("host config call_budget must be non-negative")
	}
	if cfg.CursorPoolSize < 0 {
		return fmt.Errorf("host config cursor_pool_size must be non-negative")
	}
	return nil
}
