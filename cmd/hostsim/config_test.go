package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSimConfigDefaultsAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
command_addr = "0.0.0.0:9004"
tracks = 8
params_per_device = 16
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadSimConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CommandAddr != "0.0.0.0:9004" {
		t.Fatalf("command addr: %q", cfg.CommandAddr)
	}
	if cfg.ResponseAddr != "127.0.0.1:9005" {
		t.Fatalf("response addr default: %q", cfg.ResponseAddr)
	}
	if cfg.Graph.Tracks != 8 || cfg.Graph.ParamsPerDevice != 16 {
		t.Fatalf("graph overrides: %+v", cfg.Graph)
	}
	if cfg.Graph.DevicesPerTrack != 2 {
		t.Fatalf("devices default: %d", cfg.Graph.DevicesPerTrack)
	}
	if cfg.Runtime.CallBudget != 200 {
		t.Fatalf("call budget default: %d", cfg.Runtime.CallBudget)
	}
}

func TestLoadSimConfigEmptyPath(t *testing.T) {
	cfg, err := loadSimConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Graph.Tracks != 4 {
		t.Fatalf("tracks default: %d", cfg.Graph.Tracks)
	}
}

func TestLoadSimConfigMissingFile(t *testing.T) {
	if _, err := loadSimConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("expected load error")
	}
}
