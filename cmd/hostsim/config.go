package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/BuggedPlayer/ableton-mcpv2/internal/host"
	"github.com/BuggedPlayer/ableton-mcpv2/internal/host/simgraph"
)

// hostsim config.toml key mapping to runtime and graph settings.
type fileConfig struct {
	CommandAddr  string `toml:"command_addr"`
	ResponseAddr string `toml:"response_addr"`

	CallBudget      int `toml:"call_budget"`
	CursorPoolSize  int `toml:"cursor_pool_size"`
	Tracks          int `toml:"tracks"`
	DevicesPerTrack int `toml:"devices_per_track"`
	ParamsPerDevice int `toml:"params_per_device"`
}

// simConfig is the resolved runtime config for the simulator binary.
type simConfig struct {
	CommandAddr  string
	ResponseAddr string
	Runtime      host.RuntimeConfig
	Graph        simgraph.Config
}

func loadSimConfig(path string) (simConfig, error) {
	cfg := simConfig{
		CommandAddr:  "127.0.0.1:9004",
		ResponseAddr: "127.0.0.1:9005",
		Runtime:      host.DefaultRuntimeConfig(),
		Graph:        simgraph.DefaultConfig(),
	}
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return simConfig{}, fmt.Errorf("load host config: %w", err)
	}

	if meta.IsDefined("command_addr") {
		cfg.CommandAddr = strings.TrimSpace(raw.CommandAddr)
	}
	if meta.IsDefined("response_addr") {
		cfg.ResponseAddr = strings.TrimSpace(raw.ResponseAddr)
	}
	if meta.IsDefined("call_budget") {
		cfg.Runtime.CallBudget = raw.CallBudget
	}
	if meta.IsDefined("cursor_pool_size") {
		cfg.Runtime.CursorPoolSize = raw.CursorPoolSize
	}
	if meta.IsDefined("tracks") {
		cfg.Graph.Tracks = raw.Tracks
	}
	if meta.IsDefined("devices_per_track") {
		cfg.Graph.DevicesPerTrack = raw.DevicesPerTrack
	}
	if meta.IsDefined("params_per_device") {
		cfg.Graph.ParamsPerDevice = raw.ParamsPerDevice
	}
	return cfg, nil
}
