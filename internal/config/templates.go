package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "bridge":
		return bridgeTemplate, nil
	case "host":
		return hostTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const bridgeTemplate = `command_addr = "127.0.0.1:9004"
response_addr = "127.0.0.1:9005"
control_addr = "127.0.0.1:9006"
status_addr = ""

min_timeout = "10s"
per_unit_cost = "150ms"
backoff_initial = "250ms"
backoff_max = "10s"
backoff_jitter = true
`

const hostTemplate = `command_addr = "127.0.0.1:9004"
response_addr = "127.0.0.1:9005"

call_budget = 200
cursor_pool_size = 4
tracks = 4
devices_per_track = 2
params_per_device = 32
`
