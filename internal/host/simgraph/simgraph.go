// Package simgraph is an in-memory object graph standing in for the
// real scripting host, with primitive-call accounting so the tick budget
// is exercised for real.
package simgraph

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/BuggedPlayer/ableton-mcpv2/internal/host"
)

var (
	ErrBadPath     = errors.New("simgraph: unresolvable path")
	ErrNoSuchField = errors.New("simgraph: no such field")
	ErrUnpointed   = errors.New("simgraph: cursor not pointed at a node")
)

// Config shapes the simulated graph.
type Config struct {
	Tracks          int
	DevicesPerTrack int
	ParamsPerDevice int
}

func DefaultConfig() Config {
	return Config{Tracks: 4, DevicesPerTrack: 2, ParamsPerDevice: 32}
}

type Param struct {
	Name   string
	Value  float64
	Min    float64
	Max    float64
	Writes int
}

type Device struct {
	Name   string
	Params []*Param
}

type Track struct {
	Name    string
	Devices []*Device
}

// Graph implements host.Graph. Every cursor method spends primitive
// calls against the shared tick meter.
type Graph struct {
	mu     sync.Mutex
	meter  *host.CallMeter
	tracks []*Track
}

func New(cfg Config, meter *host.CallMeter) *Graph {
	g := &Graph{meter: meter}
	for t := 0; t < cfg.Tracks; t++ {
		track := &Track{Name: fmt.Sprintf("Track %d", t+1)}
		for d := 0; d < cfg.DevicesPerTrack; d++ {
			dev := &Device{Name: fmt.Sprintf("Device %d-%d", t+1, d+1)}
			for p := 0; p < cfg.ParamsPerDevice; p++ {
				dev.Params = append(dev.Params, &Param{
					Name:  fmt.Sprintf("Macro %d", p+1),
					Value: 0.5,
					Min:   0,
					Max:   1,
				})
			}
			track.Devices = append(track.Devices, dev)
		}
		g.tracks = append(g.tracks, track)
	}
	return g
}

func (g *Graph) NewCursor() (host.Cursor, error) {
	return &cursor{g: g}, nil
}

// AttachMeter binds the runtime's tick meter after construction. A nil
// meter disables accounting, which unit tests of the graph itself use.
func (g *Graph) AttachMeter(m *host.CallMeter) {
	g.mu.Lock()
	g.meter = m
	g.mu.Unlock()
}

func (g *Graph) spend(n int) error {
	g.mu.Lock()
	m := g.meter
	g.mu.Unlock()
	if m == nil {
		return nil
	}
	return m.Spend(n)
}

// Param exposes a parameter for test assertions.
func (g *Graph) Param(track, device, param int) *Param {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tracks[track].Devices[device].Params[param]
}

type cursor struct {
	g     *Graph
	track *Track
	dev   *Device
	param *Param
}

// Repoint re-navigates the existing cursor; paths look like
// tracks/0/devices/1/parameters/3, truncatable at any level.
func (c *cursor) Repoint(path string) error {
	if err := c.g.spend(1); err != nil {
		return err
	}
	c.g.mu.Lock()
	defer c.g.mu.Unlock()

	c.track, c.dev, c.param = nil, nil, nil
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 0; i+1 < len(parts); i += 2 {
		idx, err := strconv.Atoi(parts[i+1])
		if err != nil || idx < 0 {
			return fmt.Errorf("%w: %s", ErrBadPath, path)
		}
		switch parts[i] {
		case "tracks":
			if idx >= len(c.g.tracks) {
				return fmt.Errorf("%w: %s", ErrBadPath, path)
			}
			c.track = c.g.tracks[idx]
		case "devices":
			if c.track == nil || idx >= len(c.track.Devices) {
				return fmt.Errorf("%w: %s", ErrBadPath, path)
			}
			c.dev = c.track.Devices[idx]
		case "parameters":
			if c.dev == nil || idx >= len(c.dev.Params) {
				return fmt.Errorf("%w: %s", ErrBadPath, path)
			}
			c.param = c.dev.Params[idx]
		default:
			return fmt.Errorf("%w: %s", ErrBadPath, path)
		}
	}
	if len(parts)%2 != 0 || c.track == nil {
		return fmt.Errorf("%w: %s", ErrBadPath, path)
	}
	return nil
}

func (c *cursor) ChildCount(kind string) (int, error) {
	if err := c.g.spend(1); err != nil {
		return 0, err
	}
	c.g.mu.Lock()
	defer c.g.mu.Unlock()
	switch kind {
	case "tracks":
		return len(c.g.tracks), nil
	case "devices":
		if c.track == nil {
			return 0, ErrUnpointed
		}
		return len(c.track.Devices), nil
	case "parameters":
		if c.dev == nil {
			return 0, ErrUnpointed
		}
		return len(c.dev.Params), nil
	default:
		return 0, fmt.Errorf("%w: child kind %q", ErrNoSuchField, kind)
	}
}

func (c *cursor) ReadField(name string) (any, error) {
	if err := c.g.spend(1); err != nil {
		return nil, err
	}
	c.g.mu.Lock()
	defer c.g.mu.Unlock()
	if c.param != nil {
		switch name {
		case "name":
			return c.param.Name, nil
		case "value":
			return c.param.Value, nil
		}
	} else if c.dev != nil {
		if name == "name" {
			return c.dev.Name, nil
		}
	} else if c.track != nil {
		if name == "name" {
			return c.track.Name, nil
		}
	} else {
		return nil, ErrUnpointed
	}
	return nil, fmt.Errorf("%w: %q", ErrNoSuchField, name)
}

func (c *cursor) FieldRange(name string) (float64, float64, error) {
	if err := c.g.spend(1); err != nil {
		return 0, 0, err
	}
	c.g.mu.Lock()
	defer c.g.mu.Unlock()
	if c.param == nil || name != "value" {
		return 0, 0, fmt.Errorf("%w: range of %q", ErrNoSuchField, name)
	}
	return c.param.Min, c.param.Max, nil
}

// WriteField applies the value and returns. No read-back happens here or
// anywhere downstream.
func (c *cursor) WriteField(name string, value float64) error {
	if err := c.g.spend(1); err != nil {
		return err
	}
	c.g.mu.Lock()
	defer c.g.mu.Unlock()
	if c.param == nil || name != "value" {
		return fmt.Errorf("%w: write %q", ErrNoSuchField, name)
	}
	c.param.Value = value
	c.param.Writes++
	return nil
}
