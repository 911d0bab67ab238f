package host

import (
	"encoding/json"
	"fmt"

	"github.com/BuggedPlayer/ableton-mcpv2/internal/sched"
	"github.com/BuggedPlayer/ableton-mcpv2/internal/wire"
)

// RegisterBuiltins installs the bridge's core operations: the immediate
// small-path reads plus the two multi-tick operations that exercise the
// cooperative scheduler. Domain-specific handler catalogs register the
// same way from outside.
func RegisterBuiltins(rt *Runtime) error {
	routes := []Route{
		{Address: "ping", Handler: handlePing},
		{Address: "get_track_info", Leading: []wire.ArgKind{wire.KindInt}, Handler: handleGetTrackInfo},
		{Address: "get_device_parameters", Leading: []wire.ArgKind{wire.KindInt, wire.KindInt}, Handler: handleGetDeviceParameters},
		{Address: "set_device_parameters_batch", Leading: []wire.ArgKind{wire.KindInt, wire.KindInt}, Handler: handleSetDeviceParametersBatch},
	}
	for _, r := range routes {
		if err := rt.router.Register(r); err != nil {
			return err
		}
	}
	return nil
}

func handlePing(c *Call) {
	c.Succeed(map[string]any{"pong": true})
}

func handleGetTrackInfo(c *Call) {
	cur, err := c.rt.pool.Acquire()
	if err != nil {
		c.Fail(err)
		return
	}
	defer c.rt.pool.Release(cur)

	path := fmt.Sprintf("tracks/%d", c.Int(0))
	if err := cur.Repoint(path); err != nil {
		c.Fail(err)
		return
	}
	name, err := cur.ReadField("name")
	if err != nil {
		c.Fail(err)
		return
	}
	devices, err := cur.ChildCount("devices")
	if err != nil {
		c.Fail(err)
		return
	}
	c.Succeed(map[string]any{
		"track":   c.Int(0),
		"name":    name,
		"devices": devices,
	})
}

// handleGetDeviceParameters enumerates a device's parameter children a
// few units per tick. The operation owns its cursor, accumulator, and
// progress; a second concurrent enumeration gets its own.
func handleGetDeviceParameters(c *Call) {
	base := fmt.Sprintf("tracks/%d/devices/%d", c.Int(0), c.Int(1))

	cur, err := c.rt.pool.Acquire()
	if err != nil {
		c.Fail(err)
		return
	}
	if err := cur.Repoint(base); err != nil {
		c.rt.pool.Release(cur)
		c.Fail(err)
		return
	}
	total, err := cur.ChildCount("parameters")
	if err != nil {
		c.rt.pool.Release(cur)
		c.Fail(err)
		return
	}

	unit := func(i int) any {
		out := map[string]any{"index": i}
		if err := cur.Repoint(fmt.Sprintf("%s/parameters/%d", base, i)); err != nil {
			out["error"] = err.Error()
			return out
		}
		for _, field := range []string{"name", "value"} {
			v, err := cur.ReadField(field)
			if err != nil {
				out["error"] = err.Error()
				return out
			}
			out[field] = v
		}
		min, max, err := cur.FieldRange("value")
		if err != nil {
			out["error"] = err.Error()
			return out
		}
		out["min"], out["max"] = min, max
		return out
	}
	done := func(results []any) {
		c.rt.pool.Release(cur)
		c.Succeed(map[string]any{"count": total, "parameters": results})
	}

	op, err := sched.NewOperation(c.Cmd.CorrelationID, total, c.rt.cfg.Sched, c.rt.clock, unit, done)
	if err != nil {
		c.rt.pool.Release(cur)
		c.Fail(err)
		return
	}
	if err := op.Start(); err != nil {
		c.rt.pool.Release(cur)
		c.Fail(err)
	}
}

// ParameterWrite is one requested write in a batch mutation payload.
type ParameterWrite struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
}

// WriteRecord reports one mutation unit. Writes are fire-and-forget:
// there is deliberately no field for a post-write readback, because
// reading a value right after writing it destabilizes the host.
type WriteRecord struct {
	Index     int     `json:"index"`
	Requested float64 `json:"requested"`
	Applied   float64 `json:"applied"`
	OK        bool    `json:"ok"`
	Error     string  `json:"error,omitempty"`
}

// handleSetDeviceParametersBatch applies many writes a few per tick,
// clamping each to the target's valid range.
func handleSetDeviceParametersBatch(c *Call) {
	raw, err := wire.TextsafeDecode(c.Cmd.Payload)
	if err != nil {
		c.Fail(err)
		return
	}
	var writes []ParameterWrite
	if err := json.Unmarshal(raw, &writes); err != nil {
		c.Fail(fmt.Errorf("%w: bad batch payload: %v", ErrHandlerFailed, err))
		return
	}

	base := fmt.Sprintf("tracks/%d/devices/%d", c.Int(0), c.Int(1))
	cur, err := c.rt.pool.Acquire()
	if err != nil {
		c.Fail(err)
		return
	}

	unit := func(i int) any {
		w := writes[i]
		rec := WriteRecord{Index: w.Index, Requested: w.Value}
		if err := cur.Repoint(fmt.Sprintf("%s/parameters/%d", base, w.Index)); err != nil {
			rec.Error = err.Error()
			return rec
		}
		min, max, err := cur.FieldRange("value")
		if err != nil {
			rec.Error = err.Error()
			return rec
		}
		applied := w.Value
		if applied < min {
			applied = min
		}
		if applied > max {
			applied = max
		}
		rec.Applied = applied
		if err := cur.WriteField("value", applied); err != nil {
			rec.Error = err.Error()
			return rec
		}
		rec.OK = true
		return rec
	}
	done := func(results []any) {
		c.rt.pool.Release(cur)
		applied, failed := 0, 0
		for _, r := range results {
			if rec, ok := r.(WriteRecord); ok && rec.OK {
				applied++
			} else {
				failed++
			}
		}
		c.Succeed(map[string]any{
			"applied": applied,
			"failed":  failed,
			"results": results,
		})
	}

	op, err := sched.NewOperation(c.Cmd.CorrelationID, len(writes), c.rt.cfg.Sched, c.rt.clock, unit, done)
	if err != nil {
		c.rt.pool.Release(cur)
		c.Fail(err)
		return
	}
	if err := op.Start(); err != nil {
		c.rt.pool.Release(cur)
		c.Fail(err)
	}
}
