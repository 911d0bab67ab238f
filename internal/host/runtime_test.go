package host

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/BuggedPlayer/ableton-mcpv2/internal/chunk"
	"github.com/BuggedPlayer/ableton-mcpv2/internal/testutil/testlog"
	"github.com/BuggedPlayer/ableton-mcpv2/internal/wire"
)

// tickGraph counts cursor traffic without simulating anything.
type tickGraph struct {
	params int
}

func (g *tickGraph) NewCursor() (Cursor, error) { return &tickCursor{g: g}, nil }

type tickCursor struct {
	g *tickGraph
}

func (c *tickCursor) Repoint(string) error           { return nil }
func (c *tickCursor) ChildCount(string) (int, error) { return c.g.params, nil }
func (c *tickCursor) ReadField(name string) (any, error) {
	if name == "name" {
		return "Field", nil
	}
	return 0.5, nil
}
func (c *tickCursor) FieldRange(string) (float64, float64, error) { return 0, 1, nil }
func (c *tickCursor) WriteField(string, float64) error            { return nil }

// startRuntime spins a runtime whose responses land on a channel.
func startRuntime(t *testing.T, g Graph) (*Runtime, chan []byte) {
	t.Helper()
	frames := make(chan []byte, 64)
	send := func(d []byte) {
		buf := make([]byte, len(d))
		copy(buf, d)
		frames <- buf
	}
	rt, err := NewRuntime(DefaultRuntimeConfig(), g, send, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("runtime: %v", err)
	}
	if err := RegisterBuiltins(rt); err != nil {
		t.Fatalf("register: %v", err)
	}
	go rt.Run()
	t.Cleanup(rt.Close)
	return rt, frames
}

func awaitResponse(t *testing.T, frames chan []byte) wire.Response {
	t.Helper()
	buf := chunk.NewBuffer()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case frame := <-frames:
			f, err := chunk.DecodeFrame(frame)
			if err != nil {
				t.Fatalf("decode frame: %v", err)
			}
			var raw []byte
			if f.Env == nil {
				raw = f.Plain
			} else {
				done, err := buf.Add(*f.Env)
				if err != nil {
					t.Fatalf("add piece: %v", err)
				}
				if !done {
					continue
				}
				raw, err = buf.Payload()
				if err != nil {
					t.Fatalf("payload: %v", err)
				}
			}
			resp, err := wire.UnmarshalResponse(raw)
			if err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			return resp
		case <-deadline:
			t.Fatalf("no response within deadline")
		}
	}
}

func expectSilence(t *testing.T, frames chan []byte, d time.Duration) {
	t.Helper()
	select {
	case frame := <-frames:
		t.Fatalf("unexpected response frame: %q", frame)
	case <-time.After(d):
	}
}

func TestPingHandledOnLoop(t *testing.T) {
	testlog.Start(t)
	rt, frames := startRuntime(t, &tickGraph{params: 4})

	rt.HandleDatagram([]byte("ping req-1"))
	resp := awaitResponse(t, frames)
	if resp.Status != wire.StatusSuccess || resp.ID != "req-1" {
		t.Fatalf("response: %+v", resp)
	}
}

func TestUnroutableCommandGetsNoResponse(t *testing.T) {
	testlog.Start(t)
	rt, frames := startRuntime(t, &tickGraph{params: 4})

	rt.HandleDatagram([]byte("bogus_opcode req-1"))
	expectSilence(t, frames, 300*time.Millisecond)

	// The loop stays healthy for the next command.
	rt.HandleDatagram([]byte("ping req-2"))
	if resp := awaitResponse(t, frames); resp.ID != "req-2" {
		t.Fatalf("follow-up response: %+v", resp)
	}
}

func TestUndecodableCommandGetsNoResponse(t *testing.T) {
	testlog.Start(t)
	rt, frames := startRuntime(t, &tickGraph{params: 4})

	// get_track_info declares one int leading arg.
	rt.HandleDatagram([]byte("get_track_info notanint req-1"))
	expectSilence(t, frames, 300*time.Millisecond)
}

func TestHandlerErrorPreservesCorrelationID(t *testing.T) {
	testlog.Start(t)
	rt, frames := startRuntime(t, &tickGraph{params: 4})

	// A batch command with a payload that is not textsafe JSON fails in
	// the handler, after the id was already decoded.
	rt.HandleDatagram([]byte("set_device_parameters_batch 0 0 !!!bad!!! req-err"))
	resp := awaitResponse(t, frames)
	if resp.Status != wire.StatusError {
		t.Fatalf("status: %q", resp.Status)
	}
	if resp.ID != "req-err" {
		t.Fatalf("error response lost id: %q", resp.ID)
	}
	if resp.Message == "" {
		t.Fatalf("missing message")
	}
}

func TestEnumerationCompletesAcrossTicks(t *testing.T) {
	testlog.Start(t)
	rt, frames := startRuntime(t, &tickGraph{params: 10})

	rt.HandleDatagram([]byte("get_device_parameters 0 0 req-enum"))
	resp := awaitResponse(t, frames)
	if resp.Status != wire.StatusSuccess || resp.ID != "req-enum" {
		t.Fatalf("response: %+v", resp)
	}
	var result struct {
		Count      int   `json:"count"`
		Parameters []any `json:"parameters"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("result: %v", err)
	}
	if result.Count != 10 || len(result.Parameters) != 10 {
		t.Fatalf("count %d params %d", result.Count, len(result.Parameters))
	}
}

func TestCursorExhaustionIsAnErrorResponse(t *testing.T) {
	testlog.Start(t)
	rt, frames := startRuntime(t, &tickGraph{params: 4})

	held := make([]Cursor, 0, DefaultCursorPoolSize)
	for i := 0; i < DefaultCursorPoolSize; i++ {
		c, err := rt.Cursors().Acquire()
		if err != nil {
			t.Fatalf("drain cursor %d: %v", i, err)
		}
		held = append(held, c)
	}

	rt.HandleDatagram([]byte("get_track_info 0 req-starved"))
	resp := awaitResponse(t, frames)
	if resp.Status != wire.StatusError || resp.ID != "req-starved" {
		t.Fatalf("response: %+v", resp)
	}

	for _, c := range held {
		rt.Cursors().Release(c)
	}
	rt.HandleDatagram([]byte("get_track_info 0 req-fed"))
	if resp := awaitResponse(t, frames); resp.Status != wire.StatusSuccess {
		t.Fatalf("after release: %+v", resp)
	}
}

func TestPanickingHandlerAnswersWithError(t *testing.T) {
	testlog.Start(t)
	rt, frames := startRuntime(t, &tickGraph{params: 4})

	err := rt.Router().Register(Route{
		Address: "explode",
		Handler: func(c *Call) { panic("kaboom") },
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	rt.HandleDatagram([]byte("explode req-boom"))
	resp := awaitResponse(t, frames)
	if resp.Status != wire.StatusError || resp.ID != "req-boom" {
		t.Fatalf("response: %+v", resp)
	}

	rt.HandleDatagram([]byte("ping req-after"))
	if resp := awaitResponse(t, frames); resp.ID != "req-after" {
		t.Fatalf("loop died after panic: %+v", resp)
	}
}

func TestLargeResponseLeavesInPieces(t *testing.T) {
	testlog.Start(t)
	rt, frames := startRuntime(t, &tickGraph{params: 64})

	rt.HandleDatagram([]byte("get_device_parameters 0 0 req-big"))

	var raw [][]byte
	buf := chunk.NewBuffer()
	deadline := time.After(10 * time.Second)
	for {
		var frame []byte
		select {
		case frame = <-frames:
		case <-deadline:
			t.Fatalf("incomplete after %d frames", len(raw))
		}
		raw = append(raw, frame)
		f, err := chunk.DecodeFrame(frame)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if f.Env == nil {
			t.Fatalf("expected enveloped frames for a %d-parameter dump", 64)
		}
		if f.Env.ID != "req-big" {
			t.Fatalf("piece id: %q", f.Env.ID)
		}
		done, err := buf.Add(*f.Env)
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		if done {
			break
		}
	}
	if len(raw) < 2 {
		t.Fatalf("expected multiple pieces, got %d", len(raw))
	}
	payload, err := buf.Payload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	resp, err := wire.UnmarshalResponse(payload)
	if err != nil || resp.ID != "req-big" {
		t.Fatalf("reassembled response: %+v %v", resp, err)
	}
	for i, frame := range raw {
		if len(frame) > 8192 {
			t.Fatalf("piece %d is %d bytes", i, len(frame))
		}
	}
}

func TestMeterResetsPerTick(t *testing.T) {
	testlog.Start(t)
	rt, _ := startRuntime(t, &tickGraph{params: 4})

	probe := make(chan int, 1)
	rt.Enqueue(func() {
		rt.Meter().Spend(3)
		probe <- rt.Meter().Used()
	})
	if used := <-probe; used != 3 {
		t.Fatalf("first tick used: %d", used)
	}
	rt.Enqueue(func() { probe <- rt.Meter().Used() })
	if used := <-probe; used != 0 {
		t.Fatalf("second tick must start at zero, got %d", used)
	}
}
