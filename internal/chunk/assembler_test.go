package chunk

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/BuggedPlayer/ableton-mcpv2/internal/sched"
	"github.com/BuggedPlayer/ableton-mcpv2/internal/testutil/testlog"
	"github.com/BuggedPlayer/ableton-mcpv2/internal/wire"
)

type sink struct {
	frames [][]byte
}

func (s *sink) send(datagram []byte) {
	buf := make([]byte, len(datagram))
	copy(buf, datagram)
	s.frames = append(s.frames, buf)
}

func newTestAssembler(t *testing.T) (*Assembler, *sink, *sched.FakeClock) {
	t.Helper()
	out := &sink{}
	clock := sched.NewFakeClock(time.Unix(0, 0))
	asm := NewAssembler(DefaultAssemblerConfig(), clock, out.send, zerolog.Nop())
	return asm, out, clock
}

func TestEmitSmallPayloadSingleFrame(t *testing.T) {
	testlog.Start(t)
	asm, out, clock := newTestAssembler(t)

	payload := bytes.Repeat([]byte("a"), 1499)
	asm.Emit("req-1", payload)

	if len(out.frames) != 1 {
		t.Fatalf("expected immediate single frame, got %d", len(out.frames))
	}
	if clock.PendingTimers() != 0 {
		t.Fatalf("small path must not defer, %d timers pending", clock.PendingTimers())
	}
	f, err := DecodeFrame(out.frames[0])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Env != nil {
		t.Fatalf("small payload must not be enveloped")
	}
	if !bytes.Equal(f.Plain, payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestEmitThresholdBoundary(t *testing.T) {
	testlog.Start(t)
	asm, _, _ := newTestAssembler(t)
	if got := asm.PieceCount(1500); got != 1 {
		t.Fatalf("1500 bytes: %d pieces", got)
	}
	if got := asm.PieceCount(1501); got != 1 {
		t.Fatalf("1501 bytes: %d pieces, want 1", got)
	}
	if got := asm.PieceCount(5000); got != 3 {
		t.Fatalf("5000 bytes: %d pieces, want 3", got)
	}
}

func TestEmitChunkedPayloadDeferredInOrder(t *testing.T) {
	testlog.Start(t)
	asm, out, clock := newTestAssembler(t)

	payload := bytes.Repeat([]byte("x"), 5000)
	asm.Emit("req-2", payload)

	// Pieces ride later ticks; nothing leaves on the emitting tick.
	if len(out.frames) != 0 {
		t.Fatalf("chunked emit must defer, got %d frames", len(out.frames))
	}

	clock.Advance(50 * time.Millisecond)
	if len(out.frames) != 1 {
		t.Fatalf("after one delay: %d frames", len(out.frames))
	}
	clock.Advance(200 * time.Millisecond)
	if len(out.frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(out.frames))
	}

	buf := NewBuffer()
	for i, frame := range out.frames {
		f, err := DecodeFrame(frame)
		if err != nil {
			t.Fatalf("decode frame %d: %v", i, err)
		}
		if f.Env == nil {
			t.Fatalf("frame %d not enveloped", i)
		}
		if f.Env.Index != i || f.Env.Total != 3 {
			t.Fatalf("frame %d: index %d total %d", i, f.Env.Index, f.Env.Total)
		}
		if f.Env.ID != "req-2" {
			t.Fatalf("frame %d: id %q", i, f.Env.ID)
		}
		if _, err := buf.Add(*f.Env); err != nil {
			t.Fatalf("add frame %d: %v", i, err)
		}
	}
	got, err := buf.Payload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("reassembled payload mismatch")
	}
}

func TestEmittedFramesStayUnderDatagramCeiling(t *testing.T) {
	testlog.Start(t)
	asm, out, clock := newTestAssembler(t)

	asm.Emit("req-3", bytes.Repeat([]byte{0xff}, 20000))
	clock.Advance(time.Second)
	if len(out.frames) == 0 {
		t.Fatalf("no frames emitted")
	}
	for i, f := range out.frames {
		if len(f) > 8192 {
			t.Fatalf("frame %d is %d bytes", i, len(f))
		}
	}
}

func TestEmittedFramesAreTokenSafe(t *testing.T) {
	testlog.Start(t)
	asm, out, clock := newTestAssembler(t)

	asm.Emit("req-4", bytes.Repeat([]byte{0xfb, 0xef}, 3000))
	clock.Advance(time.Second)
	for i, f := range out.frames {
		if bytes.ContainsAny(f, "+/= \t\r\n") {
			t.Fatalf("frame %d contains reserved characters", i)
		}
	}
}

func TestDecodeFrameRejectsBadEnvelope(t *testing.T) {
	testlog.Start(t)
	bad := Envelope{Index: 3, Total: 2, Data: wire.TextsafeEncode([]byte("x"))}
	raw := []byte(wire.TextsafeEncode(mustJSON(t, bad)))
	if _, err := DecodeFrame(raw); err == nil {
		t.Fatalf("expected envelope validation error")
	}
}

func mustJSON(t *testing.T, e Envelope) []byte {
	t.Helper()
	raw, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}
