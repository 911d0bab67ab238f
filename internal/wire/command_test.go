package wire

import (
	"errors"
	"testing"

	"github.com/BuggedPlayer/ableton-mcpv2/internal/testutil/testlog"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	testlog.Start(t)
	cmd := Command{
		Address:       "set_device_parameters_batch",
		Args:          []Arg{Int(2), Int(0)},
		Payload:       TextsafeEncode([]byte(`[{"index":3,"value":0.75}]`)),
		CorrelationID: "req-1",
	}
	data, err := EncodeCommand(cmd)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := DecodeCommand(data, []ArgKind{KindInt, KindInt})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Address != cmd.Address {
		t.Fatalf("address: %q", got.Address)
	}
	if got.Args[0].Int != 2 || got.Args[1].Int != 0 {
		t.Fatalf("args: %+v", got.Args)
	}
	if got.Payload != cmd.Payload {
		t.Fatalf("payload: %q", got.Payload)
	}
	if got.CorrelationID != "req-1" {
		t.Fatalf("id: %q", got.CorrelationID)
	}
}

func TestDecodeConcatenatesSplitPayloadTokens(t *testing.T) {
	testlog.Start(t)
	// The transport may split a payload into several whitespace-separated
	// tokens; the decoder must rejoin them in arrival order.
	data := []byte("set_device_parameters_batch 0 1 abc def ghi req-9")
	cmd, err := DecodeCommand(data, []ArgKind{KindInt, KindInt})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cmd.Payload != "abcdefghi" {
		t.Fatalf("payload: %q", cmd.Payload)
	}
	if cmd.CorrelationID != "req-9" {
		t.Fatalf("id: %q", cmd.CorrelationID)
	}
}

func TestDecodeNoPayload(t *testing.T) {
	testlog.Start(t)
	cmd, err := DecodeCommand([]byte("get_track_info 3 req-2"), []ArgKind{KindInt})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cmd.Payload != "" {
		t.Fatalf("expected empty payload, got %q", cmd.Payload)
	}
	if cmd.Args[0].Int != 3 {
		t.Fatalf("arg: %+v", cmd.Args[0])
	}
}

func TestDecodeShortAndBadTokens(t *testing.T) {
	testlog.Start(t)
	if _, err := DecodeCommand([]byte("ping"), nil); !errors.Is(err, ErrShortCommand) {
		t.Fatalf("expected ErrShortCommand, got %v", err)
	}
	if _, err := DecodeCommand([]byte("get_track_info notanint req-3"), []ArgKind{KindInt}); !errors.Is(err, ErrBadToken) {
		t.Fatalf("expected ErrBadToken, got %v", err)
	}
	if _, err := DecodeCommand([]byte("get_volume x req-4"), []ArgKind{KindFloat}); !errors.Is(err, ErrBadToken) {
		t.Fatalf("expected ErrBadToken, got %v", err)
	}
}

func TestEncodeRejectsUnsafeTokens(t *testing.T) {
	testlog.Start(t)
	bad := []Command{
		{Address: "", CorrelationID: "req"},
		{Address: "op code", CorrelationID: "req"},
		{Address: "op", Args: []Arg{String("a b")}, CorrelationID: "req"},
		{Address: "op", Payload: "x y", CorrelationID: "req"},
		{Address: "op", CorrelationID: ""},
	}
	for i, cmd := range bad {
		if _, err := EncodeCommand(cmd); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestFloatArgRoundTrip(t *testing.T) {
	testlog.Start(t)
	data, err := EncodeCommand(Command{
		Address:       "set_track_volume",
		Args:          []Arg{Int(1), Float(0.7071)},
		CorrelationID: "req-5",
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	cmd, err := DecodeCommand(data, []ArgKind{KindInt, KindFloat})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cmd.Args[1].Float != 0.7071 {
		t.Fatalf("float arg: %v", cmd.Args[1].Float)
	}
}

func TestPeekAddress(t *testing.T) {
	testlog.Start(t)
	addr, err := PeekAddress([]byte("ping req-1"))
	if err != nil || addr != "ping" {
		t.Fatalf("peek: %q %v", addr, err)
	}
	if _, err := PeekAddress([]byte("   ")); !errors.Is(err, ErrEmptyAddress) {
		t.Fatalf("expected ErrEmptyAddress, got %v", err)
	}
}
