package chunk

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/BuggedPlayer/ableton-mcpv2/internal/wire"
)

var (
	ErrBadEnvelope   = errors.New("chunk: malformed chunk envelope")
	ErrIncomplete    = errors.New("chunk: fragment set incomplete")
	ErrTotalMismatch = errors.New("chunk: fragment total changed mid-stream")
)

// Envelope wraps one piece of a payload too large for a single frame.
// Field names match the legacy wire shape; ID is an additive field so a
// receiver can attribute pieces when several requests are in flight
// (older peers omit it).
type Envelope struct {
	Index int    `json:"_c"`
	Total int    `json:"_t"`
	Data  string `json:"_d"`
	ID    string `json:"_id,omitempty"`
}

// Validate enforces the envelope invariant 0 <= index < total.
func (e Envelope) Validate() error {
	if e.Total <= 0 {
		return fmt.Errorf("%w: total %d", ErrBadEnvelope, e.Total)
	}
	if e.Index < 0 || e.Index >= e.Total {
		return fmt.Errorf("%w: index %d of %d", ErrBadEnvelope, e.Index, e.Total)
	}
	if e.Data == "" {
		return fmt.Errorf("%w: empty data", ErrBadEnvelope)
	}
	return nil
}

// Frame is one decoded response datagram: either a complete plain payload
// or a single chunk envelope.
type Frame struct {
	Plain []byte
	Env   *Envelope
}

// DecodeFrame textsafe-decodes a response datagram and probes whether it
// carries a chunk envelope or a plain payload. A plain payload needs no
// envelope metadata; that keeps the small path wire-compatible with the
// legacy non-chunked form.
func DecodeFrame(datagram []byte) (Frame, error) {
	raw, err := wire.TextsafeDecode(string(datagram))
	if err != nil {
		return Frame{}, err
	}
	var env Envelope
	if json.Unmarshal(raw, &env) == nil && env.Total > 0 {
		if err := env.Validate(); err != nil {
			return Frame{}, err
		}
		return Frame{Env: &env}, nil
	}
	return Frame{Plain: raw}, nil
}

// EncodeEnvelope renders one envelope as a sendable datagram.
func EncodeEnvelope(e Envelope) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEnvelope, err)
	}
	return []byte(wire.TextsafeEncode(raw)), nil
}
