package chunk

import (
	"fmt"

	"github.com/BuggedPlayer/ableton-mcpv2/internal/wire"
)

// Buffer reassembles one request's chunk set. Pieces are stored by index,
// not appended, so reordered and duplicated arrivals are harmless. A
// payload is complete iff every index in [0,total) has been observed.
type Buffer struct {
	total  int
	pieces map[int][]byte
}

func NewBuffer() *Buffer {
	return &Buffer{pieces: make(map[int][]byte)}
}

// Add stores one envelope's piece and reports whether the set is now
// complete. Duplicate indices overwrite; a total that changes mid-stream
// marks a corrupt set.
func (b *Buffer) Add(env Envelope) (bool, error) {
	if err := env.Validate(); err != nil {
		return false, err
	}
	if b.total == 0 {
		b.total = env.Total
	} else if b.total != env.Total {
		return false, fmt.Errorf("%w: %d then %d", ErrTotalMismatch, b.total, env.Total)
	}
	raw, err := wire.TextsafeDecode(env.Data)
	if err != nil {
		return false, fmt.Errorf("%w: piece %d: %v", ErrBadEnvelope, env.Index, err)
	}
	b.pieces[env.Index] = raw
	return len(b.pieces) == b.total, nil
}

// Pieces reports how many distinct pieces have arrived.
func (b *Buffer) Pieces() int { return len(b.pieces) }

// Complete reports whether every piece has arrived.
func (b *Buffer) Complete() bool {
	return b.total > 0 && len(b.pieces) == b.total
}

// Payload concatenates the pieces in index order.
func (b *Buffer) Payload() ([]byte, error) {
	if !b.Complete() {
		return nil, fmt.Errorf("%w: %d of %d pieces", ErrIncomplete, len(b.pieces), b.total)
	}
	var size int
	for _, p := range b.pieces {
		size += len(p)
	}
	out := make([]byte, 0, size)
	for i := 0; i < b.total; i++ {
		out = append(out, b.pieces[i]...)
	}
	return out, nil
}
