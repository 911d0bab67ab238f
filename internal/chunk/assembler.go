package chunk

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/BuggedPlayer/ableton-mcpv2/internal/sched"
	"github.com/BuggedPlayer/ableton-mcpv2/internal/wire"
)

const (
	// DefaultSmallThreshold is the largest raw payload sent as a single
	// non-enveloped frame.
	DefaultSmallThreshold = 1500

	// DefaultPieceSize is the raw-byte width of one chunk piece. An
	// encoded, enveloped piece lands around 3 KB, comfortably under the
	// transport's ~8 KB datagram ceiling even after textsafe expansion.
	DefaultPieceSize = 2000

	// DefaultInterPieceDelay spaces consecutive piece emissions so the
	// host's primary thread is never monopolized by one large response.
	DefaultInterPieceDelay = 50 * time.Millisecond
)

// AssemblerConfig tunes the split policy.
type AssemblerConfig struct {
	SmallThreshold  int
	PieceSize       int
	InterPieceDelay time.Duration
}

func DefaultAssemblerConfig() AssemblerConfig {
	return AssemblerConfig{
		SmallThreshold:  DefaultSmallThreshold,
		PieceSize:       DefaultPieceSize,
		InterPieceDelay: DefaultInterPieceDelay,
	}
}

// SendFunc transmits one response datagram. It must not block the host
// tick; a UDP write satisfies that.
type SendFunc func(datagram []byte)

// Assembler turns one logical result payload into one or more frames.
// The fully encoded form of a large payload never exists in memory:
// each piece is encoded independently, right before it is sent.
type Assembler struct {
	cfg   AssemblerConfig
	clock sched.Clock
	send  SendFunc
	log   zerolog.Logger
}

func NewAssembler(cfg AssemblerConfig, clock sched.Clock, send SendFunc, log zerolog.Logger) *Assembler {
	if cfg.SmallThreshold <= 0 {
		cfg.SmallThreshold = DefaultSmallThreshold
	}
	if cfg.PieceSize <= 0 {
		cfg.PieceSize = DefaultPieceSize
	}
	if cfg.InterPieceDelay <= 0 {
		cfg.InterPieceDelay = DefaultInterPieceDelay
	}
	if clock == nil {
		clock = sched.Real()
	}
	return &Assembler{cfg: cfg, clock: clock, send: send, log: log}
}

// PieceCount reports how many frames Emit will produce for n raw bytes.
func (a *Assembler) PieceCount(n int) int {
	if n <= a.cfg.SmallThreshold {
		return 1
	}
	return (n + a.cfg.PieceSize - 1) / a.cfg.PieceSize
}

// Emit sends payload for the given correlation id. Small payloads go out
// immediately as one legacy-compatible frame. Larger ones are split on
// the RAW bytes into fixed-size pieces; each piece is emitted on a later
// clock tick with a fixed inter-piece delay, in index order, though
// nothing downstream may assume in-order arrival.
func (a *Assembler) Emit(id string, payload []byte) {
	if len(payload) <= a.cfg.SmallThreshold {
		a.send([]byte(wire.TextsafeEncode(payload)))
		return
	}

	total := a.PieceCount(len(payload))
	a.log.Debug().
		Str("id", id).
		Int("bytes", len(payload)).
		Int("pieces", total).
		Msg("chunked response scheduled")
	a.clock.AfterFunc(a.cfg.InterPieceDelay, a.pieceEmitter(id, payload, 0, total))
}

// pieceEmitter sends piece i and chains the next emission, so at most one
// piece is encoded per tick.
func (a *Assembler) pieceEmitter(id string, payload []byte, i, total int) func() {
	return func() {
		start := i * a.cfg.PieceSize
		end := start + a.cfg.PieceSize
		if end > len(payload) {
			end = len(payload)
		}
		frame, err := EncodeEnvelope(Envelope{
			Index: i,
			Total: total,
			Data:  wire.TextsafeEncode(payload[start:end]),
			ID:    id,
		})
		if err != nil {
			a.log.Error().Err(err).Str("id", id).Int("piece", i).Msg("drop unencodable piece")
			return
		}
		a.send(frame)
		if i+1 < total {
			a.clock.AfterFunc(a.cfg.InterPieceDelay, a.pieceEmitter(id, payload, i+1, total))
		}
	}
}
