package host

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/BuggedPlayer/ableton-mcpv2/internal/chunk"
	"github.com/BuggedPlayer/ableton-mcpv2/internal/observability"
	"github.com/BuggedPlayer/ableton-mcpv2/internal/sched"
	"github.com/BuggedPlayer/ableton-mcpv2/internal/wire"
)

var ErrRuntimeClosed = errors.New("host: runtime closed")

// RuntimeConfig carries the knobs of the host runtime.
type RuntimeConfig struct {
	Assembler      chunk.AssemblerConfig
	Sched          sched.Config
	CallBudget     int
	CursorPoolSize int
}

func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		Assembler:      chunk.DefaultAssemblerConfig(),
		Sched:          sched.DefaultConfig(),
		CallBudget:     sched.DefaultCallBudget,
		CursorPoolSize: DefaultCursorPoolSize,
	}
}

// Runtime is the host-side execution environment: a single goroutine
// consuming a tick queue. Handlers, scheduled operation slices, and
// deferred chunk emissions all run on that goroutine, so none of the
// per-tick state (meter, cursors) needs locking.
type Runtime struct {
	cfg    RuntimeConfig
	log    zerolog.Logger
	router *Router
	asm    *chunk.Assembler
	clock  sched.Clock
	meter  *CallMeter
	pool   *CursorPool
	tasks  chan func()
	quit   chan struct{}
}

// NewRuntime wires a runtime over a graph and a datagram send function.
// baseClock drives deferred work; pass a fake clock in tests.
func NewRuntime(cfg RuntimeConfig, g Graph, send chunk.SendFunc, baseClock sched.Clock, log zerolog.Logger) (*Runtime, error) {
	if baseClock == nil {
		baseClock = sched.Real()
	}
	pool, err := NewCursorPool(g, cfg.CursorPoolSize)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{
		cfg:    cfg,
		log:    log,
		router: NewRouter(),
		meter:  NewCallMeter(cfg.CallBudget),
		pool:   pool,
		tasks:  make(chan func(), 256),
		quit:   make(chan struct{}),
	}
	// Deferred callbacks re-enter through the tick queue so they run on
	// the loop goroutine.
	rt.clock = &loopClock{base: baseClock, rt: rt}
	rt.asm = chunk.NewAssembler(cfg.Assembler, rt.clock, send, log)
	return rt, nil
}

func (rt *Runtime) Router() *Router     { return rt.router }
func (rt *Runtime) Clock() sched.Clock  { return rt.clock }
func (rt *Runtime) Meter() *CallMeter   { return rt.meter }
func (rt *Runtime) Cursors() *CursorPool { return rt.pool }

// Run consumes ticks until Close. Each queued task is one tick: the call
// meter resets at its top.
func (rt *Runtime) Run() {
	for {
		select {
		case <-rt.quit:
			return
		case task := <-rt.tasks:
			rt.meter.BeginTick()
			task()
		}
	}
}

func (rt *Runtime) Close() {
	close(rt.quit)
}

// Enqueue schedules one tick of work onto the loop.
func (rt *Runtime) Enqueue(task func()) {
	select {
	case <-rt.quit:
	case rt.tasks <- task:
	}
}

// HandleDatagram hands a received command datagram to the loop. Safe to
// call from the socket reader goroutine.
func (rt *Runtime) HandleDatagram(data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)
	rt.Enqueue(func() { rt.dispatch(buf) })
}

// dispatch routes one command. An unrecognized opcode gets no response:
// a malformed address may not carry a trustworthy correlation id, and
// replying could poison an unrelated pending request. A command that
// fails argument decoding is dropped for the same reason.
func (rt *Runtime) dispatch(data []byte) {
	address, err := wire.PeekAddress(data)
	if err != nil {
		rt.log.Warn().Err(err).Msg("drop empty command datagram")
		return
	}
	route, ok := rt.router.Lookup(address)
	if !ok {
		rt.log.Warn().Str("opcode", address).Msg("unroutable command, no response sent")
		observability.RecordHostCommand(address, "unroutable")
		return
	}
	cmd, err := wire.DecodeCommand(data, route.Leading)
	if err != nil {
		rt.log.Warn().Err(err).Str("opcode", address).Msg("drop undecodable command")
		observability.RecordHostCommand(address, "undecodable")
		return
	}

	call := &Call{rt: rt, Cmd: cmd, started: time.Now()}
	defer func() {
		if rec := recover(); rec != nil {
			rt.log.Error().Interface("panic", rec).Str("opcode", address).Msg("handler panicked")
			call.Fail(errors.New("internal handler failure"))
		}
	}()
	route.Handler(call)
}

type loopClock struct {
	base sched.Clock
	rt   *Runtime
}

func (c *loopClock) Now() time.Time { return c.base.Now() }

func (c *loopClock) AfterFunc(d time.Duration, f func()) {
	c.base.AfterFunc(d, func() { c.rt.Enqueue(f) })
}
