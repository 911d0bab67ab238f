package sched

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidOperation = errors.New("sched: invalid operation")
	ErrAlreadyStarted   = errors.New("sched: operation already started")
)

const (
	// DefaultCallBudget is the empirical ceiling of primitive host calls
	// that one synchronous tick can absorb before the host destabilizes.
	DefaultCallBudget = 200

	// DefaultUnitChunk keeps a slice of units (at roughly seven primitive
	// calls each) far below the call budget.
	DefaultUnitChunk = 4

	// DefaultResumeDelay separates consecutive slices of one operation.
	DefaultResumeDelay = 50 * time.Millisecond
)

// Config bounds how much of an operation runs per invocation.
type Config struct {
	UnitChunk   int
	ResumeDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		UnitChunk:   DefaultUnitChunk,
		ResumeDelay: DefaultResumeDelay,
	}
}

// UnitFunc performs one work unit and returns its result record. Failures
// are part of the record, not an abort: a bad unit must not sink the rest
// of the batch.
type UnitFunc func(i int) any

// DoneFunc receives the accumulated results once every unit has run.
type DoneFunc func(results []any)

// Operation is one resumable multi-tick job. Cursor, accumulator, and
// target identity are owned by the instance; concurrent operations never
// share progress state.
type Operation struct {
	id      string
	cfg     Config
	clock   Clock
	unit    UnitFunc
	done    DoneFunc
	total   int
	cursor  int
	results []any
	runs    int
	started bool
}

// NewOperation builds an operation over total units.
func NewOperation(id string, total int, cfg Config, clock Clock, unit UnitFunc, done DoneFunc) (*Operation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidOperation)
	}
	if total < 0 {
		return nil, fmt.Errorf("%w: negative unit count", ErrInvalidOperation)
	}
	if unit == nil || done == nil {
		return nil, fmt.Errorf("%w: missing unit or done func", ErrInvalidOperation)
	}
	if cfg.UnitChunk <= 0 {
		cfg.UnitChunk = DefaultUnitChunk
	}
	if cfg.ResumeDelay <= 0 {
		cfg.ResumeDelay = DefaultResumeDelay
	}
	if clock == nil {
		clock = Real()
	}
	return &Operation{
		id:      id,
		cfg:     cfg,
		clock:   clock,
		unit:    unit,
		done:    done,
		total:   total,
		results: make([]any, 0, total),
	}, nil
}

// Start runs the first slice synchronously within the current tick and
// defers the rest. It may only be called once.
func (op *Operation) Start() error {
	if op.started {
		return fmt.Errorf("%w: %s", ErrAlreadyStarted, op.id)
	}
	op.started = true
	op.step()
	return nil
}

// step processes units [cursor, cursor+UnitChunk) and either reschedules
// itself or finalizes. It always runs on the host loop: resumption goes
// through the clock, which the runtime points back at its tick queue.
func (op *Operation) step() {
	op.runs++
	end := op.cursor + op.cfg.UnitChunk
	if end > op.total {
		end = op.total
	}
	for i := op.cursor; i < end; i++ {
		op.results = append(op.results, op.unit(i))
	}
	op.cursor = end

	if op.cursor < op.total {
		op.clock.AfterFunc(op.cfg.ResumeDelay, op.step)
		return
	}
	op.done(op.results)
}

// ID returns the operation's correlation id.
func (op *Operation) ID() string { return op.id }

// Runs reports how many invocations the operation has used so far.
func (op *Operation) Runs() int { return op.runs }

// Cursor reports how many units have been consumed.
func (op *Operation) Cursor() int { return op.cursor }

// Done reports whether every unit has been consumed.
func (op *Operation) Done() bool { return op.started && op.cursor >= op.total }
