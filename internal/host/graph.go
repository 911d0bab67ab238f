package host

import (
	"errors"
	"fmt"
)

var (
	ErrBudgetExceeded   = errors.New("host: per-tick call budget exceeded")
	ErrCursorsExhausted = errors.New("host: cursor pool exhausted")
)

// DefaultCursorPoolSize bounds live graph cursors. Cursors navigate by
// re-pointing to a new path; allocating one per visited node exhausts
// the host's object table on deep or wide graphs.
const DefaultCursorPoolSize = 4

// Graph is the object-graph port. Every method of a Cursor is one or
// more primitive host calls and must account against the tick meter.
type Graph interface {
	NewCursor() (Cursor, error)
}

// Cursor is a re-pointable view onto one graph node.
type Cursor interface {
	// Repoint navigates this cursor to a new path, reusing the handle.
	Repoint(path string) error
	// ChildCount reports how many children of kind the node has.
	ChildCount(kind string) (int, error)
	// ReadField reads one field of the node.
	ReadField(name string) (any, error)
	// FieldRange reports the valid numeric range of a field.
	FieldRange(name string) (min, max float64, err error)
	// WriteField writes a field. Implementations never read the value
	// back; verification is the caller's problem by design.
	WriteField(name string, value float64) error
}

// CallMeter counts primitive calls within one tick. It is confined to
// the runtime loop and needs no locking.
type CallMeter struct {
	budget int
	used   int
}

func NewCallMeter(budget int) *CallMeter {
	if budget <= 0 {
		budget = 200
	}
	return &CallMeter{budget: budget}
}

// BeginTick resets the counter at the top of each tick.
func (m *CallMeter) BeginTick() { m.used = 0 }

// Spend accounts n primitive calls and trips once the tick goes over
// budget.
func (m *CallMeter) Spend(n int) error {
	m.used += n
	if m.used > m.budget {
		return fmt.Errorf("%w: %d of %d", ErrBudgetExceeded, m.used, m.budget)
	}
	return nil
}

// Used reports calls spent in the current tick.
func (m *CallMeter) Used() int { return m.used }

// CursorPool hands out a small fixed set of cursors. Multi-tick
// operations hold one for their whole lifetime and re-point it per unit.
type CursorPool struct {
	free chan Cursor
}

func NewCursorPool(g Graph, size int) (*CursorPool, error) {
	if size <= 0 {
		size = DefaultCursorPoolSize
	}
	pool := &CursorPool{free: make(chan Cursor, size)}
	for i := 0; i < size; i++ {
		c, err := g.NewCursor()
		if err != nil {
			return nil, fmt.Errorf("host: allocate cursor %d: %w", i, err)
		}
		pool.free <- c
	}
	return pool, nil
}

// Acquire takes a cursor without blocking; too many concurrent
// operations is an error, not a wait.
func (p *CursorPool) Acquire() (Cursor, error) {
	select {
	case c := <-p.free:
		return c, nil
	default:
		return nil, ErrCursorsExhausted
	}
}

func (p *CursorPool) Release(c Cursor) {
	if c == nil {
		return
	}
	p.free <- c
}

// Idle reports how many cursors are currently free.
func (p *CursorPool) Idle() int { return len(p.free) }
