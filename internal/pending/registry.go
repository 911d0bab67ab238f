package pending

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BuggedPlayer/ableton-mcpv2/internal/chunk"
)

var (
	ErrInvalidRequest = errors.New("pending: invalid request")
	ErrDuplicateID    = errors.New("pending: correlation id already in flight")
	ErrTimeout        = errors.New("pending: timed out awaiting response")
)

const (
	// DefaultMinTimeout is the floor every request gets regardless of
	// size; it matches the host's own dispatch wait.
	DefaultMinTimeout = 10 * time.Second

	// DefaultPerUnitCost scales the deadline with the caller's estimate
	// of how many work units the host will grind through.
	DefaultPerUnitCost = 150 * time.Millisecond
)

// Policy computes per-request deadlines from a size hint. Fixed timeouts
// are not enough: chunked operations legitimately take longer as the
// target collection grows.
type Policy struct {
	MinTimeout  time.Duration
	PerUnitCost time.Duration
}

func DefaultPolicy() Policy {
	return Policy{MinTimeout: DefaultMinTimeout, PerUnitCost: DefaultPerUnitCost}
}

// Timeout returns max(MinTimeout, PerUnitCost * hint).
func (p Policy) Timeout(hint int) time.Duration {
	scaled := time.Duration(hint) * p.PerUnitCost
	if scaled < p.MinTimeout {
		return p.MinTimeout
	}
	return scaled
}

// Result is the terminal outcome of one request: the reassembled raw
// response body, or a local failure.
type Result struct {
	Payload []byte
	Err     error
}

// Request is a snapshot of one in-flight entry, for the status surface.
type Request struct {
	ID       string
	IssuedAt time.Time
	Deadline time.Time
	SizeHint int
	Pieces   int
}

// Outcome classifies what Accept did with a frame.
type Outcome uint8

const (
	OutcomeCompleted Outcome = iota
	OutcomePieceStored
	OutcomeDroppedStale
	OutcomeDroppedDecode
	OutcomeDroppedUnattributed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomePieceStored:
		return "piece_stored"
	case OutcomeDroppedStale:
		return "dropped_stale"
	case OutcomeDroppedDecode:
		return "dropped_decode"
	default:
		return "dropped_unattributed"
	}
}

type entry struct {
	id       string
	issuedAt time.Time
	deadline time.Time
	hint     int
	buf      *chunk.Buffer
	ch       chan Result
}

// Registry tracks in-flight requests. Completion is delivered exactly
// once per id; frames for absent ids are dropped, which is also how
// partial chunk sets die once their owner times out.
type Registry struct {
	mu     sync.Mutex
	policy Policy
	items  map[string]*entry
}

func NewRegistry(policy Policy) *Registry {
	if policy.MinTimeout <= 0 {
		policy.MinTimeout = DefaultMinTimeout
	}
	if policy.PerUnitCost <= 0 {
		policy.PerUnitCost = DefaultPerUnitCost
	}
	return &Registry{policy: policy, items: make(map[string]*entry)}
}

// Register opens an entry for id and returns the channel its terminal
// Result will arrive on.
func (r *Registry) Register(id string, hint int, now time.Time) (<-chan Result, error) {
	key := strings.TrimSpace(id)
	if key == "" {
		return nil, fmt.Errorf("%w: missing correlation id", ErrInvalidRequest)
	}
	if hint < 0 {
		hint = 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[key]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, key)
	}
	e := &entry{
		id:       key,
		issuedAt: now,
		deadline: now.Add(r.policy.Timeout(hint)),
		hint:     hint,
		buf:      chunk.NewBuffer(),
		ch:       make(chan Result, 1),
	}
	r.items[key] = e
	return e.ch, nil
}

// Accept routes one response datagram. Plain frames complete their
// request immediately; envelope frames accumulate until the piece set is
// whole. Frames that cannot be attributed to a pending request produce no
// state change.
func (r *Registry) Accept(datagram []byte) (Outcome, string, error) {
	f, err := chunk.DecodeFrame(datagram)
	if err != nil {
		return OutcomeDroppedDecode, "", err
	}

	if f.Env == nil {
		id := responseID(f.Plain)
		if id == "" {
			return OutcomeDroppedUnattributed, "", nil
		}
		if !r.complete(id, f.Plain) {
			return OutcomeDroppedStale, id, nil
		}
		return OutcomeCompleted, id, nil
	}

	r.mu.Lock()
	e := r.attributeLocked(f.Env.ID)
	if e == nil {
		r.mu.Unlock()
		return OutcomeDroppedStale, f.Env.ID, nil
	}
	done, err := e.buf.Add(*f.Env)
	if err != nil {
		r.mu.Unlock()
		return OutcomeDroppedDecode, e.id, err
	}
	if !done {
		r.mu.Unlock()
		return OutcomePieceStored, e.id, nil
	}
	payload, err := e.buf.Payload()
	delete(r.items, e.id)
	r.mu.Unlock()

	if err != nil {
		e.ch <- Result{Err: err}
		return OutcomeDroppedDecode, e.id, err
	}
	e.ch <- Result{Payload: payload}
	return OutcomeCompleted, e.id, nil
}

// attributeLocked resolves the owning entry for an envelope. Envelopes
// from legacy peers carry no id; those are attributed to the sole pending
// request when exactly one exists, and dropped otherwise.
func (r *Registry) attributeLocked(id string) *entry {
	if id != "" {
		return r.items[id]
	}
	if len(r.items) != 1 {
		return nil
	}
	for _, e := range r.items {
		return e
	}
	return nil
}

// Fail terminates id locally with err. It reports false when the id is
// not pending (already completed, failed, or never issued).
func (r *Registry) Fail(id string, err error) bool {
	r.mu.Lock()
	e, ok := r.items[id]
	if ok {
		delete(r.items, id)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	e.ch <- Result{Err: err}
	return true
}

// Expire fails every entry whose deadline has passed and returns their
// ids. Late frames for those ids are stale from this point on.
func (r *Registry) Expire(now time.Time) []string {
	r.mu.Lock()
	var expired []*entry
	for id, e := range r.items {
		if now.After(e.deadline) {
			expired = append(expired, e)
			delete(r.items, id)
		}
	}
	r.mu.Unlock()

	ids := make([]string, 0, len(expired))
	for _, e := range expired {
		e.ch <- Result{Err: fmt.Errorf("%w: %s after %s", ErrTimeout, e.id, e.deadline.Sub(e.issuedAt))}
		ids = append(ids, e.id)
	}
	sort.Strings(ids)
	return ids
}

// PendingCount reports how many requests are in flight.
func (r *Registry) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Snapshot lists the in-flight requests for the status surface.
func (r *Registry) Snapshot() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Request, 0, len(r.items))
	for _, e := range r.items {
		out = append(out, Request{
			ID:       e.id,
			IssuedAt: e.issuedAt,
			Deadline: e.deadline,
			SizeHint: e.hint,
			Pieces:   e.buf.Pieces(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// complete pops id and delivers its payload; false means the id was not
// pending.
func (r *Registry) complete(id string, payload []byte) bool {
	r.mu.Lock()
	e, ok := r.items[id]
	if ok {
		delete(r.items, id)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	e.ch <- Result{Payload: payload}
	return true
}

// responseID extracts the correlation id from a plain response body
// without committing to the full contract.
func responseID(raw []byte) string {
	var probe struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(raw, &probe) != nil {
		return ""
	}
	return strings.TrimSpace(probe.ID)
}
