package bridge

import (
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/BuggedPlayer/ableton-mcpv2/internal/observability"
	"github.com/BuggedPlayer/ableton-mcpv2/internal/pending"
)

var (
	ErrAlreadyRunning = errors.New("bridge: another controller instance holds the control port")
	ErrClosed         = errors.New("bridge: supervisor closed")
	ErrSendFailed     = errors.New("bridge: command send failed")
)

// ConnState is the supervisor's view of the socket pair.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnected
	StateReconnecting
)

func (s ConnState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Config carries the supervisor's transport knobs.
type Config struct {
	// CommandAddr is the host's command port.
	CommandAddr string
	// ResponseAddr is the local response listen address.
	ResponseAddr string
	// ControlAddr is the well-known port whose exclusive lock enforces
	// single-instance ownership.
	ControlAddr string

	Policy         pending.Policy
	Backoff        BackoffConfig
	ExpireInterval time.Duration
	ReadBufferSize int
}

func DefaultConfig() Config {
	return Config{
		CommandAddr:    "127.0.0.1:9004",
		ResponseAddr:   "127.0.0.1:9005",
		ControlAddr:    "127.0.0.1:9006",
		Policy:         pending.DefaultPolicy(),
		Backoff:        DefaultBackoffConfig(),
		ExpireInterval: 500 * time.Millisecond,
		ReadBufferSize: 8192,
	}
}

// Supervisor owns the socket pair and keeps the channel usable: it holds
// the singleton guard, flushes stale datagrams left on the response
// socket whenever it (re)binds, feeds every arriving frame through the
// correlation registry (which drops anything stale), sweeps expired
// requests, and reconnects with exponential backoff when the host side
// disappears. Reconnection never drops pending requests silently: they
// still resolve through their timeout.
type Supervisor struct {
	cfg Config
	log zerolog.Logger
	reg *pending.Registry

	guard net.Listener

	mu    sync.Mutex
	cmd   *net.UDPConn
	resp  *net.UDPConn
	paths map[string]*sync.Mutex

	state atomic.Int32
	quit  chan struct{}
	wg    sync.WaitGroup
	rng   *rand.Rand
}

// Open acquires the singleton guard, binds the socket pair, and starts
// the reader and expiry sweeps.
func Open(cfg Config, log zerolog.Logger) (*Supervisor, error) {
	if cfg.ExpireInterval <= 0 {
		cfg.ExpireInterval = 500 * time.Millisecond
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = 8192
	}

	guard, err := net.Listen("tcp", cfg.ControlAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAlreadyRunning, err)
	}

	s := &Supervisor{
		cfg:   cfg,
		log:   log,
		reg:   pending.NewRegistry(cfg.Policy),
		guard: guard,
		paths: make(map[string]*sync.Mutex),
		quit:  make(chan struct{}),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if err := s.connect(); err != nil {
		guard.Close()
		return nil, err
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.expireLoop()
	return s, nil
}

// Registry exposes the correlation registry to the client layer.
func (s *Supervisor) Registry() *pending.Registry { return s.reg }

// ConnState implements observability.StatusSource.
func (s *Supervisor) ConnState() string {
	return ConnState(s.state.Load()).String()
}

// Pending implements observability.StatusSource.
func (s *Supervisor) Pending() []pending.Request {
	return s.reg.Snapshot()
}

func (s *Supervisor) Close() error {
	select {
	case <-s.quit:
		return ErrClosed
	default:
	}
	close(s.quit)
	s.mu.Lock()
	if s.cmd != nil {
		s.cmd.Close()
	}
	if s.resp != nil {
		s.resp.Close()
	}
	s.mu.Unlock()
	s.guard.Close()
	s.wg.Wait()
	return nil
}

// send transmits one encoded command datagram.
func (s *Supervisor) send(datagram []byte) error {
	s.mu.Lock()
	conn := s.cmd
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("%w: not connected", ErrSendFailed)
	}
	if _, err := conn.Write(datagram); err != nil {
		s.kickReconnect()
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// pathLock serializes command issuance per logical target path, so two
// chunked operations cannot race over the same host-side target.
func (s *Supervisor) pathLock(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.paths[path]
	if !ok {
		m = &sync.Mutex{}
		s.paths[path] = m
	}
	return m
}

// connect binds the response listener, flushes whatever stale datagrams
// an abandoned round trip left behind, and dials the command port.
func (s *Supervisor) connect() error {
	laddr, err := net.ResolveUDPAddr("udp", s.cfg.ResponseAddr)
	if err != nil {
		return fmt.Errorf("bridge: resolve response addr: %w", err)
	}
	resp, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return fmt.Errorf("bridge: bind response port: %w", err)
	}
	drainSocket(resp)

	raddr, err := net.ResolveUDPAddr("udp", s.cfg.CommandAddr)
	if err != nil {
		resp.Close()
		return fmt.Errorf("bridge: resolve command addr: %w", err)
	}
	cmd, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		resp.Close()
		return fmt.Errorf("bridge: dial command port: %w", err)
	}

	s.mu.Lock()
	s.resp = resp
	s.cmd = cmd
	s.mu.Unlock()
	s.state.Store(int32(StateConnected))
	s.log.Info().
		Str("command", s.cfg.CommandAddr).
		Str("response", s.cfg.ResponseAddr).
		Msg("channel connected")
	return nil
}

// drainSocket discards buffered datagrams so a prior operation's late
// chunks cannot be misread as part of the next command.
func drainSocket(conn *net.UDPConn) {
	buf := make([]byte, 8192)
	conn.SetReadDeadline(time.Now().Add(5 * time.Millisecond))
	for {
		if _, _, err := conn.ReadFromUDP(buf); err != nil {
			break
		}
	}
	conn.SetReadDeadline(time.Time{})
}

// readLoop feeds the registry with every response frame. Staleness
// filtering happens there: frames for ids no longer pending produce no
// state change.
func (s *Supervisor) readLoop() {
	defer s.wg.Done()
	buf := make([]byte, s.cfg.ReadBufferSize)
	for {
		s.mu.Lock()
		conn := s.resp
		s.mu.Unlock()
		if conn == nil {
			select {
			case <-s.quit:
				return
			case <-time.After(50 * time.Millisecond):
				continue
			}
		}

		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				s.reconnect()
				continue
			}
			s.log.Warn().Err(err).Msg("response read failed")
			s.reconnect()
			continue
		}

		outcome, id, aerr := s.reg.Accept(buf[:n])
		observability.RecordFrame(outcome.String())
		if aerr != nil {
			s.log.Warn().Err(aerr).Str("id", id).Msg("response frame rejected")
			continue
		}
		s.log.Debug().Str("id", id).Str("outcome", outcome.String()).Msg("frame accepted")
	}
}

// kickReconnect asks the read loop to rebuild the sockets by closing the
// response socket out from under it.
func (s *Supervisor) kickReconnect() {
	s.mu.Lock()
	if s.resp != nil {
		s.resp.Close()
	}
	s.mu.Unlock()
}

// reconnect rebuilds the socket pair with exponential backoff until it
// succeeds or the supervisor closes.
func (s *Supervisor) reconnect() {
	s.state.Store(int32(StateReconnecting))
	s.mu.Lock()
	if s.cmd != nil {
		s.cmd.Close()
		s.cmd = nil
	}
	if s.resp != nil {
		s.resp.Close()
		s.resp = nil
	}
	s.mu.Unlock()

	for attempt := 1; ; attempt++ {
		delay := NextBackoffDelay(s.cfg.Backoff, attempt, s.rng)
		s.log.Info().Int("attempt", attempt).Dur("delay", delay).Msg("reconnecting")
		select {
		case <-s.quit:
			return
		case <-time.After(delay):
		}
		observability.RecordReconnect()
		if err := s.connect(); err != nil {
			s.log.Warn().Err(err).Int("attempt", attempt).Msg("reconnect failed")
			continue
		}
		return
	}
}

// expireLoop sweeps the registry so timed-out requests fail locally and
// their late frames become stale.
func (s *Supervisor) expireLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.ExpireInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.quit:
			return
		case now := <-ticker.C:
			for _, id := range s.reg.Expire(now) {
				observability.RecordTimeout()
				s.log.Warn().Str("id", id).Msg("request timed out")
			}
		}
	}
}
