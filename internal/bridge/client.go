package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/BuggedPlayer/ableton-mcpv2/internal/observability"
	"github.com/BuggedPlayer/ableton-mcpv2/internal/pending"
	"github.com/BuggedPlayer/ableton-mcpv2/internal/wire"
)

// ErrRemote marks a well-formed error response from the host; distinct
// from transport decode failures, which surface as wire errors.
var ErrRemote = errors.New("bridge: host reported error")

// Do issues one command and waits for its reassembled response. The
// caller supplies a logical target path for serialization and a size
// hint (expected work-unit count) that scales the timeout. A zero
// correlation id is minted here.
func (s *Supervisor) Do(ctx context.Context, path string, cmd wire.Command, hint int) (wire.Response, error) {
	if cmd.CorrelationID == "" {
		cmd.CorrelationID = uuid.NewString()
	}
	lock := s.pathLock(path)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	ch, err := s.reg.Register(cmd.CorrelationID, hint, start)
	if err != nil {
		return wire.Response{}, err
	}

	datagram, err := wire.EncodeCommand(cmd)
	if err != nil {
		s.reg.Fail(cmd.CorrelationID, err)
		observability.RecordCommand(cmd.Address, "encode_error", time.Since(start))
		return wire.Response{}, err
	}
	if err := s.send(datagram); err != nil {
		s.reg.Fail(cmd.CorrelationID, err)
		observability.RecordCommand(cmd.Address, "send_error", time.Since(start))
		return wire.Response{}, err
	}
	s.log.Debug().
		Str("opcode", cmd.Address).
		Str("id", cmd.CorrelationID).
		Int("hint", hint).
		Msg("command sent")

	select {
	case <-ctx.Done():
		s.reg.Fail(cmd.CorrelationID, ctx.Err())
		observability.RecordCommand(cmd.Address, "canceled", time.Since(start))
		return wire.Response{}, ctx.Err()
	case res := <-ch:
		return s.finish(cmd, res, start)
	}
}

func (s *Supervisor) finish(cmd wire.Command, res pending.Result, start time.Time) (wire.Response, error) {
	took := time.Since(start)
	if res.Err != nil {
		outcome := "failed"
		if errors.Is(res.Err, pending.ErrTimeout) {
			outcome = "timeout"
		}
		observability.RecordCommand(cmd.Address, outcome, took)
		return wire.Response{}, res.Err
	}

	resp, err := wire.UnmarshalResponse(res.Payload)
	if err != nil {
		// Transport-level decode failure; never dressed up as a domain
		// error from the handler.
		observability.RecordCommand(cmd.Address, "decode_error", took)
		return wire.Response{}, err
	}
	if resp.Status == wire.StatusError {
		observability.RecordCommand(cmd.Address, "remote_error", took)
		return resp, fmt.Errorf("%w: %s", ErrRemote, resp.Message)
	}
	observability.RecordCommand(cmd.Address, "success", took)
	return resp, nil
}
