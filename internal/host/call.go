package host

import (
	"errors"
	"time"

	"github.com/BuggedPlayer/ableton-mcpv2/internal/observability"
	"github.com/BuggedPlayer/ableton-mcpv2/internal/wire"
)

var ErrHandlerFailed = errors.New("host: handler failed")

// Call is the surface a handler works against: the decoded command plus
// exactly-once completion. All methods run on the loop goroutine,
// including completions fired from later ticks of a scheduled operation.
type Call struct {
	rt      *Runtime
	Cmd     wire.Command
	started time.Time
	replied bool
}

// Int returns leading argument i as an int64.
func (c *Call) Int(i int) int64 { return c.Cmd.Args[i].Int }

// Float returns leading argument i as a float64.
func (c *Call) Float(i int) float64 { return c.Cmd.Args[i].Float }

// Str returns leading argument i as a string.
func (c *Call) Str(i int) string { return c.Cmd.Args[i].Str }

// Succeed emits the success response for this call.
func (c *Call) Succeed(result any) {
	if c.replied {
		return
	}
	resp, err := wire.SuccessResponse(c.Cmd.CorrelationID, result)
	if err != nil {
		c.Fail(err)
		return
	}
	c.emit(resp, "success")
}

// Fail converts a handler error into an error response, preserving the
// correlation id.
func (c *Call) Fail(err error) {
	if c.replied {
		return
	}
	c.rt.log.Warn().
		Err(err).
		Str("opcode", c.Cmd.Address).
		Str("id", c.Cmd.CorrelationID).
		Msg("handler error")
	c.emit(wire.ErrorResponse(c.Cmd.CorrelationID, err.Error()), "error")
}

func (c *Call) emit(resp wire.Response, status string) {
	raw, err := wire.MarshalResponse(resp)
	if err != nil {
		c.rt.log.Error().Err(err).Str("id", c.Cmd.CorrelationID).Msg("unmarshalable response dropped")
		return
	}
	c.replied = true
	c.rt.asm.Emit(c.Cmd.CorrelationID, raw)
	observability.RecordHostCommand(c.Cmd.Address, status)
	c.rt.log.Debug().
		Str("opcode", c.Cmd.Address).
		Str("id", c.Cmd.CorrelationID).
		Dur("took", time.Since(c.started)).
		Str("status", status).
		Msg("command completed")
}
