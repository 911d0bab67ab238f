package host

import (
	"errors"
	"fmt"
	"net"

	"github.com/rs/zerolog"
)

// maxDatagram comfortably covers the largest frame the assembler emits.
const maxDatagram = 8192

// Endpoint owns the host side of the socket pair: it listens for command
// datagrams and sends response frames back to the controller's response
// port.
type Endpoint struct {
	cmd  *net.UDPConn
	resp *net.UDPConn
	log  zerolog.Logger
}

// OpenEndpoint binds the command listener and dials the controller's
// response address.
func OpenEndpoint(commandAddr, responseAddr string, log zerolog.Logger) (*Endpoint, error) {
	laddr, err := net.ResolveUDPAddr("udp", commandAddr)
	if err != nil {
		return nil, fmt.Errorf("host: resolve command addr: %w", err)
	}
	cmd, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("host: bind command port: %w", err)
	}
	raddr, err := net.ResolveUDPAddr("udp", responseAddr)
	if err != nil {
		cmd.Close()
		return nil, fmt.Errorf("host: resolve response addr: %w", err)
	}
	resp, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		cmd.Close()
		return nil, fmt.Errorf("host: dial response port: %w", err)
	}
	return &Endpoint{cmd: cmd, resp: resp, log: log}, nil
}

// Send transmits one response frame. Datagram writes do not block the
// tick; a send failure is logged and dropped, the controller's timeout
// covers the loss.
func (e *Endpoint) Send(datagram []byte) {
	if _, err := e.resp.Write(datagram); err != nil {
		e.log.Warn().Err(err).Msg("response send failed")
	}
}

// Serve reads command datagrams and hands each to handle until the
// endpoint closes.
func (e *Endpoint) Serve(handle func([]byte)) error {
	buf := make([]byte, maxDatagram)
	for {
		n, _, err := e.cmd.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("host: command read: %w", err)
		}
		handle(buf[:n])
	}
}

func (e *Endpoint) Close() {
	e.cmd.Close()
	e.resp.Close()
}

// LocalAddr reports the bound command address, useful when the port was
// chosen by the kernel.
func (e *Endpoint) LocalAddr() net.Addr { return e.cmd.LocalAddr() }
