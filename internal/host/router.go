package host

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BuggedPlayer/ableton-mcpv2/internal/wire"
)

var (
	ErrInvalidRoute   = errors.New("host: invalid route")
	ErrDuplicateRoute = errors.New("host: duplicate route address")
)

// HandlerFunc services one decoded command. Handlers run to completion
// inside one tick; anything bigger goes through a scheduled operation
// and completes the call from a later tick.
type HandlerFunc func(c *Call)

// Route binds an opcode address to its fixed leading argument kinds and
// handler. The leading kinds are what makes token decoding unambiguous
// when the transport splits a long payload string.
type Route struct {
	Address string
	Leading []wire.ArgKind
	Handler HandlerFunc
}

// Router maps opcode addresses to handlers.
type Router struct {
	routes map[string]Route
}

func NewRouter() *Router {
	return &Router{routes: make(map[string]Route)}
}

func (r *Router) Register(route Route) error {
	key := strings.TrimSpace(route.Address)
	if key == "" {
		return fmt.Errorf("%w: empty address", ErrInvalidRoute)
	}
	if route.Handler == nil {
		return fmt.Errorf("%w: %s has no handler", ErrInvalidRoute, key)
	}
	if _, ok := r.routes[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRoute, key)
	}
	r.routes[key] = route
	return nil
}

func (r *Router) Lookup(address string) (Route, bool) {
	route, ok := r.routes[address]
	return route, ok
}
