package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// ArgKind discriminates the typed positional arguments of a command.
type ArgKind uint8

const (
	KindInt ArgKind = iota
	KindFloat
	KindString
)

// Arg is one typed positional command argument.
type Arg struct {
	Kind  ArgKind
	Int   int64
	Float float64
	Str   string
}

func Int(v int64) Arg      { return Arg{Kind: KindInt, Int: v} }
func Float(v float64) Arg  { return Arg{Kind: KindFloat, Float: v} }
func String(v string) Arg  { return Arg{Kind: KindString, Str: v} }

// Command is one controller-to-host request. The correlation id is always
// the last token on the wire; Payload, when non-empty, rides between the
// fixed leading args and the id and may be split into multiple tokens by
// the transport.
type Command struct {
	Address       string
	Args          []Arg
	Payload       string
	CorrelationID string
}

// Validate enforces the token-framing constraints: no token may contain
// the transport's separator characters.
func (c Command) Validate() error {
	if strings.TrimSpace(c.Address) == "" {
		return ErrEmptyAddress
	}
	if !tokenSafe(c.Address) {
		return fmt.Errorf("%w: address %q", ErrUnsafeToken, c.Address)
	}
	for i, a := range c.Args {
		if a.Kind == KindString && !tokenSafe(a.Str) {
			return fmt.Errorf("%w: arg %d", ErrUnsafeToken, i)
		}
	}
	if !tokenSafe(c.Payload) {
		return fmt.Errorf("%w: payload", ErrUnsafeToken)
	}
	if strings.TrimSpace(c.CorrelationID) == "" || !tokenSafe(c.CorrelationID) {
		return fmt.Errorf("%w: correlation id", ErrUnsafeToken)
	}
	return nil
}

// EncodeCommand renders a command as a single space-delimited datagram.
func EncodeCommand(c Command) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	tokens := make([]string, 0, len(c.Args)+3)
	tokens = append(tokens, c.Address)
	for _, a := range c.Args {
		tokens = append(tokens, formatArg(a))
	}
	if c.Payload != "" {
		tokens = append(tokens, c.Payload)
	}
	tokens = append(tokens, c.CorrelationID)
	return []byte(strings.Join(tokens, " ")), nil
}

// PeekAddress returns the address token of an encoded command without
// decoding the rest, for router dispatch.
func PeekAddress(data []byte) (string, error) {
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return "", ErrEmptyAddress
	}
	return fields[0], nil
}

// DecodeCommand parses a datagram given the fixed leading argument kinds
// for its address. Every token strictly between the leading args and the
// trailing correlation id belongs to one payload string that the
// transport may have split; those tokens are concatenated in arrival
// order.
func DecodeCommand(data []byte, leading []ArgKind) (Command, error) {
	fields := strings.Fields(string(data))
	if len(fields) < len(leading)+2 {
		return Command{}, fmt.Errorf("%w: got %d tokens, need at least %d",
			ErrShortCommand, len(fields), len(leading)+2)
	}

	cmd := Command{
		Address:       fields[0],
		CorrelationID: fields[len(fields)-1],
	}
	for i, kind := range leading {
		arg, err := parseArg(fields[1+i], kind)
		if err != nil {
			return Command{}, err
		}
		cmd.Args = append(cmd.Args, arg)
	}
	middle := fields[1+len(leading) : len(fields)-1]
	if len(middle) > 0 {
		cmd.Payload = strings.Join(middle, "")
	}
	return cmd, nil
}

func formatArg(a Arg) string {
	switch a.Kind {
	case KindInt:
		return strconv.FormatInt(a.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(a.Float, 'g', -1, 64)
	default:
		return a.Str
	}
}

func parseArg(token string, kind ArgKind) (Arg, error) {
	switch kind {
	case KindInt:
		v, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			return Arg{}, fmt.Errorf("%w: %q as int", ErrBadToken, token)
		}
		return Int(v), nil
	case KindFloat:
		v, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return Arg{}, fmt.Errorf("%w: %q as float", ErrBadToken, token)
		}
		return Float(v), nil
	default:
		return String(token), nil
	}
}

func tokenSafe(s string) bool {
	return !strings.ContainsAny(s, " \t\r\n")
}
