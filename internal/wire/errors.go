package wire

import "errors"

var (
	ErrEmptyAddress = errors.New("wire: empty address")
	ErrShortCommand = errors.New("wire: not enough tokens for command")
	ErrBadToken     = errors.New("wire: malformed argument token")
	ErrUnsafeToken  = errors.New("wire: token contains transport framing characters")
	ErrBadEncoding  = errors.New("wire: malformed textsafe payload")
	ErrBadResponse  = errors.New("wire: malformed response body")
)
