// Package wire owns the datagram wire contract for the host bridge.
//
// Ownership boundary:
// - command token framing (address, typed args, trailing correlation id)
// - textsafe binary-to-text transform
// - response body contract
package wire
