// Package chunk owns payload fragmentation for the fragile datagram
// channel.
//
// Ownership boundary:
// - host-side assembler: small-path frames and deferred piece emission
// - chunk envelope wire shape
// - controller-side per-request reassembly buffer
package chunk
