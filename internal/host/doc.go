// Package host owns the host-side runtime of the bridge.
//
// Ownership boundary:
// - single-threaded tick loop and per-tick call budget accounting
// - opcode router and handler call surface
// - cursor pool over the object-graph port
// - built-in chunked enumeration/mutation handlers
package host
