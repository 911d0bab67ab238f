// Package bridge owns the controller side of the datagram channel.
//
// Ownership boundary:
// - socket-pair ownership, singleton guard, reconnect policy
// - command issuance, per-target serialization, response await
// - glue between the wire codec, chunk reassembly, and the registry
package bridge
