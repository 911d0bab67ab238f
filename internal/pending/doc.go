// Package pending owns the controller-side correlation registry.
//
// Ownership boundary:
// - in-flight request tracking by correlation id
// - size-hinted timeout policy and expiry
// - response frame routing, reassembly, and staleness drops
package pending
