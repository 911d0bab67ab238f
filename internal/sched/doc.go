// Package sched owns the cooperative work scheduler for the host side.
//
// Ownership boundary:
// - bounded-slice operation engine (run a few units, yield, resume)
// - injectable clock so ticks can be advanced deterministically in tests
package sched
