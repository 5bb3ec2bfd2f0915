// Package channels holds the small shared concurrency primitives that
// connect the scheduler, the probes it dispatches, and the server
// control channel without any of them blocking on each other's
// lifecycle: a single shared outbound-sender Slot and the ConfigUpdate
// value the control channel delivers when the server pushes a new
// monitor list.
package channels
