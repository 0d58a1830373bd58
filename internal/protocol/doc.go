// Package protocol owns the host<->guest wire contract.
//
// Ownership boundary:
// - message kinds, directions and limits
// - frame codec (frame)
// - field primitives (wire)
// - typed message catalog (message)
// - per-connection session state machine (session)
package protocol
