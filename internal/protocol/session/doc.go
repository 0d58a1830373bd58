// Package session runs one guest connection to the host.
//
// A session dials through an injected Dialer, announces itself with a
// ready frame (seq 0) and then serves host requests strictly in arrival
// order: read, reassemble, dispatch, write. It ends on EOF, on a framing
// violation or when its context is cancelled. There is no reconnect.
package session
