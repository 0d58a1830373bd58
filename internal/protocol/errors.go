package protocol

import "errors"

// ErrUnknownKind reports a type tag outside the closed kind set.
var ErrUnknownKind = errors.New("protocol: unknown message kind")
