// Package message is the typed catalog of host<->guest messages.
//
// Each kind is a Go type implementing Message; payload encoding and
// decoding live next to the type. Inbound payloads are bounds-checked field
// by field and fail with *PayloadError instead of panicking.
package message

import (
	"fmt"
	"strings"

	"github.com/danmuck/vsockguest/internal/protocol"
	"github.com/danmuck/vsockguest/internal/protocol/frame"
	"github.com/danmuck/vsockguest/internal/protocol/wire"
)

// Message is one typed payload. The set of implementations is closed.
type Message interface {
	Kind() protocol.Kind
	AppendPayload(dst []byte) []byte
	sealed()
}

// Encode frames m under seq.
func Encode(seq uint32, m Message) []byte {
	return frame.Encode(uint8(m.Kind()), seq, m.AppendPayload(nil))
}

// Decode returns the typed message carried by f.
func Decode(f frame.Frame) (Message, error) {
	switch f.Kind() {
	case protocol.KindReady:
		return Ready{}, nil
	case protocol.KindPing:
		return Ping{}, nil
	case protocol.KindPong:
		return Pong{}, nil
	case protocol.KindExec:
		return DecodeExec(f.Payload)
	case protocol.KindExecResult:
		return DecodeExecResult(f.Payload)
	case protocol.KindWriteFile:
		return DecodeWriteFile(f.Payload)
	case protocol.KindWriteFileResult:
		return DecodeWriteFileResult(f.Payload)
	case protocol.KindError:
		return DecodeError(f.Payload)
	default:
		return nil, fmt.Errorf("%w: %s", protocol.ErrUnknownKind, f.Kind().Hex())
	}
}

// PayloadError is a local validation failure of an inbound payload. Its
// text is what the guest reports back to the host.
type PayloadError struct {
	Kind   protocol.Kind
	Reason string
	Err    error
}

func (e *PayloadError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("Invalid %s payload", e.Kind)
	}
	return fmt.Sprintf("Invalid %s payload: %s", e.Kind, e.Reason)
}

func (e *PayloadError) Unwrap() error {
	return e.Err
}

func invalid(kind protocol.Kind, reason string, err error) *PayloadError {
	return &PayloadError{Kind: kind, Reason: reason, Err: err}
}

// text converts wire bytes to a string, replacing invalid UTF-8.
func text(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}

// Ready is the guest's unsolicited announcement, always seq 0.
type Ready struct{}

func (Ready) Kind() protocol.Kind             { return protocol.KindReady }
func (Ready) AppendPayload(dst []byte) []byte { return dst }
func (Ready) sealed()                         {}

// Ping is the host's liveness probe.
type Ping struct{}

func (Ping) Kind() protocol.Kind             { return protocol.KindPing }
func (Ping) AppendPayload(dst []byte) []byte { return dst }
func (Ping) sealed()                         {}

// Pong answers a Ping.
type Pong struct{}

func (Pong) Kind() protocol.Kind             { return protocol.KindPong }
func (Pong) AppendPayload(dst []byte) []byte { return dst }
func (Pong) sealed()                         {}

// Error is the generic failure reply. Message is truncated to 65535 bytes
// on encode.
type Error struct {
	Message string
}

func (Error) Kind() protocol.Kind { return protocol.KindError }
func (Error) sealed()             {}

func (m Error) AppendPayload(dst []byte) []byte {
	return wire.AppendBytes16(dst, wire.Truncate16([]byte(m.Message)))
}

func DecodeError(payload []byte) (Error, error) {
	r := wire.NewReader(payload)
	msg, err := r.Bytes16("error")
	if err != nil {
		return Error{}, invalid(protocol.KindError, "too short", err)
	}
	return Error{Message: string(msg)}, nil
}
