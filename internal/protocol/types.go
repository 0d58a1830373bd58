package protocol

import "fmt"

const (
	// MaxMessageSize bounds the declared frame length (type + seq + payload).
	MaxMessageSize = 16 * 1024 * 1024
	// MaxTextLen is the largest text field carried behind a u16 length.
	MaxTextLen = 0xFFFF
	// ReadySeq is the sequence number of the unsolicited ready announcement.
	ReadySeq uint32 = 0

	// FlagPrivileged on write_file requests an elevated write.
	FlagPrivileged uint8 = 0x01
)

// Kind is the one-byte message type tag.
type Kind uint8

const (
	KindReady           Kind = 0x00
	KindPing            Kind = 0x01
	KindPong            Kind = 0x02
	KindExec            Kind = 0x03
	KindExecResult      Kind = 0x04
	KindWriteFile       Kind = 0x05
	KindWriteFileResult Kind = 0x06
	KindError           Kind = 0xFF
)

// Direction is the fixed travel direction of a message kind.
type Direction int

const (
	DirectionUnknown Direction = iota
	GuestToHost
	HostToGuest
)

func (d Direction) String() string {
	switch d {
	case GuestToHost:
		return "guest->host"
	case HostToGuest:
		return "host->guest"
	default:
		return "unknown"
	}
}

var kindNames = map[Kind]string{
	KindReady:           "ready",
	KindPing:            "ping",
	KindPong:            "pong",
	KindExec:            "exec",
	KindExecResult:      "exec_result",
	KindWriteFile:       "write_file",
	KindWriteFileResult: "write_file_result",
	KindError:           "error",
}

var kindDirections = map[Kind]Direction{
	KindReady:           GuestToHost,
	KindPing:            HostToGuest,
	KindPong:            GuestToHost,
	KindExec:            HostToGuest,
	KindExecResult:      GuestToHost,
	KindWriteFile:       HostToGuest,
	KindWriteFileResult: GuestToHost,
	KindError:           GuestToHost,
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown(0x%02X)", uint8(k))
}

// Known reports whether k belongs to the closed kind set.
func (k Kind) Known() bool {
	_, ok := kindNames[k]
	return ok
}

// Direction returns the fixed direction of k, or DirectionUnknown.
func (k Kind) Direction() Direction {
	return kindDirections[k]
}

// Inbound reports whether the guest accepts k from the host.
func (k Kind) Inbound() bool {
	return k.Direction() == HostToGuest
}

// Hex renders the tag the way error frames report it, e.g. 0x0A.
func (k Kind) Hex() string {
	return fmt.Sprintf("0x%02X", uint8(k))
}
