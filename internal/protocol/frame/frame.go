package frame

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/danmuck/vsockguest/internal/protocol"
)

const (
	// LengthPrefixLen is the size of the big-endian length field.
	LengthPrefixLen = 4
	// HeaderLen is type(1) + seq(4); the smallest legal declared length.
	HeaderLen = 5
	// MaxLength is the largest legal declared length.
	MaxLength = protocol.MaxMessageSize
)

var (
	ErrFrameTooLarge = errors.New("frame: declared length exceeds maximum")
	ErrFrameTooSmall = errors.New("frame: declared length below header size")
)

// Frame is one decoded wire message.
type Frame struct {
	Type    uint8
	Seq     uint32
	Payload []byte
}

// Kind returns the frame type as a protocol kind.
func (f Frame) Kind() protocol.Kind {
	return protocol.Kind(f.Type)
}

// Encode builds length(4) ++ type(1) ++ seq(4) ++ payload.
// The payload is not inspected.
func Encode(typ uint8, seq uint32, payload []byte) []byte {
	return Append(make([]byte, 0, LengthPrefixLen+HeaderLen+len(payload)), typ, seq, payload)
}

// Append encodes one frame onto dst.
func Append(dst []byte, typ uint8, seq uint32, payload []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(HeaderLen+len(payload)))
	dst = append(dst, typ)
	dst = binary.BigEndian.AppendUint32(dst, seq)
	return append(dst, payload...)
}

// IsProtocolViolation reports whether err is a framing-level failure.
func IsProtocolViolation(err error) bool {
	return errors.Is(err, ErrFrameTooLarge) || errors.Is(err, ErrFrameTooSmall)
}

// Decode extracts every complete frame from buf and returns the undecoded
// suffix. A partial trailing frame is not an error. A declared length out of
// bounds fails the whole call and returns buf unchanged.
func Decode(buf []byte) ([]Frame, []byte, error) {
	frames, consumed, err := scan(buf)
	if err != nil {
		return nil, buf, err
	}
	return frames, buf[consumed:], nil
}

func scan(buf []byte) ([]Frame, int, error) {
	var frames []Frame
	off := 0
	for len(buf)-off >= LengthPrefixLen {
		length := binary.BigEndian.Uint32(buf[off : off+LengthPrefixLen])
		if length > MaxLength {
			return nil, off, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, MaxLength)
		}
		if length < HeaderLen {
			return nil, off, fmt.Errorf("%w: %d < %d", ErrFrameTooSmall, length, HeaderLen)
		}
		total := LengthPrefixLen + int(length)
		if len(buf)-off < total {
			break
		}
		body := buf[off+LengthPrefixLen : off+total]
		payload := make([]byte, len(body)-HeaderLen)
		copy(payload, body[HeaderLen:])
		frames = append(frames, Frame{
			Type:    body[0],
			Seq:     binary.BigEndian.Uint32(body[1:HeaderLen]),
			Payload: payload,
		})
		off += total
	}
	return frames, off, nil
}
