package message

import (
	"errors"

	"github.com/danmuck/vsockguest/internal/protocol"
	"github.com/danmuck/vsockguest/internal/protocol/wire"
)

// minWriteFilePayload is path_len(2) + flags(1): anything shorter is
// rejected before field parsing.
const minWriteFilePayload = 3

// WriteFile asks the guest to write Content to Path.
type WriteFile struct {
	Path    string
	Flags   uint8
	Content []byte
}

func (WriteFile) Kind() protocol.Kind { return protocol.KindWriteFile }
func (WriteFile) sealed()             {}

// Privileged reports whether the write must run with elevated rights.
func (m WriteFile) Privileged() bool {
	return m.Flags&protocol.FlagPrivileged != 0
}

func (m WriteFile) AppendPayload(dst []byte) []byte {
	dst = wire.AppendBytes16(dst, []byte(m.Path))
	dst = append(dst, m.Flags)
	return wire.AppendBytes32(dst, m.Content)
}

// DecodeWriteFile parses path_len:u16, path, flags:u8, content_len:u32,
// content, checking each boundary in order.
func DecodeWriteFile(payload []byte) (WriteFile, error) {
	if len(payload) < minWriteFilePayload {
		return WriteFile{}, invalid(protocol.KindWriteFile, "", wire.ErrShortField)
	}
	r := wire.NewReader(payload)
	path, err := r.Bytes16("path")
	if err != nil {
		return WriteFile{}, invalid(protocol.KindWriteFile, "too short", err)
	}
	flags, err := r.Uint8("flags")
	if err != nil {
		return WriteFile{}, invalid(protocol.KindWriteFile, "too short", err)
	}
	content, err := r.Bytes32("content")
	if err != nil {
		var fe *wire.FieldError
		if errors.As(err, &fe) && fe.Field == "content" {
			return WriteFile{}, invalid(protocol.KindWriteFile, "content truncated", err)
		}
		return WriteFile{}, invalid(protocol.KindWriteFile, "too short", err)
	}
	return WriteFile{Path: text(path), Flags: flags, Content: content}, nil
}

// WriteFileResult reports the outcome of a WriteFile. Error is truncated to
// 65535 bytes on encode.
type WriteFileResult struct {
	Success bool
	Error   string
}

func (WriteFileResult) Kind() protocol.Kind { return protocol.KindWriteFileResult }
func (WriteFileResult) sealed()             {}

func (m WriteFileResult) AppendPayload(dst []byte) []byte {
	var ok byte
	if m.Success {
		ok = 1
	}
	dst = append(dst, ok)
	return wire.AppendBytes16(dst, wire.Truncate16([]byte(m.Error)))
}

func DecodeWriteFileResult(payload []byte) (WriteFileResult, error) {
	r := wire.NewReader(payload)
	ok, err := r.Uint8("success")
	if err != nil {
		return WriteFileResult{}, invalid(protocol.KindWriteFileResult, "too short", err)
	}
	msg, err := r.Bytes16("error")
	if err != nil {
		return WriteFileResult{}, invalid(protocol.KindWriteFileResult, "too short", err)
	}
	return WriteFileResult{Success: ok != 0, Error: string(msg)}, nil
}
