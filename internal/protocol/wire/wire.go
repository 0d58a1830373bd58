package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortField reports a field that runs past the end of the payload.
var ErrShortField = errors.New("wire: short field")

// FieldError names the field that could not be read.
type FieldError struct {
	Field  string
	Need   uint64
	Remain int
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("wire: field %s needs %d bytes, %d remain", e.Field, e.Need, e.Remain)
}

func (e *FieldError) Unwrap() error {
	return ErrShortField
}

// Reader consumes big-endian fields from a payload, checking every
// boundary before slicing.
type Reader struct {
	buf []byte
	off int
}

func NewReader(payload []byte) *Reader {
	return &Reader{buf: payload}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

func (r *Reader) take(field string, n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, &FieldError{Field: field, Need: uint64(max(n, 0)), Remain: r.Remaining()}
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) Uint8(field string) (uint8, error) {
	b, err := r.take(field, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) Uint16(field string) (uint16, error) {
	b, err := r.take(field, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) Uint32(field string) (uint32, error) {
	b, err := r.take(field, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) Int32(field string) (int32, error) {
	v, err := r.Uint32(field)
	return int32(v), err
}

// Bytes returns a copy of the next n bytes.
func (r *Reader) Bytes(field string, n int) ([]byte, error) {
	b, err := r.take(field, n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// Bytes16 reads a u16 length followed by that many bytes.
func (r *Reader) Bytes16(field string) ([]byte, error) {
	n, err := r.Uint16(field + "_len")
	if err != nil {
		return nil, err
	}
	return r.Bytes(field, int(n))
}

// Bytes32 reads a u32 length followed by that many bytes.
func (r *Reader) Bytes32(field string) ([]byte, error) {
	n, err := r.Uint32(field + "_len")
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(r.Remaining()) {
		return nil, &FieldError{Field: field, Need: uint64(n), Remain: r.Remaining()}
	}
	return r.Bytes(field, int(n))
}

// AppendBytes16 appends a u16 length and b. Callers bound len(b).
func AppendBytes16(dst, b []byte) []byte {
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(b)))
	return append(dst, b...)
}

// AppendBytes32 appends a u32 length and b.
func AppendBytes32(dst, b []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(b)))
	return append(dst, b...)
}

// Truncate16 clips b to what a u16 length can describe.
func Truncate16(b []byte) []byte {
	if len(b) > 0xFFFF {
		return b[:0xFFFF]
	}
	return b
}
