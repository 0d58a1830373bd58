package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestReaderFieldsInOrder(t *testing.T) {
	var p []byte
	p = append(p, 0x7F)
	p = append(p, 0x01, 0x02)
	p = append(p, 0xFF, 0xFF, 0xFF, 0xFE)
	p = AppendBytes16(p, []byte("path"))
	p = AppendBytes32(p, []byte("content"))

	r := NewReader(p)
	if v, err := r.Uint8("u8"); err != nil || v != 0x7F {
		t.Fatalf("u8: v=%d err=%v", v, err)
	}
	if v, err := r.Uint16("u16"); err != nil || v != 0x0102 {
		t.Fatalf("u16: v=%d err=%v", v, err)
	}
	if v, err := r.Int32("i32"); err != nil || v != -2 {
		t.Fatalf("i32: v=%d err=%v", v, err)
	}
	if v, err := r.Bytes16("path"); err != nil || string(v) != "path" {
		t.Fatalf("bytes16: v=%q err=%v", v, err)
	}
	if v, err := r.Bytes32("content"); err != nil || string(v) != "content" {
		t.Fatalf("bytes32: v=%q err=%v", v, err)
	}
	if r.Remaining() != 0 {
		t.Fatalf("expected payload fully consumed, %d remain", r.Remaining())
	}
}

func TestReaderShortFieldIsDeterministic(t *testing.T) {
	r := NewReader([]byte{0x00})
	_, err := r.Uint16("path_len")
	if !errors.Is(err, ErrShortField) {
		t.Fatalf("expected ErrShortField, got %v", err)
	}
	var fe *FieldError
	if !errors.As(err, &fe) || fe.Field != "path_len" || fe.Need != 2 || fe.Remain != 1 {
		t.Fatalf("unexpected field error: %+v", fe)
	}
	if r.Remaining() != 1 {
		t.Fatalf("failed read must not consume, %d remain", r.Remaining())
	}
}

func TestReaderBytes32DeclaredPastEnd(t *testing.T) {
	// len=0xFFFFFFFF, value only 2 bytes
	r := NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF, 'a', 'b'})
	_, err := r.Bytes32("content")
	var fe *FieldError
	if !errors.As(err, &fe) || fe.Field != "content" || fe.Need != 0xFFFFFFFF {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBytesReturnsCopy(t *testing.T) {
	src := []byte("abc")
	r := NewReader(src)
	out, err := r.Bytes("v", 3)
	if err != nil {
		t.Fatalf("bytes: %v", err)
	}
	src[0] = 'z'
	if !bytes.Equal(out, []byte("abc")) {
		t.Fatalf("expected defensive copy, got %q", out)
	}
}

func TestTruncate16(t *testing.T) {
	long := bytes.Repeat([]byte{'e'}, 70000)
	if got := len(Truncate16(long)); got != 65535 {
		t.Fatalf("truncated length = %d", got)
	}
	short := []byte("ok")
	if got := Truncate16(short); !bytes.Equal(got, short) {
		t.Fatalf("short value changed: %q", got)
	}
}
