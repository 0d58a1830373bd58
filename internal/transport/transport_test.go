package transport

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/vsockguest/internal/testutil/testlog"
)

func TestDefaultConfigTargetsHost(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.CID != 2 || cfg.Port != 1000 || cfg.Mode != ModeVsock {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Target() != "vsock:2:1000" {
		t.Fatalf("target=%q", cfg.Target())
	}
}

func TestValidate(t *testing.T) {
	if err := (Config{Mode: "tcp"}).Validate(); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
	if err := (Config{Mode: ModeUnix}).Validate(); !errors.Is(err, ErrUnixPathRequired) {
		t.Fatalf("expected ErrUnixPathRequired, got %v", err)
	}
	if err := (Config{Mode: " VSOCK "}).Validate(); !errors.Is(err, ErrInvalidVsockRoute) {
		t.Fatalf("expected ErrInvalidVsockRoute, got %v", err)
	}
	if _, err := NewDialer(Config{Mode: "", CID: 2, Port: 1000}); err != nil {
		t.Fatalf("empty mode should default to vsock: %v", err)
	}
}

func TestDialUnix(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "host.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	d, err := NewDialer(Config{Mode: ModeUnix, UnixSocket: path, ConnectTimeout: time.Second})
	if err != nil {
		t.Fatalf("new dialer: %v", err)
	}
	conn, err := d.Dial(context.Background())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	select {
	case c := <-accepted:
		_ = c.Close()
	case <-time.After(2 * time.Second):
		t.Fatalf("listener never accepted")
	}
}

func TestDialUnixMissingSocket(t *testing.T) {
	testlog.Start(t)
	d, err := NewDialer(Config{Mode: ModeUnix, UnixSocket: filepath.Join(t.TempDir(), "absent.sock")})
	if err != nil {
		t.Fatalf("new dialer: %v", err)
	}
	if _, err := d.Dial(context.Background()); err == nil {
		t.Fatalf("expected dial error")
	}
}
