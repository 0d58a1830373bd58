// Package transport opens the guest's stream to the host, over AF_VSOCK in
// production or a unix socket for local testing.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/mdlayher/vsock"
)

type Mode string

const (
	ModeVsock Mode = "vsock"
	ModeUnix  Mode = "unix"
)

const (
	// DefaultCID addresses the hypervisor host.
	DefaultCID  uint32 = vsock.Host
	DefaultPort uint32 = 1000
)

var (
	ErrUnknownMode       = errors.New("transport: unknown mode")
	ErrUnixPathRequired  = errors.New("transport: unix socket path required")
	ErrInvalidVsockRoute = errors.New("transport: invalid vsock cid/port")
)

// Config selects and addresses the transport.
type Config struct {
	Mode           Mode
	CID            uint32
	Port           uint32
	UnixSocket     string
	ConnectTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Mode:           ModeVsock,
		CID:            DefaultCID,
		Port:           DefaultPort,
		ConnectTimeout: 10 * time.Second,
	}
}

// NormalizeMode folds case and whitespace; empty means vsock.
func NormalizeMode(m Mode) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(string(m)))) {
	case "", ModeVsock:
		return ModeVsock
	case ModeUnix:
		return ModeUnix
	default:
		return m
	}
}

func (c Config) Validate() error {
	switch NormalizeMode(c.Mode) {
	case ModeVsock:
		if c.Port == 0 {
			return fmt.Errorf("%w: port=0", ErrInvalidVsockRoute)
		}
		return nil
	case ModeUnix:
		if strings.TrimSpace(c.UnixSocket) == "" {
			return ErrUnixPathRequired
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, c.Mode)
	}
}

// Target renders the dial address for logs.
func (c Config) Target() string {
	if NormalizeMode(c.Mode) == ModeUnix {
		return "unix:" + c.UnixSocket
	}
	return fmt.Sprintf("vsock:%d:%d", c.CID, c.Port)
}

// Dialer dials the configured transport. It satisfies session.Dialer.
type Dialer struct {
	cfg Config
}

func NewDialer(cfg Config) (*Dialer, error) {
	cfg.Mode = NormalizeMode(cfg.Mode)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Dialer{cfg: cfg}, nil
}

func (d *Dialer) Config() Config {
	return d.cfg
}

func (d *Dialer) Dial(ctx context.Context) (net.Conn, error) {
	if d.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.ConnectTimeout)
		defer cancel()
	}
	switch d.cfg.Mode {
	case ModeUnix:
		var nd net.Dialer
		return nd.DialContext(ctx, "unix", d.cfg.UnixSocket)
	case ModeVsock:
		return dialVsock(ctx, d.cfg.CID, d.cfg.Port)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, d.cfg.Mode)
	}
}

type dialResult struct {
	conn net.Conn
	err  error
}

// dialVsock bounds the blocking vsock connect by ctx. A connection that
// completes after ctx ends is closed.
func dialVsock(ctx context.Context, cid, port uint32) (net.Conn, error) {
	done := make(chan dialResult, 1)
	go func() {
		conn, err := vsock.Dial(cid, port, nil)
		if err != nil {
			done <- dialResult{err: err}
			return
		}
		done <- dialResult{conn: conn}
	}()
	select {
	case res := <-done:
		return res.conn, res.err
	case <-ctx.Done():
		go func() {
			if res := <-done; res.conn != nil {
				_ = res.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}
