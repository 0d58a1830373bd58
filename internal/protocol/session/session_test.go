package session

import (
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/vsockguest/internal/protocol"
	"github.com/danmuck/vsockguest/internal/protocol/frame"
	"github.com/danmuck/vsockguest/internal/protocol/message"
	"github.com/danmuck/vsockguest/internal/testutil/testlog"
)

type hostPeer struct {
	t       *testing.T
	conn    net.Conn
	dec     frame.Decoder
	pending []frame.Frame
}

func (p *hostPeer) next() frame.Frame {
	p.t.Helper()
	buf := make([]byte, 4096)
	for len(p.pending) == 0 {
		_ = p.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, err := p.conn.Read(buf)
		if n > 0 {
			frames, ferr := p.dec.Feed(buf[:n])
			if ferr != nil {
				p.t.Fatalf("host decode: %v", ferr)
			}
			p.pending = append(p.pending, frames...)
		}
		if err != nil && len(p.pending) == 0 {
			p.t.Fatalf("host read: %v", err)
		}
	}
	f := p.pending[0]
	p.pending = p.pending[1:]
	return f
}

func (p *hostPeer) send(raw []byte) {
	p.t.Helper()
	_ = p.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if _, err := p.conn.Write(raw); err != nil {
		p.t.Fatalf("host write: %v", err)
	}
}

func echoHandler() Handler {
	return HandlerFunc(func(_ context.Context, f frame.Frame) message.Message {
		if f.Kind() == protocol.KindPing {
			return message.Pong{}
		}
		return message.Error{Message: "Unknown message type: " + f.Kind().Hex()}
	})
}

func startSession(t *testing.T, cfg Config, h Handler) (*Session, *hostPeer, <-chan error, context.CancelFunc) {
	t.Helper()
	guestEnd, hostEnd := net.Pipe()
	s, err := New(cfg, DialFunc(func(context.Context) (net.Conn, error) {
		return guestEnd, nil
	}), h)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		_ = hostEnd.Close()
	})
	return s, &hostPeer{t: t, conn: hostEnd}, done, cancel
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		t.Fatalf("session did not finish")
		return nil
	}
}

func TestRunSendsReadyThenEchoesPing(t *testing.T) {
	testlog.Start(t)
	s, host, _, _ := startSession(t, DefaultConfig(), echoHandler())

	ready := host.next()
	if ready.Kind() != protocol.KindReady || ready.Seq != 0 || len(ready.Payload) != 0 {
		t.Fatalf("expected ready seq=0, got %+v", ready)
	}
	if s.State() != StateActive {
		t.Fatalf("state=%s", s.State())
	}

	host.send(message.Encode(42, message.Ping{}))
	pong := host.next()
	if pong.Kind() != protocol.KindPong || pong.Seq != 42 {
		t.Fatalf("expected pong seq=42, got %+v", pong)
	}
}

func TestRunPreservesRequestOrder(t *testing.T) {
	testlog.Start(t)
	_, host, _, _ := startSession(t, DefaultConfig(), echoHandler())
	host.next()

	var batch []byte
	batch = append(batch, message.Encode(1, message.Ping{})...)
	batch = append(batch, frame.Encode(0x10, 2, nil)...)
	batch = append(batch, message.Encode(3, message.Ping{})...)
	host.send(batch)

	for _, want := range []struct {
		kind protocol.Kind
		seq  uint32
	}{{protocol.KindPong, 1}, {protocol.KindError, 2}, {protocol.KindPong, 3}} {
		got := host.next()
		if got.Kind() != want.kind || got.Seq != want.seq {
			t.Fatalf("got %s/%d want %s/%d", got.Kind(), got.Seq, want.kind, want.seq)
		}
	}
}

func TestRunReassemblesByteChunks(t *testing.T) {
	testlog.Start(t)
	_, host, _, _ := startSession(t, DefaultConfig(), echoHandler())
	host.next()

	raw := message.Encode(9, message.Ping{})
	for i := range raw {
		host.send(raw[i : i+1])
	}
	if got := host.next(); got.Kind() != protocol.KindPong || got.Seq != 9 {
		t.Fatalf("unexpected reply %+v", got)
	}
}

func TestRunSkipsNilResponses(t *testing.T) {
	testlog.Start(t)
	h := HandlerFunc(func(_ context.Context, f frame.Frame) message.Message {
		if f.Seq == 1 {
			return nil
		}
		return message.Pong{}
	})
	_, host, _, _ := startSession(t, DefaultConfig(), h)
	host.next()

	host.send(append(message.Encode(1, message.Ping{}), message.Encode(2, message.Ping{})...))
	if got := host.next(); got.Seq != 2 {
		t.Fatalf("expected only the seq=2 reply, got seq=%d", got.Seq)
	}
}

func TestRunClosesOnFramingViolation(t *testing.T) {
	testlog.Start(t)
	var dispatched atomic.Int32
	h := HandlerFunc(func(context.Context, frame.Frame) message.Message {
		dispatched.Add(1)
		return message.Pong{}
	})
	s, host, done, _ := startSession(t, DefaultConfig(), h)
	host.next()

	bad := append(message.Encode(1, message.Ping{}), 0, 0, 0, 2)
	host.send(bad)

	err := waitRun(t, done)
	if !errors.Is(err, frame.ErrFrameTooSmall) {
		t.Fatalf("expected ErrFrameTooSmall, got %v", err)
	}
	if dispatched.Load() != 0 {
		t.Fatalf("frames from the failing read must not be dispatched")
	}
	if s.State() != StateClosed {
		t.Fatalf("state=%s", s.State())
	}
	_ = host.conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := host.conn.Read(make([]byte, 16)); !errors.Is(err, io.EOF) {
		t.Fatalf("expected closed connection, got %v", err)
	}
}

func TestRunReturnsNilOnPeerClose(t *testing.T) {
	testlog.Start(t)
	s, host, done, _ := startSession(t, DefaultConfig(), echoHandler())
	host.next()
	host.send(message.Encode(5, message.Ping{}))
	host.next()
	_ = host.conn.Close()

	if err := waitRun(t, done); err != nil {
		t.Fatalf("expected clean close, got %v", err)
	}
	st := s.Stats()
	if st.FramesIn != 1 || st.FramesOut != 2 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	testlog.Start(t)
	s, host, done, cancel := startSession(t, DefaultConfig(), echoHandler())
	host.next()
	cancel()

	if err := waitRun(t, done); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if s.State() != StateClosed {
		t.Fatalf("state=%s", s.State())
	}
}

func TestRunDialFailureIsTerminal(t *testing.T) {
	testlog.Start(t)
	dialErr := errors.New("refused")
	var calls int
	s, err := New(DefaultConfig(), DialFunc(func(context.Context) (net.Conn, error) {
		calls++
		return nil, dialErr
	}), echoHandler())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Run(context.Background()); !errors.Is(err, dialErr) {
		t.Fatalf("expected dial error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("dial calls=%d", calls)
	}
	if s.State() != StateClosed {
		t.Fatalf("state=%s", s.State())
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(DefaultConfig(), nil, echoHandler()); !errors.Is(err, ErrDialerRequired) {
		t.Fatalf("expected ErrDialerRequired, got %v", err)
	}
	dial := DialFunc(func(context.Context) (net.Conn, error) { return nil, nil })
	if _, err := New(DefaultConfig(), dial, nil); !errors.Is(err, ErrHandlerRequired) {
		t.Fatalf("expected ErrHandlerRequired, got %v", err)
	}
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{WriteTimeout: -time.Second}.WithDefaults()
	if cfg.ReadBufferSize != DefaultReadBufferSize || cfg.WriteTimeout != 0 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	cfg = Config{ReadBufferSize: 10}.WithDefaults()
	if cfg.ReadBufferSize != 10 {
		t.Fatalf("explicit value overwritten %+v", cfg)
	}
}
