package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/danmuck/vsockguest/internal/logging"
	"github.com/danmuck/vsockguest/internal/protocol"
	"github.com/danmuck/vsockguest/internal/protocol/frame"
	"github.com/danmuck/vsockguest/internal/protocol/message"
	"github.com/rs/zerolog"
)

var (
	ErrDialerRequired  = errors.New("session: dialer required")
	ErrHandlerRequired = errors.New("session: handler required")
)

// State is the connection lifecycle phase.
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Dialer opens the stream to the host.
type Dialer interface {
	Dial(ctx context.Context) (net.Conn, error)
}

type DialFunc func(ctx context.Context) (net.Conn, error)

func (f DialFunc) Dial(ctx context.Context) (net.Conn, error) {
	return f(ctx)
}

// Handler turns one inbound frame into at most one response. A nil
// response writes nothing.
type Handler interface {
	Dispatch(ctx context.Context, f frame.Frame) message.Message
}

type HandlerFunc func(ctx context.Context, f frame.Frame) message.Message

func (f HandlerFunc) Dispatch(ctx context.Context, fr frame.Frame) message.Message {
	return f(ctx, fr)
}

// Session is one connect-serve-close cycle. It is not reusable.
type Session struct {
	cfg     Config
	dialer  Dialer
	handler Handler
	log     zerolog.Logger
	state   atomic.Int32
	stats   Stats
}

func New(cfg Config, dialer Dialer, handler Handler) (*Session, error) {
	if dialer == nil {
		return nil, ErrDialerRequired
	}
	if handler == nil {
		return nil, ErrHandlerRequired
	}
	return &Session{
		cfg:     cfg.WithDefaults(),
		dialer:  dialer,
		handler: handler,
		log:     logging.Component("session"),
	}, nil
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) Stats() StatsSnapshot {
	return s.stats.Snapshot()
}

// Run connects, announces ready and serves until EOF, a framing violation
// or ctx cancellation. A clean peer close returns nil; cancellation returns
// ctx.Err().
func (s *Session) Run(ctx context.Context) error {
	defer s.close()

	conn, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	s.state.Store(int32(StateActive))
	s.log.Info().Str("remote", addrString(conn.RemoteAddr())).Msg("connected to host")

	if err := s.send(conn, protocol.ReadySeq, message.Ready{}); err != nil {
		return s.ioErr(ctx, "send ready", err)
	}
	s.log.Info().Msg("sent ready")
	return s.serve(ctx, conn)
}

func (s *Session) serve(ctx context.Context, conn net.Conn) error {
	buf := make([]byte, s.cfg.ReadBufferSize)
	var dec frame.Decoder
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			s.stats.bytesIn.Add(uint64(n))
			frames, ferr := dec.Feed(buf[:n])
			if ferr != nil {
				s.log.Error().Err(ferr).Msg("protocol violation, closing")
				return fmt.Errorf("session: %w", ferr)
			}
			for _, f := range frames {
				s.stats.framesIn.Add(1)
				resp := s.handler.Dispatch(ctx, f)
				if resp == nil {
					continue
				}
				if resp.Kind() == protocol.KindError {
					s.stats.errorReplies.Add(1)
				}
				if err := s.send(conn, f.Seq, resp); err != nil {
					return s.ioErr(ctx, "write response", err)
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.log.Info().Msg("host disconnected")
				return nil
			}
			return s.ioErr(ctx, "read", err)
		}
	}
}

func (s *Session) send(conn net.Conn, seq uint32, m message.Message) error {
	raw := message.Encode(seq, m)
	if s.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	n, err := conn.Write(raw)
	s.stats.bytesOut.Add(uint64(n))
	if err != nil {
		return err
	}
	s.stats.framesOut.Add(1)
	return nil
}

func (s *Session) connect(ctx context.Context) (net.Conn, error) {
	s.state.Store(int32(StateConnecting))
	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to connect")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("session: dial: %w", err)
	}
	return conn, nil
}

// ioErr prefers the cancellation cause over the closed-conn error it
// produces.
func (s *Session) ioErr(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("session: %s: %w", op, err)
}

func (s *Session) close() {
	s.state.Store(int32(StateClosed))
	st := s.stats.Snapshot()
	s.log.Info().
		Uint64("frames_in", st.FramesIn).
		Uint64("frames_out", st.FramesOut).
		Uint64("bytes_in", st.BytesIn).
		Uint64("bytes_out", st.BytesOut).
		Uint64("error_replies", st.ErrorReplies).
		Msg("session closed")
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
