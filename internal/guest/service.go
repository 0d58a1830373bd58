package guest

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/vsockguest/internal/logging"
	"github.com/danmuck/vsockguest/internal/protocol/session"
	"github.com/danmuck/vsockguest/internal/tools"
	"github.com/danmuck/vsockguest/internal/transport"
	"github.com/rs/zerolog"
)

// ToolsConfig configures the default Executor and FileWriter.
type ToolsConfig struct {
	Shell                  string
	SudoCommand            string
	PrivilegedWriteTimeout time.Duration
	ExecWaitDelay          time.Duration
}

// ServiceConfig configures the guest agent runtime.
type ServiceConfig struct {
	Transport transport.Config
	Session   session.Config
	Tools     ToolsConfig
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Transport: transport.DefaultConfig(),
		Session:   session.DefaultConfig(),
		Tools: ToolsConfig{
			Shell:                  tools.DefaultShell,
			SudoCommand:            tools.DefaultSudoCommand,
			PrivilegedWriteTimeout: tools.DefaultPrivilegedTimeout,
			ExecWaitDelay:          2 * time.Second,
		},
	}
}

// Service runs one guest session as a standalone process.
type Service struct {
	cfg        ServiceConfig
	dispatcher *Dispatcher
	dialer     session.Dialer
	log        zerolog.Logger
}

// NewService uses the default config with shell and filesystem tools.
func NewService() *Service {
	return NewServiceWithConfig(DefaultServiceConfig())
}

// NewServiceWithConfig builds the shell Executor and FileWriter from cfg.
func NewServiceWithConfig(cfg ServiceConfig) *Service {
	shell := tools.NewShell(cfg.Tools.Shell, cfg.Tools.ExecWaitDelay)
	files := tools.NewFileWriter(cfg.Tools.SudoCommand, cfg.Tools.PrivilegedWriteTimeout, cfg.Tools.ExecWaitDelay)
	return NewServiceWithTools(cfg, shell, files)
}

// NewServiceWithTools injects the side-effect collaborators.
func NewServiceWithTools(cfg ServiceConfig, exec Executor, files FileWriter) *Service {
	cfg.Session = cfg.Session.WithDefaults()
	return &Service{
		cfg:        cfg,
		dispatcher: NewDispatcher(exec, files),
		log:        logging.Component("guest"),
	}
}

// WithDialer replaces the configured transport.
func (s *Service) WithDialer(d session.Dialer) *Service {
	s.dialer = d
	return s
}

func (s *Service) Config() ServiceConfig {
	return s.cfg
}

func (s *Service) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// Run blocks until the session ends or SIGINT/SIGTERM arrives.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext runs a single session. Cancellation is a clean stop.
func (s *Service) RunContext(ctx context.Context) error {
	dialer, err := s.resolveDialer()
	if err != nil {
		return err
	}
	sess, err := session.New(s.cfg.Session, dialer, s.dispatcher)
	if err != nil {
		return err
	}

	s.log.Info().Str("target", s.cfg.Transport.Target()).Msg("connecting to host")
	err = sess.Run(ctx)
	if errors.Is(err, context.Canceled) {
		s.log.Info().Msg("interrupted")
		return nil
	}
	return err
}

func (s *Service) resolveDialer() (session.Dialer, error) {
	if s.dialer != nil {
		return s.dialer, nil
	}
	return transport.NewDialer(s.cfg.Transport)
}
