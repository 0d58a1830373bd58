package guest

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/danmuck/vsockguest/internal/logging"
	"github.com/danmuck/vsockguest/internal/protocol"
	"github.com/danmuck/vsockguest/internal/protocol/frame"
	"github.com/danmuck/vsockguest/internal/protocol/message"
	"github.com/rs/zerolog"
)

// commandPreviewLen caps how much of an exec command is logged.
const commandPreviewLen = 100

// Executor runs a shell command. It reports (124, "", "Timeout") when the
// timeout fires and (1, "", <message>) when the command cannot be run.
type Executor interface {
	Exec(ctx context.Context, command string, timeout time.Duration) (stdout, stderr []byte, exitCode int32)
}

type ExecutorFunc func(ctx context.Context, command string, timeout time.Duration) ([]byte, []byte, int32)

func (f ExecutorFunc) Exec(ctx context.Context, command string, timeout time.Duration) ([]byte, []byte, int32) {
	return f(ctx, command, timeout)
}

// FileWriter writes content to path, creating missing parents for
// non-privileged writes.
type FileWriter interface {
	WriteFile(ctx context.Context, path string, privileged bool, content []byte) error
}

type FileWriterFunc func(ctx context.Context, path string, privileged bool, content []byte) error

func (f FileWriterFunc) WriteFile(ctx context.Context, path string, privileged bool, content []byte) error {
	return f(ctx, path, privileged, content)
}

// Dispatcher handles frames synchronously, one at a time.
type Dispatcher struct {
	exec  Executor
	files FileWriter
	log   zerolog.Logger
}

func NewDispatcher(exec Executor, files FileWriter) *Dispatcher {
	return &Dispatcher{
		exec:  exec,
		files: files,
		log:   logging.Component("dispatch"),
	}
}

// Dispatch returns the response for f. It always returns a message.
func (d *Dispatcher) Dispatch(ctx context.Context, f frame.Frame) message.Message {
	kind := f.Kind()
	d.log.Info().Str("type", kind.Hex()).Uint32("seq", f.Seq).Msg("received")

	switch kind {
	case protocol.KindPing:
		return message.Pong{}
	case protocol.KindExec:
		return d.handleExec(ctx, f.Payload)
	case protocol.KindWriteFile:
		return d.handleWriteFile(ctx, f.Payload)
	default:
		return UnknownKind(kind)
	}
}

// UnknownKind is the reply to any kind the guest does not accept,
// including guest->host kinds echoed back by the host.
func UnknownKind(kind protocol.Kind) message.Error {
	return message.Error{Message: fmt.Sprintf("Unknown message type: %s", kind.Hex())}
}

func (d *Dispatcher) handleExec(ctx context.Context, payload []byte) message.ExecResult {
	req, err := message.DecodeExec(payload)
	if err != nil {
		d.log.Warn().Err(err).Msg("exec rejected")
		return message.FailureResult(err.Error())
	}
	d.log.Info().Str("command", preview(req.Command)).Uint32("timeout_ms", req.TimeoutMS).Msg("exec")

	stdout, stderr, code := d.exec.Exec(ctx, req.Command, req.Timeout())
	if stdout == nil {
		stdout = []byte{}
	}
	if stderr == nil {
		stderr = []byte{}
	}
	return message.ExecResult{ExitCode: code, Stdout: stdout, Stderr: stderr}
}

func (d *Dispatcher) handleWriteFile(ctx context.Context, payload []byte) message.WriteFileResult {
	req, err := message.DecodeWriteFile(payload)
	if err != nil {
		d.log.Warn().Err(err).Msg("write_file rejected")
		return message.WriteFileResult{Success: false, Error: err.Error()}
	}
	d.log.Info().
		Str("path", req.Path).
		Int("size", len(req.Content)).
		Bool("privileged", req.Privileged()).
		Msg("write_file")

	if err := d.files.WriteFile(ctx, req.Path, req.Privileged(), req.Content); err != nil {
		d.log.Error().Err(err).Str("path", req.Path).Msg("write_file failed")
		return message.WriteFileResult{Success: false, Error: err.Error()}
	}
	return message.WriteFileResult{Success: true}
}

func preview(command string) string {
	if utf8.RuneCountInString(command) <= commandPreviewLen {
		return command
	}
	runes := []rune(command)
	return string(runes[:commandPreviewLen]) + "..."
}
