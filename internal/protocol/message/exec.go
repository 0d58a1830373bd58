package message

import (
	"encoding/binary"
	"time"

	"github.com/danmuck/vsockguest/internal/protocol"
	"github.com/danmuck/vsockguest/internal/protocol/wire"
)

const (
	// ExitTimeout is reported when a command outlives its timeout.
	ExitTimeout int32 = 124
	// ExitFailure is reported for local validation and launch failures.
	ExitFailure int32 = 1
)

// Exec asks the guest to run Command through a shell.
type Exec struct {
	TimeoutMS uint32
	Command   string
}

func (Exec) Kind() protocol.Kind { return protocol.KindExec }
func (Exec) sealed()             {}

func (m Exec) AppendPayload(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, m.TimeoutMS)
	return wire.AppendBytes32(dst, []byte(m.Command))
}

// Timeout returns TimeoutMS as a duration.
func (m Exec) Timeout() time.Duration {
	return time.Duration(m.TimeoutMS) * time.Millisecond
}

// DecodeExec parses timeout_ms:u32, cmd_len:u32, command.
func DecodeExec(payload []byte) (Exec, error) {
	r := wire.NewReader(payload)
	timeout, err := r.Uint32("timeout_ms")
	if err != nil {
		return Exec{}, invalid(protocol.KindExec, "", err)
	}
	cmd, err := r.Bytes32("command")
	if err != nil {
		return Exec{}, invalid(protocol.KindExec, "", err)
	}
	return Exec{TimeoutMS: timeout, Command: text(cmd)}, nil
}

// ExecResult reports a finished command.
type ExecResult struct {
	ExitCode int32
	Stdout   []byte
	Stderr   []byte
}

func (ExecResult) Kind() protocol.Kind { return protocol.KindExecResult }
func (ExecResult) sealed()             {}

func (m ExecResult) AppendPayload(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(m.ExitCode))
	dst = wire.AppendBytes32(dst, m.Stdout)
	return wire.AppendBytes32(dst, m.Stderr)
}

func DecodeExecResult(payload []byte) (ExecResult, error) {
	r := wire.NewReader(payload)
	code, err := r.Int32("exit_code")
	if err != nil {
		return ExecResult{}, invalid(protocol.KindExecResult, "too short", err)
	}
	stdout, err := r.Bytes32("stdout")
	if err != nil {
		return ExecResult{}, invalid(protocol.KindExecResult, "stdout truncated", err)
	}
	stderr, err := r.Bytes32("stderr")
	if err != nil {
		return ExecResult{}, invalid(protocol.KindExecResult, "stderr truncated", err)
	}
	return ExecResult{ExitCode: code, Stdout: stdout, Stderr: stderr}, nil
}

// TimeoutResult is the sentinel reply for a command that hit its timeout.
func TimeoutResult() ExecResult {
	return ExecResult{ExitCode: ExitTimeout, Stdout: []byte{}, Stderr: []byte("Timeout")}
}

// FailureResult reports a command that could not be run at all.
func FailureResult(msg string) ExecResult {
	return ExecResult{ExitCode: ExitFailure, Stdout: []byte{}, Stderr: []byte(msg)}
}
