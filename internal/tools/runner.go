package tools

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// Invocation describes one process launch.
type Invocation struct {
	Name  string
	Args  []string
	Stdin []byte
	// DiscardStdout drops stdout instead of buffering it.
	DiscardStdout bool
}

// Result is the outcome of an Invocation. Err is nil whenever the process
// ran to completion, whatever its exit status; it is set when the process
// could not be started or was stopped by ctx.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int32
	TimedOut bool
	Err      error
}

// CommandRunner abstracts process execution for the guest tools.
type CommandRunner interface {
	Run(ctx context.Context, inv Invocation) Result
}

// ExecRunner executes commands on the local host. Each command gets its own
// process group, killed as a whole when ctx ends.
type ExecRunner struct {
	// WaitDelay bounds how long Run waits for output pipes after the kill.
	WaitDelay time.Duration
}

const (
	exitNotFound int32 = 127
	exitFailure  int32 = 1
)

func (r ExecRunner) Run(ctx context.Context, inv Invocation) Result {
	cmd := exec.CommandContext(ctx, inv.Name, inv.Args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	if !inv.DiscardStdout {
		cmd.Stdout = &stdout
	}
	cmd.Stderr = &stderr
	if inv.Stdin != nil {
		cmd.Stdin = bytes.NewReader(inv.Stdin)
	}
	setProcessGroup(cmd)
	cmd.WaitDelay = r.WaitDelay

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if res.Stdout == nil {
		res.Stdout = []byte{}
	}
	if res.Stderr == nil {
		res.Stderr = []byte{}
	}
	if err == nil {
		return res
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = -1
		res.TimedOut = errors.Is(ctxErr, context.DeadlineExceeded)
		res.Err = ctxErr
		return res
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitCode(exitErr.ProcessState)
		return res
	}

	// The process exited but a background child still held its output
	// pipes past WaitDelay.
	if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil {
		res.ExitCode = exitCode(cmd.ProcessState)
		return res
	}

	res.ExitCode = exitFailure
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		res.ExitCode = exitNotFound
	}
	res.Err = err
	return res
}

// exitCode reports -signal for a signalled child.
func exitCode(state *os.ProcessState) int32 {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int32(ws.Signal())
	}
	return int32(state.ExitCode())
}
