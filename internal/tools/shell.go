package tools

import (
	"context"
	"time"
)

const (
	DefaultShell = "/bin/sh"

	ExitTimeout int32 = 124
)

// Shell runs commands through `<Path> -c`.
type Shell struct {
	Path   string
	Runner CommandRunner
}

func NewShell(path string, waitDelay time.Duration) Shell {
	return Shell{Path: path, Runner: ExecRunner{WaitDelay: waitDelay}}
}

// Exec runs command with a timeout. A zero timeout expires immediately.
// It reports (124, "", "Timeout") when the timeout fires and
// (1, "", <error>) when the shell could not be started.
func (s Shell) Exec(ctx context.Context, command string, timeout time.Duration) ([]byte, []byte, int32) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := s.runner().Run(ctx, Invocation{Name: s.path(), Args: []string{"-c", command}})
	switch {
	case res.TimedOut:
		return []byte{}, []byte("Timeout"), ExitTimeout
	case res.Err != nil:
		return []byte{}, []byte(res.Err.Error()), exitFailure
	}
	return res.Stdout, res.Stderr, res.ExitCode
}

func (s Shell) path() string {
	if s.Path == "" {
		return DefaultShell
	}
	return s.Path
}

func (s Shell) runner() CommandRunner {
	if s.Runner == nil {
		return ExecRunner{}
	}
	return s.Runner
}
