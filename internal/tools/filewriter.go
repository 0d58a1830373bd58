package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultSudoCommand       = "sudo"
	DefaultPrivilegedTimeout = 30 * time.Second
)

var ErrEmptyPath = errors.New("tools: empty path")

// FileWriter writes guest files. Privileged writes go through
// `<SudoCommand> tee <path>`; plain writes create missing parents first.
type FileWriter struct {
	SudoCommand       string
	PrivilegedTimeout time.Duration
	Runner            CommandRunner
}

func NewFileWriter(sudo string, timeout time.Duration, waitDelay time.Duration) FileWriter {
	return FileWriter{
		SudoCommand:       sudo,
		PrivilegedTimeout: timeout,
		Runner:            ExecRunner{WaitDelay: waitDelay},
	}
}

func (w FileWriter) WriteFile(ctx context.Context, path string, privileged bool, content []byte) error {
	if path == "" {
		return ErrEmptyPath
	}
	if privileged {
		return w.writePrivileged(ctx, path, content)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o777); err != nil {
			return err
		}
	}
	return os.WriteFile(path, content, 0o666)
}

func (w FileWriter) writePrivileged(ctx context.Context, path string, content []byte) error {
	timeout := w.PrivilegedTimeout
	if timeout <= 0 {
		timeout = DefaultPrivilegedTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if content == nil {
		content = []byte{}
	}
	res := w.runner().Run(ctx, Invocation{
		Name:          w.sudo(),
		Args:          []string{"tee", path},
		Stdin:         content,
		DiscardStdout: true,
	})
	if res.Err != nil {
		return fmt.Errorf("sudo tee failed: %w", res.Err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("sudo tee failed: %s", res.Stderr)
	}
	return nil
}

func (w FileWriter) sudo() string {
	if w.SudoCommand == "" {
		return DefaultSudoCommand
	}
	return w.SudoCommand
}

func (w FileWriter) runner() CommandRunner {
	if w.Runner == nil {
		return ExecRunner{}
	}
	return w.Runner
}
