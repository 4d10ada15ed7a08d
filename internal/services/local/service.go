// Package local runs commands on the machine devicectl itself runs on.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/fgeck/devicectl/internal/models"
	"github.com/rs/zerolog"
)

// Service defines the interface for local command execution.
type Service interface {
	Exec(ctx context.Context, command string) (*models.ExecResult, error)
	Interactive(ctx context.Context, command string, term models.Terminal) (*models.ExecResult, error)
	Copy(ctx context.Context, src, dst string) (*models.CopyResult, error)
}

// CommandExecutor allows mocking exec.Command in tests.
type CommandExecutor interface {
	Execute(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
	Attach(ctx context.Context, term models.Terminal, name string, args ...string) error
}

// DefaultExecutor is the default command executor using os/exec.
type DefaultExecutor struct{}

// Execute runs a command and returns its captured output.
func (e *DefaultExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Attach runs a command wired to the given terminal streams. When a stream is
// an *os.File the child inherits the descriptor directly.
func (e *DefaultExecutor) Attach(ctx context.Context, term models.Terminal, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = term.In
	cmd.Stdout = term.Out
	cmd.Stderr = term.Err
	return cmd.Run()
}

// Impl implements the local Service interface.
type Impl struct {
	executor CommandExecutor
	logger   zerolog.Logger
}

// New creates a new local runner.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		executor: &DefaultExecutor{},
		logger:   logger,
	}
}

// NewWithExecutor creates a new local runner with a custom executor (for testing).
func NewWithExecutor(logger zerolog.Logger, executor CommandExecutor) *Impl {
	return &Impl{
		executor: executor,
		logger:   logger,
	}
}

// split breaks a command line on whitespace. Quotes are not interpreted.
func split(command string) (string, []string, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("%w: empty command", models.ErrLocalCommand)
	}
	return fields[0], fields[1:], nil
}

// Exec runs command, waits for it and returns its stdout. A non-zero exit or
// anything written to stderr fails the command.
func (s *Impl) Exec(ctx context.Context, command string) (*models.ExecResult, error) {
	result := &models.ExecResult{}

	name, args, err := split(command)
	if err != nil {
		result.Error = err
		return result, nil
	}

	s.logger.Debug().Str("command", command).Msg("executing local command")

	stdout, stderr, err := s.executor.Execute(ctx, name, args...)
	result.CommandRun = true
	result.Output = string(stdout)
	result.Stderr = string(stderr)

	if err != nil {
		result.ExitStatus = exitStatus(err)
		result.Error = fmt.Errorf("%w: %s: %w", models.ErrLocalCommand, command, withStderr(err, result.Stderr))
		return result, nil
	}
	if len(stderr) > 0 {
		result.Error = fmt.Errorf("%w: %s: %s", models.ErrLocalCommand, command, strings.TrimSpace(result.Stderr))
		return result, nil
	}

	return result, nil
}

// Interactive runs command attached to term. Output is neither captured nor
// filtered; the call returns once the child exits.
func (s *Impl) Interactive(ctx context.Context, command string, term models.Terminal) (*models.ExecResult, error) {
	result := &models.ExecResult{}

	name, args, err := split(command)
	if err != nil {
		result.Error = err
		return result, nil
	}

	s.logger.Debug().Str("command", command).Msg("starting local interactive command")

	err = s.executor.Attach(ctx, term, name, args...)
	result.CommandRun = true
	if err != nil {
		result.ExitStatus = exitStatus(err)
		result.Error = fmt.Errorf("%w: %s: %w", models.ErrLocalCommand, command, err)
	}

	s.logger.Debug().Str("command", command).Int("exit_status", result.ExitStatus).Msg("local interactive command finished")

	return result, nil
}

// Copy copies a file between two local paths.
func (s *Impl) Copy(ctx context.Context, src, dst string) (*models.CopyResult, error) {
	result := &models.CopyResult{Source: src, Destination: dst}

	if err := ctx.Err(); err != nil {
		result.Error = err
		return result, nil
	}

	n, err := copyFile(src, dst)
	result.Bytes = n
	if err != nil {
		result.Error = fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
		return result, nil
	}

	s.logger.Info().Str("source", src).Str("destination", dst).Int64("bytes", n).Msg("file copied")

	return result, nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return 0, err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func exitStatus(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func withStderr(err error, stderr string) error {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return err
	}
	return fmt.Errorf("%w, stderr: %s", err, stderr)
}
