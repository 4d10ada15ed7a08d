package local

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/creack/pty"
	"github.com/fgeck/devicectl/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockExecutor is a mock implementation of CommandExecutor for testing.
type mockExecutor struct {
	executeFunc func(ctx context.Context, name string, args ...string) ([]byte, []byte, error)
	attachFunc  func(ctx context.Context, term models.Terminal, name string, args ...string) error
	calls       [][]string
}

func (m *mockExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	m.calls = append(m.calls, append([]string{name}, args...))
	if m.executeFunc != nil {
		return m.executeFunc(ctx, name, args...)
	}
	return nil, nil, nil
}

func (m *mockExecutor) Attach(ctx context.Context, term models.Terminal, name string, args ...string) error {
	m.calls = append(m.calls, append([]string{name}, args...))
	if m.attachFunc != nil {
		return m.attachFunc(ctx, term, name, args...)
	}
	return nil
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestExec_SplitsOnWhitespace(t *testing.T) {
	executor := &mockExecutor{}
	svc := NewWithExecutor(testLogger(), executor)

	result, err := svc.Exec(context.Background(), "  ls   -la\t/tmp  ")

	require.NoError(t, err)
	assert.Nil(t, result.Error)
	assert.Equal(t, [][]string{{"ls", "-la", "/tmp"}}, executor.calls)
}

func TestExec_QuotesAreNotInterpreted(t *testing.T) {
	executor := &mockExecutor{}
	svc := NewWithExecutor(testLogger(), executor)

	_, err := svc.Exec(context.Background(), `echo "a b"`)

	require.NoError(t, err)
	assert.Equal(t, [][]string{{"echo", `"a`, `b"`}}, executor.calls)
}

func TestExec_EmptyCommand(t *testing.T) {
	executor := &mockExecutor{}
	svc := NewWithExecutor(testLogger(), executor)

	result, err := svc.Exec(context.Background(), "   ")

	require.NoError(t, err)
	assert.ErrorIs(t, result.Error, models.ErrLocalCommand)
	assert.False(t, result.CommandRun)
	assert.Empty(t, executor.calls)
}

func TestExec_StderrFails(t *testing.T) {
	executor := &mockExecutor{
		executeFunc: func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
			return []byte("partial"), []byte("warning: something\n"), nil
		},
	}
	svc := NewWithExecutor(testLogger(), executor)

	result, err := svc.Exec(context.Background(), "tool run")

	require.NoError(t, err)
	assert.ErrorIs(t, result.Error, models.ErrLocalCommand)
	assert.Contains(t, result.Error.Error(), "warning: something")
	assert.Equal(t, "partial", result.Output)
}

func TestExec_NonZeroExitFails(t *testing.T) {
	executor := &mockExecutor{
		executeFunc: func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
			return nil, nil, errors.New("exit status 1")
		},
	}
	svc := NewWithExecutor(testLogger(), executor)

	result, err := svc.Exec(context.Background(), "false")

	require.NoError(t, err)
	assert.ErrorIs(t, result.Error, models.ErrLocalCommand)
}

func TestExec_RealCommand(t *testing.T) {
	svc := New(testLogger())

	result, err := svc.Exec(context.Background(), "echo hello   world")

	require.NoError(t, err)
	require.NoError(t, result.Error)
	assert.Equal(t, "hello world\n", result.Output)
	assert.Equal(t, 0, result.ExitStatus)
}

func TestExec_RealCommandExitStatus(t *testing.T) {
	svc := New(testLogger())

	result, err := svc.Exec(context.Background(), "false")

	require.NoError(t, err)
	assert.ErrorIs(t, result.Error, models.ErrLocalCommand)
	assert.Equal(t, 1, result.ExitStatus)
}

func TestExec_RealCommandStderr(t *testing.T) {
	svc := New(testLogger())

	result, err := svc.Exec(context.Background(), "ls /definitely/not/here")

	require.NoError(t, err)
	assert.ErrorIs(t, result.Error, models.ErrLocalCommand)
	assert.NotEmpty(t, result.Stderr)
}

func TestInteractive_ChildSeesTerminal(t *testing.T) {
	ptmx, tty, err := pty.Open()
	require.NoError(t, err)
	defer func() { _ = ptmx.Close() }()
	defer func() { _ = tty.Close() }()

	svc := New(testLogger())

	result, err := svc.Interactive(context.Background(), "test -t 0", models.Terminal{In: tty, Out: tty, Err: tty})

	require.NoError(t, err)
	assert.True(t, result.CommandRun)
	assert.NoError(t, result.Error)
}

func TestInteractive_NoTerminal(t *testing.T) {
	svc := New(testLogger())

	var out bytes.Buffer
	result, err := svc.Interactive(context.Background(), "test -t 0", models.Terminal{In: strings.NewReader(""), Out: &out, Err: &out})

	require.NoError(t, err)
	assert.ErrorIs(t, result.Error, models.ErrLocalCommand)
	assert.Equal(t, 1, result.ExitStatus)
}

func TestInteractive_OutputPassesThrough(t *testing.T) {
	svc := New(testLogger())

	var out bytes.Buffer
	result, err := svc.Interactive(context.Background(), "echo [sudo] password for bob:", models.Terminal{In: strings.NewReader(""), Out: &out, Err: &out})

	require.NoError(t, err)
	require.NoError(t, result.Error)
	assert.Equal(t, "[sudo] password for bob:\n", out.String())
}

func TestCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o600))

	svc := New(testLogger())
	result, err := svc.Copy(context.Background(), src, dst)

	require.NoError(t, err)
	require.NoError(t, result.Error)
	assert.Equal(t, int64(7), result.Bytes)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestCopy_MissingSource(t *testing.T) {
	dir := t.TempDir()

	svc := New(testLogger())
	result, err := svc.Copy(context.Background(), filepath.Join(dir, "nope"), filepath.Join(dir, "dst"))

	require.NoError(t, err)
	assert.ErrorIs(t, result.Error, os.ErrNotExist)
}
