package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fgeck/devicectl/internal/models"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

const (
	ptyTerm   = "xterm-256color"
	ptyWidth  = 80
	ptyHeight = 24
)

var ptyModes = ssh.TerminalModes{
	ssh.ECHO:          1,
	ssh.TTY_OP_ISPEED: 14400,
	ssh.TTY_OP_OSPEED: 14400,
}

// Exec runs command on the device with a pty and collects its output. The
// command fails when it writes anything to stderr; its exit status is recorded
// either way.
func (s *Impl) Exec(ctx context.Context, dev models.Device, command string) (*models.ExecResult, error) {
	result := &models.ExecResult{}

	conn, err := s.connect(ctx, dev)
	if err != nil {
		result.Error = err
		return result, nil
	}
	defer func() { _ = conn.Close() }()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	session, err := s.openSession(conn, dev, ptyWidth, ptyHeight)
	if err != nil {
		result.Error = err
		return result, nil
	}
	defer func() { _ = session.Close() }()

	stdout, stderr, err := outputPipes(session)
	if err != nil {
		result.Error = err
		return result, nil
	}

	s.logger.Debug().Str("device", dev.Name).Str("command", command).Msg("executing remote command")

	if err := session.Start(command); err != nil {
		result.Error = fmt.Errorf("%w: %w", models.ErrChannel, err)
		return result, nil
	}
	result.CommandRun = true

	var outBuf, errBuf bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(&outBuf, stdout)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(&errBuf, stderr)
		return err
	})
	streamErr := g.Wait()
	waitErr := session.Wait()

	result.Output = outBuf.String()
	result.Stderr = errBuf.String()
	result.Error = s.finish(ctx, result, command, streamErr, waitErr)

	s.logger.Debug().
		Str("device", dev.Name).
		Int("exit_status", result.ExitStatus).
		AnErr("error", result.Error).
		Msg("remote command finished")

	return result, nil
}

// Interactive runs command on the device attached to term. Local input is
// relayed to the remote side as typed. A sudo password prompt is answered
// with the device password when one is configured; all other output is
// echoed unmodified. Remote stderr is echoed live and reported at the end.
func (s *Impl) Interactive(ctx context.Context, dev models.Device, command string, t models.Terminal) (*models.ExecResult, error) {
	result := &models.ExecResult{}

	conn, err := s.connect(ctx, dev)
	if err != nil {
		result.Error = err
		return result, nil
	}
	defer func() { _ = conn.Close() }()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	width, height := terminalSize(t.Out)
	session, err := s.openSession(conn, dev, width, height)
	if err != nil {
		result.Error = err
		return result, nil
	}
	defer func() { _ = session.Close() }()

	stdinPipe, err := session.StdinPipe()
	if err != nil {
		result.Error = fmt.Errorf("%w: %w", models.ErrChannel, err)
		return result, nil
	}
	stdout, stderr, err := outputPipes(session)
	if err != nil {
		result.Error = err
		return result, nil
	}

	restore := makeRaw(t.In)
	defer restore()

	s.logger.Debug().Str("device", dev.Name).Str("command", command).Msg("starting interactive session")

	if err := session.Start(command); err != nil {
		result.Error = fmt.Errorf("%w: %w", models.ErrChannel, err)
		return result, nil
	}
	result.CommandRun = true

	stdin := &lockedWriter{w: stdinPipe}
	matcher := newPromptMatcher(Username(dev), dev.Password)

	// The relay ends when the channel stops accepting input. Remote stdin is
	// never closed on local EOF.
	go func() { _, _ = io.Copy(stdin, t.In) }()

	var errBuf bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		return relayOutput(stdout, t.Out, stdin, matcher)
	})
	g.Go(func() error {
		_, err := io.Copy(io.MultiWriter(t.Err, &errBuf), stderr)
		return err
	})
	streamErr := g.Wait()
	waitErr := session.Wait()

	result.Stderr = errBuf.String()
	result.Error = s.finish(ctx, result, command, streamErr, waitErr)

	s.logger.Debug().
		Str("device", dev.Name).
		Int("exit_status", result.ExitStatus).
		Int("prompts_answered", matcher.answered).
		AnErr("error", result.Error).
		Msg("interactive session finished")

	return result, nil
}

func (s *Impl) openSession(conn *connection, dev models.Device, width, height int) (SSHSession, error) {
	session, err := conn.NewSession()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrChannel, err)
	}

	if dev.SSH.AgentForward && dev.SSH.Agent != "" {
		err := conn.ForwardAgent(dev.SSH.Agent)
		if err == nil {
			err = session.RequestAgentForwarding()
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("device", dev.Name).Msg("agent forwarding unavailable")
		}
	}

	if err := session.RequestPty(ptyTerm, height, width, ptyModes); err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("%w: pty request: %w", models.ErrChannel, err)
	}
	return session, nil
}

// finish turns the way a session ended into the result error and records the
// exit status.
func (s *Impl) finish(ctx context.Context, result *models.ExecResult, command string, streamErr, waitErr error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var exitErr *ssh.ExitError
	var missingErr *ssh.ExitMissingError
	switch {
	case waitErr == nil:
	case errors.As(waitErr, &exitErr):
		result.ExitStatus = exitErr.ExitStatus()
	case errors.As(waitErr, &missingErr):
		// the connection went away before an exit status was sent, e.g. on poweroff
		result.ExitStatus = -1
		s.logger.Warn().Str("command", command).Msg("remote command ended without exit status")
	default:
		return fmt.Errorf("%w: %w", models.ErrChannel, waitErr)
	}

	if streamErr != nil {
		return fmt.Errorf("%w: %w", models.ErrChannel, streamErr)
	}
	if result.Stderr != "" {
		return fmt.Errorf("%w: %s: %s", models.ErrRemoteCommand, command, strings.TrimSpace(result.Stderr))
	}
	return nil
}

func outputPipes(session SSHSession) (io.Reader, io.Reader, error) {
	stdout, err := session.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", models.ErrChannel, err)
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", models.ErrChannel, err)
	}
	return stdout, stderr, nil
}

// relayOutput copies remote output to out, passing every chunk through the
// prompt matcher first.
func relayOutput(r io.Reader, out, stdin io.Writer, matcher *promptMatcher) error {
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if matcher.Feed(chunk) == actionAnswer {
				if _, werr := stdin.Write(matcher.Answer()); werr != nil {
					return werr
				}
			} else if _, werr := out.Write(chunk); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// lockedWriter serializes writes from the input relay and the prompt answer.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func terminalSize(w io.Writer) (int, int) {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if width, height, err := term.GetSize(int(f.Fd())); err == nil {
			return width, height
		}
	}
	return ptyWidth, ptyHeight
}

// makeRaw puts r into raw mode when it is a terminal and returns the restore func.
func makeRaw(r io.Reader) func() {
	f, ok := r.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return func() {}
	}
	fd := int(f.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return func() {}
	}
	return func() { _ = term.Restore(fd, state) }
}
