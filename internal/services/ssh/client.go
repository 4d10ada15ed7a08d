package ssh

import (
	"context"
	"io"
	"net"
	"os"
	"time"

	scp "github.com/bramvdbogaerde/go-scp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// SSHClient wraps ssh.Client for mocking.
type SSHClient interface {
	NewSession() (SSHSession, error)
	ForwardAgent(socket string) error
	Upload(ctx context.Context, r io.Reader, remotePath, permission string) error
	Download(ctx context.Context, f *os.File, remotePath string) error
	Close() error
}

// SSHSession wraps ssh.Session for mocking.
type SSHSession interface {
	RequestPty(term string, height, width int, modes ssh.TerminalModes) error
	RequestAgentForwarding() error
	StdinPipe() (io.WriteCloser, error)
	StdoutPipe() (io.Reader, error)
	StderrPipe() (io.Reader, error)
	Start(cmd string) error
	Wait() error
	Close() error
}

// ClientFactory creates SSH clients. Cancelling ctx aborts a dial or
// handshake in progress.
type ClientFactory interface {
	NewClient(ctx context.Context, network, addr string, config *ssh.ClientConfig) (SSHClient, error)
}

// DefaultClientFactory is the default SSH client factory.
type DefaultClientFactory struct{}

// NewClient dials addr and runs the SSH handshake. config.Timeout bounds the
// dial and the handshake together.
func (f *DefaultClientFactory) NewClient(ctx context.Context, network, addr string, config *ssh.ClientConfig) (SSHClient, error) {
	start := time.Now()
	dialer := &net.Dialer{Timeout: config.Timeout}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	if config.Timeout > 0 {
		_ = conn.SetDeadline(start.Add(config.Timeout))
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if !stop() {
		if err == nil {
			_ = c.Close()
		}
		_ = conn.Close()
		return nil, ctx.Err()
	}
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	return &defaultSSHClient{client: ssh.NewClient(c, chans, reqs)}, nil
}

type defaultSSHClient struct {
	client *ssh.Client
}

func (c *defaultSSHClient) NewSession() (SSHSession, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return nil, err
	}
	return &defaultSSHSession{Session: session}, nil
}

func (c *defaultSSHClient) ForwardAgent(socket string) error {
	return agent.ForwardToRemote(c.client, socket)
}

func (c *defaultSSHClient) Upload(ctx context.Context, r io.Reader, remotePath, permission string) error {
	client, err := scp.NewClientBySSH(c.client)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.CopyFile(ctx, r, remotePath, permission)
}

func (c *defaultSSHClient) Download(ctx context.Context, f *os.File, remotePath string) error {
	client, err := scp.NewClientBySSH(c.client)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.CopyFromRemote(ctx, f, remotePath)
}

func (c *defaultSSHClient) Close() error {
	return c.client.Close()
}

type defaultSSHSession struct {
	*ssh.Session
}

func (s *defaultSSHSession) RequestAgentForwarding() error {
	return agent.RequestAgentForwarding(s.Session)
}

// dialAgent connects to a running ssh-agent.
func dialAgent(socket string) (agent.ExtendedAgent, io.Closer, error) {
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil, nil, err
	}
	return agent.NewClient(conn), conn, nil
}
