// Package ssh runs commands on a device over SSH.
package ssh

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/fgeck/devicectl/internal/completion"
	"github.com/fgeck/devicectl/internal/models"
	"github.com/fgeck/devicectl/internal/services/resolver"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Service defines the interface for SSH operations.
type Service interface {
	Exec(ctx context.Context, dev models.Device, command string) (*models.ExecResult, error)
	Interactive(ctx context.Context, dev models.Device, command string, term models.Terminal) (*models.ExecResult, error)
	Push(ctx context.Context, dev models.Device, localPath, remotePath string) (*models.CopyResult, error)
	Pull(ctx context.Context, dev models.Device, remotePath, localPath string) (*models.CopyResult, error)
}

// Impl implements the SSH Service interface.
type Impl struct {
	clientFactory ClientFactory
	resolver      resolver.Service
	logger        zerolog.Logger
}

// New creates a new SSH service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		clientFactory: &DefaultClientFactory{},
		resolver:      resolver.New(logger),
		logger:        logger,
	}
}

// NewWithClientFactory creates a new SSH service with a custom client factory (for testing).
func NewWithClientFactory(logger zerolog.Logger, res resolver.Service, factory ClientFactory) *Impl {
	return &Impl{
		clientFactory: factory,
		resolver:      res,
		logger:        logger,
	}
}

// Username returns the login name used for dev.
func Username(dev models.Device) string {
	if dev.SSH.Username != "" {
		return dev.SSH.Username
	}
	return dev.Username
}

func password(dev models.Device) string {
	if dev.SSH.Password != "" {
		return dev.SSH.Password
	}
	return dev.Password
}

// buildConfig assembles the client configuration. The returned closer releases
// the agent connection once authentication is over.
func (s *Impl) buildConfig(dev models.Device) (*ssh.ClientConfig, io.Closer, error) {
	var auth []ssh.AuthMethod
	var closer io.Closer = nopCloser{}

	if dev.SSH.Agent != "" {
		agentClient, conn, err := dialAgent(dev.SSH.Agent)
		if err != nil {
			s.logger.Warn().Err(err).Str("socket", dev.SSH.Agent).Msg("ssh agent unavailable")
		} else {
			closer = conn
			auth = append(auth, ssh.PublicKeysCallback(agentClient.Signers))
		}
	}

	if dev.SSH.KeyPath != "" {
		signer, err := loadKey(dev.SSH.KeyPath, dev.SSH.Passphrase)
		if err != nil {
			_ = closer.Close()
			return nil, nil, err
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}

	if pw := password(dev); pw != "" {
		auth = append(auth,
			ssh.Password(pw),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = pw
				}
				return answers, nil
			}),
		)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey() //nolint:gosec // homelab environment
	if dev.SSH.KnownHosts != "" {
		cb, err := knownhosts.New(dev.SSH.KnownHosts)
		if err != nil {
			_ = closer.Close()
			return nil, nil, fmt.Errorf("failed to load known hosts %s: %w", dev.SSH.KnownHosts, err)
		}
		hostKeyCallback = cb
	}

	return &ssh.ClientConfig{
		User:            Username(dev),
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         dev.EffectiveTimeout(),
	}, closer, nil
}

func loadKey(path, passphrase string) (ssh.Signer, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key from %s: %w", path, err)
	}

	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return signer, nil
}

// connect resolves and dials the device. The handshake, a dial error, the
// device timeout and ctx race for one outcome. A handshake still running when
// the race is lost is aborted, and a client that completes late is closed.
func (s *Impl) connect(ctx context.Context, dev models.Device) (*connection, error) {
	address, err := s.resolver.Resolve(ctx, dev)
	if err != nil {
		return nil, err
	}
	target := net.JoinHostPort(address, strconv.Itoa(dev.EffectiveSSHPort()))

	config, authCloser, err := s.buildConfig(dev)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", models.ErrConnection, target, err)
	}
	defer func() { _ = authCloser.Close() }()

	s.logger.Debug().
		Str("device", dev.Name).
		Str("target", target).
		Str("user", config.User).
		Msg("connecting")

	// cancelled once the race is decided; a losing handshake is torn down
	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	latch := completion.New[SSHClient]()

	go func() {
		client, err := s.clientFactory.NewClient(dialCtx, "tcp", target, config)
		if err != nil {
			latch.Resolve(nil, fmt.Errorf("%w: %s: %w", models.ErrConnection, target, err))
			return
		}
		if !latch.Resolve(client, nil) {
			_ = client.Close()
		}
	}()

	timer := time.AfterFunc(dev.EffectiveTimeout(), func() {
		latch.Resolve(nil, fmt.Errorf("%w: %w %s", models.ErrConnection, models.ErrConnectTimeout, target))
	})
	defer timer.Stop()

	client, err := latch.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return &connection{SSHClient: client}, nil
}

// connection closes its client exactly once.
type connection struct {
	SSHClient
	once sync.Once
	err  error
}

func (c *connection) Close() error {
	c.once.Do(func() { c.err = c.SSHClient.Close() })
	return c.err
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
