// Package probe checks device liveness with a TCP connect.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/fgeck/devicectl/internal/completion"
	"github.com/fgeck/devicectl/internal/models"
	"github.com/fgeck/devicectl/internal/services/resolver"
	"github.com/rs/zerolog"
)

// Service defines the interface for liveness probing.
type Service interface {
	Probe(ctx context.Context, dev models.Device) (*models.ProbeResult, error)
	IsUp(ctx context.Context, dev models.Device) (bool, error)
	IsDown(ctx context.Context, dev models.Device) (bool, error)
	Observe(ctx context.Context, dev models.Device) (models.State, error)
}

// Dialer wraps net.Dialer for mocking.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Impl implements the probe Service interface.
type Impl struct {
	resolver resolver.Service
	dialer   Dialer
	logger   zerolog.Logger
}

// New creates a new probe service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		resolver: resolver.New(logger),
		dialer:   &net.Dialer{},
		logger:   logger,
	}
}

// NewWithDialer creates a new probe service with a custom resolver and dialer (for testing).
func NewWithDialer(logger zerolog.Logger, res resolver.Service, dialer Dialer) *Impl {
	return &Impl{
		resolver: res,
		dialer:   dialer,
		logger:   logger,
	}
}

// Probe opens and immediately closes a TCP connection to the ping port of the
// device. The connect, a dial error and the timeout race for one outcome; the
// socket is gone by the time the result is returned.
func (s *Impl) Probe(ctx context.Context, dev models.Device) (*models.ProbeResult, error) {
	port := dev.EffectivePingPort()
	result := &models.ProbeResult{Port: port}

	address, err := s.resolver.Resolve(ctx, dev)
	if err != nil {
		result.Error = err
		return result, nil
	}
	result.Address = address
	target := net.JoinHostPort(address, strconv.Itoa(port))

	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	latch := completion.New[struct{}]()
	dialDone := make(chan struct{})
	start := time.Now()

	go func() {
		defer close(dialDone)
		conn, err := s.dialer.DialContext(dialCtx, "tcp", target)
		if err != nil {
			latch.Resolve(struct{}{}, classify(err, target))
			return
		}
		_ = conn.Close()
		latch.Resolve(struct{}{}, nil)
	}()

	timer := time.AfterFunc(dev.EffectiveTimeout(), func() {
		latch.Resolve(struct{}{}, fmt.Errorf("%w %s", models.ErrProbeTimeout, target))
	})
	defer timer.Stop()

	_, err = latch.Wait(ctx)

	// the losing dial is aborted and reaped before reporting
	cancel()
	<-dialDone

	result.Latency = time.Since(start)
	result.Reachable = err == nil
	result.Error = err

	s.logger.Debug().
		Str("device", dev.Name).
		Str("target", target).
		Bool("reachable", result.Reachable).
		Dur("latency", result.Latency).
		AnErr("error", err).
		Msg("probe finished")

	return result, nil
}

func classify(err error, target string) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w %s: %w", models.ErrProbeTimeout, target, err)
	}
	return fmt.Errorf("%w %s: %w", models.ErrProbeRefused, target, err)
}

// IsUp reports whether the device answered. Probe errors, refusals included,
// are returned as they are; use IsDownError to treat them as "down".
func (s *Impl) IsUp(ctx context.Context, dev models.Device) (bool, error) {
	result, err := s.Probe(ctx, dev)
	if err != nil {
		return false, err
	}
	return result.Reachable, result.Error
}

// IsDown is the negation of IsUp when no error occurred.
func (s *Impl) IsDown(ctx context.Context, dev models.Device) (bool, error) {
	up, err := s.IsUp(ctx, dev)
	if err != nil {
		return false, err
	}
	return !up, nil
}

// Observe collapses a probe into a state: refusals and timeouts mean down,
// anything else unexpected is returned as an error.
func (s *Impl) Observe(ctx context.Context, dev models.Device) (models.State, error) {
	up, err := s.IsUp(ctx, dev)
	switch {
	case err == nil && up:
		return models.StateUp, nil
	case err == nil || IsDownError(err):
		return models.StateDown, nil
	default:
		return models.StateDown, err
	}
}

// IsDownError reports whether err means the device is down rather than
// unreachable for some other reason.
func IsDownError(err error) bool {
	return errors.Is(err, models.ErrProbeRefused) || errors.Is(err, models.ErrProbeTimeout)
}
