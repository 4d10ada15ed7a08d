// Package waiter polls a device until it reaches a liveness state.
package waiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fgeck/devicectl/internal/models"
	"github.com/fgeck/devicectl/internal/services/probe"
	"github.com/rs/zerolog"
)

var errNotYet = errors.New("target state not reached")

// Service defines the interface for waiting on state transitions.
type Service interface {
	WaitFor(ctx context.Context, dev models.Device, target models.State) error
	WaitUp(ctx context.Context, dev models.Device) error
	WaitDown(ctx context.Context, dev models.Device) error
}

// Observer is the part of the probe service the waiter needs.
type Observer interface {
	Observe(ctx context.Context, dev models.Device) (models.State, error)
}

// Impl implements the waiter Service interface.
type Impl struct {
	observer Observer
	logger   zerolog.Logger
}

// New creates a new waiter backed by a TCP probe.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		observer: probe.New(logger),
		logger:   logger,
	}
}

// NewWithObserver creates a new waiter with a custom observer (for testing).
func NewWithObserver(logger zerolog.Logger, observer Observer) *Impl {
	return &Impl{
		observer: observer,
		logger:   logger,
	}
}

// WaitFor probes the device every interval until it is observed in the target
// state. Probe errors only mean "not yet". There is no attempt limit: the loop
// ends when the target is reached or ctx is done.
func (s *Impl) WaitFor(ctx context.Context, dev models.Device, target models.State) error {
	interval := dev.EffectiveInterval()
	start := time.Now()
	attempts := 0

	s.logger.Info().
		Str("device", dev.Name).
		Stringer("target", target).
		Dur("interval", interval).
		Msg("waiting for device")

	operation := func() error {
		attempts++
		state, err := s.observer.Observe(ctx, dev)
		if err != nil {
			return err
		}
		if state != target {
			return errNotYet
		}
		return nil
	}

	notify := func(err error, next time.Duration) {
		s.logger.Debug().
			Err(err).
			Str("device", dev.Name).
			Int("attempt", attempts).
			Dur("next", next).
			Msg("device not in target state yet")
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(interval), ctx)
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		return fmt.Errorf("waiting for %s to be %s: %w", dev.Name, target, err)
	}

	s.logger.Info().
		Str("device", dev.Name).
		Stringer("state", target).
		Int("attempts", attempts).
		Dur("waited", time.Since(start)).
		Msg("device reached target state")

	return nil
}

// WaitUp waits until the device answers.
func (s *Impl) WaitUp(ctx context.Context, dev models.Device) error {
	return s.WaitFor(ctx, dev, models.StateUp)
}

// WaitDown waits until the device stops answering.
func (s *Impl) WaitDown(ctx context.Context, dev models.Device) error {
	return s.WaitFor(ctx, dev, models.StateDown)
}
