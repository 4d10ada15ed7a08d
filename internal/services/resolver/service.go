// Package resolver turns a device into a network address.
package resolver

import (
	"context"
	"fmt"
	"net"

	"github.com/fgeck/devicectl/internal/models"
	"github.com/rs/zerolog"
)

// Service defines the interface for address resolution.
type Service interface {
	Resolve(ctx context.Context, dev models.Device) (string, error)
}

// Lookuper wraps net.Resolver for mocking.
type Lookuper interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Impl implements the resolver Service interface.
type Impl struct {
	lookuper Lookuper
	logger   zerolog.Logger
}

// New creates a resolver backed by the system DNS resolver.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		lookuper: net.DefaultResolver,
		logger:   logger,
	}
}

// NewWithLookuper creates a resolver with a custom lookuper (for testing).
func NewWithLookuper(logger zerolog.Logger, lookuper Lookuper) *Impl {
	return &Impl{
		lookuper: lookuper,
		logger:   logger,
	}
}

// Resolve returns the cached address of the device, or the first address
// found for its hostname.
func (s *Impl) Resolve(ctx context.Context, dev models.Device) (string, error) {
	if address := dev.EffectiveAddress(); address != "" {
		return address, nil
	}

	hostname := dev.EffectiveHostname()
	addrs, err := s.lookuper.LookupHost(ctx, hostname)
	if err != nil {
		s.logger.Debug().Err(err).Str("hostname", hostname).Msg("lookup failed")
		return "", fmt.Errorf("%w %s: %w", models.ErrResolution, hostname, err)
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("%w %s: no addresses", models.ErrResolution, hostname)
	}

	s.logger.Debug().
		Str("hostname", hostname).
		Str("address", addrs[0]).
		Msg("hostname resolved")

	return addrs[0], nil
}
