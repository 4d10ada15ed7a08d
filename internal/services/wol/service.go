// Package wol provides Wake-on-LAN operations.
package wol

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/fgeck/devicectl/internal/models"
	"github.com/mdlayher/wol"
	"github.com/rs/zerolog"
)

// Service defines the interface for Wake-on-LAN operations.
type Service interface {
	Wake(ctx context.Context, dev models.Device) (*models.WOLResult, error)
}

// Client wraps the wol library for mocking.
type Client interface {
	Wake(addr string, mac net.HardwareAddr) error
}

// DefaultClient is the default implementation using mdlayher/wol.
type DefaultClient struct{}

// Wake sends a magic packet for mac to addr (host:port).
func (c *DefaultClient) Wake(addr string, mac net.HardwareAddr) error {
	client, err := wol.NewClient()
	if err != nil {
		return fmt.Errorf("failed to create WOL client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if err := client.Wake(addr, mac); err != nil {
		return fmt.Errorf("failed to send WOL packet: %w", err)
	}
	return nil
}

// Impl implements the WOL Service interface.
type Impl struct {
	wolClient Client
	logger    zerolog.Logger
}

// New creates a new WOL service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		wolClient: &DefaultClient{},
		logger:    logger,
	}
}

// NewWithClient creates a new WOL service with a custom client (for testing).
func NewWithClient(logger zerolog.Logger, wolClient Client) *Impl {
	return &Impl{
		wolClient: wolClient,
		logger:    logger,
	}
}

// Wake sends a magic packet for every hardware address of the device. A
// failing address does not stop the others; the first failure is reported.
func (s *Impl) Wake(ctx context.Context, dev models.Device) (*models.WOLResult, error) {
	result := &models.WOLResult{}

	if len(dev.MACs) == 0 {
		result.Error = fmt.Errorf("%w: no MAC address configured for %s", models.ErrWake, dev.Name)
		return result, nil
	}

	broadcast := dev.WOL.BroadcastIP
	if broadcast == "" {
		broadcast = models.DefaultBroadcastIP
	}
	port := dev.WOL.Port
	if port == 0 {
		port = models.DefaultWOLPort
	}
	addr := net.JoinHostPort(broadcast, strconv.Itoa(port))

	for _, raw := range dev.MACs {
		result.Attempts++

		if err := s.wakeOne(addr, raw); err != nil {
			s.logger.Warn().Err(err).Str("device", dev.Name).Str("mac", raw).Msg("WOL packet failed")
			if result.Error == nil {
				result.Error = err
			}
			continue
		}
		result.PacketsSent++
	}

	s.logger.Info().
		Str("device", dev.Name).
		Str("broadcast", addr).
		Int("sent", result.PacketsSent).
		Int("attempts", result.Attempts).
		Msg("WOL packets sent")

	return result, nil
}

func (s *Impl) wakeOne(addr, raw string) error {
	mac, err := net.ParseMAC(raw)
	if err != nil {
		return fmt.Errorf("%w: invalid MAC address %q: %w", models.ErrWake, raw, err)
	}

	s.logger.Debug().Str("mac", raw).Str("broadcast", addr).Msg("sending WOL packet")

	if err := s.wolClient.Wake(addr, mac); err != nil {
		return fmt.Errorf("%w: %s: %w", models.ErrWake, raw, err)
	}
	return nil
}
