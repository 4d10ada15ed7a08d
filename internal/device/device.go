// Package device ties the liveness, wake and execution services to one host.
package device

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/fgeck/devicectl/internal/models"
	"github.com/fgeck/devicectl/internal/procfs"
	"github.com/fgeck/devicectl/internal/services/local"
	"github.com/fgeck/devicectl/internal/services/probe"
	"github.com/fgeck/devicectl/internal/services/resolver"
	"github.com/fgeck/devicectl/internal/services/ssh"
	"github.com/fgeck/devicectl/internal/services/waiter"
	"github.com/fgeck/devicectl/internal/services/wol"
	"github.com/rs/zerolog"
)

// Power commands run through an interactive session so sudo can be answered.
const (
	sleepCommand    = "sudo systemctl suspend"
	rebootCommand   = "sudo systemctl reboot"
	poweroffCommand = "sudo systemctl poweroff"
	uptimeCommand   = "cat /proc/uptime"
	meminfoCommand  = "cat /proc/meminfo"
)

// Device is a controllable host. Its configuration is read-only and the
// execution route is fixed when the Device is built.
type Device struct {
	cfg   models.Device
	route Route

	resolverSvc resolver.Service
	probeSvc    probe.Service
	waiterSvc   waiter.Service
	wolSvc      wol.Service
	localSvc    local.Service
	sshSvc      ssh.Service
	logger      zerolog.Logger
}

// New creates a device. localHostname is the identity of the machine running
// devicectl and decides whether commands run locally. Unset settings of cfg
// take their defaults.
func New(logger zerolog.Logger, cfg models.Device, localHostname string) *Device {
	cfg = cfg.Normalize()
	logger = logger.With().Str("device", cfg.Name).Logger()
	res := resolver.New(logger)
	probeSvc := probe.NewWithDialer(logger, res, &net.Dialer{})
	return &Device{
		cfg:         cfg,
		route:       RouteFor(cfg.Hostname, localHostname),
		resolverSvc: res,
		probeSvc:    probeSvc,
		waiterSvc:   waiter.NewWithObserver(logger, probeSvc),
		wolSvc:      wol.New(logger),
		localSvc:    local.New(logger),
		sshSvc:      ssh.NewWithClientFactory(logger, res, &ssh.DefaultClientFactory{}),
		logger:      logger,
	}
}

// NewWithServices creates a device with custom services (for testing).
func NewWithServices(
	logger zerolog.Logger,
	cfg models.Device,
	localHostname string,
	resolverSvc resolver.Service,
	probeSvc probe.Service,
	waiterSvc waiter.Service,
	wolSvc wol.Service,
	localSvc local.Service,
	sshSvc ssh.Service,
) *Device {
	cfg = cfg.Normalize()
	return &Device{
		cfg:         cfg,
		route:       RouteFor(cfg.Hostname, localHostname),
		resolverSvc: resolverSvc,
		probeSvc:    probeSvc,
		waiterSvc:   waiterSvc,
		wolSvc:      wolSvc,
		localSvc:    localSvc,
		sshSvc:      sshSvc,
		logger:      logger,
	}
}

// Config returns the device configuration.
func (d *Device) Config() models.Device {
	return d.cfg
}

// Route returns where commands for this device run.
func (d *Device) Route() Route {
	return d.route
}

// IsLocal reports whether the device is the machine devicectl runs on.
func (d *Device) IsLocal() bool {
	return d.route == RouteLocal
}

// Resolve returns the address used to reach the device.
func (d *Device) Resolve(ctx context.Context) (string, error) {
	return d.resolverSvc.Resolve(ctx, d.cfg)
}

// Ping probes the device once and returns the connect latency.
func (d *Device) Ping(ctx context.Context) (time.Duration, error) {
	result, err := d.probeSvc.Probe(ctx, d.cfg)
	if err != nil {
		return 0, err
	}
	return result.Latency, result.Error
}

// IsUp reports whether the device accepts connections on its ping port.
func (d *Device) IsUp(ctx context.Context) (bool, error) {
	return d.probeSvc.IsUp(ctx, d.cfg)
}

// IsDown is the negation of IsUp.
func (d *Device) IsDown(ctx context.Context) (bool, error) {
	return d.probeSvc.IsDown(ctx, d.cfg)
}

// State probes the device and reports refusals and timeouts as down.
func (d *Device) State(ctx context.Context) (models.State, error) {
	return d.probeSvc.Observe(ctx, d.cfg)
}

// Wake sends a magic packet to every MAC address of the device.
func (d *Device) Wake(ctx context.Context) error {
	result, err := d.wolSvc.Wake(ctx, d.cfg)
	if err != nil {
		return err
	}
	return result.Error
}

// WaitUp blocks until the device is up. Only ctx bounds the wait.
func (d *Device) WaitUp(ctx context.Context) error {
	return d.waiterSvc.WaitUp(ctx, d.cfg)
}

// WaitDown blocks until the device is down. Only ctx bounds the wait.
func (d *Device) WaitDown(ctx context.Context) error {
	return d.waiterSvc.WaitDown(ctx, d.cfg)
}

// Exec runs command on the device and returns its output.
func (d *Device) Exec(ctx context.Context, command string) (string, error) {
	d.logger.Debug().Stringer("route", d.route).Str("command", command).Msg("exec")

	var result *models.ExecResult
	var err error
	if d.route == RouteLocal {
		result, err = d.localSvc.Exec(ctx, command)
	} else {
		result, err = d.sshSvc.Exec(ctx, d.cfg, command)
	}
	if err != nil {
		return "", err
	}
	if result.Error != nil {
		return result.Output, result.Error
	}
	return result.Output, nil
}

// Interactive runs command on the device attached to term and returns the
// exit status of the command.
func (d *Device) Interactive(ctx context.Context, command string, term models.Terminal) (int, error) {
	d.logger.Debug().Stringer("route", d.route).Str("command", command).Msg("interactive")

	var result *models.ExecResult
	var err error
	if d.route == RouteLocal {
		result, err = d.localSvc.Interactive(ctx, command, term)
	} else {
		result, err = d.sshSvc.Interactive(ctx, d.cfg, command, term)
	}
	if err != nil {
		return -1, err
	}
	return result.ExitStatus, result.Error
}

// Sleep suspends the device.
func (d *Device) Sleep(ctx context.Context, term models.Terminal) error {
	return d.power(ctx, sleepCommand, term)
}

// Reboot restarts the device.
func (d *Device) Reboot(ctx context.Context, term models.Terminal) error {
	return d.power(ctx, rebootCommand, term)
}

// Poweroff shuts the device down.
func (d *Device) Poweroff(ctx context.Context, term models.Terminal) error {
	return d.power(ctx, poweroffCommand, term)
}

func (d *Device) power(ctx context.Context, command string, term models.Terminal) error {
	d.logger.Info().Str("command", command).Msg("sending power command")
	_, err := d.Interactive(ctx, command, term)
	return err
}

func (d *Device) requireLinux(op string) error {
	if d.cfg.Platform != "linux" {
		return fmt.Errorf("%w: %s not supported for platform %q", models.ErrUnsupportedPlatform, op, d.cfg.Platform)
	}
	return nil
}

// Uptime reads /proc/uptime from a linux device.
func (d *Device) Uptime(ctx context.Context) (procfs.Uptime, error) {
	if err := d.requireLinux("uptime"); err != nil {
		return procfs.Uptime{}, err
	}
	out, err := d.Exec(ctx, uptimeCommand)
	if err != nil {
		return procfs.Uptime{}, err
	}
	seconds, err := procfs.ReadUptime(out)
	if err != nil {
		return procfs.Uptime{}, err
	}
	return procfs.ParseUptime(seconds), nil
}

// Meminfo reads /proc/meminfo from a linux device. Sizes are in kB.
func (d *Device) Meminfo(ctx context.Context) (map[string]int64, error) {
	if err := d.requireLinux("meminfo"); err != nil {
		return nil, err
	}
	out, err := d.Exec(ctx, meminfoCommand)
	if err != nil {
		return nil, err
	}
	return procfs.ParseMeminfo(out), nil
}

// Push copies a local file onto the device.
func (d *Device) Push(ctx context.Context, localPath, remotePath string) (int64, error) {
	var result *models.CopyResult
	var err error
	if d.route == RouteLocal {
		result, err = d.localSvc.Copy(ctx, localPath, remotePath)
	} else {
		result, err = d.sshSvc.Push(ctx, d.cfg, localPath, remotePath)
	}
	return copied(result, err)
}

// Pull copies a file from the device to a local path.
func (d *Device) Pull(ctx context.Context, remotePath, localPath string) (int64, error) {
	var result *models.CopyResult
	var err error
	if d.route == RouteLocal {
		result, err = d.localSvc.Copy(ctx, remotePath, localPath)
	} else {
		result, err = d.sshSvc.Pull(ctx, d.cfg, remotePath, localPath)
	}
	return copied(result, err)
}

func copied(result *models.CopyResult, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return result.Bytes, result.Error
}
