package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fgeck/devicectl/internal/device"
	"github.com/fgeck/devicectl/internal/models"
	"github.com/fgeck/devicectl/internal/services/probe"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	waitTimeout time.Duration
	wakeWait    bool
)

// deviceRunE adapts a device operation to a cobra RunE. The first argument is
// the device name; the rest are passed through.
func deviceRunE(fn func(ctx context.Context, cmd *cobra.Command, dev *device.Device, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		dev, err := loadDevice(args[0])
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		if err := fn(ctx, cmd, dev, args[1:]); err != nil {
			log.Error().Err(err).Str("device", args[0]).Str("command", cmd.Name()).Msg("command failed")
			return err
		}
		return nil
	}
}

// withTimeout bounds ctx when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

func addDeviceCommands(root *cobra.Command) {
	resolveCmd := &cobra.Command{
		Use:   "resolve DEVICE",
		Short: "Print the address of a device",
		Args:  cobra.ExactArgs(1),
		RunE: deviceRunE(func(ctx context.Context, cmd *cobra.Command, dev *device.Device, _ []string) error {
			addr, err := dev.Resolve(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr)
			return nil
		}),
	}

	statusCmd := &cobra.Command{
		Use:   "status DEVICE",
		Short: "Probe a device and print whether it is up",
		Args:  cobra.ExactArgs(1),
		RunE: deviceRunE(func(ctx context.Context, cmd *cobra.Command, dev *device.Device, _ []string) error {
			latency, err := dev.Ping(ctx)
			switch {
			case err == nil:
				fmt.Fprintf(cmd.OutOrStdout(), "%s is %s (%s)\n", dev.Config().Name, models.StateUp, latency.Round(time.Microsecond))
				return nil
			case probe.IsDownError(err):
				fmt.Fprintf(cmd.OutOrStdout(), "%s is %s\n", dev.Config().Name, models.StateDown)
				log.Debug().Err(err).Msg("probe failed")
				return nil
			default:
				return err
			}
		}),
	}

	wakeCmd := &cobra.Command{
		Use:   "wake DEVICE",
		Short: "Send Wake-on-LAN packets to a device",
		Args:  cobra.ExactArgs(1),
		RunE: deviceRunE(func(ctx context.Context, cmd *cobra.Command, dev *device.Device, _ []string) error {
			if err := dev.Wake(ctx); err != nil {
				return err
			}
			if !wakeWait {
				return nil
			}
			ctx, cancel := withTimeout(ctx, waitTimeout)
			defer cancel()
			return dev.WaitUp(ctx)
		}),
	}
	wakeCmd.Flags().BoolVar(&wakeWait, "wait", false, "wait until the device is up")
	wakeCmd.Flags().DurationVar(&waitTimeout, "timeout", 0, "give up waiting after this long (0 waits forever)")

	waitUpCmd := &cobra.Command{
		Use:   "waitup DEVICE",
		Short: "Wait until a device is up",
		Args:  cobra.ExactArgs(1),
		RunE: deviceRunE(func(ctx context.Context, cmd *cobra.Command, dev *device.Device, _ []string) error {
			ctx, cancel := withTimeout(ctx, waitTimeout)
			defer cancel()
			return dev.WaitUp(ctx)
		}),
	}
	waitUpCmd.Flags().DurationVar(&waitTimeout, "timeout", 0, "give up after this long (0 waits forever)")

	waitDownCmd := &cobra.Command{
		Use:   "waitdown DEVICE",
		Short: "Wait until a device is down",
		Args:  cobra.ExactArgs(1),
		RunE: deviceRunE(func(ctx context.Context, cmd *cobra.Command, dev *device.Device, _ []string) error {
			ctx, cancel := withTimeout(ctx, waitTimeout)
			defer cancel()
			return dev.WaitDown(ctx)
		}),
	}
	waitDownCmd.Flags().DurationVar(&waitTimeout, "timeout", 0, "give up after this long (0 waits forever)")

	execCmd := &cobra.Command{
		Use:   "exec DEVICE -- COMMAND...",
		Short: "Run a command on a device and print its output",
		Args:  cobra.MinimumNArgs(2),
		RunE: deviceRunE(func(ctx context.Context, cmd *cobra.Command, dev *device.Device, args []string) error {
			out, err := dev.Exec(ctx, strings.Join(args, " "))
			fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		}),
	}

	interactiveCmd := &cobra.Command{
		Use:   "interactive DEVICE -- COMMAND...",
		Short: "Run a command on a device attached to this terminal",
		Args:  cobra.MinimumNArgs(2),
		RunE: deviceRunE(func(ctx context.Context, cmd *cobra.Command, dev *device.Device, args []string) error {
			status, err := dev.Interactive(ctx, strings.Join(args, " "), models.StdTerminal())
			if err != nil {
				return err
			}
			if status > 0 {
				return fmt.Errorf("command exited with status %d", status)
			}
			return nil
		}),
	}

	powerCmd := func(use, short string, op func(*device.Device, context.Context, models.Terminal) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " DEVICE",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: deviceRunE(func(ctx context.Context, cmd *cobra.Command, dev *device.Device, _ []string) error {
				return op(dev, ctx, models.StdTerminal())
			}),
		}
	}

	uptimeCmd := &cobra.Command{
		Use:   "uptime DEVICE",
		Short: "Print the uptime of a linux device",
		Args:  cobra.ExactArgs(1),
		RunE: deviceRunE(func(ctx context.Context, cmd *cobra.Command, dev *device.Device, _ []string) error {
			up, err := dev.Uptime(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", up.Round(), strings.TrimSpace(up.Short(" ")))
			return nil
		}),
	}

	meminfoCmd := &cobra.Command{
		Use:   "meminfo DEVICE",
		Short: "Print /proc/meminfo of a linux device",
		Args:  cobra.ExactArgs(1),
		RunE: deviceRunE(func(ctx context.Context, cmd *cobra.Command, dev *device.Device, _ []string) error {
			info, err := dev.Meminfo(ctx)
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(info))
			for k := range info {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", k, info[k])
			}
			return nil
		}),
	}

	pushCmd := &cobra.Command{
		Use:   "push DEVICE LOCAL REMOTE",
		Short: "Copy a local file onto a device",
		Args:  cobra.ExactArgs(3),
		RunE: deviceRunE(func(ctx context.Context, cmd *cobra.Command, dev *device.Device, args []string) error {
			_, err := dev.Push(ctx, args[0], args[1])
			return err
		}),
	}

	pullCmd := &cobra.Command{
		Use:   "pull DEVICE REMOTE LOCAL",
		Short: "Copy a file from a device",
		Args:  cobra.ExactArgs(3),
		RunE: deviceRunE(func(ctx context.Context, cmd *cobra.Command, dev *device.Device, args []string) error {
			_, err := dev.Pull(ctx, args[0], args[1])
			return err
		}),
	}

	root.AddCommand(
		resolveCmd,
		statusCmd,
		wakeCmd,
		waitUpCmd,
		waitDownCmd,
		execCmd,
		interactiveCmd,
		powerCmd("sleep", "Suspend a device", (*device.Device).Sleep),
		powerCmd("reboot", "Reboot a device", (*device.Device).Reboot),
		powerCmd("poweroff", "Power off a device", (*device.Device).Poweroff),
		uptimeCmd,
		meminfoCmd,
		pushCmd,
		pullCmd,
	)
}
