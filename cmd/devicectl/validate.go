package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fgeck/devicectl/internal/config"
	"github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the configuration file without contacting any device.`,
	Args:  cobra.NoArgs,
	RunE:  validateConfig,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured devices",
	Args:  cobra.NoArgs,
	RunE:  listDevices,
}

func validateConfig(cmd *cobra.Command, args []string) error {
	path, err := homedir.Expand(configFile)
	if err != nil {
		return err
	}

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Error().Str("file", path).Msg("config file not found")
		return fmt.Errorf("config file not found: %s", path)
	}

	// Load configuration
	parser := config.NewParser()
	cfg, err := parser.LoadFile(path)
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("failed to parse config")
		return err
	}

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("configuration validation failed")
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Configuration is valid!")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Devices: %d\n", len(cfg.Devices))

	for _, dev := range cfg.Devices {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "%s:\n", dev.Name)
		fmt.Fprintf(out, "  Hostname: %s\n", dev.Hostname)
		if dev.Address != "" {
			fmt.Fprintf(out, "  Address: %s\n", dev.Address)
		}
		fmt.Fprintf(out, "  Username: %s\n", dev.Username)
		if dev.Platform != "" {
			fmt.Fprintf(out, "  Platform: %s\n", dev.Platform)
		}
		fmt.Fprintf(out, "  Ping Port: %d\n", dev.PingPort)
		fmt.Fprintf(out, "  SSH Port: %d\n", dev.SSH.Port)
		fmt.Fprintf(out, "  Timeout: %s\n", dev.Timeout)
		fmt.Fprintf(out, "  Interval: %s\n", dev.Interval)
		if len(dev.MACs) > 0 {
			fmt.Fprintf(out, "  MAC Addresses: %s\n", strings.Join(dev.MACs, ", "))
			fmt.Fprintf(out, "  Broadcast: %s:%d\n", dev.WOL.BroadcastIP, dev.WOL.Port)
		}
		if dev.SSH.KeyPath != "" {
			fmt.Fprintf(out, "  Key: %s\n", dev.SSH.KeyPath)
		}
		if dev.Password != "" || dev.SSH.Password != "" {
			fmt.Fprintf(out, "  Password: (configured)\n")
		}
		if dev.SSH.KnownHosts != "" {
			fmt.Fprintf(out, "  Known Hosts: %s\n", dev.SSH.KnownHosts)
		}
	}

	return nil
}

func listDevices(cmd *cobra.Command, args []string) error {
	cfg, err := loadInventory()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, dev := range cfg.Devices {
		if dev.Description != "" {
			fmt.Fprintf(out, "%s\t%s\t%s\n", dev.Name, dev.Hostname, dev.Description)
		} else {
			fmt.Fprintf(out, "%s\t%s\n", dev.Name, dev.Hostname)
		}
	}
	return nil
}
