package main

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const defaultConfigFile = "~/.config/devicectl/devices.yaml"

var (
	// Version is set at build time.
	Version = "dev"

	configFile string
	verbose    bool
	quiet      bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "devicectl",
	Short: "Control the machines of a homelab",
	Long: `devicectl manages a small inventory of machines:
  - TCP liveness checks and waiting for a machine to come up or go down
  - Wake-on-LAN to every network interface of a machine
  - Running commands locally or over SSH, answering sudo prompts
  - Suspend, reboot and poweroff
  - Uptime and memory information of linux machines
  - Copying files to and from a machine

The inventory is read from ` + defaultConfigFile + ` unless --config
points elsewhere. Values may reference environment variables as ${VAR}.
A machine whose hostname equals this machine's hostname runs its
commands locally instead of over SSH.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Logger = newLogger(cmd.ErrOrStderr())
		zerolog.SetGlobalLevel(logLevel())
	},
	Version: Version,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", defaultConfigFile, "inventory file")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	flags.BoolVarP(&quiet, "quiet", "q", false, "enable quiet mode (errors only)")
	flags.BoolVar(&jsonOutput, "json", false, "output logs in JSON format")

	rootCmd.AddCommand(validateCmd, listCmd)
	addDeviceCommands(rootCmd)
}

// newLogger logs to w, which is stderr outside of tests, so that command
// output on stdout stays machine readable.
func newLogger(w io.Writer) zerolog.Logger {
	if jsonOutput {
		return zerolog.New(w).With().Timestamp().Logger()
	}
	output := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	output.FormatLevel = func(i interface{}) string {
		if s, ok := i.(string); ok {
			return strings.ToUpper(s)
		}
		return ""
	}
	return zerolog.New(output).With().Timestamp().Logger()
}

func logLevel() zerolog.Level {
	switch {
	case quiet:
		return zerolog.ErrorLevel
	case verbose:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
