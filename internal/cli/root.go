package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/beaconlabs/beacon/internal/config"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configPath string
	verbose    bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "beacon",
	Short: "App Diagnostics Telemetry Relay",
	Long: `
    ██████╗ ███████╗ █████╗  ██████╗ ██████╗ ███╗   ██╗
    ██╔══██╗██╔════╝██╔══██╗██╔════╝██╔═══██╗████╗  ██║
    ██████╔╝█████╗  ███████║██║     ██║   ██║██╔██╗ ██║
    ██╔══██╗██╔══╝  ██╔══██║██║     ██║   ██║██║╚██╗██║
    ██████╔╝███████╗██║  ██║╚██████╗╚██████╔╝██║ ╚████║
    ╚═════╝ ╚══════╝╚═╝  ╚═╝ ╚═════╝ ╚═════╝ ╚═╝  ╚═══╝

beacon captures app diagnostics events, spools them locally, and
relays them to a collector in the background.

Get started:
  beacon agent       Run the relay agent
  beacon send        Record a diagnostics event
  beacon status      Check the running agent
  beacon doctor      Check collector connectivity
  beacon stop        Stop the running agent`,
	Version: fmt.Sprintf("%s (built %s)", version, buildTime),
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "beacon.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
}

// loadConfig reads the configured file, falling back to defaults when
// it does not exist.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// SetVersion sets the version info
func SetVersion(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}
