package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/beaconlabs/beacon/internal/agent"
	"github.com/beaconlabs/beacon/internal/tui"
)

var stopNoFlush bool

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the agent",
	Long: `Stop the running beacon agent gracefully.
The agent drains the spool (one final flush) before shutting down
unless --no-flush is given.`,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().BoolVar(&stopNoFlush, "no-flush", false, "Skip the final spool flush")
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Prefer the socket. The agent replies before it begins draining.
	if agent.IsRunning(cfg.Agent.SocketPath) {
		if !stopNoFlush {
			if resp, err := agent.SendCommand(cfg.Agent.SocketPath, agent.Command{Type: "flush"}); err == nil && resp.Message != "" {
				fmt.Println()
				fmt.Println(tui.DimStyle.Render("  " + resp.Message))
			}
		}
		if _, err := agent.SendCommand(cfg.Agent.SocketPath, agent.Command{Type: "stop"}); err == nil {
			waitForExit(cfg.Agent.PIDFile)
			fmt.Println()
			fmt.Println(tui.SuccessStyle.Render("  " + tui.CheckMark + " agent stopped"))
			fmt.Println()
			return nil
		}
	}

	// Socket gone but a pidfile may remain from a crashed agent.
	return stopByPID(cfg.Agent.PIDFile)
}

func stopByPID(pidPath string) error {
	pidData, err := os.ReadFile(pidPath)
	if err != nil {
		fmt.Println()
		fmt.Println(tui.WarningStyle.Render("  agent is not running"))
		fmt.Println()
		return nil
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
	if err != nil {
		fmt.Println()
		fmt.Println(tui.ErrorStyle.Render("  Invalid PID file"))
		fmt.Println()
		return nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		fmt.Println()
		fmt.Println(tui.WarningStyle.Render("  agent is not running"))
		fmt.Println()
		os.Remove(pidPath)
		return nil
	}

	fmt.Println()
	fmt.Println(tui.InfoStyle.Render("  Stopping agent (PID: " + strconv.Itoa(pid) + ")..."))

	if err := process.Signal(syscall.SIGTERM); err != nil {
		os.Remove(pidPath)
		fmt.Println(tui.SuccessStyle.Render("  " + tui.CheckMark + " agent stopped (was already finished)"))
		fmt.Println()
		return nil
	}

	waitForExit(pidPath)

	fmt.Println(tui.SuccessStyle.Render("  " + tui.CheckMark + " agent stopped"))
	fmt.Println()
	return nil
}

// waitForExit polls for the pidfile to disappear, up to 15 seconds.
// The drain flush can take a while when the collector is slow.
func waitForExit(pidPath string) {
	if pidPath == "" {
		return
	}
	for i := 0; i < 150; i++ {
		time.Sleep(100 * time.Millisecond)
		if _, err := os.Stat(pidPath); os.IsNotExist(err) {
			return
		}
	}
}
