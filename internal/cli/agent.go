package cli

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/beaconlabs/beacon/internal/agent"
	"github.com/beaconlabs/beacon/internal/logging"
	"github.com/beaconlabs/beacon/internal/tui"
)

var (
	agentDetach  bool
	agentLogFile string
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the relay agent",
	Long: `Run the relay agent that drains the spool and ships batches to the
collector. The agent listens on a unix socket for commands from other
beacon invocations (send, status, flush, stop).

Example:
  beacon agent --config beacon.yaml
  beacon agent --detach`,
	RunE: runAgent,
}

func init() {
	agentCmd.Flags().BoolVarP(&agentDetach, "detach", "d", false, "Run in the background")
	agentCmd.Flags().StringVar(&agentLogFile, "log-file", "", "Write logs to this file instead of stderr")
	rootCmd.AddCommand(agentCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if agent.IsRunning(cfg.Agent.SocketPath) {
		fmt.Println()
		fmt.Println(tui.WarningStyle.Render(fmt.Sprintf("  %s agent is already running", tui.WarningSign)))
		fmt.Println(tui.DimStyle.Render("  Use 'beacon status' to inspect it"))
		fmt.Println(tui.DimStyle.Render("  Use 'beacon stop' to stop it"))
		fmt.Println()
		return nil
	}

	logFile := agentLogFile
	if logFile == "" && agentDetach {
		logFile = cfg.Agent.LogFile
	}

	if agentDetach {
		return detachAgent(logFile)
	}

	log, err := buildAgentLogger(logFile)
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := agent.New(cfg, log)
	if err != nil {
		return err
	}
	if err := a.Start(); err != nil {
		return err
	}

	if logFile == "" {
		printAgentBanner(a, cfg.Agent.SocketPath)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		if logFile == "" {
			fmt.Println()
			fmt.Println(tui.DimStyle.Render("  Draining spool and shutting down..."))
		}
		a.Stop()
	case <-a.Done():
		// Stopped through the socket.
	}

	return nil
}

func buildAgentLogger(logFile string) (*zap.Logger, error) {
	if logFile != "" {
		return logging.NewFile(logFile, verbose)
	}
	return logging.New(verbose)
}

// detachAgent re-executes the binary as a background agent with logs
// going to a file, then releases it.
func detachAgent(logFile string) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	args := []string{"agent", "--config", configPath, "--log-file", logFile}
	if verbose {
		args = append(args, "--verbose")
	}

	child := exec.Command(exe, args...)
	child.Stdout = nil
	child.Stderr = nil
	child.Stdin = nil

	if err := child.Start(); err != nil {
		return err
	}
	if err := child.Process.Release(); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(tui.SuccessStyle.Render(fmt.Sprintf("  %s agent started in the background", tui.CheckMark)))
	fmt.Println()
	fmt.Println(tui.DimStyle.Render("    Status:  beacon status"))
	fmt.Println(tui.DimStyle.Render(fmt.Sprintf("    Logs:    beacon logs -f   (%s)", logFile)))
	fmt.Println(tui.DimStyle.Render("    Stop:    beacon stop"))
	fmt.Println()
	return nil
}

func printAgentBanner(a *agent.Agent, socketPath string) {
	st := a.Status()
	fmt.Println()
	fmt.Println("  " + tui.MiniLogo() + "  " + tui.DimStyle.Render("agent"))
	fmt.Println()
	fmt.Println(tui.LabelStyle.Render("    App:      ") + tui.ValueStyle.Render(orDash(st.AppID)))
	fmt.Println(tui.LabelStyle.Render("    Target:   ") + tui.ValueStyle.Render(st.Target))
	fmt.Println(tui.LabelStyle.Render("    Endpoint: ") + tui.ValueStyle.Render(st.Endpoint))
	fmt.Println(tui.LabelStyle.Render("    Socket:   ") + tui.ValueStyle.Render(socketPath))
	if st.MetricsAddr != "" {
		fmt.Println(tui.LabelStyle.Render("    Metrics:  ") + tui.ValueStyle.Render(st.MetricsAddr))
	}
	fmt.Println()
	fmt.Println(tui.DimStyle.Render("  Ctrl+C to stop"))
	fmt.Println()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
