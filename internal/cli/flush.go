package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beaconlabs/beacon/internal/agent"
	"github.com/beaconlabs/beacon/internal/tui"
)

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Flush spooled events now",
	Long: `Ask the running agent to upload everything currently in the spool
instead of waiting for the next flush interval. Events the collector
rejects or that fail in transit stay spooled for retry.`,
	RunE: runFlush,
}

func init() {
	rootCmd.AddCommand(flushCmd)
}

func runFlush(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	resp, err := agent.SendCommand(cfg.Agent.SocketPath, agent.Command{Type: "flush"})
	if err != nil {
		fmt.Println()
		fmt.Println(tui.ErrorStyle.Render(fmt.Sprintf("  %s agent is not running", tui.SignalOff)))
		fmt.Println()
		fmt.Println(tui.DimStyle.Render("  Start with: beacon agent"))
		fmt.Println()
		return nil
	}

	fmt.Println()
	if resp.Success {
		fmt.Println(tui.SuccessStyle.Render("  " + tui.CheckMark + " " + resp.Message))
	} else {
		fmt.Println(tui.ErrorStyle.Render("  " + tui.CrossMark + " " + resp.Message))
	}
	fmt.Println()
	return nil
}
