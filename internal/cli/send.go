package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/beaconlabs/beacon/internal/agent"
	"github.com/beaconlabs/beacon/internal/config"
	"github.com/beaconlabs/beacon/internal/diagnostics"
	"github.com/beaconlabs/beacon/internal/endpoints"
	"github.com/beaconlabs/beacon/internal/logging"
	"github.com/beaconlabs/beacon/internal/metrics"
	"github.com/beaconlabs/beacon/internal/spool"
	"github.com/beaconlabs/beacon/internal/tokenstore"
	"github.com/beaconlabs/beacon/internal/tui"
	"github.com/beaconlabs/beacon/pkg/telemetry"
)

var (
	sendAppID  string
	sendAPIKey string
	sendProj   string
	sendSender string
	sendEnv    string
	sendExtra  []string
	sendCount  int
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Record a diagnostics event",
	Long: `Record one diagnostics event for the app configured in beacon.yaml
(or given via flags). With a running agent the event goes through its
socket and ships on the next flush; without one it lands directly in
the spool and ships when an agent next runs.

Examples:
  beacon send
  beacon send --env staging --extra flush_interval=30s
  beacon send --app-id 1:234:ios:abc --count 10`,
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendAppID, "app-id", "", "Application ID (overrides config)")
	sendCmd.Flags().StringVar(&sendAPIKey, "api-key", "", "API key (overrides config)")
	sendCmd.Flags().StringVar(&sendProj, "project", "", "Project ID (overrides config)")
	sendCmd.Flags().StringVar(&sendSender, "sender", "", "Sender ID (overrides config)")
	sendCmd.Flags().StringVar(&sendEnv, "env", "", "Environment (overrides config)")
	sendCmd.Flags().StringArrayVar(&sendExtra, "extra", nil, "Extra config setting as key=value (repeatable; only keys are reported)")
	sendCmd.Flags().IntVar(&sendCount, "count", 1, "Number of events to record")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	opts := &telemetry.Options{
		APIKey:      cfg.App.APIKey,
		AppID:       cfg.App.AppID,
		ProjectID:   cfg.App.ProjectID,
		SenderID:    cfg.App.SenderID,
		Environment: cfg.App.Environment,
		Extra:       map[string]string{},
	}
	for k, v := range cfg.App.Extra {
		opts.Extra[k] = v
	}
	if sendAppID != "" {
		opts.AppID = sendAppID
	}
	if sendAPIKey != "" {
		opts.APIKey = sendAPIKey
	}
	if sendProj != "" {
		opts.ProjectID = sendProj
	}
	if sendSender != "" {
		opts.SenderID = sendSender
	}
	if sendEnv != "" {
		opts.Environment = sendEnv
	}
	for _, kv := range sendExtra {
		k, v, found := strings.Cut(kv, "=")
		if !found || k == "" {
			return fmt.Errorf("bad --extra %q, want key=value", kv)
		}
		opts.Extra[k] = v
	}

	if sendCount < 1 {
		sendCount = 1
	}

	if agent.IsRunning(cfg.Agent.SocketPath) {
		return sendViaAgent(cfg.Agent.SocketPath, opts)
	}
	return sendDirect(cmd.Context(), cfg, opts)
}

// sendViaAgent records through the running agent's socket.
func sendViaAgent(socketPath string, opts *telemetry.Options) error {
	data, err := json.Marshal(opts)
	if err != nil {
		return err
	}

	for i := 0; i < sendCount; i++ {
		resp, err := agent.SendCommand(socketPath, agent.Command{Type: "record", Data: data})
		if err != nil {
			return err
		}
		if !resp.Success {
			return fmt.Errorf("agent refused event: %s", resp.Message)
		}
	}

	fmt.Println()
	fmt.Println(tui.SuccessStyle.Render(fmt.Sprintf("  %s %d event(s) handed to agent", tui.CheckMark, sendCount)))
	fmt.Println()
	return nil
}

// sendDirect spools events without an agent and attempts one flush so a
// reachable collector gets them right away. Whatever stays behind ships
// when an agent next runs.
func sendDirect(ctx context.Context, cfg *config.Config, opts *telemetry.Options) error {
	sp, err := spool.Open(cfg.Spool.Path, cfg.Spool.MaxEvents)
	if err != nil {
		return err
	}
	defer sp.Close()

	var hook *diagnostics.Hook
	if cfg.Scrub.Enabled {
		hook, err = diagnostics.NewHook(cfg.Scrub.Script, logging.Nop())
		if err != nil {
			return err
		}
	}

	m := metrics.New(nil)
	logger := diagnostics.NewLogger(sp, hook, m, logging.Nop())
	for i := 0; i < sendCount; i++ {
		if err := telemetry.Report(ctx, logger, opts); err != nil {
			return err
		}
	}

	reg, err := endpoints.NewRegistry(cfg.Endpoints)
	if err != nil {
		return err
	}
	up, err := diagnostics.NewUploader(cfg, sp, reg, tokenstore.New(cfg.Tokens.Path), m, nil, logging.Nop())
	if err != nil {
		return err
	}
	defer up.Close()

	if err := up.Flush(ctx); err != nil {
		return err
	}

	depth, _ := sp.Len(ctx)
	fmt.Println()
	if depth == 0 {
		fmt.Println(tui.SuccessStyle.Render(fmt.Sprintf("  %s %d event(s) sent", tui.CheckMark, sendCount)))
	} else {
		fmt.Println(tui.SuccessStyle.Render(fmt.Sprintf("  %s %d event(s) recorded", tui.CheckMark, sendCount)))
		fmt.Println(tui.WarningStyle.Render(fmt.Sprintf("  %s %d event(s) waiting in the spool", tui.WarningSign, depth)))
		fmt.Println(tui.DimStyle.Render("  Run 'beacon agent' to keep retrying in the background"))
	}
	fmt.Println()
	return nil
}
