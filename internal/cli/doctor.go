package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/beaconlabs/beacon/internal/endpoints"
	"github.com/beaconlabs/beacon/internal/logging"
	"github.com/beaconlabs/beacon/internal/probe"
	"github.com/beaconlabs/beacon/internal/tui"
)

// minimum columns for the live view's two-pane layout
const doctorMinWidth = 60

var (
	doctorCount  int
	doctorTarget string
	doctorLive   bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Probe collector endpoints",
	Long: `Probe the collector endpoints and report reachability and latency.
Each probe posts an empty batch; any HTTP response counts as reachable,
only transport failures count against an endpoint.

Examples:
  beacon doctor
  beacon doctor --count 50 --target diagnostics
  beacon doctor --live`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().IntVar(&doctorCount, "count", 20, "Probes per endpoint")
	doctorCmd.Flags().StringVar(&doctorTarget, "target", "", "Probe a single target (diagnostics, events, metrics)")
	doctorCmd.Flags().BoolVar(&doctorLive, "live", false, "Show a live probe view")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("count") {
		doctorCount = cfg.Probe.Count
	}

	reg, err := endpoints.NewRegistry(cfg.Endpoints)
	if err != nil {
		return err
	}

	targets := reg.Targets()
	if doctorTarget != "" {
		t, ok := endpoints.ParseTarget(doctorTarget)
		if !ok {
			return fmt.Errorf("unknown target %q (want diagnostics, events, or metrics)", doctorTarget)
		}
		targets = []endpoints.Target{t}
	}

	prober := probe.New(cfg, reg, doctorCount, logging.Nop())
	defer prober.Close()

	if doctorLive {
		if fd := int(os.Stdout.Fd()); term.IsTerminal(fd) {
			if width, _, err := term.GetSize(fd); err == nil && width >= doctorMinWidth {
				return runDoctorLive(prober, targets)
			}
		}
		fmt.Println(tui.DimStyle.Render("  live view needs a terminal at least 60 columns wide, running headless"))
	}

	return runDoctorHeadless(cmd.Context(), prober, targets)
}

func runDoctorLive(prober *probe.Prober, targets []endpoints.Target) error {
	m := tui.NewDoctorModel(targets, doctorCount)
	p := tea.NewProgram(m, tea.WithAltScreen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	go func() {
		var results []probe.Result
		for _, target := range targets {
			res, err := prober.RunTarget(ctx, target, func(a probe.Attempt) {
				p.Send(tui.ProbeAttemptMsg(a))
			})
			if err != nil {
				p.Send(tui.ProbeErrorMsg{Err: err})
				return
			}
			results = append(results, res)
		}
		p.Send(tui.ProbeCompleteMsg{Results: results})
	}()

	finalModel, err := p.Run()
	cancel()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	// Repeat the report on the plain terminal so it survives the
	// alt-screen teardown.
	model := finalModel.(tui.DoctorModel)
	if results := model.Results(); results != nil {
		printProbeResults(results)
	}
	return nil
}

func runDoctorHeadless(ctx context.Context, prober *probe.Prober, targets []endpoints.Target) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	fmt.Println()
	fmt.Println("  " + tui.MiniLogo() + "  " + tui.DimStyle.Render("doctor"))
	fmt.Println()

	var results []probe.Result
	for _, target := range targets {
		res, err := prober.RunTarget(ctx, target, func(a probe.Attempt) {
			fmt.Printf("\r  probing %-12s %d/%d", target, a.Seq, doctorCount)
		})
		fmt.Print("\r\033[K")
		if err != nil {
			fmt.Println(tui.WarningStyle.Render("  probe interrupted"))
			break
		}
		results = append(results, res)
	}

	printProbeResults(results)
	return nil
}

func printProbeResults(results []probe.Result) {
	fmt.Println()
	fmt.Println(strings.Repeat("─", 60))
	for _, res := range results {
		fmt.Println()
		if res.Reachable() {
			fmt.Printf("  %s %s\n",
				tui.SuccessStyle.Render(tui.CheckMark),
				tui.ValueStyle.Render(string(res.Target)+" reachable"))
		} else {
			fmt.Printf("  %s %s\n",
				tui.ErrorStyle.Render(tui.CrossMark),
				tui.ErrorStyle.Render(string(res.Target)+" unreachable"))
		}
		fmt.Printf("    %s %s\n", tui.LabelStyle.Render("URL:"), tui.DimStyle.Render(res.URL))
		fmt.Printf("    %s %s\n", tui.LabelStyle.Render("Responses:"), formatProbeStatuses(res))

		if res.Sent > res.Failed {
			fmt.Printf("    %s p50 %s  p95 %s  p99 %s\n",
				tui.LabelStyle.Render("Latency:"),
				tui.ValueStyle.Render(res.P50.Round(time.Millisecond).String()),
				tui.ValueStyle.Render(res.P95.Round(time.Millisecond).String()),
				tui.ValueStyle.Render(res.P99.Round(time.Millisecond).String()))
		}
		if res.LastErr != "" {
			fmt.Printf("    %s %s\n", tui.LabelStyle.Render("Last error:"), tui.ErrorStyle.Render(res.LastErr))
		}
	}
	fmt.Println()
	fmt.Println(strings.Repeat("─", 60))
	fmt.Println()
}

func formatProbeStatuses(res probe.Result) string {
	codes := make([]int, 0, len(res.Statuses))
	for code := range res.Statuses {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	parts := make([]string, 0, len(codes)+1)
	for _, code := range codes {
		part := fmt.Sprintf("%d x%d", code, res.Statuses[code])
		if code >= 200 && code < 300 {
			parts = append(parts, tui.SuccessStyle.Render(part))
		} else {
			parts = append(parts, tui.WarningStyle.Render(part))
		}
	}
	if res.Failed > 0 {
		parts = append(parts, tui.ErrorStyle.Render(fmt.Sprintf("failed x%d", res.Failed)))
	}
	if len(parts) == 0 {
		return tui.DimStyle.Render("none")
	}
	return strings.Join(parts, tui.DimStyle.Render(", "))
}
