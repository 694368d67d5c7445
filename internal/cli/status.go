package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/beaconlabs/beacon/internal/agent"
	"github.com/beaconlabs/beacon/internal/config"
	"github.com/beaconlabs/beacon/internal/tui"
)

var (
	statusJSON    bool
	statusWatch   bool
	statusMetrics bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show agent status",
	Long: `Display the current status of the beacon agent.

Examples:
  beacon status            Show current status
  beacon status -w         Watch status (refresh every second)
  beacon status --json     Output as JSON
  beacon status --metrics  Include a scrape of the agent's metrics`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Watch mode (refresh every second)")
	statusCmd.Flags().BoolVar(&statusMetrics, "metrics", false, "Scrape and print the agent's beacon_* metrics")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if statusWatch {
		return watchStatus(cfg.Agent.SocketPath)
	}
	return showStatus(cfg)
}

func showStatus(cfg *config.Config) error {
	resp, err := agent.SendCommand(cfg.Agent.SocketPath, agent.Command{Type: "status"})
	if err != nil {
		fmt.Println()
		fmt.Println(tui.ErrorStyle.Render(fmt.Sprintf("  %s agent is not running", tui.SignalOff)))
		fmt.Println()
		fmt.Println(tui.DimStyle.Render("  Start with: beacon agent"))
		fmt.Println()
		return nil
	}

	if statusJSON {
		output, _ := json.MarshalIndent(resp.Data, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	statusData, _ := json.Marshal(resp.Data)
	var status agent.Status
	json.Unmarshal(statusData, &status)

	printStatus(status)

	if statusMetrics && cfg.Metrics.Enabled {
		if err := printMetrics(cfg.Metrics.Address, cfg.Metrics.Path); err != nil {
			fmt.Println(tui.WarningStyle.Render(fmt.Sprintf("  %s metrics scrape failed: %v", tui.WarningSign, err)))
			fmt.Println()
		}
	}
	return nil
}

func watchStatus(socketPath string) error {
	// Clear screen
	fmt.Print("\033[H\033[2J")

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		// Move cursor to top
		fmt.Print("\033[H")

		resp, err := agent.SendCommand(socketPath, agent.Command{Type: "status"})
		if err != nil {
			fmt.Println(tui.ErrorStyle.Render("Connection lost. Agent may have stopped."))
			return nil
		}

		statusData, _ := json.Marshal(resp.Data)
		var status agent.Status
		json.Unmarshal(statusData, &status)

		printStatus(status)
		fmt.Println()
		fmt.Println(tui.DimStyle.Render("Press Ctrl+C to exit watch mode"))

		<-ticker.C
	}
}

func printStatus(status agent.Status) {
	fmt.Println()

	header := lipgloss.JoinHorizontal(lipgloss.Center,
		tui.MiniLogo(),
		"  ",
		tui.TitleStyle.Render(" STATUS "),
	)
	fmt.Println(header)
	fmt.Println()

	var statusIcon, statusText string
	if status.Running {
		statusIcon = tui.SuccessStyle.Render(tui.SignalOn)
		statusText = tui.SuccessStyle.Render("RELAYING")
	} else {
		statusIcon = tui.ErrorStyle.Render(tui.SignalOff)
		statusText = tui.ErrorStyle.Render("STOPPED")
	}

	fmt.Printf("  %s %s  %s\n", statusIcon, statusText, tui.DimStyle.Render(fmt.Sprintf("pid %d", status.PID)))
	fmt.Println()

	var content strings.Builder

	content.WriteString(tui.SubtitleStyle.Render("Relay"))
	content.WriteString("\n")
	content.WriteString(fmt.Sprintf("  App:       %s\n", tui.ValueStyle.Render(orDash(status.AppID))))
	content.WriteString(fmt.Sprintf("  Target:    %s\n", tui.ValueStyle.Render(status.Target)))
	content.WriteString(fmt.Sprintf("  Endpoint:  %s\n", tui.DimStyle.Render(status.Endpoint)))
	content.WriteString(fmt.Sprintf("  Protocol:  %s\n", tui.LabelStyle.Render(status.Protocol)))
	content.WriteString("\n")

	content.WriteString(tui.SubtitleStyle.Render("Spool"))
	content.WriteString("\n")
	depthStyle := tui.ValueStyle
	if status.SpoolDepth > 0 {
		depthStyle = tui.WarningStyle
	}
	content.WriteString(fmt.Sprintf("  Pending:   %s\n", depthStyle.Render(fmt.Sprintf("%d event(s)", status.SpoolDepth))))
	content.WriteString("\n")

	if status.MetricsAddr != "" {
		content.WriteString(tui.SubtitleStyle.Render("Metrics"))
		content.WriteString("\n")
		content.WriteString(fmt.Sprintf("  %s\n", tui.DimStyle.Render(status.MetricsAddr)))
		content.WriteString("\n")
	}

	content.WriteString(tui.SubtitleStyle.Render("Uptime"))
	content.WriteString("\n")
	content.WriteString(fmt.Sprintf("  %s\n", tui.ValueStyle.Render(status.Uptime)))

	box := tui.BorderStyle.Width(50).Render(content.String())
	fmt.Println(box)
}

// printMetrics scrapes the agent's exposition endpoint and prints the
// beacon_* families in a compact form.
func printMetrics(addr, path string) error {
	url := fmt.Sprintf("http://%s%s", strings.TrimPrefix(addr, "http://"), path)
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return fmt.Errorf("parse exposition: %w", err)
	}

	names := make([]string, 0, len(families))
	for name := range families {
		if strings.HasPrefix(name, "beacon_") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var content strings.Builder
	content.WriteString(tui.SubtitleStyle.Render("Scrape"))
	content.WriteString("\n")
	for _, name := range names {
		for _, m := range families[name].GetMetric() {
			content.WriteString(fmt.Sprintf("  %s%s  %s\n",
				tui.LabelStyle.Render(name),
				tui.DimStyle.Render(formatLabels(m)),
				tui.ValueStyle.Render(formatSample(families[name], m)),
			))
		}
	}

	fmt.Println(tui.BorderStyle.Width(70).Render(content.String()))
	return nil
}

func formatLabels(m *dto.Metric) string {
	if len(m.GetLabel()) == 0 {
		return ""
	}
	parts := make([]string, 0, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		parts = append(parts, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func formatSample(family *dto.MetricFamily, m *dto.Metric) string {
	switch family.GetType() {
	case dto.MetricType_COUNTER:
		return fmt.Sprintf("%.0f", m.GetCounter().GetValue())
	case dto.MetricType_GAUGE:
		return fmt.Sprintf("%.0f", m.GetGauge().GetValue())
	case dto.MetricType_HISTOGRAM:
		h := m.GetHistogram()
		return fmt.Sprintf("count=%d sum=%.3f", h.GetSampleCount(), h.GetSampleSum())
	case dto.MetricType_SUMMARY:
		s := m.GetSummary()
		return fmt.Sprintf("count=%d sum=%.3f", s.GetSampleCount(), s.GetSampleSum())
	default:
		return m.String()
	}
}
