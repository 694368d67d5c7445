package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beaconlabs/beacon/internal/endpoints"
	"github.com/beaconlabs/beacon/internal/tui"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List upload targets",
	Long:  `List the known upload targets and the collector URL each resolves to.`,
	RunE:  runTargets,
}

func init() {
	rootCmd.AddCommand(targetsCmd)
}

func runTargets(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reg, err := endpoints.NewRegistry(cfg.Endpoints)
	if err != nil {
		return err
	}

	overridden := map[endpoints.Target]bool{
		endpoints.TargetDiagnostics: cfg.Endpoints.Diagnostics != "",
		endpoints.TargetEvents:      cfg.Endpoints.Events != "",
		endpoints.TargetMetrics:     cfg.Endpoints.Metrics != "",
	}

	fmt.Println()
	for _, target := range reg.Targets() {
		u, _ := reg.UploadURL(target)

		marker := " "
		if target == endpoints.Target(cfg.Uploader.Target) {
			marker = tui.SuccessStyle.Render(tui.ArrowRight)
		}

		note := ""
		if overridden[target] {
			note = "  " + tui.WarningStyle.Render("(override)")
		}

		fmt.Printf("  %s %s  %s%s\n",
			marker,
			tui.ValueStyle.Render(fmt.Sprintf("%-12s", target)),
			tui.DimStyle.Render(u.String()),
			note,
		)
	}
	fmt.Println()
	fmt.Println(tui.DimStyle.Render(fmt.Sprintf("  %s marks the configured upload target", tui.ArrowRight)))
	fmt.Println()
	return nil
}
