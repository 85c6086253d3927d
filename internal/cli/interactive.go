package cli

import (
	"github.com/buemura/reconcraft/internal/tui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Launch interactive TUI mode",
	Long:  "Start an interactive terminal UI for picking tools and targets and watching the scan run.",
	RunE:  runInteractive,
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

func runInteractive(cmd *cobra.Command, args []string) error {
	// The TUI owns the terminal; engine logs would corrupt it.
	logger := zerolog.Nop()

	reg, _ := loadRegistry(appConfig, logger)
	custom, err := customArgs(appConfig, nil)
	if err != nil {
		return err
	}
	sched := newScheduler(appConfig, reg, logger)

	return tui.Run(tui.Config{
		Registry: reg,
		Checker:  sched.Checker(),
		Runner:   sched,
		Defaults: baseRequest(appConfig, custom),
	})
}
