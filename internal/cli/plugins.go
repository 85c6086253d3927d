package cli

import (
	"github.com/buemura/reconcraft/internal/output"
	"github.com/buemura/reconcraft/internal/toolcheck"
	"github.com/spf13/cobra"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List available tools and whether they are installed",
	RunE:  runPlugins,
}

func init() {
	rootCmd.AddCommand(pluginsCmd)
}

func runPlugins(cmd *cobra.Command, args []string) error {
	reg, _ := loadRegistry(appConfig, appLogger)
	warnRejected(cmd.ErrOrStderr(), reg.Rejected())

	return output.FormatPlugins(cmd.OutOrStdout(), appConfig.OutputFormat, reg.Statuses(toolcheck.New()))
}
