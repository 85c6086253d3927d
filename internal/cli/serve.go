package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/buemura/reconcraft/internal/logging"
	"github.com/buemura/reconcraft/internal/metrics"
	"github.com/buemura/reconcraft/internal/plugin"
	"github.com/buemura/reconcraft/internal/web"
	"github.com/spf13/cobra"
)

var (
	addrFlag        string
	allowCustomArgs bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reconcraft control API",
	Long: `Serves the HTTP control API under /api/v1: start, watch, abort and
delete scans, and list plugins. Prometheus metrics are exposed on /metrics.
The plugin directory is watched and reloaded on change.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&addrFlag, "addr", "127.0.0.1:3000", "listen address (host:port)")
	serveCmd.Flags().BoolVar(&allowCustomArgs, "allow-custom-args", false, "accept custom_args in scan requests")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := logging.NewJSON(cmd.ErrOrStderr(), appConfig.Verbose)

	reg, refresh := loadRegistry(appConfig, logger)
	custom, err := customArgs(appConfig, nil)
	if err != nil {
		return err
	}
	sched := newScheduler(appConfig, reg, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if appConfig.PluginDir != "" {
		w, err := plugin.NewWatcher(appConfig.PluginDir, func() { refresh() }, logger)
		if err != nil {
			logger.Warn().Err(err).Str("dir", appConfig.PluginDir).Msg("plugin directory not watched")
		} else {
			defer w.Close()
			go w.Start(ctx)
		}
	}

	s := web.NewServer(addrFlag, web.Deps{
		Registry: reg,
		Runner:   sched,
		Checker:  sched.Checker(),
		Metrics:  metrics.Default(),
		Logger:   logger,
		Defaults: baseRequest(appConfig, custom),
		Refresh:  refresh,

		AllowCustomArgs: allowCustomArgs,
	})
	fmt.Fprintf(cmd.OutOrStdout(), "reconcraft control API listening on %s\n", addrFlag)
	return s.Run(ctx)
}
