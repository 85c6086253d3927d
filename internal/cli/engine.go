package cli

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/buemura/reconcraft/internal/config"
	"github.com/buemura/reconcraft/internal/metrics"
	"github.com/buemura/reconcraft/internal/plugin"
	"github.com/buemura/reconcraft/internal/profile"
	"github.com/buemura/reconcraft/internal/scan"
	"github.com/buemura/reconcraft/internal/toolcheck"
	"github.com/buemura/reconcraft/plugins"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// loadRegistry builds the registry from the built-in descriptors plus the
// configured plugin directory. The returned func reloads both.
func loadRegistry(cfg *config.Config, logger zerolog.Logger) (*plugin.Registry, func() []plugin.Rejected) {
	reg := plugin.NewRegistry(logger)
	refresh := func() []plugin.Rejected {
		sources := []fs.FS{plugins.FS}
		if cfg.PluginDir != "" {
			sources = append(sources, os.DirFS(cfg.PluginDir))
		}
		return reg.Refresh(sources...)
	}
	refresh()
	return reg, refresh
}

func warnRejected(w io.Writer, rejected []plugin.Rejected) {
	for _, r := range rejected {
		fmt.Fprintf(w, "%s plugin %s skipped: %s\n", color.YellowString("warning:"), r.File, r.Reason)
	}
}

func newScheduler(cfg *config.Config, reg *plugin.Registry, logger zerolog.Logger) *scan.Scheduler {
	return scan.NewScheduler(reg,
		scan.WithChecker(toolcheck.New()),
		scan.WithMetrics(metrics.Default()),
		scan.WithLogger(logger),
		scan.WithThrottle(cfg.Throttle),
		scan.WithManifest(cfg.Manifest),
	)
}

func customFilePath(cfg *config.Config) string {
	if cfg.CustomArgsFile != "" {
		return cfg.CustomArgsFile
	}
	return profile.DefaultCustomFile
}

// customArgs layers the custom profile file, the config file's custom_args
// and per-invocation overrides, later layers winning.
func customArgs(cfg *config.Config, extra map[string]string) (map[string]string, error) {
	fromFile, err := profile.LoadCustomArgs(afero.NewOsFs(), customFilePath(cfg))
	if err != nil {
		return nil, err
	}
	return profile.MergeCustomArgs(profile.MergeCustomArgs(fromFile, cfg.CustomArgs), extra), nil
}

func baseRequest(cfg *config.Config, custom map[string]string) scan.Request {
	return scan.Request{
		ScanRoot:    cfg.ScanRoot,
		Profile:     cfg.Profile,
		CustomArgs:  custom,
		Concurrency: cfg.Concurrency,
		Timeout:     cfg.Timeout,
	}
}

// splitList splits on commas, semicolons and whitespace.
func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}
