package cli

import (
	"fmt"
	"time"

	"github.com/buemura/reconcraft/internal/config"
	"github.com/buemura/reconcraft/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configFlag      string
	outputFlag      string
	verboseFlag     bool
	concurrencyFlag int
	timeoutFlag     time.Duration
	throttleFlag    time.Duration
	pluginDirFlag   string
	scanRootFlag    string
	profileFlag     string
	customFileFlag  string
	noManifestFlag  bool
)

// appConfig holds the loaded configuration, available after PersistentPreRunE.
var appConfig *config.Config

// appLogger writes to stderr at the level chosen by --verbose.
var appLogger = zerolog.Nop()

var rootCmd = &cobra.Command{
	Use:   "reconcraft",
	Short: "reconcraft · recon tool orchestration",
	Long: `reconcraft runs external reconnaissance tools (nmap, nuclei, whois, ...)
against a list of targets, with a bounded number of tools running at once,
and keeps every tool's raw output in a per-target scan tree.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var (
			cfg *config.Config
			err error
		)
		if configFlag != "" {
			cfg, err = config.LoadFromFile(configFlag)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		config.ApplyFlags(cfg, cmd)

		appConfig = cfg
		appLogger = logging.New(cmd.ErrOrStderr(), cfg.Verbose)
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFlag, "config", "", "config file (default "+config.ConfigFilePath()+")")
	flags.StringVarP(&outputFlag, "output", "o", "table", "output format: table, json, markdown")
	flags.BoolVarP(&verboseFlag, "verbose", "v", false, "verbose output")
	flags.IntVarP(&concurrencyFlag, "concurrency", "c", 4, "max tools running at once")
	flags.DurationVar(&timeoutFlag, "timeout", 0, "per-tool timeout (0 = none)")
	flags.DurationVar(&throttleFlag, "throttle", 250*time.Millisecond, "live output refresh interval")
	flags.StringVar(&pluginDirFlag, "plugin-dir", "", "directory with extra plugin descriptors")
	flags.StringVar(&scanRootFlag, "scan-root", "Scan Results", "root of the scan output tree")
	flags.StringVarP(&profileFlag, "profile", "p", "Normal", "scan profile: Aggressive, Normal, Passive, Custom")
	flags.StringVar(&customFileFlag, "custom-file", "", "custom profile file (default ./custom_scan_profile.json)")
	flags.BoolVar(&noManifestFlag, "no-manifest", false, "do not write run.json and findings.jsonl")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(versionCmd)
}
