package cli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/buemura/reconcraft/internal/output"
	"github.com/buemura/reconcraft/internal/process"
	"github.com/buemura/reconcraft/internal/scan"
	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	targetsFlag     string
	targetsFileFlag string
	toolsFlag       string
	customFlag      map[string]string
)

var (
	errScanAborted = errors.New("scan aborted")
	errScanFailed  = errors.New("scan finished with errors")
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run tools against one or more targets",
	Long: `Runs every selected tool against every target, at most --concurrency
tools at a time. Ctrl+C aborts the scan: queued jobs are dropped and
running tools are terminated.`,
	Example: `  reconcraft scan -t example.com --tools nmap,whois
  reconcraft scan --targets-file hosts.txt --tools web -p Passive -o json`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&targetsFlag, "target", "t", "", "targets, comma or space separated")
	scanCmd.Flags().StringVar(&targetsFileFlag, "targets-file", "", "file with one target per line")
	scanCmd.Flags().StringVar(&toolsFlag, "tools", "all", "tools or tool sets to run, comma separated")
	scanCmd.Flags().StringToStringVar(&customFlag, "custom", nil, "custom args per tool, e.g. nmap='-sn {target}'")
}

func runScan(cmd *cobra.Command, args []string) error {
	targets := splitList(targetsFlag)
	if targetsFileFlag != "" {
		more, err := readTargetsFile(afero.NewOsFs(), targetsFileFlag)
		if err != nil {
			return err
		}
		targets = append(targets, more...)
	}
	if len(targets) == 0 {
		return fmt.Errorf("--target (-t) or --targets-file is required")
	}

	formatter, err := output.GetFormatter(appConfig.OutputFormat)
	if err != nil {
		return err
	}

	reg, _ := loadRegistry(appConfig, appLogger)
	warnRejected(cmd.ErrOrStderr(), reg.Rejected())

	tools := appConfig.ExpandTools(splitList(toolsFlag))
	if len(tools) == 0 || contains(tools, "all") {
		tools = reg.Names()
	}

	custom, err := customArgs(appConfig, customFlag)
	if err != nil {
		return err
	}

	req := baseRequest(appConfig, custom)
	req.Targets = targets
	req.Tools = tools

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	token := process.NewToken()
	printer := newLinePrinter(cmd.ErrOrStderr(), appConfig.Verbose)
	sched := newScheduler(appConfig, reg, appLogger)

	outcome, err := sched.Run(ctx, req, token, scan.ObserverFuncs{OnLog: printer.print})
	if err != nil {
		return err
	}

	if err := formatter.Format(cmd.OutOrStdout(), outcome); err != nil {
		return err
	}

	switch {
	case outcome.Aborted:
		return errScanAborted
	case outcome.AnyError:
		return errScanFailed
	}
	return nil
}

func readTargetsFile(fsys afero.Fs, path string) ([]string, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("reading targets file: %w", err)
	}

	var targets []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, splitList(line)...)
	}
	return targets, sc.Err()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// statusPrefixes mark the scheduler's own lines. Everything else is raw
// tool output and only shown with --verbose.
var statusPrefixes = []string{"✅", "❌", "⚠", "⏹", "⚙", "🧩", "🟢"}

// linePrinter serializes observer lines coming from concurrent jobs.
type linePrinter struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
}

func newLinePrinter(w io.Writer, verbose bool) *linePrinter {
	return &linePrinter{w: w, verbose: verbose}
}

func (p *linePrinter) print(line string) {
	if !p.verbose && !hasStatusPrefix(line) {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case strings.HasPrefix(line, "✅"):
		color.New(color.FgGreen).Fprintln(p.w, line)
	case strings.HasPrefix(line, "❌"):
		color.New(color.FgRed).Fprintln(p.w, line)
	case strings.HasPrefix(line, "⚠"), strings.HasPrefix(line, "⏹"):
		color.New(color.FgYellow).Fprintln(p.w, line)
	case strings.HasPrefix(line, "DEBUG CMD:"), strings.HasPrefix(line, "ARGS RECEIVED:"):
		color.New(color.Faint).Fprintln(p.w, line)
	default:
		fmt.Fprintln(p.w, line)
	}
}

func hasStatusPrefix(line string) bool {
	for _, p := range statusPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}
