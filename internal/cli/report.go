package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/buemura/reconcraft/internal/manifest"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report <run-dir>...",
	Short: "Summarize recorded runs",
	Long:  "Reads run.json and findings.jsonl from each run directory and prints the runs with their CVE findings.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	fsys := afero.NewOsFs()
	reports := make([]*manifest.Report, 0, len(args))
	for _, dir := range args {
		rep, err := manifest.LoadRun(fsys, dir)
		if err != nil {
			return fmt.Errorf("run %s: %w", dir, err)
		}
		reports = append(reports, rep)
	}

	w := cmd.OutOrStdout()
	switch appConfig.OutputFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	case "table":
		writeReportTable(w, reports)
		return nil
	default:
		return fmt.Errorf("unknown output format %q for report (supported: table, json)", appConfig.OutputFormat)
	}
}

func writeReportTable(w io.Writer, reports []*manifest.Report) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Run", "Tool", "Targets", "Status", "Exit", "Crit", "High", "Med", "Low", "Info"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetColumnSeparator("│")

	findings := 0
	for _, rep := range reports {
		r := rep.Run
		table.Append([]string{
			r.RunID,
			r.Tool,
			strings.Join(r.Targets, ", "),
			r.Status,
			strconv.Itoa(r.ExitCode),
			strconv.Itoa(r.Counts.Critical),
			strconv.Itoa(r.Counts.High),
			strconv.Itoa(r.Counts.Medium),
			strconv.Itoa(r.Counts.Low),
			strconv.Itoa(r.Counts.Info),
		})
		findings += len(rep.Findings)
	}
	table.Render()

	for _, rep := range reports {
		for _, f := range rep.Findings {
			fmt.Fprintf(w, "  %s %s %s (%s)\n", color.CyanString(f.ID), f.Severity, f.Target, f.Tool)
		}
	}
	fmt.Fprintf(w, "  %d runs, %d findings\n", len(reports), findings)
}
