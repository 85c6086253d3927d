package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/buemura/reconcraft/pkg/types"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// TableFormatter renders the outcome as a colored terminal table.
type TableFormatter struct{}

func (f *TableFormatter) Format(w io.Writer, outcome *types.ScanOutcome) error {
	fmt.Fprintf(w, "\nScan %s: %s\n", outcome.ScanID, colorStatus(outcome.Status))

	jobs := sortedJobs(outcome.Jobs)
	if len(jobs) == 0 {
		fmt.Fprintln(w, "  No jobs.")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Target", "Tool", "State", "Exit", "Raw Log"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetColumnSeparator("│")

	for _, j := range jobs {
		exit := ""
		if len(j.Command) > 0 {
			exit = strconv.Itoa(j.ExitCode)
		}
		table.Append([]string{j.Target.String(), j.Tool, colorState(j.State), exit, j.RawLog})
	}
	table.Render()

	fmt.Fprintf(w, "  Summary: %s\n", summary(outcome))
	return nil
}

// sortedJobs orders jobs by target, then tool, without touching the input.
func sortedJobs(in []types.JobResult) []types.JobResult {
	jobs := append([]types.JobResult(nil), in...)
	sort.SliceStable(jobs, func(i, k int) bool {
		if jobs[i].Target != jobs[k].Target {
			return jobs[i].Target < jobs[k].Target
		}
		return jobs[i].Tool < jobs[k].Tool
	})
	return jobs
}

func colorState(s types.JobState) string {
	switch s {
	case types.JobSucceeded:
		return color.GreenString("SUCCEEDED")
	case types.JobFailed:
		return color.RedString("FAILED")
	case types.JobSkipped:
		return color.YellowString("SKIPPED")
	case types.JobAborted:
		return color.MagentaString("ABORTED")
	case types.JobCancelled:
		return color.WhiteString("CANCELLED")
	default:
		return string(s)
	}
}

func colorStatus(s types.Status) string {
	switch s {
	case types.StatusDoneSuccess:
		return color.GreenString(string(s))
	case types.StatusDoneError:
		return color.RedString(string(s))
	default:
		return string(s)
	}
}
