package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/buemura/reconcraft/pkg/types"
)

// MarkdownFormatter renders the outcome as a Markdown table suitable for
// pasting into docs, issues, or pull-request descriptions.
type MarkdownFormatter struct{}

func (f *MarkdownFormatter) Format(w io.Writer, outcome *types.ScanOutcome) error {
	fmt.Fprintf(w, "## Scan %s (%s)\n\n", outcome.ScanID, outcome.Status)

	jobs := sortedJobs(outcome.Jobs)
	if len(jobs) == 0 {
		fmt.Fprintln(w, "_No jobs._")
		return nil
	}

	fmt.Fprintln(w, "| Target | Tool | State | Message |")
	fmt.Fprintln(w, "|--------|------|-------|---------|")
	for _, j := range jobs {
		fmt.Fprintf(w, "| %s | %s | **%s** | %s |\n",
			escapeMarkdown(j.Target.String()),
			escapeMarkdown(j.Tool),
			j.State,
			escapeMarkdown(j.Message),
		)
	}

	fmt.Fprintf(w, "\n**Summary:** %s\n", summary(outcome))
	return nil
}

// escapeMarkdown escapes pipe characters that would break Markdown tables.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", "\\|")
}
