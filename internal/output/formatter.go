package output

import (
	"fmt"
	"io"

	"github.com/buemura/reconcraft/pkg/types"
)

// Formatter renders a scan outcome to a writer.
type Formatter interface {
	Format(w io.Writer, outcome *types.ScanOutcome) error
}

// GetFormatter returns the appropriate formatter for the given format string.
func GetFormatter(format string) (Formatter, error) {
	switch format {
	case "table":
		return &TableFormatter{}, nil
	case "json":
		return &JSONFormatter{}, nil
	case "markdown":
		return &MarkdownFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (supported: table, json, markdown)", format)
	}
}

// summary counts jobs per state in a fixed order.
func summary(o *types.ScanOutcome) string {
	c := o.Counts()
	return fmt.Sprintf("%d jobs (%d succeeded, %d failed, %d skipped, %d aborted, %d cancelled)",
		o.Total,
		c[types.JobSucceeded],
		c[types.JobFailed],
		c[types.JobSkipped],
		c[types.JobAborted],
		c[types.JobCancelled],
	)
}
