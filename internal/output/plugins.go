package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/buemura/reconcraft/internal/plugin"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// FormatPlugins renders the plugin listing in the given format.
func FormatPlugins(w io.Writer, format string, plugins []plugin.Status) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(plugins)
	case "markdown":
		fmt.Fprintln(w, "| Plugin | Runtime | Installed | Install | Description |")
		fmt.Fprintln(w, "|--------|---------|-----------|---------|-------------|")
		for _, p := range plugins {
			fmt.Fprintf(w, "| %s | %s | %t | %s | %s |\n",
				p.Name, p.Runtime, p.Installed, installHint(p), escapeMarkdown(p.Description))
		}
		return nil
	case "table":
	default:
		return fmt.Errorf("unknown output format %q (supported: table, json, markdown)", format)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Plugin", "Runtime", "Status", "Install", "Description"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetColumnSeparator("│")

	installed := 0
	for _, p := range plugins {
		status := color.RedString("missing")
		if p.Installed {
			status = color.GreenString("installed")
			installed++
		}
		table.Append([]string{p.Name, p.Runtime, status, installHint(p), p.Description})
	}
	table.Render()

	fmt.Fprintf(w, "  %d plugins, %d installed\n", len(plugins), installed)
	return nil
}

func installHint(p plugin.Status) string {
	hint := p.InstallHint
	if hint == "" {
		hint = "manual"
	}
	if p.InstallURL != "" {
		return hint + " (" + p.InstallURL + ")"
	}
	return hint
}
