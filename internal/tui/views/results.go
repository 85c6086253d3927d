package views

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/buemura/reconcraft/internal/tui/styles"
	"github.com/buemura/reconcraft/pkg/types"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"
)

// ExportFile is where the results view writes the outcome as JSON.
const ExportFile = "reconcraft-outcome.json"

// ResultsModel is the view model for displaying a scan outcome.
type ResultsModel struct {
	outcome   *types.ScanOutcome
	jobs      []types.JobResult
	fs        afero.Fs
	cursor    int
	offset    int
	maxRows   int
	exported  bool
	exportErr string
}

// NewResultsModel creates a results view from a scan outcome. Jobs are
// listed by target, then tool.
func NewResultsModel(outcome *types.ScanOutcome) ResultsModel {
	if outcome == nil {
		outcome = &types.ScanOutcome{}
	}
	jobs := append([]types.JobResult(nil), outcome.Jobs...)
	sort.SliceStable(jobs, func(i, k int) bool {
		if jobs[i].Target != jobs[k].Target {
			return jobs[i].Target < jobs[k].Target
		}
		return jobs[i].Tool < jobs[k].Tool
	})
	return ResultsModel{
		outcome: outcome,
		jobs:    jobs,
		fs:      afero.NewOsFs(),
		maxRows: 20,
	}
}

// WithFs replaces the filesystem used for export.
func (m ResultsModel) WithFs(fs afero.Fs) ResultsModel {
	m.fs = fs
	return m
}

// Init returns nil (no initial command).
func (m ResultsModel) Init() tea.Cmd {
	return nil
}

// Update handles key events for scrolling and export.
func (m ResultsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.offset {
					m.offset = m.cursor
				}
			}
		case "down", "j":
			if m.cursor < len(m.jobs)-1 {
				m.cursor++
				if m.cursor >= m.offset+m.maxRows {
					m.offset = m.cursor - m.maxRows + 1
				}
			}
		case "e":
			m.exportJSON()
		case "q":
			return m, tea.Quit
		}
	}

	return m, nil
}

// View renders the job table.
func (m ResultsModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("reconcraft · Scan Results"))
	b.WriteString("\n\n")

	status := string(m.outcome.Status)
	b.WriteString(fmt.Sprintf("Scan %s: %s", m.outcome.ScanID, styles.StateStyle(status).Render(status)))
	if m.outcome.Aborted {
		b.WriteString(styles.StateAbortedStyle.Render("  (aborted)"))
	}
	b.WriteString("\n\n")

	if len(m.jobs) == 0 {
		b.WriteString("No jobs were run.\n")
	} else {
		b.WriteString(m.summaryLine())
		b.WriteString("\n\n")

		header := fmt.Sprintf("  %-30s %-12s %s", "TARGET", "TOOL", "STATE")
		b.WriteString(styles.HeaderStyle.Render(header))
		b.WriteString("\n")
		b.WriteString(strings.Repeat("─", 60))
		b.WriteString("\n")

		end := m.offset + m.maxRows
		if end > len(m.jobs) {
			end = len(m.jobs)
		}

		for i := m.offset; i < end; i++ {
			j := m.jobs[i]
			cursor := "  "
			if i == m.cursor {
				cursor = styles.CursorStyle.Render("> ")
			}
			state := styles.StateStyle(string(j.State)).Render(string(j.State))
			b.WriteString(fmt.Sprintf("%s%-30s %-12s %s\n", cursor, truncate(j.Target.String(), 30), j.Tool, state))
		}

		if len(m.jobs) > m.maxRows {
			b.WriteString(fmt.Sprintf("\n  Showing %d-%d of %d jobs\n", m.offset+1, end, len(m.jobs)))
		}

		b.WriteString("\n")
		b.WriteString(m.detailView(m.jobs[m.cursor]))
	}

	if m.exported {
		b.WriteString("\n")
		b.WriteString(styles.SelectedStyle.Render("Outcome exported to " + ExportFile))
	}
	if m.exportErr != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorStyle.Render(m.exportErr))
	}

	b.WriteString("\n")
	b.WriteString(styles.HelpStyle.Render("↑/↓ scroll • e export JSON • esc back • q quit"))

	return b.String()
}

func (m ResultsModel) summaryLine() string {
	counts := m.outcome.Counts()
	parts := []string{}
	for _, st := range []types.JobState{
		types.JobSucceeded, types.JobFailed, types.JobSkipped,
		types.JobAborted, types.JobCancelled,
	} {
		if c := counts[st]; c > 0 {
			parts = append(parts, styles.StateStyle(string(st)).Render(fmt.Sprintf("%s: %d", st, c)))
		}
	}
	return fmt.Sprintf("Total: %d jobs  [%s]", len(m.jobs), strings.Join(parts, "  "))
}

func (m ResultsModel) detailView(j types.JobResult) string {
	lines := []string{j.Message}
	if len(j.Command) > 0 {
		lines = append(lines, fmt.Sprintf("Command: %s", strings.Join(j.Command, " ")))
		lines = append(lines, fmt.Sprintf("Exit code: %d", j.ExitCode))
	}
	if j.RawLog != "" {
		lines = append(lines, fmt.Sprintf("Raw log: %s", j.RawLog))
	}
	return styles.BorderStyle.Render(strings.Join(lines, "\n"))
}

func (m *ResultsModel) exportJSON() {
	data, err := json.MarshalIndent(m.outcome, "", "  ")
	if err != nil {
		m.exportErr = fmt.Sprintf("export failed: %v", err)
		return
	}

	if err := afero.WriteFile(m.fs, ExportFile, data, 0o644); err != nil {
		m.exportErr = fmt.Sprintf("export failed: %v", err)
		return
	}

	m.exported = true
	m.exportErr = ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
