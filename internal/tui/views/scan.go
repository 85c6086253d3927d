package views

import (
	"context"
	"fmt"
	"strings"

	"github.com/buemura/reconcraft/internal/process"
	"github.com/buemura/reconcraft/internal/scan"
	"github.com/buemura/reconcraft/internal/tui/styles"
	"github.com/buemura/reconcraft/pkg/types"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	logKeep    = 200
	logVisible = 12
	eventQueue = 512
)

// Runner executes one scan.
type Runner interface {
	Run(ctx context.Context, req scan.Request, token *process.Token, obs scan.Observer) (*types.ScanOutcome, error)
}

// ScanCompleteMsg is sent when a scan finishes.
type ScanCompleteMsg struct {
	Outcome *types.ScanOutcome
	Err     error
}

// ProgressMsg carries a progress percentage.
type ProgressMsg int

// LogMsg carries one log line.
type LogMsg string

// StatusMsg carries a scan status change.
type StatusMsg types.Status

// ScanModel is the view model for the scan progress view.
type ScanModel struct {
	spinner  spinner.Model
	progress progress.Model
	runner   Runner
	req      scan.Request
	token    *process.Token
	events   chan tea.Msg

	percent  int
	status   types.Status
	log      []string
	aborting bool
	done     bool
	err      string
}

// NewScanModel creates a scan progress view for req.
func NewScanModel(runner Runner, req scan.Request) ScanModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.ColorAccent)

	pb := progress.New(progress.WithDefaultGradient())
	pb.Width = 50

	return ScanModel{
		spinner:  sp,
		progress: pb,
		runner:   runner,
		req:      req,
		token:    process.NewToken(),
		events:   make(chan tea.Msg, eventQueue),
		status:   types.StatusIndeterminate,
	}
}

// Init starts the spinner, launches the scan and begins draining events.
func (m ScanModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.runScan(), waitForEvent(m.events))
}

// Update handles scan events, abort requests and spinner ticks.
func (m ScanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "a" && !m.done {
			m.Abort()
		}
		return m, nil

	case ProgressMsg:
		m.percent = int(msg)
		return m, waitForEvent(m.events)

	case LogMsg:
		m.log = append(m.log, string(msg))
		if over := len(m.log) - logKeep; over > 0 {
			m.log = append(m.log[:0:0], m.log[over:]...)
		}
		return m, waitForEvent(m.events)

	case StatusMsg:
		m.status = types.Status(msg)
		return m, waitForEvent(m.events)

	case ScanCompleteMsg:
		m.done = true
		if msg.Err != nil {
			m.err = msg.Err.Error()
		} else if msg.Outcome != nil {
			m.status = msg.Outcome.Status
		}
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// Abort cancels the running scan. It does not wait.
func (m *ScanModel) Abort() {
	m.aborting = true
	m.token.Cancel()
}

// Aborting reports whether an abort was requested.
func (m ScanModel) Aborting() bool {
	return m.aborting
}

// Done reports whether the scan has finished.
func (m ScanModel) Done() bool {
	return m.done
}

// Log returns the retained log lines.
func (m ScanModel) Log() []string {
	return m.log
}

// Percent returns the last reported progress.
func (m ScanModel) Percent() int {
	return m.percent
}

// View renders the scan progress.
func (m ScanModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("reconcraft · Scanning"))
	b.WriteString("\n\n")

	switch {
	case m.done && m.err != "":
		b.WriteString(styles.ErrorStyle.Render(fmt.Sprintf("Scan failed: %s", m.err)))
		b.WriteString("\n")
	case m.done:
		b.WriteString(fmt.Sprintf("Scan finished: %s\n", styles.StateStyle(string(m.status)).Render(string(m.status))))
	case m.aborting:
		b.WriteString(fmt.Sprintf("%s Aborting...\n", m.spinner.View()))
	default:
		b.WriteString(fmt.Sprintf("%s Running %s on %s\n",
			m.spinner.View(),
			styles.SelectedStyle.Render(strings.Join(m.req.Tools, ", ")),
			strings.Join(m.req.Targets, ", ")))
	}

	b.WriteString("\n")
	if m.status == types.StatusIndeterminate && !m.done {
		b.WriteString(styles.HelpStyle.Render("waiting for the first job..."))
	} else {
		b.WriteString(m.progress.ViewAs(float64(m.percent) / 100))
	}
	b.WriteString("\n\n")

	start := len(m.log) - logVisible
	if start < 0 {
		start = 0
	}
	for _, line := range m.log[start:] {
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(styles.HelpStyle.Render("esc menu • ctrl+c quit"))
	} else {
		b.WriteString(styles.HelpStyle.Render("a abort • ctrl+c quit"))
	}

	return b.String()
}

// runScan runs the scan inside a command goroutine. Observer callbacks are
// queued on the events channel, which is closed when the scan returns.
func (m ScanModel) runScan() tea.Cmd {
	runner, req, token, events := m.runner, m.req, m.token, m.events
	return func() tea.Msg {
		defer close(events)
		obs := scan.ObserverFuncs{
			OnProgress: func(p int) { offer(events, ProgressMsg(p)) },
			OnLog:      func(line string) { offer(events, LogMsg(line)) },
			OnStatus:   func(s types.Status) { offer(events, StatusMsg(s)) },
		}
		outcome, err := runner.Run(context.Background(), req, token, obs)
		return ScanCompleteMsg{Outcome: outcome, Err: err}
	}
}

// offer queues msg, dropping it when the UI has fallen behind.
func offer(ch chan<- tea.Msg, msg tea.Msg) {
	select {
	case ch <- msg:
	default:
	}
}

func waitForEvent(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}
