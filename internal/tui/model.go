// Package tui is the interactive terminal front end: pick tools and a
// profile, enter targets, watch the scan and browse the outcome.
package tui

import (
	"github.com/buemura/reconcraft/internal/plugin"
	"github.com/buemura/reconcraft/internal/scan"
	"github.com/buemura/reconcraft/internal/toolcheck"
	"github.com/buemura/reconcraft/internal/tui/views"
	tea "github.com/charmbracelet/bubbletea"
)

// appState represents which view is currently active.
type appState int

const (
	stateMenu    appState = iota // Tool and profile selection
	stateTarget                  // Target input
	stateScan                    // Scan in progress
	stateResults                 // Outcome display
)

// Config wires the TUI to the engine.
type Config struct {
	Registry *plugin.Registry
	Checker  *toolcheck.Checker
	Runner   views.Runner
	// Defaults seeds every scan request; the TUI fills in targets, tools
	// and profile.
	Defaults scan.Request
}

// Model is the root Bubble Tea model that manages view transitions.
type Model struct {
	state  appState
	cfg    Config
	width  int
	height int

	// Sub-models for each view.
	menu    views.MenuModel
	target  views.TargetModel
	scan    views.ScanModel
	results views.ResultsModel
}

// NewModel creates a root model. The menu lists every registered tool with
// its current availability.
func NewModel(cfg Config) Model {
	if cfg.Checker == nil {
		cfg.Checker = toolcheck.New()
	}
	return Model{
		state:  stateMenu,
		cfg:    cfg,
		menu:   views.NewMenuModel(menuItems(cfg)),
		target: views.NewTargetModel(),
	}
}

func menuItems(cfg Config) []views.ToolItem {
	cfg.Checker.Reset()
	statuses := cfg.Registry.Statuses(cfg.Checker)
	items := make([]views.ToolItem, len(statuses))
	for i, st := range statuses {
		items[i] = views.ToolItem{
			Name:        st.Name,
			Description: st.Description,
			Installed:   st.Installed,
			InstallHint: st.InstallHint,
		}
	}
	return items
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages and manages state transitions.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.state == stateScan && !m.scan.Done() {
				m.scan.Abort()
			}
			return m, tea.Quit
		case "esc":
			return m.handleBack()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	switch m.state {
	case stateMenu:
		return m.updateMenu(msg)
	case stateTarget:
		return m.updateTarget(msg)
	case stateScan:
		return m.updateScan(msg)
	case stateResults:
		return m.updateResults(msg)
	}

	return m, nil
}

// View renders the current view.
func (m Model) View() string {
	switch m.state {
	case stateMenu:
		return m.menu.View()
	case stateTarget:
		return m.target.View()
	case stateScan:
		return m.scan.View()
	case stateResults:
		return m.results.View()
	}
	return ""
}

func (m Model) handleBack() (tea.Model, tea.Cmd) {
	switch m.state {
	case stateTarget:
		m.state = stateMenu
		return m, nil
	case stateScan:
		if m.scan.Done() {
			m.state = stateMenu
			m.menu = views.NewMenuModel(menuItems(m.cfg))
		}
		return m, nil
	case stateResults:
		m.state = stateMenu
		m.menu = views.NewMenuModel(menuItems(m.cfg))
		return m, nil
	}
	return m, nil
}

func (m Model) updateMenu(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "enter" {
		if tools := m.menu.Selected(); len(tools) > 0 {
			m.target = views.NewTargetModel()
			m.target.SetSelection(tools, m.menu.Profile())
			m.state = stateTarget
			return m, m.target.Init()
		}
	}

	updated, cmd := m.menu.Update(msg)
	m.menu = updated.(views.MenuModel)
	return m, cmd
}

func (m Model) updateTarget(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "enter" {
		targets, err := m.target.ValidatedTargets()
		if err == nil {
			req := m.cfg.Defaults
			req.Targets = make([]string, len(targets))
			for i, t := range targets {
				req.Targets[i] = t.String()
			}
			req.Tools = m.target.Tools()
			req.Profile = m.target.Profile()

			m.scan = views.NewScanModel(m.cfg.Runner, req)
			m.state = stateScan
			return m, m.scan.Init()
		}
	}

	updated, cmd := m.target.Update(msg)
	m.target = updated.(views.TargetModel)
	return m, cmd
}

func (m Model) updateScan(msg tea.Msg) (tea.Model, tea.Cmd) {
	if scanMsg, ok := msg.(views.ScanCompleteMsg); ok && scanMsg.Err == nil {
		m.results = views.NewResultsModel(scanMsg.Outcome)
		m.state = stateResults
		return m, nil
	}

	updated, cmd := m.scan.Update(msg)
	m.scan = updated.(views.ScanModel)
	return m, cmd
}

func (m Model) updateResults(msg tea.Msg) (tea.Model, tea.Cmd) {
	updated, cmd := m.results.Update(msg)
	m.results = updated.(views.ResultsModel)
	return m, cmd
}
