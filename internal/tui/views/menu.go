package views

import (
	"fmt"
	"strings"

	"github.com/buemura/reconcraft/internal/profile"
	"github.com/buemura/reconcraft/internal/tui/styles"
	tea "github.com/charmbracelet/bubbletea"
)

// ToolItem represents a tool available in the menu.
type ToolItem struct {
	Name        string
	Description string
	Installed   bool
	InstallHint string
}

// MenuModel is the view model for tool and profile selection.
type MenuModel struct {
	items    []ToolItem
	cursor   int
	selected map[int]bool
	profile  int
	err      string
}

// NewMenuModel creates a menu with the given tool items. Installed tools
// start selected.
func NewMenuModel(items []ToolItem) MenuModel {
	m := MenuModel{items: items, selected: make(map[int]bool), profile: 1}
	for i, it := range items {
		if it.Installed {
			m.selected[i] = true
		}
	}
	return m
}

// Init returns nil (no initial command).
func (m MenuModel) Init() tea.Cmd {
	return nil
}

// Update handles key navigation in the menu.
func (m MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.err = ""
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case " ", "x":
			if len(m.items) > 0 {
				m.toggle(m.cursor)
			}
		case "a":
			m.toggleAll()
		case "p", "tab":
			m.profile = (m.profile + 1) % len(profile.Names)
		case "enter":
			if len(m.Selected()) == 0 {
				m.err = "select at least one tool"
			}
		case "q":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *MenuModel) toggle(i int) {
	next := make(map[int]bool, len(m.selected))
	for k, v := range m.selected {
		next[k] = v
	}
	next[i] = !next[i]
	m.selected = next
}

// toggleAll selects every tool, or clears the selection when all are
// already selected.
func (m *MenuModel) toggleAll() {
	all := len(m.Selected()) == len(m.items)
	next := make(map[int]bool, len(m.items))
	for i := range m.items {
		next[i] = !all
	}
	m.selected = next
}

// View renders the tool selection menu.
func (m MenuModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("reconcraft · Interactive Mode"))
	b.WriteString("\n\n")
	b.WriteString(styles.HeaderStyle.Render("Select tools to run:"))
	b.WriteString("\n")

	if len(m.items) == 0 {
		b.WriteString(styles.ErrorStyle.Render("No plugins loaded."))
		b.WriteString("\n")
	}

	for i, item := range m.items {
		cursor := "  "
		nameStyle := styles.HelpStyle
		if i == m.cursor {
			cursor = styles.CursorStyle.Render("> ")
			nameStyle = styles.SelectedStyle
		}

		box := "[ ]"
		if m.selected[i] {
			box = "[x]"
		}

		status := styles.InstalledStyle.Render("installed")
		if !item.Installed {
			hint := item.InstallHint
			if hint == "" {
				hint = "manual"
			}
			status = styles.MissingStyle.Render("missing (" + hint + ")")
		}

		b.WriteString(fmt.Sprintf("%s%s %s  %s  %s\n",
			cursor,
			box,
			nameStyle.Render(fmt.Sprintf("%-12s", item.Name)),
			status,
			styles.HelpStyle.Render(item.Description),
		))
	}

	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Profile: %s\n", styles.SelectedStyle.Render(m.Profile())))

	if m.err != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorStyle.Render(m.err))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(styles.HelpStyle.Render("↑/↓ navigate • space toggle • a all • p profile • enter continue • q quit"))

	return b.String()
}

// Selected returns the names of the selected tools in menu order.
func (m MenuModel) Selected() []string {
	var names []string
	for i, item := range m.items {
		if m.selected[i] {
			names = append(names, item.Name)
		}
	}
	return names
}

// Profile returns the chosen scan profile.
func (m MenuModel) Profile() string {
	return string(profile.Names[m.profile])
}

// Cursor returns the current cursor position.
func (m MenuModel) Cursor() int {
	return m.cursor
}

// Items returns the menu items.
func (m MenuModel) Items() []ToolItem {
	return m.items
}
