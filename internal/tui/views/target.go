package views

import (
	"fmt"
	"strings"

	"github.com/buemura/reconcraft/internal/tui/styles"
	"github.com/buemura/reconcraft/pkg/types"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// TargetModel is the view model for target input.
type TargetModel struct {
	textInput textinput.Model
	tools     []string
	profile   string
	err       string
}

// NewTargetModel creates a new target input view.
func NewTargetModel() TargetModel {
	ti := textinput.New()
	ti.Placeholder = "e.g. example.com, 10.0.0.0/24 https://app.local"
	ti.Focus()
	ti.CharLimit = 1024
	ti.Width = 60
	ti.PromptStyle = styles.CursorStyle
	ti.TextStyle = styles.SelectedStyle

	return TargetModel{textInput: ti}
}

// SetSelection records which tools and profile the targets are for.
func (m *TargetModel) SetSelection(tools []string, profile string) {
	m.tools = tools
	m.profile = profile
}

// Tools returns the selected tool names.
func (m TargetModel) Tools() []string {
	return m.tools
}

// Profile returns the selected profile.
func (m TargetModel) Profile() string {
	return m.profile
}

// Init returns the text input blink command.
func (m TargetModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles input events.
func (m TargetModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "enter" {
		if _, err := m.ValidatedTargets(); err != nil {
			m.err = err.Error()
			return m, nil
		}
		m.err = ""
		return m, nil
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	m.err = ""
	return m, cmd
}

// View renders the target input form.
func (m TargetModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("reconcraft · Interactive Mode"))
	b.WriteString("\n\n")
	b.WriteString(styles.HeaderStyle.Render(fmt.Sprintf("Tools: %s  Profile: %s", strings.Join(m.tools, ", "), m.profile)))
	b.WriteString("\n")
	b.WriteString("Enter one or more targets (comma or space separated):\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n")

	if m.err != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorStyle.Render(m.err))
	}

	b.WriteString("\n")
	b.WriteString(styles.HelpStyle.Render("enter start scan • esc back"))

	return b.String()
}

// ValidatedTargets splits and parses the input, or returns an error if any
// target is invalid or none was given.
func (m TargetModel) ValidatedTargets() ([]types.Target, error) {
	fields := SplitTargets(m.textInput.Value())
	if len(fields) == 0 {
		return nil, fmt.Errorf("at least one target is required")
	}
	return types.ParseTargets(fields)
}

// SplitTargets splits free text on commas, semicolons and whitespace.
func SplitTargets(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}
