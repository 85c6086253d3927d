package styles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateStyleRendersText(t *testing.T) {
	for _, state := range []string{"succeeded", "failed", "aborted", "skipped", "running", "cancelled", "done_success", "done_error"} {
		rendered := StateStyle(state).Render("test")
		assert.Contains(t, rendered, "test", state)
	}
}

func TestStateStyleSharesTerminalStyles(t *testing.T) {
	assert.Equal(t, StateSucceededStyle.GetForeground(), StateStyle("done_success").GetForeground())
	assert.Equal(t, StateFailedStyle.GetForeground(), StateStyle("done_error").GetForeground())
}

func TestStateStyleReturnsDefaultForUnknown(t *testing.T) {
	s := StateStyle("UNKNOWN")
	rendered := s.Render("test")
	assert.Contains(t, rendered, "test")
}

func TestStylesAreNotNil(t *testing.T) {
	assert.NotEmpty(t, TitleStyle.Render("title"))
	assert.NotEmpty(t, HeaderStyle.Render("header"))
	assert.NotEmpty(t, BorderStyle.Render("border"))
	assert.NotEmpty(t, InstalledStyle.Render("ok"))
	assert.NotEmpty(t, MissingStyle.Render("missing"))
}
