package views

import (
	"context"
	"testing"
	"time"

	"github.com/buemura/reconcraft/internal/process"
	"github.com/buemura/reconcraft/internal/scan"
	"github.com/buemura/reconcraft/pkg/types"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	block bool
	err   error
}

func (f *fakeRunner) Run(_ context.Context, req scan.Request, token *process.Token, obs scan.Observer) (*types.ScanOutcome, error) {
	if f.err != nil {
		obs.Status(types.StatusDoneError)
		return nil, f.err
	}
	obs.Status(types.StatusIndeterminate)
	obs.Progress(0)
	obs.Log("⚙ Launching tools on 1 target(s)...")
	obs.Status(types.StatusRunning)
	obs.Progress(50)

	out := &types.ScanOutcome{ScanID: "s1", Total: 2, Completed: 2, Status: types.StatusDoneSuccess}
	if f.block {
		<-token.Done()
		out.Aborted = true
		out.Status = types.StatusDoneError
	}
	obs.Status(out.Status)
	return out, nil
}

func sampleScanRequest() scan.Request {
	return scan.Request{Targets: []string{"a.com"}, Tools: []string{"nmap", "whois"}, Profile: "Normal"}
}

// drive runs the scan command and feeds every queued event through Update.
func drive(t *testing.T, m ScanModel) ScanModel {
	t.Helper()
	done := m.runScan()()
	for msg := range m.events {
		updated, _ := m.Update(msg)
		m = updated.(ScanModel)
	}
	updated, _ := m.Update(done)
	return updated.(ScanModel)
}

func TestScanModelAppliesEvents(t *testing.T) {
	m := drive(t, NewScanModel(&fakeRunner{}, sampleScanRequest()))

	assert.True(t, m.Done())
	assert.Equal(t, 50, m.Percent())
	assert.Equal(t, []string{"⚙ Launching tools on 1 target(s)..."}, m.Log())
	assert.Contains(t, m.View(), "Scan finished: ")
	assert.Contains(t, m.View(), "done_success")
}

func TestScanModelShowsRunnerError(t *testing.T) {
	m := drive(t, NewScanModel(&fakeRunner{err: scan.ErrNoPlugins}, sampleScanRequest()))

	assert.True(t, m.Done())
	assert.Contains(t, m.View(), "Scan failed: no plugins loaded")
}

func TestScanModelAbort(t *testing.T) {
	m := NewScanModel(&fakeRunner{block: true}, sampleScanRequest())

	result := make(chan tea.Msg, 1)
	go func() { result <- m.runScan()() }()

	updated, _ := m.Update(key("a"))
	m = updated.(ScanModel)
	assert.True(t, m.Aborting())
	assert.Contains(t, m.View(), "Aborting")

	var msg tea.Msg
	select {
	case msg = <-result:
	case <-time.After(5 * time.Second):
		t.Fatal("scan did not stop after abort")
	}
	complete, ok := msg.(ScanCompleteMsg)
	require.True(t, ok)
	require.NotNil(t, complete.Outcome)
	assert.True(t, complete.Outcome.Aborted)
}

func TestScanModelViewWhileRunning(t *testing.T) {
	m := NewScanModel(&fakeRunner{}, sampleScanRequest())
	view := m.View()

	assert.Contains(t, view, "Running nmap, whois on a.com")
	assert.Contains(t, view, "waiting for the first job")
	assert.Contains(t, view, "a abort")
}

func TestScanModelLogIsBounded(t *testing.T) {
	m := NewScanModel(&fakeRunner{}, sampleScanRequest())
	for i := 0; i < logKeep+10; i++ {
		updated, _ := m.Update(LogMsg("line"))
		m = updated.(ScanModel)
	}
	assert.Len(t, m.Log(), logKeep)
}

func TestWaitForEventReturnsNilWhenClosed(t *testing.T) {
	ch := make(chan tea.Msg)
	close(ch)
	assert.Nil(t, waitForEvent(ch)())
}
