package scans

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/buemura/reconcraft/internal/process"
	"github.com/buemura/reconcraft/internal/scan"
	"github.com/buemura/reconcraft/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRunner emits a few events and either finishes or waits for the token.
type mockRunner struct {
	block bool
	err   error
	panic bool
}

func (m *mockRunner) Run(_ context.Context, req scan.Request, token *process.Token, obs scan.Observer) (*types.ScanOutcome, error) {
	if m.panic {
		panic("runner exploded")
	}
	if m.err != nil {
		obs.Status(types.StatusDoneError)
		return nil, m.err
	}

	obs.Status(types.StatusIndeterminate)
	obs.Log("⚙ Launching tools on 1 target(s)...")
	obs.Progress(50)

	out := &types.ScanOutcome{ScanID: req.ScanID, Total: 2, Completed: 2, Status: types.StatusDoneSuccess}
	if m.block {
		<-token.Done()
		out.Aborted = true
		out.Status = types.StatusDoneError
		out.Completed = 1
	} else {
		obs.Progress(100)
	}
	obs.Status(out.Status)
	return out, nil
}

func newTestManager(r Runner) *Manager {
	return NewManager(r, zerolog.Nop())
}

func sampleRequest() scan.Request {
	return scan.Request{Targets: []string{"example.com"}, Tools: []string{"nmap", "whois"}, Profile: "Normal"}
}

func waitDone(t *testing.T, m *Manager, id string) Session {
	t.Helper()
	var s Session
	require.Eventually(t, func() bool {
		var err error
		s, err = m.Get(id)
		return err == nil && s.Done()
	}, 5*time.Second, 10*time.Millisecond)
	return s
}

func TestCreate_ReturnsPendingSession(t *testing.T) {
	m := newTestManager(&mockRunner{})

	s := m.Create(sampleRequest())

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, StatusPending, s.Status)
	assert.Equal(t, []string{"example.com"}, s.Targets)
	assert.Equal(t, []string{"nmap", "whois"}, s.Tools)
	assert.False(t, s.CreatedAt.IsZero())
}

func TestStartAndComplete(t *testing.T) {
	m := newTestManager(&mockRunner{})
	s := m.Create(sampleRequest())

	require.NoError(t, m.Start(s.ID))
	got := waitDone(t, m, s.ID)

	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, types.StatusDoneSuccess, got.ScanStatus)
	assert.Equal(t, 100, got.Progress)
	require.NotNil(t, got.Outcome)
	assert.Equal(t, s.ID, got.Outcome.ScanID)
	assert.Contains(t, got.Log, "⚙ Launching tools on 1 target(s)...")
	assert.False(t, got.CompletedAt.IsZero())
}

func TestStart_Twice(t *testing.T) {
	m := newTestManager(&mockRunner{})
	s := m.Create(sampleRequest())

	require.NoError(t, m.Start(s.ID))
	assert.Error(t, m.Start(s.ID))
	waitDone(t, m, s.ID)
}

func TestStart_SetupErrorFailsSession(t *testing.T) {
	m := newTestManager(&mockRunner{err: scan.ErrNoPlugins})
	s := m.Create(sampleRequest())

	require.NoError(t, m.Start(s.ID))
	got := waitDone(t, m, s.ID)

	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, types.StatusDoneError, got.ScanStatus)
	assert.Contains(t, got.Error, "no plugins loaded")
}

func TestStart_PanicIsRecovered(t *testing.T) {
	m := newTestManager(&mockRunner{panic: true})
	s := m.Create(sampleRequest())

	require.NoError(t, m.Start(s.ID))
	got := waitDone(t, m, s.ID)

	assert.Equal(t, StatusFailed, got.Status)
	assert.Contains(t, got.Error, "runner exploded")
}

func TestAbort_RunningSession(t *testing.T) {
	m := newTestManager(&mockRunner{block: true})
	s := m.Create(sampleRequest())
	require.NoError(t, m.Start(s.ID))

	require.Eventually(t, func() bool {
		got, _ := m.Get(s.ID)
		return got.Progress == 50
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, m.Abort(s.ID))
	require.NoError(t, m.Abort(s.ID))
	got := waitDone(t, m, s.ID)

	assert.Equal(t, StatusCompleted, got.Status)
	assert.True(t, got.Aborted)
	assert.Equal(t, types.StatusDoneError, got.ScanStatus)

	assert.ErrorIs(t, m.Abort(s.ID), ErrNotRunning)
}

func TestAbort_NotFound(t *testing.T) {
	m := newTestManager(&mockRunner{})
	assert.ErrorIs(t, m.Abort("missing"), ErrNotFound)
}

func TestGet_NotFound(t *testing.T) {
	m := newTestManager(&mockRunner{})
	_, err := m.Get("nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "not found")
}

func TestList_SortedByCreatedAtDesc(t *testing.T) {
	m := newTestManager(&mockRunner{})

	counter := 0
	origUUID := newUUID
	newUUID = func() string {
		counter++
		return fmt.Sprintf("scan-%d", counter)
	}
	defer func() { newUUID = origUUID }()

	s1 := m.Create(sampleRequest())
	time.Sleep(time.Millisecond)
	s2 := m.Create(sampleRequest())

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, s2.ID, list[0].ID)
	assert.Equal(t, s1.ID, list[1].ID)
}

func TestDelete_RemovesSession(t *testing.T) {
	m := newTestManager(&mockRunner{})
	s := m.Create(sampleRequest())

	require.NoError(t, m.Delete(s.ID))
	_, err := m.Get(s.ID)
	assert.Error(t, err)
}

func TestDelete_RunningSessionIsCancelled(t *testing.T) {
	m := newTestManager(&mockRunner{block: true})
	s := m.Create(sampleRequest())
	require.NoError(t, m.Start(s.ID))

	require.NoError(t, m.Delete(s.ID))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, m.Shutdown(ctx))
}

func TestDelete_NotFound(t *testing.T) {
	m := newTestManager(&mockRunner{})
	err := m.Delete("nonexistent")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestShutdown_AbortsRunning(t *testing.T) {
	m := newTestManager(&mockRunner{block: true})
	s := m.Create(sampleRequest())
	require.NoError(t, m.Start(s.ID))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.True(t, got.Aborted)
}

func TestSessionLogIsBounded(t *testing.T) {
	s := &Session{}
	for i := 0; i < maxLogLines+25; i++ {
		s.appendLog(fmt.Sprintf("line %d", i))
	}
	assert.Len(t, s.Log, maxLogLines)
	assert.Equal(t, "line 25", s.Log[0])
}
