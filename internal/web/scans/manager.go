// Package scans keeps track of scans submitted over HTTP: it runs each one
// in the background and records its progress, log and outcome.
package scans

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/buemura/reconcraft/internal/process"
	"github.com/buemura/reconcraft/internal/scan"
	"github.com/buemura/reconcraft/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound   = errors.New("scan not found")
	ErrNotRunning = errors.New("scan is not running")
)

// newUUID is a variable so tests can produce deterministic IDs.
var newUUID = uuid.NewString

// Runner executes one scan.
type Runner interface {
	Run(ctx context.Context, req scan.Request, token *process.Token, obs scan.Observer) (*types.ScanOutcome, error)
}

// Manager manages scan session lifecycle: create, execute, abort, track.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	runner   Runner
	logger   zerolog.Logger
	wg       sync.WaitGroup
}

// NewManager creates a new session manager backed by the given runner.
func NewManager(runner Runner, logger zerolog.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		runner:   runner,
		logger:   logger,
	}
}

// Create registers a pending session for req.
func (m *Manager) Create(req scan.Request) Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := newUUID()
	req.ScanID = id
	s := &Session{
		ID:        id,
		Targets:   append([]string(nil), req.Targets...),
		Tools:     append([]string(nil), req.Tools...),
		Profile:   req.Profile,
		Status:    StatusPending,
		CreatedAt: time.Now(),
		request:   req,
		token:     process.NewToken(),
	}
	m.sessions[id] = s
	return s.snapshot()
}

// Start launches the session in a background goroutine.
func (m *Manager) Start(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if s.Status != StatusPending {
		m.mu.Unlock()
		return fmt.Errorf("scan %q already started", id)
	}
	s.Status = StatusRunning
	s.StartedAt = time.Now()
	req, token := s.request, s.token
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.execute(id, req, token)
	}()
	return nil
}

func (m *Manager) execute(id string, req scan.Request, token *process.Token) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Str("scan_id", id).Interface("panic", r).Msg("scan panicked")
			m.update(id, func(s *Session) {
				s.Status = StatusFailed
				s.Error = fmt.Sprintf("panic: %v", r)
				s.CompletedAt = time.Now()
			})
		}
	}()

	outcome, err := m.runner.Run(context.Background(), req, token, &observer{m: m, id: id})

	m.update(id, func(s *Session) {
		s.CompletedAt = time.Now()
		if err != nil {
			s.Status = StatusFailed
			s.Error = err.Error()
			return
		}
		s.Status = StatusCompleted
		s.Outcome = outcome
		s.ScanStatus = outcome.Status
		s.Aborted = outcome.Aborted
	})
}

// update applies fn to a session under the lock. Sessions deleted while
// running are ignored.
func (m *Manager) update(id string, fn func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		fn(s)
	}
}

// Abort requests cancellation of a running session. It does not wait.
func (m *Manager) Abort(id string) error {
	m.mu.RLock()
	s, ok := m.sessions[id]
	var token *process.Token
	running := false
	if ok {
		token = s.token
		running = !s.Done()
	}
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if !running {
		return fmt.Errorf("%w: %q", ErrNotRunning, id)
	}
	token.Cancel()
	m.logger.Info().Str("scan_id", id).Msg("scan abort requested")
	return nil
}

// Get returns a snapshot of a session by ID.
func (m *Manager) Get(id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return s.snapshot(), nil
}

// List returns snapshots of all sessions sorted by CreatedAt descending.
func (m *Manager) List() []Session {
	m.mu.RLock()
	result := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		result = append(result, s.snapshot())
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.After(result[k].CreatedAt)
	})
	return result
}

// Delete removes a session, aborting it first if it is still running.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	s.token.Cancel()
	return nil
}

// Shutdown aborts every session and waits for them to finish or for ctx
// to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	for _, s := range m.sessions {
		s.token.Cancel()
	}
	m.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// observer feeds scheduler events into a session.
type observer struct {
	m  *Manager
	id string
}

func (o *observer) Progress(p int) {
	o.m.update(o.id, func(s *Session) { s.Progress = p })
}

func (o *observer) Log(line string) {
	o.m.update(o.id, func(s *Session) { s.appendLog(line) })
}

func (o *observer) Status(st types.Status) {
	o.m.update(o.id, func(s *Session) { s.ScanStatus = st })
}
