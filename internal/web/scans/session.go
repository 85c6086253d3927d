package scans

import (
	"time"

	"github.com/buemura/reconcraft/internal/process"
	"github.com/buemura/reconcraft/internal/scan"
	"github.com/buemura/reconcraft/pkg/types"
)

// SessionStatus is the lifecycle state of a scan session.
type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"
	StatusRunning   SessionStatus = "running"
	StatusCompleted SessionStatus = "completed"
	StatusFailed    SessionStatus = "failed"
)

// maxLogLines bounds the live log kept per session.
const maxLogLines = 500

// Session is one scan submitted through the API.
type Session struct {
	ID          string             `json:"id"`
	Targets     []string           `json:"targets"`
	Tools       []string           `json:"tools"`
	Profile     string             `json:"profile"`
	Status      SessionStatus      `json:"status"`
	ScanStatus  types.Status       `json:"scan_status,omitempty"`
	Progress    int                `json:"progress"`
	Log         []string           `json:"log,omitempty"`
	Outcome     *types.ScanOutcome `json:"outcome,omitempty"`
	Error       string             `json:"error,omitempty"`
	Aborted     bool               `json:"aborted,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	StartedAt   time.Time          `json:"started_at,omitempty"`
	CompletedAt time.Time          `json:"completed_at,omitempty"`

	request scan.Request
	token   *process.Token
}

// Done reports whether the session reached a terminal state.
func (s *Session) Done() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// snapshot copies s so it can be read without the manager lock.
func (s *Session) snapshot() Session {
	c := *s
	c.Targets = append([]string(nil), s.Targets...)
	c.Tools = append([]string(nil), s.Tools...)
	c.Log = append([]string(nil), s.Log...)
	c.token = nil
	return c
}

func (s *Session) appendLog(line string) {
	s.Log = append(s.Log, line)
	if over := len(s.Log) - maxLogLines; over > 0 {
		s.Log = append(s.Log[:0:0], s.Log[over:]...)
	}
}
