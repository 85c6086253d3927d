package types

import "time"

// Severity represents the severity level of a finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Severities lists every severity from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}

// SeverityRank returns a numeric rank for sorting (lower = more severe).
func SeverityRank(s Severity) int {
	for i, sev := range Severities {
		if sev == s {
			return i
		}
	}
	return len(Severities)
}

// ParseSeverity maps a free-form label onto a Severity, defaulting to info.
func ParseSeverity(label string) Severity {
	switch Severity(label) {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return Severity(label)
	}
	return SeverityInfo
}

// Finding is a single identifier extracted from a tool's raw output.
type Finding struct {
	Tool     string   `json:"tool"`
	Target   Target   `json:"target"`
	ID       string   `json:"id"`
	Severity Severity `json:"severity"`
	Line     string   `json:"line,omitempty"`
}

// OutcomeKind tags the result of one adapter invocation.
type OutcomeKind int

const (
	// OutcomeNone is the zero value; the scheduler treats it as "no output".
	OutcomeNone OutcomeKind = iota
	OutcomeSuccess
	OutcomeFailure
	OutcomeSkipped
	OutcomeAborted
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeAborted:
		return "aborted"
	default:
		return "none"
	}
}

// Outcome is what an adapter returns for a single (target, tool) job.
// Output carries the tool output for successes and the reason otherwise.
type Outcome struct {
	Kind   OutcomeKind
	Output string
	// Path is the raw log written by the command capability, if any.
	Path string
}

// Success wraps tool output.
func Success(output string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Output: output}
}

// Failure wraps a failure reason.
func Failure(reason string) Outcome {
	return Outcome{Kind: OutcomeFailure, Output: reason}
}

// Skipped wraps a non-error skip reason.
func Skipped(reason string) Outcome {
	return Outcome{Kind: OutcomeSkipped, Output: reason}
}

// Aborted marks a job interrupted by cancellation.
func Aborted(reason string) Outcome {
	return Outcome{Kind: OutcomeAborted, Output: reason}
}

// JobState is the lifecycle state of one scan job.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
	JobSkipped   JobState = "skipped"
	JobAborted   JobState = "aborted"
	JobCancelled JobState = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s JobState) Terminal() bool {
	return s != JobPending && s != JobRunning
}

// ScanJob is one cell of the targets × tools matrix.
type ScanJob struct {
	Target Target   `json:"target"`
	Tool   string   `json:"tool"`
	State  JobState `json:"state"`
}

// JobResult is the normalized record of a finished job.
type JobResult struct {
	ScanJob
	RunID       string    `json:"run_id,omitempty"`
	RunDir      string    `json:"run_dir,omitempty"`
	RawLog      string    `json:"raw_log,omitempty"`
	Message     string    `json:"message"`
	ExitCode    int       `json:"exit_code"`
	Command     []string  `json:"command,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Status is a progress or terminal status reported to observers.
type Status string

const (
	StatusIndeterminate Status = "indeterminate"
	StatusRunning       Status = "running"
	StatusDoneSuccess   Status = "done_success"
	StatusDoneError     Status = "done_error"
)

// ScanOutcome summarizes a whole scan.
type ScanOutcome struct {
	ScanID     string      `json:"scan_id"`
	Total      int         `json:"total"`
	Dispatched int         `json:"dispatched"`
	Completed  int         `json:"completed"`
	Cancelled  int         `json:"cancelled"`
	AnyError   bool        `json:"any_error"`
	Aborted    bool        `json:"aborted"`
	Status     Status      `json:"status"`
	Messages   []string    `json:"messages"`
	Jobs       []JobResult `json:"jobs"`
	StartedAt  time.Time   `json:"started_at"`
	EndedAt    time.Time   `json:"ended_at"`
}

// Progress returns floor(100 * completed / total).
func (o *ScanOutcome) Progress() int {
	if o.Total == 0 {
		return 0
	}
	return 100 * o.Completed / o.Total
}

// Counts returns the number of jobs per terminal state.
func (o *ScanOutcome) Counts() map[JobState]int {
	counts := make(map[JobState]int)
	for _, j := range o.Jobs {
		counts[j.State]++
	}
	return counts
}
