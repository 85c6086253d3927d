package scan

import (
	"sync"
	"time"

	"github.com/buemura/reconcraft/pkg/types"
)

// aggregator is the only writer of a scan's outcome. Every mutation and
// every observer call happens under mu.
type aggregator struct {
	mu       sync.Mutex
	obs      Observer
	out      types.ScanOutcome
	progress int
}

func newAggregator(scanID string, total int, obs Observer, started time.Time) *aggregator {
	a := &aggregator{
		obs: obs,
		out: types.ScanOutcome{
			ScanID:    scanID,
			Total:     total,
			Status:    types.StatusIndeterminate,
			StartedAt: started,
		},
	}
	obs.Status(types.StatusIndeterminate)
	obs.Progress(0)
	return a
}

// log records a result line and forwards it.
func (a *aggregator) log(line string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.out.Messages = append(a.out.Messages, line)
	a.obs.Log(line)
}

// stream forwards live tool output without keeping it.
func (a *aggregator) stream(line string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.obs.Log(line)
}

func (a *aggregator) dispatched() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.out.Dispatched++
	if a.out.Status == types.StatusIndeterminate {
		a.out.Status = types.StatusRunning
	}
}

// cancelled records a job dropped before it ran.
func (a *aggregator) cancelled(jc JobContext) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.out.Cancelled++
	a.out.Jobs = append(a.out.Jobs, types.JobResult{
		ScanJob: types.ScanJob{Target: jc.Target, Tool: jc.Tool, State: types.JobCancelled},
	})
}

// record folds one finished job in and emits progress plus its result line.
// A job cancelled after dispatch counts as cancelled, not completed.
func (a *aggregator) record(res types.JobResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.out.Jobs = append(a.out.Jobs, res)
	switch res.State {
	case types.JobCancelled:
		a.out.Cancelled++
	case types.JobFailed:
		a.out.AnyError = true
		a.out.Completed++
	case types.JobAborted:
		a.out.Aborted = true
		a.out.Completed++
	default:
		a.out.Completed++
	}

	if p := a.out.Progress(); p > a.progress {
		a.progress = p
		a.obs.Progress(p)
	}
	if res.Message != "" {
		a.out.Messages = append(a.out.Messages, res.Message)
		a.obs.Log(res.Message)
	}
}

// finish computes the terminal status, emits it and returns a snapshot.
func (a *aggregator) finish(aborted bool, ended time.Time) *types.ScanOutcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	if aborted {
		a.out.Aborted = true
	}
	if a.out.Aborted {
		line := "⏹️ Scan aborted by user."
		a.out.Messages = append(a.out.Messages, line)
		a.obs.Log(line)
	}

	if a.out.Aborted || a.out.AnyError {
		a.out.Status = types.StatusDoneError
	} else {
		a.out.Status = types.StatusDoneSuccess
	}
	a.out.EndedAt = ended
	a.obs.Status(a.out.Status)

	out := a.out
	out.Messages = append([]string(nil), a.out.Messages...)
	out.Jobs = append([]types.JobResult(nil), a.out.Jobs...)
	return &out
}
