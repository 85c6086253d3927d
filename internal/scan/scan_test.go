package scan

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/buemura/reconcraft/internal/artifact"
	"github.com/buemura/reconcraft/internal/manifest"
	"github.com/buemura/reconcraft/internal/plugin"
	"github.com/buemura/reconcraft/internal/process"
	"github.com/buemura/reconcraft/internal/toolcheck"
	"github.com/buemura/reconcraft/pkg/types"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type runFunc func(ctx context.Context, req plugin.Request, caps plugin.Capabilities) (types.Outcome, error)

type fakeAdapter struct {
	name  string
	info  plugin.Info
	run   runFunc
	calls atomic.Int32

	mu   sync.Mutex
	args []string
}

func newFake(name string, defaults map[string]string, run runFunc) *fakeAdapter {
	return &fakeAdapter{
		name: name,
		info: plugin.Info{RequiredTool: name, DefaultArgs: defaults},
		run:  run,
	}
}

func (f *fakeAdapter) Name() string      { return f.name }
func (f *fakeAdapter) Info() plugin.Info { return f.info }

func (f *fakeAdapter) Run(ctx context.Context, req plugin.Request, caps plugin.Capabilities) (types.Outcome, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.args = append(f.args, req.Args)
	f.mu.Unlock()
	return f.run(ctx, req, caps)
}

func succeed(output string) runFunc {
	return func(context.Context, plugin.Request, plugin.Capabilities) (types.Outcome, error) {
		return types.Success(output), nil
	}
}

type recorder struct {
	mu       sync.Mutex
	progress []int
	logs     []string
	statuses []types.Status
}

func (r *recorder) Progress(p int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
}

func (r *recorder) Log(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, line)
}

func (r *recorder) Status(s types.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recorder) joinedLogs() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.logs, "\n")
}

func newTestScheduler(t *testing.T, fs afero.Fs, adapters ...plugin.Adapter) *Scheduler {
	t.Helper()
	reg := plugin.NewRegistry(zerolog.Nop())
	for _, a := range adapters {
		require.NoError(t, reg.Register(a))
	}
	return NewScheduler(reg,
		WithBuilder(artifact.NewBuilder(fs)),
		WithChecker(toolcheck.NewWithLookPath(func(string) (string, error) { return "", errors.New("not found") })),
		WithThrottle(10*time.Millisecond),
	)
}

func TestRun_SingleSuccess(t *testing.T) {
	fs := afero.NewMemMapFs()
	nmap := newFake("nmap", map[string]string{"Normal": "-sV {{target}}"}, succeed("scan output text"))
	sched := newTestScheduler(t, fs, nmap)
	rec := &recorder{}

	out, err := sched.Run(context.Background(), Request{
		Targets:  []string{"10.0.0.1"},
		Tools:    []string{"nmap"},
		ScanRoot: "/scans",
		Profile:  "Normal",
	}, process.NewToken(), rec)
	require.NoError(t, err)

	assert.Equal(t, types.StatusDoneSuccess, out.Status)
	assert.Equal(t, 100, out.Progress())
	assert.Equal(t, []string{"-sV 10.0.0.1"}, nmap.args)

	require.Len(t, out.Jobs, 1)
	job := out.Jobs[0]
	assert.Equal(t, types.JobSucceeded, job.State)
	assert.Equal(t, filepath.Join("/scans", "10.0.0.1", "nmap", job.RunID), job.RunDir)

	data, err := afero.ReadFile(fs, job.RawLog)
	require.NoError(t, err)
	assert.Equal(t, "scan output text", string(data))

	assert.Equal(t, []types.Status{types.StatusIndeterminate, types.StatusDoneSuccess}, rec.statuses)
	assert.Equal(t, 100, rec.progress[len(rec.progress)-1])
	assert.Contains(t, rec.joinedLogs(), "✅ nmap finished for 10.0.0.1. Output saved to: "+job.RawLog)
}

func TestRun_DisabledIsSkipNotFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	var adapters []plugin.Adapter
	var fakes []*fakeAdapter
	for _, name := range []string{"nmap", "nuclei", "sqlmap"} {
		f := newFake(name, map[string]string{"Normal": "{{target}}", "Passive": "DISABLED"}, succeed("x"))
		fakes = append(fakes, f)
		adapters = append(adapters, f)
	}
	sched := newTestScheduler(t, fs, adapters...)
	rec := &recorder{}

	out, err := sched.Run(context.Background(), Request{
		Targets:  []string{"10.0.0.1"},
		Tools:    []string{"nmap", "nuclei", "sqlmap"},
		ScanRoot: "/scans",
		Profile:  "passive",
	}, nil, rec)
	require.NoError(t, err)

	for _, f := range fakes {
		assert.Zero(t, f.calls.Load(), f.name)
	}
	assert.False(t, out.AnyError)
	assert.Equal(t, types.StatusDoneSuccess, out.Status)
	assert.Equal(t, 3, out.Counts()[types.JobSkipped])
	assert.Equal(t, 100, out.Progress())
	assert.Contains(t, rec.joinedLogs(), "⚠ nmap skipped for 10.0.0.1: nmap disabled for Passive profile")

	exists, err := afero.DirExists(fs, "/scans/10.0.0.1/nmap")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRun_ToolNotInstalled(t *testing.T) {
	whois := plugin.NewGeneric("whois", plugin.Info{
		RequiredTool: "whois",
		DefaultArgs:  map[string]string{"Normal": "{{target}}"},
	})
	sched := newTestScheduler(t, afero.NewMemMapFs(), whois)
	rec := &recorder{}

	out, err := sched.Run(context.Background(), Request{
		Targets:  []string{"a.com", "b.com"},
		Tools:    []string{"whois"},
		ScanRoot: "/scans",
		Profile:  "Normal",
	}, nil, rec)
	require.NoError(t, err)

	assert.Equal(t, types.StatusDoneError, out.Status)
	assert.True(t, out.AnyError)
	assert.Len(t, out.Jobs, 2)
	assert.Equal(t, 2, out.Counts()[types.JobFailed])

	logs := rec.joinedLogs()
	assert.Contains(t, logs, "❌ whois failed for a.com: whois not installed. Skipping a.com.")
	assert.Contains(t, logs, "❌ whois failed for b.com: whois not installed. Skipping b.com.")
}

func TestRun_CancelMidRun(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}

	fs := afero.NewMemMapFs()
	sleeper := newFake("sleeper", map[string]string{"Normal": ""}, func(ctx context.Context, req plugin.Request, caps plugin.Capabilities) (types.Outcome, error) {
		res, err := caps.RunCommand(ctx, []string{"sh", "-c", "echo started; sleep 30"}, "", req.Output)
		if res.Aborted {
			return types.Aborted("interrupted"), nil
		}
		if err != nil {
			return types.Failure(err.Error()), nil
		}
		return types.Success(res.Output), nil
	})

	reg := plugin.NewRegistry(zerolog.Nop())
	require.NoError(t, reg.Register(sleeper))
	sched := NewScheduler(reg,
		WithBuilder(artifact.NewBuilder(fs)),
		WithRunner(process.NewRunner(fs, zerolog.Nop(), process.WithGrace(time.Second))),
		WithThrottle(10*time.Millisecond),
	)

	token := process.NewToken()
	rec := &recorder{}
	type result struct {
		out *types.ScanOutcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := sched.Run(context.Background(), Request{
			Targets:     []string{"a.com", "b.com", "c.com"},
			Tools:       []string{"sleeper"},
			ScanRoot:    "/scans",
			Profile:     "Normal",
			Concurrency: 1,
		}, token, rec)
		done <- result{out, err}
	}()

	require.Eventually(t, func() bool { return token.Live() > 0 }, 5*time.Second, 10*time.Millisecond)
	cancelledAt := time.Now()
	token.Cancel()
	token.Cancel()

	var r result
	select {
	case r = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("scan did not finish after cancel")
	}
	require.NoError(t, r.err)
	assert.Less(t, time.Since(cancelledAt), 5*time.Second)

	out := r.out
	assert.Equal(t, types.StatusDoneError, out.Status)
	assert.True(t, out.Aborted)
	assert.False(t, out.AnyError)
	assert.Equal(t, 1, out.Dispatched)
	assert.Equal(t, 1, out.Counts()[types.JobAborted])
	assert.Equal(t, 2, out.Counts()[types.JobCancelled])
	assert.Equal(t, 2, out.Cancelled)
	assert.Equal(t, 0, token.Live())

	logs := rec.joinedLogs()
	assert.Contains(t, logs, "⏹ sleeper aborted for a.com.")
	assert.Contains(t, logs, "⏹️ Scan aborted by user.")
	assert.NotContains(t, logs, "sleeper failed")
}

func TestRun_ContextCancelAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	blocker := newFake("blocker", nil, func(ctx context.Context, _ plugin.Request, _ plugin.Capabilities) (types.Outcome, error) {
		cancel()
		<-ctx.Done()
		return types.Aborted("stopped"), nil
	})
	sched := newTestScheduler(t, afero.NewMemMapFs(), blocker)

	out, err := sched.Run(ctx, Request{
		Targets:     []string{"a.com", "b.com"},
		Tools:       []string{"blocker"},
		ScanRoot:    "/scans",
		Concurrency: 1,
	}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, types.StatusDoneError, out.Status)
	assert.True(t, out.Aborted)
	assert.Equal(t, int32(1), blocker.calls.Load())
}

func TestRun_JobCountIsCartesianProduct(t *testing.T) {
	a := newFake("alpha", nil, succeed("a"))
	b := newFake("beta", nil, succeed("b"))
	sched := newTestScheduler(t, afero.NewMemMapFs(), a, b)

	out, err := sched.Run(context.Background(), Request{
		Targets:     []string{"a.com", "b.com", "c.com"},
		Tools:       []string{"alpha", "beta"},
		ScanRoot:    "/scans",
		Concurrency: 3,
	}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 6, out.Total)
	assert.Equal(t, 6, out.Dispatched)
	assert.Equal(t, 6, out.Completed)
	assert.Len(t, out.Jobs, 6)
	assert.Equal(t, int32(3), a.calls.Load())
	assert.Equal(t, int32(3), b.calls.Load())
}

func TestRun_ProgressIsMonotonic(t *testing.T) {
	var adapters []plugin.Adapter
	var tools []string
	for _, name := range []string{"t1", "t2", "t3", "t4", "t5", "t6", "t7"} {
		adapters = append(adapters, newFake(name, nil, succeed("ok")))
		tools = append(tools, name)
	}
	sched := newTestScheduler(t, afero.NewMemMapFs(), adapters...)
	rec := &recorder{}

	_, err := sched.Run(context.Background(), Request{
		Targets:     []string{"a.com", "b.com", "c.com"},
		Tools:       tools,
		ScanRoot:    "/scans",
		Concurrency: 8,
	}, nil, rec)
	require.NoError(t, err)

	require.NotEmpty(t, rec.progress)
	for i := 1; i < len(rec.progress); i++ {
		assert.GreaterOrEqual(t, rec.progress[i], rec.progress[i-1])
	}
	assert.Equal(t, 100, rec.progress[len(rec.progress)-1])
}

func TestRun_PreCancelledSubmitsNothing(t *testing.T) {
	a := newFake("alpha", nil, succeed("a"))
	sched := newTestScheduler(t, afero.NewMemMapFs(), a)
	token := process.NewToken()
	token.Cancel()
	rec := &recorder{}

	out, err := sched.Run(context.Background(), Request{
		Targets:  []string{"a.com", "b.com"},
		Tools:    []string{"alpha"},
		ScanRoot: "/scans",
	}, token, rec)
	require.NoError(t, err)

	assert.Zero(t, a.calls.Load())
	assert.Equal(t, 0, out.Dispatched)
	assert.Equal(t, 2, out.Cancelled)
	assert.Equal(t, types.StatusDoneError, out.Status)
	assert.Equal(t, types.StatusDoneError, rec.statuses[len(rec.statuses)-1])
}

func TestRun_NoPlugins(t *testing.T) {
	sched := newTestScheduler(t, afero.NewMemMapFs())
	rec := &recorder{}

	out, err := sched.Run(context.Background(), Request{
		Targets: []string{"a.com"},
		Tools:   []string{"nope"},
	}, nil, rec)

	assert.ErrorIs(t, err, ErrNoPlugins)
	assert.Nil(t, out)
	assert.Equal(t, []types.Status{types.StatusDoneError}, rec.statuses)
}

func TestRun_NoTargets(t *testing.T) {
	sched := newTestScheduler(t, afero.NewMemMapFs(), newFake("alpha", nil, succeed("a")))

	_, err := sched.Run(context.Background(), Request{Targets: []string{" ", ""}, Tools: []string{"alpha"}}, nil, nil)
	assert.ErrorIs(t, err, ErrNoTargets)
}

func TestRun_InvalidTarget(t *testing.T) {
	sched := newTestScheduler(t, afero.NewMemMapFs(), newFake("alpha", nil, succeed("a")))

	_, err := sched.Run(context.Background(), Request{Targets: []string{"a.com; rm -rf /"}, Tools: []string{"alpha"}}, nil, nil)
	assert.ErrorIs(t, err, types.ErrInvalidTarget)
}

func TestRun_UnsupportedToolStillOccupiesCell(t *testing.T) {
	sched := newTestScheduler(t, afero.NewMemMapFs(), newFake("alpha", nil, succeed("a")))
	rec := &recorder{}

	out, err := sched.Run(context.Background(), Request{
		Targets:  []string{"a.com"},
		Tools:    []string{"alpha", "ghost"},
		ScanRoot: "/scans",
	}, nil, rec)
	require.NoError(t, err)

	assert.Equal(t, 2, out.Total)
	assert.Equal(t, types.StatusDoneError, out.Status)
	assert.Contains(t, rec.joinedLogs(), `❌ Tool "ghost" is not supported.`)
}

func TestRun_AdapterPanicIsContained(t *testing.T) {
	boom := newFake("boom", nil, func(context.Context, plugin.Request, plugin.Capabilities) (types.Outcome, error) {
		panic("nil map")
	})
	ok := newFake("ok", nil, succeed("fine"))
	sched := newTestScheduler(t, afero.NewMemMapFs(), boom, ok)
	rec := &recorder{}

	out, err := sched.Run(context.Background(), Request{
		Targets:  []string{"a.com"},
		Tools:    []string{"boom", "ok"},
		ScanRoot: "/scans",
	}, nil, rec)
	require.NoError(t, err)

	assert.Equal(t, types.StatusDoneError, out.Status)
	assert.Equal(t, 1, out.Counts()[types.JobSucceeded])
	assert.Contains(t, rec.joinedLogs(), "❌ boom crashed for a.com: nil map")
}

func TestRun_AdapterErrorIsCrash(t *testing.T) {
	bad := newFake("bad", nil, func(context.Context, plugin.Request, plugin.Capabilities) (types.Outcome, error) {
		return types.Outcome{}, errors.New("parse failure")
	})
	sched := newTestScheduler(t, afero.NewMemMapFs(), bad)
	rec := &recorder{}

	_, err := sched.Run(context.Background(), Request{Targets: []string{"a.com"}, Tools: []string{"bad"}, ScanRoot: "/s"}, nil, rec)
	require.NoError(t, err)
	assert.Contains(t, rec.joinedLogs(), "❌ bad crashed for a.com: parse failure")
}

func TestRun_BlankOutputIsFailure(t *testing.T) {
	blank := newFake("blank", nil, succeed("   \n"))
	zero := newFake("zero", nil, func(context.Context, plugin.Request, plugin.Capabilities) (types.Outcome, error) {
		return types.Outcome{}, nil
	})
	sched := newTestScheduler(t, afero.NewMemMapFs(), blank, zero)
	rec := &recorder{}

	out, err := sched.Run(context.Background(), Request{
		Targets:  []string{"a.com"},
		Tools:    []string{"blank", "zero"},
		ScanRoot: "/scans",
	}, nil, rec)
	require.NoError(t, err)

	assert.True(t, out.AnyError)
	logs := rec.joinedLogs()
	assert.Contains(t, logs, "❌ blank produced no output for a.com.")
	assert.Contains(t, logs, "❌ zero produced no output for a.com.")
}

func TestRun_AdapterSkipIsNotError(t *testing.T) {
	skip := newFake("skip", nil, func(context.Context, plugin.Request, plugin.Capabilities) (types.Outcome, error) {
		return types.Skipped("nothing to do"), nil
	})
	sched := newTestScheduler(t, afero.NewMemMapFs(), skip)

	out, err := sched.Run(context.Background(), Request{Targets: []string{"a.com"}, Tools: []string{"skip"}, ScanRoot: "/s"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, types.StatusDoneSuccess, out.Status)
	assert.Equal(t, 1, out.Counts()[types.JobSkipped])
}

func TestRun_CustomProfile(t *testing.T) {
	nmap := newFake("nmap", map[string]string{"Normal": "-sV {{target}}"}, succeed("ok"))
	whois := newFake("whois", map[string]string{"Normal": "{{target}}"}, succeed("ok"))
	sched := newTestScheduler(t, afero.NewMemMapFs(), nmap, whois)
	rec := &recorder{}

	out, err := sched.Run(context.Background(), Request{
		Targets:    []string{"a.com"},
		Tools:      []string{"nmap", "whois"},
		ScanRoot:   "/scans",
		Profile:    "custom",
		CustomArgs: map[string]string{"nmap": "-Pn {target}"},
	}, nil, rec)
	require.NoError(t, err)

	assert.Equal(t, []string{"-Pn a.com"}, nmap.args)
	assert.Zero(t, whois.calls.Load())
	assert.Equal(t, types.StatusDoneSuccess, out.Status)
	assert.Contains(t, rec.joinedLogs(), "🧩 Using Custom args for nmap: -Pn {target} -> -Pn a.com")
}

func TestRun_WritesManifest(t *testing.T) {
	fs := afero.NewMemMapFs()
	nuclei := newFake("nuclei", nil, succeed("[CVE-2021-44228] [critical] http://a.com"))
	reg := plugin.NewRegistry(zerolog.Nop())
	require.NoError(t, reg.Register(nuclei))
	sched := NewScheduler(reg, WithBuilder(artifact.NewBuilder(fs)), WithManifest(true))

	out, err := sched.Run(context.Background(), Request{
		ScanID:   "scan-42",
		Targets:  []string{"a.com"},
		Tools:    []string{"nuclei"},
		ScanRoot: "/scans",
	}, nil, nil)
	require.NoError(t, err)
	require.Len(t, out.Jobs, 1)

	rep, err := manifest.LoadRun(fs, out.Jobs[0].RunDir)
	require.NoError(t, err)
	assert.Equal(t, "scan-42", rep.Run.ScanID)
	assert.Equal(t, "succeeded", rep.Run.Status)
	assert.Equal(t, 1, rep.Run.Counts.Critical)
	require.Len(t, rep.Findings, 1)
	assert.Equal(t, "CVE-2021-44228", rep.Findings[0].ID)

	data, err := afero.ReadFile(fs, "/scans/machine/scan_scan-42.json")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status": "done_success"`)
}

func TestRun_CommandCapabilityWritesRawLog(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}

	fs := afero.NewMemMapFs()
	echo := newFake("echo", map[string]string{"Normal": "{{target}}"}, func(ctx context.Context, req plugin.Request, caps plugin.Capabilities) (types.Outcome, error) {
		res, err := caps.RunCommand(ctx, []string{"sh", "-c", "echo hello " + req.Args + "; exit 3"}, "", req.Output)
		if err != nil {
			return types.Failure(err.Error()), nil
		}
		out := types.Success(res.Output)
		out.Path = res.Path
		return out, nil
	})
	reg := plugin.NewRegistry(zerolog.Nop())
	require.NoError(t, reg.Register(echo))
	sched := NewScheduler(reg, WithBuilder(artifact.NewBuilder(fs)), WithThrottle(5*time.Millisecond))
	rec := &recorder{}

	out, err := sched.Run(context.Background(), Request{
		Targets:  []string{"a.com"},
		Tools:    []string{"echo"},
		ScanRoot: "/scans",
	}, nil, rec)
	require.NoError(t, err)
	require.Len(t, out.Jobs, 1)

	job := out.Jobs[0]
	assert.Equal(t, 3, job.ExitCode)
	assert.Equal(t, []string{"sh", "-c", "echo hello a.com; exit 3"}, job.Command)

	data, err := afero.ReadFile(fs, job.RawLog)
	require.NoError(t, err)
	assert.Equal(t, "hello a.com\n", string(data))

	logs := rec.joinedLogs()
	assert.Contains(t, logs, "🟢 Running: sh -c echo hello a.com; exit 3")
	assert.Contains(t, logs, "✅ Finished: sh (Exit code: 3)")
	assert.Contains(t, logs, "⚠️ Warning: Tool exited with code 3")
	assert.Contains(t, logs, "hello a.com")
}
