// Package process runs external tools as subprocesses in their own process
// group, streaming merged stdout/stderr to a raw log file and to an observer.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Exit codes reported for runs that did not exit on their own.
const (
	ExitTimedOut = 124
	ExitNotFound = 127
	ExitAborted  = 130
)

const (
	DefaultThrottle  = 250 * time.Millisecond
	DefaultTailLines = 35000
	DefaultTailBytes = 4 << 20
	DefaultGrace     = 3 * time.Second
	readerGrace      = time.Second
)

var (
	ErrCommandNotFound = errors.New("command not found")
	ErrTimedOut        = errors.New("command timed out")
	ErrAborted         = errors.New("command aborted")
)

// Command describes one subprocess invocation. Argv is never passed
// through a shell.
type Command struct {
	Argv       []string
	OutputPath string
	Timeout    time.Duration
	OnLine     func(string)
	Throttle   time.Duration
	Dir        string
	Env        []string
}

// Result is the outcome of Runner.Run.
type Result struct {
	Argv       []string
	OutputPath string
	ExitCode   int
	Aborted    bool
	TimedOut   bool
	NotFound   bool
	// Tail holds the most recent output lines; the full output is on disk.
	Tail    []string
	Started time.Time
	Stopped time.Time
	Err     error
}

// Output joins the retained tail.
func (r Result) Output() string {
	return strings.Join(r.Tail, "\n")
}

// Duration is the wall time of the run.
func (r Result) Duration() time.Duration {
	return r.Stopped.Sub(r.Started)
}

// Success reports a clean zero exit.
func (r Result) Success() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Tracker observes process lifecycles.
type Tracker interface {
	ProcessStarted()
	ProcessExited(exitCode int)
}

// Runner spawns subprocesses.
type Runner struct {
	fs        afero.Fs
	logger    zerolog.Logger
	grace     time.Duration
	tailLines int
	tailBytes int
	lookPath  func(string) (string, error)
	tracker   Tracker
}

// Option configures a Runner.
type Option func(*Runner)

// WithGrace sets how long a terminated process group gets before SIGKILL.
func WithGrace(d time.Duration) Option {
	return func(r *Runner) { r.grace = d }
}

// WithTailLimits bounds the in-memory output tail.
func WithTailLimits(lines, bytes int) Option {
	return func(r *Runner) {
		r.tailLines = lines
		r.tailBytes = bytes
	}
}

// WithTracker reports process start and exit to t.
func WithTracker(t Tracker) Option {
	return func(r *Runner) { r.tracker = t }
}

// WithLookPath replaces exec.LookPath.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(r *Runner) { r.lookPath = fn }
}

// NewRunner creates a Runner writing raw logs to fsys.
func NewRunner(fsys afero.Fs, logger zerolog.Logger, opts ...Option) *Runner {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	r := &Runner{
		fs:        fsys,
		logger:    logger,
		grace:     DefaultGrace,
		tailLines: DefaultTailLines,
		tailBytes: DefaultTailBytes,
		lookPath:  exec.LookPath,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes c and blocks until the process and its output reader are
// done. Cancellation of token or ctx terminates the process group, then
// kills it after the grace period. Run never panics on spawn failures;
// they are reported in Result.Err.
func (r *Runner) Run(ctx context.Context, token *Token, c Command) (res Result) {
	res = Result{Argv: c.Argv, OutputPath: c.OutputPath, Started: time.Now()}
	defer func() { res.Stopped = time.Now() }()

	if len(c.Argv) == 0 {
		res.ExitCode = 1
		res.Err = errors.New("empty command")
		return res
	}

	out, closeOut, err := r.openLog(c.OutputPath)
	if err != nil {
		res.ExitCode = 1
		res.Err = err
		return res
	}
	defer closeOut()

	if token.Cancelled() || ctx.Err() != nil {
		res.Aborted = true
		res.ExitCode = ExitAborted
		res.Err = ErrAborted
		return res
	}

	path, err := r.lookPath(c.Argv[0])
	if err != nil {
		return r.notFound(res, out, c.Argv[0])
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		res.ExitCode = 1
		res.Err = fmt.Errorf("creating output pipe: %w", err)
		return res
	}

	cmd := exec.Command(path, c.Argv[1:]...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdout = pw
	cmd.Stderr = pw
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return r.notFound(res, out, c.Argv[0])
		}
		res.ExitCode = 1
		res.Err = fmt.Errorf("starting %s: %w", c.Argv[0], err)
		return res
	}
	pw.Close()

	h := &handle{cmd: cmd}
	if !token.track(h) {
		_ = h.terminateTree()
	}
	defer token.untrack(h)

	if r.tracker != nil {
		r.tracker.ProcessStarted()
	}
	r.logger.Debug().Strs("argv", c.Argv).Int("pid", cmd.Process.Pid).Msg("process started")

	tail := newTailBuffer(r.tailLines, r.tailBytes)
	fwd := startForwarder(c.OnLine, c.Throttle)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		r.pump(pr, out, tail, fwd)
	}()

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	var timeoutC <-chan time.Time
	if c.Timeout > 0 {
		timer := time.NewTimer(c.Timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	var waitErr error
	select {
	case waitErr = <-waitCh:
	case <-token.Done():
		res.Aborted = true
		waitErr = r.stop(h, waitCh)
	case <-ctx.Done():
		res.Aborted = true
		waitErr = r.stop(h, waitCh)
	case <-timeoutC:
		res.TimedOut = true
		_ = h.killTree()
		waitErr = <-waitCh
	}

	// A grandchild that escaped the group may still hold the pipe open.
	select {
	case <-readerDone:
	case <-time.After(readerGrace):
		r.logger.Debug().Strs("argv", c.Argv).Msg("output still open after exit, closing pipe")
		pr.Close()
		<-readerDone
	}
	pr.Close()
	fwd.close()

	res.Tail = tail.snapshot()
	res.ExitCode = exitCode(cmd, waitErr)

	switch {
	case res.TimedOut:
		res.ExitCode = ExitTimedOut
		res.Err = ErrTimedOut
		res.Tail = append(res.Tail, ErrTimedOut.Error())
	case res.Aborted:
		res.ExitCode = ExitAborted
		res.Err = ErrAborted
	case waitErr != nil:
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			res.Err = fmt.Errorf("waiting for %s: %w", c.Argv[0], waitErr)
		}
	}

	if r.tracker != nil {
		r.tracker.ProcessExited(res.ExitCode)
	}
	r.logger.Debug().Strs("argv", c.Argv).Int("exit_code", res.ExitCode).
		Bool("aborted", res.Aborted).Bool("timed_out", res.TimedOut).Msg("process exited")

	return res
}

func (r *Runner) stop(h *handle, waitCh <-chan error) error {
	_ = h.terminateTree()

	timer := time.NewTimer(r.grace)
	defer timer.Stop()

	select {
	case err := <-waitCh:
		return err
	case <-timer.C:
		_ = h.killTree()
		return <-waitCh
	}
}

func (r *Runner) pump(src io.Reader, dst io.Writer, tail *tailBuffer, fwd *forwarder) {
	br := bufio.NewReaderSize(src, 64*1024)
	writeFailed := false

	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			if _, werr := io.WriteString(dst, line); werr != nil && !writeFailed {
				writeFailed = true
				r.logger.Warn().Err(werr).Msg("writing raw log")
			}
			text := strings.ToValidUTF8(strings.TrimRight(line, "\r\n"), "\uFFFD")
			tail.add(text)
			fwd.push(text)
		}
		if err != nil {
			return
		}
	}
}

func (r *Runner) notFound(res Result, out io.Writer, name string) Result {
	msg := fmt.Sprintf("command not found: %s", name)
	fmt.Fprintln(out, msg)
	res.NotFound = true
	res.ExitCode = ExitNotFound
	res.Tail = []string{msg}
	res.Err = fmt.Errorf("%w: %s", ErrCommandNotFound, name)
	return res
}

func (r *Runner) openLog(path string) (io.Writer, func(), error) {
	if path == "" {
		return io.Discard, func() {}, nil
	}
	if err := r.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log dir: %w", err)
	}
	f, err := r.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening raw log: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func exitCode(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		if code := cmd.ProcessState.ExitCode(); code >= 0 {
			return code
		}
	}
	if waitErr != nil {
		return 1
	}
	return 0
}
