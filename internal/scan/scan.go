// Package scan fans a targets × tools matrix out over a bounded worker pool
// and folds the per-job outcomes into a single ScanOutcome.
package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/buemura/reconcraft/internal/artifact"
	"github.com/buemura/reconcraft/internal/manifest"
	"github.com/buemura/reconcraft/internal/metrics"
	"github.com/buemura/reconcraft/internal/plugin"
	"github.com/buemura/reconcraft/internal/process"
	"github.com/buemura/reconcraft/internal/profile"
	"github.com/buemura/reconcraft/internal/toolcheck"
	"github.com/buemura/reconcraft/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the worker pool size when a request leaves it unset.
const DefaultConcurrency = 4

var (
	// ErrNoPlugins means none of the requested tool names resolved.
	ErrNoPlugins = errors.New("no plugins loaded")
	// ErrNoTargets means the request named no usable target.
	ErrNoTargets = errors.New("no targets given")
)

// Adapters resolves tool names to adapters.
type Adapters interface {
	Get(name string) (plugin.Adapter, error)
}

// Request describes one scan.
type Request struct {
	ScanID      string
	Targets     []string
	Tools       []string
	ScanRoot    string
	Profile     string
	CustomArgs  map[string]string
	Concurrency int
	// Timeout bounds each subprocess; zero means no limit.
	Timeout time.Duration
}

// Scheduler runs scans. A Scheduler may run several scans concurrently;
// each scan gets its own token and aggregator.
type Scheduler struct {
	adapters Adapters
	runner   *process.Runner
	checker  *toolcheck.Checker
	builder  *artifact.Builder
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	throttle time.Duration
	manifest bool
	now      func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRunner replaces the process runner.
func WithRunner(r *process.Runner) Option {
	return func(s *Scheduler) { s.runner = r }
}

// WithChecker replaces the tool availability checker.
func WithChecker(c *toolcheck.Checker) Option {
	return func(s *Scheduler) { s.checker = c }
}

// WithBuilder replaces the artifact builder.
func WithBuilder(b *artifact.Builder) Option {
	return func(s *Scheduler) { s.builder = b }
}

// WithMetrics records job and scan metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithThrottle sets how often live tool output is forwarded to observers.
func WithThrottle(d time.Duration) Option {
	return func(s *Scheduler) { s.throttle = d }
}

// WithManifest enables writing run.json and findings.jsonl per run.
func WithManifest(enabled bool) Option {
	return func(s *Scheduler) { s.manifest = enabled }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a Scheduler over the given adapters. Unless replaced
// by options, artifacts go to the OS filesystem and tools are looked up on
// PATH.
func NewScheduler(adapters Adapters, opts ...Option) *Scheduler {
	s := &Scheduler{
		adapters: adapters,
		logger:   zerolog.Nop(),
		throttle: process.DefaultThrottle,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.builder == nil {
		s.builder = artifact.NewBuilder(nil)
	}
	if s.checker == nil {
		s.checker = toolcheck.New()
	}
	if s.runner == nil {
		s.runner = process.NewRunner(s.builder.Fs(), s.logger, process.WithTracker(s.metrics))
	}
	return s
}

// Run executes req to completion. Cancelling token, or ctx, aborts the scan:
// queued jobs are dropped and live processes are terminated. Run returns an
// error only for setup failures, in which case no outcome is produced and
// obs receives a single done_error status.
func (s *Scheduler) Run(ctx context.Context, req Request, token *process.Token, obs Observer) (*types.ScanOutcome, error) {
	if obs == nil {
		obs = NopObserver{}
	}
	if token == nil {
		token = process.NewToken()
	}
	stop := token.Bind(ctx)
	defer stop()

	// Adapters see token cancellation through ctx.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-token.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	targets, err := types.ParseTargets(req.Targets)
	if err == nil && len(targets) == 0 {
		err = ErrNoTargets
	}
	if err != nil {
		obs.Status(types.StatusDoneError)
		return nil, err
	}

	tools := uniqueNames(req.Tools)
	adapters := make(map[string]plugin.Adapter, len(tools))
	for _, name := range tools {
		a, err := s.adapters.Get(name)
		if err != nil {
			s.logger.Warn().Str("tool", name).Err(err).Msg("tool not supported")
			continue
		}
		adapters[name] = a
	}
	if len(adapters) == 0 {
		obs.Log("❌ No plugins loaded. Aborting scan.")
		obs.Status(types.StatusDoneError)
		return nil, fmt.Errorf("%w for %s", ErrNoPlugins, strings.Join(tools, ", "))
	}

	scanID := req.ScanID
	if scanID == "" {
		scanID = uuid.NewString()
	}
	concurrency := req.Concurrency
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}

	agg := newAggregator(scanID, len(targets)*len(tools), obs, s.now())
	agg.log(fmt.Sprintf("⚙ Launching tools on %d target(s)...", len(targets)))
	s.logger.Info().Str("scan_id", scanID).Int("targets", len(targets)).Strs("tools", tools).
		Str("profile", string(profile.Canonical(req.Profile))).Int("concurrency", concurrency).Msg("scan started")

	s.checker.Reset()

	var machineDir string
	if s.manifest {
		if machineDir, err = s.builder.MachineDir(req.ScanRoot); err != nil {
			s.logger.Warn().Err(err).Msg("scan summary disabled")
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(concurrency)
	for _, target := range targets {
		for _, tool := range tools {
			jc := JobContext{
				ScanID:   scanID,
				Target:   target,
				Tool:     tool,
				ScanRoot: req.ScanRoot,
				Profile:  req.Profile,
				Custom:   req.CustomArgs,
				Timeout:  req.Timeout,
			}
			if stopped(ctx, token) {
				agg.cancelled(jc)
				continue
			}
			// Go blocks while the pool is full; runJob checks the token again.
			adapter := adapters[tool]
			g.Go(func() error {
				s.runJob(ctx, token, jc, adapter, agg)
				return nil
			})
		}
	}
	_ = g.Wait()

	outcome := agg.finish(stopped(ctx, token), s.now())
	s.metrics.ObserveScan(outcome.Status)
	if machineDir != "" {
		if _, err := manifest.WriteOutcome(s.builder.Fs(), machineDir, outcome); err != nil {
			s.logger.Warn().Str("scan_id", scanID).Err(err).Msg("writing scan summary")
		}
	}
	s.logger.Info().Str("scan_id", scanID).Str("status", string(outcome.Status)).
		Int("completed", outcome.Completed).Int("cancelled", outcome.Cancelled).Msg("scan finished")
	return outcome, nil
}

// Checker returns the availability checker used by the scheduler.
func (s *Scheduler) Checker() *toolcheck.Checker {
	return s.checker
}

// stopped reports cancellation by either source. Bind trips the token
// asynchronously, so ctx is checked directly as well.
func stopped(ctx context.Context, token *process.Token) bool {
	return token.Cancelled() || ctx.Err() != nil
}

func uniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if n == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}
