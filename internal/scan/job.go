package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/buemura/reconcraft/internal/artifact"
	"github.com/buemura/reconcraft/internal/manifest"
	"github.com/buemura/reconcraft/internal/plugin"
	"github.com/buemura/reconcraft/internal/process"
	"github.com/buemura/reconcraft/internal/profile"
	"github.com/buemura/reconcraft/pkg/types"
	"github.com/spf13/afero"
)

// JobContext is the immutable description of one (target, tool) job. It is
// passed by value down the execution path.
type JobContext struct {
	ScanID   string
	Target   types.Target
	Tool     string
	ScanRoot string
	Profile  string
	Custom   map[string]string
	Timeout  time.Duration
	Paths    artifact.Paths
}

func (jc JobContext) withPaths(p artifact.Paths) JobContext {
	jc.Paths = p
	return jc
}

func (s *Scheduler) runJob(ctx context.Context, token *process.Token, jc JobContext, adapter plugin.Adapter, agg *aggregator) {
	if stopped(ctx, token) {
		agg.cancelled(jc)
		return
	}
	agg.dispatched()

	res := types.JobResult{
		ScanJob:   types.ScanJob{Target: jc.Target, Tool: jc.Tool, State: types.JobRunning},
		StartedAt: s.now(),
	}
	res.State, res.Message = s.execute(ctx, token, jc, adapter, agg, &res)
	res.CompletedAt = s.now()

	s.metrics.ObserveJob(jc.Tool, res.State, res.CompletedAt.Sub(res.StartedAt))
	s.logger.Debug().Str("scan_id", jc.ScanID).Str("target", jc.Target.String()).Str("tool", jc.Tool).
		Str("state", string(res.State)).Int("exit_code", res.ExitCode).Msg("job finished")

	agg.record(res)
}

// execute runs one job and returns its final state and result line. It
// fills in the run fields of res as they become known.
func (s *Scheduler) execute(ctx context.Context, token *process.Token, jc JobContext, adapter plugin.Adapter, agg *aggregator, res *types.JobResult) (types.JobState, string) {
	if adapter == nil {
		return types.JobFailed, fmt.Sprintf("❌ Tool %q is not supported.", jc.Tool)
	}

	resolved := profile.Resolve(profile.Request{
		Tool:     jc.Tool,
		Defaults: adapter.Info().DefaultArgs,
		Profile:  jc.Profile,
		Target:   jc.Target,
		Custom:   jc.Custom,
	})
	if stopped(ctx, token) {
		return types.JobCancelled, fmt.Sprintf("⏹ %s cancelled for %s.", jc.Tool, jc.Target)
	}
	if resolved.Skip {
		return types.JobSkipped, fmt.Sprintf("⚠ %s skipped for %s: %s", jc.Tool, jc.Target, resolved.Note)
	}
	if resolved.Note != "" {
		agg.stream("🧩 " + resolved.Note)
	}

	paths, err := s.builder.Reserve(jc.ScanRoot, jc.Target.String(), jc.Tool, s.now())
	if err != nil {
		return types.JobFailed, fmt.Sprintf("❌ %s failed for %s: %v", jc.Tool, jc.Target, err)
	}
	jc = jc.withPaths(paths)
	res.RunID = paths.RunID
	res.RunDir = paths.Dir
	res.RawLog = paths.RawLog

	caps := newCapabilities(s, jc, token, agg.stream)
	out, err := s.invoke(ctx, jc, adapter, plugin.Request{
		Target:  jc.Target,
		RawDir:  paths.Dir,
		BaseDir: jc.ScanRoot,
		Args:    resolved.Args,
		Output:  agg.stream,
	}, caps)
	res.Command, res.ExitCode = caps.last()

	state, msg := s.normalize(jc, out, err, caps.wasAborted())
	if state == types.JobSucceeded && out.Path == "" {
		if werr := afero.WriteFile(s.builder.Fs(), paths.RawLog, []byte(out.Output), 0o644); werr != nil {
			state = types.JobFailed
			msg = fmt.Sprintf("❌ %s failed for %s: saving output: %v", jc.Tool, jc.Target, werr)
		}
	}

	if s.manifest {
		s.writeManifest(jc, res, state)
	}
	return state, msg
}

// invoke calls the adapter, converting a panic into an error.
func (s *Scheduler) invoke(ctx context.Context, jc JobContext, adapter plugin.Adapter, req plugin.Request, caps plugin.Capabilities) (out types.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("tool", jc.Tool).Str("target", jc.Target.String()).
				Interface("panic", r).Msg("adapter panicked")
			out = types.Outcome{}
			err = fmt.Errorf("%v", r)
		}
	}()
	return adapter.Run(ctx, req, caps)
}

func (s *Scheduler) normalize(jc JobContext, out types.Outcome, err error, aborted bool) (types.JobState, string) {
	switch {
	case aborted || out.Kind == types.OutcomeAborted:
		return types.JobAborted, fmt.Sprintf("⏹ %s aborted for %s.", jc.Tool, jc.Target)
	case err != nil:
		return types.JobFailed, fmt.Sprintf("❌ %s crashed for %s: %v", jc.Tool, jc.Target, err)
	}

	switch out.Kind {
	case types.OutcomeFailure:
		return types.JobFailed, fmt.Sprintf("❌ %s failed for %s: %s", jc.Tool, jc.Target, strings.TrimSpace(out.Output))
	case types.OutcomeSkipped:
		return types.JobSkipped, fmt.Sprintf("⚠ %s skipped for %s: %s", jc.Tool, jc.Target, strings.TrimSpace(out.Output))
	case types.OutcomeSuccess:
		if strings.TrimSpace(out.Output) == "" {
			break
		}
		path := out.Path
		if path == "" {
			path = jc.Paths.RawLog
		}
		return types.JobSucceeded, fmt.Sprintf("✅ %s finished for %s. Output saved to: %s", jc.Tool, jc.Target, path)
	}
	return types.JobFailed, fmt.Sprintf("❌ %s produced no output for %s.", jc.Tool, jc.Target)
}

func (s *Scheduler) writeManifest(jc JobContext, res *types.JobResult, state types.JobState) {
	fsys := s.builder.Fs()

	findings, err := manifest.Findings(fsys, jc.Paths.RawLog, jc.Tool, jc.Target)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn().Err(err).Str("tool", jc.Tool).Msg("extracting findings")
	}

	run := manifest.Run{
		ScanID:    jc.ScanID,
		RunID:     jc.Paths.RunID,
		Tool:      jc.Tool,
		Targets:   []string{jc.Target.String()},
		Command:   res.Command,
		StartedAt: res.StartedAt,
		EndedAt:   s.now(),
		Status:    string(state),
		ExitCode:  res.ExitCode,
	}
	if err := manifest.Write(fsys, jc.Paths.Dir, run, findings); err != nil {
		s.logger.Warn().Err(err).Str("dir", jc.Paths.Dir).Msg("writing run manifest")
	}
}
