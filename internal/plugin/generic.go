package plugin

import (
	"context"
	"fmt"
	"strings"

	"github.com/buemura/reconcraft/internal/profile"
	"github.com/buemura/reconcraft/pkg/types"
)

// runner kinds accepted in descriptors
const (
	RunnerGeneric = "generic"
	RunnerCVE     = "cve"
)

// genericAdapter runs "<runtime> <args...>" and returns its output.
type genericAdapter struct {
	name        string
	info        Info
	extractCVEs bool
}

// NewGeneric builds an adapter that invokes info.RuntimeName() with the
// resolved arguments split on whitespace.
func NewGeneric(name string, info Info) Adapter {
	return &genericAdapter{name: name, info: info}
}

func (a *genericAdapter) Name() string { return a.name }
func (a *genericAdapter) Info() Info   { return a.info }

func (a *genericAdapter) Run(ctx context.Context, req Request, caps Capabilities) (types.Outcome, error) {
	if profile.ParseTemplate(req.Args).Disabled() {
		return types.Skipped(fmt.Sprintf("%s disabled for this profile", a.name)), nil
	}

	runtime := a.info.RuntimeName()
	req.Emit(fmt.Sprintf("ARGS RECEIVED: %q", req.Args))
	if !caps.CheckInstalled(runtime) {
		return types.Failure(fmt.Sprintf("%s not installed. Skipping %s.", runtime, req.Target)), nil
	}

	argv := append([]string{runtime}, strings.Fields(req.Args)...)
	req.Emit("DEBUG CMD: " + strings.Join(argv, " "))

	res, err := caps.RunCommand(ctx, argv, "", req.Output)
	switch {
	case res.Aborted:
		out := types.Aborted(fmt.Sprintf("%s aborted for %s", a.name, req.Target))
		out.Path = res.Path
		return out, nil
	case err != nil:
		out := types.Failure(err.Error())
		out.Path = res.Path
		return out, nil
	case res.ExitCode != 0:
		out := types.Failure(fmt.Sprintf("exited with code %d%s", res.ExitCode, lastLine(res.Output)))
		out.Path = res.Path
		return out, nil
	}

	if a.extractCVEs {
		ids, err := caps.ExtractCVEs(res.Path)
		if err != nil {
			req.Emit(fmt.Sprintf("CVE extraction failed: %v", err))
		} else if len(ids) > 0 {
			req.Emit(fmt.Sprintf("Found %d CVE identifier(s): %s", len(ids), strings.Join(ids, ", ")))
		}
	}

	out := types.Success(res.Output)
	out.Path = res.Path
	return out, nil
}

func lastLine(output string) string {
	output = strings.TrimSpace(output)
	if output == "" {
		return ""
	}
	if i := strings.LastIndexByte(output, '\n'); i >= 0 {
		output = output[i+1:]
	}
	return ": " + output
}
