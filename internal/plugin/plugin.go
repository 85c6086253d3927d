// Package plugin defines the tool adapter contract and the registry that
// discovers adapters from descriptor files.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/buemura/reconcraft/pkg/types"
)

var (
	// ErrNotFound is returned by Registry.Get for unknown names.
	ErrNotFound = errors.New("plugin not found")
	// ErrNoRunEntry marks a descriptor whose runner kind is unknown.
	ErrNoRunEntry = errors.New("plugin has no run entry point")
	// ErrInvalid wraps validation failures.
	ErrInvalid = errors.New("invalid plugin")
)

// InstallHints is the fixed set of accepted install hints.
var InstallHints = []string{"apt", "brew", "choco", "pip", "go", "git", "manual", "docker"}

// Info is the static metadata of an adapter.
type Info struct {
	RequiredTool string            `json:"required_tool" yaml:"required_tool"`
	InstallHint  string            `json:"install_hint" yaml:"install_hint"`
	InstallURL   string            `json:"install_url,omitempty" yaml:"install_url"`
	Executable   string            `json:"executable,omitempty" yaml:"executable"`
	Alias        string            `json:"alias,omitempty" yaml:"alias"`
	DockerRun    string            `json:"docker_run,omitempty" yaml:"docker_run"`
	Description  string            `json:"description,omitempty" yaml:"description"`
	DefaultArgs  map[string]string `json:"default_args,omitempty" yaml:"default_args"`
}

// RuntimeName is the name used to invoke the tool.
func (i Info) RuntimeName() string {
	switch {
	case i.Alias != "":
		return i.Alias
	case i.Executable != "":
		return i.Executable
	default:
		return i.RequiredTool
	}
}

// CandidateNames lists alias, executable and required tool in lookup order.
func (i Info) CandidateNames() []string {
	var names []string
	for _, n := range []string{i.Alias, i.Executable, i.RequiredTool} {
		if n != "" {
			names = append(names, n)
		}
	}
	return names
}

// Validate checks the metadata invariants.
func (i Info) Validate() error {
	if strings.TrimSpace(i.RequiredTool) == "" {
		return fmt.Errorf("%w: required_tool is empty", ErrInvalid)
	}
	hint := i.InstallHint
	if hint == "" {
		hint = "manual"
	}
	known := false
	for _, h := range InstallHints {
		if h == hint {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: install_hint %q must be one of %s", ErrInvalid, i.InstallHint, strings.Join(InstallHints, ", "))
	}
	if hint == "docker" && strings.TrimSpace(i.DockerRun) == "" {
		return fmt.Errorf("%w: docker_run is required when install_hint is docker", ErrInvalid)
	}
	return nil
}

// Request is what the engine hands an adapter for one job.
type Request struct {
	Target  types.Target
	RawDir  string
	BaseDir string
	Args    string
	// Output receives progress lines; it may be nil.
	Output func(string)
}

// Emit sends a line to the output callback if one is set.
func (r Request) Emit(line string) {
	if r.Output != nil {
		r.Output(line)
	}
}

// CommandResult describes a finished RunCommand call.
type CommandResult struct {
	Path     string
	ExitCode int
	Output   string
	Aborted  bool
	TimedOut bool
	NotFound bool
}

// Capabilities are the engine services injected into adapters. Adapters
// must not spawn processes themselves.
type Capabilities interface {
	// RunCommand runs argv and writes its output under the job's raw dir.
	// An empty outFileName selects the default raw log name.
	RunCommand(ctx context.Context, argv []string, outFileName string, onLine func(string)) (CommandResult, error)
	// CheckInstalled reports whether name is on PATH.
	CheckInstalled(name string) bool
	// ExtractCVEs returns the CVE identifiers found in a log file.
	ExtractCVEs(path string) ([]string, error)
}

// Adapter integrates one external tool.
type Adapter interface {
	Name() string
	Info() Info
	Run(ctx context.Context, req Request, caps Capabilities) (types.Outcome, error)
}

// Validator is implemented by adapters that can reject themselves.
type Validator interface {
	Validate() error
}

func validateAdapter(a Adapter) error {
	if strings.TrimSpace(a.Name()) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalid)
	}
	if err := a.Info().Validate(); err != nil {
		return err
	}
	if v, ok := a.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	return nil
}
