// Package artifact lays out the on-disk tree for scan runs:
//
//	<scanRoot>/<targetKey>/<toolKey>/<runID>/
//	  raw_<toolKey>.log
//	  formatted/
//	  exports/
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// RunIDLayout is the time layout of run directory names (YYYYMMDD_HHMMSS).
const RunIDLayout = "20060102_150405"

// maxRunSuffix bounds collision retries within a single second.
const maxRunSuffix = 1000

// Paths describes one run directory.
type Paths struct {
	Dir       string `json:"dir"`
	RawLog    string `json:"raw_log"`
	Formatted string `json:"formatted"`
	Exports   string `json:"exports"`
	RunID     string `json:"run_id"`
	TargetKey string `json:"target_key"`
	ToolKey   string `json:"tool_key"`
}

// Builder creates run directories on a filesystem.
type Builder struct {
	fs afero.Fs
}

// NewBuilder returns a Builder over fs. A nil fs means the OS filesystem.
func NewBuilder(fs afero.Fs) *Builder {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Builder{fs: fs}
}

// Fs returns the underlying filesystem.
func (b *Builder) Fs() afero.Fs {
	return b.fs
}

// Slug sanitizes a name for use as a path segment: characters outside
// [A-Za-z0-9._-] become '_', the result is lower-cased and trimmed of '_'.
// An empty result, or one that would escape the parent dir, yields fallback.
func Slug(name, fallback string) string {
	var sb strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}

	s := strings.Trim(strings.ToLower(sb.String()), "_")
	switch s {
	case "", ".", "..":
		return fallback
	}
	return s
}

// NewRunID formats t as a run identifier.
func NewRunID(t time.Time) string {
	return t.Format(RunIDLayout)
}

// Paths computes and creates the directories for a known runID. It is
// idempotent and safe to call concurrently for distinct tuples.
func (b *Builder) Paths(scanRoot, target, tool, runID string) (Paths, error) {
	p := layout(scanRoot, target, tool, runID)
	for _, dir := range []string{p.Formatted, p.Exports} {
		if err := b.fs.MkdirAll(dir, 0o755); err != nil {
			return Paths{}, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return p, nil
}

// Reserve allocates a fresh run directory stamped with now. An existing run
// directory is never reused: on collision a numeric suffix is appended.
func (b *Builder) Reserve(scanRoot, target, tool string, now time.Time) (Paths, error) {
	base := NewRunID(now)
	parent := filepath.Join(scanRoot, Slug(target, "target"), Slug(tool, "tool"))
	if err := b.fs.MkdirAll(parent, 0o755); err != nil {
		return Paths{}, fmt.Errorf("creating %s: %w", parent, err)
	}

	for i := 1; i <= maxRunSuffix; i++ {
		runID := base
		if i > 1 {
			runID = fmt.Sprintf("%s_%d", base, i)
		}

		err := b.fs.Mkdir(filepath.Join(parent, runID), 0o755)
		if err == nil {
			return b.Paths(scanRoot, target, tool, runID)
		}
		if !os.IsExist(err) {
			return Paths{}, fmt.Errorf("reserving run dir: %w", err)
		}
	}
	return Paths{}, fmt.Errorf("reserving run dir under %s: too many runs in one second", parent)
}

// MachineDir ensures and returns the machine-readable output directory that
// sits next to the per-target trees.
func (b *Builder) MachineDir(scanRoot string) (string, error) {
	dir := filepath.Join(scanRoot, "machine")
	if err := b.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	return dir, nil
}

func layout(scanRoot, target, tool, runID string) Paths {
	targetKey := Slug(target, "target")
	toolKey := Slug(tool, "tool")
	dir := filepath.Join(scanRoot, targetKey, toolKey, runID)

	return Paths{
		Dir:       dir,
		RawLog:    filepath.Join(dir, RawLogName(toolKey)),
		Formatted: filepath.Join(dir, "formatted"),
		Exports:   filepath.Join(dir, "exports"),
		RunID:     runID,
		TargetKey: targetKey,
		ToolKey:   toolKey,
	}
}

// RawLogName returns the raw log file name for a tool key.
func RawLogName(toolKey string) string {
	return "raw_" + toolKey + ".log"
}
