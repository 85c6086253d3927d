// Package profile resolves per-tool argument templates for a scan profile.
package profile

import (
	"fmt"
	"strings"

	"github.com/buemura/reconcraft/pkg/types"
)

// Name is a canonical scan profile.
type Name string

const (
	Aggressive Name = "Aggressive"
	Normal     Name = "Normal"
	Passive    Name = "Passive"
	Custom     Name = "Custom"
)

// Names lists the canonical profiles in display order.
var Names = []Name{Aggressive, Normal, Passive, Custom}

// DisabledSentinel is the on-disk marker that disables a tool for a profile.
const DisabledSentinel = "DISABLED"

// Canonical maps a profile name onto the canonical set, ignoring case.
// A blank name is Normal. Unknown names are returned trimmed but otherwise
// unchanged so that adapters may define extra profiles.
func Canonical(name string) Name {
	name = strings.TrimSpace(name)
	if name == "" {
		return Normal
	}
	for _, n := range Names {
		if strings.EqualFold(name, string(n)) {
			return n
		}
	}
	return Name(name)
}

// Mode says whether a template runs the tool or disables it.
type Mode int

const (
	ModeRun Mode = iota
	ModeDisabled
)

// Template is a parsed argument template.
type Template struct {
	Mode Mode
	Text string
}

// ParseTemplate turns a raw template string into a Template. The DISABLED
// sentinel is matched case-insensitively after trimming.
func ParseTemplate(raw string) Template {
	if strings.EqualFold(strings.TrimSpace(raw), DisabledSentinel) {
		return Template{Mode: ModeDisabled}
	}
	return Template{Mode: ModeRun, Text: raw}
}

// Disabled reports whether the template disables the tool.
func (t Template) Disabled() bool {
	return t.Mode == ModeDisabled
}

// Expand substitutes the target placeholder. The legacy single-brace form
// is substituted after the double-brace form.
func (t Template) Expand(target types.Target) string {
	s := strings.ReplaceAll(t.Text, "{{target}}", target.String())
	s = strings.ReplaceAll(s, "{target}", target.String())
	return strings.TrimSpace(s)
}

// Request carries everything needed to resolve one job's arguments.
type Request struct {
	Tool     string
	Defaults map[string]string
	Profile  string
	Target   types.Target
	Custom   map[string]string
}

// Resolution is the result of Resolve.
type Resolution struct {
	Profile  Name
	Template Template
	Args     string
	Skip     bool
	Note     string
}

// Resolve computes the final argument string for a (tool, profile, target).
// Only an explicit DISABLED template skips, except under the Custom profile
// where a missing or blank override also disables the tool.
func Resolve(req Request) Resolution {
	name := Canonical(req.Profile)
	res := Resolution{Profile: name}

	if name == Custom {
		raw := lookup(req.Custom, req.Tool)
		if strings.TrimSpace(raw) == "" {
			res.Template = Template{Mode: ModeDisabled}
			res.Skip = true
			res.Note = fmt.Sprintf("no custom args for %s", req.Tool)
			return res
		}
		res.Template = ParseTemplate(raw)
	} else {
		res.Template = ParseTemplate(lookup(req.Defaults, string(name)))
	}

	if res.Template.Disabled() {
		res.Skip = true
		res.Note = fmt.Sprintf("%s disabled for %s profile", req.Tool, name)
		return res
	}

	res.Args = res.Template.Expand(req.Target)
	if name == Custom {
		res.Note = fmt.Sprintf("Using Custom args for %s: %s -> %s", req.Tool, res.Template.Text, res.Args)
	}
	return res
}

// lookup finds key exactly first and then case-insensitively.
func lookup(m map[string]string, key string) string {
	if v, ok := m[key]; ok {
		return v
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
