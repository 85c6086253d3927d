package plugin

import "github.com/buemura/reconcraft/internal/toolcheck"

// Status is a registry entry annotated with PATH availability.
type Status struct {
	Name string `json:"name"`
	Info
	Runtime   string `json:"runtime"`
	Installed bool   `json:"installed"`
	Path      string `json:"path,omitempty"`
}

// Statuses lists every adapter, sorted by name, with the executable the
// checker resolved for it. Availability is advisory.
func (r *Registry) Statuses(checker *toolcheck.Checker) []Status {
	all := r.All()
	out := make([]Status, len(all))
	for i, a := range all {
		info := a.Info()
		st := Status{Name: a.Name(), Info: info, Runtime: info.RuntimeName()}
		if name, ok := checker.Resolve(info); ok {
			st.Installed = true
			st.Path, _ = checker.Path(name)
		}
		out[i] = st
	}
	return out
}
