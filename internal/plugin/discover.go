package plugin

import (
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Rejected records a descriptor skipped during discovery.
type Rejected struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

var ignoredStems = map[string]bool{"template": true}

var ignoredSuffixes = []string{".bak", ".disabled", ".example", ".tmp", "~"}

// ignored reports whether a directory entry name is never loaded.
func ignored(name string) bool {
	if strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") {
		return true
	}
	for _, s := range ignoredSuffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	ext := strings.ToLower(path.Ext(name))
	if ext != ".yaml" && ext != ".yml" {
		return true
	}
	return ignoredStems[strings.ToLower(strings.TrimSuffix(name, path.Ext(name)))]
}

// Discover loads every descriptor at the root of fsys. Files are visited in
// case-insensitive lexicographic order. A file that cannot be read, parsed
// or validated is logged and reported in the rejected list; it never stops
// discovery of the rest.
func Discover(fsys fs.FS, logger zerolog.Logger) (map[string]Adapter, []Rejected) {
	adapters := make(map[string]Adapter)

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		logger.Warn().Err(err).Msg("reading plugin directory")
		return adapters, []Rejected{{File: ".", Reason: err.Error()}}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})

	var rejected []Rejected
	reject := func(file string, err error) {
		logger.Warn().Str("file", file).Err(err).Msg("skipping plugin")
		rejected = append(rejected, Rejected{File: file, Reason: err.Error()})
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || ignored(name) {
			continue
		}

		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			reject(name, err)
			continue
		}

		a, err := ParseDescriptor(strings.TrimSuffix(name, path.Ext(name)), data)
		if err != nil {
			reject(name, err)
			continue
		}

		if _, dup := adapters[a.Name()]; dup {
			logger.Debug().Str("plugin", a.Name()).Str("file", name).Msg("plugin redefined, later file wins")
		}
		adapters[a.Name()] = a
		logger.Debug().Str("plugin", a.Name()).Str("file", name).Msg("plugin loaded")
	}

	return adapters, rejected
}
