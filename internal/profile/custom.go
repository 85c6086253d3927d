package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// DefaultCustomFile is the file name used for saved custom profiles.
const DefaultCustomFile = "custom_scan_profile.json"

type customEntry struct {
	Args string `json:"args"`
}

// LoadCustomArgs reads a custom profile file. Both the flat
// {"nmap": "-sn {{target}}"} and nested {"nmap": {"args": "..."}} layouts
// are accepted. A missing file yields an empty map.
func LoadCustomArgs(fs afero.Fs, path string) (map[string]string, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading custom profile: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing custom profile %s: %w", path, err)
	}

	out := make(map[string]string, len(raw))
	for tool, msg := range raw {
		tool = strings.ToLower(strings.TrimSpace(tool))

		var flat string
		if err := json.Unmarshal(msg, &flat); err == nil {
			out[tool] = flat
			continue
		}

		var nested customEntry
		if err := json.Unmarshal(msg, &nested); err != nil {
			return nil, fmt.Errorf("custom profile entry %q: %w", tool, err)
		}
		out[tool] = nested.Args
	}
	return out, nil
}

// SaveCustomArgs writes args in the nested layout, creating parent dirs.
func SaveCustomArgs(fs afero.Fs, path string, args map[string]string) error {
	tools := make([]string, 0, len(args))
	for t := range args {
		tools = append(tools, t)
	}
	sort.Strings(tools)

	doc := make(map[string]customEntry, len(args))
	for _, t := range tools {
		doc[t] = customEntry{Args: args[t]}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding custom profile: %w", err)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating custom profile dir: %w", err)
	}
	return afero.WriteFile(fs, path, data, 0o644)
}

// MergeCustomArgs overlays override on top of base without mutating either.
func MergeCustomArgs(base, override map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[strings.ToLower(k)] = v
	}
	for k, v := range override {
		out[strings.ToLower(k)] = v
	}
	return out
}
