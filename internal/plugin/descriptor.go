package plugin

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Descriptor is the on-disk YAML form of an adapter.
type Descriptor struct {
	Name         string            `yaml:"name"`
	RequiredTool string            `yaml:"required_tool"`
	InstallHint  string            `yaml:"install_hint"`
	InstallURL   string            `yaml:"install_url"`
	Executable   string            `yaml:"executable"`
	Alias        string            `yaml:"alias"`
	DockerRun    string            `yaml:"docker_run"`
	Description  string            `yaml:"description"`
	Runner       string            `yaml:"runner"`
	DefaultArgs  map[string]string `yaml:"default_args"`
}

// ParseDescriptor decodes a descriptor strictly; unknown keys are errors.
// fallbackName is used when the descriptor has no name.
func ParseDescriptor(fallbackName string, data []byte) (Adapter, error) {
	var d Descriptor
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decoding descriptor: %w", err)
	}
	return d.Adapter(fallbackName)
}

// Adapter builds the adapter described by d.
func (d Descriptor) Adapter(fallbackName string) (Adapter, error) {
	name := strings.ToLower(strings.TrimSpace(d.Name))
	if name == "" {
		name = strings.ToLower(fallbackName)
	}

	info := Info{
		RequiredTool: strings.TrimSpace(d.RequiredTool),
		InstallHint:  strings.ToLower(strings.TrimSpace(d.InstallHint)),
		InstallURL:   d.InstallURL,
		Executable:   strings.TrimSpace(d.Executable),
		Alias:        strings.TrimSpace(d.Alias),
		DockerRun:    d.DockerRun,
		Description:  strings.TrimSpace(d.Description),
		DefaultArgs:  d.DefaultArgs,
	}

	var a Adapter
	switch strings.ToLower(strings.TrimSpace(d.Runner)) {
	case "", RunnerGeneric:
		a = &genericAdapter{name: name, info: info}
	case RunnerCVE:
		a = &genericAdapter{name: name, info: info, extractCVEs: true}
	default:
		return nil, fmt.Errorf("%w: runner %q", ErrNoRunEntry, d.Runner)
	}

	if err := validateAdapter(a); err != nil {
		return nil, err
	}
	return a, nil
}
