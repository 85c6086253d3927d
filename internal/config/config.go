// Package config provides configuration loading for reconcraft.
// It supports a layered configuration approach with priority:
// CLI flags > environment variables (RECONCRAFT_*) > config file (~/.reconcraft.yaml).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ToolSet is a named group of tools that can be selected with a single name.
type ToolSet struct {
	Name  string   `mapstructure:"name" yaml:"name"`
	Tools []string `mapstructure:"tools" yaml:"tools"`
}

// Config holds all reconcraft configuration options.
type Config struct {
	PluginDir      string            `mapstructure:"plugin_dir" yaml:"plugin_dir"`
	ScanRoot       string            `mapstructure:"scan_root" yaml:"scan_root"`
	Profile        string            `mapstructure:"profile" yaml:"profile"`
	Concurrency    int               `mapstructure:"concurrency" yaml:"concurrency"`
	Timeout        time.Duration     `mapstructure:"timeout" yaml:"timeout"`
	OutputFormat   string            `mapstructure:"output_format" yaml:"output_format"`
	Manifest       bool              `mapstructure:"manifest" yaml:"manifest"`
	Throttle       time.Duration     `mapstructure:"throttle" yaml:"throttle"`
	CustomArgs     map[string]string `mapstructure:"custom_args" yaml:"custom_args"`
	CustomArgsFile string            `mapstructure:"custom_args_file" yaml:"custom_args_file"`
	Verbose        bool              `mapstructure:"verbose" yaml:"verbose"`
	ToolSets       []ToolSet         `mapstructure:"tool_sets" yaml:"tool_sets"`
}

// Defaults returns a Config populated with default values.
func Defaults() Config {
	return Config{
		ScanRoot:     "Scan Results",
		Profile:      "Normal",
		Concurrency:  4,
		OutputFormat: "table",
		Manifest:     true,
		Throttle:     250 * time.Millisecond,
	}
}

// Load reads configuration from ~/.reconcraft.yaml and environment variables.
// It does NOT apply CLI flag overrides; call ApplyFlags for that.
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName(".reconcraft")
	v.SetConfigType("yaml")

	home, err := os.UserHomeDir()
	if err == nil {
		v.AddConfigPath(home)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return unmarshal(v)
}

// ApplyFlags overrides config values with any CLI flags that were explicitly set.
func ApplyFlags(cfg *Config, cmd *cobra.Command) {
	flags := cmd.Flags()

	if flags.Changed("plugin-dir") {
		val, _ := flags.GetString("plugin-dir")
		cfg.PluginDir = val
	}
	if flags.Changed("scan-root") {
		val, _ := flags.GetString("scan-root")
		cfg.ScanRoot = val
	}
	if flags.Changed("profile") {
		val, _ := flags.GetString("profile")
		cfg.Profile = val
	}
	if flags.Changed("output") {
		val, _ := flags.GetString("output")
		cfg.OutputFormat = val
	}
	if flags.Changed("concurrency") {
		val, _ := flags.GetInt("concurrency")
		cfg.Concurrency = val
	}
	if flags.Changed("timeout") {
		val, _ := flags.GetDuration("timeout")
		cfg.Timeout = val
	}
	if flags.Changed("throttle") {
		val, _ := flags.GetDuration("throttle")
		cfg.Throttle = val
	}
	if flags.Changed("no-manifest") {
		val, _ := flags.GetBool("no-manifest")
		cfg.Manifest = !val
	}
	if flags.Changed("custom-file") {
		val, _ := flags.GetString("custom-file")
		cfg.CustomArgsFile = val
	}
	if flags.Changed("verbose") {
		val, _ := flags.GetBool("verbose")
		cfg.Verbose = val
	}
}

// GetToolSet returns the tool set with the given name, or nil if not found.
func (c *Config) GetToolSet(name string) *ToolSet {
	for i := range c.ToolSets {
		if strings.EqualFold(c.ToolSets[i].Name, name) {
			return &c.ToolSets[i]
		}
	}
	return nil
}

// ExpandTools replaces tool set names with their members, keeping order and
// dropping duplicates. Unknown names are passed through unchanged.
func (c *Config) ExpandTools(names []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(n string) {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" || seen[n] {
			return
		}
		seen[n] = true
		out = append(out, n)
	}

	for _, name := range names {
		if set := c.GetToolSet(name); set != nil {
			for _, t := range set.Tools {
				add(t)
			}
			continue
		}
		add(name)
	}
	return out
}

// ConfigFilePath returns the default config file path (~/.reconcraft.yaml).
func ConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".reconcraft.yaml"
	}
	return filepath.Join(home, ".reconcraft.yaml")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("RECONCRAFT")
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := Defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("plugin_dir", d.PluginDir)
	v.SetDefault("scan_root", d.ScanRoot)
	v.SetDefault("profile", d.Profile)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("output_format", d.OutputFormat)
	v.SetDefault("manifest", d.Manifest)
	v.SetDefault("throttle", d.Throttle)
	v.SetDefault("custom_args_file", d.CustomArgsFile)
	v.SetDefault("verbose", d.Verbose)
}
