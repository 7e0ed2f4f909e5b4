// Package config provides configuration management for the praeparo CLI.
//
// Configuration is layered: defaults, then the project config file
// (praeparo.yaml), then PRAEPARO_-prefixed environment variables, then
// explicitly-set CLI flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Defaults.
const (
	DefaultOutputDir   = "out"
	DefaultPNGExporter = "praeparo-export"
	DefaultMaxAttempts = 4
)

// maxUpwardSearchLevels limits how far up the directory tree the config file
// search goes.
const maxUpwardSearchLevels = 10

// Config holds the tool-level settings shared by all commands.
type Config struct {
	// Datasource overrides every document's datasource reference when set.
	Datasource string `koanf:"datasource"`
	// OutputDir is where artifacts are written.
	OutputDir string `koanf:"output_dir"`
	// Formats selects the output targets (html, csv, json, png).
	Formats []string `koanf:"formats"`
	// PNGExporter names the external binary used for PNG export.
	PNGExporter string `koanf:"png_exporter"`
	// MaxAttempts bounds query retries against remote datasources.
	MaxAttempts int  `koanf:"max_attempts"`
	Verbose     bool `koanf:"verbose"`
}

var configFileUsed string

// GetConfigFileUsed returns the config file loaded by the last Load call.
func GetConfigFileUsed() string { return configFileUsed }

// Load loads configuration from defaults, the config file, environment
// variables, and explicitly-set flags, in ascending precedence.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"output_dir":   DefaultOutputDir,
		"formats":      []string{"html"},
		"png_exporter": DefaultPNGExporter,
		"max_attempts": DefaultMaxAttempts,
		"verbose":      false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// PRAEPARO_OUTPUT_DIR -> output_dir
	if err := k.Load(env.Provider("PRAEPARO_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "PRAEPARO_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// findConfigFile picks the config file to use: the explicit path when given,
// otherwise praeparo.yaml/.yml searched upward from the working directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for range maxUpwardSearchLevels {
		for _, name := range []string{"praeparo.yaml", "praeparo.yml"} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}
