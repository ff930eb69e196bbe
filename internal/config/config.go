// SPDX-License-Identifier: Apache-2.0

// Package config loads schemactl settings. Precedence, lowest first:
// defaults, the config file, SCHEMACTL_* environment variables, explicitly
// set flags.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	// EnvPrefix is the prefix of environment overrides, e.g.
	// SCHEMACTL_CONTRACTS_DIR.
	EnvPrefix = "SCHEMACTL_"

	DefaultContractsDir = "contracts"
	DefaultLogLevel     = "info"
	DefaultOutput       = "yaml"
)

var configFiles = []string{"schemactl.yaml", "schemactl.yml"}

// Output formats accepted by the output key.
var Outputs = []string{"yaml", "json", "table", "markdown"}

// Config holds all schemactl settings.
type Config struct {
	ContractsDir string         `koanf:"contracts_dir"`
	S3Bucket     string         `koanf:"s3_bucket"`
	S3Prefix     string         `koanf:"s3_prefix"`
	LogLevel     string         `koanf:"log_level"`
	Output       string         `koanf:"output"`
	Pins         map[string]int `koanf:"pins"`

	// File is the config file that was read, if any.
	File string `koanf:"-"`
}

// Load reads the configuration. cfgFile may be empty, in which case
// schemactl.yaml or schemactl.yml in the working directory is used when
// present. flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"contracts_dir": DefaultContractsDir,
		"log_level":     DefaultLogLevel,
		"output":        DefaultOutput,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// SCHEMACTL_S3_BUCKET -> s3_bucket
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
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
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// findConfigFile returns explicit when set, otherwise the first default
// config file that exists.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range configFiles {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Validate checks enumerated keys and pins.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if !slices.Contains(Outputs, c.Output) {
		return fmt.Errorf("invalid output %q: must be one of %s", c.Output, strings.Join(Outputs, ", "))
	}
	if c.ContractsDir == "" && c.S3Bucket == "" {
		return fmt.Errorf("no contract source configured: set contracts_dir or s3_bucket")
	}
	for id, v := range c.Pins {
		if v <= 0 {
			return fmt.Errorf("invalid pin for dataset %q: version %d must be a positive integer", id, v)
		}
	}
	return nil
}

// Level returns the slog level for LogLevel. Validate has already rejected
// unknown names.
func (c *Config) Level() slog.Level {
	l, _ := ParseLevel(c.LogLevel)
	return l
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: must be one of debug, info, warn, error", s)
	}
	return l, nil
}
