// SPDX-License-Identifier: Apache-2.0

// Package cli provides the schemactl command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gvern/soxauto/internal/config"
	"github.com/gvern/soxauto/internal/engine"
	"github.com/gvern/soxauto/internal/registry"
)

// Version is set at build time.
var Version = "0.1.0"

// state is shared by every command of one invocation.
type state struct {
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger

	registry *registry.Registry
	engine   *engine.Engine
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	st := &state{}

	rootCmd := &cobra.Command{
		Use:   "schemactl",
		Short: "Validate and normalize financial extracts against versioned schema contracts",
		Long: `schemactl resolves the schema contract of a dataset, maps source columns to
canonical names, coerces values by semantic tag and applies fill policies,
producing a complete audit report of every transformation.

Contracts live in <contracts_dir>/<dataset_id>/v<N>.yaml, or under an S3
prefix with the same layout. Set SCHEMA_VERSION_<dataset_id> to pin a version.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			cfg, err := config.Load(st.cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			st.cfg = cfg
			st.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.Level()}))
			if cfg.File != "" {
				st.logger.Debug("using config file", "path", cfg.File)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&st.cfgFile, "config", "", "config file (default: ./schemactl.yaml)")
	rootCmd.PersistentFlags().String("contracts-dir", "", "Directory holding contract definitions")
	rootCmd.PersistentFlags().String("s3-bucket", "", "Read contracts from this S3 bucket instead of a directory")
	rootCmd.PersistentFlags().String("s3-prefix", "", "Key prefix of contracts in the S3 bucket")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format (yaml|json|table|markdown)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.Outputs, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newApplyCommand(st))
	rootCmd.AddCommand(newCheckCommand(st))
	rootCmd.AddCommand(newRulesCommand(st))
	rootCmd.AddCommand(newHashCommand(st))
	rootCmd.AddCommand(newContractsCommand(st))
	rootCmd.AddCommand(newServeCommand(st))

	return rootCmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// open builds the registry and engine on first use.
func (s *state) open(ctx context.Context) error {
	if s.registry != nil {
		return nil
	}
	src, err := s.source(ctx)
	if err != nil {
		return err
	}
	pins := registry.ChainPins{registry.EnvPins{}, registry.StaticPins(s.cfg.Pins)}
	reg, err := registry.New(src, registry.WithPins(pins), registry.WithLogger(s.logger))
	if err != nil {
		return err
	}
	s.registry = reg
	s.engine = engine.New(reg, engine.WithLogger(s.logger))
	return nil
}

func (s *state) source(ctx context.Context) (registry.Source, error) {
	if s.cfg.S3Bucket != "" {
		src, err := registry.NewS3SourceFromConfig(ctx, s.cfg.S3Bucket, s.cfg.S3Prefix)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	info, err := os.Stat(s.cfg.ContractsDir)
	if err != nil {
		return nil, fmt.Errorf("contracts directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("contracts directory: %s is not a directory", s.cfg.ContractsDir)
	}
	return registry.NewDirSource(os.DirFS(s.cfg.ContractsDir), s.cfg.ContractsDir), nil
}

func (s *state) output() string {
	return s.cfg.Output
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}
