// Package cli provides the command-line interface for stencil.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/stencilbuild/stencil/internal/cli/commands"
	"github.com/stencilbuild/stencil/internal/config"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stencil",
		Short: "stencil - template-to-module build tool",
		Long: `stencil compiles template files into JavaScript modules a bundler can
consume: precompiled self-registering modules by default, or eagerly
rendered string exports when a render context is configured.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			dir, err := os.Getwd()
			if err != nil {
				return err
			}
			if root := config.FindProjectRoot(dir); root != "" {
				dir = root
			}

			cfg, err := config.Load(dir, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			level := slog.LevelInfo
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			ctx := commands.WithConfig(cmd.Context(), cfg)
			ctx = commands.WithLogger(ctx, logger)
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	rootCmd.PersistentFlags().String("templates-dir", "", "Path to the templates directory")
	rootCmd.PersistentFlags().String("out-dir", "", "Path to the generated-module output directory")
	rootCmd.PersistentFlags().String("environment-module", "", "Module path of the shared runtime environment")
	rootCmd.PersistentFlags().Bool("production", false, "Use digest registry keys and minified bundles")
	rootCmd.PersistentFlags().String("context-file", "", "YAML file of render variables (switches to eager rendering)")
	rootCmd.PersistentFlags().Bool("bundle", false, "Run the bundler over generated modules after building")
	rootCmd.PersistentFlags().String("bundle-dir", "", "Path to the bundler output directory")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewBuildCommand())
	rootCmd.AddCommand(commands.NewRenderCommand())
	rootCmd.AddCommand(commands.NewWatchCommand())

	return rootCmd
}

// Execute runs the root command under ctx; cancellation stops watch
// sessions and in-flight builds.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
