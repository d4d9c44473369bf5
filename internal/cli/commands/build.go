package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stencilbuild/stencil/internal/build"
)

const timeRounding = time.Millisecond

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build every template into a generated module",
		Long: `Build scans the templates directory, compiles each template and writes
one generated JavaScript module per template into the output directory.
With a context file configured, templates are rendered eagerly instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := ConfigFrom(cmd.Context())
			logger := LoggerFrom(cmd.Context())

			builder := build.New(cfg, logger)
			report, err := builder.Run(cmd.Context())
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Built %d template(s) in %s → %s\n",
				report.Templates, report.Duration.Round(timeRounding), cfg.OutDir)
			return nil
		},
	}
}
