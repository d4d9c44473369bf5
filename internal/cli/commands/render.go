package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stencilbuild/stencil/internal/bridge"
	"github.com/stencilbuild/stencil/internal/environment"
)

// NewRenderCommand creates the render command, which processes a single
// template and prints the generated module to stdout.
func NewRenderCommand() *cobra.Command {
	var (
		contextFile string
		precompile  bool
		showDeps    bool
	)

	cmd := &cobra.Command{
		Use:   "render <template>",
		Short: "Process one template and print the generated module",
		Long: `Render processes a single template file. With --context (or a
context_file in the project config) the template is rendered eagerly and
the module exports the rendered string; otherwise the precompiled
self-registering module is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ConfigFrom(cmd.Context())
			logger := LoggerFrom(cmd.Context())

			if precompile && contextFile != "" {
				return fmt.Errorf("--precompile and --context are mutually exclusive")
			}

			path := args[0]
			rel, err := filepath.Rel(cfg.TemplatesDir, path)
			if err != nil || rel == ".." || strings.HasPrefix(filepath.ToSlash(rel), "../") {
				return fmt.Errorf("template %s is not under %s", path, cfg.TemplatesDir)
			}
			name := filepath.ToSlash(rel)

			source, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied path
			if err != nil {
				return err
			}

			opts := map[string]any{"environmentModulePath": cfg.EnvironmentModule}
			if !precompile {
				if contextFile == "" {
					contextFile = cfg.ContextFile
				}
				if contextFile != "" {
					vars := map[string]any{}
					data, err := os.ReadFile(contextFile) //nolint:gosec // G304: operator-supplied path
					if err != nil {
						return err
					}
					if err := yaml.Unmarshal(data, &vars); err != nil {
						return fmt.Errorf("parsing context file %s: %w", contextFile, err)
					}
					opts["renderContext"] = vars
				}
			}

			env := environment.New(environment.Config{
				Loader: &environment.FilesystemLoader{Root: cfg.TemplatesDir},
				Logger: logger,
			})
			proc := bridge.NewProcessor(func(modulePath string) (*environment.Environment, error) {
				if modulePath != cfg.EnvironmentModule {
					return nil, fmt.Errorf("unknown environment module %q", modulePath)
				}
				return env, nil
			}, logger)

			result, err := proc.Process(cmd.Context(), bridge.Request{
				Source:       string(source),
				ResourcePath: name,
				Production:   cfg.Production,
				Options:      opts,
			})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprint(cmd.OutOrStdout(), result.Source)
			if showDeps {
				for _, dep := range result.Dependencies {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s\t%s\n", dep.Role, dep.Path)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&contextFile, "context", "", "YAML file of render variables (selects eager rendering)")
	cmd.Flags().BoolVar(&precompile, "precompile", false, "Force precompile mode, ignoring any configured context file")
	cmd.Flags().BoolVar(&showDeps, "deps", false, "Print dependency records to stderr")
	return cmd
}
