// Package build orchestrates whole-project builds: it scans the templates
// directory, runs each template through the bridge and writes one
// generated module per template into the output directory.
package build

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/stencilbuild/stencil/internal/bridge"
	"github.com/stencilbuild/stencil/internal/config"
	"github.com/stencilbuild/stencil/internal/dag"
	"github.com/stencilbuild/stencil/internal/environment"
)

// Report summarizes one build run.
type Report struct {
	RunID     string
	Templates int
	Outputs   []string
	Duration  time.Duration
}

// Builder runs project builds. Safe for reuse across runs; the watcher
// holds one builder for its whole session.
type Builder struct {
	cfg    *config.Config
	env    *environment.Environment
	proc   *bridge.Processor
	graph  *dag.Graph
	logger *slog.Logger
}

// New creates a builder for cfg. The builder owns a single environment
// whose loader is rooted at the templates directory; the bridge resolves
// the configured environment module path to it and rejects any other.
func New(cfg *config.Config, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	env := environment.New(environment.Config{
		Loader: &environment.FilesystemLoader{Root: cfg.TemplatesDir},
		Logger: logger,
	})

	resolve := func(modulePath string) (*environment.Environment, error) {
		if modulePath != cfg.EnvironmentModule {
			return nil, fmt.Errorf("unknown environment module %q (configured: %q)", modulePath, cfg.EnvironmentModule)
		}
		return env, nil
	}

	return &Builder{
		cfg:    cfg,
		env:    env,
		proc:   bridge.NewProcessor(resolve, logger),
		graph:  dag.New(),
		logger: logger,
	}
}

// Graph exposes the reference graph accumulated by builds, for the
// watcher's invalidation queries.
func (b *Builder) Graph() *dag.Graph {
	return b.graph
}

// Run builds every template under the templates directory. It stops at
// the first failing template; generated modules written before the
// failure remain on disk.
func (b *Builder) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	b.logger.Info("build starting", "run", runID, "templates_dir", b.cfg.TemplatesDir)

	opts, err := b.invocationOptions()
	if err != nil {
		return nil, err
	}

	var outputs []string
	err = filepath.WalkDir(b.cfg.TemplatesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !b.cfg.IsTemplate(path) {
			return nil
		}

		out, err := b.buildFile(ctx, path, opts)
		if err != nil {
			return err
		}
		outputs = append(outputs, out)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cycle := b.graph.Cycle(); cycle != nil {
		return nil, fmt.Errorf("template reference cycle: %v", cycle)
	}

	if b.cfg.Bundle {
		if err := b.bundle(outputs); err != nil {
			return nil, err
		}
	}

	report := &Report{
		RunID:     runID,
		Templates: len(outputs),
		Outputs:   outputs,
		Duration:  time.Since(start),
	}
	b.logger.Info("build finished", "run", runID, "templates", report.Templates, "duration", report.Duration)
	return report, nil
}

// BuildFile rebuilds the single template at path (absolute or relative to
// the working directory) and returns the written output path. Used by the
// watcher for incremental rebuilds.
func (b *Builder) BuildFile(ctx context.Context, path string) (string, error) {
	opts, err := b.invocationOptions()
	if err != nil {
		return "", err
	}
	return b.buildFile(ctx, path, opts)
}

func (b *Builder) buildFile(ctx context.Context, path string, opts map[string]any) (string, error) {
	rel, err := filepath.Rel(b.cfg.TemplatesDir, path)
	if err != nil {
		return "", fmt.Errorf("template %s is outside %s: %w", path, b.cfg.TemplatesDir, err)
	}
	name := filepath.ToSlash(rel)

	source, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the project walk
	if err != nil {
		return "", err
	}

	result, err := b.proc.Process(ctx, bridge.Request{
		Source:       string(source),
		ResourcePath: name,
		Production:   b.cfg.Production,
		Options:      opts,
	})
	if err != nil {
		return "", err
	}

	var refs []string
	for _, dep := range result.Dependencies {
		if dep.Role == bridge.RoleDependency {
			refs = append(refs, dep.Path)
		}
	}
	b.graph.SetRefs(name, refs)

	outPath := filepath.Join(b.cfg.OutDir, rel+".js")
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(outPath, []byte(result.Source), 0o644); err != nil { //nolint:gosec // G306: generated code, not a secret
		return "", err
	}

	b.logger.Debug("template built", "template", name, "output", outPath, "refs", len(refs))
	return outPath, nil
}

// invocationOptions assembles the raw option map handed to the bridge. A
// configured context file switches every template to eager rendering.
func (b *Builder) invocationOptions() (map[string]any, error) {
	opts := map[string]any{
		"environmentModulePath": b.cfg.EnvironmentModule,
	}

	if b.cfg.ContextFile != "" {
		renderContext, err := loadContextFile(b.cfg.ContextFile)
		if err != nil {
			return nil, err
		}
		opts["renderContext"] = renderContext
	}
	return opts, nil
}

// loadContextFile reads a YAML mapping of render variables. An empty file
// yields an empty context, which still selects render mode.
func loadContextFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("reading context file: %w", err)
	}

	vars := map[string]any{}
	if err := yaml.Unmarshal(data, &vars); err != nil {
		return nil, fmt.Errorf("parsing context file %s: %w", path, err)
	}
	return vars, nil
}
