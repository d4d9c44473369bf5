package bridge

import (
	"context"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/stencilbuild/stencil/internal/environment"
)

// renderMode renders the template eagerly at build time and emits a module
// exporting the rendered string. The in-flight source shadows its own path
// for the duration of the render, so a file being rewritten in an editor
// renders from the bytes the host handed us, not from disk.
//
// Dependency reporting piggybacks on the render: a scoped load
// subscription records every template the render pulls in, and each loaded
// name is re-resolved through the same loader chain to its concrete path.
// Re-resolutions run concurrently off the render goroutine and are joined
// before the result is assembled.
func (p *Processor) renderMode(ctx context.Context, req Request, env *environment.Environment, opts Options) (*Result, error) {
	current := environment.TemplateSource{
		Code:         req.Source,
		LogicalName:  req.ResourcePath,
		ResolvedPath: req.ResourcePath,
	}
	chain := environment.NewChainLoader(
		environment.NewOverrideLoader(nil, environment.OverrideEntry{Name: req.ResourcePath, Source: current}),
		env.Loader(),
	)

	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
	)
	g, gctx := errgroup.WithContext(ctx)

	cancel := env.SubscribeLoads(func(ev environment.LoadEvent) {
		g.Go(func() error {
			src, err := chain.GetSourceContext(gctx, ev.Name, ev.RequestedFrom)
			if err != nil {
				return err
			}
			mu.Lock()
			seen[src.ResolvedPath] = true
			mu.Unlock()
			return nil
		})
	})
	defer cancel()

	rendered, err := env.Render(ctx, environment.RenderParams{
		Name:    req.ResourcePath,
		Context: opts.RenderContext,
		Loader:  chain,
	})
	if err != nil {
		_ = g.Wait()
		return nil, failed(StageRender, req.ResourcePath, err)
	}
	if err := g.Wait(); err != nil {
		return nil, failed(StageResolve, req.ResourcePath, err)
	}

	paths := make([]string, 0, len(seen))
	for path := range seen {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	deps := make([]HostDependency, 0, len(paths)+1)
	deps = append(deps, HostDependency{Role: RoleEnvironment, Path: opts.EnvironmentModulePath})
	for _, path := range paths {
		deps = append(deps, HostDependency{Role: RoleDependency, Path: path})
	}

	return &Result{
		Source:       emitRendered(rendered),
		Dependencies: deps,
	}, nil
}

// emitRendered produces the render-mode module text: the rendered string
// as the module's sole export.
func emitRendered(rendered string) string {
	var b strings.Builder
	b.WriteString("module.exports = ")
	b.WriteString(jsString(rendered))
	b.WriteString(";\n")
	return b.String()
}
