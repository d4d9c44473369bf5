package bridge

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/stencilbuild/stencil/internal/environment"
	"github.com/stencilbuild/stencil/internal/template"
)

// DependencyRecord is one referenced template, produced once per distinct
// resolved path per compilation.
type DependencyRecord struct {
	LogicalName  string
	ResolvedPath string
}

// FindReferencedTemplates walks every cross-template reference node in the
// syntax module (include, extends, embed, import) and resolves each
// referenced name to a concrete path through the loader.
//
// The traversal itself is synchronous; the per-name resolutions are
// independent reads and run concurrently. Dynamic (non-literal) reference
// expressions cannot be resolved statically and are skipped; a literal the
// loader cannot resolve fails the whole traversal, because an incomplete
// dependency list would break the host's incremental rebuilds.
//
// The result is deduplicated by resolved path, ordered by first discovery.
func FindReferencedTemplates(ctx context.Context, tmpl *template.Template, loader environment.Loader, from string, logger *slog.Logger) ([]DependencyRecord, error) {
	var names []string
	seenName := make(map[string]bool)

	collect := func(nameExpr string, pos template.Position) {
		name, ok := template.LiteralName(nameExpr)
		if !ok {
			logger.Debug("skipping dynamic template reference",
				"expr", nameExpr, "file", pos.File, "line", pos.Line)
			return
		}
		if !seenName[name] {
			seenName[name] = true
			names = append(names, name)
		}
	}

	template.Walk(tmpl.Nodes, func(n template.Node) {
		switch v := n.(type) {
		case *template.IncludeNode:
			collect(v.NameExpr, v.Pos())
		case *template.ExtendsNode:
			collect(v.NameExpr, v.Pos())
		case *template.EmbedNode:
			collect(v.NameExpr, v.Pos())
		case *template.ImportNode:
			collect(v.NameExpr, v.Pos())
		}
	})

	// Resolve all discovered names concurrently, keeping discovery order.
	resolved := make([]environment.TemplateSource, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			src, err := loader.GetSourceContext(gctx, name, from)
			if err != nil {
				return err
			}
			resolved[i] = src
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var records []DependencyRecord
	seenPath := make(map[string]bool)
	for i, src := range resolved {
		if seenPath[src.ResolvedPath] {
			continue
		}
		seenPath[src.ResolvedPath] = true
		records = append(records, DependencyRecord{
			LogicalName:  names[i],
			ResolvedPath: src.ResolvedPath,
		})
	}
	return records, nil
}
