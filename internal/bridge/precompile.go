package bridge

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/stencilbuild/stencil/internal/environment"
	"github.com/stencilbuild/stencil/internal/template"
)

// precompile assembles the no-render-context output: tokenize and parse
// the source, discover every referenced template, compile, then emit a
// module that registers the compiled factory and exports a render
// function. Dependency discovery must finish before any code is generated:
// the emitted import statements precede the registration so dependent
// templates are loaded by the time this one registers, matching the
// engine's registration-order requirement.
func (p *Processor) precompile(ctx context.Context, req Request, env *environment.Environment, opts Options) (*Result, error) {
	tokens, err := env.Tokenize(req.Source, req.ResourcePath)
	if err != nil {
		return nil, failed(StageTokenize, req.ResourcePath, err)
	}

	tmpl, err := env.Parse(tokens, req.ResourcePath)
	if err != nil {
		return nil, failed(StageParse, req.ResourcePath, err)
	}

	refs, err := FindReferencedTemplates(ctx, tmpl, env.Loader(), req.ResourcePath, p.logger)
	if err != nil {
		return nil, failed(StageResolve, req.ResourcePath, err)
	}

	prog, err := env.Compile(tmpl)
	if err != nil {
		return nil, failed(StageCompile, req.ResourcePath, err)
	}

	key := DeriveKey(req.ResourcePath, req.Production)
	env.Registry().Register(key, prog)

	deps := make([]HostDependency, 0, len(refs)+1)
	deps = append(deps, HostDependency{Role: RoleEnvironment, Path: opts.EnvironmentModulePath})
	for _, ref := range refs {
		deps = append(deps, HostDependency{Role: RoleDependency, Path: ref.ResolvedPath})
	}

	return &Result{
		Source:       emitPrecompiled(opts.EnvironmentModulePath, key, prog, refs),
		Dependencies: deps,
	}, nil
}

// emitPrecompiled produces the precompile-mode module text. Statement
// order is a contract: environment acquisition, factory capture, one
// import per discovered dependency in discovery order, registration, then
// the exported render function.
func emitPrecompiled(envPath, key string, prog *template.Program, refs []DependencyRecord) string {
	var b strings.Builder

	b.WriteString("var env = require(" + jsString(envPath) + ");\n")

	// Evaluate the compiled fragment in an isolated scope so only the
	// registration factory escapes into the module.
	b.WriteString("var factory = (function(module) {\n")
	b.WriteString(prog.Code())
	b.WriteString("\nreturn module.exports;\n")
	b.WriteString("})({ exports: {} });\n")

	for _, ref := range refs {
		b.WriteString("require(" + jsString(ref.LogicalName) + ");\n")
	}

	b.WriteString("env.register(" + jsString(key) + ", factory);\n")

	b.WriteString("module.exports = function(context) {\n")
	b.WriteString("  context = context || {};\n")
	b.WriteString("  env.markUsed(" + jsString(key) + ");\n")
	b.WriteString("  return env.get(" + jsString(key) + ").render(context);\n")
	b.WriteString("};\n")

	return b.String()
}

// jsString encodes s as a JavaScript string literal. JSON escaping is a
// strict subset of JavaScript string syntax and covers quotes, newlines
// and the U+2028/U+2029 separators.
func jsString(s string) string {
	out, _ := json.Marshal(s)
	return string(out)
}
