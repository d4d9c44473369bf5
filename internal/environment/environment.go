package environment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stencilbuild/stencil/internal/template"
)

// Config holds environment configuration.
type Config struct {
	// Loader is the environment's configured template loader.
	Loader Loader
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Environment is the shared template runtime: engine entry points
// (tokenize, parse, compile, render), the configured loader, the compiled
// template registry and load-notification subscriptions.
//
// The configured loader is immutable after construction. Renders that need
// a different lookup order (the bridge's override chains) pass their own
// loader per call, so concurrent renders against one Environment never
// interfere.
type Environment struct {
	loader   Loader
	registry *Registry
	subs     *subscribers
	logger   *slog.Logger
}

// New creates an environment.
func New(cfg Config) *Environment {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Environment{
		loader:   cfg.Loader,
		registry: NewRegistry(),
		subs:     newSubscribers(),
		logger:   logger,
	}
}

// Loader returns the environment's configured loader.
func (e *Environment) Loader() Loader {
	return e.loader
}

// Registry returns the environment's template registry.
func (e *Environment) Registry() *Registry {
	return e.registry
}

// SubscribeLoads registers a load-notification handler scoped to the
// returned cancel func. Handlers fire synchronously for every template
// source loaded by any render on this environment.
func (e *Environment) SubscribeLoads(fn func(LoadEvent)) (cancel func()) {
	return e.subs.subscribe(fn)
}

// Tokenize runs the engine lexer over source.
func (e *Environment) Tokenize(source, file string) ([]template.Token, error) {
	return template.Tokenize(source, file)
}

// Parse builds the abstract syntax module from a token stream.
func (e *Environment) Parse(tokens []template.Token, file string) (*template.Template, error) {
	return template.Parse(tokens, file)
}

// Compile compiles a parsed template.
func (e *Environment) Compile(tmpl *template.Template) (*template.Program, error) {
	return template.Compile(tmpl)
}

// RenderParams configures a single render.
type RenderParams struct {
	// Name is the logical name of the entry template.
	Name string
	// RequestedFrom attributes the entry load; usually equal to Name.
	RequestedFrom string
	// Context holds the render variables. May be nil.
	Context map[string]any
	// Loader overrides the configured loader for this render only.
	Loader Loader
}

// Render loads, parses and renders the template at p.Name. Every template
// source loaded along the way (the entry included) is published to load
// subscribers before parsing, synchronously on this goroutine.
func (e *Environment) Render(ctx context.Context, p RenderParams) (string, error) {
	loader := p.Loader
	if loader == nil {
		loader = e.loader
	}
	if loader == nil {
		return "", fmt.Errorf("environment has no loader configured")
	}

	sess := e.newSession(loader)

	from := p.RequestedFrom
	if from == "" {
		from = p.Name
	}
	tmpl, resolved, err := sess.ResolveTemplate(ctx, p.Name, from)
	if err != nil {
		return "", err
	}
	e.logger.Debug("rendering template", "name", p.Name, "resolved", resolved)

	return e.render(ctx, sess, tmpl, p.Context)
}

// RenderRegistered renders a template previously registered under key,
// marking the key used first. It never triggers the load path for the
// entry template; referenced templates still load through the configured
// loader.
func (e *Environment) RenderRegistered(ctx context.Context, key string, vars map[string]any) (string, error) {
	e.registry.MarkUsed(key)

	prog, ok := e.registry.Lookup(key)
	if !ok {
		return "", fmt.Errorf("no template registered under key %q", key)
	}

	return e.render(ctx, e.newSession(e.loader), prog.Template, vars)
}

func (e *Environment) render(ctx context.Context, sess *session, tmpl *template.Template, vars map[string]any) (string, error) {
	ec, err := template.NewExecutionContext(vars)
	if err != nil {
		return "", err
	}
	r := &template.Renderer{Resolver: sess}
	return r.Render(ctx, tmpl, ec)
}

func (e *Environment) newSession(loader Loader) *session {
	return &session{
		env:    e,
		loader: loader,
		parsed: make(map[string]*template.Template),
	}
}

// session implements template.Resolver for one render: it loads through
// the render's loader, publishes a load notification per request and
// caches parse results by resolved path.
type session struct {
	env    *Environment
	loader Loader
	parsed map[string]*template.Template
}

// ResolveTemplate implements template.Resolver.
func (s *session) ResolveTemplate(ctx context.Context, name, from string) (*template.Template, string, error) {
	src, err := s.loader.GetSourceContext(ctx, name, from)
	if err != nil {
		return nil, "", err
	}

	s.env.subs.publish(LoadEvent{Name: name, RequestedFrom: from})

	if tmpl, ok := s.parsed[src.ResolvedPath]; ok {
		return tmpl, src.ResolvedPath, nil
	}

	tmpl, err := template.ParseString(src.Code, src.ResolvedPath)
	if err != nil {
		return nil, "", err
	}
	s.parsed[src.ResolvedPath] = tmpl
	return tmpl, src.ResolvedPath, nil
}
