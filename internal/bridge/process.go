// Package bridge turns a template source file into a module consumable by
// a bundler's dependency graph. Precompile mode emits a self-registering
// module exposing a render function; render mode evaluates the template at
// build time and emits the rendered string as the module's export. The
// mode switch is the presence of a render context in the options.
package bridge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-viper/mapstructure/v2"

	"github.com/stencilbuild/stencil/internal/environment"
)

// Request is one invocation of the bridge: the in-flight template source,
// the path it lives at and the raw host options.
type Request struct {
	Source       string
	ResourcePath string
	Production   bool
	Options      map[string]any
}

// Options is the decoded option set. Unknown keys are rejected.
type Options struct {
	// EnvironmentModulePath identifies the shared environment; it is also
	// emitted verbatim as the import target in precompile-mode output.
	EnvironmentModulePath string `mapstructure:"environmentModulePath"`

	// RenderContext selects render mode when present, even empty.
	RenderContext map[string]any `mapstructure:"renderContext"`
}

// Role classifies a host dependency record.
type Role string

// Role constants for host dependency records.
const (
	RoleEnvironment Role = "environment"
	RoleDependency  Role = "dependency"
)

// HostDependency is one module the host must link or watch for this
// invocation: the environment module, or a template file.
type HostDependency struct {
	Role Role
	Path string
}

// Result is a successful invocation: the generated module source plus the
// explicit dependency records, so hosts can feed their build graph without
// parsing the emitted text.
type Result struct {
	Source       string
	Dependencies []HostDependency
}

// EnvironmentResolver maps an environment module path to a live
// Environment. Hosts configure which runtime modules exist.
type EnvironmentResolver func(modulePath string) (*environment.Environment, error)

// Processor runs invocations against host-configured environments.
type Processor struct {
	resolve EnvironmentResolver
	logger  *slog.Logger
}

// NewProcessor creates a processor. A nil logger discards.
func NewProcessor(resolve EnvironmentResolver, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Processor{resolve: resolve, logger: logger}
}

// Process turns req into a generated module. All failures are returned
// through the error result as a *BuildError attributed to the resource;
// no partial module text is ever returned alongside an error.
func (p *Processor) Process(ctx context.Context, req Request) (*Result, error) {
	opts, renderMode, err := decodeOptions(req.Options)
	if err != nil {
		return nil, failed(StageOptions, req.ResourcePath, err)
	}

	env, err := p.resolve(opts.EnvironmentModulePath)
	if err != nil {
		return nil, failed(StageEnvironment, req.ResourcePath, err)
	}

	p.logger.Debug("processing template",
		"resource", req.ResourcePath,
		"mode", map[bool]string{true: "render", false: "precompile"}[renderMode],
		"production", req.Production)

	if renderMode {
		return p.renderMode(ctx, req, env, opts)
	}
	return p.precompile(ctx, req, env, opts)
}

// decodeOptions validates the raw option map. The render context's mere
// presence is the mode switch, so it is detected on the raw map before
// decoding: an empty (or null) mapping still selects render mode.
func decodeOptions(raw map[string]any) (Options, bool, error) {
	var opts Options

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &opts,
		ErrorUnused: true,
	})
	if err != nil {
		return opts, false, err
	}
	if err := dec.Decode(raw); err != nil {
		return opts, false, fmt.Errorf("invalid options: %w", err)
	}

	if opts.EnvironmentModulePath == "" {
		return opts, false, fmt.Errorf("invalid options: environmentModulePath is required")
	}

	_, renderMode := raw["renderContext"]
	if renderMode && opts.RenderContext == nil {
		opts.RenderContext = map[string]any{}
	}
	return opts, renderMode, nil
}
