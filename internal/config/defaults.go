package config

// Default configuration values.
const (
	DefaultTemplatesDir      = "templates"
	DefaultOutDir            = "dist/modules"
	DefaultEnvironmentModule = "stencil/runtime"
	DefaultBundleDir         = "dist/bundle"
)

// Defaults returns the built-in configuration as a flat key map, in the
// shape the koanf confmap provider consumes.
func Defaults() map[string]any {
	return map[string]any{
		"templates_dir":      DefaultTemplatesDir,
		"out_dir":            DefaultOutDir,
		"environment_module": DefaultEnvironmentModule,
		"production":         false,
		"extensions":         []string{".html", ".twig"},
		"context_file":       "",
		"bundle":             false,
		"bundle_dir":         DefaultBundleDir,
		"verbose":            false,
	}
}
