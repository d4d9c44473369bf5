// Package config provides project configuration for stencil. It is
// decoupled from CLI concerns so the watcher and any future tooling can
// load project settings without pulling in cobra.
package config

import (
	"fmt"
	"strings"
)

// Config holds the full project configuration.
type Config struct {
	// TemplatesDir is the directory scanned for template files.
	TemplatesDir string `koanf:"templates_dir"`

	// OutDir receives one generated .js module per template.
	OutDir string `koanf:"out_dir"`

	// EnvironmentModule is the module path generated code requires to
	// reach the shared runtime.
	EnvironmentModule string `koanf:"environment_module"`

	// Production switches registry keys from readable paths to digests.
	Production bool `koanf:"production"`

	// Extensions lists the file extensions treated as templates.
	Extensions []string `koanf:"extensions"`

	// ContextFile optionally points at a YAML file of render variables;
	// when set, the build renders eagerly instead of precompiling.
	ContextFile string `koanf:"context_file"`

	// Bundle runs the bundler over the generated modules after a build.
	Bundle bool `koanf:"bundle"`

	// BundleDir receives bundler output.
	BundleDir string `koanf:"bundle_dir"`

	// Verbose enables debug logging.
	Verbose bool `koanf:"verbose"`
}

// Validate checks the configuration for contradictions before a build
// starts.
func (c *Config) Validate() error {
	if c.TemplatesDir == "" {
		return fmt.Errorf("templates_dir is required")
	}
	if c.OutDir == "" {
		return fmt.Errorf("out_dir is required")
	}
	if c.EnvironmentModule == "" {
		return fmt.Errorf("environment_module is required")
	}
	if len(c.Extensions) == 0 {
		return fmt.Errorf("extensions must not be empty")
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("extension %q must start with a dot", ext)
		}
	}
	if c.Bundle && c.BundleDir == "" {
		return fmt.Errorf("bundle_dir is required when bundling")
	}
	return nil
}

// IsTemplate reports whether path has one of the configured extensions.
func (c *Config) IsTemplate(path string) bool {
	for _, ext := range c.Extensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}
