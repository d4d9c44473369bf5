package build

import (
	"fmt"

	"github.com/evanw/esbuild/pkg/api"
)

// bundle runs esbuild over the generated modules. The environment module
// is left external: it is provided by the consuming application, not by
// this build.
func (b *Builder) bundle(entryPoints []string) error {
	if len(entryPoints) == 0 {
		return nil
	}

	buildOpts := api.BuildOptions{
		EntryPoints: entryPoints,
		Bundle:      true,
		Write:       true,
		Outdir:      b.cfg.BundleDir,

		External: []string{b.cfg.EnvironmentModule},

		Platform: api.PlatformBrowser,
		Format:   api.FormatIIFE,
		Target:   api.ES2020,

		TreeShaking: api.TreeShakingTrue,
		Sourcemap:   api.SourceMapNone,
		LogLevel:    api.LogLevelWarning,
	}

	if b.cfg.Production {
		buildOpts.MinifyWhitespace = true
		buildOpts.MinifyIdentifiers = true
		buildOpts.MinifySyntax = true
	}

	result := api.Build(buildOpts)
	if len(result.Errors) > 0 {
		msgs := api.FormatMessages(result.Errors, api.FormatMessagesOptions{Kind: api.ErrorMessage})
		return fmt.Errorf("bundling failed: %v", msgs)
	}

	b.logger.Info("bundle written", "dir", b.cfg.BundleDir, "entries", len(entryPoints))
	return nil
}
