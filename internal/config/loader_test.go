package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir(), nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultTemplatesDir, cfg.TemplatesDir)
	assert.Equal(t, DefaultOutDir, cfg.OutDir)
	assert.Equal(t, DefaultEnvironmentModule, cfg.EnvironmentModule)
	assert.Equal(t, []string{".html", ".twig"}, cfg.Extensions)
	assert.False(t, cfg.Production)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
templates_dir: src/templates
production: true
extensions:
  - ".tpl"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(yaml), 0o644))

	cfg, err := Load(dir, nil)
	require.NoError(t, err)

	assert.Equal(t, "src/templates", cfg.TemplatesDir)
	assert.True(t, cfg.Production)
	assert.Equal(t, []string{".tpl"}, cfg.Extensions)
	// Untouched keys keep defaults.
	assert.Equal(t, DefaultOutDir, cfg.OutDir)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("out_dir: from-file\n"), 0o644))
	t.Setenv("STENCIL_OUT_DIR", "from-env")

	cfg, err := Load(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.OutDir)
}

func TestLoad_FlagsOverrideEverything(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("out_dir: from-file\n"), 0o644))
	t.Setenv("STENCIL_OUT_DIR", "from-env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("out-dir", "", "")
	flags.Bool("production", false, "")
	require.NoError(t, flags.Parse([]string{"--out-dir", "from-flag", "--production"}))

	cfg, err := Load(dir, flags)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.OutDir)
	assert.True(t, cfg.Production)
}

func TestLoad_ValidationFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(`extensions: ["html"]`+"\n"), 0o644))

	_, err := Load(dir, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must start with a dot")
}

func TestConfig_IsTemplate(t *testing.T) {
	cfg := &Config{Extensions: []string{".html", ".twig"}}

	assert.True(t, cfg.IsTemplate("pages/index.html"))
	assert.True(t, cfg.IsTemplate("a.twig"))
	assert.False(t, cfg.IsTemplate("style.css"))
	assert.False(t, cfg.IsTemplate("html"))
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			TemplatesDir:      "templates",
			OutDir:            "dist",
			EnvironmentModule: "stencil/runtime",
			Extensions:        []string{".html"},
		}
	}

	assert.NoError(t, valid().Validate())

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing templates dir", func(c *Config) { c.TemplatesDir = "" }, "templates_dir"},
		{"missing out dir", func(c *Config) { c.OutDir = "" }, "out_dir"},
		{"missing environment module", func(c *Config) { c.EnvironmentModule = "" }, "environment_module"},
		{"empty extensions", func(c *Config) { c.Extensions = nil }, "extensions"},
		{"bundle without dir", func(c *Config) { c.Bundle = true }, "bundle_dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileNameAlt), []byte("{}\n"), 0o644))

	assert.Equal(t, root, FindProjectRoot(nested))
	assert.Equal(t, "", FindProjectRoot(t.TempDir()))
}
