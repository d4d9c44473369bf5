package environment

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemplates(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, code := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(code), 0o644))
	}
	return root
}

func TestFilesystemLoader_Load(t *testing.T) {
	root := writeTemplates(t, map[string]string{
		"pages/index.html":  "index",
		"partials/nav.html": "nav",
	})
	loader := NewFilesystemLoader(root)
	ctx := context.Background()

	src, err := loader.GetSourceContext(ctx, "pages/index.html", "pages/index.html")
	require.NoError(t, err)
	assert.Equal(t, "index", src.Code)
	assert.Equal(t, "pages/index.html", src.LogicalName)
	assert.Equal(t, "pages/index.html", src.ResolvedPath)
}

func TestFilesystemLoader_RelativeReference(t *testing.T) {
	root := writeTemplates(t, map[string]string{
		"pages/index.html":  "index",
		"pages/side.html":   "side",
		"partials/nav.html": "nav",
	})
	loader := NewFilesystemLoader(root)
	ctx := context.Background()

	tests := []struct {
		name         string
		requested    string
		from         string
		wantResolved string
	}{
		{"sibling", "./side.html", "pages/index.html", "pages/side.html"},
		{"parent dir", "../partials/nav.html", "pages/index.html", "partials/nav.html"},
		{"root relative ignores from", "partials/nav.html", "pages/index.html", "partials/nav.html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := loader.GetSourceContext(ctx, tt.requested, tt.from)
			require.NoError(t, err)
			assert.Equal(t, tt.wantResolved, src.ResolvedPath)
			assert.Equal(t, tt.requested, src.LogicalName)
		})
	}
}

func TestFilesystemLoader_NotFound(t *testing.T) {
	loader := NewFilesystemLoader(writeTemplates(t, nil))

	_, err := loader.GetSourceContext(context.Background(), "missing.html", "missing.html")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestFilesystemLoader_RefusesRootEscape(t *testing.T) {
	root := writeTemplates(t, map[string]string{"a.html": "a"})

	// A real file outside the root must stay unreachable.
	outside := filepath.Join(filepath.Dir(root), "secret.html")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))

	loader := NewFilesystemLoader(root)
	_, err := loader.GetSourceContext(context.Background(), "../secret.html", "a.html")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestChainLoader_FirstHitWins(t *testing.T) {
	rootA := writeTemplates(t, map[string]string{"x.html": "from-a"})
	rootB := writeTemplates(t, map[string]string{"x.html": "from-b", "y.html": "from-b"})

	chain := NewChainLoader(NewFilesystemLoader(rootA), NewFilesystemLoader(rootB))
	ctx := context.Background()

	src, err := chain.GetSourceContext(ctx, "x.html", "x.html")
	require.NoError(t, err)
	assert.Equal(t, "from-a", src.Code)

	src, err = chain.GetSourceContext(ctx, "y.html", "y.html")
	require.NoError(t, err)
	assert.Equal(t, "from-b", src.Code)

	_, err = chain.GetSourceContext(ctx, "z.html", "z.html")
	assert.True(t, IsNotFound(err))
}

func TestOverrideLoader_HitRewritesIdentity(t *testing.T) {
	over := NewOverrideLoader(nil, OverrideEntry{
		Name:   "pages/index.html",
		Source: TemplateSource{Code: "in-flight"},
	})

	src, err := over.GetSourceContext(context.Background(), "pages/index.html", "pages/about.html")
	require.NoError(t, err)
	assert.Equal(t, "in-flight", src.Code)
	assert.Equal(t, "pages/index.html", src.ResolvedPath, "resolved path should be the requested name")
	assert.Equal(t, "pages/about.html", src.LogicalName, "logical name should be the requester")
}

func TestOverrideLoader_MissForwardsToFallback(t *testing.T) {
	root := writeTemplates(t, map[string]string{"disk.html": "disk"})
	over := NewOverrideLoader(NewFilesystemLoader(root), OverrideEntry{
		Name:   "mem.html",
		Source: TemplateSource{Code: "mem"},
	})
	ctx := context.Background()

	src, err := over.GetSourceContext(ctx, "disk.html", "disk.html")
	require.NoError(t, err)
	assert.Equal(t, "disk", src.Code)

	_, err = over.GetSourceContext(ctx, "missing.html", "missing.html")
	assert.True(t, IsNotFound(err))
}

func TestOverrideLoader_NilFallbackReportsNotFound(t *testing.T) {
	over := NewOverrideLoader(nil)

	_, err := over.GetSourceContext(context.Background(), "anything.html", "anything.html")
	assert.True(t, IsNotFound(err))
}
