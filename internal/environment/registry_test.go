package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stencilbuild/stencil/internal/template"
)

func compileTemplate(t *testing.T, source, file string) *template.Program {
	t.Helper()
	tmpl, err := template.ParseString(source, file)
	require.NoError(t, err)
	prog, err := template.Compile(tmpl)
	require.NoError(t, err)
	return prog
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	prog := compileTemplate(t, "hello", "a.html")

	r.Register("a.html", prog)

	assert.Equal(t, 1, r.Count())
	got, ok := r.Lookup("a.html")
	assert.True(t, ok)
	assert.Equal(t, prog, got)

	_, ok = r.Lookup("b.html")
	assert.False(t, ok)
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry()
	first := compileTemplate(t, "v1", "a.html")
	second := compileTemplate(t, "v2", "a.html")

	r.Register("a.html", first)
	r.Register("a.html", second)

	assert.Equal(t, 1, r.Count())
	got, _ := r.Lookup("a.html")
	assert.Equal(t, second, got)
}

func TestRegistry_UsedTracking(t *testing.T) {
	r := NewRegistry()
	r.Register("a.html", compileTemplate(t, "a", "a.html"))

	r.MarkUsed("a.html")
	r.MarkUsed("never-registered.html")
	r.MarkUsed("a.html")

	assert.Equal(t, []string{"a.html", "never-registered.html"}, r.Used())
}

func TestRegistry_KeysSorted(t *testing.T) {
	r := NewRegistry()
	r.Register("b.html", compileTemplate(t, "b", "b.html"))
	r.Register("a.html", compileTemplate(t, "a", "a.html"))

	assert.Equal(t, []string{"a.html", "b.html"}, r.Keys())
}
