package template

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// mapResolver resolves template references from an in-memory map.
type mapResolver struct {
	files map[string]string
}

func (m *mapResolver) ResolveTemplate(_ context.Context, name, _ string) (*Template, string, error) {
	src, ok := m.files[name]
	if !ok {
		return nil, "", fmt.Errorf("template %q not found", name)
	}
	tmpl, err := ParseString(src, name)
	if err != nil {
		return nil, "", err
	}
	return tmpl, name, nil
}

func render(t *testing.T, input string, vars map[string]any, files map[string]string) (string, error) {
	t.Helper()
	tmpl, err := ParseString(input, "test.html")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	ec, err := NewExecutionContext(vars)
	if err != nil {
		t.Fatalf("unexpected context error: %v", err)
	}
	r := &Renderer{Resolver: &mapResolver{files: files}}
	return r.Render(context.Background(), tmpl, ec)
}

func mustRender(t *testing.T, input string, vars map[string]any, files map[string]string) string {
	t.Helper()
	out, err := render(t, input, vars, files)
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}
	return out
}

func TestRenderer_Expressions(t *testing.T) {
	vars := map[string]any{
		"name":  "world",
		"count": 3,
		"user":  map[string]any{"email": "a@b.c"},
		"tags":  []any{"x", "y"},
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain text", "hello world", "hello world"},
		{"simple variable", "hello {{ name }}", "hello world"},
		{"arithmetic", "{{ count * 2 }}", "6"},
		{"string method", `{{ name.upper() }}`, "WORLD"},
		{"dict access", `{{ user["email"] }}`, "a@b.c"},
		{"list index", `{{ tags[1] }}`, "y"},
		{"concatenation", `{{ "hi " + name }}`, "hi world"},
		{"boolean", "{{ count > 1 }}", "True"},
		{"none renders empty", "a{{ None }}b", "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustRender(t, tt.input, vars, nil)
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestRenderer_ControlFlow(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		vars     map[string]any
		expected string
	}{
		{
			name:     "if taken",
			input:    "{% if ok %}yes{% else %}no{% endif %}",
			vars:     map[string]any{"ok": true},
			expected: "yes",
		},
		{
			name:     "else taken",
			input:    "{% if ok %}yes{% else %}no{% endif %}",
			vars:     map[string]any{"ok": false},
			expected: "no",
		},
		{
			name:     "elif taken",
			input:    "{% if n > 10 %}big{% elif n > 1 %}mid{% else %}small{% endif %}",
			vars:     map[string]any{"n": 5},
			expected: "mid",
		},
		{
			name:     "for loop",
			input:    "{% for x in items %}[{{ x }}]{% endfor %}",
			vars:     map[string]any{"items": []any{1, 2, 3}},
			expected: "[1][2][3]",
		},
		{
			name:     "empty loop",
			input:    "a{% for x in items %}{{ x }}{% endfor %}b",
			vars:     map[string]any{"items": []any{}},
			expected: "ab",
		},
		{
			name:     "set then use",
			input:    `{% set greeting = "hi " + name %}{{ greeting }}`,
			vars:     map[string]any{"name": "bo"},
			expected: "hi bo",
		},
		{
			name:     "loop variable restored",
			input:    "{% set x = 9 %}{% for x in items %}{{ x }}{% endfor %}{{ x }}",
			vars:     map[string]any{"items": []any{1}},
			expected: "19",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustRender(t, tt.input, tt.vars, nil)
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestRenderer_Include(t *testing.T) {
	files := map[string]string{
		"nav.html": "<nav>{{ name }}</nav>",
	}

	got := mustRender(t, `<body>{% include "nav.html" %}</body>`, map[string]any{"name": "bo"}, files)
	if got != "<body><nav>bo</nav></body>" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestRenderer_IncludeLocalsDoNotLeak(t *testing.T) {
	files := map[string]string{
		"frag.html": `{% set x = "inner" %}{{ x }}`,
	}

	got := mustRender(t, `{% set x = "outer" %}{% include "frag.html" %}-{{ x }}`, nil, files)
	if got != "inner-outer" {
		t.Errorf("expected include-local set not to leak, got %q", got)
	}
}

func TestRenderer_DynamicInclude(t *testing.T) {
	files := map[string]string{
		"a.html": "A",
		"b.html": "B",
	}

	got := mustRender(t, `{% include which + ".html" %}`, map[string]any{"which": "b"}, files)
	if got != "B" {
		t.Errorf("expected B, got %q", got)
	}
}

func TestRenderer_Extends(t *testing.T) {
	files := map[string]string{
		"base.html": "<html>{% block body %}default{% endblock %}</html>",
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "child overrides block",
			input:    `{% extends "base.html" %}{% block body %}child{% endblock %}`,
			expected: "<html>child</html>",
		},
		{
			name:     "parent default kept",
			input:    `{% extends "base.html" %}`,
			expected: "<html>default</html>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustRender(t, tt.input, nil, files)
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestRenderer_ExtendsTwoLevels(t *testing.T) {
	files := map[string]string{
		"root.html": "[{% block a %}ra{% endblock %}|{% block b %}rb{% endblock %}]",
		"mid.html":  `{% extends "root.html" %}{% block a %}ma{% endblock %}`,
	}

	got := mustRender(t, `{% extends "mid.html" %}{% block b %}cb{% endblock %}`, nil, files)
	if got != "[ma|cb]" {
		t.Errorf("expected [ma|cb], got %q", got)
	}
}

func TestRenderer_Embed(t *testing.T) {
	files := map[string]string{
		"card.html": `<div>{% block title %}none{% endblock %}</div>`,
	}

	input := `{% embed "card.html" %}{% block title %}Hello{% endblock %}{% endembed %}`
	got := mustRender(t, input, nil, files)
	if got != "<div>Hello</div>" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestRenderer_ImportMacro(t *testing.T) {
	files := map[string]string{
		"macros.html": `{% macro button(label, kind) %}<button class="{{ kind }}">{{ label }}</button>{% endmacro %}`,
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "positional arguments",
			input:    `{% import "macros.html" as ui %}{{ ui.button("Go", "primary") }}`,
			expected: `<button class="primary">Go</button>`,
		},
		{
			name:     "keyword arguments",
			input:    `{% import "macros.html" as ui %}{{ ui.button(label="Go", kind="ghost") }}`,
			expected: `<button class="ghost">Go</button>`,
		},
		{
			name:     "missing argument renders empty",
			input:    `{% import "macros.html" as ui %}{{ ui.button("Go") }}`,
			expected: `<button class="">Go</button>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustRender(t, tt.input, nil, files)
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestRenderer_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		files   map[string]string
		wantErr string
	}{
		{
			name:    "undefined variable",
			input:   "{{ missing }}",
			wantErr: "missing",
		},
		{
			name:    "missing include",
			input:   `{% include "nope.html" %}`,
			wantErr: "nope.html",
		},
		{
			name:    "non-iterable loop",
			input:   "{% for x in 42 %}{% endfor %}",
			wantErr: "cannot iterate",
		},
		{
			name:    "non-string dynamic reference",
			input:   "{% include 42 %}",
			wantErr: "must evaluate to a string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := render(t, tt.input, nil, tt.files)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestRenderer_RecursionLimit(t *testing.T) {
	files := map[string]string{
		"loop.html": `{% include "loop.html" %}`,
	}

	_, err := render(t, `{% include "loop.html" %}`, nil, files)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "nesting exceeds") {
		t.Errorf("expected nesting error, got %q", err.Error())
	}
}
