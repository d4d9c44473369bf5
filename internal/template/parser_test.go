package template

import (
	"errors"
	"strings"
	"testing"
)

func mustParse(t *testing.T, input string) *Template {
	t.Helper()
	tmpl, err := ParseString(input, "test.html")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return tmpl
}

func TestParser_Constructs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, tmpl *Template)
	}{
		{
			name:  "if elif else",
			input: "{% if a %}1{% elif b %}2{% else %}3{% endif %}",
			check: func(t *testing.T, tmpl *Template) {
				node, ok := tmpl.Nodes[0].(*IfNode)
				if !ok {
					t.Fatalf("expected IfNode, got %T", tmpl.Nodes[0])
				}
				if node.Condition != "a" {
					t.Errorf("expected condition a, got %q", node.Condition)
				}
				if len(node.ElseIfs) != 1 || node.ElseIfs[0].Condition != "b" {
					t.Errorf("unexpected elif branches: %+v", node.ElseIfs)
				}
				if node.Else == nil {
					t.Error("expected else branch")
				}
			},
		},
		{
			name:  "for loop",
			input: "{% for item in items %}{{ item }}{% endfor %}",
			check: func(t *testing.T, tmpl *Template) {
				node, ok := tmpl.Nodes[0].(*ForNode)
				if !ok {
					t.Fatalf("expected ForNode, got %T", tmpl.Nodes[0])
				}
				if node.VarName != "item" || node.IterExpr != "items" {
					t.Errorf("unexpected loop: %q in %q", node.VarName, node.IterExpr)
				}
			},
		},
		{
			name:  "set",
			input: "{% set x = 1 + 2 %}",
			check: func(t *testing.T, tmpl *Template) {
				node := tmpl.Nodes[0].(*SetNode)
				if node.Name != "x" || node.Expr != "1 + 2" {
					t.Errorf("unexpected set: %q = %q", node.Name, node.Expr)
				}
			},
		},
		{
			name:  "include",
			input: `{% include "partials/nav.html" %}`,
			check: func(t *testing.T, tmpl *Template) {
				node := tmpl.Nodes[0].(*IncludeNode)
				if node.NameExpr != `"partials/nav.html"` {
					t.Errorf("unexpected include expr %q", node.NameExpr)
				}
			},
		},
		{
			name:  "extends with blocks",
			input: `{% extends "base.html" %}{% block body %}hi{% endblock %}`,
			check: func(t *testing.T, tmpl *Template) {
				if tmpl.Extends == nil {
					t.Fatal("expected extends to be set")
				}
				blocks := tmpl.Blocks()
				if _, ok := blocks["body"]; !ok {
					t.Errorf("expected block body, got %v", blocks)
				}
			},
		},
		{
			name:  "embed with block override",
			input: `{% embed "card.html" %}{% block title %}T{% endblock %}{% endembed %}`,
			check: func(t *testing.T, tmpl *Template) {
				node := tmpl.Nodes[0].(*EmbedNode)
				if len(node.Blocks) != 1 || node.Blocks[0].Name != "title" {
					t.Errorf("unexpected embed blocks: %+v", node.Blocks)
				}
			},
		},
		{
			name:  "import",
			input: `{% import "macros.html" as ui %}`,
			check: func(t *testing.T, tmpl *Template) {
				node := tmpl.Nodes[0].(*ImportNode)
				if node.Alias != "ui" {
					t.Errorf("unexpected alias %q", node.Alias)
				}
			},
		},
		{
			name:  "macro",
			input: "{% macro button(label, kind) %}<button>{{ label }}</button>{% endmacro %}",
			check: func(t *testing.T, tmpl *Template) {
				node := tmpl.Nodes[0].(*MacroNode)
				if node.Name != "button" {
					t.Errorf("unexpected macro name %q", node.Name)
				}
				if len(node.Params) != 2 || node.Params[0] != "label" || node.Params[1] != "kind" {
					t.Errorf("unexpected params %v", node.Params)
				}
			},
		},
		{
			name:  "endblock with matching name",
			input: "{% block body %}x{% endblock body %}",
			check: func(t *testing.T, tmpl *Template) {
				if _, ok := tmpl.Nodes[0].(*BlockNode); !ok {
					t.Fatalf("expected BlockNode, got %T", tmpl.Nodes[0])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, mustParse(t, tt.input))
		})
	}
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"unclosed if", "{% if x %}body", "unclosed 'if'"},
		{"unclosed for", "{% for x in items %}body", "unclosed 'for'"},
		{"unclosed block", "{% block body %}x", "unclosed 'block'"},
		{"unclosed macro", "{% macro m() %}x", "unclosed 'macro'"},
		{"stray endif", "{% endif %}", "endif"},
		{"unknown tag", "{% frobnicate %}", "unknown tag"},
		{"bad for syntax", "{% for items %}{% endfor %}", "for <name> in <expr>"},
		{"bad set syntax", "{% set x %}", "set <name> = <expr>"},
		{"mismatched endblock name", "{% block a %}x{% endblock b %}", "mismatched"},
		{"embed with loose content", `{% embed "c.html" %}loose{% endembed %}`, "only contain blocks"},
		{"extends after content", `hello {% extends "base.html" %}`, "first tag"},
		{"double extends", `{% extends "a.html" %}{% extends "b.html" %}`, "multiple"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.input, "test.html")
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestParser_UnclosedTagErrorType(t *testing.T) {
	_, err := ParseString("{% if x %}body", "test.html")

	var unclosed *UnclosedTagError
	if !errors.As(err, &unclosed) {
		t.Fatalf("expected UnclosedTagError, got %T: %v", err, err)
	}
	if unclosed.Tag != "if" {
		t.Errorf("expected tag if, got %q", unclosed.Tag)
	}
}

func TestLiteralName(t *testing.T) {
	tests := []struct {
		expr   string
		want   string
		wantOK bool
	}{
		{`"nav.html"`, "nav.html", true},
		{`'nav.html'`, "nav.html", true},
		{`  "nav.html"  `, "nav.html", true},
		{`name`, "", false},
		{`"a" + "b"`, "", false},
		{`"esc\"aped"`, "", false},
		{`""`, "", true},
	}

	for _, tt := range tests {
		got, ok := LiteralName(tt.expr)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("LiteralName(%q) = (%q, %v), want (%q, %v)", tt.expr, got, ok, tt.want, tt.wantOK)
		}
	}
}
