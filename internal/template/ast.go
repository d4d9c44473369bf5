// Package template implements the template engine behind the build bridge:
// a lexer, parser, compiler and renderer for a Twig-like language with
// {{ expr }} output expressions, {% ... %} control tags and {# ... #}
// comments. Expressions are evaluated as Starlark.
package template

import "strings"

// Position tracks source location for error reporting.
type Position struct {
	File   string
	Line   int
	Column int
}

// Node is the interface for all template AST nodes.
type Node interface {
	Pos() Position
	node() // marker method to restrict implementation
}

// nodeBase provides common Position handling for all nodes.
type nodeBase struct {
	pos Position
}

func (n *nodeBase) Pos() Position { return n.pos }
func (n *nodeBase) node()         {}

// TextNode represents literal output text (passed through unchanged).
type TextNode struct {
	nodeBase
	Text string
}

// OutputNode represents a {{ expr }} output expression.
// The Expr field contains the Starlark expression source (without delimiters).
type OutputNode struct {
	nodeBase
	Expr string
}

// SetNode represents a {% set name = expr %} assignment.
type SetNode struct {
	nodeBase
	Name string
	Expr string
}

// Branch represents an elif branch.
type Branch struct {
	Condition string
	Body      []Node
	pos       Position
}

// IfNode represents a complete if/elif/else conditional.
type IfNode struct {
	nodeBase
	Condition string
	Body      []Node
	ElseIfs   []Branch
	Else      []Node // nil when there is no else branch
}

// ForNode represents a {% for x in expr %} loop with its body.
type ForNode struct {
	nodeBase
	VarName  string
	IterExpr string
	Body     []Node
}

// IncludeNode represents {% include expr %}. The referenced template is
// rendered in place with the current context.
type IncludeNode struct {
	nodeBase
	NameExpr string
}

// ExtendsNode represents {% extends expr %}. At most one per template, and
// it must precede any non-block content.
type ExtendsNode struct {
	nodeBase
	NameExpr string
}

// BlockNode represents {% block name %}...{% endblock %}.
type BlockNode struct {
	nodeBase
	Name string
	Body []Node
}

// EmbedNode represents {% embed expr %}...{% endembed %}: the referenced
// template is rendered with the enclosed blocks overriding its own.
type EmbedNode struct {
	nodeBase
	NameExpr string
	Blocks   []*BlockNode
}

// ImportNode represents {% import expr as alias %}. The referenced
// template's macros become callable from expressions as alias.name(...).
type ImportNode struct {
	nodeBase
	NameExpr string
	Alias    string
}

// MacroNode represents {% macro name(params) %}...{% endmacro %}.
// Macros render to nothing in place; they are invoked via import.
type MacroNode struct {
	nodeBase
	Name   string
	Params []string
	Body   []Node
}

// Template represents a complete parsed template.
type Template struct {
	Nodes []Node
	File  string

	// Extends is set when the template opens with an extends tag.
	Extends *ExtendsNode
}

// Blocks returns the top-level blocks of the template keyed by name.
func (t *Template) Blocks() map[string]*BlockNode {
	blocks := make(map[string]*BlockNode)
	for _, n := range t.Nodes {
		if b, ok := n.(*BlockNode); ok {
			blocks[b.Name] = b
		}
	}
	return blocks
}

// Macros returns the top-level macro definitions of the template in source
// order.
func (t *Template) Macros() []*MacroNode {
	var macros []*MacroNode
	for _, n := range t.Nodes {
		if m, ok := n.(*MacroNode); ok {
			macros = append(macros, m)
		}
	}
	return macros
}

// Walk calls fn for every node in depth-first source order.
func Walk(nodes []Node, fn func(Node)) {
	for _, n := range nodes {
		fn(n)
		switch v := n.(type) {
		case *IfNode:
			Walk(v.Body, fn)
			for _, br := range v.ElseIfs {
				Walk(br.Body, fn)
			}
			Walk(v.Else, fn)
		case *ForNode:
			Walk(v.Body, fn)
		case *BlockNode:
			Walk(v.Body, fn)
		case *EmbedNode:
			for _, b := range v.Blocks {
				fn(b)
				Walk(b.Body, fn)
			}
		case *MacroNode:
			Walk(v.Body, fn)
		}
	}
}

// LiteralName reports the constant template name of a reference expression.
// A reference like {% include "partials/nav.html" %} is a plain string
// literal; anything else (concatenation, variables) is dynamic and returns
// false.
func LiteralName(expr string) (string, bool) {
	s := strings.TrimSpace(expr)
	if len(s) < 2 {
		return "", false
	}
	quote := s[0]
	if quote != '"' && quote != '\'' {
		return "", false
	}
	if s[len(s)-1] != quote {
		return "", false
	}
	inner := s[1 : len(s)-1]
	if strings.ContainsRune(inner, rune(quote)) || strings.ContainsRune(inner, '\\') {
		return "", false
	}
	return inner, true
}
