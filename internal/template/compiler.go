package template

import (
	"encoding/json"
	"fmt"
)

// Program is the compiled form of a template: the parsed AST plus a
// serialized encoding suitable for embedding in generated module source.
// The encoding is a type-tagged JSON node tree that a runtime environment
// can execute without re-parsing the original source.
type Program struct {
	Name     string
	Template *Template

	encoded []byte
}

// Compile turns a parsed template into a Program.
func Compile(tmpl *Template) (*Program, error) {
	doc := programDoc{
		Name:  tmpl.File,
		Nodes: encodeNodes(tmpl.Nodes),
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, NewCompileError(Position{File: tmpl.File}, "encoding template program", err)
	}
	return &Program{
		Name:     tmpl.File,
		Template: tmpl,
		encoded:  encoded,
	}, nil
}

// Encoded returns the JSON encoding of the compiled program.
func (p *Program) Encoded() []byte {
	return p.encoded
}

// Code returns the compiled code fragment for the generated module: a
// statement that assigns the runtime template factory to module.exports.
// It expects an `env` binding (the shared environment) in scope.
func (p *Program) Code() string {
	return fmt.Sprintf("module.exports = env.template(%s);", p.encoded)
}

// programDoc is the top-level serialized form.
type programDoc struct {
	Name  string        `json:"name"`
	Nodes []encodedNode `json:"nodes"`
}

// encodedNode is the type-tagged serialized form of a single AST node.
// Field order is fixed by the struct, keeping the encoding deterministic.
type encodedNode struct {
	Type   string          `json:"type"`
	Text   string          `json:"text,omitempty"`
	Expr   string          `json:"expr,omitempty"`
	Name   string          `json:"name,omitempty"`
	Alias  string          `json:"alias,omitempty"`
	Var    string          `json:"var,omitempty"`
	Params []string        `json:"params,omitempty"`
	Body   []encodedNode   `json:"body,omitempty"`
	Elifs  []encodedBranch `json:"elifs,omitempty"`
	Else   []encodedNode   `json:"else,omitempty"`
	Blocks []encodedNode   `json:"blocks,omitempty"`
}

type encodedBranch struct {
	Cond string        `json:"cond"`
	Body []encodedNode `json:"body,omitempty"`
}

func encodeNodes(nodes []Node) []encodedNode {
	out := make([]encodedNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, encodeNode(n))
	}
	return out
}

func encodeNode(n Node) encodedNode {
	switch v := n.(type) {
	case *TextNode:
		return encodedNode{Type: "text", Text: v.Text}
	case *OutputNode:
		return encodedNode{Type: "output", Expr: v.Expr}
	case *SetNode:
		return encodedNode{Type: "set", Name: v.Name, Expr: v.Expr}
	case *IfNode:
		enc := encodedNode{Type: "if", Expr: v.Condition, Body: encodeNodes(v.Body)}
		for _, br := range v.ElseIfs {
			enc.Elifs = append(enc.Elifs, encodedBranch{Cond: br.Condition, Body: encodeNodes(br.Body)})
		}
		if v.Else != nil {
			enc.Else = encodeNodes(v.Else)
		}
		return enc
	case *ForNode:
		return encodedNode{Type: "for", Var: v.VarName, Expr: v.IterExpr, Body: encodeNodes(v.Body)}
	case *IncludeNode:
		return encodedNode{Type: "include", Expr: v.NameExpr}
	case *ExtendsNode:
		return encodedNode{Type: "extends", Expr: v.NameExpr}
	case *BlockNode:
		return encodedNode{Type: "block", Name: v.Name, Body: encodeNodes(v.Body)}
	case *EmbedNode:
		enc := encodedNode{Type: "embed", Expr: v.NameExpr}
		for _, b := range v.Blocks {
			enc.Blocks = append(enc.Blocks, encodeNode(b))
		}
		return enc
	case *ImportNode:
		return encodedNode{Type: "import", Expr: v.NameExpr, Alias: v.Alias}
	case *MacroNode:
		return encodedNode{Type: "macro", Name: v.Name, Params: v.Params, Body: encodeNodes(v.Body)}
	default:
		// Parser cannot produce anything else.
		return encodedNode{Type: "text"}
	}
}
