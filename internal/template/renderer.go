package template

import (
	"context"
	"fmt"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// maxRenderDepth bounds template nesting (includes, inheritance, embeds).
const maxRenderDepth = 64

// Resolver loads referenced templates during rendering. Implementations
// decide how a logical name is located (filesystem, override chain,
// registry) and are expected to return the parsed template together with
// its resolved path.
type Resolver interface {
	ResolveTemplate(ctx context.Context, name, from string) (*Template, string, error)
}

// Renderer executes a parsed template against an execution context.
// Cross-template references (include, extends, embed, import) are loaded
// through the Resolver; a renderer without one can only render
// self-contained templates.
type Renderer struct {
	Resolver Resolver
}

// Render renders tmpl and returns the produced text.
func (r *Renderer) Render(ctx context.Context, tmpl *Template, ec *ExecutionContext) (string, error) {
	st := &renderState{
		r:      r,
		ctx:    ctx,
		ec:     ec,
		out:    &strings.Builder{},
		locals: make(starlark.StringDict),
	}
	if err := st.renderTemplate(tmpl, nil); err != nil {
		return "", err
	}
	return st.out.String(), nil
}

// renderState carries the mutable state of one render: the output buffer,
// local variables (loop vars, set, imports) and the block overrides active
// for the template chain currently being rendered.
type renderState struct {
	r      *Renderer
	ctx    context.Context
	ec     *ExecutionContext
	out    *strings.Builder
	locals starlark.StringDict

	// overrides holds the merged block overrides for the inheritance chain
	// currently being rendered. Replaced wholesale when descending into an
	// included or embedded template.
	overrides map[string]*BlockNode

	depth int
}

// renderTemplate renders one template, following its inheritance chain.
// overrides carries blocks from more-derived templates (or an embed body)
// that shadow this template's own blocks.
func (st *renderState) renderTemplate(tmpl *Template, overrides map[string]*BlockNode) error {
	if err := st.ctx.Err(); err != nil {
		return err
	}
	st.depth++
	defer func() { st.depth-- }()
	if st.depth > maxRenderDepth {
		return NewRenderErrorf(Position{File: tmpl.File}, "template nesting exceeds %d levels", maxRenderDepth)
	}

	if ext := tmpl.Extends; ext != nil {
		// The child contributes its blocks to the parent; more-derived
		// overrides win over this template's own blocks. Top-level set and
		// import tags still execute so overriding blocks can use them.
		for _, n := range tmpl.Nodes {
			switch v := n.(type) {
			case *SetNode:
				if err := st.execSet(v); err != nil {
					return err
				}
			case *ImportNode:
				if err := st.execImport(v); err != nil {
					return err
				}
			}
		}

		merged := tmpl.Blocks()
		for name, block := range overrides {
			merged[name] = block
		}

		parent, _, err := st.resolve(ext.NameExpr, ext.Pos())
		if err != nil {
			return err
		}
		return st.renderTemplate(parent, merged)
	}

	saved := st.overrides
	st.overrides = overrides
	err := st.renderNodes(tmpl.Nodes)
	st.overrides = saved
	return err
}

func (st *renderState) renderNodes(nodes []Node) error {
	for _, n := range nodes {
		if err := st.renderNode(n); err != nil {
			return err
		}
	}
	return nil
}

func (st *renderState) renderNode(n Node) error {
	switch v := n.(type) {
	case *TextNode:
		st.out.WriteString(v.Text)
		return nil

	case *OutputNode:
		s, err := st.ec.EvalString(v.Expr, v.Pos().File, v.Pos().Line, st.locals)
		if err != nil {
			return WrapRenderError(v.Pos(), "expression failed", err)
		}
		st.out.WriteString(s)
		return nil

	case *SetNode:
		return st.execSet(v)

	case *IfNode:
		return st.renderIf(v)

	case *ForNode:
		return st.renderFor(v)

	case *IncludeNode:
		return st.renderInclude(v)

	case *BlockNode:
		body := v.Body
		if ov, ok := st.overrides[v.Name]; ok {
			body = ov.Body
		}
		return st.renderNodes(body)

	case *EmbedNode:
		return st.renderEmbed(v)

	case *ImportNode:
		return st.execImport(v)

	case *MacroNode, *ExtendsNode:
		// Definitions render to nothing in place.
		return nil

	default:
		return NewRenderErrorf(n.Pos(), "unexpected node %T", n)
	}
}

func (st *renderState) execSet(v *SetNode) error {
	val, err := st.ec.EvalExpr(v.Expr, v.Pos().File, v.Pos().Line, st.locals)
	if err != nil {
		return WrapRenderError(v.Pos(), "set failed", err)
	}
	st.locals[v.Name] = val
	return nil
}

func (st *renderState) renderIf(v *IfNode) error {
	cond, err := st.ec.EvalExpr(v.Condition, v.Pos().File, v.Pos().Line, st.locals)
	if err != nil {
		return WrapRenderError(v.Pos(), "condition failed", err)
	}
	if cond.Truth() {
		return st.renderNodes(v.Body)
	}

	for _, br := range v.ElseIfs {
		cond, err := st.ec.EvalExpr(br.Condition, br.pos.File, br.pos.Line, st.locals)
		if err != nil {
			return WrapRenderError(br.pos, "condition failed", err)
		}
		if cond.Truth() {
			return st.renderNodes(br.Body)
		}
	}

	if v.Else != nil {
		return st.renderNodes(v.Else)
	}
	return nil
}

func (st *renderState) renderFor(v *ForNode) error {
	iterable, err := st.ec.EvalExpr(v.IterExpr, v.Pos().File, v.Pos().Line, st.locals)
	if err != nil {
		return WrapRenderError(v.Pos(), "loop expression failed", err)
	}

	it := starlark.Iterate(iterable)
	if it == nil {
		return NewRenderErrorf(v.Pos(), "cannot iterate over %s", iterable.Type())
	}
	defer it.Done()

	prev, hadPrev := st.locals[v.VarName]

	var elem starlark.Value
	for it.Next(&elem) {
		if err := st.ctx.Err(); err != nil {
			return err
		}
		st.locals[v.VarName] = elem
		if err := st.renderNodes(v.Body); err != nil {
			return err
		}
	}

	if hadPrev {
		st.locals[v.VarName] = prev
	} else {
		delete(st.locals, v.VarName)
	}
	return nil
}

func (st *renderState) renderInclude(v *IncludeNode) error {
	tmpl, _, err := st.resolve(v.NameExpr, v.Pos())
	if err != nil {
		return err
	}

	// The included template shares the caller's context but its own local
	// mutations must not leak back.
	saved := st.locals
	st.locals = cloneLocals(saved)
	err = st.renderTemplate(tmpl, nil)
	st.locals = saved
	return err
}

func (st *renderState) renderEmbed(v *EmbedNode) error {
	tmpl, _, err := st.resolve(v.NameExpr, v.Pos())
	if err != nil {
		return err
	}

	blocks := make(map[string]*BlockNode, len(v.Blocks))
	for _, b := range v.Blocks {
		blocks[b.Name] = b
	}
	return st.renderTemplate(tmpl, blocks)
}

func (st *renderState) execImport(v *ImportNode) error {
	tmpl, _, err := st.resolve(v.NameExpr, v.Pos())
	if err != nil {
		return err
	}

	macros := tmpl.Macros()
	dict := make(starlark.StringDict, len(macros))
	for _, m := range macros {
		dict[m.Name] = st.macroBuiltin(m)
	}
	st.locals[v.Alias] = starlarkstruct.FromStringDict(starlark.String("macros"), dict)
	return nil
}

// macroBuiltin wraps a macro definition as a Starlark callable that renders
// the macro body with its parameters bound and returns the produced text.
func (st *renderState) macroBuiltin(m *MacroNode) *starlark.Builtin {
	return starlark.NewBuiltin(m.Name, func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(args) > len(m.Params) {
			return nil, fmt.Errorf("macro %s: got %d arguments, want at most %d", m.Name, len(args), len(m.Params))
		}

		locals := make(starlark.StringDict, len(m.Params))
		for i, param := range m.Params {
			if i < len(args) {
				locals[param] = args[i]
			} else {
				locals[param] = starlark.None
			}
		}
		for _, kv := range kwargs {
			name := string(kv[0].(starlark.String))
			if _, ok := locals[name]; !ok {
				return nil, fmt.Errorf("macro %s: unexpected keyword argument %q", m.Name, name)
			}
			locals[name] = kv[1]
		}

		savedOut, savedLocals := st.out, st.locals
		st.out = &strings.Builder{}
		st.locals = locals
		err := st.renderNodes(m.Body)
		rendered := st.out.String()
		st.out, st.locals = savedOut, savedLocals
		if err != nil {
			return nil, err
		}
		return starlark.String(rendered), nil
	})
}

// resolve evaluates a template reference expression and loads the template
// through the renderer's resolver.
func (st *renderState) resolve(nameExpr string, pos Position) (*Template, string, error) {
	if st.r.Resolver == nil {
		return nil, "", NewRenderError(pos, "no template resolver configured")
	}

	name, ok := LiteralName(nameExpr)
	if !ok {
		val, err := st.ec.EvalExpr(nameExpr, pos.File, pos.Line, st.locals)
		if err != nil {
			return nil, "", WrapRenderError(pos, "template reference failed", err)
		}
		s, isStr := val.(starlark.String)
		if !isStr {
			return nil, "", NewRenderErrorf(pos, "template reference must evaluate to a string, got %s", val.Type())
		}
		name = string(s)
	}

	tmpl, resolved, err := st.r.Resolver.ResolveTemplate(st.ctx, name, pos.File)
	if err != nil {
		return nil, "", WrapRenderError(pos, fmt.Sprintf("loading template %q", name), err)
	}
	return tmpl, resolved, nil
}

func cloneLocals(locals starlark.StringDict) starlark.StringDict {
	clone := make(starlark.StringDict, len(locals))
	for k, v := range locals {
		clone[k] = v
	}
	return clone
}
