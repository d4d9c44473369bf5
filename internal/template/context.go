package template

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"
)

// ExecutionContext provides the globals for Starlark expression evaluation
// inside a single render. It is built once per render from the caller's
// context mapping and is read-only afterwards; loop variables and set
// assignments live in per-scope locals layered on top.
type ExecutionContext struct {
	globals starlark.StringDict
}

// NewExecutionContext converts a context mapping into Starlark globals.
// A nil mapping yields an empty context.
func NewExecutionContext(vars map[string]any) (*ExecutionContext, error) {
	globals := make(starlark.StringDict, len(vars))
	for name, value := range vars {
		v, err := ToStarlark(value)
		if err != nil {
			return nil, fmt.Errorf("context variable %q: %w", name, err)
		}
		globals[name] = v
	}
	return &ExecutionContext{globals: globals}, nil
}

// Globals returns the context's global dictionary.
func (ec *ExecutionContext) Globals() starlark.StringDict {
	return ec.globals
}

// EvalExpr evaluates a Starlark expression with additional local variables.
// Locals take precedence over context globals.
func (ec *ExecutionContext) EvalExpr(expr, filename string, line int, locals starlark.StringDict) (starlark.Value, error) {
	thread := &starlark.Thread{
		Name: filename,
		Print: func(_ *starlark.Thread, _ string) {
			// Template expressions should not print.
		},
	}

	globals := ec.globals
	if len(locals) > 0 {
		combined := make(starlark.StringDict, len(globals)+len(locals))
		for k, v := range globals {
			combined[k] = v
		}
		for k, v := range locals {
			combined[k] = v
		}
		globals = combined
	}

	result, err := starlark.Eval(thread, filename, expr, globals) //nolint:staticcheck // SA1019: will migrate to EvalOptions later
	if err != nil {
		return nil, &EvalError{
			File:    filename,
			Line:    line,
			Expr:    expr,
			Message: err.Error(),
		}
	}

	return result, nil
}

// EvalString evaluates an expression and converts the result to its output
// string form: strings render raw, None renders empty, everything else uses
// the Starlark representation.
func (ec *ExecutionContext) EvalString(expr, filename string, line int, locals starlark.StringDict) (string, error) {
	result, err := ec.EvalExpr(expr, filename, line, locals)
	if err != nil {
		return "", err
	}
	return Stringify(result), nil
}

// Stringify converts a Starlark value to its template output form.
func Stringify(v starlark.Value) string {
	switch val := v.(type) {
	case starlark.String:
		return string(val)
	case starlark.NoneType:
		return ""
	default:
		return v.String()
	}
}

// ToStarlark converts a Go value from a render context mapping into its
// Starlark equivalent. Supported: nil, bool, string, ints, floats, []any
// and map[string]any (recursively).
func ToStarlark(value any) (starlark.Value, error) {
	switch v := value.(type) {
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(v), nil
	case string:
		return starlark.String(v), nil
	case int:
		return starlark.MakeInt(v), nil
	case int32:
		return starlark.MakeInt(int(v)), nil
	case int64:
		return starlark.MakeInt64(v), nil
	case uint64:
		return starlark.MakeUint64(v), nil
	case float32:
		return starlark.Float(float64(v)), nil
	case float64:
		return starlark.Float(v), nil
	case []any:
		elems := make([]starlark.Value, 0, len(v))
		for i, e := range v {
			sv, err := ToStarlark(e)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			elems = append(elems, sv)
		}
		return starlark.NewList(elems), nil
	case map[string]any:
		dict := starlark.NewDict(len(v))
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sv, err := ToStarlark(v[k])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	case starlark.Value:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported context value type %T", value)
	}
}

// EvalError represents an error during Starlark expression evaluation.
type EvalError struct {
	File    string
	Line    int
	Expr    string
	Message string
}

func (e *EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: error evaluating %q: %s", e.File, e.Line, e.Expr, e.Message)
	}
	return fmt.Sprintf("%s: error evaluating %q: %s", e.File, e.Expr, e.Message)
}
