package template

import "fmt"

// Error is the base interface for all template errors.
type Error interface {
	error
	Position() Position
}

// baseError provides common error functionality.
type baseError struct {
	pos Position
	msg string
}

func (e *baseError) Position() Position { return e.pos }
func (e *baseError) Error() string {
	if e.pos.File != "" {
		return fmt.Sprintf("%s:%d:%d: %s", e.pos.File, e.pos.Line, e.pos.Column, e.msg)
	}
	return fmt.Sprintf("%d:%d: %s", e.pos.Line, e.pos.Column, e.msg)
}

// LexError represents an error during lexical analysis.
type LexError struct {
	baseError
}

// NewLexError creates a new lexer error.
func NewLexError(pos Position, msg string) *LexError {
	return &LexError{baseError: baseError{pos: pos, msg: msg}}
}

// ParseError represents an error during parsing.
type ParseError struct {
	baseError
}

// NewParseError creates a new parser error.
func NewParseError(pos Position, msg string) *ParseError {
	return &ParseError{baseError: baseError{pos: pos, msg: msg}}
}

// NewParseErrorf creates a new parser error with formatting.
func NewParseErrorf(pos Position, format string, args ...any) *ParseError {
	return &ParseError{baseError: baseError{pos: pos, msg: fmt.Sprintf(format, args...)}}
}

// UnclosedTagError indicates a block tag without its closing counterpart,
// or a closing tag without an opener.
type UnclosedTagError struct {
	baseError
	Tag string // The tag that was left unclosed or unmatched
}

// NewUnclosedTagError creates a new unclosed tag error.
func NewUnclosedTagError(pos Position, tag string) *UnclosedTagError {
	var msg string
	switch tag {
	case "if":
		msg = "unclosed 'if' tag (missing 'endif')"
	case "for":
		msg = "unclosed 'for' tag (missing 'endfor')"
	case "block":
		msg = "unclosed 'block' tag (missing 'endblock')"
	case "embed":
		msg = "unclosed 'embed' tag (missing 'endembed')"
	case "macro":
		msg = "unclosed 'macro' tag (missing 'endmacro')"
	default:
		msg = fmt.Sprintf("%q without matching opening tag", tag)
	}
	return &UnclosedTagError{
		baseError: baseError{pos: pos, msg: msg},
		Tag:       tag,
	}
}

// CompileError represents an error while compiling a parsed template.
type CompileError struct {
	baseError
	Cause error
}

// NewCompileError wraps an underlying error as a compile error.
func NewCompileError(pos Position, msg string, cause error) *CompileError {
	return &CompileError{
		baseError: baseError{pos: pos, msg: msg},
		Cause:     cause,
	}
}

func (e *CompileError) Error() string {
	base := e.baseError.Error()
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", base, e.Cause)
	}
	return base
}

func (e *CompileError) Unwrap() error {
	return e.Cause
}

// RenderError represents an error during template rendering.
type RenderError struct {
	baseError
	Cause error // Underlying evaluation or loader error, if any
}

// NewRenderError creates a new render error.
func NewRenderError(pos Position, msg string) *RenderError {
	return &RenderError{baseError: baseError{pos: pos, msg: msg}}
}

// NewRenderErrorf creates a new render error with formatting.
func NewRenderErrorf(pos Position, format string, args ...any) *RenderError {
	return &RenderError{baseError: baseError{pos: pos, msg: fmt.Sprintf(format, args...)}}
}

// WrapRenderError wraps an underlying error as a render error.
func WrapRenderError(pos Position, msg string, cause error) *RenderError {
	return &RenderError{
		baseError: baseError{pos: pos, msg: msg},
		Cause:     cause,
	}
}

func (e *RenderError) Error() string {
	base := e.baseError.Error()
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", base, e.Cause)
	}
	return base
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}
