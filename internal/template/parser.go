package template

import (
	"strings"
	"unicode"
)

// Parser builds a Template AST from a token stream.
type Parser struct {
	tokens []Token
	pos    int
	file   string
}

// NewParser creates a parser for the given tokens.
func NewParser(tokens []Token, file string) *Parser {
	return &Parser{tokens: tokens, file: file}
}

// ParseString tokenizes and parses input in one call.
func ParseString(input, file string) (*Template, error) {
	tokens, err := Tokenize(input, file)
	if err != nil {
		return nil, err
	}
	return Parse(tokens, file)
}

// Parse builds a Template from a token stream produced by the lexer.
func Parse(tokens []Token, file string) (*Template, error) {
	p := NewParser(tokens, file)
	nodes, _, err := p.parseNodes(nil)
	if err != nil {
		return nil, err
	}

	tmpl := &Template{Nodes: nodes, File: file}
	if err := p.resolveExtends(tmpl); err != nil {
		return nil, err
	}
	return tmpl, nil
}

// resolveExtends pulls a leading extends tag onto the template and rejects
// misplaced or duplicate ones.
func (p *Parser) resolveExtends(tmpl *Template) error {
	seenContent := false
	for _, n := range tmpl.Nodes {
		switch v := n.(type) {
		case *ExtendsNode:
			if tmpl.Extends != nil {
				return NewParseError(v.Pos(), "multiple 'extends' tags in one template")
			}
			if seenContent {
				return NewParseError(v.Pos(), "'extends' must be the first tag in the template")
			}
			tmpl.Extends = v
		case *TextNode:
			if strings.TrimSpace(v.Text) != "" {
				seenContent = true
			}
		case *BlockNode, *MacroNode, *ImportNode, *SetNode:
			// Allowed alongside extends; blocks feed the parent.
		default:
			seenContent = true
		}
	}
	return nil
}

// parseNodes parses nodes until EOF or until a tag whose keyword is in
// stop. It returns the stopping tag token, or nil when parsing ended at EOF
// while a stop set was active (the caller reports the unclosed construct).
func (p *Parser) parseNodes(stop map[string]bool) ([]Node, *Token, error) {
	var nodes []Node

	for {
		tok := p.tokens[p.pos]
		switch tok.Type {
		case TokenEOF:
			return nodes, nil, nil

		case TokenText:
			p.pos++
			nodes = append(nodes, &TextNode{nodeBase: nodeBase{pos: tok.Pos}, Text: tok.Value})

		case TokenOutput:
			p.pos++
			nodes = append(nodes, &OutputNode{nodeBase: nodeBase{pos: tok.Pos}, Expr: tok.Value})

		case TokenTag:
			keyword := tagKeyword(tok.Value)
			if stop != nil && stop[keyword] {
				p.pos++
				return nodes, &tok, nil
			}
			node, err := p.parseTag(tok)
			if err != nil {
				return nil, nil, err
			}
			if node != nil {
				nodes = append(nodes, node)
			}

		default:
			return nil, nil, NewParseErrorf(tok.Pos, "unexpected token %s", tok.Type)
		}
	}
}

// parseTag dispatches on the tag keyword and consumes the full construct,
// including any matching end tag.
func (p *Parser) parseTag(tok Token) (Node, error) {
	keyword := tagKeyword(tok.Value)
	rest := strings.TrimSpace(strings.TrimPrefix(tok.Value, keyword))
	p.pos++

	switch keyword {
	case "if":
		return p.parseIf(tok, rest)
	case "for":
		return p.parseFor(tok, rest)
	case "set":
		return p.parseSet(tok, rest)
	case "include":
		if rest == "" {
			return nil, NewParseError(tok.Pos, "'include' requires a template expression")
		}
		return &IncludeNode{nodeBase: nodeBase{pos: tok.Pos}, NameExpr: rest}, nil
	case "extends":
		if rest == "" {
			return nil, NewParseError(tok.Pos, "'extends' requires a template expression")
		}
		return &ExtendsNode{nodeBase: nodeBase{pos: tok.Pos}, NameExpr: rest}, nil
	case "block":
		return p.parseBlock(tok, rest)
	case "embed":
		return p.parseEmbed(tok, rest)
	case "import":
		return p.parseImport(tok, rest)
	case "macro":
		return p.parseMacro(tok, rest)
	case "endif", "endfor", "endblock", "endembed", "endmacro", "else", "elif":
		return nil, NewUnclosedTagError(tok.Pos, keyword)
	default:
		return nil, NewParseErrorf(tok.Pos, "unknown tag %q", keyword)
	}
}

func (p *Parser) parseIf(open Token, condition string) (Node, error) {
	if condition == "" {
		return nil, NewParseError(open.Pos, "'if' requires a condition")
	}

	node := &IfNode{nodeBase: nodeBase{pos: open.Pos}, Condition: condition}

	body, stopTok, err := p.parseNodes(map[string]bool{"elif": true, "else": true, "endif": true})
	if err != nil {
		return nil, err
	}
	if stopTok == nil {
		return nil, NewUnclosedTagError(open.Pos, "if")
	}
	node.Body = body

	for tagKeyword(stopTok.Value) == "elif" {
		cond := strings.TrimSpace(strings.TrimPrefix(stopTok.Value, "elif"))
		if cond == "" {
			return nil, NewParseError(stopTok.Pos, "'elif' requires a condition")
		}
		branchBody, next, err := p.parseNodes(map[string]bool{"elif": true, "else": true, "endif": true})
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, NewUnclosedTagError(open.Pos, "if")
		}
		node.ElseIfs = append(node.ElseIfs, Branch{Condition: cond, Body: branchBody, pos: stopTok.Pos})
		stopTok = next
	}

	if tagKeyword(stopTok.Value) == "else" {
		elseBody, next, err := p.parseNodes(map[string]bool{"endif": true})
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, NewUnclosedTagError(open.Pos, "if")
		}
		node.Else = elseBody
		stopTok = next
	}

	return node, nil
}

func (p *Parser) parseFor(open Token, spec string) (Node, error) {
	idx := strings.Index(spec, " in ")
	if idx < 0 {
		return nil, NewParseError(open.Pos, "'for' requires the form: for <name> in <expr>")
	}
	varName := strings.TrimSpace(spec[:idx])
	iterExpr := strings.TrimSpace(spec[idx+len(" in "):])
	if !isIdentifier(varName) {
		return nil, NewParseErrorf(open.Pos, "invalid loop variable name %q", varName)
	}
	if iterExpr == "" {
		return nil, NewParseError(open.Pos, "'for' requires an iterable expression")
	}

	body, stopTok, err := p.parseNodes(map[string]bool{"endfor": true})
	if err != nil {
		return nil, err
	}
	if stopTok == nil {
		return nil, NewUnclosedTagError(open.Pos, "for")
	}

	return &ForNode{
		nodeBase: nodeBase{pos: open.Pos},
		VarName:  varName,
		IterExpr: iterExpr,
		Body:     body,
	}, nil
}

func (p *Parser) parseSet(open Token, spec string) (Node, error) {
	idx := strings.Index(spec, "=")
	if idx < 0 {
		return nil, NewParseError(open.Pos, "'set' requires the form: set <name> = <expr>")
	}
	name := strings.TrimSpace(spec[:idx])
	expr := strings.TrimSpace(spec[idx+1:])
	if !isIdentifier(name) {
		return nil, NewParseErrorf(open.Pos, "invalid variable name %q", name)
	}
	if expr == "" {
		return nil, NewParseError(open.Pos, "'set' requires an expression")
	}
	return &SetNode{nodeBase: nodeBase{pos: open.Pos}, Name: name, Expr: expr}, nil
}

func (p *Parser) parseBlock(open Token, name string) (Node, error) {
	if !isIdentifier(name) {
		return nil, NewParseErrorf(open.Pos, "invalid block name %q", name)
	}

	body, stopTok, err := p.parseNodes(map[string]bool{"endblock": true})
	if err != nil {
		return nil, err
	}
	if stopTok == nil {
		return nil, NewUnclosedTagError(open.Pos, "block")
	}

	// endblock may repeat the block name; if it does, it must match.
	if endName := strings.TrimSpace(strings.TrimPrefix(stopTok.Value, "endblock")); endName != "" && endName != name {
		return nil, NewParseErrorf(stopTok.Pos, "mismatched 'endblock %s' for block %q", endName, name)
	}

	return &BlockNode{nodeBase: nodeBase{pos: open.Pos}, Name: name, Body: body}, nil
}

func (p *Parser) parseEmbed(open Token, nameExpr string) (Node, error) {
	if nameExpr == "" {
		return nil, NewParseError(open.Pos, "'embed' requires a template expression")
	}

	body, stopTok, err := p.parseNodes(map[string]bool{"endembed": true})
	if err != nil {
		return nil, err
	}
	if stopTok == nil {
		return nil, NewUnclosedTagError(open.Pos, "embed")
	}

	node := &EmbedNode{nodeBase: nodeBase{pos: open.Pos}, NameExpr: nameExpr}
	for _, n := range body {
		switch v := n.(type) {
		case *BlockNode:
			node.Blocks = append(node.Blocks, v)
		case *TextNode:
			if strings.TrimSpace(v.Text) != "" {
				return nil, NewParseError(v.Pos(), "'embed' body may only contain blocks")
			}
		default:
			return nil, NewParseError(n.Pos(), "'embed' body may only contain blocks")
		}
	}
	return node, nil
}

func (p *Parser) parseImport(open Token, spec string) (Node, error) {
	idx := strings.LastIndex(spec, " as ")
	if idx < 0 {
		return nil, NewParseError(open.Pos, "'import' requires the form: import <expr> as <alias>")
	}
	nameExpr := strings.TrimSpace(spec[:idx])
	alias := strings.TrimSpace(spec[idx+len(" as "):])
	if nameExpr == "" {
		return nil, NewParseError(open.Pos, "'import' requires a template expression")
	}
	if !isIdentifier(alias) {
		return nil, NewParseErrorf(open.Pos, "invalid import alias %q", alias)
	}
	return &ImportNode{nodeBase: nodeBase{pos: open.Pos}, NameExpr: nameExpr, Alias: alias}, nil
}

func (p *Parser) parseMacro(open Token, spec string) (Node, error) {
	paren := strings.Index(spec, "(")
	if paren < 0 || !strings.HasSuffix(spec, ")") {
		return nil, NewParseError(open.Pos, "'macro' requires the form: macro <name>(<params>)")
	}
	name := strings.TrimSpace(spec[:paren])
	if !isIdentifier(name) {
		return nil, NewParseErrorf(open.Pos, "invalid macro name %q", name)
	}

	var params []string
	paramSpec := strings.TrimSpace(spec[paren+1 : len(spec)-1])
	if paramSpec != "" {
		for _, param := range strings.Split(paramSpec, ",") {
			param = strings.TrimSpace(param)
			if !isIdentifier(param) {
				return nil, NewParseErrorf(open.Pos, "invalid macro parameter %q", param)
			}
			params = append(params, param)
		}
	}

	body, stopTok, err := p.parseNodes(map[string]bool{"endmacro": true})
	if err != nil {
		return nil, err
	}
	if stopTok == nil {
		return nil, NewUnclosedTagError(open.Pos, "macro")
	}

	return &MacroNode{
		nodeBase: nodeBase{pos: open.Pos},
		Name:     name,
		Params:   params,
		Body:     body,
	}, nil
}

// tagKeyword returns the first word of a tag's content.
func tagKeyword(value string) string {
	if idx := strings.IndexFunc(value, unicode.IsSpace); idx >= 0 {
		return value[:idx]
	}
	return value
}

// isIdentifier reports whether s is a valid variable/block/macro name.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}
