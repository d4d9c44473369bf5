package template

import (
	"strings"
	"unicode/utf8"
)

// TokenType identifies the type of token.
type TokenType int

// TokenType constants for template token types.
const (
	TokenText   TokenType = iota // Literal text
	TokenOutput                  // Expression content (between {{ and }})
	TokenTag                     // Tag content (between {% and %})
	TokenEOF                     // End of input
)

func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "TEXT"
	case TokenOutput:
		return "OUTPUT"
	case TokenTag:
		return "TAG"
	case TokenEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}

// Token represents a lexical token.
type Token struct {
	Type  TokenType
	Value string
	Pos   Position
}

// Lexer tokenizes a template string.
type Lexer struct {
	input    string
	file     string
	pos      int // current position in input
	line     int // current line number (1-based)
	col      int // current column number (1-based)
	lastLine int // line at start of current token
	lastCol  int // column at start of current token
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input, file string) *Lexer {
	return &Lexer{
		input: input,
		file:  file,
		pos:   0,
		line:  1,
		col:   1,
	}
}

// Tokenize converts the input into a slice of tokens. Comments are consumed
// and do not appear in the output.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token

	for {
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		if tok.Type == TokenEOF {
			tokens = append(tokens, tok)
			break
		}
		tokens = append(tokens, tok)
	}

	return tokens, nil
}

// nextToken returns the next token from the input.
func (l *Lexer) nextToken() (Token, error) {
	for {
		if l.pos >= len(l.input) {
			return Token{Type: TokenEOF, Pos: l.position()}, nil
		}

		if l.matchString("{#") {
			if err := l.skipComment(); err != nil {
				return Token{}, err
			}
			continue
		}

		if l.matchString("{{") {
			return l.scanDelimited(TokenOutput, "{{", "}}")
		}

		if l.matchString("{%") {
			return l.scanDelimited(TokenTag, "{%", "%}")
		}

		return l.scanText()
	}
}

// scanText scans literal text until a delimiter or EOF.
func (l *Lexer) scanText() (Token, error) {
	l.markStart()
	start := l.pos

	for l.pos < len(l.input) {
		if l.matchString("{{") || l.matchString("{%") || l.matchString("{#") {
			break
		}
		l.advance()
	}

	if l.pos == start {
		// No text consumed, something is wrong
		return Token{}, NewLexError(l.position(), "unexpected state in lexer")
	}

	return Token{
		Type:  TokenText,
		Value: l.input[start:l.pos],
		Pos:   l.startPosition(),
	}, nil
}

// scanDelimited scans a delimited construct ({{ ... }} or {% ... %}).
func (l *Lexer) scanDelimited(typ TokenType, open, close string) (Token, error) {
	l.markStart()

	// Skip opening delimiter
	l.pos += len(open)
	l.col += len(open)

	l.skipWhitespace()

	start := l.pos
	depth := 0 // Track nested braces (dict/set literals inside expressions)

	for l.pos < len(l.input) {
		if l.matchString(close) && depth == 0 {
			value := strings.TrimSpace(l.input[start:l.pos])

			// Skip closing delimiter
			l.pos += len(close)
			l.col += len(close)

			return Token{
				Type:  typ,
				Value: value,
				Pos:   l.startPosition(),
			}, nil
		}

		r := l.peek()
		if r == '{' {
			depth++
		} else if r == '}' && depth > 0 {
			depth--
		}

		l.advance()
	}

	if typ == TokenOutput {
		return Token{}, NewLexError(l.startPosition(), "unclosed expression: missing '}}'")
	}
	return Token{}, NewLexError(l.startPosition(), "unclosed tag: missing '%}'")
}

// skipComment consumes a {# ... #} comment.
func (l *Lexer) skipComment() error {
	l.markStart()

	l.pos += 2
	l.col += 2

	for l.pos < len(l.input) {
		if l.matchString("#}") {
			l.pos += 2
			l.col += 2
			return nil
		}
		l.advance()
	}

	return NewLexError(l.startPosition(), "unclosed comment: missing '#}'")
}

// Helper methods

// peek returns the current rune without advancing.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

// advance moves to the next rune, updating position tracking.
func (l *Lexer) advance() {
	if l.pos >= len(l.input) {
		return
	}

	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size

	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
}

// matchString checks if the input at current position matches s.
func (l *Lexer) matchString(s string) bool {
	return strings.HasPrefix(l.input[l.pos:], s)
}

// skipWhitespace skips whitespace characters.
func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		r := l.peek()
		if r != ' ' && r != '\t' {
			break
		}
		l.advance()
	}
}

// markStart records the start position for the current token.
func (l *Lexer) markStart() {
	l.lastLine = l.line
	l.lastCol = l.col
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{File: l.file, Line: l.line, Column: l.col}
}

// startPosition returns the position where the current token started.
func (l *Lexer) startPosition() Position {
	return Position{File: l.file, Line: l.lastLine, Column: l.lastCol}
}

// Tokenize is a convenience wrapper tokenizing input in one call.
func Tokenize(input, file string) ([]Token, error) {
	return NewLexer(input, file).Tokenize()
}
