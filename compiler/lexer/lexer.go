// Package lexer turns Crux source bytes into a token stream.
//
// It is hand-written byte scanning in the style of the teacher compiler's
// front-end scanner: an index into the source buffer, a helper that skips
// whitespace and comments, and a dispatch switch over the current byte. Crux
// lexing and parsing sit outside the compiler's core (spec §1) but a runnable
// repository still needs one.
package lexer

import (
	"tlog.app/go/errors"

	"github.com/cruxlang/crux/compiler/token"
)

type Lexer struct {
	b    []byte
	pos  int
	line int
}

func New(src []byte) *Lexer {
	return &Lexer{b: src, line: 1}
}

// Tokenize scans the whole input and returns its token stream, terminated by
// an EOF token.
func Tokenize(src []byte) ([]token.Token, error) {
	l := New(src)

	var toks []token.Token
	for {
		t, err := l.next()
		if err != nil {
			return nil, errors.Wrap(err, "lex at line %d", l.line)
		}

		toks = append(toks, t)
		if t.Kind == token.EOF {
			return toks, nil
		}
	}
}

func (l *Lexer) next() (token.Token, error) {
	l.skipSpacesAndComments()

	line := l.line

	if l.pos >= len(l.b) {
		return token.Token{Kind: token.EOF, Line: line}, nil
	}

	c := l.b[l.pos]

	switch {
	case isDigit(c):
		return l.lexInteger(line)
	case isIdentStart(c):
		return l.lexIdent(line)
	}

	if k, text, n := lexPunct(l.b[l.pos:]); n > 0 {
		l.pos += n
		return token.Token{Kind: k, Text: text, Line: line}, nil
	}

	return token.Token{}, errors.New("unexpected character %q", c)
}

var puncts = []struct {
	text string
	kind token.Kind
}{
	{">=", token.Ge},
	{"<=", token.Le},
	{"!=", token.Ne},
	{"==", token.EqEq},
	{"&&", token.AndAnd},
	{"||", token.OrOr},
	{"(", token.LParen},
	{")", token.RParen},
	{"{", token.LBrace},
	{"}", token.RBrace},
	{"[", token.LBracket},
	{"]", token.RBracket},
	{";", token.Semi},
	{",", token.Comma},
	{"=", token.Assign},
	{"+", token.Plus},
	{"-", token.Minus},
	{"*", token.Star},
	{"/", token.Slash},
	{"!", token.Bang},
	{">", token.Gt},
	{"<", token.Lt},
}

func lexPunct(b []byte) (token.Kind, string, int) {
	for _, p := range puncts {
		if len(b) >= len(p.text) && string(b[:len(p.text)]) == p.text {
			return p.kind, p.text, len(p.text)
		}
	}
	return 0, "", 0
}

func (l *Lexer) lexInteger(line int) (token.Token, error) {
	st := l.pos
	for l.pos < len(l.b) && isDigit(l.b[l.pos]) {
		l.pos++
	}
	text := string(l.b[st:l.pos])
	if len(text) > 1 && text[0] == '0' {
		return token.Token{}, errors.New("invalid integer literal %q", text)
	}
	return token.Token{Kind: token.Integer, Text: text, Line: line}, nil
}

func (l *Lexer) lexIdent(line int) (token.Token, error) {
	st := l.pos
	l.pos++
	for l.pos < len(l.b) && isIdentPart(l.b[l.pos]) {
		l.pos++
	}
	text := string(l.b[st:l.pos])

	if k, ok := token.Keywords[text]; ok {
		return token.Token{Kind: k, Text: text, Line: line}, nil
	}
	return token.Token{Kind: token.Ident, Text: text, Line: line}, nil
}

func (l *Lexer) skipSpacesAndComments() {
	for l.pos < len(l.b) {
		switch c := l.b[l.pos]; {
		case c == '\n':
			l.line++
			l.pos++
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
		case c == '/' && l.pos+1 < len(l.b) && l.b[l.pos+1] == '/':
			for l.pos < len(l.b) && l.b[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '_'
}
