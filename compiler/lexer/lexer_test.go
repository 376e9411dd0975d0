package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruxlang/crux/compiler/token"
)

func TestTokenizeBasics(t *testing.T) {
	toks, err := Tokenize([]byte("int x = 3 + 4;"))
	require.NoError(t, err)

	kinds := make([]token.Kind, len(toks))
	for i, tk := range toks {
		kinds[i] = tk.Kind
	}
	assert.Equal(t, []token.Kind{
		token.Ident, token.Ident, token.Assign, token.Integer,
		token.Plus, token.Integer, token.Semi, token.EOF,
	}, kinds)
}

func TestTypeNamesAreIdentifiers(t *testing.T) {
	toks, err := Tokenize([]byte("bool"))
	require.NoError(t, err)
	assert.Equal(t, token.Ident, toks[0].Kind)
}

func TestRejectsLeadingZero(t *testing.T) {
	_, err := Tokenize([]byte("007"))
	assert.Error(t, err)
}

func TestSkipsLineComments(t *testing.T) {
	toks, err := Tokenize([]byte("x // a comment\n= 1;"))
	require.NoError(t, err)
	assert.Equal(t, token.Ident, toks[0].Kind)
	assert.Equal(t, 2, toks[1].Line)
}

func TestKeywords(t *testing.T) {
	toks, err := Tokenize([]byte("if else for break return true false"))
	require.NoError(t, err)

	var kinds []token.Kind
	for _, tk := range toks[:len(toks)-1] {
		kinds = append(kinds, tk.Kind)
	}
	assert.Equal(t, []token.Kind{
		token.KwIf, token.KwElse, token.KwFor, token.KwBreak,
		token.KwReturn, token.True, token.False,
	}, kinds)
}
