package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	d := Diagnostic{Kind: TypeError, Line: 12, Detail: "cannot add int with bool"}
	assert.Equal(t, "TypeError(line: 12)[cannot add int with bool]", d.String())
}

func TestBagAddf(t *testing.T) {
	var b Bag
	assert.False(t, b.HasErrors())

	b.Addf(DeclarationError, 3, "%s already exists", "x")
	assert.True(t, b.HasErrors())
	assert.Equal(t, "DeclarationError(line: 3)[x already exists]", b.All()[0].String())
}

func TestBagStringJoinsWithNewlines(t *testing.T) {
	var b Bag
	b.Add(ResolveSymbolError, 1, "Could not find x.")
	b.Add(TypeError, 2, "cannot assign int with bool")

	assert.Equal(t, "ResolveSymbolError(line: 1)[Could not find x.]\nTypeError(line: 2)[cannot assign int with bool]", b.String())
}
