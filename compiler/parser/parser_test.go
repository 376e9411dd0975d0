package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruxlang/crux/compiler/lexer"
	"github.com/cruxlang/crux/compiler/parsetree"
)

func parse(t *testing.T, src string) *parsetree.Program {
	toks, err := lexer.Tokenize([]byte(src))
	require.NoError(t, err)
	prog, err := Parse(context.Background(), toks)
	require.NoError(t, err)
	return prog
}

func TestParseGlobalVarDecl(t *testing.T) {
	prog := parse(t, "int x;")
	require.Len(t, prog.Decls, 1)
	vd, ok := prog.Decls[0].(*parsetree.VarDecl)
	require.True(t, ok)
	assert.Equal(t, "int", vd.Type)
	assert.Equal(t, "x", vd.Name)
}

func TestParseArrayDecl(t *testing.T) {
	prog := parse(t, "int xs[10];")
	ad, ok := prog.Decls[0].(*parsetree.ArrayDecl)
	require.True(t, ok)
	assert.Equal(t, int64(10), ad.Size)
}

func TestParseFuncDefnWithParams(t *testing.T) {
	prog := parse(t, "int add(int a, int b) { return a + b; }")
	fd, ok := prog.Decls[0].(*parsetree.FuncDefn)
	require.True(t, ok)
	assert.Equal(t, "add", fd.Name)
	require.Len(t, fd.Params, 2)
	assert.Equal(t, "a", fd.Params[0].Name)
	require.Len(t, fd.Body, 1)

	ret, ok := fd.Body[0].(*parsetree.Return)
	require.True(t, ok)
	bin, ok := ret.Value.(*parsetree.Binary)
	require.True(t, ok)
	assert.Equal(t, "+", bin.Op)
}

func TestOp0IsNonAssociative(t *testing.T) {
	toks, err := lexer.Tokenize([]byte("int f() { return 1 < 2 < 3; }"))
	require.NoError(t, err)
	_, err = Parse(context.Background(), toks)
	assert.Error(t, err)
}

func TestOp1LeftAssociative(t *testing.T) {
	prog := parse(t, "int f() { return 1 - 2 - 3; }")
	fd := prog.Decls[0].(*parsetree.FuncDefn)
	ret := fd.Body[0].(*parsetree.Return)
	outer, ok := ret.Value.(*parsetree.Binary)
	require.True(t, ok)
	assert.Equal(t, "-", outer.Op)
	inner, ok := outer.L.(*parsetree.Binary)
	require.True(t, ok)
	assert.Equal(t, "-", inner.Op)
	_, isLit := outer.R.(*parsetree.Int)
	assert.True(t, isLit)
}

func TestParseIfElse(t *testing.T) {
	prog := parse(t, `
void f() {
	if (true) {
		return;
	} else {
		return;
	}
}`)
	fd := prog.Decls[0].(*parsetree.FuncDefn)
	ifStmt, ok := fd.Body[0].(*parsetree.If)
	require.True(t, ok)
	assert.NotNil(t, ifStmt.Else)
}

func TestParseForLoop(t *testing.T) {
	prog := parse(t, `
void f() {
	int i;
	for (i = 0; i < 10; i = i + 1) {
		break;
	}
}`)
	fd := prog.Decls[0].(*parsetree.FuncDefn)
	forStmt, ok := fd.Body[1].(*parsetree.For)
	require.True(t, ok)
	require.Len(t, forStmt.Body, 1)
	_, ok = forStmt.Body[0].(*parsetree.Break)
	assert.True(t, ok)
}

func TestParseCallExpr(t *testing.T) {
	prog := parse(t, "void f() { printInt(42); }")
	fd := prog.Decls[0].(*parsetree.FuncDefn)
	cs, ok := fd.Body[0].(*parsetree.CallStmt)
	require.True(t, ok)
	assert.Equal(t, "printInt", cs.Call.Name)
	require.Len(t, cs.Call.Args, 1)
}
