package ir

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruxlang/crux/compiler/ast"
	"github.com/cruxlang/crux/compiler/diag"
	"github.com/cruxlang/crux/compiler/lexer"
	"github.com/cruxlang/crux/compiler/parser"
	"github.com/cruxlang/crux/compiler/typecheck"
)

func lower(t *testing.T, src string) *Program {
	toks, err := lexer.Tokenize([]byte(src))
	require.NoError(t, err)
	tree, err := parser.Parse(context.Background(), toks)
	require.NoError(t, err)

	diags := &diag.Bag{}
	f, err := ast.Build(context.Background(), tree, diags)
	require.NoError(t, err)
	require.False(t, diags.HasErrors())

	res, err := typecheck.Check(context.Background(), f, diags)
	require.NoError(t, err)
	require.False(t, diags.HasErrors())

	prog, err := Lower(context.Background(), f, res)
	require.NoError(t, err)
	return prog
}

func findFunc(prog *Program, name string) *Function {
	for _, fn := range prog.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// collect walks every reachable instruction from a function's entry.
func collect(fn *Function) []*Instruction {
	var out []*Instruction
	seen := map[InstID]bool{}
	var walk func(id InstID)
	walk = func(id InstID) {
		if id == NoInst || seen[id] {
			return
		}
		seen[id] = true
		inst := fn.At(id)
		out = append(out, inst)
		for _, n := range inst.Next {
			walk(n)
		}
	}
	walk(fn.Entry)
	return out
}

func countKind(insts []*Instruction, k Kind) int {
	n := 0
	for _, i := range insts {
		if i.Kind == k {
			n++
		}
	}
	return n
}

func TestGlobalScalarUsesAddressAt(t *testing.T) {
	prog := lower(t, `
int g;
void main() {
	g = 1;
	printInt(g);
}`)
	require.Len(t, prog.Globals, 1)
	assert.Equal(t, "g", prog.Globals[0].Name)
	assert.False(t, prog.Globals[0].IsArray)

	fn := findFunc(prog, "main")
	require.NotNil(t, fn)
	insts := collect(fn)
	// one AddressAt for the store, one for the load.
	assert.Equal(t, 2, countKind(insts, KindAddressAt))
	assert.Equal(t, 1, countKind(insts, KindStore))
	assert.Equal(t, 1, countKind(insts, KindLoad))
	assert.Equal(t, 0, countKind(insts, KindCopy))
}

func TestLocalVarUsesCopyNotAddressAt(t *testing.T) {
	prog := lower(t, `
void main() {
	int x;
	x = 1;
	printInt(x);
}`)
	fn := findFunc(prog, "main")
	insts := collect(fn)
	assert.Equal(t, 0, countKind(insts, KindAddressAt))
	assert.Equal(t, 1, countKind(insts, KindCopy))
}

func TestArrayAccessAlwaysAddressAt(t *testing.T) {
	prog := lower(t, `
int xs[10];
void main() {
	xs[0] = 1;
	printInt(xs[0]);
}`)
	fn := findFunc(prog, "main")
	insts := collect(fn)
	assert.Equal(t, 2, countKind(insts, KindAddressAt))
	for _, i := range insts {
		if i.Kind == KindAddressAt {
			assert.Equal(t, "xs", i.Base)
		}
	}
}

func TestConstantsAreInterned(t *testing.T) {
	prog := lower(t, `
void main() {
	printInt(3);
	printInt(3);
}`)
	fn := findFunc(prog, "main")
	var consts []*IntegerConstant
	for _, i := range collect(fn) {
		if i.Kind == KindCall {
			for _, a := range i.Args {
				if ic, ok := a.(*IntegerConstant); ok {
					consts = append(consts, ic)
				}
			}
		}
	}
	require.Len(t, consts, 2)
	assert.Same(t, consts[0], consts[1])
}

func TestFunctionReturnsImplicitOnFallThrough(t *testing.T) {
	prog := lower(t, `void main() { }`)
	fn := findFunc(prog, "main")
	insts := collect(fn)
	assert.Equal(t, 1, countKind(insts, KindReturn))
}

func TestShortCircuitAndEmitsJump(t *testing.T) {
	prog := lower(t, `
bool f(bool a, bool b) {
	return a && b;
}`)
	fn := findFunc(prog, "f")
	insts := collect(fn)
	require.Equal(t, 1, countKind(insts, KindJump))
	assert.Equal(t, 2, countKind(insts, KindCopy))
}

func TestGlobalDeclShapeMatchesSourceOrder(t *testing.T) {
	prog := lower(t, `
int g;
int xs[10];
void main() { }`)
	want := []GlobalDecl{
		{Name: "g"},
		{Name: "xs", IsArray: true, Extent: 10},
	}
	if diff := cmp.Diff(want, prog.Globals); diff != "" {
		t.Errorf("globals mismatch (-want +got):\n%s", diff)
	}
}

func TestArrayAssignLowersIndexBeforeValue(t *testing.T) {
	// xs[f()] = g(); must call f before g (spec: lower the index, then the
	// rhs, then AddressAt, then Store).
	prog := lower(t, `
int xs[10];
int f() {
	return 0;
}
int g() {
	return 1;
}
void main() {
	xs[f()] = g();
}`)
	fn := findFunc(prog, "main")
	var order []string
	for _, i := range collect(fn) {
		if i.Kind == KindCall {
			order = append(order, i.Callee)
		}
	}
	require.Equal(t, []string{"f", "g"}, order)
}

func TestNestedLoopBreakExitsInnermostLoop(t *testing.T) {
	// The inner break must jump to the inner loop's exit, not the outer's —
	// this is only possible if currLoopExit is saved/restored around the
	// nested For (spec's fix over ASTLower.java, which leaks the field).
	prog := lower(t, `
void main() {
	int i;
	int j;
	for (i = 0; i < 10; i = i + 1) {
		for (j = 0; j < 10; j = j + 1) {
			break;
		}
		break;
	}
}`)
	fn := findFunc(prog, "main")
	insts := collect(fn)
	// two Jump instructions, one per loop condition.
	assert.Equal(t, 2, countKind(insts, KindJump))

	// Each loop's exit (its Jump's false successor) is reached exactly from
	// that Jump and from that loop's own break.
	preds := map[InstID]int{}
	for _, i := range insts {
		for _, n := range i.Next {
			if n != NoInst {
				preds[n]++
			}
		}
	}
	for _, i := range insts {
		if i.Kind == KindJump {
			assert.Equal(t, 2, preds[i.Next[0]])
		}
	}
}
