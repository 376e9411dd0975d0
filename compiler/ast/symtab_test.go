package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruxlang/crux/compiler/diag"
	"github.com/cruxlang/crux/compiler/types"
)

func TestBuiltinsPrepopulated(t *testing.T) {
	st := NewSymbolTable(&diag.Bag{})
	sym := st.Lookup(1, "readInt")
	require.False(t, sym.Err)
	assert.Equal(t, types.Func, sym.Type.Kind)
	assert.Equal(t, types.Int, sym.Type.Ret.Kind)
}

func TestLookupMissingIsDiagnostic(t *testing.T) {
	diags := &diag.Bag{}
	st := NewSymbolTable(diags)
	sym := st.Lookup(5, "nope")
	assert.True(t, sym.Err)
	require.True(t, diags.HasErrors())
	assert.Equal(t, diag.ResolveSymbolError, diags.All()[0].Kind)
}

func TestScopeShadowing(t *testing.T) {
	diags := &diag.Bag{}
	st := NewSymbolTable(diags)
	st.Add(1, "x", types.NewInt())

	st.Enter()
	st.Add(2, "x", types.NewBool())
	inner := st.Lookup(2, "x")
	assert.Equal(t, types.Bool, inner.Type.Kind)
	st.Exit()

	outer := st.Lookup(3, "x")
	assert.Equal(t, types.Int, outer.Type.Kind)
	assert.False(t, diags.HasErrors())
}

func TestSameScopeRedeclarationIsDiagnostic(t *testing.T) {
	diags := &diag.Bag{}
	st := NewSymbolTable(diags)
	require.NotNil(t, st.Add(1, "x", types.NewInt()))
	assert.Nil(t, st.Add(2, "x", types.NewBool()))
	require.True(t, diags.HasErrors())
	assert.Equal(t, diag.DeclarationError, diags.All()[0].Kind)
}

func TestDepthTracksEnterExit(t *testing.T) {
	st := NewSymbolTable(&diag.Bag{})
	d0 := st.Depth()
	st.Enter()
	assert.Equal(t, d0+1, st.Depth())
	st.Exit()
	assert.Equal(t, d0, st.Depth())
}
