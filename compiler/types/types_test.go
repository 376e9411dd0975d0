package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdd(t *testing.T) {
	assert.Equal(t, NewInt(), Add(NewInt(), NewInt()))
	assert.True(t, Add(NewInt(), NewBool()).IsError())
}

func TestEqualAcceptsBool(t *testing.T) {
	assert.Equal(t, NewBool(), Equal(NewBool(), NewBool()))
	assert.True(t, Equal(NewInt(), NewBool()).IsError())
}

func TestOrderAcceptsInt(t *testing.T) {
	assert.Equal(t, NewBool(), Order(NewInt(), NewInt()))
	assert.True(t, Order(NewInt(), NewBool()).IsError())
}

func TestOrderRejectsBool(t *testing.T) {
	assert.True(t, Order(NewBool(), NewBool()).IsError())
}

func TestArrayEquivalentIgnoresExtent(t *testing.T) {
	a := NewArray(NewInt(), 5)
	b := NewArray(NewInt(), 10)
	assert.True(t, a.Equivalent(b))
}

func TestFuncNeverEquivalent(t *testing.T) {
	f := NewFunc([]Type{NewInt()}, NewVoid())
	g := NewFunc([]Type{NewInt()}, NewVoid())
	assert.False(t, f.Equivalent(g))
}

func TestCallChecksArgList(t *testing.T) {
	fn := NewFunc([]Type{NewInt(), NewBool()}, NewInt())

	assert.Equal(t, NewInt(), Call(fn, []Type{NewInt(), NewBool()}))
	assert.True(t, Call(fn, []Type{NewInt()}).IsError())
	assert.True(t, Call(NewInt(), nil).IsError())
}

func TestIndex(t *testing.T) {
	arr := NewArray(NewBool(), 3)
	assert.Equal(t, NewBool(), Index(arr, NewInt()))
	assert.True(t, Index(arr, NewBool()).IsError())
}

func TestAssign(t *testing.T) {
	assert.Equal(t, NewInt(), Assign(NewInt(), NewInt()))
	assert.True(t, Assign(NewInt(), NewBool()).IsError())
}

func TestNot(t *testing.T) {
	assert.Equal(t, NewBool(), Not(NewBool()))
	assert.True(t, Not(NewInt()).IsError())
}
