package ast

import (
	"github.com/cruxlang/crux/compiler/diag"
	"github.com/cruxlang/crux/compiler/types"
)

// Symbol is a resolved name: a declaration site's name, type, and line, or a
// sentinel produced for an unresolved use. Two identifier uses that resolve
// to the same declaration share the same *Symbol pointer (spec §3).
type Symbol struct {
	Name string
	Type types.Type
	Line int

	// Err marks a sentinel symbol substituted for an unresolved identifier
	// use, so later passes can keep going (spec §3's invariant (b)).
	Err bool
}

// SymbolTable is the ordered stack of scopes of spec §3: a bottom scope
// pre-populated with the six built-ins, searched innermost-first on lookup.
type SymbolTable struct {
	scopes []map[string]*Symbol
	diags  *diag.Bag
}

func NewSymbolTable(diags *diag.Bag) *SymbolTable {
	st := &SymbolTable{diags: diags}
	st.scopes = append(st.scopes, builtinScope())
	return st
}

func (st *SymbolTable) Enter() {
	st.scopes = append(st.scopes, map[string]*Symbol{})
}

func (st *SymbolTable) Exit() {
	st.scopes = st.scopes[:len(st.scopes)-1]
}

// Depth reports the current scope-stack depth, used to check the scope-pop
// fidelity law of spec §8 (depth at function entry equals depth at exit).
func (st *SymbolTable) Depth() int {
	return len(st.scopes)
}

// Add inserts name into the innermost scope. A collision is a
// DeclarationError; the insertion is skipped but the table keeps the
// previously declared symbol, and a nil is returned so the caller knows not
// to rely on the new declaration.
func (st *SymbolTable) Add(line int, name string, typ types.Type) *Symbol {
	top := st.scopes[len(st.scopes)-1]
	if _, ok := top[name]; ok {
		st.diags.Addf(diag.DeclarationError, line, "%s already exists", name)
		return nil
	}

	sym := &Symbol{Name: name, Type: typ, Line: line}
	top[name] = sym
	return sym
}

// Lookup searches top-down from the innermost scope. An unresolved name is
// a ResolveSymbolError; a sentinel error symbol is returned so typing may
// continue.
func (st *SymbolTable) Lookup(line int, name string) *Symbol {
	for i := len(st.scopes) - 1; i >= 0; i-- {
		if sym, ok := st.scopes[i][name]; ok {
			return sym
		}
	}

	st.diags.Addf(diag.ResolveSymbolError, line, "Could not find %s.", name)
	return &Symbol{Name: name, Err: true}
}

func builtinScope() map[string]*Symbol {
	voidT := types.NewVoid()
	intT := types.NewInt()
	boolT := types.NewBool()

	sym := func(name string, params []types.Type, ret types.Type) *Symbol {
		return &Symbol{Name: name, Type: types.NewFunc(params, ret)}
	}

	scope := map[string]*Symbol{}
	for _, s := range []*Symbol{
		sym("readInt", nil, intT),
		sym("readChar", nil, intT),
		sym("printBool", []types.Type{boolT}, voidT),
		sym("printInt", []types.Type{intT}, voidT),
		sym("printChar", []types.Type{intT}, voidT),
		sym("println", nil, voidT),
	} {
		scope[s.Name] = s
	}
	return scope
}
