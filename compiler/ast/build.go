package ast

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/cruxlang/crux/compiler/diag"
	"github.com/cruxlang/crux/compiler/parsetree"
	"github.com/cruxlang/crux/compiler/types"
)

// Builder lowers a parsetree.Program into a resolved File, following
// ParseTreeLower.java's scope-push/pop ordering exactly: a function's own
// symbol is added to the *enclosing* scope before SymbolTable.Enter is
// called for its body, so a function cannot see itself as a shadowed
// parameter name, and each if/else branch and for loop gets its own scope.
type Builder struct {
	syms *SymbolTable
	diag *diag.Bag
	next ExprID
}

func NewBuilder(diags *diag.Bag) *Builder {
	return &Builder{syms: NewSymbolTable(diags), diag: diags}
}

func Build(ctx context.Context, prog *parsetree.Program, diags *diag.Bag) (f *File, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "ast.Build")
	defer tr.Finish("err", &err)

	b := NewBuilder(diags)
	f, err = b.BuildProgram(prog)
	if err == nil {
		tr.Printw("built file", "decls", len(f.Decls))
	}
	return f, err
}

func (b *Builder) BuildProgram(prog *parsetree.Program) (*File, error) {
	f := &File{}
	for _, d := range prog.Decls {
		decl, err := b.buildDecl(d)
		if err != nil {
			return nil, errors.Wrap(err, "build decl")
		}
		if decl != nil {
			f.Decls = append(f.Decls, decl)
		}
	}
	return f, nil
}

func (b *Builder) buildDecl(d parsetree.Decl) (Decl, error) {
	switch d := d.(type) {
	case *parsetree.VarDecl:
		return b.buildVarDecl(d), nil
	case *parsetree.ArrayDecl:
		return b.buildArrayDecl(d), nil
	case *parsetree.FuncDefn:
		return b.buildFuncDefn(d)
	default:
		return nil, errors.New("ast: unknown decl %T", d)
	}
}

func (b *Builder) resolveType(name string, line int) types.Type {
	switch name {
	case "int":
		return types.NewInt()
	case "bool":
		return types.NewBool()
	case "void":
		return types.NewVoid()
	default:
		return types.NewError("Invalid Type: %s", name)
	}
}

func (b *Builder) buildVarDecl(d *parsetree.VarDecl) *VariableDecl {
	typ := b.resolveType(d.Type, d.Line)
	sym := b.syms.Add(d.Line, d.Name, typ)
	if sym == nil {
		sym = &Symbol{Name: d.Name, Type: typ, Line: d.Line, Err: true}
	}
	return &VariableDecl{Sym: sym, Line: d.Line}
}

func (b *Builder) buildArrayDecl(d *parsetree.ArrayDecl) *ArrayDecl {
	base := b.resolveType(d.Type, d.Line)
	typ := types.NewArray(base, uint64(d.Size))
	sym := b.syms.Add(d.Line, d.Name, typ)
	if sym == nil {
		sym = &Symbol{Name: d.Name, Type: typ, Line: d.Line, Err: true}
	}
	return &ArrayDecl{Sym: sym, Line: d.Line}
}

func (b *Builder) buildFuncDefn(d *parsetree.FuncDefn) (*FunctionDefn, error) {
	retType := b.resolveType(d.RetType, d.Line)

	paramTypes := make([]types.Type, len(d.Params))
	for i, p := range d.Params {
		paramTypes[i] = b.resolveType(p.Type, p.Line)
	}

	fnType := types.NewFunc(paramTypes, retType)
	fnSym := b.syms.Add(d.Line, d.Name, fnType)
	if fnSym == nil {
		fnSym = &Symbol{Name: d.Name, Type: fnType, Line: d.Line, Err: true}
	}

	b.syms.Enter()
	defer b.syms.Exit()

	params := make([]*Symbol, len(d.Params))
	for i, p := range d.Params {
		psym := b.syms.Add(p.Line, p.Name, paramTypes[i])
		if psym == nil {
			psym = &Symbol{Name: p.Name, Type: paramTypes[i], Line: p.Line, Err: true}
		}
		params[i] = psym
	}

	body, err := b.buildStmtBlock(d.Body, d.Line)
	if err != nil {
		return nil, errors.Wrap(err, "build func body")
	}

	return &FunctionDefn{Sym: fnSym, Params: params, Body: body, Line: d.Line}, nil
}

// buildStmtBlock lowers a brace-delimited statement list without opening a
// new scope of its own; callers that need one (if/else branches, for loops)
// call syms.Enter/Exit around this.
func (b *Builder) buildStmtBlock(stmts []parsetree.Stmt, line int) (*StmtList, error) {
	out := &StmtList{Line: line}
	for _, s := range stmts {
		st, err := b.buildStmt(s)
		if err != nil {
			return nil, err
		}
		if st != nil {
			out.Stmts = append(out.Stmts, st)
		}
	}
	return out, nil
}

func (b *Builder) buildStmt(s parsetree.Stmt) (Stmt, error) {
	switch s := s.(type) {
	case *parsetree.VarDecl:
		return b.buildVarDecl(s), nil
	case *parsetree.Assign:
		return b.buildAssign(s)
	case *parsetree.CallStmt:
		call, err := b.buildCall(s.Call)
		if err != nil {
			return nil, err
		}
		return &CallStmt{Call: call, Line: s.Line}, nil
	case *parsetree.If:
		return b.buildIf(s)
	case *parsetree.For:
		return b.buildFor(s)
	case *parsetree.Break:
		return &Break{Line: s.Line}, nil
	case *parsetree.Return:
		return b.buildReturn(s)
	default:
		return nil, errors.New("ast: unknown stmt %T", s)
	}
}

func (b *Builder) buildAssign(s *parsetree.Assign) (*Assignment, error) {
	loc, err := b.buildExpr(s.Target)
	if err != nil {
		return nil, err
	}
	val, err := b.buildExpr(s.Value)
	if err != nil {
		return nil, err
	}
	return &Assignment{Loc: loc, Value: val, Line: s.Line}, nil
}

func (b *Builder) buildIf(s *parsetree.If) (*IfElse, error) {
	cond, err := b.buildExpr(s.Cond)
	if err != nil {
		return nil, err
	}

	b.syms.Enter()
	then, err := b.buildStmtBlock(s.Then, s.Line)
	b.syms.Exit()
	if err != nil {
		return nil, err
	}

	var elseBlk *StmtList
	if s.Else != nil {
		b.syms.Enter()
		elseBlk, err = b.buildStmtBlock(s.Else, s.Line)
		b.syms.Exit()
		if err != nil {
			return nil, err
		}
	}

	return &IfElse{Cond: cond, Then: then, Else: elseBlk, Line: s.Line}, nil
}

func (b *Builder) buildFor(s *parsetree.For) (*For, error) {
	b.syms.Enter()
	defer b.syms.Exit()

	init, err := b.buildAssign(s.Init)
	if err != nil {
		return nil, err
	}
	cond, err := b.buildExpr(s.Cond)
	if err != nil {
		return nil, err
	}
	incr, err := b.buildAssign(s.Incr)
	if err != nil {
		return nil, err
	}
	body, err := b.buildStmtBlock(s.Body, s.Line)
	if err != nil {
		return nil, err
	}

	return &For{Init: init, Cond: cond, Incr: incr, Body: body, Line: s.Line}, nil
}

func (b *Builder) buildReturn(s *parsetree.Return) (*Return, error) {
	var val Expr
	if s.Value != nil {
		v, err := b.buildExpr(s.Value)
		if err != nil {
			return nil, err
		}
		val = v
	}
	return &Return{Value: val, Line: s.Line}, nil
}

func (b *Builder) buildExpr(e parsetree.Expr) (Expr, error) {
	switch e := e.(type) {
	case *parsetree.Int:
		return &LiteralInt{exprBase: b.base(e.Line), Value: e.Value}, nil
	case *parsetree.Bool:
		return &LiteralBool{exprBase: b.base(e.Line), Value: e.Value}, nil
	case *parsetree.Ident:
		sym := b.syms.Lookup(e.Line, e.Name)
		return &VarAccess{exprBase: b.base(e.Line), Sym: sym}, nil
	case *parsetree.Index:
		sym := b.syms.Lookup(e.Line, e.Name)
		idx, err := b.buildExpr(e.Index)
		if err != nil {
			return nil, err
		}
		return &ArrayAccess{exprBase: b.base(e.Line), Sym: sym, Index: idx}, nil
	case *parsetree.Call:
		return b.buildCall(e)
	case *parsetree.Unary:
		x, err := b.buildExpr(e.X)
		if err != nil {
			return nil, err
		}
		return &OpExpr{exprBase: b.base(e.Line), OpKind: OpNOT, Lhs: x}, nil
	case *parsetree.Binary:
		l, err := b.buildExpr(e.L)
		if err != nil {
			return nil, err
		}
		r, err := b.buildExpr(e.R)
		if err != nil {
			return nil, err
		}
		op, ok := opFromToken(e.Op)
		if !ok {
			return nil, errors.New("ast: unknown operator %q", e.Op)
		}
		return &OpExpr{exprBase: b.base(e.Line), OpKind: op, Lhs: l, Rhs: r}, nil
	default:
		return nil, errors.New("ast: unknown expr %T", e)
	}
}

func (b *Builder) buildCall(e *parsetree.Call) (*Call, error) {
	callee := b.syms.Lookup(e.Line, e.Name)
	args := make([]Expr, len(e.Args))
	for i, a := range e.Args {
		ae, err := b.buildExpr(a)
		if err != nil {
			return nil, err
		}
		args[i] = ae
	}
	return &Call{exprBase: b.base(e.Line), Callee: callee, Args: args}, nil
}

func (b *Builder) base(line int) exprBase {
	b.next++
	return exprBase{id: b.next, line: line}
}

func opFromToken(op string) (Op, bool) {
	switch op {
	case ">=":
		return OpGE, true
	case "<=":
		return OpLE, true
	case "!=":
		return OpNE, true
	case "==":
		return OpEQ, true
	case ">":
		return OpGT, true
	case "<":
		return OpLT, true
	case "+":
		return OpADD, true
	case "-":
		return OpSUB, true
	case "*":
		return OpMUL, true
	case "/":
		return OpDIV, true
	case "&&":
		return OpAND, true
	case "||":
		return OpOR, true
	}
	return "", false
}
