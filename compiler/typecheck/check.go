// Package typecheck implements spec §4.2: a walk over the ast that attaches
// an inferred Type to every expression and checks every statement for the
// contextual rules TypeChecker.java enforces (break-outside-loop, return
// value/type agreement, main's signature, parameter-type restriction).
//
// Per spec §9's design note the AST is immutable; inferred types live in a
// side map keyed by ast.ExprID rather than a mutated field on the node.
package typecheck

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/cruxlang/crux/compiler/ast"
	"github.com/cruxlang/crux/compiler/diag"
	"github.com/cruxlang/crux/compiler/types"
)

// Result is the output of Check: a type for every expression in the file.
type Result struct {
	types map[ast.ExprID]types.Type
}

func (r *Result) TypeOf(e ast.Expr) types.Type { return r.types[e.ExprID()] }

func (r *Result) set(e ast.Expr, t types.Type) types.Type {
	r.types[e.ExprID()] = t
	return t
}

type checker struct {
	diags  *diag.Bag
	result *Result
	inLoop int
	fnRet  types.Type
	fnLine int
	fnVoid bool
}

// Check walks f, collecting TypeErrors into diags, and returns the
// expression-to-type map.
func Check(ctx context.Context, f *ast.File, diags *diag.Bag) (res *Result, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "typecheck.Check")
	defer tr.Finish("err", &err)

	c := &checker{diags: diags, result: &Result{types: map[ast.ExprID]types.Type{}}}
	for _, d := range f.Decls {
		c.checkDecl(d)
	}
	tr.Printw("checked file", "decls", len(f.Decls))
	return c.result, nil
}

func (c *checker) checkDecl(d ast.Decl) {
	switch d := d.(type) {
	case *ast.VariableDecl, *ast.ArrayDecl:
		// Declared types are validated at build time (ast.Build already
		// turned an invalid type name into an Error type); nothing further
		// to check here.
	case *ast.FunctionDefn:
		c.checkFuncDefn(d)
	}
}

func (c *checker) checkFuncDefn(d *ast.FunctionDefn) {
	if d.Sym.Name == "main" {
		if d.Sym.Type.Ret.Kind != types.Void {
			c.diags.Addf(diag.TypeError, d.Line, "main must have type void")
		}
		if len(d.Params) != 0 {
			c.diags.Addf(diag.TypeError, d.Line, "main must have no arguments")
		}
	}

	for _, p := range d.Params {
		if p.Type.Kind != types.Int && p.Type.Kind != types.Bool {
			c.diags.Addf(diag.TypeError, p.Line, "%s has invalid type %s for a parameter", p.Name, p.Type)
		}
	}

	savedRet, savedLine, savedVoid := c.fnRet, c.fnLine, c.fnVoid
	c.fnRet, c.fnLine, c.fnVoid = *d.Sym.Type.Ret, d.Line, d.Sym.Type.Ret.Kind == types.Void

	c.checkStmtList(d.Body)

	c.fnRet, c.fnLine, c.fnVoid = savedRet, savedLine, savedVoid
}

func (c *checker) checkStmtList(l *ast.StmtList) {
	for _, s := range l.Stmts {
		c.checkStmt(s)
	}
}

func (c *checker) checkStmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.VariableDecl:
		// nothing to check
	case *ast.Assignment:
		lt := c.checkExpr(s.Loc)
		rt := c.checkExpr(s.Value)
		if res := types.Assign(lt, rt); res.IsError() {
			c.diags.Addf(diag.TypeError, s.Line, "%s", res.Msg)
		}
	case *ast.CallStmt:
		c.checkCall(s.Call)
	case *ast.IfElse:
		ct := c.checkExpr(s.Cond)
		if ct.Kind != types.Bool {
			c.diags.Addf(diag.TypeError, s.Line, "if condition has non-bool type %s", ct)
		}
		c.checkStmtList(s.Then)
		if s.Else != nil {
			c.checkStmtList(s.Else)
		}
	case *ast.For:
		c.inLoop++
		c.checkStmt(s.Init)
		ct := c.checkExpr(s.Cond)
		if ct.Kind != types.Bool {
			c.diags.Addf(diag.TypeError, s.Line, "for condition has non-bool type %s", ct)
		}
		c.checkStmt(s.Incr)
		c.checkStmtList(s.Body)
		c.inLoop--
	case *ast.Break:
		if c.inLoop == 0 {
			c.diags.Addf(diag.TypeError, s.Line, "break statement not in loop")
		}
	case *ast.Return:
		var vt types.Type
		if s.Value != nil {
			vt = c.checkExpr(s.Value)
		} else {
			vt = types.NewVoid()
		}
		if c.fnVoid {
			c.diags.Addf(diag.TypeError, s.Line, "return not allowed in a void function")
		} else if !vt.Equivalent(c.fnRet) {
			c.diags.Addf(diag.TypeError, s.Line, "return statement has type %s, expected %s", vt, c.fnRet)
		}
	}
}

func (c *checker) checkExpr(e ast.Expr) types.Type {
	switch e := e.(type) {
	case *ast.LiteralInt:
		return c.result.set(e, types.NewInt())
	case *ast.LiteralBool:
		return c.result.set(e, types.NewBool())
	case *ast.VarAccess:
		if e.Sym.Err {
			return c.result.set(e, types.NewError("unresolved symbol %s", e.Sym.Name))
		}
		return c.result.set(e, e.Sym.Type)
	case *ast.ArrayAccess:
		idxT := c.checkExpr(e.Index)
		arrT := e.Sym.Type
		res := types.Index(arrT, idxT)
		if res.IsError() {
			c.diags.Addf(diag.TypeError, e.ExprLine(), "%s", res.Msg)
		}
		return c.result.set(e, res)
	case *ast.Call:
		return c.result.set(e, c.checkCall(e))
	case *ast.OpExpr:
		return c.result.set(e, c.checkOpExpr(e))
	}
	return types.NewError("unknown expr")
}

func (c *checker) checkCall(call *ast.Call) types.Type {
	args := make([]types.Type, len(call.Args))
	for i, a := range call.Args {
		args[i] = c.checkExpr(a)
	}
	if call.Callee.Err {
		return types.NewError("unresolved function %s", call.Callee.Name)
	}
	res := types.Call(call.Callee.Type, args)
	if res.IsError() {
		c.diags.Addf(diag.TypeError, call.ExprLine(), "%s", res.Msg)
	}
	return res
}

func (c *checker) checkOpExpr(e *ast.OpExpr) types.Type {
	lt := c.checkExpr(e.Lhs)
	if e.OpKind == ast.OpNOT {
		res := types.Not(lt)
		if res.IsError() {
			c.diags.Addf(diag.TypeError, e.ExprLine(), "%s", res.Msg)
		}
		return res
	}

	rt := c.checkExpr(e.Rhs)
	var res types.Type
	switch e.OpKind {
	case ast.OpADD:
		res = types.Add(lt, rt)
	case ast.OpSUB:
		res = types.Sub(lt, rt)
	case ast.OpMUL:
		res = types.Mul(lt, rt)
	case ast.OpDIV:
		res = types.Div(lt, rt)
	case ast.OpGE, ast.OpLE, ast.OpGT, ast.OpLT:
		res = types.Order(lt, rt)
	case ast.OpEQ, ast.OpNE:
		res = types.Equal(lt, rt)
	case ast.OpAND:
		res = types.And(lt, rt)
	case ast.OpOR:
		res = types.Or(lt, rt)
	default:
		res = types.NewError("unknown operator %s", e.OpKind)
	}
	if res.IsError() {
		c.diags.Addf(diag.TypeError, e.ExprLine(), "%s", res.Msg)
	}
	return res
}
