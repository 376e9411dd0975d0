package ir

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/cruxlang/crux/compiler/ast"
	"github.com/cruxlang/crux/compiler/typecheck"
	"github.com/cruxlang/crux/compiler/types"
)

// pair is the lowering primitive of ASTLower.java: a fragment of CFG with
// one entry instruction, one exit instruction whose successor is still
// unset, and optionally the Value the fragment computed. Composing two
// fragments is end.setNext(0, next.start); here that's wireNext below.
type pair struct {
	start InstID
	end   InstID
	value Value
}

type lowering struct {
	prog     *Program
	fn       *Function
	res      *typecheck.Result
	slots    map[*ast.Symbol]int
	numSlots int

	// currLoopExit mirrors ASTLower.java's field of the same name, but is
	// saved and restored around each nested For (spec §4.3 requires this;
	// the Java reference does not, which is a bug a nested loop's break
	// would expose there but must not here).
	currLoopExit InstID
}

// Lower implements spec §4.3: one Function per ast.FunctionDefn, built by
// walking its body and threading instruction-pair fragments together the
// way ASTLower.java's visit methods do.
func Lower(ctx context.Context, f *ast.File, res *typecheck.Result) (prog *Program, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "ir.Lower")
	defer tr.Finish("err", &err)

	prog = NewProgram()

	for _, d := range f.Decls {
		switch d := d.(type) {
		case *ast.VariableDecl:
			prog.Globals = append(prog.Globals, GlobalDecl{Name: d.Sym.Name})
		case *ast.ArrayDecl:
			prog.Globals = append(prog.Globals, GlobalDecl{Name: d.Sym.Name, IsArray: true, Extent: d.Sym.Type.Extent})
		}
	}

	for _, d := range f.Decls {
		fd, ok := d.(*ast.FunctionDefn)
		if !ok {
			continue
		}
		fn := lowerFunction(prog, fd, res)
		prog.Functions = append(prog.Functions, fn)
	}

	tr.Printw("lowered program", "globals", len(prog.Globals), "funcs", len(prog.Functions))
	return prog, nil
}

func lowerFunction(prog *Program, fd *ast.FunctionDefn, res *typecheck.Result) *Function {
	fn := &Function{Name: fd.Sym.Name, NumParams: len(fd.Params)}
	l := &lowering{prog: prog, fn: fn, res: res, slots: map[*ast.Symbol]int{}, currLoopExit: NoInst}

	for _, p := range fd.Params {
		l.slot(p)
	}

	entry := fn.Alloc(Instruction{Kind: KindNop, Next: [2]InstID{NoInst, NoInst}})
	body := l.lowerStmtList(fd.Body)
	wireNext(fn, entry, body.start)

	// Fall off the end of a void function: an implicit return.
	ret := fn.Alloc(Instruction{Kind: KindReturn, Next: [2]InstID{NoInst, NoInst}})
	wireNext(fn, body.end, ret)

	fn.Entry = entry
	fn.NumLocals = l.numSlots
	return fn
}

func (l *lowering) slot(sym *ast.Symbol) int {
	if s, ok := l.slots[sym]; ok {
		return s
	}
	s := l.numSlots
	l.numSlots++
	l.slots[sym] = s
	return s
}

// isLocal reports whether sym already has a stack slot — i.e. is a
// parameter or a local variable declared inside the current function.
// A symbol that has never been registered this way is a global (spec's
// VariableDecl is dual-purpose: a top-level Decl is always global, but the
// same node type also appears as a local-declaration Stmt, so globalness
// has to be decided by "was this added as a local", not by node type).
func (l *lowering) isLocal(sym *ast.Symbol) bool {
	_, ok := l.slots[sym]
	return ok
}

// freshAddr allocates a temporary address-var slot, mirroring
// Function.getTempAddressVar in ASTLower.java.
func (l *lowering) freshAddr() *AddressVar {
	slot := l.numSlots
	l.numSlots++
	return &AddressVar{Slot: slot}
}

// nop allocates a placeholder instruction used as the empty start/end of a
// fragment with no instructions of its own (e.g. an empty stmt list).
func (l *lowering) nop() InstID {
	return l.fn.Alloc(Instruction{Kind: KindNop, Next: [2]InstID{NoInst, NoInst}})
}

// wireNext sets an instruction's single successor, except for KindJump
// instructions whose two successors are wired explicitly by the caller.
// A ReturnInst is left without a successor.
func wireNext(fn *Function, from, to InstID) {
	if fn.At(from).Kind == KindReturn {
		return
	}
	fn.At(from).Next[0] = to
}

func (l *lowering) lowerStmtList(list *ast.StmtList) pair {
	if len(list.Stmts) == 0 {
		n := l.nop()
		return pair{start: n, end: n}
	}

	first := l.lowerStmt(list.Stmts[0])
	prevEnd := first.end
	start := first.start
	for _, s := range list.Stmts[1:] {
		next := l.lowerStmt(s)
		wireNext(l.fn, prevEnd, next.start)
		prevEnd = next.end
	}
	return pair{start: start, end: prevEnd}
}

func (l *lowering) lowerStmt(s ast.Stmt) pair {
	switch s := s.(type) {
	case *ast.VariableDecl:
		l.slot(s.Sym)
		n := l.nop()
		return pair{start: n, end: n}
	case *ast.Assignment:
		return l.lowerAssign(s)
	case *ast.CallStmt:
		return l.lowerCallStmt(s)
	case *ast.IfElse:
		return l.lowerIf(s)
	case *ast.For:
		return l.lowerFor(s)
	case *ast.Break:
		return l.lowerBreak(s)
	case *ast.Return:
		return l.lowerReturn(s)
	default:
		n := l.nop()
		return pair{start: n, end: n}
	}
}

func (l *lowering) lowerAssign(s *ast.Assignment) pair {
	switch loc := s.Loc.(type) {
	case *ast.VarAccess:
		val := l.lowerExpr(s.Value)
		if !l.isLocal(loc.Sym) {
			addr := l.fn.Alloc(Instruction{
				Kind: KindAddressAt,
				Dst:  l.freshAddr(),
				Base: loc.Sym.Name,
				Next: [2]InstID{NoInst, NoInst},
			})
			wireNext(l.fn, val.end, addr)
			store := l.fn.Alloc(Instruction{
				Kind: KindStore,
				Dst:  l.fn.At(addr).Dst,
				Src0: val.value,
				Next: [2]InstID{NoInst, NoInst},
			})
			wireNext(l.fn, addr, store)
			return pair{start: val.start, end: store}
		}

		slot := l.slot(loc.Sym)
		copy := l.fn.Alloc(Instruction{
			Kind: KindCopy,
			Dst:  &LocalVar{Slot: slot, Name: loc.Sym.Name},
			Src0: val.value,
			Next: [2]InstID{NoInst, NoInst},
		})
		wireNext(l.fn, val.end, copy)
		return pair{start: val.start, end: copy}
	case *ast.ArrayAccess:
		idx := l.lowerExpr(loc.Index)
		val := l.lowerExpr(s.Value)
		wireNext(l.fn, idx.end, val.start)
		addr := l.fn.Alloc(Instruction{
			Kind:  KindAddressAt,
			Dst:   l.freshAddr(),
			Base:  loc.Sym.Name,
			Index: idx.value,
			Next:  [2]InstID{NoInst, NoInst},
		})
		wireNext(l.fn, val.end, addr)
		store := l.fn.Alloc(Instruction{
			Kind: KindStore,
			Dst:  l.fn.At(addr).Dst,
			Src0: val.value,
			Next: [2]InstID{NoInst, NoInst},
		})
		wireNext(l.fn, addr, store)
		return pair{start: idx.start, end: store}
	default:
		n := l.nop()
		return pair{start: n, end: n}
	}
}

func (l *lowering) lowerCallStmt(s *ast.CallStmt) pair {
	return l.lowerCall(s.Call)
}

func (l *lowering) lowerIf(s *ast.IfElse) pair {
	cond := l.lowerExpr(s.Cond)
	thenFrag := l.lowerStmtList(s.Then)

	join := l.nop()

	if s.Else == nil {
		// false branch skips straight to join.
		jmp := l.fn.Alloc(Instruction{Kind: KindJump, Src0: cond.value, Next: [2]InstID{join, thenFrag.start}})
		wireNext(l.fn, cond.end, jmp)
		wireNext(l.fn, thenFrag.end, join)
		return pair{start: cond.start, end: join}
	}

	elseFrag := l.lowerStmtList(s.Else)
	jmp := l.fn.Alloc(Instruction{Kind: KindJump, Src0: cond.value, Next: [2]InstID{elseFrag.start, thenFrag.start}})
	wireNext(l.fn, cond.end, jmp)
	wireNext(l.fn, thenFrag.end, join)
	wireNext(l.fn, elseFrag.end, join)
	return pair{start: cond.start, end: join}
}

func (l *lowering) lowerFor(s *ast.For) pair {
	init := l.lowerAssign(s.Init)
	cond := l.lowerExpr(s.Cond)
	wireNext(l.fn, init.end, cond.start)

	exit := l.nop()

	savedExit := l.currLoopExit
	l.currLoopExit = exit

	body := l.lowerStmtList(s.Body)
	incr := l.lowerAssign(s.Incr)
	wireNext(l.fn, body.end, incr.start)
	wireNext(l.fn, incr.end, cond.start)

	l.currLoopExit = savedExit

	jmp := l.fn.Alloc(Instruction{Kind: KindJump, Src0: cond.value, Next: [2]InstID{exit, body.start}})
	wireNext(l.fn, cond.end, jmp)

	return pair{start: init.start, end: exit}
}

func (l *lowering) lowerBreak(s *ast.Break) pair {
	n := l.nop()
	wireNext(l.fn, n, l.currLoopExit)
	// The fragment's end is a separate, unreachable Nop, so whatever the
	// caller wires after the break cannot overwrite its edge to the exit.
	return pair{start: n, end: l.nop()}
}

func (l *lowering) lowerReturn(s *ast.Return) pair {
	if s.Value == nil {
		ret := l.fn.Alloc(Instruction{Kind: KindReturn, Next: [2]InstID{NoInst, NoInst}})
		return pair{start: ret, end: ret}
	}
	val := l.lowerExpr(s.Value)
	ret := l.fn.Alloc(Instruction{Kind: KindReturn, Src0: val.value, HasValue: true, Next: [2]InstID{NoInst, NoInst}})
	wireNext(l.fn, val.end, ret)
	return pair{start: val.start, end: ret}
}

func (l *lowering) lowerExpr(e ast.Expr) pair {
	switch e := e.(type) {
	case *ast.LiteralInt:
		n := l.nop()
		return pair{start: n, end: n, value: l.prog.InternInt(e.Value)}
	case *ast.LiteralBool:
		n := l.nop()
		return pair{start: n, end: n, value: l.prog.InternBool(e.Value)}
	case *ast.VarAccess:
		return l.lowerVarAccess(e)
	case *ast.ArrayAccess:
		return l.lowerArrayAccess(e)
	case *ast.Call:
		return l.lowerCall(e)
	case *ast.OpExpr:
		return l.lowerOpExpr(e)
	default:
		n := l.nop()
		return pair{start: n, end: n}
	}
}

func (l *lowering) lowerVarAccess(e *ast.VarAccess) pair {
	if !l.isLocal(e.Sym) {
		addr := l.fn.Alloc(Instruction{
			Kind: KindAddressAt,
			Dst:  l.freshAddr(),
			Base: e.Sym.Name,
			Next: [2]InstID{NoInst, NoInst},
		})
		dst := l.freshLocal()
		load := l.fn.Alloc(Instruction{Kind: KindLoad, Dst: dst, Src0: l.fn.At(addr).Dst, Next: [2]InstID{NoInst, NoInst}})
		wireNext(l.fn, addr, load)
		return pair{start: addr, end: load, value: dst}
	}

	slot := l.slot(e.Sym)
	n := l.nop()
	return pair{start: n, end: n, value: &LocalVar{Slot: slot, Name: e.Sym.Name}}
}

func (l *lowering) lowerArrayAccess(e *ast.ArrayAccess) pair {
	idx := l.lowerExpr(e.Index)
	addr := l.fn.Alloc(Instruction{
		Kind:  KindAddressAt,
		Dst:   l.freshAddr(),
		Base:  e.Sym.Name,
		Index: idx.value,
		Next:  [2]InstID{NoInst, NoInst},
	})
	wireNext(l.fn, idx.end, addr)

	dst := l.freshLocal()
	load := l.fn.Alloc(Instruction{Kind: KindLoad, Dst: dst, Src0: l.fn.At(addr).Dst, Next: [2]InstID{NoInst, NoInst}})
	wireNext(l.fn, addr, load)

	return pair{start: idx.start, end: load, value: dst}
}

func (l *lowering) lowerCall(e *ast.Call) pair {
	var start, prevEnd InstID
	args := make([]Value, len(e.Args))

	for i, a := range e.Args {
		frag := l.lowerExpr(a)
		args[i] = frag.value
		if i == 0 {
			start = frag.start
		} else {
			wireNext(l.fn, prevEnd, frag.start)
		}
		prevEnd = frag.end
	}

	dst := Value(nil)
	if e.Callee.Type.Ret != nil && e.Callee.Type.Ret.Kind != types.Void {
		dst = l.freshLocal()
	}

	call := l.fn.Alloc(Instruction{Kind: KindCall, Dst: dst, Callee: e.Callee.Name, Args: args, Next: [2]InstID{NoInst, NoInst}})
	if len(e.Args) == 0 {
		start = call
	} else {
		wireNext(l.fn, prevEnd, call)
	}

	return pair{start: start, end: call, value: dst}
}

func (l *lowering) lowerOpExpr(e *ast.OpExpr) pair {
	if e.OpKind == ast.OpNOT {
		x := l.lowerExpr(e.Lhs)
		dst := l.freshLocal()
		not := l.fn.Alloc(Instruction{Kind: KindUnaryNot, Dst: dst, Src0: x.value, Next: [2]InstID{NoInst, NoInst}})
		wireNext(l.fn, x.end, not)
		return pair{start: x.start, end: not, value: dst}
	}

	if e.OpKind == ast.OpAND || e.OpKind == ast.OpOR {
		return l.lowerShortCircuit(e)
	}

	lhs := l.lowerExpr(e.Lhs)
	rhs := l.lowerExpr(e.Rhs)
	wireNext(l.fn, lhs.end, rhs.start)

	dst := l.freshLocal()
	kind := KindBinaryOperator
	if isCompareOp(e.OpKind) {
		kind = KindCompare
	}
	inst := l.fn.Alloc(Instruction{Kind: kind, Dst: dst, Src0: lhs.value, Src1: rhs.value, Op: binOp(e.OpKind), Next: [2]InstID{NoInst, NoInst}})
	wireNext(l.fn, rhs.end, inst)

	return pair{start: lhs.start, end: inst, value: dst}
}

// lowerShortCircuit lowers && and || as a JumpInst on the lhs, matching
// ASTLower.java's OpExpr visit: the rhs is only evaluated on the branch
// where its value could change the result, and the result is materialized
// into a fresh local from both converging paths via two copies.
func (l *lowering) lowerShortCircuit(e *ast.OpExpr) pair {
	lhs := l.lowerExpr(e.Lhs)
	dst := l.freshLocal()
	join := l.nop()

	rhs := l.lowerExpr(e.Rhs)
	copyRHS := l.fn.Alloc(Instruction{Kind: KindCopy, Dst: dst, Src0: rhs.value, Next: [2]InstID{NoInst, NoInst}})
	wireNext(l.fn, rhs.end, copyRHS)
	wireNext(l.fn, copyRHS, join)

	var shortVal Value = l.prog.InternBool(e.OpKind == ast.OpOR)
	shortCopy := l.fn.Alloc(Instruction{Kind: KindCopy, Dst: dst, Src0: shortVal, Next: [2]InstID{NoInst, NoInst}})
	wireNext(l.fn, shortCopy, join)

	var jmp InstID
	if e.OpKind == ast.OpAND {
		jmp = l.fn.Alloc(Instruction{Kind: KindJump, Src0: lhs.value, Next: [2]InstID{shortCopy, rhs.start}})
	} else {
		jmp = l.fn.Alloc(Instruction{Kind: KindJump, Src0: lhs.value, Next: [2]InstID{rhs.start, shortCopy}})
	}
	wireNext(l.fn, lhs.end, jmp)

	return pair{start: lhs.start, end: join, value: dst}
}

// freshLocal allocates a new anonymous temporary slot for an
// intermediate value (an expression result with no source-level name).
func (l *lowering) freshLocal() *LocalVar {
	slot := l.numSlots
	l.numSlots++
	return &LocalVar{Slot: slot, Name: "$t"}
}

func isCompareOp(op ast.Op) bool {
	switch op {
	case ast.OpGE, ast.OpLE, ast.OpNE, ast.OpEQ, ast.OpGT, ast.OpLT:
		return true
	}
	return false
}

func binOp(op ast.Op) BinOp {
	switch op {
	case ast.OpADD:
		return OpAdd
	case ast.OpSUB:
		return OpSub
	case ast.OpMUL:
		return OpMul
	case ast.OpDIV:
		return OpDiv
	case ast.OpGE:
		return OpGE
	case ast.OpLE:
		return OpLE
	case ast.OpNE:
		return OpNE
	case ast.OpEQ:
		return OpEQ
	case ast.OpGT:
		return OpGT
	case ast.OpLT:
		return OpLT
	}
	return OpAdd
}
