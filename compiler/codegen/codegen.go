// Package codegen implements spec §4.4: a stack-based, unoptimised x86-64
// AT&T-syntax code generator, grounded line-for-line on CodeGen.java, with
// one deliberate fix spec §9 calls out: stack-passed call arguments are
// popped immediately after the `call` instruction that pushed them, not
// deferred to ReturnInst via a callParamsNum field shared across every call
// in the function (the Java reference's bug — the last call's argument
// count silently governs every return's cleanup).
package codegen

import (
	"context"
	"fmt"
	"strings"

	"tlog.app/go/tlog"

	"github.com/cruxlang/crux/compiler/ir"
)

// Generate lowers prog to a complete a.s-shaped assembly listing.
func Generate(ctx context.Context, prog *ir.Program) (asm string, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "codegen.Generate")
	defer tr.Finish("err", &err)

	var b strings.Builder

	for _, g := range prog.Globals {
		size := int64(8)
		if g.IsArray {
			size = int64(g.Extent) * 8
		}
		fmt.Fprintf(&b, ".comm %s, %d, 8\n", g.Name, size)
	}

	for _, fn := range prog.Functions {
		g := &funcGen{fn: fn, out: &b}
		g.generate()
	}

	tr.Printw("generated assembly", "bytes", b.Len())
	return b.String(), nil
}

type funcGen struct {
	fn     *ir.Function
	out    *strings.Builder
	labels map[ir.InstID]string
	nextID int
}

func (g *funcGen) emit(format string, args ...any) {
	fmt.Fprintf(g.out, "\t"+format+"\n", args...)
}

func (g *funcGen) label(s string) {
	fmt.Fprintf(g.out, "%s:\n", s)
}

// offset returns the stack offset, in slots, of a LocalVar/AddressVar. IR
// slots are already dense integers assigned at lowering time, so unlike
// CodeGen.java's on-demand varIndexMap, no first-use bookkeeping pass is
// needed here — slot 0 is always -8(%rbp), slot 1 is -16(%rbp), and so on.
func offset(slot int) int { return slot + 1 }

func (g *funcGen) generate() {
	g.labels = g.assignLabels()

	g.out.WriteString(".globl " + g.fn.Name + "\n")
	g.label(g.fn.Name)

	numVars := g.fn.NumLocals
	if numVars%2 == 1 {
		numVars++
	}
	g.emit("enter $(8 * %d), $0", numVars)

	argRegs := []string{"%rdi", "%rsi", "%rdx", "%rcx", "%r8", "%r9"}
	for i := 0; i < g.fn.NumParams; i++ {
		off := offset(i)
		if i < 6 {
			g.emit("movq %s, -8*%d(%%rbp)", argRegs[i], off)
		} else {
			g.emit("movq 8*%d-40(%%rbp), %%r10", i+1)
			g.emit("movq %%r10, -8*%d(%%rbp)", off)
		}
	}

	visited := map[ir.InstID]bool{}
	stack := []ir.InstID{g.fn.Entry}
	visited[g.fn.Entry] = true

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if lbl, ok := g.labels[id]; ok {
			g.label(lbl)
		}

		inst := g.fn.At(id)
		g.visit(id, inst)

		nexts := g.numNext(inst)
		if nexts == 0 {
			g.emit("leave")
			g.emit("ret")
			continue
		}

		for i := nexts - 1; i >= 0; i-- {
			next := inst.Next[i]
			if next == ir.NoInst {
				continue
			}
			if !visited[next] {
				visited[next] = true
				stack = append(stack, next)
			} else {
				g.emit("jmp %s", g.labelFor(next))
			}
		}
	}
}

func (g *funcGen) numNext(inst *ir.Instruction) int {
	if inst.Kind == ir.KindReturn {
		return 0
	}
	if inst.Kind == ir.KindJump {
		return 2
	}
	return 1
}

// assignLabels preallocates a label for every instruction with more than
// one incoming edge: the only instructions the DFS linearization below can
// reach a second time, and so the only ones that need a name to jump back
// to (mirroring Function.assignLabels's join-point labelling).
func (g *funcGen) assignLabels() map[ir.InstID]string {
	indeg := map[ir.InstID]int{}
	for id := range g.fn.Insts {
		inst := &g.fn.Insts[id]
		n := g.numNext(inst)
		for i := 0; i < n; i++ {
			next := inst.Next[i]
			if next != ir.NoInst {
				indeg[next]++
			}
		}
	}

	labels := map[ir.InstID]string{}
	for id, d := range indeg {
		if d > 1 {
			labels[id] = g.newLabel()
		}
	}
	return labels
}

func (g *funcGen) labelFor(id ir.InstID) string {
	if lbl, ok := g.labels[id]; ok {
		return lbl
	}
	lbl := g.newLabel()
	g.labels[id] = lbl
	return lbl
}

func (g *funcGen) newLabel() string {
	g.nextID++
	return fmt.Sprintf(".L%s_%d", g.fn.Name, g.nextID)
}

func (g *funcGen) visit(id ir.InstID, inst *ir.Instruction) {
	switch inst.Kind {
	case ir.KindAddressAt:
		g.visitAddressAt(inst)
	case ir.KindBinaryOperator:
		g.visitBinaryOperator(inst)
	case ir.KindCompare:
		g.visitCompare(inst)
	case ir.KindCopy:
		g.visitCopy(inst)
	case ir.KindJump:
		g.visitJump(id, inst)
	case ir.KindLoad:
		g.visitLoad(inst)
	case ir.KindStore:
		g.visitStore(inst)
	case ir.KindCall:
		g.visitCall(inst)
	case ir.KindUnaryNot:
		g.visitUnaryNot(inst)
	case ir.KindReturn:
		g.visitReturn(inst)
	case ir.KindNop:
		// does nothing
	}
}

func (g *funcGen) visitAddressAt(inst *ir.Instruction) {
	dstOff := offset(inst.Dst.(*ir.AddressVar).Slot)

	g.emit("movq %s@GOTPCREL(%%rip), %%r11", inst.Base)
	if inst.Index != nil {
		g.emit("movq %s, %%r10", g.operand(inst.Index))
		g.emit("imulq $8, %%r10")
		g.emit("addq %%r10, %%r11")
	}
	g.emit("movq %%r11, -8*%d(%%rbp)", dstOff)
}

func (g *funcGen) visitBinaryOperator(inst *ir.Instruction) {
	lhs := g.operand(inst.Src0)
	rhs := g.operand(inst.Src1)
	dstOff := offset(inst.Dst.(*ir.LocalVar).Slot)

	switch inst.Op {
	case ir.OpAdd:
		g.emit("movq %s, %%r10", lhs)
		g.emit("addq %s, %%r10", rhs)
	case ir.OpSub:
		g.emit("movq %s, %%r10", lhs)
		g.emit("subq %s, %%r10", rhs)
	case ir.OpMul:
		g.emit("movq %s, %%r10", lhs)
		g.emit("imulq %s, %%r10", rhs)
	case ir.OpDiv:
		g.emit("movq %s, %%rax", lhs)
		g.emit("cqto")
		g.emit("idivq %s", rhs)
		g.emit("movq %%rax, -8*%d(%%rbp)", dstOff)
		return
	}
	g.emit("movq %%r10, -8*%d(%%rbp)", dstOff)
}

func (g *funcGen) visitCompare(inst *ir.Instruction) {
	lhs := g.operand(inst.Src0)
	rhs := g.operand(inst.Src1)
	dstOff := offset(inst.Dst.(*ir.LocalVar).Slot)

	g.emit("movq $1, %%r10")
	g.emit("movq $0, %%rax")
	g.emit("movq %s, %%r11", lhs)
	g.emit("cmp %s, %%r11", rhs)

	cc := map[ir.BinOp]string{
		ir.OpGE: "cmovge", ir.OpGT: "cmovg",
		ir.OpLE: "cmovle", ir.OpLT: "cmovl",
		ir.OpEQ: "cmove", ir.OpNE: "cmovne",
	}[inst.Op]
	g.emit("%s %%r10, %%rax", cc)
	g.emit("movq %%rax, -8*%d(%%rbp)", dstOff)
}

func (g *funcGen) visitCopy(inst *ir.Instruction) {
	dstOff := offset(inst.Dst.(*ir.LocalVar).Slot)

	switch src := inst.Src0.(type) {
	case *ir.IntegerConstant:
		g.emit("movq $%d, -8*%d(%%rbp)", src.Value, dstOff)
	case *ir.BooleanConstant:
		v := 0
		if src.Value {
			v = 1
		}
		g.emit("movq $%d, -8*%d(%%rbp)", v, dstOff)
	default:
		g.emit("movq %s, %%r10", g.operand(inst.Src0))
		g.emit("movq %%r10, -8*%d(%%rbp)", dstOff)
	}
}

func (g *funcGen) visitJump(id ir.InstID, inst *ir.Instruction) {
	g.emit("movq %s, %%r10", g.operand(inst.Src0))
	g.emit("cmp $1, %%r10")
	g.emit("je %s", g.labelFor(inst.Next[1]))
}

func (g *funcGen) visitLoad(inst *ir.Instruction) {
	srcOff := offset(inst.Src0.(*ir.AddressVar).Slot)
	dstOff := offset(inst.Dst.(*ir.LocalVar).Slot)
	g.emit("movq -8*%d(%%rbp), %%r11", srcOff)
	g.emit("movq 0(%%r11), %%r10")
	g.emit("movq %%r10, -8*%d(%%rbp)", dstOff)
}

func (g *funcGen) visitStore(inst *ir.Instruction) {
	dstOff := offset(inst.Dst.(*ir.AddressVar).Slot)
	g.emit("movq -8*%d(%%rbp), %%r11", dstOff)
	g.emit("movq %s, %%r10", g.operand(inst.Src0))
	g.emit("movq %%r10, 0(%%r11)")
}

func (g *funcGen) visitUnaryNot(inst *ir.Instruction) {
	valOff := offset(inst.Src0.(*ir.LocalVar).Slot)
	dstOff := offset(inst.Dst.(*ir.LocalVar).Slot)
	g.emit("movq $1, %%r11")
	g.emit("subq -8*%d(%%rbp), %%r11", valOff)
	g.emit("movq %%r11, -8*%d(%%rbp)", dstOff)
}

func (g *funcGen) visitReturn(inst *ir.Instruction) {
	if inst.HasValue {
		g.emit("movq %s, %%rax", g.operand(inst.Src0))
	}
}

// visitCall spills the callee's arguments per the System V AMD64 ABI (first
// six in registers, the rest pushed right-to-left above the frame with
// padding to keep the call 16-byte aligned) and, unlike CodeGen.java,
// balances the pushed bytes immediately after `call` rather than waiting
// for the enclosing function's ReturnInst.
func (g *funcGen) visitCall(inst *ir.Instruction) {
	n := len(inst.Args)
	padded := n > 6 && n%2 == 1
	if padded {
		g.emit("push $0")
	}

	argRegs := []string{"%rdi", "%rsi", "%rdx", "%rcx", "%r8", "%r9"}
	for i := 0; i < n && i < 6; i++ {
		g.emit("movq %s, %s", g.operand(inst.Args[i]), argRegs[i])
	}
	for i := n - 1; i >= 6; i-- {
		g.emit("push %s", g.operand(inst.Args[i]))
	}

	g.emit("call %s", inst.Callee)

	extra := n - 6
	if extra > 0 {
		popBytes := extra
		if padded {
			popBytes++
		}
		for j := 0; j < popBytes; j++ {
			g.emit("pop %%r10")
		}
	}

	if inst.Dst != nil {
		dstOff := offset(inst.Dst.(*ir.LocalVar).Slot)
		g.emit("movq %%rax, -8*%d(%%rbp)", dstOff)
	}
}

func (g *funcGen) operand(v ir.Value) string {
	switch v := v.(type) {
	case *ir.LocalVar:
		return fmt.Sprintf("-8*%d(%%rbp)", offset(v.Slot))
	case *ir.AddressVar:
		return fmt.Sprintf("-8*%d(%%rbp)", offset(v.Slot))
	case *ir.IntegerConstant:
		return fmt.Sprintf("$%d", v.Value)
	case *ir.BooleanConstant:
		if v.Value {
			return "$1"
		}
		return "$0"
	}
	return "$0"
}
