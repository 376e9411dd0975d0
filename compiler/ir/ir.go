// Package ir is the intermediate representation of spec §3/§4.3: a
// flat, arena-indexed control-flow graph, one arena per Function, with
// instructions addressed by index rather than pointer (spec §9's design
// note: this sidesteps the cyclic-ownership problem a pointer-linked CFG
// has in Go, generalizing the teacher's own Expr-as-int-index-into-a-slice
// shape from its Func/Package types to a full instruction CFG).
package ir

import "github.com/cespare/xxhash/v2"

// Value is anything an instruction can read or write: a constant, a local
// variable slot, or the address of a variable/array element.
type Value interface {
	valueTag()
}

// IntegerConstant and BooleanConstant are interned per-program (spec §3:
// "constants are interned per-program, identity equality"): two lowerings
// of the literal 3 share the same *IntegerConstant pointer. Program.InternInt
// and InternBool do the hash-consing.
type IntegerConstant struct {
	Value int64
}

func (*IntegerConstant) valueTag() {}

type BooleanConstant struct {
	Value bool
}

func (*BooleanConstant) valueTag() {}

// LocalVar is a scalar stack slot, indexed within its owning Function.
type LocalVar struct {
	Slot int
	Name string
}

func (*LocalVar) valueTag() {}

// AddressVar is the address of a variable or an array element, computed by
// an AddressAt instruction and consumed by Load/Store.
type AddressVar struct {
	Slot int
}

func (*AddressVar) valueTag() {}

// InstID indexes into a Function's instruction arena.
type InstID int

const NoInst InstID = -1

// Instruction is one CFG node. Next holds 0, 1, or 2 successor InstIDs:
// most instructions have exactly one (Next[0]), JumpInst has two (Next[0]
// the false branch, Next[1] the true branch per spec §4.3's short-circuit
// lowering), ReturnInst has none.
type Instruction struct {
	Kind Kind
	Next [2]InstID

	// operands, populated per Kind
	Dst  Value
	Src0 Value
	Src1 Value
	Op   BinOp

	// AddressAt: the addressed global's name (arrays are always declared
	// at package scope in Crux — CodeGen.java's comment that "AddressAt is
	// called only on global array access" holds here too) plus an
	// optional index value (nil for a plain variable's address).
	Base  string
	Index Value

	// CallInst
	Callee string
	Args   []Value

	// ReturnInst
	HasValue bool
}

type Kind int

const (
	KindCopy Kind = iota
	KindBinaryOperator
	KindCompare
	KindUnaryNot
	KindJump
	KindAddressAt
	KindLoad
	KindStore
	KindCall
	KindReturn
	KindNop
)

type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpGE
	OpLE
	OpNE
	OpEQ
	OpGT
	OpLT
	OpAnd
	OpOr
)

// Function is one CFG arena: instructions addressed by InstID, plus the
// slot layout codegen needs (locals in declaration order, parameter count).
type Function struct {
	Name      string
	NumParams int
	NumLocals int
	Entry     InstID
	Insts     []Instruction
}

func (f *Function) Alloc(i Instruction) InstID {
	id := InstID(len(f.Insts))
	f.Insts = append(f.Insts, i)
	return id
}

func (f *Function) At(id InstID) *Instruction { return &f.Insts[id] }

// GlobalDecl is a package-level variable or array (spec §3).
type GlobalDecl struct {
	Name    string
	IsArray bool
	Extent  uint64
}

// Program is the output of Lower: every function plus interned constants.
type Program struct {
	Globals   []GlobalDecl
	Functions []*Function

	constants map[uint64][]constEntry
}

type constEntry struct {
	isBool bool
	ival   int64
	bval   bool
	val    Value
}

func NewProgram() *Program {
	return &Program{constants: map[uint64][]constEntry{}}
}

// InternInt returns the interned *IntegerConstant for v, allocating one on
// first sight. Hashing with xxhash rather than relying on map[int64]...
// directly mirrors the hash-consing shape a symbol table keyed by a fast
// digest would use, generalized from string keys to spec §3's two constant
// kinds.
func (p *Program) InternInt(v int64) *IntegerConstant {
	h := xxhash.Sum64(encodeInt(v))
	for _, e := range p.constants[h] {
		if !e.isBool && e.ival == v {
			return e.val.(*IntegerConstant)
		}
	}
	c := &IntegerConstant{Value: v}
	p.constants[h] = append(p.constants[h], constEntry{ival: v, val: c})
	return c
}

func (p *Program) InternBool(v bool) *BooleanConstant {
	h := xxhash.Sum64(encodeBool(v))
	for _, e := range p.constants[h] {
		if e.isBool && e.bval == v {
			return e.val.(*BooleanConstant)
		}
	}
	c := &BooleanConstant{Value: v}
	p.constants[h] = append(p.constants[h], constEntry{isBool: true, bval: v, val: c})
	return c
}

func encodeInt(v int64) []byte {
	b := make([]byte, 9)
	b[0] = 'i'
	for i := 0; i < 8; i++ {
		b[i+1] = byte(v >> (8 * i))
	}
	return b
}

func encodeBool(v bool) []byte {
	if v {
		return []byte{'b', 1}
	}
	return []byte{'b', 0}
}
