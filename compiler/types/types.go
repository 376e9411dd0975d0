// Package types implements the closed set of Crux types (spec §3) and the
// typed operations of the type checker (spec §4.2).
//
// The original reference implementation dispatches these operations through
// virtual methods on a Type base class, one override per variant (double
// dispatch). Per spec §9's design note, this is re-architected as a tagged
// union (a single Type struct with a Kind discriminant) and exhaustive
// pattern matching (a type switch on Kind) inside each operation function;
// the "default: return Error" arm plays the role of the base class's
// fallback method body.
package types

import "fmt"

type Kind int

const (
	Int Kind = iota
	Bool
	Void
	Array
	Func
	Error
)

// Type is an immutable value describing a Crux type. Zero value is not a
// valid Type; use the constructors below.
type Type struct {
	Kind Kind

	// Array
	Base   *Type
	Extent uint64

	// Func
	Params []Type
	Ret    *Type

	// Error
	Msg string
}

func NewInt() Type  { return Type{Kind: Int} }
func NewBool() Type { return Type{Kind: Bool} }
func NewVoid() Type { return Type{Kind: Void} }

func NewArray(base Type, extent uint64) Type {
	b := base
	return Type{Kind: Array, Base: &b, Extent: extent}
}

func NewFunc(params []Type, ret Type) Type {
	r := ret
	return Type{Kind: Func, Params: params, Ret: &r}
}

func NewError(format string, args ...any) Type {
	return Type{Kind: Error, Msg: fmt.Sprintf(format, args...)}
}

func (t Type) IsError() bool { return t.Kind == Error }

func (t Type) String() string {
	switch t.Kind {
	case Int:
		return "int"
	case Bool:
		return "bool"
	case Void:
		return "void"
	case Array:
		return fmt.Sprintf("array[%d,%s]", t.Extent, t.Base)
	case Func:
		return fmt.Sprintf("func(%s):%s", paramsString(t.Params), t.Ret)
	case Error:
		return fmt.Sprintf("error(%s)", t.Msg)
	}
	return "<invalid>"
}

func paramsString(ps []Type) string {
	s := ""
	for i, p := range ps {
		if i > 0 {
			s += ","
		}
		s += p.String()
	}
	return s
}

// Equivalent implements structural equivalence (spec §3): arrays compare by
// base type only (extent is metadata); function types are never equivalent
// to anything, per spec §9's open question — only Call's argument-list
// comparison is required, so FuncType.equivalent never needs to return true.
func (t Type) Equivalent(other Type) bool {
	switch t.Kind {
	case Int, Bool, Void:
		return other.Kind == t.Kind
	case Array:
		return other.Kind == Array && t.Base.Equivalent(*other.Base)
	case Func:
		return false
	default:
		return false
	}
}

func paramsEquivalent(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equivalent(b[i]) {
			return false
		}
	}
	return true
}

func cannot(op string, a, b Type) Type {
	return NewError("cannot %s %s with %s", op, a, b)
}

// Add, Sub, Mul, Div: Int op Int -> Int.
func Add(a, b Type) Type { return arith("add", a, b) }
func Sub(a, b Type) Type { return arith("sub", a, b) }
func Mul(a, b Type) Type { return arith("mul", a, b) }
func Div(a, b Type) Type { return arith("div", a, b) }

func arith(op string, a, b Type) Type {
	if a.Kind == Int && b.Kind == Int {
		return NewInt()
	}
	return cannot(op, a, b)
}

// Order backs <, <=, >, >=: Int op Int only, per spec §4.2's table — unlike
// equality, ordering does not extend to Bool.
func Order(a, b Type) Type {
	if a.Kind == Int && b.Kind == Int {
		return NewBool()
	}
	return cannot("order", a, b)
}

// Equal backs ==, !=: same-variant scalars, spec §4.2's table ("same-variant
// scalars" — Int op Int or Bool op Bool, not Array/Func/Void).
func Equal(a, b Type) Type {
	switch a.Kind {
	case Int, Bool:
		if a.Kind == b.Kind {
			return NewBool()
		}
	}
	return cannot("compare", a, b)
}

// And, Or: Bool op Bool -> Bool.
func And(a, b Type) Type { return logical("and", a, b) }
func Or(a, b Type) Type  { return logical("or", a, b) }

func logical(op string, a, b Type) Type {
	if a.Kind == Bool && b.Kind == Bool {
		return NewBool()
	}
	return cannot(op, a, b)
}

// Not: Bool -> Bool.
func Not(a Type) Type {
	if a.Kind == Bool {
		return NewBool()
	}
	return NewError("cannot not %s", a)
}

// Index: Array[T,_] indexed by Int -> T.
func Index(arr, idx Type) Type {
	if arr.Kind == Array && idx.Kind == Int {
		return *arr.Base
	}
	return cannot("index", arr, idx)
}

// Assign: lhs equivalent to rhs -> lhs type.
func Assign(lhs, rhs Type) Type {
	if lhs.Equivalent(rhs) {
		return lhs
	}
	return cannot("assign", lhs, rhs)
}

// Call: Func(params, ret) with an arg list structurally equivalent to
// params -> ret.
func Call(callee Type, args []Type) Type {
	if callee.Kind != Func {
		return NewError("cannot call %s", callee)
	}
	if !paramsEquivalent(callee.Params, args) {
		return NewError("cannot call %s with (%s)", callee, paramsString(args))
	}
	return *callee.Ret
}
