// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package expr defines symbolic integer (and boolean) expressions used to describe buffer indices,
// strides, loop bounds and predicates.
//
// Expressions are immutable trees. Leaves are constants (IntImm, BoolImm) and variables (*Var);
// inner nodes are *Binary operations (see Kind) and *Not.
//
// Variables are compared by identity (pointer), never by name: two variables named "i" are
// different variables.
//
// The constructors (Add, Mul, FloorDiv, ...) do light constant folding (e.g. `x*1 -> x`, `2+3 -> 5`),
// but no algebraic simplification: for that see package arith.
//
// Division and modulo are always floor-division and floor-modulo, the semantics used for indices.
package expr

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/layoutsuggest/pkg/core/dtypes"
)

// Kind enumerates the types of nodes of an expression.
type Kind int

const (
	KindInvalid Kind = iota
	KindIntImm
	KindBoolImm
	KindVar
	KindAdd
	KindSub
	KindMul
	KindFloorDiv
	KindFloorMod
	KindMin
	KindMax
	KindLT
	KindLE
	KindEQ
	KindNE
	KindAnd
	KindOr
	KindNot
)

var kindNames = []string{"Invalid", "IntImm", "BoolImm", "Var", "Add", "Sub", "Mul", "FloorDiv",
	"FloorMod", "Min", "Max", "LT", "LE", "EQ", "NE", "And", "Or", "Not"}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// IsComparison returns whether the kind is one of the comparison operators.
func (k Kind) IsComparison() bool {
	return k == KindLT || k == KindLE || k == KindEQ || k == KindNE
}

// IsLogical returns whether the kind is one of the boolean connectives.
func (k Kind) IsLogical() bool {
	return k == KindAnd || k == KindOr || k == KindNot
}

// Expr is a node of a symbolic expression.
//
// The set of implementations is closed: IntImm, BoolImm, *Var, *Binary and *Not.
// Use Kind() to dispatch on the node type.
type Expr interface {
	// Kind of the node.
	Kind() Kind

	// DType of the value of the expression.
	DType() dtypes.DType

	// String pretty-prints the expression.
	String() string

	isExpr()
}

// IntImm is an integer constant.
type IntImm struct {
	Value int64
	Type  dtypes.DType
}

func (IntImm) isExpr() {}
func (IntImm) Kind() Kind { return KindIntImm }
func (c IntImm) DType() dtypes.DType { return c.Type }
func (c IntImm) String() string { return fmt.Sprintf("%d", c.Value) }

// BoolImm is a boolean constant.
type BoolImm struct {
	Value bool
}

func (BoolImm) isExpr() {}
func (BoolImm) Kind() Kind { return KindBoolImm }
func (BoolImm) DType() dtypes.DType { return dtypes.Bool }
func (c BoolImm) String() string {
	if c.Value {
		return "True"
	}
	return "False"
}

// Var is a symbolic variable: loop induction variables, placeholders of index maps or symbolic shape
// dimensions.
type Var struct {
	Name string
	Type dtypes.DType
}

// NewVar creates a new variable. Each call creates a distinct variable, even if the name is the same.
func NewVar(name string, dtype dtypes.DType) *Var {
	if !dtype.IsInt() {
		exceptions.Panicf("expr.NewVar(%q): variables must have an integer dtype, got %s", name, dtype)
	}
	return &Var{Name: name, Type: dtype}
}

// IndexVar creates a new Int32 variable.
func IndexVar(name string) *Var { return NewVar(name, dtypes.Int32) }

func (*Var) isExpr() {}
func (*Var) Kind() Kind { return KindVar }
func (v *Var) DType() dtypes.DType { return v.Type }
func (v *Var) String() string { return v.Name }

// Binary is an operation with two operands: arithmetic, comparisons and logical And/Or.
type Binary struct {
	Op   Kind
	A, B Expr
	Type dtypes.DType
}

func (*Binary) isExpr() {}
func (b *Binary) Kind() Kind { return b.Op }
func (b *Binary) DType() dtypes.DType { return b.Type }

var binarySymbols = map[Kind]string{
	KindAdd: "+",
	KindSub: "-",
	KindMul: "*",
	KindLT:  "<",
	KindLE:  "<=",
	KindEQ:  "==",
	KindNE:  "!=",
	KindAnd: "&&",
	KindOr:  "||",
}

// String implements fmt.Stringer.
func (b *Binary) String() string {
	switch b.Op {
	case KindFloorDiv:
		return fmt.Sprintf("floordiv(%s, %s)", b.A, b.B)
	case KindFloorMod:
		return fmt.Sprintf("floormod(%s, %s)", b.A, b.B)
	case KindMin:
		return fmt.Sprintf("min(%s, %s)", b.A, b.B)
	case KindMax:
		return fmt.Sprintf("max(%s, %s)", b.A, b.B)
	case KindMul:
		return operandString(b.A) + "*" + operandString(b.B)
	}
	return fmt.Sprintf("(%s %s %s)", b.A, binarySymbols[b.Op], b.B)
}

// operandString parenthesizes negative constants inside products.
func operandString(e Expr) string {
	if e.Kind() == KindIntImm && e.(IntImm).Value < 0 {
		return "(" + e.String() + ")"
	}
	return e.String()
}

// Not is the logical negation.
type Not struct {
	A Expr
}

func (*Not) isExpr() {}
func (*Not) Kind() Kind { return KindNot }
func (*Not) DType() dtypes.DType { return dtypes.Bool }
func (n *Not) String() string { return "!" + n.A.String() }

// Const creates an integer constant of the given dtype.
func Const(dtype dtypes.DType, value int64) IntImm {
	if !dtype.IsInt() {
		exceptions.Panicf("expr.Const(%s, %d): constants must have an integer dtype", dtype, value)
	}
	return IntImm{Value: value, Type: dtype}
}

// Int creates an Int32 constant, the default index type.
func Int(value int64) IntImm { return Const(dtypes.Int32, value) }

// Ints converts a list of Go integers to Int32 constants.
func Ints(values ...int) []Expr {
	exprs := make([]Expr, len(values))
	for i, v := range values {
		exprs[i] = Int(int64(v))
	}
	return exprs
}

// Vars converts a list of variables to a list of expressions.
func Vars(vars ...*Var) []Expr {
	exprs := make([]Expr, len(vars))
	for i, v := range vars {
		exprs[i] = v
	}
	return exprs
}

// True and False constants.
var (
	True  Expr = BoolImm{Value: true}
	False Expr = BoolImm{Value: false}
)

// Bool creates a boolean constant.
func Bool(value bool) Expr {
	if value {
		return True
	}
	return False
}

// AsConstInt returns the value of e if it is an integer constant.
func AsConstInt(e Expr) (int64, bool) {
	if e == nil || e.Kind() != KindIntImm {
		return 0, false
	}
	return e.(IntImm).Value, true
}

// AsConstBool returns the value of e if it is a boolean constant.
func AsConstBool(e Expr) (bool, bool) {
	if e == nil || e.Kind() != KindBoolImm {
		return false, false
	}
	return e.(BoolImm).Value, true
}

// IsConstInt returns whether e is the integer constant value.
func IsConstInt(e Expr, value int64) bool {
	v, ok := AsConstInt(e)
	return ok && v == value
}

// IsTrue returns whether e is the literal True. A nil predicate is also considered true.
func IsTrue(e Expr) bool {
	if e == nil {
		return true
	}
	v, ok := AsConstBool(e)
	return ok && v
}

// AsVar returns e as a variable, if it is one.
func AsVar(e Expr) (*Var, bool) {
	if e == nil || e.Kind() != KindVar {
		return nil, false
	}
	return e.(*Var), true
}

// Join pretty-prints a list of expressions separated by ", ".
func Join(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
