// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package expr

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/layoutsuggest/pkg/core/dtypes"
	"golang.org/x/exp/constraints"
)

// FloorDivInt returns floor(a/b) for integers. It panics if b == 0.
func FloorDivInt[T constraints.Signed](a, b T) T {
	if b == 0 {
		exceptions.Panicf("floor division by zero (%d // 0)", a)
	}
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// FloorModInt returns a - b*floor(a/b) for integers: the result has the sign of b.
// It panics if b == 0.
func FloorModInt[T constraints.Signed](a, b T) T {
	return a - b*FloorDivInt(a, b)
}

// GCD returns the greatest common divisor of |a| and |b|. GCD(0, 0) == 0.
func GCD[T constraints.Signed](a, b T) T {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// binaryDType returns the dtype of an arithmetic operation on a and b.
// An integer constant adopts the dtype of the other operand.
func binaryDType(op Kind, a, b Expr) dtypes.DType {
	if a.DType() == dtypes.Bool || b.DType() == dtypes.Bool {
		exceptions.Panicf("expr.%s(%s, %s): arithmetic operands must be integers, got %s and %s",
			op, a, b, a.DType(), b.DType())
	}
	_, aConst := AsConstInt(a)
	_, bConst := AsConstInt(b)
	switch {
	case aConst && !bConst:
		return b.DType()
	case bConst && !aConst:
		return a.DType()
	}
	return dtypes.Promote(a.DType(), b.DType())
}

func checkNotNil(op Kind, a, b Expr) {
	if a == nil || b == nil {
		exceptions.Panicf("expr.%s(%v, %v): operands cannot be nil", op, a, b)
	}
}

// Add returns a+b.
func Add(a, b Expr) Expr {
	checkNotNil(KindAdd, a, b)
	dtype := binaryDType(KindAdd, a, b)
	av, aOk := AsConstInt(a)
	bv, bOk := AsConstInt(b)
	switch {
	case aOk && bOk:
		return Const(dtype, av+bv)
	case aOk && av == 0:
		return b
	case bOk && bv == 0:
		return a
	}
	return &Binary{Op: KindAdd, A: a, B: b, Type: dtype}
}

// Sub returns a-b.
func Sub(a, b Expr) Expr {
	checkNotNil(KindSub, a, b)
	dtype := binaryDType(KindSub, a, b)
	av, aOk := AsConstInt(a)
	bv, bOk := AsConstInt(b)
	switch {
	case aOk && bOk:
		return Const(dtype, av-bv)
	case bOk && bv == 0:
		return a
	}
	return &Binary{Op: KindSub, A: a, B: b, Type: dtype}
}

// Neg returns -a.
func Neg(a Expr) Expr {
	return Mul(a, Const(a.DType(), -1))
}

// Mul returns a*b.
func Mul(a, b Expr) Expr {
	checkNotNil(KindMul, a, b)
	dtype := binaryDType(KindMul, a, b)
	av, aOk := AsConstInt(a)
	bv, bOk := AsConstInt(b)
	switch {
	case aOk && bOk:
		return Const(dtype, av*bv)
	case (aOk && av == 0) || (bOk && bv == 0):
		return Const(dtype, 0)
	case aOk && av == 1:
		return b
	case bOk && bv == 1:
		return a
	}
	return &Binary{Op: KindMul, A: a, B: b, Type: dtype}
}

// FloorDiv returns floor(a/b). It panics on a literal division by zero.
func FloorDiv(a, b Expr) Expr {
	checkNotNil(KindFloorDiv, a, b)
	dtype := binaryDType(KindFloorDiv, a, b)
	av, aOk := AsConstInt(a)
	bv, bOk := AsConstInt(b)
	switch {
	case bOk && bv == 0:
		exceptions.Panicf("expr.FloorDiv(%s, %s): division by zero", a, b)
	case aOk && bOk:
		return Const(dtype, FloorDivInt(av, bv))
	case bOk && bv == 1:
		return a
	case aOk && av == 0:
		return Const(dtype, 0)
	}
	return &Binary{Op: KindFloorDiv, A: a, B: b, Type: dtype}
}

// FloorMod returns a - b*floor(a/b). It panics on a literal modulo by zero.
func FloorMod(a, b Expr) Expr {
	checkNotNil(KindFloorMod, a, b)
	dtype := binaryDType(KindFloorMod, a, b)
	av, aOk := AsConstInt(a)
	bv, bOk := AsConstInt(b)
	switch {
	case bOk && bv == 0:
		exceptions.Panicf("expr.FloorMod(%s, %s): modulo by zero", a, b)
	case aOk && bOk:
		return Const(dtype, FloorModInt(av, bv))
	case bOk && (bv == 1 || bv == -1):
		return Const(dtype, 0)
	case aOk && av == 0:
		return Const(dtype, 0)
	}
	return &Binary{Op: KindFloorMod, A: a, B: b, Type: dtype}
}

// Min returns min(a, b).
func Min(a, b Expr) Expr {
	checkNotNil(KindMin, a, b)
	dtype := binaryDType(KindMin, a, b)
	av, aOk := AsConstInt(a)
	bv, bOk := AsConstInt(b)
	if aOk && bOk {
		return Const(dtype, min(av, bv))
	}
	return &Binary{Op: KindMin, A: a, B: b, Type: dtype}
}

// Max returns max(a, b).
func Max(a, b Expr) Expr {
	checkNotNil(KindMax, a, b)
	dtype := binaryDType(KindMax, a, b)
	av, aOk := AsConstInt(a)
	bv, bOk := AsConstInt(b)
	if aOk && bOk {
		return Const(dtype, max(av, bv))
	}
	return &Binary{Op: KindMax, A: a, B: b, Type: dtype}
}

func compare(op Kind, a, b Expr) Expr {
	checkNotNil(op, a, b)
	binaryDType(op, a, b) // Validates operands.
	av, aOk := AsConstInt(a)
	bv, bOk := AsConstInt(b)
	if aOk && bOk {
		switch op {
		case KindLT:
			return Bool(av < bv)
		case KindLE:
			return Bool(av <= bv)
		case KindEQ:
			return Bool(av == bv)
		case KindNE:
			return Bool(av != bv)
		}
	}
	return &Binary{Op: op, A: a, B: b, Type: dtypes.Bool}
}

// LT returns a < b.
func LT(a, b Expr) Expr { return compare(KindLT, a, b) }

// LE returns a <= b.
func LE(a, b Expr) Expr { return compare(KindLE, a, b) }

// GT returns a > b, expressed as b < a.
func GT(a, b Expr) Expr { return compare(KindLT, b, a) }

// GE returns a >= b, expressed as b <= a.
func GE(a, b Expr) Expr { return compare(KindLE, b, a) }

// EQ returns a == b.
func EQ(a, b Expr) Expr { return compare(KindEQ, a, b) }

// NE returns a != b.
func NE(a, b Expr) Expr { return compare(KindNE, a, b) }

func checkBool(op Kind, exprs ...Expr) {
	for _, e := range exprs {
		if e == nil || e.DType() != dtypes.Bool {
			exceptions.Panicf("expr.%s: operands must be booleans, got %v", op, e)
		}
	}
}

// And returns the logical a && b.
func And(a, b Expr) Expr {
	checkBool(KindAnd, a, b)
	av, aOk := AsConstBool(a)
	bv, bOk := AsConstBool(b)
	switch {
	case aOk && !av, bOk && !bv:
		return False
	case aOk:
		return b
	case bOk:
		return a
	}
	return &Binary{Op: KindAnd, A: a, B: b, Type: dtypes.Bool}
}

// Or returns the logical a || b.
func Or(a, b Expr) Expr {
	checkBool(KindOr, a, b)
	av, aOk := AsConstBool(a)
	bv, bOk := AsConstBool(b)
	switch {
	case aOk && av, bOk && bv:
		return True
	case aOk:
		return b
	case bOk:
		return a
	}
	return &Binary{Op: KindOr, A: a, B: b, Type: dtypes.Bool}
}

// LogicalNot returns !a.
func LogicalNot(a Expr) Expr {
	checkBool(KindNot, a)
	if v, ok := AsConstBool(a); ok {
		return Bool(!v)
	}
	if a.Kind() == KindNot {
		return a.(*Not).A
	}
	return &Not{A: a}
}

// Sum returns the sum of all terms, or the zero constant of the given dtype if there are none.
func Sum(dtype dtypes.DType, terms ...Expr) Expr {
	var result Expr = Const(dtype, 0)
	for _, term := range terms {
		result = Add(result, term)
	}
	return result
}

// Build rebuilds a binary node of the given kind with new operands, going through the folding
// constructors.
func Build(op Kind, a, b Expr) Expr {
	switch op {
	case KindAdd:
		return Add(a, b)
	case KindSub:
		return Sub(a, b)
	case KindMul:
		return Mul(a, b)
	case KindFloorDiv:
		return FloorDiv(a, b)
	case KindFloorMod:
		return FloorMod(a, b)
	case KindMin:
		return Min(a, b)
	case KindMax:
		return Max(a, b)
	case KindLT, KindLE, KindEQ, KindNE:
		return compare(op, a, b)
	case KindAnd:
		return And(a, b)
	case KindOr:
		return Or(a, b)
	}
	exceptions.Panicf("expr.Build(%s): not a binary operation", op)
	return nil
}
