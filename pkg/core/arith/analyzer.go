// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package arith implements an Analyzer: a context that tracks the ranges of variables and simplifies
// index expressions using them.
//
// The simplifier normalizes integer expressions to a sum of `coefficient * atom` terms plus a constant,
// where atoms are variables, floor-divisions, floor-modulos or non-linear products. With the variables'
// bounds it then removes divisions and modulos that can't wrap around, e.g.:
//
//	// With i in [0, 4) and j in [0, 8):
//	floormod(i*8 + j, 8)  ->  j
//	floordiv(i*8 + j, 8)  ->  i
//
// It's not a general purpose symbolic engine: it handles the affine index arithmetic that shows up in
// buffer accesses of loop nests.
package arith

import (
	"fmt"
	"maps"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/layoutsuggest/pkg/core/expr"
)

// Range of a variable, given by its minimum value and its extent: [Min, Min+Extent).
type Range struct {
	Min, Extent expr.Expr
}

// RangeFromMinExtent creates a Range.
func RangeFromMinExtent(min, extent expr.Expr) Range {
	if min == nil || extent == nil {
		exceptions.Panicf("arith.RangeFromMinExtent(%v, %v): min and extent must be given", min, extent)
	}
	return Range{Min: min, Extent: extent}
}

// RangeFromExtent creates a Range starting at 0, with the dtype of the extent.
func RangeFromExtent(extent expr.Expr) Range {
	return RangeFromMinExtent(expr.Const(extent.DType(), 0), extent)
}

// String implements fmt.Stringer.
func (r Range) String() string {
	return fmt.Sprintf("range(min=%s, ext=%s)", r.Min, r.Extent)
}

// Analyzer holds the known ranges of variables and uses them to simplify expressions.
//
// It is mutable shared state: it is not safe for concurrent use. Analyses sharing an Analyzer must
// be serialized, or use one Analyzer each.
type Analyzer struct {
	ranges map[*expr.Var]Range
	bounds map[*expr.Var]Bound
}

// NewAnalyzer creates an empty Analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		ranges: make(map[*expr.Var]Range),
		bounds: make(map[*expr.Var]Bound),
	}
}

// Clone returns an independent copy of the analyzer: bindings on the copy don't affect the original.
func (a *Analyzer) Clone() *Analyzer {
	return &Analyzer{
		ranges: maps.Clone(a.ranges),
		bounds: maps.Clone(a.bounds),
	}
}

// Bind records that v takes values in the range r. A previous binding of v is overridden.
func (a *Analyzer) Bind(v *expr.Var, r Range) {
	a.ranges[v] = r
	minBound := a.ConstIntBound(r.Min)
	extentBound := a.ConstIntBound(r.Extent)
	b := Bound{Min: minBound.Min, Max: PosInf}
	if extentBound.Max != PosInf && minBound.Max != PosInf {
		b.Max = satAdd(minBound.Max, extentBound.Max-1)
	}
	a.bounds[v] = b
}

// BindAll binds each variable to the corresponding range.
func (a *Analyzer) BindAll(vars []*expr.Var, ranges []Range) {
	if len(vars) != len(ranges) {
		exceptions.Panicf("Analyzer.BindAll: %d variables given, but %d ranges", len(vars), len(ranges))
	}
	for i, v := range vars {
		a.Bind(v, ranges[i])
	}
}

// RangeOf returns the range bound to v, if any.
func (a *Analyzer) RangeOf(v *expr.Var) (Range, bool) {
	r, found := a.ranges[v]
	return r, found
}

// CanProve returns whether cond simplifies to True.
func (a *Analyzer) CanProve(cond expr.Expr) bool {
	return expr.IsTrue(a.Simplify(cond))
}

// CanProveEqual returns whether lhs-rhs simplifies to 0.
func (a *Analyzer) CanProveEqual(lhs, rhs expr.Expr) bool {
	return expr.IsConstInt(a.Simplify(expr.Sub(lhs, rhs)), 0)
}

// Simplify returns an equivalent, simplified, version of e.
func (a *Analyzer) Simplify(e expr.Expr) expr.Expr {
	if e == nil {
		exceptions.Panicf("Analyzer.Simplify(nil)")
	}
	switch e.Kind() {
	case expr.KindIntImm, expr.KindBoolImm, expr.KindVar:
		return e
	case expr.KindAdd, expr.KindSub, expr.KindMul:
		return a.linearOf(e).toExpr()
	case expr.KindNot:
		return expr.LogicalNot(a.Simplify(e.(*expr.Not).A))
	}

	bin := e.(*expr.Binary)
	switch bin.Op {
	case expr.KindFloorDiv:
		return a.simplifyFloorDiv(a.Simplify(bin.A), a.Simplify(bin.B))
	case expr.KindFloorMod:
		return a.simplifyFloorMod(a.Simplify(bin.A), a.Simplify(bin.B))
	case expr.KindMin, expr.KindMax:
		return a.simplifyMinMax(bin.Op, a.Simplify(bin.A), a.Simplify(bin.B))
	case expr.KindLT, expr.KindLE, expr.KindEQ, expr.KindNE:
		return a.simplifyComparison(bin.Op, bin.A, bin.B)
	case expr.KindAnd, expr.KindOr:
		return expr.Build(bin.Op, a.Simplify(bin.A), a.Simplify(bin.B))
	}
	exceptions.Panicf("Analyzer.Simplify: unknown operation %s in %s", bin.Op, e)
	return nil
}

// linearOf simplifies the operands of e and returns its linear form.
func (a *Analyzer) linearOf(e expr.Expr) *linearForm {
	switch e.Kind() {
	case expr.KindIntImm:
		v, _ := expr.AsConstInt(e)
		return constForm(e.DType(), v)
	case expr.KindAdd, expr.KindSub:
		bin := e.(*expr.Binary)
		lhs, rhs := a.linearOf(bin.A), a.linearOf(bin.B)
		if bin.Op == expr.KindSub {
			rhs = rhs.scaled(-1)
		}
		return lhs.plus(rhs)
	case expr.KindMul:
		bin := e.(*expr.Binary)
		lhs, rhs := a.linearOf(bin.A), a.linearOf(bin.B)
		if c, ok := lhs.asConst(); ok {
			return rhs.scaled(c)
		}
		if c, ok := rhs.asConst(); ok {
			return lhs.scaled(c)
		}
		return atomForm(expr.Mul(lhs.toExpr(), rhs.toExpr()), 1)
	}
	return linearize(a.Simplify(e))
}

func (a *Analyzer) linearBound(lf *linearForm) Bound {
	b := Exactly(lf.base)
	for _, t := range lf.terms {
		b = b.add(a.ConstIntBound(t.atom).scale(t.coef))
	}
	return b
}

func (a *Analyzer) simplifyFloorDiv(x, y expr.Expr) expr.Expr {
	c, ok := expr.AsConstInt(y)
	if !ok || c <= 0 {
		if xb, yb := a.ConstIntBound(x), a.ConstIntBound(y); xb.Min >= 0 && yb.Min > 0 && xb.Max < yb.Min {
			return expr.Const(x.DType(), 0)
		}
		return expr.FloorDiv(x, y)
	}
	lf := linearize(x)
	if g := lf.gcdWith(c); g > 1 {
		lf = lf.divided(g)
		c /= g
	}
	if c == 1 {
		return lf.toExpr()
	}

	// floordiv(c*q + r, c) == q + floordiv(r, c), for any integer r.
	quotient, rest := lf.splitDivisible(c)
	quotient.base = expr.FloorDivInt(lf.base, c)
	rest.base = expr.FloorModInt(lf.base, c)

	restBound := a.linearBound(rest)
	if restBound.IsFinite() {
		lo, hi := expr.FloorDivInt(restBound.Min, c), expr.FloorDivInt(restBound.Max, c)
		if lo == hi {
			quotient.base += lo
			return quotient.toExpr()
		}
	}

	var divided expr.Expr
	if inner, innerDivisor, nested := rest.asNestedDivision(); nested {
		// floordiv(floordiv(z, c1), c) == floordiv(z, c1*c) for positive divisors.
		divided = expr.FloorDiv(inner, expr.Const(y.DType(), innerDivisor*c))
	} else {
		divided = expr.FloorDiv(rest.toExpr(), expr.Const(y.DType(), c))
	}
	return quotient.plus(atomForm(divided, 1)).toExpr()
}

func (a *Analyzer) simplifyFloorMod(x, y expr.Expr) expr.Expr {
	c, ok := expr.AsConstInt(y)
	if !ok || c <= 0 {
		if xb, yb := a.ConstIntBound(x), a.ConstIntBound(y); xb.Min >= 0 && yb.Min > 0 && xb.Max < yb.Min {
			return x
		}
		return expr.FloorMod(x, y)
	}
	lf := linearize(x)
	if g := lf.gcdWith(c); g > 1 {
		// floormod(g*z, g*c') == g*floormod(z, c')
		inner := a.simplifyFloorMod(lf.divided(g).toExpr(), expr.Const(y.DType(), c/g))
		return linearize(inner).scaled(g).toExpr()
	}
	if c == 1 {
		return expr.Const(x.DType(), 0)
	}

	_, rest := lf.splitDivisible(c)
	rest.base = expr.FloorModInt(lf.base, c)
	restBound := a.linearBound(rest)
	if restBound.IsFinite() {
		lo, hi := expr.FloorDivInt(restBound.Min, c), expr.FloorDivInt(restBound.Max, c)
		if lo == hi {
			rest.base -= lo * c
			return rest.toExpr()
		}
	}
	if inner, innerModulo, nested := rest.asNestedModulo(); nested && innerModulo%c == 0 {
		// floormod(floormod(z, k*c), c) == floormod(z, c)
		return a.simplifyFloorMod(inner, expr.Const(y.DType(), c))
	}
	return expr.FloorMod(rest.toExpr(), expr.Const(y.DType(), c))
}

func (a *Analyzer) simplifyMinMax(op expr.Kind, x, y expr.Expr) expr.Expr {
	xb, yb := a.ConstIntBound(x), a.ConstIntBound(y)
	switch {
	case xb.Max <= yb.Min:
		if op == expr.KindMin {
			return x
		}
		return y
	case yb.Max <= xb.Min:
		if op == expr.KindMin {
			return y
		}
		return x
	}
	return expr.Build(op, x, y)
}

func (a *Analyzer) simplifyComparison(op expr.Kind, x, y expr.Expr) expr.Expr {
	diff := a.Simplify(expr.Sub(x, y))
	b := a.ConstIntBound(diff)
	switch op {
	case expr.KindLT:
		if b.Max < 0 {
			return expr.True
		} else if b.Min >= 0 {
			return expr.False
		}
	case expr.KindLE:
		if b.Max <= 0 {
			return expr.True
		} else if b.Min > 0 {
			return expr.False
		}
	case expr.KindEQ, expr.KindNE:
		equal := b.IsConst() && b.Min == 0
		differ := !b.Contains(0)
		if equal || differ {
			return expr.Bool(equal == (op == expr.KindEQ))
		}
	}
	return expr.Build(op, a.Simplify(x), a.Simplify(y))
}
