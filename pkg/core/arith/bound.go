// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package arith

import (
	"fmt"
	"math"

	"github.com/gomlx/layoutsuggest/pkg/core/expr"
)

const (
	// NegInf represents an unbounded minimum.
	NegInf = int64(math.MinInt64)

	// PosInf represents an unbounded maximum.
	PosInf = int64(math.MaxInt64)
)

// Bound is an inclusive interval [Min, Max] of the values an integer expression can take.
// NegInf and PosInf mark unbounded sides.
type Bound struct {
	Min, Max int64
}

// Everything is the unbounded interval.
var Everything = Bound{Min: NegInf, Max: PosInf}

// Exactly returns the bound of a constant.
func Exactly(value int64) Bound { return Bound{Min: value, Max: value} }

// IsConst returns whether the bound holds a single value.
func (b Bound) IsConst() bool { return b.Min == b.Max && b.Min != NegInf && b.Max != PosInf }

// IsFinite returns whether both sides are bounded.
func (b Bound) IsFinite() bool { return b.Min != NegInf && b.Max != PosInf }

// Contains returns whether value is within the bound.
func (b Bound) Contains(value int64) bool { return b.Min <= value && value <= b.Max }

// String implements fmt.Stringer.
func (b Bound) String() string {
	lo, hi := "-inf", "+inf"
	if b.Min != NegInf {
		lo = fmt.Sprintf("%d", b.Min)
	}
	if b.Max != PosInf {
		hi = fmt.Sprintf("%d", b.Max)
	}
	return "[" + lo + ", " + hi + "]"
}

func satNeg(x int64) int64 {
	switch x {
	case NegInf:
		return PosInf
	case PosInf:
		return NegInf
	}
	return -x
}

func satAdd(x, y int64) int64 {
	switch {
	case x == NegInf || y == NegInf:
		return NegInf
	case x == PosInf || y == PosInf:
		return PosInf
	}
	s := x + y
	switch {
	case x > 0 && y > 0 && s < 0:
		return PosInf
	case x < 0 && y < 0 && s >= 0:
		return NegInf
	}
	return s
}

func satMul(x, y int64) int64 {
	if x == 0 || y == 0 {
		return 0
	}
	positive := (x > 0) == (y > 0)
	if x == NegInf || x == PosInf || y == NegInf || y == PosInf {
		if positive {
			return PosInf
		}
		return NegInf
	}
	p := x * y
	if p/y != x || p == NegInf || p == PosInf {
		if positive {
			return PosInf
		}
		return NegInf
	}
	return p
}

// satFloorDiv divides x by a non-zero finite y, keeping infinities.
func satFloorDiv(x, y int64) int64 {
	if x == NegInf || x == PosInf {
		if (x > 0) == (y > 0) {
			return PosInf
		}
		return NegInf
	}
	return expr.FloorDivInt(x, y)
}

func (b Bound) add(o Bound) Bound {
	return Bound{Min: satAdd(b.Min, o.Min), Max: satAdd(b.Max, o.Max)}
}

func (b Bound) neg() Bound {
	return Bound{Min: satNeg(b.Max), Max: satNeg(b.Min)}
}

func (b Bound) mul(o Bound) Bound {
	candidates := [4]int64{satMul(b.Min, o.Min), satMul(b.Min, o.Max), satMul(b.Max, o.Min), satMul(b.Max, o.Max)}
	result := Bound{Min: candidates[0], Max: candidates[0]}
	for _, c := range candidates[1:] {
		result.Min = min(result.Min, c)
		result.Max = max(result.Max, c)
	}
	return result
}

func (b Bound) scale(coef int64) Bound {
	return b.mul(Exactly(coef))
}

func (b Bound) floorDiv(o Bound) Bound {
	if o.Min > 0 && o.IsFinite() {
		candidates := [4]int64{satFloorDiv(b.Min, o.Min), satFloorDiv(b.Min, o.Max),
			satFloorDiv(b.Max, o.Min), satFloorDiv(b.Max, o.Max)}
		result := Bound{Min: candidates[0], Max: candidates[0]}
		for _, c := range candidates[1:] {
			result.Min = min(result.Min, c)
			result.Max = max(result.Max, c)
		}
		return result
	}
	if o.IsConst() && o.Min < 0 {
		return b.neg().floorDiv(o.neg())
	}
	return Everything
}

func (b Bound) floorMod(o Bound) Bound {
	if o.Min > 0 {
		if o.Max == PosInf {
			if b.Min >= 0 {
				return Bound{Min: 0, Max: b.Max}
			}
			return Bound{Min: 0, Max: PosInf}
		}
		result := Bound{Min: 0, Max: o.Max - 1}
		if b.Min >= 0 && b.Max < o.Min {
			// Modulo never wraps around.
			return b
		}
		if b.Min >= 0 {
			result.Max = min(result.Max, b.Max)
		}
		return result
	}
	if o.Max < 0 && o.Min != NegInf {
		return Bound{Min: o.Min + 1, Max: 0}
	}
	return Everything
}

// ConstIntBound returns the bound of the values e can take, given the variables bound to the analyzer.
//
// Unbound variables are bounded only by the range of their dtype.
func (a *Analyzer) ConstIntBound(e expr.Expr) Bound {
	switch e.Kind() {
	case expr.KindIntImm:
		v, _ := expr.AsConstInt(e)
		return Exactly(v)
	case expr.KindBoolImm, expr.KindNot:
		return Bound{Min: 0, Max: 1}
	case expr.KindVar:
		v := e.(*expr.Var)
		if b, found := a.bounds[v]; found {
			return b
		}
		return Bound{Min: v.Type.LowestValue(), Max: v.Type.HighestValue()}
	}

	bin := e.(*expr.Binary)
	if bin.Op.IsComparison() || bin.Op.IsLogical() {
		return Bound{Min: 0, Max: 1}
	}
	lhs, rhs := a.ConstIntBound(bin.A), a.ConstIntBound(bin.B)
	switch bin.Op {
	case expr.KindAdd:
		return lhs.add(rhs)
	case expr.KindSub:
		return lhs.add(rhs.neg())
	case expr.KindMul:
		return lhs.mul(rhs)
	case expr.KindFloorDiv:
		return lhs.floorDiv(rhs)
	case expr.KindFloorMod:
		return lhs.floorMod(rhs)
	case expr.KindMin:
		return Bound{Min: min(lhs.Min, rhs.Min), Max: min(lhs.Max, rhs.Max)}
	case expr.KindMax:
		return Bound{Min: max(lhs.Min, rhs.Min), Max: max(lhs.Max, rhs.Max)}
	}
	return Everything
}
