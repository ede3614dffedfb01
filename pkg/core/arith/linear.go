// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package arith

import (
	"cmp"
	"slices"

	"github.com/gomlx/layoutsuggest/pkg/core/dtypes"
	"github.com/gomlx/layoutsuggest/pkg/core/expr"
)

// term is `coef * atom`.
type term struct {
	coef int64
	atom expr.Expr
}

// linearForm is `sum(terms) + base`. Atoms are unique (structurally) and coefficients non-zero.
type linearForm struct {
	dtype dtypes.DType
	terms []term
	base  int64
}

func constForm(dtype dtypes.DType, value int64) *linearForm {
	return &linearForm{dtype: dtype, base: value}
}

func atomForm(atom expr.Expr, coef int64) *linearForm {
	lf := &linearForm{dtype: atom.DType()}
	if coef != 0 {
		lf.terms = []term{{coef: coef, atom: atom}}
	}
	return lf
}

// linearize splits e into its linear form, without simplifying the atoms.
func linearize(e expr.Expr) *linearForm {
	switch e.Kind() {
	case expr.KindIntImm:
		v, _ := expr.AsConstInt(e)
		return constForm(e.DType(), v)
	case expr.KindAdd, expr.KindSub:
		bin := e.(*expr.Binary)
		lhs, rhs := linearize(bin.A), linearize(bin.B)
		if bin.Op == expr.KindSub {
			rhs = rhs.scaled(-1)
		}
		return lhs.plus(rhs)
	case expr.KindMul:
		bin := e.(*expr.Binary)
		if c, ok := expr.AsConstInt(bin.B); ok {
			return linearize(bin.A).scaled(c)
		}
		if c, ok := expr.AsConstInt(bin.A); ok {
			return linearize(bin.B).scaled(c)
		}
	}
	return atomForm(e, 1)
}

func (lf *linearForm) clone() *linearForm {
	return &linearForm{dtype: lf.dtype, terms: slices.Clone(lf.terms), base: lf.base}
}

func (lf *linearForm) asConst() (int64, bool) {
	if len(lf.terms) > 0 {
		return 0, false
	}
	return lf.base, true
}

func (lf *linearForm) addTerm(t term) {
	for i := range lf.terms {
		if expr.Equal(lf.terms[i].atom, t.atom) {
			lf.terms[i].coef += t.coef
			if lf.terms[i].coef == 0 {
				lf.terms = slices.Delete(lf.terms, i, i+1)
			}
			return
		}
	}
	if t.coef != 0 {
		lf.terms = append(lf.terms, t)
	}
}

func (lf *linearForm) plus(other *linearForm) *linearForm {
	result := lf.clone()
	if len(lf.terms) == 0 {
		result.dtype = other.dtype
	} else if len(other.terms) > 0 {
		result.dtype = dtypes.Promote(lf.dtype, other.dtype)
	}
	for _, t := range other.terms {
		result.addTerm(t)
	}
	result.base += other.base
	return result
}

func (lf *linearForm) scaled(c int64) *linearForm {
	result := &linearForm{dtype: lf.dtype, base: lf.base * c}
	if c == 0 {
		return result
	}
	result.terms = make([]term, len(lf.terms))
	for i, t := range lf.terms {
		result.terms[i] = term{coef: t.coef * c, atom: t.atom}
	}
	return result
}

// gcdWith returns the greatest common divisor of c and all coefficients and base.
func (lf *linearForm) gcdWith(c int64) int64 {
	g := expr.GCD(c, lf.base)
	for _, t := range lf.terms {
		g = expr.GCD(g, t.coef)
	}
	return g
}

// divided assumes g divides all coefficients and the base.
func (lf *linearForm) divided(g int64) *linearForm {
	result := &linearForm{dtype: lf.dtype, base: lf.base / g, terms: make([]term, len(lf.terms))}
	for i, t := range lf.terms {
		result.terms[i] = term{coef: t.coef / g, atom: t.atom}
	}
	return result
}

// splitDivisible separates the terms whose coefficients are multiple of c (returned divided by c in
// quotient) from the others (returned in rest). The bases are left as 0.
func (lf *linearForm) splitDivisible(c int64) (quotient, rest *linearForm) {
	quotient = &linearForm{dtype: lf.dtype}
	rest = &linearForm{dtype: lf.dtype}
	for _, t := range lf.terms {
		if t.coef%c == 0 {
			quotient.terms = append(quotient.terms, term{coef: t.coef / c, atom: t.atom})
		} else {
			rest.terms = append(rest.terms, t)
		}
	}
	return
}

// singleAtom returns the atom if lf is exactly `1*atom`.
func (lf *linearForm) singleAtom() (expr.Expr, bool) {
	if lf.base != 0 || len(lf.terms) != 1 || lf.terms[0].coef != 1 {
		return nil, false
	}
	return lf.terms[0].atom, true
}

func (lf *linearForm) asNestedDivision() (inner expr.Expr, divisor int64, ok bool) {
	return lf.asNested(expr.KindFloorDiv)
}

func (lf *linearForm) asNestedModulo() (inner expr.Expr, modulo int64, ok bool) {
	return lf.asNested(expr.KindFloorMod)
}

func (lf *linearForm) asNested(op expr.Kind) (inner expr.Expr, c int64, ok bool) {
	atom, isAtom := lf.singleAtom()
	if !isAtom || atom.Kind() != op {
		return nil, 0, false
	}
	bin := atom.(*expr.Binary)
	c, ok = expr.AsConstInt(bin.B)
	if !ok || c <= 0 {
		return nil, 0, false
	}
	return bin.A, c, true
}

// toExpr builds the expression: terms are ordered by decreasing magnitude of their coefficients
// (stable), followed by the constant.
func (lf *linearForm) toExpr() expr.Expr {
	terms := slices.Clone(lf.terms)
	slices.SortStableFunc(terms, func(a, b term) int {
		return cmp.Compare(absInt(b.coef), absInt(a.coef))
	})
	var result expr.Expr
	for _, t := range terms {
		switch {
		case result == nil:
			result = expr.Mul(t.atom, expr.Const(t.atom.DType(), t.coef))
		case t.coef > 0:
			result = expr.Add(result, expr.Mul(t.atom, expr.Const(t.atom.DType(), t.coef)))
		default:
			result = expr.Sub(result, expr.Mul(t.atom, expr.Const(t.atom.DType(), -t.coef)))
		}
	}
	if result == nil {
		return expr.Const(lf.dtype, lf.base)
	}
	switch {
	case lf.base > 0:
		result = expr.Add(result, expr.Const(lf.dtype, lf.base))
	case lf.base < 0:
		result = expr.Sub(result, expr.Const(lf.dtype, -lf.base))
	}
	return result
}

func absInt(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

// Term is one `Coef * Atom` element of a linear expression, see Linearize.
type Term struct {
	Coef int64
	Atom expr.Expr
}

// Linearize splits e into `sum(terms) + base`, where atoms are structurally unique and the coefficients
// constants. It doesn't simplify: call Analyzer.Simplify first to get a canonical form.
//
// Terms are returned in the order the atoms first appear in e.
func Linearize(e expr.Expr) (terms []Term, base int64) {
	lf := linearize(e)
	terms = make([]Term, len(lf.terms))
	for i, t := range lf.terms {
		terms[i] = Term{Coef: t.coef, Atom: t.atom}
	}
	return terms, lf.base
}
