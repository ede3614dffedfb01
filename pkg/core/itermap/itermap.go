// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package itermap detects affine iteration maps: it rewrites index expressions over loop iterators as
// sums of "splits" of those iterators.
//
// A split takes one "digit" of an iterator: `(source // lowerFactor) % extent * scale`. The source is
// either a loop iterator or, when several splits are fused into one contiguous range, a nested sum.
// For instance, with i in [0, 4) and j in [0, 8), the index `i*8 + j` is detected as:
//
//	IterSum([
//	  IterSplit(IterMark(IterSum([IterSplit(i, lower=1, extent=4, scale=8),
//	                              IterSplit(j, lower=1, extent=8, scale=1)]), extent=32),
//	            lower=1, extent=32, scale=1)
//	], base=0)
//
// Only the affine subset needed by layout analysis is supported: sums of constant multiples of
// iterators and of their floor-division/floor-modulo by constants.
package itermap

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/layoutsuggest/pkg/core/arith"
	"github.com/gomlx/layoutsuggest/pkg/core/expr"
)

// SourceKind tags which field of an IterMark holds its source.
type SourceKind int

const (
	// SourceInvalid is the zero value.
	SourceInvalid SourceKind = iota

	// SourceVar marks a loop iterator: IterMark.Var is set.
	SourceVar

	// SourceSum marks a fused sum of splits: IterMark.Sum is set.
	SourceSum
)

// String implements fmt.Stringer.
func (k SourceKind) String() string {
	switch k {
	case SourceInvalid:
		return "SourceInvalid"
	case SourceVar:
		return "SourceVar"
	case SourceSum:
		return "SourceSum"
	}
	return fmt.Sprintf("SourceKind(%d)", int(k))
}

// IterMark is an iteration source with its extent: the source takes values in [0, Extent).
type IterMark struct {
	Kind   SourceKind
	Var    *expr.Var
	Sum    *IterSumExpr
	Extent expr.Expr
}

// NewVarMark creates a mark for a loop iterator.
func NewVarMark(v *expr.Var, extent expr.Expr) *IterMark {
	return &IterMark{Kind: SourceVar, Var: v, Extent: extent}
}

// NewSumMark creates a mark for a fused sum.
func NewSumMark(sum *IterSumExpr, extent expr.Expr) *IterMark {
	return &IterMark{Kind: SourceSum, Sum: sum, Extent: extent}
}

// Source returns the source of the mark as an expression.
func (m *IterMark) Source() expr.Expr {
	switch m.Kind {
	case SourceVar:
		return m.Var
	case SourceSum:
		return m.Sum.ToExpr()
	}
	exceptions.Panicf("IterMark.Source(): invalid source kind %s", m.Kind)
	return nil
}

// String implements fmt.Stringer.
func (m *IterMark) String() string {
	var source string
	switch m.Kind {
	case SourceVar:
		source = m.Var.String()
	case SourceSum:
		source = m.Sum.String()
	default:
		source = m.Kind.String()
	}
	return fmt.Sprintf("IterMark(%s, extent=%s)", source, m.Extent)
}

// IterSplitExpr represents `(Source // LowerFactor) % Extent * Scale`.
type IterSplitExpr struct {
	Source      *IterMark
	LowerFactor expr.Expr
	Extent      expr.Expr
	Scale       expr.Expr
}

// ToExpr converts the split back to a plain expression.
func (s *IterSplitExpr) ToExpr() expr.Expr {
	e := s.Source.Source()
	if !expr.IsConstInt(s.LowerFactor, 1) {
		e = expr.FloorDiv(e, s.LowerFactor)
	}
	if !s.coversSource() {
		e = expr.FloorMod(e, s.Extent)
	}
	return expr.Mul(e, s.Scale)
}

// coversSource returns whether the split reaches the top of its source, in which case the modulo is a no-op.
func (s *IterSplitExpr) coversSource() bool {
	if expr.IsConstInt(s.LowerFactor, 1) && expr.Equal(s.Extent, s.Source.Extent) {
		return true
	}
	lowerFactor, lfOk := expr.AsConstInt(s.LowerFactor)
	extent, extOk := expr.AsConstInt(s.Extent)
	sourceExtent, srcOk := expr.AsConstInt(s.Source.Extent)
	return lfOk && extOk && srcOk && lowerFactor*extent >= sourceExtent
}

// String implements fmt.Stringer.
func (s *IterSplitExpr) String() string {
	return fmt.Sprintf("IterSplit(%s, lower_factor=%s, extent=%s, scale=%s)",
		s.Source, s.LowerFactor, s.Extent, s.Scale)
}

// IterSumExpr represents `sum(Args) + Base`. Args are ordered by decreasing scale.
type IterSumExpr struct {
	Args []*IterSplitExpr
	Base expr.Expr
}

// ToExpr converts the sum back to a plain expression.
func (s *IterSumExpr) ToExpr() expr.Expr {
	result := s.Base
	for _, arg := range s.Args {
		result = expr.Add(result, arg.ToExpr())
	}
	return result
}

// String implements fmt.Stringer.
func (s *IterSumExpr) String() string {
	parts := make([]string, len(s.Args))
	for i, arg := range s.Args {
		parts[i] = arg.String()
	}
	return fmt.Sprintf("IterSum([%s], base=%s)", strings.Join(parts, ", "), s.Base)
}

// Domains maps loop iterators to their ranges, preserving insertion order so that every
// traversal is deterministic.
type Domains struct {
	vars   []*expr.Var
	ranges map[*expr.Var]arith.Range
}

// NewDomains creates an empty Domains.
func NewDomains() *Domains {
	return &Domains{ranges: make(map[*expr.Var]arith.Range)}
}

// Set the range of v. Setting an existing iterator updates its range but keeps its position.
func (d *Domains) Set(v *expr.Var, r arith.Range) {
	if _, found := d.ranges[v]; !found {
		d.vars = append(d.vars, v)
	}
	d.ranges[v] = r
}

// Range returns the range of v, if it is an iterator.
func (d *Domains) Range(v *expr.Var) (arith.Range, bool) {
	r, found := d.ranges[v]
	return r, found
}

// Vars returns the iterators in insertion order. The returned slice must not be modified.
func (d *Domains) Vars() []*expr.Var {
	return d.vars
}

// Len returns the number of iterators.
func (d *Domains) Len() int {
	return len(d.vars)
}
