// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package itermap

import (
	"slices"

	"github.com/gomlx/layoutsuggest/pkg/core/arith"
	"github.com/gomlx/layoutsuggest/pkg/core/expr"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DetectIterMap rewrites each of the indices as an IterSumExpr over the iterators in inputIters.
//
// All iterators must start at 0. The predicate (nil means true) may only hold conjuncts that either
// are provable under the iterator ranges, or that tighten an iterator's upper bound, like `i < 10`.
//
// Iterators of extent 1 are replaced by their min, 0, and never show up in the splits.
//
// If requireBijective is true, every iterator (of extent > 1) must be used, and the splits of each
// iterator must tile it exactly. Otherwise, splits may leave gaps, but they still can't overlap.
//
// The given analyzer provides the ranges of the free symbols: it is not modified.
//
// It returns an error describing why the indices are not an affine map of the iterators.
// With no indices it returns an empty list.
func DetectIterMap(indices []expr.Expr, inputIters *Domains, predicate expr.Expr, requireBijective bool,
	analyzer *arith.Analyzer) ([]*IterSumExpr, error) {
	d := &detector{
		analyzer:         analyzer.Clone(),
		domains:          inputIters,
		extents:          make(map[*expr.Var]expr.Expr, inputIters.Len()),
		varMarks:         make(map[*expr.Var]*IterMark, inputIters.Len()),
		unitVars:         make(map[*expr.Var]expr.Expr),
		requireBijective: requireBijective,
	}
	if err := d.bindDomains(); err != nil {
		return nil, err
	}
	if err := d.applyPredicate(predicate); err != nil {
		return nil, err
	}

	sums := make([]*IterSumExpr, 0, len(indices))
	for ii, index := range indices {
		sum, err := d.detectSum(expr.Substitute(index, d.unitVars))
		if err != nil {
			return nil, errors.WithMessagef(err, "index #%d (%s)", ii, index)
		}
		sums = append(sums, sum)
	}
	if err := d.checkSplits(sums); err != nil {
		return nil, err
	}
	if klog.V(3).Enabled() {
		for ii, sum := range sums {
			klog.Infof("DetectIterMap: index #%d %s -> %s", ii, indices[ii], sum)
		}
	}
	return sums, nil
}

type detector struct {
	analyzer         *arith.Analyzer
	domains          *Domains
	extents          map[*expr.Var]expr.Expr
	varMarks         map[*expr.Var]*IterMark
	sumMarks         []*IterMark
	unitVars         map[*expr.Var]expr.Expr
	requireBijective bool
}

func (d *detector) bindDomains() error {
	for _, v := range d.domains.Vars() {
		r, _ := d.domains.Range(v)
		if !expr.IsConstInt(d.analyzer.Simplify(r.Min), 0) {
			return errors.Errorf("iterator %s has range %s: only iterators starting at 0 are supported", v, r)
		}
		extent := d.analyzer.Simplify(r.Extent)
		if c, ok := expr.AsConstInt(extent); ok && c <= 0 {
			return errors.Errorf("iterator %s has an empty range %s", v, r)
		}
		d.extents[v] = extent
		d.analyzer.Bind(v, arith.RangeFromExtent(extent))
		if expr.IsConstInt(extent, 1) {
			d.unitVars[v] = expr.Const(v.Type, 0)
		}
	}
	return nil
}

// applyPredicate checks every conjunct of predicate: it must be provable, or an upper bound on an iterator.
func (d *detector) applyPredicate(predicate expr.Expr) error {
	if expr.IsTrue(predicate) {
		return nil
	}
	if predicate.Kind() == expr.KindAnd {
		and := predicate.(*expr.Binary)
		if err := d.applyPredicate(and.A); err != nil {
			return err
		}
		return d.applyPredicate(and.B)
	}
	simplified := d.analyzer.Simplify(predicate)
	if expr.IsTrue(simplified) {
		return nil
	}
	if value, ok := expr.AsConstBool(simplified); ok && !value {
		return errors.Errorf("predicate %s is always false", predicate)
	}
	if simplified.Kind() != expr.KindLT && simplified.Kind() != expr.KindLE {
		return errors.Errorf("unsupported predicate %s", predicate)
	}
	cmp := simplified.(*expr.Binary)
	terms, base := arith.Linearize(d.analyzer.Simplify(expr.Sub(cmp.A, cmp.B)))
	if cmp.Op == expr.KindLE {
		base-- // x <= 0  <=>  x - 1 < 0
	}
	if len(terms) != 1 || terms[0].Coef != 1 {
		return errors.Errorf("unsupported predicate %s: only upper bounds on iterators are supported", predicate)
	}
	v, isVar := expr.AsVar(terms[0].Atom)
	if !isVar {
		return errors.Errorf("unsupported predicate %s: only upper bounds on iterators are supported", predicate)
	}
	if _, found := d.domains.Range(v); !found {
		return errors.Errorf("predicate %s bounds %s, which is not an iterator", predicate, v)
	}
	upper := -base
	if upper <= 0 {
		return errors.Errorf("predicate %s leaves iterator %s with an empty range", predicate, v)
	}
	tightened := expr.Const(v.Type, upper)
	if !d.analyzer.CanProve(expr.LE(tightened, d.extents[v])) {
		return errors.Errorf("predicate %s: can't prove %s is within the extent %s of %s",
			predicate, tightened, d.extents[v], v)
	}
	d.extents[v] = tightened
	d.analyzer.Bind(v, arith.RangeFromExtent(tightened))
	return nil
}

func (d *detector) varMark(v *expr.Var) *IterMark {
	mark, found := d.varMarks[v]
	if !found {
		mark = NewVarMark(v, d.extents[v])
		d.varMarks[v] = mark
	}
	return mark
}

// sumMark returns the mark of the fused sum, reusing a previous one if it is structurally the same.
func (d *detector) sumMark(sum *IterSumExpr, extent expr.Expr) *IterMark {
	sumExpr := sum.ToExpr()
	for _, mark := range d.sumMarks {
		if expr.Equal(mark.Sum.ToExpr(), sumExpr) && expr.Equal(mark.Extent, extent) {
			return mark
		}
	}
	mark := NewSumMark(sum, extent)
	d.sumMarks = append(d.sumMarks, mark)
	return mark
}

func (d *detector) usesIterator(e expr.Expr) bool {
	for _, v := range expr.CollectVars(e) {
		if _, found := d.domains.Range(v); found {
			return true
		}
	}
	return false
}

// detectSum rewrites e as a sum of splits, fusing the splits into one if there are more than one.
func (d *detector) detectSum(e expr.Expr) (*IterSumExpr, error) {
	dtype := e.DType()
	terms, constant := arith.Linearize(d.analyzer.Simplify(e))
	var base expr.Expr = expr.Const(dtype, constant)
	var splits []*IterSplitExpr
	for _, t := range terms {
		if !d.usesIterator(t.Atom) {
			// Free symbols are part of the offset.
			base = expr.Add(base, expr.Mul(t.Atom, expr.Const(t.Atom.DType(), t.Coef)))
			continue
		}
		if t.Coef <= 0 {
			return nil, errors.Errorf("term %s has a non-positive coefficient %d", t.Atom, t.Coef)
		}
		split, err := d.parseSource(t.Atom)
		if err != nil {
			return nil, err
		}
		scaled := *split
		scaled.Scale = expr.Const(dtype, t.Coef)
		splits = append(splits, &scaled)
	}
	return d.fuse(splits, base)
}

// parseSource returns e as a single split of scale 1.
func (d *detector) parseSource(e expr.Expr) (*IterSplitExpr, error) {
	switch e.Kind() {
	case expr.KindVar:
		v := e.(*expr.Var)
		if _, found := d.domains.Range(v); !found {
			return nil, errors.Errorf("%s is not an iterator", v)
		}
		mark := d.varMark(v)
		return &IterSplitExpr{Source: mark, LowerFactor: expr.Const(v.Type, 1), Extent: mark.Extent,
			Scale: expr.Const(v.Type, 1)}, nil

	case expr.KindFloorDiv, expr.KindFloorMod:
		bin := e.(*expr.Binary)
		c, ok := expr.AsConstInt(bin.B)
		if !ok || c <= 0 {
			return nil, errors.Errorf("%s: only divisions by positive constants are supported", e)
		}
		inner, err := d.parseSource(bin.A)
		if err != nil {
			return nil, err
		}
		if bin.Op == expr.KindFloorDiv {
			return divideSplit(inner, c)
		}
		return moduloSplit(inner, c)

	case expr.KindAdd, expr.KindSub, expr.KindMul:
		if e.Kind() == expr.KindMul {
			bin := e.(*expr.Binary)
			_, aIsConst := expr.AsConstInt(bin.A)
			_, bIsConst := expr.AsConstInt(bin.B)
			if !aIsConst && !bIsConst {
				return nil, errors.Errorf("%s is not affine", e)
			}
		}
		sum, err := d.detectSum(e)
		if err != nil {
			return nil, err
		}
		if !expr.IsConstInt(sum.Base, 0) || len(sum.Args) != 1 || !expr.IsConstInt(sum.Args[0].Scale, 1) {
			return nil, errors.Errorf("%s can't be used as a single iterator (detected as %s)", e, sum)
		}
		return sum.Args[0], nil
	}
	return nil, errors.Errorf("%s is not affine", e)
}

func divideSplit(s *IterSplitExpr, c int64) (*IterSplitExpr, error) {
	lowerFactor, lfOk := expr.AsConstInt(s.LowerFactor)
	extent, extOk := expr.AsConstInt(s.Extent)
	if !lfOk || !extOk {
		return nil, errors.Errorf("can't divide %s by %d: symbolic extent", s, c)
	}
	if extent%c != 0 {
		return nil, errors.Errorf("can't divide %s by %d: extent %d is not divisible", s, c, extent)
	}
	dtype := s.Extent.DType()
	return &IterSplitExpr{Source: s.Source, LowerFactor: expr.Const(dtype, lowerFactor*c),
		Extent: expr.Const(dtype, extent/c), Scale: s.Scale}, nil
}

func moduloSplit(s *IterSplitExpr, c int64) (*IterSplitExpr, error) {
	extent, ok := expr.AsConstInt(s.Extent)
	if !ok {
		return nil, errors.Errorf("can't take %s modulo %d: symbolic extent", s, c)
	}
	switch {
	case extent <= c:
		return s, nil
	case extent%c != 0:
		return nil, errors.Errorf("can't take %s modulo %d: extent %d is not divisible", s, c, extent)
	}
	return &IterSplitExpr{Source: s.Source, LowerFactor: s.LowerFactor,
		Extent: expr.Const(s.Extent.DType(), c), Scale: s.Scale}, nil
}

func constScale(s *IterSplitExpr) int64 {
	v, _ := expr.AsConstInt(s.Scale)
	return v
}

// fuse combines the splits, if more than one, into a single split of a new mark.
func (d *detector) fuse(splits []*IterSplitExpr, base expr.Expr) (*IterSumExpr, error) {
	slices.SortStableFunc(splits, func(a, b *IterSplitExpr) int {
		sa, sb := constScale(a), constScale(b)
		switch {
		case sa > sb:
			return -1
		case sa < sb:
			return 1
		}
		return 0
	})
	if len(splits) <= 1 {
		return &IterSumExpr{Args: splits, Base: base}, nil
	}

	// Walk from the smallest scale up: each split must start where the previous one ended.
	last := len(splits) - 1
	baseScale := constScale(splits[last])
	expected := baseScale
	for k := last; k >= 0; k-- {
		s := splits[k]
		scale := constScale(s)
		if d.requireBijective && scale != expected {
			return nil, errors.Errorf("splits are not contiguous: %s has scale %d, expected %d", s, scale, expected)
		}
		if scale < expected || scale%baseScale != 0 {
			return nil, errors.Errorf("splits overlap: %s has scale %d, expected at least %d", s, scale, expected)
		}
		if k == 0 {
			break
		}
		extent, ok := expr.AsConstInt(s.Extent)
		if !ok {
			return nil, errors.Errorf("can't fuse %s with a symbolic extent", s)
		}
		expected = scale * extent
	}

	dtype := base.DType()
	inner := &IterSumExpr{Args: make([]*IterSplitExpr, len(splits)), Base: expr.Const(dtype, 0)}
	for k, s := range splits {
		normalized := *s
		normalized.Scale = expr.Const(dtype, constScale(s)/baseScale)
		inner.Args[k] = &normalized
	}
	fusedExtent := d.analyzer.Simplify(expr.Mul(splits[0].Extent, expr.Const(dtype, constScale(splits[0])/baseScale)))
	mark := d.sumMark(inner, fusedExtent)
	outer := &IterSplitExpr{Source: mark, LowerFactor: expr.Const(dtype, 1), Extent: fusedExtent,
		Scale: expr.Const(dtype, baseScale)}
	return &IterSumExpr{Args: []*IterSplitExpr{outer}, Base: base}, nil
}

// checkSplits verifies that the splits taken from each mark, across all the sums, don't overlap.
func (d *detector) checkSplits(sums []*IterSumExpr) error {
	var marks []*IterMark
	splitsPerMark := make(map[*IterMark][]*IterSplitExpr)
	var visit func(sum *IterSumExpr)
	visit = func(sum *IterSumExpr) {
		for _, split := range sum.Args {
			mark := split.Source
			_, seen := splitsPerMark[mark]
			splitsPerMark[mark] = append(splitsPerMark[mark], split)
			if !seen {
				marks = append(marks, mark)
				if mark.Kind == SourceSum {
					visit(mark.Sum)
				}
			}
		}
	}
	for _, sum := range sums {
		visit(sum)
	}
	for _, mark := range marks {
		if err := d.checkMark(mark, splitsPerMark[mark]); err != nil {
			return err
		}
	}
	if d.requireBijective {
		for _, v := range d.domains.Vars() {
			if expr.IsConstInt(d.extents[v], 1) {
				continue
			}
			mark, found := d.varMarks[v]
			if _, used := splitsPerMark[mark]; !found || !used {
				return errors.Errorf("iterator %s is not used: the map is not bijective", v)
			}
		}
	}
	return nil
}

func (d *detector) checkMark(mark *IterMark, splits []*IterSplitExpr) error {
	if len(splits) == 1 && expr.IsConstInt(splits[0].LowerFactor, 1) &&
		d.analyzer.CanProveEqual(splits[0].Extent, mark.Extent) {
		return nil
	}
	markExtent, ok := expr.AsConstInt(d.analyzer.Simplify(mark.Extent))
	if !ok {
		return errors.Errorf("%s with symbolic extent is split in parts", mark)
	}
	type span struct{ lowerFactor, extent int64 }
	spans := make([]span, len(splits))
	for k, s := range splits {
		lf, lfOk := expr.AsConstInt(s.LowerFactor)
		ext, extOk := expr.AsConstInt(s.Extent)
		if !lfOk || !extOk {
			return errors.Errorf("%s has a symbolic lower factor or extent", s)
		}
		spans[k] = span{lf, ext}
	}
	slices.SortStableFunc(spans, func(a, b span) int {
		switch {
		case a.lowerFactor < b.lowerFactor:
			return -1
		case a.lowerFactor > b.lowerFactor:
			return 1
		}
		return 0
	})
	end := int64(1)
	for _, sp := range spans {
		if sp.lowerFactor < end {
			return errors.Errorf("splits of %s overlap", mark)
		}
		if d.requireBijective && sp.lowerFactor != end {
			return errors.Errorf("splits of %s leave gaps: the map is not bijective", mark)
		}
		end = sp.lowerFactor * sp.extent
	}
	if end > markExtent {
		return errors.Errorf("splits of %s span %d, beyond its extent", mark, end)
	}
	if d.requireBijective && end != markExtent {
		return errors.Errorf("splits of %s cover %d of %d: the map is not bijective", mark, end, markExtent)
	}
	return nil
}
