// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package itermap

import (
	"testing"

	"github.com/gomlx/layoutsuggest/pkg/core/arith"
	"github.com/gomlx/layoutsuggest/pkg/core/expr"
	"github.com/stretchr/testify/require"
)

func newIters(names []string, extents ...int64) (*Domains, []*expr.Var) {
	domains := NewDomains()
	vars := make([]*expr.Var, len(names))
	for ii, name := range names {
		vars[ii] = expr.IndexVar(name)
		domains.Set(vars[ii], arith.RangeFromExtent(expr.Int(extents[ii])))
	}
	return domains, vars
}

func requireSplit(t *testing.T, split *IterSplitExpr, source *expr.Var, lowerFactor, extent, scale int64) {
	t.Helper()
	require.Equal(t, SourceVar, split.Source.Kind)
	require.Same(t, source, split.Source.Var)
	require.True(t, expr.IsConstInt(split.LowerFactor, lowerFactor), "lower factor of %s", split)
	require.True(t, expr.IsConstInt(split.Extent, extent), "extent of %s", split)
	require.True(t, expr.IsConstInt(split.Scale, scale), "scale of %s", split)
}

func TestDomains(t *testing.T) {
	domains, vars := newIters([]string{"k", "a"}, 2, 3)
	require.Equal(t, 2, domains.Len())
	require.Equal(t, vars, domains.Vars())
	domains.Set(vars[0], arith.RangeFromExtent(expr.Int(5)))
	require.Equal(t, vars, domains.Vars(), "resetting a range must keep the order")
	r, found := domains.Range(vars[0])
	require.True(t, found)
	require.True(t, expr.IsConstInt(r.Extent, 5))
	_, found = domains.Range(expr.IndexVar("k"))
	require.False(t, found, "variables are identified by pointer, not by name")
}

func TestDetectIterMap(t *testing.T) {
	t.Run("Identity", func(t *testing.T) {
		domains, vars := newIters([]string{"i", "j"}, 4, 8)
		analyzer := arith.NewAnalyzer()
		sums, err := DetectIterMap(expr.Vars(vars...), domains, nil, true, analyzer)
		require.NoError(t, err)
		require.Len(t, sums, 2)
		for ii, sum := range sums {
			require.True(t, expr.IsConstInt(sum.Base, 0))
			require.Len(t, sum.Args, 1)
			requireSplit(t, sum.Args[0], vars[ii], 1, []int64{4, 8}[ii], 1)
		}
		// The analyzer given is not modified.
		_, found := analyzer.RangeOf(vars[0])
		require.False(t, found)
	})

	t.Run("Fused", func(t *testing.T) {
		domains, vars := newIters([]string{"i", "j"}, 4, 8)
		i, j := vars[0], vars[1]
		index := expr.Add(expr.Mul(i, expr.Int(8)), j)
		sums, err := DetectIterMap([]expr.Expr{index}, domains, expr.True, true, arith.NewAnalyzer())
		require.NoError(t, err)
		require.Len(t, sums, 1)
		require.Len(t, sums[0].Args, 1)
		outer := sums[0].Args[0]
		require.Equal(t, SourceSum, outer.Source.Kind)
		require.True(t, expr.IsConstInt(outer.Source.Extent, 32))
		require.True(t, expr.IsConstInt(outer.Extent, 32))
		require.True(t, expr.IsConstInt(outer.Scale, 1))

		inner := outer.Source.Sum
		require.Len(t, inner.Args, 2)
		requireSplit(t, inner.Args[0], i, 1, 4, 8)
		requireSplit(t, inner.Args[1], j, 1, 8, 1)
		require.Equal(t, "(i*8 + j)", sums[0].ToExpr().String())
	})

	t.Run("Scaled", func(t *testing.T) {
		domains, vars := newIters([]string{"i", "j"}, 4, 8)
		i, j := vars[0], vars[1]
		// Fused sum scaled by 2, with an offset.
		index := expr.Add(expr.Add(expr.Mul(i, expr.Int(16)), expr.Mul(j, expr.Int(2))), expr.Int(3))
		sums, err := DetectIterMap([]expr.Expr{index}, domains, nil, true, arith.NewAnalyzer())
		require.NoError(t, err)
		require.True(t, expr.IsConstInt(sums[0].Base, 3))
		outer := sums[0].Args[0]
		require.True(t, expr.IsConstInt(outer.Scale, 2))
		require.True(t, expr.IsConstInt(outer.Extent, 32))
		requireSplit(t, outer.Source.Sum.Args[0], i, 1, 4, 8)
		requireSplit(t, outer.Source.Sum.Args[1], j, 1, 8, 1)
	})

	t.Run("DivMod", func(t *testing.T) {
		domains, vars := newIters([]string{"x"}, 32)
		x := vars[0]
		indices := []expr.Expr{expr.FloorDiv(x, expr.Int(8)), expr.FloorMod(x, expr.Int(8))}
		sums, err := DetectIterMap(indices, domains, nil, true, arith.NewAnalyzer())
		require.NoError(t, err)
		requireSplit(t, sums[0].Args[0], x, 8, 4, 1)
		requireSplit(t, sums[1].Args[0], x, 1, 8, 1)
		require.Same(t, sums[0].Args[0].Source, sums[1].Args[0].Source, "splits of the same iterator share the mark")
		require.Equal(t, "floordiv(x, 8)", sums[0].ToExpr().String())
		require.Equal(t, "floormod(x, 8)", sums[1].ToExpr().String())
	})

	t.Run("DivisionOfFusedIndex", func(t *testing.T) {
		domains, vars := newIters([]string{"i", "j"}, 4, 8)
		i, j := vars[0], vars[1]
		flat := expr.Add(expr.Mul(i, expr.Int(8)), j)
		indices := []expr.Expr{expr.FloorDiv(flat, expr.Int(4)), expr.FloorMod(flat, expr.Int(4))}
		sums, err := DetectIterMap(indices, domains, nil, true, arith.NewAnalyzer())
		require.NoError(t, err)

		// floordiv(i*8 + j, 4) == i*2 + floordiv(j, 4)
		outer := sums[0].Args[0]
		require.Equal(t, SourceSum, outer.Source.Kind)
		require.True(t, expr.IsConstInt(outer.Extent, 8))
		requireSplit(t, outer.Source.Sum.Args[0], i, 1, 4, 2)
		requireSplit(t, outer.Source.Sum.Args[1], j, 4, 2, 1)

		// floormod(i*8 + j, 4) == floormod(j, 4)
		requireSplit(t, sums[1].Args[0], j, 1, 4, 1)
	})

	t.Run("FreeSymbols", func(t *testing.T) {
		domains, vars := newIters([]string{"i"}, 4)
		n := expr.IndexVar("n")
		sums, err := DetectIterMap([]expr.Expr{expr.Add(vars[0], n)}, domains, nil, true, arith.NewAnalyzer())
		require.NoError(t, err)
		require.Same(t, n, sums[0].Base)
		requireSplit(t, sums[0].Args[0], vars[0], 1, 4, 1)
	})

	t.Run("UnitExtent", func(t *testing.T) {
		domains, vars := newIters([]string{"i", "j"}, 1, 8)
		i, j := vars[0], vars[1]
		flat := expr.Add(expr.Mul(i, expr.Int(8)), j)
		sums, err := DetectIterMap([]expr.Expr{flat}, domains, nil, true, arith.NewAnalyzer())
		require.NoError(t, err)
		require.True(t, expr.IsConstInt(sums[0].Base, 0))
		require.Len(t, sums[0].Args, 1, "i is replaced by 0")
		requireSplit(t, sums[0].Args[0], j, 1, 8, 1)
	})

	t.Run("NoIndices", func(t *testing.T) {
		domains, _ := newIters([]string{"i"}, 4)
		sums, err := DetectIterMap(nil, domains, nil, false, arith.NewAnalyzer())
		require.NoError(t, err)
		require.Empty(t, sums)
	})
}

func TestDetectIterMapBijectivity(t *testing.T) {
	domains, vars := newIters([]string{"i", "j"}, 4, 8)
	i, j := vars[0], vars[1]

	// Gap between the splits: only accepted if not requiring bijectivity.
	gap := []expr.Expr{expr.Add(expr.Mul(i, expr.Int(16)), j)}
	_, err := DetectIterMap(gap, domains, nil, true, arith.NewAnalyzer())
	require.Error(t, err)
	sums, err := DetectIterMap(gap, domains, nil, false, arith.NewAnalyzer())
	require.NoError(t, err)
	require.True(t, expr.IsConstInt(sums[0].Args[0].Extent, 64))

	// Unused iterator.
	_, err = DetectIterMap([]expr.Expr{i}, domains, nil, true, arith.NewAnalyzer())
	require.ErrorContains(t, err, "not used")
	_, err = DetectIterMap([]expr.Expr{i}, domains, nil, false, arith.NewAnalyzer())
	require.NoError(t, err)

	// Overlapping splits are never accepted.
	overlap := []expr.Expr{expr.Add(expr.Mul(i, expr.Int(4)), j)}
	_, err = DetectIterMap(overlap, domains, nil, false, arith.NewAnalyzer())
	require.ErrorContains(t, err, "overlap")
	_, err = DetectIterMap([]expr.Expr{j, j}, domains, nil, false, arith.NewAnalyzer())
	require.ErrorContains(t, err, "overlap")
}

func TestDetectIterMapFailures(t *testing.T) {
	domains, vars := newIters([]string{"i", "j"}, 4, 8)
	i, j := vars[0], vars[1]
	analyzer := arith.NewAnalyzer()

	_, err := DetectIterMap([]expr.Expr{expr.Mul(i, j)}, domains, nil, false, analyzer)
	require.ErrorContains(t, err, "not affine")

	_, err = DetectIterMap([]expr.Expr{expr.Sub(expr.Int(3), i)}, domains, nil, false, analyzer)
	require.ErrorContains(t, err, "non-positive coefficient")

	_, err = DetectIterMap([]expr.Expr{expr.FloorDiv(j, expr.Int(3))}, domains, nil, false, analyzer)
	require.ErrorContains(t, err, "not divisible")

	t.Run("NonZeroMin", func(t *testing.T) {
		shifted := NewDomains()
		k := expr.IndexVar("k")
		shifted.Set(k, arith.RangeFromMinExtent(expr.Int(2), expr.Int(4)))
		_, err := DetectIterMap([]expr.Expr{k}, shifted, nil, false, analyzer)
		require.ErrorContains(t, err, "starting at 0")
	})

	t.Run("SymbolicExtent", func(t *testing.T) {
		n := expr.IndexVar("n")
		dynamic := NewDomains()
		k := expr.IndexVar("k")
		dynamic.Set(k, arith.RangeFromExtent(n))
		sums, err := DetectIterMap([]expr.Expr{k}, dynamic, nil, true, analyzer)
		require.NoError(t, err)
		require.Same(t, n, sums[0].Args[0].Extent)
		_, err = DetectIterMap([]expr.Expr{expr.FloorDiv(k, expr.Int(4))}, dynamic, nil, false, analyzer)
		require.ErrorContains(t, err, "symbolic extent")
	})
}

func TestDetectIterMapPredicate(t *testing.T) {
	domains, vars := newIters([]string{"i", "j"}, 4, 8)
	i, j := vars[0], vars[1]
	analyzer := arith.NewAnalyzer()

	// Provable conjuncts are dropped.
	predicate := expr.And(expr.LT(i, expr.Int(4)), expr.GE(j, expr.Int(0)))
	sums, err := DetectIterMap(expr.Vars(i, j), domains, predicate, true, analyzer)
	require.NoError(t, err)
	requireSplit(t, sums[0].Args[0], i, 1, 4, 1)

	// Upper bounds tighten the iterator's extent.
	predicate = expr.And(expr.LT(i, expr.Int(3)), expr.LE(j, expr.Int(1)))
	sums, err = DetectIterMap(expr.Vars(i, j), domains, predicate, true, analyzer)
	require.NoError(t, err)
	requireSplit(t, sums[0].Args[0], i, 1, 3, 1)
	requireSplit(t, sums[1].Args[0], j, 1, 2, 1)

	_, err = DetectIterMap(expr.Vars(i, j), domains, expr.LT(i, expr.Int(0)), false, analyzer)
	require.ErrorContains(t, err, "always false")
	_, err = DetectIterMap(expr.Vars(i, j), domains, expr.LT(i, j), false, analyzer)
	require.ErrorContains(t, err, "unsupported predicate")
}

func TestIterExprString(t *testing.T) {
	x := expr.IndexVar("x")
	mark := NewVarMark(x, expr.Int(32))
	split := &IterSplitExpr{Source: mark, LowerFactor: expr.Int(8), Extent: expr.Int(4), Scale: expr.Int(2)}
	require.Equal(t, "IterSplit(IterMark(x, extent=32), lower_factor=8, extent=4, scale=2)", split.String())
	require.Equal(t, "floordiv(x, 8)*2", split.ToExpr().String(), "the split reaches the top of x")
	middle := &IterSplitExpr{Source: mark, LowerFactor: expr.Int(4), Extent: expr.Int(2), Scale: expr.Int(1)}
	require.Equal(t, "floormod(floordiv(x, 4), 2)", middle.ToExpr().String())
	sum := &IterSumExpr{Args: []*IterSplitExpr{split}, Base: expr.Int(1)}
	require.Equal(t, "IterSum([IterSplit(IterMark(x, extent=32), lower_factor=8, extent=4, scale=2)], base=1)",
		sum.String())
	require.Equal(t, "SourceSum", SourceSum.String())
	require.Panics(t, func() { (&IterMark{}).Source() })
}
