// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package arith

import (
	"testing"

	"github.com/gomlx/layoutsuggest/pkg/core/dtypes"
	"github.com/gomlx/layoutsuggest/pkg/core/expr"
	"github.com/stretchr/testify/require"
)

func newBoundVars(analyzer *Analyzer, extents map[string]int64, names ...string) []*expr.Var {
	vars := make([]*expr.Var, len(names))
	for i, name := range names {
		vars[i] = expr.IndexVar(name)
		analyzer.Bind(vars[i], RangeFromExtent(expr.Int(extents[name])))
	}
	return vars
}

func TestConstIntBound(t *testing.T) {
	analyzer := NewAnalyzer()
	vars := newBoundVars(analyzer, map[string]int64{"i": 4, "j": 8}, "i", "j")
	i, j := vars[0], vars[1]

	require.Equal(t, Bound{0, 3}, analyzer.ConstIntBound(i))
	require.Equal(t, Bound{0, 31}, analyzer.ConstIntBound(expr.Add(expr.Mul(i, expr.Int(8)), j)))
	require.Equal(t, Bound{-7, 3}, analyzer.ConstIntBound(expr.Sub(i, j)))
	require.Equal(t, Bound{0, 1}, analyzer.ConstIntBound(expr.FloorDiv(j, expr.Int(4))))
	require.Equal(t, Bound{0, 3}, analyzer.ConstIntBound(expr.FloorMod(j, expr.Int(4))))
	require.Equal(t, Bound{0, 3}, analyzer.ConstIntBound(expr.FloorMod(i, expr.Int(16))))
	require.Equal(t, Bound{0, 1}, analyzer.ConstIntBound(expr.LT(i, j)))

	// Unbound variables are limited to their dtype.
	n := expr.NewVar("n", dtypes.Int64)
	b := analyzer.ConstIntBound(n)
	require.Equal(t, NegInf, b.Min)
	require.Equal(t, PosInf, b.Max)
	require.False(t, b.IsFinite())
	require.Equal(t, "[-inf, +inf]", b.String())
	require.Equal(t, PosInf, analyzer.ConstIntBound(expr.Mul(n, expr.Int(2))).Max)

	// Symbolic extent: only the lower side is known.
	k := expr.IndexVar("k")
	analyzer.Bind(k, RangeFromExtent(n))
	require.Equal(t, int64(0), analyzer.ConstIntBound(k).Min)
	require.Equal(t, PosInf, analyzer.ConstIntBound(k).Max)
	r, found := analyzer.RangeOf(k)
	require.True(t, found)
	require.Same(t, n, r.Extent)
}

func TestSimplifyLinear(t *testing.T) {
	analyzer := NewAnalyzer()
	i, j := expr.IndexVar("i"), expr.IndexVar("j")

	// Terms are merged and constants folded.
	e := expr.Add(expr.Add(expr.Mul(i, expr.Int(2)), j), expr.Sub(expr.Mul(expr.Int(3), i), expr.Int(4)))
	require.Equal(t, "((i*5 + j) - 4)", analyzer.Simplify(e).String())

	// Terms cancel.
	require.True(t, expr.IsConstInt(analyzer.Simplify(expr.Sub(expr.Add(i, j), expr.Add(j, i))), 0))
	require.True(t, analyzer.CanProveEqual(expr.Mul(expr.Add(i, j), expr.Int(2)), expr.Add(expr.Mul(j, expr.Int(2)), expr.Add(i, i))))

	// Non-linear products are kept as atoms.
	require.Equal(t, "i*j*2", analyzer.Simplify(expr.Add(expr.Mul(i, j), expr.Mul(i, j))).String())
}

func TestSimplifyDivMod(t *testing.T) {
	analyzer := NewAnalyzer()
	vars := newBoundVars(analyzer, map[string]int64{"i": 4, "j": 8, "x": 32}, "i", "j", "x")
	i, j, x := vars[0], vars[1], vars[2]
	flat := expr.Add(expr.Mul(i, expr.Int(8)), j)

	t.Run("NoWrapAround", func(t *testing.T) {
		require.Same(t, j, analyzer.Simplify(expr.FloorMod(flat, expr.Int(8))))
		require.Same(t, i, analyzer.Simplify(expr.FloorDiv(flat, expr.Int(8))))
		require.Same(t, i, analyzer.Simplify(expr.FloorMod(i, expr.Int(4))))
		require.True(t, expr.IsConstInt(analyzer.Simplify(expr.FloorDiv(i, expr.Int(4))), 0))
		require.True(t, expr.IsConstInt(analyzer.Simplify(expr.FloorDiv(flat, expr.Int(32))), 0))
	})

	t.Run("Atoms", func(t *testing.T) {
		require.Equal(t, "floordiv(x, 8)", analyzer.Simplify(expr.FloorDiv(x, expr.Int(8))).String())
		require.Equal(t, "floormod(x, 8)", analyzer.Simplify(expr.FloorMod(x, expr.Int(8))).String())
		// Bound of floordiv(x, 8) is [0, 3], so the modulo disappears.
		require.Equal(t, "floordiv(x, 8)", analyzer.Simplify(
			expr.FloorMod(expr.FloorDiv(x, expr.Int(8)), expr.Int(4))).String())
	})

	t.Run("Nested", func(t *testing.T) {
		y := expr.IndexVar("y") // Unbound.
		require.Equal(t, "floordiv(y, 32)", analyzer.Simplify(
			expr.FloorDiv(expr.FloorDiv(y, expr.Int(8)), expr.Int(4))).String())
		require.Equal(t, "floormod(y, 4)", analyzer.Simplify(
			expr.FloorMod(expr.FloorMod(y, expr.Int(8)), expr.Int(4))).String())
		// GCD factoring.
		require.Equal(t, "floordiv(y, 2)", analyzer.Simplify(
			expr.FloorDiv(expr.Mul(y, expr.Int(4)), expr.Int(8))).String())
		require.Equal(t, "floormod(y, 2)*4", analyzer.Simplify(
			expr.FloorMod(expr.Mul(y, expr.Int(4)), expr.Int(8))).String())
		// Divisible part leaves the division.
		require.Equal(t, "(y + floordiv(x, 8))", analyzer.Simplify(
			expr.FloorDiv(expr.Add(expr.Mul(y, expr.Int(8)), x), expr.Int(8))).String())
	})

	t.Run("Constants", func(t *testing.T) {
		wide := expr.Add(expr.Mul(i, expr.Int(16)), j)
		require.Same(t, i, analyzer.Simplify(expr.FloorDiv(expr.Add(wide, expr.Int(3)), expr.Int(16))))
		require.Equal(t, "(i - 1)", analyzer.Simplify(expr.FloorDiv(expr.Sub(flat, expr.Int(8)), expr.Int(8))).String())
		require.Equal(t, "(j + 1)", analyzer.Simplify(expr.FloorMod(expr.Add(j, expr.Int(1)), expr.Int(16))).String())
		// j+3 is in [3, 10]: it may cross a multiple of 8.
		require.Equal(t, "(i + floordiv((j + 3), 8))",
			analyzer.Simplify(expr.FloorDiv(expr.Add(flat, expr.Int(3)), expr.Int(8))).String())
	})
}

func TestSimplifyComparisons(t *testing.T) {
	analyzer := NewAnalyzer()
	vars := newBoundVars(analyzer, map[string]int64{"i": 4, "j": 8}, "i", "j")
	i, j := vars[0], vars[1]
	require.True(t, analyzer.CanProve(expr.LT(i, expr.Int(4))))
	require.True(t, analyzer.CanProve(expr.GE(j, expr.Int(0))))
	require.True(t, analyzer.CanProve(expr.LT(expr.Add(expr.Mul(i, expr.Int(8)), j), expr.Int(32))))
	require.Equal(t, expr.False, analyzer.Simplify(expr.LT(i, expr.Int(0))))
	require.False(t, analyzer.CanProve(expr.LT(j, expr.Int(4))))
	require.True(t, analyzer.CanProve(expr.And(expr.LT(i, expr.Int(4)), expr.NE(j, expr.Int(9)))))
	require.True(t, analyzer.CanProve(expr.LogicalNot(expr.EQ(i, expr.Int(5)))))
	require.Equal(t, "(j < 4)", analyzer.Simplify(expr.LT(j, expr.Int(4))).String())
}

func TestSimplifyMinMax(t *testing.T) {
	analyzer := NewAnalyzer()
	vars := newBoundVars(analyzer, map[string]int64{"i": 4, "j": 8}, "i", "j")
	i, j := vars[0], vars[1]
	require.Same(t, i, analyzer.Simplify(expr.Min(i, expr.Int(10))))
	require.True(t, expr.IsConstInt(analyzer.Simplify(expr.Max(i, expr.Int(10))), 10))
	require.Equal(t, "min(i, j)", analyzer.Simplify(expr.Min(i, j)).String())
}

func TestCloneAndLinearize(t *testing.T) {
	analyzer := NewAnalyzer()
	i := expr.IndexVar("i")
	clone := analyzer.Clone()
	clone.Bind(i, RangeFromExtent(expr.Int(4)))
	require.True(t, clone.CanProve(expr.LT(i, expr.Int(4))))
	require.False(t, analyzer.CanProve(expr.LT(i, expr.Int(4))), "bindings on a clone must not leak")
	_, found := analyzer.RangeOf(i)
	require.False(t, found)

	j := expr.IndexVar("j")
	terms, base := Linearize(expr.Add(expr.Sub(expr.Mul(j, expr.Int(3)), expr.Int(2)), expr.Mul(expr.Int(8), i)))
	require.Equal(t, int64(-2), base)
	require.Len(t, terms, 2)
	require.Same(t, j, terms[0].Atom)
	require.Equal(t, int64(3), terms[0].Coef)
	require.Same(t, i, terms[1].Atom)
	require.Equal(t, int64(8), terms[1].Coef)
}
