// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package layout suggests a storage layout for a buffer, based on how a loop nest accesses it.
//
// The access indices are flattened to an offset into the buffer's storage, and the offset is decomposed
// into "splits" of the loop variables: e.g. `A[i*8 + j]` is made of the splits i and j. The suggested
// layout orders the splits by the nesting of their loops (outermost first) and, within a loop variable,
// from its most to its least significant split.
//
// The suggestion is returned as an indexmap.IndexMap from the buffer's current coordinates to the new ones.
package layout

import (
	"cmp"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/layoutsuggest/pkg/core/arith"
	"github.com/gomlx/layoutsuggest/pkg/core/expr"
	"github.com/gomlx/layoutsuggest/pkg/core/indexmap"
	"github.com/gomlx/layoutsuggest/pkg/core/itermap"
	"github.com/gomlx/layoutsuggest/pkg/core/tir"
	"github.com/gomlx/layoutsuggest/pkg/support/xslices"
	"k8s.io/klog/v2"
)

// Suggestion holds the result of the analysis of one buffer access.
type Suggestion struct {
	// Flattened is the offset into the buffer's storage accessed by the loop nest.
	Flattened expr.Expr

	// Splits of the loop variables that make up Flattened, in the order they were found.
	Splits []SplitExpr

	// Order of the splits in the new layout: the k-th new coordinate is Splits[Order[k]].
	Order []int

	// IndexMap from the current coordinates of the buffer to the new ones.
	IndexMap *indexmap.IndexMap
}

// SuggestIndexMap suggests a new layout for buffer, given the indices used to access it from inside the
// loops, and an optional predicate guarding the access (nil means true).
//
// It returns false if the access is not an affine function of the loop variables with static factors.
//
// The analyzer is used to simplify the new coordinates, and the placeholders of the returned
// IndexMap are bound in it.
func SuggestIndexMap(buffer *tir.Buffer, indices []expr.Expr, loops []*tir.For, predicate expr.Expr,
	analyzer *arith.Analyzer) (*indexmap.IndexMap, bool) {
	suggestion, ok := Analyze(buffer, indices, loops, predicate, analyzer)
	if !ok {
		return nil, false
	}
	return suggestion.IndexMap, true
}

// Suggest is like SuggestIndexMap, but uses a new analyzer.
func Suggest(buffer *tir.Buffer, indices []expr.Expr, loops []*tir.For, predicate expr.Expr) (*indexmap.IndexMap, bool) {
	return SuggestIndexMap(buffer, indices, loops, predicate, arith.NewAnalyzer())
}

// Analyze is like SuggestIndexMap, but returns the intermediary results of the analysis along with the IndexMap.
func Analyze(buffer *tir.Buffer, indices []expr.Expr, loops []*tir.For, predicate expr.Expr,
	analyzer *arith.Analyzer) (*Suggestion, bool) {
	if len(indices) != buffer.Rank() {
		exceptions.Panicf("layout.SuggestIndexMap(%s): given %d indices, but buffer has rank %d",
			buffer, len(indices), buffer.Rank())
	}
	if predicate == nil {
		predicate = expr.True
	}
	positions := tir.LoopPositions(loops)
	domains := itermap.NewDomains()
	for _, loop := range loops {
		domains.Set(loop.LoopVar, loop.Range())
	}

	flattener := NewFlattener(buffer)
	flattened := flattener.Flatten(indices)
	splits := CollectSplits(flattened, domains, predicate, false, analyzer)
	if len(splits) == 0 {
		klog.V(1).Infof("layout: no suggestion for %s[%s]", buffer.Name, expr.Join(indices))
		return nil, false
	}

	// Outermost loop first, and for the same loop variable, the most significant split first.
	order := xslices.Iota(0, len(splits))
	slices.SortStableFunc(order, func(a, b int) int {
		sa, sb := splits[a], splits[b]
		if c := cmp.Compare(positions[sa.Source], positions[sb.Source]); c != 0 {
			return c
		}
		return cmp.Compare(sb.LowerFactor, sa.LowerFactor)
	})

	alter := &alterLayout{
		flattener: flattener,
		splits:    splits,
		order:     order,
		shape:     buffer.Shape,
		analyzer:  analyzer,
	}
	suggestion := &Suggestion{
		Flattened: flattened,
		Splits:    splits,
		Order:     order,
		IndexMap:  indexmap.FromFunc(buffer.Rank(), alter.Apply),
	}
	klog.V(1).Infof("layout: suggestion for %s[%s]: %s", buffer.Name, expr.Join(indices), suggestion.IndexMap)
	return suggestion, true
}

// alterLayout computes the new coordinates of a buffer from its current ones.
type alterLayout struct {
	flattener *Flattener
	splits    []SplitExpr
	order     []int
	shape     []expr.Expr
	analyzer  *arith.Analyzer
}

// Apply binds coords to the buffer's shape, and splits their flat offset into the new coordinates.
func (a *alterLayout) Apply(coords []*expr.Var) []expr.Expr {
	if len(coords) != len(a.shape) {
		exceptions.Panicf("layout: given %d coordinates, but buffer has rank %d", len(coords), len(a.shape))
	}
	for axis, v := range coords {
		a.analyzer.Bind(v, arith.RangeFromMinExtent(expr.Const(v.Type, 0), a.shape[axis]))
	}
	index := a.flattener.Flatten(expr.Vars(coords...))

	// Extract the digits, least significant (last split) first.
	numSplits := len(a.splits)
	digits := make([]expr.Expr, 0, numSplits)
	for ii := numSplits - 1; ii >= 0; ii-- {
		index = a.analyzer.Simplify(index)
		extent := expr.Const(index.DType(), a.splits[ii].Extent)
		digits = append(digits, a.analyzer.Simplify(expr.FloorMod(index, extent)))
		index = expr.FloorDiv(index, extent)
	}
	slices.Reverse(digits)

	results := make([]expr.Expr, numSplits)
	for k, ii := range a.order {
		results[k] = digits[ii]
	}
	if klog.V(3).Enabled() {
		klog.Infof("layout: flattened %s, digits [%s], order %v -> [%s]",
			a.flattener.Flatten(expr.Vars(coords...)), expr.Join(digits), a.order, expr.Join(results))
	}
	return results
}
