// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package layout

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/layoutsuggest/pkg/core/arith"
	"github.com/gomlx/layoutsuggest/pkg/core/expr"
	"github.com/gomlx/layoutsuggest/pkg/core/itermap"
	"k8s.io/klog/v2"
)

// SplitExpr is one "digit" of a loop variable used by an index: `(Source // LowerFactor) % Extent * Scale`.
//
// Scale is informative only: the layout doesn't depend on it.
type SplitExpr struct {
	Source      *expr.Var
	LowerFactor int64
	Extent      int64
	Scale       int64
}

// String implements fmt.Stringer.
func (s SplitExpr) String() string {
	return fmt.Sprintf("(%s // %d) %% %d * %d", s.Source, s.LowerFactor, s.Extent, s.Scale)
}

// CollectSplits detects the affine iteration map of index, and flattens it to the list of its splits,
// in the order they are found.
//
// It returns nil if index is not an affine function of inputIters, or if any of the splits has a
// symbolic lower factor or extent.
func CollectSplits(index expr.Expr, inputIters *itermap.Domains, predicate expr.Expr, requireBijective bool,
	analyzer *arith.Analyzer) []SplitExpr {
	sums, err := itermap.DetectIterMap([]expr.Expr{analyzer.Simplify(index)}, inputIters, predicate,
		requireBijective, analyzer)
	if err != nil {
		klog.V(2).Infof("layout: no affine map for %s: %v", index, err)
		return nil
	}
	if len(sums) == 0 {
		return nil
	}
	if len(sums) != 1 {
		exceptions.Panicf("layout.CollectSplits(%s): expected one affine sum, got %d", index, len(sums))
	}
	if len(sums[0].Args) == 0 {
		return nil
	}
	c := &splitCollector{}
	c.visitSum(sums[0])
	if c.failed {
		klog.V(2).Infof("layout: %s has splits with symbolic factors: %s", index, sums[0])
		return nil
	}
	return c.splits
}

type splitCollector struct {
	splits []SplitExpr
	failed bool
}

func (c *splitCollector) visitSum(sum *itermap.IterSumExpr) {
	for _, arg := range sum.Args {
		c.visitSplit(arg)
		if c.failed {
			return
		}
	}
}

func (c *splitCollector) visitSplit(split *itermap.IterSplitExpr) {
	switch split.Source.Kind {
	case itermap.SourceVar:
		lowerFactor, lfOk := expr.AsConstInt(split.LowerFactor)
		extent, extOk := expr.AsConstInt(split.Extent)
		if !lfOk || !extOk {
			c.failed = true
			return
		}
		scale, _ := expr.AsConstInt(split.Scale)
		c.splits = append(c.splits, SplitExpr{Source: split.Source.Var, LowerFactor: lowerFactor, Extent: extent,
			Scale: scale})
	case itermap.SourceSum:
		c.visitSum(split.Source.Sum)
	default:
		exceptions.Panicf("layout.CollectSplits: unexpected source %s in %s", split.Source.Kind, split)
	}
}
