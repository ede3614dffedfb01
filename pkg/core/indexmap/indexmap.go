// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package indexmap defines IndexMap, a symbolic function from one coordinate system of a buffer to another.
//
// An IndexMap holds placeholder variables for its input coordinates, and one expression over them for each
// output coordinate. E.g., a transposition of a 2D buffer:
//
//	m := indexmap.FromFunc(2, func(x []*expr.Var) []expr.Expr { return expr.Vars(x[1], x[0]) })
//	fmt.Println(m) // (i0, i1) => (i1, i0)
package indexmap

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/layoutsuggest/pkg/core/arith"
	"github.com/gomlx/layoutsuggest/pkg/core/dtypes"
	"github.com/gomlx/layoutsuggest/pkg/core/expr"
	"github.com/gomlx/layoutsuggest/pkg/core/shapes"
	"github.com/pkg/errors"
)

// IndexMap maps InitialIndices to FinalIndices.
type IndexMap struct {
	InitialIndices []*expr.Var
	FinalIndices   []expr.Expr
}

// FromFunc creates an IndexMap with ndim fresh input placeholders (named i0, i1, ...) and the outputs
// returned by fn when called on them.
//
// fn is called exactly once.
func FromFunc(ndim int, fn func(indices []*expr.Var) []expr.Expr) *IndexMap {
	if ndim < 0 {
		exceptions.Panicf("indexmap.FromFunc(%d): negative number of dimensions", ndim)
	}
	initial := make([]*expr.Var, ndim)
	for axis := range initial {
		initial[axis] = expr.IndexVar(fmt.Sprintf("i%d", axis))
	}
	final := fn(slices.Clone(initial))
	for ii, e := range final {
		if e == nil {
			exceptions.Panicf("indexmap.FromFunc(%d): function returned nil for output #%d", ndim, ii)
		}
	}
	return &IndexMap{InitialIndices: initial, FinalIndices: final}
}

// NumInputs returns the number of input coordinates.
func (m *IndexMap) NumInputs() int { return len(m.InitialIndices) }

// NumOutputs returns the number of output coordinates.
func (m *IndexMap) NumOutputs() int { return len(m.FinalIndices) }

func (m *IndexMap) checkInputs(method string, numInputs int) {
	if numInputs != m.NumInputs() {
		exceptions.Panicf("IndexMap.%s: given %d inputs, but the map takes %d", method, numInputs, m.NumInputs())
	}
}

// MapIndices applies the map to symbolic indices, simplifying the results with the analyzer.
// If analyzer is nil a new one is used.
func (m *IndexMap) MapIndices(indices []expr.Expr, analyzer *arith.Analyzer) []expr.Expr {
	m.checkInputs("MapIndices", len(indices))
	if analyzer == nil {
		analyzer = arith.NewAnalyzer()
	}
	mapping := make(map[*expr.Var]expr.Expr, len(indices))
	for axis, v := range m.InitialIndices {
		mapping[v] = indices[axis]
	}
	results := make([]expr.Expr, len(m.FinalIndices))
	for ii, e := range m.FinalIndices {
		results[ii] = analyzer.Simplify(expr.Substitute(e, mapping))
	}
	return results
}

// Eval applies the map to concrete coordinates.
func (m *IndexMap) Eval(coords []int64) ([]int64, error) {
	m.checkInputs("Eval", len(coords))
	values := make(map[*expr.Var]int64, len(coords))
	for axis, v := range m.InitialIndices {
		values[v] = coords[axis]
	}
	results := make([]int64, len(m.FinalIndices))
	for ii, e := range m.FinalIndices {
		var err error
		results[ii], err = expr.Eval(e, values)
		if err != nil {
			return nil, errors.WithMessagef(err, "evaluating output #%d of %s", ii, m)
		}
	}
	return results, nil
}

// MapShape returns the shape of the output coordinates, when the inputs range over shape.
//
// It fails if an output is not bounded by constants.
func (m *IndexMap) MapShape(shape []expr.Expr, analyzer *arith.Analyzer) ([]expr.Expr, error) {
	m.checkInputs("MapShape", len(shape))
	if analyzer == nil {
		analyzer = arith.NewAnalyzer()
	} else {
		analyzer = analyzer.Clone()
	}
	for axis, v := range m.InitialIndices {
		analyzer.Bind(v, arith.RangeFromMinExtent(expr.Const(v.Type, 0), shape[axis]))
	}
	newShape := make([]expr.Expr, len(m.FinalIndices))
	for ii, e := range m.FinalIndices {
		b := analyzer.ConstIntBound(analyzer.Simplify(e))
		if !b.IsFinite() {
			return nil, errors.Errorf("output #%d (%s) of %s has unknown bounds %s", ii, e, m, b)
		}
		newShape[ii] = expr.Const(e.DType(), b.Max-b.Min+1)
	}
	return newShape, nil
}

// CheckBijective enumerates every coordinate of shape and checks that the map sends them one-to-one onto
// the coordinates of the mapped shape (see MapShape).
func (m *IndexMap) CheckBijective(shape shapes.Shape) error {
	m.checkInputs("CheckBijective", shape.Rank())
	newShapeExprs, err := m.MapShape(shape.Exprs(dtypes.Int32), nil)
	if err != nil {
		return err
	}
	var bindings shapes.AxisBindings
	newShape, err := bindings.Resolve(newShapeExprs)
	if err != nil {
		return err
	}
	if newShape.Size() != shape.Size() {
		return errors.Errorf("%s maps %s (%d elements) to %s (%d elements)",
			m, shape, shape.Size(), newShape, newShape.Size())
	}
	newStrides := newShape.Strides()
	seen := make([]bool, newShape.Size())
	coords := make([]int64, shape.Rank())
	for _, indices := range shape.Iter() {
		for axis, idx := range indices {
			coords[axis] = int64(idx)
		}
		results, err := m.Eval(coords)
		if err != nil {
			return err
		}
		offset := 0
		for ii, result := range results {
			if result < 0 || result >= int64(newShape.Dimensions[ii]) {
				return errors.Errorf("%s maps %v to %v, out of the mapped shape %s", m, coords, results, newShape)
			}
			offset += int(result) * newStrides[ii]
		}
		if seen[offset] {
			return errors.Errorf("%s is not injective: %v maps to already visited %v", m, coords, results)
		}
		seen[offset] = true
	}
	return nil
}

// String implements fmt.Stringer.
func (m *IndexMap) String() string {
	inputs := make([]string, len(m.InitialIndices))
	for ii, v := range m.InitialIndices {
		inputs[ii] = v.String()
	}
	return fmt.Sprintf("(%s) => (%s)", strings.Join(inputs, ", "), expr.Join(m.FinalIndices))
}
