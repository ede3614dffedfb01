// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tir defines the descriptors of a loop nest accessing a buffer: the Buffer being accessed and
// the For loops surrounding the access.
//
// Both are plain descriptors, owned by the caller and never modified by the analyses.
package tir

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/layoutsuggest/pkg/core/arith"
	"github.com/gomlx/layoutsuggest/pkg/core/dtypes"
	"github.com/gomlx/layoutsuggest/pkg/core/expr"
	"github.com/gomlx/layoutsuggest/pkg/core/shapes"
)

// Buffer describes a multi-dimensional buffer.
type Buffer struct {
	Name string

	// Shape holds the extent of each axis. They may be symbolic.
	Shape []expr.Expr

	// Strides, if given, must have one entry per axis: it overrides the default row-major strides.
	Strides []expr.Expr

	// IndexDType is the dtype used for indices into the buffer. If InvalidDType, it defaults to Int32.
	IndexDType dtypes.DType
}

// NewBuffer creates a Buffer with static dimensions, row-major strides and Int32 indices.
func NewBuffer(name string, dimensions ...int) *Buffer {
	shape := make([]expr.Expr, len(dimensions))
	for axis, dim := range dimensions {
		if dim < 0 {
			exceptions.Panicf("tir.NewBuffer(%q, %v): negative dimension for axis #%d", name, dimensions, axis)
		}
		shape[axis] = expr.Int(int64(dim))
	}
	return &Buffer{Name: name, Shape: shape}
}

// Rank of the buffer.
func (b *Buffer) Rank() int {
	return len(b.Shape)
}

// DefaultIndexType returns the dtype of the indices into the buffer.
func (b *Buffer) DefaultIndexType() dtypes.DType {
	if b.IndexDType == dtypes.InvalidDType {
		return dtypes.Int32
	}
	return b.IndexDType
}

// StaticShape resolves the shape of the buffer to concrete dimensions, using bindings for the symbolic ones.
func (b *Buffer) StaticShape(bindings shapes.AxisBindings) (shapes.Shape, error) {
	return bindings.Resolve(b.Shape)
}

// String implements fmt.Stringer.
func (b *Buffer) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s[%s]", b.Name, expr.Join(b.Shape))
	if len(b.Strides) > 0 {
		fmt.Fprintf(&sb, "(strides=[%s])", expr.Join(b.Strides))
	}
	return sb.String()
}

// For describes a loop: LoopVar iterates over [Min, Min+Extent).
type For struct {
	LoopVar     *expr.Var
	Min, Extent expr.Expr
}

// NewFor creates a loop descriptor.
func NewFor(loopVar *expr.Var, min, extent expr.Expr) *For {
	if loopVar == nil || min == nil || extent == nil {
		exceptions.Panicf("tir.NewFor(%v, %v, %v): loop variable, min and extent must be given", loopVar, min, extent)
	}
	return &For{LoopVar: loopVar, Min: min, Extent: extent}
}

// Serial creates a loop descriptor starting at 0.
func Serial(loopVar *expr.Var, extent expr.Expr) *For {
	return NewFor(loopVar, expr.Const(loopVar.Type, 0), extent)
}

// Range returns the domain of the loop variable.
func (f *For) Range() arith.Range {
	return arith.RangeFromMinExtent(f.Min, f.Extent)
}

// String implements fmt.Stringer.
func (f *For) String() string {
	return fmt.Sprintf("for %s in range(%s, %s)", f.LoopVar, f.Min, expr.Add(f.Min, f.Extent))
}

// LoopPositions maps each loop variable to its position in the nest.
// It panics if a variable is used by more than one loop.
func LoopPositions(loops []*For) map[*expr.Var]int {
	positions := make(map[*expr.Var]int, len(loops))
	for ii, loop := range loops {
		if prev, found := positions[loop.LoopVar]; found {
			exceptions.Panicf("tir.LoopPositions: loop variable %s used by loops #%d and #%d", loop.LoopVar, prev, ii)
		}
		positions[loop.LoopVar] = ii
	}
	return positions
}
