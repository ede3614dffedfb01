// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines concrete (static) shapes, used to enumerate the coordinates of a buffer, and
// AxisBindings to resolve symbolic dimensions to concrete values.
package shapes

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/layoutsuggest/pkg/core/dtypes"
	"github.com/gomlx/layoutsuggest/pkg/core/expr"
)

// Shape of a buffer with static dimensions.
type Shape struct {
	Dimensions []int
}

// Make returns a Shape with the given dimensions. It panics on negative dimensions.
func Make(dimensions ...int) Shape {
	for axis, dim := range dimensions {
		if dim < 0 {
			exceptions.Panicf("shapes.Make(%v): negative dimension for axis #%d", dimensions, axis)
		}
	}
	return Shape{Dimensions: slices.Clone(dimensions)}
}

// Rank of the shape.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape has rank 0.
func (s Shape) IsScalar() bool { return len(s.Dimensions) == 0 }

// Size returns the number of elements: the product of the dimensions. It's 1 for a scalar.
func (s Shape) Size() int {
	size := 1
	for _, dim := range s.Dimensions {
		size *= dim
	}
	return size
}

// IsZeroSize returns whether some axis has dimension 0.
func (s Shape) IsZeroSize() bool {
	return slices.Contains(s.Dimensions, 0)
}

// Equal compares the dimensions of both shapes.
func (s Shape) Equal(other Shape) bool {
	return slices.Equal(s.Dimensions, other.Dimensions)
}

// Clone returns a deep copy of the shape.
func (s Shape) Clone() Shape {
	return Shape{Dimensions: slices.Clone(s.Dimensions)}
}

// Exprs returns the dimensions as constants of the given dtype.
func (s Shape) Exprs(dtype dtypes.DType) []expr.Expr {
	exprs := make([]expr.Expr, len(s.Dimensions))
	for axis, dim := range s.Dimensions {
		exprs[axis] = expr.Const(dtype, int64(dim))
	}
	return exprs
}

// String implements fmt.Stringer.
func (s Shape) String() string {
	parts := make([]string, len(s.Dimensions))
	for axis, dim := range s.Dimensions {
		parts[axis] = fmt.Sprintf("%d", dim)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
