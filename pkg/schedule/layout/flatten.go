// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package layout

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/layoutsuggest/pkg/core/dtypes"
	"github.com/gomlx/layoutsuggest/pkg/core/expr"
	"github.com/gomlx/layoutsuggest/pkg/core/tir"
)

// Flattener converts per-axis indices of a buffer to the flat offset into its storage.
type Flattener struct {
	strides []expr.Expr
	dtype   dtypes.DType
}

// NewFlattener captures the strides and index dtype of the buffer.
func NewFlattener(buffer *tir.Buffer) *Flattener {
	return &Flattener{strides: Strides(buffer), dtype: buffer.DefaultIndexType()}
}

// Rank of the buffer being flattened.
func (f *Flattener) Rank() int { return len(f.strides) }

// Flatten returns `sum(strides[axis] * indices[axis])`. It panics if the number of indices
// doesn't match the rank of the buffer.
func (f *Flattener) Flatten(indices []expr.Expr) expr.Expr {
	if len(indices) != len(f.strides) {
		exceptions.Panicf("Flattener.Flatten: given %d indices, but buffer has rank %d", len(indices), len(f.strides))
	}
	flat := expr.Expr(expr.Const(f.dtype, 0))
	for axis, index := range indices {
		flat = expr.Add(flat, expr.Mul(f.strides[axis], index))
	}
	return flat
}

// FlattenIndex returns the flat offset into the buffer's storage of the given per-axis indices.
func FlattenIndex(buffer *tir.Buffer, indices []expr.Expr) expr.Expr {
	return NewFlattener(buffer).Flatten(indices)
}
