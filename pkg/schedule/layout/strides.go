// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package layout

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/layoutsuggest/pkg/core/expr"
	"github.com/gomlx/layoutsuggest/pkg/core/tir"
)

// Strides returns the strides of each axis of the buffer, in elements.
//
// If the buffer has explicit strides they are returned as is. Otherwise, they are derived assuming a
// "row-major" layout: the last axis is contiguous.
func Strides(buffer *tir.Buffer) []expr.Expr {
	rank := buffer.Rank()
	if len(buffer.Strides) > 0 {
		if len(buffer.Strides) != rank {
			exceptions.Panicf("layout.Strides(%s): buffer has %d strides, but rank %d", buffer, len(buffer.Strides), rank)
		}
		return buffer.Strides
	}
	strides := make([]expr.Expr, rank)
	if rank == 0 {
		return strides
	}
	strides[rank-1] = expr.Const(buffer.DefaultIndexType(), 1)
	for axis := rank - 2; axis >= 0; axis-- {
		strides[axis] = expr.Mul(strides[axis+1], buffer.Shape[axis+1])
	}
	return strides
}
