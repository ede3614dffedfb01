// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tir

import (
	"testing"

	"github.com/gomlx/layoutsuggest/pkg/core/dtypes"
	"github.com/gomlx/layoutsuggest/pkg/core/expr"
	"github.com/gomlx/layoutsuggest/pkg/core/shapes"
	"github.com/stretchr/testify/require"
)

func TestBuffer(t *testing.T) {
	buffer := NewBuffer("A", 4, 8)
	require.Equal(t, 2, buffer.Rank())
	require.Equal(t, dtypes.Int32, buffer.DefaultIndexType())
	require.Equal(t, "A[4, 8]", buffer.String())
	buffer.IndexDType = dtypes.Int64
	require.Equal(t, dtypes.Int64, buffer.DefaultIndexType())

	scalar := NewBuffer("S")
	require.Equal(t, 0, scalar.Rank())
	require.Panics(t, func() { NewBuffer("B", 3, -1) })

	n := expr.IndexVar("n")
	dynamic := &Buffer{Name: "D", Shape: []expr.Expr{n, expr.Int(8)}, Strides: expr.Ints(1, 16)}
	require.Equal(t, "D[n, 8](strides=[1, 16])", dynamic.String())
	shape, err := dynamic.StaticShape(shapes.AxisBindings{"n": 3})
	require.NoError(t, err)
	require.Equal(t, []int{3, 8}, shape.Dimensions)
	_, err = dynamic.StaticShape(nil)
	require.Error(t, err)
}

func TestFor(t *testing.T) {
	i := expr.IndexVar("i")
	loop := Serial(i, expr.Int(4))
	require.Equal(t, "for i in range(0, 4)", loop.String())
	r := loop.Range()
	require.True(t, expr.IsConstInt(r.Min, 0))
	require.True(t, expr.IsConstInt(r.Extent, 4))

	j := expr.IndexVar("j")
	shifted := NewFor(j, expr.Int(2), expr.Int(6))
	require.Equal(t, "for j in range(2, 8)", shifted.String())
	require.Panics(t, func() { NewFor(j, nil, expr.Int(2)) })

	positions := LoopPositions([]*For{loop, shifted})
	require.Equal(t, map[*expr.Var]int{i: 0, j: 1}, positions)
	require.Panics(t, func() { LoopPositions([]*For{loop, shifted, Serial(i, expr.Int(2))}) })
}
