// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"iter"

	"github.com/gomlx/exceptions"
)

// Strides returns the strides for each axis of the shape, assuming a "row-major" layout
// in memory: the last axis is contiguous.
//
// Notice the strides are **not in bytes**, but in elements.
func (s Shape) Strides() (strides []int) {
	rank := s.Rank()
	if rank == 0 {
		return
	}
	strides = make([]int, rank)
	currentStride := 1
	for axis := rank - 1; axis >= 0; axis-- {
		strides[axis] = currentStride
		currentStride *= s.Dimensions[axis]
	}
	return
}

// Iter iterates sequentially, in row-major order, over all coordinates of the shape.
//
// It yields the flat index (counter) and the coordinates for each axis.
//
// To avoid allocating, the yielded coordinates slice is owned by Iter: don't change it inside the loop,
// and clone it if it needs to be kept.
func (s Shape) Iter() iter.Seq2[int, []int] {
	return s.IterOn(make([]int, s.Rank()))
}

// IterOn is like Iter, but updates the given coordinates slice, which must have length equal to the rank.
// It panics otherwise.
func (s Shape) IterOn(coords []int) iter.Seq2[int, []int] {
	if len(coords) != s.Rank() {
		exceptions.Panicf("Shape.IterOn given len(coords) == %d, want it to be equal to the rank %d", len(coords), s.Rank())
	}
	return func(yield func(int, []int) bool) {
		if s.IsZeroSize() {
			return
		}
		for axis := range coords {
			coords[axis] = 0
		}
		rank := s.Rank()
		flatIdx := 0
	yielder:
		for {
			if !yield(flatIdx, coords) {
				return
			}
			flatIdx++

			// Increment to the next coordinates: the last axis changes fastest.
			for axis := rank - 1; axis >= 0; axis-- {
				coords[axis]++
				if coords[axis] < s.Dimensions[axis] {
					continue yielder
				}
				// Carry-over to the previous axis.
				coords[axis] = 0
			}
			// All axes overflowed (or scalar): iteration is complete.
			return
		}
	}
}
