// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xslices holds generic helpers for slices and maps missing from the standard slices and maps packages.
package xslices

import (
	"cmp"
	"slices"

	"golang.org/x/exp/constraints"
)

// Map returns fn applied to every element of in, in order.
func Map[In, Out any](in []In, fn func(e In) Out) []Out {
	out := make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return out
}

// Iota returns the slice [start, start+1, ..., start+n-1].
func Iota[T constraints.Integer](start T, n int) []T {
	slice := make([]T, n)
	for ii := range slice {
		slice[ii] = start + T(ii)
	}
	return slice
}

// SortedKeys returns the keys of m in increasing order.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
