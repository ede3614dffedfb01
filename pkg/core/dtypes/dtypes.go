// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dtypes includes the DType enum for the scalar types used in index expressions.
//
// It is a reduced fork of GoMLX's dtypes: only booleans (for predicates) and integers (for indices,
// strides, loop bounds) are represented, since index arithmetic never involves floating point values.
package dtypes

import (
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// panicf panics with the formatted description.
//
// It is only used for "bugs in the code" -- when parameters don't follow the specifications.
func panicf(format string, args ...any) {
	panic(errors.Errorf(format, args...))
}

func init() {
	// Add a mapping to the lower-case version of dtypes.
	keys := slices.Collect(maps.Keys(MapOfNames))
	for _, key := range keys {
		lowerKey := strings.ToLower(key)
		if lowerKey == key {
			continue
		}
		if _, found := MapOfNames[lowerKey]; found {
			continue
		}
		MapOfNames[lowerKey] = MapOfNames[key]
	}
}

// FromGenericsType returns the DType enum for the given integer type.
//
// Go's `int` and `uint` are mapped to Int64 and Uint64: index arithmetic assumes a 64-bit platform.
func FromGenericsType[T constraints.Integer]() DType {
	var t T
	switch (any(t)).(type) {
	case int, int64:
		return Int64
	case int32:
		return Int32
	case int16:
		return Int16
	case int8:
		return Int8
	case uint, uint64:
		return Uint64
	case uint32:
		return Uint32
	case uint16:
		return Uint16
	case uint8:
		return Uint8
	}
	return InvalidDType
}

// FromName returns the DType for the given name (or alias), case-insensitive.
func FromName(name string) (DType, error) {
	if dtype, found := MapOfNames[name]; found {
		return dtype, nil
	}
	if dtype, found := MapOfNames[strings.ToLower(name)]; found {
		return dtype, nil
	}
	return InvalidDType, errors.Errorf("unknown dtype %q", name)
}

// Bits returns the number of bits for the given DType. Bool is counted as 8 bits.
func (dtype DType) Bits() int {
	switch dtype {
	case Bool, Int8, Uint8:
		return 8
	case Int16, Uint16:
		return 16
	case Int32, Uint32:
		return 32
	case Int64, Uint64:
		return 64
	}
	panicf("Bits() not defined for dtype %s", dtype)
	return 0
}

// IsInt returns whether dtype is an integer type (signed or unsigned).
func (dtype DType) IsInt() bool {
	return dtype == Int64 || dtype == Int32 || dtype == Int16 || dtype == Int8 ||
		dtype == Uint8 || dtype == Uint16 || dtype == Uint32 || dtype == Uint64
}

// IsUnsigned returns whether dtype is one of the unsigned integer types.
func (dtype DType) IsUnsigned() bool {
	return dtype == Uint8 || dtype == Uint16 || dtype == Uint32 || dtype == Uint64
}

// LowestValue returns the lowest representable value of an integer dtype, as an int64.
// Uint64 is clamped to the int64 range.
func (dtype DType) LowestValue() int64 {
	switch dtype {
	case Int8:
		return math.MinInt8
	case Int16:
		return math.MinInt16
	case Int32:
		return math.MinInt32
	case Int64:
		return math.MinInt64
	case Bool, Uint8, Uint16, Uint32, Uint64:
		return 0
	}
	panicf("LowestValue() not defined for dtype %s", dtype)
	return 0
}

// HighestValue returns the highest representable value of an integer dtype, as an int64.
// Uint64 is clamped to the int64 range.
func (dtype DType) HighestValue() int64 {
	switch dtype {
	case Bool:
		return 1
	case Int8:
		return math.MaxInt8
	case Int16:
		return math.MaxInt16
	case Int32:
		return math.MaxInt32
	case Int64, Uint64:
		return math.MaxInt64
	case Uint8:
		return math.MaxUint8
	case Uint16:
		return math.MaxUint16
	case Uint32:
		return math.MaxUint32
	}
	panicf("HighestValue() not defined for dtype %s", dtype)
	return 0
}

// IsPromotableTo returns whether dtype can be promoted to target without loss.
//
// For example, Int32 can be promoted to Int64, but not to Uint64.
func (dtype DType) IsPromotableTo(target DType) bool {
	if dtype == target {
		return true
	}
	if !dtype.IsInt() || !target.IsInt() {
		return false
	}
	if dtype.IsUnsigned() != target.IsUnsigned() {
		// Unsigned fits into a strictly wider signed type.
		return dtype.IsUnsigned() && !target.IsUnsigned() && target.Bits() > dtype.Bits()
	}
	return target.Bits() > dtype.Bits()
}

// Promote returns the dtype that can hold values of both a and b.
// It panics if there is none.
func Promote(a, b DType) DType {
	switch {
	case a.IsPromotableTo(b):
		return b
	case b.IsPromotableTo(a):
		return a
	}
	if a.IsInt() && b.IsInt() {
		return Int64
	}
	panicf("cannot promote dtypes %s and %s to a common dtype", a, b)
	return InvalidDType
}
