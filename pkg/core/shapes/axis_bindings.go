// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"fmt"
	"maps"
	"strings"

	"github.com/gomlx/layoutsuggest/pkg/core/expr"
	"github.com/gomlx/layoutsuggest/pkg/support/xslices"
	"github.com/pkg/errors"
)

// AxisBindings maps the names of symbolic dimensions to concrete values.
// Used to resolve symbolic buffer shapes and loop extents to concrete ones.
type AxisBindings map[string]int

// Key returns a canonical string representation for map keying.
// Format: "name1=val1,name2=val2" with names sorted alphabetically.
// Returns empty string for empty or nil bindings.
func (ab AxisBindings) Key() string {
	if len(ab) == 0 {
		return ""
	}
	names := xslices.SortedKeys(ab)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%d", name, ab[name])
	}
	return strings.Join(parts, ",")
}

// Clone returns a copy of the bindings.
func (ab AxisBindings) Clone() AxisBindings {
	if ab == nil {
		return nil
	}
	return maps.Clone(ab)
}

// Merge combines bindings from another AxisBindings into this one.
// Returns an error if there are conflicting values for the same name.
func (ab AxisBindings) Merge(other AxisBindings) error {
	for name, val := range other {
		if existing, ok := ab[name]; ok && existing != val {
			return errors.Errorf("conflicting values for axis %q: %d vs %d", name, existing, val)
		}
		ab[name] = val
	}
	return nil
}

// Eval evaluates the integer expression e, looking up its variables by name in the bindings.
func (ab AxisBindings) Eval(e expr.Expr) (int64, error) {
	values := make(map[*expr.Var]int64)
	for _, v := range expr.CollectVars(e) {
		value, found := ab[v.Name]
		if !found {
			return 0, errors.Errorf("no binding for %q in %s", v.Name, e)
		}
		values[v] = int64(value)
	}
	return expr.Eval(e, values)
}

// Resolve the symbolic dimensions to a concrete Shape.
// It fails if a dimension uses an unbound name or resolves to a negative value.
func (ab AxisBindings) Resolve(dimensions []expr.Expr) (Shape, error) {
	shape := Shape{Dimensions: make([]int, len(dimensions))}
	for axis, dim := range dimensions {
		value, err := ab.Eval(dim)
		if err != nil {
			return Shape{}, errors.WithMessagef(err, "resolving axis #%d", axis)
		}
		if value < 0 {
			return Shape{}, errors.Errorf("axis #%d (%s) resolves to negative dimension %d", axis, dim, value)
		}
		shape.Dimensions[axis] = int(value)
	}
	return shape, nil
}
