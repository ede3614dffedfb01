// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package expr

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Equal returns whether a and b are structurally equal. Variables are compared by identity.
func Equal(a, b Expr) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case KindIntImm:
		return a.(IntImm).Value == b.(IntImm).Value && a.DType() == b.DType()
	case KindBoolImm:
		return a.(BoolImm).Value == b.(BoolImm).Value
	case KindVar:
		return a.(*Var) == b.(*Var)
	case KindNot:
		return Equal(a.(*Not).A, b.(*Not).A)
	}
	ba, bb := a.(*Binary), b.(*Binary)
	return Equal(ba.A, bb.A) && Equal(ba.B, bb.B)
}

// EqualAll returns whether the two lists are element-wise structurally equal.
func EqualAll(a, b []Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Substitute replaces the variables in e by the expressions given in the mapping.
// Variables not in the mapping are kept. Nodes are rebuilt with the folding constructors.
func Substitute(e Expr, mapping map[*Var]Expr) Expr {
	switch e.Kind() {
	case KindIntImm, KindBoolImm:
		return e
	case KindVar:
		if replacement, found := mapping[e.(*Var)]; found {
			return replacement
		}
		return e
	case KindNot:
		return LogicalNot(Substitute(e.(*Not).A, mapping))
	}
	b := e.(*Binary)
	return Build(b.Op, Substitute(b.A, mapping), Substitute(b.B, mapping))
}

// CollectVars returns the variables used in e, in order of first appearance (left to right).
func CollectVars(e Expr) []*Var {
	var vars []*Var
	seen := make(map[*Var]bool)
	var visit func(e Expr)
	visit = func(e Expr) {
		switch e.Kind() {
		case KindIntImm, KindBoolImm:
		case KindVar:
			v := e.(*Var)
			if !seen[v] {
				seen[v] = true
				vars = append(vars, v)
			}
		case KindNot:
			visit(e.(*Not).A)
		default:
			b := e.(*Binary)
			visit(b.A)
			visit(b.B)
		}
	}
	visit(e)
	return vars
}

// UsesVar returns whether v appears in e.
func UsesVar(e Expr, v *Var) bool {
	for _, used := range CollectVars(e) {
		if used == v {
			return true
		}
	}
	return false
}

// Eval evaluates e given concrete values for its variables. Booleans evaluate to 0 or 1.
//
// It returns an error if a variable has no value, or on a division by zero.
func Eval(e Expr, values map[*Var]int64) (int64, error) {
	switch e.Kind() {
	case KindIntImm:
		return e.(IntImm).Value, nil
	case KindBoolImm:
		if e.(BoolImm).Value {
			return 1, nil
		}
		return 0, nil
	case KindVar:
		v := e.(*Var)
		value, found := values[v]
		if !found {
			return 0, errors.Errorf("expr.Eval: no value given for variable %q", v.Name)
		}
		return value, nil
	case KindNot:
		a, err := Eval(e.(*Not).A, values)
		if err != nil {
			return 0, err
		}
		return boolToInt(a == 0), nil
	}

	b := e.(*Binary)
	a, err := Eval(b.A, values)
	if err != nil {
		return 0, err
	}
	// Short-circuit logical operators.
	switch {
	case b.Op == KindAnd && a == 0:
		return 0, nil
	case b.Op == KindOr && a != 0:
		return 1, nil
	}
	c, err := Eval(b.B, values)
	if err != nil {
		return 0, err
	}
	switch b.Op {
	case KindAdd:
		return a + c, nil
	case KindSub:
		return a - c, nil
	case KindMul:
		return a * c, nil
	case KindFloorDiv, KindFloorMod:
		if c == 0 {
			return 0, errors.Errorf("expr.Eval(%s): division by zero", e)
		}
		if b.Op == KindFloorDiv {
			return FloorDivInt(a, c), nil
		}
		return FloorModInt(a, c), nil
	case KindMin:
		return min(a, c), nil
	case KindMax:
		return max(a, c), nil
	case KindLT:
		return boolToInt(a < c), nil
	case KindLE:
		return boolToInt(a <= c), nil
	case KindEQ:
		return boolToInt(a == c), nil
	case KindNE:
		return boolToInt(a != c), nil
	case KindAnd, KindOr:
		return boolToInt(c != 0), nil
	}
	exceptions.Panicf("expr.Eval: unknown operation %s in %s", b.Op, e)
	return 0, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
