// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package expr

import (
	"testing"

	"github.com/gomlx/layoutsuggest/pkg/core/dtypes"
	"github.com/stretchr/testify/require"
)

func TestFloorIntegerOps(t *testing.T) {
	require.Equal(t, int64(2), FloorDivInt(int64(7), 3))
	require.Equal(t, int64(-3), FloorDivInt(int64(-7), 3))
	require.Equal(t, int64(-3), FloorDivInt(int64(7), -3))
	require.Equal(t, int64(2), FloorDivInt(int64(-7), -3))
	require.Equal(t, int64(1), FloorModInt(int64(7), 3))
	require.Equal(t, int64(2), FloorModInt(int64(-7), 3))
	require.Equal(t, int64(-2), FloorModInt(int64(7), -3))
	require.Equal(t, int64(6), GCD(int64(12), -18))
	require.Equal(t, int64(5), GCD(int64(0), 5))
	require.Panics(t, func() { FloorDivInt(int64(1), 0) })
}

func TestConstantFolding(t *testing.T) {
	i := IndexVar("i")
	require.True(t, IsConstInt(Add(Int(2), Int(3)), 5))
	require.Same(t, i, Add(i, Int(0)))
	require.Same(t, i, Mul(Int(1), i))
	require.True(t, IsConstInt(Mul(i, Int(0)), 0))
	require.Same(t, i, FloorDiv(i, Int(1)))
	require.True(t, IsConstInt(FloorMod(i, Int(1)), 0))
	require.True(t, IsConstInt(FloorDiv(Int(-7), Int(2)), -4))
	require.True(t, IsConstInt(FloorMod(Int(-7), Int(2)), 1))
	require.Equal(t, True, LT(Int(1), Int(2)))
	require.Equal(t, False, GE(Int(1), Int(2)))
	require.Panics(t, func() { FloorDiv(i, Int(0)) })
}

func TestDTypes(t *testing.T) {
	i := IndexVar("i")
	n := NewVar("n", dtypes.Int64)
	require.Equal(t, dtypes.Int32, Mul(i, Int(8)).DType())
	require.Equal(t, dtypes.Int64, Add(i, n).DType())
	// A constant adopts the type of the variable.
	require.Equal(t, dtypes.Int64, Add(n, Int(1)).DType())
	require.Equal(t, dtypes.Bool, LT(i, n).DType())
	require.Panics(t, func() { Add(True, i) })
	require.Panics(t, func() { And(i, True) })
	require.Panics(t, func() { NewVar("x", dtypes.Bool) })
}

func TestLogical(t *testing.T) {
	i := IndexVar("i")
	cond := LT(i, Int(4))
	require.Same(t, cond, And(True, cond))
	require.Equal(t, False, And(cond, False))
	require.Equal(t, True, Or(cond, True))
	require.Same(t, cond, LogicalNot(LogicalNot(cond)))
	require.True(t, IsTrue(nil))
	require.True(t, IsTrue(True))
	require.False(t, IsTrue(cond))
}

func TestString(t *testing.T) {
	i, j := IndexVar("i"), IndexVar("j")
	require.Equal(t, "(i*8 + j)", Add(Mul(i, Int(8)), j).String())
	require.Equal(t, "floormod(floordiv(i, 8), 4)", FloorMod(FloorDiv(i, Int(8)), Int(4)).String())
	require.Equal(t, "(i < 4)", LT(i, Int(4)).String())
	require.Equal(t, "i*(-1)", Neg(i).String())
	require.Equal(t, "i, j", Join(Vars(i, j)))
}

func TestEqualAndSubstitute(t *testing.T) {
	i, j := IndexVar("i"), IndexVar("j")
	other := IndexVar("i")
	e := Add(Mul(i, Int(8)), j)
	require.True(t, Equal(e, Add(Mul(i, Int(8)), j)))
	require.False(t, Equal(e, Add(Mul(other, Int(8)), j)), "variables are compared by identity")

	substituted := Substitute(e, map[*Var]Expr{i: Int(2), j: Int(3)})
	require.True(t, IsConstInt(substituted, 19))

	partial := Substitute(e, map[*Var]Expr{j: Int(0)})
	require.True(t, Equal(Mul(i, Int(8)), partial))

	require.Equal(t, []*Var{i, j}, CollectVars(Add(e, i)))
	require.True(t, UsesVar(e, j))
	require.False(t, UsesVar(e, other))
}

func TestEval(t *testing.T) {
	i, j := IndexVar("i"), IndexVar("j")
	e := FloorMod(FloorDiv(Add(Mul(i, Int(8)), j), Int(3)), Int(5))
	got, err := Eval(e, map[*Var]int64{i: 2, j: 7})
	require.NoError(t, err)
	require.Equal(t, int64(((2*8+7)/3)%5), got)

	got, err = Eval(And(LT(i, Int(4)), GE(j, Int(0))), map[*Var]int64{i: 3, j: 0})
	require.NoError(t, err)
	require.Equal(t, int64(1), got)

	_, err = Eval(e, map[*Var]int64{i: 2})
	require.Error(t, err)

	_, err = Eval(FloorDiv(i, j), map[*Var]int64{i: 2, j: 0})
	require.ErrorContains(t, err, "division by zero")
}
