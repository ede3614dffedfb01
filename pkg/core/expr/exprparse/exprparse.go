// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package exprparse parses index expressions written in Go syntax, like "i*8 + j/4".
//
// Integer division `/` is parsed as floor division and `%` as floor modulo, matching the index arithmetic
// of package expr. Also supported: the comparison and logical operators, and the functions
// min, max, floordiv and floormod.
//
// Names are resolved in a Scope, so that the same name always refers to the same variable.
package exprparse

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/layoutsuggest/pkg/core/dtypes"
	"github.com/gomlx/layoutsuggest/pkg/core/expr"
	"github.com/pkg/errors"
)

// Scope maps names to variables.
type Scope struct {
	dtype dtypes.DType
	vars  map[string]*expr.Var
	names []string
}

// NewScope creates an empty scope: variables and constants it creates have the given integer dtype.
func NewScope(dtype dtypes.DType) *Scope {
	if !dtype.IsInt() {
		exceptions.Panicf("exprparse.NewScope(%s): dtype must be an integer", dtype)
	}
	return &Scope{dtype: dtype, vars: make(map[string]*expr.Var)}
}

// DType of the variables and constants created by the scope.
func (s *Scope) DType() dtypes.DType { return s.dtype }

// Var returns the variable with the given name, creating it if needed.
func (s *Scope) Var(name string) *expr.Var {
	if v, found := s.vars[name]; found {
		return v
	}
	v := expr.NewVar(name, s.dtype)
	s.vars[name] = v
	s.names = append(s.names, name)
	return v
}

// Lookup returns the variable with the given name, if it was already created.
func (s *Scope) Lookup(name string) (*expr.Var, bool) {
	v, found := s.vars[name]
	return v, found
}

// Names returns the names of the variables in the order they were created.
func (s *Scope) Names() []string {
	return s.names
}

// Parse the expression in src, resolving names in the scope.
func (s *Scope) Parse(src string) (e expr.Expr, err error) {
	tree, err := parser.ParseExpr(src)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %q", src)
	}
	// Invalid operations (e.g. adding booleans) panic in the expr constructors.
	panicErr := exceptions.TryCatch[error](func() {
		e, err = s.convert(tree)
	})
	if panicErr != nil {
		return nil, errors.WithMessagef(panicErr, "invalid expression %q", src)
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "invalid expression %q", src)
	}
	return e, nil
}

// ParseAll parses each of the sources.
func (s *Scope) ParseAll(srcs []string) ([]expr.Expr, error) {
	exprs := make([]expr.Expr, len(srcs))
	for ii, src := range srcs {
		var err error
		exprs[ii], err = s.Parse(src)
		if err != nil {
			return nil, err
		}
	}
	return exprs, nil
}

var binaryOps = map[token.Token]func(a, b expr.Expr) expr.Expr{
	token.ADD:  expr.Add,
	token.SUB:  expr.Sub,
	token.MUL:  expr.Mul,
	token.QUO:  expr.FloorDiv,
	token.REM:  expr.FloorMod,
	token.LSS:  expr.LT,
	token.LEQ:  expr.LE,
	token.GTR:  expr.GT,
	token.GEQ:  expr.GE,
	token.EQL:  expr.EQ,
	token.NEQ:  expr.NE,
	token.LAND: expr.And,
	token.LOR:  expr.Or,
}

var functions = map[string]func(a, b expr.Expr) expr.Expr{
	"min":      expr.Min,
	"max":      expr.Max,
	"floordiv": expr.FloorDiv,
	"floormod": expr.FloorMod,
}

func (s *Scope) convert(node ast.Expr) (expr.Expr, error) {
	switch n := node.(type) {
	case *ast.ParenExpr:
		return s.convert(n.X)

	case *ast.BasicLit:
		if n.Kind != token.INT {
			return nil, errors.Errorf("unsupported literal %s: only integers are supported", n.Value)
		}
		value, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid integer %s", n.Value)
		}
		return expr.Const(s.dtype, value), nil

	case *ast.Ident:
		switch n.Name {
		case "true":
			return expr.True, nil
		case "false":
			return expr.False, nil
		}
		return s.Var(n.Name), nil

	case *ast.UnaryExpr:
		x, err := s.convert(n.X)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case token.ADD:
			return x, nil
		case token.SUB:
			return expr.Neg(x), nil
		case token.NOT:
			return expr.LogicalNot(x), nil
		}
		return nil, errors.Errorf("unsupported unary operator %s", n.Op)

	case *ast.BinaryExpr:
		op, found := binaryOps[n.Op]
		if !found {
			return nil, errors.Errorf("unsupported operator %s", n.Op)
		}
		x, err := s.convert(n.X)
		if err != nil {
			return nil, err
		}
		y, err := s.convert(n.Y)
		if err != nil {
			return nil, err
		}
		return op(x, y), nil

	case *ast.CallExpr:
		name, isIdent := n.Fun.(*ast.Ident)
		if !isIdent {
			return nil, errors.Errorf("unsupported function call")
		}
		fn, found := functions[name.Name]
		if !found {
			return nil, errors.Errorf("unknown function %q", name.Name)
		}
		if len(n.Args) != 2 {
			return nil, errors.Errorf("%s() takes 2 arguments, got %d", name.Name, len(n.Args))
		}
		x, err := s.convert(n.Args[0])
		if err != nil {
			return nil, err
		}
		y, err := s.convert(n.Args[1])
		if err != nil {
			return nil, err
		}
		return fn(x, y), nil
	}
	return nil, errors.Errorf("unsupported syntax %T", node)
}
