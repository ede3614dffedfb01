package main

import (
	"os"

	"github.com/gomlx/layoutsuggest/pkg/core/dtypes"
	"github.com/gomlx/layoutsuggest/pkg/core/expr"
	"github.com/gomlx/layoutsuggest/pkg/core/expr/exprparse"
	"github.com/gomlx/layoutsuggest/pkg/core/shapes"
	"github.com/gomlx/layoutsuggest/pkg/core/tir"
	"github.com/gomlx/layoutsuggest/pkg/support/fsutil"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML description of the buffer accesses to analyze. Example:
//
//	bindings: {n: 16}
//	accesses:
//	  - buffer: {name: A, shape: [n, 8]}
//	    loops:
//	      - {var: j, extent: 8}
//	      - {var: i, extent: n}
//	    indices: [i, j]
//	    predicate: "i < 12"
type fileConfig struct {
	// Bindings of symbolic dimensions, shared by all accesses.
	Bindings shapes.AxisBindings `yaml:"bindings,omitempty"`
	Accesses []accessConfig      `yaml:"accesses"`
}

type accessConfig struct {
	Buffer    bufferConfig        `yaml:"buffer"`
	Loops     []loopConfig        `yaml:"loops"`
	Indices   []string            `yaml:"indices"`
	Predicate string              `yaml:"predicate,omitempty"`
	Bindings  shapes.AxisBindings `yaml:"bindings,omitempty"`
}

type bufferConfig struct {
	Name    string   `yaml:"name"`
	Shape   []string `yaml:"shape"`
	Strides []string `yaml:"strides,omitempty"`
	DType   string   `yaml:"dtype,omitempty"`
}

type loopConfig struct {
	Var    string `yaml:"var"`
	Min    string `yaml:"min,omitempty"`
	Extent string `yaml:"extent"`
}

// access is a parsed accessConfig.
type access struct {
	buffer    *tir.Buffer
	loops     []*tir.For
	indices   []expr.Expr
	predicate expr.Expr
	bindings  shapes.AxisBindings
	scope     *exprparse.Scope
}

// label of the access, e.g. "A[i, j]".
func (a *access) label() string {
	return a.buffer.Name + "[" + expr.Join(a.indices) + "]"
}

func loadConfig(filePath string) (*fileConfig, error) {
	filePath, err := fsutil.ReplaceTildeInPath(filePath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading configuration from %q", filePath)
	}
	config, err := parseConfig(data)
	if err != nil {
		return nil, errors.WithMessagef(err, "in %q", filePath)
	}
	return config, nil
}

func parseConfig(data []byte) (*fileConfig, error) {
	config := &fileConfig{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "parsing YAML")
	}
	if len(config.Accesses) == 0 {
		return nil, errors.New("no accesses defined")
	}
	return config, nil
}

// build parses every access of the configuration.
func (c *fileConfig) build() ([]*access, error) {
	accesses := make([]*access, len(c.Accesses))
	for ii, accessCfg := range c.Accesses {
		var err error
		accesses[ii], err = accessCfg.build(c.Bindings)
		if err != nil {
			return nil, errors.WithMessagef(err, "access #%d", ii)
		}
	}
	return accesses, nil
}

func (c *accessConfig) build(globalBindings shapes.AxisBindings) (*access, error) {
	dtype := dtypes.Int32
	if c.Buffer.DType != "" {
		var err error
		dtype, err = dtypes.FromName(c.Buffer.DType)
		if err != nil {
			return nil, err
		}
		if !dtype.IsInt() {
			return nil, errors.Errorf("buffer index dtype must be an integer, got %s", dtype)
		}
	}
	a := &access{scope: exprparse.NewScope(dtype)}

	a.bindings = globalBindings.Clone()
	if a.bindings == nil {
		a.bindings = make(shapes.AxisBindings)
	}
	if err := a.bindings.Merge(c.Bindings); err != nil {
		return nil, err
	}

	// Loop variables are created first: they are the iterators of the access.
	a.loops = make([]*tir.For, len(c.Loops))
	for ii, loopCfg := range c.Loops {
		if loopCfg.Var == "" {
			return nil, errors.Errorf("loop #%d has no variable", ii)
		}
		if _, found := a.scope.Lookup(loopCfg.Var); found {
			return nil, errors.Errorf("loop #%d: variable %q already defined", ii, loopCfg.Var)
		}
		loopVar := a.scope.Var(loopCfg.Var)
		minSrc := loopCfg.Min
		if minSrc == "" {
			minSrc = "0"
		}
		loopMin, err := a.scope.Parse(minSrc)
		if err != nil {
			return nil, errors.WithMessagef(err, "loop %q min", loopCfg.Var)
		}
		if loopCfg.Extent == "" {
			return nil, errors.Errorf("loop %q has no extent", loopCfg.Var)
		}
		extent, err := a.scope.Parse(loopCfg.Extent)
		if err != nil {
			return nil, errors.WithMessagef(err, "loop %q extent", loopCfg.Var)
		}
		a.loops[ii] = tir.NewFor(loopVar, loopMin, extent)
	}

	name := c.Buffer.Name
	if name == "" {
		name = "buffer"
	}
	shape, err := a.scope.ParseAll(c.Buffer.Shape)
	if err != nil {
		return nil, errors.WithMessagef(err, "buffer %q shape", name)
	}
	a.buffer = &tir.Buffer{Name: name, Shape: shape, IndexDType: dtype}
	if len(c.Buffer.Strides) > 0 {
		if len(c.Buffer.Strides) != len(shape) {
			return nil, errors.Errorf("buffer %q has rank %d, but %d strides were given",
				name, len(shape), len(c.Buffer.Strides))
		}
		a.buffer.Strides, err = a.scope.ParseAll(c.Buffer.Strides)
		if err != nil {
			return nil, errors.WithMessagef(err, "buffer %q strides", name)
		}
	}

	if len(c.Indices) != len(shape) {
		return nil, errors.Errorf("buffer %q has rank %d, but %d indices were given", name, len(shape), len(c.Indices))
	}
	a.indices, err = a.scope.ParseAll(c.Indices)
	if err != nil {
		return nil, errors.WithMessagef(err, "indices of %q", name)
	}

	a.predicate = expr.True
	if c.Predicate != "" {
		a.predicate, err = a.scope.Parse(c.Predicate)
		if err != nil {
			return nil, errors.WithMessage(err, "predicate")
		}
		if a.predicate.DType() != dtypes.Bool {
			return nil, errors.Errorf("predicate %s is not a boolean expression", a.predicate)
		}
	}
	return a, nil
}
