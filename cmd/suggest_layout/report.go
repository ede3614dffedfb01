package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/layoutsuggest/internal/workerspool"
	"github.com/gomlx/layoutsuggest/pkg/core/arith"
	"github.com/gomlx/layoutsuggest/pkg/core/expr"
	"github.com/gomlx/layoutsuggest/pkg/core/indexmap"
	"github.com/gomlx/layoutsuggest/pkg/core/itermap"
	"github.com/gomlx/layoutsuggest/pkg/core/shapes"
	"github.com/gomlx/layoutsuggest/pkg/schedule/layout"
	"github.com/gomlx/layoutsuggest/pkg/support/sets"
	"github.com/gomlx/layoutsuggest/pkg/support/xslices"
	"k8s.io/klog/v2"
)

// analysis holds the results for one access.
type analysis struct {
	access *access

	// err is set if the analysis panicked, e.g. for an ill-formed loop nest.
	err        error
	suggestion *layout.Suggestion

	// resolved is the suggested IndexMap with the bound symbols replaced by their values.
	resolved *indexmap.IndexMap
	newShape []expr.Expr
	shapeErr error

	// Set with -bijective.
	bijective    []*itermap.IterSumExpr
	bijectiveErr error

	// Set with -eval.
	staticShape shapes.Shape
	evaluated   bool
	evalSkipped string
	evalErr     error
}

// failed returns whether a requested check failed.
func (r *analysis) failed() bool {
	return r.err != nil || (r.evaluated && r.evalErr != nil)
}

// symbolValues maps the symbols of the access that have a binding to their values. Loop variables are never
// replaced.
func (a *access) symbolValues() map[*expr.Var]expr.Expr {
	loopVars := sets.Make[*expr.Var](len(a.loops))
	for _, loop := range a.loops {
		loopVars.Insert(loop.LoopVar)
	}
	mapping := make(map[*expr.Var]expr.Expr)
	for _, name := range a.scope.Names() {
		value, found := a.bindings[name]
		if !found {
			continue
		}
		v, _ := a.scope.Lookup(name)
		if loopVars.Has(v) {
			continue
		}
		mapping[v] = expr.Const(v.Type, int64(value))
	}
	return mapping
}

func substituteAll(exprs []expr.Expr, mapping map[*expr.Var]expr.Expr) []expr.Expr {
	return xslices.Map(exprs, func(e expr.Expr) expr.Expr { return expr.Substitute(e, mapping) })
}

func analyze(a *access) *analysis {
	result := &analysis{access: a}
	analyzer := arith.NewAnalyzer()
	result.err = exceptions.TryCatch[error](func() {
		result.suggestion, _ = layout.Analyze(a.buffer, a.indices, a.loops, a.predicate, analyzer)
	})
	if result.err != nil {
		klog.V(1).Infof("%s: analysis failed: %v", a.label(), result.err)
		return result
	}

	if *flagBijective {
		domains := itermap.NewDomains()
		for _, loop := range a.loops {
			domains.Set(loop.LoopVar, loop.Range())
		}
		flattened := layout.FlattenIndex(a.buffer, a.indices)
		panicErr := exceptions.TryCatch[error](func() {
			result.bijective, result.bijectiveErr = itermap.DetectIterMap(
				[]expr.Expr{flattened}, domains, a.predicate, true, analyzer)
		})
		if panicErr != nil {
			result.bijectiveErr = panicErr
		}
	}
	if result.suggestion == nil {
		return result
	}

	symbols := a.symbolValues()
	m := result.suggestion.IndexMap
	result.resolved = &indexmap.IndexMap{
		InitialIndices: m.InitialIndices,
		FinalIndices:   substituteAll(m.FinalIndices, symbols),
	}
	shape := substituteAll(a.buffer.Shape, symbols)
	result.newShape, result.shapeErr = result.resolved.MapShape(shape, nil)

	if *flagEval {
		var err error
		result.staticShape, err = a.buffer.StaticShape(a.bindings)
		switch {
		case err != nil:
			result.evalSkipped = err.Error()
		case result.staticShape.Size() > *flagEvalLimit:
			result.evalSkipped = fmt.Sprintf("%s elements, above -eval_limit=%s",
				humanize.Comma(int64(result.staticShape.Size())), humanize.Comma(int64(*flagEvalLimit)))
		default:
			result.evaluated = true
			result.evalErr = result.resolved.CheckBijective(result.staticShape)
		}
	}
	return result
}

// render the analysis as a series of tables.
func (r *analysis) render() string {
	var sb strings.Builder
	a := r.access
	sb.WriteString(titleStyle.Render(a.label()))
	sb.WriteString("\n")

	summary := newPlainTableWithReds(nil, lipgloss.Right, lipgloss.Left)
	summary.Row(false, "buffer", a.buffer.String())
	summary.Row(false, "index dtype", a.buffer.DefaultIndexType().String())
	for _, loop := range a.loops {
		summary.Row(false, "loop", loop.String())
	}
	if !expr.IsTrue(a.predicate) {
		summary.Row(false, "predicate", a.predicate.String())
	}
	if len(a.bindings) > 0 {
		summary.Row(false, "bindings", a.bindings.Key())
	}
	if staticShape, err := a.buffer.StaticShape(a.bindings); err == nil {
		summary.Row(false, "# elements", humanize.Comma(int64(staticShape.Size())))
	}
	switch {
	case r.err != nil:
		summary.Row(true, "error", r.err.Error())
	case r.suggestion == nil:
		summary.Row(false, "flattened", layout.FlattenIndex(a.buffer, a.indices).String())
		summary.Row(true, "suggestion", "none: access is not an affine function of the loop variables")
	default:
		summary.Row(false, "flattened", r.suggestion.Flattened.String())
	}
	if *flagBijective && r.err == nil {
		switch {
		case r.bijectiveErr != nil:
			summary.Row(true, "bijective", "no: "+r.bijectiveErr.Error())
		case len(r.bijective) == 0:
			summary.Row(true, "bijective", "no")
		default:
			summary.Row(false, "bijective", "yes: "+r.bijective[0].String())
		}
	}
	sb.WriteString(summary.Table.Render())
	sb.WriteString("\n")
	if r.suggestion == nil {
		return sb.String()
	}

	newAxis := make([]int, len(r.suggestion.Splits))
	for k, ii := range r.suggestion.Order {
		newAxis[ii] = k
	}
	splits := newPlainTable([]string{"#", "Source", "Lower Factor", "Extent", "Scale", "New Axis"},
		lipgloss.Right, lipgloss.Left, lipgloss.Right)
	for ii, split := range r.suggestion.Splits {
		splits.Row(strconv.Itoa(ii), split.Source.String(),
			humanize.Comma(split.LowerFactor), humanize.Comma(split.Extent), humanize.Comma(split.Scale),
			strconv.Itoa(newAxis[ii]))
	}
	sb.WriteString(splits.Render())
	sb.WriteString("\n")

	result := newPlainTableWithReds(nil, lipgloss.Right, lipgloss.Left)
	result.Row(false, "index map", r.suggestion.IndexMap.String())
	if len(r.symbolsUsed()) > 0 {
		result.Row(false, "resolved", r.resolved.String())
	}
	if r.shapeErr != nil {
		result.Row(true, "new shape", r.shapeErr.Error())
	} else {
		result.Row(false, "new shape", "["+expr.Join(r.newShape)+"]")
	}
	switch {
	case r.evalSkipped != "":
		result.Row(false, "eval", "skipped: "+r.evalSkipped)
	case r.evaluated && r.evalErr != nil:
		result.Row(true, "eval", r.evalErr.Error())
	case r.evaluated:
		result.Row(false, "eval", fmt.Sprintf("bijective over %s (%s elements)",
			r.staticShape, humanize.Comma(int64(r.staticShape.Size()))))
	}
	sb.WriteString(result.Table.Render())
	sb.WriteString("\n")
	return sb.String()
}

// symbolsUsed returns the symbols, other than the placeholders, in the suggested IndexMap.
func (r *analysis) symbolsUsed() []*expr.Var {
	seen := sets.MakeWith(r.suggestion.IndexMap.InitialIndices...)
	var symbols []*expr.Var
	for _, e := range r.suggestion.IndexMap.FinalIndices {
		for _, v := range expr.CollectVars(e) {
			if seen.InsertNew(v) {
				symbols = append(symbols, v)
			}
		}
	}
	return symbols
}

// report analyzes all accesses in parallel, each with its own arith.Analyzer, and prints the results in order.
// It returns the number of accesses that failed.
func report(accesses []*access) int {
	pool := workerspool.New()
	if *flagParallelism != 0 {
		pool.SetMaxParallelism(*flagParallelism)
	}
	results := make([]*analysis, len(accesses))
	pool.Map(len(accesses), func(ii int) {
		results[ii] = analyze(accesses[ii])
	})
	var numFailed int
	for _, result := range results {
		fmt.Print(result.render())
		if result.failed() {
			numFailed++
		}
	}
	return numFailed
}
