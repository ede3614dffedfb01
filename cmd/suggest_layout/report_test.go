package main

import (
	"testing"

	"github.com/gomlx/layoutsuggest/pkg/core/expr"
	"github.com/stretchr/testify/require"
)

func buildAccesses(t *testing.T, config string) []*access {
	parsed, err := parseConfig([]byte(config))
	require.NoError(t, err)
	accesses, err := parsed.build()
	require.NoError(t, err)
	return accesses
}

func withFlags(t *testing.T, bijective, eval bool) {
	prevBijective, prevEval := *flagBijective, *flagEval
	*flagBijective, *flagEval = bijective, eval
	t.Cleanup(func() {
		*flagBijective, *flagEval = prevBijective, prevEval
	})
}

func TestAnalyze(t *testing.T) {
	withFlags(t, true, true)
	accesses := buildAccesses(t, transposedConfig)

	t.Run("Transposed", func(t *testing.T) {
		result := analyze(accesses[0])
		require.NoError(t, result.err)
		require.NotNil(t, result.suggestion)
		require.Equal(t, []int{1, 0}, result.suggestion.Order)
		require.Equal(t, "(i0, i1) => (i1, floormod(i0, 16))", result.suggestion.IndexMap.String())
		require.Empty(t, result.symbolsUsed())

		require.NoError(t, result.shapeErr)
		require.Equal(t, "8, 16", expr.Join(result.newShape))

		// Every element is visited once by the loop nest.
		require.NoError(t, result.bijectiveErr)
		require.Len(t, result.bijective, 1)

		// The symbolic dimension is resolved with the bindings.
		require.True(t, result.evaluated)
		require.NoError(t, result.evalErr)
		require.Equal(t, "[16, 8]", result.staticShape.String())
		require.False(t, result.failed())

		output := result.render()
		require.Contains(t, output, "A[i, j]")
		require.Contains(t, output, "(i0, i1) => (i1, floormod(i0, 16))")
		require.Contains(t, output, "bijective over [16, 8]")
	})

	t.Run("Predicated", func(t *testing.T) {
		// The predicate shortens the loop to 30 iterations: the suggested layout can't hold all 32 elements.
		result := analyze(accesses[1])
		require.NoError(t, result.err)
		require.NotNil(t, result.suggestion)
		require.Len(t, result.suggestion.Splits, 1)
		split := result.suggestion.Splits[0]
		require.Equal(t, int64(30), split.Extent)
		require.Equal(t, int64(2), split.Scale)
		require.NoError(t, result.bijectiveErr, "the loop visits distinct elements")
		require.True(t, result.evaluated)
		require.Error(t, result.evalErr)
		require.True(t, result.failed())
	})
}

func TestAnalyzeNoSuggestion(t *testing.T) {
	withFlags(t, false, true)
	accesses := buildAccesses(t, `
accesses:
  - buffer: {name: C, shape: [16, 4]}
    loops:
      - {var: i, extent: 4}
      - {var: j, extent: 4}
    indices: ["i*j", j]
`)
	result := analyze(accesses[0])
	require.NoError(t, result.err)
	require.Nil(t, result.suggestion)
	require.False(t, result.evaluated)
	require.False(t, result.failed())
	require.Contains(t, result.render(), "none")
}

func TestAnalyzeEvalLimit(t *testing.T) {
	withFlags(t, false, true)
	prevLimit := *flagEvalLimit
	*flagEvalLimit = 10
	defer func() { *flagEvalLimit = prevLimit }()

	accesses := buildAccesses(t, transposedConfig)
	result := analyze(accesses[0])
	require.False(t, result.evaluated)
	require.Contains(t, result.evalSkipped, "128 elements")
}

func TestReport(t *testing.T) {
	withFlags(t, false, false)
	accesses := buildAccesses(t, transposedConfig)
	require.Equal(t, 0, report(accesses))
}
