// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sets

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSet(t *testing.T) {
	s := Make[int](10)
	require.Len(t, s, 0)
	s.Insert(3, 7)
	require.Len(t, s, 2)
	require.True(t, s.Has(3))
	require.False(t, s.Has(5))

	require.True(t, s.InsertNew(5))
	require.False(t, s.InsertNew(5))
	require.Len(t, s, 3)

	s2 := MakeWith("i", "j")
	require.True(t, s2.Has("j"))
	require.False(t, s2.Has("k"))
}
