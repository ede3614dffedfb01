// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fsutil

import (
	"os/user"
	"path"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReplaceTildeInPath(t *testing.T) {
	got, err := ReplaceTildeInPath("/tmp/accesses.yaml")
	require.NoError(t, err)
	require.Equal(t, "/tmp/accesses.yaml", got)

	usr, err := user.Current()
	if err != nil {
		t.Skipf("no current user: %v", err)
	}
	got, err = ReplaceTildeInPath("~/accesses.yaml")
	require.NoError(t, err)
	require.Equal(t, path.Join(usr.HomeDir, "accesses.yaml"), got)

	got, err = ReplaceTildeInPath("~")
	require.NoError(t, err)
	require.Equal(t, path.Clean(usr.HomeDir), got)

	_, err = ReplaceTildeInPath("~no_such_user_xyz/a.yaml")
	require.Error(t, err)
}
