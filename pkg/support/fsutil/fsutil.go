// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package fsutil contains utilities for working with the file system.
package fsutil

import (
	"os/user"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// ReplaceTildeInPath replaces a leading "~" or "~user" by the corresponding home directory.
// Other paths are returned unchanged.
func ReplaceTildeInPath(filePath string) (string, error) {
	if !strings.HasPrefix(filePath, "~") {
		return filePath, nil
	}
	userName, rest, _ := strings.Cut(filePath[1:], "/")
	var usr *user.User
	var err error
	if userName == "" {
		usr, err = user.Current()
	} else {
		usr, err = user.Lookup(userName)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to lookup home directory for user in path %q", filePath)
	}
	return path.Join(usr.HomeDir, rest), nil
}
