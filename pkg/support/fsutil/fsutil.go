// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package fsutil contains utilities for working with the file system.
package fsutil

import (
	"os"
	"os/user"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// FileExists returns whether the file or directory exists or an error if something went wrong in the filesystem.
func FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, errors.Wrapf(err, "failed to FileExists(%q)", path)
}

// ReplaceTildeInPath by the user's home directory. Returns p if it doesn't start with "~".
//
// It returns an error if `p` has an unknown user (e.g: `~unknown/...`).
func ReplaceTildeInPath(p string) (string, error) {
	if len(p) == 0 || p[0] != '~' {
		return p, nil
	}
	var userName string
	if p != "~" && !strings.HasPrefix(p, "~/") {
		sepIdx := strings.IndexRune(p, '/')
		if sepIdx == -1 {
			userName = p[1:]
		} else {
			userName = p[1:sepIdx]
		}
	}
	var usr *user.User
	var err error
	if userName == "" {
		usr, err = user.Current()
	} else {
		usr, err = user.Lookup(userName)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to lookup home directory for user in path %q", p)
	}
	return path.Join(usr.HomeDir, p[1+len(userName):]), nil
}
