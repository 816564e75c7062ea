// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fsutil

import (
	"os"
	"os/user"
	"path"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceTildeInPath(t *testing.T) {
	got, err := ReplaceTildeInPath("data/x.npy")
	require.NoError(t, err)
	assert.Equal(t, "data/x.npy", got)

	usr, err := user.Current()
	require.NoError(t, err)
	got, err = ReplaceTildeInPath("~/x.npy")
	require.NoError(t, err)
	assert.Equal(t, path.Join(usr.HomeDir, "x.npy"), got)

	_, err = ReplaceTildeInPath("~user_that_does_not_exist_123/x.npy")
	require.Error(t, err)
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "x.npy")
	exists, err := FileExists(filePath)
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, os.WriteFile(filePath, []byte{1}, 0o644))
	exists, err = FileExists(filePath)
	require.NoError(t, err)
	assert.True(t, exists)
}
