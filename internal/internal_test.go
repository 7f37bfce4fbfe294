// halo: a haplotype-based variant caller for sequencing pipelines.
// Copyright (c) 2026 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/halo/blob/master/LICENSE.txt>.

package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestTempDirNumberedSuffixes(t *testing.T) {
	working := t.TempDir()

	first, err := NewTempDir(working, "halo-temp", false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(working, "halo-temp"), first.Path)

	second, err := NewTempDir(working, "halo-temp", false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(working, "halo-temp-1"), second.Path)

	scratch := second.ScratchFile(".bam")
	assert.Equal(t, second.Path, filepath.Dir(scratch))

	require.NoError(t, first.Close())
	_, err = os.Stat(first.Path)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, second.Close())
}

func TestTempDirInvalidWorkingDirectory(t *testing.T) {
	_, err := NewTempDir("/nonexistent/path", "halo-temp", false)
	require.Error(t, err)
	userErr, ok := err.(*UserError)
	require.True(t, ok)
	assert.Contains(t, userErr.Why, "not a valid working directory")
}

func TestClassifySystemError(t *testing.T) {
	cases := map[unix.Errno]SystemErrorKind{
		unix.EACCES:       PermissionDenied,
		unix.EROFS:        ReadOnlyFileSystem,
		unix.ENOMEM:       NotEnoughMemory,
		unix.ENAMETOOLONG: FilenameTooLong,
		unix.EIO:          GenericIO,
	}
	for errno, kind := range cases {
		classified := ClassifySystemError(&os.PathError{Op: "mkdir", Path: "x", Err: errno})
		assert.Equal(t, kind, classified.Kind)
	}
	assert.Equal(t, "permission_denied", PermissionDenied.String())
	assert.Equal(t, "read_only_file_system", ReadOnlyFileSystem.String())
}

func TestUserErrorMessage(t *testing.T) {
	err := NewUserError("ploidy specification", "remove one entry", "ambiguous ploidy for %q", "X")
	assert.Contains(t, err.Error(), "ploidy specification")
	assert.Contains(t, err.Error(), `ambiguous ploidy for "X"`)
	assert.Contains(t, err.Error(), "remove one entry")
}

func TestStringHash(t *testing.T) {
	assert.Equal(t, StringHash("ACGT"), StringHash("ACGT"))
	assert.NotEqual(t, StringHash("ACGT"), StringHash("ACGA"))
}

func TestNewRandDeterministic(t *testing.T) {
	r1 := NewRand(42)
	r2 := NewRand(42)
	for i := 0; i < 10; i++ {
		assert.Equal(t, r1.Float64(), r2.Float64())
	}
}
