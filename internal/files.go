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
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FileOpen is os.Open with panics in place of errors
func FileOpen(name string) *os.File {
	file, err := os.Open(name)
	if err != nil {
		log.Panic(err)
	}
	return file
}

// FileCreate is os.Create with panics in place of errors
func FileCreate(name string) *os.File {
	file, err := os.Create(name)
	if err != nil {
		log.Panic(err)
	}
	return file
}

// Close is file.Close() with panics in place of errors
func Close(file interface{ Close() error }) {
	if err := file.Close(); err != nil {
		log.Panic(err)
	}
}

// MkdirAll is os.MkdirAll with panics in place of errors
func MkdirAll(path string, perm os.FileMode) {
	if err := os.MkdirAll(path, perm); err != nil {
		log.Panic(err)
	}
}

// FullPathname returns an absolute version of filename, resolved
// against the working directory when relative.
func FullPathname(filename string) (string, error) {
	if filepath.IsAbs(filename) {
		return filename, nil
	}
	wd, err := os.Getwd()
	return filepath.Join(wd, filename), err
}

// maximum number of numbered suffixes tried before giving up on
// creating a temp directory
const maxTempDirAttempts = 10000

// A TempDir is a scratch directory that lives for the duration of a
// run. Close removes the directory unless KeepOnFailure was requested
// and the run panicked.
type TempDir struct {
	Path          string
	KeepOnFailure bool
}

// NewTempDir creates <workingDir>/<prefix>[-N]/, retrying with
// numbered suffixes on collision. Creation failures are classified
// into system error kinds.
func NewTempDir(workingDir, prefix string, keepOnFailure bool) (*TempDir, error) {
	if info, err := os.Stat(workingDir); err != nil || !info.IsDir() {
		return nil, &UserError{
			Where: "temp directory",
			Why:   fmt.Sprintf("%v is not a valid working directory", workingDir),
			Help:  "pass an existing directory with --working-directory",
		}
	}
	var lastErr error
	for attempt := 0; attempt < maxTempDirAttempts; attempt++ {
		name := prefix
		if attempt > 0 {
			name = fmt.Sprintf("%s-%d", prefix, attempt)
		}
		path := filepath.Join(workingDir, name)
		err := os.Mkdir(path, 0700)
		if err == nil {
			return &TempDir{Path: path, KeepOnFailure: keepOnFailure}, nil
		}
		if os.IsExist(err) {
			lastErr = err
			continue
		}
		return nil, ClassifySystemError(err)
	}
	return nil, ClassifySystemError(lastErr)
}

// ScratchFile returns a fresh unique filename inside the temp
// directory.
func (d *TempDir) ScratchFile(suffix string) string {
	return filepath.Join(d.Path, uuid.New().String()+suffix)
}

// Close removes the temp directory. When KeepOnFailure is set and a
// panic is in flight, the directory is preserved for post-mortem
// inspection.
func (d *TempDir) Close() error {
	if d.KeepOnFailure {
		if r := recover(); r != nil {
			log.Printf("preserving temp directory %v for post-mortem inspection", d.Path)
			panic(r)
		}
	}
	return os.RemoveAll(d.Path)
}
