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
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// A UserError reports a problem with the inputs or options of a run.
// User errors abort the run with a structured message.
type UserError struct {
	Where, Why, Help string
}

func (e *UserError) Error() string {
	if e.Help == "" {
		return fmt.Sprintf("%v: %v", e.Where, e.Why)
	}
	return fmt.Sprintf("%v: %v (%v)", e.Where, e.Why, e.Help)
}

// NewUserError creates a UserError with a formatted reason.
func NewUserError(where, help, format string, args ...interface{}) *UserError {
	return &UserError{
		Where: where,
		Why:   fmt.Sprintf(format, args...),
		Help:  help,
	}
}

// A ProgramError reports a broken internal invariant or a requested
// feature that is not implemented.
type ProgramError struct {
	Why string
}

func (e *ProgramError) Error() string {
	return "internal error: " + e.Why
}

// SystemErrorKind classifies operating system failures so that they
// can be reported in a portable way.
type SystemErrorKind int

const (
	GenericIO SystemErrorKind = iota
	PermissionDenied
	ReadOnlyFileSystem
	NotEnoughMemory
	FilenameTooLong
)

func (k SystemErrorKind) String() string {
	switch k {
	case PermissionDenied:
		return "permission_denied"
	case ReadOnlyFileSystem:
		return "read_only_file_system"
	case NotEnoughMemory:
		return "not_enough_memory"
	case FilenameTooLong:
		return "filename_too_long"
	default:
		return "io_error"
	}
}

// A SystemError wraps an operating system failure with its classified
// kind.
type SystemError struct {
	Kind  SystemErrorKind
	cause error
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.cause)
}

func (e *SystemError) Cause() error { return e.cause }

// ClassifySystemError wraps err in a SystemError with the errno-based
// classification required for temp directory and output failures.
func ClassifySystemError(err error) *SystemError {
	kind := GenericIO
	cause := errors.Cause(err)
	if pathErr, ok := cause.(*os.PathError); ok {
		cause = pathErr.Err
	}
	if linkErr, ok := cause.(*os.LinkError); ok {
		cause = linkErr.Err
	}
	if errno, ok := cause.(unix.Errno); ok {
		switch errno {
		case unix.EACCES, unix.EPERM:
			kind = PermissionDenied
		case unix.EROFS:
			kind = ReadOnlyFileSystem
		case unix.ENOMEM:
			kind = NotEnoughMemory
		case unix.ENAMETOOLONG:
			kind = FilenameTooLong
		}
	}
	return &SystemError{Kind: kind, cause: err}
}
