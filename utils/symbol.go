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

package utils

import (
	"unsafe"

	"github.com/exascience/halo/internal"
	"github.com/exascience/pargo/sync"
)

// A Symbol is a unique pointer for an interned string. Symbols are
// used for VCF INFO/FORMAT keys and optional read fields, where
// pointer comparison is much cheaper than string comparison.
type Symbol *string

type symbolName string

// SymbolHash returns a hash value for the given symbol.
func SymbolHash(s Symbol) uint64 {
	return uint64(uintptr(unsafe.Pointer(s)))
}

func (s symbolName) Hash() uint64 {
	return internal.StringHash(string(s))
}

var symbolTable = sync.NewMap(0)

// Intern returns a Symbol for the given string.
//
// It always returns the same pointer for strings that are equal, and
// different pointers for strings that are not equal, so Symbol values
// can be compared with ==. It is safe for multiple goroutines to call
// Intern concurrently.
func Intern(s string) Symbol {
	entry, _ := symbolTable.LoadOrStore(symbolName(s), Symbol(&s))
	return entry.(Symbol)
}
