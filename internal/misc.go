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
	"math/rand"
)

// Rand produces the random numbers used for variational seeding.
type Rand = rand.Rand

// NewRand returns a random number generator with a fixed seed, so
// that repeated runs on identical inputs produce identical output.
func NewRand(seed int64) *Rand {
	return rand.New(rand.NewSource(seed))
}

// StringHash computes an FNV-1a hash of the given string.
func StringHash(s string) (hash uint64) {
	hash = 14695981039346656037
	for i := 0; i < len(s); i++ {
		hash = (hash ^ uint64(s[i])) * 1099511628211
	}
	return hash
}
