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

package genome

import "sort"

// A Genotype is a multiset of haplotypes of fixed ploidy assigned to
// a sample. Haplotypes are kept sorted by index so that multiset
// equality is positional equality.
type Genotype struct {
	indices []int
}

// NewGenotype returns the genotype over the given haplotype indices.
func NewGenotype(indices ...int) Genotype {
	sorted := append([]int(nil), indices...)
	sort.Ints(sorted)
	return Genotype{indices: sorted}
}

// Ploidy returns the number of haplotype copies in the genotype.
func (g Genotype) Ploidy() int {
	return len(g.indices)
}

// Haplotypes returns the sorted haplotype indices of the genotype.
func (g Genotype) Haplotypes() []int {
	return g.indices
}

// Count returns how many copies of the given haplotype the genotype
// carries.
func (g Genotype) Count(haplotype int) int {
	count := 0
	for _, h := range g.indices {
		if h == haplotype {
			count++
		}
	}
	return count
}

// Contains reports whether the genotype carries the given haplotype.
func (g Genotype) Contains(haplotype int) bool {
	return g.Count(haplotype) > 0
}

// IsHomozygous reports whether all copies are the same haplotype.
func (g Genotype) IsHomozygous() bool {
	for _, h := range g.indices[1:] {
		if h != g.indices[0] {
			return false
		}
	}
	return true
}

// Equal reports multiset equality.
func (g Genotype) Equal(other Genotype) bool {
	if len(g.indices) != len(other.indices) {
		return false
	}
	for i, h := range g.indices {
		if other.indices[i] != h {
			return false
		}
	}
	return true
}

// A CancerGenotype pairs a germline genotype with a set of somatic
// haplotypes.
type CancerGenotype struct {
	Germline Genotype
	Somatic  []int
}
