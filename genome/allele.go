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

// An Allele is a sequence hypothesis over a region. Deletions have an
// empty sequence over a non-empty region; insertions have a non-empty
// sequence over an empty region.
type Allele struct {
	Region Region
	Seq    string
}

// IsSNV reports whether the allele substitutes a single base.
func (a Allele) IsSNV() bool {
	return a.Region.Length() == 1 && len(a.Seq) == 1
}

// IsInsertion reports whether the allele inserts bases.
func (a Allele) IsInsertion() bool {
	return a.Region.IsEmpty() && len(a.Seq) > 0
}

// IsDeletion reports whether the allele removes reference bases.
func (a Allele) IsDeletion() bool {
	return a.Region.Length() > 0 && int32(len(a.Seq)) < a.Region.Length()
}

// IsIndel reports whether the allele changes the sequence length.
func (a Allele) IsIndel() bool {
	return a.Region.Length() != int32(len(a.Seq))
}

// CompareAlleles orders alleles by region, then by sequence.
func CompareAlleles(a1, a2 Allele) int {
	if c := Compare(a1.Region, a2.Region); c != 0 {
		return c
	}
	switch {
	case a1.Seq < a2.Seq:
		return -1
	case a1.Seq > a2.Seq:
		return 1
	default:
		return 0
	}
}
