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

package sam

// A Filter returns true if the alignment should be kept.
type Filter func(aln *Alignment) bool

// ValidBaseQualities drops reads with base qualities above the cap;
// these indicate a corrupt or mis-decoded quality string.
func ValidBaseQualities(aln *Alignment) bool {
	for _, q := range aln.QUAL {
		if q > MaxBaseQuality {
			return false
		}
	}
	return true
}

// WellFormed drops reads with structurally invalid CIGAR/sequence
// combinations.
func WellFormed(aln *Alignment) bool {
	return aln.IsWellFormed()
}

// MinMappingQuality drops reads below the given mapping quality.
func MinMappingQuality(quality byte) Filter {
	return func(aln *Alignment) bool { return aln.MAPQ >= quality }
}

// MinGoodBases drops reads with fewer than count bases at or above
// the given quality.
func MinGoodBases(quality byte, count int) Filter {
	return func(aln *Alignment) bool {
		good := 0
		for _, q := range aln.QUAL {
			if q >= quality {
				if good++; good >= count {
					return true
				}
			}
		}
		return false
	}
}

// MinReadLength drops reads shorter than the given length.
func MinReadLength(length int) Filter {
	return func(aln *Alignment) bool { return len(aln.SEQ) >= length }
}

// MaxReadLength drops reads longer than the given length.
func MaxReadLength(length int) Filter {
	return func(aln *Alignment) bool { return len(aln.SEQ) <= length }
}

// NotDuplicate drops duplicate-marked reads.
func NotDuplicate(aln *Alignment) bool { return !aln.IsDuplicate() }

// NotSecondary drops secondary alignments.
func NotSecondary(aln *Alignment) bool { return !aln.IsSecondary() }

// NotSupplementary drops supplementary alignments.
func NotSupplementary(aln *Alignment) bool { return !aln.IsSupplementary() }

// NotQCFailed drops reads that failed vendor quality checks.
func NotQCFailed(aln *Alignment) bool { return !aln.IsQCFailed() }

// MateMapped drops paired reads whose mate is unmapped.
func MateMapped(aln *Alignment) bool {
	return !aln.IsMultiple() || !aln.IsNextUnmapped()
}

// NoAdapterContamination drops paired reads whose fragment is shorter
// than half the read while the pair is not marked proper; such reads
// are dominated by adapter sequence.
func NoAdapterContamination(aln *Alignment) bool {
	if !aln.IsMultiple() || aln.IsNextUnmapped() || aln.TLEN == 0 {
		return true
	}
	fragment := aln.TLEN
	if fragment < 0 {
		fragment = -fragment
	}
	return fragment >= int32(len(aln.SEQ))/2 || aln.IsProper()
}

// ApplyFilters keeps the alignments that pass all filters, reusing
// the input slice.
func ApplyFilters(alns []*Alignment, filters []Filter) []*Alignment {
	result := alns[:0]
nextAln:
	for _, aln := range alns {
		for _, filter := range filters {
			if !filter(aln) {
				continue nextAln
			}
		}
		result = append(result, aln)
	}
	return result
}
