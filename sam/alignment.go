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

import (
	"sort"

	"github.com/exascience/halo/genome"
	psort "github.com/exascience/pargo/sort"
)

// An Alignment is one aligned read. POS is the zero-based leftmost
// reference position; QUAL holds raw phred values, not ASCII.
type Alignment struct {
	QNAME  string
	FLAG   uint16
	RNAME  string
	POS    int32
	MAPQ   byte
	CIGAR  []CigarOperation
	RNEXT  string
	PNEXT  int32
	TLEN   int32
	SEQ    []byte
	QUAL   []byte
	Sample string
}

// SAM flag values.
const (
	Multiple      = 0x1
	Proper        = 0x2
	Unmapped      = 0x4
	NextUnmapped  = 0x8
	Reversed      = 0x10
	NextReversed  = 0x20
	First         = 0x40
	Last          = 0x80
	Secondary     = 0x100
	QCFailed      = 0x200
	Duplicate     = 0x400
	Supplementary = 0x800
)

func (aln *Alignment) IsMultiple() bool      { return (aln.FLAG & Multiple) != 0 }
func (aln *Alignment) IsProper() bool        { return (aln.FLAG & Proper) != 0 }
func (aln *Alignment) IsUnmapped() bool      { return (aln.FLAG & Unmapped) != 0 }
func (aln *Alignment) IsNextUnmapped() bool  { return (aln.FLAG & NextUnmapped) != 0 }
func (aln *Alignment) IsReversed() bool      { return (aln.FLAG & Reversed) != 0 }
func (aln *Alignment) IsNextReversed() bool  { return (aln.FLAG & NextReversed) != 0 }
func (aln *Alignment) IsFirst() bool         { return (aln.FLAG & First) != 0 }
func (aln *Alignment) IsLast() bool          { return (aln.FLAG & Last) != 0 }
func (aln *Alignment) IsSecondary() bool     { return (aln.FLAG & Secondary) != 0 }
func (aln *Alignment) IsQCFailed() bool      { return (aln.FLAG & QCFailed) != 0 }
func (aln *Alignment) IsDuplicate() bool     { return (aln.FLAG & Duplicate) != 0 }
func (aln *Alignment) IsSupplementary() bool { return (aln.FLAG & Supplementary) != 0 }

// End returns the zero-based position one past the last reference
// position the read consumes.
func (aln *Alignment) End() int32 {
	return aln.POS + ReferenceLengthFromCigar(aln.CIGAR)
}

// Region returns the reference region the read consumes.
func (aln *Alignment) Region() genome.Region {
	return genome.Region{Contig: aln.RNAME, Start: aln.POS, End: aln.End()}
}

// Overlaps reports whether the read consumes reference positions in
// [start, end) on its own contig.
func (aln *Alignment) Overlaps(start, end int32) bool {
	return aln.POS < end && start < aln.End()
}

// IsWellFormed reports the mandatory structural invariants: a
// non-empty CIGAR whose query-consuming length equals the sequence
// length, which in turn equals the quality length.
func (aln *Alignment) IsWellFormed() bool {
	if len(aln.CIGAR) == 0 || len(aln.SEQ) == 0 {
		return false
	}
	if len(aln.SEQ) != len(aln.QUAL) {
		return false
	}
	return ReadLengthFromCigar(aln.CIGAR) == int32(len(aln.SEQ))
}

type (
	// By is an ordering on alignments.
	By func(aln1, aln2 *Alignment) bool

	alignmentSorter struct {
		alns []*Alignment
		by   By
	}
)

// CoordinateLess orders alignments by position within a contig.
func CoordinateLess(aln1, aln2 *Alignment) bool {
	return aln1.POS < aln2.POS
}

func (s alignmentSorter) SequentialSort(i, j int) {
	alns, by := s.alns[i:j], s.by
	sort.Slice(alns, func(i, j int) bool {
		return by(alns[i], alns[j])
	})
}

func (s alignmentSorter) NewTemp() psort.StableSorter {
	return alignmentSorter{make([]*Alignment, len(s.alns)), s.by}
}

func (s alignmentSorter) Len() int {
	return len(s.alns)
}

func (s alignmentSorter) Less(i, j int) bool {
	return s.by(s.alns[i], s.alns[j])
}

func (s alignmentSorter) Assign(p psort.StableSorter) func(i, j, len int) {
	dst, src := s.alns, p.(alignmentSorter).alns
	return func(i, j, len int) {
		for k := 0; k < len; k++ {
			dst[i+k] = src[j+k]
		}
	}
}

// ParallelStableSort sorts alignments by the given ordering using a
// parallel stable sort.
func (by By) ParallelStableSort(alns []*Alignment) {
	psort.StableSort(alignmentSorter{alns, by})
}
