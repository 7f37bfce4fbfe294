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

import (
	"log"
	"strings"

	"github.com/exascience/halo/internal"
)

// A Haplotype is a sequence hypothesis tiling a region: an ordered
// set of explicit alleles, with reference fillers implied between
// them. The materialized sequence and its hash are cached lazily; the
// generation counter invalidates both whenever an allele is pushed.
type Haplotype struct {
	region  Region
	alleles []Allele

	generation    int
	seq           string
	seqGeneration int
	hash          uint64
	hashGeneration int
}

// NewHaplotype returns an empty haplotype over the given region, i.e.
// the reference haplotype for that region.
func NewHaplotype(region Region) *Haplotype {
	return &Haplotype{region: region, generation: 1}
}

// Region returns the region the haplotype tiles.
func (h *Haplotype) Region() Region {
	return h.region
}

// Alleles returns the explicit alleles of the haplotype, in order.
func (h *Haplotype) Alleles() []Allele {
	return h.alleles
}

// IsReference reports whether the haplotype carries no explicit
// non-reference alleles.
func (h *Haplotype) IsReference() bool {
	return len(h.alleles) == 0
}

// Push appends an allele. Explicit alleles must be strictly ordered
// and non-overlapping, and must fall within the haplotype region.
func (h *Haplotype) Push(allele Allele) {
	if !h.region.Contains(allele.Region) {
		log.Panicf("allele %v outside haplotype region %v", allele.Region, h.region)
	}
	if n := len(h.alleles); n > 0 {
		last := h.alleles[n-1].Region
		if allele.Region.Start < last.End || allele.Region.Overlaps(last) {
			log.Panicf("allele %v overlaps or precedes %v", allele.Region, last)
		}
	}
	h.alleles = append(h.alleles, allele)
	h.generation++
}

// ContainsAllele reports whether the haplotype carries the given
// allele explicitly.
func (h *Haplotype) ContainsAllele(allele Allele) bool {
	for _, a := range h.alleles {
		if a.Region == allele.Region && a.Seq == allele.Seq {
			return true
		}
	}
	return false
}

// Expand grows the haplotype region to enclose the given region.
// Cached state stays valid only for the old region, so it is
// invalidated.
func (h *Haplotype) Expand(region Region) {
	h.region = Span(h.region, region)
	h.generation++
}

// Sequence materializes the haplotype: the concatenation of explicit
// allele sequences and reference fillers over the haplotype region.
func (h *Haplotype) Sequence(ref Reference) string {
	if h.seqGeneration == h.generation {
		return h.seq
	}
	var sb strings.Builder
	pos := h.region.Start
	for _, allele := range h.alleles {
		if allele.Region.Start > pos {
			filler := ref.Bases(Region{Contig: h.region.Contig, Start: pos, End: allele.Region.Start})
			sb.Write(filler)
		}
		sb.WriteString(allele.Seq)
		pos = allele.Region.End
	}
	if pos < h.region.End {
		sb.Write(ref.Bases(Region{Contig: h.region.Contig, Start: pos, End: h.region.End}))
	}
	h.seq = sb.String()
	h.seqGeneration = h.generation
	return h.seq
}

// Hash returns a hash of the materialized sequence, cached until the
// next Push or Expand.
func (h *Haplotype) Hash(ref Reference) uint64 {
	if h.hashGeneration == h.generation {
		return h.hash
	}
	h.hash = internal.StringHash(h.Sequence(ref))
	h.hashGeneration = h.generation
	return h.hash
}

// Offset translates a reference position within the haplotype region
// to an offset in the materialized sequence, accounting for indels to
// its left. The position must not fall inside a deleted segment; in
// that case the offset of the deletion site is returned along with
// false.
func (h *Haplotype) Offset(pos int32) (int32, bool) {
	offset := int32(0)
	cur := h.region.Start
	for _, allele := range h.alleles {
		if pos < allele.Region.Start {
			return offset + pos - cur, true
		}
		offset += allele.Region.Start - cur
		if pos < allele.Region.End {
			return offset, false
		}
		offset += int32(len(allele.Seq))
		cur = allele.Region.End
	}
	return offset + pos - cur, true
}
