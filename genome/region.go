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
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/exascience/halo/internal"
)

// A Contig is a reference sequence with a name and a length.
type Contig struct {
	Name   string
	Length int32
}

// A Region is a zero-based half-open interval on a contig.
type Region struct {
	Contig     string
	Start, End int32
}

// NewRegion returns the region [start, end) on the given contig.
func NewRegion(contig string, start, end int32) Region {
	if end < start {
		log.Panicf("region end %v before start %v on %v", end, start, contig)
	}
	return Region{Contig: contig, Start: start, End: end}
}

// Length returns the number of reference positions the region covers.
func (r Region) Length() int32 {
	return r.End - r.Start
}

// IsEmpty reports whether the region covers no reference positions.
func (r Region) IsEmpty() bool {
	return r.End == r.Start
}

func (r Region) String() string {
	return fmt.Sprintf("%s:%d-%d", r.Contig, r.Start, r.End)
}

// checkComparable panics unless both regions are on the same contig.
// Regions on different contigs are not ordered.
func checkComparable(r1, r2 Region) {
	if r1.Contig != r2.Contig {
		log.Panicf("regions %v and %v are not comparable", r1, r2)
	}
}

// Overlaps reports whether the two regions share reference positions.
// Empty regions overlap a region that strictly contains their point.
func (r Region) Overlaps(other Region) bool {
	checkComparable(r, other)
	if r.IsEmpty() && other.IsEmpty() {
		return r.Start == other.Start
	}
	return r.Start < other.End && other.Start < r.End ||
		r.IsEmpty() && other.Start <= r.Start && r.Start < other.End ||
		other.IsEmpty() && r.Start <= other.Start && other.Start < r.End
}

// Contains reports whether other lies fully within r.
func (r Region) Contains(other Region) bool {
	checkComparable(r, other)
	return r.Start <= other.Start && other.End <= r.End
}

// Before reports whether r ends at or before the start of other.
func (r Region) Before(other Region) bool {
	checkComparable(r, other)
	return r.End <= other.Start && r.Start < other.Start
}

// Compare orders regions by start, then by end. Both regions must be
// on the same contig.
func Compare(r1, r2 Region) int {
	checkComparable(r1, r2)
	switch {
	case r1.Start < r2.Start:
		return -1
	case r1.Start > r2.Start:
		return 1
	case r1.End < r2.End:
		return -1
	case r1.End > r2.End:
		return 1
	default:
		return 0
	}
}

// Span returns the smallest region enclosing both regions.
func Span(r1, r2 Region) Region {
	checkComparable(r1, r2)
	result := r1
	if r2.Start < result.Start {
		result.Start = r2.Start
	}
	if r2.End > result.End {
		result.End = r2.End
	}
	return result
}

// Expanded returns the region grown by pad on both sides, clipped at
// zero and at contigLength when it is positive.
func (r Region) Expanded(pad, contigLength int32) Region {
	start := r.Start - pad
	if start < 0 {
		start = 0
	}
	end := r.End + pad
	if contigLength > 0 && end > contigLength {
		end = contigLength
	}
	return Region{Contig: r.Contig, Start: start, End: end}
}

// ParseRegion parses "contig", "contig:start" or "contig:start-end".
// When oneBased is set, a non-zero start is shifted by -1 so that the
// result is zero-based half-open.
func ParseRegion(s string, oneBased bool) (Region, error) {
	colon := strings.LastIndexByte(s, ':')
	if colon < 0 {
		return Region{Contig: s, Start: 0, End: -1}, nil
	}
	contig := s[:colon]
	rest := strings.ReplaceAll(s[colon+1:], ",", "")
	var startString, endString string
	if dash := strings.IndexByte(rest, '-'); dash < 0 {
		startString, endString = rest, ""
	} else {
		startString, endString = rest[:dash], rest[dash+1:]
	}
	start64, err := strconv.ParseInt(startString, 10, 32)
	if err != nil {
		return Region{}, internal.NewUserError("region selection", "use contig:start-end", "invalid region %q", s)
	}
	start := int32(start64)
	if oneBased && start > 0 {
		start--
	}
	end := start + 1
	if endString != "" {
		end64, err := strconv.ParseInt(endString, 10, 32)
		if err != nil {
			return Region{}, internal.NewUserError("region selection", "use contig:start-end", "invalid region %q", s)
		}
		end = int32(end64)
	}
	if end < start {
		return Region{}, internal.NewUserError("region selection", "end must not precede start", "invalid region %q", s)
	}
	return Region{Contig: contig, Start: start, End: end}, nil
}
