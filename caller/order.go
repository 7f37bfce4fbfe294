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

package caller

import (
	"sort"

	"github.com/exascience/halo/genome"
	"github.com/exascience/halo/internal"
)

// ContigOrder selects the order in which per-contig results are
// written.
type ContigOrder int

const (
	LexicographicAscending ContigOrder = iota
	LexicographicDescending
	ReferenceIndexAscending
	ReferenceIndexDescending
	SizeAscending
	SizeDescending
)

// ParseContigOrder parses a contig-output-order option value.
func ParseContigOrder(s string) (ContigOrder, error) {
	switch s {
	case "", "lexicographical-ascending":
		return LexicographicAscending, nil
	case "lexicographical-descending":
		return LexicographicDescending, nil
	case "reference-index-ascending":
		return ReferenceIndexAscending, nil
	case "reference-index-descending":
		return ReferenceIndexDescending, nil
	case "size-ascending":
		return SizeAscending, nil
	case "size-descending":
		return SizeDescending, nil
	default:
		return 0, internal.NewUserError("contig output order",
			"use lexicographical, reference-index, or size, ascending or descending",
			"unknown contig order %q", s)
	}
}

// OrderContigs returns the contigs in the configured output order.
// The input order is the reference index order.
func OrderContigs(contigs []genome.Contig, order ContigOrder) []genome.Contig {
	result := append([]genome.Contig(nil), contigs...)
	switch order {
	case LexicographicAscending:
		sort.SliceStable(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	case LexicographicDescending:
		sort.SliceStable(result, func(i, j int) bool { return result[i].Name > result[j].Name })
	case ReferenceIndexDescending:
		for left, right := 0, len(result)-1; left < right; left, right = left+1, right-1 {
			result[left], result[right] = result[right], result[left]
		}
	case SizeAscending:
		sort.SliceStable(result, func(i, j int) bool { return result[i].Length < result[j].Length })
	case SizeDescending:
		sort.SliceStable(result, func(i, j int) bool { return result[i].Length > result[j].Length })
	}
	return result
}
