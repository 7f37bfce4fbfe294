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

import "sort"

// readUtility scores how much a read contributes to calling; reads
// with low mapping quality and low base qualities are removed first
// when downsampling.
func readUtility(aln *Alignment) int {
	utility := int(aln.MAPQ) * len(aln.QUAL)
	for _, q := range aln.QUAL {
		utility += int(q)
	}
	return utility
}

// Downsample caps the depth of the given coordinate-sorted reads:
// wherever coverage exceeds above, reads are removed, lowest utility
// first, until coverage is at most target. The relative order of the
// surviving reads is preserved.
func Downsample(alns []*Alignment, above, target int32) []*Alignment {
	if above <= 0 || target <= 0 || len(alns) == 0 {
		return alns
	}
	if target > above {
		target = above
	}

	byUtility := append([]*Alignment(nil), alns...)
	sort.SliceStable(byUtility, func(i, j int) bool {
		return readUtility(byUtility[i]) < readUtility(byUtility[j])
	})

	start := alns[0].POS
	end := start
	for _, aln := range alns {
		if alnEnd := aln.End(); alnEnd > end {
			end = alnEnd
		}
	}
	coverage := make([]int32, end-start)
	for _, aln := range alns {
		for pos := aln.POS; pos < aln.End(); pos++ {
			coverage[pos-start]++
		}
	}

	// positions whose original coverage exceeds the trigger
	triggered := make([]bool, len(coverage))
	for i, c := range coverage {
		triggered[i] = c > above
	}

	removed := make(map[*Alignment]bool)
	for _, aln := range byUtility {
		exceeds := false
		for pos := aln.POS; pos < aln.End(); pos++ {
			if triggered[pos-start] {
				exceeds = true
				break
			}
		}
		if !exceeds {
			continue
		}
		removable := true
		for pos := aln.POS; pos < aln.End(); pos++ {
			if coverage[pos-start] <= target {
				removable = false
				break
			}
		}
		if !removable {
			continue
		}
		removed[aln] = true
		for pos := aln.POS; pos < aln.End(); pos++ {
			coverage[pos-start]--
		}
	}

	if len(removed) == 0 {
		return alns
	}
	result := alns[:0]
	for _, aln := range alns {
		if !removed[aln] {
			result = append(result, aln)
		}
	}
	return result
}
