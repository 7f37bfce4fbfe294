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

package readpipe

import "github.com/exascience/halo/sam"

// per-read bookkeeping overhead on top of sequence and qualities
const readOverheadBytes = 192

// ReadFootprint estimates the retained bytes of one read.
func ReadFootprint(aln *sam.Alignment) int64 {
	return int64(len(aln.SEQ)) + int64(len(aln.QUAL)) + int64(len(aln.QNAME)) + readOverheadBytes
}

// A Batch is a run of coordinate-ordered reads on one contig.
type Batch struct {
	Contig string
	Alns   []*sam.Alignment
}

// MakeBatches splits coordinate-sorted reads of one contig into
// batches whose total footprint stays within the given byte budget.
// Reads starting at the same position never split across batches, so
// a batch can exceed the budget when a single position does.
func MakeBatches(contig string, alns []*sam.Alignment, budget int64) []Batch {
	if budget <= 0 || len(alns) == 0 {
		return []Batch{{Contig: contig, Alns: alns}}
	}
	var batches []Batch
	var used int64
	start := 0
	for i, aln := range alns {
		footprint := ReadFootprint(aln)
		if used+footprint > budget && i > start && aln.POS != alns[i-1].POS {
			batches = append(batches, Batch{Contig: contig, Alns: alns[start:i]})
			start = i
			used = 0
		}
		used += footprint
	}
	return append(batches, Batch{Contig: contig, Alns: alns[start:]})
}
