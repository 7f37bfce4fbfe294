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

package candidates

import (
	"github.com/exascience/halo/genome"
	"github.com/exascience/halo/sam"
)

// A RepeatScanner finds short tandem repeats in the reference and
// proposes the ±1 unit slippage variants that sequencers commonly
// miss in pileups.
type RepeatScanner struct {
	MaxMotifLength int32
	MinUnits       int32
	// slippage candidates start with this penalty so that read
	// support from other generators decides their inclusion
	BasePenalty float64
}

type tandemRepeat struct {
	start, end int32 // region covered by whole units
	motif      string
}

func findTandemRepeats(seq []byte, offset int32, maxMotif, minUnits int32) []tandemRepeat {
	var repeats []tandemRepeat
	n := int32(len(seq))
	for motifLen := int32(1); motifLen <= maxMotif; motifLen++ {
		for start := int32(0); start+2*motifLen <= n; {
			end := start + motifLen
			for end+motifLen <= n && string(seq[end:end+motifLen]) == string(seq[start:start+motifLen]) {
				end += motifLen
			}
			units := (end - start) / motifLen
			if units >= minUnits {
				repeats = append(repeats, tandemRepeat{
					start: offset + start,
					end:   offset + start + units*motifLen,
					motif: string(seq[start : start+motifLen]),
				})
				start = end
			} else {
				start++
			}
		}
	}
	return repeats
}

// Generate proposes one-unit expansions and contractions for every
// tandem repeat in the region.
func (s RepeatScanner) Generate(ref genome.Reference, region genome.Region, alns []*sam.Alignment) []Candidate {
	seq := ref.Bases(region)
	contigSeq := ref.Bases(genome.Region{Contig: region.Contig, Start: 0, End: contigLength(ref, region.Contig)})
	repeats := findTandemRepeats(seq, region.Start, s.MaxMotifLength, s.MinUnits)
	var result []Candidate
	for _, repeat := range repeats {
		motifLen := int32(len(repeat.motif))
		deletion := genome.Variant{
			Region: genome.Region{Contig: region.Contig, Start: repeat.start, End: repeat.start + motifLen},
			Ref:    repeat.motif,
			Alt:    "",
		}.Normalize(contigSeq)
		insertion := genome.Variant{
			Region: genome.Region{Contig: region.Contig, Start: repeat.start, End: repeat.start},
			Ref:    "",
			Alt:    repeat.motif,
		}.Normalize(contigSeq)
		result = append(result,
			Candidate{Variant: deletion, Penalty: s.BasePenalty},
			Candidate{Variant: insertion, Penalty: s.BasePenalty},
		)
	}
	return Union(result)
}
