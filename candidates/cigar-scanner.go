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

// A CigarScanner emits candidates directly from the aligner's view
// of each read: mismatches become SNVs, I and D operations become
// insertions and deletions at their anchor positions.
type CigarScanner struct {
	MinBaseQuality byte
}

type candidateBuilder struct {
	contig     string
	candidates map[genome.Variant]Candidate
}

func (b *candidateBuilder) add(v genome.Variant, quality byte) {
	c := b.candidates[v]
	c.Variant = v
	c.Support++
	c.Penalty += float64(quality) / 10
	b.candidates[v] = c
}

// Generate scans the CIGAR of every read overlapping the region.
func (s CigarScanner) Generate(ref genome.Reference, region genome.Region, alns []*sam.Alignment) []Candidate {
	contigSeq := ref.Bases(genome.Region{Contig: region.Contig, Start: 0, End: contigLength(ref, region.Contig)})
	builder := &candidateBuilder{
		contig:     region.Contig,
		candidates: make(map[genome.Variant]Candidate),
	}
	for _, aln := range alns {
		s.scan(builder, contigSeq, region, aln)
	}
	result := make([]Candidate, 0, len(builder.candidates))
	for _, c := range builder.candidates {
		result = append(result, c)
	}
	return Union(result)
}

func contigLength(ref genome.Reference, contig string) int32 {
	for _, c := range ref.Contigs() {
		if c.Name == contig {
			return c.Length
		}
	}
	return 0
}

func minQuality(quals []byte) byte {
	min := byte(255)
	for _, q := range quals {
		if q < min {
			min = q
		}
	}
	return min
}

func (s CigarScanner) scan(builder *candidateBuilder, contigSeq []byte, region genome.Region, aln *sam.Alignment) {
	refPos := aln.POS
	readPos := int32(0)
	for _, op := range aln.CIGAR {
		switch op.Operation {
		case 'M', '=', 'X':
			for i := int32(0); i < op.Length; i++ {
				pos := refPos + i
				if pos < region.Start || pos >= region.End || int(pos) >= len(contigSeq) {
					continue
				}
				base := aln.SEQ[readPos+i]
				qual := aln.QUAL[readPos+i]
				refBase := contigSeq[pos]
				if base != refBase && base != 'N' && refBase != 'N' && qual >= s.MinBaseQuality {
					v := genome.Variant{
						Region: genome.Region{Contig: region.Contig, Start: pos, End: pos + 1},
						Ref:    string(refBase),
						Alt:    string(base),
					}
					builder.add(v, qual)
				}
			}
			refPos += op.Length
			readPos += op.Length
		case 'I':
			if refPos >= region.Start && refPos < region.End && readPos > 0 {
				qual := minQuality(aln.QUAL[readPos : readPos+op.Length])
				if qual >= s.MinBaseQuality {
					v := genome.Variant{
						Region: genome.Region{Contig: region.Contig, Start: refPos, End: refPos},
						Ref:    "",
						Alt:    string(aln.SEQ[readPos : readPos+op.Length]),
					}.Normalize(contigSeq)
					builder.add(v, qual)
				}
			}
			readPos += op.Length
		case 'D':
			if refPos >= region.Start && refPos+op.Length <= region.End {
				var qual byte = s.MinBaseQuality
				if readPos > 0 && int(readPos) < len(aln.QUAL) {
					qual = aln.QUAL[readPos]
				}
				if qual >= s.MinBaseQuality {
					v := genome.Variant{
						Region: genome.Region{Contig: region.Contig, Start: refPos, End: refPos + op.Length},
						Ref:    string(contigSeq[refPos : refPos+op.Length]),
						Alt:    "",
					}.Normalize(contigSeq)
					builder.add(v, qual)
				}
			}
			refPos += op.Length
		case 'S':
			readPos += op.Length
		case 'N':
			refPos += op.Length
		}
	}
}
