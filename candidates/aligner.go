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

// alignment scoring for bubble-path to reference alignment
const (
	alignMismatchCost = 4
	alignGapOpenCost  = 6
	alignGapCost      = 1
)

// alignGlobal aligns alt against ref end-to-end and returns the
// CIGAR of alt relative to ref ('M' covers both matches and
// mismatches).
func alignGlobal(ref, alt string) []sam.CigarOperation {
	n, m := len(ref), len(alt)
	const (
		fromDiag = 0
		fromUp   = 1 // gap in alt: deletion
		fromLeft = 2 // gap in ref: insertion
	)
	cost := make([][]int32, n+1)
	from := make([][]byte, n+1)
	for i := range cost {
		cost[i] = make([]int32, m+1)
		from[i] = make([]byte, m+1)
	}
	for i := 1; i <= n; i++ {
		cost[i][0] = alignGapOpenCost + int32(i)*alignGapCost
		from[i][0] = fromUp
	}
	for j := 1; j <= m; j++ {
		cost[0][j] = alignGapOpenCost + int32(j)*alignGapCost
		from[0][j] = fromLeft
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			diag := cost[i-1][j-1]
			if ref[i-1] != alt[j-1] {
				diag += alignMismatchCost
			}
			up := cost[i-1][j] + alignGapCost
			if from[i-1][j] != fromUp {
				up += alignGapOpenCost
			}
			left := cost[i][j-1] + alignGapCost
			if from[i][j-1] != fromLeft {
				left += alignGapOpenCost
			}
			best, origin := diag, byte(fromDiag)
			if up < best {
				best, origin = up, fromUp
			}
			if left < best {
				best, origin = left, fromLeft
			}
			cost[i][j] = best
			from[i][j] = origin
		}
	}
	var reversed []sam.CigarOperation
	push := func(op byte) {
		if len(reversed) > 0 && reversed[len(reversed)-1].Operation == op {
			reversed[len(reversed)-1].Length++
		} else {
			reversed = append(reversed, sam.CigarOperation{Length: 1, Operation: op})
		}
	}
	for i, j := n, m; i > 0 || j > 0; {
		switch {
		case i > 0 && j > 0 && from[i][j] == fromDiag:
			push('M')
			i--
			j--
		case i > 0 && (j == 0 || from[i][j] == fromUp):
			push('D')
			i--
		default:
			push('I')
			j--
		}
	}
	for left, right := 0, len(reversed)-1; left < right; left, right = left+1, right-1 {
		reversed[left], reversed[right] = reversed[right], reversed[left]
	}
	return reversed
}

// variantsFromAlignment walks an alt-vs-ref CIGAR and extracts the
// implied variants, normalized against the contig sequence.
func variantsFromAlignment(contig string, start int32, refSeq, altSeq string, cigar []sam.CigarOperation, contigSeq []byte) []genome.Variant {
	var variants []genome.Variant
	refPos, altPos := int32(0), int32(0)
	for _, op := range cigar {
		switch op.Operation {
		case 'M':
			for i := int32(0); i < op.Length; i++ {
				if refSeq[refPos+i] != altSeq[altPos+i] {
					v := genome.Variant{
						Region: genome.Region{Contig: contig, Start: start + refPos + i, End: start + refPos + i + 1},
						Ref:    string(refSeq[refPos+i]),
						Alt:    string(altSeq[altPos+i]),
					}
					variants = append(variants, v)
				}
			}
			refPos += op.Length
			altPos += op.Length
		case 'I':
			v := genome.Variant{
				Region: genome.Region{Contig: contig, Start: start + refPos, End: start + refPos},
				Ref:    "",
				Alt:    altSeq[altPos : altPos+op.Length],
			}.Normalize(contigSeq)
			variants = append(variants, v)
			altPos += op.Length
		case 'D':
			v := genome.Variant{
				Region: genome.Region{Contig: contig, Start: start + refPos, End: start + refPos + op.Length},
				Ref:    refSeq[refPos : refPos+op.Length],
				Alt:    "",
			}.Normalize(contigSeq)
			variants = append(variants, v)
			refPos += op.Length
		}
	}
	return variants
}
