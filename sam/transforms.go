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

// A Transformer mutates an alignment in place before filtering.
type Transformer func(aln *Alignment)

// MaxBaseQuality is the cap applied to all base qualities before any
// other processing.
const MaxBaseQuality = 125

// maskedQuality marks a base as unusable for candidate generation and
// likelihood computation.
const maskedQuality = 0

// CapBaseQualities caps all base qualities at MaxBaseQuality.
func CapBaseQualities(aln *Alignment) {
	for i, q := range aln.QUAL {
		if q > MaxBaseQuality {
			aln.QUAL[i] = MaxBaseQuality
		}
	}
}

// CapitaliseBases converts all read bases to upper case.
func CapitaliseBases(aln *Alignment) {
	for i, b := range aln.SEQ {
		if 'a' <= b && b <= 'z' {
			aln.SEQ[i] = b - 'a' + 'A'
		}
	}
}

// MaskTail masks a fixed number of bases at the 3' end of the read.
func MaskTail(length int32) Transformer {
	return func(aln *Alignment) {
		n := int(length)
		if n > len(aln.QUAL) {
			n = len(aln.QUAL)
		}
		if aln.IsReversed() {
			for i := 0; i < n; i++ {
				aln.QUAL[i] = maskedQuality
			}
		} else {
			for i := len(aln.QUAL) - n; i < len(aln.QUAL); i++ {
				aln.QUAL[i] = maskedQuality
			}
		}
	}
}

// MaskLowQualityTails masks the run of bases below the threshold at
// the 3' end of the read, stopping at the first base, counted from
// that end, whose quality reaches the threshold.
func MaskLowQualityTails(threshold byte) Transformer {
	return func(aln *Alignment) {
		if aln.IsReversed() {
			for i := range aln.QUAL {
				if aln.QUAL[i] >= threshold {
					break
				}
				aln.QUAL[i] = maskedQuality
			}
		} else {
			for i := len(aln.QUAL) - 1; i >= 0; i-- {
				if aln.QUAL[i] >= threshold {
					break
				}
				aln.QUAL[i] = maskedQuality
			}
		}
	}
}

func softClipLengths(cigar []CigarOperation) (head, tail int32) {
	if len(cigar) == 0 {
		return 0, 0
	}
	if op := cigar[0]; op.Operation == 'S' {
		head = op.Length
	}
	if op := cigar[len(cigar)-1]; op.Operation == 'S' && len(cigar) > 1 {
		tail = op.Length
	}
	return head, tail
}

// MaskSoftClips masks all soft-clipped bases.
func MaskSoftClips(aln *Alignment) {
	head, tail := softClipLengths(aln.CIGAR)
	for i := int32(0); i < head; i++ {
		aln.QUAL[i] = maskedQuality
	}
	for i := int32(len(aln.QUAL)) - tail; i < int32(len(aln.QUAL)); i++ {
		aln.QUAL[i] = maskedQuality
	}
}

// MaskAdapters masks read bases that extend past the mapped span of
// the mate, which are adapter read-through for short fragments.
func MaskAdapters(aln *Alignment) {
	if aln.IsUnmapped() || aln.IsNextUnmapped() || aln.RNEXT != "=" && aln.RNEXT != aln.RNAME {
		return
	}
	if aln.TLEN == 0 {
		return
	}
	fragment := aln.TLEN
	if fragment < 0 {
		fragment = -fragment
	}
	if fragment >= int32(len(aln.SEQ)) {
		return
	}
	if aln.IsReversed() {
		for i := int32(0); i < int32(len(aln.QUAL))-fragment; i++ {
			aln.QUAL[i] = maskedQuality
		}
	} else {
		for i := fragment; i < int32(len(aln.QUAL)); i++ {
			aln.QUAL[i] = maskedQuality
		}
	}
}

// MaskInvertedClips masks soft-clipped bases of reads whose pair maps
// in the same orientation, the signature of an inverted duplication
// artifact.
func MaskInvertedClips(aln *Alignment) {
	if aln.IsUnmapped() || aln.IsNextUnmapped() {
		return
	}
	if aln.IsReversed() == aln.IsNextReversed() {
		MaskSoftClips(aln)
	}
}
