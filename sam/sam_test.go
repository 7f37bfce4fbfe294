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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCigar(t *testing.T, cigar string) []CigarOperation {
	ops, err := ScanCigarString(cigar)
	require.NoError(t, err)
	return ops
}

func makeRead(t *testing.T, pos int32, seq string, qual byte, cigar string) *Alignment {
	quals := make([]byte, len(seq))
	for i := range quals {
		quals[i] = qual
	}
	return &Alignment{
		QNAME: "r",
		RNAME: "c",
		POS:   pos,
		MAPQ:  60,
		CIGAR: mustCigar(t, cigar),
		SEQ:   []byte(seq),
		QUAL:  quals,
	}
}

func TestScanCigarString(t *testing.T) {
	ops := mustCigar(t, "3M1I2D4S")
	assert.Equal(t, []CigarOperation{{3, 'M'}, {1, 'I'}, {2, 'D'}, {4, 'S'}}, ops)
	assert.Equal(t, int32(8), ReadLengthFromCigar(ops))
	assert.Equal(t, int32(5), ReferenceLengthFromCigar(ops))
	assert.Equal(t, "3M1I2D4S", FormatCigar(ops))

	_, err := ScanCigarString("3Q")
	assert.Error(t, err)
	_, err = ScanCigarString("M")
	assert.Error(t, err)

	// repeated strings come from the shared cache
	again := mustCigar(t, "3M1I2D4S")
	assert.Equal(t, ops, again)
}

func TestWellFormed(t *testing.T) {
	aln := makeRead(t, 10, "ACGTACGT", 30, "8M")
	assert.True(t, aln.IsWellFormed())
	assert.Equal(t, int32(18), aln.End())

	aln.CIGAR = mustCigar(t, "4M")
	assert.False(t, aln.IsWellFormed())

	aln.CIGAR = nil
	assert.False(t, aln.IsWellFormed())
}

func TestTransformers(t *testing.T) {
	aln := makeRead(t, 0, "acgt", 30, "4M")
	CapitaliseBases(aln)
	assert.Equal(t, "ACGT", string(aln.SEQ))

	aln.QUAL = []byte{200, 30, 30, 126}
	CapBaseQualities(aln)
	assert.Equal(t, []byte{125, 30, 30, 125}, aln.QUAL)

	MaskTail(2)(aln)
	assert.Equal(t, []byte{125, 30, 0, 0}, aln.QUAL)
}

func TestMaskLowQualityTails(t *testing.T) {
	aln := makeRead(t, 0, "ACGTAC", 30, "6M")
	aln.QUAL = []byte{30, 30, 30, 30, 5, 5}
	MaskLowQualityTails(10)(aln)
	assert.Equal(t, []byte{30, 30, 30, 30, 0, 0}, aln.QUAL)
}

func TestMaskSoftClips(t *testing.T) {
	aln := makeRead(t, 5, "ACGTACGT", 30, "2S4M2S")
	MaskSoftClips(aln)
	assert.Equal(t, []byte{0, 0, 30, 30, 30, 30, 0, 0}, aln.QUAL)
}

func TestFilters(t *testing.T) {
	good := makeRead(t, 0, "ACGTACGT", 30, "8M")
	lowMQ := makeRead(t, 0, "ACGTACGT", 30, "8M")
	lowMQ.MAPQ = 5
	duplicate := makeRead(t, 0, "ACGTACGT", 30, "8M")
	duplicate.FLAG |= Duplicate

	kept := ApplyFilters([]*Alignment{good, lowMQ, duplicate}, []Filter{
		ValidBaseQualities, WellFormed, MinMappingQuality(20), NotDuplicate,
	})
	require.Len(t, kept, 1)
	assert.Same(t, good, kept[0])
}

func TestMinGoodBases(t *testing.T) {
	aln := makeRead(t, 0, "ACGTACGT", 10, "8M")
	assert.False(t, MinGoodBases(20, 4)(aln))
	aln.QUAL[0], aln.QUAL[1], aln.QUAL[2], aln.QUAL[3] = 30, 30, 30, 30
	assert.True(t, MinGoodBases(20, 4)(aln))
}

func TestDownsample(t *testing.T) {
	var alns []*Alignment
	for i := 0; i < 30; i++ {
		aln := makeRead(t, 0, "ACGTACGT", byte(10+i), "8M")
		alns = append(alns, aln)
	}
	result := Downsample(alns, 20, 10)
	assert.LessOrEqual(t, len(result), 10)
	// the highest-utility reads survive
	assert.Equal(t, byte(39), result[len(result)-1].QUAL[0])

	// below the trigger nothing is removed
	few := alns[:5]
	assert.Len(t, Downsample(few, 20, 10), 5)
}

func TestCoordinateSort(t *testing.T) {
	a1 := makeRead(t, 30, "ACGT", 30, "4M")
	a2 := makeRead(t, 10, "ACGT", 30, "4M")
	a3 := makeRead(t, 20, "ACGT", 30, "4M")
	alns := []*Alignment{a1, a2, a3}
	By(CoordinateLess).ParallelStableSort(alns)
	assert.Equal(t, []*Alignment{a2, a3, a1}, alns)
}
