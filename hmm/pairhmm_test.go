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

package hmm

import (
	"math"
	"testing"

	"github.com/exascience/halo/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeRead(pos int32, seq string, qual byte) *sam.Alignment {
	quals := make([]byte, len(seq))
	for i := range quals {
		quals[i] = qual
	}
	cigar, _ := sam.ScanCigarString("10M")
	return &sam.Alignment{
		QNAME: "r",
		RNAME: "c",
		POS:   pos,
		MAPQ:  60,
		CIGAR: cigar,
		SEQ:   []byte(seq),
		QUAL:  quals,
	}
}

func TestLoadProfiles(t *testing.T) {
	for _, name := range []string{"pcr", "pcr-free", "constant"} {
		model, err := LoadProfile(name)
		require.NoError(t, err)
		assert.Equal(t, name, model.Name)
		assert.Greater(t, model.GapOpen[0], model.GapOpen[maxRepeatLength]-1)
	}
	_, err := LoadProfile("nonsense")
	assert.Error(t, err)
}

func TestPairHMMPrefersMatchingHaplotype(t *testing.T) {
	model, err := LoadProfile("constant")
	require.NoError(t, err)

	read := "AAAAATAAAA"
	quals := make([]byte, len(read))
	for i := range quals {
		quals[i] = 30
	}
	matching := pairHMM(model, read, quals, "CCAAAAATAAAACC")
	mismatching := pairHMM(model, read, quals, "CCAAAAAAAAAACC")
	assert.Greater(t, matching, mismatching)
	// a single Q30 mismatch costs about 3 log10 units
	assert.InDelta(t, 3.0, matching-mismatching, 1.0)
}

func TestComputeMarksShortHaplotypesAmbiguous(t *testing.T) {
	model, err := LoadProfile("constant")
	require.NoError(t, err)
	alns := []*sam.Alignment{makeRead(0, "ACGTACGTAC", 30)}
	result := Compute(model, Options{UseFlankState: true}, []string{"ACGT"}, 0, alns)
	require.Len(t, result.Values, 1)
	assert.True(t, result.Ambiguous[0])
	assert.True(t, math.IsInf(result.Values[0][0], -1))
}

func TestComputeCapsWorstLikelihood(t *testing.T) {
	model, err := LoadProfile("constant")
	require.NoError(t, err)
	alns := []*sam.Alignment{makeRead(2, "ACGTACGTAC", 30)}
	haplotypes := []string{
		"CCACGTACGTACCC", // matches
		"CCTGCATGCATGCC", // everything mismatches
	}
	result := Compute(model, Options{UseFlankState: true}, haplotypes, 0, alns)
	best := result.Values[0][0]
	worst := result.Values[0][1]
	assert.Greater(t, best, worst-1e-9)
	// the mismapping cap bounds the spread at 4.5 log10 units
	assert.InDelta(t, 4.5, best-worst, 1e-6)
}

func TestOptionsDerivedPads(t *testing.T) {
	opts := Options{PadRequirement: 10}
	assert.Equal(t, int32(19), opts.MaxIndicatorJoinDistance())
	assert.Equal(t, int32(38), opts.MinFlankPad())
}

func TestDropPoorlyModeledReads(t *testing.T) {
	model, err := LoadProfile("constant")
	require.NoError(t, err)
	good := makeRead(2, "ACGTACGTAC", 30)
	bad := makeRead(2, "TTTTTTTTTT", 30)
	haplotypes := []string{"CCACGTACGTACCC"}
	result := Compute(model, Options{UseFlankState: true}, haplotypes, 0, []*sam.Alignment{good, bad})
	result.DropPoorlyModeledReads()
	require.Len(t, result.Alns, 1)
	assert.Same(t, good, result.Alns[0])
}
