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
	"strings"
	"testing"

	"github.com/exascience/halo/candidates"
	"github.com/exascience/halo/genome"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generatorReference() *genome.InMemoryReference {
	return genome.NewInMemoryReference([]string{"c"}, map[string][]byte{
		"c": []byte(strings.Repeat("ACGT", 100)),
	})
}

func snvCandidate(pos int32, alt string, support int32) candidates.Candidate {
	return candidates.Candidate{
		Variant: genome.Variant{
			Region: genome.NewRegion("c", pos, pos+1),
			Ref:    "A",
			Alt:    alt,
		},
		Support: support,
		Penalty: float64(support) * 3,
	}
}

func defaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		MaxHaplotypes:    16,
		HoldoutThreshold: 64,
		MaxHoldoutDepth:  4,
		Lagging:          LaggingNormal,
		Extension:        ExtensionNormal,
		Pad:              10,
	}
}

func TestGeneratorEmitsReferenceAndAltHaplotypes(t *testing.T) {
	ref := generatorReference()
	generator := NewGenerator(defaultGeneratorConfig(), ref, 400)

	emissions := generator.Extend(snvCandidate(100, "T", 10))
	assert.Empty(t, emissions)
	emissions = generator.Flush()
	require.Len(t, emissions, 1)
	emission := emissions[0]

	require.Len(t, emission.Haplotypes, 2)
	assert.True(t, emission.Haplotypes[0].IsReference())
	assert.True(t, emission.Region.Contains(genome.NewRegion("c", 100, 101)))

	// every haplotype tiles the emitted region: the materialized
	// sequence equals the reference with the alt substitutions
	// applied
	refSeq := string(ref.Bases(emission.Region))
	assert.Equal(t, refSeq, emission.Haplotypes[0].Sequence(ref))
	altSeq := emission.Haplotypes[1].Sequence(ref)
	assert.Equal(t, len(refSeq), len(altSeq))
	offset := int(100 - emission.Region.Start)
	assert.Equal(t, refSeq[:offset], altSeq[:offset])
	assert.Equal(t, byte('T'), altSeq[offset])
	assert.Equal(t, refSeq[offset+1:], altSeq[offset+1:])
}

func TestGeneratorSplitsDistantCandidates(t *testing.T) {
	generator := NewGenerator(defaultGeneratorConfig(), generatorReference(), 400)
	require.Empty(t, generator.Extend(snvCandidate(50, "T", 10)))
	// far beyond the join distance: the first site must be emitted
	emissions := generator.Extend(snvCandidate(300, "G", 10))
	require.Len(t, emissions, 1)
	assert.True(t, emissions[0].Region.Contains(genome.NewRegion("c", 50, 51)))
	assert.False(t, emissions[0].Region.Overlaps(genome.NewRegion("c", 300, 301)))

	rest := generator.Flush()
	require.Len(t, rest, 1)
	assert.True(t, rest[0].Region.Contains(genome.NewRegion("c", 300, 301)))
}

func TestGeneratorCartesianComposition(t *testing.T) {
	generator := NewGenerator(defaultGeneratorConfig(), generatorReference(), 400)
	generator.Extend(snvCandidate(100, "T", 10))
	generator.Extend(snvCandidate(104, "G", 10))
	emissions := generator.Flush()
	require.Len(t, emissions, 1)
	// two biallelic sites compose to four haplotypes
	assert.Len(t, emissions[0].Haplotypes, 4)
}

func TestGeneratorCapsHaplotypes(t *testing.T) {
	cfg := defaultGeneratorConfig()
	cfg.MaxHaplotypes = 8
	cfg.Lagging = LaggingNone
	generator := NewGenerator(cfg, generatorReference(), 400)
	// 6 nearby biallelic sites project 64 haplotypes
	for i := int32(0); i < 6; i++ {
		generator.Extend(snvCandidate(100+4*i, "T", 10+i))
	}
	emissions := generator.Flush()
	require.Len(t, emissions, 1)
	assert.LessOrEqual(t, len(emissions[0].Haplotypes), 8)
	assert.True(t, emissions[0].Haplotypes[0].IsReference())
}

func TestGeneratorNoDuplicateHaplotypes(t *testing.T) {
	ref := generatorReference()
	generator := NewGenerator(defaultGeneratorConfig(), ref, 400)
	generator.Extend(snvCandidate(100, "T", 10))
	generator.Extend(snvCandidate(104, "G", 5))
	emissions := generator.Flush()
	require.Len(t, emissions, 1)
	seen := make(map[string]bool)
	for _, h := range emissions[0].Haplotypes {
		seq := h.Sequence(ref)
		assert.False(t, seen[seq], "duplicate haplotype %v", seq)
		seen[seq] = true
	}
}

func TestGeneratorHoldsOutCostlySites(t *testing.T) {
	cfg := defaultGeneratorConfig()
	cfg.MaxHaplotypes = 4
	cfg.HoldoutThreshold = 4
	cfg.Lagging = LaggingNone
	generator := NewGenerator(cfg, generatorReference(), 400)
	// a site with many alternates is the costly one
	generator.Extend(snvCandidate(100, "T", 10))
	generator.Extend(snvCandidate(104, "G", 1))
	generator.Extend(snvCandidate(104, "C", 1))
	generator.Extend(snvCandidate(108, "T", 10))
	emissions := generator.Flush()
	require.Len(t, emissions, 1)
	assert.LessOrEqual(t, len(emissions[0].Haplotypes), 4)
}

func TestJoinDistanceGrowsWithExtensionPolicy(t *testing.T) {
	cfg := defaultGeneratorConfig()
	var previous int32
	for _, policy := range []ExtensionPolicy{
		ExtensionConservative, ExtensionNormal, ExtensionOptimistic, ExtensionAggressive,
	} {
		cfg.Extension = policy
		distance := cfg.joinDistance()
		assert.Greater(t, distance, previous)
		previous = distance
	}
}
