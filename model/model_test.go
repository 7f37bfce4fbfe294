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

package model

import (
	"strings"
	"testing"

	"github.com/exascience/halo/genome"
	"github.com/exascience/halo/hmm"
	"github.com/exascience/halo/internal"
	"github.com/exascience/halo/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func polyAReference() *genome.InMemoryReference {
	return genome.NewInMemoryReference([]string{"c"}, map[string][]byte{
		"c": []byte(strings.Repeat("A", 50)),
	})
}

// makeLikelihoods builds a likelihood matrix directly: rows[r][h] is
// log10 P(read r | haplotype h).
func makeLikelihoods(rows [][]float64) hmm.ReadLikelihoods {
	alns := make([]*sam.Alignment, len(rows))
	for i := range alns {
		alns[i] = &sam.Alignment{QNAME: "r", RNAME: "c"}
	}
	return hmm.ReadLikelihoods{
		Alns:      alns,
		Values:    rows,
		Ambiguous: make([]bool, len(rows)),
	}
}

// snvContext builds a two-haplotype context (reference and one SNV
// at position 20) with the given per-sample likelihood rows.
func snvContext(rows map[string][][]float64, ploidy int) *Context {
	ref := polyAReference()
	region := genome.NewRegion("c", 10, 30)
	refHaplotype := genome.NewHaplotype(region)
	altHaplotype := genome.NewHaplotype(region)
	altHaplotype.Push(genome.Allele{Region: genome.NewRegion("c", 20, 21), Seq: "T"})

	ctx := &Context{
		Ref:         ref,
		Region:      region,
		Haplotypes:  []*genome.Haplotype{refHaplotype, altHaplotype},
		Likelihoods: make(map[string]hmm.ReadLikelihoods),
		Ploidies:    make(map[string]int),
	}
	for sample, sampleRows := range rows {
		ctx.Samples = append(ctx.Samples, sample)
		ctx.Likelihoods[sample] = makeLikelihoods(sampleRows)
		ctx.Ploidies[sample] = ploidy
	}
	return ctx
}

func repeatRows(row []float64, n int) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = row
	}
	return rows
}

var (
	supportsRef = []float64{-0.04, -3}
	supportsAlt = []float64{-3, -0.04}
)

func testPriors() Priors {
	return Priors{
		SnvHeterozygosity:   1e-3,
		IndelHeterozygosity: 1e-4,
		MaxGenotypes:        5000,
		MinVariantPosterior: 2,
	}
}

func TestGenotypeEnumeration(t *testing.T) {
	genotypes := EnumerateGenotypes([]int{0, 1, 2}, 2)
	assert.Len(t, genotypes, 6)
	assert.Equal(t, 6, NofGenotypes(3, 2))
	assert.Equal(t, 10, NofGenotypes(3, 3))

	haploid := EnumerateGenotypes([]int{0, 1}, 1)
	assert.Len(t, haploid, 2)
}

func TestPosteriorSumsToOne(t *testing.T) {
	rows := append(repeatRows(supportsAlt, 7), repeatRows(supportsRef, 9)...)
	ctx := snvContext(map[string][][]float64{"s": rows}, 2)
	individual := &IndividualModel{Priors: testPriors()}
	posterior := individual.ScoreGenotypes(ctx)

	var total float64
	for _, p := range posterior.Marginals["s"] {
		total += p
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

// the germline SNV scenario: strong alternate evidence must produce
// a confident SNV call
func TestIndividualCallsSnv(t *testing.T) {
	ctx := snvContext(map[string][][]float64{"s": repeatRows(supportsAlt, 20)}, 2)
	individual := &IndividualModel{Priors: testPriors()}
	posterior := individual.ScoreGenotypes(ctx)
	calls := individual.EmitCalls(ctx, posterior)

	require.Len(t, calls, 1)
	call := calls[0]
	assert.Equal(t, genome.NewRegion("c", 20, 21), call.Variant.Region)
	assert.Equal(t, "A", call.Variant.Ref)
	assert.Equal(t, "T", call.Variant.Alt)
	assert.GreaterOrEqual(t, call.QualPhred, 40.0)
	gt := call.Genotypes["s"]
	assert.Contains(t, gt.Alleles, int32(1))
}

func TestIndividualHeterozygousCall(t *testing.T) {
	rows := append(repeatRows(supportsAlt, 10), repeatRows(supportsRef, 10)...)
	ctx := snvContext(map[string][][]float64{"s": rows}, 2)
	individual := &IndividualModel{Priors: testPriors()}
	posterior := individual.ScoreGenotypes(ctx)

	best := posterior.Genotypes[posterior.MAP["s"]]
	assert.False(t, best.IsHomozygous())
	assert.True(t, best.Contains(0))
	assert.True(t, best.Contains(1))
}

func TestIndividualRefcallBlocked(t *testing.T) {
	priors := testPriors()
	priors.RefcallType = RefcallBlocked
	priors.RefcallBlockMerge = 10
	ctx := snvContext(map[string][][]float64{"s": repeatRows(supportsRef, 30)}, 2)
	individual := &IndividualModel{Priors: priors}
	posterior := individual.ScoreGenotypes(ctx)
	calls := individual.EmitCalls(ctx, posterior)

	require.Len(t, calls, 1)
	assert.True(t, calls[0].IsRefcall)
	assert.Equal(t, ctx.Region, calls[0].Region)
	assert.GreaterOrEqual(t, calls[0].QualPhred, 10.0)
}

func TestSitesOnlySuppressesGenotypes(t *testing.T) {
	priors := testPriors()
	priors.SitesOnly = true
	ctx := snvContext(map[string][][]float64{"s": repeatRows(supportsAlt, 20)}, 2)
	individual := &IndividualModel{Priors: priors}
	calls := individual.EmitCalls(ctx, individual.ScoreGenotypes(ctx))
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].Genotypes)
}

func TestPopulationSharesFrequencies(t *testing.T) {
	rows := map[string][][]float64{
		"s1": repeatRows(supportsAlt, 12),
		"s2": repeatRows(supportsRef, 12),
	}
	ctx := snvContext(rows, 2)
	population := &PopulationModel{Priors: testPriors()}
	posterior := population.ScoreGenotypes(ctx)

	for _, sample := range ctx.Samples {
		var total float64
		for _, p := range posterior.Marginals[sample] {
			total += p
		}
		assert.InDelta(t, 1.0, total, 1e-9)
	}
	calls := population.EmitCalls(ctx, posterior)
	require.Len(t, calls, 1)
	assert.Equal(t, "T", calls[0].Variant.Alt)
}

func TestDedupFusesIdenticalColumns(t *testing.T) {
	ref := polyAReference()
	region := genome.NewRegion("c", 10, 30)
	h0 := genome.NewHaplotype(region)
	h1 := genome.NewHaplotype(region)
	h1.Push(genome.Allele{Region: genome.NewRegion("c", 20, 21), Seq: "T"})
	h2 := genome.NewHaplotype(region)
	h2.Push(genome.Allele{Region: genome.NewRegion("c", 20, 21), Seq: "G"})

	rows := repeatRows([]float64{-0.04, -3, -3}, 10)
	ctx := &Context{
		Ref:         ref,
		Region:      region,
		Haplotypes:  []*genome.Haplotype{h0, h1, h2},
		Samples:     []string{"s"},
		Likelihoods: map[string]hmm.ReadLikelihoods{"s": makeLikelihoods(rows)},
		Ploidies:    map[string]int{"s": 2},
	}
	kept := DedupHaplotypes(ctx)
	assert.Equal(t, []int{0, 1}, kept)
}

func TestTrioMendelianConsistencyUnderZeroMutationRate(t *testing.T) {
	rows := map[string][][]float64{
		"mom":   repeatRows(supportsRef, 15),
		"dad":   repeatRows(supportsRef, 15),
		"child": repeatRows(supportsRef, 15),
	}
	ctx := snvContext(rows, 2)
	trio := &TrioModel{
		Priors:          testPriors(),
		Trio:            genome.Trio{Mother: "mom", Father: "dad", Child: "child"},
		DeNovoSnvRate:   0,
		DeNovoIndelRate: 0,
	}
	posterior := trio.ScoreGenotypes(ctx)
	assert.LessOrEqual(t, posterior.DeNovo, 1e-9)
}

// the trio de novo scenario: reference parents and a half-alternate
// child imply a de novo mutation
func TestTrioDeNovo(t *testing.T) {
	childRows := append(repeatRows(supportsAlt, 15), repeatRows(supportsRef, 15)...)
	rows := map[string][][]float64{
		"mom":   repeatRows(supportsRef, 30),
		"dad":   repeatRows(supportsRef, 30),
		"child": childRows,
	}
	ctx := snvContext(rows, 2)
	trio := &TrioModel{
		Priors:             testPriors(),
		Trio:               genome.Trio{Mother: "mom", Father: "dad", Child: "child"},
		DeNovoSnvRate:      1.3e-8,
		DeNovoIndelRate:    1e-9,
		MinDeNovoPosterior: 3,
	}
	posterior := trio.ScoreGenotypes(ctx)
	assert.Greater(t, posterior.DeNovo, 0.5)

	calls := trio.EmitCalls(ctx, posterior)
	require.NotEmpty(t, calls)
	found := false
	for _, call := range calls {
		if !call.IsRefcall && call.Variant.Alt == "T" {
			found = true
			assert.Greater(t, call.DeNovoPhred, 3.0)
		}
	}
	assert.True(t, found)
}

// the somatic scenario: an all-reference normal and a 20% alternate
// tumour produce a somatic call and no germline call
func TestCancerSomaticCall(t *testing.T) {
	tumourRows := append(repeatRows(supportsAlt, 8), repeatRows(supportsRef, 32)...)
	rows := map[string][][]float64{
		"normal": repeatRows(supportsRef, 40),
		"tumour": tumourRows,
	}
	ctx := snvContext(rows, 2)
	cancer := &CancerModel{
		Priors:                      testPriors(),
		NormalSample:                "normal",
		MaxSomaticHaplotypes:        1,
		SomaticSnvRate:              1e-4,
		SomaticIndelRate:            1e-6,
		MinExpectedSomaticFrequency: 0.01,
		MinCredibleSomaticFrequency: 0.05,
		CredibleMass:                0.9,
		TumourGermlineConcentration: 1.5,
		MaxVBSeeds:                  4,
		Random:                      internal.NewRand(42),
	}
	posterior := cancer.ScoreGenotypes(ctx)
	assert.Greater(t, posterior.Somatic, 0.5)

	calls := cancer.EmitCalls(ctx, posterior)
	require.NotEmpty(t, calls)
	var somaticCalls, germlineCalls int
	for _, call := range calls {
		if call.IsRefcall {
			continue
		}
		if call.Somatic {
			somaticCalls++
		} else {
			germlineCalls++
		}
	}
	assert.Equal(t, 1, somaticCalls)
	assert.Zero(t, germlineCalls)
}

func TestPolycloneDetectsTwoClones(t *testing.T) {
	rows := append(repeatRows(supportsAlt, 10), repeatRows(supportsRef, 10)...)
	ctx := snvContext(map[string][][]float64{"s": rows}, 1)
	polyclone := &PolycloneModel{
		Priors:     testPriors(),
		MaxClones:  3,
		Alpha:      1,
		MaxVBSeeds: 4,
		Random:     internal.NewRand(42),
	}
	posterior := polyclone.ScoreGenotypes(ctx)
	assert.Equal(t, 2, posterior.ClonePloidy)

	calls := polyclone.EmitCalls(ctx, posterior)
	require.NotEmpty(t, calls)
	assert.Equal(t, "T", calls[0].Variant.Alt)
}

func TestCellModelCallsPerCellVariants(t *testing.T) {
	rows := map[string][][]float64{
		"cell1": repeatRows(supportsAlt, 12),
		"cell2": repeatRows(supportsRef, 12),
	}
	ctx := snvContext(rows, 1)
	cell := &CellModel{
		Priors:               testPriors(),
		MaxClones:            2,
		DropoutConcentration: 5,
		MaxVBSeeds:           4,
		Random:               internal.NewRand(42),
	}
	posterior := cell.ScoreGenotypes(ctx)
	calls := cell.EmitCalls(ctx, posterior)
	require.NotEmpty(t, calls)
	assert.Equal(t, "T", calls[0].Variant.Alt)
}

func TestPhredFromErrorProb(t *testing.T) {
	assert.InDelta(t, 30.0, PhredFromErrorProb(1e-3), 1e-9)
	assert.Equal(t, 3000.0, PhredFromErrorProb(0))
	assert.Equal(t, 0.0, PhredFromErrorProb(1))
}

func TestRequiredParams(t *testing.T) {
	models := []Model{
		&IndividualModel{}, &PopulationModel{}, &TrioModel{},
		&CancerModel{}, &PolycloneModel{}, &CellModel{},
	}
	for _, m := range models {
		assert.NotEmpty(t, m.RequiredParams())
	}
}
