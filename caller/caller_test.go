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
	"context"
	"strings"
	"testing"
	"time"

	"github.com/exascience/halo/candidates"
	"github.com/exascience/halo/genome"
	"github.com/exascience/halo/hmm"
	"github.com/exascience/halo/model"
	"github.com/exascience/halo/sam"
	"github.com/exascience/halo/vcf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderContigs(t *testing.T) {
	contigs := []genome.Contig{
		{Name: "chr2", Length: 100},
		{Name: "chr10", Length: 300},
		{Name: "chr1", Length: 200},
	}
	lex := OrderContigs(contigs, LexicographicAscending)
	assert.Equal(t, []string{"chr1", "chr10", "chr2"}, contigNames(lex))

	lexDesc := OrderContigs(contigs, LexicographicDescending)
	assert.Equal(t, []string{"chr2", "chr10", "chr1"}, contigNames(lexDesc))

	refIdx := OrderContigs(contigs, ReferenceIndexAscending)
	assert.Equal(t, []string{"chr2", "chr10", "chr1"}, contigNames(refIdx))

	refIdxDesc := OrderContigs(contigs, ReferenceIndexDescending)
	assert.Equal(t, []string{"chr1", "chr10", "chr2"}, contigNames(refIdxDesc))

	size := OrderContigs(contigs, SizeAscending)
	assert.Equal(t, []string{"chr2", "chr1", "chr10"}, contigNames(size))

	sizeDesc := OrderContigs(contigs, SizeDescending)
	assert.Equal(t, []string{"chr10", "chr1", "chr2"}, contigNames(sizeDesc))

	_, err := ParseContigOrder("bogus")
	assert.Error(t, err)
}

func contigNames(contigs []genome.Contig) []string {
	names := make([]string, len(contigs))
	for i, contig := range contigs {
		names[i] = contig.Name
	}
	return names
}

func TestTrimOutliers(t *testing.T) {
	durations := []time.Duration{
		time.Second, time.Second, time.Second,
		time.Second, time.Second, time.Second,
		time.Millisecond, // the global minimum is removed
		time.Hour,        // far outside two standard deviations
	}
	trimmed := trimOutliers(durations)
	for _, d := range trimmed {
		assert.Equal(t, time.Second, d)
	}
	assert.Len(t, trimmed, 6)
}

func TestProgressMeterEta(t *testing.T) {
	meter := NewProgressMeter(nil, 1000)
	meter.Advance("c", 100)
	meter.Advance("c", 100)
	meter.mutex.Lock()
	eta := meter.eta()
	meter.mutex.Unlock()
	assert.GreaterOrEqual(t, int64(eta), int64(0))
}

func makePhasedCalls() (*model.Posterior, []*model.Call) {
	posterior := &model.Posterior{
		Genotypes: []genome.Genotype{genome.NewGenotype(0, 1)},
		Marginals: map[string][]float64{"s": {1.0}},
		MAP:       map[string]int{"s": 0},
	}
	calls := []*model.Call{
		{
			Variant:   genome.Variant{Region: genome.NewRegion("c", 100, 101), Ref: "A", Alt: "T"},
			Genotypes: map[string]model.GenotypeCall{"s": {Alleles: []int32{0, 1}}},
		},
		{
			Variant:   genome.Variant{Region: genome.NewRegion("c", 110, 111), Ref: "A", Alt: "G"},
			Genotypes: map[string]model.GenotypeCall{"s": {Alleles: []int32{0, 1}}},
		},
	}
	return posterior, calls
}

func TestPhaserAssignsSharedPhaseSet(t *testing.T) {
	posterior, calls := makePhasedCalls()
	emission := Emission{Region: genome.NewRegion("c", 90, 120)}
	phaser := Phaser{MinPhaseScore: 10}
	phaser.Phase(posterior, emission, calls)

	// both calls share the phase set anchored at the region start,
	// and the phase set contains both calls
	require.Equal(t, calls[0].PhaseSet, calls[1].PhaseSet)
	assert.Equal(t, int32(91), calls[0].PhaseSet)
	for _, call := range calls {
		assert.True(t, call.Genotypes["s"].Phased)
		setStart := call.PhaseSet - 1
		assert.LessOrEqual(t, setStart, call.Variant.Region.Start)
	}
}

func TestPhaserSplitsUncertainPhase(t *testing.T) {
	posterior, calls := makePhasedCalls()
	posterior.Marginals["s"] = []float64{0.5}
	emission := Emission{Region: genome.NewRegion("c", 90, 120)}
	phaser := Phaser{MinPhaseScore: 10}
	phaser.Phase(posterior, emission, calls)

	// uncertain phase: each call anchors its own singleton phase set
	assert.NotEqual(t, calls[0].PhaseSet, calls[1].PhaseSet)
	assert.False(t, calls[0].Genotypes["s"].Phased)
}

func schedulerFixture(refSeq string) (*Scheduler, *genome.InMemoryReference) {
	ref := genome.NewInMemoryReference([]string{"c"}, map[string][]byte{"c": []byte(refSeq)})
	errorModel, _ := hmm.LoadProfile("constant")
	hmmOptions := hmm.Options{UseFlankState: true, PadRequirement: 4}
	scheduler := &Scheduler{
		Ref:        ref,
		Model:      &model.IndividualModel{Priors: testSchedulerPriors()},
		ErrorModel: errorModel,
		HmmOptions: hmmOptions,
		Generator: GeneratorConfig{
			MaxHaplotypes:    64,
			HoldoutThreshold: 256,
			MaxHoldoutDepth:  4,
			Lagging:          LaggingNormal,
			Extension:        ExtensionNormal,
			Pad:              hmmOptions.MinFlankPad(),
		},
		Generators: []candidates.Generator{
			candidates.CigarScanner{MinBaseQuality: 10},
		},
		Inclusion: candidates.InclusionConfig{
			Mode:                 candidates.Germline,
			MinSupport:           2,
			ExpectedMutationRate: 1e-3,
		},
		Priors:       testSchedulerPriors(),
		Ploidies:     genome.NewPloidyMap(2),
		Samples:      []string{"s"},
		Transformers: []sam.Transformer{sam.CapBaseQualities, sam.CapitaliseBases},
		Config: Config{
			Threads:          1,
			ReadBufferSize:   1 << 30,
			DownsampleAbove:  1000,
			DownsampleTarget: 500,
		},
		Phaser: Phaser{MinPhaseScore: 10},
	}
	return scheduler, ref
}

func testSchedulerPriors() model.Priors {
	return model.Priors{
		SnvHeterozygosity:   1e-3,
		IndelHeterozygosity: 1e-4,
		MaxGenotypes:        5000,
		MinVariantPosterior: 2,
	}
}

func e1Reads(t *testing.T) []*sam.Alignment {
	cigar, err := sam.ScanCigarString("10M")
	require.NoError(t, err)
	var alns []*sam.Alignment
	for i := 0; i < 20; i++ {
		quals := make([]byte, 10)
		for j := range quals {
			quals[j] = 30
		}
		alns = append(alns, &sam.Alignment{
			QNAME:  "r",
			RNAME:  "c",
			POS:    15,
			MAPQ:   60,
			CIGAR:  cigar,
			SEQ:    []byte("AAAAATAAAA"),
			QUAL:   quals,
			Sample: "s",
		})
	}
	return alns
}

// the germline SNV scenario, end to end through the scheduler
func TestSchedulerCallsGermlineSnv(t *testing.T) {
	scheduler, _ := schedulerFixture(strings.Repeat("A", 50))
	reads := map[string][]*sam.Alignment{"c": e1Reads(t)}

	out, err := vcf.Create(t.TempDir() + "/calls.vcf")
	require.NoError(t, err)
	writer := NewWriter(out, scheduler.Ref, scheduler.Samples, false, "test")
	var captured []*model.Call
	calls, err := scheduler.callContig(context.Background(),
		genome.Contig{Name: "c", Length: 50},
		[]genome.Region{{Contig: "c", Start: 0, End: 50}},
		reads["c"])
	require.NoError(t, err)
	captured = calls

	require.NotEmpty(t, captured)
	var snvs []*model.Call
	for _, call := range captured {
		if !call.IsRefcall {
			snvs = append(snvs, call)
		}
	}
	require.Len(t, snvs, 1)
	call := snvs[0]
	assert.Equal(t, genome.NewRegion("c", 20, 21), call.Variant.Region)
	assert.Equal(t, "T", call.Variant.Alt)
	assert.GreaterOrEqual(t, call.QualPhred, 40.0)
	assert.NotZero(t, call.PhaseSet)

	require.NoError(t, writer.WriteCalls(captured, scheduler.Ref))
	require.NoError(t, out.Close())
}

// phase-set completeness: every emitted call carries a phase set
// whose region contains it, and calls of distinct active regions
// never share a set
func TestSchedulerPhaseSets(t *testing.T) {
	refSeq := strings.Repeat("A", 400)
	scheduler, _ := schedulerFixture(refSeq)

	cigar, err := sam.ScanCigarString("10M")
	require.NoError(t, err)
	var alns []*sam.Alignment
	for _, pos := range []int32{15, 300} {
		for i := 0; i < 20; i++ {
			quals := make([]byte, 10)
			for j := range quals {
				quals[j] = 30
			}
			alns = append(alns, &sam.Alignment{
				QNAME: "r", RNAME: "c", POS: pos, MAPQ: 60,
				CIGAR: cigar, SEQ: []byte("AAAAATAAAA"), QUAL: quals, Sample: "s",
			})
		}
	}
	sam.By(sam.CoordinateLess).ParallelStableSort(alns)

	calls, err := scheduler.callContig(context.Background(),
		genome.Contig{Name: "c", Length: 400},
		[]genome.Region{{Contig: "c", Start: 0, End: 400}},
		alns)
	require.NoError(t, err)

	var variantCalls []*model.Call
	for _, call := range calls {
		if !call.IsRefcall {
			variantCalls = append(variantCalls, call)
		}
	}
	require.Len(t, variantCalls, 2)
	assert.NotEqual(t, variantCalls[0].PhaseSet, variantCalls[1].PhaseSet)
	for _, call := range variantCalls {
		assert.NotZero(t, call.PhaseSet)
		assert.LessOrEqual(t, call.PhaseSet-1, call.Variant.Region.Start)
	}
}

// the reference-only scenario: no candidates and blocked refcalls
// produce one block row spanning the window
func TestSchedulerBlockedRefcall(t *testing.T) {
	scheduler, _ := schedulerFixture(strings.Repeat("A", 100))
	scheduler.Priors.RefcallType = model.RefcallBlocked
	scheduler.Priors.RefcallBlockMerge = 10
	scheduler.Model = &model.IndividualModel{Priors: scheduler.Priors}

	cigar, err := sam.ScanCigarString("10M")
	require.NoError(t, err)
	var alns []*sam.Alignment
	for pos := int32(0); pos+10 <= 100; pos += 5 {
		quals := make([]byte, 10)
		for j := range quals {
			quals[j] = 30
		}
		alns = append(alns, &sam.Alignment{
			QNAME: "r", RNAME: "c", POS: pos, MAPQ: 60,
			CIGAR: cigar, SEQ: []byte("AAAAAAAAAA"), QUAL: quals, Sample: "s",
		})
	}

	calls, err := scheduler.callContig(context.Background(),
		genome.Contig{Name: "c", Length: 100},
		[]genome.Region{{Contig: "c", Start: 0, End: 100}},
		alns)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.True(t, calls[0].IsRefcall)
	assert.Equal(t, int32(0), calls[0].Region.Start)
	assert.Equal(t, int32(100), calls[0].Region.End)
}

// identical inputs produce identical calls
func TestSchedulerIdempotent(t *testing.T) {
	run := func() []*model.Call {
		scheduler, _ := schedulerFixture(strings.Repeat("A", 50))
		calls, err := scheduler.callContig(context.Background(),
			genome.Contig{Name: "c", Length: 50},
			[]genome.Region{{Contig: "c", Start: 0, End: 50}},
			e1Reads(t))
		require.NoError(t, err)
		return calls
	}
	first := run()
	second := run()
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Variant, second[i].Variant)
		assert.Equal(t, first[i].QualPhred, second[i].QualPhred)
		assert.Equal(t, first[i].PhaseSet, second[i].PhaseSet)
	}
}

func TestSchedulerCancellation(t *testing.T) {
	scheduler, _ := schedulerFixture(strings.Repeat("A", 50))
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	calls, err := scheduler.callContig(cancelled,
		genome.Contig{Name: "c", Length: 50},
		[]genome.Region{{Contig: "c", Start: 0, End: 50}},
		e1Reads(t))
	require.NoError(t, err)
	assert.Empty(t, calls)
}

func TestConfigWorkingMemoryFloor(t *testing.T) {
	cfg := Config{Threads: 8, TargetWorkingMemory: 1 << 20}
	assert.Equal(t, int64(minWorkingMemoryPerThread), cfg.WorkingMemoryPerThread())

	cfg = Config{Threads: 2, TargetWorkingMemory: 4 << 30}
	assert.Equal(t, int64(2<<30), cfg.WorkingMemoryPerThread())
}
