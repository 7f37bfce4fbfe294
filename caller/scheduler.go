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

// Package caller drives the window-by-window calling loop: it
// coordinates candidate generation, haplotype enumeration,
// likelihoods, genotype models, and phase-set assembly per contig,
// with contigs running in parallel worker threads.
package caller

import (
	"context"
	"runtime"
	"sync"

	"github.com/exascience/halo/candidates"
	"github.com/exascience/halo/genome"
	"github.com/exascience/halo/hmm"
	"github.com/exascience/halo/model"
	"github.com/exascience/halo/readpipe"
	"github.com/exascience/halo/sam"
	logging "github.com/op/go-logging"
)

// minimum per-thread working memory in bytes
const minWorkingMemoryPerThread = 100 << 20

// Config bounds the run-wide resources of the scheduler.
type Config struct {
	// Threads is the worker thread count; 0 means all cores, 1 runs
	// sequentially.
	Threads int
	// ReadBufferSize is the total retained read byte budget, shared
	// by all threads.
	ReadBufferSize int64
	// TargetWorkingMemory is the total working memory target.
	TargetWorkingMemory int64
	// DownsampleAbove/DownsampleTarget cap the read depth.
	DownsampleAbove  int32
	DownsampleTarget int32
}

// NofThreads resolves the configured thread count.
func (cfg Config) NofThreads() int {
	if cfg.Threads <= 0 {
		return runtime.NumCPU()
	}
	return cfg.Threads
}

// WorkingMemoryPerThread returns the per-thread memory target,
// floored at 100 MB.
func (cfg Config) WorkingMemoryPerThread() int64 {
	perThread := cfg.TargetWorkingMemory / int64(cfg.NofThreads())
	if perThread < minWorkingMemoryPerThread {
		return minWorkingMemoryPerThread
	}
	return perThread
}

// A Scheduler owns the per-run calling components. The reference and
// the model configuration are read-only during the run; the progress
// meter and the writer serialize their own access.
type Scheduler struct {
	Ref          genome.Reference
	Model        model.Model
	ErrorModel   *hmm.ErrorModel
	HmmOptions   hmm.Options
	Generator    GeneratorConfig
	Generators   []candidates.Generator
	Inclusion    candidates.InclusionConfig
	Priors       model.Priors
	Ploidies     *genome.PloidyMap
	Samples      []string
	NormalSample string
	Transformers []sam.Transformer
	Filters      []sam.Filter
	Config       Config
	Phaser       Phaser
	ContigOrder  ContigOrder
	Progress     *ProgressMeter
	Logger       *logging.Logger
}

type contigResult struct {
	calls []*model.Call
	err   error
}

// A CallWriter consumes ordered blocks of calls. The primary VCF
// writer implements it; cmd fans calls out to sibling outputs.
type CallWriter interface {
	WriteCalls(calls []*model.Call, ref genome.Reference) error
}

// CallVariants runs the full calling loop over the given reads and
// search regions and writes the calls in the configured contig
// order. Cancelling the context stops the run at the next window
// boundary, after flushing the current phase set.
func (s *Scheduler) CallVariants(ctx context.Context, readsByContig map[string][]*sam.Alignment, searchRegions map[string][]genome.Region, writer CallWriter) error {
	contigs := OrderContigs(s.Ref.Contigs(), s.ContigOrder)

	results := make([]contigResult, len(contigs))
	semaphore := make(chan struct{}, s.Config.NofThreads())
	var wait sync.WaitGroup
	for i, contig := range contigs {
		regions, ok := searchRegion(searchRegions, contig)
		if !ok {
			continue
		}
		wait.Add(1)
		go func(i int, contig genome.Contig, regions []genome.Region) {
			defer wait.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()
			calls, err := s.callContig(ctx, contig, regions, readsByContig[contig.Name])
			results[i] = contigResult{calls: calls, err: err}
		}(i, contig, regions)
	}
	wait.Wait()

	// ordered writes: one block per contig, in output order
	for _, result := range results {
		if result.err != nil {
			return result.err
		}
		if err := writer.WriteCalls(result.calls, s.Ref); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func searchRegion(searchRegions map[string][]genome.Region, contig genome.Contig) ([]genome.Region, bool) {
	if searchRegions == nil {
		return []genome.Region{{Contig: contig.Name, Start: 0, End: contig.Length}}, true
	}
	regions, ok := searchRegions[contig.Name]
	if !ok {
		return nil, false
	}
	for i, region := range regions {
		if region.End < 0 {
			regions[i].End = contig.Length
		}
	}
	return regions, ok
}

// callContig runs the sequential window loop of one contig.
func (s *Scheduler) callContig(ctx context.Context, contig genome.Contig, regions []genome.Region, alns []*sam.Alignment) ([]*model.Call, error) {
	var calls []*model.Call
	budget := s.Config.ReadBufferSize / int64(s.Config.NofThreads())

	sam.By(sam.CoordinateLess).ParallelStableSort(alns)

	for _, region := range regions {
		regionAlns := overlappingReads(alns, region)
		for _, batch := range readpipe.MakeBatches(contig.Name, regionAlns, budget) {
			if err := ctx.Err(); err != nil {
				// cancelled: the phase sets emitted so far are
				// already in calls; stop at the window boundary
				return calls, nil
			}
			batchCalls := s.callBatch(contig, region, batch.Alns)
			calls = append(calls, batchCalls...)
			if s.Progress != nil {
				s.Progress.Advance(contig.Name, batchSpan(batch.Alns, region))
			}
		}
	}
	return calls, nil
}

func overlappingReads(alns []*sam.Alignment, region genome.Region) []*sam.Alignment {
	var result []*sam.Alignment
	for _, aln := range alns {
		if aln.Overlaps(region.Start, region.End) {
			result = append(result, aln)
		}
	}
	return result
}

func batchSpan(alns []*sam.Alignment, region genome.Region) int64 {
	if len(alns) == 0 {
		return int64(region.Length())
	}
	start := alns[0].POS
	end := alns[len(alns)-1].End()
	return int64(end - start)
}

// callBatch processes one read batch: transform, filter,
// downsample, propose candidates, and evaluate the resulting active
// regions.
func (s *Scheduler) callBatch(contig genome.Contig, region genome.Region, alns []*sam.Alignment) []*model.Call {
	// per-read transformers and filterers; failing reads drop, the
	// window continues
	for _, aln := range alns {
		for _, transform := range s.Transformers {
			transform(aln)
		}
	}
	filters := append([]sam.Filter{sam.ValidBaseQualities, sam.WellFormed}, s.Filters...)
	kept := sam.ApplyFilters(append([]*sam.Alignment(nil), alns...), filters)
	kept = sam.Downsample(kept, s.Config.DownsampleAbove, s.Config.DownsampleTarget)

	if len(kept) == 0 {
		return s.evaluateEmptyWindow(contig, region)
	}

	window := genome.Region{Contig: contig.Name, Start: kept[0].POS, End: kept[0].End()}
	for _, aln := range kept {
		if aln.End() > window.End {
			window.End = aln.End()
		}
	}
	if window.Start < region.Start {
		window.Start = region.Start
	}
	if window.End > region.End {
		window.End = region.End
	}

	proposals := s.propose(window, kept)
	if len(proposals) == 0 {
		return s.evaluateWindowWithoutVariation(contig, window, kept)
	}

	generator := NewGenerator(s.Generator, s.Ref, contig.Length)
	var calls []*model.Call
	for _, candidate := range proposals {
		for _, emission := range generator.Extend(candidate) {
			calls = append(calls, s.evaluate(contig, emission, kept)...)
		}
	}
	for _, emission := range generator.Flush() {
		calls = append(calls, s.evaluate(contig, emission, kept)...)
	}
	return calls
}

// propose runs the candidate generators over the window and applies
// the mode-specific inclusion predicate.
func (s *Scheduler) propose(window genome.Region, alns []*sam.Alignment) []candidates.Candidate {
	groups := make([][]candidates.Candidate, len(s.Generators))
	for i, generator := range s.Generators {
		groups[i] = generator.Generate(s.Ref, window, alns)
	}
	merged := candidates.Union(groups...)
	depth := int32(len(alns))
	var normalAlns []*sam.Alignment
	var normalSupport map[genome.Variant]int32
	if s.Inclusion.Mode == candidates.Somatic && s.NormalSample != "" {
		for _, aln := range alns {
			if aln.Sample == s.NormalSample {
				normalAlns = append(normalAlns, aln)
			}
		}
		scanner := candidates.CigarScanner{MinBaseQuality: 1}
		normalSupport = make(map[genome.Variant]int32)
		for _, c := range scanner.Generate(s.Ref, window, normalAlns) {
			normalSupport[c.Variant] = c.Support
		}
	}
	result := merged[:0]
	for _, c := range merged {
		switch s.Inclusion.Mode {
		case candidates.Somatic:
			fraction := 0.0
			if len(normalAlns) > 0 {
				fraction = float64(normalSupport[c.Variant]) / float64(len(normalAlns))
			}
			if s.Inclusion.IncludeSomatic(c, fraction) {
				result = append(result, c)
			}
		case candidates.Polyclone, candidates.Cell:
			if s.Inclusion.IncludeClonal(c, depth) {
				result = append(result, c)
			}
		default:
			if s.Inclusion.Include(c) {
				result = append(result, c)
			}
		}
	}
	return result
}

// evaluate scores one emitted active region and returns its phased
// calls.
func (s *Scheduler) evaluate(contig genome.Contig, emission Emission, alns []*sam.Alignment) []*model.Call {
	regionAlns := overlappingReads(alns, emission.Region)
	haplotypeSeqs := make([]string, len(emission.Haplotypes))
	for i, h := range emission.Haplotypes {
		haplotypeSeqs[i] = h.Sequence(s.Ref)
	}

	modelCtx := &model.Context{
		Ref:         s.Ref,
		Region:      emission.Region,
		Haplotypes:  emission.Haplotypes,
		Samples:     s.Samples,
		Likelihoods: make(map[string]hmm.ReadLikelihoods, len(s.Samples)),
		Ploidies:    make(map[string]int, len(s.Samples)),
	}
	for _, sample := range s.Samples {
		var sampleAlns []*sam.Alignment
		for _, aln := range regionAlns {
			if aln.Sample == sample || aln.Sample == "" && len(s.Samples) == 1 {
				sampleAlns = append(sampleAlns, aln)
			}
		}
		likelihoods := hmm.Compute(s.ErrorModel, s.HmmOptions, haplotypeSeqs, emission.Region.Start, sampleAlns)
		likelihoods.DropPoorlyModeledReads()
		modelCtx.Likelihoods[sample] = likelihoods
		modelCtx.Ploidies[sample] = s.Ploidies.Ploidy(sample, contig.Name)
	}

	posterior := s.Model.ScoreGenotypes(modelCtx)
	calls := s.Model.EmitCalls(modelCtx, posterior)
	s.Phaser.Phase(posterior, emission, calls)
	return calls
}

// evaluateWindowWithoutVariation scores a window whose reads propose
// no candidates: only the reference haplotype competes, so the model
// produces refcalls when configured.
func (s *Scheduler) evaluateWindowWithoutVariation(contig genome.Contig, window genome.Region, alns []*sam.Alignment) []*model.Call {
	if s.Priors.RefcallType == model.RefcallNone {
		return nil
	}
	emission := Emission{
		Region:     window,
		Haplotypes: []*genome.Haplotype{genome.NewHaplotype(window)},
	}
	return s.evaluate(contig, emission, alns)
}

// evaluateEmptyWindow handles windows without usable reads.
func (s *Scheduler) evaluateEmptyWindow(contig genome.Contig, window genome.Region) []*model.Call {
	if s.Priors.RefcallType == model.RefcallNone {
		return nil
	}
	// no evidence: a refcall block with zero quality
	return []*model.Call{{
		IsRefcall: true,
		Region:    window,
	}}
}
