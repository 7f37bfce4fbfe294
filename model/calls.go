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
	"sort"

	"github.com/exascience/halo/genome"
)

// RefcallType selects how confidently-reference regions are
// reported.
type RefcallType int

const (
	RefcallNone RefcallType = iota
	RefcallPositional
	RefcallBlocked
)

// A GenotypeCall is the genotype assigned to one sample at one site.
type GenotypeCall struct {
	// Alleles holds 0 for the reference allele and 1 for the
	// alternate, one entry per haplotype copy.
	Alleles []int32
	Phred   float64
	Phased  bool
}

// A Call is one emitted row: a variant call or a refcall.
type Call struct {
	Variant   genome.Variant
	IsRefcall bool
	// Region is the covered span for refcalls.
	Region    genome.Region
	QualPhred float64
	// Genotypes is empty when sites_only is set.
	Genotypes map[string]GenotypeCall
	// PhaseSet is assigned by the phaser before writing.
	PhaseSet int32
	// DeNovoPhred is set by the trio model for de novo candidates.
	DeNovoPhred float64
	// Somatic marks calls attributed to somatic haplotypes.
	Somatic          bool
	SomaticFrequency float64
}

// explicitAlleles collects the distinct explicit alleles over all
// haplotypes, sorted.
func explicitAlleles(haplotypes []*genome.Haplotype) []genome.Allele {
	seen := make(map[genome.Allele]bool)
	var result []genome.Allele
	for _, h := range haplotypes {
		for _, allele := range h.Alleles() {
			if !seen[allele] {
				seen[allele] = true
				result = append(result, allele)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return genome.CompareAlleles(result[i], result[j]) < 0
	})
	return result
}

// allelePosterior sums the marginal probability of the genotypes
// that carry the allele on at least one haplotype copy.
func allelePosterior(ctx *Context, posterior *Posterior, sample string, allele genome.Allele) float64 {
	var p float64
	marginals := posterior.Marginals[sample]
	for g, genotype := range posterior.Genotypes {
		for _, h := range genotype.Haplotypes() {
			if ctx.Haplotypes[h].ContainsAllele(allele) {
				p += marginals[g]
				break
			}
		}
	}
	return p
}

// alleleCopies counts how many haplotype copies of the genotype
// carry the allele.
func alleleCopies(ctx *Context, genotype genome.Genotype, allele genome.Allele) int {
	copies := 0
	for _, h := range genotype.Haplotypes() {
		if ctx.Haplotypes[h].ContainsAllele(allele) {
			copies++
		}
	}
	return copies
}

// variantForAllele reconstructs the variant for an explicit allele.
func variantForAllele(ctx *Context, allele genome.Allele) genome.Variant {
	ref := string(ctx.Ref.Bases(allele.Region))
	return genome.Variant{Region: allele.Region, Ref: ref, Alt: allele.Seq}
}

// emitVariantCalls produces one call per explicit allele whose
// combined posterior clears the variant threshold.
func emitVariantCalls(ctx *Context, posterior *Posterior, priors Priors) []*Call {
	var calls []*Call
	for _, allele := range explicitAlleles(ctx.Haplotypes) {
		missChance := 1.0
		perSample := make(map[string]float64, len(ctx.Samples))
		for _, sample := range ctx.Samples {
			p := allelePosterior(ctx, posterior, sample, allele)
			perSample[sample] = p
			missChance *= 1 - p
		}
		qual := PhredFromErrorProb(missChance)
		if qual < priors.MinVariantPosterior {
			continue
		}
		call := &Call{
			Variant:   variantForAllele(ctx, allele),
			QualPhred: qual,
		}
		if !priors.SitesOnly {
			call.Genotypes = make(map[string]GenotypeCall, len(ctx.Samples))
			for _, sample := range ctx.Samples {
				genotype := posterior.Genotypes[posterior.MAP[sample]]
				copies := alleleCopies(ctx, genotype, allele)
				alleles := make([]int32, genotype.Ploidy())
				for i := 0; i < copies; i++ {
					alleles[genotype.Ploidy()-1-i] = 1
				}
				call.Genotypes[sample] = GenotypeCall{
					Alleles: alleles,
					Phred:   PhredFromErrorProb(1 - posterior.Marginals[sample][posterior.MAP[sample]]),
				}
			}
		}
		calls = append(calls, call)
	}
	return calls
}

// refGenotypePosterior returns the posterior probability that every
// sample is homozygous for the reference haplotype.
func refGenotypePosterior(ctx *Context, posterior *Posterior) float64 {
	refIndex := ctx.RefHaplotype()
	if refIndex < 0 {
		return 0
	}
	p := 1.0
	for _, sample := range ctx.Samples {
		var sampleP float64
		for g, genotype := range posterior.Genotypes {
			if genotype.IsHomozygous() && genotype.Contains(refIndex) {
				sampleP += posterior.Marginals[sample][g]
			}
		}
		p *= sampleP
	}
	return p
}

// AppendRefcalls adds refcall rows for the active region according
// to the refcall type: positional refcalls get one row per position,
// blocked refcalls merge adjacent positions whose posterior clears
// the block-merge threshold.
func AppendRefcalls(calls []*Call, ctx *Context, posterior *Posterior, priors Priors) []*Call {
	if priors.RefcallType == RefcallNone {
		return calls
	}
	refPosterior := refGenotypePosterior(ctx, posterior)
	qual := PhredFromErrorProb(1 - refPosterior)
	region := ctx.Region
	switch priors.RefcallType {
	case RefcallPositional:
		for pos := region.Start; pos < region.End; pos++ {
			calls = append(calls, &Call{
				IsRefcall: true,
				Region:    genome.Region{Contig: region.Contig, Start: pos, End: pos + 1},
				QualPhred: qual,
			})
		}
	case RefcallBlocked:
		if qual >= priors.RefcallBlockMerge {
			calls = append(calls, &Call{
				IsRefcall: true,
				Region:    region,
				QualPhred: qual,
			})
		} else {
			for pos := region.Start; pos < region.End; pos++ {
				calls = append(calls, &Call{
					IsRefcall: true,
					Region:    genome.Region{Contig: region.Contig, Start: pos, End: pos + 1},
					QualPhred: qual,
				})
			}
		}
	}
	return calls
}
