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
	"github.com/exascience/halo/hmm"
	"gonum.org/v1/gonum/stat/combin"
)

// NofGenotypes returns the number of ploidy-sized multisets over the
// given number of haplotypes.
func NofGenotypes(haplotypes, ploidy int) int {
	if haplotypes == 0 {
		return 0
	}
	return combin.Binomial(haplotypes+ploidy-1, ploidy)
}

// EnumerateGenotypes lists all ploidy-sized multisets over the given
// haplotype indices, in lexicographic order.
func EnumerateGenotypes(haplotypes []int, ploidy int) []genome.Genotype {
	sorted := append([]int(nil), haplotypes...)
	sort.Ints(sorted)
	var result []genome.Genotype
	combo := make([]int, ploidy)
	var rec func(pos, start int)
	rec = func(pos, start int) {
		if pos == ploidy {
			result = append(result, genome.NewGenotype(combo...))
			return
		}
		for i := start; i < len(sorted); i++ {
			combo[pos] = sorted[i]
			rec(pos+1, i)
		}
	}
	rec(0, 0)
	return result
}

// selectHaplotypes ranks haplotypes by their best summed read
// support and returns the top count, always retaining the reference
// haplotype.
func selectHaplotypes(ctx *Context, kept []int, count int) []int {
	if len(kept) <= count {
		return kept
	}
	type rankedHaplotype struct {
		index   int
		support float64
	}
	ranked := make([]rankedHaplotype, 0, len(kept))
	for _, h := range kept {
		var support float64
		for _, sample := range ctx.Samples {
			likelihoods := ctx.Likelihoods[sample]
			for r := range likelihoods.Alns {
				if !likelihoods.Ambiguous[r] {
					support += likelihoods.Values[r][h]
				}
			}
		}
		ranked = append(ranked, rankedHaplotype{index: h, support: support})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].support > ranked[j].support
	})
	refIndex := ctx.RefHaplotype()
	result := make([]int, 0, count)
	haveRef := false
	for _, r := range ranked[:count] {
		if r.index == refIndex {
			haveRef = true
		}
		result = append(result, r.index)
	}
	if !haveRef && refIndex >= 0 {
		result[len(result)-1] = refIndex
	}
	sort.Ints(result)
	return result
}

// genotypeSpace enumerates the genotypes scored by a model: the
// haplotype set is reduced until the genotype count fits the cap.
func genotypeSpace(ctx *Context, priors Priors, ploidy int) []genome.Genotype {
	kept := make([]int, len(ctx.Haplotypes))
	for i := range kept {
		kept[i] = i
	}
	if priors.ModelBasedDedup {
		kept = DedupHaplotypes(ctx)
	}
	maxGenotypes := priors.MaxGenotypes
	if maxGenotypes <= 0 {
		maxGenotypes = 1 << 14
	}
	for len(kept) > 1 && NofGenotypes(len(kept), ploidy) > maxGenotypes {
		kept = selectHaplotypes(ctx, kept, len(kept)-1)
	}
	return EnumerateGenotypes(kept, ploidy)
}

// sampleGenotypeScores returns unnormalized log10 posterior scores
// for one sample over the genotype space.
func sampleGenotypeScores(priors Priors, haplotypes []*genome.Haplotype, likelihoods hmm.ReadLikelihoods, genotypes []genome.Genotype) []float64 {
	scores := make([]float64, len(genotypes))
	for g, genotype := range genotypes {
		scores[g] = priors.genotypePrior(haplotypes, genotype) + genotypeLog10Likelihood(likelihoods, genotype)
	}
	return scores
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
