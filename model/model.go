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

// Package model evaluates posterior distributions over genotype
// assignments. Each caller flavor implements the same small
// capability interface; shared parameters live in Priors.
package model

import (
	"math"

	"github.com/exascience/halo/genome"
	"github.com/exascience/halo/hmm"
	"gonum.org/v1/gonum/floats"
)

// A Context carries everything a genotype model needs for one active
// region: the candidate haplotypes, per-sample read likelihoods, and
// per-sample ploidies.
type Context struct {
	Ref         genome.Reference
	Region      genome.Region
	Haplotypes  []*genome.Haplotype
	Samples     []string
	Likelihoods map[string]hmm.ReadLikelihoods
	Ploidies    map[string]int
}

// RefHaplotype returns the index of the reference haplotype, or -1.
func (ctx *Context) RefHaplotype() int {
	for i, h := range ctx.Haplotypes {
		if h.IsReference() {
			return i
		}
	}
	return -1
}

// A Posterior is a scored distribution over genotype assignments.
type Posterior struct {
	Genotypes []genome.Genotype
	// Marginals[sample][g] is the posterior probability of genotype
	// g for the sample; each row sums to one.
	Marginals map[string][]float64
	// MAP[sample] is the index of the maximum a posteriori genotype.
	MAP map[string]int
	// DeNovo is the posterior probability that the child carries a
	// non-Mendelian allele (trio model only).
	DeNovo float64
	// Somatic is the posterior probability that at least one somatic
	// haplotype is present (cancer model only), with its haplotypes.
	Somatic          float64
	SomaticHaplotypes []int
	// ClonePloidy is the inferred number of clones (polyclone/cell).
	ClonePloidy int
}

// A Model scores genotypes for one caller flavor.
type Model interface {
	ScoreGenotypes(ctx *Context) *Posterior
	EmitCalls(ctx *Context, posterior *Posterior) []*Call
	RequiredParams() []string
}

// Priors holds the parameters shared by all caller flavors.
type Priors struct {
	SnvHeterozygosity   float64
	IndelHeterozygosity float64
	MaxGenotypes        int
	MinVariantPosterior float64 // phred
	SitesOnly           bool
	ModelBasedDedup     bool
	RefcallType         RefcallType
	RefcallBlockMerge   float64 // phred
}

// log10SumLog10 reduces a log10 vector to the log10 of the sum.
func log10SumLog10(values []float64) float64 {
	if len(values) == 0 {
		return math.Inf(-1)
	}
	max := floats.Max(values)
	if math.IsInf(max, -1) {
		return max
	}
	var sum float64
	for _, v := range values {
		sum += math.Pow(10, v-max)
	}
	return max + math.Log10(sum)
}

// normalizeLog10 converts log10 scores to a normalized probability
// vector.
func normalizeLog10(scores []float64) []float64 {
	total := log10SumLog10(scores)
	result := make([]float64, len(scores))
	for i, s := range scores {
		result[i] = math.Pow(10, s-total)
	}
	return result
}

// PhredFromErrorProb converts an error probability to phred scale,
// capped to keep VCF output finite.
func PhredFromErrorProb(p float64) float64 {
	const maxPhred = 3000
	if p <= 0 {
		return maxPhred
	}
	phred := -10 * math.Log10(p)
	if phred > maxPhred {
		return maxPhred
	}
	if phred < 0 {
		return 0
	}
	return phred
}

// genotypeLog10Likelihood sums read likelihoods over the haplotype
// assignments within the genotype.
func genotypeLog10Likelihood(likelihoods hmm.ReadLikelihoods, genotype genome.Genotype) float64 {
	ploidy := float64(genotype.Ploidy())
	log10Ploidy := math.Log10(ploidy)
	var total float64
	for r := range likelihoods.Alns {
		if likelihoods.Ambiguous[r] {
			continue
		}
		perHaplotype := make([]float64, 0, genotype.Ploidy())
		for _, h := range genotype.Haplotypes() {
			perHaplotype = append(perHaplotype, likelihoods.Values[r][h])
		}
		total += log10SumLog10(perHaplotype) - log10Ploidy
	}
	return total
}

// genotypePrior scores a genotype from the SNV and indel
// heterozygosities: each non-reference explicit allele of each
// distinct haplotype costs its heterozygosity, and every further copy
// of a haplotype already counted costs a factor of one half.
func (p Priors) genotypePrior(haplotypes []*genome.Haplotype, genotype genome.Genotype) float64 {
	log10Snv := math.Log10(p.SnvHeterozygosity)
	log10Indel := math.Log10(p.IndelHeterozygosity)
	var prior float64
	seen := make(map[int]bool, genotype.Ploidy())
	for _, h := range genotype.Haplotypes() {
		if seen[h] {
			// extra copies of the same haplotype are cheaper than
			// independent ones
			prior += math.Log10(0.5)
			continue
		}
		seen[h] = true
		for _, allele := range haplotypes[h].Alleles() {
			if allele.IsIndel() {
				prior += log10Indel
			} else {
				prior += log10Snv
			}
		}
	}
	return prior
}

// DedupHaplotypes fuses haplotypes whose likelihood columns are
// indistinguishable, returning the retained haplotype indices.
func DedupHaplotypes(ctx *Context) []int {
	n := len(ctx.Haplotypes)
	kept := make([]int, 0, n)
nextHaplotype:
	for h := 0; h < n; h++ {
		for _, k := range kept {
			if likelihoodColumnsEqual(ctx, h, k) && !ctx.Haplotypes[h].IsReference() {
				continue nextHaplotype
			}
		}
		kept = append(kept, h)
	}
	return kept
}

const dedupTolerance = 1e-9

func likelihoodColumnsEqual(ctx *Context, h1, h2 int) bool {
	for _, sample := range ctx.Samples {
		likelihoods := ctx.Likelihoods[sample]
		for r := range likelihoods.Alns {
			if likelihoods.Ambiguous[r] {
				continue
			}
			if math.Abs(likelihoods.Values[r][h1]-likelihoods.Values[r][h2]) > dedupTolerance {
				return false
			}
		}
	}
	return true
}
