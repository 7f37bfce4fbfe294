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

import "math"

// A PopulationModel scores genotypes jointly for multiple samples by
// iterating sample posteriors against shared haplotype frequencies.
type PopulationModel struct {
	Priors Priors
}

const populationIterations = 3

func (m *PopulationModel) RequiredParams() []string {
	return []string{"snv-heterozygosity", "indel-heterozygosity", "max-genotypes", "min-variant-posterior"}
}

func (m *PopulationModel) ScoreGenotypes(ctx *Context) *Posterior {
	// the genotype space is shared, so all samples need one ploidy
	ploidy := ctx.Ploidies[ctx.Samples[0]]
	genotypes := genotypeSpace(ctx, m.Priors, ploidy)
	nofHaplotypes := len(ctx.Haplotypes)

	// base scores without frequency weighting
	baseScores := make(map[string][]float64, len(ctx.Samples))
	for _, sample := range ctx.Samples {
		baseScores[sample] = sampleGenotypeScores(m.Priors, ctx.Haplotypes, ctx.Likelihoods[sample], genotypes)
	}

	frequencies := make([]float64, nofHaplotypes)
	for h := range frequencies {
		frequencies[h] = 1 / float64(nofHaplotypes)
	}

	marginals := make(map[string][]float64, len(ctx.Samples))
	for iteration := 0; iteration < populationIterations; iteration++ {
		// E step: per-sample posteriors under current frequencies
		counts := make([]float64, nofHaplotypes)
		for _, sample := range ctx.Samples {
			scores := make([]float64, len(genotypes))
			for g, genotype := range genotypes {
				frequencyPrior := 0.0
				for _, h := range genotype.Haplotypes() {
					frequencyPrior += math.Log10(frequencies[h] + 1e-300)
				}
				scores[g] = baseScores[sample][g] + frequencyPrior
			}
			posterior := normalizeLog10(scores)
			marginals[sample] = posterior
			for g, genotype := range genotypes {
				for _, h := range genotype.Haplotypes() {
					counts[h] += posterior[g]
				}
			}
		}
		// M step: frequencies from expected allele counts
		var total float64
		for _, c := range counts {
			total += c
		}
		if total == 0 {
			break
		}
		for h := range frequencies {
			frequencies[h] = counts[h] / total
		}
	}

	result := &Posterior{
		Genotypes: genotypes,
		Marginals: marginals,
		MAP:       make(map[string]int, len(ctx.Samples)),
	}
	for _, sample := range ctx.Samples {
		result.MAP[sample] = argmax(marginals[sample])
	}
	return result
}

func (m *PopulationModel) EmitCalls(ctx *Context, posterior *Posterior) []*Call {
	calls := emitVariantCalls(ctx, posterior, m.Priors)
	if len(calls) == 0 {
		calls = AppendRefcalls(calls, ctx, posterior, m.Priors)
	}
	return calls
}
