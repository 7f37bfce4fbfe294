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
	"math"

	"github.com/exascience/halo/internal"
)

// A PolycloneModel fits a haploid-per-clone mixture with an unknown
// number of clones: models with 1..MaxClones components compete by
// ELBO under a symmetric Dirichlet prior on clone frequencies.
type PolycloneModel struct {
	Priors     Priors
	MaxClones  int
	Alpha      float64 // symmetric Dirichlet concentration
	MaxVBSeeds int
	Random     *internal.Rand
}

func (m *PolycloneModel) RequiredParams() []string {
	return []string{"max-clones", "max-vb-seeds"}
}

// fitClones fits mixtures with increasing clone counts over the
// haplotypes ranked by marginal support and keeps the best ELBO fit.
func (m *PolycloneModel) fitClones(ctx *Context, sample string) (components []int, fit vbResult, nofClones int) {
	kept := make([]int, len(ctx.Haplotypes))
	for i := range kept {
		kept[i] = i
	}
	if m.Priors.ModelBasedDedup {
		kept = DedupHaplotypes(ctx)
	}
	maxClones := m.MaxClones
	if maxClones <= 0 {
		maxClones = 3
	}
	if maxClones > len(kept) {
		maxClones = len(kept)
	}
	alpha := m.Alpha
	if alpha <= 0 {
		alpha = 1
	}
	bestElbo := math.Inf(-1)
	for clones := 1; clones <= maxClones; clones++ {
		candidate := selectHaplotypes(ctx, kept, clones)
		rows := mixtureLikelihoods(ctx, sample, candidate)
		if len(rows) == 0 {
			continue
		}
		alphas := make([]float64, len(candidate))
		for i := range alphas {
			alphas[i] = alpha
		}
		result := runVBMixture(rows, alphas, m.MaxVBSeeds, m.Random)
		// each extra clone pays an Occam penalty of one read's worth
		// of uncertainty
		penalized := result.elbo - float64(clones)*math.Log10(float64(len(rows)+1))
		if penalized > bestElbo {
			bestElbo = penalized
			components, fit, nofClones = candidate, result, clones
		}
	}
	return components, fit, nofClones
}

func (m *PolycloneModel) ScoreGenotypes(ctx *Context) *Posterior {
	sample := ctx.Samples[0]
	components, fit, nofClones := m.fitClones(ctx, sample)
	if nofClones == 0 {
		individual := &IndividualModel{Priors: m.Priors}
		return individual.ScoreGenotypes(ctx)
	}
	// the fitted clone set is reported as a single genotype of
	// clone haplotypes, with weight-derived confidence
	genotype := EnumerateGenotypes(components, 1)
	genotypes := genotype
	marginals := make([]float64, len(genotypes))
	for g, gt := range genotypes {
		for i, h := range components {
			if gt.Contains(h) {
				marginals[g] = fit.weights[i]
			}
		}
	}
	return &Posterior{
		Genotypes:   genotypes,
		Marginals:   map[string][]float64{sample: marginals},
		MAP:         map[string]int{sample: argmax(marginals)},
		ClonePloidy: nofClones,
	}
}

func (m *PolycloneModel) EmitCalls(ctx *Context, posterior *Posterior) []*Call {
	calls := emitPolycloneCalls(ctx, posterior, m.Priors)
	if len(calls) == 0 {
		calls = AppendRefcalls(calls, ctx, posterior, m.Priors)
	}
	return calls
}

// emitPolycloneCalls reports every explicit allele carried by a
// fitted clone whose weight-derived posterior clears the threshold.
func emitPolycloneCalls(ctx *Context, posterior *Posterior, priors Priors) []*Call {
	sample := ""
	for s := range posterior.Marginals {
		sample = s
		break
	}
	var calls []*Call
	for _, allele := range explicitAlleles(ctx.Haplotypes) {
		var p float64
		for g, genotype := range posterior.Genotypes {
			for _, h := range genotype.Haplotypes() {
				if ctx.Haplotypes[h].ContainsAllele(allele) {
					p += posterior.Marginals[sample][g]
					break
				}
			}
		}
		if p > 1 {
			p = 1
		}
		qual := PhredFromErrorProb(1 - p)
		if qual < priors.MinVariantPosterior {
			continue
		}
		call := &Call{
			Variant:          variantForAllele(ctx, allele),
			QualPhred:        qual,
			SomaticFrequency: p,
		}
		if !priors.SitesOnly {
			call.Genotypes = map[string]GenotypeCall{
				sample: {Alleles: []int32{1}, Phred: qual},
			}
		}
		calls = append(calls, call)
	}
	return calls
}
