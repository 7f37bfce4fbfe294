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
	"sort"

	"github.com/exascience/halo/genome"
	"github.com/exascience/halo/internal"
	"gonum.org/v1/gonum/stat/distuv"
)

// A CancerModel scores a germline genotype anchored on the normal
// sample jointly with a set of somatic haplotypes carried by the
// tumour samples, using variational mixtures with random restarts.
type CancerModel struct {
	Priors                      Priors
	NormalSample                string
	MaxSomaticHaplotypes        int
	SomaticSnvRate              float64
	SomaticIndelRate            float64
	MinExpectedSomaticFrequency float64
	MinCredibleSomaticFrequency float64
	CredibleMass                float64
	TumourGermlineConcentration float64
	MaxVBSeeds                  int
	Random                      *internal.Rand

	// fitted somatic fraction, carried from scoring to emission
	lastSomaticFrequency float64
}

func (m *CancerModel) RequiredParams() []string {
	return []string{
		"normal-sample", "max-somatic-haplotypes",
		"somatic-snv-mutation-rate", "somatic-indel-mutation-rate",
		"min-expected-somatic-frequency", "min-credible-somatic-frequency",
		"credible-mass", "tumour-germline-concentration", "max-vb-seeds",
	}
}

// somaticPriorLog10 scores a somatic haplotype from the somatic
// mutation rates of its explicit alleles.
func (m *CancerModel) somaticPriorLog10(h *genome.Haplotype) float64 {
	var prior float64
	for _, allele := range h.Alleles() {
		if allele.IsIndel() {
			prior += math.Log10(m.SomaticIndelRate + 1e-300)
		} else {
			prior += math.Log10(m.SomaticSnvRate + 1e-300)
		}
	}
	return prior
}

// mixtureLikelihoods builds the per-read component likelihood matrix
// for the given haplotype components in one sample.
func mixtureLikelihoods(ctx *Context, sample string, components []int) [][]float64 {
	likelihoods := ctx.Likelihoods[sample]
	var rows [][]float64
	for r := range likelihoods.Alns {
		if likelihoods.Ambiguous[r] {
			continue
		}
		row := make([]float64, len(components))
		for i, h := range components {
			row[i] = likelihoods.Values[r][h]
		}
		rows = append(rows, row)
	}
	return rows
}

func (m *CancerModel) tumourSamples(ctx *Context) []string {
	var tumours []string
	for _, sample := range ctx.Samples {
		if sample != m.NormalSample {
			tumours = append(tumours, sample)
		}
	}
	return tumours
}

func (m *CancerModel) ScoreGenotypes(ctx *Context) *Posterior {
	// germline genotype anchored on the normal sample
	individual := &IndividualModel{Priors: m.Priors}
	germlineCtx := *ctx
	germlineCtx.Samples = []string{m.NormalSample}
	germline := individual.ScoreGenotypes(&germlineCtx)
	germlineMAP := germline.Genotypes[germline.MAP[m.NormalSample]]

	result := &Posterior{
		Genotypes: germline.Genotypes,
		Marginals: map[string][]float64{m.NormalSample: germline.Marginals[m.NormalSample]},
		MAP:       map[string]int{m.NormalSample: germline.MAP[m.NormalSample]},
	}
	for _, sample := range m.tumourSamples(ctx) {
		// tumour samples share the germline genotype space
		result.Marginals[sample] = germline.Marginals[m.NormalSample]
		result.MAP[sample] = germline.MAP[m.NormalSample]
	}

	// candidate somatic haplotypes: non-reference haplotypes absent
	// from the germline MAP genotype, ranked by somatic prior
	var candidates []int
	for h, haplotype := range ctx.Haplotypes {
		if haplotype.IsReference() || germlineMAP.Contains(h) {
			continue
		}
		candidates = append(candidates, h)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return m.somaticPriorLog10(ctx.Haplotypes[candidates[i]]) > m.somaticPriorLog10(ctx.Haplotypes[candidates[j]])
	})
	maxSomatic := m.MaxSomaticHaplotypes
	if maxSomatic <= 0 {
		maxSomatic = 1
	}
	if len(candidates) > maxSomatic {
		candidates = candidates[:maxSomatic]
	}
	if len(candidates) == 0 {
		return result
	}

	germlineComponents := uniqueInts(germlineMAP.Haplotypes())
	components := append(append([]int(nil), germlineComponents...), candidates...)

	somaticPosterior := 1.0
	haveEvidence := false
	var somaticWeight float64
	for _, sample := range m.tumourSamples(ctx) {
		rows := mixtureLikelihoods(ctx, sample, components)
		if len(rows) == 0 {
			continue
		}
		haveEvidence = true
		alphaWith := make([]float64, len(components))
		for i := range germlineComponents {
			alphaWith[i] = m.TumourGermlineConcentration
		}
		for i := len(germlineComponents); i < len(components); i++ {
			alphaWith[i] = 1
		}
		withSomatic := runVBMixture(rows, alphaWith, m.MaxVBSeeds, m.Random)

		germlineRows := mixtureLikelihoods(ctx, sample, germlineComponents)
		alphaWithout := make([]float64, len(germlineComponents))
		for i := range alphaWithout {
			alphaWithout[i] = m.TumourGermlineConcentration
		}
		withoutSomatic := runVBMixture(germlineRows, alphaWithout, m.MaxVBSeeds, m.Random)

		var priorLog10 float64
		for _, h := range candidates {
			priorLog10 += m.somaticPriorLog10(ctx.Haplotypes[h])
		}
		bayesLog10 := withSomatic.elbo - withoutSomatic.elbo + priorLog10
		odds := math.Pow(10, bayesLog10)
		samplePosterior := odds / (1 + odds)

		var frequency float64
		for i := len(germlineComponents); i < len(components); i++ {
			frequency += withSomatic.weights[i]
		}
		if frequency > somaticWeight {
			somaticWeight = frequency
		}

		// credible somatic frequency from the Beta posterior over
		// the somatic read fraction
		somaticReads := frequency * float64(len(rows))
		otherReads := float64(len(rows)) - somaticReads
		beta := distuv.Beta{Alpha: somaticReads + 1, Beta: otherReads + 1}
		credible := 1 - beta.CDF(m.MinCredibleSomaticFrequency)
		if credible < m.CredibleMass || frequency < m.MinExpectedSomaticFrequency {
			samplePosterior = 0
		}
		somaticPosterior *= 1 - samplePosterior
	}
	if haveEvidence {
		result.Somatic = 1 - somaticPosterior
		result.SomaticHaplotypes = candidates
		// frequency reported for the best tumour sample
		result.ClonePloidy = len(candidates)
		m.lastSomaticFrequency = somaticWeight
	}
	return result
}

func (m *CancerModel) EmitCalls(ctx *Context, posterior *Posterior) []*Call {
	calls := emitVariantCalls(ctx, posterior, m.Priors)
	somaticPhred := PhredFromErrorProb(1 - posterior.Somatic)
	if posterior.Somatic > 0 && somaticPhred >= m.Priors.MinVariantPosterior {
		for _, h := range posterior.SomaticHaplotypes {
			for _, allele := range ctx.Haplotypes[h].Alleles() {
				variant := variantForAllele(ctx, allele)
				duplicate := false
				for _, existing := range calls {
					if !existing.IsRefcall && genome.CompareVariants(existing.Variant, variant) == 0 {
						existing.Somatic = true
						existing.SomaticFrequency = m.lastSomaticFrequency
						duplicate = true
						break
					}
				}
				if !duplicate {
					calls = append(calls, &Call{
						Variant:          variant,
						QualPhred:        somaticPhred,
						Somatic:          true,
						SomaticFrequency: m.lastSomaticFrequency,
					})
				}
			}
		}
	}
	if len(calls) == 0 {
		calls = AppendRefcalls(calls, ctx, posterior, m.Priors)
	}
	return calls
}

func uniqueInts(values []int) []int {
	var result []int
	seen := make(map[int]bool, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}
	return result
}
