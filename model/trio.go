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

	"github.com/exascience/halo/genome"
)

// A TrioModel scores the joint posterior over (mother, father,
// child) genotypes under a Mendelian transmission prior perturbed by
// de novo mutation rates.
type TrioModel struct {
	Priors              Priors
	Trio                genome.Trio
	DeNovoSnvRate       float64
	DeNovoIndelRate     float64
	MinDeNovoPosterior  float64 // phred
}

func (m *TrioModel) RequiredParams() []string {
	return []string{"maternal-sample", "paternal-sample", "denovo-snv-mutation-rate", "denovo-indel-mutation-rate"}
}

// transmissionLog10 scores transmitting parent haplotype from as
// child haplotype to: identical transmission is free, every
// difference costs its de novo mutation rate.
func (m *TrioModel) transmissionLog10(ctx *Context, from, to int) float64 {
	if from == to {
		return 0
	}
	diff := alleleDifference(ctx.Haplotypes[from], ctx.Haplotypes[to])
	var cost float64
	for _, allele := range diff {
		if allele.IsIndel() {
			cost += math.Log10(m.DeNovoIndelRate + 1e-300)
		} else {
			cost += math.Log10(m.DeNovoSnvRate + 1e-300)
		}
	}
	if len(diff) == 0 {
		// distinct haplotypes with identical explicit alleles can
		// only differ through the enclosing region; treat as one SNV
		cost = math.Log10(m.DeNovoSnvRate + 1e-300)
	}
	return cost
}

// alleleDifference returns the explicit alleles present in exactly
// one of the two haplotypes.
func alleleDifference(h1, h2 *genome.Haplotype) []genome.Allele {
	var diff []genome.Allele
	for _, allele := range h1.Alleles() {
		if !h2.ContainsAllele(allele) {
			diff = append(diff, allele)
		}
	}
	for _, allele := range h2.Alleles() {
		if !h1.ContainsAllele(allele) {
			diff = append(diff, allele)
		}
	}
	return diff
}

// childPriorLog10 is log10 P(child | mother, father): each parent
// transmits one haplotype copy, perturbed by de novo mutation.
func (m *TrioModel) childPriorLog10(ctx *Context, mother, father, child genome.Genotype) (total float64, mendelian bool) {
	childHaplotypes := child.Haplotypes()
	if len(childHaplotypes) != 2 {
		// non-diploid children fall back to an independence prior
		return 0, true
	}
	a, b := childHaplotypes[0], childHaplotypes[1]
	var scores []float64
	bestIsMendelian := false
	for _, x := range mother.Haplotypes() {
		for _, y := range father.Haplotypes() {
			for _, assignment := range [2][2]int{{a, b}, {b, a}} {
				t := m.transmissionLog10(ctx, x, assignment[0]) + m.transmissionLog10(ctx, y, assignment[1])
				scores = append(scores, t-math.Log10(float64(len(mother.Haplotypes())*len(father.Haplotypes())*2)))
				if t == 0 {
					bestIsMendelian = true
				}
			}
		}
	}
	return log10SumLog10(scores), bestIsMendelian
}

func (m *TrioModel) ScoreGenotypes(ctx *Context) *Posterior {
	mother, father, child := m.Trio.Mother, m.Trio.Father, m.Trio.Child
	genotypes := genotypeSpace(ctx, m.Priors, ctx.Ploidies[child])

	motherScores := sampleGenotypeScores(m.Priors, ctx.Haplotypes, ctx.Likelihoods[mother], genotypes)
	fatherScores := sampleGenotypeScores(m.Priors, ctx.Haplotypes, ctx.Likelihoods[father], genotypes)
	childLikelihoods := make([]float64, len(genotypes))
	for g, genotype := range genotypes {
		childLikelihoods[g] = genotypeLog10Likelihood(ctx.Likelihoods[child], genotype)
	}

	type jointEntry struct {
		m, f, c   int
		score     float64
		mendelian bool
	}
	var joint []jointEntry
	var scores []float64
	for gm := range genotypes {
		for gf := range genotypes {
			for gc := range genotypes {
				prior, mendelian := m.childPriorLog10(ctx, genotypes[gm], genotypes[gf], genotypes[gc])
				score := motherScores[gm] + fatherScores[gf] + childLikelihoods[gc] + prior
				joint = append(joint, jointEntry{m: gm, f: gf, c: gc, score: score, mendelian: mendelian})
				scores = append(scores, score)
			}
		}
	}
	probabilities := normalizeLog10(scores)

	marginals := map[string][]float64{
		mother: make([]float64, len(genotypes)),
		father: make([]float64, len(genotypes)),
		child:  make([]float64, len(genotypes)),
	}
	var deNovo float64
	for i, entry := range joint {
		p := probabilities[i]
		marginals[mother][entry.m] += p
		marginals[father][entry.f] += p
		marginals[child][entry.c] += p
		if !entry.mendelian {
			deNovo += p
		}
	}
	return &Posterior{
		Genotypes: genotypes,
		Marginals: marginals,
		MAP: map[string]int{
			mother: argmax(marginals[mother]),
			father: argmax(marginals[father]),
			child:  argmax(marginals[child]),
		},
		DeNovo: deNovo,
	}
}

func (m *TrioModel) EmitCalls(ctx *Context, posterior *Posterior) []*Call {
	deNovoPhred := PhredFromErrorProb(1 - posterior.DeNovo)
	calls := emitVariantCalls(ctx, posterior, m.Priors)
	for _, call := range calls {
		call.DeNovoPhred = deNovoPhred
	}
	if posterior.DeNovo > 0 && deNovoPhred >= m.MinDeNovoPosterior {
		// a de novo candidate is reported even below the standard
		// variant threshold
		lowered := m.Priors
		lowered.MinVariantPosterior = 1
		for _, call := range emitVariantCalls(ctx, posterior, lowered) {
			duplicate := false
			for _, existing := range calls {
				if genome.CompareVariants(existing.Variant, call.Variant) == 0 {
					duplicate = true
					break
				}
			}
			if !duplicate {
				call.DeNovoPhred = deNovoPhred
				calls = append(calls, call)
			}
		}
	}
	if len(calls) == 0 {
		calls = AppendRefcalls(calls, ctx, posterior, m.Priors)
	}
	return calls
}
