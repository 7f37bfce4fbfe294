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

// An IndividualModel scores genotypes for a single sample.
type IndividualModel struct {
	Priors Priors
}

func (m *IndividualModel) RequiredParams() []string {
	return []string{"snv-heterozygosity", "indel-heterozygosity", "max-genotypes", "min-variant-posterior"}
}

func (m *IndividualModel) ScoreGenotypes(ctx *Context) *Posterior {
	sample := ctx.Samples[0]
	ploidy := ctx.Ploidies[sample]
	genotypes := genotypeSpace(ctx, m.Priors, ploidy)
	scores := sampleGenotypeScores(m.Priors, ctx.Haplotypes, ctx.Likelihoods[sample], genotypes)
	marginals := normalizeLog10(scores)
	return &Posterior{
		Genotypes: genotypes,
		Marginals: map[string][]float64{sample: marginals},
		MAP:       map[string]int{sample: argmax(marginals)},
	}
}

func (m *IndividualModel) EmitCalls(ctx *Context, posterior *Posterior) []*Call {
	calls := emitVariantCalls(ctx, posterior, m.Priors)
	if len(calls) == 0 {
		calls = AppendRefcalls(calls, ctx, posterior, m.Priors)
	}
	return calls
}
