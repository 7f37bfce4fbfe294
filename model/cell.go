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

import "github.com/exascience/halo/internal"

// A CellModel scores single-cell samples: structurally a polyclone
// mixture per cell, with an allelic-dropout concentration that
// sharpens the clone frequency prior so that one allele dominating a
// cell is not mistaken for homozygosity.
type CellModel struct {
	Priors               Priors
	MaxClones            int
	DropoutConcentration float64
	MaxVBSeeds           int
	Random               *internal.Rand

	// per-cell posteriors, carried from scoring to emission; the
	// clone sets of different cells need not coincide
	cellPosteriors map[string]*Posterior
}

func (m *CellModel) RequiredParams() []string {
	return []string{"max-clones", "dropout-concentration", "max-vb-seeds"}
}

func (m *CellModel) mixture() *PolycloneModel {
	// dropout is modeled by relaxing the symmetric Dirichlet: a
	// lower concentration admits the skewed per-cell allele
	// fractions that dropout events produce
	alpha := 1.0
	if m.DropoutConcentration > 0 {
		alpha = 1 / m.DropoutConcentration
	}
	return &PolycloneModel{
		Priors:     m.Priors,
		MaxClones:  m.MaxClones,
		Alpha:      alpha,
		MaxVBSeeds: m.MaxVBSeeds,
		Random:     m.Random,
	}
}

func (m *CellModel) ScoreGenotypes(ctx *Context) *Posterior {
	// each cell is scored independently; the posterior aggregates
	// per-cell marginals
	mixture := m.mixture()
	result := &Posterior{
		Marginals: make(map[string][]float64, len(ctx.Samples)),
		MAP:       make(map[string]int, len(ctx.Samples)),
	}
	m.cellPosteriors = make(map[string]*Posterior, len(ctx.Samples))
	for _, cell := range ctx.Samples {
		cellCtx := *ctx
		cellCtx.Samples = []string{cell}
		cellPosterior := mixture.ScoreGenotypes(&cellCtx)
		m.cellPosteriors[cell] = cellPosterior
		if result.Genotypes == nil {
			result.Genotypes = cellPosterior.Genotypes
			result.ClonePloidy = cellPosterior.ClonePloidy
		}
		result.Marginals[cell] = cellPosterior.Marginals[cell]
		result.MAP[cell] = cellPosterior.MAP[cell]
	}
	return result
}

func (m *CellModel) EmitCalls(ctx *Context, posterior *Posterior) []*Call {
	// an allele is called when any cell supports it
	var calls []*Call
	for _, cell := range ctx.Samples {
		cellPosterior, ok := m.cellPosteriors[cell]
		if !ok {
			continue
		}
		for _, call := range emitPolycloneCalls(ctx, cellPosterior, m.Priors) {
			duplicate := false
			for _, existing := range calls {
				if genomeVariantsEqual(existing, call) {
					for sample, gt := range call.Genotypes {
						if existing.Genotypes == nil {
							existing.Genotypes = make(map[string]GenotypeCall)
						}
						existing.Genotypes[sample] = gt
					}
					if call.QualPhred > existing.QualPhred {
						existing.QualPhred = call.QualPhred
					}
					duplicate = true
					break
				}
			}
			if !duplicate {
				calls = append(calls, call)
			}
		}
	}
	if len(calls) == 0 {
		calls = AppendRefcalls(calls, ctx, posterior, m.Priors)
	}
	return calls
}

func genomeVariantsEqual(c1, c2 *Call) bool {
	if c1.IsRefcall || c2.IsRefcall {
		return false
	}
	return c1.Variant.Region == c2.Variant.Region && c1.Variant.Alt == c2.Variant.Alt
}
