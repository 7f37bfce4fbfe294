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

// vbResult is one converged variational fit of a haplotype mixture.
type vbResult struct {
	weights          []float64
	responsibilities [][]float64
	elbo             float64
}

const (
	vbIterations  = 50
	vbConvergence = 1e-6
)

// runVBSeed fits mixture weights by coordinate ascent from the given
// starting weights. likelihoods[r][h] is log10 P(read r | component
// h); alpha is the Dirichlet prior on component weights.
func runVBSeed(likelihoods [][]float64, alpha, start []float64) vbResult {
	nofComponents := len(alpha)
	weights := append([]float64(nil), start...)
	responsibilities := make([][]float64, len(likelihoods))
	for r := range responsibilities {
		responsibilities[r] = make([]float64, nofComponents)
	}
	var elbo, previousElbo float64
	previousElbo = math.Inf(-1)
	for iteration := 0; iteration < vbIterations; iteration++ {
		// E step: responsibilities from current weights
		elbo = 0
		for r, row := range likelihoods {
			scores := make([]float64, nofComponents)
			for h := 0; h < nofComponents; h++ {
				scores[h] = row[h] + math.Log10(weights[h])
			}
			total := log10SumLog10(scores)
			elbo += total
			for h := 0; h < nofComponents; h++ {
				responsibilities[r][h] = math.Pow(10, scores[h]-total)
			}
		}
		// prior term
		for h := 0; h < nofComponents; h++ {
			elbo += (alpha[h] - 1) * math.Log10(weights[h]+1e-300)
		}
		// M step: Dirichlet MAP weights from responsibilities
		var norm float64
		for h := 0; h < nofComponents; h++ {
			weight := alpha[h] - 1
			for r := range likelihoods {
				weight += responsibilities[r][h]
			}
			if weight < 1e-10 {
				weight = 1e-10
			}
			weights[h] = weight
			norm += weight
		}
		for h := 0; h < nofComponents; h++ {
			weights[h] /= norm
		}
		if math.Abs(elbo-previousElbo) < vbConvergence {
			break
		}
		previousElbo = elbo
	}
	return vbResult{weights: weights, responsibilities: responsibilities, elbo: elbo}
}

// runVBMixture fits the mixture with up to maxSeeds random
// initializations and returns the seed maximising the ELBO. The
// first seed always starts from the prior mean.
func runVBMixture(likelihoods [][]float64, alpha []float64, maxSeeds int, random *internal.Rand) vbResult {
	nofComponents := len(alpha)
	var alphaTotal float64
	for _, a := range alpha {
		alphaTotal += a
	}
	start := make([]float64, nofComponents)
	for h, a := range alpha {
		start[h] = a / alphaTotal
	}
	best := runVBSeed(likelihoods, alpha, start)
	for seed := 1; seed < maxSeeds; seed++ {
		var norm float64
		for h := range start {
			start[h] = random.Float64() + 1e-3
			norm += start[h]
		}
		for h := range start {
			start[h] /= norm
		}
		if result := runVBSeed(likelihoods, alpha, start); result.elbo > best.elbo {
			best = result
		}
	}
	return best
}
