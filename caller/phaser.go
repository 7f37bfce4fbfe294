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

package caller

import (
	"github.com/exascience/halo/model"
)

// A Phaser assigns phase-set identifiers to the calls of an active
// region. Calls within one region share inferred phase when the
// genotype posterior concentrates on a single assignment.
type Phaser struct {
	// MinPhaseScore is the minimum phred-scaled confidence in the
	// joint genotype assignment for calls to share a phase set.
	MinPhaseScore float64
}

// phaseScore is the phred confidence that the MAP genotype of every
// sample is the true one, which bounds the pairwise phase
// confidence within the region.
func phaseScore(posterior *model.Posterior) float64 {
	miss := 0.0
	for sample, marginals := range posterior.Marginals {
		p := marginals[posterior.MAP[sample]]
		if 1-p > miss {
			miss = 1 - p
		}
	}
	return model.PhredFromErrorProb(miss)
}

// Phase assigns phase sets to the variant calls of one active
// region: when the phase score clears the threshold, all calls share
// the phase set anchored at the region start, and their genotypes
// are marked phased.
func (p *Phaser) Phase(posterior *model.Posterior, emission Emission, calls []*model.Call) {
	if len(calls) == 0 {
		return
	}
	score := phaseScore(posterior)
	phased := score >= p.MinPhaseScore
	for _, call := range calls {
		if call.IsRefcall {
			continue
		}
		if phased {
			// the phase set is identified by the 1-based start of
			// its region
			call.PhaseSet = emission.Region.Start + 1
			for sample, gt := range call.Genotypes {
				gt.Phased = true
				call.Genotypes[sample] = gt
			}
		} else {
			call.PhaseSet = call.Variant.Region.Start + 1
		}
	}
}
