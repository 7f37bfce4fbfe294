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

// Package candidates proposes the variants that could plausibly
// underlie the reads in a region. Sub-generators each emit a
// superset; their union is de-duplicated, filtered by the
// mode-specific inclusion predicate, and sorted.
package candidates

import (
	"math"
	"sort"

	"github.com/exascience/halo/genome"
	"github.com/exascience/halo/sam"
)

// A Candidate is a proposed variant with the evidence collected for
// it. Penalty is the phred-derived misalignment penalty: the
// -log10 probability that all supporting observations are errors.
type Candidate struct {
	Variant    genome.Variant
	Support    int32
	Penalty    float64
	FromSource bool
}

// A Generator proposes candidates for the reads over a region.
type Generator interface {
	Generate(ref genome.Reference, region genome.Region, alns []*sam.Alignment) []Candidate
}

// Mode selects the inclusion predicate family.
type Mode int

const (
	Germline Mode = iota
	Somatic
	Polyclone
	Cell
)

// InclusionConfig parameterizes the candidate inclusion predicates.
type InclusionConfig struct {
	Mode                 Mode
	MinSupport           int32
	ExpectedMutationRate float64
	// somatic mode only
	MinCredibleSomaticFrequency float64
	// polyclone and cell modes
	MinCloneFrequency float64
}

// Include is the germline predicate: enough supporting reads, and
// evidence stronger than the expected mutation rate makes likely by
// chance. Candidates imported from a source VCF bypass the check.
func (cfg InclusionConfig) Include(c Candidate) bool {
	if c.FromSource {
		return true
	}
	if c.Support < cfg.MinSupport {
		return false
	}
	return c.Penalty >= -math.Log10(cfg.ExpectedMutationRate)
}

// IncludeSomatic applies the germline predicate and additionally
// rejects candidates whose allele fraction in the normal sample
// exceeds twice the minimum credible somatic frequency.
func (cfg InclusionConfig) IncludeSomatic(c Candidate, normalFraction float64) bool {
	if !cfg.Include(c) {
		return false
	}
	return normalFraction <= 2*cfg.MinCredibleSomaticFrequency
}

// IncludeClonal requires a minimum credible clone or cell fraction
// among the supporting reads.
func (cfg InclusionConfig) IncludeClonal(c Candidate, depth int32) bool {
	if !cfg.Include(c) {
		return false
	}
	if depth == 0 {
		return false
	}
	return float64(c.Support)/float64(depth) >= cfg.MinCloneFrequency
}

func candidateKey(v genome.Variant) genome.Variant {
	return v
}

// Union merges the outputs of the sub-generators: identical variants
// are fused by summing support and penalties, and the result is
// sorted by region, then by alternate allele.
func Union(groups ...[]Candidate) []Candidate {
	merged := make(map[genome.Variant]Candidate)
	for _, group := range groups {
		for _, c := range group {
			key := candidateKey(c.Variant)
			if prev, ok := merged[key]; ok {
				prev.Support += c.Support
				prev.Penalty += c.Penalty
				prev.FromSource = prev.FromSource || c.FromSource
				merged[key] = prev
			} else {
				merged[key] = c
			}
		}
	}
	result := make([]Candidate, 0, len(merged))
	for _, c := range merged {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		return genome.CompareVariants(result[i].Variant, result[j].Variant) < 0
	})
	return result
}
