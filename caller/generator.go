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
	"sort"

	"github.com/exascience/halo/candidates"
	"github.com/exascience/halo/genome"
)

// LaggingPolicy controls how many upstream alleles are retained as
// indicators when the haplotype count would overflow.
type LaggingPolicy int

const (
	LaggingNone LaggingPolicy = iota
	LaggingConservative
	LaggingModerate
	LaggingNormal
	LaggingAggressive
)

// ExtensionPolicy controls how far the active region expands into
// upcoming candidates before emitting.
type ExtensionPolicy int

const (
	ExtensionConservative ExtensionPolicy = iota
	ExtensionNormal
	ExtensionOptimistic
	ExtensionAggressive
)

// GeneratorConfig bounds the haplotype generator.
type GeneratorConfig struct {
	MaxHaplotypes    int
	HoldoutThreshold int
	MaxHoldoutDepth  int
	Lagging          LaggingPolicy
	Extension        ExtensionPolicy
	// Pad is the minimum flanking context kept around the explicit
	// allele span.
	Pad int32
}

// joinDistance is how far apart candidate sites may lie and still
// share an active region.
func (cfg GeneratorConfig) joinDistance() int32 {
	base := 2*cfg.Pad - 1
	switch cfg.Extension {
	case ExtensionConservative:
		return base
	case ExtensionNormal:
		return 2 * base
	case ExtensionOptimistic:
		return 4 * base
	default:
		return 8 * base
	}
}

// indicatorBudget is the number of upstream sites retained as
// indicators under the lagging policy.
func (cfg GeneratorConfig) indicatorBudget() int {
	switch cfg.Lagging {
	case LaggingNone:
		return 0
	case LaggingConservative:
		return 1
	case LaggingModerate:
		return 2
	case LaggingNormal:
		return 3
	default:
		return 5
	}
}

// a site groups the candidates anchored at one region
type site struct {
	region genome.Region
	alts   []candidates.Candidate
}

// A Generator enumerates candidate haplotypes over expanding active
// regions, bounding their number with indicators and holdouts.
type Generator struct {
	cfg          GeneratorConfig
	ref          genome.Reference
	contigLength int32

	sites      []site
	indicators []site
	holdouts   [][]site
}

// An Emission is one completed active region with its haplotypes.
type Emission struct {
	Region     genome.Region
	Haplotypes []*genome.Haplotype
}

// NewGenerator creates a generator for one contig.
func NewGenerator(cfg GeneratorConfig, ref genome.Reference, contigLength int32) *Generator {
	return &Generator{cfg: cfg, ref: ref, contigLength: contigLength}
}

func (g *Generator) projectedHaplotypes() int {
	projected := 1
	for _, s := range g.sites {
		projected *= len(s.alts) + 1
		if projected > g.cfg.HoldoutThreshold && g.cfg.HoldoutThreshold > 0 {
			return projected
		}
	}
	for _, s := range g.indicators {
		projected *= len(s.alts) + 1
	}
	return projected
}

// siteCost orders sites for holdout selection: the site multiplying
// the haplotype count the most, with the least support, goes first.
func siteCost(s site) float64 {
	var support int32
	for _, c := range s.alts {
		support += c.Support
	}
	return float64(len(s.alts)+1) / float64(support+1)
}

// Extend appends a candidate. When the candidate starts a new site
// beyond the join distance, the current region is emitted first; when
// the holdout stack then overflows, everything buffered, the new
// candidate included, is emitted too. The emissions are returned;
// otherwise the returned slice is empty.
func (g *Generator) Extend(c candidates.Candidate) []Emission {
	var emissions []Emission
	region := c.Variant.Region
	if n := len(g.sites); n > 0 {
		last := g.sites[n-1].region
		if region.Start > last.End+g.cfg.joinDistance() {
			emissions = g.emitAll()
		}
	}
	if n := len(g.sites); n > 0 && g.sites[n-1].region == region {
		g.sites[n-1].alts = append(g.sites[n-1].alts, c)
	} else {
		g.sites = append(g.sites, site{region: region, alts: []candidates.Candidate{c}})
	}
	return append(emissions, g.enforceLimits()...)
}

// enforceLimits applies the lagging policy and holdout stack until
// the projected haplotype count fits the configured bounds. On
// holdout stack overflow it emits everything buffered and resets,
// returning that emission.
func (g *Generator) enforceLimits() []Emission {
	if g.cfg.MaxHaplotypes <= 0 {
		return nil
	}
	// lagging: demote the oldest sites to indicators, keeping at
	// most the policy's budget
	for g.projectedHaplotypes() > g.cfg.MaxHaplotypes && len(g.sites) > 1 {
		budget := g.cfg.indicatorBudget()
		if budget == 0 {
			break
		}
		oldest := g.sites[0]
		g.sites = g.sites[1:]
		g.indicators = append(g.indicators, oldest)
		for len(g.indicators) > budget {
			g.indicators = g.indicators[1:]
		}
		if g.projectedHaplotypes() <= g.cfg.MaxHaplotypes {
			return nil
		}
	}
	// indicators no longer influencing likelihoods past the pad
	// distance are dropped
	if len(g.sites) > 0 && len(g.indicators) > 0 {
		current := g.sites[len(g.sites)-1].region
		kept := g.indicators[:0]
		for _, indicator := range g.indicators {
			if indicator.region.End+2*g.cfg.Pad >= current.Start {
				kept = append(kept, indicator)
			}
		}
		g.indicators = kept
	}
	// holdouts: move the most costly sites to the holdout stack
	threshold := g.cfg.HoldoutThreshold
	if threshold <= 0 {
		threshold = g.cfg.MaxHaplotypes
	}
	for g.projectedHaplotypes() > threshold && len(g.sites) > 1 {
		if len(g.holdouts) >= g.cfg.MaxHoldoutDepth && g.cfg.MaxHoldoutDepth > 0 {
			// holdout stack overflow: emit all current haplotypes
			// and start afresh
			return g.emitAll()
		}
		costliest := 0
		for i, s := range g.sites {
			if siteCost(s) > siteCost(g.sites[costliest]) {
				costliest = i
			}
		}
		held := g.sites[costliest]
		g.sites = append(g.sites[:costliest], g.sites[costliest+1:]...)
		g.holdouts = append(g.holdouts, []site{held})
	}
	return nil
}

// Flush emits whatever remains buffered.
func (g *Generator) Flush() []Emission {
	return g.emitAll()
}

func (g *Generator) emitAll() []Emission {
	if len(g.sites) == 0 && len(g.holdouts) == 0 {
		return nil
	}
	emission := g.emit(g.sites)
	// replay holdouts over the same region: each holdout level gets
	// its haplotypes appended until the cap is reached
	for len(g.holdouts) > 0 {
		level := g.holdouts[len(g.holdouts)-1]
		g.holdouts = g.holdouts[:len(g.holdouts)-1]
		if emission == nil {
			emission = g.emit(level)
			continue
		}
		replay := g.emitOver(emission.Region, level)
		for _, h := range replay.Haplotypes {
			if len(emission.Haplotypes) >= g.cfg.MaxHaplotypes && g.cfg.MaxHaplotypes > 0 {
				break
			}
			if !containsHaplotype(emission.Haplotypes, h, g.ref) {
				emission.Haplotypes = append(emission.Haplotypes, h)
			}
		}
		emission.Region = genome.Span(emission.Region, replay.Region)
	}
	g.sites = nil
	g.indicators = nil
	if emission == nil {
		return nil
	}
	return []Emission{*emission}
}

func containsHaplotype(haplotypes []*genome.Haplotype, h *genome.Haplotype, ref genome.Reference) bool {
	for _, existing := range haplotypes {
		if existing.Region() == h.Region() && existing.Sequence(ref) == h.Sequence(ref) {
			return true
		}
	}
	return false
}

func (g *Generator) emit(sites []site) *Emission {
	if len(sites) == 0 {
		return nil
	}
	region := sites[0].region
	for _, s := range sites[1:] {
		region = genome.Span(region, s.region)
	}
	for _, indicator := range g.indicators {
		region = genome.Span(region, indicator.region)
	}
	region = region.Expanded(g.cfg.Pad, g.contigLength)
	all := append(append([]site(nil), g.indicators...), sites...)
	return g.emitOver(region, all)
}

// emitOver enumerates the Cartesian composition of the sites over
// the region. The reference haplotype comes first; whenever the
// composition exceeds the haplotype cap, the remainder is ordered by
// summed support and truncated at the cap.
func (g *Generator) emitOver(region genome.Region, sites []site) *Emission {
	sort.SliceStable(sites, func(i, j int) bool {
		return genome.Compare(sites[i].region, sites[j].region) < 0
	})
	type partial struct {
		haplotype *genome.Haplotype
		support   int32
	}
	result := []partial{{haplotype: genome.NewHaplotype(region)}}
	for _, s := range sites {
		var next []partial
		for _, p := range result {
			next = append(next, p)
			for _, alt := range s.alts {
				grown := genome.NewHaplotype(region)
				for _, allele := range p.haplotype.Alleles() {
					grown.Push(allele)
				}
				grown.Push(alt.Variant.AltAllele())
				next = append(next, partial{haplotype: grown, support: p.support + alt.Support})
			}
		}
		if g.cfg.MaxHaplotypes > 0 && len(next) > g.cfg.MaxHaplotypes {
			// the reference haplotype at index 0 is never truncated
			rest := next[1:]
			sort.SliceStable(rest, func(i, j int) bool {
				return rest[i].support > rest[j].support
			})
			next = append(next[:1], rest[:g.cfg.MaxHaplotypes-1]...)
		}
		result = next
	}
	emission := &Emission{Region: region}
	for _, p := range result {
		emission.Haplotypes = append(emission.Haplotypes, p.haplotype)
	}
	return emission
}
