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

package candidates

import (
	"github.com/exascience/halo/genome"
	"github.com/exascience/halo/sam"
	"github.com/willf/bitset"
)

// An Assembler proposes variants by local reassembly: it builds a
// de-Bruijn graph over the reads and the reference, and reads off the
// variants implied by bubble paths that diverge from the reference
// path. When the reference path collapses (repeated kmers), it falls
// back to larger kmer sizes.
type Assembler struct {
	KmerSizes        []int32
	MaxFallbacks     int32
	FallbackInterval int32
	MinBaseQuality   byte
	// minimum multiplicity over the off-reference edges of a bubble
	// path for the bubble to be reported
	MinBubbleScore int32
	MaxPaths       int
}

type (
	assemblyVertex struct {
		id    uint
		bases string
		isRef bool
	}

	assemblyEdge struct {
		target       *assemblyVertex
		multiplicity int32
		isRef        bool
	}

	assemblyGraph struct {
		kmerSize int32
		vertices map[string]*assemblyVertex
		edges    map[uint][]*assemblyEdge
		source   *assemblyVertex
		sink     *assemblyVertex
		nextID   uint
	}
)

func newAssemblyGraph(kmerSize int32) *assemblyGraph {
	return &assemblyGraph{
		kmerSize: kmerSize,
		vertices: make(map[string]*assemblyVertex),
		edges:    make(map[uint][]*assemblyEdge),
	}
}

func (g *assemblyGraph) vertex(bases string) *assemblyVertex {
	if v, ok := g.vertices[bases]; ok {
		return v
	}
	v := &assemblyVertex{id: g.nextID, bases: bases}
	g.nextID++
	g.vertices[bases] = v
	return v
}

func (g *assemblyGraph) addEdge(from, to *assemblyVertex, isRef bool) {
	for _, edge := range g.edges[from.id] {
		if edge.target == to {
			edge.multiplicity++
			edge.isRef = edge.isRef || isRef
			return
		}
	}
	g.edges[from.id] = append(g.edges[from.id], &assemblyEdge{target: to, multiplicity: 1, isRef: isRef})
}

// addSequence threads a sequence through the graph, marking reference
// provenance when isRef is set.
func (g *assemblyGraph) addSequence(seq string, isRef bool) {
	k := int(g.kmerSize)
	if len(seq) <= k {
		return
	}
	prev := g.vertex(seq[:k])
	if isRef {
		prev.isRef = true
		g.source = prev
	}
	for i := 1; i+k <= len(seq); i++ {
		cur := g.vertex(seq[i : i+k])
		if isRef {
			cur.isRef = true
		}
		g.addEdge(prev, cur, isRef)
		prev = cur
	}
	if isRef {
		g.sink = prev
	}
}

// referenceIsUnique reports whether every reference kmer occurs only
// once in the reference sequence, which the bubble walk requires.
func referenceIsUnique(seq string, k int32) bool {
	seen := make(map[string]bool, len(seq))
	for i := 0; i+int(k) <= len(seq); i++ {
		kmer := seq[i : i+int(k)]
		if seen[kmer] {
			return false
		}
		seen[kmer] = true
	}
	return true
}

type assemblyPath struct {
	bases string
	score int32
	isRef bool
}

// paths enumerates source-to-sink paths, bounded by maxPaths. The
// score of a path is the minimum multiplicity over its off-reference
// edges; fully reference paths are marked isRef.
func (g *assemblyGraph) paths(maxPaths int) []assemblyPath {
	if g.source == nil || g.sink == nil {
		return nil
	}
	var result []assemblyPath
	visited := bitset.New(g.nextID)
	var walk func(v *assemblyVertex, bases string, score int32, offRef bool)
	walk = func(v *assemblyVertex, bases string, score int32, offRef bool) {
		if len(result) >= maxPaths {
			return
		}
		if v == g.sink {
			result = append(result, assemblyPath{bases: bases, score: score, isRef: !offRef})
			return
		}
		visited.Set(v.id)
		defer visited.Clear(v.id)
		for _, edge := range g.edges[v.id] {
			if visited.Test(edge.target.id) {
				continue
			}
			nextScore := score
			nextOffRef := offRef
			if !edge.isRef {
				nextOffRef = true
				if edge.multiplicity < nextScore {
					nextScore = edge.multiplicity
				}
			}
			walk(edge.target, bases+edge.target.bases[len(edge.target.bases)-1:], nextScore, nextOffRef)
		}
	}
	walk(g.source, g.source.bases, int32(1<<30), false)
	return result
}

func (a Assembler) kmerLadder() []int32 {
	ladder := append([]int32(nil), a.KmerSizes...)
	if len(ladder) == 0 {
		return nil
	}
	largest := ladder[len(ladder)-1]
	for i := int32(0); i < a.MaxFallbacks; i++ {
		largest += a.FallbackInterval
		ladder = append(ladder, largest)
	}
	return ladder
}

func (a Assembler) usableSequences(alns []*sam.Alignment, kmerSize int32) []string {
	var sequences []string
	for _, aln := range alns {
		start := -1
		for i := 0; i <= len(aln.SEQ); i++ {
			usable := i < len(aln.SEQ) && aln.SEQ[i] != 'N' && aln.QUAL[i] >= a.MinBaseQuality
			if usable {
				if start < 0 {
					start = i
				}
				continue
			}
			if start >= 0 && int32(i-start) > kmerSize {
				sequences = append(sequences, string(aln.SEQ[start:i]))
			}
			start = -1
		}
	}
	return sequences
}

// Generate assembles the reads over the region and emits the
// variants implied by sufficiently supported bubble paths.
func (a Assembler) Generate(ref genome.Reference, region genome.Region, alns []*sam.Alignment) []Candidate {
	refSeq := string(ref.Bases(region))
	contigSeq := ref.Bases(genome.Region{Contig: region.Contig, Start: 0, End: contigLength(ref, region.Contig)})
	for _, kmerSize := range a.kmerLadder() {
		if int(kmerSize) >= len(refSeq) {
			break
		}
		if !referenceIsUnique(refSeq, kmerSize) {
			continue // collapsed reference path; fall back to larger kmers
		}
		graph := newAssemblyGraph(kmerSize)
		graph.addSequence(refSeq, true)
		for _, seq := range a.usableSequences(alns, kmerSize) {
			graph.addSequence(seq, false)
		}
		maxPaths := a.MaxPaths
		if maxPaths == 0 {
			maxPaths = 128
		}
		var result []Candidate
		for _, path := range graph.paths(maxPaths) {
			if path.isRef || path.score < a.MinBubbleScore {
				continue
			}
			cigar := alignGlobal(refSeq, path.bases)
			for _, v := range variantsFromAlignment(region.Contig, region.Start, refSeq, path.bases, cigar, contigSeq) {
				result = append(result, Candidate{
					Variant: v,
					Support: path.score,
					Penalty: float64(path.score) * float64(a.MinBaseQuality) / 10,
				})
			}
		}
		return Union(result)
	}
	return nil
}
