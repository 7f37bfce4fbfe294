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

package hmm

import (
	"math"
	"sync"

	"github.com/exascience/halo/sam"
	"github.com/exascience/pargo/parallel"
)

func log10(x float64) float64 {
	return math.Log10(x)
}

func qualityToErrorProbability(q float64) float64 {
	return math.Pow(10, q/-10)
}

type float64Matrix struct {
	cols  int
	array []float64
}

func (m *float64Matrix) ensureSize(rows, cols int) {
	m.cols = cols
	totalSize := rows * cols
	if totalSize <= cap(m.array) {
		m.array = m.array[:totalSize]
		for i := range m.array {
			m.array[i] = 0
		}
	} else {
		m.array = make([]float64, totalSize)
	}
}

func (m *float64Matrix) rowView(row int) []float64 {
	offset := row * m.cols
	return m.array[offset : offset+m.cols]
}

type pairHMMMatrices struct {
	match, insertion, deletion float64Matrix
}

var pairHMMMatricesPool = sync.Pool{New: func() interface{} { return new(pairHMMMatrices) }}

func getPairHMMMatrices() *pairHMMMatrices {
	return pairHMMMatricesPool.Get().(*pairHMMMatrices)
}

func putPairHMMMatrices(p *pairHMMMatrices) {
	pairHMMMatricesPool.Put(p)
}

func (p *pairHMMMatrices) ensureSize(readBases, alleleBases int) {
	p.match.ensureSize(readBases, alleleBases)
	p.insertion.ensureSize(readBases, alleleBases)
	p.deletion.ensureSize(readBases, alleleBases)
}

// probabilities are scaled by 2^1020 to stay in double range without
// moving the recurrence into log space
var (
	initialCondition      = math.Pow(2, 1020)
	initialConditionLog10 = log10(initialCondition)
)

// Options select the optional parts of the likelihood model.
type Options struct {
	// UseMappingQuality discounts the likelihood of each read mapped
	// below the batch's mode mapping quality by its mapping confidence.
	UseMappingQuality bool
	// LongReadLength is the read length from which the mapping
	// quality cap is raised.
	LongReadLength int
	// UseFlankState scores bases flanking the core region with the
	// full pair-HMM instead of clipping reads to the core.
	UseFlankState bool
	// PadRequirement is the minimum flanking context around every
	// explicit allele.
	PadRequirement int32
}

// MaxIndicatorJoinDistance returns how far apart explicit alleles can
// be while still sharing usable flank context.
func (o Options) MaxIndicatorJoinDistance() int32 {
	return 2*o.PadRequirement - 1
}

// MinFlankPad returns the flank padding the haplotype generator must
// maintain around the explicit-allele span.
func (o Options) MinFlankPad() int32 {
	return 2 * (2*o.PadRequirement - 1)
}

// mapping quality discount caps, in phred
const (
	shortReadMappingQualityCap = 40.0
	longReadMappingQualityCap  = 60.0
)

// pairHMM computes the scaled forward probability of the read
// against the haplotype bases.
func pairHMM(model *ErrorModel, readBases string, readQuals []byte, haplotypeBases string) float64 {
	p := getPairHMMMatrices()
	defer putPairHMMMatrices(p)
	p.ensureSize(len(readBases)+1, len(haplotypeBases)+1)

	indelToIndel := qualityToErrorProbability(model.GapExtend)
	indelToMatch := 1 - indelToIndel

	initialValue := initialCondition / float64(len(haplotypeBases))
	pDeletion0 := p.deletion.rowView(0)
	for j := 0; j <= len(haplotypeBases); j++ {
		pDeletion0[j] = initialValue
	}
	for i := 0; i < len(readBases); i++ {
		x := readBases[i]
		qual := float64(readQuals[i]) * model.SnvScale
		if qual > 125 {
			qual = 125
		}
		errorProb := qualityToErrorProbability(qual)
		matchPrior := 1 - errorProb
		nonMatchPrior := errorProb / 3

		var repeatLength int
		if i == len(readBases)-1 {
			repeatLength = maxRepeatLength
		} else {
			repeatLength = repeatLengthAt(readBases, i)
		}
		matchToIndel := qualityToErrorProbability(model.GapOpen[repeatLength])
		matchToMatch := 1 - 2*matchToIndel

		pMatchI := p.match.rowView(i)
		pMatchI1 := p.match.rowView(i + 1)
		pInsertionI := p.insertion.rowView(i)
		pInsertionI1 := p.insertion.rowView(i + 1)
		pDeletionI := p.deletion.rowView(i)
		pDeletionI1 := p.deletion.rowView(i + 1)

		for j := 0; j < len(haplotypeBases); j++ {
			y := haplotypeBases[j]
			var prior float64
			if x == y || x == 'N' || y == 'N' {
				prior = matchPrior
			} else {
				prior = nonMatchPrior
			}
			pMatchI1[j+1] = prior * (pMatchI[j]*matchToMatch +
				pInsertionI[j]*indelToMatch +
				pDeletionI[j]*indelToMatch)
			pInsertionI1[j+1] = pMatchI[j+1]*matchToIndel + pInsertionI[j+1]*indelToIndel
			pDeletionI1[j+1] = pMatchI1[j]*matchToIndel + pDeletionI1[j]*indelToIndel
		}
	}
	var sum float64
	pMatchEnd := p.match.rowView(len(readBases))
	pInsertionEnd := p.insertion.rowView(len(readBases))
	for j := 1; j <= len(haplotypeBases); j++ {
		sum += pMatchEnd[j] + pInsertionEnd[j]
	}
	return log10(sum) - initialConditionLog10
}

// ReadLikelihoods is the log10 likelihood matrix over (read,
// haplotype) pairs. Ambiguous marks reads whose footprint no
// haplotype could cover.
type ReadLikelihoods struct {
	Alns      []*sam.Alignment
	Values    [][]float64 // indexed [read][haplotype]
	Ambiguous []bool
}

// the worst likelihood is capped relative to the best per read, to
// bound the effect of mismapped reads
const globalReadMismappingRate = 45 / -10.0

func modeMappingQuality(alns []*sam.Alignment) byte {
	var counts [256]int
	for _, aln := range alns {
		counts[aln.MAPQ]++
	}
	mode := 0
	for q, count := range counts {
		if count > counts[mode] {
			mode = q
		}
	}
	return byte(mode)
}

// Compute evaluates log10 P(read | haplotype) for every pair. The
// haplotype sequences must all tile the same region, given as
// haplotypeStart on the reads' contig.
func Compute(model *ErrorModel, opts Options, haplotypeSeqs []string, haplotypeStart int32, alns []*sam.Alignment) ReadLikelihoods {
	result := ReadLikelihoods{
		Alns:      alns,
		Values:    make([][]float64, len(alns)),
		Ambiguous: make([]bool, len(alns)),
	}
	modeMQ := modeMappingQuality(alns)
	parallel.Range(0, len(alns), 0, func(low, high int) {
		for readIndex := low; readIndex < high; readIndex++ {
			aln := alns[readIndex]
			readBases := string(aln.SEQ)
			readQuals := aln.QUAL
			if !opts.UseFlankState {
				readBases, readQuals = clipToFootprint(aln, haplotypeStart, haplotypeSeqs)
			}
			values := make([]float64, len(haplotypeSeqs))
			covered := false
			for h, haplotypeBases := range haplotypeSeqs {
				if len(haplotypeBases) < len(readBases) {
					values[h] = math.Inf(-1)
					continue
				}
				covered = true
				values[h] = pairHMM(model, readBases, readQuals, haplotypeBases)
			}
			if !covered {
				result.Ambiguous[readIndex] = true
			}
			if opts.UseMappingQuality && !result.Ambiguous[readIndex] {
				mqCap := shortReadMappingQualityCap
				if len(aln.SEQ) >= opts.LongReadLength && opts.LongReadLength > 0 {
					mqCap = longReadMappingQualityCap
				}
				mq := float64(aln.MAPQ)
				if mq > mqCap {
					mq = mqCap
				}
				if aln.MAPQ < modeMQ {
					// only reads mapped worse than the batch mode are discounted
					discount := log10(1 - qualityToErrorProbability(mq))
					for h := range values {
						values[h] += discount
					}
				}
			}
			result.Values[readIndex] = values
		}
	})

	// cap the worst likelihoods relative to the best per read
	for r := range result.Values {
		if result.Ambiguous[r] {
			continue
		}
		bestLikelihood := math.Inf(-1)
		for _, likelihood := range result.Values[r] {
			if likelihood > bestLikelihood {
				bestLikelihood = likelihood
			}
		}
		if !math.IsInf(bestLikelihood, -1) {
			worstLikelihoodCap := bestLikelihood + globalReadMismappingRate
			for h, likelihood := range result.Values[r] {
				if likelihood < worstLikelihoodCap {
					result.Values[r][h] = worstLikelihoodCap
				}
			}
		}
	}
	return result
}

// clipToFootprint trims read bases that fall outside the shortest
// haplotype footprint, used when flank scoring is disabled.
func clipToFootprint(aln *sam.Alignment, haplotypeStart int32, haplotypeSeqs []string) (string, []byte) {
	shortest := -1
	for _, seq := range haplotypeSeqs {
		if shortest < 0 || len(seq) < shortest {
			shortest = len(seq)
		}
	}
	haplotypeEnd := haplotypeStart + int32(shortest)
	clipHead := haplotypeStart - aln.POS
	if clipHead < 0 {
		clipHead = 0
	}
	clipTail := aln.End() - haplotypeEnd
	if clipTail < 0 {
		clipTail = 0
	}
	start := int(clipHead)
	end := len(aln.SEQ) - int(clipTail)
	if start >= end {
		return string(aln.SEQ), aln.QUAL
	}
	return string(aln.SEQ[start:end]), aln.QUAL[start:end]
}

// DropPoorlyModeledReads removes reads that no haplotype explains
// within the per-read error budget.
func (rl *ReadLikelihoods) DropPoorlyModeledReads() {
	keepAlns := rl.Alns[:0]
	keepValues := rl.Values[:0]
	keepAmbiguous := rl.Ambiguous[:0]
nextRead:
	for i, aln := range rl.Alns {
		if !rl.Ambiguous[i] {
			maxErrorsForRead := math.Min(2, math.Ceil(float64(len(aln.QUAL))*0.02))
			log10MaxLikelihoodForTrueAllele := maxErrorsForRead * -4.0
			for _, likelihood := range rl.Values[i] {
				if likelihood >= log10MaxLikelihoodForTrueAllele {
					keepAlns = append(keepAlns, aln)
					keepValues = append(keepValues, rl.Values[i])
					keepAmbiguous = append(keepAmbiguous, false)
					continue nextRead
				}
			}
		}
	}
	rl.Alns = keepAlns
	rl.Values = keepValues
	rl.Ambiguous = keepAmbiguous
}
