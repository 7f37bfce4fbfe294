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
	"github.com/exascience/halo/vcf"
)

// A VcfSource extracts candidates from external VCF files, optionally
// filtered by source quality and variant size.
type VcfSource struct {
	Variants   []*vcf.Variant
	MinQuality float64
	MaxSize    int32
}

// NewVcfSource loads the given VCF files.
func NewVcfSource(pathnames []string, minQuality float64, maxSize int32) (*VcfSource, error) {
	source := &VcfSource{MinQuality: minQuality, MaxSize: maxSize}
	for _, pathname := range pathnames {
		contents, err := vcf.Read(pathname)
		if err != nil {
			return nil, err
		}
		source.Variants = append(source.Variants, contents.Variants...)
	}
	return source, nil
}

// Generate emits the source variants falling inside the region.
// Source candidates bypass the support-based inclusion predicate.
func (s *VcfSource) Generate(ref genome.Reference, region genome.Region, alns []*sam.Alignment) []Candidate {
	contigSeq := ref.Bases(genome.Region{Contig: region.Contig, Start: 0, End: contigLength(ref, region.Contig)})
	var result []Candidate
	for _, variant := range s.Variants {
		if variant.Chrom != region.Contig {
			continue
		}
		if s.MinQuality > 0 {
			if qual, ok := variant.Qual.(float64); !ok || qual < s.MinQuality {
				continue
			}
		}
		start := variant.Pos - 1 // VCF positions are 1-based
		end := start + int32(len(variant.Ref))
		if start < region.Start || end > region.End {
			continue
		}
		for _, alt := range variant.Alt {
			if alt == "" || alt[0] == '<' {
				continue
			}
			size := int32(len(alt)) - int32(len(variant.Ref))
			if size < 0 {
				size = -size
			}
			if s.MaxSize > 0 && size > s.MaxSize {
				continue
			}
			v := genome.Variant{
				Region: genome.Region{Contig: variant.Chrom, Start: start, End: end},
				Ref:    variant.Ref,
				Alt:    alt,
			}.Normalize(contigSeq)
			result = append(result, Candidate{Variant: v, FromSource: true})
		}
	}
	return Union(result)
}
