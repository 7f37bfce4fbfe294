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

package genome

import "log"

// A Variant is a reference/alternate allele pair sharing a region
// anchor. The region spans the reference allele.
type Variant struct {
	Region Region
	Ref    string
	Alt    string
}

// RefAllele returns the reference allele of the variant.
func (v Variant) RefAllele() Allele {
	return Allele{Region: v.Region, Seq: v.Ref}
}

// AltAllele returns the alternate allele of the variant.
func (v Variant) AltAllele() Allele {
	return Allele{Region: v.Region, Seq: v.Alt}
}

// IsSNV reports whether the variant substitutes a single base.
func (v Variant) IsSNV() bool {
	return len(v.Ref) == 1 && len(v.Alt) == 1
}

// IsInsertion reports whether the variant inserts bases.
func (v Variant) IsInsertion() bool {
	return len(v.Alt) > len(v.Ref)
}

// IsDeletion reports whether the variant deletes bases.
func (v Variant) IsDeletion() bool {
	return len(v.Alt) < len(v.Ref)
}

// IsIndel reports whether the variant changes sequence length.
func (v Variant) IsIndel() bool {
	return len(v.Ref) != len(v.Alt)
}

// CompareVariants orders variants by region, then by alternate
// sequence.
func CompareVariants(v1, v2 Variant) int {
	if c := Compare(v1.Region, v2.Region); c != 0 {
		return c
	}
	switch {
	case v1.Alt < v2.Alt:
		return -1
	case v1.Alt > v2.Alt:
		return 1
	default:
		return 0
	}
}

// Normalize canonicalizes the variant by trimming the shared anchor
// bases and left-aligning indels against the reference contig
// sequence. contigSeq holds the full sequence of the variant's
// contig.
func (v Variant) Normalize(contigSeq []byte) Variant {
	if int(v.Region.End) > len(contigSeq) {
		log.Panicf("variant %v outside contig of length %v", v.Region, len(contigSeq))
	}
	ref, alt := v.Ref, v.Alt
	start := v.Region.Start

	// left-align: truncate shared trailing bases, extending to the
	// left with reference bases whenever an allele runs empty
	for {
		if len(ref) > 0 && len(alt) > 0 && ref[len(ref)-1] == alt[len(alt)-1] {
			ref = ref[:len(ref)-1]
			alt = alt[:len(alt)-1]
			continue
		}
		if (len(ref) == 0 || len(alt) == 0) && start > 0 {
			prev := string(contigSeq[start-1])
			ref = prev + ref
			alt = prev + alt
			start--
			continue
		}
		break
	}
	// trim the shared anchor down to a single base
	for len(ref) > 1 && len(alt) > 1 && ref[0] == alt[0] {
		ref = ref[1:]
		alt = alt[1:]
		start++
	}

	return Variant{
		Region: Region{Contig: v.Region.Contig, Start: start, End: start + int32(len(ref))},
		Ref:    ref,
		Alt:    alt,
	}
}
