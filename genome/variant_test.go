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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSnv(t *testing.T) {
	contig := []byte("ACGTACGT")
	v := Variant{Region: NewRegion("c", 3, 4), Ref: "T", Alt: "G"}
	assert.Equal(t, v, v.Normalize(contig))
}

func TestNormalizeLeftAlignsDeletionInRepeat(t *testing.T) {
	//                0123456
	contig := []byte("CAAAAGT")
	// deleting the A at position 4 is the same event as deleting the
	// one at position 1; the canonical form anchors at the C
	v := Variant{Region: NewRegion("c", 3, 5), Ref: "AA", Alt: "A"}
	normalized := v.Normalize(contig)
	assert.Equal(t, int32(0), normalized.Region.Start)
	assert.Equal(t, "CA", normalized.Ref)
	assert.Equal(t, "C", normalized.Alt)
}

func TestNormalizeInsertionGetsAnchor(t *testing.T) {
	contig := []byte("ACGTACGT")
	// a T inserted after the T at position 3 left-aligns through it
	// and anchors on the G at position 2
	v := Variant{Region: NewRegion("c", 4, 4), Ref: "", Alt: "T"}
	normalized := v.Normalize(contig)
	assert.Equal(t, int32(2), normalized.Region.Start)
	assert.Equal(t, "G", normalized.Ref)
	assert.Equal(t, "GT", normalized.Alt)
}

func TestNormalizeTrimsSharedAnchor(t *testing.T) {
	contig := []byte("ACGTACGT")
	v := Variant{Region: NewRegion("c", 2, 5), Ref: "GTA", Alt: "GTC"}
	normalized := v.Normalize(contig)
	assert.Equal(t, NewRegion("c", 4, 5), normalized.Region)
	assert.Equal(t, "A", normalized.Ref)
	assert.Equal(t, "C", normalized.Alt)
}

func TestVariantKinds(t *testing.T) {
	snv := Variant{Region: NewRegion("c", 1, 2), Ref: "A", Alt: "T"}
	assert.True(t, snv.IsSNV())
	assert.False(t, snv.IsIndel())

	insertion := Variant{Region: NewRegion("c", 1, 2), Ref: "A", Alt: "AT"}
	assert.True(t, insertion.IsInsertion())
	assert.True(t, insertion.IsIndel())

	deletion := Variant{Region: NewRegion("c", 1, 3), Ref: "AT", Alt: "A"}
	assert.True(t, deletion.IsDeletion())
}
