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
	"github.com/stretchr/testify/require"
)

func testReference() *InMemoryReference {
	return NewInMemoryReference([]string{"c"}, map[string][]byte{
		//          0123456789
		"c": []byte("ACGTACGTAC"),
	})
}

func TestHaplotypeTilesRegion(t *testing.T) {
	ref := testReference()
	region := NewRegion("c", 0, 10)

	h := NewHaplotype(region)
	assert.True(t, h.IsReference())
	assert.Equal(t, "ACGTACGTAC", h.Sequence(ref))

	// SNV at 2, deletion of [4,6), insertion after 7
	h.Push(Allele{Region: NewRegion("c", 2, 3), Seq: "T"})
	h.Push(Allele{Region: NewRegion("c", 4, 6), Seq: ""})
	h.Push(Allele{Region: NewRegion("c", 8, 8), Seq: "GG"})
	assert.Equal(t, "ACTTGTGGAC", h.Sequence(ref))
	assert.False(t, h.IsReference())
}

func TestHaplotypeHashInvalidatesOnPush(t *testing.T) {
	ref := testReference()
	h := NewHaplotype(NewRegion("c", 0, 10))
	refHash := h.Hash(ref)
	h.Push(Allele{Region: NewRegion("c", 2, 3), Seq: "T"})
	assert.NotEqual(t, refHash, h.Hash(ref))
}

func TestHaplotypePushOrderingEnforced(t *testing.T) {
	h := NewHaplotype(NewRegion("c", 0, 10))
	h.Push(Allele{Region: NewRegion("c", 4, 5), Seq: "T"})
	assert.Panics(t, func() {
		h.Push(Allele{Region: NewRegion("c", 2, 3), Seq: "G"})
	})
	assert.Panics(t, func() {
		h.Push(Allele{Region: NewRegion("c", 4, 5), Seq: "G"})
	})
}

func TestHaplotypeOffset(t *testing.T) {
	h := NewHaplotype(NewRegion("c", 0, 10))
	h.Push(Allele{Region: NewRegion("c", 2, 4), Seq: ""}) // 2-base deletion
	h.Push(Allele{Region: NewRegion("c", 6, 6), Seq: "AAA"})

	offset, ok := h.Offset(1)
	require.True(t, ok)
	assert.Equal(t, int32(1), offset)

	_, ok = h.Offset(3) // inside the deletion
	assert.False(t, ok)

	offset, ok = h.Offset(8)
	require.True(t, ok)
	// positions 0,1 kept, 2-3 deleted, 4,5 kept, 3 inserted, 6,7 kept
	assert.Equal(t, int32(9), offset)
}

func TestHaplotypeExpand(t *testing.T) {
	ref := testReference()
	h := NewHaplotype(NewRegion("c", 2, 5))
	h.Push(Allele{Region: NewRegion("c", 2, 3), Seq: "T"})
	before := h.Sequence(ref)
	h.Expand(NewRegion("c", 0, 10))
	assert.Equal(t, NewRegion("c", 0, 10), h.Region())
	assert.NotEqual(t, before, h.Sequence(ref))
	assert.Equal(t, "ACTTACGTAC", h.Sequence(ref))
}
