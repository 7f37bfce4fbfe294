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

	"github.com/exascience/halo/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPloidyFallbacks(t *testing.T) {
	ploidies := NewPloidyMap(2)
	require.NoError(t, ploidies.Set("", "X", 1))
	require.NoError(t, ploidies.Set("NA12878", "Y", 0))

	assert.Equal(t, 2, ploidies.Ploidy("NA12878", "chr1"))
	assert.Equal(t, 1, ploidies.Ploidy("NA12878", "X"))
	assert.Equal(t, 0, ploidies.Ploidy("NA12878", "Y"))
	assert.Equal(t, 2, ploidies.Ploidy("other", "Y"))
}

func TestAmbiguousPloidyIsUserError(t *testing.T) {
	ploidies := NewPloidyMap(2)
	require.NoError(t, ploidies.Set("s1", "X", 1))
	err := ploidies.Set("s1", "X", 2)
	require.Error(t, err)
	userErr, ok := err.(*internal.UserError)
	require.True(t, ok)
	assert.Contains(t, userErr.Why, "ambiguous ploidy")
	assert.Contains(t, userErr.Why, `"X"`)
	assert.Contains(t, userErr.Why, `"s1"`)

	// re-stating the same ploidy is not a conflict
	assert.NoError(t, ploidies.Set("s1", "X", 1))
}

func TestGenotypeMultisetSemantics(t *testing.T) {
	g1 := NewGenotype(2, 0)
	g2 := NewGenotype(0, 2)
	g3 := NewGenotype(0, 0)
	assert.True(t, g1.Equal(g2))
	assert.False(t, g1.Equal(g3))
	assert.True(t, g3.IsHomozygous())
	assert.False(t, g1.IsHomozygous())
	assert.Equal(t, 2, g1.Ploidy())
	assert.Equal(t, 1, g1.Count(0))
	assert.True(t, g1.Contains(2))
}

func TestPedigreeTrio(t *testing.T) {
	pedigree := NewPedigree()
	pedigree.Add("child", "mom", "dad", SexUnknown)
	pedigree.Add("mom", "", "", SexFemale)
	pedigree.Add("dad", "", "", SexMale)

	trio, ok := pedigree.FindTrio([]string{"mom", "dad", "child"})
	require.True(t, ok)
	assert.Equal(t, Trio{Mother: "mom", Father: "dad", Child: "child"}, trio)

	_, ok = pedigree.FindTrio([]string{"mom", "child"})
	assert.False(t, ok)
}
