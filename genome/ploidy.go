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
	"fmt"

	"github.com/exascience/halo/internal"
)

type ploidyKey struct {
	sample, contig string
}

// A PloidyMap is a partial function from (sample, contig) to ploidy
// with fallbacks: a contig-wide entry has an empty sample, and the
// organism default covers everything else.
type PloidyMap struct {
	defaultPloidy int
	entries       map[ploidyKey]int
}

// NewPloidyMap creates a ploidy map with the given organism default.
func NewPloidyMap(defaultPloidy int) *PloidyMap {
	return &PloidyMap{
		defaultPloidy: defaultPloidy,
		entries:       make(map[ploidyKey]int),
	}
}

// Set records the ploidy for (sample, contig); sample may be empty
// for a contig-wide entry. Conflicting entries for the same key are
// an "ambiguous ploidy" user error naming the offending entries.
func (m *PloidyMap) Set(sample, contig string, ploidy int) error {
	key := ploidyKey{sample, contig}
	if previous, ok := m.entries[key]; ok && previous != ploidy {
		subject := fmt.Sprintf("contig %q", contig)
		if sample != "" {
			subject = fmt.Sprintf("sample %q on contig %q", sample, contig)
		}
		return internal.NewUserError("ploidy specification", "remove one of the conflicting entries",
			"ambiguous ploidy for %s: both %d and %d given", subject, previous, ploidy)
	}
	m.entries[key] = ploidy
	return nil
}

// Ploidy resolves the ploidy for (sample, contig): a sample-specific
// entry wins over a contig-wide entry, which wins over the default.
func (m *PloidyMap) Ploidy(sample, contig string) int {
	if ploidy, ok := m.entries[ploidyKey{sample, contig}]; ok {
		return ploidy
	}
	if ploidy, ok := m.entries[ploidyKey{"", contig}]; ok {
		return ploidy
	}
	return m.defaultPloidy
}
