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
	"bufio"
	"strings"

	"github.com/exascience/halo/internal"
)

// Sex annotation for pedigree members.
type Sex byte

const (
	SexUnknown Sex = iota
	SexMale
	SexFemale
)

type pedigreeMember struct {
	mother, father string
	sex            Sex
}

// A Pedigree is a directed acyclic graph from samples to their
// parents, with sex annotations.
type Pedigree struct {
	members map[string]pedigreeMember
}

// NewPedigree returns an empty pedigree.
func NewPedigree() *Pedigree {
	return &Pedigree{members: make(map[string]pedigreeMember)}
}

// Add records a sample with its (possibly empty) parents.
func (p *Pedigree) Add(sample, mother, father string, sex Sex) {
	p.members[sample] = pedigreeMember{mother: mother, father: father, sex: sex}
}

// Contains reports whether the sample is a pedigree member.
func (p *Pedigree) Contains(sample string) bool {
	_, ok := p.members[sample]
	return ok
}

// A Trio is a (mother, father, child) subgraph of a pedigree.
type Trio struct {
	Mother, Father, Child string
}

// FindTrio returns the trio formed by the given samples, if the
// pedigree relates exactly one of them as the child of the other two.
func (p *Pedigree) FindTrio(samples []string) (Trio, bool) {
	inSamples := make(map[string]bool, len(samples))
	for _, sample := range samples {
		inSamples[sample] = true
	}
	var result Trio
	var found bool
	for _, sample := range samples {
		member, ok := p.members[sample]
		if !ok {
			continue
		}
		if member.mother != "" && member.father != "" && inSamples[member.mother] && inSamples[member.father] {
			if found {
				return Trio{}, false
			}
			result = Trio{Mother: member.mother, Father: member.father, Child: sample}
			found = true
		}
	}
	return result, found && len(samples) == 3
}

// ParsePedigree reads a PED file: one sample per line with columns
// family, sample, father, mother, sex, phenotype. Missing parents are
// "0".
func ParsePedigree(filename string) (*Pedigree, error) {
	file := internal.FileOpen(filename)
	defer internal.Close(file)
	pedigree := NewPedigree()
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 5 {
			return nil, internal.NewUserError("pedigree file", "expected at least 5 columns per line",
				"malformed pedigree line %q in %v", line, filename)
		}
		sample, father, mother := fields[1], fields[2], fields[3]
		if father == "0" {
			father = ""
		}
		if mother == "0" {
			mother = ""
		}
		sex := SexUnknown
		switch fields[4] {
		case "1":
			sex = SexMale
		case "2":
			sex = SexFemale
		}
		pedigree.Add(sample, mother, father, sex)
	}
	if err := scanner.Err(); err != nil {
		return nil, internal.ClassifySystemError(err)
	}
	return pedigree, nil
}
