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

package vcf

import (
	"github.com/exascience/halo/utils"
)

// The supported VCF file format version.
const (
	FileFormatVersion     = "VCFv4.3"
	FileFormatVersionLine = "##fileformat=VCFv4.3"
)

// DefaultHeaderColumns for VCF files.
var DefaultHeaderColumns = []string{"CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER", "INFO"}

// Type is an enumeration type for different VCF field types
type Type uint

// The different VCF field types
const (
	InvalidType Type = iota
	Integer
	Float
	Flag
	Character
	String
)

// Constants for format information Number entries.
const (
	NumberA int32 = -1 * (1 + iota)
	NumberR
	NumberG
	NumberDot
	InvalidNumber
)

// Commonly used VCF entries.
var (
	END  = utils.Intern("END")
	GT   = utils.Intern("GT")
	PASS = utils.Intern("PASS")
	PS   = utils.Intern("PS")
)

type (
	// MetaInformation in VCF files.
	MetaInformation struct {
		ID          utils.Symbol
		Description string // "" if not present
		Fields      utils.StringMap
	}

	// FormatInformation describes an INFO or FORMAT key.
	FormatInformation struct {
		ID          utils.Symbol
		Description string // "" if not present
		Number      int32  // > InvalidNumber
		Type        Type
	}

	// Header section of a VCF file.
	Header struct {
		FileFormat string
		Infos      []*FormatInformation
		Formats    []*FormatInformation
		Meta       map[string][]interface{} // string or *MetaInformation
		Columns    []string
	}

	// Genotype is a structured representation of a sample column.
	Genotype struct {
		Phased bool
		GT     []int32        // < 0 for unknown entries
		Data   utils.SmallMap // values are nil, int, float64, string, or []interface{}
	}

	// Variant is one line in a VCF file. Pos is 1-based, as in the
	// file format.
	Variant struct {
		Chrom          string
		Pos            int32
		ID             []string
		Ref            string
		Alt            []string
		Qual           interface{} // float64, or nil if missing
		Filter         []utils.Symbol
		Info           utils.SmallMap
		GenotypeFormat []utils.Symbol
		GenotypeData   []Genotype
	}

	// Vcf represents the full contents of a VCF file.
	Vcf struct {
		Header   *Header
		Variants []*Variant
	}
)

// NewHeader creates an empty instance.
func NewHeader() *Header {
	return &Header{
		FileFormat: FileFormatVersionLine,
		Meta:       make(map[string][]interface{}),
		Columns:    append([]string(nil), DefaultHeaderColumns...),
	}
}

// Start returns the 1-based start position of the line.
func (v *Variant) Start() int32 {
	return v.Pos
}

// End returns the 1-based inclusive end position of the line,
// determined either by the END field or by len(v.Ref).
func (v *Variant) End() int32 {
	if end, ok := v.Info.Get(END); ok {
		if e, ok := end.(int); ok {
			return int32(e)
		}
	}
	return v.Pos - 1 + int32(len(v.Ref))
}

// Pass determines whether the variant passed all filters.
func (v *Variant) Pass() bool {
	return len(v.Filter) == 1 && v.Filter[0] == PASS
}
