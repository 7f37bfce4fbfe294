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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/exascience/halo/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatVariantRecord(t *testing.T) {
	variant := &Variant{
		Chrom:  "chr1",
		Pos:    21,
		Ref:    "A",
		Alt:    []string{"T"},
		Qual:   47.5,
		Filter: []utils.Symbol{PASS},
	}
	variant.Info.Set(utils.Intern("DP"), 20)
	variant.GenotypeFormat = []utils.Symbol{GT, utils.Intern("GQ"), PS}
	gt := Genotype{Phased: true, GT: []int32{0, 1}}
	gt.Data.Set(utils.Intern("GQ"), 40)
	gt.Data.Set(PS, 7)
	variant.GenotypeData = []Genotype{gt}

	line := string(variant.Format(nil))
	assert.Equal(t, "chr1\t21\t.\tA\tT\t47.50\tPASS\tDP=20\tGT:GQ:PS\t0|1:40:7", line)
}

func TestFormatRefcallStyleRecord(t *testing.T) {
	variant := &Variant{
		Chrom: "c",
		Pos:   1,
		Ref:   "A",
		Qual:  30.0,
	}
	variant.Info.Set(END, 100)
	line := string(variant.Format(nil))
	assert.Equal(t, "c\t1\t.\tA\t.\t30.00\t.\tEND=100", line)
}

func TestHeaderRoundTrip(t *testing.T) {
	hdr := NewHeader()
	hdr.Meta["source"] = []interface{}{"halo"}
	hdr.Infos = append(hdr.Infos, &FormatInformation{
		ID:          utils.Intern("DP"),
		Description: "Approximate read depth",
		Number:      1,
		Type:        Integer,
	})
	hdr.Columns = append(hdr.Columns, "FORMAT", "s1")

	var sb strings.Builder
	hdr.Format(&sb)
	text := sb.String()
	assert.True(t, strings.HasPrefix(text, FileFormatVersionLine))
	assert.Contains(t, text, `##INFO=<ID=DP,Number=1,Type=Integer,Description="Approximate read depth">`)
	assert.Contains(t, text, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\ts1")
}

func TestReadVcf(t *testing.T) {
	dir := t.TempDir()
	pathname := filepath.Join(dir, "in.vcf")
	contents := "##fileformat=VCFv4.3\n" +
		"##source=test\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
		"c\t5\t.\tA\tT,G\t60\tPASS\tDP=31;SOMATIC\n" +
		"c\t9\trs1\tAT\tA\t.\t.\t.\n"
	require.NoError(t, os.WriteFile(pathname, []byte(contents), 0644))

	result, err := Read(pathname)
	require.NoError(t, err)
	require.Len(t, result.Variants, 2)

	first := result.Variants[0]
	assert.Equal(t, "c", first.Chrom)
	assert.Equal(t, int32(5), first.Pos)
	assert.Equal(t, []string{"T", "G"}, first.Alt)
	assert.Equal(t, 60.0, first.Qual)
	assert.True(t, first.Pass())
	depth, ok := first.Info.Get(utils.Intern("DP"))
	require.True(t, ok)
	assert.Equal(t, 31, depth)

	second := result.Variants[1]
	assert.Equal(t, []string{"rs1"}, second.ID)
	assert.Nil(t, second.Qual)
	assert.Equal(t, int32(10), second.End())
}

func TestWriteRecords(t *testing.T) {
	dir := t.TempDir()
	pathname := filepath.Join(dir, "out.vcf")
	out, err := Create(pathname)
	require.NoError(t, err)
	out.WriteHeader(NewHeader())
	require.NoError(t, out.WriteRecord([]byte("c\t1\t.\tA\tT\t60.00\tPASS\t.")))
	require.NoError(t, out.Close())

	contents, err := os.ReadFile(pathname)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(contents)), "\n")
	assert.Equal(t, "c\t1\t.\tA\tT\t60.00\tPASS\t.", lines[len(lines)-1])
}
