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

package readpipe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/exascience/halo/internal"
	"github.com/exascience/halo/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSamplesFromHeaderText(t *testing.T) {
	header := "@HD\tVN:1.6\tSO:coordinate\n" +
		"@SQ\tSN:c\tLN:50\n" +
		"@RG\tID:rg1\tSM:NA12878\n" +
		"@RG\tID:rg2\tSM:NA12878\n" +
		"@RG\tID:rg3\tSM:NA24385\n"
	samples, err := SamplesFromHeaderText("test.bam", header)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"rg1": "NA12878",
		"rg2": "NA12878",
		"rg3": "NA24385",
	}, samples)
}

func TestMissingSmTagIsFatal(t *testing.T) {
	header := "@HD\tVN:1.6\n@RG\tID:rg1\n"
	_, err := SamplesFromHeaderText("test.bam", header)
	require.Error(t, err)
	_, ok := err.(*internal.UserError)
	assert.True(t, ok)
}

func TestMissingReadGroupsIsFatal(t *testing.T) {
	header := "@HD\tVN:1.6\n@SQ\tSN:c\tLN:50\n"
	_, err := SamplesFromHeaderText("test.bam", header)
	require.Error(t, err)
	_, ok := err.(*internal.UserError)
	assert.True(t, ok)
}

func TestOpenSamArchive(t *testing.T) {
	dir := t.TempDir()
	pathname := filepath.Join(dir, "reads.sam")
	contents := "@HD\tVN:1.6\tSO:coordinate\n" +
		"@SQ\tSN:c\tLN:50\n" +
		"@RG\tID:rg1\tSM:NA12878\n" +
		"r1\t0\tc\t16\t60\t10M\t*\t0\t0\tAAAAATAAAA\tIIIIIIIIII\tRG:Z:rg1\n"
	require.NoError(t, os.WriteFile(pathname, []byte(contents), 0644))

	archive, err := Open(pathname)
	require.NoError(t, err)
	defer func() { require.NoError(t, archive.Close()) }()
	assert.Equal(t, []string{"NA12878"}, archive.SampleNames)

	reads, err := archive.ReadAll()
	require.NoError(t, err)
	require.Len(t, reads["c"], 1)
	aln := reads["c"][0]
	assert.Equal(t, "r1", aln.QNAME)
	assert.Equal(t, int32(15), aln.POS) // SAM positions are 1-based
	assert.Equal(t, "AAAAATAAAA", string(aln.SEQ))
	assert.Equal(t, byte(40), aln.QUAL[0])
	assert.Equal(t, "NA12878", aln.Sample)
	assert.Equal(t, int32(25), aln.End())
}

func TestOpenMissingArchive(t *testing.T) {
	_, err := Open("/nonexistent/reads.bam")
	require.Error(t, err)
	_, ok := err.(*internal.UserError)
	assert.True(t, ok)
}

func TestResolveReadPaths(t *testing.T) {
	dir := t.TempDir()
	listFile := filepath.Join(dir, "reads.txt")
	inParent := filepath.Join(dir, "a.bam")
	require.NoError(t, os.WriteFile(inParent, nil, 0644))

	exists := func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	}
	resolved := ResolveReadPaths(listFile, []string{"a.bam", "b.bam", "/abs/c.bam"}, exists)
	assert.Equal(t, []string{inParent, "b.bam", "/abs/c.bam"}, resolved)
}

func TestMakeBatches(t *testing.T) {
	var alns []*sam.Alignment
	cigar, err := sam.ScanCigarString("10M")
	require.NoError(t, err)
	for i := int32(0); i < 10; i++ {
		alns = append(alns, &sam.Alignment{
			QNAME: "r", RNAME: "c", POS: i * 10, CIGAR: cigar,
			SEQ: make([]byte, 10), QUAL: make([]byte, 10),
		})
	}
	perRead := ReadFootprint(alns[0])
	batches := MakeBatches("c", alns, 3*perRead)
	assert.Greater(t, len(batches), 1)
	total := 0
	for _, batch := range batches {
		assert.LessOrEqual(t, len(batch.Alns), 3)
		total += len(batch.Alns)
	}
	assert.Equal(t, 10, total)

	single := MakeBatches("c", alns, 0)
	require.Len(t, single, 1)
	assert.Len(t, single[0].Alns, 10)
}
