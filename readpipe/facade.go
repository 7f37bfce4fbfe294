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

// Package readpipe provides the read-archive facade: it decodes
// BAM/SAM files into halo alignments and discovers sample identities,
// so the calling core never touches archive-level structures.
package readpipe

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/biogo/hts/bam"
	htsam "github.com/biogo/hts/sam"
	"github.com/exascience/halo/internal"
	"github.com/exascience/halo/sam"
)

// cigarOpTable translates biogo CIGAR op types to halo op codes.
var cigarOpTable = map[htsam.CigarOpType]byte{
	htsam.CigarMatch:       'M',
	htsam.CigarInsertion:   'I',
	htsam.CigarDeletion:    'D',
	htsam.CigarSkipped:     'N',
	htsam.CigarSoftClipped: 'S',
	htsam.CigarHardClipped: 'H',
	htsam.CigarPadded:      'P',
	htsam.CigarEqual:       '=',
	htsam.CigarMismatch:    'X',
}

// SamplesFromHeaderText extracts the read-group to sample mapping
// from a SAM header. A missing @RG section is fatal, as is an @RG
// entry without an SM tag.
func SamplesFromHeaderText(pathname string, headerText string) (map[string]string, error) {
	samples := make(map[string]string)
	for _, line := range strings.Split(headerText, "\n") {
		if !strings.HasPrefix(line, "@RG") {
			continue
		}
		var id, sm string
		for _, field := range strings.Split(line, "\t")[1:] {
			switch {
			case strings.HasPrefix(field, "ID:"):
				id = field[3:]
			case strings.HasPrefix(field, "SM:"):
				sm = field[3:]
			}
		}
		if sm == "" {
			return nil, internal.NewUserError("read archive", "add an SM tag to every @RG header line",
				"read group %q in %v has no SM sample tag", id, pathname)
		}
		samples[id] = sm
	}
	if len(samples) == 0 {
		return nil, internal.NewUserError("read archive", "reads must carry @RG header lines with SM tags",
			"%v has no @RG header lines", pathname)
	}
	return samples, nil
}

type recordReader interface {
	Read() (*htsam.Record, error)
}

// An Archive is an open read archive.
type Archive struct {
	Pathname string
	// Samples maps read-group ids to sample names.
	Samples map[string]string
	// SampleNames lists the distinct samples of the archive.
	SampleNames []string

	reader    recordReader
	file      io.Closer
	bamReader *bam.Reader
}

// Open opens a BAM or SAM read archive and resolves its samples.
func Open(pathname string) (*Archive, error) {
	file, err := internal.FullPathname(pathname)
	if err != nil {
		return nil, internal.ClassifySystemError(err)
	}
	fh, err := os.Open(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, internal.NewUserError("read archive", "check the --reads options",
				"input file %v does not exist", pathname)
		}
		return nil, internal.ClassifySystemError(err)
	}
	archive := &Archive{Pathname: pathname, file: fh}
	var header *htsam.Header
	if strings.HasSuffix(strings.ToLower(pathname), ".bam") {
		reader, err := bam.NewReader(fh, 0)
		if err != nil {
			return nil, internal.NewUserError("read archive", "pass an indexed BAM or SAM file",
				"cannot open %v: %v", pathname, err)
		}
		archive.reader = reader
		archive.bamReader = reader
		header = reader.Header()
	} else {
		reader, err := htsam.NewReader(bufio.NewReader(fh))
		if err != nil {
			return nil, internal.NewUserError("read archive", "pass an indexed BAM or SAM file",
				"cannot open %v: %v", pathname, err)
		}
		archive.reader = reader
		header = reader.Header()
	}
	headerText, err := header.MarshalText()
	if err != nil {
		return nil, internal.ClassifySystemError(err)
	}
	samples, err := SamplesFromHeaderText(pathname, string(headerText))
	if err != nil {
		return nil, err
	}
	archive.Samples = samples
	seen := make(map[string]bool)
	for _, sample := range samples {
		if !seen[sample] {
			seen[sample] = true
			archive.SampleNames = append(archive.SampleNames, sample)
		}
	}
	return archive, nil
}

// Close closes the underlying archive.
func (a *Archive) Close() error {
	var err error
	if a.bamReader != nil {
		err = a.bamReader.Close()
	}
	if nerr := a.file.Close(); err == nil {
		err = nerr
	}
	return err
}

func convertRecord(rec *htsam.Record, samples map[string]string) *sam.Alignment {
	aln := &sam.Alignment{
		QNAME: rec.Name,
		FLAG:  uint16(rec.Flags),
		POS:   int32(rec.Pos),
		MAPQ:  rec.MapQ,
		PNEXT: int32(rec.MatePos),
		TLEN:  int32(rec.TempLen),
		SEQ:   rec.Seq.Expand(),
		QUAL:  append([]byte(nil), rec.Qual...),
	}
	if rec.Ref != nil {
		aln.RNAME = rec.Ref.Name()
	}
	if rec.MateRef != nil {
		if rec.MateRef == rec.Ref {
			aln.RNEXT = "="
		} else {
			aln.RNEXT = rec.MateRef.Name()
		}
	}
	for _, op := range rec.Cigar {
		aln.CIGAR = append(aln.CIGAR, sam.CigarOperation{Length: int32(op.Len()), Operation: cigarOpTable[op.Type()]})
	}
	if aux := rec.AuxFields.Get(htsam.NewTag("RG")); aux != nil {
		if rg, ok := aux.Value().(string); ok {
			aln.Sample = samples[rg]
		}
	}
	return aln
}

// ReadAll decodes every mapped record of the archive, grouped by
// contig in file order. Unmapped records are skipped; a record that
// fails to decode ends the read with a classified system error.
func (a *Archive) ReadAll() (map[string][]*sam.Alignment, error) {
	result := make(map[string][]*sam.Alignment)
	for {
		rec, err := a.reader.Read()
		if err == io.EOF {
			return result, nil
		}
		if err != nil {
			return nil, internal.ClassifySystemError(err)
		}
		if rec.Flags&htsam.Unmapped != 0 || rec.Ref == nil {
			continue
		}
		aln := convertRecord(rec, a.Samples)
		result[aln.RNAME] = append(result[aln.RNAME], aln)
	}
}

// ResolveReadPaths resolves the paths listed in a reads-file:
// relative entries resolve first against the parent directory of the
// list file, then against the working directory.
func ResolveReadPaths(listFile string, entries []string, exists func(string) bool) []string {
	parent := filepath.Dir(listFile)
	result := make([]string, 0, len(entries))
	for _, entry := range entries {
		if filepath.IsAbs(entry) {
			result = append(result, entry)
			continue
		}
		inParent := filepath.Join(parent, entry)
		if exists(inParent) {
			result = append(result, inParent)
		} else {
			result = append(result, entry)
		}
	}
	return result
}
