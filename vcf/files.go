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
	"bufio"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/exascience/halo/internal"
	"github.com/exascience/halo/utils"
	"github.com/pkg/errors"
)

// An OutputFile writes VCF records. Writes are serialized under a
// mutex, so multiple workers can share an output file; callers are
// responsible for ordering.
type OutputFile struct {
	file   *os.File
	writer *bufio.Writer
	mutex  sync.Mutex
}

// Create creates a VCF output file.
func Create(pathname string) (*OutputFile, error) {
	file, err := os.Create(pathname)
	if err != nil {
		return nil, internal.ClassifySystemError(err)
	}
	return &OutputFile{file: file, writer: bufio.NewWriter(file)}, nil
}

// WriteHeader writes the header section.
func (f *OutputFile) WriteHeader(hdr *Header) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	hdr.Format(f.writer)
}

// WriteRecord writes one formatted record followed by a newline.
func (f *OutputFile) WriteRecord(record []byte) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if _, err := f.writer.Write(record); err != nil {
		return err
	}
	return f.writer.WriteByte('\n')
}

// Close flushes and closes the file.
func (f *OutputFile) Close() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if err := f.writer.Flush(); err != nil {
		_ = f.file.Close()
		return err
	}
	return f.file.Close()
}

func parseInfo(field string) (info utils.SmallMap) {
	if field == "." {
		return nil
	}
	for _, entry := range strings.Split(field, ";") {
		if eq := strings.IndexByte(entry, '='); eq < 0 {
			info.Set(utils.Intern(entry), true)
		} else {
			key, value := entry[:eq], entry[eq+1:]
			if i, err := strconv.Atoi(value); err == nil {
				info.Set(utils.Intern(key), i)
			} else if f, err := strconv.ParseFloat(value, 64); err == nil {
				info.Set(utils.Intern(key), f)
			} else {
				info.Set(utils.Intern(key), value)
			}
		}
	}
	return info
}

func parseVariantLine(line string) (*Variant, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 8 {
		return nil, errors.Errorf("truncated VCF line %q", line)
	}
	pos, err := strconv.ParseInt(fields[1], 10, 32)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid POS in VCF line %q", line)
	}
	variant := &Variant{
		Chrom: fields[0],
		Pos:   int32(pos),
		Ref:   fields[3],
	}
	if fields[2] != "." {
		variant.ID = strings.Split(fields[2], ";")
	}
	if fields[4] != "." {
		variant.Alt = strings.Split(fields[4], ",")
	}
	if fields[5] != "." {
		qual, err := strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid QUAL in VCF line %q", line)
		}
		variant.Qual = qual
	}
	if fields[6] != "." {
		for _, filter := range strings.Split(fields[6], ";") {
			variant.Filter = append(variant.Filter, utils.Intern(filter))
		}
	}
	variant.Info = parseInfo(fields[7])
	return variant, nil
}

// Read parses a VCF file. Genotype columns beyond FORMAT are ignored;
// halo only consumes site rows from external VCFs.
func Read(pathname string) (*Vcf, error) {
	file, err := os.Open(pathname)
	if err != nil {
		return nil, internal.ClassifySystemError(err)
	}
	defer func() { _ = file.Close() }()
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	result := &Vcf{Header: NewHeader()}
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "##") {
			if eq := strings.IndexByte(line, '='); eq > 2 {
				key := line[2:eq]
				result.Header.Meta[key] = append(result.Header.Meta[key], line[eq+1:])
			}
			continue
		}
		if strings.HasPrefix(line, "#") {
			result.Header.Columns = strings.Split(line[1:], "\t")
			continue
		}
		variant, err := parseVariantLine(line)
		if err != nil {
			return nil, err
		}
		result.Variants = append(result.Variants, variant)
	}
	if err := scanner.Err(); err != nil {
		return nil, internal.ClassifySystemError(err)
	}
	return result, nil
}
