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

// Package hmm computes log10 P(read | haplotype) with a three-state
// pair-HMM parameterized by a position-specific indel error model.
package hmm

import (
	"bufio"
	"strings"

	"github.com/exascience/halo/internal"
)

// maxRepeatLength caps the tandem-repeat context used to index the
// gap penalty tables.
const maxRepeatLength = 20

// An ErrorModel holds the phred-scaled sequencing error penalties:
// SNV errors come from base qualities scaled by SnvScale, and gap
// penalties depend on the tandem-repeat context of each position.
type ErrorModel struct {
	Name string
	// GapOpen[r] is the phred gap-open penalty at a position inside
	// a tandem repeat of r units.
	GapOpen [maxRepeatLength + 1]float64
	// GapExtend is the phred gap-extension penalty.
	GapExtend float64
	// SnvScale scales base qualities; 1 trusts them as reported.
	SnvScale float64
}

func sequencerProfile() *ErrorModel {
	model := &ErrorModel{Name: "pcr", GapExtend: 10, SnvScale: 1}
	// gap-open penalties drop as repeat tracts grow: 45 phred in
	// unique sequence down to 10 phred in long homopolymers
	for r := 0; r <= maxRepeatLength; r++ {
		penalty := 45.0 - 2.5*float64(r)
		if penalty < 10 {
			penalty = 10
		}
		model.GapOpen[r] = penalty
	}
	return model
}

func pcrFreeProfile() *ErrorModel {
	model := sequencerProfile()
	model.Name = "pcr-free"
	// without PCR, slippage is rarer; keep penalties higher
	for r := 0; r <= maxRepeatLength; r++ {
		penalty := 45.0 - 1.5*float64(r)
		if penalty < 18 {
			penalty = 18
		}
		model.GapOpen[r] = penalty
	}
	return model
}

func constantProfile() *ErrorModel {
	model := &ErrorModel{Name: "constant", GapExtend: 10, SnvScale: 1}
	for r := 0; r <= maxRepeatLength; r++ {
		model.GapOpen[r] = 45
	}
	return model
}

// LoadProfile returns a named error model profile.
func LoadProfile(name string) (*ErrorModel, error) {
	switch name {
	case "", "pcr":
		return sequencerProfile(), nil
	case "pcr-free":
		return pcrFreeProfile(), nil
	case "constant":
		return constantProfile(), nil
	default:
		return nil, internal.NewUserError("error model", "use pcr, pcr-free, or constant, or pass a file path",
			"unknown sequence error model profile %q", name)
	}
}

// LoadFile reads an error model from a file with lines
// "gap-open: p0,p1,...", "gap-extend: p" and "snv-scale: s".
func LoadFile(pathname string) (*ErrorModel, error) {
	file := internal.FileOpen(pathname)
	defer internal.Close(file)
	model := sequencerProfile()
	model.Name = pathname
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			return nil, internal.NewUserError("error model", "expected key: value lines",
				"malformed error model line %q in %v", line, pathname)
		}
		key := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])
		switch key {
		case "gap-open":
			entries := strings.Split(value, ",")
			for r := 0; r <= maxRepeatLength; r++ {
				if r < len(entries) {
					model.GapOpen[r] = internal.ParseFloat(strings.TrimSpace(entries[r]), 64)
				} else {
					model.GapOpen[r] = model.GapOpen[len(entries)-1]
				}
			}
		case "gap-extend":
			model.GapExtend = internal.ParseFloat(value, 64)
		case "snv-scale":
			model.SnvScale = internal.ParseFloat(value, 64)
		default:
			return nil, internal.NewUserError("error model", "known keys are gap-open, gap-extend, snv-scale",
				"unknown error model key %q in %v", key, pathname)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, internal.ClassifySystemError(err)
	}
	return model, nil
}

func findNumberOfForwardRepetitions(repeatUnit, testString string) (nofRepeats int) {
	repeatLength := len(repeatUnit)
	for len(testString) >= repeatLength && strings.HasPrefix(testString, repeatUnit) {
		nofRepeats++
		testString = testString[repeatLength:]
	}
	return nofRepeats
}

func findNumberOfBackwardRepetitions(repeatUnit, testString string) (nofRepeats int) {
	repeatLength := len(repeatUnit)
	for len(testString) >= repeatLength && strings.HasSuffix(testString, repeatUnit) {
		nofRepeats++
		testString = testString[:len(testString)-repeatLength]
	}
	return nofRepeats
}

// repeatLengthAt measures the tandem-repeat tract containing the
// given offset, testing motif lengths up to 8.
func repeatLengthAt(bases string, offset int) int {
	offset1 := offset + 1
	var maxBW int
	bestBWRepeatUnit := bases[offset:offset1]
	bwTestString := bases[:offset1]
	for str := 1; str <= 8; str++ {
		repeatOffset := offset1 - str
		if repeatOffset < 0 {
			break
		}
		repeatUnit := bases[repeatOffset:offset1]
		maxBW = findNumberOfBackwardRepetitions(repeatUnit, bwTestString)
		if maxBW > 1 {
			bestBWRepeatUnit = repeatUnit
			break
		}
	}
	repeatLength := maxBW
	if offset1 < len(bases) {
		var maxFW int
		bestFWRepeatUnit := bases[offset1 : offset1+1]
		fwTestString := bases[offset1:]
		for str := 1; str <= 8; str++ {
			repeatOffset := offset1 + str
			if repeatOffset > len(bases) {
				break
			}
			repeatUnit := bases[offset1:repeatOffset]
			maxFW = findNumberOfForwardRepetitions(repeatUnit, fwTestString)
			if maxFW > 1 {
				bestFWRepeatUnit = repeatUnit
				break
			}
		}
		if bestFWRepeatUnit != bestBWRepeatUnit {
			maxBW = findNumberOfBackwardRepetitions(bestFWRepeatUnit, bases[:offset1])
		}
		repeatLength = maxFW + maxBW
	}
	if repeatLength > maxRepeatLength {
		repeatLength = maxRepeatLength
	}
	return repeatLength
}
