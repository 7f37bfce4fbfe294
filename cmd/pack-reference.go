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

package cmd

import (
	"flag"
	"fmt"
	"os"

	"github.com/exascience/halo/genome"
	"github.com/exascience/halo/internal"
	"github.com/exascience/halo/utils"
)

// ProgramMessage is printed at startup.
var ProgramMessage = fmt.Sprintf("%s version %s - see %s for more information.",
	utils.ProgramName, utils.ProgramVersion, utils.ProgramURL)

// PackReferenceHelp is the help string for this command.
const PackReferenceHelp = "\npack-reference parameters:\n" +
	"halo pack-reference fasta-file halref-file\n"

// PackReference converts a FASTA reference into the mmappable
// .halref format.
func PackReference() error {
	flags := flag.NewFlagSet("pack-reference", flag.ContinueOnError)
	if err := flags.Parse(os.Args[2:]); err != nil {
		fmt.Fprint(os.Stderr, PackReferenceHelp)
		return err
	}
	if flags.NArg() != 2 {
		fmt.Fprint(os.Stderr, PackReferenceHelp)
		return internal.NewUserError("pack-reference", "pass input and output paths",
			"expected 2 arguments, got %d", flags.NArg())
	}
	input, output := flags.Arg(0), flags.Arg(1)
	if _, err := os.Stat(input); err != nil {
		return internal.NewUserError("pack-reference", "check the input path",
			"input file %v does not exist", input)
	}
	genome.WritePackedReference(genome.ParseFasta(input), output)
	return nil
}
