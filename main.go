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

// halo is a haplotype-based variant caller: given a reference genome
// and aligned short-read evidence, it proposes candidate variants,
// enumerates and scores haplotypes, evaluates genotype posteriors,
// and emits phased calls.
//
// Please see https://github.com/exascience/halo for documentation.
package main

import (
	"fmt"
	"os"

	"github.com/exascience/halo/cmd"
	"github.com/exascience/halo/internal"
	logging "github.com/op/go-logging"
)

func printHelp() {
	fmt.Fprintln(os.Stderr, "Available commands: call, pack-reference, help")
	fmt.Fprint(os.Stderr, "\n", cmd.CallHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.PackReferenceHelp)
}

// exit codes per error kind
const (
	exitSuccess = 0
	exitUserError = 64
	exitProgramError = 70
	exitSystemError = 74
)

func initLogging() {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	format := logging.MustStringFormatter(
		`%{color}%{time:15:04:05} %{shortfunc} | %{level:.4s} %{color:reset} %{message}`)
	logging.SetBackend(logging.NewBackendFormatter(backend, format))
}

func main() {
	initLogging()
	fmt.Fprintln(os.Stderr, cmd.ProgramMessage)
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Incorrect number of parameters.")
		printHelp()
		os.Exit(exitUserError)
	}

	var err error
	switch os.Args[1] {
	case "call":
		err = cmd.Call()
	case "pack-reference":
		err = cmd.PackReference()
	case "help", "-help", "--help", "-h", "--h":
		printHelp()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %v.\n", os.Args[1])
		printHelp()
		os.Exit(exitUserError)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		switch err.(type) {
		case *internal.UserError:
			os.Exit(exitUserError)
		case *internal.ProgramError:
			os.Exit(exitProgramError)
		case *internal.SystemError:
			os.Exit(exitSystemError)
		default:
			os.Exit(1)
		}
	}
	os.Exit(exitSuccess)
}
