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

package caller

import (
	"fmt"
	"runtime"
	"time"

	"github.com/exascience/halo/genome"
	"github.com/exascience/halo/model"
	"github.com/exascience/halo/utils"
	"github.com/exascience/halo/vcf"
	"github.com/exascience/pargo/pipeline"
)

var (
	// INFO and FORMAT keys used in the output.
	DP      = utils.Intern("DP")
	GQ      = utils.Intern("GQ")
	SOMATIC = utils.Intern("SOMATIC")
	SF      = utils.Intern("SF")
	DENOVO  = utils.Intern("DENOVO")
	MQ0     = utils.Intern("MQ0")
	MF      = utils.Intern("MF")
)

// A Writer formats calls into VCF records. Writes of whole contig
// blocks are serialized by the scheduler, so records stay ordered.
type Writer struct {
	out       *vcf.OutputFile
	samples   []string
	sitesOnly bool
}

// NewWriter writes the VCF header and returns a writer for the
// given sample columns.
func NewWriter(out *vcf.OutputFile, ref genome.Reference, samples []string, sitesOnly bool, commandLine string) *Writer {
	hdr := vcf.NewHeader()
	hdr.Meta["source"] = []interface{}{utils.ProgramName + " " + utils.ProgramVersion}
	hdr.Meta["haloCommandLine"] = []interface{}{
		&vcf.MetaInformation{
			ID: utils.Intern(utils.ProgramName),
			Fields: utils.StringMap{
				"CommandLine": commandLine,
				"Version":     utils.ProgramVersion,
				"Date":        time.Now().Format("Mon Jan 02 15:04:05 MST 2006"),
			},
		},
	}
	for _, contig := range ref.Contigs() {
		hdr.Meta["contig"] = append(hdr.Meta["contig"], interface{}(
			&vcf.MetaInformation{
				ID:     utils.Intern(contig.Name),
				Fields: utils.StringMap{"length": fmt.Sprint(contig.Length)},
			}))
	}
	hdr.Infos = []*vcf.FormatInformation{
		{ID: DP, Description: "Approximate read depth", Number: 1, Type: vcf.Integer},
		{ID: SOMATIC, Description: "Somatic mutation", Number: 0, Type: vcf.Flag},
		{ID: SF, Description: "Somatic allele frequency", Number: 1, Type: vcf.Float},
		{ID: DENOVO, Description: "Phred-scaled posterior of a de novo mutation", Number: 1, Type: vcf.Float},
		{ID: MQ0, Description: "Number of mapping quality zero reads", Number: 1, Type: vcf.Integer},
		{ID: MF, Description: "Mean read mismatch fraction", Number: 1, Type: vcf.Float},
		{ID: vcf.END, Description: "Stop position of the interval", Number: 1, Type: vcf.Integer},
	}
	if !sitesOnly {
		hdr.Formats = []*vcf.FormatInformation{
			{ID: vcf.GT, Description: "Genotype", Number: 1, Type: vcf.String},
			{ID: GQ, Description: "Genotype quality", Number: 1, Type: vcf.Integer},
			{ID: vcf.PS, Description: "Phase set", Number: 1, Type: vcf.Integer},
		}
		hdr.Columns = append(hdr.Columns, "FORMAT")
		hdr.Columns = append(hdr.Columns, samples...)
	}
	out.WriteHeader(hdr)
	return &Writer{out: out, samples: samples, sitesOnly: sitesOnly}
}

// Record converts a call to a VCF record. VCF positions are 1-based;
// indel records are anchored on the preceding reference base.
func (w *Writer) Record(call *model.Call, ref genome.Reference) *vcf.Variant {
	record := &vcf.Variant{
		Qual:   call.QualPhred,
		Filter: []utils.Symbol{vcf.PASS},
	}
	if call.IsRefcall {
		region := call.Region
		record.Chrom = region.Contig
		record.Pos = region.Start + 1
		record.Ref = string(ref.Bases(genome.Region{Contig: region.Contig, Start: region.Start, End: region.Start + 1}))
		record.Alt = nil
		if region.Length() > 1 {
			record.Info.Set(vcf.END, int(region.End))
		}
	} else {
		variant := call.Variant
		refSeq, altSeq := variant.Ref, variant.Alt
		pos := variant.Region.Start
		if len(refSeq) == 0 || len(altSeq) == 0 {
			// anchor indels on the preceding base
			pos--
			anchor := string(ref.Bases(genome.Region{Contig: variant.Region.Contig, Start: pos, End: pos + 1}))
			refSeq = anchor + refSeq
			altSeq = anchor + altSeq
		}
		record.Chrom = variant.Region.Contig
		record.Pos = pos + 1
		record.Ref = refSeq
		record.Alt = []string{altSeq}
		if call.Somatic {
			record.Info.Set(SOMATIC, true)
			record.Info.Set(SF, call.SomaticFrequency)
		}
		if call.DeNovoPhred > 0 {
			record.Info.Set(DENOVO, call.DeNovoPhred)
		}
	}
	if !w.sitesOnly && !call.IsRefcall {
		record.GenotypeFormat = []utils.Symbol{vcf.GT, GQ, vcf.PS}
		for _, sample := range w.samples {
			gt, ok := call.Genotypes[sample]
			if !ok {
				record.GenotypeData = append(record.GenotypeData, vcf.Genotype{GT: []int32{-1}})
				continue
			}
			genotype := vcf.Genotype{Phased: gt.Phased, GT: gt.Alleles}
			genotype.Data.Set(GQ, int(gt.Phred))
			genotype.Data.Set(vcf.PS, int(call.PhaseSet))
			record.GenotypeData = append(record.GenotypeData, genotype)
		}
	}
	return record
}

// WriteCalls formats and writes a block of calls: records are
// formatted in parallel, writes stay in call order.
func (w *Writer) WriteCalls(calls []*model.Call, ref genome.Reference) error {
	callChannel := make(chan *model.Call, len(calls))
	for _, call := range calls {
		callChannel <- call
	}
	close(callChannel)

	var p pipeline.Pipeline
	p.Source(pipeline.NewSingletonChan(callChannel))
	p.SetVariableBatchSize(1, 1)
	p.Add(
		pipeline.LimitedPar(runtime.GOMAXPROCS(0), pipeline.Receive(func(_ int, data interface{}) interface{} {
			return w.Record(data.(*model.Call), ref).Format(nil)
		})),
		pipeline.StrictOrd(pipeline.Receive(func(_ int, data interface{}) interface{} {
			if err := w.out.WriteRecord(data.([]byte)); err != nil {
				p.SetErr(err)
			}
			return nil
		})),
	)
	p.Run()
	return p.Err()
}
