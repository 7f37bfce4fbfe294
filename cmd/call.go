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
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/exascience/halo/caller"
	"github.com/exascience/halo/candidates"
	"github.com/exascience/halo/genome"
	"github.com/exascience/halo/hmm"
	"github.com/exascience/halo/internal"
	"github.com/exascience/halo/model"
	"github.com/exascience/halo/readpipe"
	"github.com/exascience/halo/sam"
	"github.com/exascience/halo/vcf"
	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("halo")

// CallHelp is the help string for the call command.
const CallHelp = "\ncall parameters:\n" +
	"halo call --reference fasta-file --reads bam-file... --output vcf-file\n" +
	"[--reads-file file-of-paths]\n" +
	"[--samples name...]\n" +
	"[--regions region...] [--regions-file bed-like-file]\n" +
	"[--skip-regions region...] [--skip-regions-file file]\n" +
	"[--one-based-indexing]\n" +
	"[--caller individual | population | trio | cancer | polyclone | cell]\n" +
	"[--normal-sample name] [--maternal-sample name] [--paternal-sample name]\n" +
	"[--pedigree ped-file]\n" +
	"[--organism-ploidy n] [--contig-ploidies contig=n,...]\n" +
	"[--source-candidates vcf-file,...]\n" +
	"[--sequence-error-model pcr | pcr-free | constant | file]\n" +
	"[--threads n] [--target-read-buffer-footprint bytes] [--target-working-memory bytes]\n" +
	"[--max-reference-cache-footprint bytes]\n" +
	"[--max-haplotypes n] [--haplotype-holdout-threshold n] [--max-holdout-depth n]\n" +
	"[--lagging-level none | conservative | moderate | normal | aggressive]\n" +
	"[--extension-level conservative | normal | optimistic | aggressive]\n" +
	"[--fast] [--very-fast]\n" +
	"[--refcall none | positional | blocked] [--sites-only]\n" +
	"[--contig-output-order order]\n" +
	"[--working-directory dir] [--keep-temp-on-failure]\n" +
	"[--unfiltered] [--legacy]\n"

type callOptions struct {
	reference         string
	reads             multiFlag
	readsFile         string
	samples           multiFlag
	output            string
	regions           multiFlag
	regionsFile       string
	skipRegions       multiFlag
	skipRegionsFile   string
	oneBasedIndexing  bool
	callerName        string
	normalSample      string
	maternalSample    string
	paternalSample    string
	pedigreeFile      string
	organismPloidy    int
	contigPloidies    string
	sourceCandidates  string
	errorModel        string
	threads           int
	readBuffer        int64
	workingMemory     int64
	refCacheFootprint int64
	maxOpenReadFiles  int

	minMappingQuality    int
	goodBaseQuality      int
	minGoodBases         int
	allowMarkedDuplicates bool
	allowSecondary       bool
	allowSupplementary   bool
	allowQCFails         bool
	noAdapterMasking     bool
	noSoftClipMasking    bool
	maskTails            int
	maskLowQualityTails  int
	downsampleAbove      int
	downsampleTarget     int

	minCandidateSupport  int
	expectedMutationRate float64
	minCloneFrequency    float64
	kmerSizes            string
	maxFallbackKmers     int
	fallbackInterval     int
	minBubbleScore       int

	maxHaplotypes    int
	holdoutThreshold int
	maxHoldoutDepth  int
	laggingLevel     string
	extensionLevel   string
	fast             bool
	veryFast         bool

	snvHeterozygosity    float64
	indelHeterozygosity  float64
	maxGenotypes         int
	minVariantPosterior  float64
	minPhaseScore        float64
	refcall              string
	refcallBlockMerge    float64
	sitesOnly            bool
	noModelBasedDedup    bool

	denovoSnvRate   float64
	denovoIndelRate float64
	minDenovoPosterior float64

	maxSomaticHaplotypes        int
	somaticSnvRate              float64
	somaticIndelRate            float64
	minExpectedSomaticFrequency float64
	minCredibleSomaticFrequency float64
	credibleMass                float64
	tumourGermlineConcentration float64
	maxVBSeeds                  int

	maxClones            int
	dropoutConcentration float64

	contigOutputOrder string
	workingDirectory  string
	tempPrefix        string
	keepTempOnFailure bool
	unfiltered        bool
	legacy            bool
}

type multiFlag []string

func (f *multiFlag) String() string { return strings.Join(*f, ",") }

func (f *multiFlag) Set(value string) error {
	*f = append(*f, value)
	return nil
}

// Call implements the call command.
func Call() error {
	var opts callOptions
	flags := flag.NewFlagSet("call", flag.ContinueOnError)

	flags.StringVar(&opts.reference, "reference", "", "reference FASTA or .halref file")
	flags.Var(&opts.reads, "reads", "read archive (repeatable)")
	flags.StringVar(&opts.readsFile, "reads-file", "", "file listing read archive paths")
	flags.Var(&opts.samples, "samples", "restrict calling to these samples (repeatable)")
	flags.StringVar(&opts.output, "output", "", "output VCF file")
	flags.Var(&opts.regions, "regions", "region to call (repeatable)")
	flags.StringVar(&opts.regionsFile, "regions-file", "", "file listing regions to call")
	flags.Var(&opts.skipRegions, "skip-regions", "region to skip (repeatable)")
	flags.StringVar(&opts.skipRegionsFile, "skip-regions-file", "", "file listing regions to skip")
	flags.BoolVar(&opts.oneBasedIndexing, "one-based-indexing", false, "interpret region inputs as 1-based")
	flags.StringVar(&opts.callerName, "caller", "population", "caller flavor")
	flags.StringVar(&opts.normalSample, "normal-sample", "", "normal sample for cancer calling")
	flags.StringVar(&opts.maternalSample, "maternal-sample", "", "mother sample for trio calling")
	flags.StringVar(&opts.paternalSample, "paternal-sample", "", "father sample for trio calling")
	flags.StringVar(&opts.pedigreeFile, "pedigree", "", "PED pedigree file")
	flags.IntVar(&opts.organismPloidy, "organism-ploidy", 2, "default ploidy")
	flags.StringVar(&opts.contigPloidies, "contig-ploidies", "", "contig ploidy overrides, contig=n or sample:contig=n, comma separated")
	flags.StringVar(&opts.sourceCandidates, "source-candidates", "", "external candidate VCF files, comma separated")
	flags.StringVar(&opts.errorModel, "sequence-error-model", "pcr", "error model profile name or file")
	flags.IntVar(&opts.threads, "threads", 1, "worker threads; 0 means all cores")
	flags.Int64Var(&opts.readBuffer, "target-read-buffer-footprint", 6<<30, "total read buffer bytes")
	flags.Int64Var(&opts.workingMemory, "target-working-memory", 16<<30, "total working memory bytes")
	flags.Int64Var(&opts.refCacheFootprint, "max-reference-cache-footprint", 500<<20, "reference cache bytes")
	flags.IntVar(&opts.maxOpenReadFiles, "max-open-read-files", 250, "maximum simultaneously open read files")

	flags.IntVar(&opts.minMappingQuality, "min-mapping-quality", 20, "drop reads mapped below this quality")
	flags.IntVar(&opts.goodBaseQuality, "good-base-quality", 20, "base quality counted as good")
	flags.IntVar(&opts.minGoodBases, "min-good-bases", 20, "minimum good bases per read")
	flags.BoolVar(&opts.allowMarkedDuplicates, "allow-marked-duplicates", false, "keep duplicate-marked reads")
	flags.BoolVar(&opts.allowSecondary, "allow-secondary-alignments", false, "keep secondary alignments")
	flags.BoolVar(&opts.allowSupplementary, "allow-supplementary-alignments", false, "keep supplementary alignments")
	flags.BoolVar(&opts.allowQCFails, "allow-qc-fails", false, "keep QC-failed reads")
	flags.BoolVar(&opts.noAdapterMasking, "disable-adapter-masking", false, "disable adapter masking")
	flags.BoolVar(&opts.noSoftClipMasking, "disable-soft-clip-masking", false, "disable soft clip masking")
	flags.IntVar(&opts.maskTails, "mask-tails", 0, "mask this many 3' bases")
	flags.IntVar(&opts.maskLowQualityTails, "mask-low-quality-tails", 0, "mask 3' tails below this quality")
	flags.IntVar(&opts.downsampleAbove, "downsample-above", 1000, "downsample positions deeper than this")
	flags.IntVar(&opts.downsampleTarget, "downsample-target", 500, "target depth after downsampling")

	flags.IntVar(&opts.minCandidateSupport, "min-supporting-reads", 2, "minimum supporting reads per candidate")
	flags.Float64Var(&opts.expectedMutationRate, "expected-mutation-rate", 1e-3, "expected mutation rate prior")
	flags.Float64Var(&opts.minCloneFrequency, "min-clone-frequency", 0.01, "minimum credible clone or cell fraction")
	flags.StringVar(&opts.kmerSizes, "kmer-sizes", "10,25", "assembler kmer sizes, comma separated")
	flags.IntVar(&opts.maxFallbackKmers, "max-fallback-kmers", 10, "assembler fallback kmer count")
	flags.IntVar(&opts.fallbackInterval, "fallback-kmer-interval", 10, "assembler fallback kmer spacing")
	flags.IntVar(&opts.minBubbleScore, "min-bubble-score", 2, "minimum assembler bubble score")

	flags.IntVar(&opts.maxHaplotypes, "max-haplotypes", 200, "haplotype cap per active region")
	flags.IntVar(&opts.holdoutThreshold, "haplotype-holdout-threshold", 2500, "holdout trigger")
	flags.IntVar(&opts.maxHoldoutDepth, "max-holdout-depth", 20, "holdout stack bound")
	flags.StringVar(&opts.laggingLevel, "lagging-level", "normal", "lagging policy")
	flags.StringVar(&opts.extensionLevel, "extension-level", "normal", "active region extension policy")
	flags.BoolVar(&opts.fast, "fast", false, "disable lagging")
	flags.BoolVar(&opts.veryFast, "very-fast", false, "disable lagging and flank scoring")

	flags.Float64Var(&opts.snvHeterozygosity, "snv-heterozygosity", 1e-3, "SNV heterozygosity")
	flags.Float64Var(&opts.indelHeterozygosity, "indel-heterozygosity", 1e-4, "indel heterozygosity")
	flags.IntVar(&opts.maxGenotypes, "max-genotypes", 5000, "genotype enumeration cap")
	flags.Float64Var(&opts.minVariantPosterior, "min-variant-posterior", 2, "minimum variant posterior, phred")
	flags.Float64Var(&opts.minPhaseScore, "min-phase-score", 10, "minimum phase score, phred")
	flags.StringVar(&opts.refcall, "refcall", "none", "refcall type: none, positional, or blocked")
	flags.Float64Var(&opts.refcallBlockMerge, "refcall-block-merge-threshold", 10, "blocked refcall merge threshold, phred")
	flags.BoolVar(&opts.sitesOnly, "sites-only", false, "emit site rows without genotypes")
	flags.BoolVar(&opts.noModelBasedDedup, "disable-model-based-haplotype-dedup", false, "disable model-based haplotype dedup")

	flags.Float64Var(&opts.denovoSnvRate, "denovo-snv-mutation-rate", 1.3e-8, "de novo SNV rate")
	flags.Float64Var(&opts.denovoIndelRate, "denovo-indel-mutation-rate", 1e-9, "de novo indel rate")
	flags.Float64Var(&opts.minDenovoPosterior, "min-denovo-posterior", 3, "minimum de novo posterior, phred")

	flags.IntVar(&opts.maxSomaticHaplotypes, "max-somatic-haplotypes", 1, "somatic haplotype cap")
	flags.Float64Var(&opts.somaticSnvRate, "somatic-snv-mutation-rate", 1e-4, "somatic SNV rate")
	flags.Float64Var(&opts.somaticIndelRate, "somatic-indel-mutation-rate", 1e-6, "somatic indel rate")
	flags.Float64Var(&opts.minExpectedSomaticFrequency, "min-expected-somatic-frequency", 0.01, "minimum expected somatic frequency")
	flags.Float64Var(&opts.minCredibleSomaticFrequency, "min-credible-somatic-frequency", 0.005, "minimum credible somatic frequency")
	flags.Float64Var(&opts.credibleMass, "credible-mass", 0.9, "credible mass for somatic frequency")
	flags.Float64Var(&opts.tumourGermlineConcentration, "tumour-germline-concentration", 1.5, "germline concentration in tumour mixtures")
	flags.IntVar(&opts.maxVBSeeds, "max-vb-seeds", 12, "variational Bayes restart count")

	flags.IntVar(&opts.maxClones, "max-clones", 3, "polyclone clone cap")
	flags.Float64Var(&opts.dropoutConcentration, "dropout-concentration", 5, "cell allelic dropout concentration")

	flags.StringVar(&opts.contigOutputOrder, "contig-output-order", "reference-index-ascending", "contig output order")
	flags.StringVar(&opts.workingDirectory, "working-directory", ".", "working directory for temp files")
	flags.StringVar(&opts.tempPrefix, "temp-directory-prefix", "halo-temp", "temp directory prefix")
	flags.BoolVar(&opts.keepTempOnFailure, "keep-temp-on-failure", false, "preserve temp directory on failure")
	flags.BoolVar(&opts.unfiltered, "unfiltered", false, "also write an unfiltered sibling VCF")
	flags.BoolVar(&opts.legacy, "legacy", false, "also write a legacy-format VCF")

	if err := flags.Parse(os.Args[2:]); err != nil {
		fmt.Fprint(os.Stderr, CallHelp)
		return err
	}
	return runCall(&opts, strings.Join(os.Args, " "))
}

func parseRegionFlags(opts *callOptions) (include, skip []genome.Region, err error) {
	parseAll := func(entries []string, file string) ([]genome.Region, error) {
		var result []genome.Region
		for _, entry := range entries {
			region, err := genome.ParseRegion(entry, opts.oneBasedIndexing)
			if err != nil {
				return nil, err
			}
			result = append(result, region)
		}
		if file != "" {
			f, err := os.Open(file)
			if err != nil {
				return nil, internal.NewUserError("region selection", "check the regions file path",
					"cannot open regions file %v", file)
			}
			defer func() { _ = f.Close() }()
			scanner := bufio.NewScanner(f)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" || strings.HasPrefix(line, "#") {
					continue
				}
				region, err := genome.ParseRegion(line, opts.oneBasedIndexing)
				if err != nil {
					return nil, err
				}
				result = append(result, region)
			}
			if len(result) == 0 {
				log.Warningf("regions file %v is empty; calling everything", file)
			}
		}
		return result, nil
	}
	if include, err = parseAll(opts.regions, opts.regionsFile); err != nil {
		return nil, nil, err
	}
	skip, err = parseAll(opts.skipRegions, opts.skipRegionsFile)
	return include, skip, err
}

// searchRegions resolves the regions to call: the include set (or
// whole contigs), minus the skip set.
func searchRegions(ref genome.Reference, include, skip []genome.Region) map[string][]genome.Region {
	result := make(map[string][]genome.Region)
	if len(include) == 0 {
		for _, contig := range ref.Contigs() {
			result[contig.Name] = []genome.Region{{Contig: contig.Name, Start: 0, End: contig.Length}}
		}
	} else {
		for _, region := range include {
			result[region.Contig] = append(result[region.Contig], region)
		}
	}
	for _, skipRegion := range skip {
		regions := result[skipRegion.Contig]
		var kept []genome.Region
		for _, region := range regions {
			if skipRegion.End >= 0 && (region.End >= 0 && (skipRegion.End <= region.Start || skipRegion.Start >= region.End)) {
				kept = append(kept, region)
				continue
			}
			if skipRegion.Start > region.Start {
				kept = append(kept, genome.Region{Contig: region.Contig, Start: region.Start, End: skipRegion.Start})
			}
			if skipRegion.End >= 0 && skipRegion.End < region.End {
				kept = append(kept, genome.Region{Contig: region.Contig, Start: skipRegion.End, End: region.End})
			}
		}
		result[skipRegion.Contig] = kept
	}
	return result
}

func parsePloidies(opts *callOptions) (*genome.PloidyMap, error) {
	ploidies := genome.NewPloidyMap(opts.organismPloidy)
	if opts.contigPloidies == "" {
		return ploidies, nil
	}
	for _, entry := range strings.Split(opts.contigPloidies, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		eq := strings.IndexByte(entry, '=')
		if eq < 0 {
			return nil, internal.NewUserError("ploidy specification", "use contig=n or sample:contig=n",
				"malformed contig ploidy %q", entry)
		}
		ploidy, err := strconv.Atoi(entry[eq+1:])
		if err != nil {
			return nil, internal.NewUserError("ploidy specification", "use contig=n or sample:contig=n",
				"malformed contig ploidy %q", entry)
		}
		subject := entry[:eq]
		sample, contig := "", subject
		if colon := strings.IndexByte(subject, ':'); colon >= 0 {
			sample, contig = subject[:colon], subject[colon+1:]
		}
		if err := ploidies.Set(sample, contig, ploidy); err != nil {
			return nil, err
		}
	}
	return ploidies, nil
}

// resolveCaller applies the caller promotion rules.
func resolveCaller(opts *callOptions, samples []string, pedigree *genome.Pedigree) (string, genome.Trio, error) {
	name := opts.callerName
	var trio genome.Trio
	if opts.normalSample != "" {
		name = "cancer"
	}
	explicitTrio := opts.maternalSample != "" || opts.paternalSample != ""
	if explicitTrio {
		name = "trio"
		trio = genome.Trio{Mother: opts.maternalSample, Father: opts.paternalSample}
		for _, sample := range samples {
			if sample != trio.Mother && sample != trio.Father {
				if trio.Child != "" {
					return "", trio, internal.NewUserError("trio composition",
						"a trio needs exactly mother, father, and one child",
						"more than one child candidate among samples %v", samples)
				}
				trio.Child = sample
			}
		}
	}
	if pedigree != nil {
		if pedigreeTrio, ok := pedigree.FindTrio(samples); ok {
			if explicitTrio && pedigreeTrio != trio {
				log.Warningf("pedigree disagrees with --maternal-sample/--paternal-sample; using the pedigree")
			}
			name = "trio"
			trio = pedigreeTrio
		}
	}
	if name == "population" && len(samples) == 1 {
		name = "individual"
	}
	switch name {
	case "trio":
		if trio.Mother == trio.Father {
			return "", trio, internal.NewUserError("trio composition",
				"mother and father must be distinct samples",
				"sample %q given for both parent roles", trio.Mother)
		}
		if !containsString(samples, trio.Mother) || !containsString(samples, trio.Father) {
			return "", trio, internal.NewUserError("trio composition",
				"both parents must be in the sample set",
				"parent samples %q/%q not among samples %v", trio.Mother, trio.Father, samples)
		}
		if trio.Child == "" || len(samples) != 3 {
			return "", trio, internal.NewUserError("trio composition",
				"trio calling needs exactly three samples",
				"got %d samples", len(samples))
		}
	case "polyclone", "cell":
		if name == "polyclone" && len(samples) != 1 {
			return "", trio, internal.NewUserError("sample selection",
				"polyclone calling takes exactly one sample",
				"got %d samples", len(samples))
		}
	case "cancer":
		if opts.normalSample != "" && !containsString(samples, opts.normalSample) {
			return "", trio, internal.NewUserError("sample selection",
				"the normal sample must be among the input samples",
				"normal sample %q not among samples %v", opts.normalSample, samples)
		}
	case "individual", "population":
	default:
		return "", trio, &internal.ProgramError{Why: fmt.Sprintf("caller flavor %q not implemented", name)}
	}
	return name, trio, nil
}

func containsString(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

func parseLagging(opts *callOptions) (caller.LaggingPolicy, error) {
	if opts.fast || opts.veryFast {
		return caller.LaggingNone, nil
	}
	switch opts.laggingLevel {
	case "none":
		return caller.LaggingNone, nil
	case "conservative":
		return caller.LaggingConservative, nil
	case "moderate":
		return caller.LaggingModerate, nil
	case "normal":
		return caller.LaggingNormal, nil
	case "aggressive":
		return caller.LaggingAggressive, nil
	default:
		return 0, internal.NewUserError("lagging level",
			"use none, conservative, moderate, normal, or aggressive",
			"unknown lagging level %q", opts.laggingLevel)
	}
}

func parseExtension(opts *callOptions) (caller.ExtensionPolicy, error) {
	switch opts.extensionLevel {
	case "conservative":
		return caller.ExtensionConservative, nil
	case "", "normal":
		return caller.ExtensionNormal, nil
	case "optimistic":
		return caller.ExtensionOptimistic, nil
	case "aggressive":
		return caller.ExtensionAggressive, nil
	default:
		return 0, internal.NewUserError("extension level",
			"use conservative, normal, optimistic, or aggressive",
			"unknown extension level %q", opts.extensionLevel)
	}
}

func parseRefcall(opts *callOptions) (model.RefcallType, error) {
	switch opts.refcall {
	case "", "none":
		return model.RefcallNone, nil
	case "positional":
		return model.RefcallPositional, nil
	case "blocked":
		return model.RefcallBlocked, nil
	default:
		return 0, internal.NewUserError("refcall type", "use none, positional, or blocked",
			"unknown refcall type %q", opts.refcall)
	}
}

func openReference(opts *callOptions) (genome.Reference, error) {
	if opts.reference == "" {
		return nil, internal.NewUserError("reference", "pass --reference", "no reference given")
	}
	if _, err := os.Stat(opts.reference); err != nil {
		return nil, internal.NewUserError("reference", "check the --reference path",
			"input file %v does not exist", opts.reference)
	}
	var ref genome.Reference
	if strings.HasSuffix(opts.reference, ".halref") {
		ref = genome.OpenPackedReference(opts.reference)
	} else {
		ref = genome.ParseFasta(opts.reference)
	}
	footprint := genome.NormalizeCacheFootprint(opts.refCacheFootprint, log)
	return genome.NewCachingReference(ref, footprint), nil
}

func collectReadPaths(opts *callOptions) ([]string, error) {
	paths := append([]string(nil), opts.reads...)
	if opts.readsFile != "" {
		f, err := os.Open(opts.readsFile)
		if err != nil {
			return nil, internal.NewUserError("read archive", "check the --reads-file path",
				"cannot open reads file %v", opts.readsFile)
		}
		defer func() { _ = f.Close() }()
		var entries []string
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				entries = append(entries, line)
			}
		}
		exists := func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		}
		paths = append(paths, readpipe.ResolveReadPaths(opts.readsFile, entries, exists)...)
	}
	if len(paths) == 0 {
		return nil, internal.NewUserError("read archive", "pass --reads or --reads-file", "no reads given")
	}
	if len(paths) > opts.maxOpenReadFiles {
		return nil, internal.NewUserError("read archive",
			"raise --max-open-read-files or merge the inputs",
			"%d read files exceed the limit of %d", len(paths), opts.maxOpenReadFiles)
	}
	return paths, nil
}

func buildModel(name string, opts *callOptions, priors model.Priors, trio genome.Trio) model.Model {
	random := internal.NewRand(47382911)
	switch name {
	case "individual":
		return &model.IndividualModel{Priors: priors}
	case "population":
		return &model.PopulationModel{Priors: priors}
	case "trio":
		return &model.TrioModel{
			Priors:             priors,
			Trio:               trio,
			DeNovoSnvRate:      opts.denovoSnvRate,
			DeNovoIndelRate:    opts.denovoIndelRate,
			MinDeNovoPosterior: opts.minDenovoPosterior,
		}
	case "cancer":
		return &model.CancerModel{
			Priors:                      priors,
			NormalSample:                opts.normalSample,
			MaxSomaticHaplotypes:        opts.maxSomaticHaplotypes,
			SomaticSnvRate:              opts.somaticSnvRate,
			SomaticIndelRate:            opts.somaticIndelRate,
			MinExpectedSomaticFrequency: opts.minExpectedSomaticFrequency,
			MinCredibleSomaticFrequency: opts.minCredibleSomaticFrequency,
			CredibleMass:                opts.credibleMass,
			TumourGermlineConcentration: opts.tumourGermlineConcentration,
			MaxVBSeeds:                  opts.maxVBSeeds,
			Random:                      random,
		}
	case "polyclone":
		return &model.PolycloneModel{
			Priors:     priors,
			MaxClones:  opts.maxClones,
			Alpha:      1,
			MaxVBSeeds: opts.maxVBSeeds,
			Random:     random,
		}
	case "cell":
		return &model.CellModel{
			Priors:               priors,
			MaxClones:            opts.maxClones,
			DropoutConcentration: opts.dropoutConcentration,
			MaxVBSeeds:           opts.maxVBSeeds,
			Random:               random,
		}
	}
	return nil
}

func runCall(opts *callOptions, commandLine string) (err error) {
	if opts.output == "" {
		return internal.NewUserError("output", "pass --output", "no output file given")
	}
	if opts.sourceCandidates != "" {
		for _, source := range strings.Split(opts.sourceCandidates, ",") {
			if filepath.Clean(source) == filepath.Clean(opts.output) {
				return internal.NewUserError("variant files",
					"source candidates and output must differ",
					"%v is both a source and the output", opts.output)
			}
		}
	}

	tempDir, err := internal.NewTempDir(opts.workingDirectory, opts.tempPrefix, opts.keepTempOnFailure)
	if err != nil {
		return err
	}
	defer func() {
		// recover here: a recover inside tempDir.Close would not see
		// the panic, since Close is not the deferred call itself
		if r := recover(); r != nil {
			if opts.keepTempOnFailure {
				log.Warningf("preserving temp directory %v for post-mortem inspection", tempDir.Path)
			} else {
				_ = os.RemoveAll(tempDir.Path)
			}
			panic(r)
		}
		if nerr := tempDir.Close(); err == nil {
			err = nerr
		}
	}()

	ref, err := openReference(opts)
	if err != nil {
		return err
	}

	readPaths, err := collectReadPaths(opts)
	if err != nil {
		return err
	}
	readsByContig := make(map[string][]*sam.Alignment)
	var samples []string
	sampleSeen := make(map[string]bool)
	contigNames := make(map[string]bool)
	for _, contig := range ref.Contigs() {
		contigNames[contig.Name] = true
	}
	for _, path := range readPaths {
		archive, err := readpipe.Open(path)
		if err != nil {
			return err
		}
		contents, err := archive.ReadAll()
		if cerr := archive.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		for contig, alns := range contents {
			if !contigNames[contig] {
				return internal.NewUserError("read archive",
					"reads and reference must use the same assembly",
					"contig %q of %v not in the reference", contig, path)
			}
			readsByContig[contig] = append(readsByContig[contig], alns...)
		}
		for _, sample := range archive.SampleNames {
			if !sampleSeen[sample] {
				sampleSeen[sample] = true
				samples = append(samples, sample)
			}
		}
	}
	if len(opts.samples) > 0 {
		for _, sample := range opts.samples {
			if !sampleSeen[sample] {
				return internal.NewUserError("sample selection",
					"requested samples must occur in the read archives",
					"sample %q not found", sample)
			}
		}
		samples = append([]string(nil), opts.samples...)
	}

	var pedigree *genome.Pedigree
	if opts.pedigreeFile != "" {
		if pedigree, err = genome.ParsePedigree(opts.pedigreeFile); err != nil {
			return err
		}
	}
	callerName, trio, err := resolveCaller(opts, samples, pedigree)
	if err != nil {
		return err
	}
	log.Infof("calling with the %s model over %d sample(s)", callerName, len(samples))

	ploidies, err := parsePloidies(opts)
	if err != nil {
		return err
	}
	include, skip, err := parseRegionFlags(opts)
	if err != nil {
		return err
	}
	regions := searchRegions(ref, include, skip)

	refcallType, err := parseRefcall(opts)
	if err != nil {
		return err
	}
	priors := model.Priors{
		SnvHeterozygosity:   opts.snvHeterozygosity,
		IndelHeterozygosity: opts.indelHeterozygosity,
		MaxGenotypes:        opts.maxGenotypes,
		MinVariantPosterior: opts.minVariantPosterior,
		SitesOnly:           opts.sitesOnly,
		ModelBasedDedup:     !opts.noModelBasedDedup,
		RefcallType:         refcallType,
		RefcallBlockMerge:   opts.refcallBlockMerge,
	}
	callerModel := buildModel(callerName, opts, priors, trio)

	var errorModel *hmm.ErrorModel
	if _, statErr := os.Stat(opts.errorModel); statErr == nil {
		errorModel, err = hmm.LoadFile(opts.errorModel)
	} else {
		errorModel, err = hmm.LoadProfile(opts.errorModel)
	}
	if err != nil {
		return err
	}

	lagging, err := parseLagging(opts)
	if err != nil {
		return err
	}
	extension, err := parseExtension(opts)
	if err != nil {
		return err
	}
	contigOrder, err := caller.ParseContigOrder(opts.contigOutputOrder)
	if err != nil {
		return err
	}

	var kmerSizes []int32
	for _, entry := range strings.Split(opts.kmerSizes, ",") {
		size, err := strconv.Atoi(strings.TrimSpace(entry))
		if err != nil {
			return internal.NewUserError("assembler", "use a comma separated list of integers",
				"malformed kmer sizes %q", opts.kmerSizes)
		}
		kmerSizes = append(kmerSizes, int32(size))
	}

	generators := []candidates.Generator{
		candidates.CigarScanner{MinBaseQuality: byte(opts.goodBaseQuality)},
		candidates.RepeatScanner{MaxMotifLength: 6, MinUnits: 4},
		candidates.Assembler{
			KmerSizes:        kmerSizes,
			MaxFallbacks:     int32(opts.maxFallbackKmers),
			FallbackInterval: int32(opts.fallbackInterval),
			MinBaseQuality:   byte(opts.goodBaseQuality),
			MinBubbleScore:   int32(opts.minBubbleScore),
		},
	}
	if opts.sourceCandidates != "" {
		source, err := candidates.NewVcfSource(strings.Split(opts.sourceCandidates, ","), 0, 0)
		if err != nil {
			return err
		}
		generators = append(generators, source)
	}

	mode := candidates.Germline
	switch callerName {
	case "cancer":
		mode = candidates.Somatic
	case "polyclone":
		mode = candidates.Polyclone
	case "cell":
		mode = candidates.Cell
	}

	transformers := []sam.Transformer{sam.CapBaseQualities, sam.CapitaliseBases}
	if opts.maskTails > 0 {
		transformers = append(transformers, sam.MaskTail(int32(opts.maskTails)))
	}
	if opts.maskLowQualityTails > 0 {
		transformers = append(transformers, sam.MaskLowQualityTails(byte(opts.maskLowQualityTails)))
	}
	if !opts.noSoftClipMasking {
		transformers = append(transformers, sam.MaskSoftClips)
	}
	if !opts.noAdapterMasking {
		transformers = append(transformers, sam.MaskAdapters)
	}

	filters := []sam.Filter{
		sam.MinMappingQuality(byte(opts.minMappingQuality)),
		sam.MinGoodBases(byte(opts.goodBaseQuality), opts.minGoodBases),
	}
	if !opts.allowMarkedDuplicates {
		filters = append(filters, sam.NotDuplicate)
	}
	if !opts.allowSecondary {
		filters = append(filters, sam.NotSecondary)
	}
	if !opts.allowSupplementary {
		filters = append(filters, sam.NotSupplementary)
	}
	if !opts.allowQCFails {
		filters = append(filters, sam.NotQCFailed)
	}

	pad := int32(10)
	hmmOptions := hmm.Options{
		UseMappingQuality: true,
		LongReadLength:    200,
		UseFlankState:     !opts.veryFast,
		PadRequirement:    pad,
	}

	var totalPositions int64
	for _, contigRegions := range regions {
		for _, region := range contigRegions {
			if region.End >= 0 {
				totalPositions += int64(region.Length())
			}
		}
	}

	out, err := vcf.Create(opts.output)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := out.Close(); err == nil {
			err = nerr
		}
	}()
	writers := multiWriter{caller.NewWriter(out, ref, samples, opts.sitesOnly, commandLine)}

	var siblings []*vcf.OutputFile
	ext := filepath.Ext(opts.output)
	stem := strings.TrimSuffix(opts.output, ext)
	if opts.unfiltered {
		sibling, err := vcf.Create(stem + ".unfiltered" + ext)
		if err != nil {
			return err
		}
		siblings = append(siblings, sibling)
		writers = append(writers, caller.NewWriter(sibling, ref, samples, opts.sitesOnly, commandLine))
	}
	if opts.legacy {
		sibling, err := vcf.Create(stem + ".legacy" + ext)
		if err != nil {
			return err
		}
		siblings = append(siblings, sibling)
		writers = append(writers, caller.NewWriter(sibling, ref, samples, opts.sitesOnly, commandLine))
	}
	defer func() {
		for _, sibling := range siblings {
			if nerr := sibling.Close(); err == nil {
				err = nerr
			}
		}
	}()

	scheduler := &caller.Scheduler{
		Ref:        ref,
		Model:      callerModel,
		ErrorModel: errorModel,
		HmmOptions: hmmOptions,
		Generator: caller.GeneratorConfig{
			MaxHaplotypes:    opts.maxHaplotypes,
			HoldoutThreshold: opts.holdoutThreshold,
			MaxHoldoutDepth:  opts.maxHoldoutDepth,
			Lagging:          lagging,
			Extension:        extension,
			Pad:              hmmOptions.MinFlankPad(),
		},
		Generators: generators,
		Inclusion: candidates.InclusionConfig{
			Mode:                        mode,
			MinSupport:                  int32(opts.minCandidateSupport),
			ExpectedMutationRate:        opts.expectedMutationRate,
			MinCredibleSomaticFrequency: opts.minCredibleSomaticFrequency,
			MinCloneFrequency:           opts.minCloneFrequency,
		},
		Priors:       priors,
		Ploidies:     ploidies,
		Samples:      samples,
		NormalSample: opts.normalSample,
		Transformers: transformers,
		Filters:      filters,
		Config: caller.Config{
			Threads:             opts.threads,
			ReadBufferSize:      opts.readBuffer,
			TargetWorkingMemory: opts.workingMemory,
			DownsampleAbove:     int32(opts.downsampleAbove),
			DownsampleTarget:    int32(opts.downsampleTarget),
		},
		Phaser:      caller.Phaser{MinPhaseScore: opts.minPhaseScore},
		ContigOrder: contigOrder,
		Progress:    caller.NewProgressMeter(log, totalPositions),
		Logger:      log,
	}
	return scheduler.CallVariants(context.Background(), readsByContig, regions, writers)
}

// a multiWriter fans call blocks out to the primary output and its
// unfiltered/legacy siblings
type multiWriter []*caller.Writer

func (w multiWriter) WriteCalls(calls []*model.Call, ref genome.Reference) error {
	for _, writer := range w {
		if err := writer.WriteCalls(calls, ref); err != nil {
			return err
		}
	}
	return nil
}
