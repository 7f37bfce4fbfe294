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

package genome

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"log"
	"os"
	"sync"

	"github.com/exascience/halo/internal"
	logging "github.com/op/go-logging"
	"golang.org/x/sys/unix"
)

// A Reference provides random access to reference bases. It is opened
// once per run and is read-only afterwards, so it can be shared
// between worker threads without locking.
type Reference interface {
	Contigs() []Contig
	Bases(region Region) []byte
}

var iupacUpperTable = map[byte]byte{
	'A': 'A', 'a': 'A',
	'C': 'C', 'c': 'C',
	'G': 'G', 'g': 'G',
	'T': 'T', 't': 'T',
	'N': 'N', 'n': 'N',
	'R': 'N', 'r': 'N',
	'Y': 'N', 'y': 'N',
	'M': 'N', 'm': 'N',
	'K': 'N', 'k': 'N',
	'W': 'N', 'w': 'N',
	'S': 'N', 's': 'N',
	'B': 'N', 'b': 'N',
	'D': 'N', 'd': 'N',
	'H': 'N', 'h': 'N',
	'V': 'N', 'v': 'N',
}

// ToUpperAndN normalizes IUPAC ambiguity codes to N and converts all
// codes to upper case.
func ToUpperAndN(base byte) byte {
	if n, ok := iupacUpperTable[base]; ok {
		return n
	}
	return base
}

// An InMemoryReference holds fully parsed contig sequences. It is
// used for FASTA references and in tests.
type InMemoryReference struct {
	contigs []Contig
	seqs    map[string][]byte
}

// NewInMemoryReference creates a reference from contig sequences. The
// contig order follows the insertion order of the given names.
func NewInMemoryReference(names []string, seqs map[string][]byte) *InMemoryReference {
	ref := &InMemoryReference{seqs: seqs}
	for _, name := range names {
		ref.contigs = append(ref.contigs, Contig{Name: name, Length: int32(len(seqs[name]))})
	}
	return ref
}

// Contigs returns the reference contigs in file order.
func (ref *InMemoryReference) Contigs() []Contig {
	return ref.contigs
}

// Bases returns the reference bases covering the given region.
func (ref *InMemoryReference) Bases(region Region) []byte {
	seq, ok := ref.seqs[region.Contig]
	if !ok {
		log.Panicf("unknown contig %v", region.Contig)
	}
	if int(region.End) > len(seq) {
		log.Panicf("region %v outside contig of length %v", region, len(seq))
	}
	return seq[region.Start:region.End]
}

// ParseFasta sequentially parses a FASTA file, normalizing bases to
// upper case with ambiguity codes mapped to N.
func ParseFasta(filename string) *InMemoryReference {
	f := internal.FileOpen(filename)
	defer internal.Close(f)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	seqs := make(map[string][]byte)
	var names []string
	var contig string
	var seq []byte
	flush := func() {
		if contig != "" {
			seqs[contig] = seq
			names = append(names, contig)
		}
	}
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			flush()
			header := line[1:]
			if sp := bytes.IndexAny(header, " \t"); sp >= 0 {
				header = header[:sp]
			}
			contig = string(header)
			seq = nil
			continue
		}
		for _, b := range line {
			seq = append(seq, ToUpperAndN(b))
		}
	}
	if err := scanner.Err(); err != nil {
		log.Panic(err)
	}
	flush()
	return NewInMemoryReference(names, seqs)
}

// halrefMagic is the magic byte sequence that every .halref file
// starts with.
var halrefMagic = []byte{0x4A, 0xA1, 0x0C, 0xA1}

// WritePackedReference stores reference data into a mmappable
// .halref file: magic, a contig offset table, then the raw bases.
func WritePackedReference(ref *InMemoryReference, filename string) {
	file := internal.FileCreate(filename)
	defer internal.Close(file)
	writer := bufio.NewWriter(file)
	mustWrite := func(p []byte) int {
		n, err := writer.Write(p)
		if err != nil {
			log.Panic(err)
		}
		return n
	}
	contigs := ref.Contigs()
	offset := mustWrite(halrefMagic)
	var varint [binary.MaxVarintLen64]byte
	offset += mustWrite(varint[:binary.PutVarint(varint[:], int64(len(contigs)))])
	// the offset table is sized before the base payload is written
	headerSize := offset
	for _, contig := range contigs {
		headerSize += len(contig.Name) + 1 + 2*binary.MaxVarintLen64
	}
	payload := headerSize
	for _, contig := range contigs {
		mustWrite([]byte(contig.Name))
		mustWrite([]byte{'\t'})
		n := binary.PutVarint(varint[:], int64(payload))
		for i := n; i < binary.MaxVarintLen64; i++ {
			varint[i] = 0
		}
		mustWrite(varint[:])
		n = binary.PutVarint(varint[:], int64(contig.Length))
		for i := n; i < binary.MaxVarintLen64; i++ {
			varint[i] = 0
		}
		mustWrite(varint[:])
		payload += int(contig.Length)
	}
	for _, contig := range contigs {
		mustWrite(ref.seqs[contig.Name])
	}
	if err := writer.Flush(); err != nil {
		log.Panic(err)
	}
}

// A MappedReference memory-maps a .halref file. The mapping is
// read-only after Open, so lookups need no locking.
type MappedReference struct {
	contigs []Contig
	seqs    map[string][]byte
	data    []byte
	file    *os.File
}

// OpenPackedReference opens a .halref file.
func OpenPackedReference(filename string) *MappedReference {
	file := internal.FileOpen(filename)
	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		log.Panic(err)
	}
	data, err := unix.Mmap(int(file.Fd()), 0, int(stat.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		_ = file.Close()
		log.Panic(err)
	}
	for i, b := range halrefMagic {
		if data[i] != b {
			_ = file.Close()
			log.Panicf("%v is not a .halref file - invalid magic byte sequence", filename)
		}
	}
	index := len(halrefMagic)
	nofContigs, n := binary.Varint(data[index:])
	if n <= 0 {
		log.Panicf("bad contig count in %v", filename)
	}
	index += n
	result := &MappedReference{seqs: make(map[string][]byte), data: data, file: file}
	for c := int64(0); c < nofContigs; c++ {
		start := index
		for ; data[index] != '\t'; index++ {
		}
		contig := string(data[start:index])
		index++
		offset, n := binary.Varint(data[index : index+binary.MaxVarintLen64])
		if n <= 0 {
			log.Panicf("bad offset while parsing %v", filename)
		}
		size, n := binary.Varint(data[index+binary.MaxVarintLen64 : index+2*binary.MaxVarintLen64])
		if n <= 0 {
			log.Panicf("bad size while parsing %v", filename)
		}
		index += 2 * binary.MaxVarintLen64
		result.contigs = append(result.contigs, Contig{Name: contig, Length: int32(size)})
		result.seqs[contig] = data[offset : offset+size]
	}
	return result
}

// Contigs returns the reference contigs in file order.
func (ref *MappedReference) Contigs() []Contig {
	return ref.contigs
}

// Bases returns the reference bases covering the given region.
func (ref *MappedReference) Bases(region Region) []byte {
	seq, ok := ref.seqs[region.Contig]
	if !ok {
		log.Panicf("unknown contig %v", region.Contig)
	}
	return seq[region.Start:region.End]
}

// Close unmaps the reference.
func (ref *MappedReference) Close() {
	err := unix.Munmap(ref.data)
	ref.data = nil
	if nerr := ref.file.Close(); err == nil {
		err = nerr
	}
	ref.file = nil
	ref.seqs = nil
	if err != nil {
		log.Panic(err)
	}
}

const (
	minCacheFootprint     = 1 << 10
	helpfulCacheFootprint = 1 << 20
)

// NormalizeCacheFootprint validates the configured reference cache
// footprint: footprints below 1 KB are coerced to 0 with a warning,
// and footprints below 1 MB get a performance warning.
func NormalizeCacheFootprint(footprint int64, logger *logging.Logger) int64 {
	if footprint > 0 && footprint < minCacheFootprint {
		logger.Warningf("reference cache footprint %v below 1Kb; disabling reference caching", footprint)
		return 0
	}
	if footprint >= minCacheFootprint && footprint < helpfulCacheFootprint {
		logger.Warningf("reference cache footprint %v is small and may hurt performance", footprint)
	}
	return footprint
}

// A CachingReference wraps a Reference with a bounded cache of
// recently fetched contig slabs. A contig's slab is fetched under a
// mutex on the first Bases call for that contig, and the oldest slabs
// are evicted when the footprint would be exceeded.
type CachingReference struct {
	inner     Reference
	footprint int64

	mutex sync.Mutex
	used  int64
	slabs map[string][]byte
	order []string
}

// NewCachingReference wraps the given reference with a cache bounded
// by the (already normalized) footprint in bytes. A zero footprint
// disables caching.
func NewCachingReference(inner Reference, footprint int64) *CachingReference {
	return &CachingReference{
		inner:     inner,
		footprint: footprint,
		slabs:     make(map[string][]byte),
	}
}

// Contigs returns the contigs of the wrapped reference.
func (ref *CachingReference) Contigs() []Contig {
	return ref.inner.Contigs()
}

func (ref *CachingReference) contigLength(contig string) int32 {
	for _, c := range ref.inner.Contigs() {
		if c.Name == contig {
			return c.Length
		}
	}
	log.Panicf("unknown contig %v", contig)
	return 0
}

// Bases returns the reference bases covering the given region,
// serving them from the contig cache when it fits the footprint.
func (ref *CachingReference) Bases(region Region) []byte {
	if ref.footprint == 0 {
		return ref.inner.Bases(region)
	}
	ref.mutex.Lock()
	slab, ok := ref.slabs[region.Contig]
	if !ok {
		length := ref.contigLength(region.Contig)
		if int64(length) > ref.footprint {
			ref.mutex.Unlock()
			return ref.inner.Bases(region)
		}
		slab = append([]byte(nil), ref.inner.Bases(Region{Contig: region.Contig, Start: 0, End: length})...)
		for ref.used+int64(length) > ref.footprint && len(ref.order) > 0 {
			evict := ref.order[0]
			ref.order = ref.order[1:]
			ref.used -= int64(len(ref.slabs[evict]))
			delete(ref.slabs, evict)
		}
		ref.slabs[region.Contig] = slab
		ref.order = append(ref.order, region.Contig)
		ref.used += int64(length)
	}
	ref.mutex.Unlock()
	return slab[region.Start:region.End]
}
