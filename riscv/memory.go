package riscv

import (
	"encoding/binary"
	"fmt"

	"github.com/vanadium-project/vanadium-go/pagefault"
	"github.com/vanadium-project/vanadium-go/wire"
	"github.com/vanadium-project/vanadium-go/witness"
)

// Segment describes one of a V-App's three memory regions within its flat
// 32-bit address space.
type Segment struct {
	Kind       wire.SectionKind
	Start, End uint64
}

type pageKey struct {
	kind  wire.SectionKind
	index uint32
}

// PagedMemory is the device-side view of a V-App's address space. Reads are
// served from a local page cache, populated lazily (and verified against
// the matching witness) on first touch via a pagefault.Resolver. Writes
// always re-fetch and re-verify the target page immediately before
// committing: the witness holds only one outstanding verified-read slot at
// a time, so a write cannot rely on a read that happened earlier for some
// other page.
type PagedMemory struct {
	resolver *pagefault.Resolver
	segments []Segment
	cache    map[pageKey][]byte
}

// NewPagedMemory builds a PagedMemory over the given segments, backed by
// resolver for every page miss and commit.
func NewPagedMemory(resolver *pagefault.Resolver, segments []Segment) *PagedMemory {
	return &PagedMemory{
		resolver: resolver,
		segments: segments,
		cache:    make(map[pageKey][]byte),
	}
}

func (m *PagedMemory) segmentFor(addr uint64) (Segment, error) {
	for _, s := range m.segments {
		if addr >= s.Start && addr < s.End {
			return s, nil
		}
	}
	return Segment{}, fmt.Errorf("riscv: address %#x is outside any mapped segment", addr)
}

func pageIndexAndOffset(s Segment, addr uint64) (uint32, int) {
	rel := addr - s.Start
	return uint32(rel / wire.PageSize), int(rel % wire.PageSize)
}

func (m *PagedMemory) page(s Segment, index uint32) ([]byte, error) {
	key := pageKey{s.Kind, index}
	if p, ok := m.cache[key]; ok {
		return p, nil
	}
	page, err := m.resolver.ResolveRead(s.Kind, index)
	if err != nil {
		return nil, err
	}
	m.cache[key] = page
	return page, nil
}

// ReadByte reads a single byte, faulting the containing page in on a cache
// miss.
func (m *PagedMemory) ReadByte(addr uint64) (byte, error) {
	s, err := m.segmentFor(addr)
	if err != nil {
		return 0, err
	}
	idx, off := pageIndexAndOffset(s, addr)
	page, err := m.page(s, idx)
	if err != nil {
		return 0, err
	}
	return page[off], nil
}

// ReadHalf reads a little-endian 16-bit value, one byte at a time so it
// never assumes alignment within a page.
func (m *PagedMemory) ReadHalf(addr uint64) (uint16, error) {
	lo, err := m.ReadByte(addr)
	if err != nil {
		return 0, err
	}
	hi, err := m.ReadByte(addr + 1)
	if err != nil {
		return 0, err
	}
	return uint16(lo) | uint16(hi)<<8, nil
}

// ReadWord reads a little-endian 32-bit value.
func (m *PagedMemory) ReadWord(addr uint64) (uint32, error) {
	lo, err := m.ReadHalf(addr)
	if err != nil {
		return 0, err
	}
	hi, err := m.ReadHalf(addr + 2)
	if err != nil {
		return 0, err
	}
	return uint32(lo) | uint32(hi)<<16, nil
}

// writeBytes commits data at addr, splitting it across page boundaries as
// needed and issuing one read-verify-then-commit round trip per touched
// page.
func (m *PagedMemory) writeBytes(addr uint64, data []byte) error {
	i := 0
	for i < len(data) {
		s, err := m.segmentFor(addr + uint64(i))
		if err != nil {
			return err
		}
		if s.Kind == wire.Code {
			return witness.ErrCodeSegmentWrite
		}
		idx, off := pageIndexAndOffset(s, addr+uint64(i))
		n := wire.PageSize - off
		if n > len(data)-i {
			n = len(data) - i
		}

		page, err := m.resolver.ResolveRead(s.Kind, idx)
		if err != nil {
			return err
		}
		newPage := append([]byte(nil), page...)
		copy(newPage[off:off+n], data[i:i+n])
		if err := m.resolver.ResolveWrite(s.Kind, idx, newPage); err != nil {
			return err
		}
		m.cache[pageKey{s.Kind, idx}] = newPage
		i += n
	}
	return nil
}

// WriteByte commits a single byte.
func (m *PagedMemory) WriteByte(addr uint64, v byte) error {
	return m.writeBytes(addr, []byte{v})
}

// WriteHalf commits a little-endian 16-bit value.
func (m *PagedMemory) WriteHalf(addr uint64, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return m.writeBytes(addr, b[:])
}

// WriteWord commits a little-endian 32-bit value.
func (m *PagedMemory) WriteWord(addr uint64, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return m.writeBytes(addr, b[:])
}

// FetchInstruction reads the instruction word at pc, reading only the
// first half first to decide whether it's a 2-byte compressed encoding or
// a 4-byte one, so a compressed instruction at the very end of a segment
// never over-reads into unmapped memory.
func (m *PagedMemory) FetchInstruction(pc uint64) (uint32, error) {
	lo, err := m.ReadHalf(pc)
	if err != nil {
		return 0, err
	}
	if lo&0x3 != 0x3 {
		return uint32(lo), nil
	}
	hi, err := m.ReadHalf(pc + 2)
	if err != nil {
		return 0, err
	}
	return uint32(lo) | uint32(hi)<<16, nil
}
