// Package pagestore implements the host side of a segment's outsourced
// memory: the byte-exact contents of every page, backed by a vector
// accumulator so reads and writes can be accompanied by proofs.
package pagestore

import (
	"fmt"

	"github.com/vanadium-project/vanadium-go/accumulator"
	"github.com/vanadium-project/vanadium-go/wire"
)

// Store owns the full page contents of one segment plus the accumulator
// committing to them. The device-side witness (package witness) holds only
// Store.Root(); Store is the untrusted prover that answers its proof
// requests.
type Store struct {
	kind  wire.SectionKind
	start uint64
	end   uint64
	acc   *accumulator.MerkleAccumulator
}

// New builds a Store for a segment [start, end) of the given kind, from an
// initial set of page-aligned contents. len(pages) must equal the number of
// pages spanned by [start, end); the caller (the loader) is responsible for
// zero-padding the first and last page to the segment boundary.
func New(kind wire.SectionKind, start, end uint64, pages [][]byte) *Store {
	wantPages := PageCount(start, end)
	if len(pages) != wantPages {
		panic(fmt.Sprintf("pagestore: segment [%d,%d) needs %d pages, got %d", start, end, wantPages, len(pages)))
	}
	return &Store{kind: kind, start: start, end: end, acc: accumulator.NewMerkleAccumulator(pages)}
}

// PageCount returns the number of PageSize pages needed to cover [start, end).
func PageCount(start, end uint64) int {
	span := end - start
	return int((span + wire.PageSize - 1) / wire.PageSize)
}

// NewZeroFilled builds a Store over a segment initialized to all zeros, as
// used for a V-App's Stack segment (§6: "Stack has no initial root because
// it is zero-initialized").
func NewZeroFilled(kind wire.SectionKind, start, end uint64) *Store {
	n := PageCount(start, end)
	pages := make([][]byte, n)
	for i := range pages {
		pages[i] = make([]byte, wire.PageSize)
	}
	return New(kind, start, end, pages)
}

func (s *Store) Kind() wire.SectionKind { return s.kind }
func (s *Store) Start() uint64          { return s.start }
func (s *Store) End() uint64            { return s.end }
func (s *Store) Size() int              { return s.acc.Size() }
func (s *Store) Root() accumulator.Hash { return s.acc.Root() }

// Read returns the page at index i together with its current inclusion
// proof.
func (s *Store) Read(i int) ([]byte, accumulator.InclusionProof, error) {
	page, ok := s.acc.Get(i)
	if !ok {
		return nil, nil, accumulator.ErrIndexOutOfBounds
	}
	proof, err := s.acc.Prove(i)
	if err != nil {
		return nil, nil, err
	}
	return page, proof, nil
}

// Write replaces the page at index i and returns the update proof that
// carries the transition from the old root to the new one. Writes to a Code
// segment are rejected by the page-fault protocol layer, not here: Store
// itself is a pure key-value-plus-accumulator primitive and has no opinion
// about segment kind immutability.
func (s *Store) Write(i int, newPage []byte) (accumulator.UpdateProof, error) {
	if len(newPage) != wire.PageSize {
		return accumulator.UpdateProof{}, fmt.Errorf("pagestore: page must be %d bytes, got %d", wire.PageSize, len(newPage))
	}
	return s.acc.Update(i, newPage)
}
