package pagestore

import (
	"bytes"
	"testing"

	"github.com/vanadium-project/vanadium-go/accumulator"
	"github.com/vanadium-project/vanadium-go/wire"
)

func fourPages(fill ...byte) [][]byte {
	pages := make([][]byte, 4)
	for i := range pages {
		b := byte('A' + i)
		if i < len(fill) {
			b = fill[i]
		}
		pages[i] = bytes.Repeat([]byte{b}, wire.PageSize)
	}
	return pages
}

func TestPageCount(t *testing.T) {
	cases := []struct {
		start, end uint64
		want       int
	}{
		{0, wire.PageSize, 1},
		{0, wire.PageSize + 1, 2},
		{0, 4 * wire.PageSize, 4},
		{10, wire.PageSize + 10, 1},
	}
	for _, tc := range cases {
		if got := PageCount(tc.start, tc.end); got != tc.want {
			t.Errorf("PageCount(%d,%d) = %d, want %d", tc.start, tc.end, got, tc.want)
		}
	}
}

func TestZeroFilledSingleLeaf(t *testing.T) {
	s := NewZeroFilled(wire.Data, 0, wire.PageSize)
	if s.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", s.Size())
	}
	page, proof, err := s.Read(0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(proof) != 0 {
		t.Fatalf("single-leaf proof should be empty, got %d entries", len(proof))
	}
	if !accumulator.VerifyInclusionProof(s.Root(), proof, accumulator.HashElement(page), 0, 1) {
		t.Fatal("inclusion proof did not verify")
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	s := New(wire.Data, 0, 4*wire.PageSize, fourPages())
	root := s.Root()

	page, proof, err := s.Read(2)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	oldHash := accumulator.HashElement(page)
	if !accumulator.VerifyInclusionProof(root, proof, oldHash, 2, 4) {
		t.Fatal("initial inclusion proof did not verify")
	}

	newPage := bytes.Repeat([]byte{0xFF}, wire.PageSize)
	up, err := s.Write(2, newPage)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	newHash := accumulator.HashElement(newPage)
	if !accumulator.VerifyUpdateProof(root, up, oldHash, newHash, 2, 4) {
		t.Fatal("update proof did not verify")
	}
	if s.Root() != up.NewRoot {
		t.Fatal("store root did not advance to the update proof's new root")
	}
}

func TestWriteRejectsWrongPageSize(t *testing.T) {
	s := New(wire.Data, 0, 4*wire.PageSize, fourPages())
	if _, err := s.Write(0, []byte("short")); err == nil {
		t.Fatal("expected error for wrong-size page")
	}
}

func TestNewPanicsOnPageCountMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on page count mismatch")
		}
	}()
	New(wire.Data, 0, 4*wire.PageSize, fourPages()[:2])
}
