package witness

import (
	"bytes"
	"testing"

	"github.com/vanadium-project/vanadium-go/accumulator"
	"github.com/vanadium-project/vanadium-go/pagestore"
	"github.com/vanadium-project/vanadium-go/wire"
)

func newPairedStoreAndWitness(t *testing.T, kind wire.SectionKind, n int) (*pagestore.Store, *Witness) {
	t.Helper()
	pages := make([][]byte, n)
	for i := range pages {
		pages[i] = bytes.Repeat([]byte{byte('A' + i)}, wire.PageSize)
	}
	store := pagestore.New(kind, 0, uint64(n)*wire.PageSize, pages)
	w := New(kind, 0, uint64(n)*wire.PageSize, store.Size(), store.Root())
	return store, w
}

func TestVerifyReadAccepts(t *testing.T) {
	store, w := newPairedStoreAndWitness(t, wire.Data, 4)
	page, proof, err := store.Read(1)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := w.VerifyRead(1, page, proof); err != nil {
		t.Fatalf("VerifyRead: %v", err)
	}
}

func TestVerifyReadRejectsTamperedPage(t *testing.T) {
	store, w := newPairedStoreAndWitness(t, wire.Data, 4)
	page, proof, err := store.Read(1)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	tampered := append([]byte(nil), page...)
	tampered[0] ^= 0xFF
	if err := w.VerifyRead(1, tampered, proof); err != ErrProofFailure {
		t.Fatalf("err = %v, want ErrProofFailure", err)
	}
}

func TestApplyWriteRequiresPriorRead(t *testing.T) {
	store, w := newPairedStoreAndWitness(t, wire.Data, 4)
	newPage := bytes.Repeat([]byte{0xFF}, wire.PageSize)
	up, err := store.Write(2, newPage)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.ApplyWrite(2, newPage, up); err != ErrNoCachedRead {
		t.Fatalf("err = %v, want ErrNoCachedRead", err)
	}
}

func TestReadThenWriteUpdatesRoot(t *testing.T) {
	store, w := newPairedStoreAndWitness(t, wire.Data, 4)
	page, proof, err := store.Read(2)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := w.VerifyRead(2, page, proof); err != nil {
		t.Fatalf("VerifyRead: %v", err)
	}

	newPage := bytes.Repeat([]byte{0xFF}, wire.PageSize)
	up, err := store.Write(2, newPage)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.ApplyWrite(2, newPage, up); err != nil {
		t.Fatalf("ApplyWrite: %v", err)
	}
	if w.Root() != store.Root() {
		t.Fatal("witness root diverged from store root after a verified write")
	}
}

func TestApplyWriteRejectsCodeSegment(t *testing.T) {
	store, w := newPairedStoreAndWitness(t, wire.Code, 4)
	page, proof, err := store.Read(0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	// Code segments are immutable: even with a cached verified read, any
	// write attempt must be rejected before looking at the proof at all.
	_ = w.VerifyRead(0, page, proof)
	rootBefore := w.Root()

	newPage := bytes.Repeat([]byte{0xFF}, wire.PageSize)
	if err := w.ApplyWrite(0, newPage, accumulator.UpdateProof{}); err != ErrCodeSegmentWrite {
		t.Fatalf("err = %v, want ErrCodeSegmentWrite", err)
	}
	if w.Root() != rootBefore {
		t.Fatal("root changed despite rejected code-segment write")
	}
}

func TestOutOfBoundsIndices(t *testing.T) {
	_, w := newPairedStoreAndWitness(t, wire.Data, 4)
	if err := w.VerifyRead(4, make([]byte, wire.PageSize), nil); err != ErrOutOfBounds {
		t.Fatalf("VerifyRead err = %v, want ErrOutOfBounds", err)
	}
	if err := w.ApplyWrite(4, make([]byte, wire.PageSize), accumulator.UpdateProof{}); err != ErrOutOfBounds {
		t.Fatalf("ApplyWrite err = %v, want ErrOutOfBounds", err)
	}
}
