package pagefault

import (
	"bytes"
	"testing"

	"github.com/vanadium-project/vanadium-go/pagestore"
	"github.com/vanadium-project/vanadium-go/transport"
	"github.com/vanadium-project/vanadium-go/wire"
	"github.com/vanadium-project/vanadium-go/witness"
)

// setup wires a Server (host side, owning full page contents) to a Resolver
// (device side, owning only witness roots) over an in-process loopback
// transport, for a Data segment of n pages and a one-page Code segment.
func setup(t *testing.T, n int, maxChunkBytes int) (*Resolver, *pagestore.Store, func()) {
	t.Helper()

	dataPages := make([][]byte, n)
	for i := range dataPages {
		dataPages[i] = bytes.Repeat([]byte{byte('A' + i)}, wire.PageSize)
	}
	dataStore := pagestore.New(wire.Data, 0, uint64(n)*wire.PageSize, dataPages)
	codeStore := pagestore.New(wire.Code, 0, wire.PageSize, [][]byte{bytes.Repeat([]byte{0xC0}, wire.PageSize)})

	stores := map[wire.SectionKind]*pagestore.Store{
		wire.Data: dataStore,
		wire.Code: codeStore,
	}
	witnesses := map[wire.SectionKind]*witness.Witness{
		wire.Data: witness.New(wire.Data, 0, uint64(n)*wire.PageSize, dataStore.Size(), dataStore.Root()),
		wire.Code: witness.New(wire.Code, 0, wire.PageSize, codeStore.Size(), codeStore.Root()),
	}

	deviceConn, hostConn := transport.LoopbackPair()
	server := NewServer(stores, maxChunkBytes)
	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Serve(hostConn) }()

	resolver := NewResolver(deviceConn, witnesses, maxChunkBytes)

	cleanup := func() {
		deviceConn.Close()
		hostConn.Close()
	}
	return resolver, dataStore, cleanup
}

func TestResolveReadVerifies(t *testing.T) {
	resolver, _, cleanup := setup(t, 4, 0)
	defer cleanup()

	page, err := resolver.ResolveRead(wire.Data, 2)
	if err != nil {
		t.Fatalf("ResolveRead: %v", err)
	}
	want := bytes.Repeat([]byte{'C'}, wire.PageSize)
	if !bytes.Equal(page, want) {
		t.Fatalf("page content mismatch")
	}
}

func TestResolveReadWithSmallChunksRequiresContinuation(t *testing.T) {
	// A tiny chunk budget forces every proof to span multiple
	// GetPageProofContinued round trips even for a small tree.
	resolver, _, cleanup := setup(t, 8, 1)
	defer cleanup()

	page, err := resolver.ResolveRead(wire.Data, 5)
	if err != nil {
		t.Fatalf("ResolveRead: %v", err)
	}
	if len(page) != wire.PageSize {
		t.Fatalf("page length = %d", len(page))
	}
}

func TestResolveWriteThenReadSeesNewContent(t *testing.T) {
	resolver, store, cleanup := setup(t, 4, 0)
	defer cleanup()

	// A write must be preceded by a read in the same fault cycle (the
	// witness's single cached-read slot, I7).
	if _, err := resolver.ResolveRead(wire.Data, 1); err != nil {
		t.Fatalf("ResolveRead: %v", err)
	}

	newPage := bytes.Repeat([]byte{0x42}, wire.PageSize)
	if err := resolver.ResolveWrite(wire.Data, 1, newPage); err != nil {
		t.Fatalf("ResolveWrite: %v", err)
	}
	if store.Root() != resolver.witnesses[wire.Data].Root() {
		t.Fatal("host store root and device witness root diverged after a verified write")
	}

	if _, err := resolver.ResolveRead(wire.Data, 1); err != nil {
		t.Fatalf("ResolveRead after write: %v", err)
	}
}

func TestResolveWriteRejectsCodeSegmentWithoutContactingHost(t *testing.T) {
	resolver, _, cleanup := setup(t, 4, 0)
	defer cleanup()

	if err := resolver.ResolveWrite(wire.Code, 0, bytes.Repeat([]byte{0xFF}, wire.PageSize)); err == nil {
		t.Fatal("expected an error rejecting a code-segment write")
	}
}

func TestServerRejectsCodeSegmentCommitMessage(t *testing.T) {
	stores := map[wire.SectionKind]*pagestore.Store{
		wire.Code: pagestore.New(wire.Code, 0, wire.PageSize, [][]byte{make([]byte, wire.PageSize)}),
	}
	s := NewServer(stores, 0)
	frame := wire.CommitPageMessage{Kind: wire.Code, PageIndex: 0}.Encode(nil)
	if _, err := s.HandleFrame(frame); err != ErrCodeSegmentWrite {
		t.Fatalf("err = %v, want ErrCodeSegmentWrite", err)
	}
}

func TestServerRejectsProofContinuedWithoutPendingExchange(t *testing.T) {
	stores := map[wire.SectionKind]*pagestore.Store{
		wire.Data: pagestore.New(wire.Data, 0, wire.PageSize, [][]byte{make([]byte, wire.PageSize)}),
	}
	s := NewServer(stores, 0)
	frame := wire.GetPageProofContinuedMessage{}.Encode(nil)
	if _, err := s.HandleFrame(frame); err != ErrNoPendingExchange {
		t.Fatalf("err = %v, want ErrNoPendingExchange", err)
	}
}
