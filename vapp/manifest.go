// Package vapp is the app-level glue that binds a manifest-described V-App
// to the riscv interpreter and the pagefault/msgchannel protocols: manifest
// parsing (§6) and the two-phase registration/MAC exchange that pins one to
// a device.
package vapp

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/vanadium-project/vanadium-go/accumulator"
	"github.com/vanadium-project/vanadium-go/rlp"
	"github.com/vanadium-project/vanadium-go/wire"
)

// SegmentDescriptor is a manifest segment with an initial accumulator root
// (Code and Data). Stack has no root of its own — it is always
// zero-initialized, per §6.
type SegmentDescriptor struct {
	Start uint64
	End   uint64
	Root  accumulator.Hash
}

// StackDescriptor is the Stack segment's manifest entry: bounds only, no
// initial root.
type StackDescriptor struct {
	Start uint64
	End   uint64
}

// Manifest is the deterministic, RLP-encoded description of one V-App's
// memory layout and entry arguments, exchanged during registration and on
// every execute call thereafter.
type Manifest struct {
	Code       SegmentDescriptor
	Data       SegmentDescriptor
	Stack      StackDescriptor
	Entrypoint uint64
	Args       []*uint256.Int
}

// manifestWire is the RLP-encodable shape of a Manifest: rlp only knows how
// to encode bool/uint/[]byte/string/*big.Int/slice/array/struct, so
// *uint256.Int arguments round-trip through *big.Int for the wire.
type manifestWire struct {
	CodeStart, CodeEnd uint64
	CodeRoot           [32]byte

	DataStart, DataEnd uint64
	DataRoot           [32]byte

	StackStart, StackEnd uint64

	Entrypoint uint64
	ArgCount   uint32
	Args       []*big.Int
}

func (m *Manifest) toWire() manifestWire {
	args := make([]*big.Int, len(m.Args))
	for i, a := range m.Args {
		if a == nil {
			a = new(uint256.Int)
		}
		args[i] = a.ToBig()
	}
	return manifestWire{
		CodeStart: m.Code.Start, CodeEnd: m.Code.End, CodeRoot: m.Code.Root,
		DataStart: m.Data.Start, DataEnd: m.Data.End, DataRoot: m.Data.Root,
		StackStart: m.Stack.Start, StackEnd: m.Stack.End,
		Entrypoint: m.Entrypoint,
		ArgCount:   uint32(len(args)),
		Args:       args,
	}
}

func (w manifestWire) toManifest() (*Manifest, error) {
	if int(w.ArgCount) != len(w.Args) {
		return nil, fmt.Errorf("vapp: manifest declares %d args but encodes %d", w.ArgCount, len(w.Args))
	}
	args := make([]*uint256.Int, len(w.Args))
	for i, bi := range w.Args {
		u := new(uint256.Int)
		if overflow := u.SetFromBig(bi); overflow {
			return nil, fmt.Errorf("vapp: manifest arg %d overflows uint256", i)
		}
		args[i] = u
	}
	return &Manifest{
		Code:       SegmentDescriptor{Start: w.CodeStart, End: w.CodeEnd, Root: w.CodeRoot},
		Data:       SegmentDescriptor{Start: w.DataStart, End: w.DataEnd, Root: w.DataRoot},
		Stack:      StackDescriptor{Start: w.StackStart, End: w.StackEnd},
		Entrypoint: w.Entrypoint,
		Args:       args,
	}, nil
}

// Encode returns the manifest's deterministic RLP encoding, the same bytes
// the registration MAC is derived over.
func (m *Manifest) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(m.toWire())
}

// DecodeManifest parses a manifest previously produced by Encode.
func DecodeManifest(data []byte) (*Manifest, error) {
	var w manifestWire
	if err := rlp.DecodeBytes(data, &w); err != nil {
		return nil, fmt.Errorf("vapp: decoding manifest: %w", err)
	}
	return w.toManifest()
}

// SegmentBounds returns the manifest's three memory regions as riscv.Segment-
// compatible (kind, start, end) tuples, in Code/Data/Stack order.
func (m *Manifest) SegmentBounds() [3]struct {
	Kind       wire.SectionKind
	Start, End uint64
} {
	return [3]struct {
		Kind       wire.SectionKind
		Start, End uint64
	}{
		{wire.Code, m.Code.Start, m.Code.End},
		{wire.Data, m.Data.Start, m.Data.End},
		{wire.Stack, m.Stack.Start, m.Stack.End},
	}
}
