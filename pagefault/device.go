// Package pagefault implements the outsourced-memory page-fault protocol
// (§4.5): the device-side Resolver that fetches and verifies pages over a
// transport, and the host-side Server that answers those requests from its
// page stores.
package pagefault

import (
	"fmt"

	"github.com/vanadium-project/vanadium-go/accumulator"
	"github.com/vanadium-project/vanadium-go/log"
	"github.com/vanadium-project/vanadium-go/metrics"
	"github.com/vanadium-project/vanadium-go/transport"
	"github.com/vanadium-project/vanadium-go/wire"
	"github.com/vanadium-project/vanadium-go/witness"
)

var deviceLogger = log.Default().Module("pagefault.device")

// Resolver is the device side of the page-fault protocol. Given a faulting
// address it drives the request/response exchange with the host over a
// Transport and returns verified page content: no byte the host sends is
// trusted until its proof checks out against the segment witness's current
// root. Any verification failure is fatal — the protocol has no retry path
// (§7).
type Resolver struct {
	conn          transport.Transport
	witnesses     map[wire.SectionKind]*witness.Witness
	maxChunkBytes int
}

// NewResolver builds a Resolver over one witness per memory segment kind.
// maxChunkBytes of 0 selects wire.DefaultMaxChunkBytes.
func NewResolver(conn transport.Transport, witnesses map[wire.SectionKind]*witness.Witness, maxChunkBytes int) *Resolver {
	if maxChunkBytes <= 0 {
		maxChunkBytes = wire.DefaultMaxChunkBytes
	}
	return &Resolver{conn: conn, witnesses: witnesses, maxChunkBytes: maxChunkBytes}
}

// ResolveRead fetches and verifies the page at (kind, index): GetPage for
// the content, then GetPageProof(+Continued) for the inclusion proof,
// checked against the segment's witness before the content is trusted.
func (r *Resolver) ResolveRead(kind wire.SectionKind, index uint32) ([]byte, error) {
	timer := metrics.NewTimer(metrics.PageFaultLatency)
	defer timer.Stop()

	w, err := r.witnessFor(kind)
	if err != nil {
		return nil, err
	}

	if err := r.send(wire.GetPageMessage{Kind: kind, PageIndex: index}); err != nil {
		return nil, err
	}
	page, err := r.recvExact(wire.PageSize)
	if err != nil {
		return nil, err
	}

	proof, err := r.fetchInclusionProof()
	if err != nil {
		return nil, err
	}

	if err := w.VerifyRead(int(index), page, proof); err != nil {
		deviceLogger.Error("page fault resolution failed verification", "kind", kind, "index", index, "err", err)
		return nil, err
	}
	metrics.TransportRoundTrips.Inc()
	deviceLogger.Debug("resolved page fault", "kind", kind, "index", index)
	return page, nil
}

// ResolveWrite commits newPage at (kind, index): CommitPage announces the
// write, CommitPageContent carries the bytes, and the host's update proof
// (possibly chunked via CommitPageProofContinued) is verified against the
// witness before the local root advances. Writing to a Code segment is
// rejected by the witness (I8) without ever looking at the host's reply.
func (r *Resolver) ResolveWrite(kind wire.SectionKind, index uint32, newPage []byte) error {
	w, err := r.witnessFor(kind)
	if err != nil {
		return err
	}
	if kind == wire.Code {
		return witness.ErrCodeSegmentWrite
	}

	if err := r.send(wire.CommitPageMessage{Kind: kind, PageIndex: index}); err != nil {
		return err
	}
	if err := r.send(wire.NewCommitPageContentMessage(newPage)); err != nil {
		return err
	}

	frame, err := r.conn.RecvFrame()
	if err != nil {
		return err
	}
	resp, err := wire.DecodeCommitPageProofResponse(frame)
	if err != nil {
		return err
	}
	proof := append(accumulator.InclusionProof(nil), resp.Proof...)
	for uint8(len(proof)) < resp.N {
		if err := r.send(wire.CommitPageProofContinuedMessage{}); err != nil {
			return err
		}
		frame, err := r.conn.RecvFrame()
		if err != nil {
			return err
		}
		cont, err := wire.DecodeCommitPageProofContinuedResponse(frame)
		if err != nil {
			return err
		}
		proof = append(proof, cont.Proof...)
	}

	up := accumulator.UpdateProof{Proof: proof, NewRoot: resp.NewRoot}
	if err := w.ApplyWrite(int(index), newPage, up); err != nil {
		deviceLogger.Error("page commit failed verification", "kind", kind, "index", index, "err", err)
		return err
	}
	metrics.TransportRoundTrips.Inc()
	deviceLogger.Debug("committed page", "kind", kind, "index", index)
	return nil
}

func (r *Resolver) fetchInclusionProof() (accumulator.InclusionProof, error) {
	if err := r.send(wire.GetPageProofMessage{}); err != nil {
		return nil, err
	}
	frame, err := r.conn.RecvFrame()
	if err != nil {
		return nil, err
	}
	resp, err := wire.DecodeGetPageProofResponse(frame)
	if err != nil {
		return nil, err
	}
	proof := append(accumulator.InclusionProof(nil), resp.Proof...)
	for uint8(len(proof)) < resp.N {
		if err := r.send(wire.GetPageProofContinuedMessage{}); err != nil {
			return nil, err
		}
		frame, err := r.conn.RecvFrame()
		if err != nil {
			return nil, err
		}
		cont, err := wire.DecodeGetPageProofContinuedResponse(frame)
		if err != nil {
			return nil, err
		}
		proof = append(proof, cont.Proof...)
	}
	return proof, nil
}

func (r *Resolver) witnessFor(kind wire.SectionKind) (*witness.Witness, error) {
	w, ok := r.witnesses[kind]
	if !ok {
		return nil, fmt.Errorf("pagefault: no witness for segment %s", kind)
	}
	return w, nil
}

func (r *Resolver) send(m wire.Message) error {
	return r.conn.SendFrame(m.Encode(nil))
}

func (r *Resolver) recvExact(n int) ([]byte, error) {
	frame, err := r.conn.RecvFrame()
	if err != nil {
		return nil, err
	}
	if len(frame) != n {
		return nil, fmt.Errorf("pagefault: expected a %d-byte page, got %d bytes", n, len(frame))
	}
	return frame, nil
}
