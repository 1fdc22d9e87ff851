package pagefault

import (
	"errors"
	"fmt"

	"github.com/vanadium-project/vanadium-go/accumulator"
	"github.com/vanadium-project/vanadium-go/log"
	"github.com/vanadium-project/vanadium-go/metrics"
	"github.com/vanadium-project/vanadium-go/pagestore"
	"github.com/vanadium-project/vanadium-go/transport"
	"github.com/vanadium-project/vanadium-go/wire"
)

var hostLogger = log.Default().Module("pagefault.host")

// ErrCodeSegmentWrite is returned when the device attempts to commit a page
// to a Code segment. The host can reject this immediately from the segment
// kind alone, without consulting any state — Code immutability (I8) never
// depends on page contents.
var ErrCodeSegmentWrite = errors.New("pagefault: cannot commit a page to a code segment")

// ErrNoPendingExchange is returned when a *Continued request arrives with no
// matching GetPage/CommitPage exchange in progress — a protocol violation
// from a conforming device, so the caller should treat it as fatal.
var ErrNoPendingExchange = errors.New("pagefault: continuation request with no pending exchange")

// proofCursor hands out a proof in MaxHashesPerChunk-sized pieces as the
// device asks for them via *ProofContinued requests.
type proofCursor struct {
	total     uint8
	remaining []accumulator.Hash
}

func newProofCursor(proof []accumulator.Hash) *proofCursor {
	return &proofCursor{total: uint8(len(proof)), remaining: append([]accumulator.Hash(nil), proof...)}
}

func (c *proofCursor) next(maxChunkBytes int) []accumulator.Hash {
	per := wire.MaxHashesPerChunk(maxChunkBytes)
	if per > len(c.remaining) {
		per = len(c.remaining)
	}
	chunk := c.remaining[:per]
	c.remaining = c.remaining[per:]
	return chunk
}

// Server is the host side of the page-fault protocol: it owns the full page
// contents of every segment (via pagestore.Store) and answers the device's
// GetPage/CommitPage exchanges with content and chunked proofs. Server
// processes one exchange at a time, matching the protocol's half-duplex,
// single-outstanding-interrupt contract (I7) — it keeps no per-device
// session state beyond the exchange currently in flight.
type Server struct {
	stores        map[wire.SectionKind]*pagestore.Store
	maxChunkBytes int

	readCursor   *proofCursor
	commitCursor *proofCursor
	commitRoot   accumulator.Hash
	commitKind   wire.SectionKind
	commitIndex  uint32
}

// NewServer builds a Server over one Store per memory segment kind.
// maxChunkBytes of 0 selects wire.DefaultMaxChunkBytes.
func NewServer(stores map[wire.SectionKind]*pagestore.Store, maxChunkBytes int) *Server {
	if maxChunkBytes <= 0 {
		maxChunkBytes = wire.DefaultMaxChunkBytes
	}
	return &Server{stores: stores, maxChunkBytes: maxChunkBytes}
}

// Serve reads request frames from conn and answers each in turn until
// RecvFrame or HandleFrame returns an error (including transport.ErrClosed
// on ordinary shutdown). CommitPageMessage has no reply of its own — the
// device sends CommitPageContentMessage right behind it and waits for the
// proof response there instead — so HandleFrame returns a nil response for
// it and Serve sends nothing back.
func (s *Server) Serve(conn transport.Transport) error {
	for {
		frame, err := conn.RecvFrame()
		if err != nil {
			return err
		}
		resp, err := s.HandleFrame(frame)
		if err != nil {
			return err
		}
		if resp == nil {
			continue
		}
		if err := conn.SendFrame(resp); err != nil {
			return err
		}
	}
}

// HandleFrame decodes one request frame and returns the encoded response
// (nil if the request has no reply of its own), without touching a
// Transport — useful for testing and for carriers that hand the Server raw
// frames directly.
func (s *Server) HandleFrame(frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, wire.ErrInvalidDataLength
	}
	code, err := wire.ParseClientCommandCode(frame[0])
	if err != nil {
		return nil, err
	}
	switch code {
	case wire.GetPage:
		return s.handleGetPage(frame)
	case wire.GetPageProof:
		return s.handleGetPageProof(frame)
	case wire.GetPageProofContinued:
		return s.handleGetPageProofContinued(frame)
	case wire.CommitPage:
		return s.handleCommitPage(frame)
	case wire.CommitPageContent:
		return s.handleCommitPageContent(frame)
	case wire.CommitPageProofContinued:
		return s.handleCommitPageProofContinued(frame)
	default:
		return nil, fmt.Errorf("pagefault: unexpected command %s at host endpoint", code)
	}
}

func (s *Server) store(kind wire.SectionKind) (*pagestore.Store, error) {
	store, ok := s.stores[kind]
	if !ok {
		return nil, fmt.Errorf("pagefault: no store for segment %s", kind)
	}
	return store, nil
}

func (s *Server) handleGetPage(frame []byte) ([]byte, error) {
	msg, err := wire.DecodeGetPageMessage(frame)
	if err != nil {
		return nil, err
	}
	store, err := s.store(msg.Kind)
	if err != nil {
		return nil, err
	}
	page, proof, err := store.Read(int(msg.PageIndex))
	if err != nil {
		return nil, err
	}
	s.readCursor = newProofCursor(proof)
	metrics.PageFaultsServed.Inc()
	hostLogger.Debug("served page fault", "kind", msg.Kind, "index", msg.PageIndex)
	return page, nil
}

func (s *Server) handleGetPageProof(frame []byte) ([]byte, error) {
	if _, err := wire.DecodeGetPageProofMessage(frame); err != nil {
		return nil, err
	}
	if s.readCursor == nil {
		return nil, ErrNoPendingExchange
	}
	chunk := s.readCursor.next(s.maxChunkBytes)
	resp := wire.GetPageProofResponse{N: s.readCursor.total, Proof: chunk}
	return resp.Encode(nil), nil
}

func (s *Server) handleGetPageProofContinued(frame []byte) ([]byte, error) {
	if _, err := wire.DecodeGetPageProofContinuedMessage(frame); err != nil {
		return nil, err
	}
	if s.readCursor == nil {
		return nil, ErrNoPendingExchange
	}
	chunk := s.readCursor.next(s.maxChunkBytes)
	resp := wire.GetPageProofContinuedResponse{Proof: chunk}
	return resp.Encode(nil), nil
}

func (s *Server) handleCommitPage(frame []byte) ([]byte, error) {
	msg, err := wire.DecodeCommitPageMessage(frame)
	if err != nil {
		return nil, err
	}
	if msg.Kind == wire.Code {
		hostLogger.Warn("rejected commit to code segment", "index", msg.PageIndex)
		return nil, ErrCodeSegmentWrite
	}
	if _, err := s.store(msg.Kind); err != nil {
		return nil, err
	}
	s.commitKind = msg.Kind
	s.commitIndex = msg.PageIndex
	return nil, nil
}

func (s *Server) handleCommitPageContent(frame []byte) ([]byte, error) {
	msg, err := wire.DecodeCommitPageContentMessage(frame)
	if err != nil {
		return nil, err
	}
	store, err := s.store(s.commitKind)
	if err != nil {
		return nil, err
	}
	up, err := store.Write(int(s.commitIndex), msg.Data)
	if err != nil {
		return nil, err
	}
	s.commitCursor = newProofCursor(up.Proof)
	s.commitRoot = up.NewRoot
	metrics.PageCommits.Inc()
	hostLogger.Debug("committed page", "kind", s.commitKind, "index", s.commitIndex)
	chunk := s.commitCursor.next(s.maxChunkBytes)
	resp := wire.CommitPageProofResponse{N: s.commitCursor.total, NewRoot: s.commitRoot, Proof: chunk}
	return resp.Encode(nil), nil
}

func (s *Server) handleCommitPageProofContinued(frame []byte) ([]byte, error) {
	if _, err := wire.DecodeCommitPageProofContinuedMessage(frame); err != nil {
		return nil, err
	}
	if s.commitCursor == nil {
		return nil, ErrNoPendingExchange
	}
	chunk := s.commitCursor.next(s.maxChunkBytes)
	resp := wire.CommitPageProofContinuedResponse{Proof: chunk}
	return resp.Encode(nil), nil
}
