// Package witness implements the device side of outsourced memory: a
// per-segment record holding nothing but the current accumulator root (plus
// a one-slot cache of the last verified read), against which the host's
// proofs are checked.
package witness

import (
	"errors"
	"fmt"

	"github.com/vanadium-project/vanadium-go/accumulator"
	"github.com/vanadium-project/vanadium-go/log"
	"github.com/vanadium-project/vanadium-go/metrics"
	"github.com/vanadium-project/vanadium-go/wire"
)

var logger = log.Default().Module("witness")

var (
	// ErrProofFailure is returned when an inclusion or update proof fails
	// verification against the witness's current root. The caller treats
	// this as fatal (VMRuntimeError), per the core's no-retry policy.
	ErrProofFailure = errors.New("witness: proof verification failed")
	// ErrOutOfBounds is returned for a page index beyond the segment size.
	ErrOutOfBounds = errors.New("witness: page index out of bounds")
	// ErrCodeSegmentWrite is returned for any attempt to commit a page to
	// a Code segment (I8: code immutability).
	ErrCodeSegmentWrite = errors.New("witness: code segments are immutable")
	// ErrNoCachedRead is returned when ApplyWrite is called for a page
	// that was not first read (and verified) in the current fault cycle.
	ErrNoCachedRead = errors.New("witness: no verified read cached for this page")
)

// Witness is the device's trust anchor for one memory segment: it never
// holds page contents, only the root the host's page store must be
// consistent with.
type Witness struct {
	kind  wire.SectionKind
	start uint64
	end   uint64
	size  int
	root  accumulator.Hash

	haveCachedRead bool
	cachedIndex    int
	cachedHash     accumulator.Hash
}

// New creates a Witness initialized from a manifest segment description:
// the size (page count) and initial root agreed on by both parties.
func New(kind wire.SectionKind, start, end uint64, size int, root accumulator.Hash) *Witness {
	return &Witness{kind: kind, start: start, end: end, size: size, root: root}
}

func (w *Witness) Kind() wire.SectionKind { return w.kind }
func (w *Witness) Start() uint64          { return w.start }
func (w *Witness) End() uint64            { return w.end }
func (w *Witness) Size() int              { return w.size }
func (w *Witness) Root() accumulator.Hash { return w.root }

// PageIndex maps a byte address within the segment to a page index.
func (w *Witness) PageIndex(addr uint64) int {
	return int((addr - w.start) / wire.PageSize)
}

// VerifyRead checks a page and its inclusion proof against the current
// root. On success, it caches the page's hash so a subsequent ApplyWrite for
// the same index can validate the write's "old value" without re-deriving it
// from transferred bytes.
func (w *Witness) VerifyRead(index int, page []byte, proof accumulator.InclusionProof) error {
	if index < 0 || index >= w.size {
		return ErrOutOfBounds
	}
	hash := accumulator.HashElement(page)
	if !accumulator.VerifyInclusionProof(w.root, proof, hash, index, w.size) {
		metrics.ProofVerificationFailures.Inc()
		logger.Error("inclusion proof failed", "kind", w.kind, "index", index)
		return ErrProofFailure
	}
	w.haveCachedRead = true
	w.cachedIndex = index
	w.cachedHash = hash
	return nil
}

// ApplyWrite checks an update proof against the current root, using the
// page hash cached by the most recent successful VerifyRead for the same
// index as the "old value". On success it advances the root to the proof's
// new root.
func (w *Witness) ApplyWrite(index int, newPage []byte, up accumulator.UpdateProof) error {
	if w.kind == wire.Code {
		logger.Warn("rejected write to code segment", "index", index)
		return ErrCodeSegmentWrite
	}
	if index < 0 || index >= w.size {
		return ErrOutOfBounds
	}
	if !w.haveCachedRead || w.cachedIndex != index {
		return ErrNoCachedRead
	}
	newHash := accumulator.HashElement(newPage)
	if !accumulator.VerifyUpdateProof(w.root, up, w.cachedHash, newHash, index, w.size) {
		metrics.ProofVerificationFailures.Inc()
		logger.Error("update proof failed", "kind", w.kind, "index", index)
		return ErrProofFailure
	}
	w.root = up.NewRoot
	w.haveCachedRead = false
	logger.Debug("applied write", "kind", w.kind, "index", index)
	return nil
}

func (w *Witness) String() string {
	return fmt.Sprintf("witness{kind=%s start=%d end=%d size=%d root=%x}", w.kind, w.start, w.end, w.size, w.root[:4])
}
