// Package accumulator implements vector accumulators: a way for a verifier
// to outsource storage of a vector to an untrusted prover while holding only
// a single root hash that commits to the whole vector. Retrieval and update
// of individual elements are accompanied by proofs that the verifier checks
// against the root, without ever needing the rest of the vector.
package accumulator

import (
	"errors"

	"github.com/vanadium-project/vanadium-go/crypto"
)

// ErrIndexOutOfBounds is returned by Prove and Update for an index past the
// end of the accumulated vector.
var ErrIndexOutOfBounds = errors.New("accumulator: index out of bounds")

// Hash is the fixed-size output of the accumulator's hash function.
type Hash [32]byte

// InclusionProof is the sibling path from a leaf to the root.
type InclusionProof []Hash

// UpdateProof is an inclusion proof captured immediately before an update,
// together with the root produced by the update. The same sibling path
// validates both the old leaf against the old root and the new leaf against
// the new root, since replacing one leaf only changes the hashes on its
// path to the root.
type UpdateProof struct {
	Proof   InclusionProof
	NewRoot Hash
}

// VectorAccumulator outsources storage of a sequence of byte-string elements
// while exposing only a root hash. Implementations must support generating
// and verifying inclusion and update proofs.
type VectorAccumulator interface {
	// Get returns the element at index, or ok=false if out of bounds.
	Get(index int) (value []byte, ok bool)
	// Size returns the number of elements in the vector.
	Size() int
	// Root returns the current root hash.
	Root() Hash
	// Prove returns an inclusion proof for the element at index.
	Prove(index int) (InclusionProof, error)
	// Update replaces the element at index and returns a proof of the
	// transition.
	Update(index int, value []byte) (UpdateProof, error)
}

// HashElement returns the leaf hash of an element, the same value an
// accumulator hashes its elements to internally. Callers that only hold a
// remote accumulator's root use this to compute the value_hash argument to
// VerifyInclusionProof/VerifyUpdateProof without needing the accumulator
// itself.
func HashElement(data []byte) Hash {
	return hashLeaf(data)
}

// VerifyInclusionProof checks that value_hash, at index, is included under
// root, given an accumulator of the stated size. It is a free function
// (rather than a method) so a verifier that never held the data can check
// a proof handed to it by an untrusted prover.
func VerifyInclusionProof(root Hash, proof InclusionProof, valueHash Hash, index, size int) bool {
	hash := valueHash
	pos := size - 1 + index
	for _, sibling := range proof {
		if pos%2 == 0 {
			hash = hashInternalNode(sibling, hash)
		} else {
			hash = hashInternalNode(hash, sibling)
		}
		pos = (pos - 1) / 2
	}
	return hash == root
}

// VerifyUpdateProof checks that an update transitioned an accumulator from
// old_root (where the element at index hashed to old_value_hash) to
// new_root (where it hashes to new_value_hash).
func VerifyUpdateProof(oldRoot Hash, up UpdateProof, oldValueHash, newValueHash Hash, index, size int) bool {
	return VerifyInclusionProof(oldRoot, up.Proof, oldValueHash, index, size) &&
		VerifyInclusionProof(up.NewRoot, up.Proof, newValueHash, index, size)
}

// MerkleAccumulator is a Merkle-tree backed VectorAccumulator. Leaves and
// internal nodes are domain separated: a leaf hash prepends 0x00 to the
// element bytes, an internal node hash prepends 0x01 to its two children, so
// a leaf can never be mistaken for an internal node value.
//
// The tree is a flat array of size 2n-1 for n elements: tree[n-1:] holds
// leaf hashes in order, and tree[i] for i < n-1 holds hash_internal(tree[2i+1],
// tree[2i+2]). tree[0] is the root. This requires data to be non-empty; the
// zero-element case is never constructed by pagestore/witness, which always
// back a segment with at least one page.
type MerkleAccumulator struct {
	data [][]byte
	tree []Hash
}

// NewMerkleAccumulator builds a MerkleAccumulator over data. data must be
// non-empty.
func NewMerkleAccumulator(data [][]byte) *MerkleAccumulator {
	m := &MerkleAccumulator{data: data}
	m.buildTree()
	return m
}

func (m *MerkleAccumulator) Get(index int) ([]byte, bool) {
	if index < 0 || index >= len(m.data) {
		return nil, false
	}
	return m.data[index], true
}

func (m *MerkleAccumulator) Size() int { return len(m.data) }

func (m *MerkleAccumulator) Root() Hash { return m.tree[0] }

// Prove walks from the leaf at index up to the root, collecting the sibling
// hash at every level.
func (m *MerkleAccumulator) Prove(index int) (InclusionProof, error) {
	if index < 0 || index >= len(m.data) {
		return nil, ErrIndexOutOfBounds
	}

	var proof InclusionProof
	n := len(m.data)
	pos := n - 1 + index
	for pos > 0 {
		if pos%2 == 0 {
			proof = append(proof, m.tree[pos-1])
		} else {
			proof = append(proof, m.tree[pos+1])
		}
		pos = (pos - 1) / 2
	}
	return proof, nil
}

// Update replaces the element at index with value, returning the inclusion
// proof captured before the mutation together with the resulting root. The
// proof is captured first since recomputing it afterward would walk the
// already-updated path.
func (m *MerkleAccumulator) Update(index int, value []byte) (UpdateProof, error) {
	if index < 0 || index >= len(m.data) {
		return UpdateProof{}, ErrIndexOutOfBounds
	}

	proof, err := m.Prove(index)
	if err != nil {
		return UpdateProof{}, err
	}

	m.data[index] = value
	n := len(m.data)
	pos := n - 1 + index
	m.tree[pos] = hashLeaf(value)
	for pos > 0 {
		pos = (pos - 1) / 2
		m.tree[pos] = hashInternalNode(m.tree[2*pos+1], m.tree[2*pos+2])
	}

	return UpdateProof{Proof: proof, NewRoot: m.Root()}, nil
}

func (m *MerkleAccumulator) buildTree() {
	n := len(m.data)
	m.tree = make([]Hash, 2*n-1)
	for i, elem := range m.data {
		m.tree[n-1+i] = hashLeaf(elem)
	}
	for i := n - 2; i >= 0; i-- {
		m.tree[i] = hashInternalNode(m.tree[2*i+1], m.tree[2*i+2])
	}
}

func hashLeaf(data []byte) Hash {
	return Hash(crypto.Keccak256Hash([]byte{0x00}, data))
}

func hashInternalNode(left, right Hash) Hash {
	return Hash(crypto.Keccak256Hash([]byte{0x01}, left[:], right[:]))
}
