package wire

import "github.com/vanadium-project/vanadium-go/accumulator"

// ChunkProof splits a full proof into wire-sized chunks of at most
// MaxHashesPerChunk(maxChunkBytes) hashes each, in order. The caller sends
// the first chunk in a GetPageProofResponse/CommitPageProofResponse and the
// rest in *Continued responses, as the device requests them.
func ChunkProof(proof []accumulator.Hash, maxChunkBytes int) [][]accumulator.Hash {
	per := MaxHashesPerChunk(maxChunkBytes)
	if len(proof) == 0 {
		return [][]accumulator.Hash{{}}
	}
	var chunks [][]accumulator.Hash
	for start := 0; start < len(proof); start += per {
		end := start + per
		if end > len(proof) {
			end = len(proof)
		}
		chunks = append(chunks, proof[start:end])
	}
	return chunks
}
